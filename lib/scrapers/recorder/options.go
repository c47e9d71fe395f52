package recorder

import (
	"fmt"
	"strings"

	"recorder-scraper/lib/htmlutil"

	"github.com/PuerkitoBio/goquery"
	"github.com/antzucaro/matchr"
)

// Option is one rendered <option> of a select.
type Option struct {
	Value string
	Text  string
}

// suggestionThreshold is the lowest Jaro-Winkler similarity still offered as
// a "did you mean".
const suggestionThreshold = 0.85

func findSelect(doc *goquery.Document, field SelectField) *goquery.Selection {
	if field.ID != "" {
		sel := doc.Find(fmt.Sprintf(`select[id=%q]`, field.ID))
		if sel.Length() > 0 {
			return sel.First()
		}
	}
	return doc.Find(fmt.Sprintf(`select[name=%q]`, field.Name)).First()
}

// ReadOptions lists the options of field in document order. A missing select
// yields no options.
func ReadOptions(doc *goquery.Document, field SelectField) []Option {
	var options []Option
	findSelect(doc, field).Find("option").Each(func(_ int, s *goquery.Selection) {
		text := htmlutil.Text(s)
		value, ok := htmlutil.Attr(s, "value")
		if !ok {
			value = text
		}
		options = append(options, Option{Value: value, Text: text})
	})
	return options
}

// MatchOption finds want among options, ignoring case, by text first and by
// value second.
func MatchOption(field string, options []Option, want string) (Option, error) {
	want = htmlutil.Normalize(want)
	for _, opt := range options {
		if strings.EqualFold(opt.Text, want) {
			return opt, nil
		}
	}
	for _, opt := range options {
		if strings.EqualFold(opt.Value, want) {
			return opt, nil
		}
	}

	var best float64
	var suggestion string
	upper := strings.ToUpper(want)
	for _, opt := range options {
		similarity := matchr.JaroWinkler(upper, strings.ToUpper(opt.Text), false)
		if similarity > best {
			best = similarity
			suggestion = opt.Text
		}
	}
	if best < suggestionThreshold {
		suggestion = ""
	}
	return Option{}, &OptionNotFoundError{Field: field, Value: want, Suggestion: suggestion}
}
