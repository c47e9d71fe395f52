package recorder

import (
	"fmt"
	"maps"

	"github.com/PuerkitoBio/goquery"
)

// TokenSet maps hidden field names to the values the portal last issued.
type TokenSet map[string]string

type TokenFields struct {
	// Required fields must be on every form page, their absence means the page
	// is not the form that was expected.
	Required []string `json:"required"`
	// Optional fields are echoed back when the page carries them.
	Optional []string `json:"optional"`
}

var DefaultTokenFields = TokenFields{
	Required: []string{"__VIEWSTATE", "__EVENTVALIDATION"},
	Optional: []string{"__VIEWSTATEGENERATOR", "__EVENTTARGET", "__EVENTARGUMENT"},
}

// Names lists the required and then the optional field names.
func (f TokenFields) Names() []string {
	names := make([]string, 0, len(f.Required)+len(f.Optional))
	names = append(names, f.Required...)
	names = append(names, f.Optional...)
	return names
}

func hiddenInput(doc *goquery.Document, name string) (string, bool) {
	return doc.Find(fmt.Sprintf(`input[name=%q]`, name)).First().Attr("value")
}

// ExtractTokens reads the hidden token inputs out of doc. An input that is
// present with an empty value counts as present.
func ExtractTokens(doc *goquery.Document, fields TokenFields) (TokenSet, error) {
	tokens := TokenSet{}
	for _, name := range fields.Required {
		value, ok := hiddenInput(doc, name)
		if !ok {
			return nil, &TokenMissingError{Field: name}
		}
		tokens[name] = value
	}
	for _, name := range fields.Optional {
		value, ok := hiddenInput(doc, name)
		if ok {
			tokens[name] = value
		}
	}
	return tokens, nil
}

func (t TokenSet) Clone() TokenSet {
	return maps.Clone(t)
}

func (t TokenSet) Has(name string) bool {
	_, ok := t[name]
	return ok
}
