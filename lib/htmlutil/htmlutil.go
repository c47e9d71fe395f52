package htmlutil

import (
	"bytes"
	"net/url"
	"regexp"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// GetText concatenates every text node under node, without any normalization.
func GetText(node *html.Node) string {
	var buffer bytes.Buffer
	getTextRecursive(node, &buffer)
	return buffer.String()
}

func getTextRecursive(node *html.Node, buffer *bytes.Buffer) {
	if node == nil {
		return
	}
	if node.Type == html.TextNode {
		buffer.WriteString(node.Data)
		return
	}
	child := node.FirstChild
	for child != nil {
		getTextRecursive(child, buffer)
		child = child.NextSibling
	}
}

var innerWhitespace = regexp.MustCompile(`\s\s+`)

func removeNonPrintable(s string) string {
	newStr := strings.Builder{}
	for _, c := range s {
		if unicode.IsPrint(c) || unicode.IsSpace(c) {
			newStr.WriteRune(c)
		}
	}
	return newStr.String()
}

// Normalize maps nbsp to a space, strips non-printable runes, trims the ends and
// collapses inner runs of whitespace into a single space.
func Normalize(s string) string {
	s = strings.ReplaceAll(s, "\u00a0", " ")
	s = removeNonPrintable(s)
	s = strings.TrimSpace(s)
	s = innerWhitespace.ReplaceAllString(s, " ")
	return s
}

// Text returns the normalized text of the first node in sel.
func Text(sel *goquery.Selection) string {
	if sel.Length() == 0 {
		return ""
	}
	return Normalize(GetText(sel.Nodes[0]))
}

// Attr returns the trimmed value of an attribute on the first node in sel.
func Attr(sel *goquery.Selection, name string) (string, bool) {
	value, ok := sel.First().Attr(name)
	if !ok {
		return "", false
	}
	return strings.TrimSpace(value), true
}

// Resolve resolves href against base, the way a browser would when following
// a link or submitting a form found on the page at base.
func Resolve(base *url.URL, href string) (*url.URL, error) {
	href = strings.TrimSpace(href)
	link, err := url.Parse(href)
	if err != nil {
		return nil, err
	}
	if base == nil {
		return link, nil
	}
	return base.ResolveReference(link), nil
}

type Anchor struct {
	Name string
	Href string
}

// GetAnchor reads the first anchor in sel, the href is left unresolved.
func GetAnchor(sel *goquery.Selection) (Anchor, bool) {
	a := sel.Find("a[href]").AddBackFiltered("a[href]").First()
	href, ok := Attr(a, "href")
	if !ok || href == "" {
		return Anchor{}, false
	}
	return Anchor{Name: Text(a), Href: href}, true
}
