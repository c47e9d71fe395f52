package recorder

import (
	"errors"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/require"
)

func parseHtml(t testing.TB, body string) *goquery.Document {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	return doc
}

func TestExtractTokens(t *testing.T) {
	doc := parseHtml(t, `<form>
		<input type="hidden" name="__VIEWSTATE" id="__VIEWSTATE" value="/wEPDwUK1" />
		<input value="CA0B0334"   id="__VIEWSTATEGENERATOR" name="__VIEWSTATEGENERATOR" type="hidden"/>
		<INPUT TYPE="hidden" VALUE="/wEdAA1" NAME="__EVENTVALIDATION">
		<input type="hidden" name="__EVENTTARGET" value="" />
	</form>`)

	tokens, err := ExtractTokens(doc, DefaultTokenFields)
	require.NoError(t, err)
	require.Equal(t, TokenSet{
		"__VIEWSTATE":          "/wEPDwUK1",
		"__VIEWSTATEGENERATOR": "CA0B0334",
		"__EVENTVALIDATION":    "/wEdAA1",
		"__EVENTTARGET":        "",
	}, tokens)
}

func TestExtractTokensMissing(t *testing.T) {
	doc := parseHtml(t, `<form>
		<input type="hidden" name="__VIEWSTATE" value="/wEPDwUK1" />
	</form>`)

	tokens, err := ExtractTokens(doc, DefaultTokenFields)
	require.Nil(t, tokens)
	require.ErrorIs(t, err, ErrTokenMissing)

	var missing *TokenMissingError
	require.True(t, errors.As(err, &missing))
	require.Equal(t, "__EVENTVALIDATION", missing.Field)
	require.True(t, IsWorkflowFatal(err))
}

func TestFormFieldsTokensWin(t *testing.T) {
	step := PostStep("search", "/Search.aspx", map[string]string{
		"__VIEWSTATE": "stale",
		"query":       "lien",
	})
	fields := step.formFields(TokenSet{"__VIEWSTATE": "fresh", "__EVENTVALIDATION": "ev"})
	require.Equal(t, map[string]string{
		"__VIEWSTATE":       "fresh",
		"__EVENTVALIDATION": "ev",
		"query":             "lien",
	}, fields)
	// the descriptor itself is left alone
	require.Equal(t, "stale", step.Fields["__VIEWSTATE"])
}
