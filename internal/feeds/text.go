package feeds

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// StripHTML returns the visible text of an HTML fragment with whitespace collapsed.
// Input that cannot be parsed is returned with whitespace collapsed only.
func StripHTML(fragment string) string {
	if !strings.ContainsAny(fragment, "<&") {
		return cleanWhitespace(fragment)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return cleanWhitespace(fragment)
	}
	doc.Find("script, style, noscript, iframe").Remove()
	return cleanWhitespace(doc.Text())
}

func cleanWhitespace(text string) string {
	return strings.Join(strings.Fields(text), " ")
}
