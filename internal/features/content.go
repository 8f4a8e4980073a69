package features

import (
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
)

// PageText prepares fetched page content for the model. Markup that slips
// through the proxy is reduced to its visible text, and the result is cut
// to at most maxChars runes. maxChars <= 0 disables truncation.
func PageText(content string, maxChars int) string {
	content = strings.TrimSpace(content)
	if looksLikeHTML(content) {
		if text, ok := visibleText(content); ok {
			content = text
		}
	}
	return truncate(content, maxChars)
}

func looksLikeHTML(s string) bool {
	head := strings.ToLower(s[:min(len(s), 512)])
	return strings.HasPrefix(head, "<!doctype html") ||
		strings.Contains(head, "<html") ||
		strings.Contains(head, "<body")
}

func visibleText(html string) (string, bool) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", false
	}
	doc.Find("script, style, noscript, template, svg, iframe").Remove()

	root := doc.Find("body")
	if root.Length() == 0 {
		root = doc.Selection
	}
	return strings.Join(strings.Fields(root.Text()), " "), true
}

func truncate(s string, maxChars int) string {
	if maxChars <= 0 || utf8.RuneCountInString(s) <= maxChars {
		return s
	}
	n := 0
	for i := range s {
		if n == maxChars {
			return s[:i]
		}
		n++
	}
	return s
}
