// Package homepage resolves a company's official website from web search
// results.
package homepage

import (
	"net/url"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/cases"

	"github.com/sells-group/enrich-cli/internal/model"
)

// NotAvailable is written when no homepage could be chosen.
const NotAvailable = "N/A"

// DefaultExcludedHosts are aggregator and social hosts that are never a
// company's own homepage. Hosts match exactly, including any "www.".
var DefaultExcludedHosts = []string{
	"www.bloomberg.com",
	"www.linkedin.com",
	"www.crunchbase.com",
	"en.wikipedia.org",
	"twitter.com",
	"www.facebook.com",
	"www.instagram.com",
	"pitchbook.com",
	"www.youtube.com",
	"github.com",
	"medium.com",
	"techcrunch.com",
}

var (
	// legalSuffixPattern strips a trailing entity suffix before name matching.
	legalSuffixPattern = regexp.MustCompile(`(?i),?\s*(inc\.?|corp\.?|ltd\.?|llc\.?)$`)

	// localeRootPattern matches a two-letter locale landing path like /en or /us/.
	localeRootPattern = regexp.MustCompile(`(?i)^/[a-z]{2}/?$`)
)

// aiKeywords mark a result as AI-related when found anywhere in its
// case-folded title or snippet.
var aiKeywords = []string{"ai", "artificial intelligence", "machine learning", "deep learning", "neural network"}

// Heuristic picks the most likely homepage from ranked search results.
type Heuristic struct {
	excluded map[string]struct{}
}

// NewHeuristic builds a Heuristic that skips the given hosts. A nil slice
// uses DefaultExcludedHosts.
func NewHeuristic(excludedHosts []string) *Heuristic {
	if excludedHosts == nil {
		excludedHosts = DefaultExcludedHosts
	}
	h := &Heuristic{excluded: make(map[string]struct{}, len(excludedHosts))}
	for _, host := range excludedHosts {
		host = strings.ToLower(strings.TrimSpace(host))
		if host != "" {
			h.excluded[host] = struct{}{}
		}
	}
	return h
}

// Select returns the cleaned link of the best result for name, or "" when
// every result is excluded. The first result that looks like a homepage
// wins; otherwise the first non-excluded result is used.
func (h *Heuristic) Select(results []model.SearchResult, name string) string {
	for _, r := range results {
		if h.likelyHomepage(r, name) {
			return CleanURL(r.Link)
		}
	}
	for _, r := range results {
		if !h.Excluded(r.Link) {
			return CleanURL(r.Link)
		}
	}
	return ""
}

// Excluded reports whether link points at an excluded host. Unparsable
// links are treated as excluded; links without a host are not.
func (h *Heuristic) Excluded(link string) bool {
	u, err := url.Parse(strings.TrimSpace(link))
	if err != nil {
		return true
	}
	_, ok := h.excluded[strings.ToLower(u.Host)]
	return ok
}

func (h *Heuristic) likelyHomepage(r model.SearchResult, name string) bool {
	if h.Excluded(r.Link) {
		return false
	}
	u, err := url.Parse(strings.TrimSpace(r.Link))
	if err != nil {
		return false
	}

	host := fold(u.Host)
	for _, token := range nameTokens(name) {
		if strings.Contains(host, token) {
			return true
		}
	}

	if u.Path == "" || u.Path == "/" || localeRootPattern.MatchString(u.Path) {
		return true
	}

	if clean := fold(CleanName(name)); clean != "" && strings.Contains(fold(r.Title), clean) {
		return true
	}

	return mentionsAI(r.Title) || mentionsAI(r.Snippet)
}

func mentionsAI(text string) bool {
	text = fold(text)
	for _, kw := range aiKeywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

// CleanName strips a trailing legal suffix (Inc, Corp, Ltd, LLC) from name.
func CleanName(name string) string {
	return strings.TrimSpace(legalSuffixPattern.ReplaceAllString(strings.TrimSpace(name), ""))
}

// nameTokens splits the cleaned, case-folded name on whitespace and trims
// surrounding punctuation from each token.
func nameTokens(name string) []string {
	fields := strings.Fields(fold(CleanName(name)))
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.TrimFunc(f, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		})
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}

// fold case-folds s for caseless comparison. A Caser is stateful, so
// each call gets its own.
func fold(s string) string {
	return cases.Fold().String(s)
}

// CleanURL drops the query string, fragment and any trailing slash.
// It is idempotent.
func CleanURL(raw string) string {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil {
		raw, _, _ = strings.Cut(raw, "#")
		raw, _, _ = strings.Cut(raw, "?")
		return strings.TrimRight(raw, "/")
	}
	u.RawQuery = ""
	u.ForceQuery = false
	u.Fragment = ""
	u.RawFragment = ""
	return strings.TrimRight(u.String(), "/")
}
