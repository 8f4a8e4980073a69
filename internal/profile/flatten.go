package profile

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/sells-group/enrich-cli/internal/model"
)

// LocationColumn is derived from geo rather than read from the profile.
const LocationColumn = "Location"

// Attributes are the columns added by the profiles stage, in order.
// Dotted names walk nested mappings.
var Attributes = []string{
	model.ColumnDomain,
	"legalName",
	"tags",
	"description",
	"foundedYear",
	"category.subIndustry",
	"category.industry",
	"metrics.employees",
	"metrics.employeesRange",
	"metrics.estimatedAnnualRevenue",
	"metrics.raised",
	"linkedin.handle",
	"twitter.handle",
	"crunchbase.handle",
	"logo",
	LocationColumn,
}

// Field is one flattened profile attribute.
type Field struct {
	Name  string
	Value string
}

// Flatten renders p as one Field per entry in Attributes.
func Flatten(p model.Profile) []Field {
	out := make([]Field, len(Attributes))
	for i, attr := range Attributes {
		var v string
		if attr == LocationColumn {
			v = BuildLocation(p.Map("geo"))
		} else {
			v = formatValue(walk(p, attr))
		}
		out[i] = Field{Name: attr, Value: v}
	}
	return out
}

// walk follows a dotted path. A missing or non-mapping segment yields an
// empty mapping.
func walk(p model.Profile, path string) any {
	var cur any = map[string]any(p)
	for _, part := range strings.Split(path, ".") {
		m := model.AsMap(cur)
		v, ok := m[part]
		if !ok {
			return map[string]any{}
		}
		cur = v
	}
	return cur
}

func formatValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case []any:
		parts := make([]string, 0, len(t))
		for _, e := range t {
			if s := formatValue(e); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ", ")
	case []string:
		return strings.Join(t, ", ")
	}
	if m := model.AsMap(v); m != nil {
		if len(m) == 0 {
			return ""
		}
		b, err := json.Marshal(m)
		if err != nil {
			return fmt.Sprint(m)
		}
		return string(b)
	}
	return fmt.Sprint(v)
}

// BuildLocation joins the non-empty, distinct city, state and country
// with ", ". "Unknown" parts are dropped; with nothing left the result
// is "Unknown".
func BuildLocation(geo map[string]any) string {
	const unknown = "Unknown"
	parts := make([]string, 0, 3)
	for _, key := range []string{"city", "state", "country"} {
		s := strings.TrimSpace(formatValue(geo[key]))
		if s == "" || s == unknown {
			continue
		}
		dup := false
		for _, p := range parts {
			if p == s {
				dup = true
				break
			}
		}
		if !dup {
			parts = append(parts, s)
		}
	}
	if len(parts) == 0 {
		return unknown
	}
	return strings.Join(parts, ", ")
}

// ExtractDomain returns the host of a homepage URL without a leading
// "www.", or "" when the value is N/A or not a URL. Scheme-less values
// like "sierra.ai/about" are accepted.
func ExtractDomain(homepage string) string {
	homepage = strings.TrimSpace(homepage)
	if homepage == "" || strings.EqualFold(homepage, "N/A") {
		return ""
	}
	if !strings.Contains(homepage, "://") {
		homepage = "https://" + homepage
	}
	u, err := url.Parse(homepage)
	if err != nil {
		return ""
	}
	host := strings.ToLower(u.Hostname())
	if !strings.Contains(host, ".") {
		return ""
	}
	return strings.TrimPrefix(host, "www.")
}
