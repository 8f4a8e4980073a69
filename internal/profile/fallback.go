package profile

import (
	_ "embed"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/enrich-cli/internal/model"
)

//go:embed fallback.yaml
var defaultFallback []byte

// Table is an immutable domain → profile lookup consulted when the
// company-data API has no record.
type Table struct {
	entries map[string]model.Profile
}

type tableFile struct {
	Companies map[string]map[string]any `yaml:"companies"`
}

// NewTable builds a Table from entries. Entries are copied.
func NewTable(entries map[string]model.Profile) *Table {
	t := &Table{entries: make(map[string]model.Profile, len(entries))}
	for domain, p := range entries {
		t.entries[strings.ToLower(strings.TrimSpace(domain))] = p.Clone()
	}
	return t
}

// DefaultTable returns the built-in fallback table.
func DefaultTable() *Table {
	t, err := ParseTable(defaultFallback)
	if err != nil {
		panic(eris.Wrap(err, "profile: embedded fallback table"))
	}
	return t
}

// LoadTable reads a fallback table from YAML. An empty path returns the
// built-in table.
func LoadTable(path string) (*Table, error) {
	if path == "" {
		return DefaultTable(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "profile: read fallback table %s", path)
	}
	return ParseTable(data)
}

// ParseTable decodes "companies: {domain: profile}" YAML.
func ParseTable(data []byte) (*Table, error) {
	var f tableFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, eris.Wrap(err, "profile: parse fallback table")
	}
	entries := make(map[string]model.Profile, len(f.Companies))
	for domain, p := range f.Companies {
		if strings.TrimSpace(domain) == "" {
			return nil, eris.New("profile: fallback table has an empty domain")
		}
		entries[domain] = model.Profile(p)
	}
	return NewTable(entries), nil
}

// Lookup returns a copy of the profile for an exact domain.
func (t *Table) Lookup(domain string) (model.Profile, bool) {
	if t == nil {
		return nil, false
	}
	p, ok := t.entries[strings.ToLower(domain)]
	if !ok {
		return nil, false
	}
	return p.Clone(), true
}

// Len returns the number of entries.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.entries)
}
