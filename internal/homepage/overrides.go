package homepage

import (
	_ "embed"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

//go:embed overrides.yaml
var defaultOverrides []byte

// Overrides maps company names to fixed homepages that bypass search.
// Names match case-insensitively. An Overrides is immutable.
type Overrides struct {
	urls map[string]string
}

type overridesFile struct {
	Overrides map[string]string `yaml:"overrides"`
}

// DefaultOverrides returns the built-in override table.
func DefaultOverrides() *Overrides {
	o, err := ParseOverrides(defaultOverrides)
	if err != nil {
		panic(eris.Wrap(err, "homepage: embedded overrides"))
	}
	return o
}

// LoadOverrides reads an override table from a YAML file. An empty path
// returns the built-in table.
func LoadOverrides(path string) (*Overrides, error) {
	if path == "" {
		return DefaultOverrides(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "homepage: read overrides %s", path)
	}
	return ParseOverrides(data)
}

// ParseOverrides decodes an override table of the form
// "overrides: {name: url}".
func ParseOverrides(data []byte) (*Overrides, error) {
	var f overridesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, eris.Wrap(err, "homepage: parse overrides")
	}
	o := &Overrides{urls: make(map[string]string, len(f.Overrides))}
	for name, u := range f.Overrides {
		key := overrideKey(name)
		u = strings.TrimSpace(u)
		if key == "" || u == "" {
			return nil, eris.Errorf("homepage: override %q has an empty name or url", name)
		}
		o.urls[key] = u
	}
	return o, nil
}

// Lookup returns the fixed homepage for name, if any.
func (o *Overrides) Lookup(name string) (string, bool) {
	if o == nil {
		return "", false
	}
	u, ok := o.urls[overrideKey(name)]
	return u, ok
}

// Len returns the number of overrides.
func (o *Overrides) Len() int {
	if o == nil {
		return 0
	}
	return len(o.urls)
}

func overrideKey(name string) string {
	return fold(strings.TrimSpace(name))
}
