package selector

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// LoadTable reads a YAML overlay and applies it on top of base. Each field in
// the file replaces the base candidates for that field:
//
//	title:
//	  - container: h1.entry-title
//	  - container: header h1
//	datetime:
//	  - container: div.when
//	    match: '(?i)\d\s*[ap]m'
func LoadTable(path string, base Table) (Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "selector: read %s", path)
	}
	return ParseTable(data, base)
}

// ParseTable applies a YAML overlay held in memory.
func ParseTable(data []byte, base Table) (Table, error) {
	var overlay map[string][]Candidate
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return nil, eris.Wrap(err, "selector: decode table")
	}

	out := make(Table, len(base)+len(overlay))
	for name, spec := range base {
		out[name] = spec
	}
	for name, candidates := range overlay {
		if len(candidates) == 0 {
			return nil, eris.Errorf("selector: field %s has no candidates", name)
		}
		out[name] = FieldSpec{Name: name, Candidates: candidates}
	}

	if _, err := NewResolver(out); err != nil {
		return nil, err
	}
	return out, nil
}

// Load returns a resolver for the default table with an optional overlay.
func Load(path string) (*Resolver, error) {
	t := DefaultTable()
	if path != "" {
		var err error
		if t, err = LoadTable(path, t); err != nil {
			return nil, err
		}
	}
	return NewResolver(t)
}
