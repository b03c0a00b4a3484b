package selector

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"github.com/rotisserie/eris"
)

// Resolver resolves fields against a compiled table. It is safe for
// concurrent use.
type Resolver struct {
	fields map[string][]compiled
}

type compiled struct {
	Candidate
	classRe *regexp.Regexp
	matchRe *regexp.Regexp
}

// NewResolver validates and compiles a table. Every selector must parse and
// every pattern must compile.
func NewResolver(t Table) (*Resolver, error) {
	r := &Resolver{fields: make(map[string][]compiled, len(t))}
	for name, spec := range t {
		cs := make([]compiled, 0, len(spec.Candidates))
		for i, c := range spec.Candidates {
			cc, err := compile(c)
			if err != nil {
				return nil, eris.Wrapf(err, "selector: field %s candidate %d", name, i)
			}
			cs = append(cs, cc)
		}
		r.fields[name] = cs
	}
	return r, nil
}

// MustDefault returns a resolver over DefaultTable. It panics only if the
// built-in table is malformed.
func MustDefault() *Resolver {
	r, err := NewResolver(DefaultTable())
	if err != nil {
		panic(err)
	}
	return r
}

func compile(c Candidate) (compiled, error) {
	cc := compiled{Candidate: c}
	for _, sel := range []string{c.Container, c.Exclude, c.Sub} {
		if sel == "" {
			continue
		}
		if _, err := cascadia.Compile(sel); err != nil {
			return cc, eris.Wrapf(err, "selector: parse %q", sel)
		}
	}
	switch c.Mode {
	case "", ModeText, ModeParagraphs:
	default:
		return cc, eris.Errorf("selector: unknown mode %q", c.Mode)
	}

	var err error
	if c.ClassPattern != "" {
		if cc.classRe, err = regexp.Compile(c.ClassPattern); err != nil {
			return cc, eris.Wrapf(err, "selector: class pattern %q", c.ClassPattern)
		}
	}
	if c.Match != "" {
		if cc.matchRe, err = regexp.Compile(c.Match); err != nil {
			return cc, eris.Wrapf(err, "selector: match pattern %q", c.Match)
		}
	}
	return cc, nil
}

// Text resolves a single string value. Returns "" when no candidate yields a
// non-empty value.
func (r *Resolver) Text(root *goquery.Selection, field string) string {
	for _, c := range r.candidates(root, field) {
		values := c.values(root)
		if len(values) == 0 {
			continue
		}
		if c.Mode == ModeParagraphs {
			return strings.Join(values, " ")
		}
		return values[0]
	}
	return ""
}

// List resolves one value per matched element from the first candidate that
// yields any. Returns an empty, non-nil slice when nothing matches.
func (r *Resolver) List(root *goquery.Selection, field string) []string {
	for _, c := range r.candidates(root, field) {
		if values := c.values(root); len(values) > 0 {
			return values
		}
	}
	return []string{}
}

// Blocks returns the matched elements of the first candidate that matches
// anything, in document order.
func (r *Resolver) Blocks(root *goquery.Selection, field string) []*goquery.Selection {
	for _, c := range r.candidates(root, field) {
		els := c.elements(root)
		if els.Length() == 0 {
			continue
		}
		out := make([]*goquery.Selection, 0, els.Length())
		els.Each(func(_ int, s *goquery.Selection) {
			out = append(out, s)
		})
		return out
	}
	return nil
}

// Has reports whether the resolver knows the field.
func (r *Resolver) Has(field string) bool {
	_, ok := r.fields[field]
	return ok
}

func (r *Resolver) candidates(root *goquery.Selection, field string) []compiled {
	if root == nil || root.Length() == 0 {
		return nil
	}
	return r.fields[field]
}

func (c compiled) containers(root *goquery.Selection) *goquery.Selection {
	sel := root
	if c.Container != "" {
		sel = root.Find(c.Container)
	}
	if c.classRe != nil {
		sel = sel.FilterFunction(func(_ int, s *goquery.Selection) bool {
			class, _ := s.Attr("class")
			return c.classRe.MatchString(class)
		})
	}
	if c.Exclude != "" {
		sel = sel.FilterFunction(func(_ int, s *goquery.Selection) bool {
			return s.ParentsFiltered(c.Exclude).Length() == 0
		})
	}
	return sel
}

func (c compiled) elements(root *goquery.Selection) *goquery.Selection {
	containers := c.containers(root)
	if c.Sub == "" {
		return c.filterMatch(containers)
	}

	// Collect per container so First applies to each one, not the whole set.
	var out *goquery.Selection
	containers.Each(func(_ int, s *goquery.Selection) {
		var found *goquery.Selection
		if c.ChildOnly {
			found = s.ChildrenFiltered(c.Sub)
		} else {
			found = s.Find(c.Sub)
		}
		found = c.filterMatch(found)
		if c.First {
			found = found.First()
		}
		if out == nil {
			out = found
		} else {
			out = out.AddSelection(found)
		}
	})
	if out == nil {
		return containers.Slice(0, 0)
	}
	return out
}

func (c compiled) filterMatch(sel *goquery.Selection) *goquery.Selection {
	if c.matchRe == nil {
		return sel
	}
	return sel.FilterFunction(func(_ int, s *goquery.Selection) bool {
		return c.matchRe.MatchString(c.value(s))
	})
}

func (c compiled) value(s *goquery.Selection) string {
	if c.Attr != "" {
		v, _ := s.Attr(c.Attr)
		return strings.TrimSpace(v)
	}
	return NodeText(s)
}

func (c compiled) values(root *goquery.Selection) []string {
	var out []string
	c.elements(root).Each(func(_ int, s *goquery.Selection) {
		if v := c.value(s); v != "" {
			out = append(out, v)
		}
	})
	return out
}
