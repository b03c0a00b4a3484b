// Package selector resolves logical fields from HTML documents through an
// ordered table of candidate structural patterns. The first candidate that
// yields a value wins; a field with no match resolves to its empty default.
package selector

// Mode controls how matched elements become a text value.
type Mode string

const (
	// ModeText takes the first non-empty element text.
	ModeText Mode = "text"
	// ModeParagraphs joins every non-empty element text with single spaces.
	ModeParagraphs Mode = "paragraphs"
)

// Candidate is one structural pattern for a field.
type Candidate struct {
	// Container is a CSS selector evaluated under the resolution root. Empty
	// means the root itself.
	Container string `yaml:"container,omitempty"`
	// ClassPattern is a regular expression the container's class attribute
	// must match.
	ClassPattern string `yaml:"class_pattern,omitempty"`
	// Exclude drops containers that have an ancestor matching this selector.
	Exclude string `yaml:"exclude,omitempty"`
	// Sub selects elements inside each container. Empty means the container.
	Sub string `yaml:"sub,omitempty"`
	// ChildOnly restricts Sub to direct children of the container.
	ChildOnly bool `yaml:"child_only,omitempty"`
	// First keeps only the first Sub match per container.
	First bool `yaml:"first,omitempty"`
	// Attr reads this attribute instead of the element text.
	Attr string `yaml:"attr,omitempty"`
	Mode Mode   `yaml:"mode,omitempty"`
	// Match is a regular expression an element's value must match.
	Match string `yaml:"match,omitempty"`
}

// FieldSpec is a named, ordered list of candidates.
type FieldSpec struct {
	Name       string
	Candidates []Candidate
}

// Table maps field names to their specs.
type Table map[string]FieldSpec

// Field names used by the extractor.
const (
	FieldTitle         = "title"
	FieldDateTime      = "datetime"
	FieldDescription   = "description"
	FieldPanelists     = "panelists"
	FieldPanelistName  = "panelist_name"
	FieldPanelistTitle = "panelist_title"
	FieldPanelistBio   = "panelist_bio"
	FieldReadMore      = "read_more"
	FieldListingLinks  = "listing_links"
	FieldBioPage       = "bio_page"
)

const (
	meridiemPattern        = `(?i)\d\s*[ap]\.?m\.?`
	participantPattern     = `participant`
	participantPagePattern = `participant|post-\d+`
)

// DefaultTable returns the candidates for every known template variant of the
// roundtable pages, newest layout first.
func DefaultTable() Table {
	t := Table{}
	add := func(name string, candidates ...Candidate) {
		t[name] = FieldSpec{Name: name, Candidates: candidates}
	}

	add(FieldTitle,
		Candidate{Container: "h1.entry-title"},
		Candidate{Container: "h1.page-title"},
		Candidate{Container: "article h1"},
	)
	add(FieldDateTime,
		Candidate{Container: "article.roundtable header.entry-header", Sub: "p", ChildOnly: true, First: true},
		Candidate{Container: "header.entry-header .col-md-9", Sub: "p", ChildOnly: true, Match: meridiemPattern},
		Candidate{Container: "h3.event-date"},
		Candidate{Container: "div.event-date-time"},
	)
	add(FieldDescription,
		Candidate{Container: "div.entry-content", Exclude: ".roundtable-participants", Sub: "p", ChildOnly: true, Mode: ModeParagraphs},
		Candidate{Container: "div.event-description"},
	)
	add(FieldPanelists,
		Candidate{Container: "div.roundtable-participants article", ClassPattern: participantPattern},
		Candidate{Container: "div.event-speakers div.speaker"},
		Candidate{Container: "div.su-accordion"},
	)
	add(FieldPanelistName,
		Candidate{Container: "h2.entry-title"},
		Candidate{Container: "h3.speaker-name"},
		Candidate{Container: "strong"},
	)
	add(FieldPanelistTitle,
		Candidate{Container: "header.entry-header", Sub: "p"},
		Candidate{Container: "div.speaker-title"},
		Candidate{Container: "em"},
	)
	add(FieldPanelistBio,
		Candidate{Container: "div.entry-content", Sub: "p", ChildOnly: true, Mode: ModeParagraphs},
		Candidate{Container: "div.speaker-bio"},
	)
	add(FieldReadMore,
		Candidate{Container: "div.entry-content a.read-more", Attr: "href"},
		Candidate{Container: "a.read-more", Attr: "href"},
		Candidate{Container: "a.more-link", Attr: "href"},
	)
	add(FieldListingLinks,
		Candidate{Container: "article.roundtable", Sub: "a", First: true, Attr: "href"},
		Candidate{Container: "div.roundtable", Sub: "a", First: true, Attr: "href"},
		Candidate{Container: ".entry-content .su-spoiler-content > ul > li", Sub: "a", ChildOnly: true, First: true, Attr: "href"},
	)
	add(FieldBioPage,
		Candidate{Container: "article", ClassPattern: participantPagePattern, Sub: "div.entry-content p", Mode: ModeParagraphs},
	)
	return t
}
