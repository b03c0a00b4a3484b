package model

import (
	"bytes"
	"encoding/json"
	"regexp"
	"strconv"

	"github.com/rotisserie/eris"
)

// Panelist is one speaker block on an event detail page.
type Panelist struct {
	Name  string
	Title string
	// Bio is the full biography when the dedicated participant page resolved,
	// otherwise exactly the inline short bio.
	Bio string
}

// EventRecord is one extracted event. Panelists are kept in page order.
type EventRecord struct {
	ID          int
	Title       string
	Date        string
	Time        string
	Description string
	Panelists   []Panelist

	// Enriched is nil until the enrichment stage has processed the record.
	Enriched *EnrichedFields
}

// PanelistCount is the authoritative panelist count for the record.
func (r EventRecord) PanelistCount() int {
	return len(r.Panelists)
}

// Wire keys for the enrichment fields merged into a record object.
const (
	KeySummaryOneSentence = "description_one-sentence"
	KeySummaryShort       = "description_summary"
	KeyKeywords           = "keywords"
	KeyPanelistCount      = "panelist_ct"
	KeyInstitutions       = "institutions"
	KeySpecialities       = "specialities"
)

// EnrichmentKeys lists the six enrichment keys in wire order.
func EnrichmentKeys() []string {
	return []string{
		KeySummaryOneSentence,
		KeySummaryShort,
		KeyKeywords,
		KeyPanelistCount,
		KeyInstitutions,
		KeySpecialities,
	}
}

// MarshalJSON writes the flattened wire shape with keys in a stable order:
// base fields, the indexed panelist object, then enrichment keys if present.
func (r EventRecord) MarshalJSON() ([]byte, error) {
	w := newObjectWriter()
	w.field("id", r.ID)
	w.field("title", r.Title)
	w.field("date", r.Date)
	w.field("time", r.Time)
	w.field("description", r.Description)
	w.field("panelist", panelistObject(r.Panelists))

	if e := r.Enriched; e != nil {
		w.field(KeySummaryOneSentence, e.SummaryOneSentence)
		w.field(KeySummaryShort, e.SummaryShort)
		w.field(KeyKeywords, nonNil(e.Keywords))
		w.field(KeyPanelistCount, e.PanelistCount)
		w.field(KeyInstitutions, nonNil(e.Institutions))
		w.field(KeySpecialities, nonNil(e.Specialities))
	}
	return w.close()
}

// UnmarshalJSON reads the flattened wire shape. Any enrichment key present
// produces a non-nil Enriched.
func (r *EventRecord) UnmarshalJSON(data []byte) error {
	var aux struct {
		ID          int               `json:"id"`
		Title       string            `json:"title"`
		Date        string            `json:"date"`
		Time        string            `json:"time"`
		Description string            `json:"description"`
		Panelist    map[string]string `json:"panelist"`

		SummaryOneSentence *string   `json:"description_one-sentence"`
		SummaryShort       *string   `json:"description_summary"`
		Keywords           *[]string `json:"keywords"`
		PanelistCount      *int      `json:"panelist_ct"`
		Institutions       *[]string `json:"institutions"`
		Specialities       *[]string `json:"specialities"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return eris.Wrap(err, "model: decode event record")
	}

	*r = EventRecord{
		ID:          aux.ID,
		Title:       aux.Title,
		Date:        aux.Date,
		Time:        aux.Time,
		Description: aux.Description,
	}
	panelists, err := decodePanelists(aux.Panelist)
	if err != nil {
		return err
	}
	r.Panelists = panelists

	if aux.SummaryOneSentence == nil && aux.SummaryShort == nil && aux.Keywords == nil &&
		aux.PanelistCount == nil && aux.Institutions == nil && aux.Specialities == nil {
		return nil
	}

	e := EmptyEnrichedFields()
	if aux.SummaryOneSentence != nil {
		e.SummaryOneSentence = *aux.SummaryOneSentence
	}
	if aux.SummaryShort != nil {
		e.SummaryShort = *aux.SummaryShort
	}
	if aux.Keywords != nil {
		e.Keywords = nonNil(*aux.Keywords)
	}
	if aux.PanelistCount != nil {
		e.PanelistCount = *aux.PanelistCount
	}
	if aux.Institutions != nil {
		e.Institutions = nonNil(*aux.Institutions)
	}
	if aux.Specialities != nil {
		e.Specialities = nonNil(*aux.Specialities)
	}
	r.Enriched = &e
	return nil
}

// FlattenPanelists returns the indexed name_i/title_i/description_i pairs in
// index order. Used for prompts and tabular export.
func FlattenPanelists(panelists []Panelist) [][2]string {
	out := make([][2]string, 0, len(panelists)*3)
	for i, p := range panelists {
		idx := strconv.Itoa(i + 1)
		out = append(out,
			[2]string{"name_" + idx, p.Name},
			[2]string{"title_" + idx, p.Title},
			[2]string{"description_" + idx, p.Bio},
		)
	}
	return out
}

type panelistObject []Panelist

func (p panelistObject) MarshalJSON() ([]byte, error) {
	w := newObjectWriter()
	for _, kv := range FlattenPanelists(p) {
		w.field(kv[0], kv[1])
	}
	return w.close()
}

var panelistKeyRe = regexp.MustCompile(`^(name|title|description)_(\d+)$`)

// decodePanelists rebuilds the list from indexed keys. Every index needs at
// least one key of its own, so the highest index may not exceed the number of
// panelist keys.
func decodePanelists(m map[string]string) ([]Panelist, error) {
	n, keys := 0, 0
	for k := range m {
		sm := panelistKeyRe.FindStringSubmatch(k)
		if sm == nil {
			continue
		}
		keys++
		idx, err := strconv.Atoi(sm[2])
		if err != nil {
			return nil, eris.Errorf("model: panelist key %q: index out of range", k)
		}
		n = max(n, idx)
	}
	if n > keys {
		return nil, eris.Errorf("model: panelist index %d exceeds the %d panelist keys present", n, keys)
	}

	out := make([]Panelist, n)
	for k, v := range m {
		sm := panelistKeyRe.FindStringSubmatch(k)
		if sm == nil {
			continue
		}
		idx, err := strconv.Atoi(sm[2])
		if err != nil || idx < 1 {
			continue
		}
		switch sm[1] {
		case "name":
			out[idx-1].Name = v
		case "title":
			out[idx-1].Title = v
		case "description":
			out[idx-1].Bio = v
		}
	}
	return out, nil
}

// objectWriter builds a JSON object with caller-controlled key order and
// without HTML escaping.
type objectWriter struct {
	buf   bytes.Buffer
	first bool
	err   error
}

func newObjectWriter() *objectWriter {
	w := &objectWriter{first: true}
	w.buf.WriteByte('{')
	return w
}

func (w *objectWriter) field(key string, v any) {
	if w.err != nil {
		return
	}
	k, err := marshalNoEscape(key)
	if err != nil {
		w.err = err
		return
	}
	val, err := marshalNoEscape(v)
	if err != nil {
		w.err = err
		return
	}
	if !w.first {
		w.buf.WriteByte(',')
	}
	w.first = false
	w.buf.Write(k)
	w.buf.WriteByte(':')
	w.buf.Write(val)
}

func (w *objectWriter) close() ([]byte, error) {
	if w.err != nil {
		return nil, eris.Wrap(w.err, "model: encode event record")
	}
	w.buf.WriteByte('}')
	return w.buf.Bytes(), nil
}

func marshalNoEscape(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
