// Package export flattens records into tabular form and writes CSV or XLSX.
package export

import (
	"strconv"
	"strings"

	"github.com/sells-group/roundtable-cli/internal/model"
)

// Table is a header row plus data rows of equal width.
type Table struct {
	Header []string
	Rows   [][]string
}

var baseColumns = []string{"id", "title", "date", "time", "description"}

// Flatten turns records into a Table. Nested panelist keys become
// panelist_<key>_<i> columns up to the largest panel in the corpus, and list
// values are joined with ", ". Enrichment columns appear only when at least
// one record is enriched.
func Flatten(records []model.EventRecord) Table {
	maxPanel := 0
	enriched := false
	for _, r := range records {
		maxPanel = max(maxPanel, len(r.Panelists))
		enriched = enriched || r.Enriched != nil
	}

	header := append([]string{}, baseColumns...)
	for i := 1; i <= maxPanel; i++ {
		idx := strconv.Itoa(i)
		header = append(header, "panelist_name_"+idx, "panelist_title_"+idx, "panelist_description_"+idx)
	}
	if enriched {
		header = append(header, model.EnrichmentKeys()...)
	}

	rows := make([][]string, 0, len(records))
	for _, r := range records {
		row := make([]string, 0, len(header))
		row = append(row, strconv.Itoa(r.ID), r.Title, r.Date, r.Time, r.Description)
		for i := 0; i < maxPanel; i++ {
			if i < len(r.Panelists) {
				p := r.Panelists[i]
				row = append(row, p.Name, p.Title, p.Bio)
			} else {
				row = append(row, "", "", "")
			}
		}
		if enriched {
			row = append(row, enrichedColumns(r.Enriched)...)
		}
		rows = append(rows, row)
	}
	return Table{Header: header, Rows: rows}
}

func enrichedColumns(e *model.EnrichedFields) []string {
	if e == nil {
		return make([]string, len(model.EnrichmentKeys()))
	}
	return []string{
		e.SummaryOneSentence,
		e.SummaryShort,
		strings.Join(e.Keywords, ", "),
		strconv.Itoa(e.PanelistCount),
		strings.Join(e.Institutions, ", "),
		strings.Join(e.Specialities, ", "),
	}
}
