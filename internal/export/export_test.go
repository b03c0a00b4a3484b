package export

import (
	"bytes"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/roundtable-cli/internal/model"
)

func records() []model.EventRecord {
	e := model.EmptyEnrichedFields()
	e.SummaryOneSentence = "One sentence."
	e.Keywords = []string{"ethics", "memory"}
	e.PanelistCount = 2
	e.Institutions = []string{"NYU"}
	return []model.EventRecord{
		{
			ID: 1, Title: "On Memory", Date: "Saturday, May 5th", Time: "4:30 - 6:30PM",
			Description: "About memory, and forgetting.",
			Panelists: []model.Panelist{
				{Name: "Ada", Title: "Prof", Bio: "Bio A"},
				{Name: "Grace", Title: "Dr", Bio: "Bio G"},
			},
			Enriched: &e,
		},
		{ID: 2, Title: "Solo", Panelists: []model.Panelist{{Name: "Alan"}}},
	}
}

func TestFlatten_Columns(t *testing.T) {
	tbl := Flatten(records())

	assert.Equal(t, []string{
		"id", "title", "date", "time", "description",
		"panelist_name_1", "panelist_title_1", "panelist_description_1",
		"panelist_name_2", "panelist_title_2", "panelist_description_2",
		"description_one-sentence", "description_summary", "keywords", "panelist_ct", "institutions", "specialities",
	}, tbl.Header)
	require.Len(t, tbl.Rows, 2)
	for _, r := range tbl.Rows {
		assert.Len(t, r, len(tbl.Header))
	}

	assert.Equal(t, "Grace", tbl.Rows[0][8])
	assert.Equal(t, "ethics, memory", tbl.Rows[0][13])
	assert.Equal(t, "2", tbl.Rows[0][14])
	assert.Equal(t, "", tbl.Rows[0][16])
	assert.Equal(t, "", tbl.Rows[1][8], "short panel pads")
	assert.Equal(t, "", tbl.Rows[1][11], "unenriched record has blank enrichment columns")
}

func TestFlatten_NoEnrichmentColumns(t *testing.T) {
	tbl := Flatten([]model.EventRecord{{ID: 1, Title: "x"}})
	assert.Equal(t, []string{"id", "title", "date", "time", "description"}, tbl.Header)
	assert.Equal(t, [][]string{{"1", "x", "", "", ""}}, tbl.Rows)
}

func TestFormatFor(t *testing.T) {
	f, err := FormatFor("out/roundtables.CSV", "")
	require.NoError(t, err)
	assert.Equal(t, FormatCSV, f)

	f, err = FormatFor("out/roundtables.dat", "xlsx")
	require.NoError(t, err)
	assert.Equal(t, FormatXLSX, f)

	_, err = FormatFor("out/roundtables.json", "")
	assert.Error(t, err)
}

func TestWriteFile_CSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "roundtables.csv")
	require.NoError(t, WriteFile(path, "", records()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	rows, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "id", rows[0][0])
	assert.Equal(t, "About memory, and forgetting.", rows[1][4])
	assert.Equal(t, "Alan", rows[2][5])
}

func TestWriteFile_XLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "roundtables.xlsx")
	require.NoError(t, WriteFile(path, "", records()))

	f, err := xlsx.OpenFile(path)
	require.NoError(t, err)
	sheet, ok := f.Sheet[sheetName]
	require.True(t, ok)
	require.GreaterOrEqual(t, len(sheet.Rows), 3)
	assert.Equal(t, "panelist_name_1", sheet.Rows[0].Cells[5].String())
	assert.Equal(t, "On Memory", sheet.Rows[1].Cells[1].String())
	assert.Equal(t, "Alan", sheet.Rows[2].Cells[5].String())
}
