package export

import (
	"bytes"
	"encoding/csv"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/roundtable-cli/internal/checkpoint"
	"github.com/sells-group/roundtable-cli/internal/model"
)

// Supported output formats.
const (
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
)

const sheetName = "roundtables"

// FormatFor picks a format from an explicit flag value or the path extension.
func FormatFor(path, format string) (string, error) {
	if format == "" {
		format = strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	}
	switch strings.ToLower(format) {
	case FormatCSV:
		return FormatCSV, nil
	case FormatXLSX:
		return FormatXLSX, nil
	default:
		return "", eris.Errorf("export: unsupported format %q", format)
	}
}

// WriteFile flattens records and atomically writes them to path.
func WriteFile(path, format string, records []model.EventRecord) error {
	f, err := FormatFor(path, format)
	if err != nil {
		return err
	}

	t := Flatten(records)
	var data []byte
	switch f {
	case FormatCSV:
		data, err = EncodeCSV(t)
	case FormatXLSX:
		data, err = EncodeXLSX(t)
	}
	if err != nil {
		return err
	}
	return eris.Wrap(checkpoint.WriteFile(path, data), "export: write")
}

// EncodeCSV renders the table as CSV with a header row.
func EncodeCSV(t Table) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(t.Header); err != nil {
		return nil, eris.Wrap(err, "export: csv header")
	}
	if err := w.WriteAll(t.Rows); err != nil {
		return nil, eris.Wrap(err, "export: csv rows")
	}
	return buf.Bytes(), nil
}

// EncodeXLSX renders the table as a single-sheet workbook.
func EncodeXLSX(t Table) ([]byte, error) {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet(sheetName)
	if err != nil {
		return nil, eris.Wrap(err, "xlsx: add sheet")
	}
	addRow(sheet, t.Header)
	for _, r := range t.Rows {
		addRow(sheet, r)
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, eris.Wrap(err, "xlsx: write")
	}
	return buf.Bytes(), nil
}

func addRow(sheet *xlsx.Sheet, cells []string) {
	row := sheet.AddRow()
	for _, c := range cells {
		row.AddCell().SetString(c)
	}
}
