package ingest

import (
	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/prospect-cli/internal/model"
)

// ParseXLSX reads subjects from the first sheet of an XLSX workbook. The
// first row is the header.
func ParseXLSX(path string) ([]model.Subject, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "ingest: open xlsx")
	}
	if len(f.Sheets) == 0 {
		return nil, eris.New("ingest: xlsx has no sheets")
	}
	sheet := f.Sheets[0]
	if len(sheet.Rows) == 0 {
		return nil, eris.New("ingest: xlsx sheet is empty")
	}

	idx := columnIndex(rowToStrings(sheet.Rows[0]))
	var subjects []model.Subject
	for _, row := range sheet.Rows[1:] {
		subjects = append(subjects, subjectFromRow(idx, rowToStrings(row)))
	}
	return subjects, nil
}

func rowToStrings(row *xlsx.Row) []string {
	cells := make([]string, len(row.Cells))
	for i, cell := range row.Cells {
		cells[i] = cell.String()
	}
	return cells
}
