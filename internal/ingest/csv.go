package ingest

import (
	"encoding/csv"
	"io"

	"github.com/rotisserie/eris"

	"github.com/sells-group/prospect-cli/internal/model"
)

// ParseCSV reads subjects from CSV with a header row. Column order is free;
// unknown columns are ignored.
func ParseCSV(r io.Reader) ([]model.Subject, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, eris.New("ingest: empty csv")
	}
	if err != nil {
		return nil, eris.Wrap(err, "ingest: read csv header")
	}
	idx := columnIndex(header)
	if _, ok := idx["name"]; !ok {
		if _, ok := idx["fullname"]; !ok {
			return nil, eris.New("ingest: csv has no name column")
		}
	}

	var subjects []model.Subject
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrap(err, "ingest: read csv row")
		}
		subjects = append(subjects, subjectFromRow(idx, row))
	}
	return subjects, nil
}
