// Package ingest loads prospect subject lists from CSV and XLSX files,
// locally or from an FTP drop.
package ingest

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/prospect-cli/internal/model"
)

// LoadSubjects reads a subject list from source: a local .csv or .xlsx
// path, or an ftp:// URL pointing at one. Rows without a name are dropped
// with a warning rather than failing the whole file.
func LoadSubjects(ctx context.Context, source string) ([]model.Subject, error) {
	path := source
	if strings.HasPrefix(source, "ftp://") {
		local, cleanup, err := downloadFTP(ctx, source)
		if err != nil {
			return nil, err
		}
		defer cleanup()
		path = local
	}

	var subjects []model.Subject
	var err error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		var f *os.File
		f, err = os.Open(path)
		if err != nil {
			return nil, eris.Wrap(err, "ingest: open csv")
		}
		defer f.Close()
		subjects, err = ParseCSV(f)
	case ".xlsx":
		subjects, err = ParseXLSX(path)
	default:
		return nil, eris.Errorf("ingest: unsupported file type %q (want .csv or .xlsx)", filepath.Ext(path))
	}
	if err != nil {
		return nil, err
	}

	kept := subjects[:0]
	for _, s := range subjects {
		if !s.Valid() {
			zap.L().Warn("ingest: dropping row without a name", zap.String("source", source))
			continue
		}
		kept = append(kept, s)
	}
	zap.L().Info("ingest: loaded subjects",
		zap.String("source", source),
		zap.Int("count", len(kept)))
	return kept, nil
}

// columnIndex maps known header names to Subject fields. Headers are matched
// case-insensitively with spaces and underscores ignored, so "Salesforce ID"
// and "salesforce_id" both work.
func columnIndex(header []string) map[string]int {
	idx := make(map[string]int, len(header))
	for i, col := range header {
		key := strings.ToLower(strings.TrimSpace(col))
		key = strings.ReplaceAll(key, " ", "")
		key = strings.ReplaceAll(key, "_", "")
		idx[key] = i
	}
	return idx
}

func subjectFromRow(idx map[string]int, row []string) model.Subject {
	get := func(keys ...string) string {
		for _, key := range keys {
			if i, ok := idx[key]; ok && i < len(row) {
				return strings.TrimSpace(row[i])
			}
		}
		return ""
	}
	return model.Subject{
		Name:         get("name", "fullname", "contactname"),
		City:         get("city"),
		State:        get("state"),
		Address:      get("address", "street", "streetaddress"),
		Employer:     get("employer", "company", "account"),
		Title:        get("title"),
		Email:        get("email"),
		SalesforceID: get("salesforceid", "sfid", "contactid"),
		Notes:        get("notes"),
	}
}

// drainClose copies nothing further and closes, for deferred reader cleanup.
func drainClose(rc io.ReadCloser) {
	if err := rc.Close(); err != nil {
		zap.L().Warn("ingest: close download", zap.Error(err))
	}
}
