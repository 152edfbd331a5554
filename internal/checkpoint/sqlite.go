package checkpoint

import (
	"context"
	"database/sql"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/prospect-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "checkpoint: sqlite open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "checkpoint: sqlite exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS step_checkpoints (
	subject_id  TEXT NOT NULL,
	step_name   TEXT NOT NULL,
	status      TEXT NOT NULL DEFAULT 'pending',
	result      BLOB,
	tokens_used INTEGER NOT NULL DEFAULT 0,
	duration_ms INTEGER,
	error       TEXT,
	created_at  DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at  DATETIME NOT NULL DEFAULT (datetime('now')),
	PRIMARY KEY (subject_id, step_name)
);

CREATE INDEX IF NOT EXISTS idx_step_checkpoints_subject ON step_checkpoints(subject_id);
CREATE INDEX IF NOT EXISTS idx_step_checkpoints_status ON step_checkpoints(status);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "checkpoint: sqlite migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// upsert writes the full record for (subjectID, stepName), overwriting any
// prior status. The single-statement upsert is what makes racing retries safe.
func (s *SQLiteStore) upsert(ctx context.Context, subjectID, stepName string, status model.StepStatus, result []byte, tokensUsed int, durationMs int64, errMsg string) error {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO step_checkpoints (subject_id, step_name, status, result, tokens_used, duration_ms, error, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (subject_id, step_name) DO UPDATE SET
			status = excluded.status,
			result = excluded.result,
			tokens_used = excluded.tokens_used,
			duration_ms = excluded.duration_ms,
			error = excluded.error,
			updated_at = excluded.updated_at`,
		subjectID, stepName, string(status), result, tokensUsed, durationMs, errMsg, now, now,
	)
	return eris.Wrapf(err, "checkpoint: sqlite upsert %s/%s", subjectID, stepName)
}

func (s *SQLiteStore) HasCompleted(ctx context.Context, subjectID, stepName string) (bool, error) {
	var status string
	err := s.db.QueryRowContext(ctx,
		`SELECT status FROM step_checkpoints WHERE subject_id = ? AND step_name = ?`,
		subjectID, stepName,
	).Scan(&status)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, eris.Wrap(err, "checkpoint: sqlite has completed")
	}
	return model.StepStatus(status) == model.StepCompleted, nil
}

func (s *SQLiteStore) GetResult(ctx context.Context, subjectID, stepName string) ([]byte, error) {
	var result []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT result FROM step_checkpoints WHERE subject_id = ? AND step_name = ? AND status = ?`,
		subjectID, stepName, string(model.StepCompleted),
	).Scan(&result)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "checkpoint: sqlite get result")
	}
	return result, nil
}

func (s *SQLiteStore) SaveResult(ctx context.Context, subjectID, stepName string, payload []byte, tokensUsed int, durationMs int64) error {
	return s.upsert(ctx, subjectID, stepName, model.StepCompleted, payload, tokensUsed, durationMs, "")
}

func (s *SQLiteStore) MarkProcessing(ctx context.Context, subjectID, stepName string) error {
	return s.upsert(ctx, subjectID, stepName, model.StepProcessing, nil, 0, 0, "")
}

func (s *SQLiteStore) MarkFailed(ctx context.Context, subjectID, stepName, errMsg string) error {
	return s.upsert(ctx, subjectID, stepName, model.StepFailed, nil, 0, 0, errMsg)
}

func (s *SQLiteStore) MarkSkipped(ctx context.Context, subjectID, stepName, reason string) error {
	return s.upsert(ctx, subjectID, stepName, model.StepSkipped, nil, 0, 0, reason)
}

func (s *SQLiteStore) GetAllCheckpoints(ctx context.Context, subjectID string) ([]model.CheckpointRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT subject_id, step_name, status, result, tokens_used, duration_ms, error, created_at, updated_at
		 FROM step_checkpoints WHERE subject_id = ? ORDER BY step_name`,
		subjectID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "checkpoint: sqlite get all")
	}
	defer rows.Close()

	var records []model.CheckpointRecord
	for rows.Next() {
		var r model.CheckpointRecord
		var status string
		var durationMs sql.NullInt64
		var errMsg sql.NullString
		if err := rows.Scan(&r.SubjectID, &r.StepName, &status, &r.Result, &r.TokensUsed, &durationMs, &errMsg, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "checkpoint: sqlite scan")
		}
		r.Status = model.StepStatus(status)
		r.DurationMs = durationMs.Int64
		r.Error = errMsg.String
		records = append(records, r)
	}
	return records, eris.Wrap(rows.Err(), "checkpoint: sqlite iterate")
}

func (s *SQLiteStore) ClearCheckpoints(ctx context.Context, subjectID string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM step_checkpoints WHERE subject_id = ?`, subjectID,
	)
	return eris.Wrapf(err, "checkpoint: sqlite clear %s", subjectID)
}

func (s *SQLiteStore) GetCompletionStatus(ctx context.Context, subjectID string) (*model.CompletionStatus, error) {
	records, err := s.GetAllCheckpoints(ctx, subjectID)
	if err != nil {
		return nil, err
	}
	return summarize(subjectID, records), nil
}

func (s *SQLiteStore) Subjects(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT subject_id FROM step_checkpoints ORDER BY subject_id`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "checkpoint: sqlite subjects")
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, eris.Wrap(err, "checkpoint: sqlite scan subject")
		}
		ids = append(ids, id)
	}
	return ids, eris.Wrap(rows.Err(), "checkpoint: sqlite subjects iterate")
}
