package checkpoint

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/prospect-cli/internal/model"
)

// PgxPool abstracts the pgx pool operations used by PostgresStore so tests
// can substitute pgxmock.
type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// PostgresStore implements Store on a pgx connection pool.
type PostgresStore struct {
	pool PgxPool
}

// NewPostgres connects to the given database URL.
func NewPostgres(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, eris.Wrap(err, "checkpoint: postgres connect")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "checkpoint: postgres ping")
	}
	return &PostgresStore{pool: pool}, nil
}

// NewPostgresFromPool wraps an existing pool (or a pgxmock pool in tests).
func NewPostgresFromPool(pool PgxPool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS step_checkpoints (
	subject_id  TEXT NOT NULL,
	step_name   TEXT NOT NULL,
	status      TEXT NOT NULL DEFAULT 'pending',
	result      BYTEA,
	tokens_used INTEGER NOT NULL DEFAULT 0,
	duration_ms BIGINT,
	error       TEXT,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (subject_id, step_name)
);

CREATE INDEX IF NOT EXISTS idx_step_checkpoints_status ON step_checkpoints(status);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "checkpoint: postgres migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) upsert(ctx context.Context, subjectID, stepName string, status model.StepStatus, result []byte, tokensUsed int, durationMs int64, errMsg string) error {
	now := time.Now().UTC()
	_, err := s.pool.Exec(ctx,
		`INSERT INTO step_checkpoints (subject_id, step_name, status, result, tokens_used, duration_ms, error, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
		 ON CONFLICT (subject_id, step_name) DO UPDATE SET
			status = EXCLUDED.status,
			result = EXCLUDED.result,
			tokens_used = EXCLUDED.tokens_used,
			duration_ms = EXCLUDED.duration_ms,
			error = EXCLUDED.error,
			updated_at = EXCLUDED.updated_at`,
		subjectID, stepName, string(status), result, tokensUsed, durationMs, errMsg, now,
	)
	return eris.Wrapf(err, "checkpoint: postgres upsert %s/%s", subjectID, stepName)
}

func (s *PostgresStore) HasCompleted(ctx context.Context, subjectID, stepName string) (bool, error) {
	var status string
	err := s.pool.QueryRow(ctx,
		`SELECT status FROM step_checkpoints WHERE subject_id = $1 AND step_name = $2`,
		subjectID, stepName,
	).Scan(&status)
	if err == pgx.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, eris.Wrap(err, "checkpoint: postgres has completed")
	}
	return model.StepStatus(status) == model.StepCompleted, nil
}

func (s *PostgresStore) GetResult(ctx context.Context, subjectID, stepName string) ([]byte, error) {
	var result []byte
	err := s.pool.QueryRow(ctx,
		`SELECT result FROM step_checkpoints WHERE subject_id = $1 AND step_name = $2 AND status = $3`,
		subjectID, stepName, string(model.StepCompleted),
	).Scan(&result)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "checkpoint: postgres get result")
	}
	return result, nil
}

func (s *PostgresStore) SaveResult(ctx context.Context, subjectID, stepName string, payload []byte, tokensUsed int, durationMs int64) error {
	return s.upsert(ctx, subjectID, stepName, model.StepCompleted, payload, tokensUsed, durationMs, "")
}

func (s *PostgresStore) MarkProcessing(ctx context.Context, subjectID, stepName string) error {
	return s.upsert(ctx, subjectID, stepName, model.StepProcessing, nil, 0, 0, "")
}

func (s *PostgresStore) MarkFailed(ctx context.Context, subjectID, stepName, errMsg string) error {
	return s.upsert(ctx, subjectID, stepName, model.StepFailed, nil, 0, 0, errMsg)
}

func (s *PostgresStore) MarkSkipped(ctx context.Context, subjectID, stepName, reason string) error {
	return s.upsert(ctx, subjectID, stepName, model.StepSkipped, nil, 0, 0, reason)
}

func (s *PostgresStore) GetAllCheckpoints(ctx context.Context, subjectID string) ([]model.CheckpointRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT subject_id, step_name, status, result, tokens_used, duration_ms, error, created_at, updated_at
		 FROM step_checkpoints WHERE subject_id = $1 ORDER BY step_name`,
		subjectID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "checkpoint: postgres get all")
	}
	defer rows.Close()

	var records []model.CheckpointRecord
	for rows.Next() {
		var r model.CheckpointRecord
		var status string
		var durationMs *int64
		var errMsg *string
		if err := rows.Scan(&r.SubjectID, &r.StepName, &status, &r.Result, &r.TokensUsed, &durationMs, &errMsg, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "checkpoint: postgres scan")
		}
		r.Status = model.StepStatus(status)
		if durationMs != nil {
			r.DurationMs = *durationMs
		}
		if errMsg != nil {
			r.Error = *errMsg
		}
		records = append(records, r)
	}
	return records, eris.Wrap(rows.Err(), "checkpoint: postgres iterate")
}

func (s *PostgresStore) ClearCheckpoints(ctx context.Context, subjectID string) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM step_checkpoints WHERE subject_id = $1`, subjectID,
	)
	return eris.Wrapf(err, "checkpoint: postgres clear %s", subjectID)
}

func (s *PostgresStore) GetCompletionStatus(ctx context.Context, subjectID string) (*model.CompletionStatus, error) {
	records, err := s.GetAllCheckpoints(ctx, subjectID)
	if err != nil {
		return nil, err
	}
	return summarize(subjectID, records), nil
}

func (s *PostgresStore) Subjects(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT DISTINCT subject_id FROM step_checkpoints ORDER BY subject_id`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "checkpoint: postgres subjects")
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, eris.Wrap(err, "checkpoint: postgres scan subject")
		}
		ids = append(ids, id)
	}
	return ids, eris.Wrap(rows.Err(), "checkpoint: postgres subjects iterate")
}
