// Package checkpoint persists per-step outcomes so a subject's research run
// can resume after a crash or partial failure without redoing completed work.
package checkpoint

import (
	"context"
	"encoding/json"

	"github.com/rotisserie/eris"

	"github.com/sells-group/prospect-cli/internal/model"
)

// Store is the durable record of step outcomes keyed by (subjectID, stepName).
// All writes are idempotent overwrites: racing retries may rewrite the same
// key and last write wins. Readers must never observe a partial write.
type Store interface {
	// HasCompleted reports whether the step's latest status is completed.
	HasCompleted(ctx context.Context, subjectID, stepName string) (bool, error)

	// GetResult returns the persisted result payload for a completed step,
	// or nil when the step has no completed checkpoint.
	GetResult(ctx context.Context, subjectID, stepName string) ([]byte, error)

	// SaveResult marks the step completed with its payload and metadata.
	SaveResult(ctx context.Context, subjectID, stepName string, payload []byte, tokensUsed int, durationMs int64) error

	// MarkProcessing records that the step has started an attempt.
	MarkProcessing(ctx context.Context, subjectID, stepName string) error

	// MarkFailed records a terminal failure with its error message.
	MarkFailed(ctx context.Context, subjectID, stepName, errMsg string) error

	// MarkSkipped records that the step was skipped, with a reason.
	MarkSkipped(ctx context.Context, subjectID, stepName, reason string) error

	// GetAllCheckpoints returns every checkpoint record for a subject.
	GetAllCheckpoints(ctx context.Context, subjectID string) ([]model.CheckpointRecord, error)

	// ClearCheckpoints deletes all records for a subject. This is the only
	// deletion path (explicit subject reset).
	ClearCheckpoints(ctx context.Context, subjectID string) error

	// GetCompletionStatus summarizes the subject's progress.
	GetCompletionStatus(ctx context.Context, subjectID string) (*model.CompletionStatus, error)

	// Subjects lists subject IDs with at least one checkpoint.
	Subjects(ctx context.Context) ([]string, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// GetResultAs decodes a completed step's payload into T. Returns (zero,
// false, nil) when no completed checkpoint exists.
func GetResultAs[T any](ctx context.Context, s Store, subjectID, stepName string) (T, bool, error) {
	var out T
	raw, err := s.GetResult(ctx, subjectID, stepName)
	if err != nil {
		return out, false, err
	}
	if raw == nil {
		return out, false, nil
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, false, eris.Wrapf(err, "checkpoint: decode result %s/%s", subjectID, stepName)
	}
	return out, true, nil
}

func summarize(subjectID string, records []model.CheckpointRecord) *model.CompletionStatus {
	cs := &model.CompletionStatus{
		SubjectID: subjectID,
		Steps:     make(map[string]model.StepStatus, len(records)),
	}
	for _, r := range records {
		cs.Total++
		cs.Steps[r.StepName] = r.Status
		switch r.Status {
		case model.StepCompleted:
			cs.Completed++
		case model.StepFailed:
			cs.Failed++
		case model.StepSkipped:
			cs.Skipped++
		default:
			cs.Pending++
		}
	}
	return cs
}
