package model

import "time"

// StepStatus is the lifecycle state of a pipeline step for one subject.
type StepStatus string

const (
	StepPending    StepStatus = "pending"
	StepProcessing StepStatus = "processing"
	StepCompleted  StepStatus = "completed"
	StepFailed     StepStatus = "failed"
	StepSkipped    StepStatus = "skipped"
)

// Terminal reports whether the status is a final outcome.
func (s StepStatus) Terminal() bool {
	switch s {
	case StepCompleted, StepFailed, StepSkipped:
		return true
	default:
		return false
	}
}

// StepResult is the outcome of executing a single step for a subject.
// Data holds the step's partial profile keyed by field path segments;
// it is what the triangulation engine flattens and merges.
type StepResult struct {
	Status     StepStatus     `json:"status"`
	Data       map[string]any `json:"data,omitempty"`
	Sources    []SourceRef    `json:"sources,omitempty"`
	TokensUsed int            `json:"tokens_used,omitempty"`
	Error      string         `json:"error,omitempty"`
	SkipReason string         `json:"skip_reason,omitempty"`
}

// SourceRef identifies where an observation came from. URL is empty for
// named API sources (e.g. "fec", "sec_edgar").
type SourceRef struct {
	Name string `json:"name"`
	URL  string `json:"url,omitempty"`
}

// Key returns the deduplication key for a source reference.
func (r SourceRef) Key() string {
	if r.URL != "" {
		return r.URL
	}
	return r.Name
}

// CheckpointRecord is the durable record of one step outcome for one subject.
// Writes are idempotent overwrites keyed by (SubjectID, StepName).
type CheckpointRecord struct {
	SubjectID  string     `json:"subject_id"`
	StepName   string     `json:"step_name"`
	Status     StepStatus `json:"status"`
	Result     []byte     `json:"result,omitempty"`
	TokensUsed int        `json:"tokens_used"`
	DurationMs int64      `json:"duration_ms,omitempty"`
	Error      string     `json:"error,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// CompletionStatus summarizes checkpoint progress for one subject.
type CompletionStatus struct {
	SubjectID string                `json:"subject_id"`
	Total     int                   `json:"total"`
	Completed int                   `json:"completed"`
	Failed    int                   `json:"failed"`
	Skipped   int                   `json:"skipped"`
	Pending   int                   `json:"pending"`
	Steps     map[string]StepStatus `json:"steps"`
}
