package model

import "time"

// ResearchResult is the final output of executing the pipeline for a subject.
type ResearchResult struct {
	RunID          string              `json:"run_id"`
	Subject        Subject             `json:"subject"`
	Success        bool                `json:"success"`
	Profile        *MergedProfile      `json:"profile,omitempty"`
	Verification   *VerificationReport `json:"verification,omitempty"`
	CompletedSteps []string            `json:"completed_steps"`
	FailedSteps    []string            `json:"failed_steps"`
	SkippedSteps   []string            `json:"skipped_steps"`
	TotalTokens    int                 `json:"total_tokens"`
	Report         string              `json:"report,omitempty"`
	StartedAt      time.Time           `json:"started_at"`
	Duration       time.Duration       `json:"duration"`
}
