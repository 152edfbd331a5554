package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/prospect-cli/internal/model"
)

func TestFormatCheckpoints(t *testing.T) {
	updated := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	records := []model.CheckpointRecord{
		{
			SubjectID:  "s-1",
			StepName:   "synthesis",
			Status:     model.StepCompleted,
			TokensUsed: 1200,
			DurationMs: 840,
			UpdatedAt:  updated,
		},
		{
			SubjectID: "s-1",
			StepName:  "fec_contributions",
			Status:    model.StepFailed,
			Error:     "fec: search contributions: 503",
			UpdatedAt: updated,
		},
	}

	var buf bytes.Buffer
	formatCheckpoints(&buf, records)
	out := buf.String()

	assert.Contains(t, out, "STEP")
	assert.Contains(t, out, "synthesis")
	assert.Contains(t, out, "840ms")
	assert.Contains(t, out, "fec: search contributions: 503")

	// Sorted by step name: fec_contributions before synthesis.
	assert.Less(t, strings.Index(out, "fec_contributions"), strings.Index(out, "synthesis"))
}

func TestFormatCheckpoints_TruncatesLongErrors(t *testing.T) {
	records := []model.CheckpointRecord{
		{
			StepName:  "web_research",
			Status:    model.StepFailed,
			Error:     strings.Repeat("x", 100),
			UpdatedAt: time.Now(),
		},
	}

	var buf bytes.Buffer
	formatCheckpoints(&buf, records)

	assert.Contains(t, buf.String(), strings.Repeat("x", 57)+"...")
	assert.NotContains(t, buf.String(), strings.Repeat("x", 61))
}
