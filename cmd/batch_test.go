package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/prospect-cli/internal/model"
)

func TestProcessBatch_Empty(t *testing.T) {
	env := newTestEnv(t)
	err := processBatch(context.Background(), env, nil, 0, 2)
	assert.NoError(t, err)
}

func TestProcessBatch_RunsAllSubjects(t *testing.T) {
	env := newTestEnv(t)
	subjects := []model.Subject{
		{ID: "s-1", Name: "Jane Smith"},
		{ID: "s-2", Name: "Robert Jones"},
		{ID: "s-3", Name: "Maria Garcia"},
	}

	err := processBatch(context.Background(), env, subjects, 0, 2)
	require.NoError(t, err)

	// Every subject got checkpoints written, so the store knows them all.
	ids, err := env.Store.Subjects(context.Background())
	require.NoError(t, err)
	assert.Len(t, ids, 3)
}

func TestProcessBatch_AppliesLimit(t *testing.T) {
	env := newTestEnv(t)
	subjects := []model.Subject{
		{ID: "s-1", Name: "Jane Smith"},
		{ID: "s-2", Name: "Robert Jones"},
		{ID: "s-3", Name: "Maria Garcia"},
	}

	err := processBatch(context.Background(), env, subjects, 1, 2)
	require.NoError(t, err)

	ids, err := env.Store.Subjects(context.Background())
	require.NoError(t, err)
	assert.Len(t, ids, 1)
}

func TestProcessBatch_IsolatesFailures(t *testing.T) {
	env := newTestEnv(t)
	subjects := []model.Subject{
		{ID: "s-1", Name: ""}, // rejected by the researcher
		{ID: "s-2", Name: "Robert Jones"},
	}

	// The nameless subject fails but must not abort the batch.
	err := processBatch(context.Background(), env, subjects, 0, 1)
	require.NoError(t, err)

	ids, err := env.Store.Subjects(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"s-2"}, ids)
}
