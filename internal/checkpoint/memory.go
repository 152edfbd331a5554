package checkpoint

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/sells-group/prospect-cli/internal/model"
)

// MemoryStore is an in-memory Store for tests and ephemeral runs.
// Same-key writes are serialized by the mutex; last write wins.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]map[string]model.CheckpointRecord // subjectID -> stepName -> record
}

// NewMemory creates an empty in-memory store.
func NewMemory() *MemoryStore {
	return &MemoryStore{records: make(map[string]map[string]model.CheckpointRecord)}
}

func (m *MemoryStore) upsert(subjectID, stepName string, status model.StepStatus, result []byte, tokensUsed int, durationMs int64, errMsg string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	steps, ok := m.records[subjectID]
	if !ok {
		steps = make(map[string]model.CheckpointRecord)
		m.records[subjectID] = steps
	}

	now := time.Now().UTC()
	createdAt := now
	if prev, ok := steps[stepName]; ok {
		createdAt = prev.CreatedAt
	}
	steps[stepName] = model.CheckpointRecord{
		SubjectID:  subjectID,
		StepName:   stepName,
		Status:     status,
		Result:     result,
		TokensUsed: tokensUsed,
		DurationMs: durationMs,
		Error:      errMsg,
		CreatedAt:  createdAt,
		UpdatedAt:  now,
	}
}

func (m *MemoryStore) HasCompleted(_ context.Context, subjectID, stepName string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.records[subjectID][stepName]
	return ok && r.Status == model.StepCompleted, nil
}

func (m *MemoryStore) GetResult(_ context.Context, subjectID, stepName string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.records[subjectID][stepName]
	if !ok || r.Status != model.StepCompleted {
		return nil, nil
	}
	return r.Result, nil
}

func (m *MemoryStore) SaveResult(_ context.Context, subjectID, stepName string, payload []byte, tokensUsed int, durationMs int64) error {
	m.upsert(subjectID, stepName, model.StepCompleted, payload, tokensUsed, durationMs, "")
	return nil
}

func (m *MemoryStore) MarkProcessing(_ context.Context, subjectID, stepName string) error {
	m.upsert(subjectID, stepName, model.StepProcessing, nil, 0, 0, "")
	return nil
}

func (m *MemoryStore) MarkFailed(_ context.Context, subjectID, stepName, errMsg string) error {
	m.upsert(subjectID, stepName, model.StepFailed, nil, 0, 0, errMsg)
	return nil
}

func (m *MemoryStore) MarkSkipped(_ context.Context, subjectID, stepName, reason string) error {
	m.upsert(subjectID, stepName, model.StepSkipped, nil, 0, 0, reason)
	return nil
}

func (m *MemoryStore) GetAllCheckpoints(_ context.Context, subjectID string) ([]model.CheckpointRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	steps := m.records[subjectID]
	records := make([]model.CheckpointRecord, 0, len(steps))
	for _, r := range steps {
		records = append(records, r)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].StepName < records[j].StepName })
	return records, nil
}

func (m *MemoryStore) ClearCheckpoints(_ context.Context, subjectID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, subjectID)
	return nil
}

func (m *MemoryStore) GetCompletionStatus(ctx context.Context, subjectID string) (*model.CompletionStatus, error) {
	records, err := m.GetAllCheckpoints(ctx, subjectID)
	if err != nil {
		return nil, err
	}
	return summarize(subjectID, records), nil
}

func (m *MemoryStore) Subjects(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.records))
	for id := range m.records {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (m *MemoryStore) Migrate(context.Context) error { return nil }
func (m *MemoryStore) Close() error                  { return nil }
