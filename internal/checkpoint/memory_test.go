package checkpoint

import (
	"context"
	"testing"

	"github.com/sells-group/prospect-cli/internal/model"
)

func TestMemoryStore_Lifecycle(t *testing.T) {
	ctx := context.Background()
	st := NewMemory()

	done, err := st.HasCompleted(ctx, "s1", "search")
	if err != nil || done {
		t.Fatalf("expected not completed, got done=%v err=%v", done, err)
	}

	if err := st.MarkProcessing(ctx, "s1", "search"); err != nil {
		t.Fatal(err)
	}
	if err := st.SaveResult(ctx, "s1", "search", []byte(`{"x":1}`), 120, 900); err != nil {
		t.Fatal(err)
	}

	done, _ = st.HasCompleted(ctx, "s1", "search")
	if !done {
		t.Error("expected completed after SaveResult")
	}

	raw, err := st.GetResult(ctx, "s1", "search")
	if err != nil {
		t.Fatal(err)
	}
	if string(raw) != `{"x":1}` {
		t.Errorf("unexpected payload %s", raw)
	}
}

func TestMemoryStore_SaveResultIdempotentOverwrite(t *testing.T) {
	ctx := context.Background()
	st := NewMemory()

	if err := st.SaveResult(ctx, "s1", "search", []byte(`{"v":"old"}`), 10, 100); err != nil {
		t.Fatal(err)
	}
	if err := st.SaveResult(ctx, "s1", "search", []byte(`{"v":"new"}`), 20, 200); err != nil {
		t.Fatal(err)
	}

	raw, _ := st.GetResult(ctx, "s1", "search")
	if string(raw) != `{"v":"new"}` {
		t.Errorf("expected latest payload to win, got %s", raw)
	}

	// A later failure overwrites completion: HasCompleted reflects only the
	// latest status.
	if err := st.MarkFailed(ctx, "s1", "search", "boom"); err != nil {
		t.Fatal(err)
	}
	done, _ := st.HasCompleted(ctx, "s1", "search")
	if done {
		t.Error("expected HasCompleted=false after MarkFailed overwrite")
	}
}

func TestMemoryStore_GetResultIgnoresNonCompleted(t *testing.T) {
	ctx := context.Background()
	st := NewMemory()

	_ = st.MarkFailed(ctx, "s1", "search", "boom")
	raw, err := st.GetResult(ctx, "s1", "search")
	if err != nil {
		t.Fatal(err)
	}
	if raw != nil {
		t.Errorf("expected nil result for failed step, got %s", raw)
	}
}

func TestMemoryStore_CompletionStatus(t *testing.T) {
	ctx := context.Background()
	st := NewMemory()

	_ = st.SaveResult(ctx, "s1", "search", []byte(`{}`), 0, 0)
	_ = st.MarkFailed(ctx, "s1", "filings", "down")
	_ = st.MarkSkipped(ctx, "s1", "property", "missing_credentials")
	_ = st.MarkProcessing(ctx, "s1", "synthesize")

	cs, err := st.GetCompletionStatus(ctx, "s1")
	if err != nil {
		t.Fatal(err)
	}
	if cs.Total != 4 || cs.Completed != 1 || cs.Failed != 1 || cs.Skipped != 1 || cs.Pending != 1 {
		t.Errorf("unexpected status: %+v", cs)
	}
	if cs.Steps["filings"] != model.StepFailed {
		t.Errorf("expected filings failed, got %s", cs.Steps["filings"])
	}
}

func TestMemoryStore_ClearCheckpoints(t *testing.T) {
	ctx := context.Background()
	st := NewMemory()

	_ = st.SaveResult(ctx, "s1", "search", []byte(`{}`), 0, 0)
	_ = st.SaveResult(ctx, "s2", "search", []byte(`{}`), 0, 0)

	if err := st.ClearCheckpoints(ctx, "s1"); err != nil {
		t.Fatal(err)
	}

	records, _ := st.GetAllCheckpoints(ctx, "s1")
	if len(records) != 0 {
		t.Errorf("expected no records after clear, got %d", len(records))
	}
	subjects, _ := st.Subjects(ctx)
	if len(subjects) != 1 || subjects[0] != "s2" {
		t.Errorf("expected only s2 to remain, got %v", subjects)
	}
}

func TestGetResultAs(t *testing.T) {
	ctx := context.Background()
	st := NewMemory()

	type payload struct {
		Total float64 `json:"total"`
	}

	_, ok, err := GetResultAs[payload](ctx, st, "s1", "giving")
	if err != nil || ok {
		t.Fatalf("expected missing result, got ok=%v err=%v", ok, err)
	}

	_ = st.SaveResult(ctx, "s1", "giving", []byte(`{"total":50000}`), 0, 0)
	p, ok, err := GetResultAs[payload](ctx, st, "s1", "giving")
	if err != nil || !ok {
		t.Fatalf("expected result, got ok=%v err=%v", ok, err)
	}
	if p.Total != 50000 {
		t.Errorf("expected 50000, got %v", p.Total)
	}
}
