package triangulate

import (
	"reflect"
	"testing"

	"github.com/sells-group/prospect-cli/internal/authority"
	"github.com/sells-group/prospect-cli/internal/model"
)

func TestFlattenRoundTrip(t *testing.T) {
	nested := map[string]any{
		"employment": map[string]any{
			"employer": "Acme Corp",
			"title":    "CEO",
		},
		"giving": map[string]any{
			"political": map[string]any{
				"total": float64(50000),
			},
		},
		"interests": []any{"education", "arts"},
	}

	flat := Flatten(nested)
	if flat["employment.employer"] != "Acme Corp" {
		t.Errorf("employment.employer = %v", flat["employment.employer"])
	}
	if flat["giving.political.total"] != float64(50000) {
		t.Errorf("giving.political.total = %v", flat["giving.political.total"])
	}
	if _, ok := flat["interests"].([]any); !ok {
		t.Error("arrays should stay leaf values")
	}

	if got := Unflatten(flat); !reflect.DeepEqual(got, nested) {
		t.Errorf("round trip mismatch:\n got %#v\nwant %#v", got, nested)
	}
}

func TestEngineMerge(t *testing.T) {
	eng := NewEngine(NewScorer(DefaultScorerConfig(), authority.NewRegistry()))

	steps := map[string]model.StepResult{
		"fec_giving": {
			Status:  model.StepCompleted,
			Data:    map[string]any{"giving": map[string]any{"total": float64(50000)}},
			Sources: []model.SourceRef{{Name: "fec"}},
		},
		"web_research": {
			Status: model.StepCompleted,
			Data: map[string]any{
				"giving":   map[string]any{"total": float64(10000)},
				"employer": "Acme Corp",
			},
			Sources: []model.SourceRef{{Name: "perplexity"}},
		},
		"sec_filings": {
			Status: model.StepFailed,
			Data:   map[string]any{"insider": true},
		},
	}

	profile := eng.Merge("sub-1", steps)

	if profile.SubjectID != "sub-1" {
		t.Errorf("subject id = %s", profile.SubjectID)
	}

	// Failed step data must not leak into the profile.
	if _, ok := profile.Fields["insider"]; ok {
		t.Error("failed step output should be excluded")
	}

	giving := profile.Fields["giving.total"]
	if giving.Level != model.ConfidenceConflicted {
		t.Fatalf("giving.total level = %s, want CONFLICTED", giving.Level)
	}
	if giving.Value != float64(50000) {
		t.Errorf("giving.total = %v, want FEC's 50000", giving.Value)
	}
	if len(profile.Conflicts) != 1 || profile.Conflicts[0].FieldPath != "giving.total" {
		t.Errorf("conflicts = %+v", profile.Conflicts)
	}

	employer := profile.Fields["employer"]
	if employer.Level != model.ConfidenceSingleSource {
		t.Errorf("employer level = %s, want SINGLE_SOURCE", employer.Level)
	}

	// Record rebuilds the nested shape with merged values.
	g, ok := profile.Record["giving"].(map[string]any)
	if !ok || g["total"] != float64(50000) {
		t.Errorf("record giving = %#v", profile.Record["giving"])
	}

	if len(profile.Sources) != 2 {
		t.Errorf("sources = %+v, want fec and perplexity", profile.Sources)
	}

	wantOverall := (giving.Score + employer.Score) / 2
	if profile.OverallConfidence != wantOverall {
		t.Errorf("overall = %v, want %v", profile.OverallConfidence, wantOverall)
	}
}

func TestEngineMergeEmpty(t *testing.T) {
	eng := NewEngine(NewScorer(DefaultScorerConfig(), authority.NewRegistry()))
	profile := eng.Merge("sub-2", nil)
	if profile.OverallConfidence != 0 || len(profile.Fields) != 0 {
		t.Errorf("empty merge should produce an empty profile, got %+v", profile)
	}
}
