package triangulate

import (
	"strings"
	"testing"

	"github.com/sells-group/prospect-cli/internal/authority"
	"github.com/sells-group/prospect-cli/internal/model"
)

func newTestScorer() *Scorer {
	return NewScorer(DefaultScorerConfig(), authority.NewRegistry())
}

func obs(value any, source string) model.Observation {
	return model.Observation{Value: value, Source: model.SourceRef{Name: source}}
}

func TestValuesAgreeNumbersWithinTolerance(t *testing.T) {
	cases := []struct {
		a, b float64
		want bool
	}{
		{100, 100, true},
		{100, 115, true},  // 13% variance
		{100, 120, true},  // exactly 20%... variance is 20/120 = 0.167
		{100, 130, false}, // 23% variance
		{0, 0, true},
		{-100, -110, true},
		{50000, 48000, true},
		{50000, 30000, false},
	}
	for _, tc := range cases {
		if got := ValuesAgree(tc.a, tc.b, 0.2); got != tc.want {
			t.Errorf("ValuesAgree(%v, %v) = %v, want %v", tc.a, tc.b, got, tc.want)
		}
	}
}

func TestValuesAgreeStrings(t *testing.T) {
	if !ValuesAgree("Acme  Corp", "acme corp", 0.2) {
		t.Error("case and whitespace differences should agree")
	}
	if ValuesAgree("Acme Corp", "Acme Inc", 0.2) {
		t.Error("different strings should not agree")
	}
}

func TestValuesAgreeArraysAsMultisets(t *testing.T) {
	a := []any{"board member", "donor"}
	b := []any{"Donor", "Board Member"}
	if !ValuesAgree(a, b, 0.2) {
		t.Error("order-independent arrays should agree")
	}
	if ValuesAgree(a, []any{"donor"}, 0.2) {
		t.Error("arrays of different length should not agree")
	}
}

func TestValuesAgreeObjects(t *testing.T) {
	a := map[string]any{"city": "Austin", "amount": float64(100)}
	b := map[string]any{"city": "austin", "amount": float64(110)}
	if !ValuesAgree(a, b, 0.2) {
		t.Error("objects should agree key by key")
	}
	b["city"] = "Dallas"
	if ValuesAgree(a, b, 0.2) {
		t.Error("objects with a disagreeing key should not agree")
	}
}

func TestValuesAgreeNil(t *testing.T) {
	if !ValuesAgree(nil, nil, 0.2) {
		t.Error("nil should agree with nil")
	}
	if ValuesAgree(nil, "x", 0.2) || ValuesAgree("x", nil, 0.2) {
		t.Error("nil should only agree with nil")
	}
}

func TestResolveFieldSingleHighAuthority(t *testing.T) {
	s := newTestScorer()
	fc := s.ResolveField([]model.Observation{obs(float64(50000), "fec")})
	if fc.Level != model.ConfidenceVerified {
		t.Errorf("level = %s, want VERIFIED", fc.Level)
	}
	if fc.Score < 0.9 {
		t.Errorf("score = %v, want >= 0.9", fc.Score)
	}
}

func TestResolveFieldSingleLowAuthority(t *testing.T) {
	s := newTestScorer()
	fc := s.ResolveField([]model.Observation{obs("CEO", "perplexity")})
	if fc.Level != model.ConfidenceSingleSource {
		t.Errorf("level = %s, want SINGLE_SOURCE", fc.Level)
	}
}

func TestResolveFieldAgreementNeverConflicted(t *testing.T) {
	s := newTestScorer()
	fc := s.ResolveField([]model.Observation{
		obs(float64(50000), "fec"),
		obs(float64(50000), "perplexity"),
	})
	if fc.Level == model.ConfidenceConflicted {
		t.Fatal("numerically equal values must never be CONFLICTED")
	}
	if fc.Level != model.ConfidenceVerified && fc.Level != model.ConfidenceCorroborated {
		t.Errorf("level = %s, want VERIFIED or CORROBORATED", fc.Level)
	}
}

func TestResolveFieldCorroboratedBelowVerifiedThreshold(t *testing.T) {
	s := newTestScorer()
	fc := s.ResolveField([]model.Observation{
		obs("Acme Corp", "https://www.linkedin.com/in/jdoe"),
		obs("acme corp", "perplexity"),
	})
	if fc.Level != model.ConfidenceCorroborated {
		t.Errorf("level = %s, want CORROBORATED", fc.Level)
	}
}

func TestResolveFieldConflictKeepsTopAuthority(t *testing.T) {
	s := newTestScorer()
	fc := s.ResolveField([]model.Observation{
		obs(float64(10000), "perplexity"),
		obs(float64(50000), "fec"),
	})
	if fc.Level != model.ConfidenceConflicted {
		t.Fatalf("level = %s, want CONFLICTED", fc.Level)
	}
	if fc.Value != float64(50000) {
		t.Errorf("kept value = %v, want the higher-authority 50000", fc.Value)
	}
	if fc.ConflictNote == "" || !strings.Contains(fc.ConflictNote, "perplexity") {
		t.Errorf("conflict note should name the dissenting source, got %q", fc.ConflictNote)
	}
	want := 0.98 * 0.6
	if fc.Score < want-0.001 || fc.Score > want+0.001 {
		t.Errorf("score = %v, want %v", fc.Score, want)
	}
}

func TestResolveFieldWeightedNumericConsensus(t *testing.T) {
	s := newTestScorer()
	fc := s.ResolveField([]model.Observation{
		obs(float64(100), "fec"),        // authority 0.98
		obs(float64(110), "perplexity"), // authority 0.5
	})
	n, ok := fc.Value.(float64)
	if !ok {
		t.Fatalf("value = %T, want float64", fc.Value)
	}
	// Consensus leans toward the higher-authority observation.
	if n <= 100 || n >= 105 {
		t.Errorf("consensus = %v, want in (100, 105)", n)
	}
}

func TestResolveFieldEstimatedSource(t *testing.T) {
	s := newTestScorer()
	fc := s.ResolveField([]model.Observation{obs("roughly 1M", "synthesis_fallback")})
	if fc.Level != model.ConfidenceEstimated {
		t.Errorf("level = %s, want ESTIMATED", fc.Level)
	}
}

func TestResolveFieldIgnoresNilObservations(t *testing.T) {
	s := newTestScorer()
	fc := s.ResolveField([]model.Observation{
		{Value: nil, Source: model.SourceRef{Name: "fec"}},
		obs("Austin", "perplexity"),
	})
	if fc.Level != model.ConfidenceSingleSource {
		t.Errorf("level = %s, want SINGLE_SOURCE after dropping nil", fc.Level)
	}
	if fc.Value != "Austin" {
		t.Errorf("value = %v, want Austin", fc.Value)
	}
}
