// Package triangulate merges field-level claims from sources of differing
// authority into one confidence-annotated record.
package triangulate

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/sells-group/prospect-cli/internal/authority"
	"github.com/sells-group/prospect-cli/internal/model"
)

// ScorerConfig controls agreement tolerance and confidence thresholds.
type ScorerConfig struct {
	// Tolerance is the maximum relative variance for two numeric values to
	// agree. Default: 0.2.
	Tolerance float64

	// VerifiedThreshold is the minimum source authority for a value to be
	// labeled VERIFIED. Default: 0.9.
	VerifiedThreshold float64

	// CorroborationCount is how many agreeing observations are needed for
	// CORROBORATED. Default: 2.
	CorroborationCount int

	// EstimatedSources are source names whose solo observations are labeled
	// ESTIMATED instead of SINGLE_SOURCE (fallback-constructed values).
	EstimatedSources map[string]bool
}

// DefaultScorerConfig returns the stock thresholds.
func DefaultScorerConfig() ScorerConfig {
	return ScorerConfig{
		Tolerance:          0.2,
		VerifiedThreshold:  0.9,
		CorroborationCount: 2,
		EstimatedSources:   map[string]bool{"synthesis_fallback": true},
	}
}

// Scorer assigns confidence labels to multi-source field observations.
type Scorer struct {
	cfg  ScorerConfig
	auth *authority.Registry
}

// NewScorer creates a scorer backed by the given authority registry.
func NewScorer(cfg ScorerConfig, auth *authority.Registry) *Scorer {
	if cfg.Tolerance <= 0 {
		cfg.Tolerance = 0.2
	}
	if cfg.VerifiedThreshold <= 0 {
		cfg.VerifiedThreshold = 0.9
	}
	if cfg.CorroborationCount <= 0 {
		cfg.CorroborationCount = 2
	}
	return &Scorer{cfg: cfg, auth: auth}
}

// weighted pairs an observation with its source authority.
type weighted struct {
	obs  model.Observation
	auth float64
}

// ResolveField fuses all observations for one field into a FieldConfidence.
// On disagreement the highest-authority source wins; dissenters are listed in
// the conflict note and the confidence score is penalized.
func (s *Scorer) ResolveField(observations []model.Observation) model.FieldConfidence {
	obs := make([]weighted, 0, len(observations))
	for _, o := range observations {
		if o.Value == nil {
			continue
		}
		obs = append(obs, weighted{obs: o, auth: s.auth.Authority(o.Source.Key())})
	}
	if len(obs) == 0 {
		return model.FieldConfidence{Level: model.ConfidenceEstimated, Score: 0}
	}

	// Stable sort so equal-authority sources keep observation order.
	sort.SliceStable(obs, func(i, j int) bool { return obs[i].auth > obs[j].auth })

	top := obs[0]
	sources := make([]model.SourceRef, 0, len(obs))
	for _, w := range obs {
		sources = append(sources, w.obs.Source)
	}

	if len(obs) == 1 {
		fc := model.FieldConfidence{
			Value:   top.obs.Value,
			Score:   top.auth,
			Sources: sources,
		}
		switch {
		case s.cfg.EstimatedSources[top.obs.Source.Name]:
			fc.Level = model.ConfidenceEstimated
		case top.auth >= s.cfg.VerifiedThreshold:
			fc.Level = model.ConfidenceVerified
		default:
			fc.Level = model.ConfidenceSingleSource
		}
		return fc
	}

	// Partition into agreement with the top-authority value.
	var agreeing []weighted
	var dissenting []weighted
	for _, w := range obs {
		if ValuesAgree(top.obs.Value, w.obs.Value, s.cfg.Tolerance) {
			agreeing = append(agreeing, w)
		} else {
			dissenting = append(dissenting, w)
		}
	}

	if len(dissenting) > 0 {
		return model.FieldConfidence{
			Value:        top.obs.Value,
			Level:        model.ConfidenceConflicted,
			Score:        top.auth * 0.6,
			Sources:      sources,
			ConflictNote: conflictNote(top, dissenting),
		}
	}

	fc := model.FieldConfidence{
		Value:   consensusValue(agreeing),
		Sources: sources,
	}
	if top.auth >= s.cfg.VerifiedThreshold {
		fc.Level = model.ConfidenceVerified
		fc.Score = math.Min(1.0, top.auth+0.02*float64(len(agreeing)-1))
	} else if len(agreeing) >= s.cfg.CorroborationCount {
		fc.Level = model.ConfidenceCorroborated
		fc.Score = math.Min(0.95, top.auth+0.05*float64(len(agreeing)-1))
	} else {
		fc.Level = model.ConfidenceSingleSource
		fc.Score = top.auth
	}
	return fc
}

// consensusValue is the authority-weighted average for numeric agreement
// (rounded), and the top-authority value otherwise.
func consensusValue(agreeing []weighted) any {
	var sum, weightSum float64
	for _, w := range agreeing {
		n, ok := asNumber(w.obs.Value)
		if !ok {
			return agreeing[0].obs.Value
		}
		sum += n * w.auth
		weightSum += w.auth
	}
	if weightSum == 0 {
		return agreeing[0].obs.Value
	}
	return math.Round(sum / weightSum)
}

func conflictNote(top weighted, dissenting []weighted) string {
	var b strings.Builder
	fmt.Fprintf(&b, "kept %v from %s; disagrees with", top.obs.Value, top.obs.Source.Name)
	for i, w := range dissenting {
		if i > 0 {
			b.WriteString(",")
		}
		fmt.Fprintf(&b, " %s (%v)", w.obs.Source.Name, w.obs.Value)
	}
	return b.String()
}

// ValuesAgree reports whether two observed values are the same claim within
// tolerance. Numbers agree on relative variance, strings after case and
// whitespace normalization, arrays as multisets, objects key-by-key. Nil
// agrees only with nil.
func ValuesAgree(a, b any, tolerance float64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}

	if na, ok := asNumber(a); ok {
		nb, ok := asNumber(b)
		if !ok {
			return false
		}
		return numbersAgree(na, nb, tolerance)
	}

	if sa, ok := a.(string); ok {
		sb, ok := b.(string)
		if !ok {
			return false
		}
		return normalizeString(sa) == normalizeString(sb)
	}

	if aa, ok := asSlice(a); ok {
		bb, ok := asSlice(b)
		if !ok || len(aa) != len(bb) {
			return false
		}
		// Multiset agreement: every element of aa pairs with an unused
		// agreeing element of bb.
		used := make([]bool, len(bb))
	outer:
		for _, av := range aa {
			for i, bv := range bb {
				if !used[i] && ValuesAgree(av, bv, tolerance) {
					used[i] = true
					continue outer
				}
			}
			return false
		}
		return true
	}

	if ma, ok := a.(map[string]any); ok {
		mb, ok := b.(map[string]any)
		if !ok || len(ma) != len(mb) {
			return false
		}
		for k, av := range ma {
			bv, ok := mb[k]
			if !ok || !ValuesAgree(av, bv, tolerance) {
				return false
			}
		}
		return true
	}

	if ba, ok := a.(bool); ok {
		bb, ok := b.(bool)
		return ok && ba == bb
	}

	return fmt.Sprintf("%v", a) == fmt.Sprintf("%v", b)
}

func numbersAgree(a, b, tolerance float64) bool {
	if a == b {
		return true
	}
	denom := math.Max(math.Abs(a), math.Abs(b))
	if denom == 0 {
		return true
	}
	return math.Abs(a-b)/denom <= tolerance
}

func normalizeString(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

func asNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

func asSlice(v any) ([]any, bool) {
	switch s := v.(type) {
	case []any:
		return s, true
	case []string:
		out := make([]any, len(s))
		for i, x := range s {
			out[i] = x
		}
		return out, true
	default:
		return nil, false
	}
}
