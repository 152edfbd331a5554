package model

// ConfidenceLevel labels how well-supported a merged field value is.
type ConfidenceLevel string

const (
	ConfidenceVerified     ConfidenceLevel = "VERIFIED"
	ConfidenceCorroborated ConfidenceLevel = "CORROBORATED"
	ConfidenceSingleSource ConfidenceLevel = "SINGLE_SOURCE"
	ConfidenceConflicted   ConfidenceLevel = "CONFLICTED"
	ConfidenceEstimated    ConfidenceLevel = "ESTIMATED"
)

// Observation is one (value, source) pair for a single field path.
type Observation struct {
	Value  any       `json:"value"`
	Source SourceRef `json:"source"`
}

// FieldConfidence is the triangulated outcome for a single field path.
// Recomputed on every triangulation pass; never persisted on its own.
type FieldConfidence struct {
	Value        any             `json:"value"`
	Level        ConfidenceLevel `json:"level"`
	Score        float64         `json:"score"`
	Sources      []SourceRef     `json:"sources"`
	ConflictNote string          `json:"conflict_note,omitempty"`
}

// Conflict surfaces a CONFLICTED field for downstream review.
type Conflict struct {
	FieldPath string `json:"field_path"`
	Note      string `json:"note"`
}

// MergedProfile is the fused, confidence-annotated record for one subject.
type MergedProfile struct {
	SubjectID         string                     `json:"subject_id"`
	Record            map[string]any             `json:"record"`
	Fields            map[string]FieldConfidence `json:"fields"`
	Sources           []SourceRef                `json:"sources"`
	Conflicts         []Conflict                 `json:"conflicts"`
	OverallConfidence float64                    `json:"overall_confidence"`
}

// FieldString returns the merged value at the given dotted path as a string,
// or "" when absent or not a string.
func (p *MergedProfile) FieldString(path string) string {
	fc, ok := p.Fields[path]
	if !ok {
		return ""
	}
	s, _ := fc.Value.(string)
	return s
}

// FieldNumber returns the merged value at the given dotted path as a float64.
// JSON decoding yields float64 for all numbers; ints are converted.
func (p *MergedProfile) FieldNumber(path string) (float64, bool) {
	fc, ok := p.Fields[path]
	if !ok {
		return 0, false
	}
	switch n := fc.Value.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

// FieldStrings returns the merged value at the given dotted path as a string
// slice, tolerating []any elements.
func (p *MergedProfile) FieldStrings(path string) []string {
	fc, ok := p.Fields[path]
	if !ok {
		return nil
	}
	switch v := fc.Value.(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
