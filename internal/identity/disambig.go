package identity

import (
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/prospect-cli/internal/model"
)

// Candidate is a record found under the subject's name at some source.
type Candidate struct {
	Name     string `json:"name"`
	City     string `json:"city,omitempty"`
	State    string `json:"state,omitempty"`
	Employer string `json:"employer,omitempty"`
	Title    string `json:"title,omitempty"`
	Source   string `json:"source,omitempty"`
}

// MatchScore breaks down how well a candidate matches the subject.
type MatchScore struct {
	Overall     float64 `json:"overall"`
	Name        float64 `json:"name"`
	Location    float64 `json:"location"`
	Employer    float64 `json:"employer"`
	Title       float64 `json:"title"`
	LikelyMatch bool    `json:"likely_match"`
	Warning     string  `json:"warning,omitempty"`
}

// Component weights. When a component is unknown on either side its weight is
// redistributed over the known ones, so a subject with no employer on file is
// not penalized for it.
const (
	weightName     = 0.50
	weightLocation = 0.25
	weightEmployer = 0.15
	weightTitle    = 0.10

	// A candidate is accepted only when both the blended score and the name
	// component clear their floors.
	overallFloor = 0.5
	nameFloor    = 0.7

	// Downgrade applied when both halves of the subject's name are
	// high-frequency. The match stays eligible; it just carries less
	// confidence and an explicit warning.
	commonNamePenalty = 0.85
)

// Disambiguator scores candidate records against a subject.
type Disambiguator struct{}

// NewDisambiguator returns a ready-to-use disambiguator.
func NewDisambiguator() *Disambiguator {
	return &Disambiguator{}
}

// Score rates one candidate against the subject. A last-name mismatch zeroes
// the whole score: no amount of matching location or employer makes a record
// under a different surname the same person.
func (d *Disambiguator) Score(subject model.Subject, cand Candidate) MatchScore {
	subjFirst, subjLast := SplitName(subject.Name)
	candFirst, candLast := SplitName(cand.Name)

	lastSim := lastNameSimilarity(subjLast, candLast)
	if lastSim == 0 {
		return MatchScore{}
	}

	score := MatchScore{
		Name: firstNameScore(subjFirst, candFirst) * lastSim,
	}

	sum := score.Name * weightName
	weightSum := weightName

	if loc, known := locationScore(subject, cand); known {
		score.Location = loc
		sum += loc * weightLocation
		weightSum += weightLocation
	}
	if emp, known := textScore(subject.Employer, cand.Employer); known {
		score.Employer = emp
		sum += emp * weightEmployer
		weightSum += weightEmployer
	}
	if title, known := textScore(subject.Title, cand.Title); known {
		score.Title = title
		sum += title * weightTitle
		weightSum += weightTitle
	}

	score.Overall = sum / weightSum

	// A name common on both halves is weak evidence on its own, however
	// well the strings line up. Downgrade rather than block: corroborating
	// facets can still carry the match over the floor.
	if commonFirstNames[canonicalFirst(subjFirst)] && commonLastNames[subjLast] {
		score.Overall *= commonNamePenalty
		score.Warning = "common first and last name; match may be a different person"
	}

	score.LikelyMatch = score.Overall >= overallFloor && score.Name >= nameFloor
	return score
}

// FilterMatches keeps the candidates that are likely the subject, logging
// what was discarded.
func (d *Disambiguator) FilterMatches(subject model.Subject, candidates []Candidate) []Candidate {
	var kept []Candidate
	for _, cand := range candidates {
		score := d.Score(subject, cand)
		if score.LikelyMatch {
			kept = append(kept, cand)
			continue
		}
		zap.L().Debug("discarded candidate record",
			zap.String("subject_id", subject.ID),
			zap.String("candidate", cand.Name),
			zap.String("source", cand.Source),
			zap.Float64("overall", score.Overall),
			zap.Float64("name", score.Name))
	}
	return kept
}

// lastNameSimilarity returns 1 for an exact match, the edit similarity when
// above 0.8 (typos, transliteration drift), and 0 otherwise.
func lastNameSimilarity(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1
	}
	if sim := editSimilarity(a, b); sim > 0.8 {
		return sim
	}
	return 0
}

func firstNameScore(subj, cand string) float64 {
	if subj == "" || cand == "" {
		return 0
	}
	switch {
	case subj == cand:
		return 1.0
	case nicknameEquivalent(subj, cand):
		return 0.9
	case len(subj) >= 3 && len(cand) >= 3 && (strings.HasPrefix(subj, cand) || strings.HasPrefix(cand, subj)):
		return 0.7
	case len(subj) == 1 || len(cand) == 1:
		if subj[0] == cand[0] {
			return 0.6
		}
		return 0
	default:
		return 0
	}
}

// locationScore compares city and state. State is the gate: a different state
// scores 0 even when the city name matches.
func locationScore(subject model.Subject, cand Candidate) (float64, bool) {
	subjState := strings.ToUpper(strings.TrimSpace(subject.State))
	candState := strings.ToUpper(strings.TrimSpace(cand.State))
	if subjState == "" || candState == "" {
		return 0, false
	}
	if subjState != candState {
		return 0, true
	}
	subjCity := NormalizeName(subject.City)
	candCity := NormalizeName(cand.City)
	if subjCity == "" || candCity == "" {
		return 0.5, true
	}
	if subjCity == candCity {
		return 1, true
	}
	return 0.3, true
}

// textScore is token overlap between two free-text fields, reported only
// when both sides are known.
func textScore(a, b string) (float64, bool) {
	at := strings.Fields(NormalizeName(a))
	bt := strings.Fields(NormalizeName(b))
	if len(at) == 0 || len(bt) == 0 {
		return 0, false
	}
	set := make(map[string]bool, len(at))
	for _, t := range at {
		set[t] = true
	}
	matched := 0
	for _, t := range bt {
		if set[t] {
			matched++
		}
	}
	return float64(2*matched) / float64(len(at)+len(bt)), true
}
