package verify

import (
	"fmt"

	"github.com/sells-group/prospect-cli/internal/model"
)

// statusWeights feed the report's overall confidence. A CONTRADICTED claim
// drags the number down hard; an UNVERIFIABLE one is neutral-negative.
var statusWeights = map[model.VerificationStatus]float64{
	model.VerificationVerified:     1.0,
	model.VerificationPartial:      0.7,
	model.VerificationUnverifiable: 0.5,
	model.VerificationContradicted: 0.2,
}

// BuildReport aggregates per-claim verdicts into a subject-level report.
// A report over zero claims carries confidence 1.0: nothing was asserted,
// so nothing is wrong.
func BuildReport(subjectID string, verifications []model.ClaimVerification) *model.VerificationReport {
	report := &model.VerificationReport{
		SubjectID: subjectID,
		Claims:    verifications,
	}

	var weightSum float64
	for _, cv := range verifications {
		switch cv.Status {
		case model.VerificationVerified:
			report.Verified++
		case model.VerificationContradicted:
			report.Contradicted++
			report.Hallucinations = append(report.Hallucinations, cv)
		case model.VerificationPartial:
			report.Partial++
		default:
			report.Unverifiable++
		}
		weightSum += statusWeights[cv.Status]
	}

	if len(verifications) == 0 {
		report.OverallConfidence = 1.0
	} else {
		report.OverallConfidence = weightSum / float64(len(verifications))
	}

	report.Recommendations = recommendations(report)
	return report
}

func recommendations(r *model.VerificationReport) []string {
	var recs []string
	if r.Contradicted > 0 {
		recs = append(recs, fmt.Sprintf(
			"%d claim(s) contradict authoritative records; review the flagged items before any outreach", r.Contradicted))
	}
	if total := len(r.Claims); total > 0 && r.Unverifiable*2 > total {
		recs = append(recs, "most claims could not be checked against records; treat the profile as provisional")
	}
	if r.OverallConfidence < 0.5 {
		recs = append(recs, "overall verification confidence is low; re-run research with additional sources")
	}
	if len(recs) == 0 && r.Verified > 0 {
		recs = append(recs, "claims are consistent with authoritative records")
	}
	return recs
}
