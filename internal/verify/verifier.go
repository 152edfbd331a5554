package verify

import (
	"context"
	"math"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/prospect-cli/internal/model"
)

// Result is an authoritative source's answer for one claim. A nil *Result
// from a checker means the service could not be reached, which is not the
// same as the service answering "nothing found".
type Result struct {
	Value  any
	Source string
}

// Checker answers claims of one type against a single authoritative source.
type Checker interface {
	Check(ctx context.Context, subject model.Subject, claim model.Claim) (*Result, error)
}

// CheckerFunc adapts a function to the Checker interface.
type CheckerFunc func(ctx context.Context, subject model.Subject, claim model.Claim) (*Result, error)

func (f CheckerFunc) Check(ctx context.Context, subject model.Subject, claim model.Claim) (*Result, error) {
	return f(ctx, subject, claim)
}

// Config tunes the verification decision rules.
type Config struct {
	// Variance is the maximum relative difference for a numeric claim to be
	// VERIFIED against the record value. Default: 0.3.
	Variance float64

	// ReportingFloor is the dollar amount below which a positive giving claim
	// cannot be contradicted by an empty record, since contributions under
	// the itemization threshold are not individually reported. Default: 200.
	ReportingFloor float64
}

// DefaultConfig returns the stock decision thresholds.
func DefaultConfig() Config {
	return Config{Variance: 0.3, ReportingFloor: 200}
}

// Verifier checks extracted claims against registered per-type checkers.
// Claim types without a checker (property value, net worth) are always
// UNVERIFIABLE: there is no authoritative record to compare against.
type Verifier struct {
	cfg      Config
	checkers map[model.ClaimType]Checker
}

// NewVerifier creates a verifier with the given per-type checkers.
func NewVerifier(cfg Config, checkers map[model.ClaimType]Checker) *Verifier {
	if cfg.Variance <= 0 {
		cfg.Variance = 0.3
	}
	if cfg.ReportingFloor <= 0 {
		cfg.ReportingFloor = 200
	}
	return &Verifier{cfg: cfg, checkers: checkers}
}

// VerifyClaims checks every claim and returns one verdict per claim, in
// input order. Checker failures degrade to UNVERIFIABLE rather than failing
// the run.
func (v *Verifier) VerifyClaims(ctx context.Context, subject model.Subject, claims []model.Claim) []model.ClaimVerification {
	out := make([]model.ClaimVerification, 0, len(claims))
	for _, claim := range claims {
		out = append(out, v.verifyOne(ctx, subject, claim))
	}
	return out
}

func (v *Verifier) verifyOne(ctx context.Context, subject model.Subject, claim model.Claim) model.ClaimVerification {
	checker, ok := v.checkers[claim.Type]
	if !ok {
		return model.ClaimVerification{
			Claim:      claim,
			Status:     model.VerificationUnverifiable,
			Confidence: 0.5,
			Details:    "no authoritative source for this claim type",
		}
	}

	res, err := checker.Check(ctx, subject, claim)
	if err != nil {
		zap.L().Warn("claim check failed",
			zap.String("subject_id", subject.ID),
			zap.String("claim_type", string(claim.Type)),
			zap.Error(err))
		res = nil
	}
	if res == nil {
		return model.ClaimVerification{
			Claim:      claim,
			Status:     model.VerificationUnverifiable,
			Confidence: 0.5,
			Details:    "verification service unavailable",
		}
	}

	verdict := v.judge(claim, res)
	verdict.Claim = claim
	verdict.APIValue = res.Value
	verdict.Source = res.Source
	return verdict
}

func (v *Verifier) judge(claim model.Claim, res *Result) model.ClaimVerification {
	switch claim.Type {
	case model.ClaimPoliticalGiving:
		return v.judgeNumeric(claim, res)
	case model.ClaimInsiderStatus:
		return v.judgeInsider(claim, res)
	case model.ClaimBoardMembership:
		return v.judgeBoard(claim, res)
	default:
		return model.ClaimVerification{
			Status:     model.VerificationUnverifiable,
			Confidence: 0.5,
			Details:    "no decision rule for this claim type",
		}
	}
}

func (v *Verifier) judgeNumeric(claim model.Claim, res *Result) model.ClaimVerification {
	claimed, cok := toNumber(claim.Value)
	recorded, rok := toNumber(res.Value)
	if !cok || !rok {
		return model.ClaimVerification{
			Status:     model.VerificationUnverifiable,
			Confidence: 0.5,
			Details:    "claim or record value is not numeric",
		}
	}

	if recorded == 0 {
		if claimed <= v.cfg.ReportingFloor {
			return model.ClaimVerification{
				Status:     model.VerificationUnverifiable,
				Confidence: 0.5,
				Details:    "claimed amount is below the itemized reporting floor",
			}
		}
		// Records say zero; a substantial claimed amount would be itemized.
		conf := 0.8 + 0.15*math.Min(1, claimed/100000)
		return model.ClaimVerification{
			Status:     model.VerificationContradicted,
			Confidence: conf,
			Details:    "no itemized records found for the claimed amount",
		}
	}

	variance := math.Abs(claimed-recorded) / math.Max(claimed, recorded)
	if variance <= v.cfg.Variance {
		return model.ClaimVerification{
			Status:     model.VerificationVerified,
			Confidence: 0.95 - variance/2,
		}
	}
	return model.ClaimVerification{
		Status:     model.VerificationPartial,
		Confidence: 0.7,
		Details:    "record amount differs from the claim but agrees in direction",
	}
}

func (v *Verifier) judgeInsider(claim model.Claim, res *Result) model.ClaimVerification {
	recorded, ok := res.Value.(bool)
	if !ok {
		return model.ClaimVerification{
			Status:     model.VerificationUnverifiable,
			Confidence: 0.5,
			Details:    "record value is not a boolean",
		}
	}
	if recorded {
		return model.ClaimVerification{Status: model.VerificationVerified, Confidence: 0.95}
	}
	// Insider filings are mandatory; no filings means not an insider.
	return model.ClaimVerification{
		Status:     model.VerificationContradicted,
		Confidence: 0.8,
		Details:    "no insider filings found",
	}
}

func (v *Verifier) judgeBoard(claim model.Claim, res *Result) model.ClaimVerification {
	org, _ := claim.Value.(string)
	recorded := toStrings(res.Value)
	if org == "" {
		return model.ClaimVerification{
			Status:     model.VerificationUnverifiable,
			Confidence: 0.5,
			Details:    "claim names no organization",
		}
	}

	best := 0.0
	for _, candidate := range recorded {
		if sim := orgSimilarity(org, candidate); sim > best {
			best = sim
		}
	}
	switch {
	case best >= 0.9:
		return model.ClaimVerification{Status: model.VerificationVerified, Confidence: 0.9}
	case best >= 0.5:
		return model.ClaimVerification{
			Status:     model.VerificationPartial,
			Confidence: 0.7,
			Details:    "a similarly named organization appears in nonprofit filings",
		}
	default:
		// Officer rosters in filings are incomplete; absence proves nothing.
		return model.ClaimVerification{
			Status:     model.VerificationUnverifiable,
			Confidence: 0.5,
			Details:    "organization not found in available nonprofit filings",
		}
	}
}

// orgSimilarity is token overlap between normalized organization names.
func orgSimilarity(a, b string) float64 {
	at := orgTokens(a)
	bt := orgTokens(b)
	if len(at) == 0 || len(bt) == 0 {
		return 0
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
	return float64(2*matched) / float64(len(at)+len(bt))
}

var orgStopwords = map[string]bool{
	"the": true, "of": true, "inc": true, "foundation": true,
	"fund": true, "trust": true, "corp": true, "llc": true,
}

func orgTokens(s string) []string {
	fields := strings.Fields(strings.ToLower(strings.Map(func(r rune) rune {
		if r == ',' || r == '.' {
			return ' '
		}
		return r
	}, s)))
	out := fields[:0]
	for _, f := range fields {
		if !orgStopwords[f] {
			out = append(out, f)
		}
	}
	return out
}

func toNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

func toStrings(v any) []string {
	switch vv := v.(type) {
	case []string:
		return vv
	case []any:
		out := make([]string, 0, len(vv))
		for _, item := range vv {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case string:
		return []string{vv}
	default:
		return nil
	}
}
