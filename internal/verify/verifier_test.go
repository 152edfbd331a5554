package verify

import (
	"context"
	"errors"
	"testing"

	"github.com/sells-group/prospect-cli/internal/model"
)

func givingClaim(amount float64) model.Claim {
	return model.Claim{
		Type:          model.ClaimPoliticalGiving,
		Value:         amount,
		ExtractedFrom: PathPoliticalTotal,
	}
}

func staticChecker(value any, source string) Checker {
	return CheckerFunc(func(context.Context, model.Subject, model.Claim) (*Result, error) {
		return &Result{Value: value, Source: source}, nil
	})
}

func newGivingVerifier(recorded any) *Verifier {
	return NewVerifier(DefaultConfig(), map[model.ClaimType]Checker{
		model.ClaimPoliticalGiving: staticChecker(recorded, "fec"),
	})
}

func TestVerifyGivingContradicted(t *testing.T) {
	// Profile says $50,000; records show nothing.
	v := newGivingVerifier(float64(0))
	out := v.VerifyClaims(context.Background(), model.Subject{ID: "s1", Name: "Jane Doe"},
		[]model.Claim{givingClaim(50000)})

	cv := out[0]
	if cv.Status != model.VerificationContradicted {
		t.Fatalf("status = %s, want CONTRADICTED", cv.Status)
	}
	if cv.Confidence < 0.8 || cv.Confidence > 0.95 {
		t.Errorf("confidence = %v, want in [0.8, 0.95]", cv.Confidence)
	}
	if cv.Source != "fec" {
		t.Errorf("source = %s", cv.Source)
	}
}

func TestVerifyGivingBelowReportingFloor(t *testing.T) {
	// Small gifts are not itemized, so an empty record proves nothing.
	v := newGivingVerifier(float64(0))
	out := v.VerifyClaims(context.Background(), model.Subject{ID: "s1"},
		[]model.Claim{givingClaim(150)})

	if out[0].Status != model.VerificationUnverifiable {
		t.Errorf("status = %s, want UNVERIFIABLE", out[0].Status)
	}
}

func TestVerifyGivingWithinVariance(t *testing.T) {
	v := newGivingVerifier(float64(48000))
	out := v.VerifyClaims(context.Background(), model.Subject{ID: "s1"},
		[]model.Claim{givingClaim(50000)})

	if out[0].Status != model.VerificationVerified {
		t.Errorf("status = %s, want VERIFIED", out[0].Status)
	}
}

func TestVerifyGivingDirectionalAgreement(t *testing.T) {
	v := newGivingVerifier(float64(10000))
	out := v.VerifyClaims(context.Background(), model.Subject{ID: "s1"},
		[]model.Claim{givingClaim(50000)})

	if out[0].Status != model.VerificationPartial {
		t.Errorf("status = %s, want PARTIAL", out[0].Status)
	}
}

func TestVerifyServiceUnavailable(t *testing.T) {
	down := CheckerFunc(func(context.Context, model.Subject, model.Claim) (*Result, error) {
		return nil, errors.New("fec: connection refused")
	})
	v := NewVerifier(DefaultConfig(), map[model.ClaimType]Checker{
		model.ClaimPoliticalGiving: down,
	})
	out := v.VerifyClaims(context.Background(), model.Subject{ID: "s1"},
		[]model.Claim{givingClaim(50000)})

	cv := out[0]
	if cv.Status != model.VerificationUnverifiable {
		t.Fatalf("status = %s, want UNVERIFIABLE when the service is down", cv.Status)
	}
	if cv.Details != "verification service unavailable" {
		t.Errorf("details = %q", cv.Details)
	}
}

func TestVerifyUncheckableTypes(t *testing.T) {
	v := NewVerifier(DefaultConfig(), nil)
	claims := []model.Claim{
		{Type: model.ClaimNetWorth, Value: float64(5000000)},
		{Type: model.ClaimPropertyValue, Value: float64(1200000)},
	}
	for _, cv := range v.VerifyClaims(context.Background(), model.Subject{ID: "s1"}, claims) {
		if cv.Status != model.VerificationUnverifiable {
			t.Errorf("%s: status = %s, want UNVERIFIABLE", cv.Claim.Type, cv.Status)
		}
	}
}

func TestVerifyInsider(t *testing.T) {
	claim := model.Claim{Type: model.ClaimInsiderStatus, Value: true}

	v := NewVerifier(DefaultConfig(), map[model.ClaimType]Checker{
		model.ClaimInsiderStatus: staticChecker(true, "sec_edgar"),
	})
	out := v.VerifyClaims(context.Background(), model.Subject{ID: "s1"}, []model.Claim{claim})
	if out[0].Status != model.VerificationVerified {
		t.Errorf("status = %s, want VERIFIED", out[0].Status)
	}

	v = NewVerifier(DefaultConfig(), map[model.ClaimType]Checker{
		model.ClaimInsiderStatus: staticChecker(false, "sec_edgar"),
	})
	out = v.VerifyClaims(context.Background(), model.Subject{ID: "s1"}, []model.Claim{claim})
	if out[0].Status != model.VerificationContradicted {
		t.Errorf("status = %s, want CONTRADICTED without filings", out[0].Status)
	}
}

func TestVerifyBoardMembership(t *testing.T) {
	roster := []string{"Austin Community Foundation", "Red Cross of Central Texas"}
	v := NewVerifier(DefaultConfig(), map[model.ClaimType]Checker{
		model.ClaimBoardMembership: staticChecker(roster, "propublica"),
	})

	cases := []struct {
		org  string
		want model.VerificationStatus
	}{
		{"Austin Community Foundation", model.VerificationVerified},
		{"The Austin Community Foundation, Inc.", model.VerificationVerified},
		{"Community Foundation", model.VerificationPartial},
		{"Symphony Orchestra League", model.VerificationUnverifiable},
	}
	for _, tc := range cases {
		claim := model.Claim{Type: model.ClaimBoardMembership, Value: tc.org}
		out := v.VerifyClaims(context.Background(), model.Subject{ID: "s1"}, []model.Claim{claim})
		if out[0].Status != tc.want {
			t.Errorf("%q: status = %s, want %s", tc.org, out[0].Status, tc.want)
		}
	}
}
