package verify

import (
	"context"

	"github.com/sells-group/prospect-cli/internal/identity"
	"github.com/sells-group/prospect-cli/internal/model"
	"github.com/sells-group/prospect-cli/pkg/fec"
	"github.com/sells-group/prospect-cli/pkg/propublica"
	"github.com/sells-group/prospect-cli/pkg/sec"
)

// DefaultCheckers wires the authoritative-source clients to their claim
// types. Nil clients are left out; their claim types fall back to
// UNVERIFIABLE in the verifier. Net worth and property value never get a
// checker: no authoritative per-person record exists for either.
func DefaultCheckers(fecClient fec.Client, secClient sec.Client, ppClient propublica.Client) map[model.ClaimType]Checker {
	checkers := make(map[model.ClaimType]Checker)
	if fecClient != nil {
		checkers[model.ClaimPoliticalGiving] = NewFECChecker(fecClient)
	}
	if secClient != nil {
		checkers[model.ClaimInsiderStatus] = NewSECChecker(secClient)
	}
	if ppClient != nil {
		checkers[model.ClaimBoardMembership] = NewProPublicaChecker(ppClient)
	}
	return checkers
}

// NewFECChecker answers political giving claims with the subject's itemized
// contribution total from the FEC, identity-filtered the same way the
// research step filters, so claim and record disagree only on substance.
func NewFECChecker(client fec.Client) Checker {
	d := identity.NewDisambiguator()
	return CheckerFunc(func(ctx context.Context, subject model.Subject, _ model.Claim) (*Result, error) {
		page, err := client.Contributions(ctx, fec.ContributionQuery{
			ContributorName: subject.Name,
			State:           subject.State,
		})
		if err != nil {
			return nil, err
		}

		var total float64
		for _, contrib := range page.Results {
			score := d.Score(subject, identity.Candidate{
				Name:     contrib.ContributorName,
				City:     contrib.ContributorCity,
				State:    contrib.ContributorState,
				Employer: contrib.ContributorEmployer,
				Source:   "fec",
			})
			if score.LikelyMatch {
				total += contrib.Amount
			}
		}
		return &Result{Value: total, Source: "fec"}, nil
	})
}

// NewSECChecker answers insider claims by re-querying EDGAR full-text
// search for section 16 filings naming the subject.
func NewSECChecker(client sec.Client) Checker {
	return CheckerFunc(func(ctx context.Context, subject model.Subject, _ model.Claim) (*Result, error) {
		filings, err := client.SearchInsiderFilings(ctx, sec.InsiderQuery{
			Name:    subject.Name,
			Company: subject.Employer,
		})
		if err != nil {
			return nil, err
		}
		return &Result{Value: filings.HasInsiderFilings(), Source: "sec_edgar"}, nil
	})
}

// NewProPublicaChecker answers board membership claims with the names of
// organizations the Nonprofit Explorer knows under the claimed name. The
// verifier's similarity rule decides how close a match has to be.
func NewProPublicaChecker(client propublica.Client) Checker {
	return CheckerFunc(func(ctx context.Context, _ model.Subject, claim model.Claim) (*Result, error) {
		org, _ := claim.Value.(string)
		if org == "" {
			return &Result{Value: []string{}, Source: "propublica"}, nil
		}
		results, err := client.SearchOrganizations(ctx, org)
		if err != nil {
			return nil, err
		}
		names := make([]string, 0, len(results.Organizations))
		for _, match := range results.Organizations {
			names = append(names, match.Name)
		}
		return &Result{Value: names, Source: "propublica"}, nil
	})
}
