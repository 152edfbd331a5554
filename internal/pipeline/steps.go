package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/sells-group/prospect-cli/internal/identity"
	"github.com/sells-group/prospect-cli/internal/model"
	"github.com/sells-group/prospect-cli/pkg/attom"
	"github.com/sells-group/prospect-cli/pkg/fec"
	"github.com/sells-group/prospect-cli/pkg/propublica"
	"github.com/sells-group/prospect-cli/pkg/sec"
)

// Circuit breaker service names. Each upstream gets its own breaker so a
// flapping FEC API does not open the gate for EDGAR.
const (
	ServiceFEC        = "fec"
	ServiceSEC        = "sec_edgar"
	ServiceProPublica = "propublica"
	ServiceAttom      = "attom"
	ServicePerplexity = "perplexity"
	ServiceAnthropic  = "anthropic"
)

// Step names double as checkpoint keys; renaming one orphans prior
// checkpoints for that step.
const (
	StepFECContributions = "fec_contributions"
	StepSECInsider       = "sec_insider"
	StepNonprofitBoards  = "nonprofit_boards"
	StepPropertyRecords  = "property_records"
	StepWebResearch      = "web_research"
	StepSynthesis        = "synthesis"
)

// Clients holds the upstream clients the step definitions wire in. A nil
// client leaves its step unconfigured; the executor marks it skipped.
type Clients struct {
	FEC         fec.Client
	SEC         sec.Client
	ProPublica  propublica.Client
	Attom       attom.Client
	Synthesizer *Synthesizer
	WebSearch   *WebSearcher
}

// DefaultSteps builds the research pipeline for the configured clients.
// The four record sources run in parallel; synthesis waits for all of them
// (including web research) and is the only required step.
func DefaultSteps(c Clients) []StepDefinition {
	sourceSteps := []string{
		StepFECContributions,
		StepSECInsider,
		StepNonprofitBoards,
		StepPropertyRecords,
		StepWebResearch,
	}

	steps := []StepDefinition{
		{
			Name:    StepFECContributions,
			Service: ServiceFEC,
			Timeout: 30 * time.Second,
			Run:     fecStep(c.FEC),
		},
		{
			Name:    StepSECInsider,
			Service: ServiceSEC,
			Timeout: 30 * time.Second,
			Run:     secStep(c.SEC),
		},
		{
			Name:    StepNonprofitBoards,
			Service: ServiceProPublica,
			Timeout: 30 * time.Second,
			Run:     propublicaStep(c.ProPublica),
		},
		{
			Name:    StepPropertyRecords,
			Service: ServiceAttom,
			Timeout: 30 * time.Second,
			Run:     attomStep(c.Attom),
		},
		{
			Name:    StepWebResearch,
			Service: ServicePerplexity,
			Timeout: 90 * time.Second,
			Run:     webResearchStep(c.WebSearch),
		},
		{
			Name:      StepSynthesis,
			DependsOn: sourceSteps,
			Required:  true,
			Service:   ServiceAnthropic,
			Timeout:   3 * time.Minute,
			Run:       synthesisStep(c.Synthesizer),
		},
	}
	return steps
}

// fecStep pulls itemized Schedule A contributions matching the subject's
// name, then drops records the disambiguator attributes to a different
// person before summing.
func fecStep(client fec.Client) StepFunc {
	if client == nil {
		return nil
	}
	d := identity.NewDisambiguator()
	return func(ctx context.Context, subject model.Subject, _ map[string]model.StepResult) (*model.StepResult, error) {
		page, err := client.Contributions(ctx, fec.ContributionQuery{
			ContributorName: subject.Name,
			State:           subject.State,
		})
		if err != nil {
			return nil, err
		}

		var total float64
		var count int
		recipients := make(map[string]bool)
		for _, contrib := range page.Results {
			score := d.Score(subject, identity.Candidate{
				Name:     contrib.ContributorName,
				City:     contrib.ContributorCity,
				State:    contrib.ContributorState,
				Employer: contrib.ContributorEmployer,
				Source:   "fec",
			})
			if !score.LikelyMatch {
				continue
			}
			total += contrib.Amount
			count++
			if name := contrib.Recipient(); name != "" {
				recipients[name] = true
			}
		}

		names := make([]string, 0, len(recipients))
		for name := range recipients {
			names = append(names, name)
		}
		sort.Strings(names)

		return &model.StepResult{
			Data: map[string]any{
				"giving": map[string]any{
					"political_total":      total,
					"contribution_count":   count,
					"political_recipients": names,
				},
			},
			Sources: []model.SourceRef{{Name: "fec"}},
		}, nil
	}
}

// secStep checks EDGAR full-text search for section 16 insider filings
// naming the subject, narrowed by employer when one is on file.
func secStep(client sec.Client) StepFunc {
	if client == nil {
		return nil
	}
	return func(ctx context.Context, subject model.Subject, _ map[string]model.StepResult) (*model.StepResult, error) {
		filings, err := client.SearchInsiderFilings(ctx, sec.InsiderQuery{
			Name:    subject.Name,
			Company: subject.Employer,
		})
		if err != nil {
			return nil, err
		}

		data := map[string]any{
			"securities": map[string]any{
				"insider": filings.HasInsiderFilings(),
			},
		}
		if companies := filings.Companies(); len(companies) > 0 {
			data["securities"].(map[string]any)["insider_companies"] = companies
		}
		return &model.StepResult{
			Data:    data,
			Sources: []model.SourceRef{{Name: "sec_edgar"}},
		}, nil
	}
}

// propublicaStep searches the Nonprofit Explorer for foundations carrying
// the subject's surname (family foundations are the common case for major
// donors). Matches become board membership observations; the verifier
// re-checks them later against the same registry.
func propublicaStep(client propublica.Client) StepFunc {
	if client == nil {
		return nil
	}
	return func(ctx context.Context, subject model.Subject, _ map[string]model.StepResult) (*model.StepResult, error) {
		last := subject.LastName()
		if last == "" {
			return &model.StepResult{Status: model.StepSkipped, SkipReason: "subject has no surname"}, nil
		}

		results, err := client.SearchOrganizations(ctx, last+" foundation")
		if err != nil {
			return nil, err
		}

		lower := strings.ToLower(last)
		var orgs []string
		for _, org := range results.Organizations {
			if !strings.Contains(strings.ToLower(org.Name), lower) {
				continue
			}
			if subject.State != "" && org.State != "" && !strings.EqualFold(org.State, subject.State) {
				continue
			}
			orgs = append(orgs, org.Name)
		}
		if len(orgs) == 0 {
			return &model.StepResult{
				Data:    map[string]any{},
				Sources: []model.SourceRef{{Name: "propublica"}},
			}, nil
		}

		return &model.StepResult{
			Data: map[string]any{
				"nonprofit": map[string]any{
					"board_memberships": orgs,
				},
			},
			Sources: []model.SourceRef{{Name: "propublica"}},
		}, nil
	}
}

// attomStep looks up the subject's property record. Needs a street address;
// without one the step is skipped rather than guessed.
func attomStep(client attom.Client) StepFunc {
	if client == nil {
		return nil
	}
	return func(ctx context.Context, subject model.Subject, _ map[string]model.StepResult) (*model.StepResult, error) {
		if subject.Address == "" || subject.City == "" || subject.State == "" {
			return &model.StepResult{Status: model.StepSkipped, SkipReason: "no street address on file"}, nil
		}

		property, err := client.PropertyDetail(ctx, attom.PropertyQuery{
			Address1: subject.Address,
			Address2: fmt.Sprintf("%s, %s", subject.City, subject.State),
		})
		if err != nil {
			if errors.Is(err, attom.ErrNotFound) {
				return &model.StepResult{Status: model.StepSkipped, SkipReason: "no property record at address"}, nil
			}
			return nil, err
		}

		data := map[string]any{
			"wealth": map[string]any{
				"property_value": property.EstimatedValue(),
			},
		}
		if property.Summary.YearBuilt > 0 {
			data["wealth"].(map[string]any)["property_year_built"] = property.Summary.YearBuilt
		}
		return &model.StepResult{
			Data:    data,
			Sources: []model.SourceRef{{Name: "attom"}},
		}, nil
	}
}

// webResearchStep asks the search model for a structured profile of the
// subject. Broad coverage, lower authority; triangulation weighs it down.
func webResearchStep(searcher *WebSearcher) StepFunc {
	if searcher == nil {
		return nil
	}
	return func(ctx context.Context, subject model.Subject, _ map[string]model.StepResult) (*model.StepResult, error) {
		return searcher.Research(ctx, subject)
	}
}

// synthesisStep merges the record-source outputs into a narrative profile
// via the language model.
func synthesisStep(s *Synthesizer) StepFunc {
	if s == nil {
		return nil
	}
	return func(ctx context.Context, subject model.Subject, deps map[string]model.StepResult) (*model.StepResult, error) {
		return s.Synthesize(ctx, subject, deps)
	}
}
