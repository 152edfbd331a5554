package pipeline

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/prospect-cli/internal/model"
	"github.com/sells-group/prospect-cli/internal/report"
	"github.com/sells-group/prospect-cli/internal/triangulate"
	"github.com/sells-group/prospect-cli/internal/verify"
)

// Researcher runs the full research flow for one subject: checkpointed
// steps, triangulated merge, claim verification, report rendering.
type Researcher struct {
	executor *Executor
	steps    []StepDefinition
	engine   *triangulate.Engine
	verifier *verify.Verifier
}

// NewResearcher assembles a Researcher from its collaborators.
func NewResearcher(executor *Executor, steps []StepDefinition, engine *triangulate.Engine, verifier *verify.Verifier) *Researcher {
	return &Researcher{
		executor: executor,
		steps:    steps,
		engine:   engine,
		verifier: verifier,
	}
}

// Research runs the subject end to end. The error return covers planning
// and infrastructure problems only; individual step failures land in the
// result's FailedSteps with Success false when a required step is among
// them.
func (r *Researcher) Research(ctx context.Context, subject model.Subject) (*model.ResearchResult, error) {
	if !subject.Valid() {
		return nil, eris.New("pipeline: subject has no name")
	}
	if subject.ID == "" {
		subject.ID = uuid.NewString()
	}

	log := zap.L().With(zap.String("subject_id", subject.ID), zap.String("subject", subject.Name))
	started := time.Now()
	runID := uuid.NewString()

	results, err := r.executor.ExecuteSteps(ctx, subject, r.steps)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: execute steps")
	}

	res := &model.ResearchResult{
		RunID:     runID,
		Subject:   subject,
		StartedAt: started,
	}

	required := make(map[string]bool, len(r.steps))
	for _, def := range r.steps {
		required[def.Name] = def.Required
	}

	res.Success = true
	for name, sr := range results {
		switch sr.Status {
		case model.StepCompleted:
			res.CompletedSteps = append(res.CompletedSteps, name)
		case model.StepFailed:
			res.FailedSteps = append(res.FailedSteps, name)
			if required[name] {
				res.Success = false
			}
		case model.StepSkipped:
			res.SkippedSteps = append(res.SkippedSteps, name)
			if required[name] {
				res.Success = false
			}
		}
		res.TotalTokens += sr.TokensUsed
	}
	sort.Strings(res.CompletedSteps)
	sort.Strings(res.FailedSteps)
	sort.Strings(res.SkippedSteps)

	if len(res.CompletedSteps) == 0 {
		res.Duration = time.Since(started)
		log.Warn("pipeline: no steps completed, nothing to merge")
		return res, nil
	}

	res.Profile = r.engine.Merge(subject.ID, results)

	claims := verify.ExtractClaims(res.Profile)
	verifications := r.verifier.VerifyClaims(ctx, subject, claims)
	res.Verification = verify.BuildReport(subject.ID, verifications)

	res.Report = report.Render(subject, res.Profile, res.Verification)
	res.Duration = time.Since(started)

	log.Info("pipeline: research complete",
		zap.String("run_id", runID),
		zap.Bool("success", res.Success),
		zap.Int("completed", len(res.CompletedSteps)),
		zap.Int("failed", len(res.FailedSteps)),
		zap.Int("skipped", len(res.SkippedSteps)),
		zap.Float64("confidence", res.Profile.OverallConfidence),
		zap.Int("tokens", res.TotalTokens),
		zap.Duration("duration", res.Duration))
	return res, nil
}
