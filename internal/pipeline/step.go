// Package pipeline runs a subject's research as a dependency-ordered series
// of checkpointed steps, so a crashed or rate-limited run resumes where it
// stopped instead of starting over.
package pipeline

import (
	"context"
	"sort"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/prospect-cli/internal/model"
)

// StepFunc executes one research step. deps holds the completed results of
// the step's declared dependencies, keyed by step name.
type StepFunc func(ctx context.Context, subject model.Subject, deps map[string]model.StepResult) (*model.StepResult, error)

// StepDefinition declares one step of the research pipeline.
type StepDefinition struct {
	// Name is the checkpoint key; stable across runs.
	Name string

	// DependsOn lists steps whose completed output this step consumes.
	DependsOn []string

	// Required steps must complete for the run to count as a success.
	// Optional steps may fail or be skipped without failing the run.
	Required bool

	// Service names the circuit breaker guarding this step's upstream.
	// Steps with no external upstream leave it empty.
	Service string

	// Timeout bounds one attempt. Zero means no per-step bound.
	Timeout time.Duration

	// Run does the work. A nil Run marks the step skipped at plan time.
	Run StepFunc
}

// orderSteps returns the steps in dependency order, breaking ties by name so
// execution order is deterministic. Unknown dependencies and cycles are
// planning errors.
func orderSteps(steps []StepDefinition) ([]StepDefinition, error) {
	byName := make(map[string]StepDefinition, len(steps))
	indegree := make(map[string]int, len(steps))
	dependents := make(map[string][]string, len(steps))

	for _, s := range steps {
		if _, dup := byName[s.Name]; dup {
			return nil, eris.Errorf("pipeline: duplicate step %q", s.Name)
		}
		byName[s.Name] = s
		indegree[s.Name] = 0
	}
	for _, s := range steps {
		for _, dep := range s.DependsOn {
			if _, ok := byName[dep]; !ok {
				return nil, eris.Errorf("pipeline: step %q depends on unknown step %q", s.Name, dep)
			}
			indegree[s.Name]++
			dependents[dep] = append(dependents[dep], s.Name)
		}
	}

	var ready []string
	for name, deg := range indegree {
		if deg == 0 {
			ready = append(ready, name)
		}
	}
	sort.Strings(ready)

	ordered := make([]StepDefinition, 0, len(steps))
	for len(ready) > 0 {
		name := ready[0]
		ready = ready[1:]
		ordered = append(ordered, byName[name])

		var unlocked []string
		for _, next := range dependents[name] {
			indegree[next]--
			if indegree[next] == 0 {
				unlocked = append(unlocked, next)
			}
		}
		sort.Strings(unlocked)
		ready = append(ready, unlocked...)
		sort.Strings(ready)
	}

	if len(ordered) != len(steps) {
		return nil, eris.New("pipeline: dependency cycle in step definitions")
	}
	return ordered, nil
}
