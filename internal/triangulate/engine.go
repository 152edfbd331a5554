package triangulate

import (
	"sort"

	"go.uber.org/zap"

	"github.com/sells-group/prospect-cli/internal/model"
)

// Engine merges completed step outputs into one triangulated profile.
type Engine struct {
	scorer *Scorer
}

// NewEngine creates a triangulation engine over the given scorer.
func NewEngine(scorer *Scorer) *Engine {
	return &Engine{scorer: scorer}
}

// Merge fuses the data of completed steps into a MergedProfile. Each step's
// fields are attributed to the step's first source reference, or to the step
// name when it reported none.
func (e *Engine) Merge(subjectID string, steps map[string]model.StepResult) *model.MergedProfile {
	// field path -> all observations across steps
	byPath := make(map[string][]model.Observation)
	seenSources := make(map[string]model.SourceRef)

	names := make([]string, 0, len(steps))
	for name := range steps {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		res := steps[name]
		if res.Status != model.StepCompleted || len(res.Data) == 0 {
			continue
		}
		src := model.SourceRef{Name: name}
		if len(res.Sources) > 0 {
			src = res.Sources[0]
		}
		for _, ref := range res.Sources {
			seenSources[ref.Key()] = ref
		}
		for path, value := range Flatten(res.Data) {
			if value == nil {
				continue
			}
			byPath[path] = append(byPath[path], model.Observation{Value: value, Source: src})
		}
	}

	profile := &model.MergedProfile{
		SubjectID: subjectID,
		Fields:    make(map[string]model.FieldConfidence, len(byPath)),
	}

	flat := make(map[string]any, len(byPath))
	var scoreSum float64
	for path, observations := range byPath {
		fc := e.scorer.ResolveField(observations)
		profile.Fields[path] = fc
		flat[path] = fc.Value
		scoreSum += fc.Score
		if fc.Level == model.ConfidenceConflicted {
			profile.Conflicts = append(profile.Conflicts, model.Conflict{
				FieldPath: path,
				Note:      fc.ConflictNote,
			})
		}
	}
	sort.Slice(profile.Conflicts, func(i, j int) bool {
		return profile.Conflicts[i].FieldPath < profile.Conflicts[j].FieldPath
	})

	profile.Record = Unflatten(flat)
	if len(byPath) > 0 {
		profile.OverallConfidence = scoreSum / float64(len(byPath))
	}

	keys := make([]string, 0, len(seenSources))
	for k := range seenSources {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		profile.Sources = append(profile.Sources, seenSources[k])
	}

	zap.L().Debug("triangulated profile",
		zap.String("subject_id", subjectID),
		zap.Int("fields", len(profile.Fields)),
		zap.Int("conflicts", len(profile.Conflicts)),
		zap.Float64("overall_confidence", profile.OverallConfidence))

	return profile
}
