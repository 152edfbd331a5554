package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/prospect-cli/internal/model"
	"github.com/sells-group/prospect-cli/pkg/anthropic"
	"github.com/sells-group/prospect-cli/pkg/perplexity"
)

const synthesisSystemPrompt = `You are a prospect research analyst. Given raw
findings about a person from public record sources, produce a single JSON
object describing them. Use only the provided findings; never invent facts.
Omit any field the findings do not support. Shape:

{
  "summary": {"narrative": "2-3 sentence professional summary"},
  "wealth": {"net_worth_estimate": number, "property_value": number},
  "giving": {"political_total": number, "philanthropic_focus": "string"},
  "securities": {"insider": bool, "insider_companies": ["..."]},
  "nonprofit": {"board_memberships": ["..."]},
  "career": {"employer": "string", "title": "string"}
}

Respond with only the JSON object.`

// maxParseRetries bounds corrective re-prompts when the model's reply is
// not valid JSON. After the budget is spent the run degrades to a
// narrative-only fallback instead of failing.
const maxParseRetries = 2

// Synthesizer merges record-source findings into a structured profile via
// the language model.
type Synthesizer struct {
	client anthropic.Client
	model  string
}

// NewSynthesizer builds a Synthesizer for the given model id.
func NewSynthesizer(client anthropic.Client, modelID string) *Synthesizer {
	return &Synthesizer{client: client, model: modelID}
}

// Synthesize produces the synthesis step result from the completed source
// steps. Invalid JSON from the model is corrected with a bounded re-prompt
// loop; exhaustion yields a low-authority narrative fallback rather than a
// failed step, so one stubborn reply cannot sink an otherwise good run.
func (s *Synthesizer) Synthesize(ctx context.Context, subject model.Subject, deps map[string]model.StepResult) (*model.StepResult, error) {
	findings := renderFindings(subject, deps)

	messages := []anthropic.Message{
		{Role: "user", Content: findings},
	}

	var usage anthropic.TokenUsage
	var lastText string
	for attempt := 0; attempt <= maxParseRetries; attempt++ {
		resp, err := s.client.CreateMessage(ctx, anthropic.MessageRequest{
			Model:     s.model,
			MaxTokens: 2048,
			System:    anthropic.BuildCachedSystemBlocks(synthesisSystemPrompt),
			Messages:  messages,
		})
		if err != nil {
			return nil, err
		}
		usage.Add(resp.Usage)
		lastText = resp.Text()

		data, perr := ExtractJSON(lastText)
		if perr == nil {
			usage.LogCost(s.model, StepSynthesis)
			return &model.StepResult{
				Data:       data,
				Sources:    []model.SourceRef{{Name: "anthropic"}},
				TokensUsed: usage.Total(),
			}, nil
		}

		zap.L().Warn("synthesis: model reply was not valid JSON",
			zap.String("subject_id", subject.ID),
			zap.Int("attempt", attempt+1),
			zap.Error(perr))
		messages = append(messages,
			anthropic.Message{Role: "assistant", Content: lastText},
			anthropic.Message{Role: "user", Content: fmt.Sprintf(
				"That reply was not parseable as JSON (%s). Respond again with only the JSON object, no prose and no code fences.",
				perr.Error())},
		)
	}

	// Degraded result: keep the narrative, flag the source so triangulation
	// scores it ESTIMATED.
	zap.L().Warn("synthesis: JSON retries exhausted, using narrative fallback",
		zap.String("subject_id", subject.ID))
	usage.LogCost(s.model, StepSynthesis)
	return &model.StepResult{
		Data: map[string]any{
			"summary": map[string]any{
				"narrative": strings.TrimSpace(lastText),
			},
		},
		Sources:    []model.SourceRef{{Name: "synthesis_fallback"}},
		TokensUsed: usage.Total(),
	}, nil
}

// renderFindings flattens the completed dependency outputs into the user
// prompt. Failed and skipped steps are named so the model knows coverage
// gaps are gaps, not absences of activity.
func renderFindings(subject model.Subject, deps map[string]model.StepResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Subject: %s", subject.Name)
	if subject.City != "" || subject.State != "" {
		fmt.Fprintf(&b, " (%s)", strings.TrimPrefix(strings.TrimSpace(subject.City+" "+subject.State), " "))
	}
	if subject.Employer != "" {
		fmt.Fprintf(&b, ", %s", subject.Employer)
	}
	if subject.Title != "" {
		fmt.Fprintf(&b, ", %s", subject.Title)
	}
	b.WriteString("\n\nFindings by source:\n")

	names := make([]string, 0, len(deps))
	for name := range deps {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		res := deps[name]
		switch res.Status {
		case model.StepCompleted:
			raw, err := json.Marshal(res.Data)
			if err != nil {
				raw = []byte("{}")
			}
			fmt.Fprintf(&b, "\n## %s\n%s\n", name, raw)
		default:
			fmt.Fprintf(&b, "\n## %s\n(no data: %s)\n", name, string(res.Status))
		}
	}
	return b.String()
}

// WebSearcher runs the open-web research step through the search model.
type WebSearcher struct {
	client perplexity.Client
}

// NewWebSearcher wraps a search client for the web research step.
func NewWebSearcher(client perplexity.Client) *WebSearcher {
	return &WebSearcher{client: client}
}

const webResearchPrompt = `Research the person below using public web
sources. Report what you find as a JSON object with this shape, omitting
fields you cannot support:

{
  "wealth": {"net_worth_estimate": number},
  "career": {"employer": "string", "title": "string"},
  "giving": {"philanthropic_focus": "string"},
  "nonprofit": {"board_memberships": ["..."]}
}

Only include facts about this specific person; if sources describe a
different person with the same name, leave the field out. Respond with only
the JSON object.

Person: %s`

// Research queries the web for the subject and returns the parsed findings
// with the answer's citations attached as sources.
func (w *WebSearcher) Research(ctx context.Context, subject model.Subject) (*model.StepResult, error) {
	var who strings.Builder
	who.WriteString(subject.Name)
	if subject.City != "" {
		fmt.Fprintf(&who, ", %s", subject.City)
	}
	if subject.State != "" {
		fmt.Fprintf(&who, ", %s", subject.State)
	}
	if subject.Employer != "" {
		fmt.Fprintf(&who, ", works at %s", subject.Employer)
	}
	if subject.Title != "" {
		fmt.Fprintf(&who, " as %s", subject.Title)
	}

	resp, err := w.client.ChatCompletion(ctx, perplexity.ChatCompletionRequest{
		Messages: []perplexity.Message{
			{Role: "user", Content: fmt.Sprintf(webResearchPrompt, who.String())},
		},
	})
	if err != nil {
		return nil, err
	}

	tokens := resp.Usage.PromptTokens + resp.Usage.CompletionTokens

	data, perr := ExtractJSON(resp.Answer())
	if perr != nil {
		zap.L().Warn("web research: answer was not valid JSON, dropping",
			zap.String("subject_id", subject.ID),
			zap.Error(perr))
		return &model.StepResult{
			Data:       map[string]any{},
			Sources:    []model.SourceRef{{Name: "web_search"}},
			TokensUsed: tokens,
		}, nil
	}

	sources := []model.SourceRef{{Name: "web_search"}}
	for _, url := range resp.Citations {
		sources = append(sources, model.SourceRef{Name: "web_search", URL: url})
	}
	return &model.StepResult{
		Data:       data,
		Sources:    sources,
		TokensUsed: tokens,
	}, nil
}
