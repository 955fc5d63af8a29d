// Package synth turns gathered research into a structured report with an
// OpenAI-compatible chat model.
package synth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	openai "github.com/sashabaranov/go-openai"

	"github.com/hyperifyio/reportbuilder/internal/budget"
	"github.com/hyperifyio/reportbuilder/internal/llm"
	"github.com/hyperifyio/reportbuilder/internal/report"
	"github.com/hyperifyio/reportbuilder/internal/research"
	"github.com/hyperifyio/reportbuilder/internal/validate"
)

// DefaultWordCount is the minimum report length requested from the model.
const DefaultWordCount = 800

// Input bundles all information needed to synthesize the report.
type Input struct {
	Topic     string
	Research  research.Output
	WordCount int
	Model     string
}

// Synthesizer calls the LLM to produce a Report per strict JSON contract.
type Synthesizer struct {
	Client  llm.Client
	Verbose bool
	// SystemPrompt, when non-empty, overrides the default system message.
	SystemPrompt string
	// ContextTokens is the model's context window. Zero means estimate it
	// from the model name.
	ContextTokens int
}

// ErrNoSubstantiveBody indicates the model produced no usable content.
var ErrNoSubstantiveBody = errors.New("no substantive body")

const defaultSystemMessage = `You are a professional report writer. Transform the provided research notes into a formal research report.
Rules:
- Rely ONLY on the provided research. Do not use outside knowledge.
- Quote the research when you copy from it. Do not invent quotes or sources.
- Use formal academic language and paragraphs, not bullet lists. No bold or italics.
- Give the report a title and an abstract, and use a clear header for each section.
- The references must list every source you used, and only URLs from the allowed list.
Respond with strict JSON only, no narration, matching:
{"title": string, "abstract": string, "sections": [{"header": string, "content": string}], "references": {"header": string, "sources": string[]}}`

// Synthesize requests a single report for in.Research. The returned report
// has passed validate.Report against in.Research.AllURLs; a report that
// fails is returned as a *validate.ValidationError and never repaired.
func (s *Synthesizer) Synthesize(ctx context.Context, in Input) (report.Report, error) {
	if s.Client == nil || strings.TrimSpace(in.Model) == "" {
		return report.Report{}, errors.New("synthesizer not configured")
	}
	if in.WordCount <= 0 {
		in.WordCount = DefaultWordCount
	}
	system := defaultSystemMessage
	if strings.TrimSpace(s.SystemPrompt) != "" {
		system = s.SystemPrompt
	}
	in.Research = s.fit(in, system)
	user, err := buildUserMessage(in)
	if err != nil {
		return report.Report{}, err
	}
	if s.Verbose {
		log.Debug().Str("stage", "synth").Str("model", in.Model).Int("system_len", len(system)).Int("user_len", len(user)).Msg("synth prompt")
	}

	req := openai.ChatCompletionRequest{
		Model: in.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject},
		Temperature:    0.2,
		N:              1,
	}
	// Transient-error retry: one short backoff attempt before failing.
	resp, err := s.Client.CreateChatCompletion(ctx, req)
	if err != nil {
		if sleeper := sleepFunc; sleeper != nil {
			sleeper(100)
		} else {
			defaultSleep(100)
		}
		resp, err = s.Client.CreateChatCompletion(ctx, req)
		if err != nil {
			return report.Report{}, fmt.Errorf("synthesis call (after retry): %w", err)
		}
	}
	out := trimCodeFence(llm.FirstContent(resp))
	if out == "" {
		return report.Report{}, ErrNoSubstantiveBody
	}
	var r report.Report
	if err := json.Unmarshal([]byte(out), &r); err != nil {
		return report.Report{}, &validate.ValidationError{Problems: []string{"report is not valid JSON: " + err.Error()}}
	}
	if err := validate.Report(r, in.Research.AllURLs); err != nil {
		return report.Report{}, err
	}
	if n := report.WordCount(r); n < in.WordCount {
		log.Warn().Int("words", n).Int("requested", in.WordCount).Msg("report shorter than requested")
	}
	return r, nil
}

// fit trims source contents so the prompt leaves room for the requested
// report within the model's context window.
func (s *Synthesizer) fit(in Input, system string) research.Output {
	window := s.ContextTokens
	if window <= 0 {
		window = budget.ModelContextTokens(in.Model)
	}
	avail := budget.InputBudget(window, budget.ReserveForWords(in.WordCount))
	avail -= budget.EstimateTokens(system) + promptFramingTokens
	fitted, trimmed := budget.FitResearch(in.Research, avail)
	if trimmed {
		log.Info().
			Int("context_tokens", window).
			Int("input_budget", avail).
			Int("sources", fitted.SourceCount()).
			Msg("research trimmed to fit the model context")
	}
	return fitted
}

// promptFramingTokens covers the instructions and URL list around the
// research JSON.
const promptFramingTokens = 400

func buildUserMessage(in Input) (string, error) {
	payload, err := json.MarshalIndent(in.Research, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode research: %w", err)
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "Write a professional report with references on the topic: %q.\n", strings.TrimSpace(in.Topic))
	fmt.Fprintf(&sb, "The report MUST be at least %d words.\n", in.WordCount)
	sb.WriteString("\nAllowed reference URLs (use only these, copied exactly):\n")
	for _, u := range in.Research.AllURLs {
		sb.WriteString("- ")
		sb.WriteString(u)
		sb.WriteString("\n")
	}
	sb.WriteString("\nResearch gathered for the topic, as JSON. Use it as your sole source of information:\n")
	sb.Write(payload)
	sb.WriteString("\n\nOutput only the JSON object.")
	return sb.String(), nil
}

func trimCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimPrefix(s, "json")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// sleepFunc allows tests to inject a deterministic sleep hook measured in milliseconds.
// When nil, defaultSleep is used.
var sleepFunc func(ms int)

func defaultSleep(ms int) {
	time.Sleep(time.Duration(ms) * time.Millisecond)
}
