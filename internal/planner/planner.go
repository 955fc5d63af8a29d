// Package planner decomposes a research topic into sub-questions.
package planner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/rs/zerolog/log"
	openai "github.com/sashabaranov/go-openai"

	"github.com/hyperifyio/reportbuilder/internal/llm"
)

// DefaultSubQuestions is the number of sub-questions requested per topic.
const DefaultSubQuestions = 5

// Planner produces up to n sub-questions for a topic.
type Planner interface {
	Plan(ctx context.Context, topic string, n int) ([]string, error)
}

// ErrInsufficientOutput means the model produced no usable sub-question.
var ErrInsufficientOutput = errors.New("insufficient planner output")

// LLMPlanner calls an OpenAI-compatible endpoint and enforces a JSON-only contract.
type LLMPlanner struct {
	Client  llm.Client
	Model   string
	Verbose bool
}

const systemMessage = "You are a research assistant. Break the user's topic into logical, self-contained sub-questions that can each be answered with a web search. Respond with strict JSON only, no narration. The JSON schema is {\"subquestions\": string[]}."

type planJSON struct {
	SubQuestions []string `json:"subquestions"`
}

// Plan implements Planner using the chat completions API. If the model returns
// non-JSON or the payload cannot be parsed, an error is returned so callers can
// choose to fall back.
func (p *LLMPlanner) Plan(ctx context.Context, topic string, n int) ([]string, error) {
	if p.Client == nil || p.Model == "" {
		return nil, errors.New("planner not configured")
	}
	if n <= 0 {
		n = DefaultSubQuestions
	}
	user := buildUserPrompt(topic, n)
	if p.Verbose {
		// Log prompt skeleton only
		log.Debug().Str("stage", "planner").Str("model", p.Model).Int("system_len", len(systemMessage)).Int("user_len", len(user)).Msg("planner prompt")
	}
	resp, err := p.Client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: p.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemMessage},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject},
		Temperature:    0.1,
		N:              1,
	})
	if err != nil {
		return nil, fmt.Errorf("planner call: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("no choices")
	}
	var plan planJSON
	raw := trimCodeFence(llm.FirstContent(resp))
	if err := json.Unmarshal([]byte(raw), &plan); err != nil {
		return nil, fmt.Errorf("parse planner json: %w", err)
	}
	out := sanitize(plan.SubQuestions, n)
	if len(out) == 0 {
		return nil, ErrInsufficientOutput
	}
	return out, nil
}

// FallbackPlanner produces deterministic sub-questions when the LLM planner
// is unavailable or returns invalid output.
type FallbackPlanner struct{}

var fallbackTemplates = []string{
	"What is %s?",
	"What is the background and history of %s?",
	"How does %s work?",
	"What are the main applications and examples of %s?",
	"What are the limitations and criticisms of %s?",
	"What are the alternatives to %s?",
	"What is the current research and outlook for %s?",
}

func (FallbackPlanner) Plan(_ context.Context, topic string, n int) ([]string, error) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		topic = "the research topic"
	}
	if n <= 0 {
		n = DefaultSubQuestions
	}
	out := make([]string, 0, n)
	for _, tmpl := range fallbackTemplates {
		if len(out) == n {
			break
		}
		out = append(out, fmt.Sprintf(tmpl, topic))
	}
	return out, nil
}

func buildUserPrompt(topic string, n int) string {
	var sb strings.Builder
	sb.WriteString("Topic: ")
	sb.WriteString(strings.TrimSpace(topic))
	fmt.Fprintf(&sb, "\nProduce between 1 and %d sub-questions.", n)
	sb.WriteString("\nEach sub-question must be a complete question on its own line of research; do not number them.")
	return sb.String()
}

var listMarker = regexp.MustCompile(`^\s*(?:[-*]|\d+[.)])\s+`)

// sanitize trims entries, drops empties and case-insensitive duplicates, and
// caps the list at n.
func sanitize(in []string, n int) []string {
	out := make([]string, 0, len(in))
	seen := map[string]struct{}{}
	for _, q := range in {
		s := strings.TrimSpace(listMarker.ReplaceAllString(q, ""))
		if s == "" {
			continue
		}
		key := strings.ToLower(s)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, s)
		if len(out) == n {
			break
		}
	}
	return out
}

// trimCodeFence unwraps a ```json fenced block some models emit despite the
// JSON response format.
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
