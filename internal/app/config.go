package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hyperifyio/reportbuilder/internal/extract"
	"github.com/hyperifyio/reportbuilder/internal/planner"
	"github.com/hyperifyio/reportbuilder/internal/search"
	"github.com/hyperifyio/reportbuilder/internal/synth"
)

// Config holds runtime configuration for the application. It is built once
// at process start (defaults, then config file, then environment, then
// flags) and passed by value to New.
type Config struct {
	// Search
	WebBrowser       string
	NumSearchResults int
	DomainBlacklist  []string
	BlacklistOn      bool
	SearchFile       string
	DuckDuckGoURL    string
	GoogleURL        string
	UserAgent        string
	SearchTimeout    time.Duration

	// Retrieval
	NumSubQuestions int
	PruneThreshold  float64
	PruneDynamic    bool
	PerSourceChars  int
	FetchTimeout    time.Duration
	MaxConcurrent   int

	// LLM
	LLMBaseURL        string
	LLMModel          string
	LLMAPIKey         string
	SynthModel        string
	WordCountReq      int
	SynthSystemPrompt string
	// LLMContextTokens overrides the context window estimated from the
	// model name when sizing the synthesis prompt.
	LLMContextTokens int

	// Front door
	ListenAddr     string
	RequestTimeout time.Duration

	// Logging
	LogFile string
	Verbose bool
}

// DefaultConfig returns the configuration used when nothing is overridden.
func DefaultConfig() Config {
	return Config{
		WebBrowser:       string(search.BrowserDuckDuckGo),
		NumSearchResults: 4,
		BlacklistOn:      true,
		UserAgent:        search.DefaultUserAgent,
		SearchTimeout:    10 * time.Second,

		NumSubQuestions: planner.DefaultSubQuestions,
		PruneThreshold:  extract.DefaultPruneThreshold,
		PruneDynamic:    true,
		PerSourceChars:  12000,
		FetchTimeout:    15 * time.Second,

		WordCountReq: synth.DefaultWordCount,

		ListenAddr:     ":8000",
		RequestTimeout: 5 * time.Minute,
	}
}

// EffectiveSynthModel returns SynthModel, falling back to LLMModel.
func (c Config) EffectiveSynthModel() string {
	if strings.TrimSpace(c.SynthModel) != "" {
		return c.SynthModel
	}
	return c.LLMModel
}

// ValidateConfig performs minimal schema validation. When requireModel is
// true a model must be configured for synthesis.
func ValidateConfig(cfg Config, requireModel bool) error {
	if _, err := search.ParseBrowser(cfg.WebBrowser); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if cfg.NumSearchResults <= 0 {
		return errors.New("config: NUM_SEARCH_RESULTS must be positive")
	}
	if cfg.NumSubQuestions <= 0 {
		return errors.New("config: NUM_SUB_QUESTIONS must be positive")
	}
	if cfg.WordCountReq < 0 || cfg.PerSourceChars < 0 || cfg.MaxConcurrent < 0 || cfg.LLMContextTokens < 0 {
		return errors.New("config: negative limits are not allowed")
	}
	if cfg.PruneThreshold < 0 {
		return errors.New("config: PRUNE_THRESHOLD must not be negative")
	}
	if requireModel && strings.TrimSpace(cfg.EffectiveSynthModel()) == "" {
		return errors.New("config: llm.model is required (or set LLM_MODEL)")
	}
	return nil
}
