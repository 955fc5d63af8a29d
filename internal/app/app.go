package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/reportbuilder/internal/aggregate"
	"github.com/hyperifyio/reportbuilder/internal/crawl"
	"github.com/hyperifyio/reportbuilder/internal/extract"
	"github.com/hyperifyio/reportbuilder/internal/fetch"
	"github.com/hyperifyio/reportbuilder/internal/filter"
	"github.com/hyperifyio/reportbuilder/internal/llm"
	"github.com/hyperifyio/reportbuilder/internal/planner"
	"github.com/hyperifyio/reportbuilder/internal/report"
	"github.com/hyperifyio/reportbuilder/internal/research"
	"github.com/hyperifyio/reportbuilder/internal/search"
	"github.com/hyperifyio/reportbuilder/internal/synth"
)

// ErrEmptyTopic is returned when a run is started without a topic.
var ErrEmptyTopic = errors.New("topic is empty")

// Researcher runs every sub-question of a topic and aggregates the result.
type Researcher interface {
	Run(ctx context.Context, topic string, subQuestions []string) (research.Output, error)
}

// ReportWriter turns research into a validated report.
type ReportWriter interface {
	Synthesize(ctx context.Context, in synth.Input) (report.Report, error)
}

// Result is everything one report run produces.
type Result struct {
	SubQuestions []string
	Research     research.Output
	Report       report.Report
	Markdown     string
}

type App struct {
	cfg        Config
	httpClient *http.Client
	planner    planner.Planner // nil when no model is configured
	fallback   planner.Planner
	searcher   aggregate.Searcher
	researcher Researcher
	writer     ReportWriter
}

// New wires the pipeline from cfg. A model is optional here; GenerateReport
// fails at synthesis time when none is configured.
func New(ctx context.Context, cfg Config) (*App, error) {
	if err := ValidateConfig(cfg, false); err != nil {
		return nil, err
	}
	browser, err := search.ParseBrowser(cfg.WebBrowser)
	if err != nil {
		return nil, err
	}
	hc := newHighThroughputHTTPClient()

	a := &App{cfg: cfg, httpClient: hc, fallback: planner.FallbackPlanner{}}

	provider := llm.NewOpenAIProvider(cfg.LLMBaseURL, cfg.LLMAPIKey, hc)
	if strings.TrimSpace(cfg.LLMModel) != "" {
		a.planner = &planner.LLMPlanner{Client: provider, Model: cfg.LLMModel, Verbose: cfg.Verbose}
		preflight(ctx, provider)
	}

	chain := search.FromOptions(search.Options{
		Browser:       browser,
		SearchFile:    cfg.SearchFile,
		DuckDuckGoURL: cfg.DuckDuckGoURL,
		GoogleURL:     cfg.GoogleURL,
		UserAgent:     cfg.UserAgent,
		HTTPClient:    hc,
	})
	a.searcher = chain

	fetcher := &fetch.Client{
		HTTPClient:        hc,
		UserAgent:         cfg.UserAgent,
		PerRequestTimeout: cfg.FetchTimeout,
		MaxConcurrent:     cfg.MaxConcurrent,
	}
	page := &extract.WebPage{
		Fetcher: fetcher,
		Extractor: extract.ReadabilityExtractor{Prune: extract.PruneOptions{
			Threshold: cfg.PruneThreshold,
			Dynamic:   cfg.PruneDynamic,
		}},
		MaxChars: cfg.PerSourceChars,
	}
	a.researcher = &aggregate.Aggregator{Pipeline: &aggregate.Pipeline{
		Searcher:      chain,
		Crawler:       &crawl.Orchestrator{Extractor: page, MaxConcurrent: cfg.MaxConcurrent},
		NumResults:    cfg.NumSearchResults,
		Filter:        a.filterOptions(),
		SearchTimeout: cfg.SearchTimeout,
	}}
	a.writer = &synth.Synthesizer{
		Client:        provider,
		Verbose:       cfg.Verbose,
		SystemPrompt:  cfg.SynthSystemPrompt,
		ContextTokens: cfg.LLMContextTokens,
	}
	return a, nil
}

// preflight lists models as a best-effort connectivity check.
func preflight(ctx context.Context, lister llm.ModelLister) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	models, err := lister.ListModels(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("LLM model list failed; continuing")
		return
	}
	if len(models.Models) > 0 {
		log.Info().Int("count", len(models.Models)).Msg("LLM models available")
	} else {
		log.Warn().Msg("LLM returned zero models")
	}
}

// Close releases idle connections held by the shared HTTP client.
func (a *App) Close() {
	if a.httpClient != nil {
		a.httpClient.CloseIdleConnections()
	}
}

// Config returns the configuration the app was built with.
func (a *App) Config() Config { return a.cfg }

func (a *App) filterOptions() filter.Options {
	return filter.Options{
		Enabled:           a.cfg.BlacklistOn,
		ConfiguredResults: a.cfg.NumSearchResults,
		Blacklist:         a.cfg.DomainBlacklist,
	}
}

// WithRunID attaches a logger tagged with a fresh run id to ctx unless ctx
// already carries one.
func WithRunID(ctx context.Context) context.Context {
	if l := zerolog.Ctx(ctx); l.GetLevel() != zerolog.Disabled {
		return ctx
	}
	l := log.With().Str("run_id", uuid.NewString()).Logger()
	return l.WithContext(ctx)
}

func runLogger(ctx context.Context) *zerolog.Logger {
	if l := zerolog.Ctx(ctx); l.GetLevel() != zerolog.Disabled {
		return l
	}
	return &log.Logger
}

// planSubQuestions asks the model first and falls back to the deterministic
// templates when the model is absent or fails.
func (a *App) planSubQuestions(ctx context.Context, topic string) []string {
	n := a.cfg.NumSubQuestions
	if a.planner != nil {
		qs, err := a.planner.Plan(ctx, topic, n)
		if err == nil && len(qs) > 0 {
			return qs
		}
		runLogger(ctx).Warn().Err(err).Msg("sub-question planning failed; using fallback templates")
	}
	qs, _ := a.fallback.Plan(ctx, topic, n)
	return qs
}

// Research plans sub-questions for topic and gathers sources for each.
func (a *App) Research(ctx context.Context, topic string) (research.Output, []string, error) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return research.Output{}, nil, ErrEmptyTopic
	}
	ctx = WithRunID(ctx)
	subQuestions := a.planSubQuestions(ctx, topic)
	runLogger(ctx).Info().Str("topic", topic).Int("subquestions", len(subQuestions)).Msg("research started")
	out, err := a.researcher.Run(ctx, topic, subQuestions)
	if err != nil {
		return research.Output{}, subQuestions, err
	}
	return out, subQuestions, nil
}

// GenerateReport runs research for topic and synthesizes a report from it.
func (a *App) GenerateReport(ctx context.Context, topic string) (Result, error) {
	ctx = WithRunID(ctx)
	out, subQuestions, err := a.Research(ctx, topic)
	if err != nil {
		return Result{SubQuestions: subQuestions}, err
	}
	rep, err := a.writer.Synthesize(ctx, synth.Input{
		Topic:     strings.TrimSpace(topic),
		Research:  out,
		WordCount: a.cfg.WordCountReq,
		Model:     a.cfg.EffectiveSynthModel(),
	})
	if err != nil {
		return Result{SubQuestions: subQuestions, Research: out}, fmt.Errorf("synthesize: %w", err)
	}
	md := report.Markdown(rep)
	runLogger(ctx).Info().
		Int("sections", len(rep.Sections)).
		Int("sources", len(rep.References.Sources)).
		Int("words", report.WordCount(rep)).
		Msg("report ready")
	return Result{SubQuestions: subQuestions, Research: out, Report: rep, Markdown: md}, nil
}

// Search runs the provider chain for query and applies normalization and the
// domain blacklist, without crawling anything.
func (a *App) Search(ctx context.Context, query string) ([]search.Result, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyTopic
	}
	if a.cfg.SearchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.cfg.SearchTimeout)
		defer cancel()
	}
	results, err := a.searcher.Search(ctx, query, a.cfg.NumSearchResults)
	if err != nil {
		return nil, err
	}
	return filter.Filter(aggregate.NormalizeResults(results), a.filterOptions()), nil
}
