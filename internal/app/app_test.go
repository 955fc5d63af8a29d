package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/reportbuilder/internal/planner"
	"github.com/hyperifyio/reportbuilder/internal/report"
	"github.com/hyperifyio/reportbuilder/internal/research"
	"github.com/hyperifyio/reportbuilder/internal/search"
	"github.com/hyperifyio/reportbuilder/internal/synth"
)

type fakePlanner struct {
	qs  []string
	err error
}

func (f fakePlanner) Plan(context.Context, string, int) ([]string, error) { return f.qs, f.err }

type fakeResearcher struct {
	got []string
	out research.Output
	err error
}

func (f *fakeResearcher) Run(_ context.Context, topic string, qs []string) (research.Output, error) {
	f.got = qs
	if f.err != nil {
		return research.Output{}, f.err
	}
	out := f.out
	out.OriginalQuery = topic
	return out, nil
}

type fakeWriter struct {
	calls int
	in    synth.Input
	rep   report.Report
	err   error
}

func (f *fakeWriter) Synthesize(_ context.Context, in synth.Input) (report.Report, error) {
	f.calls++
	f.in = in
	return f.rep, f.err
}

type fakeSearch struct{ results []search.Result }

func (f fakeSearch) Search(_ context.Context, _ string, limit int) ([]search.Result, error) {
	if len(f.results) > limit {
		return f.results[:limit], nil
	}
	return f.results, nil
}

func tidesOutput() research.Output {
	out, _ := research.NewOutput("tides", []research.Section{{
		SubQuestion: "What causes tides?",
		Sources: []research.SourceSection{{
			Title: "Tides", Content: "The moon pulls the oceans.", URL: "https://ocean.example/tides",
		}},
	}})
	return out
}

func tidesReport() report.Report {
	return report.Report{
		Title:    "Tides",
		Abstract: "How the moon moves the sea.",
		Sections: []report.Section{{Header: "Causes", Content: "Gravity."}},
		References: report.References{
			Header:  "References",
			Sources: []string{"https://ocean.example/tides"},
		},
	}
}

func newTestApp(p planner.Planner, r Researcher, w ReportWriter) *App {
	cfg := DefaultConfig()
	cfg.LLMModel = "test-model"
	cfg.WordCountReq = 300
	return &App{cfg: cfg, planner: p, fallback: planner.FallbackPlanner{}, researcher: r, writer: w}
}

func TestGenerateReport_HappyPath(t *testing.T) {
	r := &fakeResearcher{out: tidesOutput()}
	w := &fakeWriter{rep: tidesReport()}
	a := newTestApp(fakePlanner{qs: []string{"What causes tides?"}}, r, w)

	res, err := a.GenerateReport(context.Background(), "  tides ")
	if err != nil {
		t.Fatalf("GenerateReport: %v", err)
	}
	if diff := cmp.Diff([]string{"What causes tides?"}, r.got); diff != "" {
		t.Fatalf("sub-questions mismatch (-want +got):\n%s", diff)
	}
	if w.in.Topic != "tides" || w.in.WordCount != 300 || w.in.Model != "test-model" {
		t.Fatalf("unexpected synth input: %+v", w.in)
	}
	if diff := cmp.Diff(tidesOutput().AllURLs, w.in.Research.AllURLs); diff != "" {
		t.Fatalf("research not forwarded (-want +got):\n%s", diff)
	}
	if !strings.HasPrefix(res.Markdown, "# Tides") {
		t.Fatalf("markdown should start with the title, got %q", res.Markdown)
	}
	if res.Report.Title != "Tides" {
		t.Fatalf("unexpected report: %+v", res.Report)
	}
}

func TestGenerateReport_PlannerFailureUsesFallback(t *testing.T) {
	r := &fakeResearcher{out: tidesOutput()}
	a := newTestApp(fakePlanner{err: planner.ErrInsufficientOutput}, r, &fakeWriter{rep: tidesReport()})
	if _, err := a.GenerateReport(context.Background(), "tides"); err != nil {
		t.Fatalf("GenerateReport: %v", err)
	}
	want, _ := planner.FallbackPlanner{}.Plan(context.Background(), "tides", a.cfg.NumSubQuestions)
	if diff := cmp.Diff(want, r.got); diff != "" {
		t.Fatalf("fallback sub-questions mismatch (-want +got):\n%s", diff)
	}
}

func TestGenerateReport_NoModelUsesFallback(t *testing.T) {
	r := &fakeResearcher{out: tidesOutput()}
	a := newTestApp(nil, r, &fakeWriter{rep: tidesReport()})
	if _, err := a.GenerateReport(context.Background(), "tides"); err != nil {
		t.Fatalf("GenerateReport: %v", err)
	}
	if len(r.got) != a.cfg.NumSubQuestions {
		t.Fatalf("expected %d fallback sub-questions, got %d", a.cfg.NumSubQuestions, len(r.got))
	}
}

func TestGenerateReport_RetrievalErrorSkipsSynthesis(t *testing.T) {
	r := &fakeResearcher{err: &research.RetrievalError{Query: "tides", Attempted: 5, Err: research.ErrNoSections}}
	w := &fakeWriter{rep: tidesReport()}
	a := newTestApp(fakePlanner{qs: []string{"q"}}, r, w)

	_, err := a.GenerateReport(context.Background(), "tides")
	var re *research.RetrievalError
	if !errors.As(err, &re) {
		t.Fatalf("expected RetrievalError, got %v", err)
	}
	if w.calls != 0 {
		t.Fatalf("synthesis should not run, ran %d times", w.calls)
	}
}

func TestGenerateReport_SynthesisErrorKeepsResearch(t *testing.T) {
	w := &fakeWriter{err: synth.ErrNoSubstantiveBody}
	a := newTestApp(fakePlanner{qs: []string{"q"}}, &fakeResearcher{out: tidesOutput()}, w)

	res, err := a.GenerateReport(context.Background(), "tides")
	if !errors.Is(err, synth.ErrNoSubstantiveBody) {
		t.Fatalf("expected ErrNoSubstantiveBody, got %v", err)
	}
	if len(res.Research.Sections) != 1 {
		t.Fatalf("research should be returned alongside the error: %+v", res.Research)
	}
}

func TestGenerateReport_EmptyTopic(t *testing.T) {
	a := newTestApp(nil, &fakeResearcher{}, &fakeWriter{})
	if _, err := a.GenerateReport(context.Background(), "   "); !errors.Is(err, ErrEmptyTopic) {
		t.Fatalf("expected ErrEmptyTopic, got %v", err)
	}
}

func TestSearch_NormalizesAndFilters(t *testing.T) {
	a := newTestApp(nil, nil, nil)
	a.cfg.NumSearchResults = 5
	a.cfg.DomainBlacklist = []string{"spam.example"}
	a.searcher = fakeSearch{results: []search.Result{
		{Title: "A", URL: "https://a.example/page#frag"},
		{Title: "Spam", URL: "https://spam.example/buy"},
		{Title: "A again", URL: "https://a.example/page"},
		{Title: "B", URL: "https://b.example/"},
	}}

	got, err := a.Search(context.Background(), "tides")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	var urls []string
	for _, r := range got {
		urls = append(urls, r.URL)
	}
	if diff := cmp.Diff([]string{"https://a.example/page", "https://b.example/"}, urls); diff != "" {
		t.Fatalf("urls mismatch (-want +got):\n%s", diff)
	}
}

func TestNew_WithoutModelHasNoLLMPlanner(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SearchFile = filepath.Join(t.TempDir(), "results.json")
	a, err := New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Close()
	if a.planner != nil {
		t.Fatalf("no model configured, planner should be nil")
	}
	if a.researcher == nil || a.writer == nil || a.searcher == nil {
		t.Fatalf("pipeline not wired: %+v", a)
	}
	if a.Config().NumSubQuestions != cfg.NumSubQuestions {
		t.Fatalf("config not kept")
	}
}

func TestNew_RejectsInvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.WebBrowser = "bing"
	if _, err := New(context.Background(), cfg); err == nil {
		t.Fatalf("expected config error")
	}
}

func TestWithRunID_KeepsExistingLogger(t *testing.T) {
	ctx := WithRunID(context.Background())
	if zerolog.Ctx(ctx).GetLevel() == zerolog.Disabled {
		t.Fatalf("expected a logger in context")
	}
	if again := WithRunID(ctx); again != ctx {
		t.Fatalf("existing run logger should be kept")
	}
}

func TestSetupLogging_WritesLogFile(t *testing.T) {
	prev, prevLevel := log.Logger, zerolog.GlobalLevel()
	t.Cleanup(func() {
		log.Logger = prev
		zerolog.SetGlobalLevel(prevLevel)
	})

	path := filepath.Join(t.TempDir(), "run.log")
	closer, err := SetupLogging(Config{LogFile: path, Verbose: true})
	if err != nil {
		t.Fatalf("SetupLogging: %v", err)
	}
	log.Debug().Str("probe", "tides").Msg("hello")
	if err := closer.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(b), `"probe":"tides"`) {
		t.Fatalf("log file missing entry: %s", b)
	}
}
