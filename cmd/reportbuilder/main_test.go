package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/hyperifyio/reportbuilder/internal/app"
	"github.com/hyperifyio/reportbuilder/internal/research"
	"github.com/hyperifyio/reportbuilder/internal/validate"
)

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"ok", nil, 0},
		{"no research", &research.RetrievalError{Query: "tides", Err: research.ErrNoSections}, 2},
		{"wrapped no research", fmt.Errorf("run: %w", &research.RetrievalError{Query: "tides"}), 2},
		{"invalid report", fmt.Errorf("synthesize: %w", &validate.ValidationError{Problems: []string{"missing title"}}), 3},
		{"other", errors.New("boom"), 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := exitCode(tt.err); got != tt.want {
				t.Fatalf("exitCode=%d, want %d", got, tt.want)
			}
		})
	}
}

// isolate blanks the settings environment and restores the global logger.
func isolate(t *testing.T) {
	t.Helper()
	for _, n := range []string{
		"WEB_BROWSER", "NUM_SEARCH_RESULTS", "DOMAIN_BLACKLIST", "BLACKLIST_ON", "SEARCH_FILE",
		"DUCKDUCKGO_URL", "GOOGLE_URL", "USER_AGENT", "SEARCH_TIMEOUT", "NUM_SUB_QUESTIONS",
		"PRUNE_THRESHOLD", "PRUNE_DYNAMIC", "PER_SOURCE_CHARS", "FETCH_TIMEOUT",
		"MAX_CONCURRENT_FETCHES", "OLLAMA_HOST", "LLM_BASE_URL", "LLM_MODEL", "OPENAI_API_KEY",
		"LLM_API_KEY", "SYNTH_MODEL", "WORD_COUNT_REQ", "LISTEN_ADDR", "REQUEST_TIMEOUT",
		"LOG_FILE", "VERBOSE", "LLM_CONTEXT_TOKENS", "RESEARCH_AGENT__NUM_SUB_QUESTIONS",
		"WEB_SEARCH_TOOL__NUM_SEARCH_RESULTS", "SYNTH_AGENT__WORD_COUNT_REQ",
	} {
		t.Setenv(n, "")
	}
	prev, prevLevel := log.Logger, zerolog.GlobalLevel()
	t.Cleanup(func() {
		log.Logger = prev
		zerolog.SetGlobalLevel(prevLevel)
	})
}

func TestLoadConfig_Precedence(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "reportbuilder.yaml")
	yaml := "search:\n  results: 6\nresearch:\n  subQuestions: 3\nsynth:\n  wordCount: 900\n"
	if err := os.WriteFile(cfgPath, []byte(yaml), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	envPath := filepath.Join(dir, ".env")
	if err := os.WriteFile(envPath, []byte("NUM_SUB_QUESTIONS=2\nWORD_COUNT_REQ=1000\n"), 0o600); err != nil {
		t.Fatalf("write env: %v", err)
	}

	g := &globalOptions{}
	var got app.Config
	cmd := &cobra.Command{
		Use: "probe",
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			got, err = g.loadConfig(cmd)
			return err
		},
	}
	g.bind(cmd.Flags())
	cmd.SetArgs([]string{"--config", cfgPath, "--env-file", envPath, "--words", "1200", "--blacklist", "x.com,quora.com"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}

	if got.NumSearchResults != 6 {
		t.Fatalf("file value lost: results=%d", got.NumSearchResults)
	}
	if got.NumSubQuestions != 2 {
		t.Fatalf("env should override file: subquestions=%d", got.NumSubQuestions)
	}
	if got.WordCountReq != 1200 {
		t.Fatalf("flag should override env: words=%d", got.WordCountReq)
	}
	if diff := cmp.Diff([]string{"x.com", "quora.com"}, got.DomainBlacklist); diff != "" {
		t.Fatalf("blacklist mismatch (-want +got):\n%s", diff)
	}
}

const tidesPage = `<!doctype html><html><head><title>%s</title></head><body>
<nav><a href="/">Home</a> <a href="/about">About</a></nav>
<main>
<h1>%s</h1>
<p>Tides are the regular rise and fall of the sea surface caused by the gravitational pull of the
moon and the sun acting on the rotating earth. Most coastlines see two high tides and two low tides
every lunar day, and the size of the range depends on the shape of the coast and the sea floor.</p>
<p>Spring tides happen when the sun and the moon line up, and neap tides happen when they pull at
right angles. Read more in the <a href="https://ocean.example/guide">tide guide</a>.</p>
</main>
<footer>Copyright</footer>
</body></html>`

// newPageServer serves two readable pages and one broken one.
func newPageServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/tides":
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			fmt.Fprintf(w, tidesPage, "Tides", "What causes tides")
		case "/moon":
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			fmt.Fprintf(w, tidesPage, "The moon and tides", "The moon")
		default:
			http.Error(w, "gone", http.StatusInternalServerError)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func writeSearchFile(t *testing.T, base string) string {
	t.Helper()
	entries := []map[string]string{
		{"title": "Tides explained", "url": base + "/tides", "snippet": "what causes tides"},
		{"title": "Broken tides page", "url": base + "/broken", "snippet": "tides"},
		{"title": "Moon and tides", "url": base + "/moon", "snippet": "the moon and tides"},
	}
	b, err := json.Marshal(entries)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	p := filepath.Join(t.TempDir(), "results.json")
	if err := os.WriteFile(p, b, 0o600); err != nil {
		t.Fatalf("write search file: %v", err)
	}
	return p
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestSearchCommand_PrintsFilteredResults(t *testing.T) {
	isolate(t)
	searchFile := writeSearchFile(t, "https://pages.example")
	out, err := execute(t, "search", "--search-file", searchFile, "--blacklist", "spam.example", "tides")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	for _, want := range []string{"1. Tides explained", "https://pages.example/tides", "3. Moon and tides"} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
}

func TestResearchCommand_NoReportWritesResearchJSON(t *testing.T) {
	isolate(t)
	pages := newPageServer(t)
	searchFile := writeSearchFile(t, pages.URL)

	out, err := execute(t, "research", "--no-report", "--search-file", searchFile, "--subquestions", "2", "tides")
	if err != nil {
		t.Fatalf("research: %v", err)
	}
	var got research.Output
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("decode research JSON: %v\n%s", err, out)
	}
	if got.OriginalQuery != "tides" || len(got.Sections) != 2 {
		t.Fatalf("unexpected output: %+v", got)
	}
	for _, s := range got.Sections {
		if len(s.Sources) != 2 {
			t.Fatalf("broken page should be dropped, got %d sources in %q", len(s.Sources), s.SubQuestion)
		}
		for _, src := range s.Sources {
			if strings.Contains(src.Content, "](") || strings.Contains(src.Content, "Copyright") {
				t.Fatalf("content not cleaned: %q", src.Content)
			}
			if !strings.Contains(src.Content, "tide guide") {
				t.Fatalf("link text should survive: %q", src.Content)
			}
		}
	}
	want := []string{pages.URL + "/tides", pages.URL + "/moon"}
	if diff := cmp.Diff(want, got.AllURLs); diff != "" {
		t.Fatalf("all_urls mismatch (-want +got):\n%s", diff)
	}
}

func TestResearchCommand_NothingFoundIsRetrievalError(t *testing.T) {
	isolate(t)
	p := filepath.Join(t.TempDir(), "results.json")
	if err := os.WriteFile(p, []byte(`[{"title":"Cooking","url":"https://food.example/","snippet":"pasta"}]`), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	_, err := execute(t, "research", "--no-report", "--search-file", p, "volcanoes")
	if exitCode(err) != 2 {
		t.Fatalf("expected exit code 2, got %d (%v)", exitCode(err), err)
	}
}

func TestResearchCommand_ReportNeedsModel(t *testing.T) {
	isolate(t)
	_, err := execute(t, "research", "--search-file", writeSearchFile(t, "https://pages.example"), "tides")
	if err == nil || !strings.Contains(err.Error(), "model") {
		t.Fatalf("expected missing model error, got %v", err)
	}
	if exitCode(err) != 1 {
		t.Fatalf("config errors exit with 1, got %d", exitCode(err))
	}
}

// newModelServer fakes an OpenAI-compatible endpoint: the planner gets one
// sub-question and the writer gets a report citing cite.
func newModelServer(t *testing.T, cite string) *httptest.Server {
	t.Helper()
	reply := func(w http.ResponseWriter, content string) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"created": 0,
			"model":   "test-model",
			"choices": []map[string]any{{
				"index":         0,
				"message":       map[string]string{"role": "assistant", "content": content},
				"finish_reason": "stop",
			}},
		})
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/models"):
			w.Header().Set("Content-Type", "application/json")
			_, _ = io.WriteString(w, `{"object":"list","data":[{"id":"test-model","object":"model"}]}`)
		case strings.HasSuffix(r.URL.Path, "/chat/completions"):
			body, _ := io.ReadAll(r.Body)
			if strings.Contains(string(body), "report writer") {
				rep, _ := json.Marshal(map[string]any{
					"title":    "Tides",
					"abstract": "Tides follow the moon.",
					"sections": []map[string]string{{"header": "Causes", "content": "The moon pulls the sea."}},
					"references": map[string]any{
						"header":  "References",
						"sources": []string{cite},
					},
				})
				reply(w, string(rep))
				return
			}
			reply(w, `{"subquestions": ["What causes tides?"]}`)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestResearchCommand_WritesReportFiles(t *testing.T) {
	isolate(t)
	pages := newPageServer(t)
	model := newModelServer(t, pages.URL+"/tides")
	t.Setenv("LLM_BASE_URL", model.URL+"/v1")

	dir := t.TempDir()
	outPath := filepath.Join(dir, "report.md")
	jsonPath := filepath.Join(dir, "research.json")
	pdfPath := filepath.Join(dir, "report.pdf")
	_, err := execute(t, "research",
		"--search-file", writeSearchFile(t, pages.URL),
		"--model", "test-model",
		"--words", "10",
		"--out", outPath, "--json", jsonPath, "--pdf", pdfPath,
		"tides")
	if err != nil {
		t.Fatalf("research: %v", err)
	}

	md, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	if !strings.HasPrefix(string(md), "# Tides") || !strings.Contains(string(md), pages.URL+"/tides") {
		t.Fatalf("unexpected report:\n%s", md)
	}
	var got research.Output
	b, err := os.ReadFile(jsonPath)
	if err != nil {
		t.Fatalf("read research json: %v", err)
	}
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatalf("decode research json: %v", err)
	}
	if len(got.Sections) != 1 || got.Sections[0].SubQuestion != "What causes tides?" {
		t.Fatalf("planner output not used: %+v", got.Sections)
	}
	if pdf, err := os.ReadFile(pdfPath); err != nil || !bytes.HasPrefix(pdf, []byte("%PDF-")) {
		t.Fatalf("pdf not written: %v", err)
	}
}

func TestResearchCommand_UntraceableReferenceExits3(t *testing.T) {
	isolate(t)
	pages := newPageServer(t)
	model := newModelServer(t, "https://invented.example/paper")
	t.Setenv("LLM_BASE_URL", model.URL+"/v1")

	_, err := execute(t, "research", "--search-file", writeSearchFile(t, pages.URL), "--model", "test-model", "tides")
	if exitCode(err) != 3 {
		t.Fatalf("expected exit code 3, got %d (%v)", exitCode(err), err)
	}
}
