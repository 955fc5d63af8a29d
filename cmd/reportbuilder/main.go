// Command reportbuilder researches a topic on the open web and writes a
// sourced report. It runs once from the command line or serves the same
// pipeline over HTTP.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/hyperifyio/reportbuilder/internal/app"
	"github.com/hyperifyio/reportbuilder/internal/research"
	"github.com/hyperifyio/reportbuilder/internal/validate"
)

// Exit code policy.
const (
	exitOK         = 0
	exitFailure    = 1
	exitNoResearch = 2
	exitInvalidDoc = 3
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		log.Error().Err(err).Msg("run failed")
	}
	os.Exit(exitCode(err))
}

// exitCode maps a command error onto the process exit status: 2 when no
// research could be gathered, 3 when the report failed validation.
func exitCode(err error) int {
	if err == nil {
		return exitOK
	}
	var re *research.RetrievalError
	if errors.As(err, &re) {
		return exitNoResearch
	}
	var ve *validate.ValidationError
	if errors.As(err, &ve) {
		return exitInvalidDoc
	}
	return exitFailure
}

// globalOptions holds the flags shared by every subcommand.
type globalOptions struct {
	configPath  string
	envFiles    []string
	verbose     bool
	model       string
	browser     string
	results     int
	subQs       int
	words       int
	searchFile  string
	blacklist   string
	noBlacklist bool
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}
	root := &cobra.Command{
		Use:   "reportbuilder",
		Short: "Research a topic on the web and write a sourced report",
		Long: `reportbuilder splits a topic into sub-questions, searches the web for each,
extracts the readable text of every result page and has a language model
write a report that cites only the pages it was given.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       fmt.Sprintf("%s (commit %s, built %s)", app.BuildVersion, app.BuildCommit, app.BuildDate),
	}

	opts.bind(root.PersistentFlags())
	root.AddCommand(newResearchCmd(opts), newSearchCmd(opts), newServeCmd(opts))
	return root
}

func (o *globalOptions) bind(fs *pflag.FlagSet) {
	fs.StringVar(&o.configPath, "config", "", "Path to a YAML or JSON config file")
	fs.StringArrayVar(&o.envFiles, "env-file", []string{".env"}, "Dotenv file to load; repeatable, later files win")
	fs.BoolVarP(&o.verbose, "verbose", "v", false, "Verbose logging")
	fs.StringVar(&o.model, "model", "", "LLM model name (LLM_MODEL)")
	fs.StringVar(&o.browser, "browser", "", "Primary search provider: duckduckgo or google (WEB_BROWSER)")
	fs.IntVar(&o.results, "results", 0, "Search results per sub-question (NUM_SEARCH_RESULTS)")
	fs.IntVar(&o.subQs, "subquestions", 0, "Number of sub-questions (NUM_SUB_QUESTIONS)")
	fs.IntVar(&o.words, "words", 0, "Minimum report length in words (WORD_COUNT_REQ)")
	fs.StringVar(&o.searchFile, "search-file", "", "Offline JSON search results replacing the web providers (SEARCH_FILE)")
	fs.StringVar(&o.blacklist, "blacklist", "", "Hosts to drop from results, JSON array or comma list (DOMAIN_BLACKLIST)")
	fs.BoolVar(&o.noBlacklist, "no-blacklist", false, "Disable blacklist filtering (BLACKLIST_ON=false)")
}

// loadConfig builds the configuration with precedence defaults < config file
// < environment < flags.
func (o *globalOptions) loadConfig(cmd *cobra.Command) (app.Config, error) {
	if err := app.LoadEnvFiles(o.envFiles...); err != nil {
		return app.Config{}, fmt.Errorf("load env files: %w", err)
	}
	cfg := app.DefaultConfig()
	if o.configPath != "" {
		fc, err := app.LoadConfigFile(o.configPath)
		if err != nil {
			return app.Config{}, fmt.Errorf("load config: %w", err)
		}
		app.ApplyFileConfig(&cfg, fc)
	}
	app.ApplyEnvOverrides(&cfg)

	flags := cmd.Flags()
	if flags.Changed("verbose") {
		cfg.Verbose = o.verbose
	}
	if flags.Changed("model") {
		cfg.LLMModel = o.model
	}
	if flags.Changed("browser") {
		cfg.WebBrowser = o.browser
	}
	if flags.Changed("results") {
		cfg.NumSearchResults = o.results
	}
	if flags.Changed("subquestions") {
		cfg.NumSubQuestions = o.subQs
	}
	if flags.Changed("words") {
		cfg.WordCountReq = o.words
	}
	if flags.Changed("search-file") {
		cfg.SearchFile = o.searchFile
	}
	if flags.Changed("blacklist") {
		cfg.DomainBlacklist = app.ParseHostList(o.blacklist)
	}
	if flags.Changed("no-blacklist") {
		cfg.BlacklistOn = !o.noBlacklist
	}
	return cfg, nil
}

// setup loads configuration, installs logging and builds the app. The
// returned cleanup must be called once the command finishes.
func (o *globalOptions) setup(cmd *cobra.Command) (*app.App, func(), error) {
	cfg, err := o.loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}
	closer, err := app.SetupLogging(cfg)
	if err != nil {
		log.Warn().Err(err).Msg("log file unavailable; logging to console only")
	}
	a, err := app.New(cmd.Context(), cfg)
	if err != nil {
		_ = closer.Close()
		return nil, nil, fmt.Errorf("init app: %w", err)
	}
	return a, func() {
		a.Close()
		_ = closer.Close()
	}, nil
}
