package app

import (
	"encoding/json"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// Nested prefixes accepted in front of the plain setting names, so
// WEB_SEARCH_TOOL__NUM_SEARCH_RESULTS sets NUM_SEARCH_RESULTS.
const (
	prefixSearch   = "WEB_SEARCH_TOOL__"
	prefixResearch = "RESEARCH_AGENT__"
	prefixSynth    = "SYNTH_AGENT__"
)

// lookup returns the first non-empty value among the plain name and its
// prefixed aliases. The plain name wins.
func lookup(name string, prefixes ...string) (string, bool) {
	if v := strings.TrimSpace(os.Getenv(name)); v != "" {
		return v, true
	}
	for _, p := range prefixes {
		if v := strings.TrimSpace(os.Getenv(p + name)); v != "" {
			return v, true
		}
	}
	return "", false
}

// ApplyEnvOverrides overrides cfg fields with environment variables when the
// corresponding env vars are set. Env takes precedence over values coming
// from a config file while flags remain highest precedence. Unparseable
// values are logged and ignored.
func ApplyEnvOverrides(cfg *Config) {
	if cfg == nil {
		return
	}

	setString := func(dst *string, name string, prefixes ...string) {
		if v, ok := lookup(name, prefixes...); ok {
			*dst = v
		}
	}
	setInt := func(dst *int, name string, prefixes ...string) {
		if v, ok := lookup(name, prefixes...); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				log.Warn().Str("env", name).Str("value", v).Msg("ignoring non-integer value")
				return
			}
			*dst = n
		}
	}
	setBool := func(dst *bool, name string, prefixes ...string) {
		if v, ok := lookup(name, prefixes...); ok {
			switch strings.ToLower(v) {
			case "1", "true", "yes", "on":
				*dst = true
			case "0", "false", "no", "off":
				*dst = false
			default:
				log.Warn().Str("env", name).Str("value", v).Msg("ignoring non-boolean value")
			}
		}
	}
	setDuration := func(dst *time.Duration, name string) {
		if v, ok := lookup(name); ok {
			d, err := time.ParseDuration(v)
			if err != nil {
				log.Warn().Str("env", name).Str("value", v).Msg("ignoring invalid duration")
				return
			}
			*dst = d
		}
	}

	setString(&cfg.WebBrowser, "WEB_BROWSER", prefixSearch)
	setInt(&cfg.NumSearchResults, "NUM_SEARCH_RESULTS", prefixSearch)
	if v, ok := lookup("DOMAIN_BLACKLIST", prefixSearch); ok {
		cfg.DomainBlacklist = ParseHostList(v)
	}
	setBool(&cfg.BlacklistOn, "BLACKLIST_ON", prefixSearch)
	setString(&cfg.SearchFile, "SEARCH_FILE")
	setString(&cfg.DuckDuckGoURL, "DUCKDUCKGO_URL")
	setString(&cfg.GoogleURL, "GOOGLE_URL")
	setString(&cfg.UserAgent, "USER_AGENT")
	setDuration(&cfg.SearchTimeout, "SEARCH_TIMEOUT")

	setInt(&cfg.NumSubQuestions, "NUM_SUB_QUESTIONS", prefixResearch)
	if v, ok := lookup("PRUNE_THRESHOLD"); ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.PruneThreshold = f
		} else {
			log.Warn().Str("env", "PRUNE_THRESHOLD").Str("value", v).Msg("ignoring non-numeric value")
		}
	}
	setBool(&cfg.PruneDynamic, "PRUNE_DYNAMIC")
	setInt(&cfg.PerSourceChars, "PER_SOURCE_CHARS")
	setDuration(&cfg.FetchTimeout, "FETCH_TIMEOUT")
	setInt(&cfg.MaxConcurrent, "MAX_CONCURRENT_FETCHES")

	if v, ok := lookup("OLLAMA_HOST"); ok {
		cfg.LLMBaseURL = ollamaBaseURL(v)
	}
	setString(&cfg.LLMBaseURL, "LLM_BASE_URL")
	setString(&cfg.LLMModel, "LLM_MODEL")
	setString(&cfg.LLMAPIKey, "OPENAI_API_KEY")
	setString(&cfg.LLMAPIKey, "LLM_API_KEY")
	setString(&cfg.SynthModel, "SYNTH_MODEL")
	setInt(&cfg.WordCountReq, "WORD_COUNT_REQ", prefixSynth)
	setInt(&cfg.LLMContextTokens, "LLM_CONTEXT_TOKENS")

	setString(&cfg.ListenAddr, "LISTEN_ADDR")
	setDuration(&cfg.RequestTimeout, "REQUEST_TIMEOUT")
	setString(&cfg.LogFile, "LOG_FILE")
	setBool(&cfg.Verbose, "VERBOSE")
}

// ParseHostList accepts a JSON array string ('["x.com","twitter.com"]') or a
// comma separated list and returns the trimmed, non-empty hostnames.
func ParseHostList(s string) []string {
	s = strings.TrimSpace(s)
	var raw []string
	if strings.HasPrefix(s, "[") {
		if err := json.Unmarshal([]byte(s), &raw); err != nil {
			log.Warn().Err(err).Msg("DOMAIN_BLACKLIST is not a valid JSON array; treating as comma list")
			raw = strings.Split(strings.Trim(s, "[]"), ",")
		}
	} else {
		raw = strings.Split(s, ",")
	}
	out := make([]string, 0, len(raw))
	for _, h := range raw {
		h = strings.Trim(strings.TrimSpace(h), `"'`)
		if h != "" {
			out = append(out, h)
		}
	}
	return out
}

// ollamaBaseURL turns an OLLAMA_HOST value (host:port or URL) into the
// OpenAI-compatible base URL it serves.
func ollamaBaseURL(host string) string {
	host = strings.TrimRight(strings.TrimSpace(host), "/")
	if !strings.HasPrefix(host, "http://") && !strings.HasPrefix(host, "https://") {
		host = "http://" + host
	}
	if strings.HasSuffix(host, "/v1") {
		return host
	}
	return host + "/v1"
}
