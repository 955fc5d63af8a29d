package app

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	yaml "gopkg.in/yaml.v3"
)

// FileConfig represents the single-file configuration schema.
// Nested sections improve readability and map naturally to flags/env.
type FileConfig struct {
	Search struct {
		Browser         string        `yaml:"browser" json:"browser"`
		Results         int           `yaml:"results" json:"results"`
		DomainBlacklist []string      `yaml:"domainBlacklist" json:"domainBlacklist"`
		BlacklistOn     *bool         `yaml:"blacklistOn" json:"blacklistOn"`
		File            string        `yaml:"file" json:"file"`
		DuckDuckGoURL   string        `yaml:"duckduckgoURL" json:"duckduckgoURL"`
		GoogleURL       string        `yaml:"googleURL" json:"googleURL"`
		UserAgent       string        `yaml:"ua" json:"ua"`
		Timeout         time.Duration `yaml:"timeout" json:"timeout"`
	} `yaml:"search" json:"search"`

	Research struct {
		SubQuestions   int           `yaml:"subQuestions" json:"subQuestions"`
		PruneThreshold float64       `yaml:"pruneThreshold" json:"pruneThreshold"`
		PruneDynamic   *bool         `yaml:"pruneDynamic" json:"pruneDynamic"`
		PerSourceChars int           `yaml:"perSourceChars" json:"perSourceChars"`
		FetchTimeout   time.Duration `yaml:"fetchTimeout" json:"fetchTimeout"`
		MaxConcurrent  int           `yaml:"maxConcurrent" json:"maxConcurrent"`
	} `yaml:"research" json:"research"`

	LLM struct {
		BaseURL       string `yaml:"base" json:"base"`
		Model         string `yaml:"model" json:"model"`
		APIKey        string `yaml:"key" json:"key"`
		ContextTokens int    `yaml:"contextTokens" json:"contextTokens"`
	} `yaml:"llm" json:"llm"`

	Synth struct {
		Model            string `yaml:"model" json:"model"`
		WordCount        int    `yaml:"wordCount" json:"wordCount"`
		SystemPrompt     string `yaml:"systemPrompt" json:"systemPrompt"`
		SystemPromptFile string `yaml:"systemPromptFile" json:"systemPromptFile"`
	} `yaml:"synth" json:"synth"`

	Server struct {
		Addr           string        `yaml:"addr" json:"addr"`
		RequestTimeout time.Duration `yaml:"requestTimeout" json:"requestTimeout"`
	} `yaml:"server" json:"server"`

	LogFile string `yaml:"logFile" json:"logFile"`
	Verbose bool   `yaml:"verbose" json:"verbose"`
}

// LoadConfigFile reads YAML or JSON into FileConfig.
func LoadConfigFile(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	switch ext := filepath.Ext(path); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &fc); err != nil {
			return fc, fmt.Errorf("parse yaml: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(b, &fc); err != nil {
			return fc, fmt.Errorf("parse json: %w", err)
		}
	default:
		// Try YAML then JSON
		if err := yaml.Unmarshal(b, &fc); err != nil {
			if jerr := json.Unmarshal(b, &fc); jerr != nil {
				return fc, fmt.Errorf("parse config: %v (yaml) / %v (json)", err, jerr)
			}
		}
	}
	if fc.Synth.SystemPrompt == "" && fc.Synth.SystemPromptFile != "" {
		p := fc.Synth.SystemPromptFile
		if !filepath.IsAbs(p) {
			p = filepath.Join(filepath.Dir(path), p)
		}
		prompt, err := os.ReadFile(p)
		if err != nil {
			return fc, fmt.Errorf("read synth system prompt: %w", err)
		}
		fc.Synth.SystemPrompt = strings.TrimSpace(string(prompt))
	}
	return fc, nil
}

// ApplyFileConfig overlays every value set in fc onto cfg. It runs on top of
// DefaultConfig and before ApplyEnvOverrides.
func ApplyFileConfig(cfg *Config, fc FileConfig) {
	if cfg == nil {
		return
	}
	str := func(dst *string, v string) {
		if strings.TrimSpace(v) != "" {
			*dst = v
		}
	}
	num := func(dst *int, v int) {
		if v > 0 {
			*dst = v
		}
	}
	dur := func(dst *time.Duration, v time.Duration) {
		if v > 0 {
			*dst = v
		}
	}

	str(&cfg.WebBrowser, fc.Search.Browser)
	num(&cfg.NumSearchResults, fc.Search.Results)
	if len(fc.Search.DomainBlacklist) > 0 {
		cfg.DomainBlacklist = append([]string{}, fc.Search.DomainBlacklist...)
	}
	if fc.Search.BlacklistOn != nil {
		cfg.BlacklistOn = *fc.Search.BlacklistOn
	}
	str(&cfg.SearchFile, fc.Search.File)
	str(&cfg.DuckDuckGoURL, fc.Search.DuckDuckGoURL)
	str(&cfg.GoogleURL, fc.Search.GoogleURL)
	str(&cfg.UserAgent, fc.Search.UserAgent)
	dur(&cfg.SearchTimeout, fc.Search.Timeout)

	num(&cfg.NumSubQuestions, fc.Research.SubQuestions)
	if fc.Research.PruneThreshold > 0 {
		cfg.PruneThreshold = fc.Research.PruneThreshold
	}
	if fc.Research.PruneDynamic != nil {
		cfg.PruneDynamic = *fc.Research.PruneDynamic
	}
	num(&cfg.PerSourceChars, fc.Research.PerSourceChars)
	dur(&cfg.FetchTimeout, fc.Research.FetchTimeout)
	num(&cfg.MaxConcurrent, fc.Research.MaxConcurrent)

	str(&cfg.LLMBaseURL, fc.LLM.BaseURL)
	str(&cfg.LLMModel, fc.LLM.Model)
	str(&cfg.LLMAPIKey, fc.LLM.APIKey)
	num(&cfg.LLMContextTokens, fc.LLM.ContextTokens)
	str(&cfg.SynthModel, fc.Synth.Model)
	num(&cfg.WordCountReq, fc.Synth.WordCount)
	str(&cfg.SynthSystemPrompt, fc.Synth.SystemPrompt)

	str(&cfg.ListenAddr, fc.Server.Addr)
	dur(&cfg.RequestTimeout, fc.Server.RequestTimeout)
	str(&cfg.LogFile, fc.LogFile)
	if fc.Verbose {
		cfg.Verbose = true
	}
}
