package search

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/fallback"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Browser names a web search provider selectable by configuration.
type Browser string

const (
	BrowserDuckDuckGo Browser = "duckduckgo"
	BrowserGoogle     Browser = "google"
)

// ParseBrowser accepts the configured provider name case-insensitively.
func ParseBrowser(s string) (Browser, error) {
	switch Browser(strings.ToLower(strings.TrimSpace(s))) {
	case "", BrowserDuckDuckGo:
		return BrowserDuckDuckGo, nil
	case BrowserGoogle:
		return BrowserGoogle, nil
	}
	return "", fmt.Errorf("unknown web browser %q (want google or duckduckgo)", s)
}

// Chain tries Primary and, only when it fails, Fallback exactly once.
// There is no retry beyond that single fallback attempt.
type Chain struct {
	Primary  Provider
	Fallback Provider // optional
}

// NewChain returns a chain over primary and an optional fallback.
func NewChain(primary, fb Provider) *Chain {
	return &Chain{Primary: primary, Fallback: fb}
}

func (c *Chain) Name() string {
	if c.Fallback == nil {
		return c.Primary.Name()
	}
	return c.Primary.Name() + "+" + c.Fallback.Name()
}

// Search runs the chain. When both providers fail the error is a
// ProviderError whose chain contains both causes.
func (c *Chain) Search(ctx context.Context, query string, limit int) ([]Result, error) {
	if c == nil || c.Primary == nil {
		return nil, &ProviderError{Provider: "chain", Err: errors.New("no search provider configured")}
	}
	if c.Fallback == nil {
		return observe(ctx, c.Primary, query, limit)
	}
	fb := fallback.NewWithFunc(func(exec failsafe.Execution[[]Result]) ([]Result, error) {
		primaryErr := exec.LastError()
		if err := ctx.Err(); err != nil {
			return nil, &ProviderError{Provider: c.Name(), Err: errors.Join(primaryErr, err)}
		}
		ctxLogger(ctx).Warn().Err(primaryErr).Str("query", query).Str("provider", c.Primary.Name()).
			Str("fallback", c.Fallback.Name()).Msg("primary search provider failed; trying fallback")
		searchFallbacksTotal.Inc()
		res, err := observe(ctx, c.Fallback, query, limit)
		if err != nil {
			return nil, &ProviderError{Provider: c.Name(), Err: errors.Join(primaryErr, err)}
		}
		return res, nil
	})
	return failsafe.With[[]Result](fb).WithContext(ctx).Get(func() ([]Result, error) {
		return observe(ctx, c.Primary, query, limit)
	})
}

func observe(ctx context.Context, p Provider, query string, limit int) ([]Result, error) {
	res, err := p.Search(ctx, query, limit)
	status := "ok"
	switch {
	case errors.Is(err, ErrRateLimited):
		status = "rate_limited"
	case errors.Is(err, ErrNoResults):
		status = "empty"
	case err != nil:
		status = "error"
	}
	searchRequestsTotal.WithLabelValues(p.Name(), status).Inc()
	if err != nil {
		return nil, providerErr(p.Name(), err)
	}
	return res, nil
}

// Options selects and configures the provider chain.
type Options struct {
	Browser       Browser
	SearchFile    string // when set, replaces the web chain with FileProvider
	DuckDuckGoURL string
	GoogleURL     string
	UserAgent     string
	HTTPClient    *http.Client
}

// FromOptions builds the chain as a pure function of configuration: the
// selected browser is primary and the other web provider is the fallback.
func FromOptions(opt Options) *Chain {
	if strings.TrimSpace(opt.SearchFile) != "" {
		return NewChain(&FileProvider{Path: opt.SearchFile}, nil)
	}
	ddg := &DuckDuckGo{BaseURL: opt.DuckDuckGoURL, HTTPClient: opt.HTTPClient, UserAgent: opt.UserAgent}
	g := &Google{BaseURL: opt.GoogleURL, HTTPClient: opt.HTTPClient}
	if opt.Browser == BrowserGoogle {
		return NewChain(g, ddg)
	}
	return NewChain(ddg, g)
}

// ctxLogger returns the logger carried by ctx, or the global logger.
func ctxLogger(ctx context.Context) *zerolog.Logger {
	if l := zerolog.Ctx(ctx); l.GetLevel() != zerolog.Disabled {
		return l
	}
	return &log.Logger
}
