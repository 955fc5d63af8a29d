package search

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Result represents a single search hit from any provider.
type Result struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet,omitempty"`
	Source  string `json:"-"` // provider name for observability
}

// Provider is a minimal interface for search providers.
type Provider interface {
	Search(ctx context.Context, query string, limit int) ([]Result, error)
	Name() string
}

var (
	// ErrRateLimited means the provider refused or throttled the request.
	ErrRateLimited = errors.New("rate limited")
	// ErrNoResults means the provider answered but nothing usable was parsed.
	ErrNoResults = errors.New("no results")
)

// ProviderError wraps any failure of a provider: network, rate limit or parse.
type ProviderError struct {
	Provider string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("search provider %s: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

func providerErr(name string, err error) error {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return err
	}
	return &ProviderError{Provider: name, Err: err}
}

// DefaultUserAgent is sent by providers that do not set their own.
const DefaultUserAgent = "reportbuilder/1.0 (+https://github.com/hyperifyio/reportbuilder)"

// absoluteHTTPURL returns the trimmed URL when it is absolute http(s).
func absoluteHTTPURL(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "", false
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		return raw, true
	}
	return "", false
}
