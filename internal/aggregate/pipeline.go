package aggregate

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/reportbuilder/internal/filter"
	"github.com/hyperifyio/reportbuilder/internal/research"
	"github.com/hyperifyio/reportbuilder/internal/search"
)

// Searcher is satisfied by *search.Chain.
type Searcher interface {
	Search(ctx context.Context, query string, limit int) ([]search.Result, error)
}

// Crawler is satisfied by *crawl.Orchestrator.
type Crawler interface {
	Crawl(ctx context.Context, subQuestion string, results []search.Result) (research.Section, bool)
}

// Pipeline is the per-sub-question flow: search, normalize, filter, crawl.
type Pipeline struct {
	Searcher Searcher
	Crawler  Crawler
	// NumResults is the number of results requested from the provider.
	NumResults int
	Filter     filter.Options
	// SearchTimeout bounds the provider chain; zero means no extra bound.
	SearchTimeout time.Duration
}

// Run returns the section for subQuestion, or false when the providers
// failed, nothing survived filtering, or every page failed extraction.
func (p *Pipeline) Run(ctx context.Context, subQuestion string) (research.Section, bool) {
	results, err := p.search(ctx, subQuestion)
	if err != nil {
		ctxLogger(ctx).Warn().Err(err).Str("subquestion", subQuestion).Msg("search failed")
		return research.Section{}, false
	}
	results = filter.Filter(NormalizeResults(results), p.Filter)
	if len(results) == 0 {
		ctxLogger(ctx).Warn().Str("subquestion", subQuestion).Msg("no candidate URLs after filtering")
		return research.Section{}, false
	}
	ctxLogger(ctx).Debug().Str("subquestion", subQuestion).Int("urls", len(results)).Msg("crawling")
	return p.Crawler.Crawl(ctx, subQuestion, results)
}

func (p *Pipeline) search(ctx context.Context, q string) ([]search.Result, error) {
	if p.SearchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.SearchTimeout)
		defer cancel()
	}
	return p.Searcher.Search(ctx, q, p.NumResults)
}

// ctxLogger returns the logger carried by ctx, or the global logger.
func ctxLogger(ctx context.Context) *zerolog.Logger {
	if l := zerolog.Ctx(ctx); l.GetLevel() != zerolog.Disabled {
		return l
	}
	return &log.Logger
}
