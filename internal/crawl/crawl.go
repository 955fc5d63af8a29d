// Package crawl extracts the pages behind one sub-question's search results
// concurrently and packages the survivors into a research section.
package crawl

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/hyperifyio/reportbuilder/internal/extract"
	"github.com/hyperifyio/reportbuilder/internal/research"
	"github.com/hyperifyio/reportbuilder/internal/search"
)

// NoTitle labels a source whose search result and page both lack a title.
const NoTitle = "No Title Found"

// PageExtractor turns one URL into cleaned text.
type PageExtractor interface {
	Extract(ctx context.Context, url string) (extract.Document, error)
}

// Orchestrator runs the page extractor over a result set.
type Orchestrator struct {
	Extractor PageExtractor
	// MaxConcurrent bounds in-flight extractions. Zero means one worker per result.
	MaxConcurrent int
}

// Crawl extracts every result independently. A failure on one URL is logged
// and that URL dropped; the others are unaffected. Sources keep the order of
// results. The boolean is false when no source survived or ctx was cancelled,
// in which case no section exists.
func (o *Orchestrator) Crawl(ctx context.Context, subQuestion string, results []search.Result) (research.Section, bool) {
	if len(results) == 0 {
		return research.Section{}, false
	}
	start := time.Now()
	defer func() { crawlDuration.Observe(time.Since(start).Seconds()) }()

	slots := make([]*research.SourceSection, len(results))
	var g errgroup.Group
	limit := o.MaxConcurrent
	if limit <= 0 || limit > len(results) {
		limit = len(results)
	}
	g.SetLimit(limit)
	for i, r := range results {
		g.Go(func() error {
			doc, err := o.Extractor.Extract(ctx, r.URL)
			if err != nil {
				status := "failed"
				if errors.Is(err, extract.ErrEmptyContent) {
					status = "empty"
				}
				crawlPagesTotal.WithLabelValues(status).Inc()
				ctxLogger(ctx).Warn().Err(err).Str("url", r.URL).Str("subquestion", subQuestion).Msg("dropping source")
				return nil
			}
			crawlPagesTotal.WithLabelValues("ok").Inc()
			slots[i] = &research.SourceSection{
				Title:   sourceTitle(r.Title, doc.Title),
				Content: doc.Text,
				URL:     r.URL,
			}
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		ctxLogger(ctx).Debug().Err(err).Str("subquestion", subQuestion).Msg("crawl cancelled; discarding partial section")
		return research.Section{}, false
	}
	sources := make([]research.SourceSection, 0, len(slots))
	for _, s := range slots {
		if s != nil {
			sources = append(sources, *s)
		}
	}
	sec, ok := research.NewSection(subQuestion, sources)
	if !ok {
		ctxLogger(ctx).Warn().Str("subquestion", subQuestion).Int("attempted", len(results)).Msg("every source failed")
	}
	return sec, ok
}

func sourceTitle(searchTitle, pageTitle string) string {
	if t := strings.TrimSpace(searchTitle); t != "" {
		return t
	}
	if t := strings.TrimSpace(pageTitle); t != "" {
		return t
	}
	return NoTitle
}

// ctxLogger returns the logger carried by ctx, or the global logger.
func ctxLogger(ctx context.Context) *zerolog.Logger {
	if l := zerolog.Ctx(ctx); l.GetLevel() != zerolog.Disabled {
		return l
	}
	return &log.Logger
}
