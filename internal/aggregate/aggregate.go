// Package aggregate runs the retrieval pipeline for every sub-question of a
// topic and assembles the structured research output.
package aggregate

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hyperifyio/reportbuilder/internal/research"
)

// SectionRunner produces at most one section for a sub-question.
type SectionRunner interface {
	Run(ctx context.Context, subQuestion string) (research.Section, bool)
}

// Aggregator dispatches one pipeline run per sub-question. It holds no state
// between runs, so one Aggregator may serve many topics, concurrently too.
type Aggregator struct {
	Pipeline SectionRunner
}

type indexedSection struct {
	index   int
	section research.Section
}

// accumulator is the only state written by concurrent sub-question runs.
type accumulator struct {
	mu       sync.Mutex
	sections []indexedSection
}

func (a *accumulator) add(i int, s research.Section) {
	a.mu.Lock()
	a.sections = append(a.sections, indexedSection{index: i, section: s})
	a.mu.Unlock()
}

// ordered returns the sections in sub-question order.
func (a *accumulator) ordered() []research.Section {
	a.mu.Lock()
	defer a.mu.Unlock()
	sort.Slice(a.sections, func(i, j int) bool { return a.sections[i].index < a.sections[j].index })
	out := make([]research.Section, len(a.sections))
	for i, s := range a.sections {
		out[i] = s.section
	}
	return out
}

// Run executes every non-empty sub-question concurrently. Sub-questions that
// produce nothing are omitted; Run fails with *research.RetrievalError only
// when none produced a section. Sections are ordered by sub-question.
func (a *Aggregator) Run(ctx context.Context, topic string, subQuestions []string) (research.Output, error) {
	start := time.Now()
	defer func() { researchDuration.Observe(time.Since(start).Seconds()) }()

	acc := &accumulator{}
	attempted := 0
	var g errgroup.Group
	for i, q := range subQuestions {
		q = strings.TrimSpace(q)
		if q == "" {
			ctxLogger(ctx).Warn().Int("index", i).Msg("skipping empty sub-question")
			continue
		}
		attempted++
		g.Go(func() error {
			sec, ok := a.Pipeline.Run(ctx, q)
			if !ok {
				subquestionsTotal.WithLabelValues("empty").Inc()
				ctxLogger(ctx).Warn().Str("subquestion", q).Msg("sub-question produced no section")
				return nil
			}
			subquestionsTotal.WithLabelValues("ok").Inc()
			acc.add(i, sec)
			return nil
		})
	}
	_ = g.Wait()

	out, err := research.NewOutput(topic, acc.ordered())
	if err != nil {
		var re *research.RetrievalError
		if errors.As(err, &re) {
			re.Attempted = attempted
			if ctxErr := ctx.Err(); ctxErr != nil {
				re.Err = ctxErr
			}
		}
		return research.Output{}, err
	}
	ctxLogger(ctx).Info().Str("topic", topic).Int("subquestions", attempted).Int("sections", len(out.Sections)).
		Int("sources", out.SourceCount()).Msg("research gathered")
	return out, nil
}
