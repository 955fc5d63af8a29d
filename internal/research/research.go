package research

import (
	"errors"
	"fmt"
	"strings"
)

// SourceSection is one successfully crawled page. Content has already been
// pruned and stripped of link markup; the page URL lives only in URL.
type SourceSection struct {
	Title   string `json:"title"`
	Content string `json:"content"`
	URL     string `json:"url"`
}

// Section groups the surviving sources of a single sub-question. A Section
// always has at least one source; use NewSection to build one.
type Section struct {
	SubQuestion string          `json:"subquestion"`
	Sources     []SourceSection `json:"sources"`
}

// Output is the structured research corpus handed to report synthesis.
// AllURLs is derived from Sections and is never edited on its own.
type Output struct {
	OriginalQuery string    `json:"original_query"`
	Sections      []Section `json:"sections"`
	AllURLs       []string  `json:"all_urls"`
}

// NewSection packages sources for subQuestion. It reports false when there
// are no sources, in which case no section exists for the sub-question.
func NewSection(subQuestion string, sources []SourceSection) (Section, bool) {
	if len(sources) == 0 {
		return Section{}, false
	}
	cp := make([]SourceSection, len(sources))
	copy(cp, sources)
	return Section{SubQuestion: subQuestion, Sources: cp}, true
}

// NewOutput assembles the run output and computes AllURLs. It fails with a
// RetrievalError when sections is empty.
func NewOutput(query string, sections []Section) (Output, error) {
	if len(sections) == 0 {
		return Output{}, &RetrievalError{Query: query, Err: ErrNoSections}
	}
	out := Output{OriginalQuery: query}
	out.Sections = make([]Section, 0, len(sections))
	for _, s := range sections {
		if len(s.Sources) == 0 {
			continue
		}
		out.Sections = append(out.Sections, s)
	}
	if len(out.Sections) == 0 {
		return Output{}, &RetrievalError{Query: query, Err: ErrNoSections}
	}
	out.AllURLs = CollectURLs(out.Sections)
	return out, nil
}

// WithSections returns a copy of o holding sections, with AllURLs recomputed.
func (o Output) WithSections(sections []Section) (Output, error) {
	return NewOutput(o.OriginalQuery, sections)
}

// CollectURLs flattens every source URL across sections, keeping the first
// occurrence of each.
func CollectURLs(sections []Section) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(sections)*2)
	for _, s := range sections {
		for _, src := range s.Sources {
			if _, ok := seen[src.URL]; ok {
				continue
			}
			seen[src.URL] = struct{}{}
			out = append(out, src.URL)
		}
	}
	return out
}

// SourceCount returns the total number of sources across all sections.
func (o Output) SourceCount() int {
	n := 0
	for _, s := range o.Sections {
		n += len(s.Sources)
	}
	return n
}

// ErrNoSections marks an output that would otherwise be empty.
var ErrNoSections = errors.New("no research could be gathered")

// RetrievalError reports that a whole run produced zero sections.
type RetrievalError struct {
	Query     string
	Attempted int
	Err       error
}

func (e *RetrievalError) Error() string {
	var b strings.Builder
	b.WriteString("no research could be gathered")
	if strings.TrimSpace(e.Query) != "" {
		fmt.Fprintf(&b, " for %q", e.Query)
	}
	if e.Attempted > 0 {
		fmt.Fprintf(&b, " (%d sub-questions attempted)", e.Attempted)
	}
	if e.Err != nil && !errors.Is(e.Err, ErrNoSections) {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *RetrievalError) Unwrap() error { return e.Err }
