// Package validate checks a synthesized report against the boundary
// contract before it is returned to a caller. It never repairs a report.
package validate

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/hyperifyio/reportbuilder/internal/report"
)

var httpURL = regexp.MustCompile(`^https?://`)

// ValidationError lists every problem found in a report.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	if len(e.Problems) == 1 {
		return "invalid report: " + e.Problems[0]
	}
	return fmt.Sprintf("invalid report: %d problems: %s", len(e.Problems), strings.Join(e.Problems, "; "))
}

// Report checks required fields, section shape and references. Every
// reference must match ^https?:// and, when allowed is non-nil, appear in
// allowed. It returns nil or a *ValidationError naming all problems.
func Report(r report.Report, allowed []string) error {
	var problems []string
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if strings.TrimSpace(r.Title) == "" {
		add("missing title")
	}
	if strings.TrimSpace(r.Abstract) == "" {
		add("missing abstract")
	}
	if len(r.Sections) == 0 {
		add("no sections")
	}
	for i, s := range r.Sections {
		if strings.TrimSpace(s.Header) == "" {
			add("section %d has no header", i+1)
		}
		if strings.TrimSpace(s.Content) == "" {
			add("section %d has no content", i+1)
		}
	}

	if len(r.References.Sources) == 0 {
		add("references have no sources")
	}
	var allow map[string]struct{}
	if allowed != nil {
		allow = make(map[string]struct{}, len(allowed))
		for _, u := range allowed {
			allow[u] = struct{}{}
		}
	}
	for i, src := range r.References.Sources {
		if !httpURL.MatchString(src) {
			add("reference %d is not an http(s) URL: %q", i+1, src)
			continue
		}
		if allow != nil {
			if _, ok := allow[src]; !ok {
				add("reference %d was not among the researched sources: %q", i+1, src)
			}
		}
	}

	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}
