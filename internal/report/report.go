// Package report holds the synthesized report model and its renderers.
package report

import (
	"fmt"
	"strings"
)

// DefaultReferencesHeader titles the references section when the model
// leaves it blank.
const DefaultReferencesHeader = "References"

// Section is one headed block of report prose.
type Section struct {
	Header  string `json:"header"`
	Content string `json:"content"`
}

// References lists the URLs the report draws on.
type References struct {
	Header  string   `json:"header"`
	Sources []string `json:"sources"`
}

// Report is the structured output of synthesis.
type Report struct {
	Title      string     `json:"title"`
	Abstract   string     `json:"abstract"`
	Sections   []Section  `json:"sections"`
	References References `json:"references"`
}

// Markdown renders r as a single Markdown document: title, abstract, one
// second-level heading per section, then the references as a numbered list.
func Markdown(r Report) string {
	var sb strings.Builder
	sb.WriteString("# ")
	sb.WriteString(strings.TrimSpace(r.Title))
	sb.WriteString("\n\n")
	if a := strings.TrimSpace(r.Abstract); a != "" {
		sb.WriteString("## Abstract\n\n")
		sb.WriteString(a)
		sb.WriteString("\n\n")
	}
	for _, s := range r.Sections {
		sb.WriteString("## ")
		sb.WriteString(strings.TrimSpace(s.Header))
		sb.WriteString("\n\n")
		sb.WriteString(strings.TrimSpace(s.Content))
		sb.WriteString("\n\n")
	}
	header := strings.TrimSpace(r.References.Header)
	if header == "" {
		header = DefaultReferencesHeader
	}
	sb.WriteString("## ")
	sb.WriteString(header)
	sb.WriteString("\n\n")
	for i, u := range r.References.Sources {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, u)
	}
	return strings.TrimRight(sb.String(), "\n") + "\n"
}

// WordCount counts whitespace-separated words across the title, abstract
// and section bodies.
func WordCount(r Report) int {
	n := len(strings.Fields(r.Title)) + len(strings.Fields(r.Abstract))
	for _, s := range r.Sections {
		n += len(strings.Fields(s.Header)) + len(strings.Fields(s.Content))
	}
	return n
}
