// Package budget estimates prompt sizes and fits gathered research into a
// model's context window.
package budget

import (
	"math"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/hyperifyio/reportbuilder/internal/research"
)

// charsPerToken is the conservative English heuristic used throughout.
const charsPerToken = 4

// MinSourceChars is the floor FitResearch never trims a source below.
const MinSourceChars = 200

// EstimateTokensFromChars converts a character count into an estimated token
// count. The result is always at least 1 when chars > 0.
func EstimateTokensFromChars(charCount int) int {
	if charCount <= 0 {
		return 0
	}
	return int(math.Ceil(float64(charCount) / charsPerToken))
}

// EstimateTokens returns the estimated token count of a string.
func EstimateTokens(s string) int {
	return EstimateTokensFromChars(utf8.RuneCountInString(s))
}

// ModelContextTokens returns an estimated maximum context window for a given
// model name. Unknown models fall back to 8192.
func ModelContextTokens(modelName string) int {
	name := strings.ToLower(strings.TrimSpace(modelName))
	if name == "" {
		return 8192
	}
	if v, ok := knownModelMax[name]; ok {
		return v
	}
	for _, s := range sizeSuffixes {
		if strings.HasSuffix(name, s.suffix) {
			return s.tokens
		}
	}
	if strings.Contains(name, "-mini") {
		return 128_000
	}
	return 8192
}

// HeadroomTokens is the safety margin kept free of a context window: the
// larger of 5% of it or 512 tokens.
func HeadroomTokens(contextTokens int) int {
	dyn := int(math.Ceil(float64(contextTokens) * 0.05))
	if dyn < 512 {
		return 512
	}
	return dyn
}

// ReserveForWords returns the output tokens to reserve for a report of the
// given length, including its JSON framing.
func ReserveForWords(words int) int {
	if words <= 0 {
		return 0
	}
	return words * 2
}

// InputBudget is what remains of contextTokens for prompt input after the
// output reservation and headroom. It is never negative.
func InputBudget(contextTokens, reservedForOutput int) int {
	remaining := contextTokens - HeadroomTokens(contextTokens) - reservedForOutput
	if remaining < 0 {
		return 0
	}
	return remaining
}

// FitResearch trims source contents so that the research payload fits in
// maxTokens. Every source keeps at least MinSourceChars; short sources are
// left whole and their unused share goes to longer ones. Sections, sources
// and URLs are never dropped. It reports whether anything was trimmed.
func FitResearch(out research.Output, maxTokens int) (research.Output, bool) {
	var lengths []int
	overhead := 0
	for _, s := range out.Sections {
		overhead += utf8.RuneCountInString(s.SubQuestion)
		for _, src := range s.Sources {
			lengths = append(lengths, utf8.RuneCountInString(src.Content))
			overhead += utf8.RuneCountInString(src.Title) + len(src.URL)
		}
	}
	total := overhead
	for _, l := range lengths {
		total += l
	}
	if len(lengths) == 0 || EstimateTokensFromChars(total) <= maxTokens {
		return out, false
	}

	limit := contentCap(lengths, maxTokens*charsPerToken-overhead)
	if limit < MinSourceChars {
		limit = MinSourceChars
	}
	trimmed := false
	sections := make([]research.Section, len(out.Sections))
	for i, s := range out.Sections {
		sources := make([]research.SourceSection, len(s.Sources))
		for j, src := range s.Sources {
			if utf8.RuneCountInString(src.Content) > limit {
				src.Content = truncateRunes(src.Content, limit)
				trimmed = true
			}
			sources[j] = src
		}
		sections[i] = research.Section{SubQuestion: s.SubQuestion, Sources: sources}
	}
	if !trimmed {
		return out, false
	}
	fitted, err := out.WithSections(sections)
	if err != nil {
		return out, false
	}
	return fitted, true
}

// contentCap finds the largest per-source cap c with sum(min(len, c)) <= budget.
func contentCap(lengths []int, budget int) int {
	if budget <= 0 {
		return 0
	}
	sorted := append([]int(nil), lengths...)
	sort.Ints(sorted)
	remaining := budget
	for i, l := range sorted {
		share := remaining / (len(sorted) - i)
		if l > share {
			return share
		}
		remaining -= l
	}
	return sorted[len(sorted)-1]
}

func truncateRunes(s string, max int) string {
	if max <= 0 {
		return ""
	}
	i := 0
	for pos := range s {
		if i == max {
			return strings.TrimSpace(s[:pos])
		}
		i++
	}
	return s
}

// knownModelMax contains rough context sizes for common model identifiers.
var knownModelMax = map[string]int{
	"gpt-4o":            128_000,
	"gpt-4o-mini":       128_000,
	"gpt-4-turbo":       128_000,
	"gpt-4.1":           1_000_000,
	"gpt-3.5-turbo":     16_384,
	"claude-3-5-sonnet": 200_000,
	"claude-3-opus":     200_000,
	"claude-3-haiku":    200_000,
	"llama-3":           8_192,
	"llama3":            8_192,
	"llama-3.1":         128_000,
	"llama3.1":          128_000,
	"gpt-oss-20b":       4_096,
}

var sizeSuffixes = []struct {
	suffix string
	tokens int
}{
	{"1m", 1_000_000},
	{"512k", 512_000},
	{"200k", 200_000},
	{"128k", 128_000},
	{"32k", 32_768},
}
