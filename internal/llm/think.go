package llm

import (
	"regexp"
	"strings"
)

var (
	thinkBlock = regexp.MustCompile(`(?is)<think>.*?</think>`)
	// Some models omit the opening tag and only emit the closing one.
	danglingThink = regexp.MustCompile(`(?is)^.*?</think>`)
)

// StripThinking removes reasoning blocks such as <think>...</think> that
// local reasoning models prepend to their answer, and trims the result.
func StripThinking(s string) string {
	s = thinkBlock.ReplaceAllString(s, "")
	s = danglingThink.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}
