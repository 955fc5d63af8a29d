package extract

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

var (
	// ![alt](src) including one level of nested parentheses in the target.
	// Escaped brackets such as \[1\] may appear in the alt text.
	imagePattern = regexp.MustCompile(`!\[(?:\\.|[^\[\]\\])*\]\((?:[^()]|\([^()]*\))*\)`)
	// [text](target) keeps text, escaped brackets included.
	linkPattern = regexp.MustCompile(`\[((?:\\.|[^\[\]\\])*)\]\((?:[^()]|\([^()]*\))*\)`)
	// <https://example.com> autolinks carry nothing but the target.
	autolinkPattern = regexp.MustCompile(`<(?:https?|mailto|ftp):[^>\s]*>`)
)

// StripLinks removes inline hyperlink markup, keeping each link's visible
// text and discarding its target. Images are dropped entirely. The transform
// is applied until nothing changes, so StripLinks(StripLinks(s)) == StripLinks(s).
func StripLinks(s string) string {
	for {
		next := imagePattern.ReplaceAllString(s, "")
		next = linkPattern.ReplaceAllString(next, "$1")
		next = autolinkPattern.ReplaceAllString(next, "")
		if next == s {
			return s
		}
		s = next
	}
}

// unwrapLinks replaces every <a> element under n with its children, so the
// markdown converter only sees the link text.
func unwrapLinks(n *html.Node) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		unwrapLinks(c)
		if c.Type == html.ElementNode && strings.EqualFold(c.Data, "a") {
			for gc := c.FirstChild; gc != nil; {
				gnext := gc.NextSibling
				c.RemoveChild(gc)
				n.InsertBefore(gc, c)
				gc = gnext
			}
			n.RemoveChild(c)
		}
		c = next
	}
}
