package extract

import (
	"bytes"
	"math"
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
)

// DefaultPruneThreshold is the minimum block score kept by Prune.
const DefaultPruneThreshold = 0.48

// PruneOptions configures the content-pruning pass.
type PruneOptions struct {
	// Threshold is the minimum score a block needs to survive. Zero means
	// DefaultPruneThreshold.
	Threshold float64
	// Dynamic adjusts the threshold per block: important tags and dense
	// text lower it, link-heavy blocks raise it.
	Dynamic bool
}

func (o PruneOptions) threshold() float64 {
	if o.Threshold <= 0 {
		return DefaultPruneThreshold
	}
	return o.Threshold
}

// Score weights. They sum to 1 so a score is a weighted mean, except for the
// logarithmic text-length term which lets long blocks outscore short ones.
const (
	weightTextDensity = 0.4
	weightLinkDensity = 0.2
	weightTag         = 0.2
	weightClassID     = 0.1
	weightTextLength  = 0.1
)

var tagWeights = map[string]float64{
	"div":     0.5,
	"p":       1.0,
	"article": 1.5,
	"section": 1.0,
	"li":      0.5,
	"ul":      0.5,
	"ol":      0.5,
	"h1":      1.2,
	"h2":      1.1,
	"h3":      1.0,
	"h4":      0.9,
	"h5":      0.8,
	"h6":      0.7,
}

var tagImportance = map[string]float64{
	"article": 1.5,
	"main":    1.4,
	"section": 1.3,
	"p":       1.2,
	"h1":      1.4,
	"h2":      1.3,
	"h3":      1.2,
	"div":     0.7,
}

// Always removed, regardless of score.
var excludedTags = map[string]bool{
	"nav":      true,
	"footer":   true,
	"header":   true,
	"aside":    true,
	"script":   true,
	"style":    true,
	"form":     true,
	"iframe":   true,
	"noscript": true,
	"button":   true,
	"input":    true,
	"select":   true,
	"svg":      true,
}

var negativeClassID = regexp.MustCompile(`(?i)nav|footer|header|sidebar|ads|comment|promo|advert|social|share`)

func excludedElement(n *html.Node) bool {
	if n.Type != html.ElementNode {
		return false
	}
	return excludedTags[strings.ToLower(n.Data)] || isBoilerplateContainer(n)
}

// blockMetrics holds the measurements a block is scored on.
type blockMetrics struct {
	tag        string
	textLen    int
	linkLen    int
	markupLen  int
	classScore float64
}

// Prune removes boilerplate from the subtree rooted at root in place. The
// root itself is never removed. Excluded tags and cookie/consent containers
// go unconditionally. Block elements (div, p, section, lists, headings) are
// scored on text density, link density, tag weight, class/id hints and text
// length, and dropped with their subtree when the score falls below the
// threshold. Inline elements are never scored, so link text inside a kept
// paragraph survives.
func Prune(root *html.Node, opt PruneOptions) {
	if root == nil {
		return
	}
	removeExcluded(root)
	pruneChildren(root, opt)
}

func removeExcluded(n *html.Node) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		if excludedElement(c) {
			n.RemoveChild(c)
		} else {
			removeExcluded(c)
		}
		c = next
	}
}

func pruneChildren(n *html.Node, opt PruneOptions) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		if c.Type == html.ElementNode {
			if _, scored := tagWeights[strings.ToLower(c.Data)]; scored && !keep(measure(c), opt) {
				n.RemoveChild(c)
			} else {
				pruneChildren(c, opt)
			}
		}
		c = next
	}
}

func measure(n *html.Node) blockMetrics {
	m := blockMetrics{tag: strings.ToLower(n.Data), classScore: 1}
	var walk func(*html.Node, bool)
	walk = func(cur *html.Node, inLink bool) {
		if cur.Type == html.TextNode {
			l := utf8.RuneCountInString(strings.TrimSpace(cur.Data))
			m.textLen += l
			if inLink {
				m.linkLen += l
			}
			return
		}
		if cur.Type == html.ElementNode && strings.EqualFold(cur.Data, "a") {
			inLink = true
		}
		for c := cur.FirstChild; c != nil; c = c.NextSibling {
			walk(c, inLink)
		}
	}
	walk(n, false)

	var buf bytes.Buffer
	if err := html.Render(&buf, n); err == nil {
		m.markupLen = utf8.RuneCount(buf.Bytes())
	}

	for _, a := range n.Attr {
		if (a.Key == "class" || a.Key == "id") && negativeClassID.MatchString(a.Val) {
			m.classScore -= 0.5
		}
	}
	if m.classScore < 0 {
		m.classScore = 0
	}
	return m
}

func (m blockMetrics) textRatio() float64 {
	if m.markupLen == 0 {
		return 0
	}
	return float64(m.textLen) / float64(m.markupLen)
}

func (m blockMetrics) linkRatio() float64 {
	if m.textLen == 0 {
		return 1
	}
	return float64(m.linkLen) / float64(m.textLen)
}

func (m blockMetrics) score() float64 {
	s := weightTextDensity*m.textRatio() +
		weightLinkDensity*(1-m.linkRatio()) +
		weightTag*tagWeights[m.tag] +
		weightClassID*m.classScore +
		weightTextLength*math.Log(float64(m.textLen)+1)
	total := weightTextDensity + weightLinkDensity + weightTag + weightClassID + weightTextLength
	return s / total
}

func keep(m blockMetrics, opt PruneOptions) bool {
	if m.textLen == 0 {
		return false
	}
	threshold := opt.threshold()
	if opt.Dynamic {
		importance, ok := tagImportance[m.tag]
		if !ok {
			importance = 0.7
		}
		if importance > 1 {
			threshold *= 0.8
		}
		if m.textRatio() > 0.4 {
			threshold *= 0.9
		}
		if m.linkRatio() > 0.6 {
			threshold *= 1.2
		}
	}
	return m.score() >= threshold
}
