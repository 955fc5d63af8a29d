package extract

import (
	"bytes"
	"net/url"
	"strings"

	readability "codeberg.org/readeck/go-readability/v2"
	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"golang.org/x/net/html"
)

// Extractor defines a minimal interface for content extraction strategies.
// Implementations can swap readability tactics without changing callers.
type Extractor interface {
	// Extract converts raw HTML bytes into a simplified Document. pageURL
	// resolves relative references and may be empty.
	Extract(input []byte, pageURL string) Document
}

// readabilityMinWords is the smallest readability result trusted over the
// plain <main>/<article>/<body> root.
const readabilityMinWords = 50

// ReadabilityExtractor locates the main content with go-readability, prunes
// boilerplate blocks, converts the result to markdown and strips link markup.
// When readability finds too little text the page's <main>, <article> or
// <body> element is used instead.
type ReadabilityExtractor struct {
	Prune PruneOptions
}

func (e ReadabilityExtractor) Extract(input []byte, pageURL string) Document {
	doc, err := parseHTML(input)
	if err != nil || doc == nil {
		return Document{}
	}
	title := findTitle(doc)

	root := contentRoot(doc)
	parsedURL, _ := url.Parse(pageURL)
	article, err := readability.FromReader(bytes.NewReader(input), parsedURL)
	if err == nil && article.Node != nil {
		if title == "" {
			title = strings.TrimSpace(article.Title())
		}
		var buf bytes.Buffer
		if article.RenderText(&buf) == nil && len(strings.Fields(buf.String())) >= readabilityMinWords {
			root = article.Node
		}
	}

	return Document{Title: title, Text: e.render(root)}
}

// render prunes root in place and returns cleaned text.
func (e ReadabilityExtractor) render(root *html.Node) string {
	Prune(root, e.Prune)
	unwrapLinks(root)
	var text string
	if md, err := htmltomarkdown.ConvertNode(root); err == nil {
		text = string(md)
	} else {
		text = plainText(root)
	}
	return normalizeContent(StripLinks(text))
}
