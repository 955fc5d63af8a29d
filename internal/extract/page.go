package extract

import (
	"context"
	"errors"
	"fmt"
)

// ErrEmptyContent reports a page with no text left after pruning.
var ErrEmptyContent = errors.New("no content after pruning")

// ExtractError reports why one URL produced no usable content.
type ExtractError struct {
	URL string
	Err error
}

func (e *ExtractError) Error() string {
	return fmt.Sprintf("extract %s: %v", e.URL, e.Err)
}

func (e *ExtractError) Unwrap() error { return e.Err }

// Getter fetches a page body and its content type.
type Getter interface {
	Get(ctx context.Context, url string) ([]byte, string, error)
}

// WebPage fetches a URL and turns it into cleaned text.
type WebPage struct {
	Fetcher   Getter
	Extractor Extractor
	// MaxChars caps the returned text in runes; zero disables the cap.
	MaxChars int
}

// Extract fetches url and returns its pruned, link-stripped content. Any
// failure, including an empty result, is an *ExtractError.
func (w *WebPage) Extract(ctx context.Context, url string) (Document, error) {
	body, _, err := w.Fetcher.Get(ctx, url)
	if err != nil {
		return Document{}, &ExtractError{URL: url, Err: err}
	}
	ex := w.Extractor
	if ex == nil {
		ex = ReadabilityExtractor{Prune: PruneOptions{Dynamic: true}}
	}
	doc := ex.Extract(body, url)
	doc.Text = truncateRunes(doc.Text, w.MaxChars)
	if doc.Text == "" {
		return Document{}, &ExtractError{URL: url, Err: ErrEmptyContent}
	}
	return doc, nil
}
