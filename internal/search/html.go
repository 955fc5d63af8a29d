package search

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/html"
)

const maxResultPageBytes = 4 << 20

// getPage fetches a provider result page. Throttling statuses map to
// ErrRateLimited so the caller can fall back quickly.
func getPage(ctx context.Context, hc *http.Client, rawURL, userAgent string) (*html.Node, *http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, nil, err
	}
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	req.Header.Set("Accept-Language", "en-US,en;q=0.8")
	if hc == nil {
		hc = &http.Client{Timeout: 10 * time.Second}
	}
	resp, err := hc.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()
	switch resp.StatusCode {
	case http.StatusTooManyRequests, http.StatusForbidden, http.StatusAccepted, http.StatusServiceUnavailable:
		return nil, resp, fmt.Errorf("%w: status %d", ErrRateLimited, resp.StatusCode)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, resp, fmt.Errorf("status: %d", resp.StatusCode)
	}
	doc, err := html.Parse(io.LimitReader(resp.Body, maxResultPageBytes))
	if err != nil {
		return nil, resp, fmt.Errorf("parse results page: %w", err)
	}
	return doc, resp, nil
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, key) {
			return a.Val
		}
	}
	return ""
}

func hasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(attr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}

// walk visits n and its descendants depth-first until fn returns false.
func walk(n *html.Node, fn func(*html.Node) bool) bool {
	if !fn(n) {
		return false
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if !walk(c, fn) {
			return false
		}
	}
	return true
}

func textOf(n *html.Node) string {
	var b strings.Builder
	walk(n, func(cur *html.Node) bool {
		if cur.Type == html.TextNode {
			b.WriteString(cur.Data)
		}
		return true
	})
	return strings.Join(strings.Fields(b.String()), " ")
}

func firstElement(n *html.Node, tag string) *html.Node {
	var res *html.Node
	walk(n, func(cur *html.Node) bool {
		if cur.Type == html.ElementNode && strings.EqualFold(cur.Data, tag) {
			res = cur
			return false
		}
		return true
	})
	return res
}
