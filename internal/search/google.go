package search

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/net/html"
)

// DefaultGoogleURL is the web results endpoint.
const DefaultGoogleURL = "https://www.google.com/search"

// googleUserAgent asks for the lightweight HTML variant of the results page.
const googleUserAgent = "Lynx/2.9.0 libwww-FM/2.14 SSL-MM/1.4.1 GNUTLS/3.7.8"

// Google implements Provider by scraping the basic HTML results page.
type Google struct {
	BaseURL    string // optional; defaults to DefaultGoogleURL
	HTTPClient *http.Client
	UserAgent  string // optional; defaults to a text-browser UA
	Language   string // optional hl parameter, defaults to "en"
}

func (g *Google) Name() string { return "google" }

func (g *Google) Search(ctx context.Context, query string, limit int) ([]Result, error) {
	if limit <= 0 {
		limit = 10
	}
	base := g.BaseURL
	if base == "" {
		base = DefaultGoogleURL
	}
	u, err := url.Parse(base)
	if err != nil {
		return nil, providerErr(g.Name(), err)
	}
	lang := g.Language
	if lang == "" {
		lang = "en"
	}
	q := u.Query()
	q.Set("q", query)
	// Ask for a couple of extra hits since some are google-owned and dropped.
	q.Set("num", strconv.Itoa(limit+2))
	q.Set("hl", lang)
	q.Set("safe", "active")
	u.RawQuery = q.Encode()

	ua := g.UserAgent
	if ua == "" {
		ua = googleUserAgent
	}
	doc, resp, err := getPage(ctx, g.HTTPClient, u.String(), ua)
	if err != nil {
		return nil, providerErr(g.Name(), err)
	}
	if resp != nil && resp.Request != nil && strings.HasPrefix(resp.Request.URL.Path, "/sorry") {
		return nil, providerErr(g.Name(), fmt.Errorf("%w: captcha redirect", ErrRateLimited))
	}
	out := parseGoogle(doc, limit)
	if len(out) == 0 {
		return nil, providerErr(g.Name(), ErrNoResults)
	}
	for i := range out {
		out[i].Source = g.Name()
	}
	return out, nil
}

func parseGoogle(doc *html.Node, limit int) []Result {
	out := make([]Result, 0, limit)
	seen := map[string]struct{}{}
	walk(doc, func(n *html.Node) bool {
		if len(out) >= limit {
			return false
		}
		if n.Type != html.ElementNode || n.Data != "a" {
			return true
		}
		target, ok := unwrapGoogleHref(attr(n, "href"))
		if !ok {
			return true
		}
		if _, dup := seen[target]; dup {
			return true
		}
		title := ""
		if h3 := firstElement(n, "h3"); h3 != nil {
			title = textOf(h3)
		}
		if title == "" {
			title = textOf(n)
		}
		if title == "" {
			return true
		}
		seen[target] = struct{}{}
		out = append(out, Result{Title: title, URL: target})
		return true
	})
	return out
}

// unwrapGoogleHref resolves /url?q=<target> links and drops google-owned
// destinations such as cached copies and account pages.
func unwrapGoogleHref(href string) (string, bool) {
	href = strings.TrimSpace(href)
	if !strings.HasPrefix(href, "/url?") {
		return "", false
	}
	u, err := url.Parse(href)
	if err != nil {
		return "", false
	}
	v := u.Query()
	target := v.Get("q")
	if target == "" {
		target = v.Get("url")
	}
	target, ok := absoluteHTTPURL(target)
	if !ok {
		return "", false
	}
	tu, err := url.Parse(target)
	if err != nil || isGoogleHost(tu.Hostname()) {
		return "", false
	}
	return target, true
}

func isGoogleHost(host string) bool {
	host = strings.ToLower(host)
	for _, h := range []string{"google.com", "googleusercontent.com", "gstatic.com"} {
		if host == h || strings.HasSuffix(host, "."+h) {
			return true
		}
	}
	return false
}
