package search

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/net/html"
)

// DefaultDuckDuckGoURL is the JavaScript-free results endpoint.
const DefaultDuckDuckGoURL = "https://html.duckduckgo.com/html/"

// DuckDuckGo implements Provider by scraping the HTML results page.
type DuckDuckGo struct {
	BaseURL    string // optional; defaults to DefaultDuckDuckGoURL
	HTTPClient *http.Client
	UserAgent  string
}

func (d *DuckDuckGo) Name() string { return "duckduckgo" }

func (d *DuckDuckGo) Search(ctx context.Context, query string, limit int) ([]Result, error) {
	if limit <= 0 {
		limit = 10
	}
	base := d.BaseURL
	if base == "" {
		base = DefaultDuckDuckGoURL
	}
	u, err := url.Parse(base)
	if err != nil {
		return nil, providerErr(d.Name(), err)
	}
	q := u.Query()
	q.Set("q", query)
	u.RawQuery = q.Encode()

	doc, _, err := getPage(ctx, d.HTTPClient, u.String(), d.UserAgent)
	if err != nil {
		return nil, providerErr(d.Name(), err)
	}
	out := parseDuckDuckGo(doc, limit)
	if len(out) == 0 {
		if isDuckDuckGoChallenge(doc) {
			return nil, providerErr(d.Name(), fmt.Errorf("%w: challenge page", ErrRateLimited))
		}
		return nil, providerErr(d.Name(), ErrNoResults)
	}
	for i := range out {
		out[i].Source = d.Name()
	}
	return out, nil
}

func parseDuckDuckGo(doc *html.Node, limit int) []Result {
	out := make([]Result, 0, limit)
	seen := map[string]struct{}{}
	var visit func(n *html.Node, inAd bool)
	visit = func(n *html.Node, inAd bool) {
		if len(out) >= limit {
			return
		}
		if n.Type == html.ElementNode {
			if hasClass(n, "result--ad") {
				inAd = true
			}
			if n.Data == "a" && hasClass(n, "result__a") && !inAd {
				target, ok := unwrapDuckDuckGoHref(attr(n, "href"))
				title := textOf(n)
				if ok && title != "" {
					if _, dup := seen[target]; !dup {
						seen[target] = struct{}{}
						out = append(out, Result{Title: title, URL: target})
					}
				}
				return
			}
			if n.Data == "a" && hasClass(n, "result__snippet") && len(out) > 0 && !inAd {
				last := &out[len(out)-1]
				if last.Snippet == "" {
					last.Snippet = textOf(n)
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			visit(c, inAd)
		}
	}
	visit(doc, false)
	return out
}

// unwrapDuckDuckGoHref resolves //duckduckgo.com/l/?uddg=<target> redirect
// links to their target. Direct links are returned unchanged.
func unwrapDuckDuckGoHref(href string) (string, bool) {
	href = strings.TrimSpace(href)
	if strings.HasPrefix(href, "//") {
		href = "https:" + href
	} else if strings.HasPrefix(href, "/l/") {
		href = "https://duckduckgo.com" + href
	}
	u, err := url.Parse(href)
	if err != nil {
		return "", false
	}
	if strings.HasSuffix(strings.ToLower(u.Hostname()), "duckduckgo.com") {
		target := u.Query().Get("uddg")
		if target == "" {
			return "", false
		}
		return absoluteHTTPURL(target)
	}
	return absoluteHTTPURL(href)
}

// isDuckDuckGoChallenge recognizes the bot-check page served with 200.
func isDuckDuckGoChallenge(doc *html.Node) bool {
	found := false
	walk(doc, func(n *html.Node) bool {
		if n.Type == html.ElementNode && (hasClass(n, "anomaly-modal__modal") || strings.Contains(attr(n, "action"), "anomaly")) {
			found = true
			return false
		}
		return true
	})
	return found
}
