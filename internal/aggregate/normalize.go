package aggregate

import (
	"net/url"
	"strings"

	"github.com/hyperifyio/reportbuilder/internal/search"
)

var trackingParams = []string{"utm_source", "utm_medium", "utm_campaign", "utm_term", "utm_content", "utm_id", "gclid", "fbclid"}

// NormalizeResults canonicalizes URLs, trims obvious tracking parameters,
// and de-duplicates exact URLs while preserving provider order.
func NormalizeResults(results []search.Result) []search.Result {
	seen := map[string]struct{}{}
	out := make([]search.Result, 0, len(results))
	for _, r := range results {
		if r.URL == "" {
			continue
		}
		u, err := url.Parse(r.URL)
		if err != nil {
			continue
		}
		normalizeURL(u)
		key := u.String()
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		r.URL = key
		out = append(out, r)
	}
	return out
}

func normalizeURL(u *url.URL) {
	u.Fragment = ""
	u.RawFragment = ""
	u.Host = strings.ToLower(u.Host)
	if u.RawQuery == "" {
		return
	}
	q := u.Query()
	for _, p := range trackingParams {
		q.Del(p)
	}
	u.RawQuery = q.Encode()
}
