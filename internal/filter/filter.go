package filter

import (
	"net/url"
	"strings"

	"github.com/hyperifyio/reportbuilder/internal/search"
)

// SkipThreshold is the configured result count at or below which filtering
// is skipped, so a small result set is never filtered down to nothing.
const SkipThreshold = 3

// Options configures blacklist filtering.
type Options struct {
	Enabled bool
	// ConfiguredResults is the configured number of search results per
	// sub-question, not the number actually returned.
	ConfiguredResults int
	// Blacklist holds hosts compared exactly against the URL host (port
	// included). There is no suffix or wildcard matching.
	Blacklist []string
}

// Active reports whether Filter would remove anything at all.
func (o Options) Active() bool {
	return o.Enabled && o.ConfiguredResults > SkipThreshold && len(o.Blacklist) > 0
}

// Filter drops results whose host is blacklisted. It returns results
// unchanged when filtering is disabled or the configured result count is at
// or below SkipThreshold. Order of the kept results is preserved.
func Filter(results []search.Result, opt Options) []search.Result {
	if !opt.Active() {
		return results
	}
	deny := make(map[string]struct{}, len(opt.Blacklist))
	for _, h := range opt.Blacklist {
		h = strings.ToLower(strings.TrimSpace(h))
		if h != "" {
			deny[h] = struct{}{}
		}
	}
	out := make([]search.Result, 0, len(results))
	for _, r := range results {
		if _, blocked := deny[hostOf(r.URL)]; blocked {
			continue
		}
		out = append(out, r)
	}
	return out
}

func hostOf(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Host)
}
