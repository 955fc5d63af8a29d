package search

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"strings"
)

// FileProvider loads search results from a local JSON file for offline/testing use.
// The JSON file format is an array of objects: {"title": "...", "url": "...", "snippet": "..."}.
// Entries match when any query word of four or more letters appears in the
// title or snippet; a query without such words matches everything.
type FileProvider struct {
	Path string
}

func (f *FileProvider) Name() string { return "file" }

func (f *FileProvider) Search(_ context.Context, query string, limit int) ([]Result, error) {
	if strings.TrimSpace(f.Path) == "" {
		return nil, providerErr(f.Name(), errors.New("file provider path is empty"))
	}
	b, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, providerErr(f.Name(), err)
	}
	var raw []Result
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil, providerErr(f.Name(), err)
	}
	words := strings.Fields(strings.ToLower(query))
	out := make([]Result, 0, len(raw))
	for _, r := range raw {
		u, ok := absoluteHTTPURL(r.URL)
		if !ok || r.Title == "" {
			continue
		}
		if !matchesAny(strings.ToLower(r.Title+" "+r.Snippet), words) {
			continue
		}
		r.URL = u
		r.Source = f.Name()
		out = append(out, r)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	if len(out) == 0 {
		return nil, providerErr(f.Name(), ErrNoResults)
	}
	return out, nil
}

func matchesAny(haystack string, words []string) bool {
	significant := 0
	for _, w := range words {
		w = strings.Trim(w, "?!.,;:\"'()")
		if len(w) < 4 {
			continue
		}
		significant++
		if strings.Contains(haystack, w) {
			return true
		}
	}
	return significant == 0
}
