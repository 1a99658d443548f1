package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"mapscout/browser"
	"mapscout/utils"
)

// SessionSearchClient answers search queries through a stealth browser
// session, the same harness collection jobs use. Each query takes its own
// session slot; when the pool is full the lookup fails and enrichment
// records a warning instead.
type SessionSearchClient struct {
	logger   *utils.Logger
	sessions *browser.Manager
}

// NewSessionSearchClient creates a SearchClient backed by the session
// manager.
func NewSessionSearchClient(logger *utils.Logger, sessions *browser.Manager) *SessionSearchClient {
	return &SessionSearchClient{logger: logger, sessions: sessions}
}

// Search runs the query and returns up to limit outbound result URLs.
func (c *SessionSearchClient) Search(ctx context.Context, query string, limit int) ([]string, error) {
	session, err := c.sessions.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer session.Release()

	target := "https://www.google.com/search?q=" + url.QueryEscape(query)
	if err := session.Navigate(ctx, target); err != nil {
		return nil, err
	}
	if err := session.CheckCaptcha(ctx); err != nil {
		return nil, err
	}

	var rawJSON string
	if err := session.Evaluate(ctx, resultLinksScript, &rawJSON); err != nil {
		return nil, fmt.Errorf("collect result links: %w", err)
	}
	var links []string
	if err := json.Unmarshal([]byte(rawJSON), &links); err != nil {
		return nil, fmt.Errorf("decode result links: %w", err)
	}

	results := filterResultLinks(links, limit)
	c.logger.Debug("[search] %q returned %d links, kept %d", query, len(links), len(results))
	return results, nil
}

// filterResultLinks drops the search engine's own URLs, dedupes, and caps
// the list at limit.
func filterResultLinks(links []string, limit int) []string {
	seen := make(map[string]bool)
	var out []string
	for _, link := range links {
		if link == "" || strings.Contains(link, "google.") || seen[link] {
			continue
		}
		seen[link] = true
		out = append(out, link)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

const resultLinksScript = `(function () {
  const anchors = document.querySelectorAll('div#search a[href^="http"], div#rso a[href^="http"]');
  return JSON.stringify(Array.from(anchors).map(a => a.href));
})();`
