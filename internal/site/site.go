// Package site holds per-host crawl configuration: the seed URL, optional
// depth and rate limits, the politeness timer, and the parsed robots.txt
// rule set for that host.
package site

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"

	"github.com/FranksOps/foxeye/pkg/httpclient"
	"github.com/FranksOps/foxeye/pkg/ratelimit"
)

// UserAgent is the single fixed User-Agent the crawler identifies itself
// with. The spec calls for one constant identity, not a rotating pool.
const UserAgent = "Foxeye Search"

// Entry is one line of sites.json before it is resolved into a Site.
type Entry struct {
	URL   string `json:"url"`
	Depth *int   `json:"depth,omitempty"`
	RPS   *int   `json:"rps,omitempty"`
}

// Config is the top-level shape of sites.json.
type Config struct {
	Sites []Entry `json:"sites"`
}

// Site is one configured crawl target: a host, its seed URL, optional max
// depth, and its politeness timer and robots rule set.
type Site struct {
	Host     string
	Seed     *url.URL
	MaxDepth *int
	Timer    *ratelimit.Timer
	Robots   Rules
}

// Map indexes configured sites by host for O(1) membership checks.
type Map map[string]*Site

// LoadFile reads sites.json from path, resolves each entry's robots.txt over
// HTTP using client, and returns a Map keyed by host. A robots.txt fetch
// failure (anything other than a 404) aborts the whole load, matching
// spec.md §4.1's "robots fetch failures at startup propagate upward".
func LoadFile(ctx context.Context, path string, client *httpclient.Client) (Map, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("context: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("context: %w", err)
	}

	return Load(ctx, cfg, client)
}

// Load resolves a parsed Config into a Map, fetching and parsing each site's
// robots.txt.
func Load(ctx context.Context, cfg Config, client *httpclient.Client) (Map, error) {
	out := make(Map, len(cfg.Sites))

	for _, e := range cfg.Sites {
		u, err := url.Parse(e.URL)
		if err != nil {
			return nil, fmt.Errorf("context: invalid site url %q: %w", e.URL, err)
		}
		if u.Host == "" {
			return nil, fmt.Errorf("context: site url %q has no host", e.URL)
		}

		rps := 0.0
		if e.RPS != nil && *e.RPS > 0 {
			rps = float64(*e.RPS)
		}

		rules, err := FetchRules(ctx, client, u.Scheme+"://"+u.Host)
		if err != nil {
			return nil, fmt.Errorf("context: robots.txt for %s: %w", u.Host, err)
		}

		out[u.Host] = &Site{
			Host:     u.Host,
			Seed:     u,
			MaxDepth: e.Depth,
			Timer:    ratelimit.NewTimer(rps),
			Robots:   rules,
		}
	}

	return out, nil
}

// IsAllowed reports whether path is crawlable on this site for the fixed
// foxeye user agent.
func (s *Site) IsAllowed(path string) bool {
	return s.Robots.IsAllowed(UserAgent, path)
}
