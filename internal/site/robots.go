package site

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/FranksOps/foxeye/pkg/httpclient"
)

// Rules holds allow/disallow path-prefix lists keyed by user agent,
// accumulated from a robots.txt file in file order.
type Rules struct {
	Allow    map[string][]string
	Disallow map[string][]string
}

// IsAllowed resolves path against the rules recorded for agent: any
// matching allow prefix wins, then any matching disallow prefix, and the
// default is true (allowed) when neither matches.
func (r Rules) IsAllowed(agent, path string) bool {
	for _, prefix := range r.Allow[agent] {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	for _, prefix := range r.Disallow[agent] {
		if strings.HasPrefix(path, prefix) {
			return false
		}
	}
	return true
}

// defaultRules allows everything for every agent.
func defaultRules() Rules {
	return Rules{Allow: map[string][]string{}, Disallow: map[string][]string{}}
}

// FetchRules fetches "<baseURL>/robots.txt" and parses it. A 404 response
// yields the all-allow default rather than an error.
func FetchRules(ctx context.Context, client *httpclient.Client, baseURL string) (Rules, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimSuffix(baseURL, "/")+"/robots.txt", nil)
	if err != nil {
		return Rules{}, fmt.Errorf("context: %w", err)
	}

	resp, err := client.Do(ctx, req)
	if err != nil {
		return Rules{}, fmt.Errorf("context: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return defaultRules(), nil
	}
	if resp.StatusCode >= 400 {
		return Rules{}, fmt.Errorf("context: robots.txt returned status %d", resp.StatusCode)
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		return Rules{}, fmt.Errorf("context: %w", err)
	}

	return ParseRules(buf.Bytes()), nil
}

// ParseRules scans robots.txt line by line, recognizing "User-agent:",
// "Allow:", and "Disallow:" case-sensitive prefixes, maintaining a rolling
// "current agent" (default "*") per spec.md §4.1.
func ParseRules(body []byte) Rules {
	rules := defaultRules()
	currentAgent := "*"

	scanner := bufio.NewScanner(bytes.NewReader(body))
	for scanner.Scan() {
		line := scanner.Text()

		switch {
		case strings.HasPrefix(line, "User-agent:"):
			currentAgent = strings.TrimSpace(strings.SplitN(line, ":", 2)[1])
			if _, ok := rules.Allow[currentAgent]; !ok {
				rules.Allow[currentAgent] = nil
			}
			if _, ok := rules.Disallow[currentAgent]; !ok {
				rules.Disallow[currentAgent] = nil
			}
		case strings.HasPrefix(line, "Allow:"):
			path := strings.TrimSpace(strings.SplitN(line, ":", 2)[1])
			rules.Allow[currentAgent] = append(rules.Allow[currentAgent], path)
		case strings.HasPrefix(line, "Disallow:"):
			path := strings.TrimSpace(strings.SplitN(line, ":", 2)[1])
			rules.Disallow[currentAgent] = append(rules.Disallow[currentAgent], path)
		}
	}

	return rules
}
