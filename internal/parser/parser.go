// Package parser implements spec.md §4.2: resolve the crawler's cache
// hand-off, extract title/body/links from HTML, normalize links into the
// frontier, persist the document, and publish the resulting doc_id to the
// embedder.
package parser

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/FranksOps/foxeye/internal/bus"
	"github.com/FranksOps/foxeye/internal/cache"
	"github.com/FranksOps/foxeye/internal/metrics"
	"github.com/FranksOps/foxeye/internal/site"
	"github.com/FranksOps/foxeye/internal/store"
)

// cleanupPattern strips bracketed spans, non-ASCII runs, 4-space runs, and
// tab/newline/carriage-return characters, per spec.md §4.2.
var cleanupPattern = regexp.MustCompile(`\[.*?\]|[^\x00-\x7F]+| {4}|[\t\n\r]`)

// Service resolves cache hand-offs into persisted documents and frontier
// insertions.
type Service struct {
	Cache  *cache.Cache
	Store  store.Store
	Sites  site.Map
	Bus    *bus.Bus
	Logger *slog.Logger
}

// New constructs a Service.
func New(c *cache.Cache, s store.Store, sites site.Map, b *bus.Bus, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{Cache: c, Store: s, Sites: sites, Bus: b, Logger: logger}
}

// extracted holds the title, cleaned text, and raw outbound links pulled
// from one HTML document.
type extracted struct {
	Title string
	Body  string
	Links []string
}

// extract parses html once, detaches <script>/<style> subtrees before text
// extraction, and collects href attributes from every <a> element, per
// spec.md §4.2.
func extract(html []byte) (extracted, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return extracted{}, fmt.Errorf("context: %w", err)
	}

	doc.Find("script, style").Remove()

	title := strings.Join(strings.Fields(doc.Find("title").First().Text()), " ")
	body := strings.Join(strings.Fields(doc.Find("body").First().Text()), " ")
	if body == "" {
		return extracted{}, fmt.Errorf("parser: empty body")
	}

	var links []string
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		if href, ok := s.Attr("href"); ok {
			links = append(links, href)
		}
	})

	return extracted{Title: title, Body: body, Links: links}, nil
}

// normalizeLink applies spec.md §4.2's link normalization rule: base-join
// hrefs that look relative ("/"-prefixed or not "http"-prefixed), otherwise
// require the href to parse as an absolute URL on its own.
func normalizeLink(base *url.URL, href string) (*url.URL, bool) {
	if !strings.HasPrefix(href, "http") || strings.HasPrefix(href, "/") {
		ref, err := url.Parse(href)
		if err != nil {
			return nil, false
		}
		return base.ResolveReference(ref), true
	}

	abs, err := url.Parse(href)
	if err != nil || !abs.IsAbs() {
		return nil, false
	}
	return abs, true
}

// cleanText joins title and body with a space and applies the shared
// cleanup regex from spec.md §4.2.
func cleanText(title, body string) string {
	combined := title + " " + body
	return cleanupPattern.ReplaceAllString(combined, "")
}

// HandleCrawlID is the bus.Handler for the crawler→parser hop. Per spec.md
// §4.2/§7, an empty id, a missing cache entry, HTML with no body, or an
// unparsable source URL are all reported and dropped (handler returns nil);
// relational errors propagate so the caller does not ack.
func (s *Service) HandleCrawlID(ctx context.Context, id string) error {
	if id == "" {
		s.Logger.Warn("parser: empty id, dropping")
		metrics.ParseOutcomesTotal.WithLabelValues("empty_id").Inc()
		return nil
	}

	rec, ok, err := s.Cache.GetRecord(ctx, id)
	if err != nil {
		return fmt.Errorf("context: %w", err)
	}
	if !ok {
		s.Logger.Warn("parser: cache miss, dropping", "id", id)
		metrics.ParseOutcomesTotal.WithLabelValues("cache_miss").Inc()
		return nil
	}

	base, err := url.Parse(rec.URL)
	if err != nil || !base.IsAbs() {
		s.Logger.Warn("parser: bad source URL, dropping", "id", id, "url", rec.URL)
		metrics.ParseOutcomesTotal.WithLabelValues("bad_url").Inc()
		return nil
	}

	ext, err := extract([]byte(rec.Content))
	if err != nil {
		s.Logger.Warn("parser: extraction failed, dropping", "id", id, "url", rec.URL, "error", err)
		metrics.ParseOutcomesTotal.WithLabelValues("empty_body").Inc()
		return nil
	}

	content := cleanText(ext.Title, ext.Body)

	docID, err := s.Store.UpsertDocument(ctx, rec.URL, ext.Title, content)
	if err != nil {
		return fmt.Errorf("context: %w", err)
	}

	if err := s.insertLinks(ctx, base, ext.Links, rec.Depth+1); err != nil {
		return fmt.Errorf("context: %w", err)
	}

	if err := s.Bus.Publish(ctx, bus.ParserToEmbedder, docID); err != nil {
		return fmt.Errorf("context: %w", err)
	}

	metrics.ParseOutcomesTotal.WithLabelValues("success").Inc()
	s.Logger.Info("parser: persisted document", "id", id, "doc_id", docID, "url", rec.URL)
	return nil
}

// insertLinks normalizes raw hrefs against base, keeps only links whose
// host is in the configured site map, and bulk-inserts them into the
// frontier at depth.
func (s *Service) insertLinks(ctx context.Context, base *url.URL, rawLinks []string, depth int) error {
	var rows []store.FrontierURL
	for _, raw := range rawLinks {
		resolved, ok := normalizeLink(base, raw)
		if !ok {
			continue
		}
		host := resolved.Hostname()
		if _, inScope := s.Sites[host]; !inScope {
			continue
		}
		rows = append(rows, store.FrontierURL{
			URL:   resolved.String(),
			Host:  host,
			Depth: depth,
		})
	}
	if len(rows) == 0 {
		return nil
	}
	return s.Store.EnqueueURLs(ctx, rows)
}

// Reconcile implements spec.md §4.2's send_missing_ids() startup pass:
// republish the doc_id of every document with zero chunks, recovering from
// crashes that lost a parser→embedder hand-off.
func (s *Service) Reconcile(ctx context.Context) (int, error) {
	ids, err := s.Store.DocumentsWithoutChunks(ctx)
	if err != nil {
		return 0, fmt.Errorf("context: %w", err)
	}
	for _, id := range ids {
		if err := s.Bus.Publish(ctx, bus.ParserToEmbedder, id); err != nil {
			return 0, fmt.Errorf("context: %w", err)
		}
	}
	s.Logger.Info("parser: reconciliation republished doc_ids", "count", len(ids))
	return len(ids), nil
}

// Run drives HandleCrawlID from the crawler→parser bus hop until ctx is
// cancelled.
func (s *Service) Run(ctx context.Context, consumerName string) error {
	return s.Bus.Consume(ctx, bus.CrawlerToParser, consumerName, false, s.HandleCrawlID)
}
