// Package crawler implements spec.md §4.1: pull URLs from the frontier,
// enforce per-site politeness and robots, fetch HTML, deduplicate via the
// cache's seen-set, and publish hand-off ids to the parser.
package crawler

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"golang.org/x/sync/errgroup"

	"github.com/FranksOps/foxeye/internal/bus"
	"github.com/FranksOps/foxeye/internal/cache"
	"github.com/FranksOps/foxeye/internal/metrics"
	"github.com/FranksOps/foxeye/internal/site"
	"github.com/FranksOps/foxeye/internal/store"
	"github.com/FranksOps/foxeye/pkg/httpclient"
)

// MaxQueueSize bounds how many frontier rows populate() pulls per host in
// one pass, per spec.md §4.1.
const MaxQueueSize = 100

// TickInterval is how long crawl_loop sleeps after draining the in-process
// queue, per spec.md §4.1.
const TickInterval = 3 * time.Second

// item is one in-process queue entry: a URL awaiting a crawl attempt.
type item struct {
	URL   string
	Depth int
}

// rejectReason names why check_valid rejected a URL, used for logging and
// to distinguish the one reason (rate limit) that requeues.
type rejectReason string

const (
	reasonNoHost        rejectReason = "no host"
	reasonNotConfigured rejectReason = "host not configured"
	reasonMaxDepth      rejectReason = "max depth exceeded"
	reasonRobots        rejectReason = "disallowed by robots.txt"
	reasonSeen          rejectReason = "url exists in redis"
	reasonRateLimit     rejectReason = "rate limit exceeded"
)

// Crawler drives the frontier→cache→bus pipeline for a set of configured
// sites.
type Crawler struct {
	Sites       site.Map
	Store       store.Store
	Cache       *cache.Cache
	Bus         *bus.Bus
	Client      *httpclient.Client
	Logger      *slog.Logger
	Concurrency int
}

// New constructs a Crawler with a concurrency of 1; callers may raise
// Concurrency before calling Run to fetch items from the drained in-process
// queue in parallel, as the teacher's BFS crawler did with its worker pool.
func New(sites site.Map, st store.Store, c *cache.Cache, b *bus.Bus, client *httpclient.Client, logger *slog.Logger) *Crawler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Crawler{Sites: sites, Store: st, Cache: c, Bus: b, Client: client, Logger: logger, Concurrency: 1}
}

// Run executes crawl_loop until ctx is cancelled: populate the in-process
// queue from the frontier, crawl every valid item (fanning fetches out
// across Concurrency workers), sleep, repeat.
func (c *Crawler) Run(ctx context.Context) error {
	concurrency := c.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		queue, err := c.populate(ctx)
		if err != nil {
			return fmt.Errorf("context: %w", err)
		}

		for len(queue) > 0 {
			queue = c.drain(ctx, queue, concurrency)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(TickInterval):
		}
	}
}

// drain runs one pass of the queue through concurrency workers, returning
// the items that must be requeued (rate-limit rejections only).
func (c *Crawler) drain(ctx context.Context, queue []item, concurrency int) []item {
	work := make(chan item, len(queue))
	for _, it := range queue {
		work <- it
	}
	close(work)

	var mu sync.Mutex
	var requeue []item

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < concurrency; i++ {
		g.Go(func() error {
			for it := range work {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				if again := c.attempt(gctx, it); again != nil {
					mu.Lock()
					requeue = append(requeue, *again)
					mu.Unlock()
				}
			}
			return nil
		})
	}
	_ = g.Wait()

	return requeue
}

// attempt runs check_valid then, if it passes, crawl(). It returns a
// non-nil item when the URL must be requeued (rate-limit rejection only).
func (c *Crawler) attempt(ctx context.Context, it item) *item {
	s, reason, ok := c.checkValid(ctx, it)
	if !ok {
		c.Logger.Debug("crawler: rejected", "url", it.URL, "reason", reason)
		if reason == reasonRateLimit {
			return &it
		}
		return nil
	}

	if err := c.crawl(ctx, s, it); err != nil {
		c.Logger.Warn("crawler: crawl failed, dropping", "url", it.URL, "error", err)
	}
	return nil
}

// populate drains up to MaxQueueSize frontier rows per configured host into
// one in-memory list, per spec.md §4.1.
func (c *Crawler) populate(ctx context.Context) ([]item, error) {
	var queue []item
	for host := range c.Sites {
		rows, err := c.Store.PopHostQueue(ctx, host, MaxQueueSize)
		if err != nil {
			return nil, fmt.Errorf("context: %w", err)
		}
		for _, r := range rows {
			queue = append(queue, item{URL: r.URL, Depth: r.Depth})
		}
	}
	return queue, nil
}

// checkValid implements spec.md §4.1's validity gate in its exact,
// short-circuiting order: host present, host configured, depth, robots,
// seen-set, then rate limit last (the only check that requeues).
func (c *Crawler) checkValid(ctx context.Context, it item) (*site.Site, rejectReason, bool) {
	u, err := url.Parse(it.URL)
	if err != nil || u.Host == "" {
		return nil, reasonNoHost, false
	}

	s, ok := c.Sites[u.Hostname()]
	if !ok {
		return nil, reasonNotConfigured, false
	}

	if s.MaxDepth != nil && it.Depth >= *s.MaxDepth {
		return nil, reasonMaxDepth, false
	}

	if !s.IsAllowed(u.Path) {
		return nil, reasonRobots, false
	}

	seen, err := c.Cache.Seen(ctx, it.URL)
	if err != nil || seen {
		return nil, reasonSeen, false
	}

	if !s.Timer.CanSend() {
		return nil, reasonRateLimit, false
	}

	return s, "", true
}

// crawl fetches it.URL, marks it seen, and hands the body off to the parser
// via the cache and bus. A non-text response is marked seen with an empty
// body and never reaches the parser, per spec.md §4.1.
func (c *Crawler) crawl(ctx context.Context, s *site.Site, it item) error {
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, it.URL, nil)
	if err != nil {
		return fmt.Errorf("context: %w", err)
	}
	req.Header.Set("User-Agent", site.UserAgent)

	resp, err := c.Client.Do(ctx, req)
	if err != nil {
		metrics.CrawlFetchesTotal.WithLabelValues(s.Host, "network_error").Inc()
		return fmt.Errorf("context: %w", err)
	}
	defer resp.Body.Close()

	metrics.CrawlFetchDuration.WithLabelValues(s.Host).Observe(time.Since(start).Seconds())

	ct := resp.Header.Get("Content-Type")
	if !isTextMIME(ct) {
		metrics.CrawlFetchesTotal.WithLabelValues(s.Host, "non_text").Inc()
		if err := c.Cache.MarkSeen(ctx, it.URL); err != nil {
			return fmt.Errorf("context: %w", err)
		}
		return nil
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.CrawlFetchesTotal.WithLabelValues(s.Host, "read_error").Inc()
		return fmt.Errorf("context: %w", err)
	}

	id := ulid.Make().String()
	rec := cache.Record{ID: id, URL: it.URL, Depth: it.Depth, Content: string(body)}
	if err := c.Cache.PutRecord(ctx, rec); err != nil {
		metrics.CrawlFetchesTotal.WithLabelValues(s.Host, "cache_error").Inc()
		return fmt.Errorf("context: %w", err)
	}
	if err := c.Cache.MarkSeen(ctx, it.URL); err != nil {
		metrics.CrawlFetchesTotal.WithLabelValues(s.Host, "cache_error").Inc()
		return fmt.Errorf("context: %w", err)
	}
	if err := c.Bus.Publish(ctx, bus.CrawlerToParser, id); err != nil {
		metrics.CrawlFetchesTotal.WithLabelValues(s.Host, "publish_error").Inc()
		return fmt.Errorf("context: %w", err)
	}

	metrics.CrawlFetchesTotal.WithLabelValues(s.Host, "success").Inc()
	c.Logger.Info("crawler: fetched", "url", it.URL, "id", id)
	return nil
}

// isTextMIME reports whether a Content-Type header's top-level type is
// "text". An absent header is treated as non-text per spec.md §4.1.
func isTextMIME(contentType string) bool {
	if contentType == "" {
		return false
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return len(mediaType) >= 5 && mediaType[:5] == "text/"
}
