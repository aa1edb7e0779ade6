package metrics

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	CrawlFetchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "foxeye_crawl_fetches_total",
			Help: "Total number of crawl fetch attempts by outcome",
		},
		[]string{"host", "outcome"},
	)

	CrawlFetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "foxeye_crawl_fetch_duration_seconds",
			Help:    "Duration of crawl fetches in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"host"},
	)

	ParseOutcomesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "foxeye_parse_outcomes_total",
			Help: "Total number of parse attempts by outcome",
		},
		[]string{"outcome"},
	)

	EmbedBatchSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "foxeye_embed_batch_size",
			Help:    "Number of chunks embedded per document",
			Buckets: []float64{1, 2, 4, 8, 16, 32, 64},
		},
	)

	EmbedOutcomesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "foxeye_embed_outcomes_total",
			Help: "Total number of embed attempts by outcome",
		},
		[]string{"outcome"},
	)

	SearchLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "foxeye_search_latency_seconds",
			Help:    "Latency of /search requests in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
	)

	BusMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "foxeye_bus_messages_total",
			Help: "Total number of bus messages by hop and direction",
		},
		[]string{"hop", "direction"},
	)
)

// Server encapsulates an HTTP server for Prometheus metrics.
type Server struct {
	srv *http.Server
}

// Start begins listening on the specified port and exposes /metrics.
// The server runs in a background goroutine and must be stopped via Server.Stop()
// to release resources and avoid leaks.
func Start(port int) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:         fmt.Sprintf("127.0.0.1:%d", port),
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		// Suppress the error from intentional shutdown
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fmt.Printf("metrics server failed: %v\n", err)
		}
	}()

	return &Server{srv: srv}
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.srv.Shutdown(ctx)
}
