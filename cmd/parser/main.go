// Command parser consumes crawl hand-off ids, extracts and persists
// documents and links, and publishes doc_ids to the embedder (spec.md
// §4.2). On startup it runs the reconciliation pass (send_missing_ids).
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/FranksOps/foxeye/internal/bus"
	"github.com/FranksOps/foxeye/internal/cache"
	"github.com/FranksOps/foxeye/internal/config"
	"github.com/FranksOps/foxeye/internal/parser"
	"github.com/FranksOps/foxeye/internal/site"
	"github.com/FranksOps/foxeye/internal/store"
	"github.com/FranksOps/foxeye/pkg/httpclient"

	"github.com/FranksOps/foxeye/internal/metrics"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "parser",
	Short: "Consumes crawl hand-offs and persists documents and links.",
	RunE:  run,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to a config file (YAML/JSON/TOML) overriding defaults")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("context: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: config.ParseLogLevel(cfg.LogLevel)}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := httpclient.New(httpclient.Config{Timeout: 30 * time.Second})
	if err != nil {
		return fmt.Errorf("context: %w", err)
	}

	sites, err := site.LoadFile(ctx, cfg.SitesFile, client)
	if err != nil {
		return fmt.Errorf("context: %w", err)
	}

	st, err := store.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("context: %w", err)
	}
	defer st.Close()

	c, err := cache.New(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("context: %w", err)
	}
	defer c.Close()

	b, err := bus.New(cfg.BusURL)
	if err != nil {
		return fmt.Errorf("context: %w", err)
	}
	defer b.Close()
	if err := b.EnsureGroup(ctx, bus.CrawlerToParser); err != nil {
		return fmt.Errorf("context: %w", err)
	}
	if err := b.EnsureGroup(ctx, bus.ParserToEmbedder); err != nil {
		return fmt.Errorf("context: %w", err)
	}

	metricsServer := metrics.Start(cfg.MetricsPort)
	defer metricsServer.Stop(context.Background())

	svc := parser.New(c, st, sites, b, logger)

	n, err := svc.Reconcile(ctx)
	if err != nil {
		logger.Error("reconciliation failed", "error", err)
	} else {
		logger.Info("reconciliation complete", "republished", n)
	}

	logger.Info("parser starting")
	if err := svc.Run(ctx, "parser-1"); err != nil && ctx.Err() == nil {
		return fmt.Errorf("context: %w", err)
	}
	logger.Info("parser stopped")
	return nil
}
