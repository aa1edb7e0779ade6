// Command crawler runs the Foxeye crawl_loop: it pulls URLs from the
// frontier, fetches them under per-host politeness, and hands fetched
// bodies off to the parser via the cache and bus (spec.md §4.1).
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
	"github.com/FranksOps/foxeye/internal/crawler"
	"github.com/FranksOps/foxeye/internal/metrics"
	"github.com/FranksOps/foxeye/internal/site"
	"github.com/FranksOps/foxeye/internal/store"
	"github.com/FranksOps/foxeye/pkg/httpclient"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "crawler",
	Short: "Runs the Foxeye crawl loop against the configured sites.",
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
	logger.Info("loaded sites", "count", len(sites))

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

	metricsServer := metrics.Start(cfg.MetricsPort)
	defer metricsServer.Stop(context.Background())

	cr := crawler.New(sites, st, c, b, client, logger)
	cr.Concurrency = cfg.Concurrency

	logger.Info("crawler starting")
	if err := cr.Run(ctx); err != nil && ctx.Err() == nil {
		return fmt.Errorf("context: %w", err)
	}
	logger.Info("crawler stopped")
	return nil
}
