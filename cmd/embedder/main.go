// Command embedder consumes doc_ids, chunks and embeds document text, and
// bulk-persists the resulting chunk vectors (spec.md §4.3).
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/FranksOps/foxeye/internal/bus"
	"github.com/FranksOps/foxeye/internal/config"
	"github.com/FranksOps/foxeye/internal/embedder"
	"github.com/FranksOps/foxeye/internal/embedder/model"
	_ "github.com/FranksOps/foxeye/internal/embedder/model/hashing"
	"github.com/FranksOps/foxeye/internal/metrics"
	"github.com/FranksOps/foxeye/internal/store"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "embedder",
	Short: "Consumes doc_ids and persists chunk embeddings.",
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

	st, err := store.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("context: %w", err)
	}
	defer st.Close()

	b, err := bus.New(cfg.BusURL)
	if err != nil {
		return fmt.Errorf("context: %w", err)
	}
	defer b.Close()
	if err := b.EnsureGroup(ctx, bus.ParserToEmbedder); err != nil {
		return fmt.Errorf("context: %w", err)
	}

	m, err := model.New(cfg.ModelProvider, nil)
	if err != nil {
		return fmt.Errorf("context: %w", err)
	}
	defer m.Close()

	metricsServer := metrics.Start(cfg.MetricsPort)
	defer metricsServer.Stop(context.Background())

	svc := embedder.New(st, m, logger)

	logger.Info("embedder starting", "model", cfg.ModelProvider)
	if err := svc.Run(ctx, b, "embedder-1"); err != nil && ctx.Err() == nil {
		return fmt.Errorf("context: %w", err)
	}
	logger.Info("embedder stopped")
	return nil
}
