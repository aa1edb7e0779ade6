// Command search serves POST /search: embed the query, rank chunks by
// cosine similarity, and return a snippet per hit (spec.md §4.4).
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/FranksOps/foxeye/internal/config"
	"github.com/FranksOps/foxeye/internal/embedder/model"
	_ "github.com/FranksOps/foxeye/internal/embedder/model/hashing"
	"github.com/FranksOps/foxeye/internal/metrics"
	"github.com/FranksOps/foxeye/internal/search"
	"github.com/FranksOps/foxeye/internal/store"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "search",
	Short: "Serves the Foxeye semantic search HTTP API.",
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

	m, err := model.New(cfg.ModelProvider, nil)
	if err != nil {
		return fmt.Errorf("context: %w", err)
	}
	defer m.Close()

	metricsServer := metrics.Start(cfg.MetricsPort)
	defer metricsServer.Stop(context.Background())

	searcher := search.New(st, m)
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      search.Handler(searcher),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("search listening", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return fmt.Errorf("context: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("context: %w", err)
	}
	logger.Info("search stopped")
	return nil
}
