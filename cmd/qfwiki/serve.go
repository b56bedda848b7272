package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JohannesMeyerYC/QuantFinanceWiki/internal/metrics"
	chiTransport "github.com/JohannesMeyerYC/QuantFinanceWiki/internal/transport/chi"
	contentuc "github.com/JohannesMeyerYC/QuantFinanceWiki/internal/usecase/content"
	healthuc "github.com/JohannesMeyerYC/QuantFinanceWiki/internal/usecase/health"
	interactionuc "github.com/JohannesMeyerYC/QuantFinanceWiki/internal/usecase/interaction"
	sitemapuc "github.com/JohannesMeyerYC/QuantFinanceWiki/internal/usecase/sitemap"
	"github.com/JohannesMeyerYC/QuantFinanceWiki/internal/version"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API server",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(_ *cobra.Command, _ []string) error {
	cfg, logger, env, err := setup()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting qfwiki API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("data_dir", cfg.Content.DataDir),
		zap.String("ledger_driver", cfg.Ledger.Driver),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Register content metrics explicitly (no init())
	metrics.RegisterContentMetrics()

	reg, docs, err := newDocStore(cfg, logger)
	if err != nil {
		return err
	}
	if cfg.Content.Watch {
		go func() {
			if err := docs.Watch(ctx); err != nil {
				logger.Warn("Collection watcher stopped", zap.Error(err))
			}
		}()
	}

	led, closeLedger, err := newLedger(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeLedger()

	smCfg, err := sitemapConfig(cfg.Sitemap)
	if err != nil {
		return err
	}

	contentSvc := contentuc.New(docs, led, reg, logger)
	interactionSvc := interactionuc.New(led, logger)
	sitemapSvc := sitemapuc.New(docs, reg, smCfg, logger)
	healthSvc := healthuc.New(led, docs)

	server := chiTransport.NewServer(contentSvc, interactionSvc, sitemapSvc, healthSvc,
		chiTransport.Options{SitemapMaxAge: time.Duration(cfg.Sitemap.MaxAgeSec) * time.Second},
		logger,
	)
	r := chiTransport.NewRouter(server, chiTransport.RouterConfig{CORSOrigins: cfg.HTTP.CORSOrigins})

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadTimeout:       time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		ReadHeaderTimeout: time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout:      time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	// Graceful shutdown
	select {
	case <-ctx.Done():
		logger.Info("Received shutdown signal")
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
	return nil
}
