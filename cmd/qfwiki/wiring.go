package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JohannesMeyerYC/QuantFinanceWiki/internal/config"
	dbRedis "github.com/JohannesMeyerYC/QuantFinanceWiki/internal/db/redis"
	domcol "github.com/JohannesMeyerYC/QuantFinanceWiki/internal/domain/collection"
	domsitemap "github.com/JohannesMeyerYC/QuantFinanceWiki/internal/domain/sitemap"
	"github.com/JohannesMeyerYC/QuantFinanceWiki/internal/repository/docstore"
	"github.com/JohannesMeyerYC/QuantFinanceWiki/internal/repository/ledger"
	contentuc "github.com/JohannesMeyerYC/QuantFinanceWiki/internal/usecase/content"
	healthuc "github.com/JohannesMeyerYC/QuantFinanceWiki/internal/usecase/health"
	interactionuc "github.com/JohannesMeyerYC/QuantFinanceWiki/internal/usecase/interaction"
	sitemapuc "github.com/JohannesMeyerYC/QuantFinanceWiki/internal/usecase/sitemap"
)

// interactionLedger is what the composition root needs from either ledger driver.
type interactionLedger interface {
	interactionuc.Ledger
	contentuc.InteractionReader
	healthuc.Pinger
}

// newDocStore builds the collection registry and the file cache over it.
func newDocStore(cfg config.Config, logger *zap.Logger) (*domcol.Registry, *docstore.Store, error) {
	reg, err := cfg.Registry()
	if err != nil {
		return nil, nil, fmt.Errorf("collections: %w", err)
	}
	return reg, docstore.New(cfg.Content.DataDir, reg.Files(), logger), nil
}

// newLedger opens the configured ledger driver. The returned closer releases its connection.
func newLedger(ctx context.Context, cfg config.Config, logger *zap.Logger) (interactionLedger, func(), error) {
	switch cfg.Ledger.Driver {
	case config.LedgerRedis:
		store, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.Database.Addrs,
			Password: cfg.Database.Password,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("create redis store: %w", err)
		}
		timeout := time.Duration(cfg.Database.ReadinessTimeout) * time.Second
		if err := store.WaitForReady(ctx, timeout); err != nil {
			store.Close()
			return nil, nil, fmt.Errorf("redis not ready: %w", err)
		}
		logger.Info("Connected to redis", zap.Strings("addrs", cfg.Database.Addrs))
		return ledger.NewRedisLedger(store, cfg.Database.KeyPrefix, logger), store.Close, nil
	default:
		return ledger.NewFileLedger(cfg.Ledger.Path, logger), func() {}, nil
	}
}

// sitemapConfig maps the YAML sitemap section onto the generator settings.
func sitemapConfig(cfg config.SitemapConfig) (sitemapuc.Config, error) {
	static := make([]sitemapuc.StaticPage, 0, len(cfg.Static))
	for _, p := range cfg.Static {
		freq := domsitemap.Daily
		if p.ChangeFreq != "" {
			f, err := domsitemap.ParseChangeFreq(p.ChangeFreq)
			if err != nil {
				return sitemapuc.Config{}, fmt.Errorf("static page %s: %w", p.Path, err)
			}
			freq = f
		}
		static = append(static, sitemapuc.StaticPage{Path: p.Path, Priority: p.Priority, ChangeFreq: freq})
	}
	return sitemapuc.Config{
		BaseURL:     cfg.BaseURL,
		Limits:      domsitemap.Limits{MaxEntries: cfg.MaxEntries, MaxBytes: cfg.MaxBytes},
		Exclude:     cfg.Exclude,
		Static:      static,
		CacheTTL:    time.Duration(cfg.CacheTTLSec) * time.Second,
		Concurrency: cfg.Concurrency,
	}, nil
}
