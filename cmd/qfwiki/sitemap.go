package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	domsitemap "github.com/JohannesMeyerYC/QuantFinanceWiki/internal/domain/sitemap"
	"github.com/JohannesMeyerYC/QuantFinanceWiki/internal/metrics"
	sitemapuc "github.com/JohannesMeyerYC/QuantFinanceWiki/internal/usecase/sitemap"
)

var sitemapCmd = &cobra.Command{
	Use:   "sitemap",
	Short: "Build the XML sitemap",
}

var sitemapGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Write sitemap.xml from the configured collections",
	RunE:  runSitemapGenerate,
}

var sitemapOut string

func init() {
	sitemapGenerateCmd.Flags().StringVarP(&sitemapOut, "out", "o", "public/sitemap.xml", "Output file")

	sitemapCmd.AddCommand(sitemapGenerateCmd)
	rootCmd.AddCommand(sitemapCmd)
}

func runSitemapGenerate(cmd *cobra.Command, _ []string) error {
	cfg, logger, _, err := setup()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	metrics.RegisterContentMetrics()

	reg, docs, err := newDocStore(cfg, logger)
	if err != nil {
		return err
	}
	smCfg, err := sitemapConfig(cfg.Sitemap)
	if err != nil {
		return err
	}

	doc, err := sitemapuc.New(docs, reg, smCfg, logger).WriteFile(cmd.Context(), sitemapOut)
	if err != nil {
		return fmt.Errorf("generate sitemap: %w", err)
	}

	st := doc.Result.Stats
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "wrote %s: %d urls, %d bytes\n",
		sitemapOut, len(doc.Result.Entries), len(doc.XML))
	logger.Info("Sitemap written",
		zap.String("path", sitemapOut),
		zap.Int("entries", len(doc.Result.Entries)),
		zap.Int("duplicates", st[domsitemap.Duplicate]),
		zap.Int("excluded", st[domsitemap.Excluded]),
		zap.Int("over_budget", st[domsitemap.OverBytes]+st[domsitemap.OverCount]),
	)
	return nil
}
