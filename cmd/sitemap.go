package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/sitemap-harvester/internal/sitemap"
	"github.com/JakeFAU/sitemap-harvester/internal/urlstore"
)

// newSitemapCmd creates the 'sitemap' subcommand, which walks a sitemap tree
// and appends every page URL it declares to a CSV store.
func newSitemapCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sitemap <sitemap_url> [output_csv_filename]",
		Short: "Collect page URLs from a sitemap or sitemap index",
		Long: `Fetches the sitemap, follows every nested sitemap reference, and appends
each <url> entry (loc, lastmod, priority) to the output CSV. A missing
attribute is written as n/a. Failures on one sitemap are logged and the walk
continues with the rest.`,
		Args: func(_ *cobra.Command, args []string) error {
			switch {
			case len(args) == 0:
				return errors.New("missing required argument <sitemap_url>")
			case len(args) > 2:
				return fmt.Errorf("expected at most 2 arguments, got %d", len(args))
			}
			return nil
		},
		RunE: runSitemapCommand,
	}
}

func runSitemapCommand(cmd *cobra.Command, args []string) error {
	appInstance, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}
	cfg := appInstance.Config()
	logger := appInstance.Logger()

	outPath := cfg.Sitemap.StorePath
	if len(args) > 1 {
		outPath = args[1]
	}
	store, err := urlstore.New(outPath)
	if err != nil {
		return fmt.Errorf("open url store: %w", err)
	}

	fetcher := sitemap.NewCollyFetcher(sitemap.FetcherConfig{
		UserAgent:   cfg.Sitemap.UserAgent,
		Timeout:     cfg.SitemapTimeout(),
		InsecureTLS: cfg.Sitemap.InsecureTLS,
	})
	resolver, err := sitemap.NewResolver(fetcher, sitemap.NewXMLParser(), logger)
	if err != nil {
		return fmt.Errorf("init resolver: %w", err)
	}

	appended, stats := resolver.Walk(cmd.Context(), args[0], store)
	logger.Info("Sitemap walk finished",
		zap.String("sitemap", args[0]),
		zap.String("output", store.Path()),
		zap.Bool("root_appended", appended),
		zap.Int("sitemaps", stats.Sitemaps),
		zap.Int("failed", stats.Failed),
		zap.Int("skipped", stats.Skipped),
		zap.Int("urls", stats.URLs),
	)
	fmt.Fprintf(cmd.OutOrStdout(), "%d URLs written to %s\n", stats.URLs, store.Path())
	return nil
}
