package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/sitemap-harvester/internal/dataset"
	"github.com/JakeFAU/sitemap-harvester/internal/extract"
	"github.com/JakeFAU/sitemap-harvester/internal/urlstore"
)

type extractFlags struct {
	screenshot  bool
	toDataframe bool
	offset      int
	limit       int
	workers     int
}

// newExtractCmd creates the 'extract' subcommand, which visits the URLs of a
// CSV store in headless Chrome.
func newExtractCmd(newLauncher launcherFactory) *cobra.Command {
	flags := &extractFlags{}
	cmd := &cobra.Command{
		Use:   "extract <csv_file>",
		Short: "Extract text or screenshots for the URLs in a CSV file",
		Long: `Reads the loc column of the CSV, selects a window of rows, and visits
each URL in its own browser tab with a fixed number of workers. By default
the page text is written to the articles directory. --screenshot saves a
full-page PNG instead, and --to_dataframe collects one row per page into a
single dataset CSV.`,
		Args: func(_ *cobra.Command, args []string) error {
			switch {
			case len(args) == 0:
				return errors.New("missing required argument <csv_file>")
			case len(args) > 1:
				return fmt.Errorf("expected 1 argument, got %d", len(args))
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExtractCommand(cmd, args[0], flags, newLauncher)
		},
	}

	cmd.Flags().BoolVar(&flags.screenshot, "screenshot", false, "save a full-page screenshot instead of text")
	cmd.Flags().BoolVar(&flags.toDataframe, "to_dataframe", false, "collect results into a single dataset CSV")
	cmd.Flags().IntVar(&flags.offset, "offset", -1, "skip this many URLs (default extract.offset)")
	cmd.Flags().IntVar(&flags.limit, "limit", -1, "process at most this many URLs, 0 for all (default extract.limit)")
	cmd.Flags().IntVar(&flags.workers, "workers", 0, "concurrent browser sessions (default extract.workers)")
	return cmd
}

func runExtractCommand(cmd *cobra.Command, csvPath string, flags *extractFlags, newLauncher launcherFactory) error {
	appInstance, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}
	cfg := appInstance.Config()
	logger := appInstance.Logger()

	// An unreadable list is an empty run, not a failed one.
	records, err := urlstore.Load(csvPath)
	if err != nil {
		logger.Error("Reading URLs failed", zap.String("file", csvPath), zap.Error(err))
		records = nil
	}
	offset, limit := cfg.Extract.Offset, cfg.Extract.Limit
	if flags.offset >= 0 {
		offset = flags.offset
	}
	if flags.limit >= 0 {
		limit = flags.limit
	}
	urls := urlstore.Window(urlstore.Locs(records), offset, limit)
	logger.Info("Read URLs",
		zap.String("file", csvPath),
		zap.Int("rows", len(records)),
		zap.Int("selected", len(urls)),
		zap.Int("offset", offset),
		zap.Int("limit", limit),
	)
	if len(urls) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "no URLs to extract")
		return nil
	}

	workers := cfg.Extract.Workers
	if flags.workers > 0 {
		workers = flags.workers
	}

	launcher, release, err := newLauncher(cfg, logger)
	if err != nil {
		return fmt.Errorf("start browser: %w", err)
	}
	defer release()

	pool, err := extract.NewPool(launcher, appInstance.Blobs(), extract.Config{
		Workers:         workers,
		TextSelector:    cfg.Extract.TextSelector,
		ScreenshotDir:   cfg.Output.ScreenshotsDir,
		ArticlesDir:     cfg.Output.ArticlesDir,
		UniqueFilenames: cfg.Extract.UniqueFilenames,
	}, logger)
	if err != nil {
		return fmt.Errorf("init pool: %w", err)
	}

	opts := extract.Options{TakeScreenshot: flags.screenshot, CollectToDataset: flags.toDataframe}
	results, summary, runErr := pool.Run(cmd.Context(), urls, opts)
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}
	fmt.Fprintf(cmd.OutOrStdout(), "extracted %d of %d URLs (%d failed)\n",
		summary.Succeeded, summary.Total, summary.Failed)

	if !flags.toDataframe {
		return nil
	}
	agg, err := dataset.New(appInstance.Blobs(), dataset.Config{
		FileName: cfg.Output.DatasetFile,
		RunID:    appInstance.RunID(),
	}, logger, dataset.WithSink(appInstance.Sink()))
	if err != nil {
		return fmt.Errorf("init dataset: %w", err)
	}
	uri, err := agg.Aggregate(cmd.Context(), results.Snapshot())
	if err != nil {
		return fmt.Errorf("aggregate dataset: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "dataset written to %s\n", uri)
	return nil
}
