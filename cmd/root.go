// Package cmd defines and implements the CLI commands for the harvester executable.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/sitemap-harvester/internal/app"
	"github.com/JakeFAU/sitemap-harvester/internal/browser"
	"github.com/JakeFAU/sitemap-harvester/internal/config"
	"github.com/JakeFAU/sitemap-harvester/internal/dataset"
	"github.com/JakeFAU/sitemap-harvester/internal/logging"
	"github.com/JakeFAU/sitemap-harvester/internal/storage"
)

// appKeyType is the key for storing the App in the context.
type appKeyType string

const appKey appKeyType = "app"

// App defines the application interface that commands will use.
// This allows us to inject a fake app during tests.
type App interface {
	Close()
	Config() config.Config
	Logger() *zap.Logger
	RunID() string
	Blobs() storage.BlobStore
	Sink() dataset.RecordSink
}

// launcherFactory opens the browser used by the extract command. The
// returned func releases it.
type launcherFactory func(cfg config.Config, logger *zap.Logger) (browser.Launcher, func(), error)

// deps are the factories a command tree is built with. Tests swap them.
type deps struct {
	newApp      func(ctx context.Context, cfgFile string) (App, error)
	newLauncher launcherFactory
}

func defaultDeps() deps {
	return deps{
		newApp: func(ctx context.Context, cfgFile string) (App, error) {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return nil, err
			}
			a, err := app.New(ctx, cfg)
			if err != nil {
				return nil, err
			}
			return a, nil
		},
		newLauncher: func(cfg config.Config, logger *zap.Logger) (browser.Launcher, func(), error) {
			l, err := browser.NewChromedpLauncher(browser.Config{
				Headless:          cfg.Extract.Headless,
				NoSandbox:         cfg.Extract.NoSandbox,
				UserAgent:         cfg.Extract.UserAgent,
				NavigationTimeout: cfg.NavigationTimeout(),
			}, logger)
			if err != nil {
				return nil, nil, err
			}
			return l, l.Close, nil
		},
	}
}

// rootState owns the App built for one execution so it can be closed even
// when the command fails.
type rootState struct {
	cfgFile string
	app     App
}

func (s *rootState) close() {
	if s.app != nil {
		s.app.Close()
		s.app = nil
	}
}

// newRootCmd creates the root command and its subcommands.
func newRootCmd(d deps) (*cobra.Command, *rootState) {
	state := &rootState{}
	cmd := &cobra.Command{
		Use:   "harvester",
		Short: "Discover page URLs from sitemaps and extract their content.",
		Long: `harvester walks a sitemap tree and records every declared page URL in a
CSV file, then visits those pages in headless Chrome to save their visible
text, a full-page screenshot, or a combined dataset.`,
		SilenceUsage:  true,
		SilenceErrors: true,

		// Runs after argument validation and before the subcommand's RunE.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := d.newApp(cmd.Context(), state.cfgFile)
			if err != nil {
				return fmt.Errorf("failed to initialize application services: %w", err)
			}
			state.app = appInstance
			cmd.SetContext(context.WithValue(cmd.Context(), appKey, appInstance))
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&state.cfgFile, "config", "", "config file (yaml, json or toml)")

	cmd.AddCommand(newSitemapCmd())
	cmd.AddCommand(newExtractCmd(d.newLauncher))

	return cmd, state
}

func resolveApp(ctx context.Context) (App, error) {
	appInstance, ok := ctx.Value(appKey).(App)
	if !ok || appInstance == nil {
		return nil, errors.New("application services not initialized")
	}
	return appInstance, nil
}

// execute runs the command tree with args and releases the App afterwards.
func execute(ctx context.Context, d deps, args []string, out io.Writer) error {
	root, state := newRootCmd(d)
	defer state.close()
	root.SetArgs(args)
	root.SetOut(out)
	return root.ExecuteContext(ctx)
}

// Execute is the main entry point. Any command error exits with status 1.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := execute(ctx, defaultDeps(), os.Args[1:], os.Stdout)
	stop()
	if err == nil {
		return
	}
	logger, logErr := logging.New(false)
	if logErr != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
	logger.Fatal("Command execution failed", zap.Error(err))
}
