package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/adyen/pricemonitor/internal/browser"
	internalcli "github.com/adyen/pricemonitor/internal/cli"
	"github.com/adyen/pricemonitor/internal/config"
	"github.com/adyen/pricemonitor/internal/document"
	"github.com/adyen/pricemonitor/internal/handlers"
	"github.com/adyen/pricemonitor/internal/services"
)

var version = "0.1.0"

// envWithFlags returns a getenv that prefers flags explicitly set on the
// command line. flags maps environment keys to flag names.
func envWithFlags(c *cli.Context, flags map[string]string) func(string) string {
	return func(key string) string {
		if name, ok := flags[key]; ok && c.IsSet(name) {
			return c.String(name)
		}
		return os.Getenv(key)
	}
}

var checkFlags = map[string]string{
	"TEST_URL":     "url",
	"COUNTRY":      "country",
	"TEST_TABS":    "tabs",
	"TEST_CARDS":   "cards",
	"RETRY_COUNT":  "retries",
	"TARGETS_FILE": "targets",
	"LAYOUT":       "layout",
}

func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// CheckCommand returns the check command
func CheckCommand(logger *zap.Logger) *cli.Command {
	return &cli.Command{
		Name:  "check",
		Usage: "Verify that card, modal and cart prices agree on the configured plans pages",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "url", Usage: "plans page to check (TEST_URL)"},
			&cli.StringFlag{Name: "country", Usage: "country override (COUNTRY)"},
			&cli.StringFlag{Name: "tabs", Usage: "comma separated tab titles (TEST_TABS)"},
			&cli.StringFlag{Name: "cards", Usage: "comma separated 1-based card positions (TEST_CARDS)"},
			&cli.StringFlag{Name: "retries", Usage: "extra verifier passes while findings remain (RETRY_COUNT)"},
			&cli.StringFlag{Name: "targets", Usage: "YAML file listing targets (TARGETS_FILE)"},
			&cli.StringFlag{Name: "layout", Usage: "selector layout, milo or dexter (LAYOUT)"},
		},
		Action: func(c *cli.Context) error {
			getenv := envWithFlags(c, checkFlags)
			cfg, err := config.LoadMonitorConfig(getenv)
			if err != nil {
				return fmt.Errorf("invalid monitor configuration: %w", err)
			}
			browserCfg, err := config.LoadBrowserConfig(getenv)
			if err != nil {
				return fmt.Errorf("invalid browser configuration: %w", err)
			}
			alertCfg, err := config.LoadAlertConfig(getenv)
			if err != nil {
				return fmt.Errorf("invalid alert configuration: %w", err)
			}

			repo, release, err := internalcli.OpenProgressBackend(cfg, logger)
			if err != nil {
				return err
			}
			defer release()

			session, err := browser.Launch(browserCfg, logger)
			if err != nil {
				return err
			}
			defer func() {
				if err := session.Close(); err != nil {
					logger.Warn("failed to close browser", zap.Error(err))
				}
			}()

			var alerts services.AlertClient
			if alertCfg.Enabled() {
				alerts = services.NewAlertClient(alertCfg)
			}

			ctx, stop := signalContext(c.Context)
			defer stop()

			_, err = internalcli.RunCheck(ctx, internalcli.CheckDependencies{
				Config:  cfg,
				Browser: browserCfg,
				Repo:    repo,
				Alerts:  alerts,
				Open: func(country string) (document.Document, error) {
					page, err := session.NewDocument(country)
					if err != nil {
						return nil, err
					}
					return page, nil
				},
				Logger: logger,
			})
			if errors.Is(err, internalcli.ErrFindings) {
				return cli.Exit(err.Error(), 1)
			}
			return err
		},
	}
}

// PageLoadCommand returns the pageload command
func PageLoadCommand(logger *zap.Logger) *cli.Command {
	return &cli.Command{
		Name:  "pageload",
		Usage: "Check pages for critical console errors and broken links",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "urls", Usage: "a URL or a YAML list file of URLs (PAGELOAD_URLS)"},
		},
		Action: func(c *cli.Context) error {
			getenv := envWithFlags(c, map[string]string{"PAGELOAD_URLS": "urls"})
			cfg, err := config.LoadPageLoadConfig(getenv)
			if err != nil {
				return fmt.Errorf("invalid page load configuration: %w", err)
			}
			browserCfg, err := config.LoadBrowserConfig(getenv)
			if err != nil {
				return fmt.Errorf("invalid browser configuration: %w", err)
			}

			session, err := browser.Launch(browserCfg, logger)
			if err != nil {
				return err
			}
			defer func() {
				if err := session.Close(); err != nil {
					logger.Warn("failed to close browser", zap.Error(err))
				}
			}()
			probe := session.NewProbe(browserCfg.NavTimeout)
			defer probe.Close()

			ctx, stop := signalContext(c.Context)
			defer stop()

			_, _, err = internalcli.RunPageLoad(ctx, internalcli.PageLoadDependencies{
				Config:    cfg,
				Probe:     probe,
				UserAgent: session.UserAgent(),
				Logger:    logger,
			})
			if errors.Is(err, internalcli.ErrUnhealthyPages) {
				return cli.Exit(err.Error(), 1)
			}
			return err
		},
	}
}

// ProgressCommand returns the progress command and its subcommands
func ProgressCommand(logger *zap.Logger) *cli.Command {
	open := func() (internalcli.ProgressBackend, func(), *config.MonitorConfig, error) {
		cfg, err := config.LoadMonitorConfig(os.Getenv)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("invalid monitor configuration: %w", err)
		}
		repo, release, err := internalcli.OpenProgressBackend(cfg, logger)
		if err != nil {
			return nil, nil, nil, err
		}
		return repo, release, cfg, nil
	}

	return &cli.Command{
		Name:  "progress",
		Usage: "Inspect or drop saved checkout progress",
		Subcommands: []*cli.Command{
			{
				Name:      "show",
				Usage:     "Print passed-unit counts per target identity",
				ArgsUsage: "[identity...]",
				Action: func(c *cli.Context) error {
					repo, release, _, err := open()
					if err != nil {
						return err
					}
					defer release()
					return internalcli.ShowProgress(c.Context, repo, c.Args().Slice(), os.Stdout, logger)
				},
			},
			{
				Name:      "clear",
				Usage:     "Drop progress for the given identities, or for the configured targets",
				ArgsUsage: "[identity...]",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "all", Usage: "drop every stored record"},
				},
				Action: func(c *cli.Context) error {
					repo, release, cfg, err := open()
					if err != nil {
						return err
					}
					defer release()

					ids := c.Args().Slice()
					switch {
					case c.Bool("all"):
						if ids, err = repo.ListIdentities(c.Context); err != nil {
							return fmt.Errorf("failed to list progress records: %w", err)
						}
					case len(ids) == 0:
						if ids, err = internalcli.TargetIdentities(cfg); err != nil {
							return err
						}
					}
					return internalcli.ClearProgress(c.Context, repo, ids, logger)
				},
			},
		},
	}
}

// FixtureCommand returns the fixture command
func FixtureCommand(logger *zap.Logger) *cli.Command {
	return &cli.Command{
		Name:  "fixture",
		Usage: "Serve the local demo plans site",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "catalog", Usage: "YAML catalog to serve instead of the built-in one", EnvVars: []string{"FIXTURE_CATALOG"}},
		},
		Action: func(c *cli.Context) error {
			catalog := handlers.DefaultCatalog()
			if path := c.String("catalog"); path != "" {
				var err error
				if catalog, err = handlers.LoadCatalog(path); err != nil {
					return err
				}
			}

			deps, err := internalcli.BuildFixtureDependencies(catalog, config.LoadServerConfig(os.Getenv), logger)
			if err != nil {
				return err
			}
			return internalcli.RunFixture(deps)
		},
	}
}

func main() {
	// Load environment variables from .env file
	envErr := godotenv.Load()

	logger, err := internalcli.NewLogger(os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if envErr != nil {
		logger.Debug(".env file not found, using environment variables")
	}

	app := &cli.App{
		Name:    "pricemonitor",
		Usage:   "Checkout price consistency monitor",
		Version: version,
		Commands: []*cli.Command{
			CheckCommand(logger),
			PageLoadCommand(logger),
			ProgressCommand(logger),
			FixtureCommand(logger),
		},
	}

	if err := app.Run(os.Args); err != nil {
		logger.Error("command failed", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
	_ = logger.Sync()
}
