// Command ideaminer mines Reddit discussions for product ideas and turns the
// viable ones into build playbooks.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ibeckermayer/ideaminer/internal/app"
	"github.com/ibeckermayer/ideaminer/internal/config"
	"github.com/ibeckermayer/ideaminer/internal/logging"
	"github.com/ibeckermayer/ideaminer/internal/metrics"
	"github.com/ibeckermayer/ideaminer/internal/store"
)

var version = "dev"

// cli carries state shared by every subcommand.
type cli struct {
	configPath string
	envFile    string
	logLevel   string

	cfg    *config.Config
	logger *zap.Logger
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:           "ideaminer",
		Short:         "Mine Reddit threads for product ideas",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.setup()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if c.logger != nil {
				_ = c.logger.Sync()
			}
		},
	}

	root.PersistentFlags().StringVar(&c.configPath, "config", "", "config file (default is the user config dir)")
	root.PersistentFlags().StringVar(&c.envFile, "env-file", ".env", "dotenv file with API keys")
	root.PersistentFlags().StringVar(&c.logLevel, "log-level", "", "override [logging].level")

	root.AddCommand(
		c.runCommand(),
		c.ideaCommand(),
		c.urlCommand(),
		c.listCommand(),
		c.showCommand(),
		c.serveCommand(),
		c.loginCommand(),
		c.logoutCommand(),
		c.openCommand(),
		c.botTestCommand(),
		versionCommand(),
	)
	return root
}

// setup loads the environment, the config and the logger. A missing config
// file is created with defaults on first run.
func (c *cli) setup() error {
	if err := config.LoadDotEnv(c.envFile); err != nil {
		return fmt.Errorf("load %s: %w", c.envFile, err)
	}

	if c.configPath == "" {
		p, err := config.ConfigPath()
		if err != nil {
			return err
		}
		c.configPath = p
	}

	firstRun := false
	if _, err := os.Stat(c.configPath); errors.Is(err, os.ErrNotExist) {
		firstRun = true
	}

	cfg, err := config.Load(c.configPath)
	if err != nil {
		return err
	}
	if c.logLevel != "" {
		cfg.Logging.Level = c.logLevel
	}
	c.cfg = cfg

	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Development)
	if err != nil {
		return err
	}
	c.logger = logger

	if firstRun {
		if err := config.Default().Save(c.configPath); err != nil {
			logger.Warn("could not save default config", zap.Error(err))
		} else {
			logger.Info("created default config", zap.String("path", c.configPath))
		}
	}
	return nil
}

// openApp opens storage for the loaded config. Callers close the app.
func (c *cli) openApp(ctx context.Context, opts ...app.Option) (*app.App, error) {
	cache, err := store.DefaultCache()
	if err != nil {
		return nil, err
	}
	opts = append([]app.Option{
		app.WithLogger(c.logger),
		app.WithCache(cache),
	}, opts...)
	return app.New(ctx, c.cfg, c.configPath, opts...)
}

func (c *cli) openServingApp(ctx context.Context) (*app.App, error) {
	return c.openApp(ctx, app.WithMetrics(metrics.New()))
}

func versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "ideaminer %s\n", version)
		},
	}
}
