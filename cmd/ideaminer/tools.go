package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/chromedp/chromedp"
	"github.com/pkg/browser"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ibeckermayer/ideaminer/internal/app"
	browseropts "github.com/ibeckermayer/ideaminer/internal/browser"
	"github.com/ibeckermayer/ideaminer/internal/config"
)

func (c *cli) loginCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Log in to Reddit in a browser and store the session for the browser client",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd.Context(), func(a *app.App) error {
				if err := a.Login(cmd.Context()); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Logged in.")
				return nil
			})
		},
	}
}

func (c *cli) logoutCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored Reddit session",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd.Context(), func(a *app.App) error {
				return a.Logout()
			})
		},
	}
}

func (c *cli) openCommand() *cobra.Command {
	return &cobra.Command{
		Use:       "open <config|cache|output>",
		Short:     "Open the config file, cache directory or results file",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"config", "cache", "output"},
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				path string
				err  error
			)
			switch args[0] {
			case "config":
				path = c.configPath
			case "cache":
				path, err = config.CacheDir()
			case "output":
				path, err = filepath.Abs(c.cfg.Storage.ResultsFile)
			default:
				return fmt.Errorf("unknown target: %s", args[0])
			}
			if err != nil {
				return fmt.Errorf("failed to get path: %w", err)
			}
			if err := browser.OpenFile(path); err != nil {
				return fmt.Errorf("failed to open %s: %w", path, err)
			}
			return nil
		},
	}
}

func (c *cli) botTestCommand() *cobra.Command {
	return &cobra.Command{
		Use:    "bot-test",
		Short:  "Open bot.sannysoft.com to audit the browser fingerprint",
		Hidden: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			c.logger.Info("opening bot.sannysoft.com with stealth browser options")

			allocCtx, cancel := chromedp.NewExecAllocator(context.Background(), browseropts.Options(false)...)
			defer cancel()

			ctx, cancel := chromedp.NewContext(allocCtx)
			defer cancel()

			go func() {
				if err := chromedp.Run(ctx, chromedp.Navigate("https://bot.sannysoft.com")); err != nil {
					c.logger.Error("failed to navigate", zap.Error(err))
				}
			}()

			fmt.Fprintln(cmd.OutOrStdout(), "Press Enter to end program...")
			_, _ = bufio.NewReader(os.Stdin).ReadString('\n')
			return nil
		},
	}
}
