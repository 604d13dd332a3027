package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ibeckermayer/ideaminer/internal/app"
	"github.com/ibeckermayer/ideaminer/internal/pipeline"
	"github.com/ibeckermayer/ideaminer/internal/report"
)

func (c *cli) runCommand() *cobra.Command {
	var (
		opts   app.RunOptions
		filter string
		output string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Fetch threads from the configured subreddits and analyse them",
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := report.ParseFilter(filter)
			if err != nil {
				return err
			}
			if output != "" {
				c.cfg.Storage.ResultsFile = output
			}

			return c.withApp(cmd.Context(), func(a *app.App) error {
				res, err := a.Run(cmd.Context(), opts)
				if err != nil {
					return err
				}
				printResult(cmd.OutOrStdout(), res, f)
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVarP(&opts.Subreddits, "subreddit", "s", nil, "subreddits to scan (repeatable)")
	cmd.Flags().IntVarP(&opts.ItemsPerSource, "posts", "p", 0, "posts to analyse per subreddit")
	cmd.Flags().IntVarP(&opts.RepliesPerItem, "comments", "c", 0, "top comments fetched per post")
	cmd.Flags().StringVarP(&output, "output", "o", "", "append records to this JSONL file (default [storage].results_file)")
	cmd.Flags().StringSliceVarP(&opts.Exclude, "exclude", "x", nil, "post ids to skip for this run")
	cmd.Flags().StringVar(&filter, "filter", "all", "report rows to show: all, viable or not-viable")
	cmd.Flags().StringVar(&opts.Owner, "owner", "", "owner email stamped on new records")
	return cmd
}

func (c *cli) ideaCommand() *cobra.Command {
	var (
		file  string
		owner string
	)

	cmd := &cobra.Command{
		Use:   "idea [text]",
		Short: "Turn a free-text idea into a solution and playbook",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := ideaText(cmd.InOrStdin(), args, file)
			if err != nil {
				return err
			}

			a, err := c.openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			// A blank idea still yields a report row.
			res, err := a.RunManual(cmd.Context(), text, owner)
			printResult(cmd.OutOrStdout(), res, report.FilterAll)
			return err
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "read the idea from a file (- for stdin)")
	cmd.Flags().StringVar(&owner, "owner", "", "owner email stamped on the record")
	return cmd
}

func ideaText(stdin io.Reader, args []string, file string) (string, error) {
	switch {
	case len(args) == 1 && file != "":
		return "", errors.New("pass the idea as an argument or with --file, not both")
	case len(args) == 1:
		return args[0], nil
	case file == "-":
		b, err := io.ReadAll(stdin)
		return string(b), err
	case file != "":
		b, err := os.ReadFile(file)
		return string(b), err
	default:
		return "", errors.New("an idea is required")
	}
}

func (c *cli) urlCommand() *cobra.Command {
	var owner string

	cmd := &cobra.Command{
		Use:   "url <permalink>",
		Short: "Analyse one Reddit thread by its permalink",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd.Context(), func(a *app.App) error {
				res, err := a.RunURL(cmd.Context(), strings.TrimSpace(args[0]), owner)
				if err != nil {
					return err
				}
				printResult(cmd.OutOrStdout(), res, report.FilterAll)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&owner, "owner", "", "owner email stamped on the record")
	return cmd
}

func printResult(w io.Writer, res pipeline.Result, filter report.Filter) {
	if len(res.Report) == 0 && len(res.SourceErrors) == 0 {
		fmt.Fprintln(w, "No new posts to analyse.")
		return
	}
	report.RenderReport(w, res.Report, filter)
	report.RenderSourceErrors(w, res.SourceErrors)
	for _, rec := range res.Records {
		fmt.Fprintln(w)
		report.RenderIdea(w, rec)
	}
}

// withApp opens the app, runs fn and closes it.
func (c *cli) withApp(ctx context.Context, fn func(*app.App) error) error {
	a, err := c.openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}
