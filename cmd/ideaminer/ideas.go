package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ibeckermayer/ideaminer/internal/app"
	"github.com/ibeckermayer/ideaminer/internal/report"
	"github.com/ibeckermayer/ideaminer/internal/store"
)

func (c *cli) listCommand() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recently stored ideas",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd.Context(), func(a *app.App) error {
				ideas, err := a.RecentIdeas(cmd.Context(), limit)
				if err != nil {
					return err
				}
				if len(ideas) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No ideas stored yet.")
					return nil
				}
				report.RenderIdeas(cmd.OutOrStdout(), ideas)
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of ideas to show")
	return cmd
}

func (c *cli) showCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show <uuid>",
		Short: "Show one stored idea with its playbook",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd.Context(), func(a *app.App) error {
				rec, err := a.IdeaByUUID(cmd.Context(), args[0])
				if errors.Is(err, store.ErrNotFound) {
					return fmt.Errorf("no idea with uuid %s", args[0])
				}
				if err != nil {
					return err
				}
				report.RenderIdea(cmd.OutOrStdout(), rec)
				return nil
			})
		},
	}
}
