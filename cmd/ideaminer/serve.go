package main

import (
	"context"
	"errors"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ibeckermayer/ideaminer/internal/scheduler"
	"github.com/ibeckermayer/ideaminer/internal/server"
)

func (c *cli) serveCommand() *cobra.Command {
	var (
		addr      string
		runOnBoot bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the scheduler and the HTTP API until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			a, err := c.openServingApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			cfg := a.Config()
			if addr == "" {
				addr = cfg.Server.Addr
			}

			sched, err := scheduler.New(cfg.Schedule.Timezone, c.logger)
			if err != nil {
				return err
			}
			// TODO: re-register the scrape job when [schedule] changes on reload.
			if cfg.Schedule.Enabled {
				if err := sched.AddScrapeJob(cfg.Schedule.Cron, cfg.Schedule.IntervalHours, a.RunScheduled); err != nil {
					return err
				}
			}

			srv := server.New(ctx, addr, a, c.logger,
				server.WithMetricsHandler(a.Metrics().Handler()),
				server.WithJobs(sched.ListJobs))

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				return srv.ListenAndServe(gctx)
			})
			g.Go(func() error {
				return a.WatchConfig(gctx)
			})
			g.Go(func() error {
				sched.Start()
				if runOnBoot {
					if err := sched.RunNow(gctx, "scrape", a.RunScheduled); err != nil {
						c.logger.Error("initial run failed", zap.Error(err))
					}
				}
				<-gctx.Done()
				<-sched.Stop().Done()
				return nil
			})

			if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default [server].addr)")
	cmd.Flags().BoolVar(&runOnBoot, "run-now", false, "run the pipeline once at startup")
	return cmd
}
