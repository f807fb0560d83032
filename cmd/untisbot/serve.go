package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	appLog "untisbot/internal/log"
	"untisbot/internal/scheduler"
	"untisbot/internal/web"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Post reports on the configured schedule and serve the current day over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			if listen != "" {
				cfg.Listen = listen
			}
			loc := cfg.Location()

			runner, err := newRunner(cfg, false)
			if err != nil {
				return err
			}

			sched, err := scheduler.New(cfg.Schedule, loc, func(ctx context.Context) {
				day := time.Now().In(loc)
				if _, err := runner.Run(ctx, day); err != nil {
					appLog.Error("scheduled report failed", err, "date", day.Format(time.DateOnly))
				}
			})
			if err != nil {
				return err
			}
			sched.Start()
			defer func() {
				stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
				defer cancel()
				if err := sched.Stop(stopCtx); err != nil {
					appLog.Error("scheduler stop timed out", err)
				}
			}()

			err = web.NewServer(cfg, runner).ListenAndServe(cmd.Context())
			appLog.Info("untisbot exiting")
			return err
		},
	}

	cmd.Flags().StringVar(&listen, "listen", "", "HTTP listen address (overrides config if set)")
	return cmd
}
