package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	appLog "untisbot/internal/log"
	"untisbot/internal/report"
)

func newRunCmd(opts *rootOptions) *cobra.Command {
	var (
		dryRun bool
		date   string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Build and post one report now",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			loc := cfg.Location()

			day := time.Now().In(loc)
			if date != "" {
				day, err = time.ParseInLocation(time.DateOnly, date, loc)
				if err != nil {
					return fmt.Errorf("--date: %w", err)
				}
			}

			runner, err := newRunner(cfg, dryRun)
			if err != nil {
				return err
			}

			rep, err := runner.Run(cmd.Context(), day)
			if err != nil {
				if errors.Is(err, report.ErrDeliver) {
					appLog.Error("report built but not delivered", err, "date", day.Format(time.DateOnly))
				} else {
					appLog.Error("report run failed", err, "date", day.Format(time.DateOnly))
				}
				return err
			}

			if dryRun {
				if rep.Holiday {
					fmt.Fprintln(cmd.OutOrStdout(), rep.Body)
					return nil
				}
				fmt.Fprint(cmd.OutOrStdout(), rep.Text())
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Print the report instead of posting it")
	cmd.Flags().StringVar(&date, "date", "", "Report day as YYYY-MM-DD (default today)")
	return cmd
}
