// Command ingest runs the Strava ingestion pipeline from a terminal,
// for local development and manual backfills.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/athletedash/ingest/pkg/bootstrap"
	"github.com/athletedash/ingest/pkg/infrastructure/sentry"
	"github.com/athletedash/ingest/pkg/pipeline"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type runOptions struct {
	WindowDays int
	DryRun     bool
	AppEnv     string
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "ingest",
		Short:         "Strava to BigQuery ingestion for the athlete dashboard",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.AddCommand(newRunCommand())
	return cmd
}

func newRunCommand() *cobra.Command {
	opts := &runOptions{WindowDays: -1}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Execute one full extract-and-load pass",
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.AppEnv != "" {
				os.Setenv("APP_ENV", opts.AppEnv)
			}

			cfg, err := bootstrap.LoadConfig()
			if err != nil {
				return err
			}
			if opts.WindowDays >= 0 {
				cfg.WindowDays = opts.WindowDays
			}

			logger := bootstrap.NewLogger("strava-ingest-cli")
			if err := sentry.Init(sentry.Config{
				DSN:         cfg.SentryDSN,
				Environment: cfg.AppEnv,
				ServerName:  "strava-ingest-cli",
			}, logger); err != nil {
				return err
			}

			ctx := cmd.Context()
			p, cleanup, err := pipeline.Build(ctx, cfg, logger, opts.DryRun)
			if err != nil {
				sentry.CaptureException(err, map[string]interface{}{"stage": "setup"}, logger)
				sentry.Flush(2 * time.Second)
				return err
			}
			defer cleanup()

			if err := p.Run(ctx); err != nil {
				sentry.CaptureException(err, map[string]interface{}{"stage": "run"}, logger)
				sentry.Flush(2 * time.Second)
				return err
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&opts.WindowDays, "window-days", -1, "fetch only the last N days of activities (0 = full history, overrides WINDOW_DAYS)")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "fetch and explode but log loads instead of writing, and never trigger downstream")
	cmd.Flags().StringVar(&opts.AppEnv, "env", "", "environment mode: local loads a .env file (overrides APP_ENV)")

	return cmd
}
