package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/athletedash/ingest/pkg/bootstrap"
	"github.com/athletedash/ingest/pkg/strava"
	"github.com/athletedash/ingest/pkg/warehouse"
)

// Build wires a production pipeline from configuration: a fresh access
// token, the Strava client, the BigQuery loader, and the Cloud Run trigger.
// Authentication happens here, so a bad credential fails before anything is
// fetched or loaded. The returned cleanup func releases the loader's client.
func Build(ctx context.Context, cfg *bootstrap.Config, logger *slog.Logger, dryRun bool) (*Pipeline, func(), error) {
	creds, err := strava.CredentialsFromConfig(cfg)
	if err != nil {
		return nil, nil, err
	}

	token, err := strava.NewTokenProvider(creds).AccessToken(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("authenticate: %w", err)
	}

	client := strava.NewClient(token, logger)
	client.WindowDays = cfg.WindowDays

	var (
		loader  warehouse.Loader
		cleanup = func() {}
	)
	if dryRun {
		loader = &warehouse.DryRunLoader{Logger: logger}
	} else {
		bq, err := warehouse.NewBigQueryLoader(ctx, cfg.ProjectID, cfg.Dataset, logger)
		if err != nil {
			return nil, nil, err
		}
		loader = bq
		cleanup = func() { _ = bq.Close() }
	}

	var trigger Trigger
	if cfg.EnableTrigger && !dryRun {
		trigger = &CloudRunJobTrigger{
			ProjectID: cfg.ProjectID,
			Region:    cfg.Region,
			JobName:   cfg.DBTJobName,
			Logger:    logger,
		}
	} else {
		logger.Info("Downstream trigger disabled", "enable_trigger", cfg.EnableTrigger, "dry_run", dryRun)
	}

	return New(client, loader, trigger, TablesFromConfig(cfg), cfg.StreamFlushRows, logger), cleanup, nil
}
