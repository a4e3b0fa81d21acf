// Package ingest is the Cloud Function entry point for the scheduled
// ingestion run. Cloud Scheduler publishes a tick to Pub/Sub, which arrives
// here as a CloudEvent; the event payload itself carries nothing the run
// needs.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"
	"github.com/cloudevents/sdk-go/v2/event"

	"github.com/athletedash/ingest/pkg/bootstrap"
	"github.com/athletedash/ingest/pkg/infrastructure/sentry"
	"github.com/athletedash/ingest/pkg/pipeline"
)

var (
	cfg      *bootstrap.Config
	logger   *slog.Logger
	initOnce sync.Once
	initErr  error
)

func init() {
	functions.CloudEvent("RunIngestion", RunIngestion)
}

func setup() error {
	initOnce.Do(func() {
		cfg, initErr = bootstrap.LoadConfig()
		if initErr != nil {
			return
		}
		logger = bootstrap.NewLogger("strava-ingest")
		initErr = sentry.Init(sentry.Config{
			DSN:         cfg.SentryDSN,
			Environment: cfg.AppEnv,
			ServerName:  "strava-ingest",
		}, logger)
	})
	return initErr
}

// RunIngestion executes one full extract-and-load pass per scheduler tick.
func RunIngestion(ctx context.Context, e event.Event) error {
	if err := setup(); err != nil {
		return fmt.Errorf("service init failed: %w", err)
	}

	p, cleanup, err := pipeline.Build(ctx, cfg, logger, false)
	if err != nil {
		logger.Error("Pipeline setup failed", "error", err)
		sentry.CaptureException(err, map[string]interface{}{"stage": "setup"}, logger)
		sentry.Flush(2 * time.Second)
		return err
	}
	defer cleanup()

	if err := p.Run(ctx); err != nil {
		logger.Error("Ingestion run failed", "error", err)
		sentry.CaptureException(err, map[string]interface{}{"stage": "run"}, logger)
		sentry.Flush(2 * time.Second)
		return err
	}
	return nil
}
