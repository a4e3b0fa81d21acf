package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"google.golang.org/api/option"
	run "google.golang.org/api/run/v1"
)

// Trigger invokes the downstream transformation job. Fire and forget: no
// payload beyond authentication, and never invoked unless every load in the
// run succeeded.
type Trigger interface {
	Run(ctx context.Context) error
}

// CloudRunJobTrigger starts the dbt Cloud Run job through the regional
// Cloud Run Admin API using Application Default Credentials.
type CloudRunJobTrigger struct {
	ProjectID string
	Region    string
	JobName   string
	Logger    *slog.Logger
}

func (t *CloudRunJobTrigger) Run(ctx context.Context) error {
	endpoint := fmt.Sprintf("https://%s-run.googleapis.com/", t.Region)
	service, err := run.NewService(ctx, option.WithEndpoint(endpoint))
	if err != nil {
		return fmt.Errorf("cloud run service init: %w", err)
	}

	name := fmt.Sprintf("namespaces/%s/jobs/%s", t.ProjectID, t.JobName)
	t.Logger.Info("Triggering Cloud Run job", "job", name, "region", t.Region)

	if _, err := service.Namespaces.Jobs.Run(name, &run.RunJobRequest{}).Context(ctx).Do(); err != nil {
		return fmt.Errorf("run job %s: %w", name, err)
	}

	t.Logger.Info("Cloud Run job triggered", "job", t.JobName)
	return nil
}
