// Package pipeline sequences one full extract-and-load run.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/athletedash/ingest/pkg/bootstrap"
	"github.com/athletedash/ingest/pkg/strava"
	"github.com/athletedash/ingest/pkg/transform"
	"github.com/athletedash/ingest/pkg/warehouse"
)

// Extractor is the fetch contract one external source implements. New
// sources implement this without touching the orchestrator.
type Extractor interface {
	FetchAthlete(ctx context.Context) (*strava.Athlete, error)
	FetchAthleteStats(ctx context.Context, athleteID int64) (*strava.AthleteStats, error)
	FetchAllActivities(ctx context.Context) ([]strava.Activity, error)
	FetchActivityStreams(ctx context.Context, activityID int64) (map[string]strava.Stream, error)
	FetchGear(ctx context.Context, gearID string) (*strava.Gear, error)
}

// Tables names the destination table per entity.
type Tables struct {
	AthleteInfo  string
	AthleteStats string
	Activities   string
	Streams      string
	Gear         string
}

// TablesFromConfig maps the configuration surface onto destinations.
func TablesFromConfig(cfg *bootstrap.Config) Tables {
	return Tables{
		AthleteInfo:  cfg.AthleteInfoTable,
		AthleteStats: cfg.AthleteStatsTable,
		Activities:   cfg.ActivitiesTable,
		Streams:      cfg.StreamsTable,
		Gear:         cfg.GearTable,
	}
}

// activityRow and gearRow stamp the run's ingestion timestamp onto history
// rows; snapshot entities carry their own identity fields instead.
type activityRow struct {
	strava.Activity
	IngestedAt time.Time `json:"ingested_at"`
}

type gearRow struct {
	strava.Gear
	IngestedAt time.Time `json:"ingested_at"`
}

// Pipeline runs the full ingestion sequence: authenticate, fetch, explode,
// load, then trigger the downstream transformation job. Execution is
// single-threaded and sequential; the only scheduling concern is memory,
// bounded by FlushRows.
type Pipeline struct {
	Extractor Extractor
	Loader    warehouse.Loader
	Trigger   Trigger
	Tables    Tables

	// FlushRows is the stream buffer threshold that forces an APPEND flush.
	FlushRows int
	Logger    *slog.Logger

	// now is swappable in tests.
	now func() time.Time
}

// New constructs a Pipeline with defaults applied.
func New(extractor Extractor, loader warehouse.Loader, trigger Trigger, tables Tables, flushRows int, logger *slog.Logger) *Pipeline {
	if flushRows <= 0 {
		flushRows = bootstrap.DefaultStreamFlushRows
	}
	return &Pipeline{
		Extractor: extractor,
		Loader:    loader,
		Trigger:   trigger,
		Tables:    tables,
		FlushRows: flushRows,
		Logger:    logger,
		now:       time.Now,
	}
}

// Run executes one pass. Fetch failures on the profile, stats, or activity
// listing are fatal; a single activity's stream fetch or a single gear fetch
// failure only skips that entry. Load failures never stop sibling loads but
// unconditionally suppress the downstream trigger.
func (p *Pipeline) Run(ctx context.Context) error {
	if p.now == nil {
		p.now = time.Now
	}
	runID := uuid.NewString()
	logger := p.Logger.With("run_id", runID)
	ingestedAt := p.now().UTC()

	logger.Info("Starting ingestion run")

	athlete, err := p.Extractor.FetchAthlete(ctx)
	if err != nil {
		return fmt.Errorf("fetch athlete profile: %w", err)
	}

	stats, err := p.Extractor.FetchAthleteStats(ctx, athlete.ID)
	if err != nil {
		return fmt.Errorf("fetch athlete stats: %w", err)
	}

	activities, err := p.Extractor.FetchAllActivities(ctx)
	if err != nil {
		return fmt.Errorf("fetch activities: %w", err)
	}

	var failedTables []string
	recordFailure := func(table string, err error) {
		logger.Error("Load failed", "table", table, "error", err)
		for _, t := range failedTables {
			if t == table {
				return
			}
		}
		failedTables = append(failedTables, table)
	}

	// Streams: fetch, explode, and flush in bounded batches. A failed fetch
	// skips that one activity's streams; the run continues.
	buffer := make([]interface{}, 0, p.FlushRows)
	flush := func() {
		if len(buffer) == 0 {
			return
		}
		err := p.Loader.Load(ctx, buffer, p.Tables.Streams, warehouse.Append, warehouse.StreamSchema)
		if err != nil {
			recordFailure(p.Tables.Streams, err)
		}
		// The buffer is cleared even on failure: retrying is the outer
		// scheduler's job and holding rows would unbound memory.
		buffer = buffer[:0]
	}

	streamRows, skippedStreams := 0, 0
	for _, activity := range activities {
		streams, err := p.Extractor.FetchActivityStreams(ctx, activity.ID)
		if err != nil {
			skippedStreams++
			logger.Warn("Skipping streams for activity", "activity_id", activity.ID, "error", err)
			continue
		}

		rows := transform.ExplodeStreams(activity.ID, streams, ingestedAt)
		for _, row := range rows {
			buffer = append(buffer, row)
		}
		streamRows += len(rows)
		if len(buffer) >= p.FlushRows {
			flush()
		}
	}
	flush()
	logger.Info("Streams processed", "activities", len(activities), "rows", streamRows, "skipped", skippedStreams)

	// Gear: fetch each referenced id exactly once. A failed fetch skips
	// that one entry.
	var gearRows []interface{}
	seenGear := map[string]bool{}
	for _, activity := range activities {
		if activity.GearID == "" || seenGear[activity.GearID] {
			continue
		}
		seenGear[activity.GearID] = true

		gear, err := p.Extractor.FetchGear(ctx, activity.GearID)
		if err != nil {
			logger.Warn("Skipping gear", "gear_id", activity.GearID, "error", err)
			continue
		}
		gearRows = append(gearRows, gearRow{Gear: *gear, IngestedAt: ingestedAt})
	}

	// Entity loads: snapshots replace, history appends. Each failure is
	// recorded but never stops the sibling loads from attempting.
	if err := p.Loader.Load(ctx, []interface{}{athlete}, p.Tables.AthleteInfo, warehouse.ReplaceAll, nil); err != nil {
		recordFailure(p.Tables.AthleteInfo, err)
	}
	if err := p.Loader.Load(ctx, []interface{}{stats}, p.Tables.AthleteStats, warehouse.ReplaceAll, nil); err != nil {
		recordFailure(p.Tables.AthleteStats, err)
	}

	activityRows := make([]interface{}, 0, len(activities))
	for _, activity := range activities {
		activityRows = append(activityRows, activityRow{Activity: activity, IngestedAt: ingestedAt})
	}
	if err := p.Loader.Load(ctx, activityRows, p.Tables.Activities, warehouse.Append, nil); err != nil {
		recordFailure(p.Tables.Activities, err)
	}
	if err := p.Loader.Load(ctx, gearRows, p.Tables.Gear, warehouse.Append, nil); err != nil {
		recordFailure(p.Tables.Gear, err)
	}

	if len(failedTables) > 0 {
		return fmt.Errorf("run %s finished with load failures (%s); downstream trigger skipped", runID, strings.Join(failedTables, ", "))
	}

	if p.Trigger != nil {
		logger.Info("All loads succeeded, triggering downstream job")
		if err := p.Trigger.Run(ctx); err != nil {
			return fmt.Errorf("trigger downstream job: %w", err)
		}
	}

	logger.Info("Ingestion run complete", "activities", len(activities), "gear", len(gearRows))
	return nil
}
