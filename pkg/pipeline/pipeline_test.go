package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/athletedash/ingest/pkg/strava"
	"github.com/athletedash/ingest/pkg/warehouse"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeExtractor lets each fetch be overridden per test.
type fakeExtractor struct {
	FetchAthleteFunc         func(ctx context.Context) (*strava.Athlete, error)
	FetchAthleteStatsFunc    func(ctx context.Context, athleteID int64) (*strava.AthleteStats, error)
	FetchAllActivitiesFunc   func(ctx context.Context) ([]strava.Activity, error)
	FetchActivityStreamsFunc func(ctx context.Context, activityID int64) (map[string]strava.Stream, error)
	FetchGearFunc            func(ctx context.Context, gearID string) (*strava.Gear, error)

	gearCalls []string
}

func (f *fakeExtractor) FetchAthlete(ctx context.Context) (*strava.Athlete, error) {
	if f.FetchAthleteFunc != nil {
		return f.FetchAthleteFunc(ctx)
	}
	return &strava.Athlete{ID: 42, Username: "runner"}, nil
}

func (f *fakeExtractor) FetchAthleteStats(ctx context.Context, athleteID int64) (*strava.AthleteStats, error) {
	if f.FetchAthleteStatsFunc != nil {
		return f.FetchAthleteStatsFunc(ctx, athleteID)
	}
	return &strava.AthleteStats{AthleteID: athleteID, FetchedAt: time.Now().UTC()}, nil
}

func (f *fakeExtractor) FetchAllActivities(ctx context.Context) ([]strava.Activity, error) {
	if f.FetchAllActivitiesFunc != nil {
		return f.FetchAllActivitiesFunc(ctx)
	}
	return []strava.Activity{{ID: 1, GearID: "g1"}, {ID: 2, GearID: "g1"}, {ID: 3, GearID: "g2"}, {ID: 4}}, nil
}

func (f *fakeExtractor) FetchActivityStreams(ctx context.Context, activityID int64) (map[string]strava.Stream, error) {
	if f.FetchActivityStreamsFunc != nil {
		return f.FetchActivityStreamsFunc(ctx, activityID)
	}
	return map[string]strava.Stream{}, nil
}

func (f *fakeExtractor) FetchGear(ctx context.Context, gearID string) (*strava.Gear, error) {
	f.gearCalls = append(f.gearCalls, gearID)
	if f.FetchGearFunc != nil {
		return f.FetchGearFunc(ctx, gearID)
	}
	return &strava.Gear{ID: gearID, Name: "gear " + gearID}, nil
}

type loadCall struct {
	table       string
	rows        int
	disposition warehouse.Disposition
	hasSchema   bool
}

// fakeLoader records calls and fails for tables listed in failTables.
type fakeLoader struct {
	calls      []loadCall
	failTables map[string]bool
}

func (l *fakeLoader) Load(ctx context.Context, rows []interface{}, table string, disposition warehouse.Disposition, schema bigquery.Schema) error {
	l.calls = append(l.calls, loadCall{table: table, rows: len(rows), disposition: disposition, hasSchema: schema != nil})
	if l.failTables[table] {
		return &warehouse.LoadError{Table: table, Err: errors.New("simulated storage failure")}
	}
	return nil
}

func (l *fakeLoader) callsFor(table string) []loadCall {
	var out []loadCall
	for _, c := range l.calls {
		if c.table == table {
			out = append(out, c)
		}
	}
	return out
}

type fakeTrigger struct {
	calls int
	err   error
}

func (t *fakeTrigger) Run(ctx context.Context) error {
	t.calls++
	return t.err
}

var testTables = Tables{
	AthleteInfo:  "raw_athlete_info",
	AthleteStats: "raw_athlete_stats",
	Activities:   "raw_activities",
	Streams:      "raw_activity_streams",
	Gear:         "raw_gear_details",
}

func hrStream(samples ...string) map[string]strava.Stream {
	stream := strava.Stream{}
	for _, s := range samples {
		stream.Data = append(stream.Data, json.RawMessage(s))
	}
	return map[string]strava.Stream{"heartrate": stream}
}

func newTestPipeline(extractor Extractor, loader warehouse.Loader, trigger Trigger, flushRows int) *Pipeline {
	return New(extractor, loader, trigger, testTables, flushRows, testLogger())
}

func TestRunSuccess(t *testing.T) {
	extractor := &fakeExtractor{
		FetchActivityStreamsFunc: func(ctx context.Context, activityID int64) (map[string]strava.Stream, error) {
			return hrStream("100", "101"), nil
		},
	}
	loader := &fakeLoader{}
	trigger := &fakeTrigger{}

	err := newTestPipeline(extractor, loader, trigger, 100).Run(context.Background())
	require.NoError(t, err)

	info := loader.callsFor("raw_athlete_info")
	require.Len(t, info, 1)
	assert.Equal(t, warehouse.ReplaceAll, info[0].disposition)
	assert.False(t, info[0].hasSchema)
	assert.Equal(t, 1, info[0].rows)

	stats := loader.callsFor("raw_athlete_stats")
	require.Len(t, stats, 1)
	assert.Equal(t, warehouse.ReplaceAll, stats[0].disposition)

	activities := loader.callsFor("raw_activities")
	require.Len(t, activities, 1)
	assert.Equal(t, warehouse.Append, activities[0].disposition)
	assert.Equal(t, 4, activities[0].rows)

	streams := loader.callsFor("raw_activity_streams")
	require.Len(t, streams, 1)
	assert.Equal(t, warehouse.Append, streams[0].disposition)
	assert.True(t, streams[0].hasSchema)
	assert.Equal(t, 8, streams[0].rows) // 4 activities x 2 samples

	gear := loader.callsFor("raw_gear_details")
	require.Len(t, gear, 1)
	assert.Equal(t, 2, gear[0].rows)

	assert.Equal(t, 1, trigger.calls)
}

func TestRunGearDedup(t *testing.T) {
	extractor := &fakeExtractor{}
	loader := &fakeLoader{}

	err := newTestPipeline(extractor, loader, &fakeTrigger{}, 100).Run(context.Background())
	require.NoError(t, err)

	// g1 referenced twice, g2 once, one activity without gear.
	assert.Equal(t, []string{"g1", "g2"}, extractor.gearCalls)
}

func TestRunStreamBatchFlush(t *testing.T) {
	extractor := &fakeExtractor{
		FetchAllActivitiesFunc: func(ctx context.Context) ([]strava.Activity, error) {
			return []strava.Activity{{ID: 1}, {ID: 2}, {ID: 3}}, nil
		},
		FetchActivityStreamsFunc: func(ctx context.Context, activityID int64) (map[string]strava.Stream, error) {
			return hrStream("100", "101", "102"), nil
		},
	}
	loader := &fakeLoader{}

	err := newTestPipeline(extractor, loader, &fakeTrigger{}, 5).Run(context.Background())
	require.NoError(t, err)

	streams := loader.callsFor("raw_activity_streams")
	require.Len(t, streams, 2)
	// Buffer crosses the threshold of 5 after the second activity (6 rows),
	// the remainder flushes after the loop.
	assert.Equal(t, 6, streams[0].rows)
	assert.Equal(t, 3, streams[1].rows)
}

func TestRunStreamFetchFailureSkipsActivity(t *testing.T) {
	extractor := &fakeExtractor{
		FetchAllActivitiesFunc: func(ctx context.Context) ([]strava.Activity, error) {
			return []strava.Activity{{ID: 1}, {ID: 2}}, nil
		},
		FetchActivityStreamsFunc: func(ctx context.Context, activityID int64) (map[string]strava.Stream, error) {
			if activityID == 1 {
				return nil, &strava.TransportError{Op: "streams", Err: errors.New("timeout")}
			}
			return hrStream("90"), nil
		},
	}
	loader := &fakeLoader{}
	trigger := &fakeTrigger{}

	err := newTestPipeline(extractor, loader, trigger, 100).Run(context.Background())
	require.NoError(t, err)

	streams := loader.callsFor("raw_activity_streams")
	require.Len(t, streams, 1)
	assert.Equal(t, 1, streams[0].rows)
	assert.Equal(t, 1, trigger.calls)
}

func TestRunLoadFailureSuppressesTriggerButNotSiblings(t *testing.T) {
	extractor := &fakeExtractor{}
	loader := &fakeLoader{failTables: map[string]bool{"raw_activities": true}}
	trigger := &fakeTrigger{}

	err := newTestPipeline(extractor, loader, trigger, 100).Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "raw_activities")

	// The independent gear load still ran.
	assert.Len(t, loader.callsFor("raw_gear_details"), 1)
	assert.Equal(t, 0, trigger.calls)
}

func TestRunStreamFlushFailureSuppressesTrigger(t *testing.T) {
	extractor := &fakeExtractor{
		FetchActivityStreamsFunc: func(ctx context.Context, activityID int64) (map[string]strava.Stream, error) {
			return hrStream("100"), nil
		},
	}
	loader := &fakeLoader{failTables: map[string]bool{"raw_activity_streams": true}}
	trigger := &fakeTrigger{}

	err := newTestPipeline(extractor, loader, trigger, 100).Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "raw_activity_streams")
	assert.Equal(t, 0, trigger.calls)

	// Entity loads were still attempted.
	assert.Len(t, loader.callsFor("raw_athlete_info"), 1)
	assert.Len(t, loader.callsFor("raw_gear_details"), 1)
}

func TestRunFatalFetchFailure(t *testing.T) {
	extractor := &fakeExtractor{
		FetchAllActivitiesFunc: func(ctx context.Context) ([]strava.Activity, error) {
			return nil, &strava.TransportError{Op: "activities", Err: errors.New("page 2 failed")}
		},
	}
	loader := &fakeLoader{}
	trigger := &fakeTrigger{}

	err := newTestPipeline(extractor, loader, trigger, 100).Run(context.Background())
	require.Error(t, err)

	var transportErr *strava.TransportError
	assert.True(t, errors.As(err, &transportErr))
	assert.Empty(t, loader.calls)
	assert.Equal(t, 0, trigger.calls)
}

func TestRunAuthFailureLoadsNothing(t *testing.T) {
	extractor := &fakeExtractor{
		FetchAthleteFunc: func(ctx context.Context) (*strava.Athlete, error) {
			return nil, &strava.AuthExchangeError{StatusCode: 401, Err: errors.New("bad refresh token")}
		},
	}
	loader := &fakeLoader{}
	trigger := &fakeTrigger{}

	err := newTestPipeline(extractor, loader, trigger, 100).Run(context.Background())
	require.Error(t, err)
	assert.Empty(t, loader.calls)
	assert.Equal(t, 0, trigger.calls)
}

func TestRunTriggerFailureSurfaces(t *testing.T) {
	extractor := &fakeExtractor{}
	loader := &fakeLoader{}
	trigger := &fakeTrigger{err: fmt.Errorf("cloud run unavailable")}

	err := newTestPipeline(extractor, loader, trigger, 100).Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cloud run unavailable")
	assert.Equal(t, 1, trigger.calls)
}

func TestRunEmptyActivityHistory(t *testing.T) {
	extractor := &fakeExtractor{
		FetchAllActivitiesFunc: func(ctx context.Context) ([]strava.Activity, error) {
			return nil, nil
		},
	}
	loader := &fakeLoader{}
	trigger := &fakeTrigger{}

	err := newTestPipeline(extractor, loader, trigger, 100).Run(context.Background())
	require.NoError(t, err)

	// Snapshot loads still happen; history loads see zero rows (the loader
	// treats those as no-ops); the trigger still fires.
	assert.Len(t, loader.callsFor("raw_athlete_info"), 1)
	activities := loader.callsFor("raw_activities")
	require.Len(t, activities, 1)
	assert.Equal(t, 0, activities[0].rows)
	assert.Equal(t, 1, trigger.calls)
}
