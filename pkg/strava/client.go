package strava

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	httputil "github.com/athletedash/ingest/pkg/infrastructure/http"
)

const (
	defaultBaseURL  = "https://www.strava.com/api/v3"
	defaultPageSize = 200

	// streamKeys names every stream type the dashboard consumes.
	streamKeys = "time,distance,latlng,altitude,velocity_smooth,heartrate,cadence,watts,temp,moving,grade_smooth"
)

// Client extracts and validates data from the Strava API. Requests are
// sequential; Strava's API tier enforces strict per-minute rate limits, so
// no fetches run in parallel.
type Client struct {
	token      string
	httpClient *http.Client
	logger     *slog.Logger

	// BaseURL can be overridden in tests.
	BaseURL string
	// PageSize is the per_page value for the activity listing.
	PageSize int
	// WindowDays limits the activity listing to the last N days.
	// Zero fetches the full history.
	WindowDays int
}

// NewClient creates an API client authenticated with the given access token.
func NewClient(accessToken string, logger *slog.Logger) *Client {
	return &Client{
		token: accessToken,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger:   logger,
		BaseURL:  defaultBaseURL,
		PageSize: defaultPageSize,
	}
}

// get performs an authorized GET and decodes the JSON body into out.
func (c *Client) get(ctx context.Context, op, path string, query url.Values, out interface{}) error {
	u := c.BaseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, "GET", u, nil)
	if err != nil {
		return &TransportError{Op: op, URL: u, Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &TransportError{Op: op, URL: u, Err: err}
	}
	defer resp.Body.Close()

	if err := httputil.ParseErrorResponse(resp); err != nil {
		return &TransportError{Op: op, URL: u, Err: err}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &TransportError{Op: op, URL: u, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

// FetchAthlete fetches the athlete profile.
func (c *Client) FetchAthlete(ctx context.Context) (*Athlete, error) {
	c.logger.Info("Fetching athlete profile")

	var athlete Athlete
	if err := c.get(ctx, "athlete", "/athlete", nil, &athlete); err != nil {
		return nil, err
	}
	if err := athlete.Validate(); err != nil {
		return nil, err
	}
	return &athlete, nil
}

// FetchAthleteStats fetches aggregate totals for the athlete and stamps
// athlete_id and fetched_at, which the API response does not carry.
func (c *Client) FetchAthleteStats(ctx context.Context, athleteID int64) (*AthleteStats, error) {
	c.logger.Info("Fetching athlete stats", "athlete_id", athleteID)

	var stats AthleteStats
	path := fmt.Sprintf("/athletes/%d/stats", athleteID)
	if err := c.get(ctx, "athlete_stats", path, nil, &stats); err != nil {
		return nil, err
	}
	stats.AthleteID = athleteID
	stats.FetchedAt = time.Now().UTC()
	return &stats, nil
}

// FetchAllActivities walks the paginated activity listing until the first
// empty page. Invalid items are dropped and counted, never fatal; a failed
// page request aborts the whole fetch, since a partial listing would corrupt
// downstream loads.
func (c *Client) FetchAllActivities(ctx context.Context) ([]Activity, error) {
	c.logger.Info("Fetching all activities", "page_size", c.PageSize, "window_days", c.WindowDays)

	var after int64
	if c.WindowDays > 0 {
		after = time.Now().AddDate(0, 0, -c.WindowDays).Unix()
	}

	var activities []Activity
	invalid := 0
	for page := 1; ; page++ {
		query := url.Values{}
		query.Set("per_page", strconv.Itoa(c.PageSize))
		query.Set("page", strconv.Itoa(page))
		if after > 0 {
			query.Set("after", strconv.FormatInt(after, 10))
		}

		var items []json.RawMessage
		if err := c.get(ctx, "activities", "/athlete/activities", query, &items); err != nil {
			return nil, err
		}
		if len(items) == 0 {
			break
		}

		for _, raw := range items {
			activity, err := ParseActivity(raw)
			if err != nil {
				invalid++
				c.logger.Warn("Dropping invalid activity record", "error", err)
				continue
			}
			activities = append(activities, activity)
		}
	}

	c.logger.Info("Activities fetched", "valid", len(activities), "invalid", invalid)
	return activities, nil
}

// FetchActivityStreams fetches the raw stream payload for one activity,
// keyed by stream type. A 404 means the activity has no streams and yields
// an empty result, not an error.
func (c *Client) FetchActivityStreams(ctx context.Context, activityID int64) (map[string]Stream, error) {
	query := url.Values{}
	query.Set("keys", streamKeys)
	query.Set("key_by_type", "true")

	var streams map[string]Stream
	path := fmt.Sprintf("/activities/%d/streams", activityID)
	if err := c.get(ctx, "streams", path, query, &streams); err != nil {
		var httpErr *httputil.HTTPError
		if errors.As(err, &httpErr) && httpErr.StatusCode == http.StatusNotFound {
			c.logger.Debug("No streams available", "activity_id", activityID)
			return map[string]Stream{}, nil
		}
		return nil, err
	}
	return streams, nil
}

// FetchGear fetches one piece of equipment by its external id.
func (c *Client) FetchGear(ctx context.Context, gearID string) (*Gear, error) {
	c.logger.Info("Fetching gear details", "gear_id", gearID)

	var gear Gear
	if err := c.get(ctx, "gear", "/gear/"+gearID, nil, &gear); err != nil {
		return nil, err
	}
	if err := gear.Validate(); err != nil {
		return nil, err
	}
	return &gear, nil
}
