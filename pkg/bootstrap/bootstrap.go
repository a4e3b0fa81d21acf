// Package bootstrap wires configuration and logging for the ingestion job.
package bootstrap

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// DefaultStreamFlushRows bounds peak memory when buffering exploded stream
// samples for athletes with long activity histories.
const DefaultStreamFlushRows = 25000

// Config holds the full environment-sourced configuration for one run.
type Config struct {
	// Strava credentials
	StravaClientID     string
	StravaClientSecret string
	StravaRefreshToken string

	// Destination
	ProjectID         string
	Region            string
	Dataset           string
	AthleteInfoTable  string
	AthleteStatsTable string
	ActivitiesTable   string
	StreamsTable      string
	GearTable         string

	// Downstream transformation job (Cloud Run)
	DBTJobName    string
	EnableTrigger bool

	// Fetch window in days; 0 means full history.
	WindowDays int

	// Stream sample rows buffered before an APPEND flush.
	StreamFlushRows int

	SentryDSN string
	AppEnv    string
}

// ConfigError reports every required environment key that is missing,
// so a misconfigured deployment fails in one round trip.
type ConfigError struct {
	Missing []string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("missing required environment variables: %s", strings.Join(e.Missing, ", "))
}

// LoadConfig reads configuration from environment variables. In local mode
// (APP_ENV=local) a .env file is loaded first, matching how the job is run
// on a workstation. Any required key without a value fails the run here,
// before anything is fetched or loaded.
func LoadConfig() (*Config, error) {
	appEnv := os.Getenv("APP_ENV")
	if appEnv == "" {
		appEnv = "cloud"
	}
	if appEnv == "local" {
		// Absence of a .env file is not an error, the variables may
		// simply be exported in the shell.
		_ = godotenv.Load()
	}

	cfg := &Config{
		StravaClientID:     os.Getenv("STRAVA_CLIENT_ID"),
		StravaClientSecret: os.Getenv("STRAVA_CLIENT_SECRET"),
		StravaRefreshToken: os.Getenv("STRAVA_REFRESH_TOKEN"),
		ProjectID:          os.Getenv("GCP_PROJECT_ID"),
		Region:             os.Getenv("GCP_REGION"),
		Dataset:            os.Getenv("BIGQUERY_DATASET"),
		AthleteInfoTable:   os.Getenv("BIGQUERY_RAW_ATHLETE_INFO"),
		AthleteStatsTable:  os.Getenv("BIGQUERY_RAW_ATHLETE_STATS"),
		ActivitiesTable:    os.Getenv("BIGQUERY_RAW_ACTIVITIES"),
		StreamsTable:       os.Getenv("BIGQUERY_RAW_ACTIVITY_STREAMS"),
		GearTable:          os.Getenv("BIGQUERY_RAW_GEAR_DETAILS"),
		DBTJobName:         os.Getenv("CLOUD_RUN_DBT_JOB_NAME"),
		EnableTrigger:      os.Getenv("ENABLE_TRIGGER") != "false",
		WindowDays:         getIntEnv("WINDOW_DAYS", 0),
		StreamFlushRows:    getIntEnv("STREAM_FLUSH_ROWS", DefaultStreamFlushRows),
		SentryDSN:          os.Getenv("SENTRY_DSN"),
		AppEnv:             appEnv,
	}

	required := []struct {
		key   string
		value string
	}{
		{"STRAVA_CLIENT_ID", cfg.StravaClientID},
		{"STRAVA_CLIENT_SECRET", cfg.StravaClientSecret},
		{"STRAVA_REFRESH_TOKEN", cfg.StravaRefreshToken},
		{"GCP_PROJECT_ID", cfg.ProjectID},
		{"GCP_REGION", cfg.Region},
		{"BIGQUERY_DATASET", cfg.Dataset},
		{"BIGQUERY_RAW_ATHLETE_INFO", cfg.AthleteInfoTable},
		{"BIGQUERY_RAW_ATHLETE_STATS", cfg.AthleteStatsTable},
		{"BIGQUERY_RAW_ACTIVITIES", cfg.ActivitiesTable},
		{"BIGQUERY_RAW_ACTIVITY_STREAMS", cfg.StreamsTable},
		{"BIGQUERY_RAW_GEAR_DETAILS", cfg.GearTable},
		{"CLOUD_RUN_DBT_JOB_NAME", cfg.DBTJobName},
	}

	var missing []string
	for _, r := range required {
		if r.value == "" {
			missing = append(missing, r.key)
		}
	}
	if len(missing) > 0 {
		return nil, &ConfigError{Missing: missing}
	}

	return cfg, nil
}

func getIntEnv(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

// GetSlogHandlerOptions returns standard handler options for GCP
func GetSlogHandlerOptions(level slog.Level) *slog.HandlerOptions {
	return &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			// Map standard keys to Cloud Logging keys
			if a.Key == slog.MessageKey {
				return slog.Attr{Key: "message", Value: a.Value}
			}
			if a.Key == slog.LevelKey {
				return slog.Attr{Key: "severity", Value: a.Value}
			}
			return a
		},
	}
}

// NewLogger creates a configured logger instance with the level taken
// from LOG_LEVEL.
func NewLogger(serviceName string) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := GetSlogHandlerOptions(level)
	handler := slog.NewJSONHandler(os.Stdout, opts)
	return slog.New(handler).With("service", serviceName)
}
