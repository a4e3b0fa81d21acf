// Package sentry wraps error reporting for the ingestion job.
package sentry

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/getsentry/sentry-go"
)

type Config struct {
	DSN         string
	Environment string
	ServerName  string
}

// Init initializes Sentry. A missing DSN disables reporting rather than
// failing the run; a scheduled batch job must still work without it.
func Init(cfg Config, logger *slog.Logger) error {
	if cfg.DSN == "" {
		if logger != nil {
			logger.Warn("Sentry DSN not configured - error tracking disabled")
		}
		return nil
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:         cfg.DSN,
		Environment: cfg.Environment,
		ServerName:  cfg.ServerName,
		BeforeSend: func(event *sentry.Event, hint *sentry.EventHint) *sentry.Event {
			// Filter out sensitive data
			if event.Request != nil && event.Request.Headers != nil {
				delete(event.Request.Headers, "Authorization")
				delete(event.Request.Headers, "Cookie")
			}
			return event
		},
	})
	if err != nil {
		if logger != nil {
			logger.Error("Failed to initialize Sentry", "error", err)
		}
		return fmt.Errorf("sentry init: %w", err)
	}

	if logger != nil {
		logger.Info("Sentry initialized", "environment", cfg.Environment)
	}
	return nil
}

// CaptureException captures an exception with additional run context.
func CaptureException(err error, context map[string]interface{}, logger *slog.Logger) {
	if err == nil {
		return
	}

	if context != nil {
		sentry.ConfigureScope(func(scope *sentry.Scope) {
			for key, value := range context {
				scope.SetContext(key, sentry.Context(map[string]interface{}{
					"value": value,
				}))
			}
		})
	}

	sentry.CaptureException(err)

	if logger != nil {
		logger.Debug("Exception captured in Sentry", "error", err.Error())
	}
}

// Flush waits for all events to be sent.
// Call this before the job terminates to ensure events are delivered.
func Flush(timeout time.Duration) bool {
	return sentry.Flush(timeout)
}
