package strava

import (
	"fmt"
	"strings"
)

// AuthConfigError means required credential values were absent.
// It aborts the run before any network call is made.
type AuthConfigError struct {
	Missing []string
}

func (e *AuthConfigError) Error() string {
	return fmt.Sprintf("strava auth config incomplete: missing %s", strings.Join(e.Missing, ", "))
}

// AuthExchangeError means the token-exchange call failed, either with a
// non-2xx status or a body that did not decode.
type AuthExchangeError struct {
	StatusCode int
	Err        error
}

func (e *AuthExchangeError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("strava token exchange failed (status %d): %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("strava token exchange failed: %v", e.Err)
}

func (e *AuthExchangeError) Unwrap() error { return e.Err }

// ValidationError reports a single record that did not map onto its typed
// shape. It is recovered per record: the item is dropped and counted, the
// rest of the batch continues.
type ValidationError struct {
	Entity string
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("invalid %s record: field %s: %s", e.Entity, e.Field, e.Reason)
	}
	return fmt.Sprintf("invalid %s record: %s", e.Entity, e.Reason)
}

// TransportError wraps a failed API request. Whether it aborts the run or
// just one entity depends on the call site: a failed activity-listing page
// kills the whole fetch, a failed stream or gear fetch skips one entry.
type TransportError struct {
	Op  string
	URL string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("strava %s request failed: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }
