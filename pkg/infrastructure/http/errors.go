// Package httputil provides HTTP error handling utilities.
package httputil

import (
	"fmt"
	"io"
	"net/http"
)

// MaxErrorBodySize is the maximum size of error body to include in error messages
const MaxErrorBodySize = 500

// HTTPError represents an HTTP error with status code and response body
type HTTPError struct {
	StatusCode int
	Status     string
	Body       string
	URL        string
}

func (e *HTTPError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("%s (status %d): %s", e.Status, e.StatusCode, e.Body)
	}
	return fmt.Sprintf("%s (status %d)", e.Status, e.StatusCode)
}

// truncate truncates a string to maxLen, adding "..." if truncated
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

// ParseErrorResponse checks if the response is an error (4xx/5xx) and returns
// a rich HTTPError containing the truncated response body. Returns nil for
// success responses. The body is consumed either way; callers that hit an
// error have no further use for it.
func ParseErrorResponse(resp *http.Response) error {
	if resp.StatusCode < 400 {
		return nil
	}

	bodyBytes, readErr := io.ReadAll(resp.Body)
	resp.Body.Close()

	bodyStr := ""
	if readErr == nil && len(bodyBytes) > 0 {
		bodyStr = truncate(string(bodyBytes), MaxErrorBodySize)
	}

	httpErr := &HTTPError{
		StatusCode: resp.StatusCode,
		Status:     http.StatusText(resp.StatusCode),
		Body:       bodyStr,
	}
	if resp.Request != nil && resp.Request.URL != nil {
		httpErr.URL = resp.Request.URL.String()
	}
	return httpErr
}
