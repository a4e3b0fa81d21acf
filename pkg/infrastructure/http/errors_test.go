package httputil

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestParseErrorResponse_Success(t *testing.T) {
	resp := &http.Response{
		StatusCode: 200,
		Body:       http.NoBody,
	}

	err := ParseErrorResponse(resp)
	if err != nil {
		t.Errorf("Expected nil error for 200 response, got: %v", err)
	}
}

func TestParseErrorResponse_Error(t *testing.T) {
	body := `{"message": "Rate Limit Exceeded"}`
	resp := &http.Response{
		StatusCode: 429,
		Body:       io.NopCloser(strings.NewReader(body)),
		Request:    httptest.NewRequest("GET", "https://www.strava.com/api/v3/athlete/activities", nil),
	}

	err := ParseErrorResponse(resp)
	if err == nil {
		t.Fatal("Expected error for 429 response")
	}

	httpErr, ok := err.(*HTTPError)
	if !ok {
		t.Fatalf("Expected *HTTPError, got %T", err)
	}

	if httpErr.StatusCode != 429 {
		t.Errorf("Expected status 429, got %d", httpErr.StatusCode)
	}

	if !strings.Contains(httpErr.Body, "Rate Limit Exceeded") {
		t.Errorf("Expected body to contain error message, got: %s", httpErr.Body)
	}

	if !strings.Contains(httpErr.Error(), "Rate Limit Exceeded") {
		t.Errorf("Expected Error() to contain body, got: %s", httpErr.Error())
	}

	if httpErr.URL == "" {
		t.Error("Expected URL to be recorded")
	}
}

func TestParseErrorResponse_TruncatesLongBody(t *testing.T) {
	body := strings.Repeat("x", MaxErrorBodySize*2)
	resp := &http.Response{
		StatusCode: 500,
		Body:       io.NopCloser(strings.NewReader(body)),
	}

	err := ParseErrorResponse(resp)
	httpErr, ok := err.(*HTTPError)
	if !ok {
		t.Fatalf("Expected *HTTPError, got %T", err)
	}

	if len(httpErr.Body) != MaxErrorBodySize+len("...") {
		t.Errorf("Expected truncated body, got %d bytes", len(httpErr.Body))
	}
}
