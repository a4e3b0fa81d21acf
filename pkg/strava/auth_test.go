package strava

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/athletedash/ingest/pkg/bootstrap"
)

func TestCredentialsFromConfig(t *testing.T) {
	cfg := &bootstrap.Config{
		StravaClientID:     "123",
		StravaClientSecret: "secret",
		StravaRefreshToken: "refresh",
	}

	creds, err := CredentialsFromConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, "123", creds.ClientID)
	assert.Equal(t, "refresh", creds.RefreshToken)
}

func TestCredentialsFromConfigMissing(t *testing.T) {
	cfg := &bootstrap.Config{StravaClientID: "123"}

	_, err := CredentialsFromConfig(cfg)
	require.Error(t, err)

	var authErr *AuthConfigError
	require.True(t, errors.As(err, &authErr))
	assert.ElementsMatch(t, []string{"STRAVA_CLIENT_SECRET", "STRAVA_REFRESH_TOKEN"}, authErr.Missing)
}

func TestAccessToken(t *testing.T) {
	var gotForm map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		gotForm = map[string]string{
			"grant_type":    r.FormValue("grant_type"),
			"client_id":     r.FormValue("client_id"),
			"client_secret": r.FormValue("client_secret"),
			"refresh_token": r.FormValue("refresh_token"),
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"token_type":"Bearer","access_token":"fresh-token","expires_in":21600,"refresh_token":"refresh"}`))
	}))
	defer server.Close()

	provider := NewTokenProvider(Credentials{
		ClientID:     "123",
		ClientSecret: "secret",
		RefreshToken: "refresh",
	})
	provider.TokenURL = server.URL

	token, err := provider.AccessToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "fresh-token", token)

	assert.Equal(t, "refresh_token", gotForm["grant_type"])
	assert.Equal(t, "123", gotForm["client_id"])
	assert.Equal(t, "secret", gotForm["client_secret"])
	assert.Equal(t, "refresh", gotForm["refresh_token"])
}

func TestAccessTokenRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"message":"Bad Request","errors":[{"field":"refresh_token","code":"invalid"}]}`))
	}))
	defer server.Close()

	provider := NewTokenProvider(Credentials{ClientID: "123", ClientSecret: "secret", RefreshToken: "stale"})
	provider.TokenURL = server.URL

	_, err := provider.AccessToken(context.Background())
	require.Error(t, err)

	var exchangeErr *AuthExchangeError
	require.True(t, errors.As(err, &exchangeErr))
	assert.Equal(t, http.StatusUnauthorized, exchangeErr.StatusCode)
}

func TestAccessTokenMalformedBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`not json`))
	}))
	defer server.Close()

	provider := NewTokenProvider(Credentials{ClientID: "123", ClientSecret: "secret", RefreshToken: "refresh"})
	provider.TokenURL = server.URL

	_, err := provider.AccessToken(context.Background())
	require.Error(t, err)

	var exchangeErr *AuthExchangeError
	assert.True(t, errors.As(err, &exchangeErr))
}
