package strava

import (
	"context"
	"errors"

	"golang.org/x/oauth2"

	"github.com/athletedash/ingest/pkg/bootstrap"
)

// TokenURL is the Strava OAuth token-exchange endpoint.
const TokenURL = "https://www.strava.com/oauth/token"

// Credentials is the long-lived credential set supplied by the environment.
// It is immutable for the process lifetime; only the TokenProvider holds it.
type Credentials struct {
	ClientID     string
	ClientSecret string
	RefreshToken string
}

// CredentialsFromConfig extracts Strava credentials, failing with
// AuthConfigError if any required value is absent.
func CredentialsFromConfig(cfg *bootstrap.Config) (Credentials, error) {
	creds := Credentials{
		ClientID:     cfg.StravaClientID,
		ClientSecret: cfg.StravaClientSecret,
		RefreshToken: cfg.StravaRefreshToken,
	}

	var missing []string
	if creds.ClientID == "" {
		missing = append(missing, "STRAVA_CLIENT_ID")
	}
	if creds.ClientSecret == "" {
		missing = append(missing, "STRAVA_CLIENT_SECRET")
	}
	if creds.RefreshToken == "" {
		missing = append(missing, "STRAVA_REFRESH_TOKEN")
	}
	if len(missing) > 0 {
		return Credentials{}, &AuthConfigError{Missing: missing}
	}
	return creds, nil
}

// TokenProvider exchanges the refresh token for a short-lived access token.
// No caching across calls: access tokens are short-lived and the refresh
// token is stable, so every run fetches a fresh one. Retry policy belongs
// to the caller.
type TokenProvider struct {
	creds Credentials

	// TokenURL can be overridden in tests.
	TokenURL string
}

func NewTokenProvider(creds Credentials) *TokenProvider {
	return &TokenProvider{creds: creds, TokenURL: TokenURL}
}

// AccessToken performs the grant_type=refresh_token exchange and returns the
// opaque access token. Fails with AuthExchangeError on a non-2xx status or a
// malformed response body.
func (p *TokenProvider) AccessToken(ctx context.Context) (string, error) {
	conf := &oauth2.Config{
		ClientID:     p.creds.ClientID,
		ClientSecret: p.creds.ClientSecret,
		Endpoint: oauth2.Endpoint{
			TokenURL: p.TokenURL,
			// Strava wants client_id/client_secret in the request body,
			// not in a Basic auth header.
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}

	src := conf.TokenSource(ctx, &oauth2.Token{RefreshToken: p.creds.RefreshToken})
	tok, err := src.Token()
	if err != nil {
		var rerr *oauth2.RetrieveError
		if errors.As(err, &rerr) && rerr.Response != nil {
			return "", &AuthExchangeError{StatusCode: rerr.Response.StatusCode, Err: err}
		}
		return "", &AuthExchangeError{Err: err}
	}

	return tok.AccessToken, nil
}
