package strava

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"

	"golang.org/x/oauth2"

	"stravafeed-go/internal/metrics"
)

// RefreshAccessToken exchanges a refresh token for a short-lived access token.
// Strava may rotate the refresh token; the returned token carries whichever one is current.
func (c *Client) RefreshAccessToken(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	if refreshToken == "" {
		return nil, fmt.Errorf("%w: empty refresh token", ErrUnauthorized)
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.http)

	var tok *oauth2.Token
	err := c.retry(ctx, "token", func() error {
		src := c.oauth.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
		t, err := src.Token()
		if err != nil {
			return classifyTokenError(err)
		}
		metrics.RequestsTotal.WithLabelValues("token", "200").Inc()
		tok = t
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("refresh access token: %w", err)
	}
	if tok.AccessToken == "" {
		return nil, fmt.Errorf("refresh access token: response missing access_token")
	}
	c.log.Debug().
		Time("expiry", tok.Expiry).
		Bool("rotated", tok.RefreshToken != refreshToken).
		Msg("strava access token refreshed")
	return tok, nil
}

func classifyTokenError(err error) error {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) && re.Response != nil {
		code := re.Response.StatusCode
		metrics.RequestsTotal.WithLabelValues("token", strconv.Itoa(code)).Inc()
		switch {
		case code == http.StatusBadRequest || code == http.StatusUnauthorized || code == http.StatusForbidden:
			// Strava reports a revoked or mistyped refresh token as 400 invalid_grant.
			return fmt.Errorf("%w (token endpoint status %d)", ErrUnauthorized, code)
		case code == http.StatusTooManyRequests || code >= 500:
			return &retryableError{err: fmt.Errorf("token endpoint status %d", code)}
		default:
			return fmt.Errorf("token endpoint status %d", code)
		}
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		metrics.RequestsTotal.WithLabelValues("token", "error").Inc()
		return &retryableError{err: err}
	}
	return err
}
