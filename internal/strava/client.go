// Package strava talks to the Strava OAuth token endpoint and the athlete activities API.
package strava

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
)

// ErrUnauthorized is returned when Strava answers 401, which almost always means a bad secret.
var ErrUnauthorized = errors.New("strava returned 401 Unauthorized: check STRAVA_CLIENT_ID, STRAVA_CLIENT_SECRET and STRAVA_REFRESH_TOKEN")

const (
	defaultAPIBaseURL = "https://www.strava.com/api/v3"
	defaultTokenURL   = "https://www.strava.com/oauth/token"
	defaultTimeout    = 30 * time.Second
	defaultMaxRetries = 3
	userAgent         = "stravafeed-go/1.0"
)

// Client wraps the OAuth application credentials and an HTTP client for the Strava API.
type Client struct {
	apiBaseURL string
	oauth      *oauth2.Config
	http       *http.Client
	log        zerolog.Logger
	maxRetries int
	newBackOff func() backoff.BackOff
}

// Option configures Client construction parameters.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client (30s timeout).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// WithBaseURLs overrides the API base and token endpoint, mainly for tests and proxies.
func WithBaseURLs(apiBaseURL, tokenURL string) Option {
	return func(c *Client) {
		if apiBaseURL != "" {
			c.apiBaseURL = strings.TrimSuffix(apiBaseURL, "/")
		}
		if tokenURL != "" {
			c.oauth.Endpoint.TokenURL = tokenURL
		}
	}
}

// WithMaxRetries bounds how many times a transient failure is retried.
func WithMaxRetries(n int) Option {
	return func(c *Client) {
		if n >= 0 {
			c.maxRetries = n
		}
	}
}

// WithBackOff swaps the retry schedule; the factory is called once per request.
func WithBackOff(factory func() backoff.BackOff) Option {
	return func(c *Client) {
		if factory != nil {
			c.newBackOff = factory
		}
	}
}

// NewClient constructs a client for the OAuth application identified by clientID.
func NewClient(clientID, clientSecret string, log zerolog.Logger, opts ...Option) *Client {
	c := &Client{
		apiBaseURL: defaultAPIBaseURL,
		oauth: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint: oauth2.Endpoint{
				TokenURL:  defaultTokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		http:       &http.Client{Timeout: defaultTimeout},
		log:        log,
		maxRetries: defaultMaxRetries,
		newBackOff: func() backoff.BackOff { return backoff.NewExponentialBackOff() },
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// retryableError marks failures worth another attempt (network, 429, 5xx).
type retryableError struct{ err error }

func (e *retryableError) Error() string { return e.err.Error() }
func (e *retryableError) Unwrap() error { return e.err }

func (c *Client) retry(ctx context.Context, what string, op func() error) error {
	b := backoff.WithContext(backoff.WithMaxRetries(c.newBackOff(), uint64(c.maxRetries)), ctx)
	wrapped := func() error {
		err := op()
		if err == nil {
			return nil
		}
		var re *retryableError
		if errors.As(err, &re) {
			return re.err
		}
		return backoff.Permanent(err)
	}
	notify := func(err error, wait time.Duration) {
		c.log.Warn().Err(err).Str("op", what).Dur("retry_in", wait).Msg("strava request failed, retrying")
	}
	return backoff.RetryNotify(wrapped, b, notify)
}
