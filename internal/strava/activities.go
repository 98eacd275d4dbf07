package strava

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/oauth2"

	"stravafeed-go/internal/metrics"
)

// Activity is the subset of Strava's SummaryActivity the feed needs. Pointers keep "missing" distinct from zero.
type Activity struct {
	ID                 *int64   `json:"id"`
	Name               *string  `json:"name"`
	Type               *string  `json:"type"`
	SportType          *string  `json:"sport_type"`
	StartDate          *string  `json:"start_date"`
	Distance           *float64 `json:"distance"`     // metres
	MovingTime         *float64 `json:"moving_time"`  // seconds
	ElapsedTime        *float64 `json:"elapsed_time"` // seconds
	TotalElevationGain *float64 `json:"total_elevation_gain"`
	AverageHeartrate   *float64 `json:"average_heartrate"`
	MaxHeartrate       *float64 `json:"max_heartrate"`
	AverageSpeed       *float64 `json:"average_speed"` // m/s
}

// ListOptions controls paging through the athlete activities endpoint.
type ListOptions struct {
	PerPage  int
	MaxPages int
}

// ListActivities pages through the authenticated athlete's activities, newest first.
// Paging stops after MaxPages or at the first page shorter than PerPage.
func (c *Client) ListActivities(ctx context.Context, tok *oauth2.Token, opts ListOptions) ([]Activity, error) {
	if tok == nil || tok.AccessToken == "" {
		return nil, fmt.Errorf("list activities: missing access token")
	}
	perPage := opts.PerPage
	if perPage <= 0 {
		perPage = 20
	}
	maxPages := opts.MaxPages
	if maxPages <= 0 {
		maxPages = 1
	}

	var all []Activity
	for page := 1; page <= maxPages; page++ {
		var batch []Activity
		err := c.retry(ctx, "activities", func() error {
			var err error
			batch, err = c.fetchActivitiesPage(ctx, tok, page, perPage)
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("list activities page %d: %w", page, err)
		}
		metrics.ActivitiesFetched.Add(float64(len(batch)))
		c.log.Debug().Int("page", page).Int("count", len(batch)).Msg("fetched activities page")
		all = append(all, batch...)
		if len(batch) < perPage {
			break
		}
	}
	return all, nil
}

func (c *Client) fetchActivitiesPage(ctx context.Context, tok *oauth2.Token, page, perPage int) ([]Activity, error) {
	q := url.Values{}
	q.Set("per_page", strconv.Itoa(perPage))
	q.Set("page", strconv.Itoa(page))
	u := c.apiBaseURL + "/athlete/activities?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	tok.SetAuthHeader(req)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		metrics.RequestsTotal.WithLabelValues("activities", "error").Inc()
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &retryableError{err: fmt.Errorf("http do: %w", err)}
	}
	defer resp.Body.Close()

	metrics.RequestsTotal.WithLabelValues("activities", strconv.Itoa(resp.StatusCode)).Inc()
	metrics.ObserveRateLimit(resp.Header.Get("X-RateLimit-Limit"), resp.Header.Get("X-RateLimit-Usage"))

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, ErrUnauthorized
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, &retryableError{err: fmt.Errorf("unexpected status %d", resp.StatusCode)}
	default:
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, snippet(resp.Body))
	}

	var out []Activity
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return out, nil
}

func snippet(r io.Reader) string {
	b, _ := io.ReadAll(io.LimitReader(r, 256))
	return strings.TrimSpace(string(b))
}
