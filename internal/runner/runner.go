// Package runner wires one feed refresh: token, activities, condensed JSON.
package runner

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"

	"stravafeed-go/internal/config"
	"stravafeed-go/internal/feed"
	"stravafeed-go/internal/metrics"
	"stravafeed-go/internal/strava"
	"stravafeed-go/internal/tokenstore"
)

// Runner executes a single refresh of the feed.
type Runner struct {
	cfg    *config.Config
	log    zerolog.Logger
	client *strava.Client
	tokens *tokenstore.Store
	now    func() time.Time
	// DryRun, when set, receives the feed instead of the output file.
	DryRun io.Writer
}

// New builds a runner; extra client options are appended after the config-derived ones.
func New(cfg *config.Config, log zerolog.Logger, opts ...strava.Option) *Runner {
	base := []strava.Option{
		strava.WithBaseURLs(cfg.Strava.APIBaseURL, cfg.Strava.TokenURL),
		strava.WithTimeout(time.Duration(cfg.Strava.TimeoutSecs) * time.Second),
		strava.WithMaxRetries(cfg.Strava.MaxRetries),
	}
	return &Runner{
		cfg:    cfg,
		log:    log,
		client: strava.NewClient(cfg.Strava.ClientID, cfg.Strava.ClientSecret, log, append(base, opts...)...),
		tokens: tokenstore.New(cfg.Output.TokenFile),
		now:    time.Now,
	}
}

// Run refreshes the token, pulls activities and writes the feed. It returns the number of activities written.
func (r *Runner) Run(ctx context.Context) (int, error) {
	refresh := r.cfg.Strava.RefreshToken
	stored, err := r.tokens.Load()
	if err != nil {
		r.log.Warn().Err(err).Msg("ignoring unreadable token file")
	} else if stored != "" && stored != refresh {
		r.log.Info().Msg("using refresh token from token file")
		refresh = stored
	}

	tok, err := r.client.RefreshAccessToken(ctx, refresh)
	if err != nil {
		return 0, err
	}
	if tok.RefreshToken != "" && tok.RefreshToken != refresh {
		if r.tokens.Enabled() {
			if err := r.tokens.Save(tok.RefreshToken, tok.Expiry, r.now()); err != nil {
				return 0, fmt.Errorf("persist rotated refresh token: %w", err)
			}
			r.log.Info().Msg("strava rotated the refresh token; saved to token file")
		} else {
			r.log.Warn().Msg("strava rotated the refresh token; update STRAVA_REFRESH_TOKEN or set a token file")
		}
	}

	activities, err := r.client.ListActivities(ctx, tok, strava.ListOptions{
		PerPage:  r.cfg.Strava.PerPage,
		MaxPages: r.cfg.Strava.MaxPages,
	})
	if err != nil {
		return 0, err
	}

	payload := feed.Build(activities, r.now())
	if r.DryRun != nil {
		if err := feed.Encode(r.DryRun, payload); err != nil {
			return 0, err
		}
	} else {
		if err := feed.Write(r.cfg.Output.FeedPath, payload); err != nil {
			return 0, err
		}
		r.log.Info().Str("path", r.cfg.Output.FeedPath).Int("activities", len(payload.Activities)).Msg("feed written")
	}

	metrics.FeedActivities.Set(float64(len(payload.Activities)))
	metrics.LastSuccess.Set(float64(r.now().Unix()))
	return len(payload.Activities), nil
}
