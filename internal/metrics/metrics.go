package metrics

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "strava_requests_total", Help: "Strava HTTP requests by endpoint and status code"},
		[]string{"endpoint", "code"},
	)
	ActivitiesFetched = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "strava_activities_fetched_total", Help: "Activities returned by the Strava API"},
	)
	FeedActivities = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "strava_feed_activities", Help: "Activities in the last written feed"},
	)
	LastSuccess = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "strava_feed_last_success_timestamp_seconds", Help: "Unix time of the last successful feed write"},
	)
	RateLimitUsage = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{Name: "strava_ratelimit_usage", Help: "Strava API usage reported in X-RateLimit-Usage"},
		[]string{"window"},
	)
	RateLimitLimit = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{Name: "strava_ratelimit_limit", Help: "Strava API limits reported in X-RateLimit-Limit"},
		[]string{"window"},
	)
)

func init() {
	prometheus.MustRegister(RequestsTotal, ActivitiesFetched, FeedActivities, LastSuccess, RateLimitUsage, RateLimitLimit)
}

// ObserveRateLimit records Strava's "short,daily" rate limit headers. Malformed headers are ignored.
func ObserveRateLimit(limit, usage string) {
	observePair(RateLimitLimit, limit)
	observePair(RateLimitUsage, usage)
}

func observePair(vec *prometheus.GaugeVec, header string) {
	parts := strings.Split(header, ",")
	if len(parts) != 2 {
		return
	}
	windows := []string{"15m", "daily"}
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			continue
		}
		vec.WithLabelValues(windows[i]).Set(v)
	}
}

// Serve exposes /metrics on addr in the background.
func Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() { _ = srv.ListenAndServe() }()
	return srv
}

// WriteTextfile dumps every registered metric for the node_exporter textfile collector.
func WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, prometheus.DefaultGatherer); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
