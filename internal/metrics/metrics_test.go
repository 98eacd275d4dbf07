package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestServeRegistersMetrics(t *testing.T) {
	srv := Serve(":0")
	defer srv.Close()

	RequestsTotal.WithLabelValues("activities", "200").Inc()

	mfs, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	found := false
	for _, mf := range mfs {
		if mf.GetName() == "strava_requests_total" {
			found = true
			break
		}
	}
	if !found {
		t.Fatalf("strava_requests_total metric not found")
	}
}

func TestObserveRateLimit(t *testing.T) {
	ObserveRateLimit("200,2000", "17, 431")

	if got := testutil.ToFloat64(RateLimitLimit.WithLabelValues("daily")); got != 2000 {
		t.Fatalf("expected daily limit 2000, got %v", got)
	}
	if got := testutil.ToFloat64(RateLimitUsage.WithLabelValues("15m")); got != 17 {
		t.Fatalf("expected 15m usage 17, got %v", got)
	}

	ObserveRateLimit("garbage", "")
	if got := testutil.ToFloat64(RateLimitUsage.WithLabelValues("daily")); got != 431 {
		t.Fatalf("malformed header should not reset usage, got %v", got)
	}
}

func TestWriteTextfile(t *testing.T) {
	FeedActivities.Set(12)
	path := filepath.Join(t.TempDir(), "stravafeed.prom")

	if err := WriteTextfile(path); err != nil {
		t.Fatalf("WriteTextfile returned error: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read textfile: %v", err)
	}
	if !strings.Contains(string(data), "strava_feed_activities 12") {
		t.Fatalf("expected feed gauge in textfile, got:\n%s", data)
	}
}
