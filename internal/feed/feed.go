// Package feed condenses Strava activities into the JSON document the static site renders.
package feed

import (
	"fmt"
	"strconv"
	"time"

	"stravafeed-go/internal/strava"
)

const activityURLPrefix = "https://www.strava.com/activities/"

// ISO-8601 with an explicit +00:00 offset; the fraction is dropped on whole seconds.
const (
	updatedLayout       = "2006-01-02T15:04:05.000000-07:00"
	updatedLayoutSecond = "2006-01-02T15:04:05-07:00"
)

// Summary is one condensed activity. Nil pointers encode as JSON null.
type Summary struct {
	ID                  *int64   `json:"id"`
	Name                *string  `json:"name"`
	Type                *string  `json:"type"`
	StartDate           *string  `json:"start_date"`
	DistanceKm          float64  `json:"distance_km"`
	MovingTimeMin       float64  `json:"moving_time_min"`
	ElapsedTimeMin      float64  `json:"elapsed_time_min"`
	TotalElevationGainM *float64 `json:"total_elevation_gain_m"`
	AvgHR               *float64 `json:"avg_hr"`
	MaxHR               *float64 `json:"max_hr"`
	AvgSpeedKmh         *float64 `json:"avg_speed_kmh"`
	URL                 *string  `json:"url"`
}

// Payload is the whole feed document.
type Payload struct {
	UpdatedUTC string    `json:"updated_utc"`
	Activities []Summary `json:"activities"`
}

// Slim condenses a raw activity: distances in km, durations in minutes, speed in km/h.
func Slim(a strava.Activity) Summary {
	s := Summary{
		ID:                  a.ID,
		Name:                a.Name,
		Type:                a.Type,
		StartDate:           a.StartDate,
		DistanceKm:          round(deref(a.Distance)/1000, 2),
		MovingTimeMin:       round(deref(a.MovingTime)/60, 1),
		ElapsedTimeMin:      round(deref(a.ElapsedTime)/60, 1),
		TotalElevationGainM: a.TotalElevationGain,
		AvgHR:               a.AverageHeartrate,
		MaxHR:               a.MaxHeartrate,
	}
	if v := deref(a.AverageSpeed); v != 0 {
		kmh := round(v*3.6, 2)
		s.AvgSpeedKmh = &kmh
	}
	if a.ID != nil && *a.ID != 0 {
		u := fmt.Sprintf("%s%d", activityURLPrefix, *a.ID)
		s.URL = &u
	}
	return s
}

// Build slims every activity, preserving API order, and stamps the document with now.
func Build(activities []strava.Activity, now time.Time) Payload {
	out := make([]Summary, 0, len(activities))
	for _, a := range activities {
		out = append(out, Slim(a))
	}
	return Payload{
		UpdatedUTC: formatUpdated(now),
		Activities: out,
	}
}

func deref(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

func formatUpdated(now time.Time) string {
	now = now.UTC()
	if now.Nanosecond()/int(time.Microsecond) == 0 {
		return now.Format(updatedLayoutSecond)
	}
	return now.Format(updatedLayout)
}

// round rounds exact ties to even, so 5.125 becomes 5.12 and 0.25 becomes 0.2.
func round(v float64, places int) float64 {
	r, err := strconv.ParseFloat(strconv.FormatFloat(v, 'f', places, 64), 64)
	if err != nil {
		return v
	}
	return r
}
