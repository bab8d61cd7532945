package utils

import (
	"strings"
	"time"
)

// DefaultCampaignDuration matches the week-long window the app requests.
const DefaultCampaignDuration = 7 * 24 * time.Hour

// CampaignWindow returns the start and end of a campaign opened at start.
func CampaignWindow(start time.Time, duration time.Duration) (time.Time, time.Time) {
	if duration <= 0 {
		duration = DefaultCampaignDuration
	}
	start = start.UTC()
	return start, start.Add(duration)
}

// ParseTimestamp accepts RFC3339 (with or without fractional seconds). An
// empty string yields the zero time and no error.
func ParseTimestamp(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}
