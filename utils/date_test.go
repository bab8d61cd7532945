package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCampaignWindow(t *testing.T) {
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	s, e := CampaignWindow(start, 0)
	assert.Equal(t, start, s)
	assert.Equal(t, start.Add(7*24*time.Hour), e)

	_, e = CampaignWindow(start, 48*time.Hour)
	assert.Equal(t, start.Add(48*time.Hour), e)
}

func TestParseTimestamp(t *testing.T) {
	zero, err := ParseTimestamp("  ")
	require.NoError(t, err)
	assert.True(t, zero.IsZero())

	got, err := ParseTimestamp("2026-03-01T10:00:00.123Z")
	require.NoError(t, err)
	assert.Equal(t, 123*time.Millisecond, time.Duration(got.Nanosecond()))

	_, err = ParseTimestamp("yesterday")
	assert.Error(t, err)
}
