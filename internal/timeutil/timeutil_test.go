package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalToUTCISO(t *testing.T) {
	c := NewConverter(DefaultOffset)

	local := time.Date(2025, 1, 10, 9, 0, 0, 0, time.UTC)
	iso := c.LocalToUTCISO(local)

	// 09:00 local minus 5h30m
	assert.Equal(t, "2025-01-10T03:30:00.000Z", iso)
}

func TestLocalToUTCISO_DateRollsBack(t *testing.T) {
	c := NewConverter(DefaultOffset)

	local := time.Date(2025, 1, 10, 2, 0, 0, 0, time.UTC)
	iso := c.LocalToUTCISO(local)

	assert.Equal(t, "2025-01-09T20:30:00.000Z", iso)
}

func TestUTCISOToLocal_RoundTrip(t *testing.T) {
	c := NewConverter(DefaultOffset)

	local := time.Date(2025, 3, 2, 14, 45, 0, 0, time.UTC)
	back, err := c.UTCISOToLocal(c.LocalToUTCISO(local))
	require.NoError(t, err)

	assert.True(t, back.Equal(local))
}

func TestUTCISOToLocal_Invalid(t *testing.T) {
	c := NewConverter(DefaultOffset)

	_, err := c.UTCISOToLocal("2025-01-10 03:30")
	assert.Error(t, err)
}

func TestNowUTCISO_UsesClock(t *testing.T) {
	now := time.Date(2025, 1, 10, 3, 30, 0, 0, time.UTC)
	c := &Converter{Offset: DefaultOffset, Clock: FixedClock(now)}

	assert.Equal(t, "2025-01-10T03:30:00.000Z", c.NowUTCISO())
}

func TestParseClock(t *testing.T) {
	tests := []struct {
		in      string
		hour    int
		minute  int
		wantErr bool
	}{
		{"09:00", 9, 0, false},
		{"23:59", 23, 59, false},
		{"00:00", 0, 0, false},
		{"24:00", 0, 0, true},
		{"09:60", 0, 0, true},
		{"0900", 0, 0, true},
		{"", 0, 0, true},
		{"ab:cd", 0, 0, true},
	}
	for _, tt := range tests {
		h, m, err := ParseClock(tt.in)
		if tt.wantErr {
			assert.Error(t, err, "input %q", tt.in)
			continue
		}
		require.NoError(t, err, "input %q", tt.in)
		assert.Equal(t, tt.hour, h)
		assert.Equal(t, tt.minute, m)
	}
}

func TestAtClock(t *testing.T) {
	date := time.Date(2025, 1, 10, 17, 23, 11, 0, time.UTC)

	at, err := AtClock(date, "06:30")
	require.NoError(t, err)

	assert.Equal(t, time.Date(2025, 1, 10, 6, 30, 0, 0, time.UTC), at)
	assert.Equal(t, "06:30", ClockOf(at))
}
