package calendar

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDateWeekdayStartsOnMonday(t *testing.T) {
	cases := map[string]Weekday{
		"2026-10-19": Monday,
		"2026-10-21": Wednesday,
		"2026-10-24": Saturday,
		"2026-10-25": Sunday,
	}
	for in, want := range cases {
		d, err := ParseDate(in)
		require.NoError(t, err)
		assert.Equal(t, want, d.Weekday(), in)
	}
}

func TestParseDateRejectsGarbage(t *testing.T) {
	_, err := ParseDate("21/10/2026")
	assert.Error(t, err)
}

func TestDateArithmeticAndOrdering(t *testing.T) {
	d, err := ParseDate("2026-12-31")
	require.NoError(t, err)

	next := d.AddDays(1)
	assert.Equal(t, "2027-01-01", next.String())
	assert.True(t, d.Before(next))
	assert.True(t, next.After(d))
	assert.False(t, d.Before(d))
}

func TestParseTimeOfDay(t *testing.T) {
	tod, err := ParseTimeOfDay("09:30")
	require.NoError(t, err)
	assert.Equal(t, NewTimeOfDay(9, 30), tod)
	assert.Equal(t, "09:30", tod.String())
	assert.Equal(t, "0930", tod.Compact())

	tod, err = ParseTimeOfDay("17:05:00")
	require.NoError(t, err)
	assert.Equal(t, "17:05", tod.String())

	_, err = ParseTimeOfDay("17:05:59")
	assert.ErrorContains(t, err, "whole minute")

	_, err = ParseTimeOfDay("25:00")
	assert.Error(t, err)
}

func TestTimeOfDayJSONRejectsSeconds(t *testing.T) {
	var tod TimeOfDay
	require.NoError(t, json.Unmarshal([]byte(`"09:00:00"`), &tod))
	assert.Equal(t, NewTimeOfDay(9, 0), tod)

	assert.Error(t, json.Unmarshal([]byte(`"09:00:45"`), &tod))
	assert.Equal(t, NewTimeOfDay(9, 0), tod)
}

func TestTimeOfDayOn(t *testing.T) {
	d := Date{Year: 2026, Month: time.October, Day: 21}
	got := NewTimeOfDay(14, 15).On(d, time.UTC)
	assert.Equal(t, time.Date(2026, 10, 21, 14, 15, 0, 0, time.UTC), got)
}

func TestJSONRoundTripsAsStrings(t *testing.T) {
	type payload struct {
		Date Date      `json:"date"`
		Time TimeOfDay `json:"time"`
	}
	var p payload
	require.NoError(t, json.Unmarshal([]byte(`{"date":"2026-10-21","time":"09:00"}`), &p))
	assert.Equal(t, Wednesday, p.Date.Weekday())
	assert.Equal(t, NewTimeOfDay(9, 0), p.Time)

	out, err := json.Marshal(p)
	require.NoError(t, err)
	assert.JSONEq(t, `{"date":"2026-10-21","time":"09:00"}`, string(out))
}
