package slots

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hackgods/clinic-booking/internal/calendar"
)

func TestGenerate(t *testing.T) {
	tod := calendar.NewTimeOfDay

	got := Generate(tod(9, 0), tod(10, 30), 30)
	assert.Equal(t, []calendar.TimeOfDay{tod(9, 0), tod(9, 30), tod(10, 0)}, got)

	// last slot may run past the end of the window
	got = Generate(tod(9, 0), tod(10, 0), 45)
	assert.Equal(t, []calendar.TimeOfDay{tod(9, 0), tod(9, 45)}, got)

	assert.Empty(t, Generate(tod(10, 0), tod(9, 0), 30))
	assert.Empty(t, Generate(tod(9, 0), tod(9, 0), 30))
	assert.Empty(t, Generate(tod(9, 0), tod(10, 0), 0))
}

func TestGenerateCount(t *testing.T) {
	for start := 0; start < 24*60; start += 37 {
		for length := 1; start+length <= 24*60; length += 53 {
			for _, d := range []int{15, 20, 30, 45, 60, 120} {
				s := calendar.TimeOfDay(start)
				e := calendar.TimeOfDay(start + length)
				want := (length + d - 1) / d
				got := Generate(s, e, d)
				assert.Len(t, got, want, "start=%s end=%s d=%d", s, e, d)
				for i := 1; i < len(got); i++ {
					assert.Equal(t, d, int(got[i]-got[i-1]))
				}
			}
		}
	}
}
