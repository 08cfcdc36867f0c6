package slots

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/clinic-booking/internal/availability"
	"github.com/hackgods/clinic-booking/internal/calendar"
)

type stubRules map[calendar.Date][]availability.Rule

func (s stubRules) RulesForDate(ctx context.Context, date calendar.Date) ([]availability.Rule, error) {
	return s[date], nil
}

type stubOccupancy map[calendar.Date]map[calendar.TimeOfDay]bool

func (s stubOccupancy) OccupiedTimes(ctx context.Context, date calendar.Date) (map[calendar.TimeOfDay]bool, error) {
	return s[date], nil
}

var wed = calendar.Date{Year: 2026, Month: 10, Day: 21}

func window(sh, eh, minutes int) availability.Rule {
	return availability.Rule{
		ID:          uuid.New(),
		Schedule:    availability.Recurring{Weekday: calendar.Wednesday},
		Start:       calendar.NewTimeOfDay(sh, 0),
		End:         calendar.NewTimeOfDay(eh, 0),
		SlotMinutes: minutes,
		Active:      true,
	}
}

func TestResolveSlotsCounts(t *testing.T) {
	morning, afternoon := window(9, 12, 30), window(14, 16, 60)
	r := NewResolver(
		stubRules{wed: {morning, afternoon}},
		stubOccupancy{wed: {calendar.NewTimeOfDay(9, 30): true, calendar.NewTimeOfDay(15, 0): true}},
	)

	sum, err := r.ResolveSlots(context.Background(), wed)
	require.NoError(t, err)

	assert.Equal(t, 8, sum.Total)
	assert.Equal(t, 2, sum.Booked)
	assert.Equal(t, 6, sum.Available)
	assert.Equal(t, 0, sum.Blocked)
	assert.Equal(t, sum.Total, sum.Available+sum.Booked)
	assert.Equal(t, morning.ID.String()+"_0900", sum.Slots[0].SlotID)
	assert.Equal(t, 60, sum.Slots[len(sum.Slots)-1].DurationMinutes)

	free, err := r.ResolveAvailableSlots(context.Background(), wed)
	require.NoError(t, err)
	assert.Len(t, free, 6)
	for _, v := range free {
		assert.True(t, v.Available)
	}
}

func TestResolveSlotsNoRules(t *testing.T) {
	r := NewResolver(stubRules{}, stubOccupancy{})

	sum, err := r.ResolveSlots(context.Background(), wed)
	require.NoError(t, err)
	assert.NotNil(t, sum.Slots)
	assert.Empty(t, sum.Slots)
	assert.Zero(t, sum.Total)
}

func TestFindFreeSlot(t *testing.T) {
	r := NewResolver(
		stubRules{wed: {window(9, 10, 30)}},
		stubOccupancy{wed: {calendar.NewTimeOfDay(9, 0): true}},
	)
	ctx := context.Background()

	_, ok, err := r.FindFreeSlot(ctx, wed, calendar.NewTimeOfDay(9, 0))
	require.NoError(t, err)
	assert.False(t, ok, "booked")

	v, ok, err := r.FindFreeSlot(ctx, wed, calendar.NewTimeOfDay(9, 30))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 30, v.DurationMinutes)

	_, ok, err = r.FindFreeSlot(ctx, wed, calendar.NewTimeOfDay(9, 15))
	require.NoError(t, err)
	assert.False(t, ok, "not a generated start time")
}

func TestNextAvailableDate(t *testing.T) {
	r := NewResolver(stubRules{wed.AddDays(3): {window(9, 10, 30)}}, stubOccupancy{})
	ctx := context.Background()

	d, ok, err := r.NextAvailableDate(ctx, wed, 30)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, wed.AddDays(3), d)

	_, ok, err = r.NextAvailableDate(ctx, wed, 2)
	require.NoError(t, err)
	assert.False(t, ok)
}
