package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindsMatchThroughWrapping(t *testing.T) {
	err := fmt.Errorf("add rule: %w", Conflict("overlaps Monday 09:00-12:00", nil))

	assert.True(t, errors.Is(err, ErrConflict))
	assert.False(t, errors.Is(err, ErrValidation))

	e, ok := As(err)
	require.True(t, ok)
	assert.Equal(t, "overlaps Monday 09:00-12:00", e.Message)
}

func TestCauseIsReachable(t *testing.T) {
	cause := errors.New("duplicate key")
	err := SlotUnavailable("slot already booked", cause)

	assert.True(t, errors.Is(err, ErrSlotUnavailable))
	assert.True(t, errors.Is(err, cause))
	assert.Equal(t, "slot already booked: duplicate key", err.Error())
}

func TestValidationMessageIncludesField(t *testing.T) {
	err := Validation("patient_phone", "must be a 10-digit number starting with 6-9")
	assert.Equal(t, "patient_phone: must be a 10-digit number starting with 6-9", err.Error())
}
