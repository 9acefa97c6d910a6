package rover_nav

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAngleWithinLimit(t *testing.T) {
	for _, rad := range []float64{0, 0.3, -0.3, 1, -1} {
		a, err := NewAngle(rad, 1)
		require.NoError(t, err)
		assert.Equal(t, rad, a.Radians())
	}
}

func TestNewAngleOutOfRange(t *testing.T) {
	for _, rad := range []float64{1.0001, -2, math.Inf(1), math.NaN()} {
		_, err := NewAngle(rad, 1)
		require.Error(t, err, "rad=%v", rad)
		assert.ErrorIs(t, err, ErrAngleOutOfRange)
		var ae *AngleOutOfRangeError
		assert.True(t, errors.As(err, &ae))
	}
}

func TestStraight(t *testing.T) {
	assert.True(t, Straight().IsStraight())
	assert.Equal(t, 0.0, Straight().Radians())

	a, err := NewAngle(0.2, DefaultAngleLimit)
	require.NoError(t, err)
	assert.False(t, a.IsStraight())
}
