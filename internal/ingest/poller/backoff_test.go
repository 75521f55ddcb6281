package poller

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/lueurxax/feedpulse/internal/core/errors"
)

func TestBackoff_DoublesPerConsecutiveSignal(t *testing.T) {
	b := newBackoff(0, time.Hour)

	for _, want := range []time.Duration{5 * time.Second, 10 * time.Second, 20 * time.Second, 40 * time.Second} {
		got, err := b.next(5 * time.Second)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestBackoff_ResetAfterProgress(t *testing.T) {
	b := newBackoff(0, time.Hour)

	_, _ = b.next(time.Second)
	_, _ = b.next(time.Second)
	b.reset()

	got, err := b.next(time.Second)
	require.NoError(t, err)
	assert.Equal(t, time.Second, got)
}

func TestBackoff_CappedAtMaxWait(t *testing.T) {
	b := newBackoff(0, 30*time.Second)

	got, err := b.next(time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, got)
}

func TestBackoff_NoOverflowWhenUncapped(t *testing.T) {
	b := newBackoff(0, 0)

	var got time.Duration

	for i := 0; i < 80; i++ {
		d, err := b.next(time.Hour)
		require.NoError(t, err)

		got = d
	}

	assert.Equal(t, time.Duration(math.MaxInt64), got)
}

func TestBackoff_GivesUpAfterMaxAttempts(t *testing.T) {
	b := newBackoff(2, time.Hour)

	_, err := b.next(time.Second)
	require.NoError(t, err)
	_, err = b.next(time.Second)
	require.NoError(t, err)

	_, err = b.next(time.Second)
	require.ErrorIs(t, err, apperrors.ErrRateLimited)
}

func TestBackoff_NonPositiveWaitDefaultsToOneSecond(t *testing.T) {
	b := newBackoff(0, time.Hour)

	got, err := b.next(0)
	require.NoError(t, err)
	assert.Equal(t, time.Second, got)
}
