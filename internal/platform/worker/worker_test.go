package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("boom")

func TestWait_ZeroDuration(t *testing.T) {
	require.NoError(t, Wait(context.Background(), 0))
}

func TestWait_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Wait(ctx, time.Hour)
	require.ErrorIs(t, err, context.Canceled)
}

func TestSafe_ConvertsPanic(t *testing.T) {
	err := Safe(nil, "explode", func() error {
		panic("kaboom")
	})

	var pe *PanicError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "explode", pe.Operation)
	assert.Equal(t, "kaboom", pe.Value)
	assert.NotEmpty(t, pe.Stack)
}

func TestSafe_PassesThroughError(t *testing.T) {
	err := Safe(nil, "fail", func() error { return errBoom })
	require.ErrorIs(t, err, errBoom)
}

func TestLoop_ContinuesAfterErrorsAndPanics(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		calls    atomic.Int32
		mu       sync.Mutex
		reported []error
	)

	done := make(chan error, 1)

	go func() {
		done <- Loop(ctx, Config{
			Name:     "test",
			Interval: time.Millisecond,
			Process: func(context.Context) error {
				switch calls.Add(1) {
				case 1:
					return errBoom
				case 2:
					panic("second iteration")
				case 3:
					cancel()
				}

				return nil
			},
			OnError: func(err error) {
				mu.Lock()
				defer mu.Unlock()

				reported = append(reported, err)
			},
		})
	}()

	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("loop did not stop")
	}

	assert.Equal(t, int32(3), calls.Load())

	mu.Lock()
	defer mu.Unlock()

	require.Len(t, reported, 2)
	assert.ErrorIs(t, reported[0], errBoom)

	var pe *PanicError
	assert.ErrorAs(t, reported[1], &pe)
}

func TestLoop_DetachedIterationFinishes(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	var sawCanceled atomic.Bool

	err := Loop(ctx, Config{
		Name:   "detached",
		Detach: true,
		Process: func(c context.Context) error {
			cancel()

			if c.Err() != nil {
				sawCanceled.Store(true)
			}

			return nil
		},
	})

	require.ErrorIs(t, err, context.Canceled)
	assert.False(t, sawCanceled.Load(), "detached iteration must not observe loop cancellation")
}

func TestLoop_TimeoutBoundsIteration(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	var got error

	_ = Loop(ctx, Config{
		Name:    "timeout",
		Timeout: 10 * time.Millisecond,
		Process: func(c context.Context) error {
			<-c.Done()

			return c.Err()
		},
		OnError: func(err error) {
			got = err

			cancel()
		},
	})

	require.ErrorIs(t, got, context.DeadlineExceeded)
}

func TestForEach_BoundsConcurrencyAndCollectsErrors(t *testing.T) {
	var (
		inFlight atomic.Int32
		peak     atomic.Int32
	)

	items := []int{1, 2, 3, 4, 5, 6}

	errs := ForEach(context.Background(), 2, items, func(_ context.Context, n int) error {
		cur := inFlight.Add(1)
		defer inFlight.Add(-1)

		for {
			p := peak.Load()
			if cur <= p || peak.CompareAndSwap(p, cur) {
				break
			}
		}

		time.Sleep(5 * time.Millisecond)

		if n%2 == 0 {
			return errBoom
		}

		return nil
	})

	require.Len(t, errs, len(items))
	assert.LessOrEqual(t, peak.Load(), int32(2))

	for i, n := range items {
		if n%2 == 0 {
			assert.ErrorIs(t, errs[i], errBoom)
		} else {
			assert.NoError(t, errs[i])
		}
	}
}

func TestForEach_IsolatesPanics(t *testing.T) {
	errs := ForEach(context.Background(), 3, []string{"ok", "panic", "ok"}, func(_ context.Context, s string) error {
		if s == "panic" {
			panic("account exploded")
		}

		return nil
	})

	assert.NoError(t, errs[0])
	assert.NoError(t, errs[2])

	var pe *PanicError
	require.ErrorAs(t, errs[1], &pe)
	assert.Equal(t, "account exploded", pe.Value)
}
