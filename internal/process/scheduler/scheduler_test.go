package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lueurxax/feedpulse/internal/platform/observability"
)

const tick = 5 * time.Millisecond

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()

	var m dto.Metric
	require.NoError(t, c.Write(&m))

	return m.GetCounter().GetValue()
}

func runScheduler(t *testing.T, s *Scheduler) (context.CancelFunc, <-chan error) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)

	go func() { done <- s.Run(ctx) }()

	t.Cleanup(cancel)

	return cancel, done
}

func TestRun_PanickingJobDoesNotStopOthers(t *testing.T) {
	logger := zerolog.Nop()

	var panics, runs atomic.Int32

	errorsBefore := counterValue(t, observability.JobErrors.WithLabelValues("panicky"))

	s := New(time.Second, &logger,
		Job{Name: "panicky", Interval: tick, Run: func(context.Context) (bool, error) {
			panics.Add(1)
			panic("boom")
		}},
		Job{Name: "steady", Interval: tick, Run: func(context.Context) (bool, error) {
			runs.Add(1)

			return false, nil
		}},
	)

	cancel, done := runScheduler(t, s)

	require.Eventually(t, func() bool { return runs.Load() >= 3 && panics.Load() >= 3 }, time.Second, tick)

	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop")
	}

	errorsAfter := counterValue(t, observability.JobErrors.WithLabelValues("panicky"))
	assert.GreaterOrEqual(t, errorsAfter-errorsBefore, 3.0)
}

func TestRun_FailingIterationKeepsLooping(t *testing.T) {
	logger := zerolog.Nop()

	var calls atomic.Int32

	s := New(time.Second, &logger, Job{Name: "flaky", Interval: tick, Run: func(context.Context) (bool, error) {
		calls.Add(1)

		return false, errors.New("database unavailable")
	}})

	cancel, done := runScheduler(t, s)

	require.Eventually(t, func() bool { return calls.Load() >= 3 }, time.Second, tick)

	cancel()
	require.NoError(t, <-done)
}

func TestRun_InFlightIterationFinishesOnShutdown(t *testing.T) {
	logger := zerolog.Nop()

	started := make(chan struct{})

	var finished atomic.Bool

	s := New(time.Second, &logger, Job{Name: "slow", Interval: time.Hour, Run: func(ctx context.Context) (bool, error) {
		close(started)

		select {
		case <-time.After(50 * time.Millisecond):
			finished.Store(true)

			return false, nil
		case <-ctx.Done():
			return false, ctx.Err()
		}
	}})

	cancel, done := runScheduler(t, s)

	<-started
	cancel()

	require.NoError(t, <-done)
	assert.True(t, finished.Load(), "iteration must complete before the scheduler returns")
}

func TestRun_IterationTimeout(t *testing.T) {
	logger := zerolog.Nop()

	deadlines := make(chan bool, 1)

	s := New(20*time.Millisecond, &logger, Job{Name: "bounded", Interval: time.Hour, Run: func(ctx context.Context) (bool, error) {
		<-ctx.Done()
		deadlines <- errors.Is(ctx.Err(), context.DeadlineExceeded)

		return false, ctx.Err()
	}})

	cancel, done := runScheduler(t, s)

	select {
	case hitDeadline := <-deadlines:
		assert.True(t, hitDeadline)
	case <-time.After(time.Second):
		t.Fatal("iteration was not bounded by the timeout")
	}

	cancel()
	require.NoError(t, <-done)
}

func TestRun_SkippedIterationsAreCounted(t *testing.T) {
	logger := zerolog.Nop()

	var calls atomic.Int32

	before := counterValue(t, observability.JobSkipped.WithLabelValues("locked"))

	s := New(time.Second, &logger, Job{Name: "locked", Interval: tick, Run: func(context.Context) (bool, error) {
		calls.Add(1)

		return true, nil
	}})

	cancel, done := runScheduler(t, s)

	require.Eventually(t, func() bool { return calls.Load() >= 2 }, time.Second, tick)

	cancel()
	require.NoError(t, <-done)

	assert.GreaterOrEqual(t, counterValue(t, observability.JobSkipped.WithLabelValues("locked"))-before, 2.0)
}
