// Package worker provides the loop primitives shared by the poller and the
// periodic jobs: interval loops, context-aware waits, panic isolation and a
// bounded fan-out.
package worker

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/rs/zerolog"
)

const (
	logFieldWorker    = "worker"
	logFieldIteration = "iteration"
)

// ProcessFunc is one iteration of a worker loop.
type ProcessFunc func(ctx context.Context) error

// PanicError is returned by Safe when fn panicked.
type PanicError struct {
	Operation string
	Value     any
	Stack     []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic in %s: %v", e.Operation, e.Value)
}

// Config configures the worker loop behavior.
type Config struct {
	// Name identifies the worker for logging.
	Name string

	// Interval is the pause between the end of one iteration and the start of the next.
	Interval time.Duration

	// Process is called each iteration. Errors and panics are reported to
	// OnError and never stop the loop.
	Process ProcessFunc

	// Timeout bounds a single iteration when positive.
	Timeout time.Duration

	// Detach runs iterations on a context that is not canceled with the loop,
	// so an iteration in flight finishes before the loop observes shutdown.
	Detach bool

	// OnError is called with every failed iteration.
	OnError func(err error)

	// Logger for the worker.
	Logger *zerolog.Logger
}

// Loop runs Process until ctx is canceled. The first iteration starts
// immediately. Returns a wrapped context error on shutdown.
func Loop(ctx context.Context, cfg Config) error {
	logger := getLogger(cfg.Logger)

	logger.Info().Str(logFieldWorker, cfg.Name).Dur("interval", cfg.Interval).Msg("starting worker loop")
	defer logger.Info().Str(logFieldWorker, cfg.Name).Msg("worker loop stopped")

	for iteration := 1; ; iteration++ {
		if err := checkCanceled(ctx, cfg.Name); err != nil {
			return err
		}

		if err := runIteration(ctx, cfg, logger); err != nil {
			logger.Error().Err(err).Str(logFieldWorker, cfg.Name).Int(logFieldIteration, iteration).Msg("iteration failed")

			if cfg.OnError != nil {
				cfg.OnError(err)
			}
		}

		if err := Wait(ctx, cfg.Interval); err != nil {
			return fmt.Errorf("worker loop %s: %w", cfg.Name, err)
		}
	}
}

func runIteration(ctx context.Context, cfg Config, logger *zerolog.Logger) error {
	if cfg.Process == nil {
		return nil
	}

	runCtx := ctx
	if cfg.Detach {
		runCtx = context.WithoutCancel(ctx)
	}

	if cfg.Timeout > 0 {
		return RunWithTimeout(runCtx, cfg.Timeout, func(c context.Context) error {
			return Safe(logger, cfg.Name, func() error { return cfg.Process(c) })
		})
	}

	return Safe(logger, cfg.Name, func() error { return cfg.Process(runCtx) })
}

func checkCanceled(ctx context.Context, name string) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("worker loop %s: %w", name, ctx.Err())
	default:
		return nil
	}
}

// Wait blocks until duration elapses or context is canceled.
// Returns a wrapped context error if context is canceled.
func Wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return fmt.Errorf("wait interrupted: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}

// RunWithTimeout runs fn with a timeout derived from the parent context.
func RunWithTimeout(ctx context.Context, timeout time.Duration, fn func(ctx context.Context) error) error {
	timeoutCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	return fn(timeoutCtx)
}

// Safe runs fn and converts a panic into a *PanicError.
func Safe(logger *zerolog.Logger, operation string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			stack := debug.Stack()

			getLogger(logger).Error().
				Interface("panic", r).
				Str("operation", operation).
				Bytes("stack", stack).
				Msg("recovered from panic")

			err = &PanicError{Operation: operation, Value: r, Stack: stack}
		}
	}()

	return fn()
}

func getLogger(logger *zerolog.Logger) *zerolog.Logger {
	if logger == nil {
		nop := zerolog.Nop()

		return &nop
	}

	return logger
}
