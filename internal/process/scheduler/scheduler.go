// Package scheduler runs the clustering and ranking jobs as independent
// periodic loops.
package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/lueurxax/feedpulse/internal/platform/observability"
	"github.com/lueurxax/feedpulse/internal/platform/worker"
	"github.com/lueurxax/feedpulse/internal/process/ranking"
	"github.com/lueurxax/feedpulse/internal/process/topics"
)

const (
	JobClustering = "clustering"
	JobRanking    = "ranking"
)

// Job is a named periodic unit of work. Run reports whether the iteration was
// skipped because another instance holds the job lock.
type Job struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) (skipped bool, err error)
}

type Scheduler struct {
	jobs    []Job
	timeout time.Duration
	logger  *zerolog.Logger
}

// New creates a scheduler. timeout bounds every iteration of every job.
func New(timeout time.Duration, logger *zerolog.Logger, jobs ...Job) *Scheduler {
	return &Scheduler{jobs: jobs, timeout: timeout, logger: logger}
}

// ClusteringJob runs the clusterer every interval.
func ClusteringJob(c *topics.Clusterer, interval time.Duration) Job {
	return Job{
		Name:     JobClustering,
		Interval: interval,
		Run: func(ctx context.Context) (bool, error) {
			res, err := c.Run(ctx)

			return res.Skipped, err
		},
	}
}

// RankingJob runs the ranking engine every interval.
func RankingJob(e *ranking.Engine, interval time.Duration) Job {
	return Job{
		Name:     JobRanking,
		Interval: interval,
		Run: func(ctx context.Context) (bool, error) {
			res, err := e.Run(ctx)

			return res.Skipped, err
		},
	}
}

// Run starts one loop per job and blocks until ctx is canceled and every
// in-flight iteration has finished. A failing or panicking iteration is
// logged and counted; it never stops its own loop or the others.
func (s *Scheduler) Run(ctx context.Context) error {
	var g errgroup.Group

	for _, job := range s.jobs {
		logger := s.logger.With().Str("job", job.Name).Logger()

		g.Go(func() error {
			return worker.Loop(ctx, worker.Config{
				Name:     job.Name,
				Interval: job.Interval,
				Timeout:  s.timeout,
				Detach:   true,
				Process:  instrument(job, &logger),
				OnError: func(error) {
					observability.JobErrors.WithLabelValues(job.Name).Inc()
				},
				Logger: &logger,
			})
		})
	}

	err := g.Wait()
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		s.logger.Info().Msg("scheduler stopped")

		return nil
	}

	return err
}

func instrument(job Job, logger *zerolog.Logger) worker.ProcessFunc {
	return func(ctx context.Context) error {
		start := time.Now()

		skipped, err := job.Run(ctx)

		observability.JobDurationSeconds.WithLabelValues(job.Name).Observe(time.Since(start).Seconds())

		if skipped {
			observability.JobSkipped.WithLabelValues(job.Name).Inc()
			logger.Debug().Msg("job skipped, lock held by another instance")
		}

		return err
	}
}
