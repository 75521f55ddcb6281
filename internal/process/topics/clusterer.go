// Package topics groups recent unclustered messages into topics by text
// similarity.
package topics

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/lueurxax/feedpulse/internal/core/ports"
	"github.com/lueurxax/feedpulse/internal/platform/observability"
)

const (
	defaultThreshold = 0.3
	defaultLookback  = 24 * time.Hour
)

// Config tunes clustering.
type Config struct {
	Threshold float64
	Lookback  time.Duration
	// LockID, when non-zero, is taken as a transaction advisory lock so only
	// one instance clusters at a time.
	LockID int64
}

// Result summarizes one clustering pass.
type Result struct {
	Considered int
	Topics     int
	Skipped    bool
}

type Clusterer struct {
	cfg    Config
	db     ports.TxBeginner
	logger *zerolog.Logger
	now    func() time.Time
}

// New creates a clusterer. A zero Threshold or Lookback selects the default.
func New(cfg Config, db ports.TxBeginner, logger *zerolog.Logger) *Clusterer {
	if cfg.Threshold <= 0 {
		cfg.Threshold = defaultThreshold
	}

	if cfg.Lookback <= 0 {
		cfg.Lookback = defaultLookback
	}

	return &Clusterer{cfg: cfg, db: db, logger: logger, now: time.Now}
}

// Run clusters every message inside the lookback window that has no topic
// yet. Topics and memberships are written in one transaction.
func (c *Clusterer) Run(ctx context.Context) (Result, error) {
	now := c.now().UTC()

	tx, err := c.db.Begin(ctx)
	if err != nil {
		return Result{}, err
	}

	defer func() { _ = tx.Rollback(ctx) }()

	if c.cfg.LockID != 0 {
		acquired, err := tx.TryAdvisoryLock(ctx, c.cfg.LockID)
		if err != nil {
			return Result{}, err
		}

		if !acquired {
			c.logger.Debug().Msg("clustering already running elsewhere, skipping")

			return Result{Skipped: true}, nil
		}
	}

	msgs, err := tx.ListUnclusteredMessages(ctx, now.Add(-c.cfg.Lookback))
	if err != nil {
		return Result{}, err
	}

	clusters := Cluster(msgs, c.cfg.Threshold)

	for _, members := range clusters {
		topicID, err := tx.CreateTopic(ctx, Title(members[0].Text), now)
		if err != nil {
			return Result{}, err
		}

		for _, m := range members {
			if err := tx.LinkTopicMessage(ctx, topicID, m.ID); err != nil {
				return Result{}, err
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return Result{}, fmt.Errorf("commit clustering: %w", err)
	}

	observability.TopicsCreated.Add(float64(len(clusters)))
	observability.MessagesClustered.Add(float64(len(msgs)))

	c.logger.Info().
		Int("messages", len(msgs)).
		Int("topics", len(clusters)).
		Msg("clustering pass finished")

	return Result{Considered: len(msgs), Topics: len(clusters)}, nil
}
