// Package ranking scores messages and topics per trailing window.
package ranking

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/lueurxax/feedpulse/internal/core/domain"
	"github.com/lueurxax/feedpulse/internal/core/ports"
	"github.com/lueurxax/feedpulse/internal/platform/observability"
)

// Result summarizes one ranking pass.
type Result struct {
	Messages int
	Topics   int
	Skipped  bool
}

type Engine struct {
	windows []domain.Window
	db      ports.TxBeginner
	lockID  int64
	logger  *zerolog.Logger
	now     func() time.Time
}

// New creates an engine for the given windows. A non-zero lockID is taken as
// a transaction advisory lock for every pass.
func New(windows []domain.Window, db ports.TxBeginner, lockID int64, logger *zerolog.Logger) *Engine {
	return &Engine{
		windows: windows,
		db:      db,
		lockID:  lockID,
		logger:  logger,
		now:     time.Now,
	}
}

// Run recomputes every ranking row for every window in a single transaction.
// All scores of a pass share one reference time.
func (e *Engine) Run(ctx context.Context) (Result, error) {
	now := e.now().UTC()

	tx, err := e.db.Begin(ctx)
	if err != nil {
		return Result{}, err
	}

	defer func() { _ = tx.Rollback(ctx) }()

	if e.lockID != 0 {
		acquired, err := tx.TryAdvisoryLock(ctx, e.lockID)
		if err != nil {
			return Result{}, err
		}

		if !acquired {
			e.logger.Debug().Msg("ranking already running elsewhere, skipping")

			return Result{Skipped: true}, nil
		}
	}

	var res Result

	written := make([][2]int, len(e.windows))

	for i, w := range e.windows {
		msgs, topics, err := e.rankWindow(ctx, tx, w, now)
		if err != nil {
			return Result{}, fmt.Errorf("window %s: %w", w.Name, err)
		}

		written[i] = [2]int{msgs, topics}
		res.Messages += msgs
		res.Topics += topics
	}

	if err := tx.Commit(ctx); err != nil {
		return Result{}, fmt.Errorf("commit ranking: %w", err)
	}

	for i, w := range e.windows {
		observability.RankingsUpserted.WithLabelValues(domain.EntityMessage, w.Name).Add(float64(written[i][0]))
		observability.RankingsUpserted.WithLabelValues(domain.EntityTopic, w.Name).Add(float64(written[i][1]))
	}

	e.logger.Info().
		Int("message_rows", res.Messages).
		Int("topic_rows", res.Topics).
		Msg("ranking pass finished")

	return res, nil
}

func (e *Engine) rankWindow(ctx context.Context, tx ports.UnitOfWork, w domain.Window, now time.Time) (int, int, error) {
	start := w.Start(now)

	msgs, err := tx.ListMessagesSince(ctx, start)
	if err != nil {
		return 0, 0, err
	}

	for _, m := range msgs {
		entry := domain.RankingEntry{
			EntityKind: domain.EntityMessage,
			EntityID:   m.ID,
			Window:     w.Name,
			Score:      MessageScore(m, now),
			Indexed:    now,
		}

		if err := tx.UpsertRanking(ctx, entry); err != nil {
			return 0, 0, err
		}
	}

	members, err := tx.ListTopicMembersSince(ctx, start)
	if err != nil {
		return 0, 0, err
	}

	scores := TopicScores(members, start, now)

	ids := make([]int64, 0, len(scores))
	for id := range scores {
		ids = append(ids, id)
	}

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		entry := domain.RankingEntry{
			EntityKind: domain.EntityTopic,
			EntityID:   id,
			Window:     w.Name,
			Score:      scores[id],
			Indexed:    now,
		}

		if err := tx.UpsertRanking(ctx, entry); err != nil {
			return 0, 0, err
		}
	}

	return len(msgs), len(ids), nil
}
