package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/lueurxax/feedpulse/internal/core/domain"
)

// UpsertRanking writes the score for (entity_kind, entity_id, window),
// replacing any previous value.
func (q *Queries) UpsertRanking(ctx context.Context, entry domain.RankingEntry) error {
	if _, err := q.q.Exec(ctx, `
		INSERT INTO ranking (entity_kind, entity_id, "window", score, indexed)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (entity_kind, entity_id, "window") DO UPDATE
		SET score = EXCLUDED.score, indexed = EXCLUDED.indexed`,
		entry.EntityKind, entry.EntityID, entry.Window, entry.Score, entry.Indexed); err != nil {
		return fmt.Errorf("upsert ranking %s/%d/%s: %w", entry.EntityKind, entry.EntityID, entry.Window, err)
	}

	return nil
}

// TopRankings returns the highest scored entries of one kind in one window.
func (q *Queries) TopRankings(ctx context.Context, entityKind, window string, limit int) ([]domain.RankingEntry, error) {
	rows, err := q.q.Query(ctx, `
		SELECT entity_kind, entity_id, "window", score, indexed
		FROM ranking
		WHERE entity_kind = $1 AND "window" = $2
		ORDER BY score DESC, entity_id
		LIMIT $3`, entityKind, window, limit)
	if err != nil {
		return nil, fmt.Errorf("top rankings: %w", err)
	}

	entries, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.RankingEntry, error) {
		var e domain.RankingEntry

		err := row.Scan(&e.EntityKind, &e.EntityID, &e.Window, &e.Score, &e.Indexed)

		return e, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan rankings: %w", err)
	}

	return entries, nil
}
