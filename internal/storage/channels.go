package db

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// normalizeUsername converts username to lowercase for consistent storage
func normalizeUsername(username string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(username), "@"))
}

// UpsertChannel registers a channel by username and returns its id. A
// non-empty title replaces the stored one.
func (q *Queries) UpsertChannel(ctx context.Context, username, title string) (int64, error) {
	var id int64

	err := q.q.QueryRow(ctx, `
		INSERT INTO channels (username, title)
		VALUES ($1, $2)
		ON CONFLICT (username) DO UPDATE
		SET title = COALESCE(NULLIF(EXCLUDED.title, ''), channels.title),
		    is_active = TRUE
		RETURNING id`, normalizeUsername(username), SanitizeUTF8(title)).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("upsert channel %q: %w", username, err)
	}

	return id, nil
}

// TouchChannel records the time of the last completed pass over a channel.
func (q *Queries) TouchChannel(ctx context.Context, channelID int64, parsedAt time.Time) error {
	if _, err := q.q.Exec(ctx, `
		UPDATE channels
		SET last_parsed_at = GREATEST(COALESCE(last_parsed_at, $2), $2)
		WHERE id = $1`, channelID, toTimestamptz(parsedAt)); err != nil {
		return fmt.Errorf("touch channel %d: %w", channelID, err)
	}

	return nil
}
