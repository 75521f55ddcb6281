package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/lueurxax/feedpulse/internal/core/domain"
)

const messageColumns = `m.id, m.channel_id, m.msg_id, m.date, m.text, m.author,
	m.views, m.reactions, m.forwards, m.comments, m.type, m.hashtags, m.links, m.media_present`

func scanMessage(row pgx.Row, extra ...any) (domain.Message, error) {
	var m domain.Message

	dest := append(extra, &m.ID, &m.ChannelID, &m.MsgID, &m.Date, &m.Text, &m.Author,
		&m.Views, &m.Reactions, &m.Forwards, &m.Comments, &m.Type, &m.Hashtags, &m.Links, &m.MediaPresent)

	if err := row.Scan(dest...); err != nil {
		return domain.Message{}, err
	}

	m.Date = m.Date.UTC()

	return m, nil
}

func (q *Queries) MessageExists(ctx context.Context, channelID, msgID int64) (bool, error) {
	var exists bool

	err := q.q.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM messages WHERE channel_id = $1 AND msg_id = $2)`,
		channelID, msgID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check message exists: %w", err)
	}

	return exists, nil
}

// InsertMessage stores msg and sets msg.ID. It returns false without error
// when (channel_id, msg_id) is already stored.
func (q *Queries) InsertMessage(ctx context.Context, msg *domain.Message) (bool, error) {
	err := q.q.QueryRow(ctx, `
		INSERT INTO messages (channel_id, msg_id, date, text, author, views, reactions, forwards,
		                      comments, type, hashtags, links, media_present)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (channel_id, msg_id) DO NOTHING
		RETURNING id`,
		msg.ChannelID, msg.MsgID, msg.Date.UTC(), SanitizeUTF8(msg.Text), SanitizeUTF8(msg.Author),
		msg.Views, msg.Reactions, msg.Forwards, msg.Comments, msg.Type,
		nonNilStrings(msg.Hashtags), nonNilStrings(msg.Links), msg.MediaPresent,
	).Scan(&msg.ID)
	if isNoRows(err) {
		return false, nil
	}

	if err != nil {
		return false, fmt.Errorf("insert message %d/%d: %w", msg.ChannelID, msg.MsgID, err)
	}

	return true, nil
}

func (q *Queries) InsertMediaAsset(ctx context.Context, asset *domain.MediaAsset) error {
	err := q.q.QueryRow(ctx, `
		INSERT INTO media_assets (message_id, kind, url, size, format, hash)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (message_id, url) DO UPDATE SET size = EXCLUDED.size
		RETURNING id`,
		asset.MessageID, asset.Kind, asset.URL, asset.Size, asset.Format, asset.Hash,
	).Scan(&asset.ID)
	if err != nil {
		return fmt.Errorf("insert media asset for message %d: %w", asset.MessageID, err)
	}

	return nil
}

// AdvanceCursor moves the account/channel cursor forward. A smaller msgID
// leaves the stored value unchanged.
func (q *Queries) AdvanceCursor(ctx context.Context, accountID, channelID, msgID int64) error {
	if _, err := q.q.Exec(ctx, `
		INSERT INTO account_channel_state (account_id, channel_id, last_msg_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (account_id, channel_id) DO UPDATE
		SET last_msg_id = GREATEST(account_channel_state.last_msg_id, EXCLUDED.last_msg_id)`,
		accountID, channelID, msgID); err != nil {
		return fmt.Errorf("advance cursor %d/%d: %w", accountID, channelID, err)
	}

	return nil
}

// ListMessagesSince returns messages dated at or after since, oldest first.
func (q *Queries) ListMessagesSince(ctx context.Context, since time.Time) ([]domain.Message, error) {
	rows, err := q.q.Query(ctx, `
		SELECT `+messageColumns+`
		FROM messages m
		WHERE m.date >= $1
		ORDER BY m.date, m.id`, since)
	if err != nil {
		return nil, fmt.Errorf("list messages since %s: %w", since, err)
	}

	messages, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Message, error) {
		return scanMessage(row)
	})
	if err != nil {
		return nil, fmt.Errorf("scan messages: %w", err)
	}

	return messages, nil
}
