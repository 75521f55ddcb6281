package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/lueurxax/feedpulse/internal/core/domain"
)

// ListUnclusteredMessages returns messages dated at or after since that are
// not linked to any topic, ordered by (date, id).
func (q *Queries) ListUnclusteredMessages(ctx context.Context, since time.Time) ([]domain.Message, error) {
	rows, err := q.q.Query(ctx, `
		SELECT `+messageColumns+`
		FROM messages m
		WHERE m.date >= $1
		  AND NOT EXISTS (SELECT 1 FROM topic_messages tm WHERE tm.message_id = m.id)
		ORDER BY m.date, m.id`, since)
	if err != nil {
		return nil, fmt.Errorf("list unclustered messages: %w", err)
	}

	messages, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Message, error) {
		return scanMessage(row)
	})
	if err != nil {
		return nil, fmt.Errorf("scan unclustered messages: %w", err)
	}

	return messages, nil
}

func (q *Queries) CreateTopic(ctx context.Context, title string, createdAt time.Time) (int64, error) {
	var id int64

	if err := q.q.QueryRow(ctx, `
		INSERT INTO topics (title, created_at)
		VALUES ($1, $2)
		RETURNING id`, SanitizeUTF8(title), createdAt).Scan(&id); err != nil {
		return 0, fmt.Errorf("create topic: %w", err)
	}

	return id, nil
}

// LinkTopicMessage fails when the message already belongs to a topic.
func (q *Queries) LinkTopicMessage(ctx context.Context, topicID, messageID int64) error {
	if _, err := q.q.Exec(ctx, `
		INSERT INTO topic_messages (topic_id, message_id)
		VALUES ($1, $2)`, topicID, messageID); err != nil {
		return fmt.Errorf("link message %d to topic %d: %w", messageID, topicID, err)
	}

	return nil
}

// ListTopicMembersSince returns topic members dated at or after since,
// grouped by topic.
func (q *Queries) ListTopicMembersSince(ctx context.Context, since time.Time) ([]domain.TopicMember, error) {
	rows, err := q.q.Query(ctx, `
		SELECT tm.topic_id, `+messageColumns+`
		FROM topic_messages tm
		JOIN messages m ON m.id = tm.message_id
		WHERE m.date >= $1
		ORDER BY tm.topic_id, m.date, m.id`, since)
	if err != nil {
		return nil, fmt.Errorf("list topic members: %w", err)
	}

	members, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.TopicMember, error) {
		var member domain.TopicMember

		msg, err := scanMessage(row, &member.TopicID)
		member.Message = msg

		return member, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan topic members: %w", err)
	}

	return members, nil
}
