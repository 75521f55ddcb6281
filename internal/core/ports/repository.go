// Package ports provides domain-centric interfaces for external dependencies.
// These interfaces follow the ports and adapters (hexagonal) architecture pattern,
// allowing business logic to remain independent of infrastructure concerns.
package ports

import (
	"context"
	"time"

	"github.com/lueurxax/feedpulse/internal/core/domain"
)

// AccountReader reads accounts and their subscriptions.
type AccountReader interface {
	ListActiveAccounts(ctx context.Context) ([]domain.Account, error)
	ListChannelCursors(ctx context.Context, accountID int64) ([]domain.ChannelCursor, error)
}

// IngestRepository persists ingested messages and advances cursors.
type IngestRepository interface {
	MessageExists(ctx context.Context, channelID, msgID int64) (bool, error)
	// InsertMessage stores msg and sets msg.ID. It returns false when the
	// (channel, source id) pair is already stored.
	InsertMessage(ctx context.Context, msg *domain.Message) (bool, error)
	InsertMediaAsset(ctx context.Context, asset *domain.MediaAsset) error
	// AdvanceCursor never moves a cursor backwards.
	AdvanceCursor(ctx context.Context, accountID, channelID, msgID int64) error
	TouchChannel(ctx context.Context, channelID int64, parsedAt time.Time) error
}

// TopicRepository reads unclustered messages and writes topics.
type TopicRepository interface {
	ListUnclusteredMessages(ctx context.Context, since time.Time) ([]domain.Message, error)
	CreateTopic(ctx context.Context, title string, createdAt time.Time) (int64, error)
	LinkTopicMessage(ctx context.Context, topicID, messageID int64) error
}

// RankingRepository reads scoring inputs and upserts ranking rows.
type RankingRepository interface {
	ListMessagesSince(ctx context.Context, since time.Time) ([]domain.Message, error)
	ListTopicMembersSince(ctx context.Context, since time.Time) ([]domain.TopicMember, error)
	UpsertRanking(ctx context.Context, entry domain.RankingEntry) error
}

// UnitOfWork is a transaction scope over every repository. It must be
// finished with Commit or Rollback; Rollback after Commit is a no-op.
type UnitOfWork interface {
	AccountReader
	IngestRepository
	TopicRepository
	RankingRepository

	// TryAdvisoryLock takes a transaction-scoped lock, released on Commit or Rollback.
	TryAdvisoryLock(ctx context.Context, lockID int64) (bool, error)
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// TxBeginner opens units of work.
type TxBeginner interface {
	Begin(ctx context.Context) (UnitOfWork, error)
}
