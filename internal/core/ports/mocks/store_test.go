package mocks

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lueurxax/feedpulse/internal/core/domain"
)

func TestStore_RollbackUndoesWrites(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	account := store.AddAccount("c", 1)
	channel := store.AddChannel("news")
	store.Subscribe(account, channel, 3)

	tx, err := store.Begin(ctx)
	require.NoError(t, err)

	msg := &domain.Message{ChannelID: channel, MsgID: 4, Date: time.Now(), Type: domain.MessageTypeText}
	inserted, err := tx.InsertMessage(ctx, msg)
	require.NoError(t, err)
	require.True(t, inserted)
	require.NoError(t, tx.AdvanceCursor(ctx, account, channel, 4))

	require.NoError(t, tx.Rollback(ctx))

	assert.Empty(t, store.Messages())
	assert.Equal(t, int64(3), store.Cursor(account, channel))

	_, err = tx.InsertMessage(ctx, msg)
	require.ErrorIs(t, err, ErrTxFinished)
}

func TestStore_RollbackAfterCommitIsNoop(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	channel := store.AddChannel("news")

	tx, err := store.Begin(ctx)
	require.NoError(t, err)

	_, err = tx.InsertMessage(ctx, &domain.Message{ChannelID: channel, MsgID: 1, Type: domain.MessageTypeText})
	require.NoError(t, err)
	require.NoError(t, tx.Commit(ctx))
	require.NoError(t, tx.Rollback(ctx))

	assert.Len(t, store.Messages(), 1)

	commits, rollbacks := store.TxStats()
	assert.Equal(t, 1, commits)
	assert.Equal(t, 0, rollbacks)
}

func TestStore_UniqueMessageKeyAndMonotonicCursor(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	account := store.AddAccount("c", 1)
	channel := store.AddChannel("news")

	tx, err := store.Begin(ctx)
	require.NoError(t, err)

	first := &domain.Message{ChannelID: channel, MsgID: 10}
	ok, err := tx.InsertMessage(ctx, first)
	require.NoError(t, err)
	assert.True(t, ok)

	dup := &domain.Message{ChannelID: channel, MsgID: 10}
	ok, err = tx.InsertMessage(ctx, dup)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, tx.AdvanceCursor(ctx, account, channel, 10))
	require.NoError(t, tx.AdvanceCursor(ctx, account, channel, 5))
	require.NoError(t, tx.Commit(ctx))

	assert.Equal(t, int64(10), store.Cursor(account, channel))
}

func TestStore_AdvisoryLockReleasedOnFinish(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	a, _ := store.Begin(ctx)
	b, _ := store.Begin(ctx)

	got, err := a.TryAdvisoryLock(ctx, 7)
	require.NoError(t, err)
	assert.True(t, got)

	got, err = b.TryAdvisoryLock(ctx, 7)
	require.NoError(t, err)
	assert.False(t, got)

	require.NoError(t, a.Rollback(ctx))

	got, err = b.TryAdvisoryLock(ctx, 7)
	require.NoError(t, err)
	assert.True(t, got)
}

func TestStore_LinkTopicMessageOnce(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	channel := store.AddChannel("news")
	msgID := store.AddMessage(domain.Message{ChannelID: channel, MsgID: 1, Date: time.Now()})

	tx, _ := store.Begin(ctx)

	first, err := tx.CreateTopic(ctx, "a", time.Now())
	require.NoError(t, err)
	second, err := tx.CreateTopic(ctx, "b", time.Now())
	require.NoError(t, err)

	require.NoError(t, tx.LinkTopicMessage(ctx, first, msgID))
	require.ErrorIs(t, tx.LinkTopicMessage(ctx, second, msgID), ErrAlreadyLinked)
}
