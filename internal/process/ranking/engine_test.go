package ranking

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lueurxax/feedpulse/internal/core/domain"
	"github.com/lueurxax/feedpulse/internal/core/ports/mocks"
)

var (
	testNow = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	day     = domain.Window{Name: "24h", Span: 24 * time.Hour}
	week    = domain.Window{Name: "7d", Span: 7 * 24 * time.Hour}
)

func newTestEngine(store *mocks.Store, lockID int64, windows ...domain.Window) *Engine {
	logger := zerolog.Nop()
	e := New(windows, store, lockID, &logger)
	e.now = func() time.Time { return testNow }

	return e
}

func addMessage(store *mocks.Store, channel, msgID int64, age time.Duration, views int64) int64 {
	return store.AddMessage(domain.Message{
		ChannelID: channel,
		MsgID:     msgID,
		Date:      testNow.Add(-age),
		Views:     ptr(views),
		Type:      domain.MessageTypeText,
	})
}

func TestRun_YoungerMessageRanksHigher(t *testing.T) {
	store := mocks.NewStore()
	channel := store.AddChannel("news")

	x := addMessage(store, channel, 1, time.Hour, 10)
	y := addMessage(store, channel, 2, 10*time.Hour, 10)

	_, err := newTestEngine(store, 0, day).Run(context.Background())
	require.NoError(t, err)

	rx, ok := store.Ranking(domain.EntityMessage, x, "24h")
	require.True(t, ok)
	ry, ok := store.Ranking(domain.EntityMessage, y, "24h")
	require.True(t, ok)

	assert.Greater(t, rx.Score, ry.Score)
	assert.InDelta(t, 5.0, rx.Score, 1e-9)
	assert.InDelta(t, 10.0/11.0, ry.Score, 1e-9)
	assert.Equal(t, testNow, rx.Indexed)
}

func TestRun_WindowsBoundMessagesAndTopics(t *testing.T) {
	store := mocks.NewStore()
	channel := store.AddChannel("news")

	recent := addMessage(store, channel, 1, 2*time.Hour, 4)
	older := addMessage(store, channel, 2, 72*time.Hour, 6)
	stale := addMessage(store, channel, 3, 72*time.Hour, 1)

	mixed := store.AddTopic("mixed", testNow, recent, older)
	oldOnly := store.AddTopic("old", testNow, stale)

	res, err := newTestEngine(store, 0, day, week).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Result{Messages: 4, Topics: 3}, res)

	_, ok := store.Ranking(domain.EntityMessage, older, "24h")
	assert.False(t, ok)
	_, ok = store.Ranking(domain.EntityMessage, older, "7d")
	assert.True(t, ok)

	dayTopic, ok := store.Ranking(domain.EntityTopic, mixed, "24h")
	require.True(t, ok)
	assert.InDelta(t, 4.0/3.0, dayTopic.Score, 1e-9, "only in-window members count")

	weekTopic, ok := store.Ranking(domain.EntityTopic, mixed, "7d")
	require.True(t, ok)
	assert.InDelta(t, 10.0/3.0, weekTopic.Score, 1e-9, "trend follows the most recent member")

	_, ok = store.Ranking(domain.EntityTopic, oldOnly, "24h")
	assert.False(t, ok, "no zero rows for topics without in-window members")
	_, ok = store.Ranking(domain.EntityTopic, oldOnly, "7d")
	assert.True(t, ok)
}

func TestRun_UpsertIsStable(t *testing.T) {
	store := mocks.NewStore()
	channel := store.AddChannel("news")
	id := addMessage(store, channel, 1, time.Hour, 10)

	e := newTestEngine(store, 0, day)

	_, err := e.Run(context.Background())
	require.NoError(t, err)

	first, _ := store.Ranking(domain.EntityMessage, id, "24h")

	later := testNow.Add(30 * time.Minute)
	e.now = func() time.Time { return later }

	_, err = e.Run(context.Background())
	require.NoError(t, err)

	assert.Len(t, store.Rankings(), 1)

	second, _ := store.Ranking(domain.EntityMessage, id, "24h")
	assert.True(t, second.Indexed.After(first.Indexed))
	assert.Less(t, second.Score, first.Score)
}

func TestRun_FailureRollsBackWholePass(t *testing.T) {
	store := mocks.NewStore()
	channel := store.AddChannel("news")
	addMessage(store, channel, 1, time.Hour, 10)
	addMessage(store, channel, 2, 2*time.Hour, 10)

	calls := 0
	store.UpsertRankingFn = func(context.Context, domain.RankingEntry) error {
		calls++
		if calls == 2 {
			return errors.New("deadlock detected")
		}

		return nil
	}

	_, err := newTestEngine(store, 0, day).Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "window 24h")
	assert.Empty(t, store.Rankings())

	_, rollbacks := store.TxStats()
	assert.Equal(t, 1, rollbacks)
}

func TestRun_SkipsWhenLockHeld(t *testing.T) {
	store := mocks.NewStore()
	channel := store.AddChannel("news")
	addMessage(store, channel, 1, time.Hour, 10)
	store.HoldLock(7)

	res, err := newTestEngine(store, 7, day).Run(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Skipped)
	assert.Empty(t, store.Rankings())
}
