package mocks

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/lueurxax/feedpulse/internal/core/domain"
	"github.com/lueurxax/feedpulse/internal/core/ports"
)

type cursorKey struct {
	accountID int64
	channelID int64
}

type messageKey struct {
	channelID int64
	msgID     int64
}

type rankingKey struct {
	kind   string
	id     int64
	window string
}

// Store is a thread-safe in-memory database implementing ports.TxBeginner.
// Writes made through a transaction are applied immediately and undone on
// Rollback.
type Store struct {
	mu sync.Mutex

	nextID   int64
	accounts []domain.Account
	channels map[int64]domain.Channel
	cursors  map[cursorKey]int64
	messages []domain.Message
	byKey    map[messageKey]int
	media    []domain.MediaAsset
	topics   []domain.Topic
	links    map[int64]int64
	rankings map[rankingKey]domain.RankingEntry
	locks    map[int64]bool

	commits   int
	rollbacks int

	// BeginFn allows overriding Begin behavior.
	BeginFn func(ctx context.Context) (ports.UnitOfWork, error)

	// InsertMessageFn runs before the default InsertMessage; a non-nil error aborts it.
	InsertMessageFn func(ctx context.Context, msg *domain.Message) error

	// InsertMediaAssetFn runs before the default InsertMediaAsset; a non-nil error aborts it.
	InsertMediaAssetFn func(ctx context.Context, asset *domain.MediaAsset) error

	// UpsertRankingFn runs before the default UpsertRanking; a non-nil error aborts it.
	UpsertRankingFn func(ctx context.Context, entry domain.RankingEntry) error

	// LinkTopicMessageFn runs before the default LinkTopicMessage; a non-nil error aborts it.
	LinkTopicMessageFn func(ctx context.Context, topicID, messageID int64) error
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		channels: make(map[int64]domain.Channel),
		cursors:  make(map[cursorKey]int64),
		byKey:    make(map[messageKey]int),
		links:    make(map[int64]int64),
		rankings: make(map[rankingKey]domain.RankingEntry),
		locks:    make(map[int64]bool),
	}
}

func (s *Store) id() int64 {
	s.nextID++

	return s.nextID
}

// AddAccount seeds an active account and returns its id.
func (s *Store) AddAccount(sessionCipher string, keyVersion int) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.id()
	s.accounts = append(s.accounts, domain.Account{
		ID:            id,
		SessionCipher: sessionCipher,
		KeyVersion:    keyVersion,
		IsActive:      true,
		CreatedAt:     time.Now().UTC(),
	})

	return id
}

// AddChannel seeds an active channel and returns its id.
func (s *Store) AddChannel(username string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.id()
	s.channels[id] = domain.Channel{ID: id, Username: username, IsActive: true}

	return id
}

// SetChannelActive toggles a seeded channel.
func (s *Store) SetChannelActive(channelID int64, active bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := s.channels[channelID]
	ch.IsActive = active
	s.channels[channelID] = ch
}

// Subscribe seeds a cursor for an account/channel pair.
func (s *Store) Subscribe(accountID, channelID, cursor int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cursors[cursorKey{accountID, channelID}] = cursor
}

// Cursor returns the stored cursor for an account/channel pair.
func (s *Store) Cursor(accountID, channelID int64) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.cursors[cursorKey{accountID, channelID}]
}

// Channel returns a seeded channel.
func (s *Store) Channel(channelID int64) domain.Channel {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.channels[channelID]
}

// AddMessage stores a message directly, bypassing transactions, and returns its id.
func (s *Store) AddMessage(msg domain.Message) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg.ID = s.id()
	s.byKey[messageKey{msg.ChannelID, msg.MsgID}] = len(s.messages)
	s.messages = append(s.messages, msg)

	return msg.ID
}

// AddTopic stores a topic with the given members directly.
func (s *Store) AddTopic(title string, createdAt time.Time, messageIDs ...int64) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.id()
	s.topics = append(s.topics, domain.Topic{ID: id, Title: title, CreatedAt: createdAt})

	for _, mid := range messageIDs {
		s.links[mid] = id
	}

	return id
}

// Messages returns a copy of all stored messages in insertion order.
func (s *Store) Messages() []domain.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]domain.Message(nil), s.messages...)
}

// MediaAssets returns a copy of all stored media assets.
func (s *Store) MediaAssets() []domain.MediaAsset {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]domain.MediaAsset(nil), s.media...)
}

// Topics returns a copy of all stored topics in creation order.
func (s *Store) Topics() []domain.Topic {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]domain.Topic(nil), s.topics...)
}

// TopicOf returns the topic a message is linked to.
func (s *Store) TopicOf(messageID int64) (int64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.links[messageID]

	return id, ok
}

// Ranking returns the stored ranking entry for a key.
func (s *Store) Ranking(kind string, id int64, window string) (domain.RankingEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.rankings[rankingKey{kind, id, window}]

	return e, ok
}

// Rankings returns every ranking entry ordered by kind, window and id.
func (s *Store) Rankings() []domain.RankingEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.RankingEntry, 0, len(s.rankings))
	for _, e := range s.rankings {
		out = append(out, e)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].EntityKind != out[j].EntityKind {
			return out[i].EntityKind < out[j].EntityKind
		}

		if out[i].Window != out[j].Window {
			return out[i].Window < out[j].Window
		}

		return out[i].EntityID < out[j].EntityID
	})

	return out
}

// HoldLock marks an advisory lock as held by another session.
func (s *Store) HoldLock(lockID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.locks[lockID] = true
}

// TxStats returns the number of committed and rolled back transactions.
func (s *Store) TxStats() (commits, rollbacks int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.commits, s.rollbacks
}

// Begin opens a transaction.
func (s *Store) Begin(ctx context.Context) (ports.UnitOfWork, error) {
	if s.BeginFn != nil {
		return s.BeginFn(ctx)
	}

	return &Tx{store: s}, nil
}

// Tx is an in-memory unit of work.
type Tx struct {
	store    *Store
	undo     []func()
	locks    []int64
	finished bool
}

var _ ports.UnitOfWork = (*Tx)(nil)

func (t *Tx) lock() (*Store, error) {
	if t.finished {
		return nil, ErrTxFinished
	}

	t.store.mu.Lock()

	return t.store, nil
}

func (t *Tx) ListActiveAccounts(context.Context) ([]domain.Account, error) {
	s, err := t.lock()
	if err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	var out []domain.Account

	for _, a := range s.accounts {
		if a.IsActive {
			out = append(out, a)
		}
	}

	return out, nil
}

func (t *Tx) ListChannelCursors(_ context.Context, accountID int64) ([]domain.ChannelCursor, error) {
	s, err := t.lock()
	if err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	var out []domain.ChannelCursor

	for key, cursor := range s.cursors {
		ch := s.channels[key.channelID]
		if key.accountID != accountID || !ch.IsActive {
			continue
		}

		out = append(out, domain.ChannelCursor{AccountID: accountID, Channel: ch, LastMsgID: cursor})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Channel.ID < out[j].Channel.ID })

	return out, nil
}

func (t *Tx) MessageExists(_ context.Context, channelID, msgID int64) (bool, error) {
	s, err := t.lock()
	if err != nil {
		return false, err
	}
	defer s.mu.Unlock()

	_, ok := s.byKey[messageKey{channelID, msgID}]

	return ok, nil
}

func (t *Tx) InsertMessage(ctx context.Context, msg *domain.Message) (bool, error) {
	if t.store.InsertMessageFn != nil {
		if err := t.store.InsertMessageFn(ctx, msg); err != nil {
			return false, err
		}
	}

	s, err := t.lock()
	if err != nil {
		return false, err
	}
	defer s.mu.Unlock()

	key := messageKey{msg.ChannelID, msg.MsgID}
	if _, ok := s.byKey[key]; ok {
		return false, nil
	}

	msg.ID = s.id()
	s.byKey[key] = len(s.messages)
	s.messages = append(s.messages, *msg)

	id := msg.ID
	t.undo = append(t.undo, func() { s.removeMessage(id) })

	return true, nil
}

func (t *Tx) InsertMediaAsset(ctx context.Context, asset *domain.MediaAsset) error {
	if t.store.InsertMediaAssetFn != nil {
		if err := t.store.InsertMediaAssetFn(ctx, asset); err != nil {
			return err
		}
	}

	s, err := t.lock()
	if err != nil {
		return err
	}
	defer s.mu.Unlock()

	if !s.hasMessage(asset.MessageID) {
		return fmt.Errorf("%w: %d", ErrMessageNotFound, asset.MessageID)
	}

	asset.ID = s.id()
	s.media = append(s.media, *asset)

	assetID := asset.ID
	t.undo = append(t.undo, func() {
		s.media = slices.DeleteFunc(s.media, func(a domain.MediaAsset) bool { return a.ID == assetID })
	})

	return nil
}

func (s *Store) hasMessage(id int64) bool {
	return slices.ContainsFunc(s.messages, func(m domain.Message) bool { return m.ID == id })
}

func (s *Store) removeMessage(id int64) {
	s.messages = slices.DeleteFunc(s.messages, func(m domain.Message) bool { return m.ID == id })

	clear(s.byKey)

	for i, m := range s.messages {
		s.byKey[messageKey{m.ChannelID, m.MsgID}] = i
	}
}

func (t *Tx) AdvanceCursor(_ context.Context, accountID, channelID, msgID int64) error {
	s, err := t.lock()
	if err != nil {
		return err
	}
	defer s.mu.Unlock()

	key := cursorKey{accountID, channelID}

	prev, existed := s.cursors[key]
	if msgID > prev || !existed {
		s.cursors[key] = max(prev, msgID)
	}

	t.undo = append(t.undo, func() {
		if existed {
			s.cursors[key] = prev
		} else {
			delete(s.cursors, key)
		}
	})

	return nil
}

func (t *Tx) TouchChannel(_ context.Context, channelID int64, parsedAt time.Time) error {
	s, err := t.lock()
	if err != nil {
		return err
	}
	defer s.mu.Unlock()

	ch, ok := s.channels[channelID]
	if !ok {
		return nil
	}

	prev := ch
	if parsedAt.After(ch.LastParsedAt) {
		ch.LastParsedAt = parsedAt
	}

	s.channels[channelID] = ch

	t.undo = append(t.undo, func() { s.channels[channelID] = prev })

	return nil
}

func (t *Tx) ListUnclusteredMessages(_ context.Context, since time.Time) ([]domain.Message, error) {
	s, err := t.lock()
	if err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	var out []domain.Message

	for _, m := range s.messages {
		if _, linked := s.links[m.ID]; linked || m.Date.Before(since) {
			continue
		}

		out = append(out, m)
	}

	sortMessages(out)

	return out, nil
}

func (t *Tx) CreateTopic(_ context.Context, title string, createdAt time.Time) (int64, error) {
	s, err := t.lock()
	if err != nil {
		return 0, err
	}
	defer s.mu.Unlock()

	id := s.id()
	s.topics = append(s.topics, domain.Topic{ID: id, Title: title, CreatedAt: createdAt})

	t.undo = append(t.undo, func() {
		s.topics = slices.DeleteFunc(s.topics, func(tp domain.Topic) bool { return tp.ID == id })
	})

	return id, nil
}

func (t *Tx) LinkTopicMessage(ctx context.Context, topicID, messageID int64) error {
	if t.store.LinkTopicMessageFn != nil {
		if err := t.store.LinkTopicMessageFn(ctx, topicID, messageID); err != nil {
			return err
		}
	}

	s, err := t.lock()
	if err != nil {
		return err
	}
	defer s.mu.Unlock()

	if _, ok := s.links[messageID]; ok {
		return fmt.Errorf("%w: %d", ErrAlreadyLinked, messageID)
	}

	s.links[messageID] = topicID

	t.undo = append(t.undo, func() { delete(s.links, messageID) })

	return nil
}

func (t *Tx) ListMessagesSince(_ context.Context, since time.Time) ([]domain.Message, error) {
	s, err := t.lock()
	if err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	var out []domain.Message

	for _, m := range s.messages {
		if !m.Date.Before(since) {
			out = append(out, m)
		}
	}

	sortMessages(out)

	return out, nil
}

func (t *Tx) ListTopicMembersSince(_ context.Context, since time.Time) ([]domain.TopicMember, error) {
	s, err := t.lock()
	if err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	var out []domain.TopicMember

	for _, m := range s.messages {
		topicID, ok := s.links[m.ID]
		if !ok || m.Date.Before(since) {
			continue
		}

		out = append(out, domain.TopicMember{TopicID: topicID, Message: m})
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].TopicID < out[j].TopicID })

	return out, nil
}

func (t *Tx) UpsertRanking(ctx context.Context, entry domain.RankingEntry) error {
	if t.store.UpsertRankingFn != nil {
		if err := t.store.UpsertRankingFn(ctx, entry); err != nil {
			return err
		}
	}

	s, err := t.lock()
	if err != nil {
		return err
	}
	defer s.mu.Unlock()

	key := rankingKey{entry.EntityKind, entry.EntityID, entry.Window}
	prev, existed := s.rankings[key]
	s.rankings[key] = entry

	t.undo = append(t.undo, func() {
		if existed {
			s.rankings[key] = prev
		} else {
			delete(s.rankings, key)
		}
	})

	return nil
}

func (t *Tx) TryAdvisoryLock(_ context.Context, lockID int64) (bool, error) {
	s, err := t.lock()
	if err != nil {
		return false, err
	}
	defer s.mu.Unlock()

	if s.locks[lockID] {
		return false, nil
	}

	s.locks[lockID] = true
	t.locks = append(t.locks, lockID)

	return true, nil
}

func (t *Tx) Commit(context.Context) error {
	s, err := t.lock()
	if err != nil {
		return err
	}
	defer s.mu.Unlock()

	t.release(s)
	t.undo = nil
	s.commits++

	return nil
}

// Rollback undoes every write of the transaction. It is a no-op after Commit.
func (t *Tx) Rollback(context.Context) error {
	if t.finished {
		return nil
	}

	s := t.store

	s.mu.Lock()
	defer s.mu.Unlock()

	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}

	t.undo = nil
	t.release(s)
	s.rollbacks++

	return nil
}

func (t *Tx) release(s *Store) {
	for _, id := range t.locks {
		delete(s.locks, id)
	}

	t.locks = nil
	t.finished = true
}

func sortMessages(msgs []domain.Message) {
	sort.SliceStable(msgs, func(i, j int) bool {
		if !msgs[i].Date.Equal(msgs[j].Date) {
			return msgs[i].Date.Before(msgs[j].Date)
		}

		return msgs[i].ID < msgs[j].ID
	})
}
