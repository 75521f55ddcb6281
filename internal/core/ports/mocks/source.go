package mocks

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/lueurxax/feedpulse/internal/core/domain"
	"github.com/lueurxax/feedpulse/internal/core/ports"
)

// MessageSource is a scripted in-memory implementation of ports.MessageSource.
// Channel histories are keyed by username.
type MessageSource struct {
	mu       sync.Mutex
	history  map[string][]domain.RemoteMessage
	media    map[string]map[int64][]byte
	opened   []string
	closed   int
	requests []FetchRequest

	// WithSessionFn allows failing a connection for a given secret. A non-nil
	// error is returned before fn runs.
	WithSessionFn func(ctx context.Context, secret string) error

	// ListFn overrides ListMessagesSince. Returning handled=false falls back to
	// the scripted history.
	ListFn func(ctx context.Context, req FetchRequest) (msgs []domain.RemoteMessage, handled bool, err error)

	// DownloadFn overrides DownloadMedia.
	DownloadFn func(ctx context.Context, channel string, msg domain.RemoteMessage) ([]byte, error)
}

// FetchRequest records one ListMessagesSince call.
type FetchRequest struct {
	Secret  string
	Channel string
	Cursor  int64
	Limit   int
}

// NewMessageSource creates an empty source.
func NewMessageSource() *MessageSource {
	return &MessageSource{
		history: make(map[string][]domain.RemoteMessage),
		media:   make(map[string]map[int64][]byte),
	}
}

// AddMessages appends messages to a channel history.
func (m *MessageSource) AddMessages(channel string, msgs ...domain.RemoteMessage) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.history[channel] = append(m.history[channel], msgs...)
	sort.Slice(m.history[channel], func(i, j int) bool { return m.history[channel][i].ID < m.history[channel][j].ID })
}

// SetMedia registers the bytes returned for a message's attachment.
func (m *MessageSource) SetMedia(channel string, msgID int64, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.media[channel] == nil {
		m.media[channel] = make(map[int64][]byte)
	}

	m.media[channel][msgID] = data
}

// Opened returns the secrets sessions were opened with.
func (m *MessageSource) Opened() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	return append([]string(nil), m.opened...)
}

// Closed returns the number of sessions torn down.
func (m *MessageSource) Closed() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.closed
}

// Requests returns every recorded fetch.
func (m *MessageSource) Requests() []FetchRequest {
	m.mu.Lock()
	defer m.mu.Unlock()

	return append([]FetchRequest(nil), m.requests...)
}

func (m *MessageSource) WithSession(ctx context.Context, secret string, fn func(ctx context.Context, s ports.Session) error) error {
	if m.WithSessionFn != nil {
		if err := m.WithSessionFn(ctx, secret); err != nil {
			return err
		}
	}

	m.mu.Lock()
	m.opened = append(m.opened, secret)
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.closed++
		m.mu.Unlock()
	}()

	return fn(ctx, &session{src: m, secret: secret})
}

type session struct {
	src    *MessageSource
	secret string
}

func (s *session) ListMessagesSince(ctx context.Context, channel domain.Channel, cursor int64, limit int) ([]domain.RemoteMessage, error) {
	req := FetchRequest{Secret: s.secret, Channel: channel.Username, Cursor: cursor, Limit: limit}

	s.src.mu.Lock()
	s.src.requests = append(s.src.requests, req)
	s.src.mu.Unlock()

	if s.src.ListFn != nil {
		msgs, handled, err := s.src.ListFn(ctx, req)
		if handled || err != nil {
			return msgs, err
		}
	}

	s.src.mu.Lock()
	defer s.src.mu.Unlock()

	var page []domain.RemoteMessage

	for _, msg := range s.src.history[channel.Username] {
		if msg.ID <= cursor {
			continue
		}

		page = append(page, msg)
		if limit > 0 && len(page) == limit {
			break
		}
	}

	return page, nil
}

func (s *session) DownloadMedia(ctx context.Context, msg domain.RemoteMessage) ([]byte, error) {
	channel, _ := msg.Media.Handle.(string)

	if s.src.DownloadFn != nil {
		return s.src.DownloadFn(ctx, channel, msg)
	}

	s.src.mu.Lock()
	defer s.src.mu.Unlock()

	data, ok := s.src.media[channel][msg.ID]
	if !ok {
		return nil, fmt.Errorf("no media scripted for %s/%d", channel, msg.ID)
	}

	return data, nil
}
