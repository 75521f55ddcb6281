// Package telegram reads channel history over MTProto with gotd.
package telegram

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gotd/td/session"
	"github.com/gotd/td/telegram"
	"github.com/gotd/td/telegram/downloader"
	"github.com/gotd/td/tg"
	"github.com/gotd/td/tgerr"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/lueurxax/feedpulse/internal/core/domain"
	apperrors "github.com/lueurxax/feedpulse/internal/core/errors"
	"github.com/lueurxax/feedpulse/internal/core/ports"
)

const (
	floodWait        = "FLOOD_WAIT"
	floodPremiumWait = "FLOOD_PREMIUM_WAIT"
	defaultRPS       = 1
)

// Config holds MTProto application credentials and pacing.
type Config struct {
	APIID          int
	APIHash        string
	RateLimitRPS   float64
	MaxMediaSize   int64
	ConnectTimeout time.Duration
}

// Source opens one MTProto client per account session.
type Source struct {
	cfg    Config
	logger *zerolog.Logger
}

func New(cfg Config, logger *zerolog.Logger) *Source {
	if cfg.RateLimitRPS <= 0 {
		cfg.RateLimitRPS = defaultRPS
	}

	return &Source{cfg: cfg, logger: logger}
}

// WithSession connects with the given secret, checks that it is authorized
// and runs fn. The connection is closed when fn returns.
func (s *Source) WithSession(ctx context.Context, secret string, fn func(ctx context.Context, sess ports.Session) error) error {
	data, err := NormalizeSession([]byte(secret))
	if err != nil {
		return err
	}

	storage := &session.StorageMemory{}
	if err := storage.StoreSession(ctx, data); err != nil {
		return fmt.Errorf("loading session: %w", err)
	}

	client := telegram.NewClient(s.cfg.APIID, s.cfg.APIHash, telegram.Options{
		SessionStorage: storage,
		NoUpdates:      true,
	})

	return client.Run(ctx, func(ctx context.Context) error {
		if err := s.checkAuthorized(ctx, client); err != nil {
			return err
		}

		return fn(ctx, &clientSession{
			api:     client.API(),
			limiter: rate.NewLimiter(rate.Limit(s.cfg.RateLimitRPS), 1),
			maxSize: s.cfg.MaxMediaSize,
			peers:   make(map[string]*tg.InputPeerChannel),
			logger:  s.logger,
		})
	})
}

func (s *Source) checkAuthorized(ctx context.Context, client *telegram.Client) error {
	if s.cfg.ConnectTimeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, s.cfg.ConnectTimeout)
		defer cancel()
	}

	status, err := client.Auth().Status(ctx)
	if err != nil {
		return fmt.Errorf("auth status: %w", err)
	}

	if !status.Authorized {
		return apperrors.ErrSessionUnauthorized
	}

	return nil
}

type clientSession struct {
	api     *tg.Client
	limiter *rate.Limiter
	maxSize int64
	logger  *zerolog.Logger

	mu    sync.Mutex
	peers map[string]*tg.InputPeerChannel
}

// ListMessagesSince pages forward from cursor: the request is anchored just
// past the cursor with a negative offset so the oldest unseen messages come
// first. Full pages holding only service messages are skipped over.
func (c *clientSession) ListMessagesSince(ctx context.Context, ch domain.Channel, cursor int64, limit int) ([]domain.RemoteMessage, error) {
	peer, err := c.resolve(ctx, ch.Username)
	if err != nil {
		return nil, err
	}

	anchor := cursor

	for {
		page, err := c.history(ctx, peer, ch.Username, anchor, limit)
		if err != nil {
			return nil, err
		}

		out := newerThan(page.messages, cursor, c.maxSize)
		if len(out) > 0 || page.rawLen < limit || page.maxID <= anchor {
			return out, nil
		}

		anchor = page.maxID
	}
}

func (c *clientSession) history(ctx context.Context, peer tg.InputPeerClass, username string, anchor int64, limit int) (historyPage, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return historyPage{}, err
	}

	history, err := c.api.MessagesGetHistory(ctx, &tg.MessagesGetHistoryRequest{
		Peer:      peer,
		OffsetID:  int(anchor) + 1,
		AddOffset: -limit,
		Limit:     limit,
		MinID:     int(anchor),
	})
	if err != nil {
		return historyPage{}, asRateLimit(fmt.Errorf("get history %s: %w", username, err))
	}

	return historyMessages(history), nil
}

func (c *clientSession) DownloadMedia(ctx context.Context, msg domain.RemoteMessage) ([]byte, error) {
	if msg.Media == nil {
		return nil, apperrors.ErrMediaUnavailable
	}

	loc, ok := msg.Media.Handle.(tg.InputFileLocationClass)
	if !ok || loc == nil {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrMediaUnavailable, msg.Media.Kind)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	buf := new(bytes.Buffer)

	if _, err := downloader.NewDownloader().Download(c.api, loc).Stream(ctx, buf); err != nil {
		return nil, asRateLimit(fmt.Errorf("download media: %w", err))
	}

	return buf.Bytes(), nil
}

func (c *clientSession) resolve(ctx context.Context, username string) (*tg.InputPeerChannel, error) {
	username = strings.TrimPrefix(username, "@")

	c.mu.Lock()
	peer, ok := c.peers[username]
	c.mu.Unlock()

	if ok {
		return peer, nil
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	resolved, err := c.api.ContactsResolveUsername(ctx, &tg.ContactsResolveUsernameRequest{Username: username})
	if err != nil {
		return nil, asRateLimit(fmt.Errorf("resolve %s: %w", username, err))
	}

	peer, err = channelPeer(resolved.Chats, username)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.peers[username] = peer
	c.mu.Unlock()

	c.logger.Debug().Str("channel", username).Int64("peer_id", peer.ChannelID).Msg("resolved channel")

	return peer, nil
}

func channelPeer(chats []tg.ChatClass, username string) (*tg.InputPeerChannel, error) {
	if len(chats) == 0 {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrChannelNotFound, username)
	}

	for _, chat := range chats {
		if channel, ok := chat.(*tg.Channel); ok {
			return &tg.InputPeerChannel{ChannelID: channel.ID, AccessHash: channel.AccessHash}, nil
		}
	}

	return nil, fmt.Errorf("%w: %s", apperrors.ErrNotAChannel, username)
}

// asRateLimit turns a flood wait RPC error into *RateLimitError and leaves
// every other error untouched.
func asRateLimit(err error) error {
	rpcErr, ok := tgerr.As(err)
	if !ok || (rpcErr.Type != floodWait && rpcErr.Type != floodPremiumWait) {
		return err
	}

	return errors.Join(&apperrors.RateLimitError{Wait: time.Duration(rpcErr.Argument) * time.Second}, err)
}
