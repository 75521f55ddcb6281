// Package poller ingests channel messages for every active account.
//
// A pass walks each account's subscribed channels from the stored cursor
// forward. Every message is committed together with its media asset and the
// cursor advance, so a cursor never points past a message that is not stored.
package poller

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/lueurxax/feedpulse/internal/core/domain"
	apperrors "github.com/lueurxax/feedpulse/internal/core/errors"
	"github.com/lueurxax/feedpulse/internal/core/ports"
	"github.com/lueurxax/feedpulse/internal/platform/observability"
	"github.com/lueurxax/feedpulse/internal/platform/worker"
)

const (
	defaultFetchLimit = 100
	defaultMaxWait    = time.Hour

	logFieldAccount = "account_id"
	logFieldChannel = "channel"
	logFieldMsgID   = "msg_id"
	logFieldRunID   = "run_id"

	failureDecrypt = "decrypt"
	failureConnect = "connect"
	failureRead    = "read"

	mediaStored  = "stored"
	mediaFailed  = "failed"
	mediaSkipped = "skipped"
)

// Config tunes a poll pass.
type Config struct {
	// FetchLimit is the page size requested from the source.
	FetchLimit int
	// Workers bounds how many accounts are polled concurrently.
	Workers int
	// MaxBackoff caps a single rate limit sleep.
	MaxBackoff time.Duration
	// MaxAttempts bounds consecutive rate limit retries per channel. Zero means unbounded.
	MaxAttempts int
}

type Poller struct {
	cfg     Config
	db      ports.TxBeginner
	source  ports.MessageSource
	secrets ports.SecretOpener
	storage ports.ObjectStorage
	logger  *zerolog.Logger

	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time
}

// New creates a poller. storage may be nil, in which case media is flagged on
// the message but not uploaded.
func New(cfg Config, db ports.TxBeginner, source ports.MessageSource, secrets ports.SecretOpener,
	storage ports.ObjectStorage, logger *zerolog.Logger) *Poller {
	if cfg.FetchLimit <= 0 {
		cfg.FetchLimit = defaultFetchLimit
	}

	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}

	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = defaultMaxWait
	}

	return &Poller{
		cfg:     cfg,
		db:      db,
		source:  source,
		secrets: secrets,
		storage: storage,
		logger:  logger,
		sleep:   worker.Wait,
		now:     time.Now,
	}
}

// Run polls every interval until ctx is canceled.
func (p *Poller) Run(ctx context.Context, interval time.Duration) error {
	return worker.Loop(ctx, worker.Config{
		Name:     "poller",
		Interval: interval,
		Process:  p.RunOnce,
		Logger:   p.logger,
	})
}

// RunOnce performs one pass over all active accounts. Failures of a single
// account are logged and counted; they do not fail the pass.
func (p *Poller) RunOnce(ctx context.Context) error {
	start := p.now()
	logger := p.logger.With().Str(logFieldRunID, uuid.NewString()).Logger()

	accounts, err := p.listAccounts(ctx)
	if err != nil {
		return err
	}

	if len(accounts) == 0 {
		logger.Debug().Msg("no active accounts")

		return nil
	}

	errs := worker.ForEach(ctx, p.cfg.Workers, accounts, func(ctx context.Context, a domain.Account) error {
		return p.pollAccount(ctx, &logger, a)
	})

	failed := 0

	for _, err := range errs {
		if err != nil {
			failed++
		}
	}

	observability.PollPassDurationSeconds.Observe(time.Since(start).Seconds())

	logger.Info().
		Int("accounts", len(accounts)).
		Int("failed", failed).
		Dur("duration", time.Since(start)).
		Msg("poll pass finished")

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("poll pass interrupted: %w", err)
	}

	return nil
}

func (p *Poller) listAccounts(ctx context.Context) ([]domain.Account, error) {
	tx, err := p.db.Begin(ctx)
	if err != nil {
		return nil, err
	}

	defer func() { _ = tx.Rollback(ctx) }()

	accounts, err := tx.ListActiveAccounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}

	return accounts, nil
}

func (p *Poller) listCursors(ctx context.Context, accountID int64) ([]domain.ChannelCursor, error) {
	tx, err := p.db.Begin(ctx)
	if err != nil {
		return nil, err
	}

	defer func() { _ = tx.Rollback(ctx) }()

	cursors, err := tx.ListChannelCursors(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("list cursors for account %d: %w", accountID, err)
	}

	return cursors, nil
}

func (p *Poller) pollAccount(ctx context.Context, parent *zerolog.Logger, account domain.Account) error {
	logger := parent.With().Int64(logFieldAccount, account.ID).Logger()

	secret, err := p.secrets.DecryptString(account.SessionCipher, account.KeyVersion)
	if err != nil {
		observability.AccountFailures.WithLabelValues(failureDecrypt).Inc()
		logger.Error().Err(err).Int("kver", account.KeyVersion).Msg("cannot decrypt account session, skipping account")

		return fmt.Errorf("decrypt session for account %d: %w", account.ID, err)
	}

	cursors, err := p.listCursors(ctx, account.ID)
	if err != nil {
		observability.AccountFailures.WithLabelValues(failureRead).Inc()
		logger.Error().Err(err).Msg("cannot load channel cursors")

		return err
	}

	if len(cursors) == 0 {
		logger.Debug().Msg("account has no active subscriptions")

		return nil
	}

	err = p.source.WithSession(ctx, secret, func(ctx context.Context, s ports.Session) error {
		for _, cc := range cursors {
			if ctx.Err() != nil {
				return ctx.Err()
			}

			chLogger := logger.With().Str(logFieldChannel, cc.Channel.Username).Logger()

			count, err := p.pollChannel(ctx, &chLogger, s, cc)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}

				chLogger.Error().Err(err).Int("ingested", count).Msg("channel pass failed, skipping channel")

				continue
			}

			if count > 0 {
				chLogger.Info().Int("count", count).Msg("ingested messages for channel")
			}
		}

		return nil
	})
	if err != nil {
		if ctx.Err() == nil {
			observability.AccountFailures.WithLabelValues(failureConnect).Inc()
			logger.Error().Err(err).Msg("account session failed, skipping account")
		}

		return fmt.Errorf("poll account %d: %w", account.ID, err)
	}

	return nil
}

// pollChannel ingests every message after the cursor. It returns the number
// of newly stored messages.
func (p *Poller) pollChannel(ctx context.Context, logger *zerolog.Logger, s ports.Session, cc domain.ChannelCursor) (int, error) {
	cursor := cc.LastMsgID
	bo := newBackoff(p.cfg.MaxAttempts, p.cfg.MaxBackoff)
	count := 0

	for {
		page, err := s.ListMessagesSince(ctx, cc.Channel, cursor, p.cfg.FetchLimit)
		if err != nil {
			pageLogger := logger.With().Int64("cursor", cursor).Logger()

			limited, waitErr := p.waitRateLimit(ctx, &pageLogger, bo, err)
			if waitErr != nil {
				return count, waitErr
			}

			if limited {
				continue
			}

			return count, fmt.Errorf("fetch after %d: %w", cursor, err)
		}

		progressed := false

		for _, rm := range page {
			if rm.ID <= cursor {
				continue
			}

			stored, err := p.ingestMessage(ctx, logger, s, bo, cc, rm)
			if err != nil {
				return count, err
			}

			if stored {
				count++
			}

			cursor = rm.ID
			progressed = true
		}

		// A short page is not the end: the source may drop service messages.
		if !progressed {
			break
		}

		bo.reset()
	}

	p.touchChannel(ctx, logger, cc.Channel.ID)

	return count, nil
}

// waitRateLimit sleeps through a rate limit signal carried by err. It reports
// false when err is not a rate limit.
func (p *Poller) waitRateLimit(ctx context.Context, logger *zerolog.Logger, bo *backoff, err error) (bool, error) {
	wait, ok := apperrors.AsRateLimit(err)
	if !ok {
		return false, nil
	}

	sleep, boErr := bo.next(wait)
	if boErr != nil {
		return true, boErr
	}

	observability.FloodWaits.Inc()
	observability.FloodWaitSeconds.Observe(sleep.Seconds())
	logger.Warn().Dur("suggested", wait).Dur("sleep", sleep).Msg("rate limited, backing off")

	if err := p.sleep(ctx, sleep); err != nil {
		return true, err
	}

	return true, nil
}

// ingestMessage stores rm and advances the cursor in one transaction. It
// reports whether a new message row was written.
func (p *Poller) ingestMessage(ctx context.Context, logger *zerolog.Logger, s ports.Session, bo *backoff,
	cc domain.ChannelCursor, rm domain.RemoteMessage) (bool, error) {
	msg := normalize(cc.Channel.ID, rm)

	exists, err := p.advanceIfStored(ctx, cc, msg.MsgID)
	if err != nil || exists {
		return false, err
	}

	asset, err := p.storeMedia(ctx, logger, s, bo, cc.Channel, rm)
	if err != nil {
		return false, err
	}

	tx, err := p.db.Begin(ctx)
	if err != nil {
		return false, err
	}

	defer func() { _ = tx.Rollback(ctx) }()

	inserted, err := tx.InsertMessage(ctx, &msg)
	if err != nil {
		return false, err
	}

	if inserted && asset != nil {
		asset.MessageID = msg.ID
		if err := tx.InsertMediaAsset(ctx, asset); err != nil {
			return false, err
		}
	}

	if err := tx.AdvanceCursor(ctx, cc.AccountID, cc.Channel.ID, msg.MsgID); err != nil {
		return false, err
	}

	if err := tx.Commit(ctx); err != nil {
		return false, err
	}

	if inserted {
		observability.MessagesIngested.WithLabelValues(cc.Channel.Username).Inc()
	}

	return inserted, nil
}

// advanceIfStored moves the cursor past a message that is already stored.
func (p *Poller) advanceIfStored(ctx context.Context, cc domain.ChannelCursor, msgID int64) (bool, error) {
	tx, err := p.db.Begin(ctx)
	if err != nil {
		return false, err
	}

	defer func() { _ = tx.Rollback(ctx) }()

	exists, err := tx.MessageExists(ctx, cc.Channel.ID, msgID)
	if err != nil || !exists {
		return false, err
	}

	if err := tx.AdvanceCursor(ctx, cc.AccountID, cc.Channel.ID, msgID); err != nil {
		return false, err
	}

	if err := tx.Commit(ctx); err != nil {
		return false, err
	}

	return true, nil
}

func (p *Poller) storeMedia(ctx context.Context, logger *zerolog.Logger, s ports.Session, bo *backoff,
	ch domain.Channel, rm domain.RemoteMessage) (*domain.MediaAsset, error) {
	if rm.Media == nil {
		return nil, nil
	}

	if p.storage == nil {
		observability.MediaStored.WithLabelValues(mediaSkipped).Inc()

		return nil, nil
	}

	data, err := p.download(ctx, logger, s, bo, rm)
	if errors.Is(err, apperrors.ErrMediaUnavailable) {
		observability.MediaStored.WithLabelValues(mediaSkipped).Inc()
		logger.Debug().Int64(logFieldMsgID, rm.ID).Str("kind", rm.Media.Kind).Msg("media not downloadable, storing message without asset")

		return nil, nil
	}

	if err != nil {
		observability.MediaStored.WithLabelValues(mediaFailed).Inc()

		return nil, fmt.Errorf("download media for message %d: %w", rm.ID, err)
	}

	path := MediaPath(ch.ID, rm.ID)

	if err := p.storage.Upload(ctx, path, data); err != nil {
		observability.MediaStored.WithLabelValues(mediaFailed).Inc()

		return nil, fmt.Errorf("upload media for message %d: %w", rm.ID, err)
	}

	observability.MediaStored.WithLabelValues(mediaStored).Inc()

	sum := sha256.Sum256(data)

	format := rm.Media.Format
	if format == "" {
		format = http.DetectContentType(data)
	}

	return &domain.MediaAsset{
		Kind:   rm.Media.Kind,
		URL:    p.storage.PublicURL(path),
		Size:   int64(len(data)),
		Format: format,
		Hash:   hex.EncodeToString(sum[:]),
	}, nil
}

// download fetches the attachment of rm, retrying rate limited attempts on
// the channel backoff.
func (p *Poller) download(ctx context.Context, logger *zerolog.Logger, s ports.Session, bo *backoff, rm domain.RemoteMessage) ([]byte, error) {
	msgLogger := logger.With().Int64(logFieldMsgID, rm.ID).Logger()

	for {
		data, err := s.DownloadMedia(ctx, rm)

		limited, waitErr := p.waitRateLimit(ctx, &msgLogger, bo, err)
		if waitErr != nil {
			return nil, waitErr
		}

		if !limited {
			return data, err
		}
	}
}

func (p *Poller) touchChannel(ctx context.Context, logger *zerolog.Logger, channelID int64) {
	tx, err := p.db.Begin(ctx)
	if err != nil {
		logger.Warn().Err(err).Msg("failed to stamp channel pass")

		return
	}

	defer func() { _ = tx.Rollback(ctx) }()

	if err := tx.TouchChannel(ctx, channelID, p.now().UTC()); err != nil {
		logger.Warn().Err(err).Msg("failed to stamp channel pass")

		return
	}

	if err := tx.Commit(ctx); err != nil {
		logger.Warn().Err(err).Msg("failed to stamp channel pass")
	}
}

// MediaPath is the object key for a message attachment.
func MediaPath(channelID, msgID int64) string {
	return fmt.Sprintf("%d/%d", channelID, msgID)
}
