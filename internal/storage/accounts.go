package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/lueurxax/feedpulse/internal/core/domain"
)

func (q *Queries) ListActiveAccounts(ctx context.Context) ([]domain.Account, error) {
	rows, err := q.q.Query(ctx, `
		SELECT id, session_cipher, kver, phone, is_active, created_at
		FROM tg_accounts
		WHERE is_active
		ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list active accounts: %w", err)
	}

	accounts, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Account, error) {
		var a domain.Account

		err := row.Scan(&a.ID, &a.SessionCipher, &a.KeyVersion, &a.Phone, &a.IsActive, &a.CreatedAt)

		return a, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan accounts: %w", err)
	}

	return accounts, nil
}

// ListChannelCursors returns the active channels an account is subscribed to,
// with the account's cursor for each.
func (q *Queries) ListChannelCursors(ctx context.Context, accountID int64) ([]domain.ChannelCursor, error) {
	rows, err := q.q.Query(ctx, `
		SELECT s.account_id, c.id, c.username, c.title, c.is_active, c.last_parsed_at, s.last_msg_id
		FROM account_channel_state s
		JOIN channels c ON c.id = s.channel_id
		WHERE s.account_id = $1 AND c.is_active
		ORDER BY c.id`, accountID)
	if err != nil {
		return nil, fmt.Errorf("list channel cursors: %w", err)
	}

	cursors, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.ChannelCursor, error) {
		var (
			c          domain.ChannelCursor
			lastParsed pgtype.Timestamptz
		)

		err := row.Scan(&c.AccountID, &c.Channel.ID, &c.Channel.Username, &c.Channel.Title,
			&c.Channel.IsActive, &lastParsed, &c.LastMsgID)
		c.Channel.LastParsedAt = fromTimestamptz(lastParsed)

		return c, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan channel cursors: %w", err)
	}

	return cursors, nil
}

// CreateAccount registers an account with an already encrypted session.
func (q *Queries) CreateAccount(ctx context.Context, sessionCipher string, keyVersion int, phone string) (int64, error) {
	var id int64

	err := q.q.QueryRow(ctx, `
		INSERT INTO tg_accounts (session_cipher, kver, phone)
		VALUES ($1, $2, $3)
		RETURNING id`, sessionCipher, keyVersion, phone).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("create account: %w", err)
	}

	return id, nil
}

// Subscribe starts tracking channelID for accountID from the beginning of its
// history. Existing cursors are left untouched.
func (q *Queries) Subscribe(ctx context.Context, accountID, channelID int64) error {
	if _, err := q.q.Exec(ctx, `
		INSERT INTO account_channel_state (account_id, channel_id, last_msg_id)
		VALUES ($1, $2, 0)
		ON CONFLICT (account_id, channel_id) DO NOTHING`, accountID, channelID); err != nil {
		return fmt.Errorf("subscribe account %d to channel %d: %w", accountID, channelID, err)
	}

	return nil
}

// RegisterAccount creates an account and subscribes it to channels, all in
// one transaction.
func (db *DB) RegisterAccount(ctx context.Context, sessionCipher string, keyVersion int, phone string, channels []string) (int64, error) {
	var accountID int64

	err := pgx.BeginFunc(ctx, db.Pool, func(tx pgx.Tx) error {
		q := &Queries{q: tx}

		id, err := q.CreateAccount(ctx, sessionCipher, keyVersion, phone)
		if err != nil {
			return err
		}

		if err := q.subscribeAll(ctx, id, channels); err != nil {
			return err
		}

		accountID = id

		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("register account: %w", err)
	}

	return accountID, nil
}

// SubscribeChannels registers channels and subscribes an existing account to
// them in one transaction.
func (db *DB) SubscribeChannels(ctx context.Context, accountID int64, channels []string) error {
	err := pgx.BeginFunc(ctx, db.Pool, func(tx pgx.Tx) error {
		return (&Queries{q: tx}).subscribeAll(ctx, accountID, channels)
	})
	if err != nil {
		return fmt.Errorf("subscribe channels: %w", err)
	}

	return nil
}

func (q *Queries) subscribeAll(ctx context.Context, accountID int64, channels []string) error {
	for _, username := range channels {
		channelID, err := q.UpsertChannel(ctx, username, "")
		if err != nil {
			return err
		}

		if err := q.Subscribe(ctx, accountID, channelID); err != nil {
			return err
		}
	}

	return nil
}
