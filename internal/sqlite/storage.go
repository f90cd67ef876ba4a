package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"github.com/guilherme-santos/calfed/internal"
)

const DriverName = "sqlite3"

// Storage keeps calendar accounts. Writes are guarded by the last modified
// timestamp the caller saw, a mismatch fails with
// internal.ErrConcurrentModification.
type Storage struct {
	db  *sqlx.DB
	now func() time.Time
}

// Open opens the database file and prepares the schema.
func Open(filename string) (*Storage, error) {
	db, err := sql.Open(DriverName, filename)
	if err != nil {
		return nil, err
	}
	// Writers are serialized by SQLite.
	db.SetMaxOpenConns(1)

	s := &Storage{
		db:  sqlx.NewDb(db, DriverName),
		now: time.Now,
	}
	if err := s.RunMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %v", err)
	}
	return s, nil
}

func (s Storage) Close() error {
	return s.db.Close()
}

func (s Storage) timestamp(prev int64) int64 {
	ts := s.now().UnixMilli()
	if ts <= prev {
		ts = prev + 1
	}
	return ts
}

func (s Storage) CreateAccount(ctx context.Context, userID int, providerID string, cfg internal.UserConfig, internalCfg json.RawMessage) (*internal.Account, error) {
	userCfg, intCfg, err := encodeConfigs(cfg, internalCfg)
	if err != nil {
		return nil, err
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO accounts (user_id, provider_id, user_config, internal_config, last_modified)
		VALUES (?, ?, ?, ?, ?)
	`, userID, providerID, userCfg, intCfg, s.timestamp(0))
	if err != nil {
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return s.Account(ctx, userID, int(id))
}

func (s Storage) UpdateAccount(ctx context.Context, userID, accountID int, cfg internal.UserConfig, internalCfg json.RawMessage, clientTimestamp int64) (*internal.Account, error) {
	userCfg, intCfg, err := encodeConfigs(cfg, internalCfg)
	if err != nil {
		return nil, err
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE accounts
		SET user_config = ?, internal_config = ?, last_modified = ?
		WHERE id = ? AND user_id = ? AND last_modified = ?
	`, userCfg, intCfg, s.timestamp(clientTimestamp), accountID, userID, clientTimestamp)
	if err != nil {
		return nil, err
	}
	if err := s.checkAffected(ctx, res, userID, accountID); err != nil {
		return nil, err
	}
	return s.Account(ctx, userID, accountID)
}

func (s Storage) DeleteAccount(ctx context.Context, userID, accountID int, clientTimestamp int64) error {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM accounts WHERE id = ? AND user_id = ? AND last_modified = ?
	`, accountID, userID, clientTimestamp)
	if err != nil {
		return err
	}
	return s.checkAffected(ctx, res, userID, accountID)
}

// checkAffected tells a missing account apart from a stale timestamp.
func (s Storage) checkAffected(ctx context.Context, res sql.Result, userID, accountID int) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	if _, err := s.Account(ctx, userID, accountID); err != nil {
		return err
	}
	return internal.Errorf(internal.CodeConcurrentModification, "account %d: %w", accountID, internal.ErrConcurrentModification)
}

func (s Storage) Account(ctx context.Context, userID, accountID int) (*internal.Account, error) {
	var acc Account
	err := s.db.GetContext(ctx, &acc, `
		SELECT id, user_id, provider_id, user_config, internal_config, last_modified
		FROM accounts
		WHERE id = ? AND user_id = ?
	`, accountID, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, internal.Errorf(internal.CodeAccountNotFound, "account %d: %w", accountID, internal.ErrAccountNotFound)
	}
	if err != nil {
		return nil, err
	}
	return acc.Convert()
}

func (s Storage) Accounts(ctx context.Context, userID int, providerID string) ([]*internal.Account, error) {
	var accs []Account

	err := s.db.SelectContext(ctx, &accs, `
		SELECT id, user_id, provider_id, user_config, internal_config, last_modified
		FROM accounts
		WHERE user_id = ? AND provider_id = ?
		ORDER BY id
	`, userID, providerID)
	if err != nil {
		return nil, err
	}

	res := make([]*internal.Account, len(accs))
	for i, a := range accs {
		acc, err := a.Convert()
		if err != nil {
			return nil, err
		}
		res[i] = acc
	}
	return res, nil
}
