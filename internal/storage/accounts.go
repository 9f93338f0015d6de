package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/morepork/akasync/internal/common"
	"github.com/morepork/akasync/internal/model"
)

// ListAccounts returns all accounts in the directory, ordered by ID.
func (s *SQLiteStorage) ListAccounts(ctx context.Context) ([]model.Account, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, provider, skip, last_synced_at
		FROM accounts
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query accounts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var accounts []model.Account
	for rows.Next() {
		var account model.Account
		var lastSynced sql.NullTime
		if err := rows.Scan(&account.ID, &account.Name, &account.Provider, &account.Skip, &lastSynced); err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		if lastSynced.Valid {
			account.LastSyncedAt = lastSynced.Time.UTC()
		}
		accounts = append(accounts, account)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate accounts: %w", err)
	}

	return accounts, nil
}

// UpsertAccount inserts an account or updates its name and provider.
// The skip flag and sync cursor are preserved on update.
func (s *SQLiteStorage) UpsertAccount(ctx context.Context, account model.Account) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(account.ID, "account.ID"); err != nil {
		return err
	}

	provider := account.Provider
	if provider == "" {
		provider = "akahu"
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO accounts (id, name, provider, skip)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, provider = excluded.provider
	`, account.ID, account.Name, provider, account.Skip)
	if err != nil {
		return fmt.Errorf("failed to upsert account %s: %w", account.ID, err)
	}
	return nil
}

// SetSkip flips the skip flag for an account.
func (s *SQLiteStorage) SetSkip(ctx context.Context, accountID string, skip bool) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, `UPDATE accounts SET skip = ? WHERE id = ?`, skip, accountID)
	if err != nil {
		return fmt.Errorf("failed to update skip flag for %s: %w", accountID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check skip update for %s: %w", accountID, err)
	}
	if affected == 0 {
		return fmt.Errorf("account %s: %w", accountID, common.ErrNotFound)
	}
	return nil
}

// AdvanceLastSync moves an account's sync cursor forward. The cursor is
// append-only: an older timestamp than the stored one is rejected.
func (s *SQLiteStorage) AdvanceLastSync(ctx context.Context, accountID string, ts time.Time) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE accounts
		SET last_synced_at = ?
		WHERE id = ? AND (last_synced_at IS NULL OR last_synced_at <= ?)
	`, ts.UTC(), accountID, ts.UTC())
	if err != nil {
		return fmt.Errorf("failed to advance last sync for %s: %w", accountID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check last sync update for %s: %w", accountID, err)
	}
	if affected == 0 {
		var exists bool
		if err := s.db.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM accounts WHERE id = ?)`, accountID).Scan(&exists); err != nil {
			return fmt.Errorf("failed to look up account %s: %w", accountID, err)
		}
		if !exists {
			return fmt.Errorf("account %s: %w", accountID, common.ErrNotFound)
		}
		return fmt.Errorf("account %s: %w", accountID, common.ErrStaleSyncTimestamp)
	}
	return nil
}
