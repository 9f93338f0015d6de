// Package service defines the contracts between the aggregation core and
// its external collaborators.
package service

import (
	"context"
	"time"

	"github.com/morepork/akasync/internal/model"
)

// RawRecord is a provider-shaped transaction record before
// normalization. All fields are carried as strings so each provider's
// quirks are resolved in one place, the result formatter.
type RawRecord struct {
	ID     string
	Date   string // provider timestamp, RFC 3339 or date-only
	Payee  string
	Memo   string
	Amount string // signed decimal, negative = debit
}

// Page is one batch of raw records from a provider. An empty NextToken
// signals pagination exhaustion.
type Page struct {
	NextToken string
	Records   []RawRecord
}

// ProviderClient fetches one page of an account's transaction history.
// Implementations perform exactly one provider call per FetchPage and
// must honor context cancellation.
type ProviderClient interface {
	FetchPage(ctx context.Context, accountID string, since time.Time, pageToken string) (*Page, error)
}

// AccountDirectory enumerates the accounts eligible for aggregation.
type AccountDirectory interface {
	ListAccounts(ctx context.Context) ([]model.Account, error)
}

// SyncStateStore persists the per-account incremental-sync cursor. It is
// never called by the aggregation core itself; the caller advances the
// cursor only for accounts whose fetch fully succeeded.
type SyncStateStore interface {
	AdvanceLastSync(ctx context.Context, accountID string, ts time.Time) error
}

// TransactionStore archives normalized transactions. SaveTransactions
// reports how many records were newly inserted after deduplication.
type TransactionStore interface {
	SaveTransactions(ctx context.Context, transactions []model.Transaction) (int, error)
	GetTransactions(ctx context.Context, filter TransactionFilter) ([]model.Transaction, error)
}

// TransactionFilter defines filtering options for transaction queries.
type TransactionFilter struct {
	StartDate *time.Time
	EndDate   *time.Time
	AccountID string
	Limit     int
}

// RetryOptions configures retry behavior for provider calls.
type RetryOptions struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}
