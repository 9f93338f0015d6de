// Package aggregator implements the incremental multi-account
// transaction aggregation core: paginated per-account fetching, record
// normalization, and fan-out across accounts with per-account failure
// isolation.
package aggregator

import (
	"context"
	"fmt"
	"time"

	"github.com/morepork/akasync/internal/service"
)

// FetchError marks a page retrieval failure for a single account.
type FetchError struct {
	Err       error
	AccountID string
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch failed for account %s: %v", e.AccountID, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// PageFetcher lazily walks one account's paginated transaction history.
// Each call to Next performs exactly one provider request, threading the
// page token from the previous response. The sequence is single-use:
// once exhausted or failed it stays done, and a fresh fetch must
// construct a new fetcher.
type PageFetcher struct {
	client    service.ProviderClient
	accountID string
	since     time.Time
	token     string
	done      bool
}

// NewPageFetcher creates a fetcher for one account starting at the given
// since-timestamp. A zero since fetches the account's full history.
func NewPageFetcher(client service.ProviderClient, accountID string, since time.Time) *PageFetcher {
	return &PageFetcher{
		client:    client,
		accountID: accountID,
		since:     since,
	}
}

// Next returns the next batch of raw records. The boolean is false once
// the sequence is exhausted. On error the sequence terminates, but
// batches yielded before the failure remain valid.
func (f *PageFetcher) Next(ctx context.Context) ([]service.RawRecord, bool, error) {
	if f.done {
		return nil, false, nil
	}

	page, err := f.client.FetchPage(ctx, f.accountID, f.since, f.token)
	if err != nil {
		f.done = true
		return nil, false, &FetchError{AccountID: f.accountID, Err: err}
	}

	f.token = page.NextToken
	if f.token == "" {
		f.done = true
	}
	return page.Records, true, nil
}
