package aggregator

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/morepork/akasync/internal/metrics"
	"github.com/morepork/akasync/internal/model"
	"github.com/morepork/akasync/internal/service"
)

// AccountAggregator drives one account's page fetcher to exhaustion,
// normalizing records as they arrive and tracking the latest transaction
// timestamp seen.
type AccountAggregator struct {
	client    service.ProviderClient
	formatter *Formatter
	metrics   *metrics.Metrics
	logger    *slog.Logger

	// sinceOverlap widens the since-filter backwards to absorb
	// provider lateness; duplicates are dropped downstream by hash.
	sinceOverlap time.Duration
}

// AggregatorOption customizes an AccountAggregator.
type AggregatorOption func(*AccountAggregator)

// WithMetrics attaches Prometheus collectors.
func WithMetrics(m *metrics.Metrics) AggregatorOption {
	return func(a *AccountAggregator) {
		a.metrics = m
	}
}

// WithSinceOverlap refetches the given window before each account's
// last-sync cursor.
func WithSinceOverlap(d time.Duration) AggregatorOption {
	return func(a *AccountAggregator) {
		a.sinceOverlap = d
	}
}

// NewAccountAggregator creates an aggregator over the given provider.
func NewAccountAggregator(client service.ProviderClient, opts ...AggregatorOption) *AccountAggregator {
	a := &AccountAggregator{
		client:    client,
		formatter: NewFormatter(),
		logger:    slog.Default().With("component", "aggregator"),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Aggregate fetches everything newer than the account's last sync. A
// skip-flagged account returns a Skipped outcome without any provider
// call. A mid-stream failure returns a PartiallyFailed outcome that
// still carries every record fetched before the failure.
func (a *AccountAggregator) Aggregate(ctx context.Context, account model.Account) *Outcome {
	outcome := &Outcome{AccountID: account.ID, Status: StatusPending}

	if account.Skip {
		outcome.Status = StatusSkipped
		a.logger.Debug("Skipping account", "account", account.ID)
		a.metrics.RecordAccountOutcome(string(StatusSkipped))
		return outcome
	}

	since := account.LastSyncedAt
	if !since.IsZero() && a.sinceOverlap > 0 {
		since = since.Add(-a.sinceOverlap)
	}

	outcome.Status = StatusFetching
	fetcher := NewPageFetcher(a.client, account.ID, since)

	for {
		batch, more, err := fetcher.Next(ctx)
		if err != nil {
			outcome.Status = StatusPartiallyFailed
			outcome.Err = err
			a.logger.Error("Page fetch failed",
				"account", account.ID,
				"records_kept", len(outcome.Records),
				"error", err)
			a.metrics.RecordAccountOutcome(string(StatusPartiallyFailed))
			return outcome
		}
		if !more {
			break
		}

		a.metrics.RecordPageFetched(account.ID, len(batch))
		for _, raw := range batch {
			a.collect(outcome, account.ID, raw)
		}
	}

	outcome.Status = StatusSucceeded
	a.logger.Info("Account aggregation complete",
		"account", account.ID,
		"records", len(outcome.Records),
		"malformed_skipped", outcome.MalformedSkipped)
	a.metrics.RecordAccountOutcome(string(StatusSucceeded))
	return outcome
}

func (a *AccountAggregator) collect(outcome *Outcome, accountID string, raw service.RawRecord) {
	tx, err := a.formatter.Normalize(accountID, raw)
	if err != nil {
		outcome.MalformedSkipped++
		reason := "malformed"
		var malformed *MalformedRecordError
		if errors.As(err, &malformed) {
			reason = malformed.Reason
		}
		a.logger.Warn("Skipping malformed record",
			"account", accountID,
			"record", raw.ID,
			"reason", reason)
		a.metrics.RecordRecordSkipped(accountID, reason)
		return
	}

	outcome.Records = append(outcome.Records, tx)
	if tx.Date.After(outcome.LatestTransaction) {
		outcome.LatestTransaction = tx.Date
	}
}
