package aggregator

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/morepork/akasync/internal/model"
	"github.com/morepork/akasync/internal/service"
)

// Config holds configuration options for the orchestrator.
type Config struct {
	// OnOutcome, if set, is called from a single goroutine as each
	// account's outcome arrives. Intended for progress reporting.
	OnOutcome func(*Outcome)
	// Workers bounds concurrent per-account fetches to respect
	// provider rate limits.
	Workers int
}

// DefaultConfig returns the default orchestrator configuration.
func DefaultConfig() Config {
	return Config{Workers: 4}
}

// Orchestrator fans aggregation out across accounts with a bounded
// worker pool and merges the per-account outcomes into one result.
// Accounts are independent: a failure on one never aborts the others.
type Orchestrator struct {
	directory  service.AccountDirectory
	aggregator *AccountAggregator
	logger     *slog.Logger
	config     Config
}

// New creates an orchestrator with the default configuration.
func New(directory service.AccountDirectory, aggregator *AccountAggregator) *Orchestrator {
	return NewWithConfig(directory, aggregator, DefaultConfig())
}

// NewWithConfig creates an orchestrator with a custom configuration.
func NewWithConfig(directory service.AccountDirectory, aggregator *AccountAggregator, config Config) *Orchestrator {
	if config.Workers <= 0 {
		config.Workers = DefaultConfig().Workers
	}
	return &Orchestrator{
		directory:  directory,
		aggregator: aggregator,
		logger:     slog.Default().With("component", "orchestrator"),
		config:     config,
	}
}

// Run enumerates accounts from the directory and aggregates them all.
// Failure to enumerate accounts is the only error this returns;
// individual account failures land in the result's failure map.
func (o *Orchestrator) Run(ctx context.Context) (*Result, error) {
	accounts, err := o.directory.ListAccounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate accounts: %w", err)
	}
	return o.AggregateAll(ctx, accounts), nil
}

// AggregateAll aggregates the given accounts concurrently. Completion
// order of account tasks never affects the merged ordering: outcomes are
// concatenated in directory order and sorted by transaction timestamp,
// with account ID and insertion order breaking ties.
func (o *Orchestrator) AggregateAll(ctx context.Context, accounts []model.Account) *Result {
	workChan := make(chan model.Account, len(accounts))
	for _, account := range accounts {
		workChan <- account
	}
	close(workChan)

	resultsChan := make(chan *Outcome, len(accounts))

	workers := o.config.Workers
	if workers > len(accounts) {
		workers = len(accounts)
	}

	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			o.worker(ctx, workChan, resultsChan)
		}()
	}

	go func() {
		wg.Wait()
		close(resultsChan)
	}()

	outcomes := make(map[string]*Outcome, len(accounts))
	for outcome := range resultsChan {
		outcomes[outcome.AccountID] = outcome
		if o.config.OnOutcome != nil {
			o.config.OnOutcome(outcome)
		}
	}

	return o.merge(accounts, outcomes)
}

func (o *Orchestrator) worker(ctx context.Context, workChan <-chan model.Account, resultsChan chan<- *Outcome) {
	for account := range workChan {
		select {
		case <-ctx.Done():
			// Abandoned mid-run: surface a cancellation failure so
			// the account's sync cursor stays put.
			resultsChan <- &Outcome{
				AccountID: account.ID,
				Status:    StatusPartiallyFailed,
				Err:       &FetchError{AccountID: account.ID, Err: ctx.Err()},
			}
		default:
			resultsChan <- o.aggregator.Aggregate(ctx, account)
		}
	}
}

func (o *Orchestrator) merge(accounts []model.Account, outcomes map[string]*Outcome) *Result {
	result := &Result{
		Failures: make(map[string]error),
		Outcomes: outcomes,
	}

	// Concatenate in directory order so the stable sort below is
	// deterministic regardless of worker completion order.
	for _, account := range accounts {
		outcome, ok := outcomes[account.ID]
		if !ok {
			continue
		}
		result.Transactions = append(result.Transactions, outcome.Records...)
		if outcome.Err != nil {
			result.Failures[outcome.AccountID] = outcome.Err
		}
	}

	sort.SliceStable(result.Transactions, func(i, j int) bool {
		a, b := result.Transactions[i], result.Transactions[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		return a.AccountID < b.AccountID
	})

	o.logger.Info("Orchestration run complete",
		"accounts", len(accounts),
		"records", len(result.Transactions),
		"failures", len(result.Failures))

	return result
}
