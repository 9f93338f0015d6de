// Package plaid provides a ProviderClient backed by the Plaid API.
package plaid

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/morepork/akasync/internal/common"
	"github.com/morepork/akasync/internal/service"
	"github.com/plaid/plaid-go/v20/plaid"
)

// Plaid's maximum transactions page size.
const pageSize = int32(500)

// Config holds Plaid API configuration.
type Config struct {
	ClientID    string
	Secret      string
	Environment string // sandbox or production
	AccessToken string
}

// Validate ensures all required fields are present.
func (c *Config) Validate() error {
	if c.ClientID == "" {
		return fmt.Errorf("%w: plaid client ID", common.ErrMissingConfig)
	}
	if c.Secret == "" {
		return fmt.Errorf("%w: plaid secret", common.ErrMissingConfig)
	}
	if c.AccessToken == "" {
		return fmt.Errorf("%w: plaid access token", common.ErrMissingConfig)
	}

	validEnvs := map[string]bool{
		"sandbox":    true,
		"production": true,
	}
	if !validEnvs[c.Environment] {
		return fmt.Errorf("%w: plaid environment must be sandbox or production", common.ErrInvalidConfig)
	}

	return nil
}

// Client implements the ProviderClient interface for Plaid. Plaid pages
// with numeric offsets rather than cursors, so the opaque page token
// carries the next offset.
type Client struct {
	client      *plaid.APIClient
	logger      *slog.Logger
	retryOpts   service.RetryOptions
	accessToken string
}

// NewClient creates a new Plaid client with the given configuration.
func NewClient(cfg Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	configuration := plaid.NewConfiguration()
	configuration.AddDefaultHeader("PLAID-CLIENT-ID", cfg.ClientID)
	configuration.AddDefaultHeader("PLAID-SECRET", cfg.Secret)

	switch cfg.Environment {
	case "sandbox":
		configuration.UseEnvironment(plaid.Sandbox)
	case "production":
		configuration.UseEnvironment(plaid.Production)
	}

	return &Client{
		client:      plaid.NewAPIClient(configuration),
		accessToken: cfg.AccessToken,
		logger:      slog.Default().With("component", "plaid"),
		retryOpts: service.RetryOptions{
			MaxAttempts:  3,
			InitialDelay: 1 * time.Second,
			MaxDelay:     30 * time.Second,
			Multiplier:   2.0,
		},
	}, nil
}

// FetchPage fetches one page of an account's transactions newer than since.
func (c *Client) FetchPage(ctx context.Context, accountID string, since time.Time, pageToken string) (*service.Page, error) {
	offset := int32(0)
	if pageToken != "" {
		parsed, err := strconv.ParseInt(pageToken, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid page token %q: %w", pageToken, err)
		}
		offset = int32(parsed)
	}

	endDate := time.Now()
	startDate := since
	if startDate.IsZero() {
		// Plaid requires an explicit start date; two years covers the
		// history available on most items.
		startDate = endDate.AddDate(-2, 0, 0)
	}

	var plaidTransactions []plaid.Transaction
	var total int32

	retryErr := common.WithRetry(ctx, func() error {
		request := plaid.NewTransactionsGetRequest(
			c.accessToken,
			startDate.Format("2006-01-02"),
			endDate.Format("2006-01-02"),
		)
		options := plaid.TransactionsGetRequestOptions{
			Count:      plaid.PtrInt32(pageSize),
			Offset:     plaid.PtrInt32(offset),
			AccountIds: &[]string{accountID},
		}
		request.SetOptions(options)

		resp, _, err := c.client.PlaidApi.TransactionsGet(ctx).TransactionsGetRequest(*request).Execute()
		if err != nil {
			if plaidError := extractPlaidError(err); plaidError != nil {
				if plaidError.ErrorCode == "RATE_LIMIT_EXCEEDED" {
					c.logger.Warn("Rate limit hit, will retry", "error", plaidError.ErrorMessage)
					return &common.RetryableError{Err: common.ErrRateLimit, Retryable: true}
				}
				return fmt.Errorf("plaid API error: %s - %s", plaidError.ErrorCode, plaidError.ErrorMessage)
			}
			return &common.TransportError{Provider: "plaid", Err: err}
		}

		plaidTransactions = resp.GetTransactions()
		total = resp.GetTotalTransactions()
		return nil
	}, c.retryOpts)
	if retryErr != nil {
		return nil, retryErr
	}

	page := &service.Page{
		Records: make([]service.RawRecord, 0, len(plaidTransactions)),
	}
	for _, pt := range plaidTransactions {
		page.Records = append(page.Records, mapPlaidTransaction(pt))
	}
	if int(offset)+len(plaidTransactions) < int(total) {
		page.NextToken = strconv.Itoa(int(offset) + len(plaidTransactions))
	}

	c.logger.Debug("Fetched transaction page",
		"account", accountID,
		"count", len(page.Records),
		"offset", offset,
		"total", total)

	return page, nil
}

// mapPlaidTransaction converts a Plaid transaction into the
// provider-neutral raw record shape. Plaid reports debits as positive
// amounts, so the sign is flipped to the negative-is-debit convention.
func mapPlaidTransaction(pt plaid.Transaction) service.RawRecord {
	payee := pt.GetMerchantName()
	memo := pt.GetName()
	if payee == "" {
		payee = pt.GetName()
		memo = ""
	}

	return service.RawRecord{
		ID:     pt.GetTransactionId(),
		Date:   pt.GetDate(),
		Payee:  payee,
		Memo:   memo,
		Amount: strconv.FormatFloat(-pt.GetAmount(), 'f', 2, 64),
	}
}

// extractPlaidError attempts to extract a Plaid error from a generic error.
func extractPlaidError(err error) *plaid.PlaidError {
	plaidErr, convErr := plaid.ToPlaidError(err)
	if convErr != nil {
		return nil
	}
	return &plaidErr
}

// Ensure Client implements the ProviderClient interface.
var _ service.ProviderClient = (*Client)(nil)
