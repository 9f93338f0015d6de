// Package akahu provides a ProviderClient backed by the Akahu account
// aggregation API.
package akahu

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/morepork/akasync/internal/common"
	"github.com/morepork/akasync/internal/model"
	"github.com/morepork/akasync/internal/service"
)

const defaultEndpoint = "https://api.akahu.io/v1"

// Config holds Akahu API configuration.
type Config struct {
	Endpoint  string
	AppToken  string // sent as X-Akahu-Id
	UserToken string // sent as Authorization bearer token
}

// Validate ensures all required fields are present.
func (c *Config) Validate() error {
	if c.AppToken == "" {
		return fmt.Errorf("%w: akahu app token", common.ErrMissingConfig)
	}
	if c.UserToken == "" {
		return fmt.Errorf("%w: akahu user token", common.ErrMissingConfig)
	}
	return nil
}

// Client implements the ProviderClient interface for Akahu.
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	retryOpts  service.RetryOptions
	endpoint   string
	appToken   string
	userToken  string
}

// NewClient creates a new Akahu client with the given configuration.
func NewClient(cfg Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	endpoint := strings.TrimRight(cfg.Endpoint, "/")
	if endpoint == "" {
		endpoint = defaultEndpoint
	}

	return &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     slog.Default().With("component", "akahu"),
		endpoint:   endpoint,
		appToken:   cfg.AppToken,
		userToken:  cfg.UserToken,
		retryOpts: service.RetryOptions{
			MaxAttempts:  3,
			InitialDelay: 1 * time.Second,
			MaxDelay:     30 * time.Second,
			Multiplier:   2.0,
		},
	}, nil
}

// Akahu API response types.
type transactionsResponse struct {
	Cursor *cursor           `json:"cursor"`
	Items  []transactionItem `json:"items"`
}

type cursor struct {
	Next string `json:"next"`
}

type transactionItem struct {
	ID          string      `json:"_id"`
	Date        string      `json:"date"`
	Description string      `json:"description"`
	Merchant    *merchant   `json:"merchant"`
	Amount      json.Number `json:"amount"`
}

type merchant struct {
	Name string `json:"name"`
}

type accountsResponse struct {
	Items []accountItem `json:"items"`
}

type accountItem struct {
	ID   string `json:"_id"`
	Name string `json:"name"`
}

// FetchPage fetches one page of an account's transactions newer than
// since, resuming from the opaque cursor in pageToken.
func (c *Client) FetchPage(ctx context.Context, accountID string, since time.Time, pageToken string) (*service.Page, error) {
	u, err := url.Parse(fmt.Sprintf("%s/accounts/%s/transactions", c.endpoint, accountID))
	if err != nil {
		return nil, fmt.Errorf("failed to build transactions URL: %w", err)
	}

	q := u.Query()
	if !since.IsZero() {
		q.Set("start", since.UTC().Format(time.RFC3339))
	}
	if pageToken != "" {
		q.Set("cursor", pageToken)
	}
	u.RawQuery = q.Encode()

	var payload transactionsResponse
	retryErr := common.WithRetry(ctx, func() error {
		return c.getJSON(ctx, u.String(), &payload)
	}, c.retryOpts)
	if retryErr != nil {
		return nil, retryErr
	}

	page := &service.Page{
		Records: make([]service.RawRecord, 0, len(payload.Items)),
	}
	for _, item := range payload.Items {
		page.Records = append(page.Records, mapTransactionItem(item))
	}
	if payload.Cursor != nil {
		page.NextToken = payload.Cursor.Next
	}

	c.logger.Debug("Fetched transaction page",
		"account", accountID,
		"count", len(page.Records),
		"has_more", page.NextToken != "")

	return page, nil
}

// ListAccounts fetches the accounts visible to the user token. Used by
// the CLI to seed the local account directory.
func (c *Client) ListAccounts(ctx context.Context) ([]model.Account, error) {
	var payload accountsResponse
	retryErr := common.WithRetry(ctx, func() error {
		return c.getJSON(ctx, c.endpoint+"/accounts", &payload)
	}, c.retryOpts)
	if retryErr != nil {
		return nil, retryErr
	}

	accounts := make([]model.Account, 0, len(payload.Items))
	for _, item := range payload.Items {
		accounts = append(accounts, model.Account{
			ID:       item.ID,
			Name:     item.Name,
			Provider: "akahu",
		})
	}

	c.logger.Info("Fetched accounts", "count", len(accounts))
	return accounts, nil
}

func (c *Client) getJSON(ctx context.Context, rawURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return &common.RetryableError{Err: err, Retryable: false}
	}
	req.Header.Set("Authorization", "Bearer "+c.userToken)
	req.Header.Set("X-Akahu-Id", c.appToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &common.TransportError{Provider: "akahu", Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusTooManyRequests {
		c.logger.Warn("Rate limit hit, will retry")
		return &common.RetryableError{Err: common.ErrRateLimit, Retryable: true}
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return &common.TransportError{
			Provider: "akahu",
			Err:      fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body))),
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &common.TransportError{
			Provider: "akahu",
			Err:      fmt.Errorf("failed to decode response: %w", err),
		}
	}
	return nil
}

// mapTransactionItem converts an Akahu item into the provider-neutral
// raw record shape. The merchant name is preferred as payee, with the
// bank statement description kept as memo.
func mapTransactionItem(item transactionItem) service.RawRecord {
	payee := item.Description
	memo := ""
	if item.Merchant != nil && item.Merchant.Name != "" {
		payee = item.Merchant.Name
		memo = item.Description
	}

	return service.RawRecord{
		ID:     item.ID,
		Date:   item.Date,
		Payee:  payee,
		Memo:   memo,
		Amount: item.Amount.String(),
	}
}

// Ensure Client implements the ProviderClient interface.
var _ service.ProviderClient = (*Client)(nil)
