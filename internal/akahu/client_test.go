package akahu

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/morepork/akasync/internal/common"
	"github.com/morepork/akasync/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(Config{
		Endpoint:  server.URL,
		AppToken:  "app_token_test",
		UserToken: "user_token_test",
	})
	require.NoError(t, err)

	// Keep retry backoff out of test runtime.
	client.retryOpts = service.RetryOptions{
		MaxAttempts:  2,
		InitialDelay: time.Millisecond,
		MaxDelay:     time.Millisecond,
		Multiplier:   1.0,
	}
	return client, server
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{name: "valid", cfg: Config{AppToken: "a", UserToken: "u"}},
		{name: "missing app token", cfg: Config{UserToken: "u"}, wantErr: true},
		{name: "missing user token", cfg: Config{AppToken: "a"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestClient_FetchPage(t *testing.T) {
	var gotAuth, gotAppID string
	var gotStart, gotCursor []string

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotAppID = r.Header.Get("X-Akahu-Id")
		gotStart = append(gotStart, r.URL.Query().Get("start"))
		gotCursor = append(gotCursor, r.URL.Query().Get("cursor"))

		w.Header().Set("Content-Type", "application/json")
		if r.URL.Query().Get("cursor") == "" {
			_, _ = w.Write([]byte(`{
				"items": [
					{"_id": "trans_1", "date": "2024-01-15T12:00:00Z", "description": "POS W/D STARBUCKS", "merchant": {"name": "Starbucks"}, "amount": -5.25},
					{"_id": "trans_2", "date": "2024-01-16T12:00:00Z", "description": "SALARY PAYMENT", "amount": 2500.00}
				],
				"cursor": {"next": "cursor_abc"}
			}`))
			return
		}
		_, _ = w.Write([]byte(`{
			"items": [
				{"_id": "trans_3", "date": "2024-01-17T12:00:00Z", "description": "COUNTDOWN", "amount": -80.10}
			],
			"cursor": {"next": null}
		}`))
	})

	client, _ := newTestClient(t, handler)
	ctx := context.Background()
	since := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	page, err := client.FetchPage(ctx, "acc_123", since, "")
	require.NoError(t, err)
	require.Len(t, page.Records, 2)
	assert.Equal(t, "cursor_abc", page.NextToken)

	// Merchant name becomes payee, description drops to memo.
	assert.Equal(t, "Starbucks", page.Records[0].Payee)
	assert.Equal(t, "POS W/D STARBUCKS", page.Records[0].Memo)
	assert.Equal(t, "-5.25", page.Records[0].Amount)

	// No merchant: description is the payee.
	assert.Equal(t, "SALARY PAYMENT", page.Records[1].Payee)
	assert.Empty(t, page.Records[1].Memo)

	page, err = client.FetchPage(ctx, "acc_123", since, "cursor_abc")
	require.NoError(t, err)
	require.Len(t, page.Records, 1)
	assert.Empty(t, page.NextToken)

	assert.Equal(t, "Bearer user_token_test", gotAuth)
	assert.Equal(t, "app_token_test", gotAppID)
	assert.Equal(t, []string{"2024-01-01T00:00:00Z", "2024-01-01T00:00:00Z"}, gotStart)
	assert.Equal(t, []string{"", "cursor_abc"}, gotCursor)
}

func TestClient_FetchPage_ZeroSinceOmitsStart(t *testing.T) {
	var sawStart bool
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, sawStart = r.URL.Query()["start"]
		_, _ = w.Write([]byte(`{"items": []}`))
	})

	client, _ := newTestClient(t, handler)
	page, err := client.FetchPage(context.Background(), "acc_123", time.Time{}, "")
	require.NoError(t, err)
	assert.Empty(t, page.Records)
	assert.Empty(t, page.NextToken)
	assert.False(t, sawStart)
}

func TestClient_FetchPage_RetriesRateLimit(t *testing.T) {
	var calls atomic.Int32
	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`{"items": [{"_id": "trans_1", "date": "2024-01-15", "description": "OK", "amount": -1}]}`))
	})

	client, _ := newTestClient(t, handler)
	page, err := client.FetchPage(context.Background(), "acc_123", time.Time{}, "")
	require.NoError(t, err)
	assert.Len(t, page.Records, 1)
	assert.Equal(t, int32(2), calls.Load())
}

func TestClient_FetchPage_RateLimitExhaustsRetries(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})

	client, _ := newTestClient(t, handler)
	_, err := client.FetchPage(context.Background(), "acc_123", time.Time{}, "")
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrMaxRetries)
	assert.ErrorIs(t, err, common.ErrRateLimit)
}

func TestClient_FetchPage_ServerError(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "internal error", http.StatusInternalServerError)
	})

	client, _ := newTestClient(t, handler)
	_, err := client.FetchPage(context.Background(), "acc_123", time.Time{}, "")
	require.Error(t, err)

	var transportErr *common.TransportError
	require.ErrorAs(t, err, &transportErr)
	assert.Equal(t, "akahu", transportErr.Provider)
}

func TestClient_ListAccounts(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/accounts", r.URL.Path)
		_, _ = w.Write([]byte(`{
			"items": [
				{"_id": "acc_1", "name": "Everyday Checking"},
				{"_id": "acc_2", "name": "Savings"}
			]
		}`))
	})

	client, _ := newTestClient(t, handler)
	accounts, err := client.ListAccounts(context.Background())
	require.NoError(t, err)
	require.Len(t, accounts, 2)
	assert.Equal(t, "acc_1", accounts[0].ID)
	assert.Equal(t, "Everyday Checking", accounts[0].Name)
	assert.Equal(t, "akahu", accounts[0].Provider)
}
