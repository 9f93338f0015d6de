package aggregator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/morepork/akasync/internal/model"
	"github.com/morepork/akasync/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakePage is one scripted FetchPage response.
type fakePage struct {
	err     error
	next    string
	records []service.RawRecord
}

// fakeClient serves scripted pages per account, in call order, and
// records what it was asked for.
type fakeClient struct {
	pages  map[string][]fakePage
	calls  map[string]int
	tokens map[string][]string
	sinces map[string]time.Time
	mu     sync.Mutex
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		pages:  make(map[string][]fakePage),
		calls:  make(map[string]int),
		tokens: make(map[string][]string),
		sinces: make(map[string]time.Time),
	}
}

func (c *fakeClient) FetchPage(ctx context.Context, accountID string, since time.Time, pageToken string) (*service.Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.sinces[accountID] = since
	c.tokens[accountID] = append(c.tokens[accountID], pageToken)

	i := c.calls[accountID]
	c.calls[accountID]++

	script := c.pages[accountID]
	if i >= len(script) {
		return &service.Page{}, nil
	}
	page := script[i]
	if page.err != nil {
		return nil, page.err
	}
	return &service.Page{Records: page.records, NextToken: page.next}, nil
}

func (c *fakeClient) callCount(accountID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[accountID]
}

func rawRecord(id, date, payee, amount string) service.RawRecord {
	return service.RawRecord{ID: id, Date: date, Payee: payee, Amount: amount}
}

func testAccount(id string) model.Account {
	return model.Account{ID: id, Name: id, Provider: "akahu"}
}

func TestPageFetcher_ThreadsTokens(t *testing.T) {
	client := newFakeClient()
	client.pages["acc1"] = []fakePage{
		{records: []service.RawRecord{rawRecord("t1", "2024-01-01", "A", "-1.00")}, next: "cursor-2"},
		{records: []service.RawRecord{rawRecord("t2", "2024-01-02", "B", "-2.00")}, next: "cursor-3"},
		{records: []service.RawRecord{rawRecord("t3", "2024-01-03", "C", "-3.00")}},
	}

	fetcher := NewPageFetcher(client, "acc1", time.Time{})
	ctx := context.Background()

	var total int
	for {
		batch, more, err := fetcher.Next(ctx)
		require.NoError(t, err)
		if !more {
			break
		}
		total += len(batch)
	}

	assert.Equal(t, 3, total)
	assert.Equal(t, 3, client.callCount("acc1"))
	assert.Equal(t, []string{"", "cursor-2", "cursor-3"}, client.tokens["acc1"])
}

func TestPageFetcher_ExhaustedStaysDone(t *testing.T) {
	client := newFakeClient()
	client.pages["acc1"] = []fakePage{
		{records: []service.RawRecord{rawRecord("t1", "2024-01-01", "A", "-1.00")}},
	}

	fetcher := NewPageFetcher(client, "acc1", time.Time{})
	ctx := context.Background()

	_, more, err := fetcher.Next(ctx)
	require.NoError(t, err)
	require.True(t, more)

	// Exhausted: every further call is a no-op with no provider traffic.
	for i := 0; i < 3; i++ {
		batch, more, err := fetcher.Next(ctx)
		require.NoError(t, err)
		assert.False(t, more)
		assert.Nil(t, batch)
	}
	assert.Equal(t, 1, client.callCount("acc1"))
}

func TestPageFetcher_ErrorTerminates(t *testing.T) {
	cause := errors.New("connection reset")
	client := newFakeClient()
	client.pages["acc1"] = []fakePage{
		{records: []service.RawRecord{rawRecord("t1", "2024-01-01", "A", "-1.00")}, next: "cursor-2"},
		{err: cause},
	}

	fetcher := NewPageFetcher(client, "acc1", time.Time{})
	ctx := context.Background()

	batch, more, err := fetcher.Next(ctx)
	require.NoError(t, err)
	require.True(t, more)
	assert.Len(t, batch, 1)

	_, _, err = fetcher.Next(ctx)
	require.Error(t, err)

	var fetchErr *FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, "acc1", fetchErr.AccountID)
	assert.ErrorIs(t, err, cause)

	// Failed sequences stay done too.
	batch, more, err = fetcher.Next(ctx)
	require.NoError(t, err)
	assert.False(t, more)
	assert.Nil(t, batch)
	assert.Equal(t, 2, client.callCount("acc1"))
}

func TestPageFetcher_PassesSince(t *testing.T) {
	client := newFakeClient()
	since := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	fetcher := NewPageFetcher(client, "acc1", since)
	_, _, err := fetcher.Next(context.Background())
	require.NoError(t, err)

	assert.Equal(t, since, client.sinces["acc1"])
}
