package aggregator

import (
	"time"

	"github.com/morepork/akasync/internal/model"
)

// Status is the terminal (or in-flight) state of one account within an
// orchestration run.
type Status string

// Per-account aggregation states.
const (
	StatusPending         Status = "pending"
	StatusFetching        Status = "fetching"
	StatusSkipped         Status = "skipped"
	StatusSucceeded       Status = "succeeded"
	StatusPartiallyFailed Status = "partially_failed"
)

// Outcome is the per-account result of one aggregation run. A partially
// failed outcome still carries every record fetched before the failure;
// the caller decides whether to keep them, but must never advance the
// account's sync cursor past an incomplete run.
type Outcome struct {
	LatestTransaction time.Time
	Err               error
	AccountID         string
	Status            Status
	Records           []model.Transaction
	MalformedSkipped  int
}

// Failed reports whether the account's fetch ended in failure.
func (o *Outcome) Failed() bool {
	return o.Status == StatusPartiallyFailed
}

// Result merges all account outcomes from one orchestration run.
// Transactions is ordered by timestamp ascending, with account ID and
// then insertion order breaking ties. Failures maps account IDs to the
// error that interrupted their fetch.
type Result struct {
	Failures     map[string]error
	Outcomes     map[string]*Outcome
	Transactions []model.Transaction
}
