package model

import "time"

// Account is one external account known to the directory. LastSyncedAt
// is the incremental-sync cursor; it only ever moves forward, and only
// after a fully successful fetch for the account.
type Account struct {
	LastSyncedAt time.Time
	ID           string
	Name         string
	Provider     string
	Skip         bool
}
