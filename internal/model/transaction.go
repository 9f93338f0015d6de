// Package model defines the core domain types shared across the application.
package model

import (
	"crypto/sha256"
	"fmt"
	"time"
)

// Transaction is a single normalized financial transaction from any provider.
type Transaction struct {
	Date      time.Time // always UTC
	ID        string
	AccountID string
	Payee     string
	Memo      string
	Hash      string
	Amount    Amount
}

// GenerateHash creates a unique hash for duplicate detection.
func (t *Transaction) GenerateHash() string {
	data := fmt.Sprintf("%s:%d:%s:%s",
		t.Date.Format(time.RFC3339),
		t.Amount.Milliunits(),
		t.Payee,
		t.AccountID)
	hash := sha256.Sum256([]byte(data))
	return fmt.Sprintf("%x", hash)
}
