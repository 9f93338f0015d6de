package aggregator

import (
	"fmt"
	"strings"
	"time"

	"github.com/morepork/akasync/internal/model"
	"github.com/morepork/akasync/internal/service"
)

// MalformedRecordError reports a provider record that cannot be
// normalized. It voids only the one record, never the account's sync.
type MalformedRecordError struct {
	AccountID string
	RecordID  string
	Reason    string
}

func (e *MalformedRecordError) Error() string {
	return fmt.Sprintf("malformed record %s in account %s: %s", e.RecordID, e.AccountID, e.Reason)
}

var timestampLayouts = []string{time.RFC3339, "2006-01-02"}

// Formatter normalizes provider-shaped records into model.Transaction.
type Formatter struct{}

// NewFormatter creates a result formatter.
func NewFormatter() *Formatter {
	return &Formatter{}
}

// Normalize validates and converts one raw record. Payee and amount are
// required; a missing memo defaults to empty. Timestamps are parsed into
// UTC instants and amounts into fixed-point milliunits.
func (f *Formatter) Normalize(accountID string, raw service.RawRecord) (model.Transaction, error) {
	payee := strings.TrimSpace(raw.Payee)
	if payee == "" {
		return model.Transaction{}, &MalformedRecordError{
			AccountID: accountID,
			RecordID:  raw.ID,
			Reason:    "missing payee",
		}
	}
	if strings.TrimSpace(raw.Amount) == "" {
		return model.Transaction{}, &MalformedRecordError{
			AccountID: accountID,
			RecordID:  raw.ID,
			Reason:    "missing amount",
		}
	}

	date, err := parseTimestamp(raw.Date)
	if err != nil {
		return model.Transaction{}, &MalformedRecordError{
			AccountID: accountID,
			RecordID:  raw.ID,
			Reason:    fmt.Sprintf("invalid timestamp %q", raw.Date),
		}
	}

	amount, err := model.ParseAmount(raw.Amount)
	if err != nil {
		return model.Transaction{}, &MalformedRecordError{
			AccountID: accountID,
			RecordID:  raw.ID,
			Reason:    fmt.Sprintf("invalid amount %q", raw.Amount),
		}
	}

	tx := model.Transaction{
		ID:        raw.ID,
		AccountID: accountID,
		Date:      date,
		Payee:     payee,
		Memo:      strings.TrimSpace(raw.Memo),
		Amount:    amount,
	}
	tx.Hash = tx.GenerateHash()
	return tx, nil
}

func parseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}
