package aggregator

import (
	"testing"
	"time"

	"github.com/morepork/akasync/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatter_Normalize(t *testing.T) {
	formatter := NewFormatter()

	tests := []struct {
		name       string
		raw        service.RawRecord
		wantDate   time.Time
		wantAmount int64
		wantReason string
	}{
		{
			name:       "rfc3339 timestamp",
			raw:        service.RawRecord{ID: "t1", Date: "2024-01-15T12:30:00Z", Payee: "STARBUCKS", Amount: "-25.50"},
			wantDate:   time.Date(2024, 1, 15, 12, 30, 0, 0, time.UTC),
			wantAmount: -25500,
		},
		{
			name:       "date-only timestamp",
			raw:        service.RawRecord{ID: "t2", Date: "2024-01-15", Payee: "STARBUCKS", Amount: "10.00"},
			wantDate:   time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
			wantAmount: 10000,
		},
		{
			name:       "offset timestamp converted to UTC",
			raw:        service.RawRecord{ID: "t3", Date: "2024-01-15T13:00:00+13:00", Payee: "COUNTDOWN", Amount: "-5.00"},
			wantDate:   time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
			wantAmount: -5000,
		},
		{
			name:       "missing payee",
			raw:        service.RawRecord{ID: "t4", Date: "2024-01-15", Payee: "  ", Amount: "-5.00"},
			wantReason: "missing payee",
		},
		{
			name:       "missing amount",
			raw:        service.RawRecord{ID: "t5", Date: "2024-01-15", Payee: "STARBUCKS", Amount: ""},
			wantReason: "missing amount",
		},
		{
			name:       "invalid timestamp",
			raw:        service.RawRecord{ID: "t6", Date: "15/01/2024", Payee: "STARBUCKS", Amount: "-5.00"},
			wantReason: `invalid timestamp "15/01/2024"`,
		},
		{
			name:       "invalid amount",
			raw:        service.RawRecord{ID: "t7", Date: "2024-01-15", Payee: "STARBUCKS", Amount: "five"},
			wantReason: `invalid amount "five"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx, err := formatter.Normalize("acc1", tt.raw)

			if tt.wantReason != "" {
				require.Error(t, err)
				var malformed *MalformedRecordError
				require.ErrorAs(t, err, &malformed)
				assert.Equal(t, "acc1", malformed.AccountID)
				assert.Equal(t, tt.raw.ID, malformed.RecordID)
				assert.Equal(t, tt.wantReason, malformed.Reason)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.raw.ID, tx.ID)
			assert.Equal(t, "acc1", tx.AccountID)
			assert.True(t, tx.Date.Equal(tt.wantDate), "got %v, want %v", tx.Date, tt.wantDate)
			assert.Equal(t, time.UTC, tx.Date.Location())
			assert.Equal(t, tt.wantAmount, tx.Amount.Milliunits())
			assert.NotEmpty(t, tx.Hash)
		})
	}
}

func TestFormatter_Normalize_TrimsFields(t *testing.T) {
	formatter := NewFormatter()

	tx, err := formatter.Normalize("acc1", service.RawRecord{
		ID:     "t1",
		Date:   "2024-01-15",
		Payee:  "  STARBUCKS  ",
		Memo:   "  card 1234  ",
		Amount: "-25.50",
	})
	require.NoError(t, err)
	assert.Equal(t, "STARBUCKS", tx.Payee)
	assert.Equal(t, "card 1234", tx.Memo)
}
