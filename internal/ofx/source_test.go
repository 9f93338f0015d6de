package ofx

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Sample OFX data for testing.
const sampleBankOFX = `OFXHEADER:100
DATA:OFXSGML
VERSION:102
SECURITY:NONE
ENCODING:USASCII
CHARSET:1252
COMPRESSION:NONE
OLDFILEUID:NONE
NEWFILEUID:NONE

<OFX>
<SIGNONMSGSRSV1>
<SONRS>
<STATUS>
<CODE>0
<SEVERITY>INFO
</STATUS>
<DTSERVER>20240315120000[0:GMT]
<LANGUAGE>ENG
</SONRS>
</SIGNONMSGSRSV1>
<BANKMSGSRSV1>
<STMTTRNRS>
<TRNUID>1
<STATUS>
<CODE>0
<SEVERITY>INFO
</STATUS>
<STMTRS>
<CURDEF>NZD
<BANKACCTFROM>
<BANKID>123456789
<ACCTID>1234567890
<ACCTTYPE>CHECKING
</BANKACCTFROM>
<BANKTRANLIST>
<DTSTART>20240101120000[0:GMT]
<DTEND>20240131120000[0:GMT]
<STMTTRN>
<TRNTYPE>DEBIT
<DTPOSTED>20240115120000[0:GMT]
<TRNAMT>-25.50
<FITID>2024011501
<NAME>STARBUCKS STORE #1234
<MEMO>Card 9876
</STMTTRN>
<STMTTRN>
<TRNTYPE>DEBIT
<DTPOSTED>20240120120000[0:GMT]
<TRNAMT>-125.00
<FITID>2024012001
<NAME>Whole Foods Market
</STMTTRN>
<STMTTRN>
<TRNTYPE>CREDIT
<DTPOSTED>20240125120000[0:GMT]
<TRNAMT>2500.00
<FITID>2024012501
<NAME>SALARY PAYMENT
</STMTTRN>
</BANKTRANLIST>
<LEDGERBAL>
<BALAMT>1000.00
<DTASOF>20240131120000[0:GMT]
</LEDGERBAL>
</STMTRS>
</STMTTRNRS>
</BANKMSGSRSV1>
</OFX>`

func TestNewSource_ParsesBankStatement(t *testing.T) {
	source, err := NewSource(strings.NewReader(sampleBankOFX))
	require.NoError(t, err)

	assert.Equal(t, []string{"1234567890"}, source.Accounts())

	page, err := source.FetchPage(context.Background(), "1234567890", time.Time{}, "")
	require.NoError(t, err)
	require.Len(t, page.Records, 3)
	assert.Empty(t, page.NextToken)

	first := page.Records[0]
	assert.Equal(t, "2024011501", first.ID)
	assert.Equal(t, "STARBUCKS STORE #1234", first.Payee)
	assert.Equal(t, "Card 9876", first.Memo)
	assert.Equal(t, "-25.50", first.Amount)
	assert.Equal(t, "2024-01-15T12:00:00Z", first.Date)
}

func TestSource_FetchPage_Pagination(t *testing.T) {
	source, err := NewSource(strings.NewReader(sampleBankOFX))
	require.NoError(t, err)
	source.pageSize = 2

	ctx := context.Background()

	page, err := source.FetchPage(ctx, "1234567890", time.Time{}, "")
	require.NoError(t, err)
	assert.Len(t, page.Records, 2)
	require.Equal(t, "2", page.NextToken)

	page, err = source.FetchPage(ctx, "1234567890", time.Time{}, page.NextToken)
	require.NoError(t, err)
	assert.Len(t, page.Records, 1)
	assert.Empty(t, page.NextToken)
}

func TestSource_FetchPage_SinceFilter(t *testing.T) {
	source, err := NewSource(strings.NewReader(sampleBankOFX))
	require.NoError(t, err)

	since := time.Date(2024, 1, 18, 0, 0, 0, 0, time.UTC)
	page, err := source.FetchPage(context.Background(), "1234567890", since, "")
	require.NoError(t, err)

	require.Len(t, page.Records, 2)
	assert.Equal(t, "2024012001", page.Records[0].ID)
	assert.Equal(t, "2024012501", page.Records[1].ID)
}

func TestSource_FetchPage_UnknownAccount(t *testing.T) {
	source, err := NewSource(strings.NewReader(sampleBankOFX))
	require.NoError(t, err)

	page, err := source.FetchPage(context.Background(), "no-such-account", time.Time{}, "")
	require.NoError(t, err)
	assert.Empty(t, page.Records)
	assert.Empty(t, page.NextToken)
}

func TestSource_FetchPage_InvalidToken(t *testing.T) {
	source, err := NewSource(strings.NewReader(sampleBankOFX))
	require.NoError(t, err)

	_, err = source.FetchPage(context.Background(), "1234567890", time.Time{}, "not-a-number")
	assert.Error(t, err)
}

func TestNewSource_RejectsGarbage(t *testing.T) {
	_, err := NewSource(strings.NewReader("this is not an OFX file"))
	assert.Error(t, err)
}

func TestPreprocessOFX(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "uppercases severity",
			input: "<SEVERITY>Info</SEVERITY>",
			want:  "<SEVERITY>INFO</SEVERITY>",
		},
		{
			name:  "closes bare SGML tags",
			input: "<BANKTRANLIST",
			want:  "<BANKTRANLIST>",
		},
		{
			name:  "leaves complete tags alone",
			input: "<TRNAMT>-25.50",
			want:  "<TRNAMT>-25.50",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, preprocessOFX(tt.input))
		})
	}
}
