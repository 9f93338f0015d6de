// Package ofx reads OFX/QFX statement files and serves them through the
// provider paging contract, so file imports share the same aggregation
// pipeline as live providers.
package ofx

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/aclindsa/ofxgo"
	"github.com/morepork/akasync/internal/service"
)

const defaultPageSize = 100

// Source is an offline ProviderClient over a parsed OFX/QFX file. Pages
// are served from memory; the page token carries the next record offset.
type Source struct {
	records  map[string][]service.RawRecord
	pageSize int
}

// NewSource parses an OFX/QFX statement and indexes its transactions by
// account.
func NewSource(reader io.Reader) (*Source, error) {
	content, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read OFX file: %w", err)
	}

	resp, err := ofxgo.ParseResponse(strings.NewReader(preprocessOFX(string(content))))
	if err != nil {
		return nil, fmt.Errorf("failed to parse OFX file: %w", err)
	}

	s := &Source{
		records:  make(map[string][]service.RawRecord),
		pageSize: defaultPageSize,
	}

	var bankStmts, ccStmts int
	for _, msg := range resp.Bank {
		if stmt, ok := msg.(*ofxgo.StatementResponse); ok {
			bankStmts++
			s.addStatement(string(stmt.BankAcctFrom.AcctID), stmt.BankTranList)
		}
	}
	for _, msg := range resp.CreditCard {
		if stmt, ok := msg.(*ofxgo.CCStatementResponse); ok {
			ccStmts++
			s.addStatement(string(stmt.CCAcctFrom.AcctID), stmt.BankTranList)
		}
	}

	slog.Info("Parsed OFX file",
		"accounts", len(s.records),
		"bank_statements", bankStmts,
		"cc_statements", ccStmts)

	return s, nil
}

// preprocessOFX fixes common formatting issues in OFX files.
func preprocessOFX(content string) string {
	content = strings.TrimLeft(content, " \t\r\n")

	// Fix mixed-case SEVERITY values (should be INFO, WARN, or ERROR)
	severityRegex := regexp.MustCompile(`(?i)<SEVERITY>(Info|Warn|Error)</SEVERITY>`)
	content = severityRegex.ReplaceAllStringFunc(content, strings.ToUpper)

	// Fix missing closing angle brackets in SGML-style OFX files
	tagFixRegex := regexp.MustCompile(`(?m)^(\s*<[A-Z][A-Z0-9._]*[A-Z0-9])$`)
	content = tagFixRegex.ReplaceAllString(content, "$1>")

	return content
}

func (s *Source) addStatement(accountID string, list *ofxgo.TransactionList) {
	if list == nil {
		return
	}
	for _, ofxTx := range list.Transactions {
		s.records[accountID] = append(s.records[accountID], convertTransaction(ofxTx))
	}
}

// convertTransaction maps an OFX transaction into the provider-neutral
// raw record shape. OFX already uses negative amounts for debits.
func convertTransaction(ofxTx ofxgo.Transaction) service.RawRecord {
	payee := string(ofxTx.Name)
	if ofxTx.Payee != nil && ofxTx.Payee.Name != "" {
		payee = string(ofxTx.Payee.Name)
	}

	return service.RawRecord{
		ID:     string(ofxTx.FiTID),
		Date:   ofxTx.DtPosted.Time.UTC().Format(time.RFC3339),
		Payee:  payee,
		Memo:   string(ofxTx.Memo),
		Amount: ofxTx.TrnAmt.FloatString(2),
	}
}

// Accounts returns the account IDs present in the statement, sorted.
func (s *Source) Accounts() []string {
	ids := make([]string, 0, len(s.records))
	for id := range s.records {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// FetchPage serves one page of the statement's records for an account,
// applying the since-filter the way a live provider would.
func (s *Source) FetchPage(ctx context.Context, accountID string, since time.Time, pageToken string) (*service.Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	offset := 0
	if pageToken != "" {
		parsed, err := strconv.Atoi(pageToken)
		if err != nil || parsed < 0 {
			return nil, fmt.Errorf("invalid page token %q", pageToken)
		}
		offset = parsed
	}

	eligible := s.eligibleRecords(accountID, since)
	if offset > len(eligible) {
		offset = len(eligible)
	}

	end := offset + s.pageSize
	if end > len(eligible) {
		end = len(eligible)
	}

	page := &service.Page{Records: eligible[offset:end]}
	if end < len(eligible) {
		page.NextToken = strconv.Itoa(end)
	}
	return page, nil
}

func (s *Source) eligibleRecords(accountID string, since time.Time) []service.RawRecord {
	all := s.records[accountID]
	if since.IsZero() {
		return all
	}

	eligible := make([]service.RawRecord, 0, len(all))
	for _, record := range all {
		date, err := time.Parse(time.RFC3339, record.Date)
		if err != nil {
			// Leave unparseable dates for the formatter to report.
			eligible = append(eligible, record)
			continue
		}
		if date.After(since) {
			eligible = append(eligible, record)
		}
	}
	return eligible
}

// Ensure Source implements the ProviderClient interface.
var _ service.ProviderClient = (*Source)(nil)
