package cli

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/morepork/akasync/internal/common"
	"github.com/morepork/akasync/internal/model"
)

// RenderTransactionTable renders transactions as an aligned table,
// truncated to limit rows (0 means no limit).
func RenderTransactionTable(transactions []model.Transaction, limit int) string {
	if len(transactions) == 0 {
		return SubtleStyle.Render("No transactions.")
	}

	shown := transactions
	truncated := 0
	if limit > 0 && len(shown) > limit {
		truncated = len(shown) - limit
		shown = shown[:limit]
	}

	rows := make([][]string, 0, len(shown)+1)
	rows = append(rows, []string{"DATE", "ACCOUNT", "PAYEE", "MEMO", "AMOUNT"})
	for _, txn := range shown {
		memo := txn.Memo
		if len(memo) > 30 {
			memo = memo[:27] + "..."
		}
		rows = append(rows, []string{
			txn.Date.Format("2006-01-02"),
			txn.AccountID,
			txn.Payee,
			memo,
			txn.Amount.String(),
		})
	}

	widths := make([]int, len(rows[0]))
	for _, row := range rows {
		for i, cell := range row {
			if len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	var b strings.Builder
	for r, row := range rows {
		cells := make([]string, len(row))
		for i, cell := range row {
			padded := fmt.Sprintf("%-*s", widths[i], cell)
			if r == 0 {
				cells[i] = TableHeaderStyle.Render(padded)
			} else {
				cells[i] = TableCellStyle.Render(padded)
			}
		}
		b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, cells...))
		b.WriteString("\n")
	}

	if truncated > 0 {
		b.WriteString(SubtleStyle.Render(fmt.Sprintf("... and %d more", truncated)))
		b.WriteString("\n")
	}

	return b.String()
}

// RenderFailureSummary renders the per-account failure map, or an empty
// string when nothing failed.
func RenderFailureSummary(failures map[string]error) string {
	if len(failures) == 0 {
		return ""
	}

	accountIDs := make([]string, 0, len(failures))
	for accountID := range failures {
		accountIDs = append(accountIDs, accountID)
	}
	sort.Strings(accountIDs)

	var b strings.Builder
	for _, accountID := range accountIDs {
		err := failures[accountID]
		hint := ""
		if common.IsRetryable(err) {
			hint = " (transient, will refetch next run)"
		}
		b.WriteString(fmt.Sprintf("%s %s: %v%s\n", ErrorIcon, accountID, err, hint))
	}
	return RenderBox("Accounts needing attention", strings.TrimRight(b.String(), "\n"))
}
