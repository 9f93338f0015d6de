package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/morepork/akasync/internal/aggregator"
	"github.com/morepork/akasync/internal/cli"
	"github.com/morepork/akasync/internal/model"
	"github.com/morepork/akasync/internal/ofx"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func importCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <file.ofx>",
		Short: "Import transactions from an OFX/QFX statement file",
		Long: `Parse an OFX or QFX statement file and run its transactions through
the same aggregation pipeline as live providers. Accounts found in the
statement are added to the directory if missing.`,
		Args: cobra.ExactArgs(1),
		RunE: runImport,
	}

	cmd.Flags().Bool("dry-run", false, "show parsed transactions without saving")
	cmd.Flags().Int("show", 20, "number of transactions to display")

	_ = viper.BindPFlag("import.dry_run", cmd.Flags().Lookup("dry-run"))
	_ = viper.BindPFlag("import.show", cmd.Flags().Lookup("show"))

	return cmd
}

func runImport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	file, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("failed to open OFX file: %w", err)
	}
	defer func() { _ = file.Close() }()

	source, err := ofx.NewSource(file)
	if err != nil {
		return err
	}

	store, err := openStorage(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	// Make sure every account in the statement exists in the directory,
	// then sync from the stored directory entries so skip flags and
	// last-sync cursors apply to file imports too.
	known := make(map[string]model.Account)
	existing, err := store.ListAccounts(ctx)
	if err != nil {
		return fmt.Errorf("failed to list accounts: %w", err)
	}
	for _, account := range existing {
		known[account.ID] = account
	}

	var accounts []model.Account
	for _, accountID := range source.Accounts() {
		account, ok := known[accountID]
		if !ok {
			account = model.Account{ID: accountID, Name: accountID, Provider: "ofx"}
			if err := store.UpsertAccount(ctx, account); err != nil {
				return err
			}
			slog.Info("Added account from statement", "account", accountID)
		}
		accounts = append(accounts, account)
	}

	agg := aggregator.NewAccountAggregator(source)
	orch := aggregator.New(store, agg)
	result := orch.AggregateAll(ctx, accounts)

	if viper.GetBool("import.dry_run") {
		slog.Info(cli.FormatWarning("Dry run mode - not saving to database"))
	} else {
		inserted, err := persistResult(ctx, store, result)
		if err != nil {
			return err
		}
		slog.Info(cli.FormatSuccess(fmt.Sprintf("Imported %d new transactions (%d in file)", inserted, len(result.Transactions))))
	}

	fmt.Println(cli.RenderTransactionTable(result.Transactions, viper.GetInt("import.show")))
	if summary := cli.RenderFailureSummary(result.Failures); summary != "" {
		fmt.Println(summary)
	}

	return nil
}
