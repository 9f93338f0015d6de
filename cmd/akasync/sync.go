package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/morepork/akasync/internal/aggregator"
	"github.com/morepork/akasync/internal/cli"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func syncCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Fetch new transactions for all accounts",
		Long: `Fetch transactions for every non-skipped account since its last
successful sync. Accounts are fetched concurrently and independently: a
failure on one account never aborts the others, and an account's sync
cursor only advances after a fully successful fetch.`,
		RunE: runSync,
	}

	cmd.Flags().String("provider", "akahu", "transaction provider (akahu, plaid)")
	cmd.Flags().Int("workers", 4, "maximum concurrent account fetches")
	cmd.Flags().Duration("timeout", 10*time.Minute, "overall deadline for the run")
	cmd.Flags().Bool("dry-run", false, "show fetched transactions without saving")
	cmd.Flags().Int("show", 20, "number of transactions to display")

	_ = viper.BindPFlag("sync.provider", cmd.Flags().Lookup("provider"))
	_ = viper.BindPFlag("sync.workers", cmd.Flags().Lookup("workers"))
	_ = viper.BindPFlag("sync.timeout", cmd.Flags().Lookup("timeout"))
	_ = viper.BindPFlag("sync.dry_run", cmd.Flags().Lookup("dry-run"))
	_ = viper.BindPFlag("sync.show", cmd.Flags().Lookup("show"))

	return cmd
}

func runSync(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	if timeout := viper.GetDuration("sync.timeout"); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	store, err := openStorage(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	provider, err := buildProvider(viper.GetString("sync.provider"))
	if err != nil {
		return err
	}

	accounts, err := store.ListAccounts(ctx)
	if err != nil {
		return fmt.Errorf("failed to enumerate accounts: %w", err)
	}
	if len(accounts) == 0 {
		slog.Info(cli.FormatWarning("No accounts configured - run 'akasync accounts discover' first"))
		return nil
	}

	slog.Info(cli.FormatTitle("Syncing transactions"))

	bar := cli.NewAccountProgressBar(len(accounts), os.Stderr)
	agg := aggregator.NewAccountAggregator(provider,
		aggregator.WithSinceOverlap(defaultSinceOverlap))
	orch := aggregator.NewWithConfig(store, agg, aggregator.Config{
		Workers: viper.GetInt("sync.workers"),
		OnOutcome: func(_ *aggregator.Outcome) {
			_ = bar.Add(1)
		},
	})

	result := orch.AggregateAll(ctx, accounts)
	_ = bar.Finish()
	fmt.Fprintln(os.Stderr)

	if viper.GetBool("sync.dry_run") {
		slog.Info(cli.FormatWarning("Dry run mode - not saving to database"))
	} else {
		inserted, err := persistResult(ctx, store, result)
		if err != nil {
			return err
		}
		slog.Info(cli.FormatSuccess(fmt.Sprintf("Saved %d new transactions (%d fetched)", inserted, len(result.Transactions))))
	}

	fmt.Println(cli.RenderTransactionTable(result.Transactions, viper.GetInt("sync.show")))
	if summary := cli.RenderFailureSummary(result.Failures); summary != "" {
		fmt.Println(summary)
	}

	return nil
}
