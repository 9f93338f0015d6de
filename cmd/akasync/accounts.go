package main

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/morepork/akasync/internal/akahu"
	"github.com/morepork/akasync/internal/cli"
	"github.com/morepork/akasync/internal/model"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func accountsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "accounts",
		Short: "Manage the local account directory",
	}

	cmd.AddCommand(accountsListCmd())
	cmd.AddCommand(accountsAddCmd())
	cmd.AddCommand(accountsSkipCmd())
	cmd.AddCommand(accountsUnskipCmd())
	cmd.AddCommand(accountsDiscoverCmd())

	return cmd
}

func accountsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List configured accounts",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			store, err := openStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			accounts, err := store.ListAccounts(ctx)
			if err != nil {
				return fmt.Errorf("failed to list accounts: %w", err)
			}
			if len(accounts) == 0 {
				slog.Info(cli.FormatWarning("No accounts configured"))
				return nil
			}

			var b strings.Builder
			for _, account := range accounts {
				lastSync := "never"
				if !account.LastSyncedAt.IsZero() {
					lastSync = account.LastSyncedAt.Format("2006-01-02 15:04")
				}
				flag := " "
				if account.Skip {
					flag = "skipped"
				}
				b.WriteString(fmt.Sprintf("%-24s %-24s %-8s last sync: %s %s\n",
					account.ID, account.Name, account.Provider, lastSync, flag))
			}
			fmt.Println(cli.RenderBox(fmt.Sprintf("Accounts (%d)", len(accounts)), strings.TrimRight(b.String(), "\n")))
			return nil
		},
	}
}

func accountsAddCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add <id>",
		Short: "Add an account to the directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			store, err := openStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			name, _ := cmd.Flags().GetString("name")
			provider, _ := cmd.Flags().GetString("provider")
			if name == "" {
				name = args[0]
			}

			account := model.Account{ID: args[0], Name: name, Provider: provider}
			if err := store.UpsertAccount(ctx, account); err != nil {
				return err
			}
			slog.Info(cli.FormatSuccess(fmt.Sprintf("Added account %s", args[0])))
			return nil
		},
	}

	cmd.Flags().String("name", "", "display name for the account")
	cmd.Flags().String("provider", "akahu", "provider the account belongs to")
	return cmd
}

func accountsSkipCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "skip <id>",
		Short: "Exclude an account from sync runs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return setAccountSkip(cmd, args[0], true)
		},
	}
}

func accountsUnskipCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unskip <id>",
		Short: "Re-include an account in sync runs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return setAccountSkip(cmd, args[0], false)
		},
	}
}

func setAccountSkip(cmd *cobra.Command, accountID string, skip bool) error {
	ctx := cmd.Context()

	store, err := openStorage(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	if err := store.SetSkip(ctx, accountID, skip); err != nil {
		return err
	}

	if skip {
		slog.Info(cli.FormatSuccess(fmt.Sprintf("Account %s will be skipped", accountID)))
	} else {
		slog.Info(cli.FormatSuccess(fmt.Sprintf("Account %s re-enabled", accountID)))
	}
	return nil
}

func accountsDiscoverCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "discover",
		Short: "Seed the directory from the Akahu accounts endpoint",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			store, err := openStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			client, err := akahu.NewClient(akahu.Config{
				Endpoint:  viper.GetString("akahu.endpoint"),
				AppToken:  viper.GetString("akahu.app_token"),
				UserToken: viper.GetString("akahu.user_token"),
			})
			if err != nil {
				return err
			}

			accounts, err := client.ListAccounts(ctx)
			if err != nil {
				return fmt.Errorf("failed to fetch accounts: %w", err)
			}

			for _, account := range accounts {
				if err := store.UpsertAccount(ctx, account); err != nil {
					return err
				}
			}

			slog.Info(cli.FormatSuccess(fmt.Sprintf("Discovered %d accounts", len(accounts))))
			return nil
		},
	}
}
