package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/morepork/akasync/internal/aggregator"
	"github.com/morepork/akasync/internal/akahu"
	"github.com/morepork/akasync/internal/config"
	"github.com/morepork/akasync/internal/plaid"
	"github.com/morepork/akasync/internal/service"
	"github.com/morepork/akasync/internal/storage"
	"github.com/spf13/viper"
)

// The original bank feeds deliver transactions late sometimes, so each
// sync refetches the week before the stored cursor. Duplicates are
// dropped by hash on insert.
const defaultSinceOverlap = 7 * 24 * time.Hour

func openStorage(ctx context.Context) (*storage.SQLiteStorage, error) {
	dbPath := config.ExpandPath(viper.GetString("database.path"))
	if dbPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		dbPath = filepath.Join(home, ".config", "akasync", "akasync.db")
	}

	store, err := storage.NewSQLiteStorage(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

func buildProvider(name string) (service.ProviderClient, error) {
	switch name {
	case "akahu":
		return akahu.NewClient(akahu.Config{
			Endpoint:  viper.GetString("akahu.endpoint"),
			AppToken:  viper.GetString("akahu.app_token"),
			UserToken: viper.GetString("akahu.user_token"),
		})
	case "plaid":
		cfg := plaid.Config{
			ClientID:    viper.GetString("plaid.client_id"),
			Secret:      viper.GetString("plaid.secret"),
			Environment: viper.GetString("plaid.environment"),
			AccessToken: viper.GetString("plaid.access_token"),
		}
		if cfg.Environment == "" {
			cfg.Environment = "sandbox"
		}
		return plaid.NewClient(cfg)
	default:
		return nil, fmt.Errorf("unknown provider %q (expected akahu or plaid)", name)
	}
}

// persistResult archives the run's transactions and advances the sync
// cursor for every account that fully succeeded. Partially failed
// accounts keep their old cursor so the next run refetches them.
func persistResult(ctx context.Context, store *storage.SQLiteStorage, result *aggregator.Result) (int, error) {
	inserted, err := store.SaveTransactions(ctx, result.Transactions)
	if err != nil {
		return 0, fmt.Errorf("failed to save transactions: %w", err)
	}

	for accountID, outcome := range result.Outcomes {
		if outcome.Status != aggregator.StatusSucceeded || outcome.LatestTransaction.IsZero() {
			continue
		}
		if err := store.AdvanceLastSync(ctx, accountID, outcome.LatestTransaction); err != nil {
			return inserted, fmt.Errorf("failed to advance sync cursor for %s: %w", accountID, err)
		}
	}
	return inserted, nil
}
