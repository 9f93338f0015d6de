package main

import (
	"context"
	"time"

	"github.com/morepork/akasync/internal/aggregator"
	"github.com/morepork/akasync/internal/metrics"
	"github.com/morepork/akasync/internal/server"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the sync HTTP server",
		Long: `Serve sync over HTTP: POST /sync triggers a run, GET /status reports
the last run, GET /metrics exposes Prometheus metrics. Intended for
driving syncs from a webhook or a cron job on another host.`,
		RunE: runServe,
	}

	cmd.Flags().String("addr", ":8080", "listen address")
	cmd.Flags().String("provider", "akahu", "transaction provider (akahu, plaid)")
	cmd.Flags().Int("workers", 4, "maximum concurrent account fetches")

	_ = viper.BindPFlag("server.addr", cmd.Flags().Lookup("addr"))
	_ = viper.BindPFlag("server.provider", cmd.Flags().Lookup("provider"))
	_ = viper.BindPFlag("server.workers", cmd.Flags().Lookup("workers"))

	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	store, err := openStorage(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	provider, err := buildProvider(viper.GetString("server.provider"))
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewMetrics(registry)

	agg := aggregator.NewAccountAggregator(provider,
		aggregator.WithMetrics(m),
		aggregator.WithSinceOverlap(defaultSinceOverlap))
	orch := aggregator.NewWithConfig(store, agg, aggregator.Config{
		Workers: viper.GetInt("server.workers"),
	})

	syncFn := func(ctx context.Context) (*aggregator.Result, error) {
		start := time.Now()

		result, err := orch.Run(ctx)
		if err != nil {
			m.RecordSyncRun("error", time.Since(start).Seconds())
			return nil, err
		}
		if _, err := persistResult(ctx, store, result); err != nil {
			m.RecordSyncRun("error", time.Since(start).Seconds())
			return nil, err
		}

		status := "ok"
		if len(result.Failures) > 0 {
			status = "partial"
		}
		m.RecordSyncRun(status, time.Since(start).Seconds())
		return result, nil
	}

	srv := server.New(viper.GetString("server.addr"), syncFn, registry)
	return srv.ListenAndServe(ctx)
}
