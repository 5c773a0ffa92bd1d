package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	backend "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/lattice-run/lattice/internal/logging"
	httpadapter "github.com/lattice-run/lattice/pkg/adapters/http"
	"github.com/lattice-run/lattice/pkg/adapters/lua"
	"github.com/lattice-run/lattice/pkg/adapters/memory"
	redisadapter "github.com/lattice-run/lattice/pkg/adapters/redis"
	"github.com/lattice-run/lattice/pkg/observability"
	"github.com/lattice-run/lattice/pkg/ports"
	"github.com/lattice-run/lattice/pkg/session"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the session API over HTTP",
	Long: `Exposes simulation sessions over a JSON API. Snapshots are kept in memory
by default; pass --redis to persist them (and coordinate replicas) through a
Redis instance.`,
	Run: func(cmd *cobra.Command, args []string) {
		addr, _ := cmd.Flags().GetString("addr")
		metricsAddr, _ := cmd.Flags().GetString("metrics-addr")
		redisAddr, _ := cmd.Flags().GetString("redis")
		debug, _ := cmd.Flags().GetBool("debug")

		level := slog.LevelInfo
		if debug {
			level = slog.LevelDebug
		}
		logger := logging.New(level)

		metrics := observability.NewMetrics(prometheus.DefaultRegisterer)

		var store ports.SnapshotStore
		managerOpts := []session.Option{session.WithLogger(logger)}
		if redisAddr != "" {
			client := backend.NewClient(&backend.Options{Addr: redisAddr})
			store = redisadapter.NewFromClient(client)
			managerOpts = append(managerOpts,
				session.WithLocker(redisadapter.NewLocker(client, "lattice:session:")))
			logger.Info("using redis snapshot store", "addr", redisAddr)
		} else {
			store = memory.NewStore()
			logger.Info("using in-memory snapshot store")
		}

		factory := session.NewEngineFactory(
			func() ports.ActionEvaluator { return lua.New() },
			metrics.Hooks(),
			logger,
		)
		sessions := session.NewManager(store, factory, managerOpts...)

		go func() {
			http.Handle("/metrics", promhttp.Handler())
			logger.Info("metrics listening", "addr", metricsAddr)
			if err := http.ListenAndServe(metricsAddr, nil); err != nil {
				logger.Error("metrics server failed", "err", err)
			}
		}()

		handler := httpadapter.NewHandler(sessions, httpadapter.WithLogger(logger))
		logger.Info("session api listening", "addr", addr)
		if err := http.ListenAndServe(addr, handler); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", ":8080", "Address for the session API")
	serveCmd.Flags().String("metrics-addr", ":2112", "Address for the Prometheus /metrics endpoint")
	serveCmd.Flags().String("redis", "", "Redis address for snapshot persistence (empty = in-memory)")
}
