package main

import (
	"net/http"
	"os"

	"github.com/aretw0/waypoint"
	"github.com/aretw0/waypoint/internal/cli"
	httpAdapter "github.com/aretw0/waypoint/pkg/adapters/http"
	"github.com/aretw0/waypoint/pkg/adapters/console"
	"github.com/aretw0/waypoint/pkg/adapters/memory"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the debug HTTP server over a directory of fixtures",
	Long: `Loads every experience fixture in a directory and exposes the SDK over HTTP:
trigger experiences, navigate steps, stream state changes and scrape metrics.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, _ := cmd.Flags().GetString("dir")
		addr, _ := cmd.Flags().GetString("addr")
		if !cmd.Flags().Changed("addr") && cfg.Metrics.Addr != "" {
			addr = cfg.Metrics.Addr
		}
		if cmd.Flags().Changed("redis") {
			cfg.Redis.Addr, _ = cmd.Flags().GetString("redis")
		}
		log := logger()

		ctx := cli.NewSignalContext(cmd.Context())
		defer ctx.Cancel()

		source := memory.NewSource()
		n, err := source.LoadDir(dir)
		if err != nil {
			return err
		}
		log.Info("loaded fixtures", "dir", dir, "count", n)

		reg := prometheus.NewRegistry()
		store, err := newStorage(log, reg)
		if err != nil {
			return err
		}
		defer store.close()

		opts := []waypoint.Option{
			waypoint.WithContainerFactory(console.NewFactory(os.Stdout, console.WithLogger(log))),
			waypoint.WithSurface("debug-server"),
			waypoint.WithSource(source),
			waypoint.WithCache(store.cache),
			waypoint.WithLogger(log),
		}
		for _, sink := range store.sinks {
			opts = append(opts, waypoint.WithSink(sink))
		}
		sdk, err := waypoint.New(opts...)
		if err != nil {
			return err
		}
		defer sdk.Close()

		server := httpAdapter.NewServer(sdk, httpAdapter.WithGatherer(reg), httpAdapter.WithLogger(log))
		if err := sdk.Attach(ctx, server); err != nil {
			return err
		}
		return serveHTTP(ctx, &http.Server{Addr: addr, Handler: server.Handler()}, log)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("dir", ".", "Directory containing experience fixtures")
	serveCmd.Flags().String("addr", ":8080", "Address to listen on")
	serveCmd.Flags().String("redis", "", "Redis address for caching and event queueing")
}
