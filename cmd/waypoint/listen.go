package main

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/aretw0/waypoint"
	"github.com/aretw0/waypoint/internal/cli"
	"github.com/aretw0/waypoint/internal/presentation/tui"
	httpAdapter "github.com/aretw0/waypoint/pkg/adapters/http"
	"github.com/aretw0/waypoint/pkg/adapters/console"
	"github.com/aretw0/waypoint/pkg/loader"
	"github.com/aretw0/waypoint/pkg/realtime"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

var listenCmd = &cobra.Command{
	Use:   "listen",
	Short: "Join the push channel and show experiences as they arrive",
	Long: `Connects to the realtime socket for an account and user, fetches pushed experiences
from the API and presents them with the console container until interrupted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		applyListenFlags(cmd)
		if cfg.Realtime.URL == "" || cfg.API.BaseURL == "" {
			return errors.New("realtime.url and api.base_url are required")
		}
		log := logger()

		ctx := cli.NewSignalContext(cmd.Context())
		defer ctx.Cancel()

		reg := prometheus.NewRegistry()
		store, err := newStorage(log, reg)
		if err != nil {
			return err
		}
		defer store.close()

		source, err := httpAdapter.NewSource(cfg.API.BaseURL,
			httpAdapter.WithHTTPClient(&http.Client{Timeout: cfg.API.Timeout}),
			httpAdapter.WithBearerToken(func() string { return cfg.API.Token }),
		)
		if err != nil {
			return err
		}

		render, err := tui.NewRenderer(80)
		if err != nil {
			return err
		}
		factory := console.NewFactory(os.Stdout, console.WithRenderer(render), console.WithLogger(log))

		opts := []waypoint.Option{
			waypoint.WithContainerFactory(factory),
			waypoint.WithSurface("terminal"),
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

		channel, err := realtime.New(cfg.Realtime.URL,
			realtime.WithHandler(loader.NewPushHandler(sdk.Loader(), 30*time.Second)),
			realtime.WithToken(func() string { return cfg.Realtime.Token }),
			realtime.WithReconnectDelay(cfg.Realtime.Reconnect),
			realtime.WithLogger(log),
		)
		if err != nil {
			return err
		}
		defer channel.Close()

		if err := channel.Connect(ctx, cfg.Realtime.AccountID, cfg.Realtime.UserID); err != nil {
			return fmt.Errorf("join %s: %w", realtime.Topic(cfg.Realtime.AccountID, cfg.Realtime.UserID), err)
		}
		tui.PrintBanner(os.Stdout, waypoint.Version)
		log.Info("listening for experiences", "account_id", cfg.Realtime.AccountID, "user_id", cfg.Realtime.UserID)

		if cfg.Metrics.Addr == "" {
			<-ctx.Done()
			return nil
		}
		server := httpAdapter.NewServer(sdk, httpAdapter.WithGatherer(reg), httpAdapter.WithLogger(log))
		if err := sdk.Attach(ctx, server); err != nil {
			return err
		}
		return serveHTTP(ctx, &http.Server{Addr: cfg.Metrics.Addr, Handler: server.Handler()}, log)
	},
}

func applyListenFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	overrides := map[string]*string{
		"url":          &cfg.Realtime.URL,
		"account":      &cfg.Realtime.AccountID,
		"user":         &cfg.Realtime.UserID,
		"token":        &cfg.Realtime.Token,
		"api":          &cfg.API.BaseURL,
		"api-token":    &cfg.API.Token,
		"redis":        &cfg.Redis.Addr,
		"metrics-addr": &cfg.Metrics.Addr,
	}
	for name, target := range overrides {
		if flags.Changed(name) {
			*target, _ = flags.GetString(name)
		}
	}
}

func init() {
	rootCmd.AddCommand(listenCmd)
	listenCmd.Flags().String("url", "", "Realtime socket URL (overrides realtime.url)")
	listenCmd.Flags().String("account", "", "Account id")
	listenCmd.Flags().String("user", "", "User id")
	listenCmd.Flags().String("token", "", "Realtime bearer token")
	listenCmd.Flags().String("api", "", "Experience API base URL")
	listenCmd.Flags().String("api-token", "", "Experience API bearer token")
	listenCmd.Flags().String("redis", "", "Redis address for caching and event queueing")
	listenCmd.Flags().String("metrics-addr", "", "Serve /metrics and the debug API on this address")
}
