package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/aretw0/waypoint/pkg/adapters/memory"
	"github.com/aretw0/waypoint/pkg/adapters/redis"
	"github.com/aretw0/waypoint/pkg/analytics"
	"github.com/aretw0/waypoint/pkg/persistence/middleware"
	"github.com/aretw0/waypoint/pkg/ports"
	"github.com/prometheus/client_golang/prometheus"
)

// storage is the cache and sink set chosen by the redis config.
type storage struct {
	cache ports.ExperienceCache
	sinks []ports.EventSink
	close func() error
}

// newStorage wires redis when an address is configured and falls back to
// memory otherwise. Metrics and logs are always sinks.
func newStorage(log *slog.Logger, reg prometheus.Registerer) (*storage, error) {
	metrics, err := analytics.NewMetricsSink(reg)
	if err != nil {
		return nil, fmt.Errorf("register metrics: %w", err)
	}
	s := &storage{
		cache: memory.NewCache(),
		sinks: []ports.EventSink{analytics.NewLogSink(log), metrics},
		close: func() error { return nil },
	}
	if cfg.Redis.Addr == "" {
		return s, nil
	}

	cache := redis.NewCache(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, redis.WithTTL(cfg.Redis.TTL))
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := cache.Client().Ping(ctx).Err(); err != nil {
		_ = cache.Close()
		return nil, fmt.Errorf("redis %s: %w", cfg.Redis.Addr, err)
	}
	log.Info("using redis", "addr", cfg.Redis.Addr, "queue", cfg.Redis.QueueKey)

	s.cache, err = protect(cache)
	if err != nil {
		_ = cache.Close()
		return nil, err
	}
	s.sinks = append(s.sinks, redis.NewEventQueue(cache.Client(), cfg.Redis.QueueKey, cfg.Redis.QueueLimit))
	s.close = cache.Close
	return s, nil
}

// protect masks and seals experiences before they reach shared storage.
func protect(cache ports.ExperienceCache) (ports.ExperienceCache, error) {
	var mws []middleware.Middleware
	if len(cfg.Redis.MaskContext) > 0 {
		mask, err := middleware.NewPIIMiddleware(cfg.Redis.MaskContext)
		if err != nil {
			return nil, err
		}
		mws = append(mws, mask)
	}
	active, fallback, err := cfg.Redis.Keys()
	if err != nil {
		return nil, err
	}
	if active != nil {
		seal, err := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: active, FallbackKeys: fallback})
		if err != nil {
			return nil, err
		}
		mws = append(mws, seal)
	}
	return middleware.Chain(cache, mws...), nil
}

// serveHTTP runs srv until ctx is done, then shuts it down gracefully.
func serveHTTP(ctx context.Context, srv *http.Server, log *slog.Logger) error {
	serverErrors := make(chan error, 1)
	go func() {
		log.Info("http server listening", "addr", srv.Addr)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("graceful shutdown did not complete", "err", err)
		return srv.Close()
	}
	return nil
}
