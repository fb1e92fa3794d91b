package loader

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/aretw0/waypoint/internal/logging"
	"github.com/aretw0/waypoint/pkg/domain"
	"github.com/aretw0/waypoint/pkg/ports"
)

// Trigger records what caused a load.
type Trigger string

const (
	TriggerManual   Trigger = "manual"
	TriggerPush     Trigger = "push"
	TriggerDeepLink Trigger = "deep_link"
	TriggerPreview  Trigger = "preview"
)

// Starter begins presenting a fetched experience.
type Starter interface {
	Start(ctx context.Context, exp *domain.Experience, trigger Trigger) error
}

// StarterFunc adapts a plain function to Starter.
type StarterFunc func(ctx context.Context, exp *domain.Experience, trigger Trigger) error

// Start calls f.
func (f StarterFunc) Start(ctx context.Context, exp *domain.Experience, trigger Trigger) error {
	return f(ctx, exp, trigger)
}

type request struct {
	experienceID string
	published    bool
	trigger      Trigger
}

// Loader fetches experiences and hands them to a Starter.
type Loader struct {
	source  ports.ExperienceSource
	cache   ports.ExperienceCache
	starter Starter
	logger  *slog.Logger

	mu            sync.Mutex
	surfaceActive bool
	pending       []request
}

// Option configures the Loader.
type Option func(*Loader)

// WithCache consults cache before the source for published experiences.
func WithCache(cache ports.ExperienceCache) Option {
	return func(l *Loader) {
		l.cache = cache
	}
}

// WithLogger sets a structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Loader) {
		l.logger = logger
	}
}

// WithSurfaceActive sets the initial surface state. Loaders start inactive.
func WithSurfaceActive(active bool) Option {
	return func(l *Loader) {
		l.surfaceActive = active
	}
}

// New creates a loader.
func New(source ports.ExperienceSource, starter Starter, opts ...Option) *Loader {
	l := &Loader{
		source:  source,
		starter: starter,
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load fetches the experience and starts it. While no surface is active the
// request is queued and Load returns nil.
func (l *Loader) Load(ctx context.Context, experienceID string, published bool, trigger Trigger) error {
	if experienceID == "" {
		return fmt.Errorf("%w: empty id", domain.ErrExperienceNotFound)
	}

	l.mu.Lock()
	if !l.surfaceActive {
		l.pending = append(l.pending, request{experienceID: experienceID, published: published, trigger: trigger})
		l.mu.Unlock()
		l.logger.Debug("deferring experience load until a surface is active", "experience_id", experienceID, "trigger", trigger)
		return nil
	}
	l.mu.Unlock()

	return l.load(ctx, request{experienceID: experienceID, published: published, trigger: trigger})
}

// SetSurfaceActive records whether the host has a UI surface. Becoming active
// replays queued requests in order; failures are logged and do not stop the
// replay.
func (l *Loader) SetSurfaceActive(ctx context.Context, active bool) {
	l.mu.Lock()
	l.surfaceActive = active
	var queued []request
	if active {
		queued = l.pending
		l.pending = nil
	}
	l.mu.Unlock()

	for _, req := range queued {
		if err := l.load(ctx, req); err != nil {
			l.logger.Warn("deferred experience load failed", "experience_id", req.experienceID, "err", err)
		}
	}
}

// Pending is the number of queued requests.
func (l *Loader) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.pending)
}

// Invalidate drops any cached copy of the experience.
func (l *Loader) Invalidate(ctx context.Context, experienceID string) error {
	if l.cache == nil {
		return nil
	}
	return l.cache.Delete(ctx, experienceID)
}

func (l *Loader) load(ctx context.Context, req request) error {
	exp, err := l.fetch(ctx, req.experienceID, req.published)
	if err != nil {
		return err
	}
	if err := exp.Validate(); err != nil {
		return err
	}

	l.logger.Info("starting experience", "experience_id", exp.ID, "name", exp.Name, "trigger", req.trigger)
	if err := l.starter.Start(ctx, exp.WithInstance(), req.trigger); err != nil {
		return fmt.Errorf("failed to start experience %s: %w", req.experienceID, err)
	}
	return nil
}

// fetch reads through the cache. Drafts are never cached.
func (l *Loader) fetch(ctx context.Context, id string, published bool) (*domain.Experience, error) {
	useCache := l.cache != nil && published
	if useCache {
		exp, err := l.cache.Get(ctx, id)
		switch {
		case err == nil && exp != nil:
			l.logger.Debug("experience cache hit", "experience_id", id)
			return exp, nil
		case err != nil && !errors.Is(err, domain.ErrExperienceNotFound):
			l.logger.Warn("experience cache read failed", "experience_id", id, "err", err)
		}
	}

	exp, err := l.source.Fetch(ctx, id, published)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch experience %s: %w", id, err)
	}

	if useCache {
		if err := l.cache.Put(ctx, id, exp); err != nil {
			l.logger.Warn("experience cache write failed", "experience_id", id, "err", err)
		}
	}
	return exp, nil
}
