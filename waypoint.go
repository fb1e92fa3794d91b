package waypoint

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/aretw0/waypoint/internal/logging"
	"github.com/aretw0/waypoint/internal/runtime"
	"github.com/aretw0/waypoint/pkg/analytics"
	"github.com/aretw0/waypoint/pkg/compose"
	"github.com/aretw0/waypoint/pkg/domain"
	"github.com/aretw0/waypoint/pkg/loader"
	"github.com/aretw0/waypoint/pkg/ports"
	"github.com/google/uuid"
)

var (
	// ErrClosed is returned once the SDK has been closed.
	ErrClosed = errors.New("sdk closed")

	// ErrNoSource is returned by Load when no experience source is configured.
	ErrNoSource = errors.New("no experience source configured")

	// ErrEnded is returned by Show and ShowStep when the experience ends
	// before the awaited step is on screen.
	ErrEnded = errors.New("experience ended")
)

// Observer receives every state change and reported error.
type Observer = runtime.Observer

// ObserverFunc adapts a plain function to Observer.
type ObserverFunc = runtime.ObserverFunc

// SDK owns a state machine and the goroutine it is confined to.
type SDK struct {
	machine *runtime.Machine
	loader  *loader.Loader
	logger  *slog.Logger

	// attached at the start of every experience; the machine drops them on idling
	observers []Observer

	mu      sync.Mutex
	queue   []func()
	wake    chan struct{}
	done    chan struct{}
	stopped chan struct{}
	once    sync.Once

	// loop-owned
	surface domain.Surface
}

type config struct {
	composer  ports.Composer
	factory   compose.ContainerFactory
	registry  *compose.Registry
	delegate  ports.Delegate
	source    ports.ExperienceSource
	cache     ports.ExperienceCache
	sinks     []ports.EventSink
	observers []Observer
	surface   domain.Surface
	logger    *slog.Logger
}

// Option configures the SDK.
type Option func(*config)

// WithComposer replaces trait-based composition entirely.
func WithComposer(c ports.Composer) Option {
	return func(cfg *config) {
		cfg.composer = c
	}
}

// WithContainerFactory composes with the built-in traits and builds
// containers with f. Containers receive lifecycle hooks through Spec.Events.
func WithContainerFactory(f compose.ContainerFactory) Option {
	return func(cfg *config) {
		cfg.factory = f
	}
}

// WithTraitRegistry replaces the built-in trait registry.
func WithTraitRegistry(r *compose.Registry) Option {
	return func(cfg *config) {
		cfg.registry = r
	}
}

// WithDelegate registers the host's presentation delegate.
func WithDelegate(d ports.Delegate) Option {
	return func(cfg *config) {
		cfg.delegate = d
	}
}

// WithSource enables Load and deep link dispatch.
func WithSource(s ports.ExperienceSource) Option {
	return func(cfg *config) {
		cfg.source = s
	}
}

// WithCache caches published experiences between loads.
func WithCache(c ports.ExperienceCache) Option {
	return func(cfg *config) {
		cfg.cache = c
	}
}

// WithSink adds an analytics sink. Multiple sinks are fanned out.
func WithSink(s ports.EventSink) Option {
	return func(cfg *config) {
		cfg.sinks = append(cfg.sinks, s)
	}
}

// WithObserver adds a state observer that is attached for every experience.
func WithObserver(o Observer) Option {
	return func(cfg *config) {
		cfg.observers = append(cfg.observers, o)
	}
}

// WithSurface sets the initial UI surface. Without one, presentation fails
// and loads are deferred until SetSurface is called.
func WithSurface(s domain.Surface) Option {
	return func(cfg *config) {
		cfg.surface = s
	}
}

// WithLogger sets a structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *config) {
		cfg.logger = logger
	}
}

// New creates an SDK and starts its loop.
func New(opts ...Option) (*SDK, error) {
	cfg := &config{
		delegate: ports.NopDelegate{},
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.composer == nil && cfg.factory == nil {
		return nil, fmt.Errorf("a composer or container factory is required")
	}

	s := &SDK{
		logger:    cfg.logger,
		observers: cfg.observers,
		wake:      make(chan struct{}, 1),
		done:      make(chan struct{}),
		stopped:   make(chan struct{}),
		surface:   cfg.surface,
	}

	composer := cfg.composer
	if composer == nil {
		composeOpts := []compose.Option{
			compose.WithEvents(containerEvents{s}),
			compose.WithLogger(cfg.logger),
		}
		if cfg.registry != nil {
			composeOpts = append(composeOpts, compose.WithRegistry(cfg.registry))
		}
		composer = compose.New(cfg.factory, composeOpts...)
	}

	s.machine = runtime.NewMachine(composer,
		runtime.WithExecutor(s),
		runtime.WithDelegate(cfg.delegate),
		runtime.WithSurfaceProvider(ports.SurfaceFunc(func() (domain.Surface, bool) {
			return s.surface, s.surface != nil
		})),
		runtime.WithLogger(cfg.logger),
	)

	switch len(cfg.sinks) {
	case 0:
	case 1:
		s.observers = append(s.observers, analytics.NewObserver(cfg.sinks[0], analytics.WithLogger(cfg.logger)))
	default:
		s.observers = append(s.observers, analytics.NewObserver(analytics.MultiSink(cfg.sinks), analytics.WithLogger(cfg.logger)))
	}

	if cfg.source != nil {
		loaderOpts := []loader.Option{
			loader.WithLogger(cfg.logger),
			loader.WithSurfaceActive(cfg.surface != nil),
		}
		if cfg.cache != nil {
			loaderOpts = append(loaderOpts, loader.WithCache(cfg.cache))
		}
		s.loader = loader.New(cfg.source, s, loaderOpts...)
	}

	go s.loop()
	return s, nil
}

func (s *SDK) loop() {
	defer close(s.stopped)
	for {
		select {
		case <-s.wake:
		case <-s.done:
			return
		}
		for {
			s.mu.Lock()
			if len(s.queue) == 0 {
				s.mu.Unlock()
				break
			}
			fn := s.queue[0]
			s.queue[0] = nil
			s.queue = s.queue[1:]
			s.mu.Unlock()
			fn()
		}
	}
}

// Do queues fn on the SDK goroutine. It never blocks, so containers may
// call back synchronously from inside the machine. It implements ports.Executor.
func (s *SDK) Do(fn func()) {
	s.mu.Lock()
	s.queue = append(s.queue, fn)
	s.mu.Unlock()
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// call runs fn on the loop and waits for it.
func (s *SDK) call(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	s.Do(func() {
		fn()
		close(finished)
	})
	select {
	case <-finished:
		return nil
	case <-s.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// await runs start on the loop and waits for it to resolve.
func (s *SDK) await(ctx context.Context, start func(resolve func(error))) error {
	result := make(chan error, 1)
	resolve := func(err error) {
		select {
		case result <- err:
		default:
		}
	}
	if err := s.call(ctx, func() { start(resolve) }); err != nil {
		return err
	}
	select {
	case err := <-result:
		return err
	case <-s.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops the loop. Any experience on screen is left as is.
func (s *SDK) Close() error {
	s.once.Do(func() {
		close(s.done)
	})
	<-s.stopped
	return nil
}

// State returns a copy of the machine state.
func (s *SDK) State() domain.State {
	var state domain.State
	if err := s.call(context.Background(), func() { state = s.machine.State() }); err != nil {
		return domain.Idling()
	}
	return state
}

// Show starts exp and waits until its first step is rendering. Experiences
// without an instance id get a fresh one.
func (s *SDK) Show(ctx context.Context, exp *domain.Experience) error {
	if exp.InstanceID == uuid.Nil {
		exp = exp.WithInstance()
	}
	return s.await(ctx, func(resolve func(error)) {
		if !s.machine.State().IsActive() {
			for _, o := range s.observers {
				s.machine.AddObserver(o)
			}
		}
		s.machine.TransitionAndObserve(domain.StartExperience(exp), exp.InstanceID, func(r domain.Result) bool {
			switch {
			case r.Failed():
				resolve(r.Err)
			case r.State.Kind == domain.StateRenderingStep:
				resolve(nil)
			case r.State.Kind == domain.StateIdling:
				resolve(ErrEnded)
			default:
				return false
			}
			return true
		})
	})
}

// Start implements loader.Starter.
func (s *SDK) Start(ctx context.Context, exp *domain.Experience, trigger loader.Trigger) error {
	s.logger.Debug("showing experience", "experience_id", exp.ID, "trigger", trigger)
	return s.Show(ctx, exp)
}

// ShowStep navigates the active experience and waits for the target step to
// render. A reference to the current step returns immediately.
func (s *SDK) ShowStep(ctx context.Context, ref domain.StepReference) error {
	return s.await(ctx, func(resolve func(error)) {
		current := s.machine.State()
		filter := uuid.Nil
		if current.Experience != nil {
			filter = current.Experience.InstanceID
		}
		if current.Kind == domain.StateRenderingStep {
			if target, ok := ref.Resolve(current.Experience, current.StepIndex); ok && target == current.StepIndex {
				resolve(nil)
				return
			}
		}
		s.machine.TransitionAndObserve(domain.StartStep(ref), filter, func(r domain.Result) bool {
			switch {
			case r.Failed():
				resolve(r.Err)
			case r.State.Kind == domain.StateRenderingStep:
				resolve(nil)
			case r.State.Kind == domain.StateIdling:
				resolve(ErrEnded)
			default:
				return false
			}
			return true
		})
	})
}

// Dismiss ends the active experience without marking it complete.
func (s *SDK) Dismiss(ctx context.Context) error {
	return s.End(ctx, false)
}

// End ends the active experience and waits until the machine is idling.
func (s *SDK) End(ctx context.Context, markComplete bool) error {
	return s.await(ctx, func(resolve func(error)) {
		s.machine.TransitionAndObserve(domain.EndExperience(markComplete), uuid.Nil, func(r domain.Result) bool {
			switch {
			case r.Failed():
				resolve(r.Err)
			case r.State.Kind == domain.StateIdling:
				resolve(nil)
			default:
				return false
			}
			return true
		})
	})
}

// Observe registers o until the machine next settles in idling. Called while
// idle, that covers the next experience shown. Use Attach for observers that
// should see every experience.
func (s *SDK) Observe(ctx context.Context, o Observer) (remove func(), err error) {
	err = s.call(ctx, func() {
		remove = s.machine.AddObserver(o)
	})
	if err != nil {
		return func() {}, err
	}
	return func() { s.Do(remove) }, nil
}

// Attach adds o for every experience from now on, including the active one.
func (s *SDK) Attach(ctx context.Context, o Observer) error {
	return s.call(ctx, func() {
		s.observers = append(s.observers, o)
		if s.machine.State().IsActive() {
			s.machine.AddObserver(o)
		}
	})
}

// SetSurface records the host's current UI surface. A non-nil surface replays
// loads that were deferred while none was available. Do not call it from a
// state observer.
func (s *SDK) SetSurface(ctx context.Context, surface domain.Surface) error {
	if err := s.call(ctx, func() { s.surface = surface }); err != nil {
		return err
	}
	if s.loader != nil {
		s.loader.SetSurfaceActive(ctx, surface != nil)
	}
	return nil
}

// Load fetches and shows an experience by id.
func (s *SDK) Load(ctx context.Context, experienceID string, published bool) error {
	if s.loader == nil {
		return ErrNoSource
	}
	return s.loader.Load(ctx, experienceID, published, loader.TriggerManual)
}

// Dispatch handles a resolved deep link.
func (s *SDK) Dispatch(ctx context.Context, req loader.Request) error {
	if s.loader == nil {
		return ErrNoSource
	}
	return s.loader.Dispatch(ctx, req)
}

// Loader returns the content loader, or nil without a source.
func (s *SDK) Loader() *loader.Loader {
	return s.loader
}

// containerEvents queues container lifecycle notifications onto the loop.
type containerEvents struct {
	sdk *SDK
}

func (e containerEvents) WillAppear()    { e.sdk.Do(e.sdk.machine.ContainerWillAppear) }
func (e containerEvents) DidAppear()     { e.sdk.Do(e.sdk.machine.ContainerDidAppear) }
func (e containerEvents) WillDisappear() { e.sdk.Do(e.sdk.machine.ContainerWillDisappear) }
func (e containerEvents) DidDisappear()  { e.sdk.Do(e.sdk.machine.ContainerDidDisappear) }
func (e containerEvents) Navigated(from, to int) {
	e.sdk.Do(func() { e.sdk.machine.ContainerNavigated(from, to) })
}
