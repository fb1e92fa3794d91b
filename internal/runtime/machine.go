package runtime

import (
	"log/slog"

	"github.com/aretw0/waypoint/internal/logging"
	"github.com/aretw0/waypoint/pkg/domain"
	"github.com/aretw0/waypoint/pkg/ports"
)

// Machine is the experience presentation state machine.
//
// It is not safe for concurrent use. Every call must happen on the execution
// context supplied via WithExecutor; container completions are routed back
// through that executor before touching the machine.
type Machine struct {
	state domain.State

	composer ports.Composer
	surfaces ports.SurfaceProvider
	delegate ports.Delegate
	executor ports.Executor
	logger   *slog.Logger

	observers []*observerEntry
}

// MachineOption configures the Machine.
type MachineOption func(*Machine)

// WithSurfaceProvider sets how the machine finds the host's current UI surface.
func WithSurfaceProvider(p ports.SurfaceProvider) MachineOption {
	return func(m *Machine) {
		m.surfaces = p
	}
}

// WithDelegate registers the host's presentation delegate.
func WithDelegate(d ports.Delegate) MachineOption {
	return func(m *Machine) {
		m.delegate = d
	}
}

// WithExecutor sets the context container completions are handed back to.
func WithExecutor(e ports.Executor) MachineOption {
	return func(m *Machine) {
		m.executor = e
	}
}

// WithLogger sets a structured logger for transition tracing.
func WithLogger(logger *slog.Logger) MachineOption {
	return func(m *Machine) {
		m.logger = logger
	}
}

// NewMachine creates an idling machine that builds packages with composer.
func NewMachine(composer ports.Composer, opts ...MachineOption) *Machine {
	m := &Machine{
		state:    domain.Idling(),
		composer: composer,
		surfaces: ports.SurfaceFunc(func() (domain.Surface, bool) { return struct{}{}, true }),
		delegate: ports.NopDelegate{},
		executor: ports.Inline,
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// State returns the live state.
func (m *Machine) State() domain.State {
	return m.state
}

// Transition applies action to the current state and executes the resulting
// side effect. The only error returned is an illegal transition; every other
// failure is delivered to observers.
func (m *Machine) Transition(action domain.MachineAction) error {
	t, ok := m.route(action)
	if !ok {
		m.logger.Debug("no transition", "state", m.state.Name(), "action", action.String())
		return domain.NoTransitionError(m.state)
	}
	return m.apply(action, t)
}

func (m *Machine) apply(action domain.MachineAction, t transition) error {
	if t.next != nil {
		m.logger.Debug("transition",
			"from", m.state.Name(),
			"action", action.String(),
			"to", t.next.Name(),
		)
		m.setState(*t.next)
	}
	if t.effect != nil {
		return m.execute(*t.effect)
	}
	return nil
}

// setState installs the new state and notifies observers.
// Returning to idling releases every persistent observer.
func (m *Machine) setState(s domain.State) {
	m.state = s
	m.notify(domain.Success(s))
	if s.Kind == domain.StateIdling {
		m.clearPersistent()
	}
}
