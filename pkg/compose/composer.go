package compose

import (
	"fmt"
	"log/slog"

	"github.com/aretw0/waypoint/internal/logging"
	"github.com/aretw0/waypoint/pkg/domain"
	"github.com/aretw0/waypoint/pkg/ports"
	"github.com/google/uuid"
)

// Spec is everything a ContainerFactory needs to build a container.
type Spec struct {
	Experience   *domain.Experience
	Group        int
	StartPage    int
	Children     []domain.StepChild
	Presentation Presentation

	// Events receives the container's lifecycle notifications.
	Events ports.ContainerEvents
}

// ContainerFactory creates the platform container for a composed step group.
type ContainerFactory interface {
	NewContainer(spec Spec) (domain.Container, error)
}

// ContainerFactoryFunc adapts a plain function to ContainerFactory.
type ContainerFactoryFunc func(spec Spec) (domain.Container, error)

// NewContainer calls f.
func (f ContainerFactoryFunc) NewContainer(spec Spec) (domain.Container, error) {
	return f(spec)
}

// TraitComposer resolves the traits of a step group and asks a factory for
// the container. It implements ports.Composer.
type TraitComposer struct {
	registry *Registry
	factory  ContainerFactory
	events   ports.ContainerEvents
	logger   *slog.Logger
}

// Option configures the TraitComposer.
type Option func(*TraitComposer)

// WithRegistry replaces the built-in trait registry.
func WithRegistry(r *Registry) Option {
	return func(c *TraitComposer) {
		c.registry = r
	}
}

// WithEvents routes container lifecycle notifications to events.
func WithEvents(events ports.ContainerEvents) Option {
	return func(c *TraitComposer) {
		c.events = events
	}
}

// WithLogger sets a structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *TraitComposer) {
		c.logger = logger
	}
}

// New creates a composer that builds containers with factory.
func New(factory ContainerFactory, opts ...Option) *TraitComposer {
	c := &TraitComposer{
		registry: DefaultRegistry(),
		factory:  factory,
		events:   ports.NopContainerEvents{},
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Compose builds the package for the group containing idx. The package holds
// every child of that group so in-group navigation reuses the container.
func (c *TraitComposer) Compose(exp *domain.Experience, idx domain.StepIndex) (*domain.Package, error) {
	step, ok := exp.Step(idx)
	if !ok {
		return nil, fmt.Errorf("step %s out of range", idx)
	}

	traits := Resolve(exp, step)
	presentation, err := c.Presentation(traits)
	if err != nil {
		return nil, err
	}

	container, err := c.factory.NewContainer(Spec{
		Experience:   exp,
		Group:        idx.Group,
		StartPage:    idx.Item,
		Children:     step.Children,
		Presentation: presentation,
		Events:       c.events,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create container: %w", err)
	}

	ids := make([]uuid.UUID, 0, len(step.Children))
	for _, child := range step.Children {
		ids = append(ids, child.ID)
	}

	c.logger.Debug("composed step group",
		"experience", exp.ID, "group", idx.Group, "pages", len(ids), "style", presentation.Style)

	return &domain.Package{
		Container: container,
		Group:     idx.Group,
		StepIDs:   ids,
		Traits:    traits,
	}, nil
}

// Presentation builds and applies traits. Decorating traits are applied after
// the presenting one regardless of authored order.
func (c *TraitComposer) Presentation(traits []domain.Trait) (Presentation, error) {
	var presenting Trait
	var presentingType string
	var decorating []Trait

	for _, t := range traits {
		built, err := c.registry.Build(t.Type, t.Config)
		if err != nil {
			return Presentation{}, err
		}
		if !built.Presenting() {
			decorating = append(decorating, built)
			continue
		}
		if presenting != nil {
			return Presentation{}, fmt.Errorf("%w: %s and %s", ErrConflictingTraits, presentingType, t.Type)
		}
		presenting, presentingType = built, t.Type
	}
	if presenting == nil {
		return Presentation{}, ErrNoPresentingTrait
	}

	var p Presentation
	presenting.Apply(&p)
	for _, t := range decorating {
		t.Apply(&p)
	}
	return p, nil
}

// Resolve merges experience, group and page traits. A trait type declared at
// a more specific level replaces the same type from an outer level.
func Resolve(exp *domain.Experience, step *domain.Step) []domain.Trait {
	var order []string
	byType := make(map[string]domain.Trait)
	add := func(traits []domain.Trait) {
		for _, t := range traits {
			if _, seen := byType[t.Type]; !seen {
				order = append(order, t.Type)
			}
			byType[t.Type] = t
		}
	}

	add(exp.Traits)
	add(step.Traits)
	for _, child := range step.Children {
		add(child.Traits)
	}

	out := make([]domain.Trait, 0, len(order))
	for _, name := range order {
		out = append(out, byType[name])
	}
	return out
}
