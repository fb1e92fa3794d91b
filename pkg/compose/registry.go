package compose

import (
	"fmt"
	"sort"
	"sync"
)

// TraitFactory builds a trait from its authored configuration.
type TraitFactory func(config map[string]any) (Trait, error)

// Registry maps trait type names to factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]TraitFactory
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]TraitFactory),
	}
}

// DefaultRegistry returns a registry holding the built-in traits.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(TraitModal, newModal)
	r.Register(TraitTooltip, newTooltip)
	r.Register(TraitEmbed, newEmbed)
	r.Register(TraitSkippable, newSkippable)
	r.Register(TraitBackdrop, newBackdrop)
	r.Register(TraitCarousel, newCarousel)
	return r
}

// Register adds a factory. An existing factory with the same name is overwritten.
func (r *Registry) Register(name string, fn TraitFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = fn
}

// Build looks up the factory for name and runs it.
func (r *Registry) Build(name string, config map[string]any) (Trait, error) {
	r.mu.RLock()
	fn, ok := r.factories[name]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTrait, name)
	}

	trait, err := fn(config)
	if err != nil {
		return nil, fmt.Errorf("trait %s: %w", name, err)
	}
	return trait, nil
}

// Names lists the registered trait types, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
