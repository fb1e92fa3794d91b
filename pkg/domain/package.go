package domain

import "github.com/google/uuid"

// Surface is an opaque handle to the host's current top-level UI surface.
// Only the platform layer knows what it points to.
type Surface interface{}

// Container is the presentable unit built by a composer.
// The state machine depends on nothing else from the rendering layer.
type Container interface {
	// Present shows the container on surface. done is invoked once the
	// container is on screen; an error means nothing was shown.
	Present(surface Surface, done func()) error

	// Dismiss tears the container down and invokes done afterwards.
	// done may run asynchronously (animation completion).
	Dismiss(done func())

	// Navigate switches the visible page within the container.
	Navigate(page int)
}

// Package owns a container for one step group and the identities of the
// step children rendered inside it.
type Package struct {
	Container Container
	Group     int
	StepIDs   []uuid.UUID
	Traits    []Trait
}

// Holds reports whether the target step child already lives in this package.
func (p *Package) Holds(idx StepIndex) bool {
	return p != nil && idx.Group == p.Group && idx.Item >= 0 && idx.Item < len(p.StepIDs)
}
