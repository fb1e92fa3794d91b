package ports

import "github.com/aretw0/waypoint/pkg/domain"

// Composer builds the presentable unit for a step. It may fail, for example
// when the traits attached to the step cannot be satisfied together.
type Composer interface {
	Compose(exp *domain.Experience, idx domain.StepIndex) (*domain.Package, error)
}

// ComposerFunc adapts a plain function to Composer.
type ComposerFunc func(exp *domain.Experience, idx domain.StepIndex) (*domain.Package, error)

// Compose calls f.
func (f ComposerFunc) Compose(exp *domain.Experience, idx domain.StepIndex) (*domain.Package, error) {
	return f(exp, idx)
}
