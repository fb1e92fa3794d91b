package ports

import (
	"context"

	"github.com/aretw0/waypoint/pkg/domain"
)

// ExperienceSource fetches experience definitions.
// Returns domain.ErrExperienceNotFound for unknown ids.
type ExperienceSource interface {
	Fetch(ctx context.Context, experienceID string, published bool) (*domain.Experience, error)
}

// ExperienceCache stores decoded experiences between fetches.
type ExperienceCache interface {
	Get(ctx context.Context, key string) (*domain.Experience, error)
	Put(ctx context.Context, key string, exp *domain.Experience) error
	Delete(ctx context.Context, key string) error
}
