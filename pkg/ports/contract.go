package ports

import (
	"context"
	"testing"

	"github.com/aretw0/waypoint/pkg/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunExperienceCacheContract checks the behavior every ExperienceCache must share.
func RunExperienceCacheContract(t *testing.T, cache ExperienceCache) {
	ctx := context.Background()
	exp := &domain.Experience{
		ID:        uuid.New(),
		Name:      "Contract",
		Published: true,
		Steps: []domain.Step{{
			ID:       uuid.New(),
			Children: []domain.StepChild{{ID: uuid.New(), Type: "modal"}},
		}},
	}
	key := exp.ID.String()

	t.Run("Put and Get", func(t *testing.T) {
		require.NoError(t, cache.Put(ctx, key, exp))

		got, err := cache.Get(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, exp.ID, got.ID)
		assert.Equal(t, exp.Name, got.Name)
		assert.Equal(t, exp.Steps[0].Children[0].ID, got.Steps[0].Children[0].ID)
	})

	t.Run("Get Missing", func(t *testing.T) {
		_, err := cache.Get(ctx, "missing-"+key)
		assert.ErrorIs(t, err, domain.ErrExperienceNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, cache.Put(ctx, key, exp))
		require.NoError(t, cache.Delete(ctx, key))

		_, err := cache.Get(ctx, key)
		assert.ErrorIs(t, err, domain.ErrExperienceNotFound)

		assert.NoError(t, cache.Delete(ctx, key), "deleting twice is harmless")
	})
}
