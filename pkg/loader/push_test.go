package loader_test

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/waypoint/internal/testutils"
	"github.com/aretw0/waypoint/pkg/loader"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestPushHandler(t *testing.T) {
	ctx := context.Background()
	exp := testutils.NewExperience(1)
	id := exp.ID.String()

	t.Run("show_experience defaults to published", func(t *testing.T) {
		source := new(mockSource)
		source.On("Fetch", mock.Anything, id, true).Return(exp, nil).Once()
		starter := &recordingStarter{}
		h := loader.NewPushHandler(loader.New(source, starter, loader.WithSurfaceActive(true)), time.Second)

		h.HandleEvent(loader.EventShowExperience, map[string]any{"experience_id": id})

		source.AssertExpectations(t)
		require.Len(t, starter.calls, 1)
		assert.Equal(t, loader.TriggerPush, starter.calls[0].trigger)
	})

	t.Run("weakly typed published flag", func(t *testing.T) {
		source := new(mockSource)
		source.On("Fetch", mock.Anything, id, false).Return(exp, nil).Once()
		h := loader.NewPushHandler(loader.New(source, &recordingStarter{}, loader.WithSurfaceActive(true)), time.Second)

		require.NoError(t, h.Handle(ctx, loader.EventShowExperience, map[string]any{"experience_id": id, "published": "false"}))
		source.AssertExpectations(t)
	})

	t.Run("refresh_experience invalidates and reloads", func(t *testing.T) {
		source := new(mockSource)
		source.On("Fetch", mock.Anything, id, true).Return(exp, nil).Twice()
		cache := newMapCache()
		starter := &recordingStarter{}
		l := loader.New(source, starter, loader.WithSurfaceActive(true), loader.WithCache(cache))
		h := loader.NewPushHandler(l, time.Second)

		require.NoError(t, h.Handle(ctx, loader.EventShowExperience, map[string]any{"experience_id": id}))
		require.NoError(t, h.Handle(ctx, loader.EventRefreshExperience, map[string]any{"experience_id": id}))

		source.AssertExpectations(t)
		assert.Len(t, starter.calls, 2)
	})

	t.Run("malformed payloads", func(t *testing.T) {
		h := loader.NewPushHandler(loader.New(new(mockSource), &recordingStarter{}, loader.WithSurfaceActive(true)), time.Second)

		assert.Error(t, h.Handle(ctx, loader.EventShowExperience, map[string]any{}))
		assert.Error(t, h.Handle(ctx, loader.EventShowExperience, map[string]any{"experience_id": map[string]any{"nested": 1}}))
	})

	t.Run("unknown events are ignored", func(t *testing.T) {
		source := new(mockSource)
		h := loader.NewPushHandler(loader.New(source, &recordingStarter{}, loader.WithSurfaceActive(true)), time.Second)

		require.NoError(t, h.Handle(ctx, "presence_diff", map[string]any{"experience_id": id}))
		source.AssertNotCalled(t, "Fetch", mock.Anything, mock.Anything, mock.Anything)
	})
}
