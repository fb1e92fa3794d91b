package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/waypoint/internal/testutils"
	"github.com/aretw0/waypoint/pkg/adapters/redis"
	"github.com/aretw0/waypoint/pkg/domain"
	"github.com/aretw0/waypoint/pkg/ports"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newClient(t *testing.T) (*miniredis.Miniredis, *backend.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestCache_Contract(t *testing.T) {
	_, client := newClient(t)
	ports.RunExperienceCacheContract(t, redis.NewCacheFromClient(client))
}

func TestCache_RoundTrip(t *testing.T) {
	_, client := newClient(t)
	cache := redis.NewCacheFromClient(client)
	ctx := context.Background()

	exp := testutils.NewExperience(1, 2)
	id := exp.ID.String()

	_, err := cache.Get(ctx, id)
	assert.ErrorIs(t, err, domain.ErrExperienceNotFound)

	require.NoError(t, cache.Put(ctx, id, exp))

	got, err := cache.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, exp.ID, got.ID)
	assert.Equal(t, exp.Name, got.Name)
	assert.Equal(t, 3, got.StepCount())
	assert.Equal(t, exp.Steps[1].Children[1].ID, got.Steps[1].Children[1].ID)

	keys, err := cache.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{id}, keys)

	require.NoError(t, cache.Delete(ctx, id))
	require.NoError(t, cache.Delete(ctx, id))
	_, err = cache.Get(ctx, id)
	assert.ErrorIs(t, err, domain.ErrExperienceNotFound)
}

func TestCache_TTL(t *testing.T) {
	mr, client := newClient(t)
	cache := redis.NewCacheFromClient(client, redis.WithTTL(time.Second), redis.WithPrefix("test:"))
	ctx := context.Background()

	exp := testutils.NewExperience(1)
	id := exp.ID.String()
	require.NoError(t, cache.Put(ctx, id, exp))
	assert.True(t, mr.Exists("test:"+id))

	mr.FastForward(2 * time.Second)

	_, err := cache.Get(ctx, id)
	assert.ErrorIs(t, err, domain.ErrExperienceNotFound)
}

func TestCache_CorruptEntry(t *testing.T) {
	mr, client := newClient(t)
	cache := redis.NewCacheFromClient(client)
	require.NoError(t, mr.Set("waypoint:experience:bad", "{not json"))

	_, err := cache.Get(context.Background(), "bad")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrExperienceNotFound)
}

func TestEventQueue(t *testing.T) {
	_, client := newClient(t)
	queue := redis.NewEventQueue(client, "waypoint:events", 2)
	ctx := context.Background()

	events, err := queue.Drain(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, events)

	exp := testutils.NewExperience(1)
	for _, name := range []domain.EventName{domain.EventExperienceStarted, domain.EventStepSeen, domain.EventStepCompleted} {
		require.NoError(t, queue.Track(ctx, domain.LifecycleEvent{Name: name, ExperienceID: exp.ID, StepIndex: "0-0"}))
	}

	n, err := queue.Len(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n, "oldest events beyond the limit are dropped")

	events, err = queue.Drain(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, domain.EventStepSeen, events[0].Name)
	assert.Equal(t, domain.EventStepCompleted, events[1].Name)
	assert.Equal(t, exp.ID, events[0].ExperienceID)
}
