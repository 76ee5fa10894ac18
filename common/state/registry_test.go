package state

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/lyzr/teststate/common/cache"
	"github.com/lyzr/teststate/common/docstore"
	"github.com/lyzr/teststate/common/logger"
	"github.com/lyzr/teststate/common/models"
	"github.com/lyzr/teststate/common/tenant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryBuildsOneManagerPerTenant(t *testing.T) {
	ctx := context.Background()
	reg := NewRegistry(RegistryConfig{Store: docstore.NewMemoryStore(), Options: []Option{WithClock(fixedClock)}})
	defer reg.Close()

	var wg sync.WaitGroup
	managers := make([]*Manager, 8)
	for i := range managers {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			m, err := reg.Get(ctx, "client_A")
			assert.NoError(t, err)
			managers[i] = m
		}(i)
	}
	wg.Wait()
	for _, m := range managers[1:] {
		assert.Same(t, managers[0], m)
	}

	_, err := reg.Get(ctx, "client_B")
	require.NoError(t, err)
	assert.Equal(t, []string{"client_A", "client_B"}, reg.Tenants())
}

func TestRegistryIsolatesTenants(t *testing.T) {
	ctx := context.Background()
	reg := NewRegistry(RegistryConfig{Store: docstore.NewMemoryStore()})
	defer reg.Close()

	a, err := reg.Get(ctx, "client_A")
	require.NoError(t, err)
	b, err := reg.Get(ctx, "client_B")
	require.NoError(t, err)

	_, err = a.CreateTestCase(ctx, &models.TestCase{TestID: "TC_SHARED"})
	require.NoError(t, err)
	_, err = b.CreateTestCase(ctx, &models.TestCase{TestID: "TC_SHARED"})
	require.NoError(t, err)

	got, err := b.GetTestCase(ctx, "TC_SHARED")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "client_B", got.Hospital)
}

func TestRegistryRejectsTenants(t *testing.T) {
	ctx := context.Background()
	reg := NewRegistry(RegistryConfig{
		Store:   docstore.NewMemoryStore(),
		Allowed: []string{"client_A"},
	})

	_, err := reg.Get(ctx, "client_B")
	assert.ErrorIs(t, err, ErrTenantNotAllowed)

	_, err = reg.Get(ctx, "bad tenant/id")
	assert.ErrorIs(t, err, tenant.ErrInvalidTenant)

	_, err = reg.Get(ctx, "client_A")
	assert.NoError(t, err)

	require.NoError(t, reg.Close())
	assert.Empty(t, reg.Tenants())
	_, err = reg.Get(ctx, "client_A")
	assert.ErrorIs(t, err, docstore.ErrUnavailable)
}

func TestRegistryCacheFactory(t *testing.T) {
	ctx := context.Background()
	var built []string
	reg := NewRegistry(RegistryConfig{
		Store:  docstore.NewMemoryStore(),
		Logger: logger.Discard(),
		NewCache: func(tc *tenant.Context) (cache.Cache, error) {
			built = append(built, tc.ID())
			if tc.ID() == "client_broken" {
				return nil, errors.New("redis down")
			}
			return cache.NewMemoryCache(logger.Discard(), nil), nil
		},
	})
	defer reg.Close()

	m, err := reg.Get(ctx, "client_A")
	require.NoError(t, err)
	require.NoError(t, m.CacheContext(ctx, "h", map[string]any{"k": 1}, 0))
	_, found, err := m.CachedContext(ctx, "h")
	require.NoError(t, err)
	assert.True(t, found)

	_, err = reg.Get(ctx, "client_A")
	require.NoError(t, err)

	_, err = reg.Get(ctx, "client_broken")
	assert.ErrorContains(t, err, "redis down")
	assert.Equal(t, []string{"client_A", "client_broken"}, built)
	assert.Equal(t, []string{"client_A"}, reg.Tenants())
}

type closeCountingCache struct {
	*cache.MemoryCache
	closed *atomic.Int32
}

func (c closeCountingCache) Close() error {
	c.closed.Add(1)
	return c.MemoryCache.Close()
}

func TestRegistryClosesCacheWhenManagerFails(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemoryStore()
	require.NoError(t, store.Close(ctx))

	var closed atomic.Int32
	reg := NewRegistry(RegistryConfig{
		Store: store,
		NewCache: func(*tenant.Context) (cache.Cache, error) {
			return closeCountingCache{MemoryCache: cache.NewMemoryCache(logger.Discard(), nil), closed: &closed}, nil
		},
	})

	for range 3 {
		_, err := reg.Get(ctx, "client_A")
		assert.ErrorIs(t, err, docstore.ErrUnavailable)
	}
	assert.EqualValues(t, 3, closed.Load())
	assert.Empty(t, reg.Tenants())
}

func TestRegistryFailedGetsDoNotLeakGoroutines(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemoryStore()
	require.NoError(t, store.Close(ctx))

	reg := NewRegistry(RegistryConfig{
		Store: store,
		NewCache: func(*tenant.Context) (cache.Cache, error) {
			return cache.NewMemoryCache(logger.Discard(), nil), nil
		},
	})

	before := runtime.NumGoroutine()
	for range 100 {
		_, err := reg.Get(ctx, "client_A")
		require.Error(t, err)
	}
	require.NoError(t, reg.Close())

	assert.Eventually(t, func() bool {
		return runtime.NumGoroutine() <= before+5
	}, 2*time.Second, 10*time.Millisecond)
}
