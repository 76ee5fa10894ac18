package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/lyzr/teststate/common/docstore"
	"github.com/lyzr/teststate/common/tenant"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 11, 3, 9, 30, 0, 123456789, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTenant(t *testing.T, id string) *tenant.Context {
	t.Helper()
	tc, err := tenant.New(id, "")
	require.NoError(t, err)
	return tc
}

// newIndexedStore returns a memory store with the indexes of the given tenants.
func newIndexedStore(t *testing.T, tenants ...*tenant.Context) docstore.Store {
	t.Helper()
	store := docstore.NewMemoryStore()
	for _, tc := range tenants {
		require.NoError(t, EnsureIndexes(context.Background(), store, tc))
	}
	return store
}
