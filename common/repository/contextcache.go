package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lyzr/teststate/common/cache"
	"github.com/lyzr/teststate/common/docstore"
	"github.com/lyzr/teststate/common/models"
	"github.com/lyzr/teststate/common/tenant"
)

// DefaultCacheTTL applies when Put is given a non-positive ttl.
const DefaultCacheTTL = cache.DefaultTTL

var _ cache.Cache = (*ContextCacheRepository)(nil)

// ContextCacheRepository is the document-store backed LLM context cache.
// Entries are upserted by prompt hash; expiry is checked on every read.
type ContextCacheRepository struct {
	base
}

// NewContextCacheRepository creates a new context cache
func NewContextCacheRepository(store docstore.Store, tc *tenant.Context, clock Clock) *ContextCacheRepository {
	return &ContextCacheRepository{base: newBase(store, tc, clock, CollContextCache)}
}

// Put replaces the entry for promptHash and extends its expiry to now+ttl.
// Concurrent puts are last-write-wins.
func (r *ContextCacheRepository) Put(ctx context.Context, promptHash string, data map[string]any, ttl time.Duration) error {
	if promptHash == "" {
		return fmt.Errorf("%w: prompt hash is required", ErrInvalid)
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if data == nil {
		data = map[string]any{}
	}

	now := r.now()
	update := docstore.Update{
		Set: map[string]any{
			"context_data": data,
			"created_at":   now,
			"expires_at":   now.Add(ttl),
		},
		Upsert: true,
	}
	filter := r.tenant.Scope(docstore.Eq("prompt_hash", promptHash))

	_, err := r.store.UpdateOne(ctx, r.ns, filter, update)
	if errors.Is(err, docstore.ErrDuplicateKey) {
		// Lost an upsert race on the unique key; the row exists now.
		_, err = r.store.UpdateOne(ctx, r.ns, filter, update)
	}
	if err != nil {
		return fmt.Errorf("failed to cache context: %w", err)
	}

	return nil
}

// Get returns the cached data if an unexpired entry exists. A miss is
// found == false, never an error.
func (r *ContextCacheRepository) Get(ctx context.Context, promptHash string) (map[string]any, bool, error) {
	raw, err := r.store.FindOne(ctx, r.ns, r.tenant.Scope(
		docstore.Eq("prompt_hash", promptHash),
		docstore.Gt("expires_at", r.now()),
	), nil)
	if err != nil {
		return nil, false, fmt.Errorf("failed to get cached context: %w", err)
	}

	entry, err := docstore.Decode[models.CacheEntry](raw)
	if err != nil || entry == nil {
		return nil, false, err
	}
	return entry.ContextData, true, nil
}
