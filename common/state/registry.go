package state

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"sort"
	"sync"

	"github.com/lyzr/teststate/common/cache"
	"github.com/lyzr/teststate/common/docstore"
	"github.com/lyzr/teststate/common/logger"
	"github.com/lyzr/teststate/common/tenant"
)

// ErrTenantNotAllowed is returned for a well-formed tenant id that is not
// on the configured allow-list.
var ErrTenantNotAllowed = errors.New("tenant not allowed")

// CacheFactory builds the context cache for one tenant. Returning nil
// selects the store-backed cache.
type CacheFactory func(tc *tenant.Context) (cache.Cache, error)

// RegistryConfig configures a Registry
type RegistryConfig struct {
	Store           docstore.Store
	Logger          *logger.Logger
	NamespacePrefix string
	// Allowed restricts tenants when non-empty.
	Allowed  []string
	NewCache CacheFactory
	Options  []Option
}

// Registry hands out one Manager per tenant, building each on first use.
type Registry struct {
	cfg RegistryConfig

	mu       sync.Mutex
	managers map[string]*Manager
	closed   bool
}

// NewRegistry creates an empty registry
func NewRegistry(cfg RegistryConfig) *Registry {
	if cfg.Logger == nil {
		cfg.Logger = logger.Discard()
	}
	return &Registry{cfg: cfg, managers: make(map[string]*Manager)}
}

// Get returns the tenant's Manager, creating it if needed.
func (r *Registry) Get(ctx context.Context, hospitalID string) (*Manager, error) {
	tc, err := tenant.New(hospitalID, r.cfg.NamespacePrefix)
	if err != nil {
		return nil, err
	}
	if len(r.cfg.Allowed) > 0 && !slices.Contains(r.cfg.Allowed, hospitalID) {
		return nil, fmt.Errorf("%w: %s", ErrTenantNotAllowed, hospitalID)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, fmt.Errorf("registry closed: %w", docstore.ErrUnavailable)
	}
	if m, ok := r.managers[hospitalID]; ok {
		return m, nil
	}

	opts := slices.Clone(r.cfg.Options)
	var built cache.Cache
	if r.cfg.NewCache != nil {
		c, err := r.cfg.NewCache(tc)
		if err != nil {
			return nil, fmt.Errorf("failed to create context cache for %s: %w", hospitalID, err)
		}
		if c != nil {
			built = c
			opts = append(opts, WithCache(c))
		}
	}

	m, err := New(ctx, r.cfg.Store, tc, r.cfg.Logger, opts...)
	if err != nil {
		// The cache never reached a Manager, so nothing else will close it.
		if closer, ok := built.(io.Closer); ok {
			if cerr := closer.Close(); cerr != nil {
				r.cfg.Logger.Warn("failed to close context cache", "hospital", hospitalID, "error", cerr)
			}
		}
		return nil, err
	}
	r.managers[hospitalID] = m
	return m, nil
}

// Tenants lists the tenants with a live Manager, sorted.
func (r *Registry) Tenants() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := make([]string, 0, len(r.managers))
	for id := range r.managers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Close closes every Manager. The store itself belongs to the caller.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	for id, m := range r.managers {
		if err := m.Close(); err != nil {
			errs = append(errs, fmt.Errorf("tenant %s: %w", id, err))
		}
	}
	r.managers = make(map[string]*Manager)
	r.closed = true
	return errors.Join(errs...)
}
