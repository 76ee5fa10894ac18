package cache

import (
	"context"
	"io"
	"time"

	"github.com/lyzr/teststate/common/metrics"
)

type instrumented struct {
	next    Cache
	backend string
}

// Instrument records hit, miss and error counts for lookups on c.
func Instrument(c Cache, backend string) Cache {
	return &instrumented{next: c, backend: backend}
}

func (i *instrumented) Put(ctx context.Context, promptHash string, data map[string]any, ttl time.Duration) error {
	return i.next.Put(ctx, promptHash, data, ttl)
}

func (i *instrumented) Get(ctx context.Context, promptHash string) (map[string]any, bool, error) {
	data, found, err := i.next.Get(ctx, promptHash)
	switch {
	case err != nil:
		metrics.ObserveCacheLookup(i.backend, "error")
	case found:
		metrics.ObserveCacheLookup(i.backend, "hit")
	default:
		metrics.ObserveCacheLookup(i.backend, "miss")
	}
	return data, found, err
}

// Close closes the wrapped cache when it holds resources.
func (i *instrumented) Close() error {
	if c, ok := i.next.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
