// Package repository holds the tenant-scoped stores for test cases, the
// execution ledger, self-heal decisions, UI snapshots and the LLM context
// cache. Every read goes through tenant.Context.Scope and every write stamps
// the tenant field.
package repository

import (
	"errors"
	"time"

	"github.com/lyzr/teststate/common/docstore"
	"github.com/lyzr/teststate/common/tenant"
)

// ErrInvalid is returned when a record is missing required fields or an
// argument is out of range.
var ErrInvalid = errors.New("invalid input")

// Clock returns the current time. Repositories store its value in UTC at
// millisecond precision, the resolution of BSON datetimes.
type Clock func() time.Time

// SystemClock is the default Clock.
func SystemClock() time.Time {
	return time.Now()
}

// latestFirst is the canonical recency order. _id breaks timestamp ties so
// the most recently inserted record wins.
var latestFirst = docstore.By(docstore.Desc("timestamp"), docstore.Desc(docstore.FieldID))

type base struct {
	store  docstore.Store
	tenant *tenant.Context
	ns     docstore.Namespace
	clock  Clock
}

func newBase(store docstore.Store, tc *tenant.Context, clock Clock, collection string) base {
	if clock == nil {
		clock = SystemClock
	}
	return base{store: store, tenant: tc, ns: tc.Namespace(collection), clock: clock}
}

func (b base) now() time.Time {
	return b.clock().UTC().Truncate(time.Millisecond)
}
