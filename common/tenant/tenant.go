// Package tenant scopes every read and write to one hospital tenant.
package tenant

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"github.com/lyzr/teststate/common/docstore"
)

// FieldTenant is the document field stamped with the owning tenant.
const FieldTenant = "hospital"

// DefaultPrefix is prepended to the tenant id to form its database name.
const DefaultPrefix = "test_automation_"

// Header carries the tenant id on HTTP requests.
const Header = "X-Tenant-ID"

var ErrInvalidTenant = errors.New("invalid tenant id")

var validID = regexp.MustCompile(`^[A-Za-z0-9_-]{1,48}$`)

// Context is an independently constructed, immutable tenant scope.
type Context struct {
	id       string
	database string
}

// New validates id and maps it to its database namespace.
func New(id, prefix string) (*Context, error) {
	if !validID.MatchString(id) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTenant, id)
	}
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Context{id: id, database: prefix + id}, nil
}

func (c *Context) ID() string { return c.id }

func (c *Context) Database() string { return c.database }

// Namespace addresses one of the tenant's collections.
func (c *Context) Namespace(collection string) docstore.Namespace {
	return docstore.Namespace{Database: c.database, Collection: collection}
}

// Scope returns a filter that always carries the tenant condition first.
func (c *Context) Scope(conds ...docstore.Cond) docstore.Filter {
	out := make(docstore.Filter, 0, len(conds)+1)
	out = append(out, docstore.Eq(FieldTenant, c.id))
	for _, cond := range conds {
		if cond.Field == FieldTenant {
			continue
		}
		out = append(out, cond)
	}
	return out
}

type ctxKey struct{}

// WithTenant stores the tenant id in ctx.
func WithTenant(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// FromContext returns the tenant id stored by WithTenant.
func FromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(ctxKey{}).(string)
	return id, ok && id != ""
}
