// Package docstore is the document database facade the tenant state layer is
// written against. Backends: MongoStore (mongodb://) and MemoryStore (memory://).
package docstore

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"go.mongodb.org/mongo-driver/v2/bson"
)

var (
	// ErrDuplicateKey is returned when a write violates a unique index.
	ErrDuplicateKey = errors.New("docstore: duplicate key")

	// ErrUnavailable is returned when the store cannot be reached in time.
	ErrUnavailable = errors.New("docstore: store unavailable")

	// ErrNoTextIndex is returned by TextSearch on a collection without a text index.
	ErrNoTextIndex = errors.New("docstore: text index required")
)

// FieldID is the primary key field of every document.
const FieldID = "_id"

// Namespace addresses one collection inside one database.
type Namespace struct {
	Database   string
	Collection string
}

func (n Namespace) String() string {
	return n.Database + "." + n.Collection
}

// FindOptions controls ordering and size of Find results. Limit <= 0 means no limit.
type FindOptions struct {
	Sort  Sort
	Limit int64
}

// Update is an explicit set of field assignments applied atomically to one document.
// With Upsert, a missing document is created from the filter's equality
// conditions plus Set.
type Update struct {
	Set    map[string]any
	Upsert bool
}

// UpdateResult reports what UpdateOne did.
type UpdateResult struct {
	MatchedCount  int64
	ModifiedCount int64
	UpsertedID    string
}

// Store is the document database facade.
//
// Single-document reads return nil, nil when nothing matches. All methods are
// safe for concurrent use.
type Store interface {
	InsertOne(ctx context.Context, ns Namespace, doc any) (string, error)
	FindOne(ctx context.Context, ns Namespace, filter Filter, sort Sort) (bson.Raw, error)
	Find(ctx context.Context, ns Namespace, filter Filter, opts FindOptions) ([]bson.Raw, error)
	UpdateOne(ctx context.Context, ns Namespace, filter Filter, update Update) (UpdateResult, error)
	CreateIndex(ctx context.Context, ns Namespace, index Index) error
	Aggregate(ctx context.Context, ns Namespace, pipeline Pipeline) ([]bson.Raw, error)
	TextSearch(ctx context.Context, ns Namespace, query string, filter Filter, limit int64) ([]bson.Raw, error)
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

// Decode unmarshals one raw document. A nil raw decodes to nil.
func Decode[T any](raw bson.Raw) (*T, error) {
	if raw == nil {
		return nil, nil
	}
	var v T
	if err := bson.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", reflect.TypeFor[T]().Name(), err)
	}
	return &v, nil
}

// DecodeAll unmarshals a result set, preserving order.
func DecodeAll[T any](raws []bson.Raw) ([]T, error) {
	out := make([]T, 0, len(raws))
	for _, raw := range raws {
		var v T
		if err := bson.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", reflect.TypeFor[T]().Name(), err)
		}
		out = append(out, v)
	}
	return out, nil
}

// IDString renders an inserted _id the way callers see it.
func IDString(id any) string {
	switch v := id.(type) {
	case bson.ObjectID:
		return v.Hex()
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

// Outcome classifies an error for metrics labels.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrDuplicateKey):
		return "duplicate_key"
	case errors.Is(err, ErrUnavailable):
		return "unavailable"
	default:
		return "error"
	}
}
