package docstore

import (
	"context"
	"time"

	"github.com/lyzr/teststate/common/metrics"
	"go.mongodb.org/mongo-driver/v2/bson"
)

type instrumented struct {
	next Store
}

// Instrument wraps s so every call is counted and timed per collection,
// operation and outcome.
func Instrument(s Store) Store {
	if _, ok := s.(*instrumented); ok {
		return s
	}
	return &instrumented{next: s}
}

func observe(ns Namespace, op string, start time.Time, err error) {
	metrics.ObserveStoreOp(ns.Collection, op, Outcome(err), start)
}

func (i *instrumented) InsertOne(ctx context.Context, ns Namespace, doc any) (string, error) {
	start := time.Now()
	id, err := i.next.InsertOne(ctx, ns, doc)
	observe(ns, "insert_one", start, err)
	return id, err
}

func (i *instrumented) FindOne(ctx context.Context, ns Namespace, filter Filter, sort Sort) (bson.Raw, error) {
	start := time.Now()
	raw, err := i.next.FindOne(ctx, ns, filter, sort)
	observe(ns, "find_one", start, err)
	return raw, err
}

func (i *instrumented) Find(ctx context.Context, ns Namespace, filter Filter, opts FindOptions) ([]bson.Raw, error) {
	start := time.Now()
	raws, err := i.next.Find(ctx, ns, filter, opts)
	observe(ns, "find", start, err)
	return raws, err
}

func (i *instrumented) UpdateOne(ctx context.Context, ns Namespace, filter Filter, update Update) (UpdateResult, error) {
	start := time.Now()
	res, err := i.next.UpdateOne(ctx, ns, filter, update)
	observe(ns, "update_one", start, err)
	return res, err
}

func (i *instrumented) CreateIndex(ctx context.Context, ns Namespace, index Index) error {
	start := time.Now()
	err := i.next.CreateIndex(ctx, ns, index)
	observe(ns, "create_index", start, err)
	return err
}

func (i *instrumented) Aggregate(ctx context.Context, ns Namespace, pipeline Pipeline) ([]bson.Raw, error) {
	start := time.Now()
	raws, err := i.next.Aggregate(ctx, ns, pipeline)
	observe(ns, "aggregate", start, err)
	return raws, err
}

func (i *instrumented) TextSearch(ctx context.Context, ns Namespace, query string, filter Filter, limit int64) ([]bson.Raw, error) {
	start := time.Now()
	raws, err := i.next.TextSearch(ctx, ns, query, filter, limit)
	observe(ns, "text_search", start, err)
	return raws, err
}

func (i *instrumented) Ping(ctx context.Context) error {
	return i.next.Ping(ctx)
}

func (i *instrumented) Close(ctx context.Context) error {
	return i.next.Close(ctx)
}
