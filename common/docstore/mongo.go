package docstore

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
)

// codeIndexNotFound is returned by the server for $text without a text index.
const codeIndexNotFound = 27

// MongoStore implements Store on a MongoDB deployment.
type MongoStore struct {
	client    *mongo.Client
	opTimeout time.Duration
}

// NewMongoStore wraps a connected client. Every call is bounded by opTimeout
// when it is positive.
func NewMongoStore(client *mongo.Client, opTimeout time.Duration) *MongoStore {
	return &MongoStore{client: client, opTimeout: opTimeout}
}

func (s *MongoStore) coll(ns Namespace) *mongo.Collection {
	return s.client.Database(ns.Database).Collection(ns.Collection)
}

func (s *MongoStore) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.opTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.opTimeout)
}

func (s *MongoStore) InsertOne(ctx context.Context, ns Namespace, doc any) (string, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	res, err := s.coll(ns).InsertOne(ctx, doc)
	if err != nil {
		return "", classify(ns, "insert", err)
	}
	return IDString(res.InsertedID), nil
}

func (s *MongoStore) FindOne(ctx context.Context, ns Namespace, filter Filter, sort Sort) (bson.Raw, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	opts := options.FindOne()
	if len(sort) > 0 {
		opts.SetSort(sortDoc(sort))
	}
	raw, err := s.coll(ns).FindOne(ctx, filterDoc(filter), opts).Raw()
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, classify(ns, "find one", err)
	}
	return raw, nil
}

func (s *MongoStore) Find(ctx context.Context, ns Namespace, filter Filter, opts FindOptions) ([]bson.Raw, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	findOpts := options.Find()
	if len(opts.Sort) > 0 {
		findOpts.SetSort(sortDoc(opts.Sort))
	}
	if opts.Limit > 0 {
		findOpts.SetLimit(opts.Limit)
	}
	cur, err := s.coll(ns).Find(ctx, filterDoc(filter), findOpts)
	if err != nil {
		return nil, classify(ns, "find", err)
	}
	return drain(ctx, ns, cur)
}

func (s *MongoStore) UpdateOne(ctx context.Context, ns Namespace, filter Filter, update Update) (UpdateResult, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	set := bson.D{}
	for k, v := range update.Set {
		set = append(set, bson.E{Key: k, Value: v})
	}
	res, err := s.coll(ns).UpdateOne(ctx,
		filterDoc(filter),
		bson.D{{Key: "$set", Value: set}},
		options.UpdateOne().SetUpsert(update.Upsert),
	)
	if err != nil {
		return UpdateResult{}, classify(ns, "update", err)
	}

	out := UpdateResult{MatchedCount: res.MatchedCount, ModifiedCount: res.ModifiedCount}
	if res.UpsertedID != nil {
		out.UpsertedID = IDString(res.UpsertedID)
	}
	return out, nil
}

func (s *MongoStore) CreateIndex(ctx context.Context, ns Namespace, index Index) error {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	if _, err := s.coll(ns).Indexes().CreateOne(ctx, indexModel(index)); err != nil {
		return classify(ns, "create index "+index.Name, err)
	}
	return nil
}

func (s *MongoStore) Aggregate(ctx context.Context, ns Namespace, pipeline Pipeline) ([]bson.Raw, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	stages, err := pipelineDocs(pipeline)
	if err != nil {
		return nil, err
	}
	cur, err := s.coll(ns).Aggregate(ctx, stages)
	if err != nil {
		return nil, classify(ns, "aggregate", err)
	}
	return drain(ctx, ns, cur)
}

func (s *MongoStore) TextSearch(ctx context.Context, ns Namespace, query string, filter Filter, limit int64) ([]bson.Raw, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	score := bson.D{{Key: "score", Value: bson.D{{Key: "$meta", Value: "textScore"}}}}
	q := append(bson.D{{Key: "$text", Value: bson.D{{Key: "$search", Value: query}}}}, filterDoc(filter)...)
	opts := options.Find().SetProjection(score).SetSort(score)
	if limit > 0 {
		opts.SetLimit(limit)
	}

	cur, err := s.coll(ns).Find(ctx, q, opts)
	if err != nil {
		return nil, classify(ns, "text search", err)
	}
	return drain(ctx, ns, cur)
}

func (s *MongoStore) Ping(ctx context.Context) error {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	if err := s.client.Ping(ctx, readpref.Primary()); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func (s *MongoStore) Close(ctx context.Context) error {
	if err := s.client.Disconnect(ctx); err != nil && !errors.Is(err, mongo.ErrClientDisconnected) {
		return fmt.Errorf("failed to disconnect: %w", err)
	}
	return nil
}

func drain(ctx context.Context, ns Namespace, cur *mongo.Cursor) ([]bson.Raw, error) {
	defer cur.Close(ctx)

	var out []bson.Raw
	for cur.Next(ctx) {
		out = append(out, slices.Clone(cur.Current))
	}
	if err := cur.Err(); err != nil {
		return nil, classify(ns, "read cursor", err)
	}
	return out, nil
}

func classify(ns Namespace, op string, err error) error {
	var se mongo.ServerError
	switch {
	case mongo.IsDuplicateKeyError(err):
		return fmt.Errorf("%s: %s: %w", ns, op, ErrDuplicateKey)
	case errors.As(err, &se) && se.HasErrorCode(codeIndexNotFound):
		return fmt.Errorf("%s: %s: %w", ns, op, ErrNoTextIndex)
	case mongo.IsTimeout(err),
		mongo.IsNetworkError(err),
		errors.Is(err, mongo.ErrClientDisconnected),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		return fmt.Errorf("%s: %s: %w: %v", ns, op, ErrUnavailable, err)
	default:
		return fmt.Errorf("%s: failed to %s: %w", ns, op, err)
	}
}

// filterDoc renders a Filter as a query document. Conditions on the same
// field merge into one operator document.
func filterDoc(filter Filter) bson.D {
	doc := bson.D{}
	pos := make(map[string]int)
	for _, c := range filter {
		op := bson.E{Key: string(c.Op), Value: c.Value}
		if i, ok := pos[c.Field]; ok {
			doc[i].Value = append(doc[i].Value.(bson.D), op)
			continue
		}
		pos[c.Field] = len(doc)
		doc = append(doc, bson.E{Key: c.Field, Value: bson.D{op}})
	}
	return doc
}

func sortDoc(sort Sort) bson.D {
	doc := make(bson.D, 0, len(sort))
	for _, f := range sort {
		dir := 1
		if f.Desc {
			dir = -1
		}
		doc = append(doc, bson.E{Key: f.Field, Value: dir})
	}
	return doc
}

func indexModel(index Index) mongo.IndexModel {
	keys := sortDoc(index.Keys)
	for _, f := range index.Text {
		keys = append(keys, bson.E{Key: f, Value: "text"})
	}

	opts := options.Index()
	if index.Name != "" {
		opts.SetName(index.Name)
	}
	if index.Unique {
		opts.SetUnique(true)
	}
	if index.ExpireAfter != nil {
		opts.SetExpireAfterSeconds(int32(index.ExpireAfter.Seconds()))
	}
	return mongo.IndexModel{Keys: keys, Options: opts}
}

func pipelineDocs(pipeline Pipeline) (mongo.Pipeline, error) {
	out := make(mongo.Pipeline, 0, len(pipeline))
	for _, st := range pipeline {
		switch stage := st.(type) {
		case Match:
			out = append(out, bson.D{{Key: "$match", Value: filterDoc(stage.Filter)}})
		case Group:
			var key any
			if stage.Key != "" {
				key = "$" + stage.Key
			}
			group := bson.D{{Key: "_id", Value: key}}
			for _, acc := range stage.Accumulators {
				expr, err := accumulatorDoc(acc)
				if err != nil {
					return nil, err
				}
				group = append(group, bson.E{Key: acc.Name, Value: expr})
			}
			out = append(out, bson.D{{Key: "$group", Value: group}})
		case Ratio:
			den := "$" + stage.Denominator
			expr := bson.D{{Key: "$cond", Value: bson.A{
				bson.D{{Key: "$eq", Value: bson.A{den, 0}}},
				0.0,
				bson.D{{Key: "$divide", Value: bson.A{"$" + stage.Numerator, den}}},
			}}}
			out = append(out, bson.D{{Key: "$addFields", Value: bson.D{{Key: stage.Name, Value: expr}}}})
		case SortStage:
			out = append(out, bson.D{{Key: "$sort", Value: sortDoc(stage.Sort)}})
		default:
			return nil, fmt.Errorf("docstore: unsupported pipeline stage %T", st)
		}
	}
	return out, nil
}

func accumulatorDoc(acc Accumulator) (bson.D, error) {
	switch acc.Op {
	case AccCount:
		return bson.D{{Key: "$sum", Value: 1}}, nil
	case AccCountWhere:
		cond := bson.A{bson.D{{Key: "$eq", Value: bson.A{"$" + acc.Field, acc.Equals}}}, 1, 0}
		return bson.D{{Key: "$sum", Value: bson.D{{Key: "$cond", Value: cond}}}}, nil
	case AccAvg:
		return bson.D{{Key: "$avg", Value: "$" + acc.Field}}, nil
	case AccMax:
		return bson.D{{Key: "$max", Value: "$" + acc.Field}}, nil
	}
	return nil, fmt.Errorf("docstore: unsupported accumulator %q", acc.Op)
}
