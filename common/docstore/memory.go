package docstore

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"reflect"
	"sort"
	"sync"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// MemoryStore is an in-process Store used for tests, local runs and the
// memory:// URI. All operations take a single lock, so conditional updates
// are atomic with respect to each other.
type MemoryStore struct {
	mu          sync.RWMutex
	closed      bool
	collections map[Namespace]*memCollection
}

type memCollection struct {
	docs    []bson.M
	indexes []Index
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{collections: make(map[Namespace]*memCollection)}
}

// check must be called with s.mu held.
func (s *MemoryStore) check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if s.closed {
		return fmt.Errorf("%w: memory store closed", ErrUnavailable)
	}
	return nil
}

func (s *MemoryStore) collection(ns Namespace) *memCollection {
	c, ok := s.collections[ns]
	if !ok {
		c = &memCollection{}
		s.collections[ns] = c
	}
	return c
}

// peek returns the collection without creating it; reads on a missing
// collection see an empty one.
func (s *MemoryStore) peek(ns Namespace) *memCollection {
	if c, ok := s.collections[ns]; ok {
		return c
	}
	return &memCollection{}
}

func (s *MemoryStore) InsertOne(ctx context.Context, ns Namespace, doc any) (string, error) {
	m, err := toDocument(doc)
	if err != nil {
		return "", err
	}
	if id, ok := m["_id"]; !ok || id == nil {
		m["_id"] = bson.NewObjectID()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx); err != nil {
		return "", err
	}

	c := s.collection(ns)
	if err := c.checkUnique(m, -1); err != nil {
		return "", fmt.Errorf("%s: %w", ns, err)
	}
	c.docs = append(c.docs, m)
	return IDString(m["_id"]), nil
}

func (s *MemoryStore) FindOne(ctx context.Context, ns Namespace, filter Filter, sort Sort) (bson.Raw, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check(ctx); err != nil {
		return nil, err
	}

	docs := s.peek(ns).matching(filter)
	if len(docs) == 0 {
		return nil, nil
	}
	sortDocs(docs, sort)
	return toRaw(docs[0])
}

func (s *MemoryStore) Find(ctx context.Context, ns Namespace, filter Filter, opts FindOptions) ([]bson.Raw, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check(ctx); err != nil {
		return nil, err
	}

	docs := s.peek(ns).matching(filter)
	sortDocs(docs, opts.Sort)
	if opts.Limit > 0 && int64(len(docs)) > opts.Limit {
		docs = docs[:opts.Limit]
	}
	return toRaws(docs)
}

func (s *MemoryStore) UpdateOne(ctx context.Context, ns Namespace, filter Filter, update Update) (UpdateResult, error) {
	set := make(bson.M, len(update.Set))
	for k, v := range update.Set {
		if k == "_id" {
			return UpdateResult{}, errors.New("docstore: _id is immutable")
		}
		stored, err := storedValue(v)
		if err != nil {
			return UpdateResult{}, err
		}
		set[k] = stored
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx); err != nil {
		return UpdateResult{}, err
	}

	c := s.collection(ns)
	for i, doc := range c.docs {
		if !matchesFilter(doc, filter) {
			continue
		}

		next := maps.Clone(doc)
		modified := false
		for k, v := range set {
			if old, ok := doc[k]; !ok || !equal(old, v) {
				modified = true
			}
			next[k] = v
		}
		if !modified {
			return UpdateResult{MatchedCount: 1}, nil
		}
		if err := c.checkUnique(next, i); err != nil {
			return UpdateResult{}, fmt.Errorf("%s: %w", ns, err)
		}
		c.docs[i] = next
		return UpdateResult{MatchedCount: 1, ModifiedCount: 1}, nil
	}

	if !update.Upsert {
		return UpdateResult{}, nil
	}

	doc := bson.M{}
	for _, cond := range filter {
		if cond.Op != OpEq {
			continue
		}
		stored, err := storedValue(cond.Value)
		if err != nil {
			return UpdateResult{}, err
		}
		doc[cond.Field] = stored
	}
	maps.Copy(doc, set)
	if _, ok := doc["_id"]; !ok {
		doc["_id"] = bson.NewObjectID()
	}
	if err := c.checkUnique(doc, -1); err != nil {
		return UpdateResult{}, fmt.Errorf("%s: %w", ns, err)
	}
	c.docs = append(c.docs, doc)
	return UpdateResult{UpsertedID: IDString(doc["_id"])}, nil
}

func (s *MemoryStore) CreateIndex(ctx context.Context, ns Namespace, index Index) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx); err != nil {
		return err
	}

	c := s.collection(ns)
	for _, existing := range c.indexes {
		if sameIndex(existing, index) {
			return nil
		}
		if len(existing.Text) > 0 && len(index.Text) > 0 {
			return fmt.Errorf("%s: collection already has a text index", ns)
		}
	}

	if index.Unique {
		for i := range c.docs {
			for j := i + 1; j < len(c.docs); j++ {
				if sameKeys(c.docs[i], c.docs[j], index.Keys) {
					return fmt.Errorf("%s: index %s: %w", ns, index.Name, ErrDuplicateKey)
				}
			}
		}
	}
	c.indexes = append(c.indexes, index)
	return nil
}

func (s *MemoryStore) Aggregate(ctx context.Context, ns Namespace, pipeline Pipeline) ([]bson.Raw, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check(ctx); err != nil {
		return nil, err
	}

	docs := s.peek(ns).matching(nil)
	for i, doc := range docs {
		docs[i] = maps.Clone(doc)
	}

	for _, st := range pipeline {
		switch stage := st.(type) {
		case Match:
			kept := docs[:0]
			for _, doc := range docs {
				if matchesFilter(doc, stage.Filter) {
					kept = append(kept, doc)
				}
			}
			docs = kept
		case Group:
			docs = groupDocs(docs, stage)
		case Ratio:
			for _, doc := range docs {
				doc[stage.Name] = ratio(doc[stage.Numerator], doc[stage.Denominator])
			}
		case SortStage:
			sortDocs(docs, stage.Sort)
		default:
			return nil, fmt.Errorf("docstore: unsupported pipeline stage %T", st)
		}
	}
	return toRaws(docs)
}

func (s *MemoryStore) TextSearch(ctx context.Context, ns Namespace, query string, filter Filter, limit int64) ([]bson.Raw, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check(ctx); err != nil {
		return nil, err
	}

	c := s.peek(ns)
	fields := c.textFields()
	if len(fields) == 0 {
		return nil, fmt.Errorf("%s: %w", ns, ErrNoTextIndex)
	}

	terms := make(map[string]bool)
	for _, t := range tokenize(query) {
		terms[t] = true
	}

	type hit struct {
		doc   bson.M
		score float64
	}
	var hits []hit
	for _, doc := range c.docs {
		if !matchesFilter(doc, filter) {
			continue
		}
		seen := make(map[string]bool)
		for _, f := range fields {
			if s, ok := doc[f].(string); ok {
				for _, t := range tokenize(s) {
					seen[t] = true
				}
			}
		}
		score := 0.0
		for t := range terms {
			if seen[t] {
				score++
			}
		}
		if score > 0 {
			hits = append(hits, hit{doc: doc, score: score})
		}
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].score > hits[j].score })
	if limit > 0 && int64(len(hits)) > limit {
		hits = hits[:limit]
	}

	out := make([]bson.Raw, 0, len(hits))
	for _, h := range hits {
		doc := maps.Clone(h.doc)
		doc["score"] = h.score
		raw, err := toRaw(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, raw)
	}
	return out, nil
}

func (s *MemoryStore) Ping(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.check(ctx)
}

// Close marks the store closed; later calls fail with ErrUnavailable.
func (s *MemoryStore) Close(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (c *memCollection) matching(filter Filter) []bson.M {
	out := make([]bson.M, 0, len(c.docs))
	for _, doc := range c.docs {
		if matchesFilter(doc, filter) {
			out = append(out, doc)
		}
	}
	return out
}

// checkUnique rejects candidate if it collides on _id or on any unique
// index with a stored document other than the one at position self.
func (c *memCollection) checkUnique(candidate bson.M, self int) error {
	for i, doc := range c.docs {
		if i == self {
			continue
		}
		if equal(doc["_id"], candidate["_id"]) {
			return fmt.Errorf("_id %v: %w", candidate["_id"], ErrDuplicateKey)
		}
		for _, idx := range c.indexes {
			if idx.Unique && sameKeys(doc, candidate, idx.Keys) {
				return fmt.Errorf("index %s: %w", idx.Name, ErrDuplicateKey)
			}
		}
	}
	return nil
}

func (c *memCollection) textFields() []string {
	for _, idx := range c.indexes {
		if len(idx.Text) > 0 {
			return idx.Text
		}
	}
	return nil
}

func sameKeys(a, b bson.M, keys Sort) bool {
	if len(keys) == 0 {
		return false
	}
	for _, k := range keys {
		if !equal(a[k.Field], b[k.Field]) {
			return false
		}
	}
	return true
}

func sameIndex(a, b Index) bool {
	if a.Name != "" && a.Name == b.Name {
		return true
	}
	return reflect.DeepEqual(a.Keys, b.Keys) &&
		reflect.DeepEqual(a.Text, b.Text) &&
		a.Unique == b.Unique
}

func groupDocs(docs []bson.M, g Group) []bson.M {
	type bucket struct {
		key  any
		docs []bson.M
	}
	var buckets []*bucket

	for _, doc := range docs {
		var key any
		if g.Key != "" {
			key = doc[g.Key]
		}
		var target *bucket
		for _, b := range buckets {
			if equal(b.key, key) {
				target = b
				break
			}
		}
		if target == nil {
			target = &bucket{key: key}
			buckets = append(buckets, target)
		}
		target.docs = append(target.docs, doc)
	}

	out := make([]bson.M, 0, len(buckets))
	for _, b := range buckets {
		row := bson.M{"_id": b.key}
		for _, acc := range g.Accumulators {
			row[acc.Name] = accumulate(acc, b.docs)
		}
		out = append(out, row)
	}
	return out
}

func accumulate(acc Accumulator, docs []bson.M) any {
	switch acc.Op {
	case AccCount:
		return int64(len(docs))
	case AccCountWhere:
		var n int64
		for _, doc := range docs {
			if equal(doc[acc.Field], acc.Equals) {
				n++
			}
		}
		return n
	case AccAvg:
		var sum float64
		var n int
		for _, doc := range docs {
			if f, ok := toFloat(doc[acc.Field]); ok {
				sum += f
				n++
			}
		}
		if n == 0 {
			return nil
		}
		return sum / float64(n)
	case AccMax:
		var best any
		for _, doc := range docs {
			v, ok := doc[acc.Field]
			if !ok || v == nil {
				continue
			}
			if best == nil {
				best = v
				continue
			}
			if order, _ := compare(v, best); order > 0 {
				best = v
			}
		}
		return best
	}
	return nil
}

func ratio(num, den any) float64 {
	n, ok := toFloat(num)
	if !ok {
		return 0
	}
	d, ok := toFloat(den)
	if !ok || d == 0 {
		return 0
	}
	return n / d
}

func toDocument(doc any) (bson.M, error) {
	raw, err := bson.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to encode document: %w", err)
	}
	var m bson.M
	if err := bson.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("failed to decode document: %w", err)
	}
	return m, nil
}

// storedValue converts a Go value to the form it takes once written to BSON.
func storedValue(v any) (any, error) {
	m, err := toDocument(bson.M{"v": v})
	if err != nil {
		return nil, err
	}
	return m["v"], nil
}

func toRaw(doc bson.M) (bson.Raw, error) {
	b, err := bson.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to encode document: %w", err)
	}
	return bson.Raw(b), nil
}

func toRaws(docs []bson.M) ([]bson.Raw, error) {
	out := make([]bson.Raw, 0, len(docs))
	for _, doc := range docs {
		raw, err := toRaw(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, raw)
	}
	return out, nil
}
