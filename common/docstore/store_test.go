package docstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
)

type run struct {
	ID        bson.ObjectID `bson:"_id,omitempty"`
	Key       string        `bson:"key"`
	Tenant    string        `bson:"hospital"`
	Status    string        `bson:"status"`
	Duration  int64         `bson:"duration_ms"`
	Tags      []string      `bson:"tags,omitempty"`
	Reason    string        `bson:"reason,omitempty"`
	Approved  bool          `bson:"approved"`
	Timestamp time.Time     `bson:"timestamp"`
	Score     float64       `bson:"score,omitempty"`
}

type bucketRow struct {
	Key    string  `bson:"_id"`
	Total  int64   `bson:"total"`
	Passed int64   `bson:"passed"`
	AvgDur float64 `bson:"avg_duration"`
	Rate   float64 `bson:"rate"`
}

// exerciseStore runs the behaviours every backend must share. Each case uses
// its own collection so a live database can be reused.
func exerciseStore(t *testing.T, s Store, db string) {
	ctx := context.Background()
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	ns := func(coll string) Namespace { return Namespace{Database: db, Collection: coll} }

	t.Run("find one absent returns nil", func(t *testing.T) {
		raw, err := s.FindOne(ctx, ns("absent"), And(Eq("key", "nope")), nil)
		require.NoError(t, err)
		assert.Nil(t, raw)

		got, err := Decode[run](raw)
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("insert and read back", func(t *testing.T) {
		id, err := s.InsertOne(ctx, ns("insert"), run{Key: "a", Tenant: "h1", Status: "passed", Timestamp: base})
		require.NoError(t, err)
		require.NotEmpty(t, id)

		raw, err := s.FindOne(ctx, ns("insert"), And(Eq("key", "a")), nil)
		require.NoError(t, err)
		got, err := Decode[run](raw)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, id, got.ID.Hex())
		assert.Equal(t, "h1", got.Tenant)
		assert.True(t, base.Equal(got.Timestamp))
	})

	t.Run("unique index rejects duplicates", func(t *testing.T) {
		n := ns("unique")
		require.NoError(t, s.CreateIndex(ctx, n, Index{Name: "key_unique", Keys: By(Asc("hospital"), Asc("key")), Unique: true}))
		require.NoError(t, s.CreateIndex(ctx, n, Index{Name: "key_unique", Keys: By(Asc("hospital"), Asc("key")), Unique: true}))

		_, err := s.InsertOne(ctx, n, run{Key: "dup", Tenant: "h1", Status: "first"})
		require.NoError(t, err)
		_, err = s.InsertOne(ctx, n, run{Key: "dup", Tenant: "h1", Status: "second"})
		assert.ErrorIs(t, err, ErrDuplicateKey)
		_, err = s.InsertOne(ctx, n, run{Key: "dup", Tenant: "h2", Status: "other tenant"})
		assert.NoError(t, err)

		raws, err := s.Find(ctx, n, And(Eq("key", "dup"), Eq("hospital", "h1")), FindOptions{})
		require.NoError(t, err)
		require.Len(t, raws, 1)
		got, err := Decode[run](raws[0])
		require.NoError(t, err)
		assert.Equal(t, "first", got.Status)
	})

	t.Run("sort, tie-break and limit", func(t *testing.T) {
		n := ns("sorted")
		for i, st := range []string{"old", "tie-1", "tie-2", "older"} {
			ts := base
			switch st {
			case "old":
				ts = base.Add(-time.Minute)
			case "older":
				ts = base.Add(-time.Hour)
			}
			_, err := s.InsertOne(ctx, n, run{Key: "p", Status: st, Duration: int64(i), Timestamp: ts})
			require.NoError(t, err)
		}

		raw, err := s.FindOne(ctx, n, And(Eq("key", "p")), By(Desc("timestamp"), Desc("_id")))
		require.NoError(t, err)
		latest, err := Decode[run](raw)
		require.NoError(t, err)
		assert.Equal(t, "tie-2", latest.Status)

		raws, err := s.Find(ctx, n, nil, FindOptions{Sort: By(Desc("timestamp"), Desc("_id")), Limit: 3})
		require.NoError(t, err)
		runs, err := DecodeAll[run](raws)
		require.NoError(t, err)
		require.Len(t, runs, 3)
		assert.Equal(t, []string{"tie-2", "tie-1", "old"}, []string{runs[0].Status, runs[1].Status, runs[2].Status})
	})

	t.Run("array equality and ranges", func(t *testing.T) {
		n := ns("ranges")
		_, err := s.InsertOne(ctx, n, run{Key: "x", Tags: []string{"smoke", "login"}, Timestamp: base.Add(-48 * time.Hour)})
		require.NoError(t, err)
		_, err = s.InsertOne(ctx, n, run{Key: "y", Tags: []string{"regression"}, Timestamp: base})
		require.NoError(t, err)

		raws, err := s.Find(ctx, n, And(Eq("tags", "login")), FindOptions{})
		require.NoError(t, err)
		require.Len(t, raws, 1)

		raws, err = s.Find(ctx, n, And(Gte("timestamp", base.Add(-24*time.Hour)), Lt("timestamp", base.Add(time.Hour))), FindOptions{})
		require.NoError(t, err)
		runs, err := DecodeAll[run](raws)
		require.NoError(t, err)
		require.Len(t, runs, 1)
		assert.Equal(t, "y", runs[0].Key)

		raws, err = s.Find(ctx, n, And(Ne("key", "x")), FindOptions{})
		require.NoError(t, err)
		assert.Len(t, raws, 1)
	})

	t.Run("conditional update applies once", func(t *testing.T) {
		n := ns("conditional")
		id, err := s.InsertOne(ctx, n, run{Key: "heal", Approved: false})
		require.NoError(t, err)
		oid, err := bson.ObjectIDFromHex(id)
		require.NoError(t, err)

		cond := And(Eq("_id", oid), Eq("approved", false))
		res, err := s.UpdateOne(ctx, n, cond, Update{Set: map[string]any{"approved": true, "reason": "ok"}})
		require.NoError(t, err)
		assert.EqualValues(t, 1, res.ModifiedCount)

		res, err = s.UpdateOne(ctx, n, cond, Update{Set: map[string]any{"approved": true, "reason": "again"}})
		require.NoError(t, err)
		assert.EqualValues(t, 0, res.MatchedCount)

		raw, err := s.FindOne(ctx, n, And(Eq("_id", oid)), nil)
		require.NoError(t, err)
		got, err := Decode[run](raw)
		require.NoError(t, err)
		assert.True(t, got.Approved)
		assert.Equal(t, "ok", got.Reason)
	})

	t.Run("upsert creates from equality conditions", func(t *testing.T) {
		n := ns("upsert")
		filter := And(Eq("hospital", "h1"), Eq("key", "hash"))
		res, err := s.UpdateOne(ctx, n, filter, Update{Set: map[string]any{"status": "v1"}, Upsert: true})
		require.NoError(t, err)
		assert.NotEmpty(t, res.UpsertedID)

		res, err = s.UpdateOne(ctx, n, filter, Update{Set: map[string]any{"status": "v2"}, Upsert: true})
		require.NoError(t, err)
		assert.EqualValues(t, 1, res.MatchedCount)
		assert.Empty(t, res.UpsertedID)

		raws, err := s.Find(ctx, n, filter, FindOptions{})
		require.NoError(t, err)
		runs, err := DecodeAll[run](raws)
		require.NoError(t, err)
		require.Len(t, runs, 1)
		assert.Equal(t, "v2", runs[0].Status)
		assert.Equal(t, "h1", runs[0].Tenant)
	})

	t.Run("aggregate group ratio sort", func(t *testing.T) {
		n := ns("aggregate")
		seed := map[string][]string{
			"t1": {"passed", "failed", "passed", "failed"},
			"t2": {"passed", "passed", "passed", "failed"},
			"t3": {"failed"},
		}
		for key, statuses := range seed {
			for i, st := range statuses {
				_, err := s.InsertOne(ctx, n, run{Key: key, Tenant: "h1", Status: st, Duration: int64(100 * (i + 1)), Timestamp: base})
				require.NoError(t, err)
			}
		}

		raws, err := s.Aggregate(ctx, n, Pipeline{
			Match{Filter: And(Eq("hospital", "h1"))},
			Group{Key: "key", Accumulators: []Accumulator{
				Count("total"),
				CountWhere("passed", "status", "passed"),
				Avg("avg_duration", "duration_ms"),
			}},
			Ratio{Name: "rate", Numerator: "passed", Denominator: "total"},
			Match{Filter: And(Gte("total", 2))},
			SortStage{Sort: By(Asc("rate"))},
		})
		require.NoError(t, err)
		rows, err := DecodeAll[bucketRow](raws)
		require.NoError(t, err)
		require.Len(t, rows, 2)
		assert.Equal(t, "t1", rows[0].Key)
		assert.EqualValues(t, 4, rows[0].Total)
		assert.EqualValues(t, 2, rows[0].Passed)
		assert.InDelta(t, 0.5, rows[0].Rate, 1e-9)
		assert.InDelta(t, 250, rows[0].AvgDur, 1e-9)
		assert.Equal(t, "t2", rows[1].Key)
		assert.InDelta(t, 0.75, rows[1].Rate, 1e-9)
	})

	t.Run("text search", func(t *testing.T) {
		n := ns("text")
		_, err := s.InsertOne(ctx, n, run{Key: "1", Reason: "Element not found: #login-button", Approved: true})
		require.NoError(t, err)
		_, err = s.InsertOne(ctx, n, run{Key: "2", Reason: "Timeout waiting for page load", Approved: true})
		require.NoError(t, err)
		_, err = s.InsertOne(ctx, n, run{Key: "3", Reason: "Element detached from page", Approved: false})
		require.NoError(t, err)

		_, err = s.TextSearch(ctx, n, "element", nil, 5)
		assert.ErrorIs(t, err, ErrNoTextIndex)

		require.NoError(t, s.CreateIndex(ctx, n, Index{Name: "reason_text", Text: []string{"reason"}}))
		raws, err := s.TextSearch(ctx, n, "element", And(Eq("approved", true)), 5)
		require.NoError(t, err)
		runs, err := DecodeAll[run](raws)
		require.NoError(t, err)
		require.Len(t, runs, 1)
		assert.Equal(t, "1", runs[0].Key)
		assert.Positive(t, runs[0].Score)
	})

	t.Run("ping", func(t *testing.T) {
		assert.NoError(t, s.Ping(ctx))
	})
}
