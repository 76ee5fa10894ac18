package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/lyzr/teststate/common/docstore"
	"github.com/lyzr/teststate/common/metrics"
	"github.com/lyzr/teststate/common/models"
	"github.com/lyzr/teststate/common/tenant"
	"go.mongodb.org/mongo-driver/v2/bson"
)

const defaultHistoryLimit = 10

// FlakyOptions bounds the pass-rate band and sample size used to flag a
// test as flaky.
type FlakyOptions struct {
	PassRateMin float64
	PassRateMax float64
	MinRuns     int
}

// DefaultFlakyOptions flags tests passing between 30% and 70% of at least 5 runs.
func DefaultFlakyOptions() FlakyOptions {
	return FlakyOptions{PassRateMin: 0.3, PassRateMax: 0.7, MinRuns: 5}
}

func (o FlakyOptions) withDefaults() (FlakyOptions, error) {
	def := DefaultFlakyOptions()
	if o.PassRateMin == 0 && o.PassRateMax == 0 {
		o.PassRateMin, o.PassRateMax = def.PassRateMin, def.PassRateMax
	}
	if o.MinRuns <= 0 {
		o.MinRuns = def.MinRuns
	}
	if o.PassRateMin > o.PassRateMax {
		return o, fmt.Errorf("%w: pass rate min %.2f exceeds max %.2f", ErrInvalid, o.PassRateMin, o.PassRateMax)
	}
	return o, nil
}

// ExecutionRepository is the append-only ledger of test runs
type ExecutionRepository struct {
	base
}

// NewExecutionRepository creates a new execution ledger
func NewExecutionRepository(store docstore.Store, tc *tenant.Context, clock Clock) *ExecutionRepository {
	return &ExecutionRepository{base: newBase(store, tc, clock, CollExecutions)}
}

// Record appends an execution. Only test_case_id and status are required;
// everything else is stored as reported.
func (r *ExecutionRepository) Record(ctx context.Context, execution *models.Execution) (string, error) {
	if execution.TestCaseID == "" || execution.Status == "" {
		return "", fmt.Errorf("%w: test_case_id and status are required", ErrInvalid)
	}

	execution.Hospital = r.tenant.ID()
	execution.Timestamp = r.now()
	execution.Clean()

	id, err := r.store.InsertOne(ctx, r.ns, execution)
	if err != nil {
		return "", fmt.Errorf("failed to record execution for %s: %w", execution.TestCaseID, err)
	}
	if oid, err := bson.ObjectIDFromHex(id); err == nil {
		execution.ID = oid
	}
	metrics.IncExecution(string(execution.Status))

	return id, nil
}

// History returns up to limit most recent executions of a test case,
// newest first. limit <= 0 means 10.
func (r *ExecutionRepository) History(ctx context.Context, testCaseID string, limit int64) ([]models.Execution, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}

	raws, err := r.store.Find(ctx, r.ns, r.tenant.Scope(docstore.Eq("test_case_id", testCaseID)), docstore.FindOptions{
		Sort:  latestFirst,
		Limit: limit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get execution history: %w", err)
	}

	return docstore.DecodeAll[models.Execution](raws)
}

// FlakyTests groups the ledger by test case and keeps the ones whose pass
// rate lies in [PassRateMin, PassRateMax] over at least MinRuns runs,
// ordered by ascending pass rate.
func (r *ExecutionRepository) FlakyTests(ctx context.Context, opts FlakyOptions) ([]models.FlakyTest, error) {
	opts, err := opts.withDefaults()
	if err != nil {
		return nil, err
	}

	raws, err := r.store.Aggregate(ctx, r.ns, docstore.Pipeline{
		docstore.Match{Filter: r.tenant.Scope()},
		docstore.Group{Key: "test_case_id", Accumulators: []docstore.Accumulator{
			docstore.Count("total_runs"),
			docstore.CountWhere("pass_count", "status", models.ExecutionPassed),
			docstore.Max("latest_execution", "timestamp"),
		}},
		docstore.Ratio{Name: "pass_rate", Numerator: "pass_count", Denominator: "total_runs"},
		docstore.Match{Filter: docstore.And(
			docstore.Gte("total_runs", opts.MinRuns),
			docstore.Gte("pass_rate", opts.PassRateMin),
			docstore.Lte("pass_rate", opts.PassRateMax),
		)},
		docstore.SortStage{Sort: docstore.By(docstore.Asc("pass_rate"), docstore.Asc(docstore.FieldID))},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate flaky tests: %w", err)
	}

	return docstore.DecodeAll[models.FlakyTest](raws)
}

// StatusBreakdown returns count and mean duration per status for executions
// at or after since.
func (r *ExecutionRepository) StatusBreakdown(ctx context.Context, since time.Time) (models.ExecutionStats, error) {
	raws, err := r.store.Aggregate(ctx, r.ns, docstore.Pipeline{
		docstore.Match{Filter: r.tenant.Scope(docstore.Gte("timestamp", since.UTC()))},
		docstore.Group{Key: "status", Accumulators: []docstore.Accumulator{
			docstore.Count("count"),
			docstore.Avg("avg_duration", "duration_ms"),
		}},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate execution stats: %w", err)
	}

	type row struct {
		Status      string   `bson:"_id"`
		Count       int64    `bson:"count"`
		AvgDuration *float64 `bson:"avg_duration"`
	}
	rows, err := docstore.DecodeAll[row](raws)
	if err != nil {
		return nil, err
	}

	stats := make(models.ExecutionStats, len(rows))
	for _, rw := range rows {
		s := models.StatusStats{Count: rw.Count}
		if rw.AvgDuration != nil {
			s.AvgDurationMs = *rw.AvgDuration
		}
		stats[rw.Status] = s
	}
	return stats, nil
}
