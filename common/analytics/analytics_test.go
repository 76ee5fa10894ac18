package analytics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/lyzr/teststate/common/docstore"
	"github.com/lyzr/teststate/common/models"
	"github.com/lyzr/teststate/common/repository"
	"github.com/lyzr/teststate/common/tenant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEngineOverStore(t *testing.T) {
	ctx := context.Background()
	tc, err := tenant.New("client_A", "")
	require.NoError(t, err)
	store := docstore.NewMemoryStore()
	require.NoError(t, repository.EnsureIndexes(ctx, store, tc))

	now := time.Date(2025, 11, 3, 9, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	ledger := repository.NewExecutionRepository(store, tc, clock)
	heals := repository.NewSelfHealRepository(store, tc, clock)
	engine := New(tc.ID(), ledger, heals, clock)

	dash, err := engine.Dashboard(ctx)
	require.NoError(t, err)
	assert.Equal(t, "client_A", dash.Hospital)
	assert.NotNil(t, dash.FlakyTests)
	assert.Empty(t, dash.FlakyTests)
	assert.Zero(t, dash.SelfHealSuccessRate)
	assert.Empty(t, dash.ExecutionStats)

	for i := range 5 {
		status := models.ExecutionFailed
		if i < 2 {
			status = models.ExecutionPassed
		}
		_, err := ledger.Record(ctx, &models.Execution{TestCaseID: "TC_FLAKY", Status: status, DurationMs: 1000})
		require.NoError(t, err)
	}
	id, err := heals.Record(ctx, &models.SelfHealDecision{TestID: "TC_FLAKY", FailureReason: "Element not found"})
	require.NoError(t, err)
	_, err = heals.Record(ctx, &models.SelfHealDecision{TestID: "TC_FLAKY", FailureReason: "Timeout"})
	require.NoError(t, err)
	_, err = heals.Approve(ctx, id, "")
	require.NoError(t, err)

	dash, err = engine.Dashboard(ctx)
	require.NoError(t, err)
	require.Len(t, dash.FlakyTests, 1)
	assert.Equal(t, "TC_FLAKY", dash.FlakyTests[0].TestCaseID)
	assert.InDelta(t, 0.5, dash.SelfHealSuccessRate, 1e-9)
	assert.Equal(t, models.ExecutionStats{
		"passed": {Count: 2, AvgDurationMs: 1000},
		"failed": {Count: 3, AvgDurationMs: 1000},
	}, dash.ExecutionStats)
	assert.Equal(t, 1, dash.PendingApprovals)
	assert.Equal(t, now, dash.GeneratedAt)
}

type stubLedger struct {
	since time.Time
	err   error
}

func (s *stubLedger) FlakyTests(context.Context, repository.FlakyOptions) ([]models.FlakyTest, error) {
	return nil, s.err
}

func (s *stubLedger) StatusBreakdown(_ context.Context, since time.Time) (models.ExecutionStats, error) {
	s.since = since
	return models.ExecutionStats{}, s.err
}

type stubDecisions struct{}

func (stubDecisions) Pending(context.Context) ([]models.SelfHealDecision, error) { return nil, nil }
func (stubDecisions) SuccessRate(context.Context, int) (float64, error)         { return 0, nil }

func TestExecutionStatsWindow(t *testing.T) {
	now := time.Date(2025, 11, 3, 9, 0, 0, 0, time.UTC)
	ledger := &stubLedger{}
	engine := New("client_A", ledger, stubDecisions{}, func() time.Time { return now })

	_, err := engine.ExecutionStats(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, now.Add(-7*24*time.Hour), ledger.since)

	_, err = engine.ExecutionStats(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, now.Add(-24*time.Hour), ledger.since)
}

func TestDashboardPropagatesErrors(t *testing.T) {
	engine := New("client_A", &stubLedger{err: docstore.ErrUnavailable}, stubDecisions{}, nil)
	_, err := engine.Dashboard(context.Background())
	assert.True(t, errors.Is(err, docstore.ErrUnavailable))
}
