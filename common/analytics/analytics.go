// Package analytics derives read-only statistics from the execution ledger
// and the self-heal decision store. Nothing is cached; every call
// aggregates fresh.
package analytics

import (
	"context"
	"fmt"
	"time"

	"github.com/lyzr/teststate/common/models"
	"github.com/lyzr/teststate/common/repository"
)

const defaultStatsWindowDays = 7

// Ledger is the read side of the execution ledger.
type Ledger interface {
	FlakyTests(ctx context.Context, opts repository.FlakyOptions) ([]models.FlakyTest, error)
	StatusBreakdown(ctx context.Context, since time.Time) (models.ExecutionStats, error)
}

// Decisions is the read side of the self-heal decision store.
type Decisions interface {
	Pending(ctx context.Context) ([]models.SelfHealDecision, error)
	SuccessRate(ctx context.Context, windowDays int) (float64, error)
}

// Engine computes tenant statistics
type Engine struct {
	hospital  string
	ledger    Ledger
	decisions Decisions
	now       func() time.Time
}

// New creates an analytics engine. A nil clock uses time.Now.
func New(hospital string, ledger Ledger, decisions Decisions, clock func() time.Time) *Engine {
	if clock == nil {
		clock = time.Now
	}
	return &Engine{hospital: hospital, ledger: ledger, decisions: decisions, now: clock}
}

// ExecutionStats returns per-status count and mean duration over the last
// windowDays days. windowDays <= 0 means 7.
func (e *Engine) ExecutionStats(ctx context.Context, windowDays int) (models.ExecutionStats, error) {
	if windowDays <= 0 {
		windowDays = defaultStatsWindowDays
	}
	since := e.now().UTC().Add(-time.Duration(windowDays) * 24 * time.Hour)
	return e.ledger.StatusBreakdown(ctx, since)
}

func (e *Engine) FlakyTests(ctx context.Context, opts repository.FlakyOptions) ([]models.FlakyTest, error) {
	return e.ledger.FlakyTests(ctx, opts)
}

func (e *Engine) SuccessRate(ctx context.Context, windowDays int) (float64, error) {
	return e.decisions.SuccessRate(ctx, windowDays)
}

// Dashboard combines flaky tests, the 30 day self-heal success rate, the
// 7 day execution stats and the approval backlog.
func (e *Engine) Dashboard(ctx context.Context) (*models.Dashboard, error) {
	flaky, err := e.FlakyTests(ctx, repository.DefaultFlakyOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to build dashboard: %w", err)
	}

	rate, err := e.SuccessRate(ctx, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to build dashboard: %w", err)
	}

	stats, err := e.ExecutionStats(ctx, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to build dashboard: %w", err)
	}

	pending, err := e.decisions.Pending(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to build dashboard: %w", err)
	}

	if flaky == nil {
		flaky = []models.FlakyTest{}
	}
	return &models.Dashboard{
		Hospital:            e.hospital,
		FlakyTests:          flaky,
		SelfHealSuccessRate: rate,
		ExecutionStats:      stats,
		PendingApprovals:    len(pending),
		GeneratedAt:         e.now().UTC(),
	}, nil
}
