// Package state wires one tenant's repositories, context cache and
// analytics into a Manager, and hands out Managers per tenant through a
// Registry.
package state

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/lyzr/teststate/common/analytics"
	"github.com/lyzr/teststate/common/cache"
	"github.com/lyzr/teststate/common/docstore"
	"github.com/lyzr/teststate/common/logger"
	"github.com/lyzr/teststate/common/models"
	"github.com/lyzr/teststate/common/repository"
	"github.com/lyzr/teststate/common/tenant"
)

const defaultHealthTimeout = 3 * time.Second

// Manager is the state facade for one tenant.
type Manager struct {
	tenant *tenant.Context
	store  docstore.Store
	log    *logger.Logger

	testCases  *repository.TestCaseRepository
	executions *repository.ExecutionRepository
	heals      *repository.SelfHealRepository
	snapshots  *repository.SnapshotRepository
	cache      cache.Cache
	analytics  *analytics.Engine

	healthTimeout time.Duration
	cacheTTL      time.Duration
}

type settings struct {
	clock         repository.Clock
	cache         cache.Cache
	similar       repository.SimilarityFinder
	healthTimeout time.Duration
	cacheTTL      time.Duration
}

// Option configures a Manager
type Option func(*settings)

// WithClock overrides the time source of every repository
func WithClock(clock repository.Clock) Option {
	return func(s *settings) { s.clock = clock }
}

// WithCache replaces the store-backed context cache
func WithCache(c cache.Cache) Option {
	return func(s *settings) { s.cache = c }
}

// WithSimilarityFinder replaces the text-search similarity lookup
func WithSimilarityFinder(f repository.SimilarityFinder) Option {
	return func(s *settings) { s.similar = f }
}

// WithHealthTimeout bounds HealthCheck
func WithHealthTimeout(d time.Duration) Option {
	return func(s *settings) { s.healthTimeout = d }
}

// WithDefaultCacheTTL sets the ttl used when CacheContext gets none
func WithDefaultCacheTTL(d time.Duration) Option {
	return func(s *settings) { s.cacheTTL = d }
}

// New builds the Manager for one tenant and ensures its indexes.
func New(ctx context.Context, store docstore.Store, tc *tenant.Context, log *logger.Logger, opts ...Option) (*Manager, error) {
	s := settings{
		clock:         repository.SystemClock,
		healthTimeout: defaultHealthTimeout,
		cacheTTL:      cache.DefaultTTL,
	}
	for _, opt := range opts {
		opt(&s)
	}

	log = log.WithTenant(tc.ID())
	if err := repository.EnsureIndexes(ctx, store, tc); err != nil {
		return nil, err
	}
	log.Debug("database indexes ensured")

	m := &Manager{
		tenant:        tc,
		store:         store,
		log:           log,
		testCases:     repository.NewTestCaseRepository(store, tc, s.clock),
		executions:    repository.NewExecutionRepository(store, tc, s.clock),
		heals:         repository.NewSelfHealRepository(store, tc, s.clock),
		snapshots:     repository.NewSnapshotRepository(store, tc, s.clock),
		cache:         s.cache,
		healthTimeout: s.healthTimeout,
		cacheTTL:      s.cacheTTL,
	}
	if m.cache == nil {
		m.cache = cache.Instrument(repository.NewContextCacheRepository(store, tc, s.clock), "store")
	}
	if s.similar != nil {
		m.heals.SetSimilarityFinder(s.similar)
	}
	m.analytics = analytics.New(tc.ID(), m.executions, m.heals, s.clock)

	log.Info("state manager initialized", "database", tc.Database())
	return m, nil
}

// Tenant returns the tenant this manager serves
func (m *Manager) Tenant() *tenant.Context {
	return m.tenant
}

// ==================== TEST CASES ====================

func (m *Manager) CreateTestCase(ctx context.Context, testCase *models.TestCase) (string, error) {
	id, err := m.testCases.Create(ctx, testCase)
	if errors.Is(err, docstore.ErrDuplicateKey) {
		m.log.WithContext(ctx).Warn("test case already exists", "test_id", testCase.TestID)
		return "", err
	}
	if err != nil {
		return "", err
	}

	m.log.WithContext(ctx).Info("created test case", "test_id", testCase.TestID)
	return id, nil
}

func (m *Manager) GetTestCase(ctx context.Context, testID string) (*models.TestCase, error) {
	return m.testCases.Get(ctx, testID)
}

func (m *Manager) UpdateTestCase(ctx context.Context, testID string, update models.TestCaseUpdate) (bool, error) {
	return m.testCases.Update(ctx, testID, update)
}

func (m *Manager) DeactivateTestCase(ctx context.Context, testID string) (bool, error) {
	return m.testCases.Deactivate(ctx, testID)
}

// ListTestCases filters by tag when one is given, otherwise by status
// (active when empty).
func (m *Manager) ListTestCases(ctx context.Context, status models.TestCaseStatus, tag string, limit int64) ([]models.TestCase, error) {
	if tag != "" {
		return m.testCases.ListByTag(ctx, tag, limit)
	}
	if status == "" {
		status = models.TestCaseActive
	}
	return m.testCases.ListByStatus(ctx, status, limit)
}

// ==================== EXECUTIONS ====================

func (m *Manager) RecordExecution(ctx context.Context, execution *models.Execution) (string, error) {
	id, err := m.executions.Record(ctx, execution)
	if err != nil {
		return "", err
	}

	args := []any{"test_case_id", execution.TestCaseID, "status", execution.Status}
	if !execution.Passed() && execution.FailureReason != "" {
		args = append(args, "failure_reason", execution.FailureReason)
	}
	m.log.WithContext(ctx).Info("recorded execution", args...)
	return id, nil
}

func (m *Manager) ExecutionHistory(ctx context.Context, testCaseID string, limit int64) ([]models.Execution, error) {
	return m.executions.History(ctx, testCaseID, limit)
}

func (m *Manager) FlakyTests(ctx context.Context, opts repository.FlakyOptions) ([]models.FlakyTest, error) {
	return m.analytics.FlakyTests(ctx, opts)
}

// ==================== SELF-HEALING ====================

func (m *Manager) RecordSelfHeal(ctx context.Context, decision *models.SelfHealDecision) (string, error) {
	id, err := m.heals.Record(ctx, decision)
	if err != nil {
		return "", err
	}

	m.log.WithContext(ctx).Info("recorded self-heal decision", "test_id", decision.TestID, "heal_id", id)
	return id, nil
}

func (m *Manager) GetSelfHeal(ctx context.Context, healID string) (*models.SelfHealDecision, error) {
	return m.heals.Get(ctx, healID)
}

func (m *Manager) PendingApprovals(ctx context.Context) ([]models.SelfHealDecision, error) {
	return m.heals.Pending(ctx)
}

func (m *Manager) ApproveSelfHeal(ctx context.Context, healID, notes string) (bool, error) {
	approved, err := m.heals.Approve(ctx, healID, notes)
	if err != nil {
		return false, err
	}

	if approved {
		m.log.WithContext(ctx).Info("approved self-heal decision", "heal_id", healID)
	} else {
		m.log.WithContext(ctx).Debug("self-heal approval was a no-op", "heal_id", healID)
	}
	return approved, nil
}

func (m *Manager) FindSimilarHeals(ctx context.Context, failureReason string, limit int64) ([]models.SelfHealDecision, error) {
	return m.heals.FindSimilar(ctx, failureReason, limit)
}

// ==================== UI SNAPSHOTS ====================

func (m *Manager) SaveSnapshot(ctx context.Context, snapshot *models.UISnapshot) (string, error) {
	return m.snapshots.Save(ctx, snapshot)
}

func (m *Manager) LatestSnapshot(ctx context.Context, pageIdentifier string) (*models.UISnapshot, error) {
	return m.snapshots.Latest(ctx, pageIdentifier)
}

func (m *Manager) DetectUIChanges(ctx context.Context, pageIdentifier string, current *models.UISnapshot) (models.UIDiff, error) {
	return m.snapshots.Diff(ctx, pageIdentifier, current)
}

// ==================== LLM CONTEXT CACHE ====================

// CacheContext stores context for promptHash. ttl <= 0 uses the configured
// default.
func (m *Manager) CacheContext(ctx context.Context, promptHash string, data map[string]any, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = m.cacheTTL
	}
	return m.cache.Put(ctx, promptHash, data, ttl)
}

func (m *Manager) CachedContext(ctx context.Context, promptHash string) (map[string]any, bool, error) {
	return m.cache.Get(ctx, promptHash)
}

// ==================== ANALYTICS ====================

func (m *Manager) SelfHealSuccessRate(ctx context.Context, windowDays int) (float64, error) {
	return m.analytics.SuccessRate(ctx, windowDays)
}

func (m *Manager) ExecutionStats(ctx context.Context, windowDays int) (models.ExecutionStats, error) {
	return m.analytics.ExecutionStats(ctx, windowDays)
}

func (m *Manager) Dashboard(ctx context.Context) (*models.Dashboard, error) {
	return m.analytics.Dashboard(ctx)
}

// HealthCheck pings the document store. Failures are logged and reported
// as false.
func (m *Manager) HealthCheck(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, m.healthTimeout)
	defer cancel()

	if err := m.store.Ping(ctx); err != nil {
		m.log.WithContext(ctx).Error("document store connection failed", "error", err)
		return false
	}
	return true
}

// Close releases the context cache if it holds resources.
func (m *Manager) Close() error {
	if c, ok := m.cache.(io.Closer); ok {
		if err := c.Close(); err != nil {
			return fmt.Errorf("failed to close context cache: %w", err)
		}
	}
	return nil
}
