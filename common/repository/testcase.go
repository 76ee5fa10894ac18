package repository

import (
	"context"
	"fmt"

	"github.com/lyzr/teststate/common/docstore"
	"github.com/lyzr/teststate/common/models"
	"github.com/lyzr/teststate/common/tenant"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// TestCaseRepository handles storage of test case definitions
type TestCaseRepository struct {
	base
}

// NewTestCaseRepository creates a new test case repository
func NewTestCaseRepository(store docstore.Store, tc *tenant.Context, clock Clock) *TestCaseRepository {
	return &TestCaseRepository{base: newBase(store, tc, clock, CollTestCases)}
}

// Create registers a new test case and returns its storage id. An existing
// test_id fails with docstore.ErrDuplicateKey and leaves the stored case
// untouched.
func (r *TestCaseRepository) Create(ctx context.Context, testCase *models.TestCase) (string, error) {
	if testCase.TestID == "" {
		return "", fmt.Errorf("%w: test_id is required", ErrInvalid)
	}

	now := r.now()
	testCase.Hospital = r.tenant.ID()
	testCase.CreatedAt = now
	testCase.LastModified = now
	if testCase.Status == "" {
		testCase.Status = models.TestCaseActive
	}
	if err := testCase.Status.Validate(); err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	testCase.Clean()

	id, err := r.store.InsertOne(ctx, r.ns, testCase)
	if err != nil {
		return "", fmt.Errorf("failed to create test case %s: %w", testCase.TestID, err)
	}
	if oid, err := bson.ObjectIDFromHex(id); err == nil {
		testCase.ID = oid
	}

	return id, nil
}

// Get retrieves a test case by test_id. Returns nil, nil when absent.
func (r *TestCaseRepository) Get(ctx context.Context, testID string) (*models.TestCase, error) {
	raw, err := r.store.FindOne(ctx, r.ns, r.tenant.Scope(docstore.Eq("test_id", testID)), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get test case: %w", err)
	}

	return docstore.Decode[models.TestCase](raw)
}

// Update applies a partial update and refreshes last_modified. It reports
// whether a document changed; an unknown test_id is not an error.
func (r *TestCaseRepository) Update(ctx context.Context, testID string, update models.TestCaseUpdate) (bool, error) {
	set, err := update.Fields()
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	set["last_modified"] = r.now()

	res, err := r.store.UpdateOne(ctx, r.ns, r.tenant.Scope(docstore.Eq("test_id", testID)), docstore.Update{Set: set})
	if err != nil {
		return false, fmt.Errorf("failed to update test case: %w", err)
	}

	return res.ModifiedCount > 0, nil
}

// Deactivate moves a test case to inactive; test cases are never deleted.
func (r *TestCaseRepository) Deactivate(ctx context.Context, testID string) (bool, error) {
	inactive := models.TestCaseInactive
	return r.Update(ctx, testID, models.TestCaseUpdate{Status: &inactive})
}

// ListByStatus retrieves test cases in a status, most recently modified first
func (r *TestCaseRepository) ListByStatus(ctx context.Context, status models.TestCaseStatus, limit int64) ([]models.TestCase, error) {
	return r.list(ctx, r.tenant.Scope(docstore.Eq("status", status)), limit)
}

// ListByTag retrieves test cases carrying a tag, most recently modified first
func (r *TestCaseRepository) ListByTag(ctx context.Context, tag string, limit int64) ([]models.TestCase, error) {
	return r.list(ctx, r.tenant.Scope(docstore.Eq("tags", tag)), limit)
}

func (r *TestCaseRepository) list(ctx context.Context, filter docstore.Filter, limit int64) ([]models.TestCase, error) {
	raws, err := r.store.Find(ctx, r.ns, filter, docstore.FindOptions{
		Sort:  docstore.By(docstore.Desc("last_modified"), docstore.Desc(docstore.FieldID)),
		Limit: limit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list test cases: %w", err)
	}

	return docstore.DecodeAll[models.TestCase](raws)
}
