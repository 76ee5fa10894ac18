package repository

import (
	"context"
	"fmt"

	"github.com/lyzr/teststate/common/docstore"
	"github.com/lyzr/teststate/common/models"
	"github.com/lyzr/teststate/common/tenant"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// SnapshotRepository stores UI snapshots append-only and diffs against the
// latest one per page
type SnapshotRepository struct {
	base
}

// NewSnapshotRepository creates a new snapshot store
func NewSnapshotRepository(store docstore.Store, tc *tenant.Context, clock Clock) *SnapshotRepository {
	return &SnapshotRepository{base: newBase(store, tc, clock, CollSnapshots)}
}

// Save appends a snapshot; earlier snapshots of the page are kept.
func (r *SnapshotRepository) Save(ctx context.Context, snapshot *models.UISnapshot) (string, error) {
	snapshot.Hospital = r.tenant.ID()
	snapshot.Timestamp = r.now()
	if snapshot.Selectors == nil {
		snapshot.Selectors = []string{}
	}
	snapshot.Clean()

	id, err := r.store.InsertOne(ctx, r.ns, snapshot)
	if err != nil {
		return "", fmt.Errorf("failed to save snapshot of %s: %w", snapshot.PageIdentifier, err)
	}
	if oid, err := bson.ObjectIDFromHex(id); err == nil {
		snapshot.ID = oid
	}

	return id, nil
}

// Latest returns the newest snapshot of a page, or nil, nil when the page
// has never been captured.
func (r *SnapshotRepository) Latest(ctx context.Context, pageIdentifier string) (*models.UISnapshot, error) {
	raw, err := r.store.FindOne(ctx, r.ns, r.tenant.Scope(docstore.Eq("page_identifier", pageIdentifier)), latestFirst)
	if err != nil {
		return nil, fmt.Errorf("failed to get latest snapshot: %w", err)
	}

	return docstore.Decode[models.UISnapshot](raw)
}

// Diff compares current against the latest stored snapshot of the page.
// current is not saved.
func (r *SnapshotRepository) Diff(ctx context.Context, pageIdentifier string, current *models.UISnapshot) (models.UIDiff, error) {
	previous, err := r.Latest(ctx, pageIdentifier)
	if err != nil {
		return models.UIDiff{}, err
	}

	var selectors []string
	if current != nil {
		selectors = current.Selectors
	}
	return models.DiffSnapshots(previous, selectors), nil
}
