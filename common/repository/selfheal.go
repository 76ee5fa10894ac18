package repository

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/lyzr/teststate/common/docstore"
	"github.com/lyzr/teststate/common/metrics"
	"github.com/lyzr/teststate/common/models"
	"github.com/lyzr/teststate/common/tenant"
	"go.mongodb.org/mongo-driver/v2/bson"
)

const (
	defaultSimilarLimit      = 5
	defaultSuccessWindowDays = 30
)

// SimilarityFinder looks up approved decisions resembling a failure.
type SimilarityFinder interface {
	FindSimilar(ctx context.Context, failureReason string, limit int64) ([]models.SelfHealDecision, error)
}

// TextSimilarity ranks approved decisions by full-text relevance of their
// failure_reason.
type TextSimilarity struct {
	base
}

// NewTextSimilarity creates the default SimilarityFinder
func NewTextSimilarity(store docstore.Store, tc *tenant.Context) *TextSimilarity {
	return &TextSimilarity{base: newBase(store, tc, nil, CollSelfHeal)}
}

func (s *TextSimilarity) FindSimilar(ctx context.Context, failureReason string, limit int64) ([]models.SelfHealDecision, error) {
	if strings.TrimSpace(failureReason) == "" {
		return []models.SelfHealDecision{}, nil
	}

	raws, err := s.store.TextSearch(ctx, s.ns, failureReason, s.tenant.Scope(docstore.Eq("engineer_approved", true)), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search similar heals: %w", err)
	}

	return docstore.DecodeAll[models.SelfHealDecision](raws)
}

// SelfHealRepository records selector repairs and drives their approval
type SelfHealRepository struct {
	base
	similar SimilarityFinder
}

// NewSelfHealRepository creates a decision store using TextSimilarity
func NewSelfHealRepository(store docstore.Store, tc *tenant.Context, clock Clock) *SelfHealRepository {
	return &SelfHealRepository{
		base:    newBase(store, tc, clock, CollSelfHeal),
		similar: NewTextSimilarity(store, tc),
	}
}

// SetSimilarityFinder swaps the lookup used by FindSimilar, e.g. for an
// embedding-backed search.
func (r *SelfHealRepository) SetSimilarityFinder(f SimilarityFinder) {
	r.similar = f
}

// Record stores a proposed decision. engineer_approved keeps the caller's
// value and is false when unset.
func (r *SelfHealRepository) Record(ctx context.Context, decision *models.SelfHealDecision) (string, error) {
	c := decision.UIChangeDetected.Confidence
	if math.IsNaN(c) || c < 0 || c > 1 {
		return "", fmt.Errorf("%w: confidence %v outside [0,1]", ErrInvalid, c)
	}

	decision.Hospital = r.tenant.ID()
	decision.Timestamp = r.now()
	decision.Score = 0
	decision.Clean()

	id, err := r.store.InsertOne(ctx, r.ns, decision)
	if err != nil {
		return "", fmt.Errorf("failed to record self-heal decision for %s: %w", decision.TestID, err)
	}
	if oid, err := bson.ObjectIDFromHex(id); err == nil {
		decision.ID = oid
	}

	return id, nil
}

// Get retrieves one decision. Unknown or malformed ids return nil, nil.
func (r *SelfHealRepository) Get(ctx context.Context, healID string) (*models.SelfHealDecision, error) {
	oid, err := bson.ObjectIDFromHex(healID)
	if err != nil {
		return nil, nil
	}

	raw, err := r.store.FindOne(ctx, r.ns, r.tenant.Scope(docstore.Eq(docstore.FieldID, oid)), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get self-heal decision: %w", err)
	}

	return docstore.Decode[models.SelfHealDecision](raw)
}

// Pending returns decisions awaiting approval, newest first
func (r *SelfHealRepository) Pending(ctx context.Context) ([]models.SelfHealDecision, error) {
	raws, err := r.store.Find(ctx, r.ns, r.tenant.Scope(docstore.Eq("engineer_approved", false)), docstore.FindOptions{
		Sort: latestFirst,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list pending approvals: %w", err)
	}

	return docstore.DecodeAll[models.SelfHealDecision](raws)
}

// Approve marks a pending decision approved in one conditional update, so
// concurrent approvals stamp approved_at exactly once. It returns false for
// unknown, malformed or already approved ids.
func (r *SelfHealRepository) Approve(ctx context.Context, healID, notes string) (bool, error) {
	oid, err := bson.ObjectIDFromHex(healID)
	if err != nil {
		metrics.IncApproval(false)
		return false, nil
	}

	res, err := r.store.UpdateOne(ctx, r.ns,
		r.tenant.Scope(docstore.Eq(docstore.FieldID, oid), docstore.Eq("engineer_approved", false)),
		docstore.Update{Set: map[string]any{
			"engineer_approved": true,
			"approved_at":       r.now(),
			"engineer_notes":    notes,
		}},
	)
	if err != nil {
		return false, fmt.Errorf("failed to approve self-heal decision: %w", err)
	}

	approved := res.ModifiedCount > 0
	metrics.IncApproval(approved)
	return approved, nil
}

// FindSimilar returns up to limit approved decisions resembling
// failureReason. limit <= 0 means 5.
func (r *SelfHealRepository) FindSimilar(ctx context.Context, failureReason string, limit int64) ([]models.SelfHealDecision, error) {
	if limit <= 0 {
		limit = defaultSimilarLimit
	}
	return r.similar.FindSimilar(ctx, failureReason, limit)
}

// SuccessRate is approved / total over decisions recorded in the last
// windowDays days, or 0 when there are none. windowDays <= 0 means 30.
func (r *SelfHealRepository) SuccessRate(ctx context.Context, windowDays int) (float64, error) {
	if windowDays <= 0 {
		windowDays = defaultSuccessWindowDays
	}
	since := r.now().Add(-time.Duration(windowDays) * 24 * time.Hour)

	raws, err := r.store.Aggregate(ctx, r.ns, docstore.Pipeline{
		docstore.Match{Filter: r.tenant.Scope(docstore.Gte("timestamp", since))},
		docstore.Group{Accumulators: []docstore.Accumulator{
			docstore.Count("total"),
			docstore.CountWhere("approved", "engineer_approved", true),
		}},
		docstore.Ratio{Name: "rate", Numerator: "approved", Denominator: "total"},
	})
	if err != nil {
		return 0, fmt.Errorf("failed to aggregate self-heal success rate: %w", err)
	}
	if len(raws) == 0 {
		return 0, nil
	}

	var row struct {
		Rate float64 `bson:"rate"`
	}
	if err := bson.Unmarshal(raws[0], &row); err != nil {
		return 0, fmt.Errorf("failed to decode success rate: %w", err)
	}
	return row.Rate, nil
}
