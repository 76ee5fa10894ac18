package repository

import (
	"context"
	"testing"
	"time"

	"github.com/lyzr/teststate/common/docstore"
	"github.com/lyzr/teststate/common/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func patientRegistration() *models.TestCase {
	return &models.TestCase{
		TestID:      "TC_PATIENT_REG_001",
		Name:        "Patient Registration - Epic v2025.11",
		Description: "Verify patient can register with insurance info",
		Steps:       []string{"Navigate to patient registration", "Fill personal details", "Submit form"},
		Selectors:   map[string]string{"submit": "#submit-registration"},
		Tags:        []string{"patient", "registration", "epic"},
		Extra:       map[string]any{"epic_version": "2025.11"},
	}
}

func TestTestCaseCreateAndGet(t *testing.T) {
	ctx := context.Background()
	tc := newTenant(t, "client_A")
	clock := newFakeClock()
	repo := NewTestCaseRepository(newIndexedStore(t, tc), tc, clock.Now)

	id, err := repo.Create(ctx, patientRegistration())
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	got, err := repo.Get(ctx, "TC_PATIENT_REG_001")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, id, got.ID.Hex())
	assert.Equal(t, "client_A", got.Hospital)
	assert.Equal(t, models.TestCaseActive, got.Status)
	assert.True(t, clock.Now().Truncate(time.Millisecond).Equal(got.CreatedAt))
	assert.True(t, got.CreatedAt.Equal(got.LastModified))
	assert.Equal(t, "2025.11", got.Extra["epic_version"])
	assert.Equal(t, []string{"patient", "registration", "epic"}, got.Tags)

	missing, err := repo.Get(ctx, "TC_NOPE")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestTestCaseCreateRequiresTestID(t *testing.T) {
	tc := newTenant(t, "client_A")
	repo := NewTestCaseRepository(newIndexedStore(t, tc), tc, nil)

	_, err := repo.Create(context.Background(), &models.TestCase{Name: "nameless"})
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestTestCaseDuplicateLeavesOriginal(t *testing.T) {
	ctx := context.Background()
	tc := newTenant(t, "client_A")
	repo := NewTestCaseRepository(newIndexedStore(t, tc), tc, nil)

	_, err := repo.Create(ctx, patientRegistration())
	require.NoError(t, err)

	dup := patientRegistration()
	dup.Name = "Overwritten"
	_, err = repo.Create(ctx, dup)
	assert.ErrorIs(t, err, docstore.ErrDuplicateKey)

	got, err := repo.Get(ctx, "TC_PATIENT_REG_001")
	require.NoError(t, err)
	assert.Equal(t, "Patient Registration - Epic v2025.11", got.Name)
}

func TestTestCaseUpdate(t *testing.T) {
	ctx := context.Background()
	tc := newTenant(t, "client_A")
	clock := newFakeClock()
	repo := NewTestCaseRepository(newIndexedStore(t, tc), tc, clock.Now)

	_, err := repo.Create(ctx, patientRegistration())
	require.NoError(t, err)
	clock.Advance(time.Minute)

	name := "Patient Registration v2"
	changed, err := repo.Update(ctx, "TC_PATIENT_REG_001", models.TestCaseUpdate{
		Name:  &name,
		Extra: map[string]any{"epic_version": "2026.02"},
	})
	require.NoError(t, err)
	assert.True(t, changed)

	got, err := repo.Get(ctx, "TC_PATIENT_REG_001")
	require.NoError(t, err)
	assert.Equal(t, name, got.Name)
	assert.Equal(t, "2026.02", got.Extra["epic_version"])
	assert.True(t, got.LastModified.After(got.CreatedAt))

	changed, err = repo.Update(ctx, "TC_UNKNOWN", models.TestCaseUpdate{Name: &name})
	require.NoError(t, err)
	assert.False(t, changed)

	_, err = repo.Update(ctx, "TC_PATIENT_REG_001", models.TestCaseUpdate{Extra: map[string]any{"hospital": "client_B"}})
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestTestCaseDeactivateAndList(t *testing.T) {
	ctx := context.Background()
	tc := newTenant(t, "client_A")
	clock := newFakeClock()
	repo := NewTestCaseRepository(newIndexedStore(t, tc), tc, clock.Now)

	for _, id := range []string{"TC_1", "TC_2", "TC_3"} {
		_, err := repo.Create(ctx, &models.TestCase{TestID: id, Tags: []string{"smoke"}})
		require.NoError(t, err)
		clock.Advance(time.Second)
	}

	changed, err := repo.Deactivate(ctx, "TC_2")
	require.NoError(t, err)
	assert.True(t, changed)

	active, err := repo.ListByStatus(ctx, models.TestCaseActive, 0)
	require.NoError(t, err)
	require.Len(t, active, 2)
	assert.Equal(t, "TC_3", active[0].TestID)
	assert.Equal(t, "TC_1", active[1].TestID)

	inactive, err := repo.ListByStatus(ctx, models.TestCaseInactive, 10)
	require.NoError(t, err)
	require.Len(t, inactive, 1)
	assert.Equal(t, "TC_2", inactive[0].TestID)

	tagged, err := repo.ListByTag(ctx, "smoke", 2)
	require.NoError(t, err)
	require.Len(t, tagged, 2)
	assert.Equal(t, "TC_2", tagged[0].TestID)
}
