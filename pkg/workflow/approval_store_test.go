package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func mustCreateRecord(t *testing.T, db *gorm.DB, store *ApprovalStore, r *ApprovalRecord) *ApprovalRecord {
	t.Helper()
	require.NoError(t, store.Create(db, r))
	return r
}

func TestApprovalStoreCreateValidation(t *testing.T) {
	db := newTestDB(t)
	store := NewApprovalStore(db)

	err := store.Create(db, &ApprovalRecord{
		EntityType: EntityFramework, EntityID: 1, Version: "u1",
	})
	require.Error(t, err)
	assert.Equal(t, CodeTenancy, FaultCode(err))

	err = store.Create(db, &ApprovalRecord{
		TenantID: "acme", EntityType: EntityFramework, EntityID: 1, Version: "v1",
	})
	require.Error(t, err)
	assert.Equal(t, CodeValidation, FaultCode(err))
}

func TestApprovalStoreDuplicateVersionConflicts(t *testing.T) {
	db := newTestDB(t)
	store := NewApprovalStore(db)

	mustCreateRecord(t, db, store, &ApprovalRecord{
		TenantID: "acme", EntityType: EntityFramework, EntityID: 1, Version: "u1",
	})

	err := store.Create(db, &ApprovalRecord{
		TenantID: "acme", EntityType: EntityFramework, EntityID: 1, Version: "u1",
	})
	require.Error(t, err)
	assert.Equal(t, CodeVersion, FaultCode(err))

	// Same version on a different entity is fine.
	mustCreateRecord(t, db, store, &ApprovalRecord{
		TenantID: "acme", EntityType: EntityFramework, EntityID: 2, Version: "u1",
	})
	mustCreateRecord(t, db, store, &ApprovalRecord{
		TenantID: "acme", EntityType: EntityPolicy, EntityID: 1, Version: "u1",
	})
}

func TestApprovalStoreLatestAxisPrecedence(t *testing.T) {
	db := newTestDB(t)
	store := NewApprovalStore(db)

	for _, v := range []string{"u1", "u2", "r1", "u3"} {
		mustCreateRecord(t, db, store, &ApprovalRecord{
			TenantID: "acme", EntityType: EntityFramework, EntityID: 1, Version: v,
		})
	}

	// Reviewer axis outranks user axis regardless of insertion order.
	latest, err := store.Latest("acme", EntityFramework, 1)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, "r1", latest.Version)

	// LatestWorking is purely insertion order.
	working, err := store.LatestWorking("acme", EntityFramework, 1)
	require.NoError(t, err)
	require.NotNil(t, working)
	assert.Equal(t, "u3", working.Version)
}

func TestApprovalStoreLatestMissingEntity(t *testing.T) {
	db := newTestDB(t)
	store := NewApprovalStore(db)

	latest, err := store.Latest("acme", EntityFramework, 99)
	require.NoError(t, err)
	assert.Nil(t, latest)

	working, err := store.LatestWorking("acme", EntityFramework, 99)
	require.NoError(t, err)
	assert.Nil(t, working)
}

func TestApprovalStoreTenantScoping(t *testing.T) {
	db := newTestDB(t)
	store := NewApprovalStore(db)

	rec := mustCreateRecord(t, db, store, &ApprovalRecord{
		TenantID: "acme", EntityType: EntityFramework, EntityID: 1, Version: "u1",
	})

	got, err := store.Get("globex", rec.ID)
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = store.Get("acme", rec.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "u1", got.Version)

	latest, err := store.Latest("globex", EntityFramework, 1)
	require.NoError(t, err)
	assert.Nil(t, latest)
}

func TestApprovalStoreLatestPerFramework(t *testing.T) {
	db := newTestDB(t)
	store := NewApprovalStore(db)

	for _, r := range []ApprovalRecord{
		{TenantID: "acme", EntityType: EntityFramework, EntityID: 1, Version: "u1"},
		{TenantID: "acme", EntityType: EntityFramework, EntityID: 1, Version: "r1"},
		{TenantID: "acme", EntityType: EntityFramework, EntityID: 2, Version: "u1"},
		{TenantID: "acme", EntityType: EntityPolicy, EntityID: 3, Version: "u1"},
	} {
		rec := r
		mustCreateRecord(t, db, store, &rec)
	}

	got, err := store.LatestPerFramework("acme")
	require.NoError(t, err)
	require.Len(t, got, 2)
	// Newest row first, one per framework, policies excluded.
	assert.Equal(t, int64(2), got[0].EntityID)
	assert.Equal(t, int64(1), got[1].EntityID)
	assert.Equal(t, "r1", got[1].Version)
}

func TestApprovalStoreUserScopedListings(t *testing.T) {
	db := newTestDB(t)
	store := NewApprovalStore(db)

	rejected := false
	for _, r := range []ApprovalRecord{
		{TenantID: "acme", EntityType: EntityFramework, EntityID: 1, Version: "u1", AuthorID: 10, ReviewerID: 20},
		{TenantID: "acme", EntityType: EntityFramework, EntityID: 1, Version: "r1", AuthorID: 10, ReviewerID: 20, ApprovedNot: &rejected},
		{TenantID: "acme", EntityType: EntityFramework, EntityID: 2, Version: "u1", AuthorID: 11, ReviewerID: 20},
	} {
		rec := r
		mustCreateRecord(t, db, store, &rec)
	}

	byAuthor, err := store.ByAuthor("acme", 10)
	require.NoError(t, err)
	require.Len(t, byAuthor, 1)
	assert.Equal(t, "r1", byAuthor[0].Version)

	byReviewer, err := store.ByReviewer("acme", 20)
	require.NoError(t, err)
	assert.Len(t, byReviewer, 2)

	rejectedFor, err := store.RejectedForUser("acme", 10)
	require.NoError(t, err)
	require.Len(t, rejectedFor, 1)
	assert.Equal(t, "r1", rejectedFor[0].Version)

	none, err := store.RejectedForUser("acme", 11)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestApprovalStoreStatusChangeRequests(t *testing.T) {
	db := newTestDB(t)
	store := NewApprovalStore(db)

	for _, r := range []ApprovalRecord{
		{TenantID: "acme", EntityType: EntityFramework, EntityID: 1, Version: "u1"},
		{TenantID: "acme", EntityType: EntityFramework, EntityID: 1, Version: "u2", RequestType: RequestTypeStatusChange},
		{TenantID: "acme", EntityType: EntitySLA, EntityID: 4, Version: "u1", RequestType: RequestTypeStatusChange},
	} {
		rec := r
		mustCreateRecord(t, db, store, &rec)
	}

	all, err := store.StatusChangeRequests("acme", "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	fwOnly, err := store.StatusChangeRequests("acme", EntityFramework)
	require.NoError(t, err)
	require.Len(t, fwOnly, 1)
	assert.Equal(t, "u2", fwOnly[0].Version)
}

func TestApprovalStoreCountReviewerRecords(t *testing.T) {
	db := newTestDB(t)
	store := NewApprovalStore(db)

	for _, v := range []string{"u1", "r1", "u2", "r2", "u3"} {
		mustCreateRecord(t, db, store, &ApprovalRecord{
			TenantID: "acme", EntityType: EntityRiskInstance, EntityID: 1, Version: v,
		})
	}

	n, err := store.CountReviewerRecords(db, "acme", EntityRiskInstance, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}
