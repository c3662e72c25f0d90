package workflow

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var testToday = time.Date(2026, time.June, 15, 10, 0, 0, 0, time.UTC)

func boolPtr(b bool) *bool { return &b }

func TestCreateFrameworkApproval(t *testing.T) {
	eng := newTestEngine(t, fixedClock(testToday))
	entities, approvals := eng.Stores()
	fw, policies, subs := seedHierarchy(t, entities, "acme")

	rec, err := eng.CreateFrameworkApproval("acme", fw.ID, 10, 20)
	require.NoError(t, err)
	assert.Equal(t, "u1", rec.Version)
	assert.Equal(t, int64(10), rec.AuthorID)
	assert.Equal(t, int64(20), rec.ReviewerID)
	assert.Nil(t, rec.ApprovedNot)

	// The whole hierarchy is Under Review and the reviewer is recorded.
	gotFw, err := entities.GetFramework("acme", fw.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusUnderReview, gotFw.Status)
	assert.Equal(t, int64(20), gotFw.Reviewer)
	for _, p := range policies {
		got, err := entities.GetPolicy("acme", p.ID)
		require.NoError(t, err)
		assert.Equal(t, StatusUnderReview, got.Status)
	}

	// The snapshot captures the full hierarchy.
	snap := rec.ExtractedData.Snapshot
	assert.Equal(t, "framework", snap.Type)
	assert.Equal(t, "ISO 27001", snap.FrameworkName)
	assert.Equal(t, StatusUnderReview, snap.Status)
	assert.Equal(t, len(policies), snap.TotalPolicies)
	assert.Equal(t, len(subs), snap.TotalSubpolicies)
	require.Len(t, snap.Policies, 2)
	assert.Len(t, snap.Policies[0].SubPolicies, 2)

	// A resubmission allocates the next user version.
	rec2, err := eng.CreateFrameworkApproval("acme", fw.ID, 10, 20)
	require.NoError(t, err)
	assert.Equal(t, "u2", rec2.Version)

	stored, err := approvals.ForEntity("acme", EntityFramework, fw.ID)
	require.NoError(t, err)
	assert.Len(t, stored, 2)
}

func TestCreateFrameworkApprovalMissingFramework(t *testing.T) {
	eng := newTestEngine(t)

	_, err := eng.CreateFrameworkApproval("acme", 99, 10, 20)
	require.Error(t, err)
	assert.Equal(t, CodeNotFound, FaultCode(err))

	_, err = eng.CreateFrameworkApproval("", 1, 10, 20)
	require.Error(t, err)
	assert.Equal(t, CodeTenancy, FaultCode(err))
}

func TestVersionConflictRetryReallocates(t *testing.T) {
	eng := newTestEngine(t)
	entities, approvals := eng.Stores()
	fw, _, _ := seedHierarchy(t, entities, "acme")

	// A rival writer commits the suffix this writer read before its insert.
	stale, err := nextVersion(entities.DB(), EntityFramework, fw.ID, AxisReviewer)
	require.NoError(t, err)
	require.Equal(t, "r1", stale.String())
	rival := &ApprovalRecord{
		TenantID: "acme", EntityType: EntityFramework, EntityID: fw.ID,
		Version: stale.String(), AuthorID: 30, ReviewerID: 20,
	}
	require.NoError(t, approvals.Create(entities.DB(), rival))

	attempts := 0
	var allocated string
	err = eng.withVersionRetry(func(tx *gorm.DB) error {
		attempts++
		v := stale
		if attempts > 1 {
			v, err = nextVersion(tx, EntityFramework, fw.ID, AxisReviewer)
			if err != nil {
				return err
			}
		}
		rec := &ApprovalRecord{
			TenantID: "acme", EntityType: EntityFramework, EntityID: fw.ID,
			Version: v.String(), AuthorID: 10, ReviewerID: 20,
		}
		if err := approvals.Create(tx, rec); err != nil {
			return err
		}
		allocated = v.String()
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
	assert.Equal(t, "r2", allocated)

	// Both suffixes exist, consecutively, with no gap.
	records, err := approvals.ForEntity("acme", EntityFramework, fw.ID)
	require.NoError(t, err)
	versions := make(map[string]bool, len(records))
	for _, r := range records {
		versions[r.Version] = true
	}
	assert.True(t, versions["r1"])
	assert.True(t, versions["r2"])
	assert.False(t, versions["r3"])
}

func TestVersionConflictSecondCollisionSurfaces(t *testing.T) {
	eng := newTestEngine(t)

	attempts := 0
	err := eng.withVersionRetry(func(tx *gorm.DB) error {
		attempts++
		return VersionConflict("version r1 already exists for framework/1")
	})
	require.Error(t, err)
	assert.Equal(t, CodeVersion, FaultCode(err))
	assert.Equal(t, 2, attempts, "a single retry, then the conflict surfaces")
}

func TestCreateFrameworkApprovalSelfReviewRejected(t *testing.T) {
	eng := newTestEngine(t)
	entities, _ := eng.Stores()
	fw, _, _ := seedHierarchy(t, entities, "acme")

	_, err := eng.CreateFrameworkApproval("acme", fw.ID, 10, 10)
	require.Error(t, err)
	assert.Equal(t, CodeValidation, FaultCode(err))
}

func TestSubmitFrameworkReviewApprove(t *testing.T) {
	eng := newTestEngine(t, fixedClock(testToday))
	entities, _ := eng.Stores()
	fw, policies, _ := seedHierarchy(t, entities, "acme")
	_, err := eng.CreateFrameworkApproval("acme", fw.ID, 10, 20)
	require.NoError(t, err)

	rec, err := eng.SubmitFrameworkReview("acme", fw.ID, 20, boolPtr(true), nil, "looks complete")
	require.NoError(t, err)
	assert.Equal(t, "r1", rec.Version)
	require.NotNil(t, rec.ApprovedNot)
	assert.True(t, *rec.ApprovedNot)
	require.NotNil(t, rec.ApprovedDate)

	// Start date in the past (nil counts as started): Approved + Active.
	gotFw, err := entities.GetFramework("acme", fw.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, gotFw.Status)
	assert.Equal(t, ActivationActive, gotFw.ActiveInactive)

	// Children cascade, with fresh policies inheriting the framework version.
	for _, p := range policies {
		got, err := entities.GetPolicy("acme", p.ID)
		require.NoError(t, err)
		assert.Equal(t, StatusApproved, got.Status)
		assert.Equal(t, ActivationActive, got.ActiveInactive)
		assert.Equal(t, "1", got.CurrentVersion)
	}
	subs, err := entities.SubPoliciesForPolicy(entities.DB(), "acme", policies[0].ID)
	require.NoError(t, err)
	for _, sp := range subs {
		assert.Equal(t, StatusApproved, sp.Status)
	}

	snap := rec.ExtractedData.Snapshot
	assert.Equal(t, StatusApproved, snap.Status)
	assert.Equal(t, ActivationActive, snap.ActiveInactive)
	require.NotNil(t, snap.FrameworkApproval)
	assert.Equal(t, "looks complete", snap.FrameworkApproval.Remarks)
}

func TestSubmitFrameworkReviewApproveFutureStartIsScheduled(t *testing.T) {
	eng := newTestEngine(t, fixedClock(testToday))
	entities, _ := eng.Stores()

	fw := &FrameworkRecord{
		TenantID:      "acme",
		FrameworkName: "NIST CSF",
		Identifier:    "NIST-CSF",
		StartDate:     datePtr(2026, time.July, 1),
	}
	require.NoError(t, entities.CreateFramework(fw))
	_, err := eng.CreateFrameworkApproval("acme", fw.ID, 10, 20)
	require.NoError(t, err)

	_, err = eng.SubmitFrameworkReview("acme", fw.ID, 20, boolPtr(true), nil, "")
	require.NoError(t, err)

	got, err := entities.GetFramework("acme", fw.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, got.Status)
	assert.Equal(t, ActivationScheduled, got.ActiveInactive)
}

func TestSubmitFrameworkReviewReject(t *testing.T) {
	eng := newTestEngine(t, fixedClock(testToday))
	entities, approvals := eng.Stores()
	fw, policies, subs := seedHierarchy(t, entities, "acme")
	_, err := eng.CreateFrameworkApproval("acme", fw.ID, 10, 20)
	require.NoError(t, err)

	rec, err := eng.SubmitFrameworkReview("acme", fw.ID, 20, boolPtr(false), nil, "missing controls")
	require.NoError(t, err)
	require.NotNil(t, rec.ApprovedNot)
	assert.False(t, *rec.ApprovedNot)

	gotFw, err := entities.GetFramework("acme", fw.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusRejected, gotFw.Status)
	for _, p := range policies {
		got, err := entities.GetPolicy("acme", p.ID)
		require.NoError(t, err)
		assert.Equal(t, StatusRejected, got.Status)
	}

	// Every descendant gets its own r-record carrying the rejection.
	for _, p := range policies {
		recs, err := approvals.ForEntity("acme", EntityPolicy, p.ID)
		require.NoError(t, err)
		require.Len(t, recs, 1)
		assert.Equal(t, "r1", recs[0].Version)
		require.NotNil(t, recs[0].ApprovedNot)
		assert.False(t, *recs[0].ApprovedNot)
		assert.Equal(t, StatusRejected, recs[0].ExtractedData.Snapshot.Status)
	}
	for _, sp := range subs {
		recs, err := approvals.ForEntity("acme", EntitySubPolicy, sp.ID)
		require.NoError(t, err)
		require.Len(t, recs, 1)
	}
}

func TestSubmitFrameworkReviewSaveProgress(t *testing.T) {
	eng := newTestEngine(t, fixedClock(testToday))
	entities, _ := eng.Stores()
	fw, _, _ := seedHierarchy(t, entities, "acme")
	_, err := eng.CreateFrameworkApproval("acme", fw.ID, 10, 20)
	require.NoError(t, err)

	// Nil verdict lands a working record without touching any status.
	rec, err := eng.SubmitFrameworkReview("acme", fw.ID, 20, nil, nil, "halfway through")
	require.NoError(t, err)
	assert.Equal(t, "r1", rec.Version)
	assert.Nil(t, rec.ApprovedNot)
	assert.Nil(t, rec.ApprovedDate)

	got, err := entities.GetFramework("acme", fw.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusUnderReview, got.Status)

	// Another save allocates the next reviewer version.
	rec2, err := eng.SubmitFrameworkReview("acme", fw.ID, 20, nil, nil, "almost done")
	require.NoError(t, err)
	assert.Equal(t, "r2", rec2.Version)
}

func TestSubmitFrameworkReviewGuards(t *testing.T) {
	eng := newTestEngine(t, fixedClock(testToday))
	entities, _ := eng.Stores()
	fw, _, _ := seedHierarchy(t, entities, "acme")

	// No submission yet.
	_, err := eng.SubmitFrameworkReview("acme", fw.ID, 20, boolPtr(true), nil, "")
	require.Error(t, err)
	assert.Equal(t, CodePrecondition, FaultCode(err))

	_, err = eng.CreateFrameworkApproval("acme", fw.ID, 10, 20)
	require.NoError(t, err)

	// Only the assigned reviewer may act.
	_, err = eng.SubmitFrameworkReview("acme", fw.ID, 77, boolPtr(true), nil, "")
	require.Error(t, err)
	assert.Equal(t, CodeAuthz, FaultCode(err))

	// Cross-tenant access reads as not found.
	_, err = eng.SubmitFrameworkReview("globex", fw.ID, 20, boolPtr(true), nil, "")
	require.Error(t, err)
	assert.Equal(t, CodeNotFound, FaultCode(err))
}

func TestApproveSupersedesPriorVersions(t *testing.T) {
	eng := newTestEngine(t, fixedClock(testToday))
	entities, _ := eng.Stores()

	prior := &FrameworkRecord{
		TenantID:       "acme",
		FrameworkName:  "ISO 27001",
		Identifier:     "ISO-27001",
		Status:         StatusApproved,
		ActiveInactive: ActivationActive,
		CurrentVersion: 1,
	}
	require.NoError(t, entities.CreateFramework(prior))
	priorPolicy := &PolicyRecord{
		TenantID: "acme", FrameworkID: prior.ID, PolicyName: "Access Control",
		Status: StatusApproved, ActiveInactive: ActivationActive, CurrentVersion: "1",
	}
	require.NoError(t, entities.CreatePolicy(priorPolicy))

	next := &FrameworkRecord{
		TenantID:          "acme",
		FrameworkName:     "ISO 27001",
		Identifier:        "ISO-27001",
		CurrentVersion:    2,
		PreviousVersionID: &prior.ID,
	}
	require.NoError(t, entities.CreateFramework(next))

	_, err := eng.CreateFrameworkApproval("acme", next.ID, 10, 20)
	require.NoError(t, err)
	_, err = eng.SubmitFrameworkReview("acme", next.ID, 20, boolPtr(true), nil, "")
	require.NoError(t, err)

	// The prior version keeps its approval but goes Inactive, policies too.
	gotPrior, err := entities.GetFramework("acme", prior.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, gotPrior.Status)
	assert.Equal(t, ActivationInactive, gotPrior.ActiveInactive)

	gotPolicy, err := entities.GetPolicy("acme", priorPolicy.ID)
	require.NoError(t, err)
	assert.Equal(t, ActivationInactive, gotPolicy.ActiveInactive)
	assert.Equal(t, StatusApproved, gotPolicy.Status)
	assert.Equal(t, "1", gotPolicy.CurrentVersion)

	gotNext, err := entities.GetFramework("acme", next.ID)
	require.NoError(t, err)
	assert.Equal(t, ActivationActive, gotNext.ActiveInactive)
}

func TestApprovePreservesExistingPolicyVersion(t *testing.T) {
	eng := newTestEngine(t, fixedClock(testToday))
	entities, _ := eng.Stores()

	fw := &FrameworkRecord{
		TenantID: "acme", FrameworkName: "PCI DSS", Identifier: "PCI", CurrentVersion: 4,
	}
	require.NoError(t, entities.CreateFramework(fw))
	carried := &PolicyRecord{
		TenantID: "acme", FrameworkID: fw.ID, PolicyName: "Carried", CurrentVersion: "2.1",
	}
	fresh := &PolicyRecord{
		TenantID: "acme", FrameworkID: fw.ID, PolicyName: "Fresh",
	}
	require.NoError(t, entities.CreatePolicy(carried))
	require.NoError(t, entities.CreatePolicy(fresh))

	_, err := eng.CreateFrameworkApproval("acme", fw.ID, 10, 20)
	require.NoError(t, err)
	_, err = eng.SubmitFrameworkReview("acme", fw.ID, 20, boolPtr(true), nil, "")
	require.NoError(t, err)

	gotCarried, err := entities.GetPolicy("acme", carried.ID)
	require.NoError(t, err)
	assert.Equal(t, "2.1", gotCarried.CurrentVersion)

	gotFresh, err := entities.GetPolicy("acme", fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, "4", gotFresh.CurrentVersion)
}

func TestReviewCycleVersionSequence(t *testing.T) {
	eng := newTestEngine(t, fixedClock(testToday))
	entities, approvals := eng.Stores()
	fw, _, _ := seedHierarchy(t, entities, "acme")

	// submit, reject, resubmit, approve: u1 r1 u2 r2.
	_, err := eng.CreateFrameworkApproval("acme", fw.ID, 10, 20)
	require.NoError(t, err)
	_, err = eng.SubmitFrameworkReview("acme", fw.ID, 20, boolPtr(false), nil, "redo")
	require.NoError(t, err)
	_, err = eng.CreateFrameworkApproval("acme", fw.ID, 10, 20)
	require.NoError(t, err)
	rec, err := eng.SubmitFrameworkReview("acme", fw.ID, 20, boolPtr(true), nil, "")
	require.NoError(t, err)
	assert.Equal(t, "r2", rec.Version)

	recs, err := approvals.ForEntity("acme", EntityFramework, fw.ID)
	require.NoError(t, err)
	versions := make([]string, 0, len(recs))
	for _, r := range recs {
		versions = append(versions, r.Version)
	}
	assert.ElementsMatch(t, []string{"u1", "r1", "u2", "r2"}, versions)
}
