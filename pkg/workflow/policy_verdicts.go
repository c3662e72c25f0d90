package workflow

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/complyard/grc-engine/pkg/notify"
)

// Rejection levels recorded in framework_approval when a rejection
// originates below the framework.
const (
	RejectionLevelPolicy    = "policy"
	RejectionLevelSubPolicy = "subpolicy"
)

// ApproveRejectPolicyInFramework applies a reviewer verdict to one policy
// inside an active framework review. The verdict mutates a clone of the
// latest snapshot, mirrors onto the policy and subpolicy rows and lands as
// a fresh r-axis working record. Rejecting a policy rejects its
// subpolicies; with submitReview the rejection elevates to the framework.
func (e *Engine) ApproveRejectPolicyInFramework(tenantID string, frameworkID, policyID, reviewerID int64, approved bool, remarks string, submitReview bool) (*ApprovalRecord, error) {
	return e.applyChildVerdict(tenantID, frameworkID, policyID, 0, reviewerID, approved, remarks, submitReview)
}

// ApproveRejectSubPolicyInFramework applies a reviewer verdict to one
// subpolicy inside an active framework review. Approving the last pending
// sibling marks the parent policy Ready for Approval. Rejecting marks the
// parent policy Rejected; with submitReview the rejection elevates to the
// framework.
func (e *Engine) ApproveRejectSubPolicyInFramework(tenantID string, frameworkID, policyID, subPolicyID, reviewerID int64, approved bool, remarks string, submitReview bool) (*ApprovalRecord, error) {
	if subPolicyID == 0 {
		return nil, ValidationFault("subpolicy id is required")
	}
	return e.applyChildVerdict(tenantID, frameworkID, policyID, subPolicyID, reviewerID, approved, remarks, submitReview)
}

// applyChildVerdict is the shared implementation for policy-level
// (subPolicyID == 0) and subpolicy-level verdicts.
func (e *Engine) applyChildVerdict(tenantID string, frameworkID, policyID, subPolicyID, reviewerID int64, approved bool, remarks string, submitReview bool) (*ApprovalRecord, error) {
	if tenantID == "" {
		return nil, TenancyFault("tenant id is required")
	}

	var created *ApprovalRecord
	var frameworkRejected bool
	err := e.withVersionRetry(func(tx *gorm.DB) error {
		frameworkRejected = false
		fw, err := e.entities.getFrameworkTx(tx, tenantID, frameworkID)
		if err != nil {
			return err
		}
		if fw == nil {
			return NotFound("framework %d not found", frameworkID)
		}
		latest, err := e.approvals.latestWorkingTx(tx, tenantID, EntityFramework, frameworkID)
		if err != nil {
			return err
		}
		if latest == nil {
			return PreconditionFailed("framework %d has no submission under review", frameworkID)
		}
		if latest.ReviewerID != 0 && latest.ReviewerID != reviewerID {
			return AuthorizationFault("user %d is not the assigned reviewer for framework %d", reviewerID, frameworkID)
		}

		snap, err := latest.ExtractedData.Snapshot.Clone()
		if err != nil {
			return IntegrityFault("framework %d snapshot: %v", frameworkID, err)
		}
		ps := snap.findPolicy(policyID)
		if ps == nil {
			return NotFound("policy %d not in framework %d snapshot", policyID, frameworkID)
		}

		now := e.now()
		if subPolicyID != 0 {
			if err := e.applySubPolicyVerdict(tx, tenantID, snap, ps, subPolicyID, approved); err != nil {
				return err
			}
		} else {
			if err := e.applyPolicyVerdict(tx, tenantID, ps, approved); err != nil {
				return err
			}
		}

		var verdictPtr *bool
		if !approved && submitReview {
			// Elevate to a framework rejection in the same transaction.
			if err := e.rejectFramework(tx, fw, snap, reviewerID, now); err != nil {
				return err
			}
			level := RejectionLevelPolicy
			rejectedItem := policyID
			if subPolicyID != 0 {
				level = RejectionLevelSubPolicy
				rejectedItem = subPolicyID
			}
			rejected := false
			verdictPtr = &rejected
			snap.FrameworkApproval = &FrameworkApproval{
				Approved:       verdictPtr,
				Remarks:        remarks,
				RejectionLevel: level,
				RejectedItem:   rejectedItem,
			}
			frameworkRejected = true
		}

		version, err := nextVersion(tx, EntityFramework, frameworkID, AxisReviewer)
		if err != nil {
			return err
		}
		record := &ApprovalRecord{
			TenantID:      tenantID,
			EntityType:    EntityFramework,
			EntityID:      frameworkID,
			Version:       version.String(),
			AuthorID:      latest.AuthorID,
			ReviewerID:    reviewerID,
			ApprovedNot:   verdictPtr,
			ExtractedData: SnapshotJSON{Snapshot: *snap},
		}
		if verdictPtr != nil {
			record.ApprovedDate = &now
		}
		if err := e.approvals.Create(tx, record); err != nil {
			return err
		}
		created = record
		return nil
	})
	if err != nil {
		return nil, err
	}

	outcome := "approved"
	if !approved {
		outcome = "rejected"
	}
	if frameworkRejected {
		outcome = "framework_rejected"
	}
	e.publish(notify.Event{
		Type:       "framework.child_verdict",
		TenantID:   tenantID,
		EntityType: string(EntityFramework),
		EntityID:   frameworkID,
		Version:    created.Version,
		Actor:      reviewerID,
		Outcome:    outcome,
		Detail:     map[string]any{"policyId": policyID, "subPolicyId": subPolicyID},
	})
	return created, nil
}

// applySubPolicyVerdict mutates the snapshot and mirrors the subpolicy and
// parent policy rows for one subpolicy verdict.
func (e *Engine) applySubPolicyVerdict(tx *gorm.DB, tenantID string, snap *Snapshot, ps *PolicySnapshot, subPolicyID int64, approved bool) error {
	sps := ps.findSubPolicy(subPolicyID)
	if sps == nil {
		return NotFound("subpolicy %d not in policy %d snapshot", subPolicyID, ps.PolicyID)
	}

	if approved {
		sps.Status = StatusApproved
		if err := e.mirrorSubPolicyStatus(tx, tenantID, subPolicyID, StatusApproved); err != nil {
			return err
		}
		allApproved := true
		for i := range ps.SubPolicies {
			if ps.SubPolicies[i].Status != StatusApproved {
				allApproved = false
				break
			}
		}
		if allApproved {
			ps.Status = StatusReadyForApproval
			if err := e.mirrorPolicyStatus(tx, tenantID, ps.PolicyID, StatusReadyForApproval); err != nil {
				return err
			}
		}
		return nil
	}

	sps.Status = StatusRejected
	if err := e.mirrorSubPolicyStatus(tx, tenantID, subPolicyID, StatusRejected); err != nil {
		return err
	}
	// The parent policy is rejected eagerly on any subpolicy rejection.
	ps.Status = StatusRejected
	return e.mirrorPolicyStatus(tx, tenantID, ps.PolicyID, StatusRejected)
}

// applyPolicyVerdict mutates the snapshot and mirrors the policy row and
// its subpolicies for one policy-level verdict.
func (e *Engine) applyPolicyVerdict(tx *gorm.DB, tenantID string, ps *PolicySnapshot, approved bool) error {
	if approved {
		ps.Status = StatusApproved
		for i := range ps.SubPolicies {
			ps.SubPolicies[i].Status = StatusApproved
		}
		if err := e.mirrorPolicyStatus(tx, tenantID, ps.PolicyID, StatusApproved); err != nil {
			return err
		}
		return e.mirrorSubPoliciesOfPolicy(tx, tenantID, ps.PolicyID, StatusApproved)
	}

	ps.Status = StatusRejected
	for i := range ps.SubPolicies {
		ps.SubPolicies[i].Status = StatusRejected
	}
	if err := e.mirrorPolicyStatus(tx, tenantID, ps.PolicyID, StatusRejected); err != nil {
		return err
	}
	return e.mirrorSubPoliciesOfPolicy(tx, tenantID, ps.PolicyID, StatusRejected)
}

func (e *Engine) mirrorPolicyStatus(tx *gorm.DB, tenantID string, policyID int64, status Status) error {
	result := tx.Model(&PolicyRecord{}).
		Where("tenant_id = ? AND id = ?", tenantID, policyID).
		Update("status", status)
	if result.Error != nil {
		return fmt.Errorf("mirror policy %d status: %w", policyID, result.Error)
	}
	if result.RowsAffected == 0 {
		return IntegrityFault("policy %d in snapshot has no matching row", policyID)
	}
	return nil
}

func (e *Engine) mirrorSubPolicyStatus(tx *gorm.DB, tenantID string, subPolicyID int64, status Status) error {
	result := tx.Model(&SubPolicyRecord{}).
		Where("tenant_id = ? AND id = ?", tenantID, subPolicyID).
		Update("status", status)
	if result.Error != nil {
		return fmt.Errorf("mirror subpolicy %d status: %w", subPolicyID, result.Error)
	}
	if result.RowsAffected == 0 {
		return IntegrityFault("subpolicy %d in snapshot has no matching row", subPolicyID)
	}
	return nil
}

func (e *Engine) mirrorSubPoliciesOfPolicy(tx *gorm.DB, tenantID string, policyID int64, status Status) error {
	err := tx.Model(&SubPolicyRecord{}).
		Where("tenant_id = ? AND policy_id = ?", tenantID, policyID).
		Update("status", status).Error
	if err != nil {
		return fmt.Errorf("mirror subpolicies of policy %d: %w", policyID, err)
	}
	return nil
}

// reconcileSnapshot verifies snapshot-table agreement for the latest
// framework record. Used by tests and the integrity checker.
func (e *Engine) reconcileSnapshot(tenantID string, frameworkID int64) error {
	latest, err := e.approvals.LatestWorking(tenantID, EntityFramework, frameworkID)
	if err != nil {
		return err
	}
	if latest == nil {
		return nil
	}
	snap := latest.ExtractedData.Snapshot
	for _, ps := range snap.Policies {
		p, err := e.entities.GetPolicy(tenantID, ps.PolicyID)
		if err != nil {
			return err
		}
		if p == nil {
			return IntegrityFault("policy %d in snapshot has no matching row", ps.PolicyID)
		}
		if p.Status != ps.Status {
			return IntegrityFault("policy %d status %q disagrees with snapshot %q", ps.PolicyID, p.Status, ps.Status)
		}
	}
	return nil
}
