package workflow

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/complyard/grc-engine/pkg/notify"
)

// RequestFrameworkStatusChange opens the side-workflow that transitions an
// Approved+Active framework to Inactive. The framework returns to Under
// Review while the request is pending; its activation is untouched until
// the reviewer decides.
func (e *Engine) RequestFrameworkStatusChange(tenantID string, frameworkID, authorID, reviewerID int64, reason string, cascadeToPolicies bool) (*ApprovalRecord, error) {
	if tenantID == "" {
		return nil, TenancyFault("tenant id is required")
	}
	if authorID == reviewerID {
		return nil, ValidationFault("author %d cannot review their own submission", authorID)
	}

	var created *ApprovalRecord
	err := e.withVersionRetry(func(tx *gorm.DB) error {
		fw, err := e.entities.getFrameworkTx(tx, tenantID, frameworkID)
		if err != nil {
			return err
		}
		if fw == nil {
			return NotFound("framework %d not found", frameworkID)
		}
		if fw.Status != StatusApproved || fw.ActiveInactive != ActivationActive {
			return PreconditionFailed("framework %d is %s+%s, not Approved+Active", frameworkID, fw.Status, fw.ActiveInactive)
		}

		policies, subsByPolicy, err := e.loadChildren(tx, tenantID, frameworkID)
		if err != nil {
			return err
		}
		snap := buildFrameworkSnapshot(fw, policies, subsByPolicy)
		snap.RequestType = RequestTypeStatusChange
		snap.RequestedStatus = string(ActivationInactive)
		snap.Reason = reason
		snap.CascadePolicies = cascadeToPolicies
		snap.Reviewer = reviewerID

		err = tx.Model(&FrameworkRecord{}).
			Where("tenant_id = ? AND id = ?", tenantID, frameworkID).
			Update("status", StatusUnderReview).Error
		if err != nil {
			return fmt.Errorf("mark framework under review: %w", err)
		}

		version, err := nextVersion(tx, EntityFramework, frameworkID, AxisUser)
		if err != nil {
			return err
		}
		record := &ApprovalRecord{
			TenantID:      tenantID,
			EntityType:    EntityFramework,
			EntityID:      frameworkID,
			Version:       version.String(),
			AuthorID:      authorID,
			ReviewerID:    reviewerID,
			RequestType:   RequestTypeStatusChange,
			ExtractedData: SnapshotJSON{Snapshot: *snap},
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

	e.publish(notify.Event{
		Type:       "framework.status_change_requested",
		TenantID:   tenantID,
		EntityType: string(EntityFramework),
		EntityID:   frameworkID,
		Version:    created.Version,
		Actor:      authorID,
	})
	return created, nil
}

// ApproveFrameworkStatusChange resolves a pending status-change request.
// Approval leaves the framework Approved but Inactive, cascading to
// policies and subpolicies when the request asked for it. Rejection
// restores Approved+Active. Legacy requests stored with type="framework"
// and a requested status are accepted.
func (e *Engine) ApproveFrameworkStatusChange(tenantID string, approvalID, callerUserID int64, approved bool, remarks string) (*ApprovalRecord, error) {
	if tenantID == "" {
		return nil, TenancyFault("tenant id is required")
	}

	var created *ApprovalRecord
	var frameworkID int64
	err := e.withVersionRetry(func(tx *gorm.DB) error {
		var request ApprovalRecord
		err := tx.Where("tenant_id = ? AND id = ?", tenantID, approvalID).First(&request).Error
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return NotFound("approval %d not found", approvalID)
			}
			return fmt.Errorf("get status-change request: %w", err)
		}
		if !request.ExtractedData.Snapshot.IsStatusChange() {
			return PreconditionFailed("approval %d is not a status-change request", approvalID)
		}
		if request.ApprovedNot != nil {
			return PreconditionFailed("status-change request %d is already resolved", approvalID)
		}
		// Records stay append-only, so resolution shows up as a later
		// verdict record for the same entity rather than a flag on this row.
		var resolved int64
		err = tx.Model(&ApprovalRecord{}).
			Where("tenant_id = ? AND entity_type = ? AND entity_id = ? AND id > ? AND request_type = ? AND approved_not IS NOT NULL",
				tenantID, request.EntityType, request.EntityID, request.ID, RequestTypeStatusChange).
			Count(&resolved).Error
		if err != nil {
			return fmt.Errorf("check status-change resolution: %w", err)
		}
		if resolved > 0 {
			return PreconditionFailed("status-change request %d is already resolved", approvalID)
		}
		if request.ReviewerID != 0 && request.ReviewerID != callerUserID {
			return AuthorizationFault("user %d is not the assigned reviewer for approval %d", callerUserID, approvalID)
		}
		frameworkID = request.EntityID

		fw, err := e.entities.getFrameworkTx(tx, tenantID, frameworkID)
		if err != nil {
			return err
		}
		if fw == nil {
			return NotFound("framework %d not found", frameworkID)
		}

		snap, err := request.ExtractedData.Snapshot.Clone()
		if err != nil {
			return IntegrityFault("approval %d snapshot: %v", approvalID, err)
		}

		now := e.now()
		if approved {
			err := tx.Model(&FrameworkRecord{}).
				Where("tenant_id = ? AND id = ?", tenantID, frameworkID).
				Updates(map[string]any{"status": StatusApproved, "active_inactive": ActivationInactive}).Error
			if err != nil {
				return fmt.Errorf("deactivate framework: %w", err)
			}
			snap.Status = StatusApproved
			snap.ActiveInactive = ActivationInactive

			if snap.CascadePolicies {
				policies, err := e.entities.PoliciesForFramework(tx, tenantID, frameworkID)
				if err != nil {
					return err
				}
				for _, p := range policies {
					err := tx.Model(&PolicyRecord{}).
						Where("tenant_id = ? AND id = ?", tenantID, p.ID).
						Update("active_inactive", ActivationInactive).Error
					if err != nil {
						return fmt.Errorf("deactivate policy %d: %w", p.ID, err)
					}
					// Subpolicies carry no activation column; the cascade
					// lands on their status instead.
					err = tx.Model(&SubPolicyRecord{}).
						Where("tenant_id = ? AND policy_id = ?", tenantID, p.ID).
						Update("status", StatusInactive).Error
					if err != nil {
						return fmt.Errorf("deactivate subpolicies of policy %d: %w", p.ID, err)
					}
				}
				for i := range snap.Policies {
					snap.Policies[i].ActiveInactive = ActivationInactive
					for j := range snap.Policies[i].SubPolicies {
						snap.Policies[i].SubPolicies[j].Status = StatusInactive
					}
				}
			}
		} else {
			err := tx.Model(&FrameworkRecord{}).
				Where("tenant_id = ? AND id = ?", tenantID, frameworkID).
				Updates(map[string]any{"status": StatusApproved, "active_inactive": ActivationActive}).Error
			if err != nil {
				return fmt.Errorf("restore framework: %w", err)
			}
			snap.Status = StatusApproved
			snap.ActiveInactive = ActivationActive
		}

		snap.StatusChangeApproval = &StatusChangeApproval{
			Approved:     approved,
			Remarks:      remarks,
			ApprovedBy:   callerUserID,
			ApprovalDate: now.Format("2006-01-02"),
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
			AuthorID:      request.AuthorID,
			ReviewerID:    request.ReviewerID,
			ApprovedNot:   &approved,
			ApprovedDate:  &now,
			RequestType:   RequestTypeStatusChange,
			ExtractedData: SnapshotJSON{Snapshot: *snap},
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

	outcome := "rejected"
	if approved {
		outcome = "approved"
	}
	e.publish(notify.Event{
		Type:       "framework.status_change_resolved",
		TenantID:   tenantID,
		EntityType: string(EntityFramework),
		EntityID:   frameworkID,
		Version:    created.Version,
		Actor:      callerUserID,
		Outcome:    outcome,
	})
	return created, nil
}
