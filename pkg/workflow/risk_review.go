package workflow

import (
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/complyard/grc-engine/pkg/notify"
)

// AssignRiskInstance assigns mitigation work on a risk instance to an
// owner: ordered steps keyed "1", "2", ..., a due date and the intake form.
func (e *Engine) AssignRiskInstance(tenantID string, instanceID, ownerID int64, mitigations map[string]string, dueDate *time.Time, formDetails JSONAny) error {
	if tenantID == "" {
		return TenancyFault("tenant id is required")
	}

	err := e.db.Transaction(func(tx *gorm.DB) error {
		ri, err := e.entities.getRiskInstanceTx(tx, tenantID, instanceID)
		if err != nil {
			return err
		}
		if ri == nil {
			return NotFound("risk instance %d not found", instanceID)
		}

		steps := make(StepMap, len(mitigations))
		for k, desc := range mitigations {
			steps[k] = &MitigationStep{Description: desc}
		}

		updates := map[string]any{
			"user_id":             ownerID,
			"risk_status":         RiskAssigned,
			"mitigation_status":   MitigationYetToStart,
			"mitigation_due_date": dueDate,
			"risk_mitigation":     steps,
		}
		if formDetails != nil {
			updates["risk_form_details"] = formDetails
		}
		if err := tx.Model(&RiskInstanceRecord{}).
			Where("tenant_id = ? AND id = ?", tenantID, instanceID).
			Updates(updates).Error; err != nil {
			return fmt.Errorf("assign risk instance: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	e.publish(notify.Event{
		Type:       "risk.assigned",
		TenantID:   tenantID,
		EntityType: string(EntityRiskInstance),
		EntityID:   instanceID,
		Actor:      ownerID,
	})
	return nil
}

// AssignReviewer sets the reviewer for a risk instance. With
// createApprovalRecord the current mitigation state is captured as the
// first u-axis record, starting the review cycle immediately.
func (e *Engine) AssignReviewer(tenantID string, instanceID, reviewerID int64, createApprovalRecord bool) (*ApprovalRecord, error) {
	if tenantID == "" {
		return nil, TenancyFault("tenant id is required")
	}

	var created *ApprovalRecord
	err := e.withVersionRetry(func(tx *gorm.DB) error {
		ri, err := e.entities.getRiskInstanceTx(tx, tenantID, instanceID)
		if err != nil {
			return err
		}
		if ri == nil {
			return NotFound("risk instance %d not found", instanceID)
		}

		if err := tx.Model(&RiskInstanceRecord{}).
			Where("tenant_id = ? AND id = ?", tenantID, instanceID).
			Update("reviewer_id", reviewerID).Error; err != nil {
			return fmt.Errorf("assign reviewer: %w", err)
		}
		if !createApprovalRecord {
			return nil
		}

		version, err := nextVersion(tx, EntityRiskInstance, instanceID, AxisUser)
		if err != nil {
			return err
		}
		record := &ApprovalRecord{
			TenantID:   tenantID,
			EntityType: EntityRiskInstance,
			EntityID:   instanceID,
			Version:    version.String(),
			AuthorID:   ri.UserID,
			ReviewerID: reviewerID,
			ExtractedData: SnapshotJSON{Snapshot: Snapshot{
				Type:        "risk",
				Mitigations: map[string]*MitigationStep(ri.RiskMitigation),
				FormDetails: ri.RiskFormDetails,
			}},
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

	ev := notify.Event{
		Type:       "risk.reviewer_assigned",
		TenantID:   tenantID,
		EntityType: string(EntityRiskInstance),
		EntityID:   instanceID,
		Actor:      reviewerID,
	}
	if created != nil {
		ev.Version = created.Version
	}
	e.publish(ev)
	return created, nil
}

// SubmitMitigation records the owner's mitigation work as a u-axis record.
// The instance moves to Revision Required by Reviewer / In Progress. The
// reviewer count advances only when this submission opens a new review
// round; a resubmission after a rejection was already counted.
func (e *Engine) SubmitMitigation(tenantID string, instanceID, userID int64, mitigations StepMap, formDetails JSONAny) (*ApprovalRecord, error) {
	if tenantID == "" {
		return nil, TenancyFault("tenant id is required")
	}

	var created *ApprovalRecord
	err := e.withVersionRetry(func(tx *gorm.DB) error {
		ri, err := e.entities.getRiskInstanceTx(tx, tenantID, instanceID)
		if err != nil {
			return err
		}
		if ri == nil {
			return NotFound("risk instance %d not found", instanceID)
		}
		if ri.RiskStatus == RiskNotAssigned {
			return PreconditionFailed("risk instance %d is not assigned", instanceID)
		}
		if ri.UserID != 0 && ri.UserID != userID {
			return AuthorizationFault("user %d is not the assigned owner of risk instance %d", userID, instanceID)
		}

		now := e.now()
		stamp := now.Format(time.RFC3339)
		for _, step := range mitigations {
			if step != nil && step.SubmittedAt == "" {
				step.SubmittedAt = stamp
			}
		}

		version, err := nextVersion(tx, EntityRiskInstance, instanceID, AxisUser)
		if err != nil {
			return err
		}
		record := &ApprovalRecord{
			TenantID:   tenantID,
			EntityType: EntityRiskInstance,
			EntityID:   instanceID,
			Version:    version.String(),
			AuthorID:   userID,
			ReviewerID: ri.ReviewerID,
			ExtractedData: SnapshotJSON{Snapshot: Snapshot{
				Type:        "risk",
				Mitigations: map[string]*MitigationStep(mitigations),
				FormDetails: formDetails,
			}},
		}
		if err := e.approvals.Create(tx, record); err != nil {
			return err
		}

		reviewerRecords, err := e.approvals.CountReviewerRecords(tx, tenantID, EntityRiskInstance, instanceID)
		if err != nil {
			return err
		}
		updates := map[string]any{
			"risk_status":          RiskRevisionByReviewer,
			"mitigation_status":    MitigationInProgress,
			"modified_mitigations": mitigations,
		}
		// Parity: ReviewerCount tracks the reviewer rounds this instance
		// has requested. A fresh submission opens one; a resubmission
		// after rejection was counted when the rejection landed.
		if ri.ReviewerCount == reviewerRecords {
			updates["reviewer_count"] = ri.ReviewerCount + 1
		}
		if formDetails != nil {
			updates["risk_form_details"] = formDetails
		}
		if err := tx.Model(&RiskInstanceRecord{}).
			Where("tenant_id = ? AND id = ?", tenantID, instanceID).
			Updates(updates).Error; err != nil {
			return fmt.Errorf("update risk instance after submission: %w", err)
		}
		created = record
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.publish(notify.Event{
		Type:       "risk.mitigation_submitted",
		TenantID:   tenantID,
		EntityType: string(EntityRiskInstance),
		EntityID:   instanceID,
		Version:    created.Version,
		Actor:      userID,
	})
	return created, nil
}

// CompleteReview records the reviewer's per-step verdicts as an r-axis
// record and aggregates them: all steps approved completes the mitigation;
// any rejection sends the instance back to the owner and opens another
// reviewer round.
func (e *Engine) CompleteReview(tenantID string, instanceID, reviewerID int64, mitigations StepMap, formDetails JSONAny, approved bool) (*ApprovalRecord, error) {
	if tenantID == "" {
		return nil, TenancyFault("tenant id is required")
	}

	var created *ApprovalRecord
	err := e.withVersionRetry(func(tx *gorm.DB) error {
		ri, err := e.entities.getRiskInstanceTx(tx, tenantID, instanceID)
		if err != nil {
			return err
		}
		if ri == nil {
			return NotFound("risk instance %d not found", instanceID)
		}
		if ri.ReviewerID != 0 && ri.ReviewerID != reviewerID {
			return AuthorizationFault("user %d is not the assigned reviewer for risk instance %d", reviewerID, instanceID)
		}
		if ri.RiskStatus != RiskRevisionByReviewer {
			return PreconditionFailed("risk instance %d is %q, not awaiting review", instanceID, ri.RiskStatus)
		}

		allApproved := true
		for _, step := range mitigations {
			if step == nil || step.Approved == nil || !*step.Approved {
				allApproved = false
				break
			}
		}
		if approved && !allApproved {
			return ValidationFault("aggregated verdict approve requires every step approved")
		}
		finalApproved := approved && allApproved

		now := e.now()
		version, err := nextVersion(tx, EntityRiskInstance, instanceID, AxisReviewer)
		if err != nil {
			return err
		}
		record := &ApprovalRecord{
			TenantID:     tenantID,
			EntityType:   EntityRiskInstance,
			EntityID:     instanceID,
			Version:      version.String(),
			AuthorID:     ri.UserID,
			ReviewerID:   reviewerID,
			ApprovedNot:  &finalApproved,
			ApprovedDate: &now,
			ExtractedData: SnapshotJSON{Snapshot: Snapshot{
				Type:        "risk",
				Mitigations: map[string]*MitigationStep(mitigations),
				FormDetails: formDetails,
			}},
		}
		if err := e.approvals.Create(tx, record); err != nil {
			return err
		}

		updates := map[string]any{"modified_mitigations": mitigations}
		if finalApproved {
			completed := dateOnly(now)
			updates["risk_status"] = RiskApproved
			updates["mitigation_status"] = MitigationCompleted
			updates["mitigation_completed_date"] = &completed
		} else {
			updates["risk_status"] = RiskRevisionByUser
			updates["mitigation_status"] = MitigationRevisionUser
			updates["reviewer_count"] = ri.ReviewerCount + 1
		}
		if err := tx.Model(&RiskInstanceRecord{}).
			Where("tenant_id = ? AND id = ?", tenantID, instanceID).
			Updates(updates).Error; err != nil {
			return fmt.Errorf("update risk instance after review: %w", err)
		}
		created = record
		return nil
	})
	if err != nil {
		return nil, err
	}

	outcome := "rejected"
	if created.ApprovedNot != nil && *created.ApprovedNot {
		outcome = "approved"
	}
	e.publish(notify.Event{
		Type:       "risk.review_completed",
		TenantID:   tenantID,
		EntityType: string(EntityRiskInstance),
		EntityID:   instanceID,
		Version:    created.Version,
		Actor:      reviewerID,
		Outcome:    outcome,
	})
	return created, nil
}

// UpdateMitigationStatus sets the mitigation progress field directly. Only
// values from the closed status set are accepted.
func (e *Engine) UpdateMitigationStatus(tenantID string, instanceID int64, status MitigationStatus) error {
	if tenantID == "" {
		return TenancyFault("tenant id is required")
	}
	if !ValidMitigationStatus(status) {
		return ValidationFault("invalid mitigation status %q", status)
	}

	result := e.db.Model(&RiskInstanceRecord{}).
		Where("tenant_id = ? AND id = ?", tenantID, instanceID).
		Update("mitigation_status", status)
	if result.Error != nil {
		return fmt.Errorf("update mitigation status: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return NotFound("risk instance %d not found", instanceID)
	}
	return nil
}
