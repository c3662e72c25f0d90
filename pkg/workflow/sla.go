package workflow

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/complyard/grc-engine/pkg/notify"
)

// CreateSLAApproval submits a vendor SLA and its metrics for review as the
// first u-axis record.
func (e *Engine) CreateSLAApproval(tenantID string, slaID, authorID, reviewerID int64) (*ApprovalRecord, error) {
	if tenantID == "" {
		return nil, TenancyFault("tenant id is required")
	}
	if authorID == reviewerID {
		return nil, ValidationFault("author %d cannot review their own submission", authorID)
	}

	var created *ApprovalRecord
	err := e.withVersionRetry(func(tx *gorm.DB) error {
		sla, err := e.getSLATx(tx, tenantID, slaID)
		if err != nil {
			return err
		}
		if sla == nil {
			return NotFound("sla %d not found", slaID)
		}
		metrics, err := e.entities.MetricsForSLA(tx, tenantID, slaID)
		if err != nil {
			return err
		}

		snap := buildSLASnapshot(sla, metrics)
		version, err := nextVersion(tx, EntitySLA, slaID, AxisUser)
		if err != nil {
			return err
		}
		record := &ApprovalRecord{
			TenantID:      tenantID,
			EntityType:    EntitySLA,
			EntityID:      slaID,
			Version:       version.String(),
			AuthorID:      authorID,
			ReviewerID:    reviewerID,
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
		Type:       "sla.submitted",
		TenantID:   tenantID,
		EntityType: string(EntitySLA),
		EntityID:   slaID,
		Version:    created.Version,
		Actor:      authorID,
	})
	return created, nil
}

// SubmitSLAReview applies a reviewer verdict on a vendor SLA. Approval
// activates the SLA when its effective date has arrived and leaves it
// Pending otherwise; rejection deactivates it. The verdict lands as an
// r-axis record carrying the metric snapshot.
func (e *Engine) SubmitSLAReview(tenantID string, slaID, reviewerID int64, approved bool, remarks string) (*ApprovalRecord, error) {
	if tenantID == "" {
		return nil, TenancyFault("tenant id is required")
	}

	var created *ApprovalRecord
	err := e.withVersionRetry(func(tx *gorm.DB) error {
		sla, err := e.getSLATx(tx, tenantID, slaID)
		if err != nil {
			return err
		}
		if sla == nil {
			return NotFound("sla %d not found", slaID)
		}
		latest, err := e.approvals.latestWorkingTx(tx, tenantID, EntitySLA, slaID)
		if err != nil {
			return err
		}
		if latest == nil {
			return PreconditionFailed("sla %d has no submission to review", slaID)
		}
		if latest.ReviewerID != 0 && latest.ReviewerID != reviewerID {
			return AuthorizationFault("user %d is not the assigned reviewer for sla %d", reviewerID, slaID)
		}

		snap, err := latest.ExtractedData.Snapshot.Clone()
		if err != nil {
			return IntegrityFault("sla %d snapshot: %v", slaID, err)
		}

		now := e.now()
		updates := map[string]any{}
		if approved {
			updates["approval_status"] = string(StatusApproved)
			if sla.EffectiveDate != nil && sla.EffectiveDate.After(dateOnly(now)) {
				updates["status"] = SLAPending
			} else {
				updates["status"] = SLAActive
			}
		} else {
			updates["approval_status"] = string(StatusRejected)
			updates["status"] = SLAInactive
		}
		if err := tx.Model(&VendorSLARecord{}).
			Where("tenant_id = ? AND id = ?", tenantID, slaID).
			Updates(updates).Error; err != nil {
			return fmt.Errorf("apply sla verdict: %w", err)
		}

		if approved {
			snap.Status = StatusApproved
		} else {
			snap.Status = StatusRejected
		}
		snap.FrameworkApproval = &FrameworkApproval{Approved: &approved, Remarks: remarks}

		version, err := nextVersion(tx, EntitySLA, slaID, AxisReviewer)
		if err != nil {
			return err
		}
		record := &ApprovalRecord{
			TenantID:      tenantID,
			EntityType:    EntitySLA,
			EntityID:      slaID,
			Version:       version.String(),
			AuthorID:      latest.AuthorID,
			ReviewerID:    reviewerID,
			ApprovedNot:   &approved,
			ApprovedDate:  &now,
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
		Type:       "sla.reviewed",
		TenantID:   tenantID,
		EntityType: string(EntitySLA),
		EntityID:   slaID,
		Version:    created.Version,
		Actor:      reviewerID,
		Outcome:    outcome,
	})
	return created, nil
}

func (e *Engine) getSLATx(tx *gorm.DB, tenantID string, id int64) (*VendorSLARecord, error) {
	var sla VendorSLARecord
	err := tx.Where("tenant_id = ? AND id = ?", tenantID, id).First(&sla).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("get sla: %w", err)
	}
	return &sla, nil
}

// buildSLASnapshot extracts a vendor SLA and its metrics into a snapshot.
func buildSLASnapshot(sla *VendorSLARecord, metrics []SLAMetricRecord) *Snapshot {
	snap := &Snapshot{
		Type:          "sla",
		SLAName:       sla.SLAName,
		EffectiveDate: dateString(sla.EffectiveDate),
		EndDate:       dateString(sla.ExpiryDate),
	}
	for _, m := range metrics {
		snap.Metrics = append(snap.Metrics, MetricSnapshot{
			MetricID:   m.ID,
			MetricName: m.MetricName,
			Threshold:  m.Threshold,
			Unit:       m.Unit,
			Frequency:  m.Frequency,
		})
	}
	return snap
}
