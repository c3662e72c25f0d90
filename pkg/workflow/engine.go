package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"

	"github.com/complyard/grc-engine/pkg/notify"
)

// Engine executes every approval-workflow verb. Each verb runs in a single
// logical transaction: snapshot writes, table mirroring, versioning and
// cascades commit together or not at all. Notifications fire post-commit
// and are best-effort.
type Engine struct {
	db        *gorm.DB
	entities  *EntityStore
	approvals *ApprovalStore
	notifier  notify.Notifier
	logger    *slog.Logger
	now       func() time.Time
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithNotifier sets the post-commit notification sink.
func WithNotifier(n notify.Notifier) EngineOption {
	return func(e *Engine) { e.notifier = n }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) { e.logger = l }
}

// WithClock overrides the wall clock. Tests use this to pin "today".
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) { e.now = now }
}

// NewEngine creates an Engine over the given stores.
func NewEngine(db *gorm.DB, entities *EntityStore, approvals *ApprovalStore, opts ...EngineOption) *Engine {
	e := &Engine{
		db:        db,
		entities:  entities,
		approvals: approvals,
		logger:    slog.Default(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.notifier == nil {
		e.notifier = &notify.LogNotifier{Logger: e.logger}
	}
	return e
}

// Stores exposes the approval store for query adapters.
func (e *Engine) Stores() (*EntityStore, *ApprovalStore) { return e.entities, e.approvals }

// withVersionRetry runs fn in a transaction. On a version conflict the
// whole transaction is retried once: the rerun re-allocates versions and
// naturally lands on the next free suffix. A second conflict surfaces.
func (e *Engine) withVersionRetry(fn func(tx *gorm.DB) error) error {
	err := e.db.Transaction(fn)
	if err != nil && FaultCode(err) == CodeVersion {
		err = e.db.Transaction(fn)
	}
	return err
}

// publish fires a post-commit notification. Failures are logged only.
func (e *Engine) publish(ev notify.Event) {
	ev.OccurredAt = e.now()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.notifier.Publish(ctx, ev); err != nil {
		e.logger.Error("notification failed",
			"type", ev.Type, "entityType", ev.EntityType, "entityID", ev.EntityID, "error", err)
	}
}

// CreateFrameworkApproval submits a framework for review. It extracts the
// framework and its children into a snapshot, sets the whole hierarchy to
// Under Review and writes the first u-axis record.
func (e *Engine) CreateFrameworkApproval(tenantID string, frameworkID, authorID, reviewerID int64) (*ApprovalRecord, error) {
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

		policies, subsByPolicy, err := e.loadChildren(tx, tenantID, frameworkID)
		if err != nil {
			return err
		}

		if err := tx.Model(&FrameworkRecord{}).
			Where("tenant_id = ? AND id = ?", tenantID, frameworkID).
			Updates(map[string]any{"status": StatusUnderReview, "reviewer": reviewerID}).Error; err != nil {
			return fmt.Errorf("mark framework under review: %w", err)
		}
		if err := e.setChildrenStatus(tx, tenantID, frameworkID, StatusUnderReview); err != nil {
			return err
		}

		fw.Status = StatusUnderReview
		for i := range policies {
			policies[i].Status = StatusUnderReview
		}
		for _, subs := range subsByPolicy {
			for i := range subs {
				subs[i].Status = StatusUnderReview
			}
		}
		snap := buildFrameworkSnapshot(fw, policies, subsByPolicy)

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
		Type:       "framework.submitted",
		TenantID:   tenantID,
		EntityType: string(EntityFramework),
		EntityID:   frameworkID,
		Version:    created.Version,
		Actor:      authorID,
	})
	return created, nil
}

// SubmitFrameworkReview applies a reviewer verdict on a framework. A nil
// verdict saves review progress as a new r-record without changing any
// status. Approval cascades to children, derives activation from the
// effective-date law and supersedes prior versions sharing the framework's
// identifier. Rejection cascades to children with per-descendant records.
func (e *Engine) SubmitFrameworkReview(tenantID string, frameworkID, reviewerID int64, verdict *bool, snapshot *Snapshot, remarks string) (*ApprovalRecord, error) {
	if tenantID == "" {
		return nil, TenancyFault("tenant id is required")
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
		latest, err := e.approvals.latestWorkingTx(tx, tenantID, EntityFramework, frameworkID)
		if err != nil {
			return err
		}
		if latest == nil {
			return PreconditionFailed("framework %d has no submission to review", frameworkID)
		}
		if latest.ReviewerID != 0 && latest.ReviewerID != reviewerID {
			return AuthorizationFault("user %d is not the assigned reviewer for framework %d", reviewerID, frameworkID)
		}

		snap := snapshot
		if snap == nil {
			snap, err = latest.ExtractedData.Snapshot.Clone()
			if err != nil {
				return IntegrityFault("framework %d snapshot: %v", frameworkID, err)
			}
		}

		now := e.now()
		if verdict != nil {
			if *verdict {
				if err := e.approveFramework(tx, fw, snap, now); err != nil {
					return err
				}
			} else {
				if err := e.rejectFramework(tx, fw, snap, reviewerID, now); err != nil {
					return err
				}
			}
		}

		if snap.FrameworkApproval == nil {
			snap.FrameworkApproval = &FrameworkApproval{}
		}
		snap.FrameworkApproval.Approved = verdict
		snap.FrameworkApproval.Remarks = remarks

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
			ApprovedNot:   verdict,
			ExtractedData: SnapshotJSON{Snapshot: *snap},
		}
		if verdict != nil {
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

	outcome := "saved"
	if verdict != nil {
		if *verdict {
			outcome = "approved"
		} else {
			outcome = "rejected"
		}
	}
	e.publish(notify.Event{
		Type:       "framework.reviewed",
		TenantID:   tenantID,
		EntityType: string(EntityFramework),
		EntityID:   frameworkID,
		Version:    created.Version,
		Actor:      reviewerID,
		Outcome:    outcome,
	})
	return created, nil
}

// ApproveEntireFrameworkFinal approves a framework once every policy in the
// latest snapshot is Approved. It is the terminal step of the per-policy
// review flow.
func (e *Engine) ApproveEntireFrameworkFinal(tenantID string, frameworkID, reviewerID int64) (*ApprovalRecord, error) {
	if tenantID == "" {
		return nil, TenancyFault("tenant id is required")
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
		latest, err := e.approvals.latestWorkingTx(tx, tenantID, EntityFramework, frameworkID)
		if err != nil {
			return err
		}
		if latest == nil {
			return PreconditionFailed("framework %d has no submission to approve", frameworkID)
		}
		if latest.ReviewerID != 0 && latest.ReviewerID != reviewerID {
			return AuthorizationFault("user %d is not the assigned reviewer for framework %d", reviewerID, frameworkID)
		}

		snap, err := latest.ExtractedData.Snapshot.Clone()
		if err != nil {
			return IntegrityFault("framework %d snapshot: %v", frameworkID, err)
		}
		for i := range snap.Policies {
			if snap.Policies[i].Status != StatusApproved {
				return PreconditionFailed("policy %d is %q, not Approved", snap.Policies[i].PolicyID, snap.Policies[i].Status)
			}
		}

		now := e.now()
		if err := e.approveFramework(tx, fw, snap, now); err != nil {
			return err
		}
		approved := true
		snap.FrameworkApproval = &FrameworkApproval{Approved: &approved}

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

	e.publish(notify.Event{
		Type:       "framework.approved",
		TenantID:   tenantID,
		EntityType: string(EntityFramework),
		EntityID:   frameworkID,
		Version:    created.Version,
		Actor:      reviewerID,
		Outcome:    "approved",
	})
	return created, nil
}

// approveFramework applies an approving verdict: the framework becomes
// Approved with activation derived from the effective-date law, children
// cascade to Approved, the snapshot is mutated to match and prior versions
// sharing the identifier are superseded.
func (e *Engine) approveFramework(tx *gorm.DB, fw *FrameworkRecord, snap *Snapshot, now time.Time) error {
	activation := effectiveActivation(fw.StartDate, now)

	err := tx.Model(&FrameworkRecord{}).
		Where("tenant_id = ? AND id = ?", fw.TenantID, fw.ID).
		Updates(map[string]any{"status": StatusApproved, "active_inactive": activation}).Error
	if err != nil {
		return fmt.Errorf("approve framework: %w", err)
	}

	policies, err := e.entities.PoliciesForFramework(tx, fw.TenantID, fw.ID)
	if err != nil {
		return err
	}
	fwVersion := fmt.Sprintf("%g", fw.CurrentVersion)
	for _, p := range policies {
		updates := map[string]any{"status": StatusApproved, "active_inactive": activation}
		// CurrentVersion is preserved when already set; fresh policies
		// inherit the framework version.
		if p.CurrentVersion == "" {
			updates["current_version"] = fwVersion
		}
		err := tx.Model(&PolicyRecord{}).
			Where("tenant_id = ? AND id = ?", fw.TenantID, p.ID).
			Updates(updates).Error
		if err != nil {
			return fmt.Errorf("approve policy %d: %w", p.ID, err)
		}
		err = tx.Model(&SubPolicyRecord{}).
			Where("tenant_id = ? AND policy_id = ?", fw.TenantID, p.ID).
			Update("status", StatusApproved).Error
		if err != nil {
			return fmt.Errorf("approve subpolicies of policy %d: %w", p.ID, err)
		}
	}

	snap.Status = StatusApproved
	snap.ActiveInactive = activation
	for i := range snap.Policies {
		snap.Policies[i].Status = StatusApproved
		snap.Policies[i].ActiveInactive = activation
		if snap.Policies[i].CurrentVersion == "" {
			snap.Policies[i].CurrentVersion = fwVersion
		}
		for j := range snap.Policies[i].SubPolicies {
			snap.Policies[i].SubPolicies[j].Status = StatusApproved
		}
	}

	if activation == ActivationActive || activation == ActivationScheduled {
		if err := e.supersedePriorVersions(tx, fw); err != nil {
			return err
		}
	}
	return nil
}

// rejectFramework applies a rejecting verdict: the framework and every
// descendant become Rejected, and each descendant gets its own r-axis
// record carrying the rejection.
func (e *Engine) rejectFramework(tx *gorm.DB, fw *FrameworkRecord, snap *Snapshot, reviewerID int64, now time.Time) error {
	err := tx.Model(&FrameworkRecord{}).
		Where("tenant_id = ? AND id = ?", fw.TenantID, fw.ID).
		Update("status", StatusRejected).Error
	if err != nil {
		return fmt.Errorf("reject framework: %w", err)
	}
	if err := e.setChildrenStatus(tx, fw.TenantID, fw.ID, StatusRejected); err != nil {
		return err
	}

	snap.Status = StatusRejected
	for i := range snap.Policies {
		snap.Policies[i].Status = StatusRejected
		for j := range snap.Policies[i].SubPolicies {
			snap.Policies[i].SubPolicies[j].Status = StatusRejected
		}
	}

	return e.rejectDescendantRecords(tx, fw.TenantID, fw.ID, reviewerID, now)
}

// rejectDescendantRecords inserts a reviewer-versioned rejection record for
// every descendant policy and subpolicy of the framework.
func (e *Engine) rejectDescendantRecords(tx *gorm.DB, tenantID string, frameworkID, reviewerID int64, now time.Time) error {
	policies, err := e.entities.PoliciesForFramework(tx, tenantID, frameworkID)
	if err != nil {
		return err
	}
	for _, p := range policies {
		if err := e.insertRejectionRecord(tx, tenantID, EntityPolicy, p.ID, reviewerID, now); err != nil {
			return err
		}
		subs, err := e.entities.SubPoliciesForPolicy(tx, tenantID, p.ID)
		if err != nil {
			return err
		}
		for _, sp := range subs {
			if err := e.insertRejectionRecord(tx, tenantID, EntitySubPolicy, sp.ID, reviewerID, now); err != nil {
				return err
			}
		}
	}
	return nil
}

// insertRejectionRecord writes one ApprovedNot=false r-record for a
// descendant entity.
func (e *Engine) insertRejectionRecord(tx *gorm.DB, tenantID string, entityType EntityType, entityID, reviewerID int64, now time.Time) error {
	version, err := nextVersion(tx, entityType, entityID, AxisReviewer)
	if err != nil {
		return err
	}
	rejected := false
	record := &ApprovalRecord{
		TenantID:     tenantID,
		EntityType:   entityType,
		EntityID:     entityID,
		Version:      version.String(),
		ReviewerID:   reviewerID,
		ApprovedNot:  &rejected,
		ApprovedDate: &now,
		ExtractedData: SnapshotJSON{Snapshot: Snapshot{
			Type:   string(entityType),
			Status: StatusRejected,
		}},
	}
	return e.approvals.Create(tx, record)
}

// supersedePriorVersions deactivates every earlier framework sharing the
// approved framework's identifier, following both the previous-version
// chain and an identifier scan, de-duplicated by id. Prior frameworks keep
// Status=Approved; their policies go Inactive preserving their own Status
// and CurrentVersion.
func (e *Engine) supersedePriorVersions(tx *gorm.DB, fw *FrameworkRecord) error {
	priorIDs := make(map[int64]bool)

	if fw.PreviousVersionID != nil && *fw.PreviousVersionID != fw.ID {
		priorIDs[*fw.PreviousVersionID] = true
	}

	siblings, err := e.entities.FrameworksByIdentifier(tx, fw.TenantID, fw.Identifier)
	if err != nil {
		return err
	}
	for _, sib := range siblings {
		if sib.ID != fw.ID {
			priorIDs[sib.ID] = true
		}
	}

	for id := range priorIDs {
		err := tx.Model(&FrameworkRecord{}).
			Where("tenant_id = ? AND id = ?", fw.TenantID, id).
			Update("active_inactive", ActivationInactive).Error
		if err != nil {
			return fmt.Errorf("supersede framework %d: %w", id, err)
		}
		err = tx.Model(&PolicyRecord{}).
			Where("tenant_id = ? AND framework_id = ?", fw.TenantID, id).
			Update("active_inactive", ActivationInactive).Error
		if err != nil {
			return fmt.Errorf("supersede policies of framework %d: %w", id, err)
		}
	}
	return nil
}

// loadChildren loads the policies of a framework and their subpolicies.
func (e *Engine) loadChildren(tx *gorm.DB, tenantID string, frameworkID int64) ([]PolicyRecord, map[int64][]SubPolicyRecord, error) {
	policies, err := e.entities.PoliciesForFramework(tx, tenantID, frameworkID)
	if err != nil {
		return nil, nil, err
	}
	subsByPolicy := make(map[int64][]SubPolicyRecord, len(policies))
	for _, p := range policies {
		subs, err := e.entities.SubPoliciesForPolicy(tx, tenantID, p.ID)
		if err != nil {
			return nil, nil, err
		}
		subsByPolicy[p.ID] = subs
	}
	return policies, subsByPolicy, nil
}

// setChildrenStatus sets Status on every policy and subpolicy of a framework.
func (e *Engine) setChildrenStatus(tx *gorm.DB, tenantID string, frameworkID int64, status Status) error {
	policies, err := e.entities.PoliciesForFramework(tx, tenantID, frameworkID)
	if err != nil {
		return err
	}
	for _, p := range policies {
		err := tx.Model(&PolicyRecord{}).
			Where("tenant_id = ? AND id = ?", tenantID, p.ID).
			Update("status", status).Error
		if err != nil {
			return fmt.Errorf("set policy %d status: %w", p.ID, err)
		}
		err = tx.Model(&SubPolicyRecord{}).
			Where("tenant_id = ? AND policy_id = ?", tenantID, p.ID).
			Update("status", status).Error
		if err != nil {
			return fmt.Errorf("set subpolicies of policy %d status: %w", p.ID, err)
		}
	}
	return nil
}
