// Package workflow implements the versioned approval-workflow engine that
// governs the lifecycle of Frameworks, Policies, SubPolicies, Risks and
// vendor SLAs. All state changes flow through the Engine; stores enforce
// tenant scoping on every read and write.
package workflow

// EntityType identifies the kind of entity an approval record belongs to.
type EntityType string

const (
	EntityFramework    EntityType = "framework"
	EntityPolicy       EntityType = "policy"
	EntitySubPolicy    EntityType = "subpolicy"
	EntityRiskInstance EntityType = "risk_instance"
	EntitySLA          EntityType = "sla"
)

// Status represents the review status of a framework, policy or subpolicy.
type Status string

const (
	StatusUnderReview      Status = "Under Review"
	StatusApproved         Status = "Approved"
	StatusRejected         Status = "Rejected"
	StatusInactive         Status = "Inactive"
	StatusReadyForApproval Status = "Ready for Approval"
)

// ActiveInactive represents the activation state of an approved entity.
type ActiveInactive string

const (
	ActivationActive    ActiveInactive = "Active"
	ActivationScheduled ActiveInactive = "Scheduled"
	ActivationInactive  ActiveInactive = "Inactive"
)

// RiskStatus represents the review status of a risk instance.
type RiskStatus string

const (
	RiskNotAssigned        RiskStatus = "Not Assigned"
	RiskAssigned           RiskStatus = "Assigned"
	RiskRevisionByUser     RiskStatus = "Revision Required by User"
	RiskRevisionByReviewer RiskStatus = "Revision Required by Reviewer"
	RiskApproved           RiskStatus = "Approved"
	RiskRejected           RiskStatus = "Rejected"
)

// MitigationStatus represents the progress of mitigation work on a risk instance.
type MitigationStatus string

const (
	MitigationYetToStart   MitigationStatus = "Yet to Start"
	MitigationInProgress   MitigationStatus = "In Progress"
	MitigationCompleted    MitigationStatus = "Completed"
	MitigationRevisionUser MitigationStatus = "Revision (User)"
)

// ValidMitigationStatus reports whether s is one of the closed set of
// mitigation statuses.
func ValidMitigationStatus(s MitigationStatus) bool {
	switch s {
	case MitigationYetToStart, MitigationInProgress, MitigationCompleted, MitigationRevisionUser:
		return true
	}
	return false
}

// SLAStatus represents the lifecycle status of a vendor SLA.
type SLAStatus string

const (
	SLAPending  SLAStatus = "Pending"
	SLAActive   SLAStatus = "Active"
	SLAInactive SLAStatus = "Inactive"
	SLAExpired  SLAStatus = "Expired"
)

// RequestTypeStatusChange marks an approval record as a status-change
// request rather than a content review. Legacy records used type="framework"
// with a requested status instead; both are accepted on read.
const RequestTypeStatusChange = "status_change"
