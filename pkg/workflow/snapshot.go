package workflow

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// FileDescriptor describes one piece of uploaded file evidence attached to a
// mitigation step. The engine persists descriptors verbatim; uploads happen
// through the evidence port.
type FileDescriptor struct {
	AWSFileLink string `json:"aws-file_link,omitempty"`
	FileName    string `json:"fileName,omitempty"`
	StoredName  string `json:"stored_name,omitempty"`
	FileID      string `json:"file_id,omitempty"`
	Size        int64  `json:"size,omitempty"`
	UploadedAt  string `json:"uploaded_at,omitempty"`
}

// MitigationStep is one numbered mitigation step. User submissions fill the
// description/status/files side; reviewer verdicts fill approved/remarks.
type MitigationStep struct {
	Description string           `json:"description,omitempty"`
	Status      string           `json:"status,omitempty"`
	Comments    string           `json:"comments,omitempty"`
	Files       []FileDescriptor `json:"files,omitempty"`
	SubmittedAt string           `json:"submitted_at,omitempty"`
	Approved    *bool            `json:"approved,omitempty"`
	Remarks     string           `json:"remarks,omitempty"`
}

// SubPolicySnapshot mirrors a subpolicy inside an extracted-data snapshot.
type SubPolicySnapshot struct {
	SubPolicyID   int64  `json:"SubPolicyId"`
	SubPolicyName string `json:"SubPolicyName,omitempty"`
	Identifier    string `json:"Identifier,omitempty"`
	Description   string `json:"Description,omitempty"`
	Control       string `json:"Control,omitempty"`
	Status        Status `json:"Status"`
}

// PolicySnapshot mirrors a policy and its subpolicies inside an
// extracted-data snapshot.
type PolicySnapshot struct {
	PolicyID       int64               `json:"PolicyId"`
	PolicyName     string              `json:"PolicyName,omitempty"`
	Identifier     string              `json:"Identifier,omitempty"`
	Scope          string              `json:"Scope,omitempty"`
	Objective      string              `json:"Objective,omitempty"`
	Department     string              `json:"Department,omitempty"`
	Status         Status              `json:"Status"`
	ActiveInactive ActiveInactive      `json:"ActiveInactive,omitempty"`
	CurrentVersion string              `json:"CurrentVersion,omitempty"`
	SubPolicies    []SubPolicySnapshot `json:"subpolicies,omitempty"`
}

// FrameworkApproval captures the reviewer's framework-level verdict inside
// a snapshot, including the level at which a rejection originated.
type FrameworkApproval struct {
	Approved       *bool  `json:"approved,omitempty"`
	Remarks        string `json:"remarks,omitempty"`
	RejectionLevel string `json:"rejection_level,omitempty"`
	RejectedItem   int64  `json:"rejected_item,omitempty"`
}

// StatusChangeApproval captures the reviewer's verdict on a status-change
// request inside a snapshot.
type StatusChangeApproval struct {
	Approved     bool   `json:"approved"`
	Remarks      string `json:"remarks,omitempty"`
	ApprovedBy   int64  `json:"approved_by,omitempty"`
	ApprovalDate string `json:"approval_date,omitempty"`
}

// MetricSnapshot mirrors an SLA metric inside an extracted-data snapshot.
type MetricSnapshot struct {
	MetricID   int64   `json:"MetricId"`
	MetricName string  `json:"MetricName,omitempty"`
	Threshold  float64 `json:"Threshold,omitempty"`
	Unit       string  `json:"Unit,omitempty"`
	Frequency  string  `json:"Frequency,omitempty"`
	Status     Status  `json:"Status,omitempty"`
}

// Snapshot is the denormalized ExtractedData document embedded in every
// approval record. Its shape is part of the external contract. Sections not
// applicable to the record's entity kind are omitted.
type Snapshot struct {
	Type            string `json:"type"`
	RequestType     string `json:"request_type,omitempty"`
	RequestedStatus string `json:"requested_status,omitempty"`
	Reason          string `json:"reason,omitempty"`
	CascadePolicies bool   `json:"cascade_to_policies,omitempty"`

	FrameworkName        string         `json:"FrameworkName,omitempty"`
	FrameworkDescription string         `json:"FrameworkDescription,omitempty"`
	Identifier           string         `json:"Identifier,omitempty"`
	Status               Status         `json:"Status,omitempty"`
	ActiveInactive       ActiveInactive `json:"ActiveInactive,omitempty"`
	Category             string         `json:"Category,omitempty"`
	EffectiveDate        string         `json:"EffectiveDate,omitempty"`
	StartDate            string         `json:"StartDate,omitempty"`
	EndDate              string         `json:"EndDate,omitempty"`
	CreatedByName        string         `json:"CreatedByName,omitempty"`
	CreatedByDate        string         `json:"CreatedByDate,omitempty"`
	InternalExternal     string         `json:"InternalExternal,omitempty"`
	DocURL               string         `json:"docURL,omitempty"`
	Reviewer             int64          `json:"reviewer,omitempty"`
	Source               string         `json:"source,omitempty"`
	CurrentVersion       string         `json:"CurrentVersion,omitempty"`

	Policies         []PolicySnapshot `json:"policies,omitempty"`
	TotalPolicies    int              `json:"totalPolicies,omitempty"`
	TotalSubpolicies int              `json:"totalSubpolicies,omitempty"`

	FrameworkApproval    *FrameworkApproval    `json:"framework_approval,omitempty"`
	StatusChangeApproval *StatusChangeApproval `json:"status_change_approval,omitempty"`

	// Risk-instance sections.
	Mitigations map[string]*MitigationStep `json:"mitigations,omitempty"`
	FormDetails JSONAny                    `json:"form_details,omitempty"`

	// SLA sections.
	SLAName string           `json:"SLAName,omitempty"`
	Metrics []MetricSnapshot `json:"metrics,omitempty"`
}

// Clone returns a deep copy of the snapshot. Every mutation path in the
// engine works on a clone; the store only ever writes whole new rows.
func (s *Snapshot) Clone() (*Snapshot, error) {
	if s == nil {
		return nil, nil
	}
	b, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("clone snapshot: %w", err)
	}
	var out Snapshot
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("clone snapshot: %w", err)
	}
	return &out, nil
}

// IsStatusChange reports whether the snapshot represents a status-change
// request. Legacy records carry type="framework" with a requested status
// instead of the request_type marker.
func (s *Snapshot) IsStatusChange() bool {
	if s == nil {
		return false
	}
	if s.RequestType == RequestTypeStatusChange {
		return true
	}
	return s.Type == "framework" && s.RequestedStatus != ""
}

// SnapshotJSON wraps Snapshot for storage as a JSON text column.
type SnapshotJSON struct {
	Snapshot
}

// Scan implements the sql.Scanner interface for SnapshotJSON.
func (s *SnapshotJSON) Scan(value any) error {
	if value == nil {
		*s = SnapshotJSON{}
		return nil
	}
	var bytes []byte
	switch v := value.(type) {
	case string:
		bytes = []byte(v)
	case []byte:
		bytes = v
	default:
		return fmt.Errorf("unsupported type for SnapshotJSON: %T", value)
	}
	return json.Unmarshal(bytes, &s.Snapshot)
}

// Value implements the driver.Valuer interface for SnapshotJSON.
func (s SnapshotJSON) Value() (driver.Value, error) {
	b, err := json.Marshal(s.Snapshot)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// dateString renders a date for snapshot fields, or "" for nil.
func dateString(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("2006-01-02")
}

// buildFrameworkSnapshot extracts the framework and its children into a
// fresh snapshot document.
func buildFrameworkSnapshot(fw *FrameworkRecord, policies []PolicyRecord, subsByPolicy map[int64][]SubPolicyRecord) *Snapshot {
	snap := &Snapshot{
		Type:                 "framework",
		FrameworkName:        fw.FrameworkName,
		FrameworkDescription: fw.FrameworkDescription,
		Identifier:           fw.Identifier,
		Status:               fw.Status,
		ActiveInactive:       fw.ActiveInactive,
		Category:             fw.Category,
		EffectiveDate:        dateString(fw.EffectiveDate),
		StartDate:            dateString(fw.StartDate),
		EndDate:              dateString(fw.EndDate),
		CreatedByName:        fw.CreatedByName,
		CreatedByDate:        dateString(fw.CreatedByDate),
		InternalExternal:     fw.InternalExternal,
		DocURL:               fw.DocURL,
		Reviewer:             fw.Reviewer,
		CurrentVersion:       fmt.Sprintf("%g", fw.CurrentVersion),
	}

	totalSubs := 0
	for _, p := range policies {
		ps := PolicySnapshot{
			PolicyID:       p.ID,
			PolicyName:     p.PolicyName,
			Identifier:     p.Identifier,
			Scope:          p.Scope,
			Objective:      p.Objective,
			Department:     p.Department,
			Status:         p.Status,
			ActiveInactive: p.ActiveInactive,
			CurrentVersion: p.CurrentVersion,
		}
		for _, sp := range subsByPolicy[p.ID] {
			ps.SubPolicies = append(ps.SubPolicies, SubPolicySnapshot{
				SubPolicyID:   sp.ID,
				SubPolicyName: sp.SubPolicyName,
				Identifier:    sp.Identifier,
				Description:   sp.Description,
				Control:       sp.Control,
				Status:        sp.Status,
			})
			totalSubs++
		}
		snap.Policies = append(snap.Policies, ps)
	}
	snap.TotalPolicies = len(policies)
	snap.TotalSubpolicies = totalSubs
	return snap
}

// findPolicy locates a policy section in the snapshot by id.
func (s *Snapshot) findPolicy(policyID int64) *PolicySnapshot {
	for i := range s.Policies {
		if s.Policies[i].PolicyID == policyID {
			return &s.Policies[i]
		}
	}
	return nil
}

// findSubPolicy locates a subpolicy section under a policy by id.
func (p *PolicySnapshot) findSubPolicy(subPolicyID int64) *SubPolicySnapshot {
	for i := range p.SubPolicies {
		if p.SubPolicies[i].SubPolicyID == subPolicyID {
			return &p.SubPolicies[i]
		}
	}
	return nil
}
