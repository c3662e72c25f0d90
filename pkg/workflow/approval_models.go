package workflow

import "time"

// ApprovalRecord is an immutable append-only row capturing one submission or
// verdict. The unique index on (entity_type, entity_id, version) is the
// serialization point for concurrent appends on the same entity.
type ApprovalRecord struct {
	ID            int64        `gorm:"primaryKey;column:id;autoIncrement"`
	TenantID      string       `gorm:"column:tenant_id;index:idx_approval_tenant;not null"`
	EntityType    EntityType   `gorm:"column:entity_type;uniqueIndex:idx_approval_entity_version,priority:1;not null"`
	EntityID      int64        `gorm:"column:entity_id;uniqueIndex:idx_approval_entity_version,priority:2;not null"`
	Version       string       `gorm:"column:version;uniqueIndex:idx_approval_entity_version,priority:3;not null"`
	AuthorID      int64        `gorm:"column:author_id;index:idx_approval_author"`
	ReviewerID    int64        `gorm:"column:reviewer_id;index:idx_approval_reviewer"`
	ApprovedNot   *bool        `gorm:"column:approved_not"`
	ApprovedDate  *time.Time   `gorm:"column:approved_date"`
	RequestType   string       `gorm:"column:request_type;index:idx_approval_request_type"`
	ExtractedData SnapshotJSON `gorm:"column:extracted_data;type:text;not null"`
	CreatedAt     time.Time    `gorm:"column:created_at;autoCreateTime"`
}

// TableName returns the GORM table name.
func (ApprovalRecord) TableName() string { return "approval_records" }

// Approval is the API-facing approval record type.
type Approval struct {
	ID            int64      `json:"id"`
	EntityType    EntityType `json:"entityType"`
	EntityID      int64      `json:"entityId"`
	Version       string     `json:"version"`
	AuthorID      int64      `json:"authorId,omitempty"`
	ReviewerID    int64      `json:"reviewerId,omitempty"`
	ApprovedNot   *bool      `json:"approvedNot"`
	ApprovedDate  string     `json:"approvedDate,omitempty"`
	RequestType   string     `json:"requestType,omitempty"`
	ExtractedData Snapshot   `json:"extractedData"`
	CreatedAt     string     `json:"createdAt"`
}

// recordToAPI converts a stored record to the API-facing type.
func recordToAPI(r *ApprovalRecord) Approval {
	out := Approval{
		ID:            r.ID,
		EntityType:    r.EntityType,
		EntityID:      r.EntityID,
		Version:       r.Version,
		AuthorID:      r.AuthorID,
		ReviewerID:    r.ReviewerID,
		ApprovedNot:   r.ApprovedNot,
		RequestType:   r.RequestType,
		ExtractedData: r.ExtractedData.Snapshot,
		CreatedAt:     r.CreatedAt.Format(time.RFC3339),
	}
	if r.ApprovedDate != nil {
		out.ApprovedDate = r.ApprovedDate.Format(time.RFC3339)
	}
	return out
}

// ApprovalList is a list of API-facing approval records.
type ApprovalList struct {
	Approvals []Approval `json:"approvals"`
	TotalSize int        `json:"totalSize"`
}
