// Package audit provides an append-only audit trail for workflow actions:
// a GORM-backed event store, HTTP middleware that records mutating requests,
// read-only query endpoints, and a retention worker.
package audit

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// JSONStringSlice is a custom GORM type for []string stored as JSON.
type JSONStringSlice []string

// Scan implements the sql.Scanner interface for JSONStringSlice.
func (s *JSONStringSlice) Scan(value any) error {
	if value == nil {
		*s = nil
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, s)
	case string:
		return json.Unmarshal([]byte(v), s)
	default:
		return fmt.Errorf("unsupported type for JSONStringSlice: %T", value)
	}
}

// Value implements the driver.Valuer interface for JSONStringSlice.
func (s JSONStringSlice) Value() (driver.Value, error) {
	if s == nil {
		return nil, nil
	}
	return json.Marshal(s)
}

// JSONAny is a custom GORM type for map[string]any stored as JSON.
type JSONAny map[string]any

// Scan implements the sql.Scanner interface for JSONAny.
func (j *JSONAny) Scan(value any) error {
	if value == nil {
		*j = nil
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, j)
	case string:
		return json.Unmarshal([]byte(v), j)
	default:
		return fmt.Errorf("unsupported type for JSONAny: %T", value)
	}
}

// Value implements the driver.Valuer interface for JSONAny.
func (j JSONAny) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

// EventRecord is an immutable audit log entry.
type EventRecord struct {
	ID            string          `gorm:"primaryKey;column:id;type:varchar(36)"`
	TenantID      string          `gorm:"column:tenant_id;index:idx_audit_tenant_time,priority:1;default:default;not null"`
	CorrelationID string          `gorm:"column:correlation_id;index"`
	EventType     string          `gorm:"column:event_type;index:idx_audit_type_time,priority:1;not null"`
	Actor         string          `gorm:"column:actor;index:idx_audit_actor_time,priority:1;not null"`
	RequestID     string          `gorm:"column:request_id;index"`
	EntityType    string          `gorm:"column:entity_type;index:idx_audit_entity_time,priority:1"`
	ResourceType  string          `gorm:"column:resource_type"`
	ResourceIDs   JSONStringSlice `gorm:"column:resource_ids;type:text"`
	Action        string          `gorm:"column:action"`
	Outcome       string          `gorm:"column:outcome;not null"` // success, failure, denied
	StatusCode    int             `gorm:"column:status_code"`
	Reason        string          `gorm:"column:reason"`
	EventMetadata JSONAny         `gorm:"column:metadata;type:text"`
	CreatedAt     time.Time       `gorm:"column:created_at;index:idx_audit_type_time,priority:2;index:idx_audit_actor_time,priority:2;index:idx_audit_entity_time,priority:2;index:idx_audit_tenant_time,priority:2;autoCreateTime"`
}

// TableName returns the GORM table name.
func (EventRecord) TableName() string { return "audit_events" }
