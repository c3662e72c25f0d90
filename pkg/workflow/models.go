package workflow

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// JSONAny is a custom GORM type for map[string]any stored as JSON text.
type JSONAny map[string]any

// Scan implements the sql.Scanner interface for JSONAny.
func (m *JSONAny) Scan(value any) error {
	if value == nil {
		*m = nil
		return nil
	}
	var bytes []byte
	switch v := value.(type) {
	case string:
		bytes = []byte(v)
	case []byte:
		bytes = v
	default:
		return fmt.Errorf("unsupported type for JSONAny: %T", value)
	}
	return json.Unmarshal(bytes, m)
}

// Value implements the driver.Valuer interface for JSONAny.
func (m JSONAny) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// StepMap is an ordered map of mitigation steps keyed by numeric index
// ("1", "2", ...), stored as JSON text.
type StepMap map[string]*MitigationStep

// Scan implements the sql.Scanner interface for StepMap.
func (s *StepMap) Scan(value any) error {
	if value == nil {
		*s = nil
		return nil
	}
	var bytes []byte
	switch v := value.(type) {
	case string:
		bytes = []byte(v)
	case []byte:
		bytes = v
	default:
		return fmt.Errorf("unsupported type for StepMap: %T", value)
	}
	return json.Unmarshal(bytes, s)
}

// Value implements the driver.Valuer interface for StepMap.
func (s StepMap) Value() (driver.Value, error) {
	if s == nil {
		return nil, nil
	}
	b, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// FrameworkRecord is a GORM model for a compliance framework version.
// Identifier is stable across versions of the same framework; the
// PreviousVersionID chain links a version to the one it replaces.
type FrameworkRecord struct {
	ID                   int64          `gorm:"primaryKey;column:id;autoIncrement"`
	TenantID             string         `gorm:"column:tenant_id;index:idx_framework_tenant;not null"`
	FrameworkName        string         `gorm:"column:framework_name;not null"`
	Identifier           string         `gorm:"column:identifier;index:idx_framework_identifier;not null"`
	FrameworkDescription string         `gorm:"column:framework_description"`
	Category             string         `gorm:"column:category"`
	InternalExternal     string         `gorm:"column:internal_external"`
	StartDate            *time.Time     `gorm:"column:start_date"`
	EndDate              *time.Time     `gorm:"column:end_date"`
	EffectiveDate        *time.Time     `gorm:"column:effective_date"`
	Status               Status         `gorm:"column:status;not null;default:'Under Review'"`
	ActiveInactive       ActiveInactive `gorm:"column:active_inactive;not null;default:'Inactive'"`
	CurrentVersion       float64        `gorm:"column:current_version;not null;default:1"`
	CreatedByName        string         `gorm:"column:created_by_name"`
	CreatedByDate        *time.Time     `gorm:"column:created_by_date"`
	Reviewer             int64          `gorm:"column:reviewer"`
	DocURL               string         `gorm:"column:doc_url"`
	PreviousVersionID    *int64         `gorm:"column:previous_version_id"`
	CreatedAt            time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt            time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName returns the GORM table name.
func (FrameworkRecord) TableName() string { return "frameworks" }

// PolicyRecord is a GORM model for a policy owned by a framework.
type PolicyRecord struct {
	ID                int64          `gorm:"primaryKey;column:id;autoIncrement"`
	TenantID          string         `gorm:"column:tenant_id;index:idx_policy_tenant;not null"`
	FrameworkID       int64          `gorm:"column:framework_id;index:idx_policy_framework;not null"`
	PolicyName        string         `gorm:"column:policy_name;not null"`
	Identifier        string         `gorm:"column:identifier"`
	Scope             string         `gorm:"column:scope"`
	Objective         string         `gorm:"column:objective"`
	Applicability     string         `gorm:"column:applicability"`
	Department        string         `gorm:"column:department"`
	StartDate         *time.Time     `gorm:"column:start_date"`
	EndDate           *time.Time     `gorm:"column:end_date"`
	Status            Status         `gorm:"column:status;not null;default:'Under Review'"`
	ActiveInactive    ActiveInactive `gorm:"column:active_inactive;not null;default:'Inactive'"`
	CurrentVersion    string         `gorm:"column:current_version"`
	Reviewer          int64          `gorm:"column:reviewer"`
	PolicyType        string         `gorm:"column:policy_type"`
	PolicyCategory    string         `gorm:"column:policy_category"`
	PolicySubCategory string         `gorm:"column:policy_sub_category"`
	CreatedAt         time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName returns the GORM table name.
func (PolicyRecord) TableName() string { return "policies" }

// SubPolicyRecord is a GORM model for a subpolicy owned by a policy.
type SubPolicyRecord struct {
	ID                 int64     `gorm:"primaryKey;column:id;autoIncrement"`
	TenantID           string    `gorm:"column:tenant_id;index:idx_subpolicy_tenant;not null"`
	PolicyID           int64     `gorm:"column:policy_id;index:idx_subpolicy_policy;not null"`
	SubPolicyName      string    `gorm:"column:subpolicy_name;not null"`
	Identifier         string    `gorm:"column:identifier"`
	Description        string    `gorm:"column:description"`
	Control            string    `gorm:"column:control"`
	Status             Status    `gorm:"column:status;not null;default:'Under Review'"`
	PermanentTemporary string    `gorm:"column:permanent_temporary"`
	CreatedAt          time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName returns the GORM table name.
func (SubPolicyRecord) TableName() string { return "subpolicies" }

// RiskRecord is a GORM model for a risk definition.
type RiskRecord struct {
	ID                 int64     `gorm:"primaryKey;column:id;autoIncrement"`
	TenantID           string    `gorm:"column:tenant_id;index:idx_risk_tenant;not null"`
	FrameworkID        *int64    `gorm:"column:framework_id;index:idx_risk_framework"`
	ComplianceID       *int64    `gorm:"column:compliance_id"`
	RiskTitle          string    `gorm:"column:risk_title;not null"`
	RiskDescription    string    `gorm:"column:risk_description"`
	Criticality        string    `gorm:"column:criticality"`
	Category           string    `gorm:"column:category"`
	RiskLikelihood     int       `gorm:"column:risk_likelihood"`
	RiskImpact         int       `gorm:"column:risk_impact"`
	RiskExposureRating float64   `gorm:"column:risk_exposure_rating"`
	RiskPriority       string    `gorm:"column:risk_priority"`
	RiskMitigation     StepMap   `gorm:"column:risk_mitigation;type:text"`
	CreatedAt          time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName returns the GORM table name.
func (RiskRecord) TableName() string { return "risks" }

// RiskInstanceRecord is a GORM model for a risk instantiated in a specific
// context, carrying the user/reviewer mitigation cycle state.
type RiskInstanceRecord struct {
	ID                      int64            `gorm:"primaryKey;column:id;autoIncrement"`
	TenantID                string           `gorm:"column:tenant_id;index:idx_risk_instance_tenant;not null"`
	RiskID                  int64            `gorm:"column:risk_id;index:idx_risk_instance_risk;not null"`
	UserID                  int64            `gorm:"column:user_id"`
	ReviewerID              int64            `gorm:"column:reviewer_id"`
	RiskStatus              RiskStatus       `gorm:"column:risk_status;not null;default:'Not Assigned'"`
	MitigationStatus        MitigationStatus `gorm:"column:mitigation_status;not null;default:'Yet to Start'"`
	MitigationDueDate       *time.Time       `gorm:"column:mitigation_due_date"`
	MitigationCompletedDate *time.Time       `gorm:"column:mitigation_completed_date"`
	ReviewerCount           int              `gorm:"column:reviewer_count;not null;default:0"`
	RiskFormDetails         JSONAny          `gorm:"column:risk_form_details;type:text"`
	RiskMitigation          StepMap          `gorm:"column:risk_mitigation;type:text"`
	ModifiedMitigations     StepMap          `gorm:"column:modified_mitigations;type:text"`
	CreatedAt               time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt               time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName returns the GORM table name.
func (RiskInstanceRecord) TableName() string { return "risk_instances" }

// VendorSLARecord is a GORM model for a vendor service-level agreement.
type VendorSLARecord struct {
	ID                 int64      `gorm:"primaryKey;column:id;autoIncrement"`
	TenantID           string     `gorm:"column:tenant_id;index:idx_sla_tenant;not null"`
	VendorID           int64      `gorm:"column:vendor_id;index:idx_sla_vendor;not null"`
	ContractID         int64      `gorm:"column:contract_id"`
	SLAName            string     `gorm:"column:sla_name;not null"`
	SLAType            string     `gorm:"column:sla_type"`
	EffectiveDate      *time.Time `gorm:"column:effective_date"`
	ExpiryDate         *time.Time `gorm:"column:expiry_date"`
	Status             SLAStatus  `gorm:"column:status;not null;default:'Pending'"`
	Priority           string     `gorm:"column:priority"`
	ApprovalStatus     string     `gorm:"column:approval_status"`
	ComplianceScore    float64    `gorm:"column:compliance_score"`
	ReportingFrequency string     `gorm:"column:reporting_frequency"`
	Thresholds         JSONAny    `gorm:"column:thresholds;type:text"`
	DataInventory      JSONAny    `gorm:"column:data_inventory;type:text"`
	CreatedAt          time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName returns the GORM table name.
func (VendorSLARecord) TableName() string { return "vendor_slas" }

// SLAMetricRecord is a GORM model for a metric owned by a vendor SLA.
type SLAMetricRecord struct {
	ID          int64     `gorm:"primaryKey;column:id;autoIncrement"`
	TenantID    string    `gorm:"column:tenant_id;index:idx_sla_metric_tenant;not null"`
	SLAID       int64     `gorm:"column:sla_id;index:idx_sla_metric_sla;not null"`
	MetricName  string    `gorm:"column:metric_name;not null"`
	Threshold   float64   `gorm:"column:threshold"`
	Unit        string    `gorm:"column:unit"`
	Frequency   string    `gorm:"column:frequency"`
	Penalty     string    `gorm:"column:penalty"`
	Methodology string    `gorm:"column:methodology"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName returns the GORM table name.
func (SLAMetricRecord) TableName() string { return "sla_metrics" }
