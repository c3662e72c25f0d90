package workflow

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/complyard/grc-engine/pkg/crypto"
)

// EntityStore persists frameworks, policies, subpolicies, risks, risk
// instances, SLAs and metrics. Every read is tenant-qualified and every
// child query is filtered by parent and tenant. Status transitions are
// reserved for the engine and the sweep; adapters read only.
type EntityStore struct {
	db     *gorm.DB
	cipher crypto.FieldCipher
}

// NewEntityStore creates an EntityStore. A nil cipher disables field
// encryption.
func NewEntityStore(db *gorm.DB, cipher crypto.FieldCipher) *EntityStore {
	if cipher == nil {
		cipher = crypto.Passthrough{}
	}
	return &EntityStore{db: db, cipher: cipher}
}

// DB exposes the underlying handle for transaction scoping by the engine.
func (s *EntityStore) DB() *gorm.DB { return s.db }

// AutoMigrate creates or updates all entity tables.
func (s *EntityStore) AutoMigrate() error {
	models := []any{
		&FrameworkRecord{}, &PolicyRecord{}, &SubPolicyRecord{},
		&RiskRecord{}, &RiskInstanceRecord{},
		&VendorSLARecord{}, &SLAMetricRecord{},
	}
	for _, m := range models {
		if err := s.db.AutoMigrate(m); err != nil {
			return fmt.Errorf("auto-migrate entity tables: %w", err)
		}
	}
	return nil
}

// CreateFramework inserts a framework. DocURL is sealed at rest.
func (s *EntityStore) CreateFramework(fw *FrameworkRecord) error {
	if fw.TenantID == "" {
		return TenancyFault("framework requires a tenant id")
	}
	sealed, err := s.cipher.Seal(fw.DocURL)
	if err != nil {
		return fmt.Errorf("seal framework doc url: %w", err)
	}
	fw.DocURL = sealed
	if err := s.db.Create(fw).Error; err != nil {
		return fmt.Errorf("create framework: %w", err)
	}
	return nil
}

// GetFramework retrieves a framework by id, tenant-qualified. Sealed fields
// are returned plain.
func (s *EntityStore) GetFramework(tenantID string, id int64) (*FrameworkRecord, error) {
	return s.getFrameworkTx(s.db, tenantID, id)
}

func (s *EntityStore) getFrameworkTx(tx *gorm.DB, tenantID string, id int64) (*FrameworkRecord, error) {
	var fw FrameworkRecord
	err := tx.Where("tenant_id = ? AND id = ?", tenantID, id).First(&fw).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("get framework: %w", err)
	}
	plain, err := s.cipher.Plain(fw.DocURL)
	if err != nil {
		return nil, fmt.Errorf("open framework doc url: %w", err)
	}
	fw.DocURL = plain
	return &fw, nil
}

// ListFrameworks returns every framework in a tenant, newest first. Sealed
// fields are returned plain.
func (s *EntityStore) ListFrameworks(tenantID string) ([]FrameworkRecord, error) {
	var fws []FrameworkRecord
	err := s.db.Where("tenant_id = ?", tenantID).Order("id DESC").Find(&fws).Error
	if err != nil {
		return nil, fmt.Errorf("list frameworks: %w", err)
	}
	for i := range fws {
		plain, err := s.cipher.Plain(fws[i].DocURL)
		if err != nil {
			return nil, fmt.Errorf("open framework doc url: %w", err)
		}
		fws[i].DocURL = plain
	}
	return fws, nil
}

// FrameworksByIdentifier returns every framework sharing an identifier
// within a tenant. Used by supersession.
func (s *EntityStore) FrameworksByIdentifier(tx *gorm.DB, tenantID, identifier string) ([]FrameworkRecord, error) {
	var fws []FrameworkRecord
	err := tx.Where("tenant_id = ? AND identifier = ?", tenantID, identifier).Find(&fws).Error
	if err != nil {
		return nil, fmt.Errorf("list frameworks by identifier: %w", err)
	}
	return fws, nil
}

// CreatePolicy inserts a policy under a framework.
func (s *EntityStore) CreatePolicy(p *PolicyRecord) error {
	if p.TenantID == "" {
		return TenancyFault("policy requires a tenant id")
	}
	if err := s.db.Create(p).Error; err != nil {
		return fmt.Errorf("create policy: %w", err)
	}
	return nil
}

// GetPolicy retrieves a policy by id, tenant-qualified.
func (s *EntityStore) GetPolicy(tenantID string, id int64) (*PolicyRecord, error) {
	var p PolicyRecord
	err := s.db.Where("tenant_id = ? AND id = ?", tenantID, id).First(&p).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("get policy: %w", err)
	}
	return &p, nil
}

// PoliciesForFramework returns the policies of a framework, filtered by
// parent and tenant.
func (s *EntityStore) PoliciesForFramework(tx *gorm.DB, tenantID string, frameworkID int64) ([]PolicyRecord, error) {
	var ps []PolicyRecord
	err := tx.Where("tenant_id = ? AND framework_id = ?", tenantID, frameworkID).
		Order("id ASC").Find(&ps).Error
	if err != nil {
		return nil, fmt.Errorf("list policies for framework: %w", err)
	}
	return ps, nil
}

// CreateSubPolicy inserts a subpolicy under a policy.
func (s *EntityStore) CreateSubPolicy(sp *SubPolicyRecord) error {
	if sp.TenantID == "" {
		return TenancyFault("subpolicy requires a tenant id")
	}
	if err := s.db.Create(sp).Error; err != nil {
		return fmt.Errorf("create subpolicy: %w", err)
	}
	return nil
}

// SubPoliciesForPolicy returns the subpolicies of a policy, filtered by
// parent and tenant.
func (s *EntityStore) SubPoliciesForPolicy(tx *gorm.DB, tenantID string, policyID int64) ([]SubPolicyRecord, error) {
	var sps []SubPolicyRecord
	err := tx.Where("tenant_id = ? AND policy_id = ?", tenantID, policyID).
		Order("id ASC").Find(&sps).Error
	if err != nil {
		return nil, fmt.Errorf("list subpolicies for policy: %w", err)
	}
	return sps, nil
}

// CreateRisk inserts a risk definition.
func (s *EntityStore) CreateRisk(r *RiskRecord) error {
	if r.TenantID == "" {
		return TenancyFault("risk requires a tenant id")
	}
	if err := s.db.Create(r).Error; err != nil {
		return fmt.Errorf("create risk: %w", err)
	}
	return nil
}

// CreateRiskInstance inserts a risk instance.
func (s *EntityStore) CreateRiskInstance(ri *RiskInstanceRecord) error {
	if ri.TenantID == "" {
		return TenancyFault("risk instance requires a tenant id")
	}
	if ri.RiskStatus == "" {
		ri.RiskStatus = RiskNotAssigned
	}
	if ri.MitigationStatus == "" {
		ri.MitigationStatus = MitigationYetToStart
	}
	if err := s.db.Create(ri).Error; err != nil {
		return fmt.Errorf("create risk instance: %w", err)
	}
	return nil
}

// GetRiskInstance retrieves a risk instance by id, tenant-qualified.
func (s *EntityStore) GetRiskInstance(tenantID string, id int64) (*RiskInstanceRecord, error) {
	return s.getRiskInstanceTx(s.db, tenantID, id)
}

func (s *EntityStore) getRiskInstanceTx(tx *gorm.DB, tenantID string, id int64) (*RiskInstanceRecord, error) {
	var ri RiskInstanceRecord
	err := tx.Where("tenant_id = ? AND id = ?", tenantID, id).First(&ri).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("get risk instance: %w", err)
	}
	return &ri, nil
}

// CreateSLA inserts a vendor SLA.
func (s *EntityStore) CreateSLA(sla *VendorSLARecord) error {
	if sla.TenantID == "" {
		return TenancyFault("sla requires a tenant id")
	}
	if sla.Status == "" {
		sla.Status = SLAPending
	}
	if err := s.db.Create(sla).Error; err != nil {
		return fmt.Errorf("create sla: %w", err)
	}
	return nil
}

// GetSLA retrieves a vendor SLA by id, tenant-qualified.
func (s *EntityStore) GetSLA(tenantID string, id int64) (*VendorSLARecord, error) {
	var sla VendorSLARecord
	err := s.db.Where("tenant_id = ? AND id = ?", tenantID, id).First(&sla).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("get sla: %w", err)
	}
	return &sla, nil
}

// CreateSLAMetric inserts a metric under an SLA.
func (s *EntityStore) CreateSLAMetric(m *SLAMetricRecord) error {
	if m.TenantID == "" {
		return TenancyFault("sla metric requires a tenant id")
	}
	if err := s.db.Create(m).Error; err != nil {
		return fmt.Errorf("create sla metric: %w", err)
	}
	return nil
}

// MetricsForSLA returns the metrics of an SLA, filtered by parent and tenant.
func (s *EntityStore) MetricsForSLA(tx *gorm.DB, tenantID string, slaID int64) ([]SLAMetricRecord, error) {
	var ms []SLAMetricRecord
	err := tx.Where("tenant_id = ? AND sla_id = ?", tenantID, slaID).
		Order("id ASC").Find(&ms).Error
	if err != nil {
		return nil, fmt.Errorf("list metrics for sla: %w", err)
	}
	return ms, nil
}
