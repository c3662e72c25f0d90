package workflow

import (
	"fmt"
	"sort"

	"gorm.io/gorm"
)

// ApprovalStore provides append-only access to approval records. Every
// method takes the tenant id and scopes the query to it.
type ApprovalStore struct {
	db *gorm.DB
}

// NewApprovalStore creates a new ApprovalStore.
func NewApprovalStore(db *gorm.DB) *ApprovalStore {
	return &ApprovalStore{db: db}
}

// AutoMigrate creates or updates the approval_records table.
func (s *ApprovalStore) AutoMigrate() error {
	if err := s.db.AutoMigrate(&ApprovalRecord{}); err != nil {
		return fmt.Errorf("auto-migrate approval_records: %w", err)
	}
	return nil
}

// Create inserts a new approval record inside the given transaction.
// Duplicate (entity, version) pairs are rejected by the unique index; the
// caller maps that to a version conflict and retries once.
func (s *ApprovalStore) Create(tx *gorm.DB, record *ApprovalRecord) error {
	if record.TenantID == "" {
		return TenancyFault("approval record requires a tenant id")
	}
	if _, err := ParseVersion(record.Version); err != nil {
		return ValidationFault("approval version %q does not match ^[ur][1-9][0-9]*$", record.Version)
	}
	if err := tx.Create(record).Error; err != nil {
		if isDuplicateKey(err) {
			return VersionConflict("version %s already exists for %s/%d", record.Version, record.EntityType, record.EntityID)
		}
		return fmt.Errorf("create approval record: %w", err)
	}
	return nil
}

// Get retrieves an approval record by id, tenant-scoped.
func (s *ApprovalStore) Get(tenantID string, id int64) (*ApprovalRecord, error) {
	var record ApprovalRecord
	err := s.db.Where("tenant_id = ? AND id = ?", tenantID, id).First(&record).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("get approval record: %w", err)
	}
	return &record, nil
}

// ForEntity returns every record for an entity, unordered.
func (s *ApprovalStore) ForEntity(tenantID string, entityType EntityType, entityID int64) ([]ApprovalRecord, error) {
	return s.forEntityTx(s.db, tenantID, entityType, entityID)
}

func (s *ApprovalStore) forEntityTx(tx *gorm.DB, tenantID string, entityType EntityType, entityID int64) ([]ApprovalRecord, error) {
	var records []ApprovalRecord
	err := tx.Where("tenant_id = ? AND entity_type = ? AND entity_id = ?", tenantID, entityType, entityID).
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("list approval records for %s/%d: %w", entityType, entityID, err)
	}
	return records, nil
}

// Latest returns the most recent record for an entity ordered by version
// axis precedence (reviewer over user) and then numeric suffix descending,
// or nil if the entity has no records.
func (s *ApprovalStore) Latest(tenantID string, entityType EntityType, entityID int64) (*ApprovalRecord, error) {
	return s.latestTx(s.db, tenantID, entityType, entityID)
}

func (s *ApprovalStore) latestTx(tx *gorm.DB, tenantID string, entityType EntityType, entityID int64) (*ApprovalRecord, error) {
	records, err := s.forEntityTx(tx, tenantID, entityType, entityID)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	sort.Slice(records, func(i, j int) bool {
		if c := compareVersions(records[i].Version, records[j].Version); c != 0 {
			return c > 0
		}
		return records[i].ID > records[j].ID
	})
	return &records[0], nil
}

// LatestWorking returns the record with the highest row id for an entity.
// Within the framework review flow this is the freshest working copy of the
// snapshot regardless of axis.
func (s *ApprovalStore) LatestWorking(tenantID string, entityType EntityType, entityID int64) (*ApprovalRecord, error) {
	return s.latestWorkingTx(s.db, tenantID, entityType, entityID)
}

func (s *ApprovalStore) latestWorkingTx(tx *gorm.DB, tenantID string, entityType EntityType, entityID int64) (*ApprovalRecord, error) {
	var record ApprovalRecord
	err := tx.Where("tenant_id = ? AND entity_type = ? AND entity_id = ?", tenantID, entityType, entityID).
		Order("id DESC").First(&record).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("latest approval record for %s/%d: %w", entityType, entityID, err)
	}
	return &record, nil
}

// LatestPerFramework returns exactly one record per framework for the
// tenant, the one with the highest row id. Used by dashboard listings.
func (s *ApprovalStore) LatestPerFramework(tenantID string) ([]ApprovalRecord, error) {
	var records []ApprovalRecord
	err := s.db.Where("tenant_id = ? AND entity_type = ?", tenantID, EntityFramework).
		Order("id DESC").Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("list framework approvals: %w", err)
	}
	return dedupeByEntity(records), nil
}

// ByAuthor returns the latest record per entity authored by the given user.
func (s *ApprovalStore) ByAuthor(tenantID string, userID int64) ([]ApprovalRecord, error) {
	var records []ApprovalRecord
	err := s.db.Where("tenant_id = ? AND author_id = ?", tenantID, userID).
		Order("id DESC").Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("list approvals by author: %w", err)
	}
	return dedupeByEntity(records), nil
}

// ByReviewer returns the latest record per entity assigned to the given reviewer.
func (s *ApprovalStore) ByReviewer(tenantID string, userID int64) ([]ApprovalRecord, error) {
	var records []ApprovalRecord
	err := s.db.Where("tenant_id = ? AND reviewer_id = ?", tenantID, userID).
		Order("id DESC").Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("list approvals by reviewer: %w", err)
	}
	return dedupeByEntity(records), nil
}

// RejectedForUser returns the latest rejected record per entity authored by
// the given user.
func (s *ApprovalStore) RejectedForUser(tenantID string, userID int64) ([]ApprovalRecord, error) {
	var records []ApprovalRecord
	err := s.db.Where("tenant_id = ? AND author_id = ? AND approved_not = ?", tenantID, userID, false).
		Order("id DESC").Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("list rejected approvals: %w", err)
	}
	return dedupeByEntity(records), nil
}

// StatusChangeRequests returns the latest status-change request per entity
// for the tenant. The entityType filter is optional. Legacy records carry no
// request_type column value and are recognized by their snapshot shape, the
// same criterion the review path accepts.
func (s *ApprovalStore) StatusChangeRequests(tenantID string, entityType EntityType) ([]ApprovalRecord, error) {
	query := s.db.Where("tenant_id = ?", tenantID).
		Where("request_type = ? OR request_type = '' OR request_type IS NULL", RequestTypeStatusChange)
	if entityType != "" {
		query = query.Where("entity_type = ?", entityType)
	}
	var records []ApprovalRecord
	if err := query.Order("id DESC").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("list status-change requests: %w", err)
	}
	requests := records[:0]
	for _, r := range records {
		if r.RequestType == RequestTypeStatusChange || r.ExtractedData.Snapshot.IsStatusChange() {
			requests = append(requests, r)
		}
	}
	return dedupeByEntity(requests), nil
}

// CountReviewerRecords counts r-axis records for an entity inside the
// caller's transaction. Used to maintain reviewer-count parity on risk
// instances.
func (s *ApprovalStore) CountReviewerRecords(tx *gorm.DB, tenantID string, entityType EntityType, entityID int64) (int, error) {
	records, err := s.forEntityTx(tx, tenantID, entityType, entityID)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, r := range records {
		if v, err := ParseVersion(r.Version); err == nil && v.Axis == AxisReviewer {
			n++
		}
	}
	return n, nil
}

// dedupeByEntity keeps the first record seen per (entity_type, entity_id).
// Input must already be ordered newest-first.
func dedupeByEntity(records []ApprovalRecord) []ApprovalRecord {
	type key struct {
		t  EntityType
		id int64
	}
	seen := make(map[key]bool, len(records))
	out := records[:0]
	for _, r := range records {
		k := key{r.EntityType, r.EntityID}
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, r)
	}
	return out
}
