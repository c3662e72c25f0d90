package workflow

import (
	"fmt"
	"regexp"
	"strconv"

	"gorm.io/gorm"
)

// VersionAxis identifies which author role produced a version.
type VersionAxis byte

const (
	// AxisUser versions ("u1", "u2", ...) are authored by the submitting user.
	AxisUser VersionAxis = 'u'
	// AxisReviewer versions ("r1", "r2", ...) are authored by the reviewer.
	AxisReviewer VersionAxis = 'r'
)

// versionRe is the version string grammar. Leading zeros are not valid.
var versionRe = regexp.MustCompile(`^[ur]([1-9]\d*)$`)

// Version is a parsed version string such as "u3" or "r1".
type Version struct {
	Axis VersionAxis
	N    int
}

// String renders the version in wire form.
func (v Version) String() string {
	return fmt.Sprintf("%c%d", v.Axis, v.N)
}

// ParseVersion parses a version string. Malformed strings (wrong axis,
// leading zeros, empty) return an error; the allocator treats them as absent.
func ParseVersion(s string) (Version, error) {
	m := versionRe.FindStringSubmatch(s)
	if m == nil {
		return Version{}, fmt.Errorf("malformed version %q", s)
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return Version{}, fmt.Errorf("malformed version %q: %w", s, err)
	}
	return Version{Axis: VersionAxis(s[0]), N: n}, nil
}

// compareVersions orders by axis precedence (reviewer > user) and then by
// numeric suffix. Malformed versions sort below everything.
func compareVersions(a, b string) int {
	va, errA := ParseVersion(a)
	vb, errB := ParseVersion(b)
	switch {
	case errA != nil && errB != nil:
		return 0
	case errA != nil:
		return -1
	case errB != nil:
		return 1
	}
	if va.Axis != vb.Axis {
		if va.Axis == AxisReviewer {
			return 1
		}
		return -1
	}
	return va.N - vb.N
}

// nextVersion computes the next version on the given axis for an entity by
// scanning its existing approval records inside the caller's transaction.
// Malformed stored versions are ignored, so a fresh counter starts at 1.
// The insertion that consumes the result must run in the same transaction;
// the unique index on (entity_type, entity_id, version) catches races and
// the caller retries once.
func nextVersion(tx *gorm.DB, entityType EntityType, entityID int64, axis VersionAxis) (Version, error) {
	var versions []string
	err := tx.Model(&ApprovalRecord{}).
		Where("entity_type = ? AND entity_id = ?", entityType, entityID).
		Pluck("version", &versions).Error
	if err != nil {
		return Version{}, fmt.Errorf("scan versions for %s/%d: %w", entityType, entityID, err)
	}

	max := 0
	for _, s := range versions {
		v, err := ParseVersion(s)
		if err != nil || v.Axis != axis {
			continue
		}
		if v.N > max {
			max = v.N
		}
	}
	return Version{Axis: axis, N: max + 1}, nil
}
