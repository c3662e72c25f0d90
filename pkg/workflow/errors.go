package workflow

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"gorm.io/gorm"
)

// Fault is a typed engine error with a machine-readable code. Handlers map
// codes to HTTP statuses; callers always see an unambiguous outcome.
type Fault struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *Fault) Error() string { return e.Message }

// Fault codes.
const (
	CodeTenancy      = "TENANCY_FAULT"
	CodeNotFound     = "NOT_FOUND"
	CodePrecondition = "PRECONDITION_FAILED"
	CodeVersion      = "VERSION_CONFLICT"
	CodeAuthz        = "AUTHORIZATION_FAULT"
	CodeIntegrity    = "INTEGRITY_FAULT"
	CodeValidation   = "VALIDATION_FAULT"
	CodePort         = "PORT_FAULT"
)

// TenancyFault reports a missing or mismatching tenant id.
func TenancyFault(format string, args ...any) error {
	return &Fault{Code: CodeTenancy, Message: fmt.Sprintf(format, args...)}
}

// NotFound reports a missing entity or approval record.
func NotFound(format string, args ...any) error {
	return &Fault{Code: CodeNotFound, Message: fmt.Sprintf(format, args...)}
}

// PreconditionFailed reports a verb invoked against an entity in the wrong state.
func PreconditionFailed(format string, args ...any) error {
	return &Fault{Code: CodePrecondition, Message: fmt.Sprintf(format, args...)}
}

// VersionConflict reports a concurrent collision on (entity, version) that
// survived the single retry.
func VersionConflict(format string, args ...any) error {
	return &Fault{Code: CodeVersion, Message: fmt.Sprintf(format, args...)}
}

// AuthorizationFault reports a caller who is not the assigned reviewer or author.
func AuthorizationFault(format string, args ...any) error {
	return &Fault{Code: CodeAuthz, Message: fmt.Sprintf(format, args...)}
}

// IntegrityFault reports a snapshot that cannot be reconciled to the tables.
func IntegrityFault(format string, args ...any) error {
	return &Fault{Code: CodeIntegrity, Message: fmt.Sprintf(format, args...)}
}

// ValidationFault reports malformed caller input.
func ValidationFault(format string, args ...any) error {
	return &Fault{Code: CodeValidation, Message: fmt.Sprintf(format, args...)}
}

// FaultCode extracts the code from an error, or CodePort for untyped errors.
func FaultCode(err error) string {
	var f *Fault
	if errors.As(err, &f) {
		return f.Code
	}
	return CodePort
}

// HTTPStatus maps an engine error to the transport status contract.
func HTTPStatus(err error) int {
	switch FaultCode(err) {
	case CodeValidation:
		return http.StatusBadRequest
	case CodeTenancy, CodeAuthz:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	case CodeVersion:
		return http.StatusConflict
	case CodePrecondition:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// isDuplicateKey reports whether err is a unique-constraint violation on any
// of the supported drivers. GORM translates some drivers to
// ErrDuplicatedKey; SQLite and MySQL surface constraint text instead.
func isDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "Duplicate entry") ||
		strings.Contains(msg, "duplicate key value")
}
