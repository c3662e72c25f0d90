// Package authz provides authorization primitives for the workflow server.
// It supports role-based authorization with identities supplied either by
// trusted proxy headers or by signed JWT bearer tokens, and a no-op mode
// for development and backward compatibility.
package authz

import "context"

// Resource names for permission mapping.
const (
	ResourceFrameworks  = "frameworks"
	ResourcePolicies    = "policies"
	ResourceSubPolicies = "subpolicies"
	ResourceApprovals   = "approvals"
	ResourceRisks       = "risks"
	ResourceSLAs        = "slas"
	ResourceAudit       = "audit"
	ResourceEvidence    = "evidence"
)

// Verb names for permission mapping.
const (
	VerbGet     = "get"
	VerbList    = "list"
	VerbCreate  = "create"
	VerbUpdate  = "update"
	VerbDelete  = "delete"
	VerbApprove = "approve"
	VerbSubmit  = "submit"
)

// AuthzRequest represents an authorization check.
type AuthzRequest struct {
	User     string
	Groups   []string
	Resource string
	Verb     string
	Tenant   string // Empty for tenant-agnostic checks.
}

// Authorizer checks whether a user is authorized to perform an action.
type Authorizer interface {
	Authorize(ctx context.Context, req AuthzRequest) (bool, error)
}
