// Package tenancy provides multi-tenant context resolution and middleware
// for the workflow server. It supports single-tenant (backward compatible)
// and header-based multi-tenant modes.
package tenancy

// TenancyMode controls how tenant context is resolved.
type TenancyMode string

const (
	// ModeSingle uses the "default" tenant for all requests (backward compat).
	ModeSingle TenancyMode = "single"
	// ModeHeader requires a tenant id per request (multi-tenant).
	ModeHeader TenancyMode = "header"
)
