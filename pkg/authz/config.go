package authz

// AuthzMode selects the authorization backend.
type AuthzMode string

const (
	// AuthzModeNone disables authorization checks (dev/backward compat).
	AuthzModeNone AuthzMode = "none"
	// AuthzModeRoles uses group-to-role permission mapping for authorization.
	AuthzModeRoles AuthzMode = "roles"
)
