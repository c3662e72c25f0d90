package audit

import (
	"strings"
)

// resourceSegments are the path segments that name an auditable resource in
// the workflow API (/api/v1/...).
var resourceSegments = map[string]bool{
	"frameworks":             true,
	"policies":               true,
	"subpolicies":            true,
	"approvals":              true,
	"risks":                  true,
	"risk-instances":         true,
	"slas":                   true,
	"status-change-requests": true,
	"evidence":               true,
	"sweep":                  true,
}

// extractResourceType returns the last resource segment of a URL path.
// For /api/v1/frameworks/42/policies/9/review it returns "policies".
func extractResourceType(path string) string {
	parts := strings.Split(strings.TrimPrefix(path, "/"), "/")
	resource := ""
	for _, p := range parts {
		if resourceSegments[p] {
			resource = p
		}
	}
	return resource
}

// extractResourceIDs extracts resource IDs from a URL path. IDs are the
// segments that directly follow a resource segment.
func extractResourceIDs(path string) []string {
	parts := strings.Split(strings.TrimPrefix(path, "/"), "/")
	var ids []string

	for i, p := range parts {
		if resourceSegments[p] && i+1 < len(parts) && !resourceSegments[parts[i+1]] {
			next := parts[i+1]
			switch next {
			case "review", "final-approval", "status-change", "mitigation",
				"assign", "reviewer", "metrics", "presign", "events":
				continue
			}
			ids = append(ids, next)
		}
	}

	return ids
}

// extractActionVerb returns a human-readable action name from the HTTP
// method and path.
func extractActionVerb(method, path string) string {
	parts := strings.Split(strings.TrimPrefix(path, "/"), "/")

	// Known workflow action endpoints.
	for _, p := range parts {
		switch p {
		case "review":
			return "submit-review"
		case "final-approval":
			return "final-approval"
		case "status-change":
			return "request-status-change"
		case "mitigation":
			if method == "PUT" || method == "PATCH" {
				return "update-mitigation-status"
			}
			return "submit-mitigation"
		case "assign":
			return "assign"
		case "reviewer":
			return "assign-reviewer"
		case "sweep":
			return "sweep"
		case "presign":
			return "presign-evidence"
		}
	}

	// Fall back to HTTP method mapping.
	switch method {
	case "POST":
		return "create"
	case "PUT":
		return "update"
	case "PATCH":
		return "patch"
	case "DELETE":
		return "delete"
	default:
		return strings.ToLower(method)
	}
}

// isAuditedEndpoint returns true if the request should be audited.
// Mutating methods (POST, PUT, PATCH, DELETE) are audited. Pure browsing
// (GET) is not.
func isAuditedEndpoint(method, path string) bool {
	// Never audit health endpoints.
	if isHealthEndpoint(path) {
		return false
	}

	switch method {
	case "POST", "PUT", "PATCH", "DELETE":
		return true
	}

	return false
}

// isHealthEndpoint returns true for health-check paths.
func isHealthEndpoint(path string) bool {
	switch path {
	case "/livez", "/readyz", "/healthz":
		return true
	}
	return false
}
