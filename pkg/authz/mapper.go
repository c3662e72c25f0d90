package authz

import (
	"net/http"
	"strings"
)

// ResourceMapping maps an HTTP request to a workflow resource and verb for
// authorization.
type ResourceMapping struct {
	Resource string
	Verb     string
}

// UnknownMapping is returned when no known pattern matches the request.
// Callers should deny requests with this mapping by default.
var UnknownMapping = ResourceMapping{Resource: "", Verb: ""}

// MapRequest maps an HTTP method and URL path to a ResourceMapping.
// The mapper uses path segment patterns to determine the appropriate
// workflow resource and verb for authorization checks.
func MapRequest(method, path string) ResourceMapping {
	// Normalize the path: trim trailing slash.
	path = strings.TrimRight(path, "/")

	// Review submissions are approvals regardless of the entity segment:
	// POST .../review, POST .../final-approval, POST .../status-change.
	if method == http.MethodPost {
		switch {
		case strings.HasSuffix(path, "/review"),
			strings.HasSuffix(path, "/final-approval"):
			return ResourceMapping{Resource: resourceForPath(path), Verb: VerbApprove}
		case strings.HasSuffix(path, "/status-change"):
			return ResourceMapping{Resource: ResourceApprovals, Verb: VerbCreate}
		case strings.HasSuffix(path, "/mitigation"),
			strings.HasSuffix(path, "/assign"),
			strings.HasSuffix(path, "/reviewer"):
			return ResourceMapping{Resource: ResourceRisks, Verb: VerbSubmit}
		case strings.HasSuffix(path, "/sweep"):
			return ResourceMapping{Resource: ResourceFrameworks, Verb: VerbUpdate}
		case strings.Contains(path, "/evidence"):
			return ResourceMapping{Resource: ResourceEvidence, Verb: VerbCreate}
		}
	}

	if strings.Contains(path, "/audit") {
		return mapCollectionRoute(method, ResourceAudit)
	}
	if strings.Contains(path, "/status-change-requests") {
		return mapCollectionRoute(method, ResourceApprovals)
	}
	if strings.Contains(path, "/approvals") {
		return mapCollectionRoute(method, ResourceApprovals)
	}
	if strings.Contains(path, "/risk") {
		return mapCollectionRoute(method, ResourceRisks)
	}
	if strings.Contains(path, "/slas") {
		return mapCollectionRoute(method, ResourceSLAs)
	}
	if strings.Contains(path, "/subpolicies") {
		return mapCollectionRoute(method, ResourceSubPolicies)
	}
	if strings.Contains(path, "/policies") {
		return mapCollectionRoute(method, ResourcePolicies)
	}
	if strings.Contains(path, "/frameworks") {
		return mapCollectionRoute(method, ResourceFrameworks)
	}

	// Default: unknown pattern.
	return UnknownMapping
}

// resourceForPath picks the entity resource kind for review routes.
func resourceForPath(path string) string {
	switch {
	case strings.Contains(path, "/subpolicies"):
		return ResourceSubPolicies
	case strings.Contains(path, "/policies"):
		return ResourcePolicies
	case strings.Contains(path, "/risk"):
		return ResourceRisks
	case strings.Contains(path, "/slas"):
		return ResourceSLAs
	case strings.Contains(path, "/status-change-requests"):
		return ResourceApprovals
	default:
		return ResourceFrameworks
	}
}

// mapCollectionRoute maps standard CRUD-ish methods on a resource collection.
// GET on a collection path (no trailing id segment after the resource name)
// is list; GET with an id is get.
func mapCollectionRoute(method, resource string) ResourceMapping {
	switch method {
	case http.MethodGet:
		return ResourceMapping{Resource: resource, Verb: VerbList}
	case http.MethodPost:
		return ResourceMapping{Resource: resource, Verb: VerbCreate}
	case http.MethodPut, http.MethodPatch:
		return ResourceMapping{Resource: resource, Verb: VerbUpdate}
	case http.MethodDelete:
		return ResourceMapping{Resource: resource, Verb: VerbDelete}
	default:
		return ResourceMapping{Resource: resource, Verb: VerbGet}
	}
}
