package authz

import (
	"context"
	"sort"
)

// Built-in role names. Groups from the identity are matched against these.
const (
	RoleAdmin    = "grc-admin"
	RoleReviewer = "grc-reviewer"
	RoleAuthor   = "grc-author"
	RoleViewer   = "grc-viewer"
)

// permission is a resource/verb pair.
type permission struct {
	resource string
	verb     string
}

// RoleAuthorizer grants access based on the roles carried in the identity's
// groups. Unknown roles grant nothing; a user with no recognized role is
// denied everything.
type RoleAuthorizer struct {
	grants map[string]map[permission]bool
}

// NewRoleAuthorizer creates a RoleAuthorizer with the built-in role table.
func NewRoleAuthorizer() *RoleAuthorizer {
	a := &RoleAuthorizer{grants: make(map[string]map[permission]bool)}

	allResources := []string{
		ResourceFrameworks, ResourcePolicies, ResourceSubPolicies,
		ResourceApprovals, ResourceRisks, ResourceSLAs,
		ResourceAudit, ResourceEvidence,
	}
	allVerbs := []string{
		VerbGet, VerbList, VerbCreate, VerbUpdate, VerbDelete,
		VerbApprove, VerbSubmit,
	}

	// grc-admin: everything.
	for _, res := range allResources {
		for _, verb := range allVerbs {
			a.grant(RoleAdmin, res, verb)
		}
	}

	// grc-viewer: read-only everywhere except audit and evidence internals.
	for _, res := range []string{ResourceFrameworks, ResourcePolicies, ResourceSubPolicies, ResourceApprovals, ResourceRisks, ResourceSLAs} {
		a.grant(RoleViewer, res, VerbGet)
		a.grant(RoleViewer, res, VerbList)
	}

	// grc-author: viewer plus create/update/submit on workflow entities.
	for _, res := range []string{ResourceFrameworks, ResourcePolicies, ResourceSubPolicies, ResourceApprovals, ResourceRisks, ResourceSLAs, ResourceEvidence} {
		a.grant(RoleAuthor, res, VerbGet)
		a.grant(RoleAuthor, res, VerbList)
		a.grant(RoleAuthor, res, VerbCreate)
		a.grant(RoleAuthor, res, VerbUpdate)
		a.grant(RoleAuthor, res, VerbSubmit)
	}

	// grc-reviewer: author permissions plus approve.
	for _, res := range allResources {
		a.grant(RoleReviewer, res, VerbGet)
		a.grant(RoleReviewer, res, VerbList)
	}
	for _, res := range []string{ResourceFrameworks, ResourcePolicies, ResourceSubPolicies, ResourceApprovals, ResourceRisks, ResourceSLAs} {
		a.grant(RoleReviewer, res, VerbApprove)
		a.grant(RoleReviewer, res, VerbSubmit)
	}

	return a
}

func (a *RoleAuthorizer) grant(role, resource, verb string) {
	perms, ok := a.grants[role]
	if !ok {
		perms = make(map[permission]bool)
		a.grants[role] = perms
	}
	perms[permission{resource: resource, verb: verb}] = true
}

// Authorize returns true if any of the identity's groups maps to a role
// that grants the requested resource/verb.
func (a *RoleAuthorizer) Authorize(_ context.Context, req AuthzRequest) (bool, error) {
	want := permission{resource: req.Resource, verb: req.Verb}
	for _, group := range req.Groups {
		if perms, ok := a.grants[group]; ok && perms[want] {
			return true, nil
		}
	}
	return false, nil
}

// Roles returns the known role names in sorted order.
func (a *RoleAuthorizer) Roles() []string {
	roles := make([]string, 0, len(a.grants))
	for role := range a.grants {
		roles = append(roles, role)
	}
	sort.Strings(roles)
	return roles
}
