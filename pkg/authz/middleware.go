package authz

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/complyard/grc-engine/pkg/tenancy"
)

func writeAuthzError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":   code,
		"message": message,
	})
}

// RequirePermission returns middleware that enforces a specific resource/verb
// permission check. It retrieves the identity from context (via IdentityMiddleware
// or BearerMiddleware) and the tenant from context (via tenancy middleware),
// then calls the authorizer.
func RequirePermission(authorizer Authorizer, resource, verb string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, _ := IdentityFromContext(r.Context())
			tenant := tenancy.TenantIDFromContext(r.Context())

			req := AuthzRequest{
				User:     id.User,
				Groups:   id.Groups,
				Resource: resource,
				Verb:     verb,
				Tenant:   tenant,
			}

			allowed, err := authorizer.Authorize(r.Context(), req)
			if err != nil {
				writeAuthzError(w, http.StatusInternalServerError, "internal_error", "authorization check failed")
				return
			}

			if !allowed {
				writeAuthzError(w, http.StatusForbidden, "forbidden",
					fmt.Sprintf("insufficient permissions for %s/%s in tenant %s", resource, verb, tenant))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// AuthzMiddleware returns middleware that auto-maps the HTTP method and URL path
// to a (resource, verb) pair and performs the authorization check. This can be
// mounted as global middleware on all routes.
func AuthzMiddleware(authorizer Authorizer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			mapping := MapRequest(r.Method, r.URL.Path)

			// If we cannot map the request, deny by default.
			if mapping == UnknownMapping {
				writeAuthzError(w, http.StatusForbidden, "forbidden", "unknown endpoint, access denied")
				return
			}

			id, _ := IdentityFromContext(r.Context())
			tenant := tenancy.TenantIDFromContext(r.Context())

			req := AuthzRequest{
				User:     id.User,
				Groups:   id.Groups,
				Resource: mapping.Resource,
				Verb:     mapping.Verb,
				Tenant:   tenant,
			}

			allowed, err := authorizer.Authorize(r.Context(), req)
			if err != nil {
				writeAuthzError(w, http.StatusInternalServerError, "internal_error", "authorization check failed")
				return
			}

			if !allowed {
				writeAuthzError(w, http.StatusForbidden, "forbidden",
					fmt.Sprintf("insufficient permissions for %s/%s in tenant %s", mapping.Resource, mapping.Verb, tenant))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
