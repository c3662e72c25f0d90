package authz

import (
	"context"
	"net/http"
	"strings"
)

// Headers set by the authenticating proxy in front of the engine.
const (
	remoteUserHeader  = "X-Remote-User"
	remoteGroupHeader = "X-Remote-Group"
)

// AnonymousUser is the actor recorded when no identity reached the engine.
// Anonymous callers can never act as an author or reviewer.
const AnonymousUser = "anonymous"

// identityCtxKey is an unexported type used as the context key for Identity.
type identityCtxKey struct{}

// Identity is the caller on whose behalf an engine verb runs. The user name
// feeds author/reviewer attribution and the audit trail; groups are matched
// against role names for permission checks.
type Identity struct {
	User   string
	Groups []string
}

// Anonymous reports whether the identity carries no authenticated user.
func (id Identity) Anonymous() bool {
	return id.User == "" || id.User == AnonymousUser
}

// WithIdentity returns a new context with the given Identity attached.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityCtxKey{}, id)
}

// IdentityFromContext retrieves the Identity from the context.
// Returns the zero value and false if no identity is set.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityCtxKey{}).(Identity)
	return id, ok
}

// IdentityMiddleware extracts the caller from the X-Remote-User and
// X-Remote-Group proxy headers and stores it in the request context. A
// missing user header yields AnonymousUser; the group header is a
// comma-separated role list.
func IdentityMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := strings.TrimSpace(r.Header.Get(remoteUserHeader))
			if user == "" {
				user = AnonymousUser
			}

			var groups []string
			groupHeader := strings.TrimSpace(r.Header.Get(remoteGroupHeader))
			if groupHeader != "" {
				for _, g := range strings.Split(groupHeader, ",") {
					g = strings.TrimSpace(g)
					if g != "" {
						groups = append(groups, g)
					}
				}
			}

			ctx := WithIdentity(r.Context(), Identity{User: user, Groups: groups})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
