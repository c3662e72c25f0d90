package cache

import (
	"net/http"

	"github.com/complyard/grc-engine/pkg/tenancy"
)

// CacheManager holds separate cache instances for approval listings and
// framework listings, each with its own TTL. Writes invalidate per tenant so
// one tenant's mutations never evict another tenant's entries.
type CacheManager struct {
	approvals  *LRUCache
	frameworks *LRUCache
}

// NewCacheManager creates a CacheManager from the given configuration.
// If cfg is nil or disabled, it returns nil; a nil manager's methods and
// middleware are all safe no-op pass-throughs.
func NewCacheManager(cfg *CacheConfig) *CacheManager {
	if cfg == nil || !cfg.Enabled {
		return nil
	}
	return &CacheManager{
		approvals:  NewLRUCache(cfg.MaxSize, cfg.ApprovalsTTL),
		frameworks: NewLRUCache(cfg.MaxSize, cfg.FrameworksTTL),
	}
}

// InvalidateTenant drops every cached entry belonging to the tenant. Called
// after any write under that tenant, since a review verdict can change both
// approval listings and framework state.
func (cm *CacheManager) InvalidateTenant(tenantID string) {
	if cm == nil || tenantID == "" {
		return
	}
	prefix := tenantPrefix(tenantID)
	cm.approvals.InvalidatePrefix(prefix)
	cm.frameworks.InvalidatePrefix(prefix)
}

// InvalidateAll clears both caches entirely.
func (cm *CacheManager) InvalidateAll() {
	if cm == nil {
		return
	}
	cm.approvals.InvalidateAll()
	cm.frameworks.InvalidateAll()
}

// ApprovalsMiddleware returns HTTP middleware that caches approval listing
// responses.
func (cm *CacheManager) ApprovalsMiddleware() func(http.Handler) http.Handler {
	if cm == nil {
		return passthrough
	}
	return CacheMiddleware(cm.approvals)
}

// FrameworksMiddleware returns HTTP middleware that caches framework and
// hierarchy listing responses.
func (cm *CacheManager) FrameworksMiddleware() func(http.Handler) http.Handler {
	if cm == nil {
		return passthrough
	}
	return CacheMiddleware(cm.frameworks)
}

// WriteInvalidationMiddleware returns HTTP middleware that drops the
// requesting tenant's cached entries after any successful non-GET request.
func (cm *CacheManager) WriteInvalidationMiddleware() func(http.Handler) http.Handler {
	if cm == nil {
		return passthrough
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodGet || r.Method == http.MethodHead {
				next.ServeHTTP(w, r)
				return
			}
			crw := &cacheResponseWriter{ResponseWriter: w}
			next.ServeHTTP(crw, r)
			if crw.statusCode >= 200 && crw.statusCode < 300 {
				cm.InvalidateTenant(tenancyID(r))
			}
		})
	}
}

func tenancyID(r *http.Request) string {
	return tenancy.TenantIDFromContext(r.Context())
}

func passthrough(next http.Handler) http.Handler { return next }
