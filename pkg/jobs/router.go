package jobs

import (
	"github.com/go-chi/chi/v5"

	"github.com/complyard/grc-engine/pkg/authz"
)

// Router creates a chi.Router for the maintenance job API.
// When authorizer is non-nil, endpoints require jobs:list, jobs:get, and
// jobs:create permissions.
func Router(store *JobStore, lookup RunnerLookup, authorizer authz.Authorizer) chi.Router {
	r := chi.NewRouter()

	enqueueHandler := EnqueueJobHandler(store, lookup)
	listHandler := ListJobsHandler(store)
	getHandler := GetJobHandler(store)
	cancelHandler := CancelJobHandler(store)

	if authorizer != nil {
		r.Post("/", authz.RequirePermission(authorizer, "jobs", "create")(enqueueHandler).ServeHTTP)
		r.Get("/", authz.RequirePermission(authorizer, "jobs", "list")(listHandler).ServeHTTP)
		r.Get("/{jobId}", authz.RequirePermission(authorizer, "jobs", "get")(getHandler).ServeHTTP)
		r.Post("/{jobId}:cancel", authz.RequirePermission(authorizer, "jobs", "create")(cancelHandler).ServeHTTP)
	} else {
		r.Post("/", enqueueHandler)
		r.Get("/", listHandler)
		r.Get("/{jobId}", getHandler)
		r.Post("/{jobId}:cancel", cancelHandler)
	}

	return r
}
