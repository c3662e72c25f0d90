package workflow

import (
	"github.com/go-chi/chi/v5"
)

// Router creates a chi.Router exposing the workflow API. Tenancy, identity
// and authorization middleware are expected to be mounted by the caller.
func Router(engine *Engine) chi.Router {
	entities, approvals := engine.Stores()

	r := chi.NewRouter()

	r.Route("/frameworks", func(r chi.Router) {
		r.Post("/", createFrameworkHandler(entities))
		r.Get("/", listFrameworksHandler(entities))

		r.Route("/{frameworkID}", func(r chi.Router) {
			r.Get("/", getFrameworkHandler(entities))

			r.Post("/approvals", createFrameworkApprovalHandler(engine))
			r.Get("/approvals", listEntityApprovalsHandler(approvals))
			r.Post("/review", submitFrameworkReviewHandler(engine))
			r.Post("/final-approval", finalApprovalHandler(engine))
			r.Post("/status-change", requestStatusChangeHandler(engine))

			r.Post("/policies", createPolicyHandler(entities))
			r.Get("/policies", listPoliciesHandler(entities))
			r.Post("/policies/{policyID}/review", policyReviewHandler(engine))
			r.Post("/policies/{policyID}/subpolicies/{subPolicyID}/review", subPolicyReviewHandler(engine))
		})
	})

	r.Route("/policies/{policyID}", func(r chi.Router) {
		r.Post("/subpolicies", createSubPolicyHandler(entities))
		r.Get("/subpolicies", listSubPoliciesHandler(entities))
	})

	r.Route("/approvals", func(r chi.Router) {
		r.Get("/", listApprovalsHandler(approvals))
		r.Get("/{approvalID}", getApprovalHandler(approvals))
	})

	r.Route("/status-change-requests", func(r chi.Router) {
		r.Get("/", listStatusChangeRequestsHandler(approvals))
		r.Post("/{approvalID}/review", reviewStatusChangeHandler(engine))
	})

	r.Post("/risks", createRiskHandler(entities))

	r.Route("/risk-instances", func(r chi.Router) {
		r.Post("/", createRiskInstanceHandler(entities))
		r.Route("/{instanceID}", func(r chi.Router) {
			r.Get("/", getRiskInstanceHandler(entities))
			r.Post("/assign", assignRiskInstanceHandler(engine))
			r.Put("/reviewer", assignReviewerHandler(engine))
			r.Post("/mitigation", submitMitigationHandler(engine))
			r.Put("/mitigation", updateMitigationStatusHandler(engine))
			r.Post("/review", completeRiskReviewHandler(engine))
		})
	})

	r.Route("/slas", func(r chi.Router) {
		r.Post("/", createSLAHandler(entities))
		r.Route("/{slaID}", func(r chi.Router) {
			r.Get("/", getSLAHandler(entities))
			r.Post("/metrics", createSLAMetricHandler(entities))
			r.Get("/metrics", listSLAMetricsHandler(entities))
			r.Post("/approvals", createSLAApprovalHandler(engine))
			r.Post("/review", submitSLAReviewHandler(engine))
		})
	})

	r.Post("/sweep", sweepHandler(engine))

	return r
}
