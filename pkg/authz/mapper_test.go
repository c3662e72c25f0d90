package authz

import (
	"net/http"
	"testing"
)

func TestMapRequest(t *testing.T) {
	tests := []struct {
		name         string
		method       string
		path         string
		wantResource string
		wantVerb     string
	}{
		{
			name:         "list frameworks",
			method:       http.MethodGet,
			path:         "/api/v1/frameworks",
			wantResource: ResourceFrameworks,
			wantVerb:     VerbList,
		},
		{
			name:         "create framework",
			method:       http.MethodPost,
			path:         "/api/v1/frameworks",
			wantResource: ResourceFrameworks,
			wantVerb:     VerbCreate,
		},
		{
			name:         "framework review",
			method:       http.MethodPost,
			path:         "/api/v1/frameworks/42/review",
			wantResource: ResourceFrameworks,
			wantVerb:     VerbApprove,
		},
		{
			name:         "framework final approval",
			method:       http.MethodPost,
			path:         "/api/v1/frameworks/42/final-approval",
			wantResource: ResourceFrameworks,
			wantVerb:     VerbApprove,
		},
		{
			name:         "status change request",
			method:       http.MethodPost,
			path:         "/api/v1/frameworks/42/status-change",
			wantResource: ResourceApprovals,
			wantVerb:     VerbCreate,
		},
		{
			name:         "status change review",
			method:       http.MethodPost,
			path:         "/api/v1/status-change-requests/7/review",
			wantResource: ResourceApprovals,
			wantVerb:     VerbApprove,
		},
		{
			name:         "policy review",
			method:       http.MethodPost,
			path:         "/api/v1/frameworks/42/policies/9/review",
			wantResource: ResourcePolicies,
			wantVerb:     VerbApprove,
		},
		{
			name:         "subpolicy review",
			method:       http.MethodPost,
			path:         "/api/v1/frameworks/42/subpolicies/13/review",
			wantResource: ResourceSubPolicies,
			wantVerb:     VerbApprove,
		},
		{
			name:         "list approvals",
			method:       http.MethodGet,
			path:         "/api/v1/approvals",
			wantResource: ResourceApprovals,
			wantVerb:     VerbList,
		},
		{
			name:         "submit mitigation",
			method:       http.MethodPost,
			path:         "/api/v1/risk-instances/3/mitigation",
			wantResource: ResourceRisks,
			wantVerb:     VerbSubmit,
		},
		{
			name:         "assign risk instance",
			method:       http.MethodPost,
			path:         "/api/v1/risk-instances/3/assign",
			wantResource: ResourceRisks,
			wantVerb:     VerbSubmit,
		},
		{
			name:         "risk review",
			method:       http.MethodPost,
			path:         "/api/v1/risk-instances/3/review",
			wantResource: ResourceRisks,
			wantVerb:     VerbApprove,
		},
		{
			name:         "sla review",
			method:       http.MethodPost,
			path:         "/api/v1/slas/5/review",
			wantResource: ResourceSLAs,
			wantVerb:     VerbApprove,
		},
		{
			name:         "list sla metrics",
			method:       http.MethodGet,
			path:         "/api/v1/slas/5/metrics",
			wantResource: ResourceSLAs,
			wantVerb:     VerbList,
		},
		{
			name:         "audit events",
			method:       http.MethodGet,
			path:         "/api/v1/audit/events",
			wantResource: ResourceAudit,
			wantVerb:     VerbList,
		},
		{
			name:         "evidence presign",
			method:       http.MethodPost,
			path:         "/api/v1/evidence/presign",
			wantResource: ResourceEvidence,
			wantVerb:     VerbCreate,
		},
		{
			name:         "manual sweep",
			method:       http.MethodPost,
			path:         "/api/v1/sweep",
			wantResource: ResourceFrameworks,
			wantVerb:     VerbUpdate,
		},
		{
			name:         "trailing slash normalized",
			method:       http.MethodGet,
			path:         "/api/v1/frameworks/",
			wantResource: ResourceFrameworks,
			wantVerb:     VerbList,
		},
		{
			name:   "unknown path",
			method: http.MethodGet,
			path:   "/metrics-dump",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MapRequest(tt.method, tt.path)
			if got.Resource != tt.wantResource {
				t.Errorf("Resource = %q, want %q", got.Resource, tt.wantResource)
			}
			if got.Verb != tt.wantVerb {
				t.Errorf("Verb = %q, want %q", got.Verb, tt.wantVerb)
			}
		})
	}
}
