package audit

import (
	"reflect"
	"testing"
)

func TestExtractResourceType(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/api/v1/frameworks", "frameworks"},
		{"/api/v1/frameworks/42", "frameworks"},
		{"/api/v1/frameworks/42/policies/9/review", "policies"},
		{"/api/v1/frameworks/42/subpolicies/13/review", "subpolicies"},
		{"/api/v1/risk-instances/3/mitigation", "risk-instances"},
		{"/api/v1/slas/5/metrics", "slas"},
		{"/api/v1/status-change-requests/7/review", "status-change-requests"},
		{"/api/v1/evidence/presign", "evidence"},
		{"/api/v1/sweep", "sweep"},
		{"/livez", ""},
	}

	for _, tt := range tests {
		if got := extractResourceType(tt.path); got != tt.want {
			t.Errorf("extractResourceType(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestExtractResourceIDs(t *testing.T) {
	tests := []struct {
		path string
		want []string
	}{
		{"/api/v1/frameworks/42", []string{"42"}},
		{"/api/v1/frameworks/42/policies/9/review", []string{"42", "9"}},
		{"/api/v1/risk-instances/3/mitigation", []string{"3"}},
		{"/api/v1/frameworks", nil},
		{"/api/v1/frameworks/42/review", []string{"42"}},
	}

	for _, tt := range tests {
		got := extractResourceIDs(tt.path)
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("extractResourceIDs(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestExtractActionVerb(t *testing.T) {
	tests := []struct {
		method string
		path   string
		want   string
	}{
		{"POST", "/api/v1/frameworks/42/review", "submit-review"},
		{"POST", "/api/v1/frameworks/42/final-approval", "final-approval"},
		{"POST", "/api/v1/frameworks/42/status-change", "request-status-change"},
		{"POST", "/api/v1/risk-instances/3/mitigation", "submit-mitigation"},
		{"PUT", "/api/v1/risk-instances/3/mitigation", "update-mitigation-status"},
		{"POST", "/api/v1/risk-instances/3/assign", "assign"},
		{"PUT", "/api/v1/risk-instances/3/reviewer", "assign-reviewer"},
		{"POST", "/api/v1/sweep", "sweep"},
		{"POST", "/api/v1/evidence/presign", "presign-evidence"},
		{"POST", "/api/v1/frameworks", "create"},
		{"DELETE", "/api/v1/frameworks/42", "delete"},
		{"PATCH", "/api/v1/slas/5", "patch"},
	}

	for _, tt := range tests {
		if got := extractActionVerb(tt.method, tt.path); got != tt.want {
			t.Errorf("extractActionVerb(%q, %q) = %q, want %q", tt.method, tt.path, got, tt.want)
		}
	}
}

func TestIsAuditedEndpoint(t *testing.T) {
	tests := []struct {
		method string
		path   string
		want   bool
	}{
		{"POST", "/api/v1/frameworks", true},
		{"PUT", "/api/v1/risk-instances/3/mitigation", true},
		{"DELETE", "/api/v1/frameworks/42", true},
		{"GET", "/api/v1/frameworks", false},
		{"POST", "/healthz", false},
		{"POST", "/livez", false},
	}

	for _, tt := range tests {
		if got := isAuditedEndpoint(tt.method, tt.path); got != tt.want {
			t.Errorf("isAuditedEndpoint(%q, %q) = %v, want %v", tt.method, tt.path, got, tt.want)
		}
	}
}

func TestOutcomeFromStatus(t *testing.T) {
	tests := []struct {
		code int
		want string
	}{
		{200, "success"},
		{201, "success"},
		{403, "denied"},
		{404, "failure"},
		{500, "failure"},
	}

	for _, tt := range tests {
		if got := outcomeFromStatus(tt.code); got != tt.want {
			t.Errorf("outcomeFromStatus(%d) = %q, want %q", tt.code, got, tt.want)
		}
	}
}
