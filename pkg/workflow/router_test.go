package workflow

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/complyard/grc-engine/pkg/tenancy"
)

func newTestRouter(t *testing.T) (chi.Router, *Engine) {
	t.Helper()
	eng := newTestEngine(t, fixedClock(testToday))
	return Router(eng), eng
}

func doRequest(t *testing.T, router http.Handler, tenant, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req = req.WithContext(tenancy.WithTenant(req.Context(), tenancy.TenantContext{TenantID: tenant}))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(rec.Body).Decode(v))
}

func TestCreateAndGetFrameworkEndpoint(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doRequest(t, router, "acme", http.MethodPost, "/frameworks", map[string]any{
		"frameworkName": "ISO 27001",
		"identifier":    "ISO-27001",
		"category":      "Security",
		"startDate":     "2026-06-01",
		"docUrl":        "https://docs.example.com/iso.pdf",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var created FrameworkRecord
	decodeBody(t, rec, &created)
	require.NotZero(t, created.ID)
	assert.Equal(t, StatusUnderReview, created.Status)
	assert.Equal(t, float64(1), created.CurrentVersion)

	rec = doRequest(t, router, "acme", http.MethodGet, "/frameworks/1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var got FrameworkRecord
	decodeBody(t, rec, &got)
	assert.Equal(t, "ISO 27001", got.FrameworkName)
	assert.Equal(t, "https://docs.example.com/iso.pdf", got.DocURL)

	rec = doRequest(t, router, "acme", http.MethodGet, "/frameworks", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Frameworks []FrameworkRecord `json:"frameworks"`
		TotalSize  int               `json:"totalSize"`
	}
	decodeBody(t, rec, &list)
	assert.Equal(t, 1, list.TotalSize)
}

func TestCreateFrameworkEndpointValidation(t *testing.T) {
	router, _ := newTestRouter(t)

	// frameworkName is required.
	rec := doRequest(t, router, "acme", http.MethodPost, "/frameworks", map[string]any{
		"identifier": "ISO-27001",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, router, "acme", http.MethodPost, "/frameworks", map[string]any{
		"frameworkName": "ISO",
		"identifier":    "ISO",
		"startDate":     "June 1st",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestFrameworkEndpointTenantIsolation(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doRequest(t, router, "acme", http.MethodPost, "/frameworks", map[string]any{
		"frameworkName": "ISO 27001",
		"identifier":    "ISO-27001",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doRequest(t, router, "globex", http.MethodGet, "/frameworks/1", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPolicyEndpoints(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doRequest(t, router, "acme", http.MethodPost, "/frameworks", map[string]any{
		"frameworkName": "ISO 27001",
		"identifier":    "ISO-27001",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doRequest(t, router, "acme", http.MethodPost, "/frameworks/1/policies", map[string]any{
		"policyName": "Access Control",
		"identifier": "AC-1",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	// Parent must exist.
	rec = doRequest(t, router, "acme", http.MethodPost, "/frameworks/99/policies", map[string]any{
		"policyName": "Orphan",
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doRequest(t, router, "acme", http.MethodPost, "/policies/1/subpolicies", map[string]any{
		"subPolicyName": "Password Policy",
		"control":       "Rotate credentials",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doRequest(t, router, "acme", http.MethodGet, "/policies/1/subpolicies", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		SubPolicies []SubPolicyRecord `json:"subpolicies"`
		TotalSize   int               `json:"totalSize"`
	}
	decodeBody(t, rec, &list)
	assert.Equal(t, 1, list.TotalSize)
}

func TestReviewEndpointsFullCycle(t *testing.T) {
	router, eng := newTestRouter(t)
	entities, _ := eng.Stores()
	fw, _, _ := seedHierarchy(t, entities, "acme")

	rec := doRequest(t, router, "acme", http.MethodPost, "/frameworks/1/approvals", map[string]any{
		"authorId":   10,
		"reviewerId": 20,
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	var approval Approval
	decodeBody(t, rec, &approval)
	assert.Equal(t, "u1", approval.Version)

	rec = doRequest(t, router, "acme", http.MethodPost, "/frameworks/1/review", map[string]any{
		"reviewerId": 20,
		"approved":   true,
		"remarks":    "complete",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	decodeBody(t, rec, &approval)
	assert.Equal(t, "r1", approval.Version)
	require.NotNil(t, approval.ApprovedNot)
	assert.True(t, *approval.ApprovedNot)

	got, err := entities.GetFramework("acme", fw.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, got.Status)
}

func TestReviewEndpointFaultMapping(t *testing.T) {
	router, eng := newTestRouter(t)
	entities, _ := eng.Stores()
	seedHierarchy(t, entities, "acme")

	// No submission yet: precondition maps to 409.
	rec := doRequest(t, router, "acme", http.MethodPost, "/frameworks/1/review", map[string]any{
		"reviewerId": 20,
		"approved":   true,
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
	var fault struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	decodeBody(t, rec, &fault)
	assert.Equal(t, CodePrecondition, fault.Error)

	doRequest(t, router, "acme", http.MethodPost, "/frameworks/1/approvals", map[string]any{
		"authorId": 10, "reviewerId": 20,
	})

	// Wrong reviewer maps to 403.
	rec = doRequest(t, router, "acme", http.MethodPost, "/frameworks/1/review", map[string]any{
		"reviewerId": 77,
		"approved":   true,
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// Missing framework maps to 404.
	rec = doRequest(t, router, "acme", http.MethodPost, "/frameworks/99/review", map[string]any{
		"reviewerId": 20,
		"approved":   true,
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPolicyReviewEndpoints(t *testing.T) {
	router, eng := newTestRouter(t)
	entities, _ := eng.Stores()
	_, policies, subs := seedHierarchy(t, entities, "acme")
	doRequest(t, router, "acme", http.MethodPost, "/frameworks/1/approvals", map[string]any{
		"authorId": 10, "reviewerId": 20,
	})

	path := "/frameworks/1/policies/1/subpolicies/1/review"
	rec := doRequest(t, router, "acme", http.MethodPost, path, map[string]any{
		"reviewerId": 20,
		"approved":   true,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	// approved is required; omitting it is a validation error.
	rec = doRequest(t, router, "acme", http.MethodPost, path, map[string]any{
		"reviewerId": 20,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, router, "acme", http.MethodPost, "/frameworks/1/policies/2/review", map[string]any{
		"reviewerId": 20,
		"approved":   true,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	gotSub, err := entities.SubPoliciesForPolicy(entities.DB(), "acme", policies[0].ID)
	require.NoError(t, err)
	require.Len(t, gotSub, len(subs))
	assert.Equal(t, StatusApproved, gotSub[0].Status)
}

func TestApprovalListingEndpoints(t *testing.T) {
	router, eng := newTestRouter(t)
	entities, _ := eng.Stores()
	seedHierarchy(t, entities, "acme")
	doRequest(t, router, "acme", http.MethodPost, "/frameworks/1/approvals", map[string]any{
		"authorId": 10, "reviewerId": 20,
	})
	doRequest(t, router, "acme", http.MethodPost, "/frameworks/1/review", map[string]any{
		"reviewerId": 20, "approved": false, "remarks": "redo",
	})

	var list ApprovalList

	rec := doRequest(t, router, "acme", http.MethodGet, "/approvals", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decodeBody(t, rec, &list)
	require.Equal(t, 1, list.TotalSize)
	assert.Equal(t, "r1", list.Approvals[0].Version)

	rec = doRequest(t, router, "acme", http.MethodGet, "/approvals?authorId=10", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decodeBody(t, rec, &list)
	assert.Equal(t, 1, list.TotalSize)

	rec = doRequest(t, router, "acme", http.MethodGet, "/approvals?rejectedForUser=10", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decodeBody(t, rec, &list)
	require.Equal(t, 1, list.TotalSize)
	require.NotNil(t, list.Approvals[0].ApprovedNot)
	assert.False(t, *list.Approvals[0].ApprovedNot)

	rec = doRequest(t, router, "acme", http.MethodGet, "/approvals?authorId=banana", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, router, "acme", http.MethodGet, "/approvals/1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var one Approval
	decodeBody(t, rec, &one)
	assert.Equal(t, "u1", one.Version)

	rec = doRequest(t, router, "globex", http.MethodGet, "/approvals/1", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doRequest(t, router, "acme", http.MethodGet, "/approvals/999", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStatusChangeEndpoints(t *testing.T) {
	router, eng := newTestRouter(t)
	entities, _ := eng.Stores()
	fw, _, _ := seedHierarchy(t, entities, "acme")
	doRequest(t, router, "acme", http.MethodPost, "/frameworks/1/approvals", map[string]any{
		"authorId": 10, "reviewerId": 20,
	})
	doRequest(t, router, "acme", http.MethodPost, "/frameworks/1/review", map[string]any{
		"reviewerId": 20, "approved": true,
	})

	rec := doRequest(t, router, "acme", http.MethodPost, "/frameworks/1/status-change", map[string]any{
		"authorId":          10,
		"reviewerId":        20,
		"reason":            "framework retired",
		"cascadeToPolicies": true,
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	var request Approval
	decodeBody(t, rec, &request)
	assert.Equal(t, RequestTypeStatusChange, request.RequestType)

	rec = doRequest(t, router, "acme", http.MethodGet, "/status-change-requests?entityType=framework", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list ApprovalList
	decodeBody(t, rec, &list)
	assert.Equal(t, 1, list.TotalSize)

	rec = doRequest(t, router, "acme", http.MethodPost,
		"/status-change-requests/"+itoa(request.ID)+"/review", map[string]any{
			"userId":   20,
			"approved": true,
			"remarks":  "confirmed",
		})
	require.Equal(t, http.StatusOK, rec.Code)

	got, err := entities.GetFramework("acme", fw.ID)
	require.NoError(t, err)
	assert.Equal(t, ActivationInactive, got.ActiveInactive)
}

func TestRiskEndpoints(t *testing.T) {
	router, eng := newTestRouter(t)
	entities, _ := eng.Stores()

	rec := doRequest(t, router, "acme", http.MethodPost, "/risks", map[string]any{
		"riskTitle":      "Unpatched endpoints",
		"riskLikelihood": 4,
		"riskImpact":     5,
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	var risk RiskRecord
	decodeBody(t, rec, &risk)
	assert.Equal(t, float64(20), risk.RiskExposureRating)

	rec = doRequest(t, router, "acme", http.MethodPost, "/risk-instances", map[string]any{
		"riskId": risk.ID,
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	var ri RiskInstanceRecord
	decodeBody(t, rec, &ri)

	rec = doRequest(t, router, "acme", http.MethodPost, "/risk-instances/1/assign", map[string]any{
		"ownerId":     30,
		"mitigations": map[string]string{"1": "patch hosts"},
		"dueDate":     "2026-07-15",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, router, "acme", http.MethodPut, "/risk-instances/1/reviewer", map[string]any{
		"reviewerId": 40,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, router, "acme", http.MethodPost, "/risk-instances/1/mitigation", map[string]any{
		"userId": 30,
		"mitigations": map[string]any{
			"1": map[string]any{"description": "patch hosts", "status": "Completed"},
		},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, router, "acme", http.MethodPost, "/risk-instances/1/review", map[string]any{
		"reviewerId": 40,
		"approved":   true,
		"mitigations": map[string]any{
			"1": map[string]any{"description": "patch hosts", "approved": true},
		},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	got, err := entities.GetRiskInstance("acme", ri.ID)
	require.NoError(t, err)
	assert.Equal(t, RiskApproved, got.RiskStatus)
	assert.Equal(t, MitigationCompleted, got.MitigationStatus)

	rec = doRequest(t, router, "acme", http.MethodPut, "/risk-instances/1/mitigation", map[string]any{
		"status": "Bogus",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSLAEndpoints(t *testing.T) {
	router, eng := newTestRouter(t)
	entities, _ := eng.Stores()

	rec := doRequest(t, router, "acme", http.MethodPost, "/slas", map[string]any{
		"vendorId":      7,
		"slaName":       "Uptime SLA",
		"effectiveDate": "2026-06-01",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doRequest(t, router, "acme", http.MethodPost, "/slas/1/metrics", map[string]any{
		"metricName": "Availability",
		"threshold":  99.9,
		"unit":       "%",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	// Parent must exist.
	rec = doRequest(t, router, "acme", http.MethodPost, "/slas/99/metrics", map[string]any{
		"metricName": "Orphan",
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doRequest(t, router, "acme", http.MethodPost, "/slas/1/approvals", map[string]any{
		"authorId": 10, "reviewerId": 20,
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doRequest(t, router, "acme", http.MethodPost, "/slas/1/review", map[string]any{
		"reviewerId": 20,
		"approved":   true,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	got, err := entities.GetSLA("acme", 1)
	require.NoError(t, err)
	assert.Equal(t, SLAActive, got.Status)
}

func TestSweepEndpoint(t *testing.T) {
	router, eng := newTestRouter(t)
	entities, _ := eng.Stores()

	fw := &FrameworkRecord{
		TenantID: "acme", FrameworkName: "A", Identifier: "A",
		Status: StatusApproved, ActiveInactive: ActivationScheduled,
		StartDate: datePtr(2026, time.June, 1),
	}
	require.NoError(t, entities.CreateFramework(fw))

	rec := doRequest(t, router, "acme", http.MethodPost, "/sweep", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var res SweepResult
	decodeBody(t, rec, &res)
	assert.Equal(t, 1, res.FrameworksActivated)
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
