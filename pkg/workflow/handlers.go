package workflow

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/complyard/grc-engine/pkg/tenancy"
)

// validate is the shared validator instance for request bodies.
var validate = validator.New()

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeFault maps engine faults to their HTTP status and emits the fault
// code alongside the message.
func writeFault(w http.ResponseWriter, err error) {
	writeJSON(w, HTTPStatus(err), map[string]string{
		"error":   FaultCode(err),
		"message": err.Error(),
	})
}

func urlID(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s %q", name, raw)
	}
	return id, nil
}

// decodeValid decodes the request body into v and runs struct validation.
func decodeValid(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	if err := validate.Struct(v); err != nil {
		return err
	}
	return nil
}

func parseDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return nil, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", s)
	}
	return &t, nil
}

func tenantOf(r *http.Request) string {
	return tenancy.TenantIDFromContext(r.Context())
}

// createFrameworkHandler handles POST /frameworks.
func createFrameworkHandler(entities *EntityStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			FrameworkName    string  `json:"frameworkName" validate:"required"`
			Identifier       string  `json:"identifier" validate:"required"`
			Description      string  `json:"description"`
			Category         string  `json:"category"`
			InternalExternal string  `json:"internalExternal"`
			StartDate        string  `json:"startDate"`
			EndDate          string  `json:"endDate"`
			CurrentVersion   float64 `json:"currentVersion"`
			CreatedByName    string  `json:"createdByName"`
			Reviewer         int64   `json:"reviewer"`
			DocURL           string  `json:"docUrl"`
		}
		if err := decodeValid(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		start, err := parseDate(body.StartDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		end, err := parseDate(body.EndDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		now := time.Now()
		fw := &FrameworkRecord{
			TenantID:             tenantOf(r),
			FrameworkName:        body.FrameworkName,
			Identifier:           body.Identifier,
			FrameworkDescription: body.Description,
			Category:             body.Category,
			InternalExternal:     body.InternalExternal,
			StartDate:            start,
			EndDate:              end,
			Status:               StatusUnderReview,
			ActiveInactive:       ActivationInactive,
			CurrentVersion:       body.CurrentVersion,
			CreatedByName:        body.CreatedByName,
			CreatedByDate:        &now,
			Reviewer:             body.Reviewer,
			DocURL:               body.DocURL,
		}
		if fw.CurrentVersion == 0 {
			fw.CurrentVersion = 1
		}

		if err := entities.CreateFramework(fw); err != nil {
			writeFault(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, fw)
	}
}

// listFrameworksHandler handles GET /frameworks.
func listFrameworksHandler(entities *EntityStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		fws, err := entities.ListFrameworks(tenantOf(r))
		if err != nil {
			writeFault(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"frameworks": fws,
			"totalSize":  len(fws),
		})
	}
}

// getFrameworkHandler handles GET /frameworks/{frameworkID}.
func getFrameworkHandler(entities *EntityStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := urlID(r, "frameworkID")
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		fw, err := entities.GetFramework(tenantOf(r), id)
		if err != nil {
			writeFault(w, err)
			return
		}
		if fw == nil {
			writeError(w, http.StatusNotFound, fmt.Sprintf("framework %d not found", id))
			return
		}
		writeJSON(w, http.StatusOK, fw)
	}
}

// createPolicyHandler handles POST /frameworks/{frameworkID}/policies.
func createPolicyHandler(entities *EntityStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		frameworkID, err := urlID(r, "frameworkID")
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		var body struct {
			PolicyName     string `json:"policyName" validate:"required"`
			Identifier     string `json:"identifier"`
			Scope          string `json:"scope"`
			Objective      string `json:"objective"`
			Applicability  string `json:"applicability"`
			Department     string `json:"department"`
			StartDate      string `json:"startDate"`
			EndDate        string `json:"endDate"`
			Reviewer       int64  `json:"reviewer"`
			PolicyType     string `json:"policyType"`
			PolicyCategory string `json:"policyCategory"`
		}
		if err := decodeValid(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		start, err := parseDate(body.StartDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		end, err := parseDate(body.EndDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		tenant := tenantOf(r)
		fw, err := entities.GetFramework(tenant, frameworkID)
		if err != nil {
			writeFault(w, err)
			return
		}
		if fw == nil {
			writeError(w, http.StatusNotFound, fmt.Sprintf("framework %d not found", frameworkID))
			return
		}

		p := &PolicyRecord{
			TenantID:       tenant,
			FrameworkID:    frameworkID,
			PolicyName:     body.PolicyName,
			Identifier:     body.Identifier,
			Scope:          body.Scope,
			Objective:      body.Objective,
			Applicability:  body.Applicability,
			Department:     body.Department,
			StartDate:      start,
			EndDate:        end,
			Status:         StatusUnderReview,
			ActiveInactive: ActivationInactive,
			Reviewer:       body.Reviewer,
			PolicyType:     body.PolicyType,
			PolicyCategory: body.PolicyCategory,
		}
		if err := entities.CreatePolicy(p); err != nil {
			writeFault(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, p)
	}
}

// listPoliciesHandler handles GET /frameworks/{frameworkID}/policies.
func listPoliciesHandler(entities *EntityStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		frameworkID, err := urlID(r, "frameworkID")
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		policies, err := entities.PoliciesForFramework(entities.DB(), tenantOf(r), frameworkID)
		if err != nil {
			writeFault(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"policies":  policies,
			"totalSize": len(policies),
		})
	}
}

// createSubPolicyHandler handles POST /policies/{policyID}/subpolicies.
func createSubPolicyHandler(entities *EntityStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		policyID, err := urlID(r, "policyID")
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		var body struct {
			SubPolicyName      string `json:"subPolicyName" validate:"required"`
			Identifier         string `json:"identifier"`
			Description        string `json:"description"`
			Control            string `json:"control"`
			PermanentTemporary string `json:"permanentTemporary"`
		}
		if err := decodeValid(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		tenant := tenantOf(r)
		p, err := entities.GetPolicy(tenant, policyID)
		if err != nil {
			writeFault(w, err)
			return
		}
		if p == nil {
			writeError(w, http.StatusNotFound, fmt.Sprintf("policy %d not found", policyID))
			return
		}

		sp := &SubPolicyRecord{
			TenantID:           tenant,
			PolicyID:           policyID,
			SubPolicyName:      body.SubPolicyName,
			Identifier:         body.Identifier,
			Description:        body.Description,
			Control:            body.Control,
			Status:             StatusUnderReview,
			PermanentTemporary: body.PermanentTemporary,
		}
		if err := entities.CreateSubPolicy(sp); err != nil {
			writeFault(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, sp)
	}
}

// listSubPoliciesHandler handles GET /policies/{policyID}/subpolicies.
func listSubPoliciesHandler(entities *EntityStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		policyID, err := urlID(r, "policyID")
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		subs, err := entities.SubPoliciesForPolicy(entities.DB(), tenantOf(r), policyID)
		if err != nil {
			writeFault(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"subpolicies": subs,
			"totalSize":   len(subs),
		})
	}
}

// createFrameworkApprovalHandler handles POST /frameworks/{frameworkID}/approvals.
func createFrameworkApprovalHandler(engine *Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		frameworkID, err := urlID(r, "frameworkID")
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		var body struct {
			AuthorID   int64 `json:"authorId" validate:"required,gt=0"`
			ReviewerID int64 `json:"reviewerId" validate:"required,gt=0"`
		}
		if err := decodeValid(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		record, err := engine.CreateFrameworkApproval(tenantOf(r), frameworkID, body.AuthorID, body.ReviewerID)
		if err != nil {
			writeFault(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, recordToAPI(record))
	}
}

// submitFrameworkReviewHandler handles POST /frameworks/{frameworkID}/review.
// approved=null saves reviewer progress without a verdict.
func submitFrameworkReviewHandler(engine *Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		frameworkID, err := urlID(r, "frameworkID")
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		var body struct {
			ReviewerID    int64     `json:"reviewerId" validate:"required,gt=0"`
			Approved      *bool     `json:"approved"`
			Remarks       string    `json:"remarks"`
			ExtractedData *Snapshot `json:"extractedData"`
		}
		if err := decodeValid(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		record, err := engine.SubmitFrameworkReview(tenantOf(r), frameworkID, body.ReviewerID, body.Approved, body.ExtractedData, body.Remarks)
		if err != nil {
			writeFault(w, err)
			return
		}
		writeJSON(w, http.StatusOK, recordToAPI(record))
	}
}

// finalApprovalHandler handles POST /frameworks/{frameworkID}/final-approval.
func finalApprovalHandler(engine *Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		frameworkID, err := urlID(r, "frameworkID")
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		var body struct {
			ReviewerID int64 `json:"reviewerId" validate:"required,gt=0"`
		}
		if err := decodeValid(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		record, err := engine.ApproveEntireFrameworkFinal(tenantOf(r), frameworkID, body.ReviewerID)
		if err != nil {
			writeFault(w, err)
			return
		}
		writeJSON(w, http.StatusOK, recordToAPI(record))
	}
}

// policyReviewHandler handles POST /frameworks/{frameworkID}/policies/{policyID}/review.
func policyReviewHandler(engine *Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		frameworkID, err := urlID(r, "frameworkID")
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		policyID, err := urlID(r, "policyID")
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		var body struct {
			ReviewerID   int64  `json:"reviewerId" validate:"required,gt=0"`
			Approved     *bool  `json:"approved" validate:"required"`
			Remarks      string `json:"remarks"`
			SubmitReview bool   `json:"submitReview"`
		}
		if err := decodeValid(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		record, err := engine.ApproveRejectPolicyInFramework(tenantOf(r), frameworkID, policyID, body.ReviewerID, *body.Approved, body.Remarks, body.SubmitReview)
		if err != nil {
			writeFault(w, err)
			return
		}
		writeJSON(w, http.StatusOK, recordToAPI(record))
	}
}

// subPolicyReviewHandler handles
// POST /frameworks/{frameworkID}/policies/{policyID}/subpolicies/{subPolicyID}/review.
func subPolicyReviewHandler(engine *Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		frameworkID, err := urlID(r, "frameworkID")
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		policyID, err := urlID(r, "policyID")
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		subPolicyID, err := urlID(r, "subPolicyID")
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		var body struct {
			ReviewerID   int64  `json:"reviewerId" validate:"required,gt=0"`
			Approved     *bool  `json:"approved" validate:"required"`
			Remarks      string `json:"remarks"`
			SubmitReview bool   `json:"submitReview"`
		}
		if err := decodeValid(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		record, err := engine.ApproveRejectSubPolicyInFramework(tenantOf(r), frameworkID, policyID, subPolicyID, body.ReviewerID, *body.Approved, body.Remarks, body.SubmitReview)
		if err != nil {
			writeFault(w, err)
			return
		}
		writeJSON(w, http.StatusOK, recordToAPI(record))
	}
}

// requestStatusChangeHandler handles POST /frameworks/{frameworkID}/status-change.
func requestStatusChangeHandler(engine *Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		frameworkID, err := urlID(r, "frameworkID")
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		var body struct {
			AuthorID          int64  `json:"authorId" validate:"required,gt=0"`
			ReviewerID        int64  `json:"reviewerId" validate:"required,gt=0"`
			Reason            string `json:"reason" validate:"required"`
			CascadeToPolicies bool   `json:"cascadeToPolicies"`
		}
		if err := decodeValid(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		record, err := engine.RequestFrameworkStatusChange(tenantOf(r), frameworkID, body.AuthorID, body.ReviewerID, body.Reason, body.CascadeToPolicies)
		if err != nil {
			writeFault(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, recordToAPI(record))
	}
}

// listStatusChangeRequestsHandler handles GET /status-change-requests.
func listStatusChangeRequestsHandler(approvals *ApprovalStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entityType := EntityType(r.URL.Query().Get("entityType"))
		records, err := approvals.StatusChangeRequests(tenantOf(r), entityType)
		if err != nil {
			writeFault(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toApprovalList(records))
	}
}

// reviewStatusChangeHandler handles POST /status-change-requests/{approvalID}/review.
func reviewStatusChangeHandler(engine *Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		approvalID, err := urlID(r, "approvalID")
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		var body struct {
			UserID   int64  `json:"userId" validate:"required,gt=0"`
			Approved *bool  `json:"approved" validate:"required"`
			Remarks  string `json:"remarks"`
		}
		if err := decodeValid(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		record, err := engine.ApproveFrameworkStatusChange(tenantOf(r), approvalID, body.UserID, *body.Approved, body.Remarks)
		if err != nil {
			writeFault(w, err)
			return
		}
		writeJSON(w, http.StatusOK, recordToAPI(record))
	}
}

func toApprovalList(records []ApprovalRecord) ApprovalList {
	out := ApprovalList{Approvals: make([]Approval, len(records)), TotalSize: len(records)}
	for i := range records {
		out.Approvals[i] = recordToAPI(&records[i])
	}
	return out
}

// listApprovalsHandler handles GET /approvals.
// Filters: authorId, reviewerId, rejectedForUser. Without a filter, the
// latest record per framework is returned.
func listApprovalsHandler(approvals *ApprovalStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenant := tenantOf(r)
		q := r.URL.Query()

		parse := func(name string) (int64, bool, error) {
			raw := q.Get(name)
			if raw == "" {
				return 0, false, nil
			}
			id, err := strconv.ParseInt(raw, 10, 64)
			if err != nil || id <= 0 {
				return 0, false, fmt.Errorf("invalid %s %q", name, raw)
			}
			return id, true, nil
		}

		var records []ApprovalRecord
		var err error
		switch {
		case q.Get("authorId") != "":
			var id int64
			if id, _, err = parse("authorId"); err == nil {
				records, err = approvals.ByAuthor(tenant, id)
			}
		case q.Get("reviewerId") != "":
			var id int64
			if id, _, err = parse("reviewerId"); err == nil {
				records, err = approvals.ByReviewer(tenant, id)
			}
		case q.Get("rejectedForUser") != "":
			var id int64
			if id, _, err = parse("rejectedForUser"); err == nil {
				records, err = approvals.RejectedForUser(tenant, id)
			}
		default:
			records, err = approvals.LatestPerFramework(tenant)
		}
		if err != nil {
			if HTTPStatus(err) == http.StatusInternalServerError {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}
			writeFault(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toApprovalList(records))
	}
}

// getApprovalHandler handles GET /approvals/{approvalID}.
func getApprovalHandler(approvals *ApprovalStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		approvalID, err := urlID(r, "approvalID")
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		record, err := approvals.Get(tenantOf(r), approvalID)
		if err != nil {
			writeFault(w, err)
			return
		}
		if record == nil {
			writeFault(w, NotFound("approval %d not found", approvalID))
			return
		}
		writeJSON(w, http.StatusOK, recordToAPI(record))
	}
}

// listEntityApprovalsHandler handles GET /frameworks/{frameworkID}/approvals.
func listEntityApprovalsHandler(approvals *ApprovalStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		frameworkID, err := urlID(r, "frameworkID")
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		records, err := approvals.ForEntity(tenantOf(r), EntityFramework, frameworkID)
		if err != nil {
			writeFault(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toApprovalList(records))
	}
}
