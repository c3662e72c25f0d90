package workflow

import (
	"fmt"
	"net/http"
	"time"
)

// createRiskHandler handles POST /risks.
func createRiskHandler(entities *EntityStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			FrameworkID     *int64  `json:"frameworkId"`
			RiskTitle       string  `json:"riskTitle" validate:"required"`
			RiskDescription string  `json:"riskDescription"`
			Criticality     string  `json:"criticality"`
			Category        string  `json:"category"`
			RiskLikelihood  int     `json:"riskLikelihood"`
			RiskImpact      int     `json:"riskImpact"`
			RiskPriority    string  `json:"riskPriority"`
			RiskMitigation  StepMap `json:"riskMitigation"`
		}
		if err := decodeValid(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		risk := &RiskRecord{
			TenantID:           tenantOf(r),
			FrameworkID:        body.FrameworkID,
			RiskTitle:          body.RiskTitle,
			RiskDescription:    body.RiskDescription,
			Criticality:        body.Criticality,
			Category:           body.Category,
			RiskLikelihood:     body.RiskLikelihood,
			RiskImpact:         body.RiskImpact,
			RiskExposureRating: float64(body.RiskLikelihood * body.RiskImpact),
			RiskPriority:       body.RiskPriority,
			RiskMitigation:     body.RiskMitigation,
		}
		if err := entities.CreateRisk(risk); err != nil {
			writeFault(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, risk)
	}
}

// createRiskInstanceHandler handles POST /risk-instances.
func createRiskInstanceHandler(entities *EntityStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			RiskID          int64   `json:"riskId" validate:"required,gt=0"`
			RiskFormDetails JSONAny `json:"riskFormDetails"`
		}
		if err := decodeValid(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		ri := &RiskInstanceRecord{
			TenantID:         tenantOf(r),
			RiskID:           body.RiskID,
			RiskStatus:       RiskNotAssigned,
			MitigationStatus: MitigationYetToStart,
			RiskFormDetails:  body.RiskFormDetails,
		}
		if err := entities.CreateRiskInstance(ri); err != nil {
			writeFault(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, ri)
	}
}

// getRiskInstanceHandler handles GET /risk-instances/{instanceID}.
func getRiskInstanceHandler(entities *EntityStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		instanceID, err := urlID(r, "instanceID")
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		ri, err := entities.GetRiskInstance(tenantOf(r), instanceID)
		if err != nil {
			writeFault(w, err)
			return
		}
		if ri == nil {
			writeError(w, http.StatusNotFound, fmt.Sprintf("risk instance %d not found", instanceID))
			return
		}
		writeJSON(w, http.StatusOK, ri)
	}
}

// assignRiskInstanceHandler handles POST /risk-instances/{instanceID}/assign.
func assignRiskInstanceHandler(engine *Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		instanceID, err := urlID(r, "instanceID")
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		var body struct {
			OwnerID     int64             `json:"ownerId" validate:"required,gt=0"`
			Mitigations map[string]string `json:"mitigations"`
			DueDate     string            `json:"dueDate"`
			FormDetails JSONAny           `json:"formDetails"`
		}
		if err := decodeValid(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		var due *time.Time
		if body.DueDate != "" {
			due, err = parseDate(body.DueDate)
			if err != nil {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}
		}

		if err := engine.AssignRiskInstance(tenantOf(r), instanceID, body.OwnerID, body.Mitigations, due, body.FormDetails); err != nil {
			writeFault(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "assigned"})
	}
}

// assignReviewerHandler handles PUT /risk-instances/{instanceID}/reviewer.
func assignReviewerHandler(engine *Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		instanceID, err := urlID(r, "instanceID")
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		var body struct {
			ReviewerID           int64 `json:"reviewerId" validate:"required,gt=0"`
			CreateApprovalRecord bool  `json:"createApprovalRecord"`
		}
		if err := decodeValid(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		record, err := engine.AssignReviewer(tenantOf(r), instanceID, body.ReviewerID, body.CreateApprovalRecord)
		if err != nil {
			writeFault(w, err)
			return
		}
		if record == nil {
			writeJSON(w, http.StatusOK, map[string]string{"status": "reviewer assigned"})
			return
		}
		writeJSON(w, http.StatusOK, recordToAPI(record))
	}
}

// submitMitigationHandler handles POST /risk-instances/{instanceID}/mitigation.
func submitMitigationHandler(engine *Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		instanceID, err := urlID(r, "instanceID")
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		var body struct {
			UserID      int64   `json:"userId" validate:"required,gt=0"`
			Mitigations StepMap `json:"mitigations" validate:"required"`
			FormDetails JSONAny `json:"formDetails"`
		}
		if err := decodeValid(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		record, err := engine.SubmitMitigation(tenantOf(r), instanceID, body.UserID, body.Mitigations, body.FormDetails)
		if err != nil {
			writeFault(w, err)
			return
		}
		writeJSON(w, http.StatusOK, recordToAPI(record))
	}
}

// updateMitigationStatusHandler handles PUT /risk-instances/{instanceID}/mitigation.
func updateMitigationStatusHandler(engine *Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		instanceID, err := urlID(r, "instanceID")
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		var body struct {
			Status MitigationStatus `json:"status" validate:"required"`
		}
		if err := decodeValid(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		if err := engine.UpdateMitigationStatus(tenantOf(r), instanceID, body.Status); err != nil {
			writeFault(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": string(body.Status)})
	}
}

// completeRiskReviewHandler handles POST /risk-instances/{instanceID}/review.
func completeRiskReviewHandler(engine *Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		instanceID, err := urlID(r, "instanceID")
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		var body struct {
			ReviewerID  int64   `json:"reviewerId" validate:"required,gt=0"`
			Approved    *bool   `json:"approved" validate:"required"`
			Mitigations StepMap `json:"mitigations" validate:"required"`
			FormDetails JSONAny `json:"formDetails"`
		}
		if err := decodeValid(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		record, err := engine.CompleteReview(tenantOf(r), instanceID, body.ReviewerID, body.Mitigations, body.FormDetails, *body.Approved)
		if err != nil {
			writeFault(w, err)
			return
		}
		writeJSON(w, http.StatusOK, recordToAPI(record))
	}
}
