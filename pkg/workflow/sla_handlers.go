package workflow

import (
	"fmt"
	"net/http"
)

// createSLAHandler handles POST /slas.
func createSLAHandler(entities *EntityStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			VendorID           int64   `json:"vendorId" validate:"required,gt=0"`
			ContractID         int64   `json:"contractId"`
			SLAName            string  `json:"slaName" validate:"required"`
			SLAType            string  `json:"slaType"`
			EffectiveDate      string  `json:"effectiveDate"`
			ExpiryDate         string  `json:"expiryDate"`
			Priority           string  `json:"priority"`
			ReportingFrequency string  `json:"reportingFrequency"`
			Thresholds         JSONAny `json:"thresholds"`
			DataInventory      JSONAny `json:"dataInventory"`
		}
		if err := decodeValid(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		effective, err := parseDate(body.EffectiveDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		expiry, err := parseDate(body.ExpiryDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		sla := &VendorSLARecord{
			TenantID:           tenantOf(r),
			VendorID:           body.VendorID,
			ContractID:         body.ContractID,
			SLAName:            body.SLAName,
			SLAType:            body.SLAType,
			EffectiveDate:      effective,
			ExpiryDate:         expiry,
			Status:             SLAPending,
			Priority:           body.Priority,
			ReportingFrequency: body.ReportingFrequency,
			Thresholds:         body.Thresholds,
			DataInventory:      body.DataInventory,
		}
		if err := entities.CreateSLA(sla); err != nil {
			writeFault(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, sla)
	}
}

// getSLAHandler handles GET /slas/{slaID}.
func getSLAHandler(entities *EntityStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		slaID, err := urlID(r, "slaID")
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		sla, err := entities.GetSLA(tenantOf(r), slaID)
		if err != nil {
			writeFault(w, err)
			return
		}
		if sla == nil {
			writeError(w, http.StatusNotFound, fmt.Sprintf("sla %d not found", slaID))
			return
		}
		writeJSON(w, http.StatusOK, sla)
	}
}

// createSLAMetricHandler handles POST /slas/{slaID}/metrics.
func createSLAMetricHandler(entities *EntityStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		slaID, err := urlID(r, "slaID")
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		var body struct {
			MetricName  string  `json:"metricName" validate:"required"`
			Threshold   float64 `json:"threshold"`
			Unit        string  `json:"unit"`
			Frequency   string  `json:"frequency"`
			Penalty     string  `json:"penalty"`
			Methodology string  `json:"methodology"`
		}
		if err := decodeValid(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		tenant := tenantOf(r)
		sla, err := entities.GetSLA(tenant, slaID)
		if err != nil {
			writeFault(w, err)
			return
		}
		if sla == nil {
			writeError(w, http.StatusNotFound, fmt.Sprintf("sla %d not found", slaID))
			return
		}

		m := &SLAMetricRecord{
			TenantID:    tenant,
			SLAID:       slaID,
			MetricName:  body.MetricName,
			Threshold:   body.Threshold,
			Unit:        body.Unit,
			Frequency:   body.Frequency,
			Penalty:     body.Penalty,
			Methodology: body.Methodology,
		}
		if err := entities.CreateSLAMetric(m); err != nil {
			writeFault(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, m)
	}
}

// listSLAMetricsHandler handles GET /slas/{slaID}/metrics.
func listSLAMetricsHandler(entities *EntityStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		slaID, err := urlID(r, "slaID")
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		metrics, err := entities.MetricsForSLA(entities.DB(), tenantOf(r), slaID)
		if err != nil {
			writeFault(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"metrics":   metrics,
			"totalSize": len(metrics),
		})
	}
}

// createSLAApprovalHandler handles POST /slas/{slaID}/approvals.
func createSLAApprovalHandler(engine *Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		slaID, err := urlID(r, "slaID")
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

		record, err := engine.CreateSLAApproval(tenantOf(r), slaID, body.AuthorID, body.ReviewerID)
		if err != nil {
			writeFault(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, recordToAPI(record))
	}
}

// submitSLAReviewHandler handles POST /slas/{slaID}/review.
func submitSLAReviewHandler(engine *Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		slaID, err := urlID(r, "slaID")
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		var body struct {
			ReviewerID int64  `json:"reviewerId" validate:"required,gt=0"`
			Approved   *bool  `json:"approved" validate:"required"`
			Remarks    string `json:"remarks"`
		}
		if err := decodeValid(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		record, err := engine.SubmitSLAReview(tenantOf(r), slaID, body.ReviewerID, *body.Approved, body.Remarks)
		if err != nil {
			writeFault(w, err)
			return
		}
		writeJSON(w, http.StatusOK, recordToAPI(record))
	}
}

// sweepHandler handles POST /sweep, triggering an immediate effective-date
// sweep. The sweep is idempotent.
func sweepHandler(engine *Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := engine.SweepEffectiveDates()
		if err != nil {
			writeFault(w, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}
