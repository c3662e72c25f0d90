package evidence

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/complyard/grc-engine/pkg/tenancy"
	"github.com/complyard/grc-engine/pkg/workflow"
)

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// presignUploadHandler handles POST /evidence/presign.
func presignUploadHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			InstanceID int64  `json:"instanceId"`
			FileName   string `json:"fileName"`
			Size       int64  `json:"size"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if body.InstanceID <= 0 {
			writeError(w, http.StatusBadRequest, "instanceId must be positive")
			return
		}

		tenant := tenancy.TenantIDFromContext(r.Context())
		grant, err := svc.GrantUpload(r.Context(), tenant, body.InstanceID, body.FileName, body.Size)
		if err != nil {
			if !svc.Enabled() {
				writeError(w, http.StatusServiceUnavailable, err.Error())
				return
			}
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, grant)
	}
}

// downloadURLHandler handles POST /evidence/download-url.
func downloadURLHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var fd workflow.FileDescriptor
		if err := json.NewDecoder(r.Body).Decode(&fd); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		url, err := svc.DownloadURL(r.Context(), fd)
		if err != nil {
			if !svc.Enabled() {
				writeError(w, http.StatusServiceUnavailable, err.Error())
				return
			}
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"downloadUrl": url})
	}
}

// Router creates a chi.Router for the evidence API.
func Router(svc *Service) chi.Router {
	r := chi.NewRouter()
	r.Post("/presign", presignUploadHandler(svc))
	r.Post("/download-url", downloadURLHandler(svc))
	return r
}
