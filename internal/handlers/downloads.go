package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/gessa-sistemas/boletosgo/internal/middleware"
	"github.com/gessa-sistemas/boletosgo/internal/services/audit"
)

// downloadEligibility reports whether the batch artifact may be fetched,
// without consuming an attempt.
func (r *Router) downloadEligibility(w http.ResponseWriter, req *http.Request) {
	token := mux.Vars(req)["token"]
	eligibility, err := r.downloads.CheckEligibility(token)
	if err != nil {
		respondAppError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, eligibility)
}

// DownloadRequest carries the justification for consuming an attempt.
type DownloadRequest struct {
	Justification string `json:"justification"`
}

// recordDownload consumes one download attempt and returns the artifact URL
// with the remaining count. Over-ceiling attempts answer 429.
func (r *Router) recordDownload(w http.ResponseWriter, req *http.Request) {
	token := mux.Vars(req)["token"]

	var body DownloadRequest
	if req.Body != nil {
		_ = json.NewDecoder(req.Body).Decode(&body)
	}

	user := middleware.Username(req.Context())
	remaining, err := r.downloads.RecordDownload(token, user, body.Justification, clientIP(req))
	if err != nil {
		respondAppError(w, err)
		return
	}

	batch, err := r.issuance.GetBatch(token)
	if err != nil {
		respondAppError(w, err)
		return
	}

	r.audit.Record(middleware.UserID(req.Context()), audit.ActionDownload, "vouchers",
		"voucher_batches", token,
		map[string]interface{}{"remaining": remaining, "justification": body.Justification},
		clientIP(req))

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"batchToken":  token,
		"artifactUrl": batch.ArtifactURL,
		"remaining":   remaining,
	})
}

// downloadHistory lists the download records of a batch.
func (r *Router) downloadHistory(w http.ResponseWriter, req *http.Request) {
	token := mux.Vars(req)["token"]
	records, err := r.downloads.History(token)
	if err != nil {
		respondAppError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, records)
}
