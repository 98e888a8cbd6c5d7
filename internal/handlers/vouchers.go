package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/gessa-sistemas/boletosgo/internal/middleware"
	"github.com/gessa-sistemas/boletosgo/internal/services/audit"
	"github.com/gessa-sistemas/boletosgo/internal/services/evidence"
)

// ValidateRequest carries the scanned voucher id.
type ValidateRequest struct {
	VoucherID string `json:"voucherId"`
}

// validateVoucher runs the redemption decision without consuming the voucher.
func (r *Router) validateVoucher(w http.ResponseWriter, req *http.Request) {
	var body ValidateRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	if body.VoucherID == "" {
		respondError(w, http.StatusBadRequest, "voucherId is required")
		return
	}

	result, err := r.redemption.Validate(body.VoucherID)
	if err != nil {
		respondAppError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// redeemVoucher consumes a voucher. Multipart form: voucherId, location and
// an optional photo captured at the register. Photo persistence is best
// effort; a failed upload never blocks the redemption itself.
func (r *Router) redeemVoucher(w http.ResponseWriter, req *http.Request) {
	if err := req.ParseMultipartForm(4 << 20); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid multipart payload")
		return
	}

	voucherID := req.FormValue("voucherId")
	if voucherID == "" {
		respondError(w, http.StatusBadRequest, "voucherId is required")
		return
	}
	location := req.FormValue("location")

	photoPath := r.saveScanPhoto(req)

	outcome, err := r.redemption.Redeem(req.Context(), voucherID, location, photoPath)
	if err != nil {
		respondAppError(w, err)
		return
	}

	if outcome.Success {
		r.audit.Record(middleware.UserID(req.Context()), audit.ActionRedeem, "vouchers",
			"vouchers", voucherID,
			map[string]interface{}{"location": location, "photoCaptured": outcome.PhotoCaptured},
			clientIP(req))
	}

	respondJSON(w, http.StatusOK, outcome)
}

// saveScanPhoto stores the scan photo when present, returning its path or
// empty when absent or when storage failed.
func (r *Router) saveScanPhoto(req *http.Request) string {
	file, header, err := req.FormFile("photo")
	if err != nil {
		return ""
	}
	defer file.Close()

	path, err := r.evidence.Save(req.Context(), evidence.KindScanPhoto,
		header.Filename, header.Header.Get("Content-Type"), file, header.Size)
	if err != nil {
		log.Printf("⚠️ Scan photo not stored: %v", err)
		return ""
	}
	return path
}

// voucherRejections lists rejected scans of one voucher.
func (r *Router) voucherRejections(w http.ResponseWriter, req *http.Request) {
	id := mux.Vars(req)["id"]
	events, err := r.redemption.Rejections(id)
	if err != nil {
		respondAppError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, events)
}

// voucherPhotos lists scan events of one voucher that carry a photo.
func (r *Router) voucherPhotos(w http.ResponseWriter, req *http.Request) {
	id := mux.Vars(req)["id"]
	events, err := r.redemption.VoucherPhotos(id)
	if err != nil {
		respondAppError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, events)
}

// recentScans returns the latest scan activity across all batches.
func (r *Router) recentScans(w http.ResponseWriter, req *http.Request) {
	limit := 50
	if raw := req.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}

	events, err := r.redemption.RecentScans(limit)
	if err != nil {
		respondAppError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, events)
}
