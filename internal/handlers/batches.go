package handlers

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/gessa-sistemas/boletosgo/internal/middleware"
	"github.com/gessa-sistemas/boletosgo/internal/services/audit"
	"github.com/gessa-sistemas/boletosgo/internal/services/issuance"
	"github.com/gessa-sistemas/boletosgo/internal/services/renderer"
)

// CreateBatchRequest is the issue-a-batch payload.
type CreateBatchRequest struct {
	ContractorName string   `json:"contractorName"`
	Quantity       int      `json:"quantity"`
	ExpiresAt      string   `json:"expiresAt"`
	Amount         *float64 `json:"amount,omitempty"`
	DiningSiteID   *uint    `json:"diningSiteId,omitempty"`
	DiningSiteName string   `json:"diningSiteName,omitempty"`
	PaymentType    string   `json:"paymentType,omitempty"`
	PriceTierID    *uint    `json:"priceTierId,omitempty"`
}

// createBatch issues the vouchers, then renders and attaches the printable
// PDF. A rendering failure leaves the batch intact with no artifact; it can
// be re-rendered later because output depends only on the voucher list.
func (r *Router) createBatch(w http.ResponseWriter, req *http.Request) {
	var body CreateBatchRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	expiresAt, err := time.Parse("2006-01-02", body.ExpiresAt)
	if err != nil {
		respondError(w, http.StatusBadRequest, "expiresAt must be YYYY-MM-DD")
		return
	}

	in := issuance.CreateBatchInput{
		ContractorName:    body.ContractorName,
		Quantity:          body.Quantity,
		ExpiresAt:         expiresAt,
		Amount:            body.Amount,
		DiningSiteID:      body.DiningSiteID,
		NewDiningSiteName: body.DiningSiteName,
		PaymentType:       body.PaymentType,
		PriceTierID:       body.PriceTierID,
	}
	if id := middleware.UserID(req.Context()); id != "" {
		in.CreatedBy = &id
	}

	result, err := r.issuance.CreateBatch(req.Context(), in)
	if err != nil {
		respondAppError(w, err)
		return
	}

	artifactURL := r.renderArtifact(result)

	r.audit.Record(middleware.UserID(req.Context()), audit.ActionCreate, "vouchers",
		"voucher_batches", result.Batch.BatchToken,
		map[string]interface{}{"quantity": result.Batch.Quantity, "contractor": result.Batch.ContractorName},
		clientIP(req))

	respondJSON(w, http.StatusCreated, map[string]interface{}{
		"batch":       result.Batch,
		"artifactUrl": artifactURL,
	})
}

// renderArtifact generates the PDF for a freshly created batch and stores it.
// Best effort: failures are logged and the batch keeps a nil artifact.
func (r *Router) renderArtifact(result *issuance.BatchResult) *string {
	cards := make([]renderer.VoucherCard, 0, len(result.Vouchers))
	for _, v := range result.Vouchers {
		cards = append(cards, renderer.VoucherCard{
			ID:             v.ID,
			ContractorName: v.ContractorName,
			ContractorCode: v.ContractorCode,
			BatchToken:     v.BatchToken,
			ExpiresAt:      v.ExpiresAt,
			Ordinal:        v.Ordinal,
			Total:          v.Total,
			DiningSite:     v.DiningSite,
		})
	}

	pdfBytes, err := renderer.GenerateVoucherPDF(cards)
	if err != nil {
		log.Printf("⚠️ PDF rendering failed for %s: %v", result.Batch.BatchToken, err)
		return nil
	}

	filename := fmt.Sprintf("%s.pdf", result.Batch.BatchToken)
	path, url, err := renderer.SavePDF(r.cfg.Storage.ArtifactDir, filename, pdfBytes)
	if err != nil {
		log.Printf("⚠️ PDF save failed for %s: %v", result.Batch.BatchToken, err)
		return nil
	}

	if err := r.issuance.AttachArtifact(result.Batch.BatchToken, path, url); err != nil {
		log.Printf("⚠️ Attaching artifact failed for %s: %v", result.Batch.BatchToken, err)
		return nil
	}
	return &url
}

// listBatches returns batch summaries, optionally filtered by contractor.
// Contractor-scoped users only ever see their own company's batches.
func (r *Router) listBatches(w http.ResponseWriter, req *http.Request) {
	filter := issuance.ListFilter{
		ContractorName: req.URL.Query().Get("contractor"),
	}
	if claims := middleware.ClaimsFrom(req.Context()); claims != nil {
		if scoped, ok := claims["contractor"].(string); ok && scoped != "" {
			filter.ContractorName = scoped
		}
	}

	batches, err := r.issuance.ListBatches(filter)
	if err != nil {
		respondAppError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, batches)
}

// getBatch returns the batch detail with per-voucher status.
func (r *Router) getBatch(w http.ResponseWriter, req *http.Request) {
	token := mux.Vars(req)["token"]
	detail, err := r.issuance.Detail(token)
	if err != nil {
		respondAppError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, detail)
}

// paymentStatus returns the payment slice of a batch.
func (r *Router) paymentStatus(w http.ResponseWriter, req *http.Request) {
	token := mux.Vars(req)["token"]
	batch, err := r.issuance.GetBatch(token)
	if err != nil {
		respondAppError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"batchToken":        batch.BatchToken,
		"paymentState":      batch.PaymentState,
		"paymentType":       batch.PaymentType,
		"authorizationCode": batch.AuthorizationCode,
		"authorizedBy":      batch.AuthorizedBy,
		"paymentDate":       batch.PaymentDate,
		"evidencePath":      batch.PaymentEvidencePath,
		"notes":             batch.Notes,
	})
}

// batchScans returns the scan history of a batch, newest first.
func (r *Router) batchScans(w http.ResponseWriter, req *http.Request) {
	token := mux.Vars(req)["token"]
	scans, err := r.redemption.BatchScans(token)
	if err != nil {
		respondAppError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, scans)
}

// lastActivity returns the most recent scan timestamp of a batch.
func (r *Router) lastActivity(w http.ResponseWriter, req *http.Request) {
	token := mux.Vars(req)["token"]
	ts, err := r.redemption.LastActivity(token)
	if err != nil {
		respondAppError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"batchToken":   token,
		"lastActivity": ts,
	})
}

// contractorStats returns per-contractor usage aggregates.
func (r *Router) contractorStats(w http.ResponseWriter, req *http.Request) {
	stats, err := r.issuance.Stats(issuance.ListFilter{
		ContractorName: req.URL.Query().Get("contractor"),
	})
	if err != nil {
		respondAppError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, stats)
}
