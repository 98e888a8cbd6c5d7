package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/gessa-sistemas/boletosgo/internal/middleware"
	"github.com/gessa-sistemas/boletosgo/internal/models"
	"github.com/gessa-sistemas/boletosgo/internal/services/audit"
	"github.com/gessa-sistemas/boletosgo/internal/services/authorization"
	"github.com/gessa-sistemas/boletosgo/internal/services/evidence"
)

// authorizeBatch moves a batch from PENDING to AUTHORIZED. Multipart form:
// authorizationCode, paymentDate (YYYY-MM-DD), notes and the payment
// evidence image. Cash batches are refused without the evidence.
func (r *Router) authorizeBatch(w http.ResponseWriter, req *http.Request) {
	token := mux.Vars(req)["token"]

	if err := req.ParseMultipartForm(6 << 20); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid multipart payload")
		return
	}

	paymentDate := time.Now()
	if raw := req.FormValue("paymentDate"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, "paymentDate must be YYYY-MM-DD")
			return
		}
		paymentDate = parsed
	}

	in := authorization.AuthorizeInput{
		BatchToken:        token,
		AuthorizationCode: req.FormValue("authorizationCode"),
		AuthorizedBy:      middleware.Username(req.Context()),
		PaymentDate:       paymentDate,
		EvidencePath:      r.savePaymentEvidence(req),
		Notes:             req.FormValue("notes"),
	}

	batch, err := r.authorizations.Authorize(in)
	if err != nil {
		respondAppError(w, err)
		return
	}

	r.audit.Record(middleware.UserID(req.Context()), audit.ActionAuthorize, "payments",
		"voucher_batches", token,
		map[string]interface{}{"code": in.AuthorizationCode, "paymentType": batch.PaymentType},
		clientIP(req))

	respondJSON(w, http.StatusOK, batch)
}

// savePaymentEvidence stores the uploaded receipt image. The form field is
// "evidence"; "comprobante" is accepted for older clients. Returns empty on
// absence or storage failure; the service decides whether that is fatal.
func (r *Router) savePaymentEvidence(req *http.Request) string {
	file, header, err := req.FormFile("evidence")
	if err != nil {
		file, header, err = req.FormFile("comprobante")
	}
	if err != nil {
		return ""
	}
	defer file.Close()

	path, err := r.evidence.Save(req.Context(), evidence.KindPayment,
		header.Filename, header.Header.Get("Content-Type"), file, header.Size)
	if err != nil {
		log.Printf("⚠️ Payment evidence not stored: %v", err)
		return ""
	}
	return path
}

// AuthRequestBody carries an authorization request or its resolution.
type AuthRequestBody struct {
	Justification string `json:"justification"`
	Notes         string `json:"notes"`
	Reason        string `json:"reason"`
}

// createAuthRequest opens a PENDING authorization request for a batch.
func (r *Router) createAuthRequest(w http.ResponseWriter, req *http.Request) {
	token := mux.Vars(req)["token"]

	var body AuthRequestBody
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	request, err := r.authorizations.Request(token, middleware.Username(req.Context()), body.Justification)
	if err != nil {
		respondAppError(w, err)
		return
	}

	r.audit.Record(middleware.UserID(req.Context()), audit.ActionCreate, "payments",
		"authorization_requests", strconv.FormatUint(uint64(request.ID), 10),
		map[string]interface{}{"batchToken": token}, clientIP(req))

	respondJSON(w, http.StatusCreated, request)
}

// listAuthRequests lists requests, optionally filtered by state.
func (r *Router) listAuthRequests(w http.ResponseWriter, req *http.Request) {
	requests, err := r.authorizations.ListRequests(req.URL.Query().Get("state"))
	if err != nil {
		respondAppError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, requests)
}

// approveAuthRequest resolves a request as APPROVED, which also authorizes
// the underlying batch.
func (r *Router) approveAuthRequest(w http.ResponseWriter, req *http.Request) {
	r.resolveAuthRequest(w, req, models.RequestApproved)
}

// rejectAuthRequest resolves a request as REJECTED; the batch stays PENDING.
func (r *Router) rejectAuthRequest(w http.ResponseWriter, req *http.Request) {
	r.resolveAuthRequest(w, req, models.RequestRejected)
}

func (r *Router) resolveAuthRequest(w http.ResponseWriter, req *http.Request, state string) {
	id, err := strconv.ParseUint(mux.Vars(req)["id"], 10, 32)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request id")
		return
	}

	var body AuthRequestBody
	if req.Body != nil {
		_ = json.NewDecoder(req.Body).Decode(&body)
	}

	actor := middleware.Username(req.Context())
	var request *models.AuthorizationRequest
	if state == models.RequestApproved {
		request, err = r.authorizations.Approve(uint(id), actor, body.Notes)
	} else {
		request, err = r.authorizations.Reject(uint(id), actor, body.Reason)
	}
	if err != nil {
		respondAppError(w, err)
		return
	}

	r.audit.Record(middleware.UserID(req.Context()), audit.ActionUpdate, "payments",
		"authorization_requests", strconv.FormatUint(id, 10),
		map[string]interface{}{"state": state}, clientIP(req))

	respondJSON(w, http.StatusOK, request)
}

// batchAuthRequests lists the request history of one batch.
func (r *Router) batchAuthRequests(w http.ResponseWriter, req *http.Request) {
	token := mux.Vars(req)["token"]
	requests, err := r.authorizations.History(token)
	if err != nil {
		respondAppError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, requests)
}

// authStatus reports whether a batch was authorized through the request
// workflow, and by which request.
func (r *Router) authStatus(w http.ResponseWriter, req *http.Request) {
	token := mux.Vars(req)["token"]
	approved, request, err := r.authorizations.Status(token)
	if err != nil {
		respondAppError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"batchToken": token,
		"approved":   approved,
		"request":    request,
	})
}
