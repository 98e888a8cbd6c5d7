package handlers

import (
	"encoding/json"
	"net"
	"net/http"

	"github.com/gorilla/mux"
	"gorm.io/gorm"

	"github.com/gessa-sistemas/boletosgo/internal/apperrors"
	"github.com/gessa-sistemas/boletosgo/internal/config"
	"github.com/gessa-sistemas/boletosgo/internal/middleware"
	"github.com/gessa-sistemas/boletosgo/internal/services/audit"
	"github.com/gessa-sistemas/boletosgo/internal/services/authorization"
	"github.com/gessa-sistemas/boletosgo/internal/services/contractor"
	"github.com/gessa-sistemas/boletosgo/internal/services/download"
	"github.com/gessa-sistemas/boletosgo/internal/services/evidence"
	"github.com/gessa-sistemas/boletosgo/internal/services/issuance"
	"github.com/gessa-sistemas/boletosgo/internal/services/redemption"
	ws "github.com/gessa-sistemas/boletosgo/internal/websocket"
)

// Router wraps the mux router with the service layer behind every route
type Router struct {
	*mux.Router
	db  *gorm.DB
	cfg *config.Config

	contractors    *contractor.Service
	issuance       *issuance.Service
	redemption     *redemption.Service
	authorizations *authorization.Service
	downloads      *download.Service
	audit          *audit.Service
	evidence       evidence.Store
}

// NewRouter creates a new HTTP router with all routes
func NewRouter(db *gorm.DB, cfg *config.Config, hub *ws.Hub, store evidence.Store) *Router {
	contractors := contractor.NewService(db)

	r := &Router{
		Router:         mux.NewRouter(),
		db:             db,
		cfg:            cfg,
		contractors:    contractors,
		issuance:       issuance.NewService(db, contractors, cfg.DownloadLimit),
		redemption:     redemption.NewService(db, hub),
		authorizations: authorization.NewService(db),
		downloads:      download.NewService(db),
		audit:          audit.NewService(db),
		evidence:       store,
	}

	// Health check endpoint
	r.HandleFunc("/health", r.healthCheck).Methods("GET")

	// Auth routes
	auth := r.PathPrefix("/auth").Subrouter()
	auth.HandleFunc("/login", r.login).Methods("POST")
	auth.HandleFunc("/register", r.register).Methods("POST")

	// Live scan feed for validator dashboards
	r.HandleFunc("/ws", func(w http.ResponseWriter, req *http.Request) {
		ws.ServeWs(hub, w, req)
	})

	authed := r.PathPrefix("/api").Subrouter()
	authed.Use(middleware.Auth(cfg.JWTSecret))

	// Batch routes
	authed.Handle("/batches", r.perm("vouchers.create", r.createBatch)).Methods("POST")
	authed.Handle("/batches", r.perm("vouchers.read", r.listBatches)).Methods("GET")
	authed.Handle("/batches/{token}", r.perm("vouchers.read", r.getBatch)).Methods("GET")
	authed.Handle("/batches/{token}/payment", r.perm("vouchers.read", r.paymentStatus)).Methods("GET")
	authed.Handle("/batches/{token}/scans", r.perm("vouchers.read", r.batchScans)).Methods("GET")
	authed.Handle("/batches/{token}/last-activity", r.perm("vouchers.read", r.lastActivity)).Methods("GET")

	// Payment authorization
	authed.Handle("/batches/{token}/authorize", r.perm("vouchers.authorize", r.authorizeBatch)).Methods("POST")
	authed.Handle("/batches/{token}/authorization-requests", r.perm("vouchers.request", r.createAuthRequest)).Methods("POST")
	authed.Handle("/batches/{token}/authorization-requests", r.perm("vouchers.read", r.batchAuthRequests)).Methods("GET")
	authed.Handle("/batches/{token}/authorization-status", r.perm("vouchers.read", r.authStatus)).Methods("GET")
	authed.Handle("/authorization-requests", r.perm("vouchers.authorize", r.listAuthRequests)).Methods("GET")
	authed.Handle("/authorization-requests/{id}/approve", r.perm("vouchers.authorize", r.approveAuthRequest)).Methods("POST")
	authed.Handle("/authorization-requests/{id}/reject", r.perm("vouchers.authorize", r.rejectAuthRequest)).Methods("POST")

	// Throttled artifact downloads
	authed.Handle("/batches/{token}/download-eligibility", r.perm("vouchers.download", r.downloadEligibility)).Methods("GET")
	authed.Handle("/batches/{token}/downloads", r.perm("vouchers.download", r.recordDownload)).Methods("POST")
	authed.Handle("/batches/{token}/downloads", r.perm("vouchers.read", r.downloadHistory)).Methods("GET")

	// Redemption
	authed.Handle("/vouchers/validate", r.perm("vouchers.scan", r.validateVoucher)).Methods("POST")
	authed.Handle("/vouchers/redeem", r.perm("vouchers.scan", r.redeemVoucher)).Methods("POST")
	authed.Handle("/vouchers/{id}/rejections", r.perm("vouchers.read", r.voucherRejections)).Methods("GET")
	authed.Handle("/vouchers/{id}/photos", r.perm("vouchers.read", r.voucherPhotos)).Methods("GET")
	authed.Handle("/scans/recent", r.perm("vouchers.read", r.recentScans)).Methods("GET")

	// Contractors, dining sites, price tiers
	authed.Handle("/contractors", r.perm("contractors.manage", r.createContractor)).Methods("POST")
	authed.Handle("/contractors", r.perm("vouchers.read", r.listContractors)).Methods("GET")
	authed.Handle("/contractors/{code}", r.perm("vouchers.read", r.getContractor)).Methods("GET")
	authed.Handle("/contractors/{code}/code", r.perm("contractors.manage", r.updateContractorCode)).Methods("PUT")
	authed.Handle("/dining-sites", r.perm("vouchers.read", r.listDiningSites)).Methods("GET")
	authed.Handle("/dining-sites/{id}", r.perm("contractors.manage", r.deactivateDiningSite)).Methods("DELETE")
	authed.Handle("/price-tiers", r.perm("contractors.manage", r.createPriceTier)).Methods("POST")
	authed.Handle("/price-tiers", r.perm("vouchers.read", r.listPriceTiers)).Methods("GET")
	authed.Handle("/price-tiers/{id}", r.perm("contractors.manage", r.deactivatePriceTier)).Methods("DELETE")
	authed.Handle("/stats", r.perm("vouchers.read", r.contractorStats)).Methods("GET")

	// Audit ledger
	authed.Handle("/audit", r.perm("audit.read", r.auditHistory)).Methods("GET")
	authed.Handle("/audit/{table}/{id}", r.perm("audit.read", r.auditRecordHistory)).Methods("GET")

	// Rendered PDFs when the disk backend is active
	r.PathPrefix("/pdfs/").Handler(
		http.StripPrefix("/pdfs/", http.FileServer(http.Dir(cfg.Storage.ArtifactDir))))

	return r
}

// perm wraps a handler func with a permission check.
func (r *Router) perm(p string, h http.HandlerFunc) http.Handler {
	return middleware.RequirePermission(p)(h)
}

// healthCheck returns the health status of the API
func (r *Router) healthCheck(w http.ResponseWriter, req *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"service": "boletos-api",
	})
}

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondError sends an error response
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}

// respondAppError maps service errors to HTTP statuses.
func respondAppError(w http.ResponseWriter, err error) {
	switch {
	case apperrors.IsValidation(err):
		respondError(w, http.StatusBadRequest, err.Error())
	case apperrors.IsNotFound(err):
		respondError(w, http.StatusNotFound, err.Error())
	case apperrors.IsConflict(err):
		respondError(w, http.StatusConflict, err.Error())
	case apperrors.IsLimitExceeded(err):
		respondError(w, http.StatusTooManyRequests, err.Error())
	default:
		respondError(w, http.StatusInternalServerError, err.Error())
	}
}

// clientIP extracts the caller's address for audit entries.
func clientIP(req *http.Request) string {
	if fwd := req.Header.Get("X-Forwarded-For"); fwd != "" {
		return fwd
	}
	host, _, err := net.SplitHostPort(req.RemoteAddr)
	if err != nil {
		return req.RemoteAddr
	}
	return host
}
