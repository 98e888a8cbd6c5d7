package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/gessa-sistemas/boletosgo/internal/middleware"
	"github.com/gessa-sistemas/boletosgo/internal/services/audit"
)

// ContractorRequest creates a contractor with an optional manual code.
type ContractorRequest struct {
	Name string `json:"name"`
	Code string `json:"code,omitempty"`
}

func (r *Router) createContractor(w http.ResponseWriter, req *http.Request) {
	var body ContractorRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	c, err := r.contractors.Create(body.Name, body.Code)
	if err != nil {
		respondAppError(w, err)
		return
	}

	r.audit.Record(middleware.UserID(req.Context()), audit.ActionCreate, "contractors",
		"contractors", c.Code, map[string]interface{}{"name": c.Name}, clientIP(req))

	respondJSON(w, http.StatusCreated, c)
}

func (r *Router) listContractors(w http.ResponseWriter, req *http.Request) {
	contractors, err := r.contractors.List()
	if err != nil {
		respondAppError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, contractors)
}

func (r *Router) getContractor(w http.ResponseWriter, req *http.Request) {
	code := mux.Vars(req)["code"]
	c, err := r.contractors.GetByCode(code)
	if err != nil {
		respondAppError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, c)
}

// UpdateCodeRequest changes a contractor's short code.
type UpdateCodeRequest struct {
	Name    string `json:"name"`
	NewCode string `json:"newCode"`
}

func (r *Router) updateContractorCode(w http.ResponseWriter, req *http.Request) {
	var body UpdateCodeRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	if err := r.contractors.UpdateCode(body.Name, body.NewCode); err != nil {
		respondAppError(w, err)
		return
	}

	r.audit.Record(middleware.UserID(req.Context()), audit.ActionUpdate, "contractors",
		"contractors", body.NewCode, map[string]interface{}{"name": body.Name}, clientIP(req))

	respondJSON(w, http.StatusOK, map[string]string{"name": body.Name, "code": body.NewCode})
}

func (r *Router) listDiningSites(w http.ResponseWriter, req *http.Request) {
	sites, err := r.contractors.ListSites(req.URL.Query().Get("contractor"))
	if err != nil {
		respondAppError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, sites)
}

func (r *Router) deactivateDiningSite(w http.ResponseWriter, req *http.Request) {
	id, err := strconv.ParseUint(mux.Vars(req)["id"], 10, 32)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid site id")
		return
	}

	if err := r.contractors.DeactivateSite(uint(id)); err != nil {
		respondAppError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "deactivated"})
}

// PriceTierRequest creates a named unit price.
type PriceTierRequest struct {
	Name      string  `json:"name"`
	UnitPrice float64 `json:"unitPrice"`
}

func (r *Router) createPriceTier(w http.ResponseWriter, req *http.Request) {
	var body PriceTierRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	tier, err := r.contractors.CreatePriceTier(body.Name, body.UnitPrice)
	if err != nil {
		respondAppError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, tier)
}

func (r *Router) listPriceTiers(w http.ResponseWriter, req *http.Request) {
	tiers, err := r.contractors.ListPriceTiers()
	if err != nil {
		respondAppError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, tiers)
}

func (r *Router) deactivatePriceTier(w http.ResponseWriter, req *http.Request) {
	id, err := strconv.ParseUint(mux.Vars(req)["id"], 10, 32)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid tier id")
		return
	}

	if err := r.contractors.DeactivatePriceTier(uint(id)); err != nil {
		respondAppError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "deactivated"})
}
