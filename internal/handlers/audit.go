package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/gessa-sistemas/boletosgo/internal/services/audit"
)

// auditHistory queries the ledger. Filters: actor, action, table, from, to
// (RFC 3339), limit.
func (r *Router) auditHistory(w http.ResponseWriter, req *http.Request) {
	q := req.URL.Query()

	filter := audit.Filter{
		ActorID:     q.Get("actor"),
		Action:      q.Get("action"),
		TargetTable: q.Get("table"),
	}
	if raw := q.Get("from"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, "from must be RFC 3339")
			return
		}
		filter.From = t
	}
	if raw := q.Get("to"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, "to must be RFC 3339")
			return
		}
		filter.To = t
	}

	limit := 0
	if raw := q.Get("limit"); raw != "" {
		limit, _ = strconv.Atoi(raw)
	}

	entries, err := r.audit.History(filter, limit)
	if err != nil {
		respondAppError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, entries)
}

// auditRecordHistory returns the ledger slice of one record.
func (r *Router) auditRecordHistory(w http.ResponseWriter, req *http.Request) {
	vars := mux.Vars(req)
	entries, err := r.audit.RecordHistory(vars["table"], vars["id"])
	if err != nil {
		respondAppError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, entries)
}
