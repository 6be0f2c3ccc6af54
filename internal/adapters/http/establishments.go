package httpadapter

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/fandbgo/travel-concierge/internal/core/domain"
)

func (rt *Router) addEstablishment(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var est domain.Establishment
	if err := json.NewDecoder(r.Body).Decode(&est); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	ok := rt.query.AddEstablishment(r.Context(), est)
	rt.recordCatalogOp("upsert", ok)
	if !ok {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": "establishment was not indexed"})
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"establishment_id": est.ID, "status": "indexed"})
}

func (rt *Router) indexStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	writeJSON(w, http.StatusOK, rt.query.Stats(r.Context()))
}

func (rt *Router) establishmentByID(w http.ResponseWriter, r *http.Request) {
	establishmentID := strings.TrimPrefix(r.URL.Path, "/v1/establishments/")
	if establishmentID == "" || strings.Contains(establishmentID, "/") {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		return
	}

	switch r.Method {
	case http.MethodGet:
		details, ok := rt.query.EstablishmentDetails(r.Context(), establishmentID)
		if !ok {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "establishment not found"})
			return
		}
		writeJSON(w, http.StatusOK, details)
	case http.MethodDelete:
		ok := rt.query.RemoveEstablishment(r.Context(), establishmentID)
		rt.recordCatalogOp("delete", ok)
		if !ok {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "establishment not found"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "removed"})
	default:
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
	}
}

func (rt *Router) recordCatalogOp(op string, ok bool) {
	if rt.metrics != nil {
		rt.metrics.RecordCatalogOp(rt.service, op, ok)
	}
}
