package httpadapter

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/fandbgo/travel-concierge/internal/core/domain"
)

func (rt *Router) sessionStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	writeJSON(w, http.StatusOK, rt.conv.SessionStats())
}

func (rt *Router) sessionByID(w http.ResponseWriter, r *http.Request) {
	sessionID := strings.TrimPrefix(r.URL.Path, "/v1/sessions/")
	if id, found := strings.CutSuffix(sessionID, "/profile"); found {
		if r.Method != http.MethodPatch {
			writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
			return
		}
		sessionID = id
	}
	if sessionID == "" || strings.Contains(sessionID, "/") {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		return
	}

	switch r.Method {
	case http.MethodGet:
		state, ok := rt.conv.ConversationState(sessionID)
		if !ok {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "session not found"})
			return
		}
		writeJSON(w, http.StatusOK, state)
	case http.MethodPatch:
		rt.patchSession(w, r, sessionID)
	case http.MethodDelete:
		if !rt.conv.EndConversation(sessionID) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "session not found"})
			return
		}
		if rt.metrics != nil {
			rt.metrics.SetActiveSessions(rt.conv.SessionStats().ActiveSessions)
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ended"})
	default:
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
	}
}

func (rt *Router) patchSession(w http.ResponseWriter, r *http.Request, sessionID string) {
	var updates domain.ProfileUpdate
	if err := json.NewDecoder(r.Body).Decode(&updates); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if !rt.conv.UpdateUserProfile(sessionID, updates) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "session not found"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}
