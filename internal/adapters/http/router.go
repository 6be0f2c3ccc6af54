// Package httpadapter exposes the conversation and retrieval services over
// a JSON HTTP API.
package httpadapter

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/fandbgo/travel-concierge/internal/core/domain"
	"github.com/fandbgo/travel-concierge/internal/core/ports"
	"github.com/fandbgo/travel-concierge/internal/observability/metrics"
)

type Router struct {
	service string
	query   ports.QueryService
	conv    ports.ConversationService
	metrics *metrics.HTTPServerMetrics
}

func NewRouter(service string, query ports.QueryService, conv ports.ConversationService, m *metrics.HTTPServerMetrics) *Router {
	return &Router{
		service: service,
		query:   query,
		conv:    conv,
		metrics: m,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/v1/chat", rt.chat)
	mux.HandleFunc("/v1/query", rt.runQuery)
	mux.HandleFunc("/v1/query/refine", rt.refine)
	mux.HandleFunc("/v1/sessions/stats", rt.sessionStats)
	mux.HandleFunc("/v1/sessions/", rt.sessionByID)
	mux.HandleFunc("/v1/establishments", rt.addEstablishment)
	mux.HandleFunc("/v1/establishments/stats", rt.indexStats)
	mux.HandleFunc("/v1/establishments/", rt.establishmentByID)
	if rt.metrics != nil {
		mux.Handle("/metrics", rt.metrics.Handler())
	}

	var handler http.Handler = mux
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(rt.service, handler)
	}
	return withRequestID(withAccessLog(handler))
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type chatRequest struct {
	Message     string                 `json:"message"`
	SessionID   string                 `json:"session_id"`
	UserProfile *domain.UserProfile    `json:"user_profile,omitempty"`
	Context     *domain.RequestContext `json:"context,omitempty"`
}

func (rt *Router) chat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "message is required"})
		return
	}
	if req.SessionID == "" {
		req.SessionID = uuid.NewString()
	}

	start := time.Now()
	resp := rt.conv.ProcessMessage(r.Context(), req.Message, req.SessionID, req.UserProfile, req.Context)
	rt.observeQuery(resp, time.Since(start))
	if rt.metrics != nil {
		if state, ok := resp.Metadata["conversation_state"].(string); ok {
			rt.metrics.RecordChatTurn(rt.service, state)
		}
		rt.metrics.SetActiveSessions(rt.conv.SessionStats().ActiveSessions)
	}

	writeJSON(w, http.StatusOK, resp)
}

type queryRequest struct {
	Query    string                 `json:"query"`
	Strategy string                 `json:"strategy,omitempty"`
	Context  *domain.RequestContext `json:"context,omitempty"`
}

func (rt *Router) runQuery(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "query is required"})
		return
	}

	start := time.Now()
	resp := rt.query.ProcessQuery(r.Context(), req.Query, req.Context, domain.Strategy(req.Strategy))
	rt.observeQuery(resp, time.Since(start))

	writeJSON(w, http.StatusOK, resp)
}

type refineRequest struct {
	Query    string                 `json:"query"`
	Feedback domain.RefineFeedback  `json:"feedback"`
	Context  *domain.RequestContext `json:"context,omitempty"`
}

func (rt *Router) refine(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req refineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "query is required"})
		return
	}

	start := time.Now()
	resp := rt.query.RefineSearch(r.Context(), req.Query, req.Feedback, req.Context)
	rt.observeQuery(resp, time.Since(start))

	writeJSON(w, http.StatusOK, resp)
}

func (rt *Router) observeQuery(resp domain.AgentResponse, elapsed time.Duration) {
	if rt.metrics == nil {
		return
	}
	rt.metrics.RecordQuery(
		rt.service,
		string(resp.Intent),
		string(resp.StrategyUsed),
		resp.Success,
		len(resp.Results),
		resp.Confidence,
		elapsed,
	)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
