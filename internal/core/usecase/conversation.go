package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/fandbgo/travel-concierge/internal/core/domain"
	"github.com/fandbgo/travel-concierge/internal/core/ports"
)

const (
	DefaultSessionTimeout = time.Hour
	DefaultMaxHistory     = 10

	searchingThreshold  = 0.6
	searchingMaxResults = 8
	refiningThreshold   = 0.7
	refiningMaxResults  = 5
)

// ConversationOptions tunes the session lifecycle. Zero values fall back to
// the package defaults.
type ConversationOptions struct {
	SessionTimeout time.Duration
	MaxHistory     int
}

func (o ConversationOptions) withDefaults() ConversationOptions {
	if o.SessionTimeout <= 0 {
		o.SessionTimeout = DefaultSessionTimeout
	}
	if o.MaxHistory <= 0 {
		o.MaxHistory = DefaultMaxHistory
	}
	return o
}

// Conversation drives the per-session state machine on top of the retrieval
// agent. Each message is analyzed, the session advances through the state
// table, and the state picks retrieval strictness.
type Conversation struct {
	agent     ports.QueryService
	analyzer  *QueryAnalyzer
	sessions  ports.SessionStore
	completer ports.PromptCompleter
	handlers  map[domain.ConversationState]turnHandler
	opts      ConversationOptions
	log       *slog.Logger
}

// turnHandler produces the response for one turn once the state machine has
// settled on the target state. Only the retrieval states talk to the agent.
type turnHandler func(ctx context.Context, state domain.ConversationState, message string, analysis domain.QueryAnalysis, sess *domain.ConversationContext, reqCtx *domain.RequestContext) domain.AgentResponse

// NewConversation wires the orchestrator. completer may be nil; profile
// slot-filling then relies on keyword extraction alone.
func NewConversation(
	agent ports.QueryService,
	sessions ports.SessionStore,
	completer ports.PromptCompleter,
	opts ConversationOptions,
	log *slog.Logger,
) *Conversation {
	c := &Conversation{
		agent:     agent,
		analyzer:  NewQueryAnalyzer(),
		sessions:  sessions,
		completer: completer,
		opts:      opts.withDefaults(),
		log:       log,
	}
	c.handlers = map[domain.ConversationState]turnHandler{
		domain.StateCollectingPreferences: c.collectPreferences,
		domain.StateSearching:             c.retrieveTurn,
		domain.StateRefining:              c.retrieveTurn,
		domain.StateConfirming:            c.confirmBooking,
		domain.StateCompleted:             c.closeTurn,
	}
	return c
}

var _ ports.ConversationService = (*Conversation)(nil)

// ProcessMessage handles one turn: checkout the session, enrich the profile,
// advance the state machine, dispatch to the state's handler, record
// history. The per-session lock is held for the whole turn.
func (c *Conversation) ProcessMessage(ctx context.Context, message, sessionID string, profile *domain.UserProfile, reqCtx *domain.RequestContext) (resp domain.AgentResponse) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			c.log.Error("conversation turn panic", "panic", r, "session_id", sessionID)
			resp = failureResponse(fmt.Sprintf("Xin lỗi, đã có lỗi xảy ra khi xử lý tin nhắn: %v", r), time.Since(start))
		}
	}()

	if swept := c.sessions.SweepExpired(c.opts.SessionTimeout); len(swept) > 0 {
		c.log.Info("expired sessions swept", "count", len(swept))
	}

	sess, release := c.sessions.Checkout(sessionID, func() *domain.ConversationContext {
		p := profile
		if p == nil {
			p = domain.NewUserProfile()
		}
		return &domain.ConversationContext{
			SessionID:   sessionID,
			State:       domain.StateInitial,
			UserProfile: p,
		}
	})
	defer release()

	analysis := c.analyzer.Analyze(message, reqCtx)
	c.enrichProfile(sess.UserProfile, message, analysis)
	if c.completer != nil && (sess.State == domain.StateInitial || sess.State == domain.StateCollectingPreferences) {
		c.enrichWithCompleter(ctx, sess.UserProfile, message)
	}

	state := nextState(sess.State, analysis)
	handler, ok := c.handlers[state]
	if !ok {
		handler = c.retrieveTurn
	}
	resp = handler(ctx, state, message, analysis, sess, reqCtx)

	sess.State = state
	sess.CurrentQuery = message
	sess.LastActivity = time.Now()
	sess.AppendHistory(domain.HistoryEntry{
		Query:       message,
		Intent:      resp.Intent,
		Strategy:    resp.StrategyUsed,
		ResultCount: len(resp.Results),
		Confidence:  resp.Confidence,
		Timestamp:   sess.LastActivity,
	}, c.opts.MaxHistory)

	if resp.Metadata == nil {
		resp.Metadata = map[string]any{}
	}
	resp.Metadata["session_id"] = sessionID
	resp.Metadata["conversation_state"] = string(state)

	c.log.Info("message processed",
		"session_id", sessionID,
		"state", state,
		"intent", resp.Intent,
		"results", len(resp.Results),
	)
	return resp
}

// nextState is the pure transition function over (state, analysis).
func nextState(state domain.ConversationState, analysis domain.QueryAnalysis) domain.ConversationState {
	switch state {
	case domain.StateInitial, "":
		if analysis.Confidence > 0.6 {
			return domain.StateSearching
		}
		return domain.StateCollectingPreferences
	case domain.StateCollectingPreferences:
		if analysis.Confidence > 0.5 {
			return domain.StateSearching
		}
		return domain.StateCollectingPreferences
	case domain.StateSearching:
		switch analysis.Intent {
		case domain.IntentCompareEstablishments, domain.IntentGetDetails:
			return domain.StateRefining
		case domain.IntentBookingInquiry:
			return domain.StateConfirming
		}
		return domain.StateSearching
	case domain.StateRefining:
		if analysis.Intent == domain.IntentBookingInquiry {
			return domain.StateConfirming
		}
		return domain.StateRefining
	case domain.StateConfirming:
		return domain.StateCompleted
	case domain.StateCompleted:
		return domain.StateSearching
	}
	return domain.StateSearching
}

// retrieveTurn delegates to the single-turn agent with state-tuned
// retrieval strictness.
func (c *Conversation) retrieveTurn(ctx context.Context, state domain.ConversationState, message string, _ domain.QueryAnalysis, sess *domain.ConversationContext, reqCtx *domain.RequestContext) domain.AgentResponse {
	return c.agent.ProcessQuery(ctx, message, c.buildRequestContext(state, sess, reqCtx), "")
}

// collectPreferences asks for the profile slots still missing instead of
// searching on a query too vague to retrieve against.
func (c *Conversation) collectPreferences(_ context.Context, _ domain.ConversationState, _ string, analysis domain.QueryAnalysis, sess *domain.ConversationContext, _ *domain.RequestContext) domain.AgentResponse {
	prompts := missingPreferencePrompts(sess.UserProfile)
	var b strings.Builder
	b.WriteString("Để tôi gợi ý chính xác hơn, bạn cho tôi biết thêm nhé:\n")
	for _, prompt := range prompts {
		b.WriteString("- " + prompt + "\n")
	}
	resp := stateResponse(analysis, b.String(), prompts)
	resp.Metadata["collecting_preferences"] = true
	return resp
}

// missingPreferencePrompts lists up to three questions for the empty
// profile slots, in the order the profile is usually filled.
func missingPreferencePrompts(p *domain.UserProfile) []string {
	var prompts []string
	if p == nil || len(p.PreferredCities) == 0 {
		prompts = append(prompts, "Bạn muốn đi thành phố nào?")
	}
	if p == nil || p.BudgetMax == 0 {
		prompts = append(prompts, "Ngân sách của bạn khoảng bao nhiêu một đêm?")
	}
	if p == nil || len(p.PreferredAmenities) == 0 {
		prompts = append(prompts, "Bạn cần những tiện ích nào, ví dụ hồ bơi hay spa?")
	}
	if p == nil || p.TravelCompanion == "" {
		prompts = append(prompts, "Bạn đi một mình, cặp đôi hay cùng gia đình?")
	}
	if len(prompts) == 0 {
		prompts = append(prompts, "Bạn muốn tìm khách sạn hay nhà hàng?")
	}
	if len(prompts) > 3 {
		prompts = prompts[:3]
	}
	return prompts
}

// confirmBooking renders the fixed pre-booking checklist. No retrieval
// happens in this state; the candidates were settled while refining.
func (c *Conversation) confirmBooking(_ context.Context, _ domain.ConversationState, _ string, analysis domain.QueryAnalysis, _ *domain.ConversationContext, _ *domain.RequestContext) domain.AgentResponse {
	explanation := "Trước khi đặt chỗ, bạn vui lòng kiểm tra lại:\n" +
		"1. Ngày nhận phòng và trả phòng\n" +
		"2. Số lượng khách\n" +
		"3. Thông tin liên hệ của bạn\n" +
		"4. Gọi trực tiếp cơ sở để xác nhận giá và tình trạng phòng\n"
	resp := stateResponse(analysis, explanation, []string{
		"Tôi đã sẵn sàng đặt chỗ",
		"Thay đổi ngày lưu trú",
		"Quay lại tìm kiếm",
	})
	resp.Metadata["booking_checklist"] = true
	return resp
}

// closeTurn renders the fixed closing once a booking was confirmed.
func (c *Conversation) closeTurn(_ context.Context, _ domain.ConversationState, _ string, analysis domain.QueryAnalysis, _ *domain.ConversationContext, _ *domain.RequestContext) domain.AgentResponse {
	explanation := "Cảm ơn bạn đã sử dụng dịch vụ! Chúc bạn có chuyến đi vui vẻ. Nếu cần thêm hỗ trợ, tôi luôn sẵn sàng."
	return stateResponse(analysis, explanation, []string{
		"Bắt đầu tìm kiếm mới",
		"Gợi ý điểm đến khác",
		"Xem lại các cơ sở đã tìm",
	})
}

// stateResponse is the shape shared by the non-retrieval turn handlers.
func stateResponse(analysis domain.QueryAnalysis, explanation string, suggestions []string) domain.AgentResponse {
	return domain.AgentResponse{
		Success:     true,
		Results:     []domain.SearchResult{},
		Intent:      analysis.Intent,
		Explanation: explanation,
		Suggestions: suggestions,
		Confidence:  analysis.Confidence,
		Metadata:    map[string]any{},
	}
}

// buildRequestContext folds the session profile and history into the
// retrieval context. The target state sets the retrieval strictness.
func (c *Conversation) buildRequestContext(state domain.ConversationState, sess *domain.ConversationContext, reqCtx *domain.RequestContext) *domain.RequestContext {
	built := domain.RequestContext{}
	if reqCtx != nil {
		built = *reqCtx
	}

	prefs := map[string]any{}
	for k, v := range built.UserPreferences {
		prefs[k] = v
	}
	p := sess.UserProfile
	if p != nil {
		if p.BudgetMax > 0 {
			prefs["budget_max"] = p.BudgetMax
		}
		if p.BudgetMin > 0 {
			prefs["budget_min"] = p.BudgetMin
		}
		if len(p.PreferredAmenities) > 0 {
			prefs["preferred_amenities"] = append([]string(nil), p.PreferredAmenities...)
		}
		if p.TravelCompanion != "" {
			prefs["travel_companion"] = p.TravelCompanion
		}
		if built.City == "" && len(p.PreferredCities) > 0 {
			built.City = p.PreferredCities[0]
		}
	}
	if len(prefs) > 0 {
		built.UserPreferences = prefs
	}
	built.ConversationHistory = sess.RecentHistory(c.opts.MaxHistory)

	switch state {
	case domain.StateSearching:
		built.SimilarityThreshold = searchingThreshold
		built.MaxResults = searchingMaxResults
	case domain.StateRefining:
		built.SimilarityThreshold = refiningThreshold
		built.MaxResults = refiningMaxResults
	}
	return &built
}

// enrichProfile folds extracted entities into the session profile.
func (c *Conversation) enrichProfile(p *domain.UserProfile, message string, analysis domain.QueryAnalysis) {
	if p == nil {
		return
	}
	p.History = append(p.History, message)
	if len(p.History) > c.opts.MaxHistory {
		p.History = p.History[len(p.History)-c.opts.MaxHistory:]
	}

	if lo, hi, ok := parsePriceRange(message); ok {
		p.BudgetMin = lo
		p.BudgetMax = hi
	} else if price, ok := analysis.Entities["price_range"].(int); ok && price > 0 {
		p.BudgetMax = price
	}
	if cities, ok := analysis.Entities["cities"].([]string); ok {
		for _, city := range cities {
			if !containsString(p.PreferredCities, city) {
				p.PreferredCities = append(p.PreferredCities, city)
			}
		}
	}
	if amenities, ok := analysis.Entities["amenities"].([]string); ok {
		for _, amenity := range amenities {
			if !containsString(p.PreferredAmenities, amenity) {
				p.PreferredAmenities = append(p.PreferredAmenities, amenity)
			}
		}
	}
	if companion, ok := analysis.Parameters["travel_companion"].(string); ok && companion != "" {
		p.TravelCompanion = companion
	}
}

// enrichWithCompleter asks the LLM to pull preference slots the keyword
// extractor missed. Failures are logged and ignored.
func (c *Conversation) enrichWithCompleter(ctx context.Context, p *domain.UserProfile, message string) {
	prompt := fmt.Sprintf(`Trích xuất sở thích du lịch từ tin nhắn sau dưới dạng JSON với các khóa: budget_max (số VND), cities (mảng tên thành phố), amenities (mảng tiện ích), travel_companion (single/couple/family/friends). Bỏ qua khóa nào không có thông tin.

Tin nhắn: %q`, message)

	raw, err := c.completer.CompleteJSON(ctx, prompt)
	if err != nil {
		c.log.Warn("profile slot-filling failed", "error", err)
		return
	}
	var slots struct {
		BudgetMax       int      `json:"budget_max"`
		Cities          []string `json:"cities"`
		Amenities       []string `json:"amenities"`
		TravelCompanion string   `json:"travel_companion"`
	}
	if err := json.Unmarshal([]byte(raw), &slots); err != nil {
		c.log.Warn("profile slot-filling returned invalid JSON", "error", err)
		return
	}

	if slots.BudgetMax > 0 && p.BudgetMax == 0 {
		p.BudgetMax = slots.BudgetMax
	}
	for _, city := range slots.Cities {
		if normalized := normalizeCity(city); isKnownCity(normalized) && !containsString(p.PreferredCities, normalized) {
			p.PreferredCities = append(p.PreferredCities, normalized)
		}
	}
	for _, amenity := range slots.Amenities {
		amenity = strings.ToLower(strings.TrimSpace(amenity))
		if amenity != "" && !containsString(p.PreferredAmenities, amenity) {
			p.PreferredAmenities = append(p.PreferredAmenities, amenity)
		}
	}
	if slots.TravelCompanion != "" && p.TravelCompanion == "" {
		p.TravelCompanion = slots.TravelCompanion
	}
}

// ConversationState returns a copy of the session context.
func (c *Conversation) ConversationState(sessionID string) (*domain.ConversationContext, bool) {
	return c.sessions.Peek(sessionID)
}

// UpdateUserProfile applies a partial profile patch.
func (c *Conversation) UpdateUserProfile(sessionID string, updates domain.ProfileUpdate) bool {
	return c.sessions.Update(sessionID, func(sess *domain.ConversationContext) {
		if sess.UserProfile == nil {
			sess.UserProfile = domain.NewUserProfile()
		}
		updates.Apply(sess.UserProfile)
		sess.LastActivity = time.Now()
	})
}

// EndConversation drops the session.
func (c *Conversation) EndConversation(sessionID string) bool {
	ended := c.sessions.End(sessionID)
	if ended {
		c.log.Info("conversation ended", "session_id", sessionID)
	}
	return ended
}

// SessionStats reports the live session table.
func (c *Conversation) SessionStats() domain.SessionStats {
	stats := c.sessions.Stats()
	stats.SessionTimeout = c.opts.SessionTimeout
	stats.MaxHistory = c.opts.MaxHistory
	return stats
}

func containsString(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
