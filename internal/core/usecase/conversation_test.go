package usecase

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/fandbgo/travel-concierge/internal/core/domain"
	"github.com/fandbgo/travel-concierge/internal/core/ports"
	"github.com/fandbgo/travel-concierge/internal/infrastructure/session"
)

// recordingAgent captures the request context each turn receives.
type recordingAgent struct {
	contexts []*domain.RequestContext
	response domain.AgentResponse
}

func (f *recordingAgent) ProcessQuery(_ context.Context, _ string, reqCtx *domain.RequestContext, _ domain.Strategy) domain.AgentResponse {
	f.contexts = append(f.contexts, reqCtx)
	return f.response
}

func (f *recordingAgent) RefineSearch(context.Context, string, domain.RefineFeedback, *domain.RequestContext) domain.AgentResponse {
	return f.response
}

func (f *recordingAgent) AddEstablishment(context.Context, domain.Establishment) bool { return true }
func (f *recordingAgent) RemoveEstablishment(context.Context, string) bool            { return true }
func (f *recordingAgent) EstablishmentDetails(context.Context, string) (map[string]any, bool) {
	return nil, false
}
func (f *recordingAgent) Stats(context.Context) domain.IndexStats { return domain.IndexStats{} }

type fakeCompleter struct {
	raw string
	err error
}

func (f *fakeCompleter) CompleteJSON(context.Context, string) (string, error) {
	return f.raw, f.err
}

func newTestConversation(agent *recordingAgent, completer ports.PromptCompleter, opts ConversationOptions) *Conversation {
	return NewConversation(agent, session.NewStore(), completer, opts, discardLogger())
}

func TestNextStateTable(t *testing.T) {
	cases := []struct {
		state      domain.ConversationState
		intent     domain.Intent
		confidence float64
		want       domain.ConversationState
	}{
		{domain.StateInitial, domain.IntentSearchEstablishments, 0.8, domain.StateSearching},
		{domain.StateInitial, domain.IntentUnknown, 0.2, domain.StateCollectingPreferences},
		{"", domain.IntentUnknown, 0.2, domain.StateCollectingPreferences},
		{domain.StateCollectingPreferences, domain.IntentSearchEstablishments, 0.6, domain.StateSearching},
		{domain.StateCollectingPreferences, domain.IntentUnknown, 0.3, domain.StateCollectingPreferences},
		{domain.StateSearching, domain.IntentCompareEstablishments, 0.9, domain.StateRefining},
		{domain.StateSearching, domain.IntentGetDetails, 0.9, domain.StateRefining},
		{domain.StateSearching, domain.IntentBookingInquiry, 0.9, domain.StateConfirming},
		{domain.StateSearching, domain.IntentSearchEstablishments, 0.9, domain.StateSearching},
		{domain.StateRefining, domain.IntentBookingInquiry, 0.9, domain.StateConfirming},
		{domain.StateRefining, domain.IntentGetDetails, 0.9, domain.StateRefining},
		{domain.StateConfirming, domain.IntentUnknown, 0.1, domain.StateCompleted},
		{domain.StateCompleted, domain.IntentSearchEstablishments, 0.9, domain.StateSearching},
	}

	for _, tc := range cases {
		analysis := domain.QueryAnalysis{Intent: tc.intent, Confidence: tc.confidence}
		if got := nextState(tc.state, analysis); got != tc.want {
			t.Errorf("nextState(%q, %q, %.1f) = %q, want %q",
				tc.state, tc.intent, tc.confidence, got, tc.want)
		}
	}
}

func TestProcessMessageCreatesSessionAndAdvancesState(t *testing.T) {
	agent := &recordingAgent{response: domain.AgentResponse{Success: true}}
	conv := newTestConversation(agent, nil, ConversationOptions{})

	resp := conv.ProcessMessage(context.Background(), "tìm khách sạn ở Đà Nẵng", "s-1", nil, nil)

	if resp.Metadata["session_id"] != "s-1" {
		t.Fatalf("session_id = %v", resp.Metadata["session_id"])
	}
	if resp.Metadata["conversation_state"] != string(domain.StateSearching) {
		t.Fatalf("conversation_state = %v", resp.Metadata["conversation_state"])
	}

	state, ok := conv.ConversationState("s-1")
	if !ok {
		t.Fatal("session not created")
	}
	if state.State != domain.StateSearching {
		t.Fatalf("state = %q", state.State)
	}
	if len(state.SearchHistory) != 1 {
		t.Fatalf("history = %d entries", len(state.SearchHistory))
	}
}

func TestProcessMessageBookingFlowReachesConfirming(t *testing.T) {
	agent := &recordingAgent{response: domain.AgentResponse{Success: true}}
	conv := newTestConversation(agent, nil, ConversationOptions{})

	resp := conv.ProcessMessage(context.Background(), "tìm khách sạn ở Đà Nẵng có hồ bơi", "s-1", nil, nil)
	if resp.Metadata["conversation_state"] != string(domain.StateSearching) {
		t.Fatalf("first turn state = %v", resp.Metadata["conversation_state"])
	}

	resp = conv.ProcessMessage(context.Background(), "tôi muốn đặt phòng khách sạn này", "s-1", nil, nil)
	if resp.Metadata["conversation_state"] != string(domain.StateConfirming) {
		t.Fatalf("second turn state = %v", resp.Metadata["conversation_state"])
	}

	// The confirming turn is a fixed checklist; only the first turn searched.
	if len(agent.contexts) != 1 {
		t.Fatalf("agent called %d times, want 1", len(agent.contexts))
	}
	if resp.Metadata["booking_checklist"] != true {
		t.Fatalf("metadata = %v", resp.Metadata)
	}
	if !strings.Contains(resp.Explanation, "đặt chỗ") {
		t.Fatalf("explanation = %q", resp.Explanation)
	}

	// A third turn closes the conversation with follow-up chips.
	resp = conv.ProcessMessage(context.Background(), "cảm ơn", "s-1", nil, nil)
	if resp.Metadata["conversation_state"] != string(domain.StateCompleted) {
		t.Fatalf("third turn state = %v", resp.Metadata["conversation_state"])
	}
	if len(agent.contexts) != 1 {
		t.Fatalf("completed turn must not retrieve, agent calls = %d", len(agent.contexts))
	}
	if len(resp.Suggestions) == 0 || len(resp.Suggestions) > 3 {
		t.Fatalf("closing suggestions = %v", resp.Suggestions)
	}
}

func TestProcessMessageVagueStartCollectsPreferences(t *testing.T) {
	agent := &recordingAgent{}
	conv := newTestConversation(agent, nil, ConversationOptions{})

	resp := conv.ProcessMessage(context.Background(), "hm", "s-1", nil, nil)

	if resp.Metadata["conversation_state"] != string(domain.StateCollectingPreferences) {
		t.Fatalf("conversation_state = %v", resp.Metadata["conversation_state"])
	}
	// Collecting preferences asks questions, it does not retrieve.
	if len(agent.contexts) != 0 {
		t.Fatalf("agent called %d times during preference collection", len(agent.contexts))
	}
	if len(resp.Suggestions) == 0 || len(resp.Suggestions) > 3 {
		t.Fatalf("prompts = %v", resp.Suggestions)
	}
	if !strings.Contains(resp.Explanation, "thành phố") {
		t.Fatalf("explanation = %q", resp.Explanation)
	}
}

func TestCollectingPromptsSkipFilledSlots(t *testing.T) {
	agent := &recordingAgent{}
	conv := newTestConversation(agent, nil, ConversationOptions{})

	// City and budget are extracted on the way in, so only the empty slots
	// are asked about.
	resp := conv.ProcessMessage(context.Background(), "đà nẵng tầm 500k", "s-1", nil, nil)

	if resp.Metadata["conversation_state"] != string(domain.StateCollectingPreferences) {
		t.Fatalf("conversation_state = %v", resp.Metadata["conversation_state"])
	}
	for _, prompt := range resp.Suggestions {
		if strings.Contains(prompt, "thành phố") || strings.Contains(prompt, "Ngân sách") {
			t.Fatalf("asked about a filled slot: %q", prompt)
		}
	}
	if len(resp.Suggestions) == 0 {
		t.Fatalf("no prompts for remaining slots")
	}
}

func TestProcessMessageAppliesStateThresholds(t *testing.T) {
	agent := &recordingAgent{response: domain.AgentResponse{Success: true}}
	conv := newTestConversation(agent, nil, ConversationOptions{})

	conv.ProcessMessage(context.Background(), "tìm khách sạn ở Đà Nẵng", "s-1", nil, nil)

	reqCtx := agent.contexts[0]
	if reqCtx.SimilarityThreshold != searchingThreshold {
		t.Fatalf("threshold = %v, want %v", reqCtx.SimilarityThreshold, searchingThreshold)
	}
	if reqCtx.MaxResults != searchingMaxResults {
		t.Fatalf("max results = %d, want %d", reqCtx.MaxResults, searchingMaxResults)
	}

	// A details turn moves searching -> refining and tightens retrieval.
	conv.ProcessMessage(context.Background(), "cho tôi thông tin chi tiết", "s-1", nil, nil)

	reqCtx = agent.contexts[1]
	if reqCtx.SimilarityThreshold != refiningThreshold {
		t.Fatalf("refining threshold = %v", reqCtx.SimilarityThreshold)
	}
	if reqCtx.MaxResults != refiningMaxResults {
		t.Fatalf("refining max results = %d", reqCtx.MaxResults)
	}
}

func TestProcessMessageEnrichesProfile(t *testing.T) {
	agent := &recordingAgent{response: domain.AgentResponse{Success: true}}
	conv := newTestConversation(agent, nil, ConversationOptions{})

	conv.ProcessMessage(context.Background(), "tìm khách sạn có hồ bơi ở Đà Nẵng giá 500k cho gia đình", "s-1", nil, nil)

	state, _ := conv.ConversationState("s-1")
	p := state.UserProfile
	if p.BudgetMax != 500_000 {
		t.Fatalf("budget_max = %d", p.BudgetMax)
	}
	if len(p.PreferredCities) != 1 || p.PreferredCities[0] != "Đà Nẵng" {
		t.Fatalf("cities = %v", p.PreferredCities)
	}
	if len(p.PreferredAmenities) == 0 || p.PreferredAmenities[0] != "hồ bơi" {
		t.Fatalf("amenities = %v", p.PreferredAmenities)
	}
	if p.TravelCompanion != "family" {
		t.Fatalf("companion = %q", p.TravelCompanion)
	}

	// Profile preferences flow into the next turn's retrieval context.
	conv.ProcessMessage(context.Background(), "còn gì nữa không", "s-1", nil, nil)
	prefs := agent.contexts[1].UserPreferences
	if prefs["budget_max"] != 500_000 {
		t.Fatalf("prefs budget = %v", prefs["budget_max"])
	}
	if agent.contexts[1].City != "Đà Nẵng" {
		t.Fatalf("context city = %q", agent.contexts[1].City)
	}
}

func TestProcessMessageParsesBudgetRange(t *testing.T) {
	agent := &recordingAgent{response: domain.AgentResponse{Success: true}}
	conv := newTestConversation(agent, nil, ConversationOptions{})

	conv.ProcessMessage(context.Background(), "tầm 300k-500k một đêm", "s-1", nil, nil)

	state, _ := conv.ConversationState("s-1")
	p := state.UserProfile
	if p.BudgetMin != 300_000 || p.BudgetMax != 500_000 {
		t.Fatalf("budget = %d..%d", p.BudgetMin, p.BudgetMax)
	}
}

func TestProcessMessageBoundsHistory(t *testing.T) {
	agent := &recordingAgent{response: domain.AgentResponse{Success: true}}
	conv := newTestConversation(agent, nil, ConversationOptions{MaxHistory: 3})

	for i := 0; i < 5; i++ {
		conv.ProcessMessage(context.Background(), fmt.Sprintf("tìm khách sạn số %d", i), "s-1", nil, nil)
	}

	state, _ := conv.ConversationState("s-1")
	if len(state.SearchHistory) != 3 {
		t.Fatalf("history = %d entries, want 3", len(state.SearchHistory))
	}
	if state.SearchHistory[0].Query != "tìm khách sạn số 2" {
		t.Fatalf("oldest kept entry = %q", state.SearchHistory[0].Query)
	}
	if len(state.UserProfile.History) != 3 {
		t.Fatalf("profile history = %d entries", len(state.UserProfile.History))
	}
}

func TestCompleterFillsEmptySlotsOnly(t *testing.T) {
	agent := &recordingAgent{response: domain.AgentResponse{Success: true}}
	completer := &fakeCompleter{raw: `{"budget_max":900000,"cities":["hue","Tokyo"],"travel_companion":"couple"}`}
	conv := newTestConversation(agent, completer, ConversationOptions{})

	// "500k" is extracted by keywords, so the completer's budget loses.
	conv.ProcessMessage(context.Background(), "tầm 500k thôi", "s-1", nil, nil)

	state, _ := conv.ConversationState("s-1")
	p := state.UserProfile
	if p.BudgetMax != 500_000 {
		t.Fatalf("budget_max = %d", p.BudgetMax)
	}
	if len(p.PreferredCities) != 1 || p.PreferredCities[0] != "Huế" {
		t.Fatalf("cities = %v (unknown cities must be dropped)", p.PreferredCities)
	}
	if p.TravelCompanion != "couple" {
		t.Fatalf("companion = %q", p.TravelCompanion)
	}
}

func TestCompleterFailureIsIgnored(t *testing.T) {
	agent := &recordingAgent{response: domain.AgentResponse{Success: true}}
	completer := &fakeCompleter{err: fmt.Errorf("model offline")}
	conv := newTestConversation(agent, completer, ConversationOptions{})

	resp := conv.ProcessMessage(context.Background(), "tìm khách sạn", "s-1", nil, nil)
	if resp.Metadata["session_id"] != "s-1" {
		t.Fatalf("turn failed on completer error: %v", resp.Metadata)
	}
}

func TestUpdateUserProfileAndEnd(t *testing.T) {
	agent := &recordingAgent{response: domain.AgentResponse{Success: true}}
	conv := newTestConversation(agent, nil, ConversationOptions{})

	conv.ProcessMessage(context.Background(), "tìm khách sạn", "s-1", nil, nil)

	budget := 1_200_000
	if !conv.UpdateUserProfile("s-1", domain.ProfileUpdate{BudgetMax: &budget}) {
		t.Fatal("update failed")
	}
	state, _ := conv.ConversationState("s-1")
	if state.UserProfile.BudgetMax != 1_200_000 {
		t.Fatalf("budget_max = %d", state.UserProfile.BudgetMax)
	}

	if !conv.EndConversation("s-1") {
		t.Fatal("end failed")
	}
	if conv.EndConversation("s-1") {
		t.Fatal("double end must report false")
	}
	if _, ok := conv.ConversationState("s-1"); ok {
		t.Fatal("ended session still visible")
	}
}

func TestSessionStatsCarriesOptions(t *testing.T) {
	agent := &recordingAgent{response: domain.AgentResponse{Success: true}}
	conv := newTestConversation(agent, nil, ConversationOptions{
		SessionTimeout: 30 * time.Minute,
		MaxHistory:     7,
	})

	conv.ProcessMessage(context.Background(), "tìm khách sạn", "s-1", nil, nil)
	conv.ProcessMessage(context.Background(), "tìm nhà hàng", "s-2", nil, nil)

	stats := conv.SessionStats()
	if stats.ActiveSessions != 2 {
		t.Fatalf("active sessions = %d", stats.ActiveSessions)
	}
	if stats.SessionTimeout != 30*time.Minute || stats.MaxHistory != 7 {
		t.Fatalf("stats = %+v", stats)
	}
}
