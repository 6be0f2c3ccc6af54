package domain

import "time"

// ConversationState is one step of a session's progression.
type ConversationState string

const (
	StateInitial               ConversationState = "initial"
	StateCollectingPreferences ConversationState = "collecting_preferences"
	StateSearching             ConversationState = "searching"
	StateRefining              ConversationState = "refining"
	StateConfirming            ConversationState = "confirming"
	StateCompleted             ConversationState = "completed"
)

// UserProfile holds per-session preferences. It is owned by exactly one
// session and mutated only through explicit profile updates.
type UserProfile struct {
	Preferences        map[string]any `json:"preferences"`
	History            []string       `json:"history"`
	BudgetMin          int            `json:"budget_min,omitempty"`
	BudgetMax          int            `json:"budget_max,omitempty"`
	PreferredCities    []string       `json:"preferred_cities"`
	PreferredAmenities []string       `json:"preferred_amenities"`
	TravelCompanion    string         `json:"travel_companion,omitempty"`
}

// NewUserProfile returns an empty profile with allocated maps.
func NewUserProfile() *UserProfile {
	return &UserProfile{
		Preferences:        map[string]any{},
		History:            []string{},
		PreferredCities:    []string{},
		PreferredAmenities: []string{},
	}
}

// HasBudget reports whether a budget range has been collected.
func (p *UserProfile) HasBudget() bool {
	return p != nil && (p.BudgetMin > 0 || p.BudgetMax > 0)
}

// ConversationContext is the per-session state owned exclusively by the
// conversation orchestrator. SearchHistory is bounded; the oldest entry is
// evicted first.
type ConversationContext struct {
	SessionID     string            `json:"session_id"`
	State         ConversationState `json:"state"`
	UserProfile   *UserProfile      `json:"user_profile"`
	CurrentQuery  string            `json:"current_query"`
	SearchHistory []HistoryEntry    `json:"search_history"`
	LastActivity  time.Time         `json:"last_activity"`
}

// AppendHistory records one turn and evicts the oldest entries past limit.
func (c *ConversationContext) AppendHistory(entry HistoryEntry, limit int) {
	c.SearchHistory = append(c.SearchHistory, entry)
	if limit > 0 && len(c.SearchHistory) > limit {
		c.SearchHistory = c.SearchHistory[len(c.SearchHistory)-limit:]
	}
}

// RecentHistory returns up to n most recent entries, oldest first.
func (c *ConversationContext) RecentHistory(n int) []HistoryEntry {
	if n <= 0 || len(c.SearchHistory) == 0 {
		return nil
	}
	if len(c.SearchHistory) <= n {
		out := make([]HistoryEntry, len(c.SearchHistory))
		copy(out, c.SearchHistory)
		return out
	}
	out := make([]HistoryEntry, n)
	copy(out, c.SearchHistory[len(c.SearchHistory)-n:])
	return out
}

// SessionStats summarizes the live session table.
type SessionStats struct {
	ActiveSessions int                          `json:"active_sessions"`
	SessionTimeout time.Duration                `json:"session_timeout"`
	MaxHistory     int                          `json:"max_history"`
	States         map[string]ConversationState `json:"conversation_states"`
}
