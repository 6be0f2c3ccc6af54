package domain

// RequestContext carries caller-supplied overrides for one pipeline run.
// Every field is optional; zero values fall back to analyzer output or
// defaults.
type RequestContext struct {
	Filter              *SearchFilter  `json:"filter,omitempty"`
	UserPreferences     map[string]any `json:"user_preferences,omitempty"`
	ConversationHistory []HistoryEntry `json:"conversation_history,omitempty"`
	MaxResults          int            `json:"max_results,omitempty"`
	SimilarityThreshold float64        `json:"similarity_threshold,omitempty"`
	City                string         `json:"city,omitempty"`
}

// ProfileUpdate is a partial user-profile patch; nil fields are untouched.
type ProfileUpdate struct {
	Preferences        map[string]any `json:"preferences,omitempty"`
	BudgetMin          *int           `json:"budget_min,omitempty"`
	BudgetMax          *int           `json:"budget_max,omitempty"`
	PreferredCities    []string       `json:"preferred_cities,omitempty"`
	PreferredAmenities []string       `json:"preferred_amenities,omitempty"`
	TravelCompanion    *string        `json:"travel_companion,omitempty"`
}

// Apply merges the patch into the profile.
func (u ProfileUpdate) Apply(p *UserProfile) {
	if p == nil {
		return
	}
	for k, v := range u.Preferences {
		if p.Preferences == nil {
			p.Preferences = map[string]any{}
		}
		p.Preferences[k] = v
	}
	if u.BudgetMin != nil {
		p.BudgetMin = *u.BudgetMin
	}
	if u.BudgetMax != nil {
		p.BudgetMax = *u.BudgetMax
	}
	if len(u.PreferredCities) > 0 {
		p.PreferredCities = append([]string(nil), u.PreferredCities...)
	}
	if len(u.PreferredAmenities) > 0 {
		p.PreferredAmenities = append([]string(nil), u.PreferredAmenities...)
	}
	if u.TravelCompanion != nil {
		p.TravelCompanion = *u.TravelCompanion
	}
}
