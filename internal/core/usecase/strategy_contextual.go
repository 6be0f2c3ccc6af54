package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/fandbgo/travel-concierge/internal/core/domain"
	"github.com/fandbgo/travel-concierge/internal/core/ports"
)

// ContextualStrategy expands the query with fragments derived from the
// user's preferences and the recent conversation before searching exactly
// like the semantic strategy.
type ContextualStrategy struct {
	searcher vectorSearcher
}

func NewContextualStrategy(embedder ports.Embedder, index ports.EstablishmentIndex, log *slog.Logger) *ContextualStrategy {
	return &ContextualStrategy{searcher: newVectorSearcher(embedder, index, log)}
}

func (s *ContextualStrategy) Retrieve(ctx context.Context, req domain.RetrievalRequest) []domain.SearchResult {
	expanded := buildContextualQuery(req)
	points := s.searcher.search(ctx, expanded, req.MaxResults, req.Filter)

	results := make([]domain.SearchResult, 0, len(points))
	for _, p := range points {
		if p.Score < req.SimilarityThreshold {
			continue
		}
		results = append(results, toSearchResult(p,
			fmt.Sprintf("Contextual match (score: %.3f)", p.Score)))
	}
	return results
}

// buildContextualQuery concatenates the raw query with budget and amenity
// fragments from the preferences and category/city mentions from the last
// three history turns, deduplicated in first-seen order.
func buildContextualQuery(req domain.RetrievalRequest) string {
	parts := []string{req.Query}

	if prefs := req.UserPreferences; prefs != nil {
		if budget, ok := intPref(prefs, "budget_max"); ok && budget > 0 {
			parts = append(parts, "ngân sách "+formatPrice(budget))
		}
		if amenities, ok := prefs["preferred_amenities"].([]string); ok && len(amenities) > 0 {
			top := amenities
			if len(top) > 3 {
				top = top[:3]
			}
			parts = append(parts, "có "+strings.Join(top, ", "))
		}
	}

	if fragment := historyFragment(req.ConversationHistory); fragment != "" {
		parts = append(parts, fragment)
	}

	return strings.Join(parts, " ")
}

func intPref(prefs map[string]any, key string) (int, bool) {
	switch v := prefs[key].(type) {
	case int:
		return v, true
	case float64:
		return int(v), true
	}
	return 0, false
}

// historyFragment mines the last three turns for category and city mentions
// using the same keyword tables as the analyzer.
func historyFragment(history []domain.HistoryEntry) string {
	if len(history) == 0 {
		return ""
	}
	recent := history
	if len(recent) > 3 {
		recent = recent[len(recent)-3:]
	}

	seen := map[string]struct{}{}
	var fragments []string
	add := func(fragment string) {
		if _, dup := seen[fragment]; dup {
			return
		}
		seen[fragment] = struct{}{}
		fragments = append(fragments, fragment)
	}

	for _, turn := range recent {
		lower := strings.ToLower(turn.Query)
		for _, category := range categoryOrder {
			for _, keyword := range categoryKeywords[category] {
				if strings.Contains(lower, keyword) {
					add(keyword)
					break
				}
			}
		}
		if city := inferCity(turn.Query); city != "" {
			add("ở " + city)
		}
	}

	return strings.Join(fragments, " ")
}
