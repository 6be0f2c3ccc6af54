package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/fandbgo/travel-concierge/internal/core/domain"
	"github.com/fandbgo/travel-concierge/internal/core/ports"
)

// keywordScoreWeight discounts keyword-pass hits below semantic ones.
const keywordScoreWeight = 0.8

// HybridStrategy merges a widened semantic pass with a keyword-only pass.
// The semantic pass over-fetches at a lowered threshold; the keyword pass
// re-embeds the query with stop-words removed and its scores are weighted
// down. Duplicates keep the higher score and both explanations.
type HybridStrategy struct {
	searcher vectorSearcher
}

func NewHybridStrategy(embedder ports.Embedder, index ports.EstablishmentIndex, log *slog.Logger) *HybridStrategy {
	return &HybridStrategy{searcher: newVectorSearcher(embedder, index, log)}
}

func (s *HybridStrategy) Retrieve(ctx context.Context, req domain.RetrievalRequest) []domain.SearchResult {
	semantic := s.semanticPass(ctx, req)
	keyword := s.keywordPass(ctx, req)

	merged := mergeResults(semantic, keyword)
	if len(merged) > req.MaxResults && req.MaxResults > 0 {
		merged = merged[:req.MaxResults]
	}
	return merged
}

func (s *HybridStrategy) semanticPass(ctx context.Context, req domain.RetrievalRequest) []domain.SearchResult {
	points := s.searcher.search(ctx, req.Query, req.MaxResults*2, req.Filter)

	threshold := req.SimilarityThreshold * 0.8
	results := make([]domain.SearchResult, 0, len(points))
	for _, p := range points {
		if p.Score < threshold {
			continue
		}
		results = append(results, toSearchResult(p,
			fmt.Sprintf("Semantic match (score: %.3f)", p.Score)))
	}
	return results
}

func (s *HybridStrategy) keywordPass(ctx context.Context, req domain.RetrievalRequest) []domain.SearchResult {
	keywords := extractKeywords(req.Query)
	if len(keywords) == 0 {
		return nil
	}

	points := s.searcher.search(ctx, strings.Join(keywords, " "), req.MaxResults, req.Filter)

	results := make([]domain.SearchResult, 0, len(points))
	for _, p := range points {
		result := toSearchResult(p, fmt.Sprintf("Keyword match (score: %.3f)", p.Score))
		result.RelevanceScore = p.Score * keywordScoreWeight
		results = append(results, result)
	}
	return results
}

// extractKeywords drops stop-words and words of two runes or fewer.
func extractKeywords(query string) []string {
	words := strings.Fields(strings.ToLower(query))
	keywords := make([]string, 0, len(words))
	for _, word := range words {
		if _, stop := keywordStopWords[word]; stop {
			continue
		}
		if utf8.RuneCountInString(word) <= 2 {
			continue
		}
		keywords = append(keywords, word)
	}
	return keywords
}

// mergeResults keys by establishment id: a duplicate keeps the higher score
// and concatenates the losing explanation. Output is ordered by score
// descending.
func mergeResults(semantic, keyword []domain.SearchResult) []domain.SearchResult {
	combined := make(map[string]domain.SearchResult, len(semantic)+len(keyword))
	order := make([]string, 0, len(semantic)+len(keyword))

	for _, r := range semantic {
		if _, seen := combined[r.EstablishmentID]; !seen {
			order = append(order, r.EstablishmentID)
		}
		combined[r.EstablishmentID] = r
	}

	for _, r := range keyword {
		existing, seen := combined[r.EstablishmentID]
		if !seen {
			combined[r.EstablishmentID] = r
			order = append(order, r.EstablishmentID)
			continue
		}
		if r.RelevanceScore > existing.RelevanceScore {
			existing.RelevanceScore = r.RelevanceScore
			existing.Explanation += " + " + r.Explanation
			combined[r.EstablishmentID] = existing
		}
	}

	merged := make([]domain.SearchResult, 0, len(combined))
	for _, id := range order {
		merged = append(merged, combined[id])
	}
	sortByScoreDesc(merged)
	return merged
}
