package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/fandbgo/travel-concierge/internal/core/domain"
	"github.com/fandbgo/travel-concierge/internal/core/ports"
)

// RetrievalStrategy is the shared contract of the strategy family. A
// strategy never fails upward: embedding or search errors are contained at
// this boundary and surface as an empty slice, which callers read as "no
// matches".
type RetrievalStrategy interface {
	Retrieve(ctx context.Context, req domain.RetrievalRequest) []domain.SearchResult
}

// vectorSearcher bundles the embed-then-search round trip shared by every
// strategy. Composition keeps the filter translation and the failure policy
// in one place without a base-type hierarchy.
type vectorSearcher struct {
	embedder ports.Embedder
	index    ports.EstablishmentIndex
	log      *slog.Logger
}

func newVectorSearcher(embedder ports.Embedder, index ports.EstablishmentIndex, log *slog.Logger) vectorSearcher {
	if log == nil {
		log = slog.Default()
	}
	return vectorSearcher{embedder: embedder, index: index, log: log}
}

// search embeds text and runs a filtered nearest-neighbor query. Both
// failure modes (embed error / empty vector, search error) collapse to nil.
func (s vectorSearcher) search(ctx context.Context, text string, limit int, filter domain.SearchFilter) []domain.ScoredPoint {
	vector, err := s.embedder.EmbedQuery(ctx, text)
	if err != nil || len(vector) == 0 {
		s.log.Warn("embedding unavailable", "error", err)
		return nil
	}

	points, err := s.index.Search(ctx, vector, limit, filter)
	if err != nil {
		s.log.Warn("vector search failed", "error", err)
		return nil
	}
	return points
}

func pointName(p domain.ScoredPoint) string {
	if name, ok := p.Metadata["name"].(string); ok && name != "" {
		return name
	}
	return "Unknown"
}

func toSearchResult(p domain.ScoredPoint, explanation string) domain.SearchResult {
	return domain.SearchResult{
		EstablishmentID: p.EstablishmentID,
		Name:            pointName(p),
		RelevanceScore:  p.Score,
		Metadata:        p.Metadata,
		Explanation:     explanation,
	}
}

// SemanticStrategy: one embedding of the raw query, hits below the
// similarity threshold dropped.
type SemanticStrategy struct {
	searcher vectorSearcher
}

func NewSemanticStrategy(embedder ports.Embedder, index ports.EstablishmentIndex, log *slog.Logger) *SemanticStrategy {
	return &SemanticStrategy{searcher: newVectorSearcher(embedder, index, log)}
}

func (s *SemanticStrategy) Retrieve(ctx context.Context, req domain.RetrievalRequest) []domain.SearchResult {
	points := s.searcher.search(ctx, req.Query, req.MaxResults, req.Filter)

	results := make([]domain.SearchResult, 0, len(points))
	for _, p := range points {
		if p.Score < req.SimilarityThreshold {
			continue
		}
		results = append(results, toSearchResult(p,
			fmt.Sprintf("Tìm thấy dựa trên semantic similarity (score: %.3f)", p.Score)))
	}
	return results
}

func sortByScoreDesc(results []domain.SearchResult) {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].RelevanceScore != results[j].RelevanceScore {
			return results[i].RelevanceScore > results[j].RelevanceScore
		}
		return results[i].EstablishmentID < results[j].EstablishmentID
	})
}
