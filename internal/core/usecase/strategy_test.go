package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/fandbgo/travel-concierge/internal/core/domain"
)

type fakeEmbedder struct {
	vector []float32
	err    error
	texts  []string
}

func (f *fakeEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	f.texts = append(f.texts, text)
	if f.err != nil {
		return nil, f.err
	}
	if f.vector == nil {
		return []float32{0.1, 0.2, 0.3}, nil
	}
	return f.vector, nil
}

// fakeIndex answers Search calls from a queue of canned responses and
// records what it was asked.
type fakeIndex struct {
	responses [][]domain.ScoredPoint
	calls     int
	limits    []int
	filters   []domain.SearchFilter
	searchErr error

	upserts []domain.IndexDocument
	deletes []string
	fetched *domain.ScoredPoint
	total   int
}

func (f *fakeIndex) Upsert(_ context.Context, doc domain.IndexDocument, _ []float32) error {
	f.upserts = append(f.upserts, doc)
	return nil
}

func (f *fakeIndex) Delete(_ context.Context, establishmentID string) error {
	f.deletes = append(f.deletes, establishmentID)
	return nil
}

func (f *fakeIndex) Search(_ context.Context, _ []float32, limit int, filter domain.SearchFilter) ([]domain.ScoredPoint, error) {
	f.limits = append(f.limits, limit)
	f.filters = append(f.filters, filter)
	call := f.calls
	f.calls++
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	if call < len(f.responses) {
		return f.responses[call], nil
	}
	return nil, nil
}

func (f *fakeIndex) Fetch(_ context.Context, establishmentID string) (*domain.ScoredPoint, error) {
	if f.fetched == nil {
		return nil, domain.ErrEstablishmentNotFound
	}
	return f.fetched, nil
}

func (f *fakeIndex) Count(_ context.Context) (int, error) {
	return f.total, nil
}

func point(id string, score float64) domain.ScoredPoint {
	return domain.ScoredPoint{
		EstablishmentID: id,
		Score:           score,
		Metadata:        map[string]any{"name": "Cơ sở " + id},
	}
}

func TestSemanticStrategyDropsBelowThreshold(t *testing.T) {
	index := &fakeIndex{responses: [][]domain.ScoredPoint{{
		point("a", 0.91),
		point("b", 0.65),
		point("c", 0.72),
	}}}
	strategy := NewSemanticStrategy(&fakeEmbedder{}, index, nil)

	results := strategy.Retrieve(context.Background(), domain.RetrievalRequest{
		Query:               "khách sạn gần biển",
		MaxResults:          10,
		SimilarityThreshold: 0.7,
	})

	if len(results) != 2 {
		t.Fatalf("results = %d, want 2", len(results))
	}
	if results[0].EstablishmentID != "a" || results[1].EstablishmentID != "c" {
		t.Fatalf("result ids = %s, %s", results[0].EstablishmentID, results[1].EstablishmentID)
	}
	if results[0].Name != "Cơ sở a" {
		t.Fatalf("name = %q", results[0].Name)
	}
}

func TestSemanticStrategySwallowsEmbedError(t *testing.T) {
	strategy := NewSemanticStrategy(&fakeEmbedder{err: errors.New("down")}, &fakeIndex{}, nil)

	results := strategy.Retrieve(context.Background(), domain.RetrievalRequest{Query: "x", MaxResults: 5})
	if len(results) != 0 {
		t.Fatalf("results = %d, want 0", len(results))
	}
}

func TestHybridStrategyMergesAndTruncates(t *testing.T) {
	// First call is the semantic pass, second the keyword pass. "a" appears
	// in both; the keyword score wins only after the 0.8 discount.
	index := &fakeIndex{responses: [][]domain.ScoredPoint{
		{point("a", 0.80), point("b", 0.75)},
		{point("a", 0.95), point("c", 0.90), point("d", 0.85)},
	}}
	strategy := NewHybridStrategy(&fakeEmbedder{}, index, nil)

	results := strategy.Retrieve(context.Background(), domain.RetrievalRequest{
		Query:               "tôi muốn tìm khách sạn gần biển",
		MaxResults:          3,
		SimilarityThreshold: 0.7,
	})

	if index.calls != 2 {
		t.Fatalf("search calls = %d, want 2", index.calls)
	}
	if index.limits[0] != 6 {
		t.Fatalf("semantic pass limit = %d, want 6", index.limits[0])
	}
	if len(results) != 3 {
		t.Fatalf("results = %d, want 3", len(results))
	}
	if results[0].EstablishmentID != "a" {
		t.Fatalf("top result = %s, want a", results[0].EstablishmentID)
	}
	// keyword hit for "a" is 0.95*0.8 = 0.76, below its semantic 0.80
	if results[0].RelevanceScore != 0.80 {
		t.Fatalf("merged score = %v, want 0.80", results[0].RelevanceScore)
	}
}

func TestHybridKeywordPassStripsStopWords(t *testing.T) {
	embedder := &fakeEmbedder{}
	strategy := NewHybridStrategy(embedder, &fakeIndex{}, nil)

	strategy.Retrieve(context.Background(), domain.RetrievalRequest{
		Query:      "tôi muốn tìm khách sạn gần biển",
		MaxResults: 5,
	})

	if len(embedder.texts) != 2 {
		t.Fatalf("embed calls = %d, want 2", len(embedder.texts))
	}
	keywordQuery := embedder.texts[1]
	for _, stop := range []string{"tôi", "muốn", "tìm"} {
		if strings.Contains(keywordQuery, stop) {
			t.Fatalf("keyword query %q still contains %q", keywordQuery, stop)
		}
	}
	if !strings.Contains(keywordQuery, "khách") {
		t.Fatalf("keyword query %q lost content words", keywordQuery)
	}
}

func TestContextualQueryExpansion(t *testing.T) {
	req := domain.RetrievalRequest{
		Query: "gợi ý chỗ nghỉ cuối tuần",
		UserPreferences: map[string]any{
			"budget_max":          2_000_000,
			"preferred_amenities": []string{"hồ bơi", "spa", "gym", "bar"},
		},
		ConversationHistory: []domain.HistoryEntry{
			{Query: "tìm khách sạn ở Đà Nẵng"},
			{Query: "có nhà hàng hải sản không"},
		},
	}

	expanded := buildContextualQuery(req)

	if !strings.HasPrefix(expanded, "gợi ý chỗ nghỉ cuối tuần") {
		t.Fatalf("expanded = %q", expanded)
	}
	if !strings.Contains(expanded, "ngân sách 2 triệu VND") {
		t.Fatalf("expanded missing budget: %q", expanded)
	}
	if !strings.Contains(expanded, "hồ bơi, spa, gym") || strings.Contains(expanded, "bar") {
		t.Fatalf("amenities not capped at three: %q", expanded)
	}
	if !strings.Contains(expanded, "ở Đà Nẵng") {
		t.Fatalf("expanded missing history city: %q", expanded)
	}
	if !strings.Contains(expanded, "khách sạn") || !strings.Contains(expanded, "nhà hàng") {
		t.Fatalf("expanded missing history categories: %q", expanded)
	}
}
