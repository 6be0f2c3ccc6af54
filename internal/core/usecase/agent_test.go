package usecase

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/fandbgo/travel-concierge/internal/core/domain"
	"github.com/fandbgo/travel-concierge/internal/core/ports"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeStore struct {
	upserts []domain.Establishment
	deletes []string
	byID    map[string]*domain.Establishment
	err     error
}

func (f *fakeStore) Upsert(_ context.Context, est domain.Establishment) error {
	f.upserts = append(f.upserts, est)
	return f.err
}

func (f *fakeStore) Delete(_ context.Context, id string) error {
	f.deletes = append(f.deletes, id)
	return f.err
}

func (f *fakeStore) GetByID(_ context.Context, id string) (*domain.Establishment, error) {
	if est, ok := f.byID[id]; ok {
		return est, nil
	}
	return nil, domain.ErrEstablishmentNotFound
}

func (f *fakeStore) ListIDs(_ context.Context) ([]string, error) { return nil, nil }

type fakePublisher struct {
	events []string
	err    error
}

func (f *fakePublisher) PublishEstablishmentChanged(_ context.Context, establishmentID, op string) error {
	f.events = append(f.events, op+":"+establishmentID)
	return f.err
}

func newTestAgent(index *fakeIndex, store *fakeStore, publisher *fakePublisher, opts AgentOptions) *Agent {
	var st ports.EstablishmentStore
	if store != nil {
		st = store
	}
	var pub ports.ChangePublisher
	if publisher != nil {
		pub = publisher
	}
	return NewAgent(&fakeEmbedder{}, index, st, pub, opts, discardLogger())
}

func TestSelectStrategy(t *testing.T) {
	cases := []struct {
		intent     domain.Intent
		confidence float64
		override   domain.Strategy
		want       domain.Strategy
	}{
		{domain.IntentGetRecommendations, 0.9, "", domain.StrategyContextual},
		{domain.IntentCompareEstablishments, 0.9, "", domain.StrategyHybrid},
		{domain.IntentSearchEstablishments, 0.8, "", domain.StrategySemantic},
		{domain.IntentSearchEstablishments, 0.5, "", domain.StrategyHybrid},
		{domain.IntentGetDetails, 0.8, "", domain.StrategySemantic},
		{domain.IntentPriceInquiry, 0.9, "", domain.DefaultStrategy},
		{domain.IntentUnknown, 0.0, "", domain.DefaultStrategy},
		{domain.IntentGetRecommendations, 0.9, domain.StrategySemantic, domain.StrategySemantic},
	}

	for _, tc := range cases {
		analysis := domain.QueryAnalysis{Intent: tc.intent, Confidence: tc.confidence}
		if got := selectStrategy(analysis, tc.override); got != tc.want {
			t.Errorf("selectStrategy(%q, %.1f, override=%q) = %q, want %q",
				tc.intent, tc.confidence, tc.override, got, tc.want)
		}
	}
}

func TestBuildFilterEntityThenContextThenOverride(t *testing.T) {
	analysis := domain.QueryAnalysis{Entities: map[string]any{
		"cities":              []string{"Đà Nẵng"},
		"establishment_types": []string{"hotel"},
		"price_range":         500_000,
		"amenities":           []string{"hồ bơi"},
	}}

	f := buildFilter(analysis, nil)
	if f.City != "Đà Nẵng" || f.EstablishmentType != "hotel" || f.MaxPrice != 500_000 {
		t.Fatalf("filter = %+v", f)
	}

	// Context city only fills the gap; extracted city wins.
	f = buildFilter(analysis, &domain.RequestContext{City: "hanoi"})
	if f.City != "Đà Nẵng" {
		t.Fatalf("context city overrode extracted city: %+v", f)
	}

	noCity := domain.QueryAnalysis{Entities: map[string]any{}}
	f = buildFilter(noCity, &domain.RequestContext{City: "hanoi"})
	if f.City != "Hà Nội" {
		t.Fatalf("context city not normalized: %+v", f)
	}

	// An explicit filter override beats everything.
	f = buildFilter(analysis, &domain.RequestContext{
		Filter: &domain.SearchFilter{City: "Huế", MaxPrice: 900_000, ExcludeIDs: []string{"est-1"}},
	})
	if f.City != "Huế" || f.MaxPrice != 900_000 || len(f.ExcludeIDs) != 1 {
		t.Fatalf("override filter = %+v", f)
	}
}

func TestProcessQueryAnnotatesMetadata(t *testing.T) {
	index := &fakeIndex{responses: [][]domain.ScoredPoint{{point("a", 0.9)}}}
	agent := newTestAgent(index, nil, nil, AgentOptions{})

	resp := agent.ProcessQuery(context.Background(), "tìm khách sạn ở Đà Nẵng", nil, "")

	if !resp.Success {
		t.Fatalf("response = %+v", resp)
	}
	if resp.StrategyUsed != domain.StrategySemantic {
		t.Fatalf("strategy = %q", resp.StrategyUsed)
	}
	if _, ok := resp.Metadata["query_confidence"]; !ok {
		t.Fatal("query_confidence missing from metadata")
	}
	if _, ok := resp.Metadata["entities"]; !ok {
		t.Fatal("entities missing from metadata")
	}
	if index.filters[0].City != "Đà Nẵng" {
		t.Fatalf("search filter = %+v", index.filters[0])
	}
}

func TestProcessQueryRelaxesFiltersTierByTier(t *testing.T) {
	// Empty on the strict pass and after dropping amenities; hits after the
	// price cap goes too.
	index := &fakeIndex{responses: [][]domain.ScoredPoint{
		nil,
		nil,
		{point("a", 0.9)},
	}}
	agent := newTestAgent(index, nil, nil, AgentOptions{RelaxFilters: true})

	resp := agent.ProcessQuery(context.Background(), "tìm khách sạn có hồ bơi ở Đà Nẵng giá 300k", nil, "")

	if !resp.Success {
		t.Fatalf("response = %+v", resp)
	}
	if resp.Metadata["relaxed_filters"] != true {
		t.Fatalf("relaxed_filters = %v", resp.Metadata["relaxed_filters"])
	}
	if resp.Metadata["relaxation_tier"] != 2 {
		t.Fatalf("relaxation_tier = %v", resp.Metadata["relaxation_tier"])
	}
	last := index.filters[len(index.filters)-1]
	if len(last.Amenities) != 0 || last.MaxPrice != 0 {
		t.Fatalf("relaxed filter still constrained: %+v", last)
	}
	if last.City == "" {
		t.Fatalf("city dropped too early: %+v", last)
	}
}

func TestProcessQueryWithoutRelaxationStopsAtEmpty(t *testing.T) {
	index := &fakeIndex{}
	agent := newTestAgent(index, nil, nil, AgentOptions{})

	resp := agent.ProcessQuery(context.Background(), "tìm khách sạn có hồ bơi ở Đà Nẵng", nil, "")

	if resp.Success {
		t.Fatal("empty retrieval must not be a success")
	}
	if index.calls != 1 {
		t.Fatalf("search calls = %d, want 1", index.calls)
	}
}

func TestProcessQueryHonorsConfiguredStrictness(t *testing.T) {
	index := &fakeIndex{}
	agent := newTestAgent(index, nil, nil, AgentOptions{MaxResults: 4, SimilarityThreshold: 0.9})

	// High-confidence search goes semantic, so the index sees the configured
	// limit directly.
	agent.ProcessQuery(context.Background(), "tìm khách sạn ở Đà Nẵng", nil, domain.StrategySemantic)

	if len(index.limits) != 1 || index.limits[0] != 4 {
		t.Fatalf("index limits = %v, want [4]", index.limits)
	}
}

func TestProcessQueryComputesStayWindow(t *testing.T) {
	agent := newTestAgent(&fakeIndex{}, nil, nil, AgentOptions{})

	resp := agent.ProcessQuery(context.Background(), "đặt phòng khách sạn 2026-09-15 2 đêm", nil, "")

	if resp.Metadata["check_in"] != "2026-09-15" || resp.Metadata["check_out"] != "2026-09-17" {
		t.Fatalf("stay window metadata = %v", resp.Metadata)
	}
}

func TestRefineSearchExcludesAndPromotes(t *testing.T) {
	index := &fakeIndex{responses: [][]domain.ScoredPoint{{
		point("a", 0.95),
		point("b", 0.90),
		point("c", 0.85),
	}}}
	agent := newTestAgent(index, nil, nil, AgentOptions{})

	resp := agent.RefineSearch(context.Background(), "tìm khách sạn ở Đà Nẵng",
		domain.RefineFeedback{
			PreferredResults: []string{"c"},
			RejectedResults:  []string{"z"},
		}, nil)

	if got := index.filters[0].ExcludeIDs; len(got) != 1 || got[0] != "z" {
		t.Fatalf("exclude ids = %v", got)
	}
	if resp.Results[0].EstablishmentID != "c" {
		t.Fatalf("preferred result not promoted: %v", resp.Results[0].EstablishmentID)
	}
	if resp.Metadata["refined"] != true || resp.Metadata["excluded_count"] != 1 {
		t.Fatalf("metadata = %v", resp.Metadata)
	}
}

func TestRefineSearchSeedsSimilarityFromPreferred(t *testing.T) {
	index := &fakeIndex{responses: [][]domain.ScoredPoint{{point("b", 0.9)}}}
	store := &fakeStore{byID: map[string]*domain.Establishment{
		"a": {ID: "a", Name: "Khách sạn Biển Xanh", City: "Đà Nẵng"},
	}}
	embedder := &fakeEmbedder{}
	agent := NewAgent(embedder, index, store, nil, AgentOptions{}, discardLogger())

	resp := agent.RefineSearch(context.Background(), "tìm chỗ tương tự",
		domain.RefineFeedback{PreferredResults: []string{"a"}}, nil)

	if resp.Metadata["similar_to"] != "a" {
		t.Fatalf("metadata = %v", resp.Metadata)
	}
	if got := index.filters[0].ExcludeIDs; len(got) != 1 || got[0] != "a" {
		t.Fatalf("exclude ids = %v", got)
	}
	if len(embedder.texts) == 0 || !strings.Contains(embedder.texts[0], "Khách sạn Biển Xanh") {
		t.Fatalf("embedded texts = %v", embedder.texts)
	}
}

func TestAddEstablishmentWritesStoreIndexAndQueue(t *testing.T) {
	index := &fakeIndex{}
	store := &fakeStore{}
	publisher := &fakePublisher{}
	agent := newTestAgent(index, store, publisher, AgentOptions{})

	est := domain.Establishment{ID: "est-1", Name: "Khách sạn Mường Thanh", City: "Đà Nẵng"}
	if !agent.AddEstablishment(context.Background(), est) {
		t.Fatal("AddEstablishment failed")
	}

	if len(store.upserts) != 1 || store.upserts[0].ID != "est-1" {
		t.Fatalf("store upserts = %+v", store.upserts)
	}
	if len(index.upserts) != 1 || index.upserts[0].EstablishmentID != "est-1" {
		t.Fatalf("index upserts = %+v", index.upserts)
	}
	if len(publisher.events) != 1 || publisher.events[0] != "upsert:est-1" {
		t.Fatalf("events = %v", publisher.events)
	}
}

func TestAddEstablishmentRejectsMissingID(t *testing.T) {
	agent := newTestAgent(&fakeIndex{}, nil, nil, AgentOptions{})
	if agent.AddEstablishment(context.Background(), domain.Establishment{Name: "x"}) {
		t.Fatal("establishment without id must be rejected")
	}
}

func TestAddEstablishmentSurvivesPublishFailure(t *testing.T) {
	publisher := &fakePublisher{err: errors.New("nats down")}
	agent := newTestAgent(&fakeIndex{}, nil, publisher, AgentOptions{})

	est := domain.Establishment{ID: "est-1", Name: "Khách sạn Mường Thanh"}
	if !agent.AddEstablishment(context.Background(), est) {
		t.Fatal("publish failure must not fail the write")
	}
}

func TestRemoveEstablishmentToleratesMissingStoreRow(t *testing.T) {
	index := &fakeIndex{}
	store := &fakeStore{err: domain.ErrEstablishmentNotFound}
	agent := newTestAgent(index, store, nil, AgentOptions{})

	if !agent.RemoveEstablishment(context.Background(), "est-1") {
		t.Fatal("index-only record must still be removable")
	}
	if len(index.deletes) != 1 {
		t.Fatalf("index deletes = %v", index.deletes)
	}
}

func TestEstablishmentDetails(t *testing.T) {
	index := &fakeIndex{fetched: &domain.ScoredPoint{
		EstablishmentID: "est-1",
		Metadata:        map[string]any{"name": "Cơ sở est-1", "city": "Đà Nẵng"},
	}}
	agent := newTestAgent(index, nil, nil, AgentOptions{})

	details, ok := agent.EstablishmentDetails(context.Background(), "est-1")
	if !ok {
		t.Fatal("details not found")
	}
	if details["establishment_id"] != "est-1" || details["city"] != "Đà Nẵng" {
		t.Fatalf("details = %v", details)
	}

	if _, ok := newTestAgent(&fakeIndex{}, nil, nil, AgentOptions{}).EstablishmentDetails(context.Background(), "nope"); ok {
		t.Fatal("missing establishment reported as found")
	}
}

func TestStatsReportsStrategies(t *testing.T) {
	agent := newTestAgent(&fakeIndex{total: 42}, nil, nil, AgentOptions{})

	stats := agent.Stats(context.Background())
	if stats.TotalEstablishments != 42 {
		t.Fatalf("total = %d", stats.TotalEstablishments)
	}
	if len(stats.StrategiesAvailable) != 3 || stats.DefaultStrategy != domain.DefaultStrategy {
		t.Fatalf("stats = %+v", stats)
	}
}
