package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/fandbgo/travel-concierge/internal/core/domain"
	"github.com/fandbgo/travel-concierge/internal/core/ports"
)

const highConfidenceThreshold = 0.7

// AgentOptions tunes the pipeline.
type AgentOptions struct {
	// RelaxFilters retries an empty retrieval with progressively looser
	// filters (amenities, then price cap, then city).
	RelaxFilters bool
	// MaxResults and SimilarityThreshold replace the domain defaults for
	// requests that carry no strictness of their own. Zero keeps the
	// defaults.
	MaxResults          int
	SimilarityThreshold float64
}

// Agent is the single-turn retrieval pipeline: analyze the query, pick a
// strategy, retrieve, compose a response. It also owns catalog maintenance
// against the vector index.
type Agent struct {
	analyzer   *QueryAnalyzer
	generator  *ResponseGenerator
	strategies map[domain.Strategy]RetrievalStrategy
	embedder   ports.Embedder
	index      ports.EstablishmentIndex
	store      ports.EstablishmentStore
	publisher  ports.ChangePublisher
	opts       AgentOptions
	log        *slog.Logger
}

// NewAgent wires the pipeline. store and publisher may be nil; catalog
// writes then touch only the vector index.
func NewAgent(
	embedder ports.Embedder,
	index ports.EstablishmentIndex,
	store ports.EstablishmentStore,
	publisher ports.ChangePublisher,
	opts AgentOptions,
	log *slog.Logger,
) *Agent {
	return &Agent{
		analyzer:  NewQueryAnalyzer(),
		generator: NewResponseGenerator(),
		strategies: map[domain.Strategy]RetrievalStrategy{
			domain.StrategySemantic:   NewSemanticStrategy(embedder, index, log),
			domain.StrategyHybrid:     NewHybridStrategy(embedder, index, log),
			domain.StrategyContextual: NewContextualStrategy(embedder, index, log),
		},
		embedder:  embedder,
		index:     index,
		store:     store,
		publisher: publisher,
		opts:      opts,
		log:       log,
	}
}

var _ ports.QueryService = (*Agent)(nil)

// ProcessQuery runs the full pipeline for one utterance. It never returns
// an error: panics and backend failures surface as Success=false.
func (a *Agent) ProcessQuery(ctx context.Context, query string, reqCtx *domain.RequestContext, override domain.Strategy) (resp domain.AgentResponse) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			a.log.Error("query pipeline panic", "panic", r, "query", query)
			resp = failureResponse(fmt.Sprintf("Xin lỗi, đã có lỗi xảy ra khi xử lý yêu cầu: %v", r), time.Since(start))
		}
	}()

	analysis := a.analyzer.Analyze(query, reqCtx)
	strategy := selectStrategy(analysis, override)
	filter := buildFilter(analysis, reqCtx)

	req := domain.RetrievalRequest{
		Query:               query,
		Intent:              analysis.Intent,
		Strategy:            strategy,
		Filter:              filter,
		MaxResults:          domain.DefaultMaxResults,
		SimilarityThreshold: domain.DefaultSimilarityThreshold,
	}
	if a.opts.MaxResults > 0 {
		req.MaxResults = a.opts.MaxResults
	}
	if a.opts.SimilarityThreshold > 0 {
		req.SimilarityThreshold = a.opts.SimilarityThreshold
	}
	if reqCtx != nil {
		req.UserPreferences = reqCtx.UserPreferences
		req.ConversationHistory = reqCtx.ConversationHistory
		if reqCtx.MaxResults > 0 {
			req.MaxResults = reqCtx.MaxResults
		}
		if reqCtx.SimilarityThreshold > 0 {
			req.SimilarityThreshold = reqCtx.SimilarityThreshold
		}
	}

	results := a.strategies[strategy].Retrieve(ctx, req)
	relaxTier := 0
	if len(results) == 0 && a.opts.RelaxFilters {
		results, relaxTier = a.retrieveRelaxed(ctx, req)
	}

	resp = a.generator.Generate(results, analysis.Intent, strategy, time.Since(start).Seconds(), reqCtx)
	if resp.Metadata == nil {
		resp.Metadata = map[string]any{}
	}
	resp.Metadata["query_confidence"] = analysis.Confidence
	if len(analysis.Entities) > 0 {
		resp.Metadata["entities"] = analysis.Entities
	}
	if len(analysis.Parameters) > 0 {
		resp.Metadata["parameters"] = analysis.Parameters
	}
	if filter.MaxPrice > 0 {
		resp.Metadata["price_category"] = priceCategory(filter.MaxPrice)
	}
	if dates, ok := analysis.Entities["dates"].([]string); ok {
		nights, _ := analysis.Entities["duration"].(int)
		if checkIn, checkOut, ok := stayWindow(dates, nights); ok {
			resp.Metadata["check_in"] = checkIn
			resp.Metadata["check_out"] = checkOut
		}
	}
	if relaxTier > 0 {
		resp.Metadata["relaxed_filters"] = true
		resp.Metadata["relaxation_tier"] = relaxTier
	}
	if len(resp.Suggestions) == 0 {
		resp.Suggestions = analysis.Suggestions
	}

	a.log.Info("query processed",
		"intent", analysis.Intent,
		"strategy", strategy,
		"results", len(resp.Results),
		"confidence", resp.Confidence,
		"elapsed", time.Since(start),
	)
	return resp
}

// retrieveRelaxed drops filter constraints tier by tier until something
// comes back: amenities first, then the price cap, then the city.
func (a *Agent) retrieveRelaxed(ctx context.Context, req domain.RetrievalRequest) ([]domain.SearchResult, int) {
	relaxations := []func(*domain.SearchFilter){
		func(f *domain.SearchFilter) { f.Amenities = nil },
		func(f *domain.SearchFilter) { f.MaxPrice = 0 },
		func(f *domain.SearchFilter) { f.City = "" },
	}
	for tier, relax := range relaxations {
		relax(&req.Filter)
		if req.Filter.IsZero() && tier < len(relaxations)-1 {
			continue
		}
		results := a.strategies[req.Strategy].Retrieve(ctx, req)
		if len(results) > 0 {
			a.log.Info("filters relaxed", "tier", tier+1, "results", len(results))
			return results, tier + 1
		}
	}
	return nil, 0
}

// RefineSearch re-runs a query with user feedback applied: rejected
// establishments are excluded; the first preferred one seeds a similarity
// search when its master record is available, otherwise preferred results
// pin the ranking head.
func (a *Agent) RefineSearch(ctx context.Context, query string, feedback domain.RefineFeedback, reqCtx *domain.RequestContext) domain.AgentResponse {
	refined := domain.RequestContext{}
	if reqCtx != nil {
		refined = *reqCtx
	}
	filter := domain.SearchFilter{}
	if refined.Filter != nil {
		filter = *refined.Filter
	}
	filter.ExcludeIDs = append(filter.ExcludeIDs, feedback.RejectedResults...)

	// A liked establishment turns the refinement into a similarity search
	// seeded by its stored content, with the liked record itself excluded.
	searchQuery := query
	similarTo := ""
	if len(feedback.PreferredResults) > 0 && a.store != nil {
		if est, err := a.store.GetByID(ctx, feedback.PreferredResults[0]); err == nil {
			searchQuery = est.ToIndexDocument().Content
			similarTo = est.ID
			filter.ExcludeIDs = append(filter.ExcludeIDs, est.ID)
		} else {
			a.log.Warn("preferred establishment lookup failed", "id", feedback.PreferredResults[0], "error", err)
		}
	}
	refined.Filter = &filter

	resp := a.ProcessQuery(ctx, searchQuery, &refined, "")
	if similarTo == "" && len(feedback.PreferredResults) > 0 {
		resp.Results = promotePreferred(resp.Results, feedback.PreferredResults)
	}
	if resp.Metadata == nil {
		resp.Metadata = map[string]any{}
	}
	resp.Metadata["refined"] = true
	resp.Metadata["excluded_count"] = len(feedback.RejectedResults)
	if similarTo != "" {
		resp.Metadata["similar_to"] = similarTo
	}
	return resp
}

// promotePreferred moves liked establishments to the front, keeping
// relative order within each group.
func promotePreferred(results []domain.SearchResult, preferred []string) []domain.SearchResult {
	liked := make(map[string]bool, len(preferred))
	for _, id := range preferred {
		liked[id] = true
	}
	head := make([]domain.SearchResult, 0, len(results))
	tail := make([]domain.SearchResult, 0, len(results))
	for _, r := range results {
		if liked[r.EstablishmentID] {
			head = append(head, r)
		} else {
			tail = append(tail, r)
		}
	}
	return append(head, tail...)
}

// AddEstablishment writes the master record (when a store is wired), embeds
// the derived document and upserts it into the vector index.
func (a *Agent) AddEstablishment(ctx context.Context, est domain.Establishment) bool {
	if est.ID == "" || est.Name == "" {
		a.log.Warn("add establishment rejected", "reason", "missing id or name")
		return false
	}
	if a.store != nil {
		if err := a.store.Upsert(ctx, est); err != nil {
			a.log.Error("establishment store upsert failed", "id", est.ID, "error", err)
			return false
		}
	}

	doc := est.ToIndexDocument()
	vector, err := a.embedder.EmbedQuery(ctx, doc.Content)
	if err != nil {
		a.log.Error("establishment embed failed", "id", est.ID, "error", err)
		return false
	}
	if err := a.index.Upsert(ctx, doc, vector); err != nil {
		a.log.Error("establishment index upsert failed", "id", est.ID, "error", err)
		return false
	}

	a.notifyChange(ctx, est.ID, "upsert")
	a.log.Info("establishment indexed", "id", est.ID, "name", est.Name)
	return true
}

// RemoveEstablishment deletes the record from the index and, when wired,
// from the master store.
func (a *Agent) RemoveEstablishment(ctx context.Context, establishmentID string) bool {
	if establishmentID == "" {
		return false
	}
	if a.store != nil {
		if err := a.store.Delete(ctx, establishmentID); err != nil && !domain.IsKind(err, domain.ErrEstablishmentNotFound) {
			a.log.Error("establishment store delete failed", "id", establishmentID, "error", err)
			return false
		}
	}
	if err := a.index.Delete(ctx, establishmentID); err != nil {
		a.log.Error("establishment index delete failed", "id", establishmentID, "error", err)
		return false
	}

	a.notifyChange(ctx, establishmentID, "delete")
	a.log.Info("establishment removed", "id", establishmentID)
	return true
}

func (a *Agent) notifyChange(ctx context.Context, establishmentID, op string) {
	if a.publisher == nil {
		return
	}
	if err := a.publisher.PublishEstablishmentChanged(ctx, establishmentID, op); err != nil {
		a.log.Warn("change event publish failed", "id", establishmentID, "op", op, "error", err)
	}
}

// EstablishmentDetails fetches one indexed record's metadata.
func (a *Agent) EstablishmentDetails(ctx context.Context, establishmentID string) (map[string]any, bool) {
	point, err := a.index.Fetch(ctx, establishmentID)
	if err != nil || point == nil {
		if err != nil && !domain.IsKind(err, domain.ErrEstablishmentNotFound) {
			a.log.Error("establishment fetch failed", "id", establishmentID, "error", err)
		}
		return nil, false
	}
	details := map[string]any{"establishment_id": point.EstablishmentID}
	for k, v := range point.Metadata {
		details[k] = v
	}
	return details, true
}

// Stats reports the catalog size and the strategy roster.
func (a *Agent) Stats(ctx context.Context) domain.IndexStats {
	total, err := a.index.Count(ctx)
	if err != nil {
		a.log.Warn("index count failed", "error", err)
		total = 0
	}
	return domain.IndexStats{
		TotalEstablishments: total,
		StrategiesAvailable: []domain.Strategy{domain.StrategySemantic, domain.StrategyHybrid, domain.StrategyContextual},
		DefaultStrategy:     domain.DefaultStrategy,
	}
}

// selectStrategy maps intent and analyzer confidence to a retrieval
// strategy. A caller override always wins.
func selectStrategy(analysis domain.QueryAnalysis, override domain.Strategy) domain.Strategy {
	if override != "" {
		return override
	}
	switch analysis.Intent {
	case domain.IntentGetRecommendations:
		return domain.StrategyContextual
	case domain.IntentCompareEstablishments:
		return domain.StrategyHybrid
	case domain.IntentSearchEstablishments, domain.IntentGetDetails:
		if analysis.Confidence > highConfidenceThreshold {
			return domain.StrategySemantic
		}
		return domain.StrategyHybrid
	default:
		return domain.DefaultStrategy
	}
}

// buildFilter derives a search filter from extracted entities, then lets
// caller-supplied filter fields override entity-derived ones.
func buildFilter(analysis domain.QueryAnalysis, reqCtx *domain.RequestContext) domain.SearchFilter {
	var f domain.SearchFilter

	if cities, ok := analysis.Entities["cities"].([]string); ok && len(cities) > 0 {
		f.City = cities[0]
	}
	if types, ok := analysis.Entities["establishment_types"].([]string); ok && len(types) > 0 {
		f.EstablishmentType = types[0]
	}
	if price, ok := analysis.Entities["price_range"].(int); ok && price > 0 {
		f.MaxPrice = price
	}
	if amenities, ok := analysis.Entities["amenities"].([]string); ok && len(amenities) > 0 {
		f.Amenities = append([]string(nil), amenities...)
	}

	if reqCtx == nil {
		return f
	}
	if reqCtx.City != "" && f.City == "" {
		f.City = normalizeCity(reqCtx.City)
	}
	if reqCtx.Filter != nil {
		override := reqCtx.Filter
		if override.City != "" {
			f.City = override.City
		}
		if override.EstablishmentType != "" {
			f.EstablishmentType = override.EstablishmentType
		}
		if override.MaxPrice > 0 {
			f.MaxPrice = override.MaxPrice
		}
		if len(override.Amenities) > 0 {
			f.Amenities = append([]string(nil), override.Amenities...)
		}
		if len(override.ExcludeIDs) > 0 {
			f.ExcludeIDs = append([]string(nil), override.ExcludeIDs...)
		}
	}
	return f
}

func failureResponse(explanation string, elapsed time.Duration) domain.AgentResponse {
	return domain.AgentResponse{
		Success:        false,
		Results:        []domain.SearchResult{},
		Intent:         domain.IntentUnknown,
		StrategyUsed:   domain.DefaultStrategy,
		Explanation:    explanation,
		Suggestions:    []string{"Vui lòng thử lại"},
		Confidence:     0,
		ProcessingTime: elapsed.Seconds(),
		Metadata:       map[string]any{"error": true},
	}
}
