package domain

import "time"

// QueryAnalysis is the immutable result of analyzing one utterance.
type QueryAnalysis struct {
	Intent      Intent         `json:"intent"`
	Entities    map[string]any `json:"entities"`
	Parameters  map[string]any `json:"parameters"`
	Confidence  float64        `json:"confidence"`
	Suggestions []string       `json:"suggestions"`
}

// SearchFilter narrows a vector search by establishment metadata. Zero
// values mean "no constraint". Amenities match as an OR of substring hits.
type SearchFilter struct {
	City              string
	EstablishmentType string
	MaxPrice          int
	Amenities         []string
	ExcludeIDs        []string
}

// IsZero reports whether the filter constrains anything.
func (f SearchFilter) IsZero() bool {
	return f.City == "" && f.EstablishmentType == "" && f.MaxPrice <= 0 &&
		len(f.Amenities) == 0 && len(f.ExcludeIDs) == 0
}

const (
	DefaultMaxResults          = 10
	DefaultSimilarityThreshold = 0.7
)

// RetrievalRequest carries everything one strategy invocation needs.
// Built per call, never persisted.
type RetrievalRequest struct {
	Query               string
	Intent              Intent
	Strategy            Strategy
	Filter              SearchFilter
	UserPreferences     map[string]any
	ConversationHistory []HistoryEntry
	MaxResults          int
	SimilarityThreshold float64
}

// ScoredPoint is a raw nearest-neighbor hit from the vector backend.
type ScoredPoint struct {
	EstablishmentID string
	Score           float64
	Metadata        map[string]any
}

// SearchResult is one ranked candidate establishment.
type SearchResult struct {
	EstablishmentID string         `json:"establishment_id"`
	Name            string         `json:"name"`
	RelevanceScore  float64        `json:"relevance_score"`
	Metadata        map[string]any `json:"metadata"`
	Explanation     string         `json:"explanation"`
}

// AgentResponse is the structured answer returned to the caller. The
// pipeline never lets an error escape; failures surface here with
// Success=false and the error text in Explanation.
type AgentResponse struct {
	Success        bool           `json:"success"`
	Results        []SearchResult `json:"results"`
	Intent         Intent         `json:"intent"`
	StrategyUsed   Strategy       `json:"strategy_used"`
	Explanation    string         `json:"explanation"`
	Suggestions    []string       `json:"suggestions"`
	Confidence     float64        `json:"confidence"`
	ProcessingTime float64        `json:"processing_time"`
	Metadata       map[string]any `json:"metadata"`
}

// HistoryEntry is one trimmed record of a processed turn.
type HistoryEntry struct {
	Query       string    `json:"query"`
	Intent      Intent    `json:"intent"`
	Strategy    Strategy  `json:"strategy"`
	ResultCount int       `json:"result_count"`
	Confidence  float64   `json:"confidence"`
	Timestamp   time.Time `json:"timestamp"`
}

// RefineFeedback carries user feedback driving a follow-up search.
type RefineFeedback struct {
	PreferredResults []string `json:"preferred_results"`
	RejectedResults  []string `json:"rejected_results"`
}
