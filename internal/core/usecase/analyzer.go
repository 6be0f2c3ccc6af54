package usecase

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/fandbgo/travel-concierge/internal/core/domain"
)

// QueryAnalyzer classifies an utterance and extracts structured entities.
// It is a pure function of the text plus optional context: no I/O, no
// external calls, deterministic output.
type QueryAnalyzer struct{}

func NewQueryAnalyzer() *QueryAnalyzer {
	return &QueryAnalyzer{}
}

var (
	isoDateRe  = regexp.MustCompile(`\b(20\d{2}-\d{2}-\d{2})\b`)
	durationRe = regexp.MustCompile(`(\d+)\s*(đêm|dem|ngày|ngay|night|day)`)
	guestsRe   = regexp.MustCompile(`(\d+)\s*(người|person|people|guests)`)
	starsRe    = regexp.MustCompile(`(\d+)\s*(sao|star|stars)`)
)

// Analyze runs intent detection, entity extraction, parameter extraction,
// confidence scoring and suggestion generation over one utterance.
func (a *QueryAnalyzer) Analyze(query string, reqCtx *domain.RequestContext) domain.QueryAnalysis {
	lower := strings.ToLower(strings.TrimSpace(query))

	intent := a.detectIntent(lower)
	entities := a.extractEntities(query, lower)
	parameters := a.extractParameters(lower)
	confidence := a.scoreConfidence(intent, entities, lower)
	suggestions := a.suggest(intent, entities)

	return domain.QueryAnalysis{
		Intent:      intent,
		Entities:    entities,
		Parameters:  parameters,
		Confidence:  confidence,
		Suggestions: suggestions,
	}
}

// detectIntent counts keyword hits per intent and keeps the strictly best
// score, breaking ties by the enumeration order of ClassifiableIntents.
func (a *QueryAnalyzer) detectIntent(lower string) domain.Intent {
	best := domain.IntentUnknown
	bestScore := 0
	for _, intent := range domain.ClassifiableIntents {
		score := 0
		for _, keyword := range intentKeywords[intent] {
			if strings.Contains(lower, keyword) {
				score++
			}
		}
		if score > bestScore {
			best = intent
			bestScore = score
		}
	}
	return best
}

func (a *QueryAnalyzer) extractEntities(query, lower string) map[string]any {
	entities := map[string]any{}

	if city := inferCity(query); city != "" {
		entities["cities"] = []string{city}
	}

	var types []string
	for _, category := range categoryOrder {
		for _, keyword := range categoryKeywords[category] {
			if strings.Contains(lower, keyword) {
				types = append(types, string(category))
				break
			}
		}
	}
	if len(types) > 0 {
		entities["establishment_types"] = types
	}

	var amenities []string
	for _, amenity := range amenityKeywords {
		if strings.Contains(lower, amenity) {
			amenities = append(amenities, amenity)
		}
	}
	if len(amenities) > 0 {
		entities["amenities"] = amenities
	}

	if price := parsePrice(query); price > 0 {
		entities["price_range"] = price
	}

	if dates := isoDateRe.FindAllString(query, -1); len(dates) > 0 {
		entities["dates"] = dates
	}

	if m := durationRe.FindStringSubmatch(lower); m == nil {
		// Accent-stripped retry catches "2 dem" typed without diacritics.
		m = durationRe.FindStringSubmatch(stripAccents(lower))
		if m != nil {
			if nights, err := strconv.Atoi(m[1]); err == nil {
				entities["duration"] = nights
			}
		}
	} else if nights, err := strconv.Atoi(m[1]); err == nil {
		entities["duration"] = nights
	}

	return entities
}

func (a *QueryAnalyzer) extractParameters(lower string) map[string]any {
	parameters := map[string]any{}

	for _, cp := range companionPatterns {
		for _, phrase := range cp.phrases {
			if strings.Contains(lower, phrase) {
				parameters["travel_companion"] = cp.companion
				break
			}
		}
		if _, ok := parameters["travel_companion"]; ok {
			break
		}
	}

	if m := guestsRe.FindStringSubmatch(lower); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			parameters["num_guests"] = n
		}
	}

	if m := starsRe.FindStringSubmatch(lower); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			parameters["star_rating"] = n
		}
	}

	return parameters
}

// scoreConfidence: 0.3 for a recognized intent, up to 0.4 from entity
// coverage, 0.2 for three or more tokens, 0.1 for a specificity token.
func (a *QueryAnalyzer) scoreConfidence(intent domain.Intent, entities map[string]any, lower string) float64 {
	confidence := 0.0

	if intent != domain.IntentUnknown {
		confidence += 0.3
	}

	entityBoost := float64(len(entities)) * 0.1
	if entityBoost > 0.4 {
		entityBoost = 0.4
	}
	confidence += entityBoost

	if len(strings.Fields(lower)) >= 3 {
		confidence += 0.2
	}

	for _, token := range specificityTokens {
		if strings.Contains(lower, token) {
			confidence += 0.1
			break
		}
	}

	if confidence > 1.0 {
		confidence = 1.0
	}
	return confidence
}

func (a *QueryAnalyzer) suggest(intent domain.Intent, entities map[string]any) []string {
	var suggestions []string

	switch intent {
	case domain.IntentSearchEstablishments:
		if _, ok := entities["cities"]; !ok {
			suggestions = append(suggestions, "Bạn có thể chỉ định thành phố cụ thể không?")
		}
		if _, ok := entities["establishment_types"]; !ok {
			suggestions = append(suggestions, "Bạn muốn tìm khách sạn hay nhà hàng?")
		}
		if _, ok := entities["amenities"]; !ok {
			suggestions = append(suggestions, "Bạn có ưu tiên tiện ích nào không? (hồ bơi, spa, gym...)")
		}
	case domain.IntentGetRecommendations:
		suggestions = append(suggestions,
			"Tôi có thể gợi ý dựa trên thành phố và ngân sách của bạn",
			"Bạn có thể cho biết thêm về sở thích của mình",
		)
	case domain.IntentBookingInquiry:
		if _, ok := entities["dates"]; !ok {
			suggestions = append(suggestions, "Bạn cần cung cấp ngày check-in và check-out")
		}
		suggestions = append(suggestions, "Bạn muốn đặt bao nhiêu phòng?")
	}

	return suggestions
}
