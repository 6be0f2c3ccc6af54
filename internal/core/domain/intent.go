package domain

// Intent is the classified purpose of a user utterance.
type Intent string

const (
	IntentSearchEstablishments  Intent = "search_establishments"
	IntentGetRecommendations    Intent = "get_recommendations"
	IntentCompareEstablishments Intent = "compare_establishments"
	IntentGetDetails            Intent = "get_details"
	IntentBookingInquiry        Intent = "booking_inquiry"
	IntentPriceInquiry          Intent = "price_inquiry"
	IntentAvailabilityCheck     Intent = "availability_check"
	IntentUnknown               Intent = "unknown"
)

// ClassifiableIntents lists every intent the analyzer scores, in the order
// used to break keyword-count ties.
var ClassifiableIntents = []Intent{
	IntentSearchEstablishments,
	IntentGetRecommendations,
	IntentCompareEstablishments,
	IntentGetDetails,
	IntentBookingInquiry,
	IntentPriceInquiry,
	IntentAvailabilityCheck,
}

// Strategy names one of the interchangeable retrieval algorithms.
type Strategy string

const (
	StrategySemantic    Strategy = "semantic"
	StrategyHybrid      Strategy = "hybrid"
	StrategyContextual  Strategy = "contextual"
	StrategyFilterBased Strategy = "filter_based" // reserved
)

// DefaultStrategy is used when no rule matches and when reporting failures
// that happened before a strategy was chosen.
const DefaultStrategy = StrategyHybrid

// EstablishmentCategory partitions the searchable catalog.
type EstablishmentCategory string

const (
	CategoryHotel      EstablishmentCategory = "HOTEL"
	CategoryRestaurant EstablishmentCategory = "RESTAURANT"
	CategoryAll        EstablishmentCategory = "ALL"
)
