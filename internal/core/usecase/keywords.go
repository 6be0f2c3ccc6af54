package usecase

import "github.com/fandbgo/travel-concierge/internal/core/domain"

// Keyword tables driving intent detection and entity extraction. These are
// configuration, not learned behavior: scoring counts case-folded substring
// hits per intent and picks the highest, ties resolved by the order of
// domain.ClassifiableIntents.

var intentKeywords = map[domain.Intent][]string{
	domain.IntentSearchEstablishments: {
		"tìm", "search", "tìm kiếm", "khách sạn", "nhà hàng", "hotel", "restaurant",
		"ở đâu", "chỗ nào", "địa điểm", "establishment",
	},
	domain.IntentGetRecommendations: {
		"gợi ý", "recommend", "khuyên", "nên", "tốt nhất", "best", "top",
	},
	domain.IntentCompareEstablishments: {
		"so sánh", "compare", "khác nhau", "difference", "hơn", "better",
	},
	domain.IntentGetDetails: {
		"chi tiết", "details", "thông tin", "info", "như thế nào", "how",
	},
	domain.IntentBookingInquiry: {
		"đặt", "book", "booking", "reservation", "phòng", "room",
	},
	domain.IntentPriceInquiry: {
		"giá", "price", "cost", "phí", "bao nhiêu", "how much",
	},
	domain.IntentAvailabilityCheck: {
		"còn phòng", "available", "trống", "free", "có không", "is there",
	},
}

var categoryKeywords = map[domain.EstablishmentCategory][]string{
	domain.CategoryHotel:      {"khách sạn", "hotel", "resort", "lodge", "inn"},
	domain.CategoryRestaurant: {"nhà hàng", "restaurant", "cafe", "quán", "bar"},
}

// categoryOrder keeps entity extraction deterministic over the map above.
var categoryOrder = []domain.EstablishmentCategory{
	domain.CategoryHotel,
	domain.CategoryRestaurant,
}

var amenityKeywords = []string{
	"hồ bơi", "pool", "spa", "gym", "fitness", "wifi", "parking", "đỗ xe",
	"buffet", "breakfast", "restaurant", "nhà hàng", "bar", "quầy bar",
	"beach", "biển", "mountain", "núi", "city", "thành phố", "center", "trung tâm",
}

var companionPatterns = []struct {
	companion string
	phrases   []string
}{
	{"single", []string{"một mình", "alone", "solo"}},
	{"couple", []string{"cặp đôi", "couple", "hai người", "2 người"}},
	{"family", []string{"gia đình", "family", "trẻ em", "children"}},
	{"friends", []string{"bạn bè", "friends", "nhóm bạn"}},
}

// specificityTokens bump analyzer confidence when present.
var specificityTokens = []string{"ở", "tại", "với", "có", "giá", "khoảng"}

// keywordStopWords are stripped before the hybrid keyword pass.
var keywordStopWords = map[string]struct{}{
	"tôi": {}, "muốn": {}, "tìm": {}, "kiếm": {}, "ở": {}, "tại": {},
	"với": {}, "có": {}, "một": {}, "cái": {}, "này": {},
}
