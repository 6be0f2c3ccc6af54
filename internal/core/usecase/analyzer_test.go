package usecase

import (
	"testing"

	"github.com/fandbgo/travel-concierge/internal/core/domain"
)

func TestDetectIntentTable(t *testing.T) {
	analyzer := NewQueryAnalyzer()

	cases := []struct {
		query string
		want  domain.Intent
	}{
		{"tìm khách sạn ở Đà Nẵng", domain.IntentSearchEstablishments},
		{"gợi ý cho tôi nhà hàng tốt nhất", domain.IntentGetRecommendations},
		{"so sánh xem chỗ nào tốt hơn", domain.IntentCompareEstablishments},
		{"cho tôi thông tin chi tiết", domain.IntentGetDetails},
		{"tôi muốn đặt phòng", domain.IntentBookingInquiry},
		{"giá bao nhiêu một đêm", domain.IntentPriceInquiry},
		{"còn phòng trống không", domain.IntentAvailabilityCheck},
		{"xyzabc", domain.IntentUnknown},
	}

	for _, tc := range cases {
		got := analyzer.Analyze(tc.query, nil)
		if got.Intent != tc.want {
			t.Errorf("Analyze(%q).Intent = %q, want %q", tc.query, got.Intent, tc.want)
		}
	}
}

func TestAnalyzeExtractsEntities(t *testing.T) {
	analyzer := NewQueryAnalyzer()

	got := analyzer.Analyze("tìm khách sạn có hồ bơi ở Đà Nẵng giá 500k, check-in 2026-09-15, 2 đêm", nil)

	cities, _ := got.Entities["cities"].([]string)
	if len(cities) != 1 || cities[0] != "Đà Nẵng" {
		t.Errorf("cities = %v", cities)
	}
	types, _ := got.Entities["establishment_types"].([]string)
	if len(types) != 1 || types[0] != string(domain.CategoryHotel) {
		t.Errorf("establishment_types = %v", types)
	}
	amenities, _ := got.Entities["amenities"].([]string)
	if len(amenities) == 0 || amenities[0] != "hồ bơi" {
		t.Errorf("amenities = %v", amenities)
	}
	if price, _ := got.Entities["price_range"].(int); price != 500_000 {
		t.Errorf("price_range = %v", got.Entities["price_range"])
	}
	dates, _ := got.Entities["dates"].([]string)
	if len(dates) != 1 || dates[0] != "2026-09-15" {
		t.Errorf("dates = %v", dates)
	}
	if nights, _ := got.Entities["duration"].(int); nights != 2 {
		t.Errorf("duration = %v", got.Entities["duration"])
	}
}

func TestAnalyzeDurationWithoutDiacritics(t *testing.T) {
	analyzer := NewQueryAnalyzer()

	got := analyzer.Analyze("khach san 3 dem", nil)
	if nights, _ := got.Entities["duration"].(int); nights != 3 {
		t.Errorf("duration = %v", got.Entities["duration"])
	}
}

func TestAnalyzeExtractsParameters(t *testing.T) {
	analyzer := NewQueryAnalyzer()

	got := analyzer.Analyze("khách sạn cho gia đình 4 người, 5 sao", nil)

	if companion, _ := got.Parameters["travel_companion"].(string); companion != "family" {
		t.Errorf("travel_companion = %v", got.Parameters["travel_companion"])
	}
	if guests, _ := got.Parameters["num_guests"].(int); guests != 4 {
		t.Errorf("num_guests = %v", got.Parameters["num_guests"])
	}
	if stars, _ := got.Parameters["star_rating"].(int); stars != 5 {
		t.Errorf("star_rating = %v", got.Parameters["star_rating"])
	}
}

func TestAnalyzeConfidenceBounds(t *testing.T) {
	analyzer := NewQueryAnalyzer()

	rich := analyzer.Analyze("tìm khách sạn có hồ bơi ở Đà Nẵng giá khoảng 500k cho gia đình", nil)
	if rich.Confidence <= 0.6 || rich.Confidence > 1.0 {
		t.Errorf("rich query confidence = %v", rich.Confidence)
	}

	vague := analyzer.Analyze("hm", nil)
	if vague.Confidence >= 0.3 {
		t.Errorf("vague query confidence = %v", vague.Confidence)
	}
	if vague.Intent != domain.IntentUnknown {
		t.Errorf("vague intent = %q", vague.Intent)
	}
}

func TestAnalyzeSuggestionsForSparseSearch(t *testing.T) {
	analyzer := NewQueryAnalyzer()

	got := analyzer.Analyze("tìm kiếm chỗ nghỉ", nil)
	if got.Intent != domain.IntentSearchEstablishments {
		t.Fatalf("intent = %q", got.Intent)
	}
	if len(got.Suggestions) != 3 {
		t.Fatalf("suggestions = %v", got.Suggestions)
	}
}
