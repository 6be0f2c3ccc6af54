package usecase

import (
	"fmt"
	"strings"

	"github.com/fandbgo/travel-concierge/internal/core/domain"
)

// ResponseGenerator composes the structured, human-readable answer for a
// ranked result list. One composer per intent, registered in a table built
// at construction; unmapped intents fall through to the default composer.
type ResponseGenerator struct {
	composers map[domain.Intent]composerFunc
}

type composerFunc func(results []domain.SearchResult, reqCtx *domain.RequestContext) composed

type composed struct {
	explanation string
	metadata    map[string]any
}

func NewResponseGenerator() *ResponseGenerator {
	g := &ResponseGenerator{}
	g.composers = map[domain.Intent]composerFunc{
		domain.IntentSearchEstablishments:  g.composeSearch,
		domain.IntentGetRecommendations:    g.composeRecommendation,
		domain.IntentCompareEstablishments: g.composeComparison,
		domain.IntentGetDetails:            g.composeDetails,
		domain.IntentBookingInquiry:        g.composeBooking,
		domain.IntentPriceInquiry:          g.composePrice,
		domain.IntentAvailabilityCheck:     g.composeAvailability,
	}
	return g
}

// Generate dispatches to the intent's composer and attaches confidence and
// follow-up suggestions. Success mirrors whether anything was found.
func (g *ResponseGenerator) Generate(
	results []domain.SearchResult,
	intent domain.Intent,
	strategy domain.Strategy,
	elapsedSeconds float64,
	reqCtx *domain.RequestContext,
) domain.AgentResponse {
	composer, ok := g.composers[intent]
	if !ok {
		composer = g.composeDefault
	}
	content := composer(results, reqCtx)

	return domain.AgentResponse{
		Success:        len(results) > 0,
		Results:        results,
		Intent:         intent,
		StrategyUsed:   strategy,
		Explanation:    content.explanation,
		Suggestions:    g.suggest(results),
		Confidence:     resultConfidence(results),
		ProcessingTime: elapsedSeconds,
		Metadata:       content.metadata,
	}
}

// resultConfidence: up to 0.6 from result count, up to 0.4 from the average
// relevance score; zero when nothing matched.
func resultConfidence(results []domain.SearchResult) float64 {
	if len(results) == 0 {
		return 0
	}
	base := float64(len(results)) / 5.0
	if base > 0.6 {
		base = 0.6
	}
	var sum float64
	for _, r := range results {
		sum += r.RelevanceScore
	}
	confidence := base + (sum/float64(len(results)))*0.4
	if confidence > 1.0 {
		confidence = 1.0
	}
	if confidence < 0 {
		confidence = 0
	}
	return confidence
}

func (g *ResponseGenerator) suggest(results []domain.SearchResult) []string {
	var suggestions []string
	switch {
	case len(results) == 0:
		suggestions = append(suggestions,
			"Bạn có thể thử mở rộng tiêu chí tìm kiếm",
			"Hãy cung cấp thêm thông tin về sở thích của bạn",
			"Thử tìm kiếm với từ khóa khác",
		)
	case len(results) == 1:
		suggestions = append(suggestions,
			"Bạn có muốn xem thông tin chi tiết không?",
			"Tôi có thể giúp bạn so sánh với các lựa chọn khác",
			"Bạn có cần hỗ trợ đặt phòng không?",
		)
	case len(results) < 5:
		suggestions = append(suggestions,
			"Bạn có muốn xem thêm lựa chọn không?",
			"Tôi có thể gợi ý các cơ sở tương tự",
			"Bạn có cần hỗ trợ đặt phòng không?",
		)
	default:
		suggestions = append(suggestions,
			"Bạn có cần hỗ trợ đặt phòng không?",
			"Tôi có thể cung cấp thông tin liên hệ",
		)
	}
	if len(suggestions) > 3 {
		suggestions = suggestions[:3]
	}
	return suggestions
}

func contextCity(reqCtx *domain.RequestContext) string {
	if reqCtx != nil && reqCtx.City != "" {
		return reqCtx.City
	}
	return "không xác định"
}

func (g *ResponseGenerator) composeSearch(results []domain.SearchResult, reqCtx *domain.RequestContext) composed {
	if len(results) == 0 {
		return composed{
			explanation: "Không tìm thấy cơ sở nào phù hợp với yêu cầu của bạn. Bạn có thể thử mở rộng tiêu chí tìm kiếm.",
			metadata:    map[string]any{"result_count": 0},
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Tôi đã tìm thấy %d cơ sở phù hợp ở %s:\n\n", len(results), contextCity(reqCtx))

	for i, r := range topN(results, 5) {
		fmt.Fprintf(&b, "%d. **%s** (Độ phù hợp: %.1f%%)\n", i+1, r.Name, r.RelevanceScore*100)
		if price, ok := metaInt(r.Metadata, "price_range"); ok {
			fmt.Fprintf(&b, "   💰 Giá: %s\n", formatPrice(price))
		}
		if rating, ok := metaFloat(r.Metadata, "rating"); ok {
			fmt.Fprintf(&b, "   ⭐ Đánh giá: %.1f/5\n", rating)
		}
		if amenities := metaStrings(r.Metadata, "amenities"); len(amenities) > 0 {
			if len(amenities) > 3 {
				amenities = amenities[:3]
			}
			fmt.Fprintf(&b, "   🏨 Tiện ích: %s\n", strings.Join(amenities, ", "))
		}
		fmt.Fprintf(&b, "   📍 Địa chỉ: %s\n\n", metaString(r.Metadata, "address", "Không có thông tin"))
	}

	if len(results) > 5 {
		fmt.Fprintf(&b, "... và %d cơ sở khác.", len(results)-5)
	}

	var avg float64
	for _, r := range results {
		avg += r.RelevanceScore
	}
	avg /= float64(len(results))

	return composed{
		explanation: b.String(),
		metadata: map[string]any{
			"result_count":  len(results),
			"top_score":     results[0].RelevanceScore,
			"average_score": avg,
		},
	}
}

func (g *ResponseGenerator) composeRecommendation(results []domain.SearchResult, reqCtx *domain.RequestContext) composed {
	if len(results) == 0 {
		return composed{
			explanation: "Tôi chưa thể đưa ra gợi ý cụ thể. Bạn có thể cung cấp thêm thông tin về sở thích và ngân sách không?",
			metadata:    map[string]any{"result_count": 0},
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Dựa trên sở thích của bạn, tôi gợi ý %d cơ sở tốt nhất ở %s:\n\n", len(results), contextCity(reqCtx))

	for _, r := range topN(results, 3) {
		fmt.Fprintf(&b, "🥇 **%s** - Lựa chọn hàng đầu (%.1f%%)\n", r.Name, r.RelevanceScore*100)
		fmt.Fprintf(&b, "   %s\n\n", truncate(metaString(r.Metadata, "description", "Mô tả không có sẵn"), 100))
	}
	if len(results) > 3 {
		fmt.Fprintf(&b, "Ngoài ra, bạn cũng có thể xem xét %d lựa chọn khác.", len(results)-3)
	}

	level := "medium"
	if len(results) >= 3 {
		level = "high"
	}
	return composed{
		explanation: b.String(),
		metadata: map[string]any{
			"result_count":        len(results),
			"recommendation_type": "top_rated",
			"confidence_level":    level,
		},
	}
}

// composeComparison renders a fixed-criteria table across up to three
// candidates; fewer than two results yields a clarification request.
func (g *ResponseGenerator) composeComparison(results []domain.SearchResult, _ *domain.RequestContext) composed {
	if len(results) < 2 {
		return composed{
			explanation: "Để so sánh, tôi cần ít nhất 2 cơ sở. Bạn có thể chỉ định cụ thể cơ sở nào muốn so sánh không?",
			metadata:    map[string]any{"result_count": len(results)},
		}
	}

	candidates := topN(results, 3)
	criteria := []string{"rating", "price_range", "amenities", "location"}

	var b strings.Builder
	b.WriteString("Đây là bảng so sánh chi tiết:\n\n")
	b.WriteString("| Tiêu chí |")
	for _, r := range candidates {
		b.WriteString(" " + r.Name + " |")
	}
	b.WriteString("\n|----------|")
	for range candidates {
		b.WriteString("---|")
	}
	b.WriteString("\n")

	for _, criterion := range criteria {
		fmt.Fprintf(&b, "| %s |", capitalize(criterion))
		for _, r := range candidates {
			b.WriteString(" " + comparisonCell(r.Metadata, criterion) + " |")
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "\n**Kết luận:** Dựa trên điểm số phù hợp, %s có vẻ phù hợp nhất với yêu cầu của bạn.", results[0].Name)

	return composed{
		explanation: b.String(),
		metadata: map[string]any{
			"result_count":        len(results),
			"comparison_criteria": criteria,
			"top_choice":          results[0].Name,
		},
	}
}

func comparisonCell(meta map[string]any, criterion string) string {
	value, ok := meta[criterion]
	if !ok {
		return "N/A"
	}
	switch v := value.(type) {
	case []string:
		if len(v) == 0 {
			return "N/A"
		}
		if len(v) > 2 {
			v = v[:2]
		}
		return strings.Join(v, ", ")
	case []any:
		parts := make([]string, 0, 2)
		for _, item := range v {
			if s, ok := item.(string); ok {
				parts = append(parts, s)
			}
			if len(parts) == 2 {
				break
			}
		}
		if len(parts) == 0 {
			return "N/A"
		}
		return strings.Join(parts, ", ")
	default:
		return fmt.Sprintf("%v", v)
	}
}

func (g *ResponseGenerator) composeDetails(results []domain.SearchResult, _ *domain.RequestContext) composed {
	if len(results) == 0 {
		return composed{
			explanation: "Không tìm thấy thông tin chi tiết. Bạn có thể cung cấp tên cụ thể của cơ sở không?",
			metadata:    map[string]any{"result_count": 0},
		}
	}

	r := results[0]
	meta := r.Metadata

	var b strings.Builder
	fmt.Fprintf(&b, "**%s** - Thông tin chi tiết:\n\n", r.Name)
	if address := metaString(meta, "address", ""); address != "" {
		fmt.Fprintf(&b, "📍 **Địa chỉ:** %s\n", address)
	}
	if phone := metaString(meta, "phone", ""); phone != "" {
		fmt.Fprintf(&b, "📞 **Điện thoại:** %s\n", phone)
	}
	if website := metaString(meta, "website", ""); website != "" {
		fmt.Fprintf(&b, "🌐 **Website:** %s\n", website)
	}
	if rating, ok := metaFloat(meta, "rating"); ok {
		fmt.Fprintf(&b, "⭐ **Đánh giá:** %.1f/5\n", rating)
	}
	if price, ok := metaInt(meta, "price_range"); ok {
		fmt.Fprintf(&b, "💰 **Khoảng giá:** %s\n", formatPrice(price))
	}
	if amenities := metaStrings(meta, "amenities"); len(amenities) > 0 {
		fmt.Fprintf(&b, "🏨 **Tiện ích:** %s\n", strings.Join(amenities, ", "))
	}
	if description := metaString(meta, "description", ""); description != "" {
		fmt.Fprintf(&b, "\n📋 **Mô tả:** %s\n", description)
	}

	return composed{
		explanation: b.String(),
		metadata: map[string]any{
			"result_count":       1,
			"establishment_name": r.Name,
			"has_full_info":      metaString(meta, "address", "") != "" && metaString(meta, "phone", "") != "",
		},
	}
}

func (g *ResponseGenerator) composeBooking(results []domain.SearchResult, _ *domain.RequestContext) composed {
	if len(results) == 0 {
		return composed{
			explanation: "Không tìm thấy cơ sở phù hợp để đặt phòng. Bạn có thể thử tìm kiếm với tiêu chí khác không?",
			metadata:    map[string]any{"result_count": 0},
		}
	}

	r := results[0]
	meta := r.Metadata

	var b strings.Builder
	fmt.Fprintf(&b, "**%s** - Thông tin đặt phòng:\n\n", r.Name)
	if availability := metaString(meta, "availability", ""); availability != "" {
		fmt.Fprintf(&b, "✅ **Tình trạng:** %s\n", availability)
	} else {
		b.WriteString("📞 **Để kiểm tra phòng trống, vui lòng liên hệ trực tiếp:**\n")
	}
	if phone := metaString(meta, "phone", ""); phone != "" {
		fmt.Fprintf(&b, "   📞 %s\n", phone)
	}
	if email := metaString(meta, "email", ""); email != "" {
		fmt.Fprintf(&b, "   📧 %s\n", email)
	}
	if price, ok := metaInt(meta, "price_range"); ok {
		fmt.Fprintf(&b, "\n💰 **Khoảng giá:** %s\n", formatPrice(price))
	}
	b.WriteString("\n📋 **Hướng dẫn đặt phòng:**\n")
	b.WriteString("1. Liên hệ trực tiếp để kiểm tra phòng trống\n")
	b.WriteString("2. Xác nhận giá và điều kiện\n")
	b.WriteString("3. Cung cấp thông tin cá nhân\n")
	b.WriteString("4. Thanh toán theo hướng dẫn\n")

	return composed{
		explanation: b.String(),
		metadata: map[string]any{
			"result_count":     1,
			"has_contact_info": metaString(meta, "phone", "") != "" || metaString(meta, "email", "") != "",
			"booking_ready":    metaString(meta, "availability", "") != "",
		},
	}
}

func (g *ResponseGenerator) composePrice(results []domain.SearchResult, _ *domain.RequestContext) composed {
	if len(results) == 0 {
		return composed{
			explanation: "Không tìm thấy thông tin giá. Bạn có thể cung cấp tên cụ thể của cơ sở không?",
			metadata:    map[string]any{"result_count": 0},
		}
	}

	var b strings.Builder
	b.WriteString("**Thông tin giá:**\n\n")
	priceKnown := false
	for _, r := range topN(results, 3) {
		fmt.Fprintf(&b, "🏨 **%s**\n", r.Name)
		if price, ok := metaInt(r.Metadata, "price_range"); ok {
			fmt.Fprintf(&b, "   💰 %s\n", formatPrice(price))
			priceKnown = true
		} else {
			b.WriteString("   💰 Giá chưa cập nhật\n")
		}
		if rating, ok := metaFloat(r.Metadata, "rating"); ok {
			fmt.Fprintf(&b, "   ⭐ %.1f/5\n", rating)
		}
		b.WriteString("\n")
	}
	b.WriteString("💡 **Lưu ý:** Giá có thể thay đổi tùy theo thời điểm và loại phòng. Vui lòng liên hệ trực tiếp để có thông tin chính xác nhất.")

	return composed{
		explanation: b.String(),
		metadata: map[string]any{
			"result_count":         len(results),
			"price_info_available": priceKnown,
		},
	}
}

func (g *ResponseGenerator) composeAvailability(results []domain.SearchResult, _ *domain.RequestContext) composed {
	if len(results) == 0 {
		return composed{
			explanation: "Không tìm thấy thông tin về tình trạng phòng. Bạn có thể cung cấp tên cụ thể của cơ sở không?",
			metadata:    map[string]any{"result_count": 0},
		}
	}

	var b strings.Builder
	b.WriteString("**Tình trạng phòng:**\n\n")
	availabilityKnown := false
	for _, r := range topN(results, 3) {
		fmt.Fprintf(&b, "🏨 **%s**\n", r.Name)
		if availability := metaString(r.Metadata, "availability", ""); availability != "" {
			fmt.Fprintf(&b, "   ✅ %s\n", availability)
			availabilityKnown = true
		} else {
			b.WriteString("   📞 Cần liên hệ để kiểm tra\n")
		}
		if phone := metaString(r.Metadata, "phone", ""); phone != "" {
			fmt.Fprintf(&b, "   📞 %s\n", phone)
		}
		b.WriteString("\n")
	}
	b.WriteString("💡 **Gợi ý:** Để có thông tin chính xác nhất, bạn nên liên hệ trực tiếp với cơ sở.")

	return composed{
		explanation: b.String(),
		metadata: map[string]any{
			"result_count":                len(results),
			"availability_info_available": availabilityKnown,
		},
	}
}

func (g *ResponseGenerator) composeDefault(results []domain.SearchResult, _ *domain.RequestContext) composed {
	if len(results) == 0 {
		return composed{
			explanation: "Tôi chưa hiểu rõ yêu cầu của bạn. Bạn có thể diễn đạt cụ thể hơn không?",
			metadata:    map[string]any{"result_count": 0},
		}
	}
	return composed{
		explanation: fmt.Sprintf("Tôi đã tìm thấy %d kết quả phù hợp với yêu cầu của bạn.", len(results)),
		metadata:    map[string]any{"result_count": len(results)},
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func topN(results []domain.SearchResult, n int) []domain.SearchResult {
	if len(results) <= n {
		return results
	}
	return results[:n]
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}

func metaString(meta map[string]any, key, fallback string) string {
	if s, ok := meta[key].(string); ok && s != "" {
		return s
	}
	return fallback
}

func metaInt(meta map[string]any, key string) (int, bool) {
	switch v := meta[key].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	}
	return 0, false
}

func metaFloat(meta map[string]any, key string) (float64, bool) {
	switch v := meta[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	}
	return 0, false
}

func metaStrings(meta map[string]any, key string) []string {
	switch v := meta[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
