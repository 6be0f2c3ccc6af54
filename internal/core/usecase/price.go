package usecase

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Price parsing understands the ways Vietnamese users write amounts:
// "300k", "250 nghìn", "1.2tr", "2 triệu", "500.000đ", "300000 vnd".
// All results are whole VND.

var (
	priceUnitRe    = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*(k|nghin|nghìn|ngan|ngàn|tr|triệu|trieu|m)\b`)
	// RE2 word boundaries are ASCII-only, so a \b after the non-word rune
	// đ never matches. The currency marker is bounded by hand instead.
	priceLiteralRe = regexp.MustCompile(`(\d{1,3}(?:[.\s]\d{3})+|\d+)\s*(đ|vnd)(?:[^\p{L}\p{N}]|$)`)
	priceRangeRe   = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*(k|nghin|nghìn|ngan|ngàn|tr|triệu|trieu|m)\s*(?:-|–|đến|den|to)\s*(\d+(?:\.\d+)?)\s*(k|nghin|nghìn|ngan|ngàn|tr|triệu|trieu|m)`)
)

func unitMultiplier(unit string) int {
	switch unit {
	case "k", "nghin", "nghìn", "ngan", "ngàn":
		return 1_000
	case "tr", "triệu", "trieu", "m":
		return 1_000_000
	}
	return 0
}

// parsePrice extracts a single VND amount from free text, 0 when absent.
func parsePrice(text string) int {
	if text == "" {
		return 0
	}
	t := strings.ToLower(text)
	t = strings.ReplaceAll(t, ",", ".")
	t = strings.ReplaceAll(t, "đ", " đ ")
	t = strings.ReplaceAll(t, "vnd", " vnd ")

	if m := priceUnitRe.FindStringSubmatch(t); m != nil {
		val, err := strconv.ParseFloat(m[1], 64)
		if err == nil {
			if mult := unitMultiplier(m[2]); mult > 0 {
				price := int(math.Round(val * float64(mult)))
				if price > 0 {
					return price
				}
			}
		}
	}

	if m := priceLiteralRe.FindStringSubmatch(t); m != nil {
		num := strings.NewReplacer(".", "", " ", "").Replace(m[1])
		if price, err := strconv.Atoi(num); err == nil && price > 0 {
			return price
		}
	}

	return 0
}

// parsePriceRange extracts "300k-500k" / "1tr đến 2tr" style ranges.
func parsePriceRange(text string) (min, max int, ok bool) {
	if text == "" {
		return 0, 0, false
	}
	m := priceRangeRe.FindStringSubmatch(strings.ToLower(text))
	if m == nil {
		return 0, 0, false
	}
	lo, err1 := strconv.ParseFloat(m[1], 64)
	hi, err2 := strconv.ParseFloat(m[3], 64)
	if err1 != nil || err2 != nil {
		return 0, 0, false
	}
	min = int(math.Round(lo * float64(unitMultiplier(m[2]))))
	max = int(math.Round(hi * float64(unitMultiplier(m[4]))))
	if min <= 0 || max < min {
		return 0, 0, false
	}
	return min, max, true
}

// formatPrice renders a VND amount the way the rest of the response text
// talks about money.
func formatPrice(price int) string {
	switch {
	case price >= 1_000_000:
		return fmt.Sprintf("%d triệu VND", price/1_000_000)
	case price >= 1_000:
		return fmt.Sprintf("%dk VND", price/1_000)
	default:
		return fmt.Sprintf("%d VND", price)
	}
}

// priceCategory tiers an amount for recommendation heuristics.
func priceCategory(price int) string {
	switch {
	case price < 500_000:
		return "budget"
	case price < 1_000_000:
		return "mid-range"
	case price < 2_000_000:
		return "upscale"
	default:
		return "luxury"
	}
}
