package usecase

import (
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// City recognition works accent-insensitively: input is decomposed, combining
// marks are dropped, and the result is matched against a small alias table.

var cityDisplay = map[string]string{
	"danang":    "Đà Nẵng",
	"hanoi":     "Hà Nội",
	"hochiminh": "Hồ Chí Minh",
	"nhatrang":  "Nha Trang",
	"dalat":     "Đà Lạt",
	"hue":       "Huế",
	"cantho":    "Cần Thơ",
}

var cityAliases = map[string]string{
	"da nang":        "danang",
	"danang":         "danang",
	"dn":             "danang",
	"ha noi":         "hanoi",
	"hanoi":          "hanoi",
	"ho chi minh":    "hochiminh",
	"tp ho chi minh": "hochiminh",
	"tphcm":          "hochiminh",
	"hcm":            "hochiminh",
	"sai gon":        "hochiminh",
	"saigon":         "hochiminh",
	"nha trang":      "nhatrang",
	"nhatrang":       "nhatrang",
	"da lat":         "dalat",
	"dalat":          "dalat",
	"hue":            "hue",
	"can tho":        "cantho",
	"cantho":         "cantho",
}

// aliasesByLength holds alias keys longest-first so "tp ho chi minh" wins
// over "hcm" and short aliases never shadow longer ones.
var aliasesByLength = func() []string {
	keys := make([]string, 0, len(cityAliases))
	for k := range cityAliases {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})
	return keys
}()

var accentStripper = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// stripAccents lowercases and removes Vietnamese diacritics, including the
// stroked đ which does not decompose under NFD.
func stripAccents(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	out, _, err := transform.String(accentStripper, s)
	if err != nil {
		out = s
	}
	out = strings.ToLower(out)
	out = strings.ReplaceAll(out, "đ", "d")
	return out
}

// inferCity returns the display name of the first city alias found in the
// text, or "" when none matches.
func inferCity(text string) string {
	t := stripAccents(text)
	if t == "" {
		return ""
	}
	for _, alias := range aliasesByLength {
		if strings.Contains(t, alias) {
			canonical := cityAliases[alias]
			if display, ok := cityDisplay[canonical]; ok {
				return display
			}
			return canonical
		}
	}
	return ""
}

// normalizeCity maps any known alias or display spelling to the display
// form; unknown names pass through unchanged.
func normalizeCity(name string) string {
	if name == "" {
		return ""
	}
	normalized := stripAccents(name)
	if canonical, ok := cityAliases[normalized]; ok {
		if display, ok := cityDisplay[canonical]; ok {
			return display
		}
		return canonical
	}
	for _, display := range cityDisplay {
		if stripAccents(display) == normalized {
			return display
		}
	}
	return name
}

// isKnownCity reports whether the name resolves against the alias table.
func isKnownCity(name string) bool {
	if name == "" {
		return false
	}
	normalized := stripAccents(name)
	if _, ok := cityAliases[normalized]; ok {
		return true
	}
	for _, display := range cityDisplay {
		if stripAccents(display) == normalized {
			return true
		}
	}
	return false
}
