package models

import (
	"regexp"
	"strings"
)

// Direction tags attached to findings so triage can tell undercharge from overcharge.
const (
	TagCardLower  = "[CARD_LOWER]"
	TagCardHigher = "[CARD_HIGHER]"
)

// priceToken matches one displayed amount. Thousands groups must be exactly three
// digits so that free text like "2024 52.99" is not read as a single number.
var priceToken = regexp.MustCompile(`\d{1,3}(?:[.,'\x{00a0}\x{202f} ]\d{3})+(?:[.,]\d{1,2})?|\d+(?:[.,]\d{1,2})?`)

// NormalizePrice converts a displayed price into a canonical "major.minor" token.
//
// Only the part before the first "/" is considered, so "$52.99/mo" and "$52.99"
// normalize identically. Currency symbols, thousands separators (",", ".", "'",
// space) and locale decimal conventions are dropped: "$1,234.50", "1.234,50 €"
// and "1234.50" all become "1234.50". Input without digits yields "".
func NormalizePrice(raw string) string {
	head, _, _ := strings.Cut(raw, "/")
	token := priceToken.FindString(head)
	if token == "" {
		return ""
	}
	return canonicalAmount(token)
}

// canonicalAmount rewrites a matched price token as integer digits, a dot and
// exactly two minor digits.
func canonicalAmount(token string) string {
	major, minor := token, ""
	if i := strings.LastIndexAny(token, ".,"); i >= 0 {
		if tail := token[i+1:]; len(tail) == 1 || len(tail) == 2 {
			major, minor = token[:i], tail
		}
	}

	var digits strings.Builder
	for _, r := range major {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	intPart := strings.TrimLeft(digits.String(), "0")
	if intPart == "" {
		intPart = "0"
	}
	for len(minor) < 2 {
		minor += "0"
	}
	return intPart + "." + minor
}

// PricesEqual reports whether two displayed prices have the same magnitude.
// A missing price never equals anything, including another missing price.
func PricesEqual(a, b string) bool {
	na := NormalizePrice(a)
	return na != "" && na == NormalizePrice(b)
}

// ComparePrices compares two displayed prices numerically. ok is false when
// either side has no price.
func ComparePrices(a, b string) (cmp int, ok bool) {
	na, nb := NormalizePrice(a), NormalizePrice(b)
	if na == "" || nb == "" {
		return 0, false
	}
	ai, af, _ := strings.Cut(na, ".")
	bi, bf, _ := strings.Cut(nb, ".")
	if len(ai) != len(bi) {
		if len(ai) < len(bi) {
			return -1, true
		}
		return 1, true
	}
	return strings.Compare(ai+af, bi+bf), true
}

// PriceDirection returns TagCardLower when the card-side price is below the cart
// price, TagCardHigher when above, and "" when equal or not comparable.
func PriceDirection(card, cart string) string {
	cmp, ok := ComparePrices(card, cart)
	if !ok {
		return ""
	}
	switch {
	case cmp < 0:
		return TagCardLower
	case cmp > 0:
		return TagCardHigher
	default:
		return ""
	}
}

// ExtractPrices returns every amount-looking token in free text, in order.
func ExtractPrices(text string) []string {
	return priceToken.FindAllString(text, -1)
}

// TextContainsPrice reports whether page text shows the given price. The raw
// price (before any "/" suffix) may appear verbatim, or any amount in the text
// may normalize to the same value.
func TextContainsPrice(text, raw string) bool {
	want := NormalizePrice(raw)
	if want == "" {
		return false
	}
	head, _, _ := strings.Cut(raw, "/")
	if head = strings.TrimSpace(head); head != "" && strings.Contains(text, head) {
		return true
	}
	for _, token := range ExtractPrices(text) {
		if canonicalAmount(token) == want {
			return true
		}
	}
	return false
}
