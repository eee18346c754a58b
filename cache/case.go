package cache

import (
	"strings"
	"unicode"
)

// toSnake lowercases s and joins its words with '_'. Words break on any rune
// that is not a letter or digit, on lower-to-upper and letter-to-digit
// transitions, and before the last capital of an acronym ("FastAPI" gives
// "fast_api"). The result never holds glob metacharacters.
func toSnake(s string) string {
	runes := []rune(s)
	var b strings.Builder
	b.Grow(len(runes) + len(runes)/2)

	separated := false
	for i, r := range runes {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			separated = true
			continue
		}
		if b.Len() > 0 && (separated || wordBreak(runes, i)) {
			b.WriteByte('_')
		}
		separated = false
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}

func wordBreak(runes []rune, i int) bool {
	prev, r := runes[i-1], runes[i]
	switch {
	case unicode.IsUpper(r):
		if unicode.IsLower(prev) || unicode.IsDigit(prev) {
			return true
		}
		return unicode.IsUpper(prev) && i+1 < len(runes) && unicode.IsLower(runes[i+1])
	case unicode.IsDigit(r):
		return unicode.IsLetter(prev)
	default:
		return false
	}
}
