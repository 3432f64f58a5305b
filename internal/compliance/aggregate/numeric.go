package aggregate

import (
	"math"
	"strconv"
	"strings"
	"unicode"
)

// ParseLenient converts an indicator value the way a browser's parseFloat
// does: leading whitespace is skipped and the longest numeric prefix is
// used, so "12 cases" is 12 and "1,000" is 1. Values with no numeric
// prefix, and values that overflow to infinity, count as 0.
func ParseLenient(raw string) float64 {
	s := strings.TrimLeftFunc(raw, unicode.IsSpace)
	prefix := numericPrefix(s)
	if prefix == "" {
		return 0
	}
	f, err := strconv.ParseFloat(prefix, 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return 0
	}
	return f
}

// numericPrefix returns the longest prefix of s of the form
// [+-] digits [. digits] [(e|E) [+-] digits], where at least one digit
// appears in the mantissa.
func numericPrefix(s string) string {
	i := 0
	if i < len(s) && (s[i] == '+' || s[i] == '-') {
		i++
	}
	intDigits := countDigits(s[i:])
	i += intDigits

	fracDigits := 0
	if i < len(s) && s[i] == '.' {
		fracDigits = countDigits(s[i+1:])
		if intDigits > 0 || fracDigits > 0 {
			i += 1 + fracDigits
		}
	}
	if intDigits == 0 && fracDigits == 0 {
		return ""
	}

	if i < len(s) && (s[i] == 'e' || s[i] == 'E') {
		j := i + 1
		if j < len(s) && (s[j] == '+' || s[j] == '-') {
			j++
		}
		if n := countDigits(s[j:]); n > 0 {
			i = j + n
		}
	}
	return s[:i]
}

func countDigits(s string) int {
	n := 0
	for n < len(s) && s[n] >= '0' && s[n] <= '9' {
		n++
	}
	return n
}
