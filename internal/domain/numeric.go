package domain

import (
	"math"
	"strconv"
	"strings"
	"unicode"
)

// ParseNumber reads a human-formatted number and returns NaN when nothing
// numeric remains. It accepts both "1,234.5" and "1.234,5": when both
// separators appear the last one is the decimal point; a single comma alone
// is a decimal comma; repeated separators of one kind are thousands groups.
// Exponent notation such as "1e-05" is kept.
func ParseNumber(s string) float64 {
	s = strings.Map(func(r rune) rune {
		if r == '\uFEFF' || r == '\u00A0' || unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
	if s == "" {
		return math.NaN()
	}

	commas := strings.Count(s, ",")
	dots := strings.Count(s, ".")
	switch {
	case commas > 0 && dots > 0:
		if strings.LastIndex(s, ",") > strings.LastIndex(s, ".") {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.ReplaceAll(s, ",", ".")
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case commas > 1:
		s = strings.ReplaceAll(s, ",", "")
	case commas == 1:
		s = strings.ReplaceAll(s, ",", ".")
	case dots > 1:
		s = strings.ReplaceAll(s, ".", "")
	}

	f, err := strconv.ParseFloat(keepNumericExp(s), 64)
	if err != nil {
		return math.NaN()
	}
	return f
}

// coerceValue strips everything but digits, sign, and decimal point. Anything
// unparsable, including non-finite results, becomes 0.
func coerceValue(s string) float64 {
	f, err := strconv.ParseFloat(keepNumeric(s), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

func keepNumeric(s string) string {
	return strings.Map(func(r rune) rune {
		if (r >= '0' && r <= '9') || r == '.' || r == '-' || r == '+' {
			return r
		}
		return -1
	}, s)
}

// keepNumericExp is keepNumeric that also keeps an e or E sitting between a
// mantissa digit and an exponent digit or sign, so unit letters still drop.
func keepNumericExp(s string) string {
	rs := []rune(s)
	var b strings.Builder
	for i, r := range rs {
		switch {
		case (r >= '0' && r <= '9') || r == '.' || r == '-' || r == '+':
			b.WriteRune(r)
		case (r == 'e' || r == 'E') && isExponent(rs, i):
			b.WriteRune(r)
		}
	}
	return b.String()
}

func isExponent(rs []rune, i int) bool {
	if i == 0 || !(isDigit(rs[i-1]) || rs[i-1] == '.') || i+1 >= len(rs) {
		return false
	}
	next := rs[i+1]
	if (next == '-' || next == '+') && i+2 < len(rs) {
		next = rs[i+2]
	}
	return isDigit(next)
}

func isDigit(r rune) bool { return r >= '0' && r <= '9' }

// ValidYear reports whether year fits the four-digit form parseYear accepts.
func ValidYear(year int) bool {
	return year >= 0 && year <= 9999
}

// parseYear takes the first run of digits and accepts it only as a four-digit year.
func parseYear(s string) (int, bool) {
	start := strings.IndexAny(s, "0123456789")
	if start < 0 {
		return 0, false
	}
	end := start
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end-start != 4 {
		return 0, false
	}
	year, err := strconv.Atoi(s[start:end])
	if err != nil {
		return 0, false
	}
	return year, true
}
