package filter

import (
	"regexp"
	"strconv"
	"strings"
	"sync"
)

// compareValues orders two cell values. Both sides are compared numerically
// when both parse as numbers, otherwise as strings. Returns -1, 0 or 1.
func compareValues(a, b string) int {
	af, aok := parseNumber(a)
	bf, bok := parseNumber(b)
	if aok && bok {
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		default:
			return 0
		}
	}
	return strings.Compare(a, b)
}

func parseNumber(s string) (float64, bool) {
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

var likeCache sync.Map // pattern -> *regexp.Regexp

// matchLike evaluates a SQL LIKE pattern: % matches any run of characters,
// _ matches exactly one. Matching is case-insensitive.
func matchLike(value, pattern string) bool {
	if re, ok := likeCache.Load(pattern); ok {
		return re.(*regexp.Regexp).MatchString(value)
	}

	var b strings.Builder
	b.WriteString("(?is)^")
	for _, c := range pattern {
		switch c {
		case '%':
			b.WriteString(".*")
		case '_':
			b.WriteString(".")
		default:
			b.WriteString(regexp.QuoteMeta(string(c)))
		}
	}
	b.WriteString("$")

	re, err := regexp.Compile(b.String())
	if err != nil {
		return false
	}
	likeCache.Store(pattern, re)
	return re.MatchString(value)
}
