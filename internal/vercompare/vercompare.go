// Package vercompare implements the "natural sort" version comparison used
// by the upgrade operation, by remove when picking a default version, and by
// the database's ordering of installed versions. A version that parses as valid semver is compared via
// github.com/Masterminds/semver/v3 (correctly ordering pre-release and
// build metadata); anything else falls back to a numeric-run-aware
// lexicographic comparison.
package vercompare

import (
	"sort"
	"strconv"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// Compare returns -1, 0, or 1 if a is less than, equal to, or greater than
// b under natural-sort semantics.
func Compare(a, b string) int {
	if a == b {
		return 0
	}

	sa, erra := semver.NewVersion(a)
	sb, errb := semver.NewVersion(b)
	if erra == nil && errb == nil {
		return sa.Compare(sb)
	}

	return compareNatural(a, b)
}

// SortDescending returns a new slice of versions sorted latest-first.
func SortDescending(versions []string) []string {
	if len(versions) == 0 {
		return versions
	}
	out := make([]string, len(versions))
	copy(out, versions)
	sort.Slice(out, func(i, j int) bool {
		return Compare(out[i], out[j]) > 0
	})
	return out
}

// compareNatural splits each version into runs of digits and non-digits and
// compares run-by-run: digit runs compare numerically, everything else
// compares byte-wise. This handles calver (2024.01.15), dotted triples
// (12.2.0) and ad-hoc suffixes (1.0-rc1) without a format-specific parser.
func compareNatural(a, b string) int {
	ta := tokenize(a)
	tb := tokenize(b)

	for i := 0; i < len(ta) && i < len(tb); i++ {
		if c := compareToken(ta[i], tb[i]); c != 0 {
			return c
		}
	}
	switch {
	case len(ta) < len(tb):
		return -1
	case len(ta) > len(tb):
		return 1
	default:
		return 0
	}
}

type token struct {
	isDigits bool
	text     string
}

func tokenize(s string) []token {
	var tokens []token
	var cur strings.Builder
	curIsDigit := false
	started := false

	flush := func() {
		if cur.Len() > 0 {
			tokens = append(tokens, token{isDigits: curIsDigit, text: cur.String()})
			cur.Reset()
		}
	}

	for _, r := range s {
		isDigit := r >= '0' && r <= '9'
		if started && isDigit != curIsDigit {
			flush()
		}
		cur.WriteRune(r)
		curIsDigit = isDigit
		started = true
	}
	flush()
	return tokens
}

func compareToken(a, b token) int {
	if a.isDigits && b.isDigits {
		na, erra := strconv.ParseUint(a.text, 10, 64)
		nb, errb := strconv.ParseUint(b.text, 10, 64)
		if erra == nil && errb == nil {
			switch {
			case na < nb:
				return -1
			case na > nb:
				return 1
			default:
				return 0
			}
		}
	}
	return strings.Compare(a.text, b.text)
}
