// Package natsort orders strings the way readers expect page files to be
// ordered: digit runs compare by numeric value and everything else compares
// case-insensitively, so "page2.webp" sorts before "page10.webp".
package natsort

import (
	"sort"
	"strings"
)

// Compare returns -1, 0, or 1 ordering a before, equal to, or after b.
// Digit runs are compared as unbounded integers (leading zeros ignored),
// other runs as lowercased text. A digit run sorts before text at the same
// position.
func Compare(a, b string) int {
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		aTok, aNum := nextToken(a, &i)
		bTok, bNum := nextToken(b, &j)

		switch {
		case aNum && bNum:
			if c := compareDigits(aTok, bTok); c != 0 {
				return c
			}
		case aNum:
			return -1
		case bNum:
			return 1
		default:
			aTok = strings.ToLower(aTok)
			bTok = strings.ToLower(bTok)
			if aTok != bTok {
				if aTok < bTok {
					return -1
				}
				return 1
			}
		}
	}

	switch {
	case i < len(a):
		return 1
	case j < len(b):
		return -1
	}
	return 0
}

// Less reports whether a orders before b.
func Less(a, b string) bool {
	return Compare(a, b) < 0
}

// Strings sorts list in place. The sort is stable, so entries whose keys
// compare equal (e.g. "02.png" and "2.png") keep their incoming order.
func Strings(list []string) {
	sort.SliceStable(list, func(i, j int) bool {
		return Compare(list[i], list[j]) < 0
	})
}

// nextToken returns the run starting at *pos and advances the cursor. The
// run is either all ASCII digits or all non-digits.
func nextToken(s string, pos *int) (string, bool) {
	start := *pos
	digits := isDigit(s[start])
	end := start + 1
	for end < len(s) && isDigit(s[end]) == digits {
		end++
	}
	*pos = end
	return s[start:end], digits
}

// compareDigits compares two digit runs numerically without converting
// them, so page numbers longer than an int64 still order correctly.
func compareDigits(a, b string) int {
	a = strings.TrimLeft(a, "0")
	b = strings.TrimLeft(b, "0")
	if len(a) != len(b) {
		if len(a) < len(b) {
			return -1
		}
		return 1
	}
	return strings.Compare(a, b)
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
