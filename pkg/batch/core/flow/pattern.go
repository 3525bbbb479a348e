package flow

import "strings"

// Match reports whether candidate matches the glob pattern as a whole.
// '*' matches any run of characters (including none), '?' matches exactly one character,
// every other character matches itself. Matching is case-sensitive.
func Match(pattern, candidate string) bool {
	p := []rune(pattern)
	s := []rune(candidate)
	pi, si := 0, 0
	star, mark := -1, 0
	for si < len(s) {
		switch {
		case pi < len(p) && p[pi] == '*':
			star, mark = pi, si
			pi++
		case pi < len(p) && (p[pi] == '?' || p[pi] == s[si]):
			pi++
			si++
		case star >= 0:
			// Let the last '*' absorb one more character and retry.
			mark++
			pi, si = star+1, mark
		default:
			return false
		}
	}
	for pi < len(p) && p[pi] == '*' {
		pi++
	}
	return pi == len(p)
}

// ComparePatterns orders patterns from most to least specific: fewer '*' first,
// then fewer '?', then lexicographically.
func ComparePatterns(a, b string) int {
	if a == b {
		return 0
	}
	if d := strings.Count(a, "*") - strings.Count(b, "*"); d != 0 {
		return sign(d)
	}
	if d := strings.Count(a, "?") - strings.Count(b, "?"); d != 0 {
		return sign(d)
	}
	return strings.Compare(a, b)
}

func sign(d int) int {
	if d < 0 {
		return -1
	}
	return 1
}
