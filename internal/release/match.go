package release

import (
	"strings"
	"unicode"
)

// normalizeTitle lowercases and strips everything but letters, digits, and
// single spaces so "Spider-Man" and "spider man" compare equal.
func normalizeTitle(s string) string {
	var b strings.Builder
	lastSpace := true
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastSpace = false
		case !lastSpace:
			b.WriteByte(' ')
			lastSpace = true
		}
	}
	return strings.TrimSpace(b.String())
}

// TitleScore returns the best fuzzy-match score in [0,1] between the
// parsed release title and any of the candidate titles (resolved title,
// alt-language form, aliases).
func TitleScore(parsedTitle string, candidates ...string) float64 {
	normalized := normalizeTitle(parsedTitle)
	if normalized == "" {
		return 0
	}

	best := 0.0
	for _, candidate := range candidates {
		c := normalizeTitle(candidate)
		if c == "" {
			continue
		}
		if score := similarity(normalized, c); score > best {
			best = score
		}
	}
	return best
}

// similarity is 1 - levenshtein/maxLen, with a containment shortcut for
// release titles that append extra tokens after the real title.
func similarity(a, b string) float64 {
	if a == b {
		return 1.0
	}
	if strings.HasPrefix(a, b+" ") || strings.HasPrefix(b, a+" ") {
		return 0.95
	}
	maxLen := len(a)
	if len(b) > maxLen {
		maxLen = len(b)
	}
	if maxLen == 0 {
		return 0
	}
	d := levenshtein(a, b)
	score := 1.0 - float64(d)/float64(maxLen)
	if score < 0 {
		return 0
	}
	return score
}

func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min3(curr[j-1]+1, prev[j]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}
