package trending

import (
	"strings"
	"unicode"
)

// cleanText normalizes a string for comparison: lowercased, punctuation
// stripped, whitespace collapsed to single spaces.
func cleanText(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	space := false
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if space && b.Len() > 0 {
				b.WriteByte(' ')
			}
			space = false
			b.WriteRune(r)
		default:
			space = true
		}
	}
	return b.String()
}

// Ratio computes sequence similarity in [0,1] as twice the total length of
// matching blocks over the combined length, operating on character
// sequences rather than word tokens. Word-order changes therefore cost
// more than a bag-of-words measure would, which keeps near-verbatim wire
// copy scoring high while loose paraphrases score low. The result does
// not depend on argument order.
func Ratio(a, b string) float64 {
	// Tie-breaking in longestBlock is positional, so the greedy
	// decomposition can differ when the arguments swap. Canonicalize the
	// order first to keep Ratio symmetric.
	if len(b) < len(a) || (len(a) == len(b) && b < a) {
		a, b = b, a
	}
	ra, rb := []rune(a), []rune(b)
	total := len(ra) + len(rb)
	if total == 0 {
		return 1.0
	}
	return 2.0 * float64(matchingLen(ra, rb)) / float64(total)
}

// matchingLen sums the lengths of the matching blocks: find the longest
// common block, then recurse on the pieces to its left and right.
func matchingLen(a, b []rune) int {
	i, j, size := longestBlock(a, b)
	if size == 0 {
		return 0
	}
	return size + matchingLen(a[:i], b[:j]) + matchingLen(a[i+size:], b[j+size:])
}

// longestBlock finds the longest common contiguous block. Ties resolve to
// the earliest position in a, then in b, so results are deterministic.
func longestBlock(a, b []rune) (besti, bestj, size int) {
	if len(a) == 0 || len(b) == 0 {
		return 0, 0, 0
	}
	j2len := make(map[int]int)
	for i := range a {
		next := make(map[int]int)
		for j := range b {
			if a[i] != b[j] {
				continue
			}
			k := j2len[j-1] + 1
			next[j] = k
			if k > size {
				besti, bestj, size = i-k+1, j-k+1, k
			}
		}
		j2len = next
	}
	return besti, bestj, size
}
