// Package matcher fuzzy-matches provider channel names against guide
// channel display names.
package matcher

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"
)

// DefaultMinScore is the similarity floor below which a candidate is not
// considered a match.
const DefaultMinScore = 0.72

var (
	foldCaser    = cases.Fold()
	nonAlnumRe   = regexp.MustCompile(`[^a-z0-9]+`)
	whitespaceRe = regexp.MustCompile(`\s+`)
)

// noiseTokens are quality and region markers that pollute channel names.
// Replacement is ordered and substring-based, matching how names like
// "ESPN HD" and "CNN USA 4K" are typically decorated.
var noiseTokens = []string{"hd", "fhd", "uhd", "4k", "us", "usa", "tv"}

// Normalize lowercases a channel name, blanks out noise tokens and
// non-alphanumerics, and collapses runs of whitespace.
func Normalize(name string) string {
	s := strings.TrimSpace(foldCaser.String(name))
	for _, tok := range noiseTokens {
		s = strings.ReplaceAll(s, tok, " ")
	}
	s = nonAlnumRe.ReplaceAllString(s, " ")
	s = whitespaceRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// Ratio is a similarity measure over [0,1]: twice the number of matched
// characters across the longest matching blocks, divided by the combined
// length. Empty input scores zero.
func Ratio(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	ra, rb := []rune(a), []rune(b)
	matched := matchedRunes(ra, rb)
	return 2 * float64(matched) / float64(len(ra)+len(rb))
}

// Candidate is one guide channel offered to BestMatch.
type Candidate struct {
	ID   string
	Name string
}

// Match is a scored winner.
type Match struct {
	ID    string
	Name  string
	Score float64
}

// BestMatch returns the highest-scoring candidate at or above minScore,
// nil when nothing clears the bar. Names are normalized before scoring.
func BestMatch(name string, candidates []Candidate, minScore float64) *Match {
	n := Normalize(name)
	if n == "" {
		return nil
	}

	var best *Match
	for _, c := range candidates {
		s := Ratio(n, Normalize(c.Name))
		if best == nil || s > best.Score {
			best = &Match{ID: c.ID, Name: c.Name, Score: s}
		}
	}
	if best == nil || best.Score < minScore {
		return nil
	}
	return best
}

// matchedRunes sums the lengths of the longest matching blocks between a
// and b, recursing on the unmatched flanks.
func matchedRunes(a, b []rune) int {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	ai, bi, size := longestMatch(a, b)
	if size == 0 {
		return 0
	}
	total := size
	total += matchedRunes(a[:ai], b[:bi])
	total += matchedRunes(a[ai+size:], b[bi+size:])
	return total
}

// longestMatch finds the longest contiguous matching block, preferring the
// earliest in a, then the earliest in b.
func longestMatch(a, b []rune) (bestA, bestB, bestSize int) {
	b2j := make(map[rune][]int, len(b))
	for j, r := range b {
		b2j[r] = append(b2j[r], j)
	}

	// lengths[j] is the length of the match ending at a[i-1], b[j-1].
	lengths := make(map[int]int)
	for i, r := range a {
		next := make(map[int]int, len(b2j[r]))
		for _, j := range b2j[r] {
			k := lengths[j-1] + 1
			next[j] = k
			if k > bestSize {
				bestA, bestB, bestSize = i-k+1, j-k+1, k
			}
		}
		lengths = next
	}
	return bestA, bestB, bestSize
}
