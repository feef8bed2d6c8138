package tmdb

import (
	"strings"

	"golang.org/x/text/cases"
)

// Scoring weights for candidate selection. Title identity dominates, year
// proximity breaks ties, popularity and vote volume separate remakes.
const (
	scoreExactTitle   = 200.0
	scoreContains     = 80.0
	scoreYearMax      = 60.0
	scoreYearPenalty  = 10.0
	weightPopularity  = 2.0
	weightVoteCount   = 0.02
)

var foldCaser = cases.Fold()

// Score rates how well a search result matches the cleaned query title and
// optional year.
func Score(r *Result, title string, year int) float64 {
	var score float64

	want := foldCaser.String(title)
	for _, candidate := range []string{r.DisplayTitle(), r.OriginalTitle, r.OriginalName} {
		if candidate == "" {
			continue
		}
		got := foldCaser.String(candidate)
		if got == want {
			score += scoreExactTitle
			break
		}
		if want != "" && strings.Contains(got, want) {
			score += scoreContains
			break
		}
	}

	if year > 0 {
		if ry := r.Year(); ry > 0 {
			diff := year - ry
			if diff < 0 {
				diff = -diff
			}
			if s := scoreYearMax - scoreYearPenalty*float64(diff); s > 0 {
				score += s
			}
		}
	}

	score += weightPopularity * r.Popularity
	score += weightVoteCount * float64(r.VoteCount)
	return score
}

// PickBest returns the highest-scoring result, nil for an empty slice.
func PickBest(results []Result, title string, year int) *Result {
	var best *Result
	bestScore := 0.0
	for i := range results {
		s := Score(&results[i], title, year)
		if best == nil || s > bestScore {
			best = &results[i]
			bestScore = s
		}
	}
	return best
}
