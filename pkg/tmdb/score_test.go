package tmdb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScoreExactBeatsSubstring(t *testing.T) {
	exact := &Result{Title: "Dune", ReleaseDate: "2021-10-22"}
	substr := &Result{Title: "Dune: Part Two", ReleaseDate: "2024-03-01"}

	se := Score(exact, "Dune", 2021)
	ss := Score(substr, "Dune", 2021)
	assert.Greater(t, se, ss)
}

func TestScoreCaseFolding(t *testing.T) {
	r := &Result{Title: "DUNE"}
	assert.GreaterOrEqual(t, Score(r, "dune", 0), scoreExactTitle)
}

func TestScoreYearProximity(t *testing.T) {
	near := &Result{Title: "Remake", ReleaseDate: "2020-01-01"}
	far := &Result{Title: "Remake", ReleaseDate: "2010-01-01"}
	assert.Greater(t, Score(near, "Remake", 2020), Score(far, "Remake", 2020))

	// Ten or more years away contributes nothing.
	base := &Result{Title: "Remake"}
	assert.Equal(t, Score(base, "Remake", 0)+0, Score(far, "Remake", 2020))
}

func TestScorePopularityAndVotes(t *testing.T) {
	popular := &Result{Title: "Same", Popularity: 50, VoteCount: 1000}
	obscure := &Result{Title: "Same", Popularity: 1, VoteCount: 10}
	assert.Greater(t, Score(popular, "Same", 0), Score(obscure, "Same", 0))
}

func TestPickBest(t *testing.T) {
	assert.Nil(t, PickBest(nil, "x", 0))

	results := []Result{
		{ID: 1, Title: "Other Film", Popularity: 100},
		{ID: 2, Title: "Wanted", ReleaseDate: "2008-06-27", Popularity: 10},
		{ID: 3, Title: "Wanted Again"},
	}
	best := PickBest(results, "Wanted", 2008)
	require.NotNil(t, best)
	assert.Equal(t, int64(2), best.ID)
}

func TestResultYear(t *testing.T) {
	assert.Equal(t, 2021, (&Result{ReleaseDate: "2021-10-22"}).Year())
	assert.Equal(t, 2019, (&Result{FirstAirDate: "2019-04-01"}).Year())
	assert.Zero(t, (&Result{}).Year())
	assert.Zero(t, (&Result{ReleaseDate: "bad"}).Year())
}
