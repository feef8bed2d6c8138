package tmdb

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleanTitle(t *testing.T) {
	tests := []struct {
		name      string
		in        string
		wantTitle string
		wantYear  int
	}{
		{"plain", "The Matrix", "The Matrix", 0},
		{"paren year", "The Matrix (1999)", "The Matrix", 1999},
		{"bracket year", "The Matrix [1999]", "The Matrix", 1999},
		{"bare trailing year", "The Matrix 1999", "The Matrix", 1999},
		{"repeated year", "Movie (2025) (2025)", "Movie", 2025},
		{"extension stripped", "Some.Movie.2020.mkv", "Some.Movie.", 2020},
		{"mp4 extension", "Clip.mp4", "Clip", 0},
		{"year out of range low", "Metropolis (1899)", "Metropolis (1899)", 0},
		{"year out of range high", "Future (2101)", "Future (2101)", 0},
		{"whitespace collapsed", "  Spaced    Out  (2021) ", "Spaced Out", 2021},
		{"title that is only a year", "2012", "2012", 0},
		{"bracketed only year kept", "(2012)", "(2012)", 0},
		{"curly year", "Show {2018}", "Show", 2018},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			title, year := CleanTitle(tt.in)
			assert.Equal(t, tt.wantTitle, title)
			assert.Equal(t, tt.wantYear, year)
		})
	}
}

func TestCleanTitleIdempotent(t *testing.T) {
	inputs := []string{
		"The Matrix (1999)",
		"Movie (2025) (2025)",
		"Some.Movie.2020.mkv",
		"Plain Name",
	}
	for _, in := range inputs {
		title1, year1 := CleanTitle(in)
		title2, year2 := CleanTitle(title1)
		assert.Equal(t, title1, title2, in)
		if year2 != 0 {
			assert.Equal(t, year1, year2, in)
		}
	}
}
