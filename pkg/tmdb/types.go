package tmdb

import "time"

// Genre is a genre dictionary entry.
type Genre struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Result is one search result row. Movie results carry Title and
// ReleaseDate; TV results carry Name and FirstAirDate.
type Result struct {
	ID               int64   `json:"id"`
	Title            string  `json:"title"`
	Name             string  `json:"name"`
	OriginalTitle    string  `json:"original_title"`
	OriginalName     string  `json:"original_name"`
	ReleaseDate      string  `json:"release_date"`
	FirstAirDate     string  `json:"first_air_date"`
	Overview         string  `json:"overview"`
	Popularity       float64 `json:"popularity"`
	VoteAverage      float64 `json:"vote_average"`
	VoteCount        int64   `json:"vote_count"`
	PosterPath       string  `json:"poster_path"`
	BackdropPath     string  `json:"backdrop_path"`
	GenreIDs         []int64 `json:"genre_ids"`
	OriginalLanguage string  `json:"original_language"`
}

// DisplayTitle returns the movie title or TV name, whichever is set.
func (r *Result) DisplayTitle() string {
	if r.Title != "" {
		return r.Title
	}
	return r.Name
}

// Year extracts the release/first-air year, zero when absent.
func (r *Result) Year() int {
	date := r.ReleaseDate
	if date == "" {
		date = r.FirstAirDate
	}
	if len(date) < 4 {
		return 0
	}
	t, err := time.Parse("2006-01-02", date)
	if err != nil {
		return 0
	}
	return t.Year()
}

// SearchResponse is a paged search result document.
type SearchResponse struct {
	Page         int      `json:"page"`
	Results      []Result `json:"results"`
	TotalPages   int      `json:"total_pages"`
	TotalResults int      `json:"total_results"`
}

// CastMember is one credited performer.
type CastMember struct {
	Name      string `json:"name"`
	Character string `json:"character"`
	Order     int    `json:"order"`
}

// Detail is a hydrated title document. Both movie and TV shapes decode
// into it; absent fields stay zero.
type Detail struct {
	ID               int64   `json:"id"`
	Title            string  `json:"title"`
	Name             string  `json:"name"`
	ReleaseDate      string  `json:"release_date"`
	FirstAirDate     string  `json:"first_air_date"`
	Overview         string  `json:"overview"`
	PosterPath       string  `json:"poster_path"`
	BackdropPath     string  `json:"backdrop_path"`
	Popularity       float64 `json:"popularity"`
	VoteAverage      float64 `json:"vote_average"`
	VoteCount        int64   `json:"vote_count"`
	Genres           []Genre `json:"genres"`
	OriginalLanguage string  `json:"original_language"`
	Credits          struct {
		Cast []CastMember `json:"cast"`
	} `json:"credits"`
}

// DisplayTitle returns the movie title or TV name, whichever is set.
func (d *Detail) DisplayTitle() string {
	if d.Title != "" {
		return d.Title
	}
	return d.Name
}

// ReleaseTime parses the release or first-air date, tolerating absence.
func (d *Detail) ReleaseTime() *time.Time {
	date := d.ReleaseDate
	if date == "" {
		date = d.FirstAirDate
	}
	if date == "" {
		return nil
	}
	t, err := time.Parse("2006-01-02", date)
	if err != nil {
		return nil
	}
	return &t
}

// GenreNames returns the genre names in document order.
func (d *Detail) GenreNames() []string {
	if len(d.Genres) == 0 {
		return nil
	}
	names := make([]string, 0, len(d.Genres))
	for _, g := range d.Genres {
		names = append(names, g.Name)
	}
	return names
}

// TopCast returns up to n cast member names in billing order.
func (d *Detail) TopCast(n int) []string {
	cast := d.Credits.Cast
	if len(cast) == 0 {
		return nil
	}
	if n > len(cast) {
		n = len(cast)
	}
	names := make([]string, 0, n)
	for _, m := range cast[:n] {
		names = append(names, m.Name)
	}
	return names
}
