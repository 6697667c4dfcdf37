// Package metadata provides a client for The Movie Database API.
package metadata

import "strconv"

// Movie represents movie metadata from the provider.
type Movie struct {
	ID               int64   `json:"id"`
	IMDBID           string  `json:"imdb_id,omitempty"` // e.g., "tt0133093"
	Title            string  `json:"title"`
	Overview         string  `json:"overview"`
	ReleaseDate      string  `json:"release_date"` // "2024-03-01"
	OriginalLanguage string  `json:"original_language"`
	PosterPath       string  `json:"poster_path"` // "/abc123.jpg"
	BackdropPath     string  `json:"backdrop_path"`
	Popularity       float64 `json:"popularity"`
	VoteAverage      float64 `json:"vote_average"`
	VoteCount        int     `json:"vote_count"`
	Runtime          int     `json:"runtime"` // minutes
	GenreIDs         []int   `json:"genre_ids"`
}

// Year extracts the year from ReleaseDate.
func (m *Movie) Year() int {
	if len(m.ReleaseDate) < 4 {
		return 0
	}
	year, err := strconv.Atoi(m.ReleaseDate[:4])
	if err != nil {
		return 0
	}
	return year
}

// PosterURL returns the full poster image URL.
// Size can be: w92, w154, w185, w342, w500, w780, original
func (m *Movie) PosterURL(size string) string {
	if m.PosterPath == "" {
		return ""
	}
	return "https://image.tmdb.org/t/p/" + size + m.PosterPath
}

// BackdropURL returns the full backdrop image URL.
func (m *Movie) BackdropURL(size string) string {
	if m.BackdropPath == "" {
		return ""
	}
	return "https://image.tmdb.org/t/p/" + size + m.BackdropPath
}
