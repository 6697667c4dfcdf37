// Package library manages acquisition records (movies, contents, subtitles).
package library

import (
	"time"
)

// ContentState tracks where a content item is in the acquisition pipeline.
type ContentState string

const (
	StatePending     ContentState = "pending"
	StateDownloading ContentState = "downloading"
	StateRelocating  ContentState = "relocating"
	StateTranscoding ContentState = "transcoding"
	StateSubtitling  ContentState = "subtitling"
	StateReady       ContentState = "ready"
	StateFailed      ContentState = "failed"
)

// Movie holds metadata fetched from the movie database provider.
type Movie struct {
	ID               int64
	IMDBID           string
	Title            string
	Overview         string
	ReleaseDate      *time.Time
	OriginalLanguage string
	Popularity       float64
	VoteAverage      float64
	PosterURL        string
	PosterURLSmall   string
	BackdropURL      string
	BackdropURLSmall string
	GenreIDs         string
	Duration         int
	RawInfo          string
	IsReady          bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Content represents one acquisition run for a movie.
type Content struct {
	ID                  int64
	MovieID             *int64 // nil until metadata resolves
	Source              string
	State               ContentState
	TitleHint           string // optional title supplied at request time
	IMDBHint            string // optional IMDB id supplied at request time
	FullPath            string
	RelativePath        string
	MainFolder          string
	FileName            string
	FileExtension       string
	SourceFileName      string
	SourceFileExtension string
	Width               int
	Height              int
	Duration            float64 // seconds
	RawInfo             string
	IsReady             bool
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// Subtitle represents a subtitle file on disk, servable as WebVTT.
type Subtitle struct {
	ID           int64
	FullPath     string
	RelativePath string
	FileName     string
	Suffix       string
	LangThree    string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
