package library

// ContentFilter specifies criteria for listing contents.
type ContentFilter struct {
	MovieID *int64
	State   *ContentState
	Source  *string
	IsReady *bool
	Limit   int // 0 = no limit
	Offset  int
}

// MovieFilter specifies criteria for listing movies.
type MovieFilter struct {
	IMDBID  *string
	IsReady *bool
	Limit   int
	Offset  int
}
