package download

import "errors"

// Sentinel errors for the download package.
var (
	// ErrClientUnavailable is returned when the torrent daemon cannot be reached.
	ErrClientUnavailable = errors.New("torrent daemon unavailable")

	// ErrAuthFailed is returned when the daemon rejects the credentials.
	ErrAuthFailed = errors.New("daemon authentication failed")

	// ErrJobNotFound is returned when the daemon has no download for a category.
	ErrJobNotFound = errors.New("job not found in daemon")

	// ErrNotFound is returned when a job record is not found in the database.
	ErrNotFound = errors.New("job not found")
)
