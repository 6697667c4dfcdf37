// Package download manages the torrent daemon and tracks download jobs.
package download

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"
)

// Job represents a download handed to the torrent daemon. The job's
// database ID doubles as the daemon-side category, so a job can always
// be found again after a restart.
type Job struct {
	ID         int64
	ContentID  int64
	Source     string
	Name       string
	IsComplete bool
	CreatedAt  time.Time
}

// Category returns the daemon category assigned to this job.
func (j *Job) Category() string {
	return strconv.FormatInt(j.ID, 10)
}

// JobStatus is the daemon's view of a download.
type JobStatus struct {
	Hash        string
	Name        string
	State       string
	Progress    float64 // 0-1
	Size        int64
	Speed       int64 // bytes/sec
	ETA         time.Duration
	SavePath    string
	ContentPath string
}

// completedStates are daemon states that mean all payload bytes are on disk.
var completedStates = map[string]bool{
	"uploading":  true,
	"stalledUP":  true,
	"pausedUP":   true,
	"stoppedUP":  true,
	"queuedUP":   true,
	"forcedUP":   true,
	"checkingUP": true,
}

// Complete reports whether the download has finished fetching.
func (s *JobStatus) Complete() bool {
	return s.Progress >= 1 || completedStates[s.State]
}

// Downloader talks to a torrent daemon.
type Downloader interface {
	// Login authenticates against the daemon.
	Login(ctx context.Context) error
	// Add sends a magnet link or torrent URL to the daemon under a category.
	Add(ctx context.Context, source, category string) error
	// Status returns the status of the download in a category.
	// Returns ErrJobNotFound if the daemon no longer knows the category.
	Status(ctx context.Context, category string) (*JobStatus, error)
	// Remove deletes the download in a category, optionally with its files.
	Remove(ctx context.Context, category string, deleteFiles bool) error
}

// Store persists job records.
type Store struct {
	db *sql.DB
}

// NewStore creates a job store.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Add records a new job. Sets ID and CreatedAt on the struct.
func (s *Store) Add(j *Job) error {
	now := time.Now()
	result, err := s.db.Exec(`
		INSERT INTO jobs (content_id, source, name, is_complete, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		j.ContentID, j.Source, j.Name, j.IsComplete, now,
	)
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get last insert id: %w", err)
	}
	j.ID = id
	j.CreatedAt = now
	return nil
}

// Get retrieves a job by ID.
// Returns ErrNotFound if the job does not exist.
func (s *Store) Get(id int64) (*Job, error) {
	j := &Job{}
	err := s.db.QueryRow(`
		SELECT id, content_id, source, name, is_complete, created_at
		FROM jobs WHERE id = ?`, id,
	).Scan(&j.ID, &j.ContentID, &j.Source, &j.Name, &j.IsComplete, &j.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("get job %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get job %d: %w", id, err)
	}
	return j, nil
}

// GetByContent retrieves the most recent job for a content item.
// Returns ErrNotFound if the content has no jobs.
func (s *Store) GetByContent(contentID int64) (*Job, error) {
	j := &Job{}
	err := s.db.QueryRow(`
		SELECT id, content_id, source, name, is_complete, created_at
		FROM jobs WHERE content_id = ? ORDER BY id DESC LIMIT 1`, contentID,
	).Scan(&j.ID, &j.ContentID, &j.Source, &j.Name, &j.IsComplete, &j.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("get job for content %d: %w", contentID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get job for content %d: %w", contentID, err)
	}
	return j, nil
}

// SetName records the release name the daemon reported for a job.
func (s *Store) SetName(id int64, name string) error {
	if _, err := s.db.Exec("UPDATE jobs SET name = ? WHERE id = ?", name, id); err != nil {
		return fmt.Errorf("set job %d name: %w", id, err)
	}
	return nil
}

// MarkComplete flags a job as fully downloaded.
func (s *Store) MarkComplete(id int64) error {
	result, err := s.db.Exec("UPDATE jobs SET is_complete = 1 WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("mark job %d complete: %w", id, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("mark job %d complete: %w", id, ErrNotFound)
	}
	return nil
}

// ListByContent returns all jobs for a content item, oldest first.
func (s *Store) ListByContent(contentID int64) ([]*Job, error) {
	rows, err := s.db.Query(`
		SELECT id, content_id, source, name, is_complete, created_at
		FROM jobs WHERE content_id = ? ORDER BY id`, contentID)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var results []*Job
	for rows.Next() {
		j := &Job{}
		if err := rows.Scan(&j.ID, &j.ContentID, &j.Source, &j.Name, &j.IsComplete, &j.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		results = append(results, j)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate jobs: %w", err)
	}
	return results, nil
}

// DeleteByContent removes all jobs for a content item.
// This operation is idempotent.
func (s *Store) DeleteByContent(contentID int64) error {
	if _, err := s.db.Exec("DELETE FROM jobs WHERE content_id = ?", contentID); err != nil {
		return fmt.Errorf("delete jobs for content %d: %w", contentID, err)
	}
	return nil
}
