// Package acquisition is the entry point for starting, cancelling, and
// inspecting media acquisitions. It owns the records; the actual work
// happens in the event handlers.
package acquisition

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/streamarr/streamarr/internal/download"
	"github.com/streamarr/streamarr/internal/events"
	"github.com/streamarr/streamarr/internal/library"
)

// ErrAlreadyActive indicates the source is already being acquired.
var ErrAlreadyActive = errors.New("acquisition already active for source")

// ErrNotReady indicates the content has not finished the pipeline yet.
var ErrNotReady = errors.New("content not ready")

// SubtitleReacquirer re-runs subtitle acquisition for finished content.
type SubtitleReacquirer interface {
	Reacquire(ctx context.Context, content *library.Content, imdbID string, deleteOriginals bool) error
}

// Request describes a new acquisition.
type Request struct {
	Source string // magnet link or torrent URL
	Title  string // optional, helps metadata resolution
	IMDBID string // optional, exact metadata match
}

// Summary aggregates everything known about one acquisition.
type Summary struct {
	Content   *library.Content
	Movie     *library.Movie // nil until metadata resolves
	Job       *download.Job  // nil before the download starts
	Subtitles []*library.Subtitle
}

// Service coordinates acquisitions.
type Service struct {
	library   *library.Store
	jobs      *download.Store
	client    download.Downloader
	subtitles SubtitleReacquirer
	bus       *events.Bus
	log       *slog.Logger
}

// NewService creates an acquisition service.
func NewService(lib *library.Store, jobs *download.Store, client download.Downloader, subs SubtitleReacquirer, bus *events.Bus, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		library:   lib,
		jobs:      jobs,
		client:    client,
		subtitles: subs,
		bus:       bus,
		log:       log.With("component", "acquisition"),
	}
}

// Start begins acquiring a source. Starting the same source twice is
// rejected while the first run is still in flight or already finished;
// a failed run is retried with a fresh content record.
func (s *Service) Start(ctx context.Context, req Request) (*library.Content, error) {
	if req.Source == "" {
		return nil, fmt.Errorf("acquisition: source is required")
	}

	existing, err := s.library.GetContentBySource(req.Source)
	if err != nil {
		return nil, err
	}
	if existing != nil && existing.State != library.StateFailed {
		return existing, fmt.Errorf("%w: content %d is %s", ErrAlreadyActive, existing.ID, existing.State)
	}

	content := &library.Content{
		Source:    req.Source,
		TitleHint: req.Title,
		IMDBHint:  req.IMDBID,
	}
	if err := s.library.AddContent(content); err != nil {
		return nil, err
	}

	s.log.Info("acquisition started",
		"content_id", content.ID,
		"source", req.Source,
		"imdb_id", req.IMDBID)

	if err := s.bus.Publish(ctx, &events.AcquisitionRequested{
		BaseEvent: events.NewBaseEvent(events.EventAcquisitionRequested, events.EntityContent, content.ID),
		ContentID: content.ID,
		Source:    req.Source,
	}); err != nil {
		return nil, fmt.Errorf("publish acquisition request: %w", err)
	}

	// Metadata resolves beside the download, not after it.
	if req.Title != "" || req.IMDBID != "" {
		if err := s.bus.Publish(ctx, &events.MetadataRequested{
			BaseEvent: events.NewBaseEvent(events.EventMetadataRequested, events.EntityContent, content.ID),
			ContentID: content.ID,
			Name:      req.Title,
			IMDBID:    req.IMDBID,
		}); err != nil {
			s.log.Error("failed to publish metadata request", "content_id", content.ID, "error", err)
		}
	}

	return content, nil
}

// Cancel aborts an acquisition and removes everything it produced: the
// daemon entry, downloaded files, subtitle records, and the content row.
// The movie record is removed too once no other acquisition references
// it.
func (s *Service) Cancel(ctx context.Context, contentID int64, deleteFiles bool) error {
	content, err := s.library.GetContent(contentID)
	if err != nil {
		return err
	}

	// Stop any pending poll timers before touching the records.
	s.bus.CancelEntity(events.EntityContent, contentID)

	if job, err := s.jobs.GetByContent(contentID); err == nil {
		if err := s.client.Remove(ctx, job.Category(), deleteFiles); err != nil {
			s.log.Warn("failed to remove daemon entry", "job_id", job.ID, "error", err)
		}
	} else if !errors.Is(err, download.ErrNotFound) {
		return err
	}

	if deleteFiles && content.MainFolder != "" {
		if err := os.RemoveAll(content.MainFolder); err != nil {
			s.log.Warn("failed to remove media folder", "folder", content.MainFolder, "error", err)
		}
	}

	if err := s.library.DeleteContentSubtitles(contentID); err != nil {
		return err
	}
	if err := s.jobs.DeleteByContent(contentID); err != nil {
		return err
	}
	if err := s.library.DeleteContent(contentID); err != nil {
		return err
	}

	// The parent movie goes last, and only when this was the final
	// acquisition referencing it.
	if content.MovieID != nil {
		n, err := s.library.MovieContentCount(*content.MovieID)
		if err != nil {
			return err
		}
		if n == 0 {
			if err := s.library.DeleteMovie(*content.MovieID); err != nil {
				return err
			}
			s.log.Info("movie removed with last acquisition", "movie_id", *content.MovieID)
		}
	}

	s.log.Info("acquisition cancelled", "content_id", contentID, "delete_files", deleteFiles)

	if err := s.bus.Publish(ctx, &events.AcquisitionCancelled{
		BaseEvent: events.NewBaseEvent(events.EventAcquisitionCancelled, events.EntityContent, contentID),
		ContentID: contentID,
	}); err != nil {
		s.log.Error("failed to publish AcquisitionCancelled event", "error", err)
	}
	return nil
}

// ReacquireSubtitles drops stored subtitles for a finished content item
// and fetches a fresh set.
func (s *Service) ReacquireSubtitles(ctx context.Context, contentID int64, deleteOriginals bool) error {
	content, err := s.library.GetContent(contentID)
	if err != nil {
		return err
	}
	if content.State != library.StateReady {
		return fmt.Errorf("%w: content %d is %s", ErrNotReady, contentID, content.State)
	}

	imdbID := ""
	if content.MovieID != nil {
		movie, err := s.library.GetMovie(*content.MovieID)
		if err != nil {
			return err
		}
		imdbID = movie.IMDBID
	}

	return s.subtitles.Reacquire(ctx, content, imdbID, deleteOriginals)
}

// Describe returns everything known about an acquisition.
func (s *Service) Describe(contentID int64) (*Summary, error) {
	content, err := s.library.GetContent(contentID)
	if err != nil {
		return nil, err
	}

	summary := &Summary{Content: content}

	if content.MovieID != nil {
		movie, err := s.library.GetMovie(*content.MovieID)
		if err != nil {
			return nil, err
		}
		summary.Movie = movie
	}

	job, err := s.jobs.GetByContent(contentID)
	if err != nil && !errors.Is(err, download.ErrNotFound) {
		return nil, err
	}
	summary.Job = job

	subs, err := s.library.ContentSubtitles(contentID)
	if err != nil {
		return nil, err
	}
	summary.Subtitles = subs

	return summary, nil
}

// List returns acquisitions matching the filter.
func (s *Service) List(f library.ContentFilter) ([]*library.Content, int, error) {
	return s.library.ListContent(f)
}
