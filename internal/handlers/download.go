package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/streamarr/streamarr/internal/download"
	"github.com/streamarr/streamarr/internal/events"
	"github.com/streamarr/streamarr/internal/library"
	"github.com/streamarr/streamarr/internal/settings"
)

// DownloadHandler hands sources to the torrent daemon and polls them
// until they finish or run out of attempts.
type DownloadHandler struct {
	*BaseHandler
	jobs     *download.Store
	library  *library.Store
	client   download.Downloader
	settings *settings.Store
	cfg      Config
}

// NewDownloadHandler creates a new download handler.
func NewDownloadHandler(bus *events.Bus, jobs *download.Store, lib *library.Store, client download.Downloader, st *settings.Store, cfg Config, logger *slog.Logger) *DownloadHandler {
	return &DownloadHandler{
		BaseHandler: NewBaseHandler(bus, logger),
		jobs:        jobs,
		library:     lib,
		client:      client,
		settings:    st,
		cfg:         cfg,
	}
}

// Name returns the handler name.
func (h *DownloadHandler) Name() string {
	return "download"
}

// Start begins processing events.
func (h *DownloadHandler) Start(ctx context.Context) error {
	requests := h.Bus().Subscribe(events.EventAcquisitionRequested, 100)
	checks := h.Bus().Subscribe(events.EventDownloadCheck, 100)

	for {
		select {
		case e := <-requests:
			if e == nil {
				return nil // Channel closed
			}
			h.handleAcquisitionRequested(ctx, e.(*events.AcquisitionRequested))
		case e := <-checks:
			if e == nil {
				return nil
			}
			h.handleDownloadCheck(ctx, e.(*events.DownloadCheck))
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (h *DownloadHandler) pollInterval() time.Duration {
	if h.settings != nil {
		return h.settings.Duration(settings.KeyPollInterval, h.cfg.PollInterval)
	}
	return h.cfg.PollInterval
}

func (h *DownloadHandler) maxAttempts() int {
	if h.settings != nil {
		return h.settings.Int(settings.KeyPollMaxAttempts, h.cfg.PollMaxAttempts)
	}
	return h.cfg.PollMaxAttempts
}

func (h *DownloadHandler) handleAcquisitionRequested(ctx context.Context, e *events.AcquisitionRequested) {
	h.Logger().Info("processing acquisition request",
		"content_id", e.ContentID,
		"source", e.Source)

	// Create the job first so its ID can serve as the daemon category.
	job := &download.Job{
		ContentID: e.ContentID,
		Source:    e.Source,
	}
	if err := h.jobs.Add(job); err != nil {
		failContent(ctx, h.Bus(), h.library, h.Logger(), e.ContentID, "download", err)
		return
	}

	if err := h.client.Add(ctx, e.Source, job.Category()); err != nil {
		failContent(ctx, h.Bus(), h.library, h.Logger(), e.ContentID, "download", err)
		return
	}

	if _, err := h.library.TransitionContent(e.ContentID, library.StateDownloading); err != nil {
		h.Logger().Error("failed to transition content", "content_id", e.ContentID, "error", err)
		return
	}

	h.Logger().Info("download started",
		"content_id", e.ContentID,
		"job_id", job.ID,
		"category", job.Category())

	h.Bus().PublishAfter(ctx, &events.DownloadCheck{
		BaseEvent: events.NewBaseEvent(events.EventDownloadCheck, events.EntityContent, e.ContentID),
		ContentID: e.ContentID,
		JobID:     job.ID,
		Attempt:   1,
	}, h.pollInterval())
}

func (h *DownloadHandler) handleDownloadCheck(ctx context.Context, e *events.DownloadCheck) {
	job, err := h.jobs.Get(e.JobID)
	if err != nil {
		h.Logger().Error("failed to load job", "job_id", e.JobID, "error", err)
		return
	}
	if job.IsComplete {
		return
	}

	status, err := h.client.Status(ctx, job.Category())
	if errors.Is(err, download.ErrJobNotFound) {
		// The daemon no longer knows the category; retrying cannot help.
		failContent(ctx, h.Bus(), h.library, h.Logger(), e.ContentID, "download", err)
		return
	}
	if err != nil {
		h.Logger().Warn("status check failed",
			"job_id", job.ID,
			"attempt", e.Attempt,
			"error", err)
	}

	if err == nil && status.Complete() {
		if err := h.jobs.SetName(job.ID, status.Name); err != nil {
			h.Logger().Error("failed to record job name", "job_id", job.ID, "error", err)
		}
		if err := h.jobs.MarkComplete(job.ID); err != nil {
			h.Logger().Error("failed to mark job complete", "job_id", job.ID, "error", err)
		}

		path := status.ContentPath
		if path == "" {
			path = status.SavePath
		}

		h.Logger().Info("download completed",
			"job_id", job.ID,
			"name", status.Name,
			"attempts", e.Attempt)

		if err := h.Bus().Publish(ctx, &events.DownloadCompleted{
			BaseEvent:  events.NewBaseEvent(events.EventDownloadCompleted, events.EntityContent, e.ContentID),
			ContentID:  e.ContentID,
			JobID:      job.ID,
			SourcePath: path,
		}); err != nil {
			h.Logger().Error("failed to publish DownloadCompleted event", "error", err)
		}
		return
	}

	if e.Attempt >= h.maxAttempts() {
		if err := h.client.Remove(ctx, job.Category(), true); err != nil {
			h.Logger().Warn("failed to remove stalled download", "job_id", job.ID, "error", err)
		}
		failContent(ctx, h.Bus(), h.library, h.Logger(), e.ContentID, "download",
			fmt.Errorf("gave up after %d status checks", e.Attempt))
		return
	}

	if status != nil {
		h.Logger().Debug("download in progress",
			"job_id", job.ID,
			"state", status.State,
			"progress", status.Progress,
			"attempt", e.Attempt)
	}

	h.Bus().PublishAfter(ctx, &events.DownloadCheck{
		BaseEvent: events.NewBaseEvent(events.EventDownloadCheck, events.EntityContent, e.ContentID),
		ContentID: e.ContentID,
		JobID:     job.ID,
		Attempt:   e.Attempt + 1,
	}, h.pollInterval())
}
