package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/streamarr/streamarr/internal/contentid"
	"github.com/streamarr/streamarr/internal/download"
	"github.com/streamarr/streamarr/internal/events"
	"github.com/streamarr/streamarr/internal/ffmpeg"
	"github.com/streamarr/streamarr/internal/fileutil"
	"github.com/streamarr/streamarr/internal/library"
	"github.com/streamarr/streamarr/internal/settings"
)

// ErrFolderUnresolved is returned when no resolution strategy can locate
// a content folder on disk.
var ErrFolderUnresolved = errors.New("content folder unresolved")

// Transcoder reduces a relocated folder to servable MP4 renditions.
type Transcoder interface {
	ProcessFolder(ctx context.Context, folder string, deleteOriginals bool) (*ffmpeg.Result, error)
}

// ProcessHandler normalizes downloaded video into the servable format
// and records the probe results on the content item.
type ProcessHandler struct {
	*BaseHandler
	library   *library.Store
	jobs      *download.Store
	processor Transcoder
	settings  *settings.Store
	cfg       Config
}

// NewProcessHandler creates a new process handler.
func NewProcessHandler(bus *events.Bus, lib *library.Store, jobs *download.Store, processor Transcoder, st *settings.Store, cfg Config, logger *slog.Logger) *ProcessHandler {
	return &ProcessHandler{
		BaseHandler: NewBaseHandler(bus, logger),
		library:     lib,
		jobs:        jobs,
		processor:   processor,
		settings:    st,
		cfg:         cfg,
	}
}

// Name returns the handler name.
func (h *ProcessHandler) Name() string {
	return "process"
}

// Start begins processing events.
func (h *ProcessHandler) Start(ctx context.Context) error {
	requests := h.Bus().Subscribe(events.EventProcessRequested, 100)

	for {
		select {
		case e := <-requests:
			if e == nil {
				return nil // Channel closed
			}
			h.handleProcessRequested(ctx, e.(*events.ProcessRequested))
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (h *ProcessHandler) deleteOriginals() bool {
	if h.settings != nil {
		return h.settings.Bool(settings.KeyDeleteOriginals, h.cfg.DeleteOriginals)
	}
	return h.cfg.DeleteOriginals
}

// resolveFolder locates the content folder, most direct strategy first:
// the event's folder, the stored absolute path, the stored folder name
// re-rooted under the media root, the parent of the stored file path,
// and finally re-derivation from the daemon job name via the same hash
// the relocate stage uses. Only exhausting all of them is an error.
func (h *ProcessHandler) resolveFolder(e *events.ProcessRequested, content *library.Content) (string, error) {
	var candidates []string
	if e.Folder != "" {
		candidates = append(candidates, e.Folder)
	}
	if content.MainFolder != "" {
		candidates = append(candidates,
			content.MainFolder,
			filepath.Join(h.cfg.MediaRoot, h.cfg.BaseDir, filepath.Base(content.MainFolder)))
	}
	if content.FullPath != "" {
		candidates = append(candidates, filepath.Dir(content.FullPath))
	}
	if job, err := h.jobs.GetByContent(content.ID); err == nil && job.Name != "" {
		candidates = append(candidates,
			filepath.Join(h.cfg.MediaRoot, h.cfg.BaseDir, contentid.Hash(job.Name)))
	}

	for _, dir := range candidates {
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			continue
		}
		return dir, nil
	}
	return "", fmt.Errorf("%w: content %d, tried %d candidates", ErrFolderUnresolved, content.ID, len(candidates))
}

func (h *ProcessHandler) handleProcessRequested(ctx context.Context, e *events.ProcessRequested) {
	h.Logger().Info("processing folder",
		"content_id", e.ContentID,
		"folder", e.Folder)

	content, err := ensureState(h.library, e.ContentID, library.StateTranscoding)
	if err != nil {
		h.Logger().Error("failed to transition content", "content_id", e.ContentID, "error", err)
		return
	}

	folder, err := h.resolveFolder(e, content)
	if err != nil {
		failContent(ctx, h.Bus(), h.library, h.Logger(), e.ContentID, "transcode", err)
		return
	}
	if folder != e.Folder {
		h.Logger().Info("resolved content folder", "content_id", e.ContentID, "folder", folder)
	}

	res, err := h.processor.ProcessFolder(ctx, folder, h.deleteOriginals())
	if err != nil {
		failContent(ctx, h.Bus(), h.library, h.Logger(), e.ContentID, "transcode", err)
		return
	}

	content.MainFolder = folder
	content.FullPath = res.VideoPath
	content.FileName = res.FileName
	content.FileExtension = ".mp4"
	content.SourceFileName = res.SourceName
	content.SourceFileExtension = res.SourceExt
	content.Width = res.Width
	content.Height = res.Height
	content.Duration = res.Duration
	content.RawInfo = res.Raw
	content.IsReady = true
	if err := h.library.UpdateContent(content); err != nil {
		failContent(ctx, h.Bus(), h.library, h.Logger(), e.ContentID, "transcode", err)
		return
	}

	if content.MovieID != nil && res.Duration > 0 {
		if movie, err := h.library.GetMovie(*content.MovieID); err != nil {
			h.Logger().Warn("failed to load movie", "movie_id", *content.MovieID, "error", err)
		} else {
			movie.Duration = int(res.Duration)
			if err := h.library.UpdateMovie(movie); err != nil {
				h.Logger().Warn("failed to record movie duration", "movie_id", movie.ID, "error", err)
			}
		}
	}

	if err := fileutil.SetServable(folder); err != nil {
		h.Logger().Warn("failed to set folder permissions", "folder", folder, "error", err)
	}

	h.Logger().Info("folder processed",
		"content_id", e.ContentID,
		"video", res.VideoPath,
		"quality", library.QualityLabel(res.Width))

	if err := h.Bus().Publish(ctx, &events.SubtitlesRequested{
		BaseEvent: events.NewBaseEvent(events.EventSubtitlesRequested, events.EntityContent, e.ContentID),
		ContentID: e.ContentID,
	}); err != nil {
		h.Logger().Error("failed to publish SubtitlesRequested event", "error", err)
	}
}
