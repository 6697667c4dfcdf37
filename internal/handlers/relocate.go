package handlers

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/streamarr/streamarr/internal/contentid"
	"github.com/streamarr/streamarr/internal/download"
	"github.com/streamarr/streamarr/internal/events"
	"github.com/streamarr/streamarr/internal/fileutil"
	"github.com/streamarr/streamarr/internal/library"
)

// RelocateHandler moves finished downloads into the media tree under a
// folder named by the content hash of the release name.
type RelocateHandler struct {
	*BaseHandler
	jobs    *download.Store
	library *library.Store
	client  download.Downloader
	cfg     Config
}

// NewRelocateHandler creates a new relocate handler.
func NewRelocateHandler(bus *events.Bus, jobs *download.Store, lib *library.Store, client download.Downloader, cfg Config, logger *slog.Logger) *RelocateHandler {
	return &RelocateHandler{
		BaseHandler: NewBaseHandler(bus, logger),
		jobs:        jobs,
		library:     lib,
		client:      client,
		cfg:         cfg,
	}
}

// Name returns the handler name.
func (h *RelocateHandler) Name() string {
	return "relocate"
}

// Start begins processing events.
func (h *RelocateHandler) Start(ctx context.Context) error {
	completed := h.Bus().Subscribe(events.EventDownloadCompleted, 100)

	for {
		select {
		case e := <-completed:
			if e == nil {
				return nil // Channel closed
			}
			h.handleDownloadCompleted(ctx, e.(*events.DownloadCompleted))
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (h *RelocateHandler) handleDownloadCompleted(ctx context.Context, e *events.DownloadCompleted) {
	job, err := h.jobs.Get(e.JobID)
	if err != nil {
		failContent(ctx, h.Bus(), h.library, h.Logger(), e.ContentID, "relocate", err)
		return
	}

	if _, err := ensureState(h.library, e.ContentID, library.StateRelocating); err != nil {
		h.Logger().Error("failed to transition content", "content_id", e.ContentID, "error", err)
		return
	}

	// Let go of the daemon entry first; the payload is about to move
	// out from under it.
	if err := h.client.Remove(ctx, job.Category(), false); err != nil {
		h.Logger().Warn("failed to remove daemon entry", "job_id", job.ID, "error", err)
	}

	// When the reported path resolves nowhere, the payload stays where
	// the daemon left it and the next stage resolves the folder itself.
	dest := e.SourcePath
	relative := ""
	if src, err := h.resolveSource(e.SourcePath); err != nil {
		h.Logger().Warn("payload not found, keeping reported path",
			"content_id", e.ContentID,
			"path", e.SourcePath,
			"error", err)
	} else {
		hash := contentid.Hash(job.Name)
		dest = filepath.Join(h.cfg.MediaRoot, h.cfg.BaseDir, hash)
		relative = filepath.Join(h.cfg.BaseDir, hash)

		if err := moveIntoFolder(src, dest); err != nil {
			failContent(ctx, h.Bus(), h.library, h.Logger(), e.ContentID, "relocate", err)
			return
		}

		// Record the original release name before it disappears behind the hash.
		if err := fileutil.AppendManifest(filepath.Join(dest, job.Name)); err != nil {
			h.Logger().Warn("failed to write folder manifest", "folder", dest, "error", err)
		}
	}

	content, err := h.library.GetContent(e.ContentID)
	if err != nil {
		failContent(ctx, h.Bus(), h.library, h.Logger(), e.ContentID, "relocate", err)
		return
	}
	content.MainFolder = dest
	if relative != "" {
		content.RelativePath = relative
	}
	if err := h.library.UpdateContent(content); err != nil {
		failContent(ctx, h.Bus(), h.library, h.Logger(), e.ContentID, "relocate", err)
		return
	}

	h.Logger().Info("download relocated",
		"content_id", e.ContentID,
		"folder", dest,
		"name", job.Name)

	if err := h.Bus().Publish(ctx, &events.ProcessRequested{
		BaseEvent: events.NewBaseEvent(events.EventProcessRequested, events.EntityContent, e.ContentID),
		ContentID: e.ContentID,
		Folder:    dest,
	}); err != nil {
		h.Logger().Error("failed to publish ProcessRequested event", "error", err)
	}
}

// resolveSource locates the path the daemon reported. Daemons running in
// containers sometimes report paths relative to their own mount point,
// so a miss is retried under the configured media base.
func (h *RelocateHandler) resolveSource(path string) (string, error) {
	if _, err := os.Stat(path); err == nil {
		return path, nil
	}
	retry := filepath.Join(h.cfg.MediaRoot, h.cfg.BaseDir, filepath.Base(path))
	if _, err := os.Stat(retry); err == nil {
		return retry, nil
	}
	return "", fmt.Errorf("downloaded payload not found at %s", path)
}

// moveIntoFolder places src inside dest. A directory becomes dest
// itself; a single file is moved into dest. Rename is tried first and
// falls back to copy-and-remove across filesystems.
func moveIntoFolder(src, dest string) error {
	info, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("stat %s: %w", src, err)
	}

	if info.IsDir() {
		if err := os.Rename(src, dest); err == nil {
			return nil
		}
		if err := copyTree(src, dest); err != nil {
			return err
		}
		return os.RemoveAll(src)
	}

	if err := os.MkdirAll(dest, 0o755); err != nil {
		return fmt.Errorf("create folder %s: %w", dest, err)
	}
	target := filepath.Join(dest, filepath.Base(src))
	if err := os.Rename(src, target); err == nil {
		return nil
	}
	if _, err := fileutil.CopyFile(src, target); err != nil {
		return err
	}
	return os.Remove(src)
}

func copyTree(src, dest string) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dest, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		_, err = fileutil.CopyFile(path, target)
		return err
	})
}
