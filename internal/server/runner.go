// Package server wires the pipeline together and runs it until shutdown.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"golang.org/x/sync/errgroup"

	"github.com/streamarr/streamarr/internal/config"
	"github.com/streamarr/streamarr/internal/download"
	"github.com/streamarr/streamarr/internal/events"
	"github.com/streamarr/streamarr/internal/ffmpeg"
	"github.com/streamarr/streamarr/internal/handlers"
	"github.com/streamarr/streamarr/internal/library"
	"github.com/streamarr/streamarr/internal/metadata"
	"github.com/streamarr/streamarr/internal/settings"
	"github.com/streamarr/streamarr/internal/subtitles"
	"github.com/streamarr/streamarr/internal/subtitles/opensubtitles"
)

// LockFileName is the single-instance lock kept in the data dir.
const LockFileName = "streamarr.lock"

// ErrLocked indicates another instance already holds the data dir lock.
var ErrLocked = fmt.Errorf("another instance is already running")

// Runner owns the daemon lifecycle: event bus, handlers, and the
// pickup loop that feeds queued work into the pipeline.
type Runner struct {
	db     *sql.DB
	cfg    *config.Config
	logger *slog.Logger

	// client overrides the qBittorrent client in tests
	client download.Downloader

	// preflight checks external tools before startup
	preflight func() error
}

// NewRunner creates a runner. Pass a nil client to talk to the
// configured qBittorrent instance.
func NewRunner(db *sql.DB, cfg *config.Config, client download.Downloader, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		db:     db,
		cfg:    cfg,
		logger: logger,
		client: client,
		preflight: func() error {
			return ffmpeg.CheckTools(ffmpeg.Config{})
		},
	}
}

// Run starts all pipeline components and blocks until the context is
// cancelled or a component fails.
func (r *Runner) Run(ctx context.Context) error {
	lock, err := r.acquireLock()
	if err != nil {
		return err
	}
	defer func() { _ = lock.Unlock() }()

	if err := r.preflight(); err != nil {
		return fmt.Errorf("tool preflight: %w", err)
	}

	eventLog := events.NewEventLog(r.db)
	bus := events.NewBus(eventLog, r.logger.With("component", "bus"))
	defer bus.Close()

	lib := library.NewStore(r.db)
	jobs := download.NewStore(r.db)
	st := settings.NewStore(r.db)

	client := r.client
	if client == nil {
		client = download.NewQBittorrentClient(
			r.cfg.QBittorrent.URL,
			r.cfg.QBittorrent.Username,
			r.cfg.QBittorrent.Password,
			r.logger,
		)
	}
	if err := client.Login(ctx); err != nil {
		r.logger.Warn("torrent daemon login failed, retrying per request", "error", err)
	}

	tmdb := metadata.NewClient(r.cfg.MovieDB.APIKey)
	osClient := opensubtitles.NewClient(r.cfg.OpenSubtitles.URL, r.cfg.OpenSubtitles.UserAgent)

	subSvc := subtitles.NewService(lib, osClient, st,
		r.cfg.Subtitles.Languages, r.cfg.Subtitles.Limit,
		r.logger)

	processor := ffmpeg.NewProcessor(ffmpeg.Config{}, r.logger)

	hcfg := handlers.Config{
		MediaRoot:       r.cfg.Media.Root,
		BaseDir:         r.cfg.Media.BaseDir,
		DeleteOriginals: r.cfg.Pipeline.DeleteOriginals,
		PollInterval:    r.cfg.Pipeline.PollInterval,
		PollMaxAttempts: r.cfg.Pipeline.PollMaxAttempts,
	}

	all := []handlers.Handler{
		handlers.NewDownloadHandler(bus, jobs, lib, client, st, hcfg, r.logger.With("handler", "download")),
		handlers.NewRelocateHandler(bus, jobs, lib, client, hcfg, r.logger.With("handler", "relocate")),
		handlers.NewProcessHandler(bus, lib, jobs, processor, st, hcfg, r.logger.With("handler", "process")),
		handlers.NewSubtitleHandler(bus, lib, subSvc, st, hcfg, r.logger.With("handler", "subtitle")),
		handlers.NewMetadataHandler(bus, lib, tmdb, r.logger.With("handler", "metadata")),
	}

	g, ctx := errgroup.WithContext(ctx)
	for _, h := range all {
		h := h
		r.logger.Info("starting handler", "name", h.Name())
		g.Go(func() error { return h.Start(ctx) })
	}

	// Resume interrupted work, then keep picking up queued requests.
	g.Go(func() error {
		if err := r.resume(ctx, bus, lib, jobs); err != nil {
			r.logger.Error("resume failed", "error", err)
		}
		return r.pickupLoop(ctx, bus, lib, jobs)
	})

	return g.Wait()
}

func (r *Runner) acquireLock() (*flock.Flock, error) {
	if err := os.MkdirAll(r.cfg.Server.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	lock := flock.New(filepath.Join(r.cfg.Server.DataDir, LockFileName))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !locked {
		return nil, ErrLocked
	}
	return lock, nil
}

// resume re-enqueues in-flight work left over from a previous run.
func (r *Runner) resume(ctx context.Context, bus *events.Bus, lib *library.Store, jobs *download.Store) error {
	contents, _, err := lib.ListContent(library.ContentFilter{})
	if err != nil {
		return err
	}

	for _, c := range contents {
		switch c.State {
		case library.StatePending:
			// The pickup loop handles these.
		case library.StateDownloading:
			job, err := jobs.GetByContent(c.ID)
			if err != nil {
				r.logger.Warn("downloading content without a job", "content_id", c.ID, "error", err)
				continue
			}
			r.logger.Info("resuming download poll", "content_id", c.ID, "job_id", job.ID)
			if err := bus.Publish(ctx, &events.DownloadCheck{
				BaseEvent: events.NewBaseEvent(events.EventDownloadCheck, events.EntityContent, c.ID),
				ContentID: c.ID,
				JobID:     job.ID,
				Attempt:   1,
			}); err != nil {
				return err
			}
		case library.StateRelocating, library.StateTranscoding:
			// An empty folder is fine; the process stage resolves it
			// from the stored record or the daemon job.
			r.logger.Info("resuming processing", "content_id", c.ID, "folder", c.MainFolder)
			if err := bus.Publish(ctx, &events.ProcessRequested{
				BaseEvent: events.NewBaseEvent(events.EventProcessRequested, events.EntityContent, c.ID),
				ContentID: c.ID,
				Folder:    c.MainFolder,
			}); err != nil {
				return err
			}
		case library.StateSubtitling:
			r.logger.Info("resuming subtitle acquisition", "content_id", c.ID)
			if err := bus.Publish(ctx, &events.SubtitlesRequested{
				BaseEvent: events.NewBaseEvent(events.EventSubtitlesRequested, events.EntityContent, c.ID),
				ContentID: c.ID,
			}); err != nil {
				return err
			}
		}
	}
	return nil
}

// pickupLoop feeds pending content rows into the pipeline. The CLI adds
// rows from a separate process, so the daemon polls for them.
func (r *Runner) pickupLoop(ctx context.Context, bus *events.Bus, lib *library.Store, jobs *download.Store) error {
	interval := r.cfg.Pipeline.PollInterval
	if interval <= 0 {
		interval = 15 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := r.pickup(ctx, bus, lib, jobs); err != nil {
			r.logger.Error("pickup failed", "error", err)
		}
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (r *Runner) pickup(ctx context.Context, bus *events.Bus, lib *library.Store, jobs *download.Store) error {
	state := library.StatePending
	pending, _, err := lib.ListContent(library.ContentFilter{State: &state})
	if err != nil {
		return err
	}

	for _, c := range pending {
		// A job means a request is already in flight for this row.
		if _, err := jobs.GetByContent(c.ID); err == nil {
			continue
		}

		r.logger.Info("picking up queued acquisition", "content_id", c.ID, "source", c.Source)
		if err := bus.Publish(ctx, &events.AcquisitionRequested{
			BaseEvent: events.NewBaseEvent(events.EventAcquisitionRequested, events.EntityContent, c.ID),
			ContentID: c.ID,
			Source:    c.Source,
		}); err != nil {
			return err
		}

		if c.TitleHint != "" || c.IMDBHint != "" {
			if err := bus.Publish(ctx, &events.MetadataRequested{
				BaseEvent: events.NewBaseEvent(events.EventMetadataRequested, events.EntityContent, c.ID),
				ContentID: c.ID,
				Name:      c.TitleHint,
				IMDBID:    c.IMDBHint,
			}); err != nil {
				return err
			}
		}
	}
	return nil
}
