package main

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/streamarr/streamarr/internal/acquisition"
	"github.com/streamarr/streamarr/internal/config"
	"github.com/streamarr/streamarr/internal/download"
	"github.com/streamarr/streamarr/internal/events"
	"github.com/streamarr/streamarr/internal/library"
	"github.com/streamarr/streamarr/internal/migrations"
	"github.com/streamarr/streamarr/internal/settings"
	"github.com/streamarr/streamarr/internal/subtitles"
	"github.com/streamarr/streamarr/internal/subtitles/opensubtitles"
)

// appContext holds everything a one-shot command needs. The daemon
// picks up queued work through the shared database.
type appContext struct {
	cfg    *config.Config
	db     *sql.DB
	logger *slog.Logger

	library  *library.Store
	jobs     *download.Store
	settings *settings.Store
	bus      *events.Bus
}

func openApp(configPath string) (*appContext, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	logger := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		return nil, fmt.Errorf("create database dir: %w", err)
	}
	db, err := sql.Open("sqlite", cfg.Database.Path+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := migrations.Apply(db); err != nil {
		db.Close()
		return nil, err
	}

	return &appContext{
		cfg:      cfg,
		db:       db,
		logger:   logger,
		library:  library.NewStore(db),
		jobs:     download.NewStore(db),
		settings: settings.NewStore(db),
		bus:      events.NewBus(events.NewEventLog(db), logger.With("component", "bus")),
	}, nil
}

func (a *appContext) Close() error {
	a.bus.Close()
	return a.db.Close()
}

func (a *appContext) downloader() download.Downloader {
	return download.NewQBittorrentClient(
		a.cfg.QBittorrent.URL,
		a.cfg.QBittorrent.Username,
		a.cfg.QBittorrent.Password,
		a.logger,
	)
}

func (a *appContext) subtitleService() *subtitles.Service {
	osClient := opensubtitles.NewClient(a.cfg.OpenSubtitles.URL, a.cfg.OpenSubtitles.UserAgent)
	return subtitles.NewService(a.library, osClient, a.settings,
		a.cfg.Subtitles.Languages, a.cfg.Subtitles.Limit,
		a.logger)
}

func (a *appContext) acquisitionService() *acquisition.Service {
	return acquisition.NewService(a.library, a.jobs, a.downloader(), a.subtitleService(), a.bus, a.logger)
}

func (a *appContext) deleteOriginals() bool {
	return a.settings.Bool(settings.KeyDeleteOriginals, a.cfg.Pipeline.DeleteOriginals)
}

func newLogger(level string) *slog.Logger {
	var l slog.Level
	switch level {
	case "debug":
		l = slog.LevelDebug
	case "warn":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: l}))
}
