package handlers

import (
	"context"
	"log/slog"

	"github.com/streamarr/streamarr/internal/events"
	"github.com/streamarr/streamarr/internal/library"
	"github.com/streamarr/streamarr/internal/settings"
)

// SubtitleService acquires subtitles for a content item.
type SubtitleService interface {
	Fetch(ctx context.Context, content *library.Content, imdbID string, deleteOriginals bool) error
}

// SubtitleHandler runs subtitle acquisition as the final pipeline stage.
// Subtitle trouble never fails an acquisition; a movie without subtitles
// still plays.
type SubtitleHandler struct {
	*BaseHandler
	library  *library.Store
	service  SubtitleService
	settings *settings.Store
	cfg      Config
}

// NewSubtitleHandler creates a new subtitle handler.
func NewSubtitleHandler(bus *events.Bus, lib *library.Store, service SubtitleService, st *settings.Store, cfg Config, logger *slog.Logger) *SubtitleHandler {
	return &SubtitleHandler{
		BaseHandler: NewBaseHandler(bus, logger),
		library:     lib,
		service:     service,
		settings:    st,
		cfg:         cfg,
	}
}

// Name returns the handler name.
func (h *SubtitleHandler) Name() string {
	return "subtitle"
}

// Start begins processing events.
func (h *SubtitleHandler) Start(ctx context.Context) error {
	requests := h.Bus().Subscribe(events.EventSubtitlesRequested, 100)

	for {
		select {
		case e := <-requests:
			if e == nil {
				return nil // Channel closed
			}
			h.handleSubtitlesRequested(ctx, e.(*events.SubtitlesRequested))
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (h *SubtitleHandler) deleteOriginals() bool {
	if h.settings != nil {
		return h.settings.Bool(settings.KeyDeleteOriginals, h.cfg.DeleteOriginals)
	}
	return h.cfg.DeleteOriginals
}

func (h *SubtitleHandler) handleSubtitlesRequested(ctx context.Context, e *events.SubtitlesRequested) {
	h.Logger().Info("acquiring subtitles", "content_id", e.ContentID)

	content, err := ensureState(h.library, e.ContentID, library.StateSubtitling)
	if err != nil {
		h.Logger().Error("failed to transition content", "content_id", e.ContentID, "error", err)
		return
	}

	imdbID := ""
	if content.MovieID != nil {
		movie, err := h.library.GetMovie(*content.MovieID)
		if err != nil {
			h.Logger().Warn("failed to load movie", "movie_id", *content.MovieID, "error", err)
		} else {
			imdbID = movie.IMDBID
		}
	}

	if err := h.service.Fetch(ctx, content, imdbID, h.deleteOriginals()); err != nil {
		h.Logger().Warn("subtitle fetch failed", "content_id", e.ContentID, "error", err)
	}

	if _, err := h.library.TransitionContent(e.ContentID, library.StateReady); err != nil {
		h.Logger().Error("failed to transition content", "content_id", e.ContentID, "error", err)
		return
	}

	h.Logger().Info("acquisition ready", "content_id", e.ContentID)

	if err := h.Bus().Publish(ctx, &events.AcquisitionReady{
		BaseEvent: events.NewBaseEvent(events.EventAcquisitionReady, events.EntityContent, e.ContentID),
		ContentID: e.ContentID,
	}); err != nil {
		h.Logger().Error("failed to publish AcquisitionReady event", "error", err)
	}
}
