// Package handlers contains the event-driven pipeline stages.
package handlers

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/streamarr/streamarr/internal/events"
	"github.com/streamarr/streamarr/internal/library"
)

// Handler processes events from the bus.
type Handler interface {
	// Start begins processing events. Blocks until context is cancelled.
	Start(ctx context.Context) error
	// Name returns the handler name for logging.
	Name() string
}

// Config carries the pipeline tunables the handlers share.
type Config struct {
	MediaRoot       string
	BaseDir         string
	DeleteOriginals bool
	PollInterval    time.Duration
	PollMaxAttempts int
}

// BaseHandler provides common handler functionality.
type BaseHandler struct {
	bus    *events.Bus
	logger *slog.Logger
}

// NewBaseHandler creates a base handler.
func NewBaseHandler(bus *events.Bus, logger *slog.Logger) *BaseHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &BaseHandler{
		bus:    bus,
		logger: logger,
	}
}

// Bus returns the event bus.
func (h *BaseHandler) Bus() *events.Bus {
	return h.bus
}

// Logger returns the logger.
func (h *BaseHandler) Logger() *slog.Logger {
	return h.logger
}

// ensureState moves a content item into want. Crash recovery replays
// stage events, so an item already sitting in the target state passes.
func ensureState(lib *library.Store, id int64, want library.ContentState) (*library.Content, error) {
	c, err := lib.TransitionContent(id, want)
	if err == nil {
		return c, nil
	}
	if errors.Is(err, library.ErrBadTransition) {
		cur, getErr := lib.GetContent(id)
		if getErr == nil && cur.State == want {
			return cur, nil
		}
	}
	return nil, err
}

// failContent marks a content item failed and announces it. A transition
// rejection means the item already reached a terminal state, which is fine.
func failContent(ctx context.Context, bus *events.Bus, lib *library.Store, logger *slog.Logger, contentID int64, stage string, cause error) {
	logger.Error("pipeline stage failed",
		"content_id", contentID,
		"stage", stage,
		"error", cause)

	if _, err := lib.TransitionContent(contentID, library.StateFailed); err != nil {
		logger.Warn("could not mark content failed", "content_id", contentID, "error", err)
	}

	if err := bus.Publish(ctx, &events.AcquisitionFailed{
		BaseEvent: events.NewBaseEvent(events.EventAcquisitionFailed, events.EntityContent, contentID),
		ContentID: contentID,
		Stage:     stage,
		Reason:    cause.Error(),
	}); err != nil {
		logger.Error("failed to publish AcquisitionFailed event", "error", err)
	}
}
