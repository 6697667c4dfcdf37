package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/streamarr/streamarr/internal/events"
	"github.com/streamarr/streamarr/internal/library"
	"github.com/streamarr/streamarr/internal/metadata"
)

// MetadataProvider resolves movie metadata from the movie database.
type MetadataProvider interface {
	FindByIMDB(ctx context.Context, imdbID string) (*metadata.Movie, error)
	Search(ctx context.Context, query string) (*metadata.Movie, error)
	GetMovie(ctx context.Context, id int64) (*metadata.Movie, error)
}

// MetadataHandler resolves movie metadata and links it to content items.
// Metadata runs beside the download rather than gating it; an unresolved
// title leaves the content item without a movie link.
type MetadataHandler struct {
	*BaseHandler
	library *library.Store
	client  MetadataProvider
}

// NewMetadataHandler creates a new metadata handler.
func NewMetadataHandler(bus *events.Bus, lib *library.Store, client MetadataProvider, logger *slog.Logger) *MetadataHandler {
	return &MetadataHandler{
		BaseHandler: NewBaseHandler(bus, logger),
		library:     lib,
		client:      client,
	}
}

// Name returns the handler name.
func (h *MetadataHandler) Name() string {
	return "metadata"
}

// Start begins processing events.
func (h *MetadataHandler) Start(ctx context.Context) error {
	requests := h.Bus().Subscribe(events.EventMetadataRequested, 100)

	for {
		select {
		case e := <-requests:
			if e == nil {
				return nil // Channel closed
			}
			h.handleMetadataRequested(ctx, e.(*events.MetadataRequested))
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (h *MetadataHandler) handleMetadataRequested(ctx context.Context, e *events.MetadataRequested) {
	h.Logger().Info("resolving metadata",
		"content_id", e.ContentID,
		"name", e.Name,
		"imdb_id", e.IMDBID)

	found, err := h.lookup(ctx, e)
	if errors.Is(err, metadata.ErrNotFound) {
		h.Logger().Warn("no metadata match", "content_id", e.ContentID, "name", e.Name)
		return
	}
	if err != nil {
		h.Logger().Error("metadata lookup failed", "content_id", e.ContentID, "error", err)
		return
	}

	// The details endpoint carries runtime and the IMDB id that list
	// results omit.
	if details, err := h.client.GetMovie(ctx, found.ID); err == nil {
		if found.IMDBID != "" {
			details.IMDBID = found.IMDBID
		}
		found = details
	} else {
		h.Logger().Warn("failed to load movie details", "movie_id", found.ID, "error", err)
	}

	movie, err := h.upsertMovie(found)
	if err != nil {
		h.Logger().Error("failed to store movie", "content_id", e.ContentID, "error", err)
		return
	}

	content, err := h.library.GetContent(e.ContentID)
	if err != nil {
		h.Logger().Error("failed to load content", "content_id", e.ContentID, "error", err)
		return
	}
	content.MovieID = &movie.ID
	if err := h.library.UpdateContent(content); err != nil {
		h.Logger().Error("failed to link movie", "content_id", e.ContentID, "error", err)
		return
	}

	h.Logger().Info("metadata resolved",
		"content_id", e.ContentID,
		"movie_id", movie.ID,
		"title", movie.Title)
}

func (h *MetadataHandler) lookup(ctx context.Context, e *events.MetadataRequested) (*metadata.Movie, error) {
	if e.IMDBID != "" {
		return h.client.FindByIMDB(ctx, e.IMDBID)
	}
	if e.Name != "" {
		return h.client.Search(ctx, e.Name)
	}
	return nil, metadata.ErrNotFound
}

func (h *MetadataHandler) upsertMovie(m *metadata.Movie) (*library.Movie, error) {
	raw, _ := json.Marshal(m)

	movie := &library.Movie{
		IMDBID:           m.IMDBID,
		Title:            m.Title,
		Overview:         m.Overview,
		ReleaseDate:      parseReleaseDate(m.ReleaseDate),
		OriginalLanguage: m.OriginalLanguage,
		Popularity:       m.Popularity,
		VoteAverage:      m.VoteAverage,
		PosterURL:        m.PosterURL("original"),
		PosterURLSmall:   m.PosterURL("w342"),
		BackdropURL:      m.BackdropURL("original"),
		BackdropURLSmall: m.BackdropURL("w780"),
		GenreIDs:         joinGenreIDs(m.GenreIDs),
		Duration:         m.Runtime,
		RawInfo:          string(raw),
		IsReady:          true,
	}

	if m.IMDBID != "" {
		existing, err := h.library.GetMovieByIMDB(m.IMDBID)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			movie.ID = existing.ID
			movie.CreatedAt = existing.CreatedAt
			if err := h.library.UpdateMovie(movie); err != nil {
				return nil, err
			}
			return movie, nil
		}
	}

	if err := h.library.AddMovie(movie); err != nil {
		return nil, err
	}
	return movie, nil
}

func parseReleaseDate(s string) *time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return nil
	}
	return &t
}

func joinGenreIDs(ids []int) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.Itoa(id)
	}
	return strings.Join(parts, ",")
}
