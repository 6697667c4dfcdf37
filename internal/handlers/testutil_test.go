package handlers

import (
	"context"
	"database/sql"
	_ "embed"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/streamarr/streamarr/internal/download"
	"github.com/streamarr/streamarr/internal/events"
	"github.com/streamarr/streamarr/internal/library"
)

//go:embed testdata/schema.sql
var testSchema string

type handlerTestEnv struct {
	db      *sql.DB
	bus     *events.Bus
	library *library.Store
	jobs    *download.Store
}

func setupHandlerTest(t *testing.T) *handlerTestEnv {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(testSchema)
	require.NoError(t, err)

	bus := events.NewBus(nil, nil)
	t.Cleanup(func() { bus.Close() })

	return &handlerTestEnv{
		db:      db,
		bus:     bus,
		library: library.NewStore(db),
		jobs:    download.NewStore(db),
	}
}

// startHandler runs a handler in the background and gives it a moment
// to subscribe before events start flowing.
func startHandler(t *testing.T, h Handler) context.Context {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() {
		_ = h.Start(ctx)
	}()
	time.Sleep(10 * time.Millisecond)
	return ctx
}

// addContentInState creates a content row and walks it to the wanted state.
func addContentInState(t *testing.T, lib *library.Store, source string, state library.ContentState) *library.Content {
	t.Helper()

	c := &library.Content{Source: source}
	require.NoError(t, lib.AddContent(c))

	path := map[library.ContentState][]library.ContentState{
		library.StatePending:     {},
		library.StateDownloading: {library.StateDownloading},
		library.StateRelocating:  {library.StateDownloading, library.StateRelocating},
		library.StateTranscoding: {library.StateDownloading, library.StateRelocating, library.StateTranscoding},
		library.StateSubtitling:  {library.StateDownloading, library.StateRelocating, library.StateTranscoding, library.StateSubtitling},
	}[state]

	for _, next := range path {
		updated, err := lib.TransitionContent(c.ID, next)
		require.NoError(t, err)
		c = updated
	}
	return c
}

func contentState(t *testing.T, lib *library.Store, id int64) library.ContentState {
	t.Helper()
	c, err := lib.GetContent(id)
	require.NoError(t, err)
	return c.State
}
