package acquisition

import (
	"context"
	"database/sql"
	_ "embed"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	_ "modernc.org/sqlite"

	"github.com/streamarr/streamarr/internal/download"
	"github.com/streamarr/streamarr/internal/download/mocks"
	"github.com/streamarr/streamarr/internal/events"
	"github.com/streamarr/streamarr/internal/library"
)

//go:embed testdata/schema.sql
var testSchema string

type stubReacquirer struct {
	called    bool
	gotIMDB   string
	gotDelete bool
}

func (s *stubReacquirer) Reacquire(ctx context.Context, content *library.Content, imdbID string, deleteOriginals bool) error {
	s.called = true
	s.gotIMDB = imdbID
	s.gotDelete = deleteOriginals
	return nil
}

func setupService(t *testing.T, client download.Downloader) (*Service, *library.Store, *download.Store, *events.Bus) {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(testSchema)
	require.NoError(t, err)

	bus := events.NewBus(nil, nil)
	t.Cleanup(func() { bus.Close() })

	lib := library.NewStore(db)
	jobs := download.NewStore(db)
	svc := NewService(lib, jobs, client, &stubReacquirer{}, bus, nil)
	return svc, lib, jobs, bus
}

func walkToReady(t *testing.T, lib *library.Store, id int64) {
	t.Helper()
	for _, next := range []library.ContentState{
		library.StateDownloading,
		library.StateRelocating,
		library.StateTranscoding,
		library.StateSubtitling,
		library.StateReady,
	} {
		_, err := lib.TransitionContent(id, next)
		require.NoError(t, err)
	}
}

func TestStart_PublishesRequest(t *testing.T) {
	svc, _, _, bus := setupService(t, nil)

	requests := bus.Subscribe(events.EventAcquisitionRequested, 10)
	meta := bus.Subscribe(events.EventMetadataRequested, 10)

	ctx := context.Background()
	content, err := svc.Start(ctx, Request{
		Source: "magnet:?xt=urn:btih:abc",
		Title:  "Fight Club",
		IMDBID: "tt0137523",
	})
	require.NoError(t, err)
	assert.Equal(t, library.StatePending, content.State)

	select {
	case e := <-requests:
		ar := e.(*events.AcquisitionRequested)
		assert.Equal(t, content.ID, ar.ContentID)
		assert.Equal(t, "magnet:?xt=urn:btih:abc", ar.Source)
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for AcquisitionRequested event")
	}

	select {
	case e := <-meta:
		mr := e.(*events.MetadataRequested)
		assert.Equal(t, "tt0137523", mr.IMDBID)
		assert.Equal(t, "Fight Club", mr.Name)
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for MetadataRequested event")
	}
}

func TestStart_RejectsActiveDuplicate(t *testing.T) {
	svc, _, _, _ := setupService(t, nil)

	ctx := context.Background()
	first, err := svc.Start(ctx, Request{Source: "magnet:?xt=urn:btih:abc"})
	require.NoError(t, err)

	dup, err := svc.Start(ctx, Request{Source: "magnet:?xt=urn:btih:abc"})
	require.ErrorIs(t, err, ErrAlreadyActive)
	assert.Equal(t, first.ID, dup.ID)
}

func TestStart_RetriesFailedSource(t *testing.T) {
	svc, lib, _, _ := setupService(t, nil)

	ctx := context.Background()
	first, err := svc.Start(ctx, Request{Source: "magnet:?xt=urn:btih:abc"})
	require.NoError(t, err)

	_, err = lib.TransitionContent(first.ID, library.StateDownloading)
	require.NoError(t, err)
	_, err = lib.TransitionContent(first.ID, library.StateFailed)
	require.NoError(t, err)

	second, err := svc.Start(ctx, Request{Source: "magnet:?xt=urn:btih:abc"})
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)
}

func TestStart_RequiresSource(t *testing.T) {
	svc, _, _, _ := setupService(t, nil)
	_, err := svc.Start(context.Background(), Request{})
	require.Error(t, err)
}

func TestCancel_RemovesEverything(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := mocks.NewMockDownloader(ctrl)
	svc, lib, jobs, bus := setupService(t, client)

	ctx := context.Background()
	content, err := svc.Start(ctx, Request{Source: "magnet:?xt=urn:btih:abc"})
	require.NoError(t, err)

	folder := filepath.Join(t.TempDir(), "abc123")
	require.NoError(t, os.MkdirAll(folder, 0o755))
	content.MainFolder = folder
	require.NoError(t, lib.UpdateContent(content))

	job := &download.Job{ContentID: content.ID, Source: content.Source}
	require.NoError(t, jobs.Add(job))

	sub := &library.Subtitle{FullPath: filepath.Join(folder, "eng1.srt"), FileName: "eng1", Suffix: ".srt"}
	require.NoError(t, lib.AddSubtitle(sub))
	require.NoError(t, lib.LinkSubtitle(content.ID, sub.ID))

	client.EXPECT().Remove(gomock.Any(), job.Category(), true).Return(nil)

	cancelled := bus.Subscribe(events.EventAcquisitionCancelled, 10)

	require.NoError(t, svc.Cancel(ctx, content.ID, true))

	select {
	case <-cancelled:
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for AcquisitionCancelled event")
	}

	_, err = lib.GetContent(content.ID)
	require.ErrorIs(t, err, library.ErrNotFound)
	_, err = jobs.GetByContent(content.ID)
	require.ErrorIs(t, err, download.ErrNotFound)
	_, err = lib.GetSubtitle(sub.ID)
	require.ErrorIs(t, err, library.ErrNotFound)
	assert.NoDirExists(t, folder)
}

func TestCancel_RemovesUnreferencedMovie(t *testing.T) {
	svc, lib, _, _ := setupService(t, nil)

	ctx := context.Background()
	movie := &library.Movie{IMDBID: "tt0137523", Title: "Fight Club"}
	require.NoError(t, lib.AddMovie(movie))

	first, err := svc.Start(ctx, Request{Source: "magnet:?xt=urn:btih:m1"})
	require.NoError(t, err)
	first.MovieID = &movie.ID
	require.NoError(t, lib.UpdateContent(first))

	second, err := svc.Start(ctx, Request{Source: "magnet:?xt=urn:btih:m2"})
	require.NoError(t, err)
	second.MovieID = &movie.ID
	require.NoError(t, lib.UpdateContent(second))

	// Another acquisition still references the movie, so it survives.
	require.NoError(t, svc.Cancel(ctx, first.ID, false))
	_, err = lib.GetMovie(movie.ID)
	require.NoError(t, err)

	// The last reference goes, and the movie with it.
	require.NoError(t, svc.Cancel(ctx, second.ID, false))
	_, err = lib.GetMovie(movie.ID)
	require.ErrorIs(t, err, library.ErrNotFound)
}

func TestCancel_KeepsFilesWhenAsked(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := mocks.NewMockDownloader(ctrl)
	svc, lib, _, _ := setupService(t, client)

	ctx := context.Background()
	content, err := svc.Start(ctx, Request{Source: "magnet:?xt=urn:btih:keep"})
	require.NoError(t, err)

	folder := filepath.Join(t.TempDir(), "keepme")
	require.NoError(t, os.MkdirAll(folder, 0o755))
	content.MainFolder = folder
	require.NoError(t, lib.UpdateContent(content))

	require.NoError(t, svc.Cancel(ctx, content.ID, false))
	assert.DirExists(t, folder)
}

func TestReacquireSubtitles(t *testing.T) {
	svc, lib, _, _ := setupService(t, nil)
	stub := svc.subtitles.(*stubReacquirer)

	ctx := context.Background()
	content, err := svc.Start(ctx, Request{Source: "magnet:?xt=urn:btih:resub"})
	require.NoError(t, err)

	// Not ready yet
	err = svc.ReacquireSubtitles(ctx, content.ID, false)
	require.ErrorIs(t, err, ErrNotReady)

	movie := &library.Movie{IMDBID: "tt0137523", Title: "Fight Club"}
	require.NoError(t, lib.AddMovie(movie))
	content.MovieID = &movie.ID
	require.NoError(t, lib.UpdateContent(content))

	walkToReady(t, lib, content.ID)

	require.NoError(t, svc.ReacquireSubtitles(ctx, content.ID, true))
	assert.True(t, stub.called)
	assert.Equal(t, "tt0137523", stub.gotIMDB)
	assert.True(t, stub.gotDelete)
}

func TestDescribe(t *testing.T) {
	svc, lib, jobs, _ := setupService(t, nil)

	ctx := context.Background()
	content, err := svc.Start(ctx, Request{Source: "magnet:?xt=urn:btih:desc"})
	require.NoError(t, err)

	summary, err := svc.Describe(content.ID)
	require.NoError(t, err)
	assert.Nil(t, summary.Movie)
	assert.Nil(t, summary.Job)
	assert.Empty(t, summary.Subtitles)

	movie := &library.Movie{IMDBID: "tt0137523", Title: "Fight Club"}
	require.NoError(t, lib.AddMovie(movie))
	content.MovieID = &movie.ID
	require.NoError(t, lib.UpdateContent(content))

	job := &download.Job{ContentID: content.ID, Source: content.Source, Name: "Fight.Club.1999"}
	require.NoError(t, jobs.Add(job))

	summary, err = svc.Describe(content.ID)
	require.NoError(t, err)
	require.NotNil(t, summary.Movie)
	assert.Equal(t, "Fight Club", summary.Movie.Title)
	require.NotNil(t, summary.Job)
	assert.Equal(t, "Fight.Club.1999", summary.Job.Name)
}
