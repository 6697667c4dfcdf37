package handlers

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streamarr/streamarr/internal/contentid"
	"github.com/streamarr/streamarr/internal/download"
	"github.com/streamarr/streamarr/internal/events"
	"github.com/streamarr/streamarr/internal/ffmpeg"
	"github.com/streamarr/streamarr/internal/library"
)

type stubTranscoder struct {
	res *ffmpeg.Result
	err error

	gotFolder string
	gotDelete bool
}

func (s *stubTranscoder) ProcessFolder(ctx context.Context, folder string, deleteOriginals bool) (*ffmpeg.Result, error) {
	s.gotFolder = folder
	s.gotDelete = deleteOriginals
	return s.res, s.err
}

func TestProcessHandler_Success(t *testing.T) {
	env := setupHandlerTest(t)

	folder := filepath.Join(t.TempDir(), "abc123")
	require.NoError(t, os.MkdirAll(folder, 0o755))
	content := addContentInState(t, env.library, "magnet:?xt=urn:btih:proc", library.StateRelocating)

	movie := &library.Movie{IMDBID: "tt0137523", Title: "Fight Club"}
	require.NoError(t, env.library.AddMovie(movie))
	content.MovieID = &movie.ID
	require.NoError(t, env.library.UpdateContent(content))

	stub := &stubTranscoder{res: &ffmpeg.Result{
		VideoPath:  filepath.Join(folder, "4b68ab3847feda7d.mp4"),
		FileName:   "4b68ab3847feda7d",
		SourceName: "Feature.Film.2019",
		SourceExt:  ".mkv",
		Width:      1920,
		Height:     1080,
		Duration:   5400,
		Raw:        `{"format":{}}`,
	}}

	cfg := Config{DeleteOriginals: true}
	handler := NewProcessHandler(env.bus, env.library, env.jobs, stub, nil, cfg, nil)

	requests := env.bus.Subscribe(events.EventSubtitlesRequested, 10)
	ctx := startHandler(t, handler)

	require.NoError(t, env.bus.Publish(ctx, &events.ProcessRequested{
		BaseEvent: events.NewBaseEvent(events.EventProcessRequested, events.EntityContent, content.ID),
		ContentID: content.ID,
		Folder:    folder,
	}))

	select {
	case e := <-requests:
		sr := e.(*events.SubtitlesRequested)
		assert.Equal(t, content.ID, sr.ContentID)
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for SubtitlesRequested event")
	}

	assert.Equal(t, folder, stub.gotFolder)
	assert.True(t, stub.gotDelete)

	stored, err := env.library.GetContent(content.ID)
	require.NoError(t, err)
	assert.Equal(t, library.StateTranscoding, stored.State)
	assert.Equal(t, stub.res.VideoPath, stored.FullPath)
	assert.Equal(t, "4b68ab3847feda7d", stored.FileName)
	assert.Equal(t, ".mp4", stored.FileExtension)
	assert.Equal(t, "Feature.Film.2019", stored.SourceFileName)
	assert.Equal(t, ".mkv", stored.SourceFileExtension)
	assert.Equal(t, 1920, stored.Width)
	assert.Equal(t, 1080, stored.Height)
	assert.Equal(t, 5400.0, stored.Duration)
	assert.True(t, stored.IsReady)

	// probed duration lands on the parent movie record too
	storedMovie, err := env.library.GetMovie(movie.ID)
	require.NoError(t, err)
	assert.Equal(t, 5400, storedMovie.Duration)
}

func TestProcessHandler_Failure(t *testing.T) {
	env := setupHandlerTest(t)

	content := addContentInState(t, env.library, "magnet:?xt=urn:btih:bad", library.StateRelocating)
	stub := &stubTranscoder{err: errors.New("no usable video")}

	handler := NewProcessHandler(env.bus, env.library, env.jobs, stub, nil, Config{}, nil)

	failed := env.bus.Subscribe(events.EventAcquisitionFailed, 10)
	ctx := startHandler(t, handler)

	require.NoError(t, env.bus.Publish(ctx, &events.ProcessRequested{
		BaseEvent: events.NewBaseEvent(events.EventProcessRequested, events.EntityContent, content.ID),
		ContentID: content.ID,
		Folder:    t.TempDir(),
	}))

	select {
	case e := <-failed:
		af := e.(*events.AcquisitionFailed)
		assert.Equal(t, "transcode", af.Stage)
		assert.Contains(t, af.Reason, "no usable video")
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for AcquisitionFailed event")
	}
	assert.Equal(t, library.StateFailed, contentState(t, env.library, content.ID))
}

func TestProcessHandler_ResolvesFolderFromJob(t *testing.T) {
	env := setupHandlerTest(t)

	// The relocate stage never ran: no stored folder, no file path.
	// Only the daemon job name can locate the folder.
	mediaRoot := t.TempDir()
	releaseName := "Feature.Film.2019.1080p"
	dest := filepath.Join(mediaRoot, "movies", contentid.Hash(releaseName))
	require.NoError(t, os.MkdirAll(dest, 0o755))

	content := addContentInState(t, env.library, "magnet:?xt=urn:btih:derive", library.StateRelocating)
	job := &download.Job{ContentID: content.ID, Source: content.Source, Name: releaseName}
	require.NoError(t, env.jobs.Add(job))

	stub := &stubTranscoder{res: &ffmpeg.Result{
		VideoPath: filepath.Join(dest, "deadbeefdeadbeef.mp4"),
		FileName:  "deadbeefdeadbeef",
	}}

	cfg := Config{MediaRoot: mediaRoot, BaseDir: "movies"}
	handler := NewProcessHandler(env.bus, env.library, env.jobs, stub, nil, cfg, nil)

	requests := env.bus.Subscribe(events.EventSubtitlesRequested, 10)
	ctx := startHandler(t, handler)

	require.NoError(t, env.bus.Publish(ctx, &events.ProcessRequested{
		BaseEvent: events.NewBaseEvent(events.EventProcessRequested, events.EntityContent, content.ID),
		ContentID: content.ID,
		Folder:    "",
	}))

	select {
	case <-requests:
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for SubtitlesRequested event")
	}

	assert.Equal(t, dest, stub.gotFolder)
	stored, err := env.library.GetContent(content.ID)
	require.NoError(t, err)
	assert.Equal(t, dest, stored.MainFolder)
}

func TestProcessHandler_ResolvesFolderFromFilePath(t *testing.T) {
	env := setupHandlerTest(t)

	dir := t.TempDir()
	content := addContentInState(t, env.library, "magnet:?xt=urn:btih:parent", library.StateRelocating)
	content.MainFolder = "/moved/elsewhere" // stale absolute path
	content.FullPath = filepath.Join(dir, "deadbeefdeadbeef.mp4")
	require.NoError(t, env.library.UpdateContent(content))

	stub := &stubTranscoder{res: &ffmpeg.Result{
		VideoPath: content.FullPath,
		FileName:  "deadbeefdeadbeef",
	}}

	handler := NewProcessHandler(env.bus, env.library, env.jobs, stub, nil, Config{}, nil)

	requests := env.bus.Subscribe(events.EventSubtitlesRequested, 10)
	ctx := startHandler(t, handler)

	require.NoError(t, env.bus.Publish(ctx, &events.ProcessRequested{
		BaseEvent: events.NewBaseEvent(events.EventProcessRequested, events.EntityContent, content.ID),
		ContentID: content.ID,
		Folder:    "/moved/elsewhere",
	}))

	select {
	case <-requests:
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for SubtitlesRequested event")
	}

	assert.Equal(t, dir, stub.gotFolder)
}

func TestProcessHandler_FolderUnresolvable(t *testing.T) {
	env := setupHandlerTest(t)

	content := addContentInState(t, env.library, "magnet:?xt=urn:btih:noroot", library.StateRelocating)
	stub := &stubTranscoder{res: &ffmpeg.Result{}}

	handler := NewProcessHandler(env.bus, env.library, env.jobs, stub, nil, Config{MediaRoot: t.TempDir(), BaseDir: "movies"}, nil)

	failed := env.bus.Subscribe(events.EventAcquisitionFailed, 10)
	ctx := startHandler(t, handler)

	require.NoError(t, env.bus.Publish(ctx, &events.ProcessRequested{
		BaseEvent: events.NewBaseEvent(events.EventProcessRequested, events.EntityContent, content.ID),
		ContentID: content.ID,
		Folder:    "/nonexistent/folder",
	}))

	select {
	case e := <-failed:
		af := e.(*events.AcquisitionFailed)
		assert.Equal(t, "transcode", af.Stage)
		assert.Contains(t, af.Reason, "unresolved")
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for AcquisitionFailed event")
	}

	assert.Empty(t, stub.gotFolder, "transcoder must not run without a folder")
	assert.Equal(t, library.StateFailed, contentState(t, env.library, content.ID))
}

func TestProcessHandler_WrongState(t *testing.T) {
	env := setupHandlerTest(t)

	// A pending item cannot jump straight to transcoding.
	content := addContentInState(t, env.library, "magnet:?xt=urn:btih:skip", library.StatePending)
	stub := &stubTranscoder{res: &ffmpeg.Result{}}

	handler := NewProcessHandler(env.bus, env.library, env.jobs, stub, nil, Config{}, nil)
	ctx := startHandler(t, handler)

	require.NoError(t, env.bus.Publish(ctx, &events.ProcessRequested{
		BaseEvent: events.NewBaseEvent(events.EventProcessRequested, events.EntityContent, content.ID),
		ContentID: content.ID,
		Folder:    t.TempDir(),
	}))

	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, stub.gotFolder)
	assert.Equal(t, library.StatePending, contentState(t, env.library, content.ID))
}
