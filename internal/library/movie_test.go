package library

import (
	"errors"
	"testing"
	"time"
)

func TestStore_AddMovie(t *testing.T) {
	db := setupTestDB(t)
	store := NewStore(db)

	release := time.Date(1999, 10, 15, 0, 0, 0, 0, time.UTC)
	m := &Movie{
		IMDBID:      "tt0137523",
		Title:       "Fight Club",
		ReleaseDate: &release,
		Duration:    139,
	}
	if err := store.AddMovie(m); err != nil {
		t.Fatalf("AddMovie: %v", err)
	}
	if m.ID == 0 {
		t.Error("ID should be set after AddMovie")
	}

	got, err := store.GetMovie(m.ID)
	if err != nil {
		t.Fatalf("GetMovie: %v", err)
	}
	if got.Title != "Fight Club" || got.IMDBID != "tt0137523" {
		t.Errorf("got %+v", got)
	}
	if got.ReleaseDate == nil || !got.ReleaseDate.Equal(release) {
		t.Errorf("ReleaseDate = %v, want %v", got.ReleaseDate, release)
	}
}

func TestStore_GetMovieByIMDB(t *testing.T) {
	db := setupTestDB(t)
	store := NewStore(db)

	m := &Movie{IMDBID: "tt0110912", Title: "Pulp Fiction"}
	if err := store.AddMovie(m); err != nil {
		t.Fatalf("AddMovie: %v", err)
	}

	got, err := store.GetMovieByIMDB("tt0110912")
	if err != nil {
		t.Fatalf("GetMovieByIMDB: %v", err)
	}
	if got == nil || got.ID != m.ID {
		t.Errorf("got %+v, want id %d", got, m.ID)
	}

	missing, err := store.GetMovieByIMDB("tt9999999")
	if err != nil {
		t.Fatalf("GetMovieByIMDB missing: %v", err)
	}
	if missing != nil {
		t.Errorf("expected nil for unknown imdb id, got %+v", missing)
	}
}

func TestStore_UpdateMovie(t *testing.T) {
	db := setupTestDB(t)
	store := NewStore(db)

	m := &Movie{IMDBID: "tt0068646", Title: "The Godfather"}
	if err := store.AddMovie(m); err != nil {
		t.Fatalf("AddMovie: %v", err)
	}

	m.IsReady = true
	m.VoteAverage = 8.7
	if err := store.UpdateMovie(m); err != nil {
		t.Fatalf("UpdateMovie: %v", err)
	}

	got, err := store.GetMovie(m.ID)
	if err != nil {
		t.Fatalf("GetMovie: %v", err)
	}
	if !got.IsReady || got.VoteAverage != 8.7 {
		t.Errorf("update not persisted: %+v", got)
	}
}

func TestStore_DeleteMovie(t *testing.T) {
	db := setupTestDB(t)
	store := NewStore(db)

	m := &Movie{IMDBID: "tt0080684", Title: "The Empire Strikes Back"}
	if err := store.AddMovie(m); err != nil {
		t.Fatalf("AddMovie: %v", err)
	}
	if err := store.DeleteMovie(m.ID); err != nil {
		t.Fatalf("DeleteMovie: %v", err)
	}
	if _, err := store.GetMovie(m.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetMovie after delete error = %v, want ErrNotFound", err)
	}
}

func TestTx_CommitAndRollback(t *testing.T) {
	db := setupTestDB(t)
	store := NewStore(db)

	tx, err := store.Begin()
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	c := &Content{Source: "magnet:?xt=urn:btih:tx1"}
	if err := tx.AddContent(c); err != nil {
		t.Fatalf("Tx.AddContent: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if _, err := store.GetContent(c.ID); err != nil {
		t.Errorf("committed content not visible: %v", err)
	}

	tx, err = store.Begin()
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	c2 := &Content{Source: "magnet:?xt=urn:btih:tx2"}
	if err := tx.AddContent(c2); err != nil {
		t.Fatalf("Tx.AddContent: %v", err)
	}
	if err := tx.Rollback(); err != nil {
		t.Fatalf("Rollback: %v", err)
	}
	if _, err := store.GetContent(c2.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("rolled back content visible, err = %v", err)
	}
}
