package settings

import (
	"database/sql"
	"errors"
	"testing"
	"time"

	_ "modernc.org/sqlite"
)

const testSchema = `
CREATE TABLE settings (
    key        TEXT PRIMARY KEY,
    value      TEXT NOT NULL,
    updated_at TIMESTAMP NOT NULL
);`

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if _, err := db.Exec(testSchema); err != nil {
		t.Fatalf("apply schema: %v", err)
	}
	return db
}

func TestStore_SetGet(t *testing.T) {
	store := NewStore(setupTestDB(t))

	if err := store.Set(KeySubtitleLimit, "8"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	v, err := store.Get(KeySubtitleLimit)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if v != "8" {
		t.Errorf("Get = %q, want %q", v, "8")
	}

	// overwrite
	if err := store.Set(KeySubtitleLimit, "3"); err != nil {
		t.Fatalf("Set overwrite: %v", err)
	}
	if got := store.Int(KeySubtitleLimit, 5); got != 3 {
		t.Errorf("Int = %d, want 3", got)
	}
}

func TestStore_Get_NotSet(t *testing.T) {
	store := NewStore(setupTestDB(t))

	_, err := store.Get("nope")
	if !errors.Is(err, ErrNotSet) {
		t.Errorf("Get error = %v, want ErrNotSet", err)
	}
}

func TestStore_Fallbacks(t *testing.T) {
	store := NewStore(setupTestDB(t))

	if got := store.String(KeySubtitleLanguages, "eng"); got != "eng" {
		t.Errorf("String fallback = %q, want eng", got)
	}
	if got := store.Int(KeyPollMaxAttempts, 10000); got != 10000 {
		t.Errorf("Int fallback = %d, want 10000", got)
	}
	if got := store.Bool(KeyDeleteOriginals, true); !got {
		t.Error("Bool fallback = false, want true")
	}
	if got := store.Duration(KeyPollInterval, 15*time.Second); got != 15*time.Second {
		t.Errorf("Duration fallback = %v, want 15s", got)
	}

	// unparseable values fall back too
	if err := store.Set(KeyPollMaxAttempts, "lots"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if got := store.Int(KeyPollMaxAttempts, 10000); got != 10000 {
		t.Errorf("Int with bad value = %d, want fallback 10000", got)
	}
}

func TestStore_DeleteAndAll(t *testing.T) {
	store := NewStore(setupTestDB(t))

	if err := store.Set("a", "1"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := store.Set("b", "2"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := store.Delete("a"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	// deleting again is fine
	if err := store.Delete("a"); err != nil {
		t.Errorf("second Delete: %v", err)
	}

	all, err := store.All()
	if err != nil {
		t.Fatalf("All: %v", err)
	}
	if len(all) != 1 || all["b"] != "2" {
		t.Errorf("All = %v, want map[b:2]", all)
	}
}
