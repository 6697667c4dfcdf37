package download

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

// writeJSON is a helper that writes a JSON response, failing the test on error.
func writeJSON(t *testing.T, w http.ResponseWriter, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		t.Fatalf("failed to encode JSON response: %v", err)
	}
}

func TestQBittorrentClient_Login(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v2/auth/login" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parse form: %v", err)
		}
		if r.Form.Get("username") != "admin" || r.Form.Get("password") != "secret" {
			t.Errorf("unexpected credentials %v", r.Form)
		}
		_, _ = w.Write([]byte("Ok."))
	}))
	defer server.Close()

	client := NewQBittorrentClient(server.URL, "admin", "secret", nil)
	if err := client.Login(context.Background()); err != nil {
		t.Fatalf("Login: %v", err)
	}
}

func TestQBittorrentClient_Login_BadCredentials(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("Fails."))
	}))
	defer server.Close()

	client := NewQBittorrentClient(server.URL, "admin", "wrong", nil)
	if err := client.Login(context.Background()); !errors.Is(err, ErrAuthFailed) {
		t.Errorf("Login error = %v, want ErrAuthFailed", err)
	}
}

func TestQBittorrentClient_Add(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v2/torrents/add" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parse form: %v", err)
		}
		if r.Form.Get("urls") != "magnet:?xt=urn:btih:abc" {
			t.Errorf("urls = %q", r.Form.Get("urls"))
		}
		if r.Form.Get("category") != "42" {
			t.Errorf("category = %q", r.Form.Get("category"))
		}
		_, _ = w.Write([]byte("Ok."))
	}))
	defer server.Close()

	client := NewQBittorrentClient(server.URL, "admin", "secret", nil)
	if err := client.Add(context.Background(), "magnet:?xt=urn:btih:abc", "42"); err != nil {
		t.Fatalf("Add: %v", err)
	}
}

func TestQBittorrentClient_Add_Rejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("Fails."))
	}))
	defer server.Close()

	client := NewQBittorrentClient(server.URL, "admin", "secret", nil)
	if err := client.Add(context.Background(), "not-a-magnet", "42"); err == nil {
		t.Error("expected error for rejected source")
	}
}

func TestQBittorrentClient_Status(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v2/torrents/info" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("category") != "42" {
			t.Errorf("category = %q", r.URL.Query().Get("category"))
		}
		writeJSON(t, w, []map[string]any{{
			"hash":         "abc123",
			"name":         "Some.Movie.2019.1080p",
			"state":        "uploading",
			"progress":     1.0,
			"size":         2147483648,
			"save_path":    "/downloads",
			"content_path": "/downloads/Some.Movie.2019.1080p",
		}})
	}))
	defer server.Close()

	client := NewQBittorrentClient(server.URL, "admin", "secret", nil)
	status, err := client.Status(context.Background(), "42")
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if status.Name != "Some.Movie.2019.1080p" {
		t.Errorf("Name = %q", status.Name)
	}
	if !status.Complete() {
		t.Error("expected completed status")
	}
	if status.ContentPath != "/downloads/Some.Movie.2019.1080p" {
		t.Errorf("ContentPath = %q", status.ContentPath)
	}
}

func TestQBittorrentClient_Status_NotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, []map[string]any{})
	}))
	defer server.Close()

	client := NewQBittorrentClient(server.URL, "admin", "secret", nil)
	_, err := client.Status(context.Background(), "42")
	if !errors.Is(err, ErrJobNotFound) {
		t.Errorf("Status error = %v, want ErrJobNotFound", err)
	}
}

func TestQBittorrentClient_Status_Unavailable(t *testing.T) {
	// Use a closed server to simulate unavailability
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	client := NewQBittorrentClient(server.URL, "admin", "secret", nil)
	_, err := client.Status(context.Background(), "42")
	if !errors.Is(err, ErrClientUnavailable) {
		t.Errorf("Status error = %v, want ErrClientUnavailable", err)
	}
}

func TestQBittorrentClient_Remove(t *testing.T) {
	var deleted bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v2/torrents/info":
			writeJSON(t, w, []map[string]any{
				{"hash": "aaa", "name": "x", "state": "downloading"},
				{"hash": "bbb", "name": "y", "state": "downloading"},
			})
		case "/api/v2/torrents/delete":
			if err := r.ParseForm(); err != nil {
				t.Fatalf("parse form: %v", err)
			}
			if r.Form.Get("hashes") != "aaa|bbb" {
				t.Errorf("hashes = %q", r.Form.Get("hashes"))
			}
			if r.Form.Get("deleteFiles") != "true" {
				t.Errorf("deleteFiles = %q", r.Form.Get("deleteFiles"))
			}
			deleted = true
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer server.Close()

	client := NewQBittorrentClient(server.URL, "admin", "secret", nil)
	if err := client.Remove(context.Background(), "42", true); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if !deleted {
		t.Error("delete endpoint was not called")
	}
}

func TestQBittorrentClient_Remove_EmptyCategory(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/v2/torrents/delete" {
			t.Error("delete should not be called for empty category")
		}
		writeJSON(t, w, []map[string]any{})
	}))
	defer server.Close()

	client := NewQBittorrentClient(server.URL, "admin", "secret", nil)
	if err := client.Remove(context.Background(), "42", false); err != nil {
		t.Fatalf("Remove: %v", err)
	}
}

func TestQBittorrentClient_Relogin(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v2/auth/login":
			_, _ = w.Write([]byte("Ok."))
		case "/api/v2/torrents/info":
			calls++
			if calls == 1 {
				w.WriteHeader(http.StatusForbidden)
				return
			}
			writeJSON(t, w, []map[string]any{{"hash": "abc", "name": "x", "state": "downloading"}})
		}
	}))
	defer server.Close()

	client := NewQBittorrentClient(server.URL, "admin", "secret", nil)
	status, err := client.Status(context.Background(), "42")
	if err != nil {
		t.Fatalf("Status after relogin: %v", err)
	}
	if status.Hash != "abc" {
		t.Errorf("Hash = %q", status.Hash)
	}
	if calls != 2 {
		t.Errorf("info called %d times, want 2", calls)
	}
}
