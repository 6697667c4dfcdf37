package metadata

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_FindByIMDB(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/3/find/tt0137523", r.URL.Path)
		assert.Equal(t, "test-key", r.URL.Query().Get("api_key"))
		assert.Equal(t, "imdb_id", r.URL.Query().Get("external_source"))

		resp := map[string]any{
			"movie_results": []Movie{{
				ID:          550,
				Title:       "Fight Club",
				ReleaseDate: "1999-10-15",
				PosterPath:  "/pB8BM7pdSp6B6Ih7QZ4DrQ3PmJK.jpg",
				VoteAverage: 8.4,
				GenreIDs:    []int{18},
			}},
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := NewClient("test-key", WithBaseURL(server.URL))

	movie, err := client.FindByIMDB(context.Background(), "tt0137523")
	require.NoError(t, err)
	assert.Equal(t, int64(550), movie.ID)
	assert.Equal(t, "Fight Club", movie.Title)
	assert.Equal(t, "tt0137523", movie.IMDBID)
	assert.Equal(t, 1999, movie.Year())
}

func TestClient_FindByIMDB_NoResults(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"movie_results":[]}`))
	}))
	defer server.Close()

	client := NewClient("test-key", WithBaseURL(server.URL))

	_, err := client.FindByIMDB(context.Background(), "tt9999999")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestClient_Search(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/3/search/movie", r.URL.Path)
		assert.Equal(t, "fight club", r.URL.Query().Get("query"))

		resp := map[string]any{
			"results": []Movie{
				{ID: 550, Title: "Fight Club"},
				{ID: 551, Title: "Fight Club 2"},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := NewClient("test-key", WithBaseURL(server.URL))

	movie, err := client.Search(context.Background(), "fight club")
	require.NoError(t, err)
	assert.Equal(t, int64(550), movie.ID)
}

func TestClient_GetMovie_Cached(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(Movie{ID: 550, Title: "Fight Club", Runtime: 139})
	}))
	defer server.Close()

	client := NewClient("test-key", WithBaseURL(server.URL), WithCacheTTL(time.Minute))

	for i := 0; i < 3; i++ {
		movie, err := client.GetMovie(context.Background(), 550)
		require.NoError(t, err)
		assert.Equal(t, 139, movie.Runtime)
	}
	assert.Equal(t, 1, calls, "second and third lookups should hit the cache")
}

func TestClient_GetMovie_NotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"status_code":34,"status_message":"The resource you requested could not be found."}`))
	}))
	defer server.Close()

	client := NewClient("test-key", WithBaseURL(server.URL))

	_, err := client.GetMovie(context.Background(), 999999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestClient_Unavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	client := NewClient("test-key", WithBaseURL(server.URL))

	_, err := client.Search(context.Background(), "anything")
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestMovie_ImageURLs(t *testing.T) {
	m := &Movie{PosterPath: "/poster.jpg", BackdropPath: "/backdrop.jpg"}
	assert.Equal(t, "https://image.tmdb.org/t/p/w500/poster.jpg", m.PosterURL("w500"))
	assert.Equal(t, "https://image.tmdb.org/t/p/original/backdrop.jpg", m.BackdropURL("original"))

	empty := &Movie{}
	assert.Empty(t, empty.PosterURL("w500"))
	assert.Empty(t, empty.BackdropURL("w500"))
}
