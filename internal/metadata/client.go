package metadata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

const defaultBaseURL = "https://api.themoviedb.org"
const defaultCacheTTL = 24 * time.Hour

// Sentinel errors for the metadata package.
var (
	// ErrNotFound is returned when no movie matches the lookup.
	ErrNotFound = errors.New("movie not found")

	// ErrUnavailable is returned when the provider cannot be reached.
	ErrUnavailable = errors.New("metadata provider unavailable")
)

// Client is a movie database API client.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	cache      *cache
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(url string) Option {
	return func(c *Client) {
		c.baseURL = url
	}
}

// WithCacheTTL sets the cache TTL.
func WithCacheTTL(ttl time.Duration) Option {
	return func(c *Client) {
		c.cache = newCache(ttl)
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// NewClient creates a new metadata client.
func NewClient(apiKey string, opts ...Option) *Client {
	c := &Client{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		cache: newCache(defaultCacheTTL),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FindByIMDB fetches movie metadata by IMDB identifier.
func (c *Client) FindByIMDB(ctx context.Context, imdbID string) (*Movie, error) {
	cacheKey := "imdb:" + imdbID
	if movie, ok := c.cache.get(cacheKey); ok {
		return movie, nil
	}

	reqURL := fmt.Sprintf("%s/3/find/%s?api_key=%s&external_source=imdb_id",
		c.baseURL, url.PathEscape(imdbID), c.apiKey)

	var result struct {
		MovieResults []Movie `json:"movie_results"`
	}
	if err := c.doRequest(ctx, reqURL, &result); err != nil {
		return nil, err
	}
	if len(result.MovieResults) == 0 {
		return nil, ErrNotFound
	}

	movie := &result.MovieResults[0]
	movie.IMDBID = imdbID
	c.cache.set(cacheKey, movie)
	return movie, nil
}

// Search finds the best movie match for a free-text query.
func (c *Client) Search(ctx context.Context, query string) (*Movie, error) {
	cacheKey := "query:" + query
	if movie, ok := c.cache.get(cacheKey); ok {
		return movie, nil
	}

	reqURL := fmt.Sprintf("%s/3/search/movie?api_key=%s&query=%s",
		c.baseURL, c.apiKey, url.QueryEscape(query))

	var result struct {
		Results []Movie `json:"results"`
	}
	if err := c.doRequest(ctx, reqURL, &result); err != nil {
		return nil, err
	}
	if len(result.Results) == 0 {
		return nil, ErrNotFound
	}

	movie := &result.Results[0]
	c.cache.set(cacheKey, movie)
	return movie, nil
}

// GetMovie fetches full movie details, including runtime and IMDB id,
// which the search and find endpoints leave out.
func (c *Client) GetMovie(ctx context.Context, id int64) (*Movie, error) {
	cacheKey := fmt.Sprintf("movie:%d", id)
	if movie, ok := c.cache.get(cacheKey); ok {
		return movie, nil
	}

	reqURL := fmt.Sprintf("%s/3/movie/%d?api_key=%s", c.baseURL, id, c.apiKey)

	var movie Movie
	if err := c.doRequest(ctx, reqURL, &movie); err != nil {
		return nil, err
	}

	c.cache.set(cacheKey, &movie)
	return &movie, nil
}

func (c *Client) doRequest(ctx context.Context, reqURL string, result any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("metadata API error: %s", resp.Status)
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
