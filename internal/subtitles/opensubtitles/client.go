// Package opensubtitles provides a client for the OpenSubtitles legacy
// REST API.
package opensubtitles

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const defaultBaseURL = "https://rest.opensubtitles.org/search"

// ErrUnavailable is returned when the subtitle provider cannot be reached.
var ErrUnavailable = errors.New("subtitle provider unavailable")

// Result is a single subtitle search hit.
type Result struct {
	IDSubtitleFile  string `json:"IDSubtitleFile"`
	SubFileName     string `json:"SubFileName"`
	SubFormat       string `json:"SubFormat"`
	SubEncoding     string `json:"SubEncoding"`
	SubLanguageID   string `json:"SubLanguageID"`
	SubDownloadLink string `json:"SubDownloadLink"`
	SubRating       string `json:"SubRating"`
	MovieName       string `json:"MovieName"`
}

// Rating parses the provider's string rating, 0 on failure.
func (r Result) Rating() float64 {
	f, _ := strconv.ParseFloat(r.SubRating, 64)
	return f
}

// Client talks to the OpenSubtitles legacy REST API.
type Client struct {
	baseURL   string
	userAgent string
	client    *resty.Client
}

// NewClient creates a subtitle search client. An empty baseURL uses
// the public endpoint.
func NewClient(baseURL, userAgent string) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	client := resty.New().
		SetTimeout(30 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(1 * time.Second)

	return &Client{
		baseURL:   strings.TrimSuffix(baseURL, "/"),
		userAgent: userAgent,
		client:    client,
	}
}

// Search runs a search with the given criteria. The API encodes
// criteria as "key-value" path segments sorted by key.
func (c *Client) Search(ctx context.Context, criteria map[string]string) ([]Result, error) {
	keys := make([]string, 0, len(criteria))
	for k := range criteria {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	segments := make([]string, 0, len(keys))
	for _, k := range keys {
		segments = append(segments, k+"-"+criteria[k])
	}
	url := c.baseURL + "/" + strings.Join(segments, "/")

	resp, err := c.client.R().
		SetContext(ctx).
		SetHeader("X-User-Agent", c.userAgent).
		Get(url)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("subtitle search: unexpected status %d", resp.StatusCode())
	}

	var results []Result
	if err := json.Unmarshal(resp.Body(), &results); err != nil {
		return nil, fmt.Errorf("decode search results: %w", err)
	}
	return results, nil
}

// ByFingerprint searches by file size, content fingerprint, and IMDB
// identifier, the most precise tier.
func (c *Client) ByFingerprint(ctx context.Context, size int64, hash, imdbID, lang string) ([]Result, error) {
	criteria := map[string]string{
		"moviebytesize": strconv.FormatInt(size, 10),
		"moviehash":     hash,
		"sublanguageid": lang,
	}
	if imdbID != "" {
		criteria["imdbid"] = strings.TrimPrefix(imdbID, "tt")
	}
	return c.Search(ctx, criteria)
}

// ByIMDB searches by IMDB identifier alone. The API wants the numeric
// part without the "tt" prefix.
func (c *Client) ByIMDB(ctx context.Context, imdbID, lang string) ([]Result, error) {
	return c.Search(ctx, map[string]string{
		"imdbid":        strings.TrimPrefix(imdbID, "tt"),
		"sublanguageid": lang,
	})
}

// ByQuery searches by free-text release name plus IMDB identifier when
// known, the middle tier.
func (c *Client) ByQuery(ctx context.Context, query, imdbID, lang string) ([]Result, error) {
	criteria := map[string]string{
		"query":         strings.ToLower(query),
		"sublanguageid": lang,
	}
	if imdbID != "" {
		criteria["imdbid"] = strings.TrimPrefix(imdbID, "tt")
	}
	return c.Search(ctx, criteria)
}

// Download fetches a subtitle file. The provider serves gzip-compressed
// payloads; the caller is responsible for decompression.
func (c *Client) Download(ctx context.Context, url string) ([]byte, error) {
	resp, err := c.client.R().
		SetContext(ctx).
		SetHeader("X-User-Agent", c.userAgent).
		Get(url)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("subtitle download: unexpected status %d", resp.StatusCode())
	}
	return resp.Body(), nil
}
