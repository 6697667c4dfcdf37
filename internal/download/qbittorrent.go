package download

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"
)

// QBittorrentClient talks to the qBittorrent Web API v2.
type QBittorrentClient struct {
	baseURL    string
	username   string
	password   string
	httpClient *http.Client
	log        *slog.Logger
}

// NewQBittorrentClient creates a new qBittorrent client.
func NewQBittorrentClient(baseURL, username, password string, log *slog.Logger) *QBittorrentClient {
	if log == nil {
		log = slog.Default()
	}
	jar, _ := cookiejar.New(nil)
	return &QBittorrentClient{
		baseURL:  strings.TrimSuffix(baseURL, "/"),
		username: username,
		password: password,
		log:      log.With("component", "qbittorrent"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
			Jar:     jar,
		},
	}
}

// Login authenticates and stores the session cookie.
func (c *QBittorrentClient) Login(ctx context.Context) error {
	form := url.Values{
		"username": {c.username},
		"password": {c.password},
	}

	body, status, err := c.postForm(ctx, "/api/v2/auth/login", form)
	if err != nil {
		return err
	}
	if status != http.StatusOK || strings.TrimSpace(body) != "Ok." {
		c.log.Debug("login rejected", "status", status)
		return ErrAuthFailed
	}

	c.log.Debug("logged in")
	return nil
}

// Add sends a magnet link or torrent URL to the daemon under a category.
// The category is created if it does not exist.
func (c *QBittorrentClient) Add(ctx context.Context, source, category string) error {
	c.log.Debug("adding download", "category", category)

	form := url.Values{
		"urls":     {source},
		"category": {category},
	}

	body, status, err := c.withRelogin(ctx, func() (string, int, error) {
		return c.postForm(ctx, "/api/v2/torrents/add", form)
	})
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("add download: unexpected status %d", status)
	}
	if strings.TrimSpace(body) == "Fails." {
		return fmt.Errorf("daemon rejected source")
	}

	c.log.Debug("download added", "category", category)
	return nil
}

// Status returns the status of the download in a category.
// Returns ErrJobNotFound if the daemon has nothing under the category.
func (c *QBittorrentClient) Status(ctx context.Context, category string) (*JobStatus, error) {
	infos, err := c.torrentsInfo(ctx, category)
	if err != nil {
		return nil, err
	}
	if len(infos) == 0 {
		return nil, ErrJobNotFound
	}

	info := infos[0]
	return &JobStatus{
		Hash:        info.Hash,
		Name:        info.Name,
		State:       info.State,
		Progress:    info.Progress,
		Size:        info.Size,
		Speed:       info.Dlspeed,
		ETA:         time.Duration(info.ETA) * time.Second,
		SavePath:    info.SavePath,
		ContentPath: info.ContentPath,
	}, nil
}

// Remove deletes every download in a category, optionally with files.
// Removing an unknown category is a no-op.
func (c *QBittorrentClient) Remove(ctx context.Context, category string, deleteFiles bool) error {
	c.log.Debug("removing downloads", "category", category, "delete_files", deleteFiles)

	infos, err := c.torrentsInfo(ctx, category)
	if err != nil {
		return err
	}
	if len(infos) == 0 {
		return nil
	}

	hashes := make([]string, 0, len(infos))
	for _, info := range infos {
		hashes = append(hashes, info.Hash)
	}

	form := url.Values{
		"hashes":      {strings.Join(hashes, "|")},
		"deleteFiles": {fmt.Sprintf("%t", deleteFiles)},
	}
	_, status, err := c.withRelogin(ctx, func() (string, int, error) {
		return c.postForm(ctx, "/api/v2/torrents/delete", form)
	})
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("remove downloads: unexpected status %d", status)
	}

	c.log.Debug("downloads removed", "category", category, "count", len(hashes))
	return nil
}

type torrentInfo struct {
	Hash        string  `json:"hash"`
	Name        string  `json:"name"`
	State       string  `json:"state"`
	Progress    float64 `json:"progress"`
	Size        int64   `json:"size"`
	Dlspeed     int64   `json:"dlspeed"`
	ETA         int64   `json:"eta"`
	SavePath    string  `json:"save_path"`
	ContentPath string  `json:"content_path"`
}

func (c *QBittorrentClient) torrentsInfo(ctx context.Context, category string) ([]torrentInfo, error) {
	path := "/api/v2/torrents/info?category=" + url.QueryEscape(category)

	body, status, err := c.withRelogin(ctx, func() (string, int, error) {
		return c.get(ctx, path)
	})
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("torrents info: unexpected status %d", status)
	}

	var infos []torrentInfo
	if err := json.Unmarshal([]byte(body), &infos); err != nil {
		return nil, fmt.Errorf("decode torrents info: %w", err)
	}
	return infos, nil
}

// withRelogin runs a request and retries once after re-authenticating
// when the session cookie has expired.
func (c *QBittorrentClient) withRelogin(ctx context.Context, do func() (string, int, error)) (string, int, error) {
	body, status, err := do()
	if err != nil {
		return "", 0, err
	}
	if status == http.StatusForbidden {
		c.log.Debug("session expired, re-authenticating")
		if err := c.Login(ctx); err != nil {
			return "", 0, err
		}
		return do()
	}
	return body, status, nil
}

func (c *QBittorrentClient) get(ctx context.Context, path string) (string, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return "", 0, fmt.Errorf("create request: %w", err)
	}
	return c.do(req)
}

func (c *QBittorrentClient) postForm(ctx context.Context, path string, form url.Values) (string, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path,
		strings.NewReader(form.Encode()))
	if err != nil {
		return "", 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.do(req)
}

func (c *QBittorrentClient) do(req *http.Request) (string, int, error) {
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Debug("api request failed", "path", req.URL.Path, "error", err)
		return "", 0, ErrClientUnavailable
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", 0, fmt.Errorf("read response: %w", err)
	}

	c.log.Debug("api request complete", "path", req.URL.Path,
		"status", resp.StatusCode, "duration_ms", time.Since(start).Milliseconds())
	return string(body), resp.StatusCode, nil
}
