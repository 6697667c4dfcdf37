// Package config handles TOML configuration loading with environment
// variable substitution.
package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"github.com/BurntSushi/toml"
)

// Config is the root configuration structure.
type Config struct {
	Server        ServerConfig        `toml:"server"`
	Database      DatabaseConfig      `toml:"database"`
	Media         MediaConfig         `toml:"media"`
	QBittorrent   QBittorrentConfig   `toml:"qbittorrent"`
	MovieDB       MovieDBConfig       `toml:"moviedb"`
	OpenSubtitles OpenSubtitlesConfig `toml:"opensubtitles"`
	Subtitles     SubtitlesConfig     `toml:"subtitles"`
	Pipeline      PipelineConfig      `toml:"pipeline"`
}

type ServerConfig struct {
	LogLevel string `toml:"log_level"`
	DataDir  string `toml:"data_dir"`
}

type DatabaseConfig struct {
	Path string `toml:"path"`
}

// MediaConfig locates the managed media tree. BaseDir is the prefix
// tried when the download daemon reports a path relative to its own
// working directory.
type MediaConfig struct {
	Root    string `toml:"root"`
	BaseDir string `toml:"base_dir"`
}

type QBittorrentConfig struct {
	URL      string `toml:"url"`
	Username string `toml:"username"`
	Password string `toml:"password"`
}

type MovieDBConfig struct {
	APIKey string `toml:"api_key"`
}

type OpenSubtitlesConfig struct {
	URL       string `toml:"url"`
	UserAgent string `toml:"user_agent"`
}

type SubtitlesConfig struct {
	Languages []string `toml:"languages"`
	Limit     int      `toml:"limit"`
}

type PipelineConfig struct {
	DeleteOriginals bool          `toml:"delete_originals"`
	PollInterval    time.Duration `toml:"poll_interval"`
	PollMaxAttempts int           `toml:"poll_max_attempts"`
}

// Load reads and parses the configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	// Substitute environment variables
	content := substituteEnvVars(string(data))

	var cfg Config
	if _, err := toml.Decode(content, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = "info"
	}
	if c.Server.DataDir == "" {
		c.Server.DataDir = "./data"
	}
	if c.Database.Path == "" {
		c.Database.Path = "./data/streamarr.db"
	}
	if c.OpenSubtitles.URL == "" {
		c.OpenSubtitles.URL = "https://rest.opensubtitles.org/search"
	}
	if c.OpenSubtitles.UserAgent == "" {
		c.OpenSubtitles.UserAgent = "TemporaryUserAgent"
	}
	if len(c.Subtitles.Languages) == 0 {
		c.Subtitles.Languages = []string{"eng"}
	}
	if c.Subtitles.Limit == 0 {
		c.Subtitles.Limit = 5
	}
	if c.Pipeline.PollInterval == 0 {
		c.Pipeline.PollInterval = 15 * time.Second
	}
	if c.Pipeline.PollMaxAttempts == 0 {
		c.Pipeline.PollMaxAttempts = 10000
	}
}

// Validate checks that required fields are present.
func (c *Config) Validate() error {
	if c.Media.Root == "" {
		return fmt.Errorf("config: media.root is required")
	}
	if c.QBittorrent.URL == "" {
		return fmt.Errorf("config: qbittorrent.url is required")
	}
	return nil
}

// substituteEnvVars replaces ${VAR_NAME} with environment variable values.
var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

func substituteEnvVars(content string) string {
	return envVarPattern.ReplaceAllStringFunc(content, func(match string) string {
		varName := match[2 : len(match)-1] // Strip ${ and }
		if value, ok := os.LookupEnv(varName); ok {
			return value
		}
		return match // Leave unchanged if not found
	})
}
