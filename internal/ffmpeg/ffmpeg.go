// Package ffmpeg probes downloaded video files and normalizes them to
// streamable MP4.
package ffmpeg

import (
	"errors"
	"fmt"
	"os/exec"
)

// Config locates the ffmpeg and ffprobe binaries. Empty paths fall
// back to the binaries on PATH.
type Config struct {
	FFmpegBin  string
	FFprobeBin string
}

func (c Config) ffmpegBin() string {
	if c.FFmpegBin != "" {
		return c.FFmpegBin
	}
	return "ffmpeg"
}

func (c Config) ffprobeBin() string {
	if c.FFprobeBin != "" {
		return c.FFprobeBin
	}
	return "ffprobe"
}

// Sentinel errors for the ffmpeg package.
var (
	// ErrNoMediaFound is returned when a folder holds no video files.
	ErrNoMediaFound = errors.New("no media found")

	// ErrNoVideoStream is returned when a file has no usable video stream.
	ErrNoVideoStream = errors.New("no video stream")

	// ErrToolMissing is returned when a required binary is not installed.
	ErrToolMissing = errors.New("tool missing")
)

// CheckTools verifies the ffmpeg and ffprobe binaries are runnable.
// Call it once at startup so a misconfigured host fails fast instead
// of at the first transcode.
func CheckTools(cfg Config) error {
	for _, bin := range []string{cfg.ffmpegBin(), cfg.ffprobeBin()} {
		if _, err := exec.LookPath(bin); err != nil {
			return fmt.Errorf("%w: %s", ErrToolMissing, bin)
		}
	}
	return nil
}
