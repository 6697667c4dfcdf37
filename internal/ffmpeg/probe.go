package ffmpeg

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/floostack/transcoder/ffmpeg"
)

// MediaInfo holds the probe results for a single video file.
type MediaInfo struct {
	Path     string
	Width    int
	Height   int
	Duration float64 // seconds
	Raw      string  // full probe output as JSON
}

// Probe reads stream metadata from a video file using ffprobe.
// Returns ErrNoVideoStream if no stream reports a frame size.
func Probe(cfg Config, path string) (*MediaInfo, error) {
	metadata, err := ffmpeg.
		New(&ffmpeg.Config{
			FfmpegBinPath:  cfg.ffmpegBin(),
			FfprobeBinPath: cfg.ffprobeBin(),
		}).
		Input(path).
		GetMetadata()
	if err != nil {
		return nil, fmt.Errorf("probe %s: %w", path, err)
	}

	info := &MediaInfo{Path: path}

	duration, _ := strconv.ParseFloat(metadata.GetFormat().GetDuration(), 64)
	info.Duration = duration

	for _, stream := range metadata.GetStreams() {
		if stream.GetWidth() > 0 {
			info.Width = stream.GetWidth()
			info.Height = stream.GetHeight()
			break
		}
	}
	if info.Width == 0 {
		return nil, fmt.Errorf("probe %s: %w", path, ErrNoVideoStream)
	}

	raw, err := json.Marshal(metadata)
	if err != nil {
		return nil, fmt.Errorf("encode probe output: %w", err)
	}
	info.Raw = string(raw)

	return info, nil
}
