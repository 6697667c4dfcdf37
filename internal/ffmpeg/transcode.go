package ffmpeg

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/floostack/transcoder/ffmpeg"

	"github.com/streamarr/streamarr/internal/contentid"
	"github.com/streamarr/streamarr/internal/fileutil"
	"github.com/streamarr/streamarr/internal/scanner"
)

// Result describes the primary video a folder was reduced to.
type Result struct {
	VideoPath  string
	FileName   string // hashed name of the primary video, no extension
	SourceName string // original file name without extension
	SourceExt  string
	Width      int
	Height     int
	Duration   float64
	Raw        string
}

// Processor turns a relocated download folder into a single servable
// MP4 named after the folder's content hash.
type Processor struct {
	cfg Config
	log *slog.Logger

	// swapped out in tests
	probe func(cfg Config, path string) (*MediaInfo, error)
	remux func(ctx context.Context, cfg Config, input, output string) error
}

// NewProcessor creates a processor.
func NewProcessor(cfg Config, log *slog.Logger) *Processor {
	if log == nil {
		log = slog.Default()
	}
	return &Processor{
		cfg:   cfg,
		log:   log.With("component", "ffmpeg"),
		probe: Probe,
		remux: remux,
	}
}

// ProcessFolder normalizes every video under folder to an MP4 named by
// the content hash of its file name, probing each one along the way.
// MKV input is remuxed with stream copy; MP4 input is copied as-is.
// The primary video is the one with the longest probed duration, the
// lexicographically first path on a tie. When deleteOriginals is set,
// every source file is recorded in the folder manifest and removed,
// leaving only the hashed renditions.
func (p *Processor) ProcessFolder(ctx context.Context, folder string, deleteOriginals bool) (*Result, error) {
	videos, err := scanner.Scan(folder, scanner.VideoExtensions, nil, scanner.KindVideo)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", folder, err)
	}
	if len(videos) == 0 {
		return nil, fmt.Errorf("%s: %w", folder, ErrNoMediaFound)
	}

	type processed struct {
		info   *MediaInfo
		name   string // hashed name, no extension
		target string
	}

	var done []processed
	for _, path := range scanner.Sorted(videos) {
		base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))

		// Probing is metadata enrichment, not a gate: a video that
		// cannot be probed is still normalized, with zeroed details.
		info, err := p.probe(p.cfg, path)
		if err != nil {
			p.log.Warn("probe failed, continuing without media info", "path", path, "error", err)
			info = &MediaInfo{Path: path}
		}

		// Hashed MP4s are renditions from an earlier run; re-hashing
		// them would pile up copies on every replay.
		if contentid.IsHash(base) && strings.EqualFold(filepath.Ext(path), ".mp4") {
			done = append(done, processed{info: info, name: base, target: path})
			continue
		}

		name := contentid.Hash(filepath.Base(path))
		target := filepath.Join(filepath.Dir(path), name+".mp4")

		p.log.Info("processing video", "path", path, "target", target,
			"width", info.Width, "height", info.Height, "duration_s", info.Duration)

		switch strings.ToLower(filepath.Ext(path)) {
		case ".mp4":
			if _, err := fileutil.CopyFile(path, target); err != nil {
				return nil, fmt.Errorf("copy video: %w", err)
			}
		default:
			if err := p.remux(ctx, p.cfg, path, target); err != nil {
				return nil, fmt.Errorf("remux video: %w", err)
			}
		}
		done = append(done, processed{info: info, name: name, target: target})
	}

	primary := done[0]
	for _, d := range done[1:] {
		if d.info.Duration > primary.info.Duration {
			primary = d
		}
	}

	if deleteOriginals {
		for _, path := range scanner.Sorted(videos) {
			base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
			if contentid.IsHash(base) && strings.EqualFold(filepath.Ext(path), ".mp4") {
				continue
			}
			if err := fileutil.RemoveWithManifest(path); err != nil {
				return nil, fmt.Errorf("remove original: %w", err)
			}
		}
	}

	return &Result{
		VideoPath:  primary.target,
		FileName:   primary.name,
		SourceName: strings.TrimSuffix(filepath.Base(primary.info.Path), filepath.Ext(primary.info.Path)),
		SourceExt:  strings.ToLower(filepath.Ext(primary.info.Path)),
		Width:      primary.info.Width,
		Height:     primary.info.Height,
		Duration:   primary.info.Duration,
		Raw:        primary.info.Raw,
	}, nil
}

// remux rewraps a video into an MP4 container without re-encoding.
func remux(ctx context.Context, cfg Config, input, output string) error {
	outputFormat := "mp4"
	codec := "copy"

	progress, err := ffmpeg.
		New(&ffmpeg.Config{
			FfmpegBinPath:  cfg.ffmpegBin(),
			FfprobeBinPath: cfg.ffprobeBin(),
		}).
		Input(input).
		Output(output).
		WithContext(&ctx).
		Start(ffmpeg.Options{
			OutputFormat: &outputFormat,
			VideoCodec:   &codec,
			AudioCodec:   &codec,
		})
	if err != nil {
		return fmt.Errorf("start remux: %w", err)
	}

	for range progress {
	}
	return nil
}
