// Package vtt converts SRT subtitle cues into WebVTT. Conversion is
// best-effort: malformed cues are dropped silently, matching the
// reliability of subtitle files found in the wild. Only structural I/O
// failures are reported as errors.
package vtt

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// Header is the WebVTT format marker emitted at the top of converted
// output.
const Header = "WEBVTT"

var (
	timingStart = regexp.MustCompile(`^\d+:\d+:\d+`)
	timingLine  = regexp.MustCompile(`^(\d+):(\d+):(\d+)(?:,(\d+))?\s*--?>\s*(\d+):(\d+):(\d+)(?:,(\d+))?`)
)

// Convert translates SRT text into WebVTT text. Cues that do not carry
// a parseable timing line are dropped. Input with fewer than two cue
// blocks yields an empty string.
func Convert(data string) string {
	data = strings.ReplaceAll(data, "\r", "")
	data = strings.TrimSpace(data)

	blocks := strings.Split(data, "\n\n")
	if len(blocks) <= 1 {
		return ""
	}

	var cues []string
	for _, block := range blocks {
		if cue := convertCue(block); cue != "" {
			cues = append(cues, cue)
		}
	}
	if len(cues) == 0 {
		return ""
	}

	return Header + "\n\n" + strings.Join(cues, "\n\n") + "\n"
}

// convertCue translates one SRT cue block. It returns "" when the cue
// does not hold a valid timing line at the expected position.
func convertCue(block string) string {
	if len(block) <= 1 {
		return ""
	}
	lines := strings.Split(block, "\n")

	i := 0
	// A leading numeric index line is dropped, but only when the next
	// line is a timing line; otherwise it is cue text.
	if !timingStart.MatchString(lines[0]) && len(lines) > 1 && timingStart.MatchString(lines[1]) {
		i = 1
	}

	var out []string
	for i < len(lines) && timingStart.MatchString(lines[i]) {
		m := timingLine.FindStringSubmatch(lines[i])
		if m == nil {
			return ""
		}
		trailer := lines[i][len(m[0]):]
		out = append(out, fmt.Sprintf("%s:%s:%s.%s --> %s:%s:%s.%s%s",
			m[1], m[2], m[3], millis(m[4]), m[5], m[6], m[7], millis(m[8]), trailer))
		i++
	}
	if len(out) == 0 {
		return ""
	}

	if i < len(lines) {
		text := strings.Join(lines[i:], "\n")
		// A literal arrow inside cue text would be ambiguous with the
		// timing separator.
		text = strings.ReplaceAll(text, "-->", " ->")
		if text != "" {
			out = append(out, text)
		}
	}

	return strings.Join(out, "\n")
}

func millis(m string) string {
	if m == "" {
		return "000"
	}
	return m
}

// ConvertFile reads srtPath and writes the converted cues next to it
// with a .vtt extension, returning the output path.
func ConvertFile(srtPath string) (string, error) {
	data, err := os.ReadFile(srtPath)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", srtPath, err)
	}

	text := strings.TrimPrefix(string(data), "\uFEFF")

	base := strings.TrimSuffix(srtPath, filepath.Ext(srtPath))
	outPath := base + ".vtt"
	if err := os.WriteFile(outPath, []byte(Convert(text)), 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", outPath, err)
	}
	return outPath, nil
}
