// Package scanner discovers media and subtitle files under a content
// folder, filtering by extension and skipping designated working
// subfolders.
package scanner

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

var (
	// ErrNotVideo is returned when a single-file root does not carry a
	// video extension.
	ErrNotVideo = errors.New("not a video file")

	// ErrNotSubtitle is returned when a single-file root does not carry
	// a subtitle extension.
	ErrNotSubtitle = errors.New("not a subtitle file")
)

// VideoExtensions are the containers the pipeline accepts as input.
var VideoExtensions = []string{".mp4", ".mkv"}

// SubtitleExtensions are the subtitle formats the pipeline scans for.
var SubtitleExtensions = []string{".srt"}

// Kind selects the validation error used for single-file roots.
type Kind int

const (
	KindVideo Kind = iota
	KindSubtitle
)

// Scan walks root and returns every file whose extension
// (case-insensitive) is in exts. Directories named in excludeDirs are
// not descended into. If root is itself a file its extension is
// validated and a singleton set returned.
//
// The result is a set: no duplicates, no guaranteed order. Callers that
// need determinism sort separately.
func Scan(root string, exts []string, excludeDirs []string, kind Kind) (map[string]struct{}, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", root, err)
	}

	wanted := make(map[string]struct{}, len(exts))
	for _, e := range exts {
		wanted[strings.ToLower(e)] = struct{}{}
	}

	found := make(map[string]struct{})

	if !info.IsDir() {
		if _, ok := wanted[strings.ToLower(filepath.Ext(root))]; !ok {
			if kind == KindSubtitle {
				return nil, fmt.Errorf("%s: %w", root, ErrNotSubtitle)
			}
			return nil, fmt.Errorf("%s: %w", root, ErrNotVideo)
		}
		found[root] = struct{}{}
		return found, nil
	}

	excluded := make(map[string]struct{}, len(excludeDirs))
	for _, d := range excludeDirs {
		excluded[d] = struct{}{}
	}

	// Iterative traversal: adversarial trees can be deep enough to
	// matter, so no call-stack recursion here.
	stack := []string{root}
	for len(stack) > 0 {
		dir := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		entries, err := os.ReadDir(dir)
		if err != nil {
			return nil, fmt.Errorf("read dir %s: %w", dir, err)
		}
		for _, entry := range entries {
			path := filepath.Join(dir, entry.Name())
			if entry.IsDir() {
				if _, skip := excluded[entry.Name()]; skip {
					continue
				}
				stack = append(stack, path)
				continue
			}
			if _, ok := wanted[strings.ToLower(filepath.Ext(entry.Name()))]; ok {
				found[path] = struct{}{}
			}
		}
	}

	return found, nil
}

// Sorted returns the set's paths in lexicographic order.
func Sorted(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for p := range set {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}
