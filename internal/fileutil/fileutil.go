// Package fileutil holds filesystem plumbing shared by the pipeline
// stages: the append-only deletion manifest, file copying, and the
// permission pass that makes results servable.
package fileutil

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// ManifestName is the append-only audit file kept per folder. Every
// original file the pipeline removes is recorded here first.
const ManifestName = "meta.txt"

// AppendManifest records path's base name in the manifest of its parent
// folder. Callers must append before removing the file; a removal
// without a manifest line has no audit trail.
func AppendManifest(path string) error {
	manifest := filepath.Join(filepath.Dir(path), ManifestName)
	f, err := os.OpenFile(manifest, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open manifest %s: %w", manifest, err)
	}
	defer func() { _ = f.Close() }()

	if _, err := f.WriteString(filepath.Base(path) + "\n"); err != nil {
		return fmt.Errorf("append manifest %s: %w", manifest, err)
	}
	return nil
}

// RemoveWithManifest appends path to its folder manifest and then
// removes it. The manifest write happens first so a crash between the
// two steps can only leave an extra manifest line, never an
// unaccounted deletion.
func RemoveWithManifest(path string) error {
	if err := AppendManifest(path); err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("remove %s: %w", path, err)
	}
	return nil
}

// CopyFile copies src to dst, creating the destination directory when
// needed. Partial destination files are cleaned up on error.
func CopyFile(src, dst string) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return 0, fmt.Errorf("create directory: %w", err)
	}

	srcFile, err := os.Open(src)
	if err != nil {
		return 0, fmt.Errorf("open source: %w", err)
	}
	defer func() { _ = srcFile.Close() }()

	dstFile, err := os.Create(dst)
	if err != nil {
		return 0, fmt.Errorf("create destination: %w", err)
	}
	defer func() { _ = dstFile.Close() }()

	size, err := io.Copy(dstFile, srcFile)
	if err != nil {
		_ = os.Remove(dst)
		return 0, fmt.Errorf("copy content: %w", err)
	}
	if err := dstFile.Sync(); err != nil {
		return 0, fmt.Errorf("sync: %w", err)
	}
	return size, nil
}

// SetServable walks root making directories traversable (0745) and
// files world-readable (0644) so a web layer can serve them.
func SetServable(root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		mode := os.FileMode(0o644)
		if info.IsDir() {
			mode = 0o745
		}
		if err := os.Chmod(path, mode); err != nil {
			return fmt.Errorf("chmod %s: %w", path, err)
		}
		return nil
	})
}
