// Package contentid derives stable identifiers for acquired content:
// a short name hash used when renaming files and folders, and a file
// fingerprint understood by the subtitle search service.
package contentid

import (
	"crypto/sha256"
	"encoding/hex"
)

// hashLen is the number of hex digits kept from the digest. Long enough
// to make collisions between folder names implausible, short enough to
// stay readable in paths.
const hashLen = 16

// Hash returns a fixed-length hex identifier derived from name.
// The result is stable across process restarts and never exposes the
// original (possibly unsafe) name in the filesystem.
func Hash(name string) string {
	sum := sha256.Sum256([]byte(name))
	return hex.EncodeToString(sum[:])[:hashLen]
}

// IsHash reports whether s has the shape of an identifier produced by
// Hash. Used to recognize files the pipeline already renamed.
func IsHash(s string) bool {
	if len(s) != hashLen {
		return false
	}
	for _, r := range s {
		if (r < '0' || r > '9') && (r < 'a' || r > 'f') {
			return false
		}
	}
	return true
}
