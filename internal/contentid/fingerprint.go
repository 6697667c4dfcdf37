package contentid

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
)

// chunkSize is how much of the head and tail of the file participates
// in the fingerprint.
const chunkSize = 64 * 1024

// ErrTooSmall is returned when a file is too small to fingerprint.
// The subtitle service requires at least two full chunks.
var ErrTooSmall = errors.New("file too small to fingerprint")

// Fingerprint computes the 64-bit content fingerprint used by the
// subtitle search service: the file size plus the sum of little-endian
// int64 words read from the first and last 64 KiB, wrapped modulo 2^64,
// formatted as 16 hex digits.
func Fingerprint(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("stat %s: %w", path, err)
	}
	size := info.Size()
	if size < 2*chunkSize {
		return "", fmt.Errorf("%s is %d bytes: %w", path, size, ErrTooSmall)
	}

	sum := uint64(size)

	head, err := sumChunk(f)
	if err != nil {
		return "", fmt.Errorf("read head of %s: %w", path, err)
	}
	sum += head

	if _, err := f.Seek(size-chunkSize, io.SeekStart); err != nil {
		return "", fmt.Errorf("seek tail of %s: %w", path, err)
	}
	tail, err := sumChunk(f)
	if err != nil {
		return "", fmt.Errorf("read tail of %s: %w", path, err)
	}
	sum += tail

	return fmt.Sprintf("%016x", sum), nil
}

// sumChunk reads one chunk from r and sums its little-endian int64
// words. Overflow wraps, matching the modulo-2^64 contract.
func sumChunk(r io.Reader) (uint64, error) {
	buf := make([]byte, chunkSize)
	if _, err := io.ReadFull(r, buf); err != nil {
		return 0, err
	}

	var sum uint64
	for i := 0; i < chunkSize; i += 8 {
		sum += binary.LittleEndian.Uint64(buf[i : i+8])
	}
	return sum, nil
}
