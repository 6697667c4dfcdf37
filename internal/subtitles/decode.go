package subtitles

import (
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/ianaindex"
)

// gunzip decompresses a downloaded subtitle payload.
func gunzip(data []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open gzip: %w", err)
	}
	defer r.Close()

	out, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("decompress: %w", err)
	}
	return out, nil
}

// lookupEncoding resolves a provider encoding hint to a character
// encoding. Hints like "CP1251" are normalized to their Windows
// codepage names first.
func lookupEncoding(hint string) encoding.Encoding {
	hint = strings.TrimSpace(hint)
	if hint == "" {
		return nil
	}
	if enc, err := ianaindex.IANA.Encoding(hint); err == nil && enc != nil {
		return enc
	}
	lower := strings.ToLower(hint)
	if rest, ok := strings.CutPrefix(lower, "cp"); ok {
		if enc, err := ianaindex.IANA.Encoding("windows-" + rest); err == nil && enc != nil {
			return enc
		}
	}
	return nil
}

// decodeText converts subtitle bytes to UTF-8 using the provider's
// encoding hint. Valid UTF-8 input passes through untouched. When the
// hint is unknown or its decoder fails, the bytes are retried as UTF-8
// as-is rather than dropped.
func decodeText(data []byte, encodingHint string) string {
	if utf8.Valid(data) {
		return string(data)
	}

	if enc := lookupEncoding(encodingHint); enc != nil {
		if decoded, err := enc.NewDecoder().Bytes(data); err == nil {
			return string(decoded)
		}
	}
	return string(data)
}
