// Package codec converts image payloads to and from the base64 text forms
// used on the wire.
package codec

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"

	"flyerproxy/internal/domain"
)

// ChunkSize is the number of raw bytes encoded per step. It is a multiple of
// three so that no chunk emits padding.
const ChunkSize = 3 * 1 << 13

const defaultMIME = "image/png"

// Encode returns the standard base64 encoding of data, built chunk by chunk
// so multi-megabyte assets never pass through a single encoder call.
func Encode(data []byte) string {
	var b strings.Builder
	b.Grow(base64.StdEncoding.EncodedLen(len(data)))
	buf := make([]byte, base64.StdEncoding.EncodedLen(ChunkSize))
	for start := 0; start < len(data); start += ChunkSize {
		end := start + ChunkSize
		if end > len(data) {
			end = len(data)
		}
		n := base64.StdEncoding.EncodedLen(end - start)
		base64.StdEncoding.Encode(buf[:n], data[start:end])
		b.Write(buf[:n])
	}
	return b.String()
}

// DataURI wraps data in a base64 data URI.
func DataURI(mime string, data []byte) string {
	mime = strings.TrimSpace(mime)
	if mime == "" {
		mime = defaultMIME
	}
	return "data:" + mime + ";base64," + Encode(data)
}

// ParseImageData accepts either a data URI or raw base64 and returns the
// MIME type and the base64 payload. Raw base64 is assumed to be PNG.
func ParseImageData(raw string) (mime string, b64 string, err error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", "", domain.ErrMissingImage
	}
	mime = defaultMIME
	b64 = raw
	if strings.HasPrefix(raw, "data:") {
		header, payload, ok := strings.Cut(raw, ",")
		if !ok {
			return "", "", fmt.Errorf("codec: malformed data uri")
		}
		header = strings.TrimPrefix(header, "data:")
		if !strings.HasSuffix(header, ";base64") {
			return "", "", fmt.Errorf("codec: data uri is not base64 encoded")
		}
		if m := strings.TrimSuffix(header, ";base64"); m != "" {
			mime = m
		}
		b64 = payload
	}
	b64 = strings.Map(func(r rune) rune {
		switch r {
		case '\n', '\r', ' ', '\t':
			return -1
		}
		return r
	}, b64)
	if b64 == "" {
		return "", "", domain.ErrMissingImage
	}
	if _, err := base64.StdEncoding.DecodeString(b64); err != nil {
		return "", "", fmt.Errorf("codec: invalid base64 image: %w", err)
	}
	return mime, b64, nil
}

// SniffMIME returns fallback when it looks like an image type, otherwise the
// sniffed content type of data.
func SniffMIME(data []byte, fallback string) string {
	fallback = strings.ToLower(strings.TrimSpace(fallback))
	if i := strings.Index(fallback, ";"); i >= 0 {
		fallback = strings.TrimSpace(fallback[:i])
	}
	if strings.HasPrefix(fallback, "image/") {
		return fallback
	}
	if len(data) > 0 {
		if sniffed := http.DetectContentType(data); strings.HasPrefix(sniffed, "image/") {
			return sniffed
		}
	}
	return defaultMIME
}
