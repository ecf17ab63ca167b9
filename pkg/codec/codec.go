// Package codec turns application values into opaque, text-safe message bodies and back.
//
// The wire format is fixed: JSON, compressed with zlib at the best compression level,
// then standard base64. Producers and consumers must agree on this pipeline; Decode
// reverses Encode stage by stage.
package codec

import (
	"bytes"
	"compress/zlib"
	"crypto/md5" //nolint:gosec // md5 is what the queue service uses for body checksums
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// CompressionLevel is the zlib level used by Encode. Message size drives provider cost and
// limits, so size wins over speed.
const CompressionLevel = zlib.BestCompression

// MaxDecodedSize caps the decompressed size of a body accepted by Decode.
const MaxDecodedSize = 16 << 20

// ErrBodyTooLarge is wrapped by the DecodeError returned for bodies that decompress to
// more than MaxDecodedSize bytes.
var ErrBodyTooLarge = errors.New("decompressed body exceeds size limit")

// Decode stages reported by DecodeError.
const (
	StageEncoding      = "encoding"
	StageCompression   = "compression"
	StageSerialization = "serialization"
)

// DecodeError is returned when a body cannot be reversed through the codec pipeline.
// It usually means producer and consumer disagree on the wire format.
type DecodeError struct {
	Stage string
	Err   error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("failed to decode message body at %s stage: %v", e.Stage, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Encode serializes v, compresses it and encodes the result as base64 text.
func Encode(v any) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to serialize payload: %w", err)
	}

	var buf bytes.Buffer
	zw, err := zlib.NewWriterLevel(&buf, CompressionLevel)
	if err != nil {
		return "", fmt.Errorf("failed to create compressor: %w", err)
	}
	if _, err := zw.Write(raw); err != nil {
		return "", fmt.Errorf("failed to compress payload: %w", err)
	}
	if err := zw.Close(); err != nil {
		return "", fmt.Errorf("failed to compress payload: %w", err)
	}

	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// Decode reverses Encode into out, which must be a non-nil pointer.
// Any failure is reported as a *DecodeError.
func Decode(body string, out any) error {
	compressed, err := base64.StdEncoding.DecodeString(body)
	if err != nil {
		return &DecodeError{Stage: StageEncoding, Err: err}
	}

	zr, err := zlib.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return &DecodeError{Stage: StageCompression, Err: err}
	}
	defer zr.Close()

	raw, err := io.ReadAll(io.LimitReader(zr, MaxDecodedSize+1))
	if err != nil {
		return &DecodeError{Stage: StageCompression, Err: err}
	}
	if len(raw) > MaxDecodedSize {
		return &DecodeError{Stage: StageCompression, Err: fmt.Errorf("%w: %d bytes", ErrBodyTooLarge, MaxDecodedSize)}
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return &DecodeError{Stage: StageSerialization, Err: err}
	}
	return nil
}

// Checksum returns the lowercase hex MD5 of body, the same digest the queue service reports
// for message bodies.
func Checksum(body string) string {
	sum := md5.Sum([]byte(body)) //nolint:gosec // see import
	return hex.EncodeToString(sum[:])
}

// Verify reports whether checksum matches the MD5 of body.
func Verify(body, checksum string) bool {
	return strings.EqualFold(Checksum(body), checksum)
}
