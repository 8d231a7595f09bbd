package blob

import (
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// CompressionTag is the first byte of every stored blob. Values are part of
// the on-disk format.
type CompressionTag uint8

const (
	CompressionNone CompressionTag = 0
	CompressionLZ4  CompressionTag = 1
	CompressionZstd CompressionTag = 2
)

func (tag CompressionTag) String() string {
	switch tag {
	case CompressionNone:
		return "none"
	case CompressionLZ4:
		return "lz4"
	case CompressionZstd:
		return "zstd"
	default:
		return fmt.Sprintf("unknown(%d)", tag)
	}
}

// SelectCompression picks an algorithm from a sniffed content type:
// zstd for text, nothing for formats that are already compressed, lz4 for
// everything else.
func SelectCompression(contentType string) CompressionTag {
	mediaType := strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0])

	switch {
	case strings.HasPrefix(mediaType, "text/"),
		mediaType == "application/json",
		mediaType == "application/xml",
		mediaType == "application/x-ndjson":
		return CompressionZstd
	case strings.HasPrefix(mediaType, "image/"),
		strings.HasPrefix(mediaType, "video/"),
		strings.HasPrefix(mediaType, "audio/"),
		mediaType == "application/zip",
		mediaType == "application/x-gzip",
		mediaType == "application/x-rar-compressed",
		mediaType == "application/pdf":
		return CompressionNone
	}
	return CompressionLZ4
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

// newCompressWriter wraps w; Close flushes the compressor but not w.
func newCompressWriter(w io.Writer, tag CompressionTag) (io.WriteCloser, error) {
	switch tag {
	case CompressionNone:
		return nopWriteCloser{w}, nil
	case CompressionLZ4:
		return lz4.NewWriter(w), nil
	case CompressionZstd:
		enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			return nil, fmt.Errorf("zstd writer: %w", err)
		}
		return enc, nil
	default:
		return nil, fmt.Errorf("unsupported compression tag: %d", tag)
	}
}

// readCloser pairs a decoding reader with the cleanup of every layer under it.
type readCloser struct {
	io.Reader
	closers []func() error
}

func (rc *readCloser) Close() error {
	var first error
	for _, c := range rc.closers {
		if err := c(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// newDecompressReader wraps src; closing the result closes src.
func newDecompressReader(src io.ReadCloser, tag CompressionTag) (io.ReadCloser, error) {
	switch tag {
	case CompressionNone:
		return src, nil
	case CompressionLZ4:
		return &readCloser{Reader: lz4.NewReader(src), closers: []func() error{src.Close}}, nil
	case CompressionZstd:
		dec, err := zstd.NewReader(src)
		if err != nil {
			return nil, fmt.Errorf("zstd reader: %w", err)
		}
		return &readCloser{Reader: dec, closers: []func() error{
			func() error { dec.Close(); return nil },
			src.Close,
		}}, nil
	default:
		return nil, fmt.Errorf("unsupported compression tag: %d", tag)
	}
}
