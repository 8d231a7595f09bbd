// Package blob is a content-addressed file store for uploaded dataset bytes.
//
// A blob's reference is the hex BLAKE3 digest of its uncompressed bytes, so
// storing the same upload twice keeps a single copy. Blobs are written to a
// temp file first and renamed into a sharded path (ab/cd/<ref>), which makes
// them either fully present or absent.
package blob

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/zeebo/blake3"
)

const (
	tempDirName = ".tmp"
	blobDirName = "blobs"
	sniffLen    = 512
	refLen      = 64
)

var (
	ErrNotFound   = errors.New("blob not found")
	ErrInvalidRef = errors.New("invalid blob reference")
)

// Object describes a stored blob.
type Object struct {
	Ref         string
	Size        int64
	ContentType string
	Compression CompressionTag
}

// Store writes and reads blobs under a root directory.
type Store struct {
	root   string
	logger *slog.Logger
}

// NewStore creates the directory layout under root.
func NewStore(root string, logger *slog.Logger) (*Store, error) {
	root = filepath.Clean(root)
	for _, dir := range []string{blobDirName, tempDirName} {
		if err := os.MkdirAll(filepath.Join(root, dir), 0o755); err != nil {
			return nil, fmt.Errorf("creating %s directory: %w", dir, err)
		}
	}
	return &Store{root: root, logger: logger}, nil
}

// Put stores everything read from r and returns the blob reference and the
// uncompressed size.
func (s *Store) Put(ctx context.Context, r io.Reader) (string, int64, error) {
	obj, err := s.Store(ctx, r)
	if err != nil {
		return "", 0, err
	}
	return obj.Ref, obj.Size, nil
}

// Store is Put with the full object description.
func (s *Store) Store(ctx context.Context, r io.Reader) (*Object, error) {
	raw, err := os.CreateTemp(filepath.Join(s.root, tempDirName), "raw-*")
	if err != nil {
		return nil, fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(raw.Name())
	defer raw.Close()

	hasher := blake3.New()
	sniff := &sniffer{limit: sniffLen}
	size, err := io.Copy(io.MultiWriter(raw, hasher, sniff), &ctxReader{ctx: ctx, r: r})
	if err != nil {
		return nil, fmt.Errorf("writing blob: %w", err)
	}

	obj := &Object{
		Ref:         hex.EncodeToString(hasher.Sum(nil)),
		Size:        size,
		ContentType: http.DetectContentType(sniff.buf),
	}
	obj.Compression = SelectCompression(obj.ContentType)

	dest := s.pathFor(obj.Ref)
	if _, err := os.Stat(dest); err == nil {
		s.logger.Debug("blob already stored", "ref", obj.Ref, "size", humanize.Bytes(uint64(size)))
		return obj, nil
	}

	if _, err := raw.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("rewinding temp file: %w", err)
	}
	if err := s.commit(ctx, raw, dest, obj.Compression); err != nil {
		return nil, err
	}

	s.logger.Debug("blob stored",
		"ref", obj.Ref,
		"size", humanize.Bytes(uint64(size)),
		"content_type", obj.ContentType,
		"compression", obj.Compression.String(),
	)
	return obj, nil
}

// commit compresses src into a second temp file and renames it into place.
func (s *Store) commit(ctx context.Context, src io.Reader, dest string, tag CompressionTag) error {
	tmp, err := os.CreateTemp(filepath.Join(s.root, tempDirName), "blob-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write([]byte{byte(tag)}); err != nil {
		tmp.Close()
		return fmt.Errorf("writing blob header: %w", err)
	}

	cw, err := newCompressWriter(tmp, tag)
	if err != nil {
		tmp.Close()
		return err
	}
	if _, err := io.Copy(cw, &ctxReader{ctx: ctx, r: src}); err != nil {
		cw.Close()
		tmp.Close()
		return fmt.Errorf("compressing blob: %w", err)
	}
	if err := cw.Close(); err != nil {
		tmp.Close()
		return fmt.Errorf("flushing %s stream: %w", tag, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("syncing blob: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing blob: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("creating shard directory: %w", err)
	}
	if err := os.Rename(tmpPath, dest); err != nil {
		return fmt.Errorf("committing blob: %w", err)
	}
	return nil
}

// Open returns a reader over the uncompressed bytes of ref.
func (s *Store) Open(ctx context.Context, ref string) (io.ReadCloser, error) {
	if err := validateRef(ref); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := os.Open(s.pathFor(ref))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("blob %q: %w", ref, ErrNotFound)
		}
		return nil, fmt.Errorf("open blob %q: %w", ref, err)
	}

	var header [1]byte
	if _, err := io.ReadFull(f, header[:]); err != nil {
		f.Close()
		return nil, fmt.Errorf("reading blob header %q: %w", ref, err)
	}

	rc, err := newDecompressReader(f, CompressionTag(header[0]))
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("blob %q: %w", ref, err)
	}
	return rc, nil
}

// Exists reports whether ref is stored.
func (s *Store) Exists(ctx context.Context, ref string) (bool, error) {
	if err := validateRef(ref); err != nil {
		return false, err
	}
	_, err := os.Stat(s.pathFor(ref))
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *Store) pathFor(ref string) string {
	return filepath.Join(s.root, blobDirName, ref[0:2], ref[2:4], ref)
}

func validateRef(ref string) error {
	if len(ref) != refLen {
		return fmt.Errorf("%w: %q", ErrInvalidRef, ref)
	}
	if _, err := hex.DecodeString(ref); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidRef, ref)
	}
	return nil
}

// sniffer keeps the first limit bytes written to it.
type sniffer struct {
	buf   []byte
	limit int
}

func (s *sniffer) Write(p []byte) (int, error) {
	if room := s.limit - len(s.buf); room > 0 {
		if len(p) < room {
			room = len(p)
		}
		s.buf = append(s.buf, p[:room]...)
	}
	return len(p), nil
}

// ctxReader stops a copy once ctx is done.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
