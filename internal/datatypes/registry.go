// Package datatypes maps dataset extensions to data types and builds the
// short peek stored with every ingested dataset.
package datatypes

import (
	"bytes"
	"embed"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"

	"librarian/internal/config"
	"librarian/internal/domain"
)

//go:embed config/*.yaml
var configFiles embed.FS

const fallbackText = "txt"
const fallbackBinary = "data"

// Registry holds the known extensions. It is read-only after NewRegistry.
type Registry struct {
	types            map[string]*DataType
	mimeOrder        []string
	defaultPeekLines int
}

// NewRegistry loads the embedded datatype definitions
func NewRegistry() (*Registry, error) {
	data, err := configFiles.ReadFile("config/datatypes.yaml")
	if err != nil {
		return nil, fmt.Errorf("failed to read datatypes.yaml: %w", err)
	}
	return parseRegistry(data)
}

func parseRegistry(data []byte) (*Registry, error) {
	var file registryFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to unmarshal datatypes.yaml: %w", err)
	}
	if len(file.Types) == 0 {
		return nil, fmt.Errorf("datatypes.yaml defines no types")
	}

	r := &Registry{
		types:            make(map[string]*DataType, len(file.Types)),
		defaultPeekLines: file.DefaultPeekLines,
	}
	if r.defaultPeekLines <= 0 {
		r.defaultPeekLines = 5
	}

	for ext, dt := range file.Types {
		if dt == nil {
			return nil, fmt.Errorf("datatype %q is empty", ext)
		}
		if dt.Class != ClassText && dt.Class != ClassBinary {
			return nil, fmt.Errorf("datatype %q: unknown class %q", ext, dt.Class)
		}
		dt.Ext = ext
		if dt.PeekLines <= 0 {
			dt.PeekLines = r.defaultPeekLines
		}
		r.types[ext] = dt
		r.mimeOrder = append(r.mimeOrder, ext)
	}
	// Map iteration order is random; detection must not be.
	sort.Strings(r.mimeOrder)

	for _, ext := range []string{fallbackText, fallbackBinary} {
		if _, ok := r.types[ext]; !ok {
			return nil, fmt.Errorf("datatypes.yaml must define %q", ext)
		}
	}
	return r, nil
}

// NormalizeExt lowercases ext and strips a leading dot. Empty becomes AutoExt.
func NormalizeExt(ext string) string {
	ext = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
	if ext == "" {
		return AutoExt
	}
	return ext
}

// ValidateDeclared checks a client-declared extension and returns its
// normalized form.
func (r *Registry) ValidateDeclared(ext string) (string, error) {
	ext = NormalizeExt(ext)
	if ext == AutoExt {
		return ext, nil
	}
	if len(ext) > config.MaxExtensionLength {
		return "", &domain.ValidationError{Message: "file extension too long"}
	}
	if _, ok := r.types[ext]; !ok {
		return "", &domain.ValidationError{Message: fmt.Sprintf("unknown file extension %q", ext)}
	}
	return ext, nil
}

// Lookup returns the datatype registered for ext
func (r *Registry) Lookup(ext string) (*DataType, bool) {
	dt, ok := r.types[NormalizeExt(ext)]
	return dt, ok
}

// Extensions returns every registered extension in sorted order
func (r *Registry) Extensions() []string {
	out := make([]string, len(r.mimeOrder))
	copy(out, r.mimeOrder)
	return out
}

// Detect picks a datatype from the first bytes of the content
func (r *Registry) Detect(head []byte) *DataType {
	contentType := http.DetectContentType(head)
	mediaType := strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0])

	for _, ext := range r.mimeOrder {
		for _, m := range r.types[ext].MIME {
			if m == mediaType {
				return r.types[ext]
			}
		}
	}
	if utf8.Valid(head) && !bytes.ContainsRune(head, 0) {
		return r.types[fallbackText]
	}
	return r.types[fallbackBinary]
}

// Analyze reads the start of the content and derives the datatype and peek.
// size is the full content length, used for binary peeks.
func (r *Registry) Analyze(content io.Reader, declaredExt string, size int64) (*Analysis, error) {
	head, err := io.ReadAll(io.LimitReader(content, config.PeekSniffBytes))
	if err != nil {
		return nil, fmt.Errorf("reading content: %w", err)
	}

	var dt *DataType
	if ext := NormalizeExt(declaredExt); ext != AutoExt {
		found, ok := r.types[ext]
		if !ok {
			return nil, fmt.Errorf("unknown file extension %q", ext)
		}
		dt = found
	} else {
		dt = r.Detect(head)
	}

	return &Analysis{
		FileExt:  dt.Ext,
		DataType: dt.DataType,
		Peek:     r.Peek(dt, head, size),
	}, nil
}

// Peek renders the preview for content of type dt
func (r *Registry) Peek(dt *DataType, head []byte, size int64) string {
	if !dt.IsText() {
		return fmt.Sprintf("Binary %s file, %s", dt.DataType, humanize.Bytes(uint64(size)))
	}

	lines := bytes.SplitAfterN(head, []byte("\n"), dt.PeekLines+1)
	if len(lines) > dt.PeekLines {
		lines = lines[:dt.PeekLines]
	}
	peek := bytes.Join(lines, nil)
	if len(peek) > config.PeekMaxBytes {
		peek = peek[:config.PeekMaxBytes]
	}
	return strings.ToValidUTF8(strings.TrimRight(string(peek), "\r\n"), "")
}
