package datatypes

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"librarian/internal/config"
	"librarian/internal/domain"
)

func mustRegistry(t *testing.T) *Registry {
	t.Helper()
	r, err := NewRegistry()
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	return r
}

func TestNewRegistry_LoadsEmbeddedTypes(t *testing.T) {
	r := mustRegistry(t)

	txt, ok := r.Lookup("TXT")
	if !ok {
		t.Fatal("txt not registered")
	}
	if !txt.IsText() || txt.DataType != "text" || txt.PeekLines != r.defaultPeekLines {
		t.Errorf("unexpected txt definition: %+v", txt)
	}

	exts := r.Extensions()
	if len(exts) == 0 || exts[0] > exts[len(exts)-1] {
		t.Errorf("extensions not sorted: %v", exts)
	}
}

func TestValidateDeclared(t *testing.T) {
	r := mustRegistry(t)

	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"txt", "txt", false},
		{".CSV", "csv", false},
		{"", AutoExt, false},
		{"auto", AutoExt, false},
		{"exe", "", true},
		{strings.Repeat("x", config.MaxExtensionLength+1), "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := r.ValidateDeclared(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, domain.ErrValidation) {
				t.Errorf("expected validation error, got %v", err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAnalyze_DeclaredText(t *testing.T) {
	r := mustRegistry(t)
	content := "create_test line 1\nline 2\nline 3\nline 4\nline 5\nline 6\nline 7\n"

	a, err := r.Analyze(strings.NewReader(content), "txt", int64(len(content)))
	if err != nil {
		t.Fatal(err)
	}
	if a.FileExt != "txt" || a.DataType != "text" {
		t.Errorf("unexpected analysis: %+v", a)
	}
	if !strings.Contains(a.Peek, "create_test") {
		t.Errorf("peek missing content: %q", a.Peek)
	}
	if strings.Contains(a.Peek, "line 6") {
		t.Errorf("peek longer than 5 lines: %q", a.Peek)
	}
}

func TestAnalyze_AutoDetect(t *testing.T) {
	r := mustRegistry(t)

	tests := []struct {
		name     string
		content  []byte
		wantExt  string
		wantPeek string
	}{
		{"plain text", []byte("hello\nworld\n"), "txt", "hello\nworld"},
		{"json", []byte(`{"a": 1}`), "txt", `{"a": 1}`},
		{"png", append([]byte("\x89PNG\x0D\x0A\x1A\x0A"), make([]byte, 2048)...), "png", "Binary image file, 2.1 kB"},
		{"binary", []byte{0x00, 0x01, 0x02, 0x03}, "data", "Binary data file, 4 B"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := r.Analyze(bytes.NewReader(tt.content), "", int64(len(tt.content)))
			if err != nil {
				t.Fatal(err)
			}
			if a.FileExt != tt.wantExt {
				t.Errorf("ext = %q, want %q", a.FileExt, tt.wantExt)
			}
			if a.Peek != tt.wantPeek {
				t.Errorf("peek = %q, want %q", a.Peek, tt.wantPeek)
			}
		})
	}
}

func TestPeek_TruncatesLongLines(t *testing.T) {
	r := mustRegistry(t)
	dt, _ := r.Lookup("txt")

	head := []byte(strings.Repeat("a", config.PeekMaxBytes*2))
	if got := r.Peek(dt, head, int64(len(head))); len(got) != config.PeekMaxBytes {
		t.Errorf("peek length = %d, want %d", len(got), config.PeekMaxBytes)
	}
}

func TestParseRegistry_Errors(t *testing.T) {
	tests := map[string]string{
		"empty":        "types: {}",
		"bad class":    "types:\n  txt: {data_type: text, class: video}\n  data: {data_type: data, class: binary}",
		"no fallback":  "types:\n  csv: {data_type: tabular, class: text}",
		"invalid yaml": "types: [",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := parseRegistry([]byte(doc)); err == nil {
				t.Error("expected error")
			}
		})
	}
}
