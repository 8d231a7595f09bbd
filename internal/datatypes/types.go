package datatypes

// Class separates formats whose peek is their first lines from formats
// summarised by size.
type Class string

const (
	ClassText   Class = "text"
	ClassBinary Class = "binary"
)

// AutoExt asks the registry to detect the format from the content.
const AutoExt = "auto"

// DataType is one registered extension
type DataType struct {
	// Ext is the registry key (set during loading)
	Ext string `yaml:"-" json:"ext"`

	DataType    string   `yaml:"data_type" json:"data_type"`
	Class       Class    `yaml:"class" json:"class"`
	Description string   `yaml:"description" json:"description"`
	PeekLines   int      `yaml:"peek_lines" json:"peek_lines"` // 0 = registry default
	MIME        []string `yaml:"mime" json:"mime,omitempty"`
}

// IsText reports whether the peek is taken from the content lines
func (d *DataType) IsText() bool {
	return d.Class == ClassText
}

// ContentType is the MIME type served on download
func (d *DataType) ContentType() string {
	if len(d.MIME) == 0 {
		return "application/octet-stream"
	}
	return d.MIME[0]
}

type registryFile struct {
	DefaultPeekLines int                  `yaml:"default_peek_lines"`
	Types            map[string]*DataType `yaml:"types"`
}

// Analysis is what the job backend reports once a dataset's bytes are inspected
type Analysis struct {
	FileExt  string
	DataType string
	Peek     string
}
