package config

const (
	// MaxLibraryNameLength is the maximum length for library names.
	// Limited to 255 to fit in PostgreSQL VARCHAR(255).
	MaxLibraryNameLength = 255

	// MaxFolderNameLength is the maximum length for folder names.
	MaxFolderNameLength = 255

	// MaxDatasetNameLength is the maximum length for dataset names.
	MaxDatasetNameLength = 255

	// MaxDescriptionLength bounds library/folder description and synopsis.
	MaxDescriptionLength = 4096

	// MaxExtensionLength bounds declared file extensions ("txt", "fastqsanger", ...).
	MaxExtensionLength = 32

	// DefaultMaxUploadBytes is the largest upload spooled by the ingestion pipeline (64MB).
	DefaultMaxUploadBytes = 64 << 20

	// PeekMaxBytes caps the preview excerpt stored on a dataset.
	PeekMaxBytes = 1000

	// PeekSniffBytes is how much of the stored content is read for format detection and peek.
	PeekSniffBytes = 64 << 10
)
