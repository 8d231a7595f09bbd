package library

import (
	"time"
)

// Dataset is an ingested content record. Peek, DataType and FileSize are
// filled in as the ingestion pipeline advances; Error is set only in StateError.
type Dataset struct {
	ID         string       `json:"id" db:"id"`
	LibraryID  string       `json:"library_id" db:"library_id"`
	FolderID   string       `json:"folder_id" db:"folder_id"`
	Name       string       `json:"name" db:"name"`
	FileExt    string       `json:"file_ext" db:"file_ext"`
	DataType   string       `json:"data_type" db:"data_type"`
	FileSize   int64        `json:"file_size" db:"file_size"`
	Peek       string       `json:"peek" db:"peek"`
	State      DatasetState `json:"state" db:"state"`
	Error      *string      `json:"error,omitempty" db:"error"`
	StorageRef string       `json:"-" db:"storage_ref"`
	Deleted    bool         `json:"deleted" db:"deleted"`
	CreatedAt  time.Time    `json:"create_time" db:"created_at"`
	UpdatedAt  time.Time    `json:"update_time" db:"updated_at"`
}

// IsReady reports whether the dataset finished ingestion successfully.
func (d *Dataset) IsReady() bool {
	return d.State == StateOK
}
