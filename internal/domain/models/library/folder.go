package library

import (
	"time"
)

type Folder struct {
	ID          string    `json:"id" db:"id"`
	LibraryID   string    `json:"library_id" db:"library_id"`
	ParentID    *string   `json:"parent_id" db:"parent_id"` // NULL = library root
	Name        string    `json:"name" db:"name"`
	Description string    `json:"description" db:"description"`
	Deleted     bool      `json:"deleted" db:"deleted"`
	CreatedAt   time.Time `json:"create_time" db:"created_at"`
	UpdatedAt   time.Time `json:"update_time" db:"updated_at"`
}

// IsRoot reports whether the folder is its library's root.
func (f *Folder) IsRoot() bool {
	return f.ParentID == nil
}

// FolderPatch is a partial update; nil fields are left unchanged.
type FolderPatch struct {
	Name        *string
	Description *string
}

func (p FolderPatch) Apply(f *Folder) {
	if p.Name != nil {
		f.Name = *p.Name
	}
	if p.Description != nil {
		f.Description = *p.Description
	}
}

// FolderContents is a folder with its immediate children
type FolderContents struct {
	Folder   *Folder   `json:"folder"`
	Folders  []Folder  `json:"folders"`
	Datasets []Dataset `json:"datasets"`
}
