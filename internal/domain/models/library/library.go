package library

import (
	"time"
)

// Library is a named, permissioned collection with its own folder tree.
// Deleted is a lifecycle flag; libraries are never physically removed.
type Library struct {
	ID           string    `json:"id" db:"id"`
	Name         string    `json:"name" db:"name"`
	Description  string    `json:"description" db:"description"`
	Synopsis     string    `json:"synopsis" db:"synopsis"`
	RootFolderID string    `json:"root_folder_id" db:"root_folder_id"`
	Deleted      bool      `json:"deleted" db:"deleted"`
	CreatedAt    time.Time `json:"create_time" db:"created_at"`
	UpdatedAt    time.Time `json:"update_time" db:"updated_at"`
}

// LibraryPatch is a partial update; nil fields are left unchanged.
type LibraryPatch struct {
	Name        *string
	Description *string
	Synopsis    *string
}

// IsEmpty reports whether the patch changes nothing.
func (p LibraryPatch) IsEmpty() bool {
	return p.Name == nil && p.Description == nil && p.Synopsis == nil
}

// Apply copies the supplied fields onto lib.
func (p LibraryPatch) Apply(lib *Library) {
	if p.Name != nil {
		lib.Name = *p.Name
	}
	if p.Description != nil {
		lib.Description = *p.Description
	}
	if p.Synopsis != nil {
		lib.Synopsis = *p.Synopsis
	}
}
