package library

import (
	"fmt"
	"regexp"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"librarian/internal/config"
	"librarian/internal/domain"
	libSvc "librarian/internal/domain/services/library"
)

var folderNamePattern = regexp.MustCompile(`^[^/]+$`)

func validationFailed(err error) error {
	return fmt.Errorf("%w: %v", domain.ErrValidation, err)
}

// notBlank rejects strings (or string pointers) that are only whitespace
func notBlank(value interface{}) error {
	var s string
	switch v := value.(type) {
	case string:
		s = v
	case *string:
		if v == nil {
			return nil
		}
		s = *v
	default:
		return fmt.Errorf("must be a string")
	}
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("cannot be blank")
	}
	return nil
}

func validateCreateLibrary(req *libSvc.CreateLibraryRequest) error {
	return validation.ValidateStruct(req,
		validation.Field(&req.Name,
			validation.Required,
			validation.Length(1, config.MaxLibraryNameLength),
			validation.By(notBlank),
		),
		validation.Field(&req.Description, validation.Length(0, config.MaxDescriptionLength)),
		validation.Field(&req.Synopsis, validation.Length(0, config.MaxDescriptionLength)),
	)
}

func validateUpdateLibrary(req *libSvc.UpdateLibraryRequest) error {
	return validation.ValidateStruct(req,
		validation.Field(&req.Name,
			validation.NilOrNotEmpty,
			validation.Length(1, config.MaxLibraryNameLength),
			validation.By(notBlank),
		),
		validation.Field(&req.Description, validation.Length(0, config.MaxDescriptionLength)),
		validation.Field(&req.Synopsis, validation.Length(0, config.MaxDescriptionLength)),
	)
}

func validateCreateFolder(req *libSvc.CreateFolderRequest) error {
	return validation.ValidateStruct(req,
		validation.Field(&req.Name,
			validation.Required,
			validation.Length(1, config.MaxFolderNameLength),
			validation.Match(folderNamePattern).Error("folder name cannot contain slashes"),
			validation.By(notBlank),
		),
		validation.Field(&req.Description, validation.Length(0, config.MaxDescriptionLength)),
	)
}

func validateUpdateFolder(req *libSvc.UpdateFolderRequest) error {
	return validation.ValidateStruct(req,
		validation.Field(&req.Name,
			validation.NilOrNotEmpty,
			validation.Length(1, config.MaxFolderNameLength),
			validation.Match(folderNamePattern).Error("folder name cannot contain slashes"),
			validation.By(notBlank),
		),
		validation.Field(&req.Description, validation.Length(0, config.MaxDescriptionLength)),
	)
}

func validateSetPermissions(req *libSvc.SetPermissionsRequest) error {
	roleRules := validation.Each(validation.Required, validation.Length(1, 255))
	return validation.ValidateStruct(req,
		validation.Field(&req.AccessRoleIDs, roleRules),
		validation.Field(&req.ModifyRoleIDs, roleRules),
		validation.Field(&req.ManageRoleIDs, roleRules),
	)
}

// dedupe keeps the first occurrence of each trimmed role id
func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
