package library

import "fmt"

// ResourceKind tags the entity a permission check or grant refers to.
type ResourceKind string

const (
	KindLibrary ResourceKind = "library"
	KindFolder  ResourceKind = "folder"
	KindDataset ResourceKind = "dataset"
)

// Grantable reports whether grants may be attached to this kind.
func (k ResourceKind) Grantable() bool {
	return k == KindLibrary || k == KindFolder
}

// ParseResourceKind converts a stored kind back to a ResourceKind.
func ParseResourceKind(s string) (ResourceKind, error) {
	switch ResourceKind(s) {
	case KindLibrary, KindFolder, KindDataset:
		return ResourceKind(s), nil
	}
	return "", fmt.Errorf("unknown resource kind %q", s)
}

// Action is a permission verb.
type Action string

const (
	ActionAccess Action = "access"
	ActionModify Action = "modify"
	ActionManage Action = "manage"
)

// AllActions in display order.
var AllActions = []Action{ActionAccess, ActionModify, ActionManage}

// ParseAction converts a stored action back to an Action.
func ParseAction(s string) (Action, error) {
	switch Action(s) {
	case ActionAccess, ActionModify, ActionManage:
		return Action(s), nil
	}
	return "", fmt.Errorf("unknown action %q", s)
}

// DefaultAllowed is the outcome when no level of the tree restricts the action:
// access is public, everything else is denied.
func (a Action) DefaultAllowed() bool {
	return a == ActionAccess
}

// PermissionGrant gives a role an action on a library or folder.
type PermissionGrant struct {
	ResourceID string       `json:"resource_id" db:"resource_id"`
	Kind       ResourceKind `json:"kind" db:"kind"`
	RoleID     string       `json:"role_id" db:"role_id"`
	Action     Action       `json:"action" db:"action"`
}

// ResourceRef identifies one level of the permission resolution chain.
type ResourceRef struct {
	ID   string
	Kind ResourceKind
}

// LibraryPermissions is the per-action role listing of a library.
type LibraryPermissions struct {
	AccessRoleIDs []string `json:"access_library_role_list"`
	ModifyRoleIDs []string `json:"modify_library_role_list"`
	ManageRoleIDs []string `json:"manage_library_role_list"`
}

// GroupByAction builds LibraryPermissions from flat grants.
func GroupByAction(grants []PermissionGrant) LibraryPermissions {
	perms := LibraryPermissions{
		AccessRoleIDs: []string{},
		ModifyRoleIDs: []string{},
		ManageRoleIDs: []string{},
	}
	for _, g := range grants {
		switch g.Action {
		case ActionAccess:
			perms.AccessRoleIDs = append(perms.AccessRoleIDs, g.RoleID)
		case ActionModify:
			perms.ModifyRoleIDs = append(perms.ModifyRoleIDs, g.RoleID)
		case ActionManage:
			perms.ManageRoleIDs = append(perms.ManageRoleIDs, g.RoleID)
		}
	}
	return perms
}
