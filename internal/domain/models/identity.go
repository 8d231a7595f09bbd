package models

// Identity is the caller of a service operation, supplied by the
// authentication layer and trusted as-is.
type Identity struct {
	UserID string   `json:"user_id,omitempty"`
	Email  string   `json:"email,omitempty"`
	Roles  []string `json:"roles,omitempty"`
	Admin  bool     `json:"admin"`
}

// PrivateRoleID is the role every user holds by themselves.
func PrivateRoleID(userID string) string {
	return "user:" + userID
}

// Anonymous returns an identity with no user and no roles.
func Anonymous() Identity {
	return Identity{}
}

// NewUserIdentity builds an identity holding the user's private role plus extra roles.
func NewUserIdentity(userID, email string, roles []string, admin bool) Identity {
	all := make([]string, 0, len(roles)+1)
	all = append(all, PrivateRoleID(userID))
	for _, r := range roles {
		if r != "" && r != all[0] {
			all = append(all, r)
		}
	}
	return Identity{UserID: userID, Email: email, Roles: all, Admin: admin}
}

// IsAnonymous reports whether no user is attached.
func (i Identity) IsAnonymous() bool {
	return i.UserID == ""
}

// HasAnyRole reports whether the identity holds at least one of roles.
func (i Identity) HasAnyRole(roles []string) bool {
	for _, want := range roles {
		for _, have := range i.Roles {
			if want == have {
				return true
			}
		}
	}
	return false
}
