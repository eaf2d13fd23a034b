package domain

import "fmt"

// Role is a coarse permission tier
type Role string

const (
	RoleViewer      Role = "viewer"
	RoleContributor Role = "contributor"
	RoleAdmin       Role = "admin"
)

// IsValid returns true for a known role
func (r Role) IsValid() bool {
	switch r {
	case RoleViewer, RoleContributor, RoleAdmin:
		return true
	default:
		return false
	}
}

// ParseRole parses a string into a Role
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.IsValid() {
		return "", fmt.Errorf("invalid role: %q", s)
	}
	return r, nil
}

// Capability is a single guarded action
type Capability string

const (
	CapView     Capability = "view"
	CapAdd      Capability = "add"
	CapDelete   Capability = "delete"
	CapEditRoot Capability = "editRoot"
)

// IsValid returns true for a known capability
func (c Capability) IsValid() bool {
	switch c {
	case CapView, CapAdd, CapDelete, CapEditRoot:
		return true
	default:
		return false
	}
}

// Allows applies the static role to capability table.
// It is consulted only when no explicit session user exists.
func (r Role) Allows(c Capability) bool {
	switch r {
	case RoleAdmin:
		return true
	case RoleContributor:
		return c == CapView || c == CapAdd || c == CapDelete
	case RoleViewer:
		return c == CapView
	default:
		return false
	}
}

// User is a logged-in identity with an explicit permission set
type User struct {
	Username    string       `json:"username"`
	DisplayName string       `json:"displayName"`
	Role        Role         `json:"role"`
	Permissions []Capability `json:"permissions"`
}

// HasPermission checks the user's explicit permission set
func (u User) HasPermission(c Capability) bool {
	for _, p := range u.Permissions {
		if p == c {
			return true
		}
	}
	return false
}

// Session is the persisted identity state: an optional logged-in user plus
// the admin-override flag. Either alone grants full authorization.
type Session struct {
	User          *User `json:"user,omitempty"`
	AdminOverride bool  `json:"adminOverride"`
}
