package models

import "fmt"

// Role is the coarse permission level of an account.
type Role string

const (
	RoleViewer Role = "Viewer"
	RoleEditor Role = "Editor"
	RoleAdmin  Role = "Admin"
)

// DefaultRole is assigned to every newly provisioned account.
const DefaultRole = RoleViewer

func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleViewer, RoleEditor, RoleAdmin:
		return Role(s), nil
	default:
		return "", fmt.Errorf("unknown role %q", s)
	}
}

func (r Role) Valid() bool {
	_, err := ParseRole(string(r))
	return err == nil
}

// CanAuthor reports whether the role may create and edit content.
func (r Role) CanAuthor() bool {
	return r == RoleEditor || r == RoleAdmin
}

func (r Role) String() string {
	return string(r)
}
