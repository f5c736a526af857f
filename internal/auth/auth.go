package auth

import (
	"errors"
	"slices"
)

var (
	ErrTokenExpired = errors.New("token expired")
	ErrTokenInvalid = errors.New("token invalid")
	ErrSubjectEmpty = errors.New("subject is required")
)

// Roles understood by the review API.
const (
	RoleReviewer = "reviewer"
	RoleViewer   = "viewer"
)

// Identity is the authenticated caller of the review API.
type Identity struct {
	Subject string   `json:"sub"`
	Name    string   `json:"name,omitempty"`
	Roles   []string `json:"roles"`
}

// HasRole reports whether the identity carries role.
func (i *Identity) HasRole(role string) bool {
	if i == nil {
		return false
	}
	return slices.Contains(i.Roles, role)
}

// Actor is the name recorded against review decisions.
func (i *Identity) Actor() string {
	switch {
	case i == nil:
		return "anonymous"
	case i.Name != "":
		return i.Name
	default:
		return i.Subject
	}
}
