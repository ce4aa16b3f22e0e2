package auth

import "errors"

// Common authentication errors
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid token")
	ErrTokenExpired       = errors.New("token expired")
	ErrUnauthorized       = errors.New("operation requires a higher privilege")
)

// Privilege is the capability granted to a request. It is threaded
// explicitly through every operation instead of living in ambient
// session state.
type Privilege int

const (
	// PrivilegeNone is an unauthenticated request.
	PrivilegeNone Privilege = iota
	// PrivilegeViewer may browse and download.
	PrivilegeViewer
	// PrivilegeEditor may additionally upload, delete and manage shares.
	PrivilegeEditor
)

// String returns the role name used in tokens and API responses.
func (p Privilege) String() string {
	switch p {
	case PrivilegeViewer:
		return "viewer"
	case PrivilegeEditor:
		return "editor"
	default:
		return "none"
	}
}

// ParsePrivilege maps a role name back to a Privilege.
func ParsePrivilege(role string) Privilege {
	switch role {
	case "viewer":
		return PrivilegeViewer
	case "editor":
		return PrivilegeEditor
	default:
		return PrivilegeNone
	}
}

// CanView reports whether the privilege allows read operations.
func (p Privilege) CanView() bool { return p >= PrivilegeViewer }

// CanEdit reports whether the privilege allows mutations.
func (p Privilege) CanEdit() bool { return p >= PrivilegeEditor }
