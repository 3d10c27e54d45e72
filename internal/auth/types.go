package auth

import "errors"

// Role represents an authorisation tier.
type Role string

const (
	// RoleViewer can read router and tracker state.
	RoleViewer Role = "viewer"

	// RoleOperator can also trigger refreshes and toggle internet access.
	RoleOperator Role = "operator"

	// RoleAdmin has full control, including router restarts and entity cleanup.
	RoleAdmin Role = "admin"
)

// ValidRoles is the set of valid roles.
var ValidRoles = []Role{RoleViewer, RoleOperator, RoleAdmin}

// IsValidRole returns true if r is one of ValidRoles.
func IsValidRole(r Role) bool {
	for _, v := range ValidRoles {
		if r == v {
			return true
		}
	}
	return false
}

// Sentinel errors for auth operations.
var (
	ErrTokenInvalid  = errors.New("auth: invalid token")
	ErrInvalidRole   = errors.New("auth: invalid role")
	ErrMissingSecret = errors.New("auth: signing secret is empty")
	ErrForbidden     = errors.New("auth: insufficient permissions")
)
