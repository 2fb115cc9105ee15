package enums

import "strings"

// UserRole gates access to admin routes.
type UserRole string

const (
	UserRoleCustomer UserRole = "customer"
	UserRoleAdmin    UserRole = "admin"
)

var userRoles = []UserRole{UserRoleCustomer, UserRoleAdmin}

func (r UserRole) String() string { return string(r) }
func (r UserRole) IsValid() bool  { return oneOf(r, userRoles) }
func (r UserRole) IsAdmin() bool  { return r == UserRoleAdmin }

// ParseUserRole ignores case and surrounding space.
func ParseUserRole(raw string) (UserRole, error) {
	return parseOneOf(strings.ToLower(strings.TrimSpace(raw)), userRoles, "user role")
}
