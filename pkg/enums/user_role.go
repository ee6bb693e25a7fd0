package enums

import "fmt"

// UserRole is a platform-level role held by a user account.
type UserRole string

const (
	UserRoleCustomer UserRole = "customer"
	UserRoleCoach    UserRole = "coach"
	UserRoleAdmin    UserRole = "admin"
	UserRoleSupport  UserRole = "support"
)

var validUserRoles = []UserRole{
	UserRoleCustomer,
	UserRoleCoach,
	UserRoleAdmin,
	UserRoleSupport,
}

// String implements fmt.Stringer.
func (u UserRole) String() string {
	return string(u)
}

// IsValid reports whether the value is a known UserRole.
func (u UserRole) IsValid() bool {
	for _, candidate := range validUserRoles {
		if candidate == u {
			return true
		}
	}
	return false
}

// ParseUserRole converts raw input into a UserRole.
func ParseUserRole(value string) (UserRole, error) {
	for _, candidate := range validUserRoles {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid user role %q", value)
}

// ParseUserRoleOrCoach converts raw input into a UserRole, falling back to
// coach for unrecognized values. Role-assignment requests arrive over the bus
// from services with their own role vocabularies, and the historical contract
// treats any unknown role as a coach promotion rather than a hard failure.
func ParseUserRoleOrCoach(value string) UserRole {
	if role, err := ParseUserRole(value); err == nil {
		return role
	}
	return UserRoleCoach
}
