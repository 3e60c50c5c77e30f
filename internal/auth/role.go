package auth

import (
	"errors"
	"strings"
)

// Role is an application-level user role.
type Role string

const (
	RolePassenger Role = "PASSENGER"
	RoleDriver    Role = "DRIVER"
	RoleMerchant  Role = "MERCHANT"
)

var ErrInvalidRole = errors.New("invalid role")

// ParseRole normalizes (uppercases+trims) and validates a role string.
func ParseRole(s string) (Role, error) {
	role := Role(strings.ToUpper(strings.TrimSpace(s)))
	if role.Valid() {
		return role, nil
	}
	return "", ErrInvalidRole
}

// Valid reports whether role is one of the allowed role constants.
func (role Role) Valid() bool {
	switch role {
	case RolePassenger, RoleDriver, RoleMerchant:
		return true
	default:
		return false
	}
}

// String returns the string representation of the Role.
func (role Role) String() string {
	return string(role)
}

// Counterpart returns the role on the other side of a ride conversation.
func (role Role) Counterpart() Role {
	if role == RoleDriver {
		return RolePassenger
	}
	return RoleDriver
}

// IDField returns the wire field name carrying this role's id in the
// identity handshake, e.g. "driver_id" for drivers.
func (role Role) IDField() string {
	return strings.ToLower(string(role)) + "_id"
}
