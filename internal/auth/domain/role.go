package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Role is one of the fixed portal roles.
type Role string

const (
	RoleFarmer  Role = "farmer"
	RoleOfficer Role = "officer"
	RoleAdmin   Role = "admin"
)

// AllRoles lists every known role in privilege order.
var AllRoles = []Role{RoleFarmer, RoleOfficer, RoleAdmin}

var (
	ErrUnknownRole   = errors.New("domain: unknown role")
	ErrNoRoles       = errors.New("domain: principal needs at least one role")
	ErrDuplicateRole = errors.New("domain: duplicate role")
)

// ParseRole accepts exactly the known role names.
func ParseRole(s string) (Role, error) {
	switch r := Role(s); r {
	case RoleFarmer, RoleOfficer, RoleAdmin:
		return r, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownRole, s)
	}
}

func (r Role) String() string { return string(r) }

// Roles is the ordered role list of a principal. The first entry is the
// primary role stamped into access tokens.
type Roles []Role

// ParseRoles parses a list of role names, keeping order.
func ParseRoles(names []string) (Roles, error) {
	roles := make(Roles, 0, len(names))
	for _, n := range names {
		r, err := ParseRole(strings.TrimSpace(n))
		if err != nil {
			return nil, err
		}
		roles = append(roles, r)
	}
	if err := roles.Validate(); err != nil {
		return nil, err
	}
	return roles, nil
}

// Validate enforces a non-empty list of known, distinct roles.
func (rs Roles) Validate() error {
	if len(rs) == 0 {
		return ErrNoRoles
	}

	seen := make(map[Role]struct{}, len(rs))
	for _, r := range rs {
		if _, err := ParseRole(string(r)); err != nil {
			return err
		}
		if _, dup := seen[r]; dup {
			return fmt.Errorf("%w: %q", ErrDuplicateRole, r)
		}
		seen[r] = struct{}{}
	}
	return nil
}

// Primary returns the first role, or "" for an empty list.
func (rs Roles) Primary() Role {
	if len(rs) == 0 {
		return ""
	}
	return rs[0]
}

// Has reports whether r is in the list.
func (rs Roles) Has(r Role) bool {
	for _, have := range rs {
		if have == r {
			return true
		}
	}
	return false
}

// Strings returns the role names in order.
func (rs Roles) Strings() []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = string(r)
	}
	return out
}
