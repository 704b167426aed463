package store

import (
	"strings"

	"github.com/aussiebroadwan/farmportal/internal/auth/domain"
)

// EncodeRoles stores roles as an ordered, space separated list.
func EncodeRoles(roles domain.Roles) string {
	return strings.Join(roles.Strings(), " ")
}

// DecodeRoles parses a stored role list. Unknown roles are a data error.
func DecodeRoles(s string) (domain.Roles, error) {
	return domain.ParseRoles(strings.Fields(s))
}
