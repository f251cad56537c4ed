// AngelaMos | 2026
// role.go

package access

import (
	"strings"
)

type Role string

const (
	RoleEngineer   Role = "engineer"
	RoleClient     Role = "client"
	RoleEnterprise Role = "enterprise"
	RoleAdmin      Role = "admin"
)

const (
	AuthEntryPath = "/auth"
	PricingPath   = "/pricing"
)

var orderedRoles = []Role{RoleEngineer, RoleClient, RoleEnterprise, RoleAdmin}

func Roles() []Role {
	out := make([]Role, len(orderedRoles))
	copy(out, orderedRoles)
	return out
}

// SignupRoles are the roles a user may pick at registration.
func SignupRoles() []Role {
	return []Role{RoleEngineer, RoleClient, RoleEnterprise}
}

func ParseRole(s string) (Role, bool) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range orderedRoles {
		if r == known {
			return r, true
		}
	}
	return "", false
}

func (r Role) Valid() bool {
	for _, known := range orderedRoles {
		if r == known {
			return true
		}
	}
	return false
}

func (r Role) String() string {
	return string(r)
}
