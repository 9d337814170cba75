// Package role defines the organization roles and the capabilities they grant.
package role

import (
	"errors"
	"strings"
)

// Role is the position a user holds inside one organization.
type Role string

const (
	Admin  Role = "ADMIN"
	Member Role = "MEMBER"
)

// Capability is a single permitted action checked by the authorization guard.
type Capability string

const (
	ReadMembers       Capability = "members.read"
	WriteMembers      Capability = "members.write"
	WriteOrganization Capability = "organization.write"
	WriteProject      Capability = "project.write"
)

var ErrInvalidRole = errors.New("invalid_role")

// Roles lists every known role.
func Roles() []Role {
	return []Role{Admin, Member}
}

// ParseRole accepts a role name in any case.
func ParseRole(raw string) (Role, error) {
	switch Role(strings.ToUpper(strings.TrimSpace(raw))) {
	case Admin:
		return Admin, nil
	case Member:
		return Member, nil
	default:
		return "", ErrInvalidRole
	}
}

func (r Role) Valid() bool {
	_, err := ParseRole(string(r))
	return err == nil
}

func (r Role) String() string { return string(r) }

func (c Capability) String() string { return string(c) }
