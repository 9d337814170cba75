package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/crowdspace/internal/role"
)

type Service interface {
	// AddMember fails with ErrAlreadyMember when the user already holds a role in the organization.
	AddMember(ctx context.Context, userID, orgID snowflake.ID, r role.Role) (*Membership, error)
	// RemoveMember is a no-op for non-members.
	RemoveMember(ctx context.Context, userID, orgID snowflake.ID) error
	ListMembers(ctx context.Context, orgID snowflake.ID) ([]Membership, error)
	ChangeRole(ctx context.Context, orgID, targetUserID snowflake.ID, newRole role.Role) error
	// GetMembership returns nil without an error when the user is not a member.
	GetMembership(ctx context.Context, orgID, userID snowflake.ID) (*Membership, error)
}

var (
	ErrAlreadyMember       = errors.New("already_member")
	ErrMembershipNotFound  = errors.New("membership_not_found")
	ErrInvalidUser         = errors.New("invalid_user")
	ErrInvalidOrganization = errors.New("invalid_organization")
	ErrInvalidRole         = role.ErrInvalidRole
)
