package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	followerdomain "github.com/smallbiznis/crowdspace/internal/follower/domain"
	organizationdomain "github.com/smallbiznis/crowdspace/internal/organization/domain"
	"github.com/smallbiznis/crowdspace/internal/role"
)

// Service runs the invite, answer and revoke lifecycle plus follow/unfollow.
// It does not check capabilities; callers gate writes with the authorization guard.
type Service interface {
	SendInvitation(ctx context.Context, orgID snowflake.ID, email string, r role.Role, invitedBy snowflake.ID) (*Invitation, error)
	RevokeInvitation(ctx context.Context, orgID snowflake.ID, email string) error
	GetAllInvitationsForUser(ctx context.Context, email string) ([]Invitation, error)
	GetPendingInvitations(ctx context.Context, orgID snowflake.ID) ([]Invitation, error)
	AnswerInvitation(ctx context.Context, userID snowflake.ID, email string, accept bool, orgID snowflake.ID) error

	FollowOrganization(ctx context.Context, userID, orgID snowflake.ID) (*followerdomain.Follower, error)
	UnfollowOrganization(ctx context.Context, userID, orgID snowflake.ID) error
	ListFollowers(ctx context.Context, orgID snowflake.ID) ([]followerdomain.Follower, error)
}

var (
	ErrDuplicateInvitation  = errors.New("duplicate_invitation")
	ErrInvalidEmail         = errors.New("invalid_email")
	ErrInvalidUser          = errors.New("invalid_user")
	ErrInvalidOrganization  = errors.New("invalid_organization")
	ErrInvalidRole          = role.ErrInvalidRole
	ErrOrganizationNotFound = organizationdomain.ErrOrganizationNotFound
)
