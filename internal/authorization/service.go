package authorization

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/crowdspace/internal/role"
)

type Service interface {
	// Authorize returns ErrForbidden unless userID's membership in orgID grants capability.
	Authorize(ctx context.Context, userID, orgID snowflake.ID, capability role.Capability) error
}

var (
	ErrForbidden           = errors.New("forbidden")
	ErrInvalidActor        = errors.New("invalid_actor")
	ErrInvalidOrganization = errors.New("invalid_organization")
)
