package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/crowdspace/internal/role"
	"gorm.io/gorm"
)

type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Insert(ctx context.Context, member Membership) error
	Delete(ctx context.Context, orgID, userID snowflake.ID) (int64, error)
	Find(ctx context.Context, orgID, userID snowflake.ID) (*Membership, error)
	ListByOrganization(ctx context.Context, orgID snowflake.ID) ([]Membership, error)
	UpdateRole(ctx context.Context, orgID, userID snowflake.ID, newRole role.Role) (int64, error)
}
