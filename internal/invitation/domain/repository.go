package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Insert(ctx context.Context, invitation Invitation) error
	Find(ctx context.Context, orgID snowflake.ID, email string) (*Invitation, error)
	Delete(ctx context.Context, orgID snowflake.ID, email string) (int64, error)
	ListByOrganization(ctx context.Context, orgID snowflake.ID) ([]Invitation, error)
	ListByEmail(ctx context.Context, email string) ([]Invitation, error)
}
