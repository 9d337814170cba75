// Package domain contains the follower model and store contract.
package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Follower is a subscription of a user to an organization, independent of membership.
type Follower struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	OrgID     snowflake.ID `gorm:"not null;index;uniqueIndex:ux_org_followers_org_user,priority:1" json:"organization_id"`
	UserID    snowflake.ID `gorm:"not null;index;uniqueIndex:ux_org_followers_org_user,priority:2" json:"user_id"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (Follower) TableName() string { return "organization_followers" }

type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Insert(ctx context.Context, follower Follower) error
	Find(ctx context.Context, orgID, userID snowflake.ID) (*Follower, error)
	Delete(ctx context.Context, orgID, userID snowflake.ID) (int64, error)
	ListByOrganization(ctx context.Context, orgID snowflake.ID) ([]Follower, error)
}
