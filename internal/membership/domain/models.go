// Package domain contains the membership model and its contracts.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/crowdspace/internal/role"
)

// Membership records that a user belongs to an organization with one role.
type Membership struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	OrgID     snowflake.ID `gorm:"not null;index;uniqueIndex:ux_org_members_org_user,priority:1" json:"organization_id"`
	UserID    snowflake.ID `gorm:"not null;index;uniqueIndex:ux_org_members_org_user,priority:2" json:"user_id"`
	Role      role.Role    `gorm:"type:text;not null" json:"role"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (Membership) TableName() string { return "organization_members" }
