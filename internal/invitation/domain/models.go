// Package domain contains the invitation model and its contracts.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/crowdspace/internal/role"
)

// Invitation is a pending offer of membership. It is never updated, only deleted.
type Invitation struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	OrgID     snowflake.ID `gorm:"not null;index;uniqueIndex:ux_org_invitations_org_email,priority:1" json:"organization_id"`
	Email     string       `gorm:"type:text;not null;index;uniqueIndex:ux_org_invitations_org_email,priority:2" json:"email"`
	Role      role.Role    `gorm:"type:text;not null" json:"role"`
	InvitedBy snowflake.ID `gorm:"column:invited_by;not null" json:"invited_by"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (Invitation) TableName() string { return "organization_invitations" }
