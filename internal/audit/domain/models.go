package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type ActorType string

const (
	ActorTypeUser   ActorType = "user"
	ActorTypeSystem ActorType = "system"
)

// Actions recorded for membership changes.
const (
	ActionMemberAdded         = "member.added"
	ActionMemberRemoved       = "member.removed"
	ActionMemberRoleChanged   = "member.role_changed"
	ActionInvitationSent      = "invitation.sent"
	ActionInvitationRevoked   = "invitation.revoked"
	ActionInvitationAccepted  = "invitation.accepted"
	ActionInvitationRejected  = "invitation.rejected"
	ActionAuthorizationDenied = "authorization.denied"
	ActionOrganizationCreated = "organization.created"
	ActionOrganizationUpdated = "organization.updated"
)

// AuditLog is an append-only record of a change made inside an organization.
type AuditLog struct {
	ID         snowflake.ID      `gorm:"primaryKey" json:"id"`
	OrgID      *snowflake.ID     `gorm:"index" json:"org_id,omitempty"`
	ActorType  string            `gorm:"type:text;not null" json:"actor_type"`
	ActorID    *string           `gorm:"type:text" json:"actor_id,omitempty"`
	Action     string            `gorm:"type:text;not null;index" json:"action"`
	TargetType string            `gorm:"type:text;not null" json:"target_type"`
	TargetID   *string           `gorm:"type:text" json:"target_id,omitempty"`
	Metadata   datatypes.JSONMap `gorm:"type:jsonb" json:"metadata,omitempty"`
	CreatedAt  time.Time         `gorm:"not null" json:"created_at"`
}

func (AuditLog) TableName() string { return "audit_logs" }
