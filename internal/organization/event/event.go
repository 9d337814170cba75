package event

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/crowdspace/internal/clock"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	OrganizationCreatedTopic = "organization.created"
	OrganizationUpdatedTopic = "organization.updated"
)

// OutboxEvent is a domain event waiting to be relayed to downstream consumers.
type OutboxEvent struct {
	ID        snowflake.ID   `gorm:"primaryKey" json:"id"`
	OrgID     snowflake.ID   `gorm:"not null;index" json:"org_id"`
	EventType string         `gorm:"type:text;not null" json:"event_type"`
	Payload   datatypes.JSON `gorm:"type:jsonb;not null" json:"payload"`
	Published bool           `gorm:"not null;default:false" json:"published"`
	CreatedAt time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (OutboxEvent) TableName() string { return "events" }

type EventPublisher interface {
	WithTx(tx *gorm.DB) EventPublisher
	Publish(ctx context.Context, orgID snowflake.ID, topic string, payload []byte) error
}

type outboxPublisher struct {
	db    *gorm.DB
	genID *snowflake.Node
	clock clock.Clock
}

func NewOutboxPublisher(db *gorm.DB, genID *snowflake.Node, clk clock.Clock) EventPublisher {
	return &outboxPublisher{
		db:    db,
		genID: genID,
		clock: clk,
	}
}

// WithTx writes events in the caller's transaction so they commit with the change.
func (p *outboxPublisher) WithTx(tx *gorm.DB) EventPublisher {
	return &outboxPublisher{
		db:    tx,
		genID: p.genID,
		clock: p.clock,
	}
}

func (p *outboxPublisher) Publish(ctx context.Context, orgID snowflake.ID, topic string, payload []byte) error {
	return p.db.WithContext(ctx).Exec(
		`INSERT INTO events (id, org_id, event_type, payload, published, created_at)
		 VALUES (?, ?, ?, ?, false, ?)`,
		p.genID.Generate(),
		orgID,
		topic,
		datatypes.JSON(payload),
		p.clock.Now(),
	).Error
}
