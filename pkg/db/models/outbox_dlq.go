package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/warehouse-flow/pkg/enums"
)

// OutboxDLQ captures terminal outbox failures for auditing and remediation.
type OutboxDLQ struct {
	ID            uuid.UUID                  `gorm:"column:id;type:varchar(36);primaryKey"`
	EventID       uuid.UUID                  `gorm:"column:event_id;type:varchar(36);not null;index"`
	EventType     enums.OutboxEventType      `gorm:"column:event_type;size:64;not null"`
	AggregateType enums.OutboxAggregateType  `gorm:"column:aggregate_type;size:32;not null"`
	AggregateID   string                     `gorm:"column:aggregate_id;size:64;not null"`
	Payload       JSONText                   `gorm:"column:payload_json;type:text;not null"`
	ErrorReason   enums.OutboxDLQErrorReason `gorm:"column:error_reason;size:32;not null"`
	ErrorMessage  *string                    `gorm:"column:error_message;type:text"`
	AttemptCount  int                        `gorm:"column:attempt_count;not null;default:0"`
	FailedAt      time.Time                  `gorm:"column:failed_at;autoCreateTime"`
	CreatedAt     time.Time                  `gorm:"column:created_at;autoCreateTime"`
}

func (OutboxDLQ) TableName() string { return "outbox_dlq" }
