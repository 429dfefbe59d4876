package models

import (
	"time"

	"github.com/angelmondragon/warehouse-flow/pkg/enums"
)

// QCHandoff marks an order as sent to quality control. order_id is unique.
type QCHandoff struct {
	ID          int64     `gorm:"column:id;primaryKey;autoIncrement:false"`
	OrderID     int64     `gorm:"column:order_id;not null;uniqueIndex:ux_qc_handoffs_order_id"`
	OrderNumber string    `gorm:"column:order_number;size:32;not null"`
	BatchNumber string    `gorm:"column:batch_number;size:64;not null"`
	SentBy      *string   `gorm:"column:sent_by;size:100"`
	Logs        []QCLog   `gorm:"foreignKey:HandoffID;constraint:OnDelete:CASCADE"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (QCHandoff) TableName() string { return "qc_handoffs" }

// QCLog is the inspection record for one item line of a handed-off order.
type QCLog struct {
	ID          int64          `gorm:"column:id;primaryKey;autoIncrement:false"`
	HandoffID   int64          `gorm:"column:handoff_id;not null;index"`
	OrderID     int64          `gorm:"column:order_id;not null;index"`
	OrderNumber string         `gorm:"column:order_number;size:32;not null"`
	BatchNumber string         `gorm:"column:batch_number;size:64;not null"`
	ItemCode    string         `gorm:"column:item_code;size:64;not null"`
	ItemName    string         `gorm:"column:item_name;size:255;not null"`
	Quantity    int            `gorm:"column:quantity;not null"`
	Unit        string         `gorm:"column:unit;size:32;not null"`
	QCStatus    enums.QCStatus `gorm:"column:qc_status;size:16;not null;default:'PENDING';index:ix_qc_logs_status_created,priority:1"`
	QCNotes     *string        `gorm:"column:qc_notes;type:text"`
	ProcessedBy *string        `gorm:"column:processed_by;size:100"`
	ProcessedAt *time.Time     `gorm:"column:processed_at"`
	CreatedAt   time.Time      `gorm:"column:created_at;autoCreateTime;index:ix_qc_logs_status_created,priority:2"`
}

func (QCLog) TableName() string { return "qc_logs" }
