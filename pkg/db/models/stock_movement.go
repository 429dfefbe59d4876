package models

import (
	"time"

	"github.com/angelmondragon/warehouse-flow/pkg/enums"
)

// StockMovement is an append-only record of a single stock change.
type StockMovement struct {
	ID            int64                   `gorm:"column:id;primaryKey;autoIncrement:false"`
	ItemCode      string                  `gorm:"column:item_code;size:64;not null;index:ix_stock_movements_item_created,priority:1"`
	MovementType  enums.StockMovementType `gorm:"column:movement_type;size:16;not null"`
	Quantity      int                     `gorm:"column:quantity;not null"`
	StockAfter    int                     `gorm:"column:stock_after;not null"`
	ReservedAfter int                     `gorm:"column:reserved_after;not null"`
	OrderID       *int64                  `gorm:"column:order_id;index"`
	Reference     *string                 `gorm:"column:reference;size:255"`
	CreatedBy     *string                 `gorm:"column:created_by;size:100"`
	CreatedAt     time.Time               `gorm:"column:created_at;autoCreateTime;index:ix_stock_movements_item_created,priority:2"`
}

func (StockMovement) TableName() string { return "stock_movements" }
