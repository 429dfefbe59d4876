package models

import (
	"time"

	"github.com/angelmondragon/warehouse-flow/pkg/enums"
)

// StockOperation dedupes order-scoped inventory operations. Result keeps the
// JSON response returned the first time so replays answer identically.
// Generation pairs a reserve with the release that retires it; a new
// reservation after a release starts the next generation.
type StockOperation struct {
	ID          int64                      `gorm:"column:id;primaryKey;autoIncrement:false"`
	OrderID     int64                      `gorm:"column:order_id;not null;uniqueIndex:ux_stock_operations_order_op,priority:1"`
	Operation   enums.StockOperationType   `gorm:"column:operation;size:16;not null;uniqueIndex:ux_stock_operations_order_op,priority:2"`
	Generation  int                        `gorm:"column:generation;not null;default:0;uniqueIndex:ux_stock_operations_order_op,priority:3"`
	Fingerprint string                     `gorm:"column:fingerprint;size:64;not null"`
	Status      enums.StockOperationStatus `gorm:"column:status;size:16;not null"`
	Result      string                     `gorm:"column:result;type:text;not null"`
	CreatedAt   time.Time                  `gorm:"column:created_at;autoCreateTime"`
}

func (StockOperation) TableName() string { return "stock_operations" }
