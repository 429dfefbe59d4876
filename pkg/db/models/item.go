package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Item is a stock-keeping unit tracked by the inventory ledger.
// reserved_quantity never exceeds stock_quantity; both stay non-negative.
type Item struct {
	ID               int64           `gorm:"column:id;primaryKey;autoIncrement:false"`
	ItemCode         string          `gorm:"column:item_code;size:64;not null;uniqueIndex:ux_items_item_code"`
	Name             string          `gorm:"column:name;size:255;not null"`
	Category         string          `gorm:"column:category;size:100;not null;default:''"`
	Unit             string          `gorm:"column:unit;size:32;not null"`
	UnitPrice        decimal.Decimal `gorm:"column:unit_price;type:decimal(12,2);not null;default:0"`
	Description      *string         `gorm:"column:description;type:text"`
	Location         *string         `gorm:"column:location;size:100"`
	MinStock         int             `gorm:"column:min_stock;not null;default:0"`
	StockQuantity    int             `gorm:"column:stock_quantity;not null;default:0;check:chk_items_stock_non_negative,stock_quantity >= 0"`
	ReservedQuantity int             `gorm:"column:reserved_quantity;not null;default:0;check:chk_items_reserved_bounds,reserved_quantity >= 0 AND reserved_quantity <= stock_quantity"`
	CreatedAt        time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (Item) TableName() string { return "items" }

// AvailableQuantity is stock that is neither reserved nor sent out.
func (i Item) AvailableQuantity() int {
	return i.StockQuantity - i.ReservedQuantity
}
