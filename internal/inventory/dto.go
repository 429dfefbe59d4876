package inventory

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/warehouse-flow/internal/clients"
	"github.com/angelmondragon/warehouse-flow/pkg/db/models"
	"github.com/angelmondragon/warehouse-flow/pkg/enums"
)

// CreateItemInput carries the fields accepted when registering an item.
type CreateItemInput struct {
	ItemCode      string
	Name          string
	Category      string
	Unit          string
	UnitPrice     decimal.Decimal
	Description   *string
	Location      *string
	MinStock      int
	StockQuantity int
	CreatedBy     string
}

// AdjustStockInput drives manual inbound and outbound movements.
type AdjustStockInput struct {
	ItemCode  string
	Quantity  int
	Reference string
	CreatedBy string
}

// ItemDTO is the full view of an item.
type ItemDTO struct {
	ID                int64           `json:"id"`
	ItemCode          string          `json:"item_code"`
	Name              string          `json:"name"`
	Category          string          `json:"category"`
	Unit              string          `json:"unit"`
	UnitPrice         decimal.Decimal `json:"unit_price"`
	Description       *string         `json:"description,omitempty"`
	Location          *string         `json:"location,omitempty"`
	MinStock          int             `json:"min_stock"`
	StockQuantity     int             `json:"stock_quantity"`
	ReservedQuantity  int             `json:"reserved_quantity"`
	AvailableQuantity int             `json:"available_quantity"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// MovementDTO is one stock ledger entry.
type MovementDTO struct {
	ID            int64                   `json:"id"`
	ItemCode      string                  `json:"item_code"`
	MovementType  enums.StockMovementType `json:"movement_type"`
	Quantity      int                     `json:"quantity"`
	StockAfter    int                     `json:"stock_after"`
	ReservedAfter int                     `json:"reserved_after"`
	OrderID       *int64                  `json:"order_id,omitempty"`
	Reference     *string                 `json:"reference,omitempty"`
	CreatedBy     *string                 `json:"created_by,omitempty"`
	CreatedAt     time.Time               `json:"created_at"`
}

func toItemDTO(item models.Item) ItemDTO {
	return ItemDTO{
		ID:                item.ID,
		ItemCode:          item.ItemCode,
		Name:              item.Name,
		Category:          item.Category,
		Unit:              item.Unit,
		UnitPrice:         item.UnitPrice,
		Description:       item.Description,
		Location:          item.Location,
		MinStock:          item.MinStock,
		StockQuantity:     item.StockQuantity,
		ReservedQuantity:  item.ReservedQuantity,
		AvailableQuantity: item.AvailableQuantity(),
		CreatedAt:         item.CreatedAt,
		UpdatedAt:         item.UpdatedAt,
	}
}

func toStockLevel(item models.Item) clients.StockLevel {
	return clients.StockLevel{
		ItemCode:          item.ItemCode,
		StockQuantity:     item.StockQuantity,
		ReservedQuantity:  item.ReservedQuantity,
		AvailableQuantity: item.AvailableQuantity(),
	}
}

func toMovementDTO(m models.StockMovement) MovementDTO {
	return MovementDTO{
		ID:            m.ID,
		ItemCode:      m.ItemCode,
		MovementType:  m.MovementType,
		Quantity:      m.Quantity,
		StockAfter:    m.StockAfter,
		ReservedAfter: m.ReservedAfter,
		OrderID:       m.OrderID,
		Reference:     m.Reference,
		CreatedBy:     m.CreatedBy,
		CreatedAt:     m.CreatedAt,
	}
}
