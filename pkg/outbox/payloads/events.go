package payloads

import (
	"github.com/angelmondragon/warehouse-flow/pkg/enums"
)

// ItemCreatedEvent announces a new SKU in the inventory ledger.
type ItemCreatedEvent struct {
	ItemID        int64  `json:"item_id"`
	ItemCode      string `json:"item_code"`
	Name          string `json:"name"`
	Unit          string `json:"unit"`
	StockQuantity int    `json:"stock_quantity"`
}

// StockAdjustedEvent is emitted for manual inbound/outbound movements.
type StockAdjustedEvent struct {
	ItemCode         string                  `json:"item_code"`
	MovementType     enums.StockMovementType `json:"movement_type"`
	Quantity         int                     `json:"quantity"`
	StockQuantity    int                     `json:"stock_quantity"`
	ReservedQuantity int                     `json:"reserved_quantity"`
	Reference        string                  `json:"reference,omitempty"`
}

// StockLine is the post-operation state of one item touched by an order operation.
type StockLine struct {
	ItemCode         string `json:"item_code"`
	Quantity         int    `json:"quantity"`
	StockQuantity    int    `json:"stock_quantity"`
	ReservedQuantity int    `json:"reserved_quantity"`
}

// StockReservedEvent follows a successful all-or-nothing reservation.
type StockReservedEvent struct {
	OrderID int64       `json:"order_id"`
	Lines   []StockLine `json:"lines"`
}

// StockReleasedEvent follows the release of an order's reservation.
type StockReleasedEvent struct {
	OrderID int64       `json:"order_id"`
	Lines   []StockLine `json:"lines"`
}

// StockSentToQCEvent follows the hard decrement performed on QC hand-off.
type StockSentToQCEvent struct {
	OrderID int64       `json:"order_id"`
	Lines   []StockLine `json:"lines"`
}

// StockLowEvent flags an item whose available quantity fell to its minimum.
type StockLowEvent struct {
	ItemCode          string `json:"item_code"`
	Name              string `json:"name"`
	Unit              string `json:"unit"`
	AvailableQuantity int    `json:"available_quantity"`
	MinStock          int    `json:"min_stock"`
	Day               string `json:"day"`
}

// OrderCreatedEvent announces a new PENDING order.
type OrderCreatedEvent struct {
	OrderID        int64               `json:"order_id"`
	OrderNumber    string              `json:"order_number"`
	RestaurantID   string              `json:"restaurant_id"`
	RestaurantName string              `json:"restaurant_name"`
	Priority       enums.OrderPriority `json:"priority"`
	TotalItems     int                 `json:"total_items"`
}

// OrderStatusChangedEvent is emitted for every committed status transition.
type OrderStatusChangedEvent struct {
	OrderID        int64             `json:"order_id"`
	OrderNumber    string            `json:"order_number"`
	PreviousStatus enums.OrderStatus `json:"previous_status"`
	NewStatus      enums.OrderStatus `json:"new_status"`
	ChangedBy      string            `json:"changed_by,omitempty"`
	Reason         string            `json:"reason,omitempty"`
}

// QCHandoffCreatedEvent announces an order entering quality control.
type QCHandoffCreatedEvent struct {
	HandoffID   int64   `json:"handoff_id"`
	OrderID     int64   `json:"order_id"`
	OrderNumber string  `json:"order_number"`
	BatchNumber string  `json:"batch_number"`
	QCLogIDs    []int64 `json:"qc_log_ids"`
}

// QCResultRecordedEvent carries the inspection outcome for one QC log.
type QCResultRecordedEvent struct {
	QCLogID     int64          `json:"qc_log_id"`
	OrderID     int64          `json:"order_id"`
	OrderNumber string         `json:"order_number"`
	BatchNumber string         `json:"batch_number"`
	ItemCode    string         `json:"item_code"`
	ItemName    string         `json:"item_name"`
	Quantity    int            `json:"quantity"`
	Unit        string         `json:"unit"`
	Status      enums.QCStatus `json:"status"`
	Notes       string         `json:"notes,omitempty"`
	ProcessedBy string         `json:"processed_by,omitempty"`
}
