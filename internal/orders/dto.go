package orders

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/warehouse-flow/internal/clients"
	"github.com/angelmondragon/warehouse-flow/pkg/db/models"
	"github.com/angelmondragon/warehouse-flow/pkg/enums"
)

// CreateOrderItemInput is one requested line.
type CreateOrderItemInput struct {
	ItemCode     string
	ItemName     string
	ItemCategory string
	Quantity     int
	Unit         string
	UnitPrice    decimal.Decimal
	Notes        *string
}

// CreateOrderInput carries a restaurant's order request. CheckInventory
// overrides the configured default when set.
type CreateOrderInput struct {
	RestaurantID    string
	RestaurantName  string
	Priority        string
	Notes           *string
	ContactPerson   *string
	ContactPhone    *string
	DeliveryAddress *string
	RequestedDate   time.Time
	Items           []CreateOrderItemInput
	CheckInventory  *bool
	CreatedBy       string
}

// UpdateStatusInput drives a status transition. ApprovedQuantities is keyed
// by item code and only read on approval.
type UpdateStatusInput struct {
	OrderID            int64
	NewStatus          string
	ApprovedQuantities map[string]int
	ChangedBy          string
	Reason             string
}

// ListParams filters the cursor-paginated order list.
type ListParams struct {
	Status string
	Limit  int
	Cursor string
}

type OrderItemDTO struct {
	ID                int64           `json:"id"`
	ItemCode          string          `json:"item_code"`
	ItemName          string          `json:"item_name"`
	ItemCategory      string          `json:"item_category"`
	RequestedQuantity int             `json:"requested_quantity"`
	ApprovedQuantity  int             `json:"approved_quantity"`
	Unit              string          `json:"unit"`
	UnitPrice         decimal.Decimal `json:"unit_price"`
	TotalPrice        decimal.Decimal `json:"total_price"`
	Notes             *string         `json:"notes,omitempty"`
}

type StatusHistoryDTO struct {
	PreviousStatus *enums.OrderStatus `json:"previous_status,omitempty"`
	NewStatus      enums.OrderStatus  `json:"new_status"`
	ChangedBy      *string            `json:"changed_by,omitempty"`
	Reason         *string            `json:"reason,omitempty"`
	ChangedAt      time.Time          `json:"changed_at"`
}

// OrderDTO is the full view of an order.
type OrderDTO struct {
	ID              int64               `json:"id"`
	OrderNumber     string              `json:"order_number"`
	RestaurantID    string              `json:"restaurant_id"`
	RestaurantName  string              `json:"restaurant_name"`
	Status          enums.OrderStatus   `json:"status"`
	Priority        enums.OrderPriority `json:"priority"`
	TotalItems      int                 `json:"total_items"`
	Notes           *string             `json:"notes,omitempty"`
	ContactPerson   *string             `json:"contact_person,omitempty"`
	ContactPhone    *string             `json:"contact_phone,omitempty"`
	DeliveryAddress *string             `json:"delivery_address,omitempty"`
	RequestedDate   time.Time           `json:"requested_date"`
	ApprovedDate    *time.Time          `json:"approved_date,omitempty"`
	ProcessingDate  *time.Time          `json:"processing_date,omitempty"`
	ShippedDate     *time.Time          `json:"shipped_date,omitempty"`
	DeliveredDate   *time.Time          `json:"delivered_date,omitempty"`
	RejectedDate    *time.Time          `json:"rejected_date,omitempty"`
	CancelledDate   *time.Time          `json:"cancelled_date,omitempty"`
	CreatedBy       *string             `json:"created_by,omitempty"`
	UpdatedBy       *string             `json:"updated_by,omitempty"`
	Items           []OrderItemDTO      `json:"items"`
	History         []StatusHistoryDTO  `json:"history,omitempty"`
	CreatedAt       time.Time           `json:"created_at"`
	UpdatedAt       time.Time           `json:"updated_at"`
}

// ToClientOrder trims the order down to what peer services consume.
func (o OrderDTO) ToClientOrder() clients.Order {
	lines := make([]clients.OrderLine, 0, len(o.Items))
	for _, item := range o.Items {
		lines = append(lines, clients.OrderLine{
			ItemCode:          item.ItemCode,
			ItemName:          item.ItemName,
			Unit:              item.Unit,
			RequestedQuantity: item.RequestedQuantity,
			ApprovedQuantity:  item.ApprovedQuantity,
		})
	}
	return clients.Order{
		ID:          o.ID,
		OrderNumber: o.OrderNumber,
		Status:      string(o.Status),
		Items:       lines,
	}
}

func toOrderDTO(order models.Order) OrderDTO {
	dto := OrderDTO{
		ID:              order.ID,
		OrderNumber:     order.OrderNumber,
		RestaurantID:    order.RestaurantID,
		RestaurantName:  order.RestaurantName,
		Status:          order.Status,
		Priority:        order.Priority,
		TotalItems:      order.TotalItems,
		Notes:           order.Notes,
		ContactPerson:   order.ContactPerson,
		ContactPhone:    order.ContactPhone,
		DeliveryAddress: order.DeliveryAddress,
		RequestedDate:   order.RequestedDate,
		ApprovedDate:    order.ApprovedDate,
		ProcessingDate:  order.ProcessingDate,
		ShippedDate:     order.ShippedDate,
		DeliveredDate:   order.DeliveredDate,
		RejectedDate:    order.RejectedDate,
		CancelledDate:   order.CancelledDate,
		CreatedBy:       order.CreatedBy,
		UpdatedBy:       order.UpdatedBy,
		Items:           make([]OrderItemDTO, 0, len(order.Items)),
		CreatedAt:       order.CreatedAt,
		UpdatedAt:       order.UpdatedAt,
	}
	for _, item := range order.Items {
		dto.Items = append(dto.Items, OrderItemDTO{
			ID:                item.ID,
			ItemCode:          item.ItemCode,
			ItemName:          item.ItemName,
			ItemCategory:      item.ItemCategory,
			RequestedQuantity: item.RequestedQuantity,
			ApprovedQuantity:  item.ApprovedQuantity,
			Unit:              item.Unit,
			UnitPrice:         item.UnitPrice,
			TotalPrice:        item.TotalPrice,
			Notes:             item.Notes,
		})
	}
	for _, h := range order.History {
		dto.History = append(dto.History, StatusHistoryDTO{
			PreviousStatus: h.PreviousStatus,
			NewStatus:      h.NewStatus,
			ChangedBy:      h.ChangedBy,
			Reason:         h.Reason,
			ChangedAt:      h.ChangedAt,
		})
	}
	return dto
}
