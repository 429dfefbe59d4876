package models

import (
	"time"

	"github.com/angelmondragon/warehouse-flow/pkg/enums"
	"github.com/shopspring/decimal"
)

// Order is a restaurant's request for goods, owned by the orders service.
type Order struct {
	ID              int64                `gorm:"column:id;primaryKey;autoIncrement:false"`
	OrderNumber     string               `gorm:"column:order_number;size:32;not null;uniqueIndex:ux_orders_order_number"`
	RestaurantID    string               `gorm:"column:restaurant_id;size:64;not null;index"`
	RestaurantName  string               `gorm:"column:restaurant_name;size:255;not null"`
	Status          enums.OrderStatus    `gorm:"column:status;size:16;not null;default:'PENDING';index:ix_orders_status_created,priority:1"`
	Priority        enums.OrderPriority  `gorm:"column:priority;size:16;not null;default:'NORMAL'"`
	TotalItems      int                  `gorm:"column:total_items;not null"`
	Notes           *string              `gorm:"column:notes;type:text"`
	ContactPerson   *string              `gorm:"column:contact_person;size:100"`
	ContactPhone    *string              `gorm:"column:contact_phone;size:32"`
	DeliveryAddress *string              `gorm:"column:delivery_address;type:text"`
	RequestedDate   time.Time            `gorm:"column:requested_date;not null"`
	ApprovedDate    *time.Time           `gorm:"column:approved_date"`
	ProcessingDate  *time.Time           `gorm:"column:processing_date"`
	ShippedDate     *time.Time           `gorm:"column:shipped_date"`
	DeliveredDate   *time.Time           `gorm:"column:delivered_date"`
	RejectedDate    *time.Time           `gorm:"column:rejected_date"`
	CancelledDate   *time.Time           `gorm:"column:cancelled_date"`
	CreatedBy       *string              `gorm:"column:created_by;size:100"`
	UpdatedBy       *string              `gorm:"column:updated_by;size:100"`
	Items           []OrderItem          `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	History         []OrderStatusHistory `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt       time.Time            `gorm:"column:created_at;autoCreateTime;index:ix_orders_status_created,priority:2"`
	UpdatedAt       time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}

func (Order) TableName() string { return "orders" }

// OrderItem is one requested line of an order.
type OrderItem struct {
	ID                int64           `gorm:"column:id;primaryKey;autoIncrement:false"`
	OrderID           int64           `gorm:"column:order_id;not null;index"`
	ItemCode          string          `gorm:"column:item_code;size:64;not null"`
	ItemName          string          `gorm:"column:item_name;size:255;not null"`
	ItemCategory      string          `gorm:"column:item_category;size:100;not null;default:''"`
	RequestedQuantity int             `gorm:"column:requested_quantity;not null"`
	ApprovedQuantity  int             `gorm:"column:approved_quantity;not null;default:0"`
	Unit              string          `gorm:"column:unit;size:32;not null"`
	UnitPrice         decimal.Decimal `gorm:"column:unit_price;type:decimal(12,2);not null;default:0"`
	TotalPrice        decimal.Decimal `gorm:"column:total_price;type:decimal(14,2);not null;default:0"`
	Notes             *string         `gorm:"column:notes;type:text"`
	CreatedAt         time.Time       `gorm:"column:created_at;autoCreateTime"`
}

func (OrderItem) TableName() string { return "order_items" }

// OrderStatusHistory records every status change of an order.
type OrderStatusHistory struct {
	ID             int64              `gorm:"column:id;primaryKey;autoIncrement:false"`
	OrderID        int64              `gorm:"column:order_id;not null;index"`
	PreviousStatus *enums.OrderStatus `gorm:"column:previous_status;size:16"`
	NewStatus      enums.OrderStatus  `gorm:"column:new_status;size:16;not null"`
	ChangedBy      *string            `gorm:"column:changed_by;size:100"`
	Reason         *string            `gorm:"column:reason;type:text"`
	ChangedAt      time.Time          `gorm:"column:changed_at;not null"`
}

func (OrderStatusHistory) TableName() string { return "order_status_history" }
