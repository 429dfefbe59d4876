package clients

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/angelmondragon/warehouse-flow/pkg/downstream"
)

const (
	OpGetStock          = "get_stock"
	OpCheckAvailability = "check_availability"
	OpReserveStock      = "reserve_stock"
	OpSendToQC          = "send_to_qc"
	OpReleaseStock      = "release_stock"
)

// Inventory is the typed client for the inventory service's internal routes.
type Inventory struct {
	http *downstream.Client
}

func NewInventory(client *downstream.Client) *Inventory {
	return &Inventory{http: client}
}

func (c *Inventory) GetStock(ctx context.Context, itemCode string) (*StockLevel, error) {
	var out StockLevel
	err := c.http.Do(ctx, downstream.Request{
		Operation: OpGetStock,
		Method:    http.MethodGet,
		Path:      "/api/v1/internal/inventory/stock/" + url.PathEscape(itemCode),
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Inventory) CheckAvailability(ctx context.Context, lines []StockLine) (*AvailabilityResult, error) {
	var out AvailabilityResult
	err := c.http.Do(ctx, downstream.Request{
		Operation: OpCheckAvailability,
		Method:    http.MethodPost,
		Path:      "/api/v1/internal/inventory/check-availability",
		Body:      AvailabilityRequest{Lines: lines},
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// ReserveStock places an all-or-nothing soft hold for the order.
func (c *Inventory) ReserveStock(ctx context.Context, orderID int64, lines []StockLine) (*StockOperationResult, error) {
	return c.stockOperation(ctx, OpReserveStock, "/api/v1/internal/inventory/reserve", orderID, StockOperationRequest{OrderID: orderID, Lines: lines})
}

// SendToQC hard-decrements stock for the order. Applied at most once per order.
func (c *Inventory) SendToQC(ctx context.Context, orderID int64, lines []StockLine) (*StockOperationResult, error) {
	return c.stockOperation(ctx, OpSendToQC, "/api/v1/internal/inventory/send-to-qc", orderID, StockOperationRequest{OrderID: orderID, Lines: lines})
}

// ReleaseStock retires the order's reservation. Safe to repeat.
func (c *Inventory) ReleaseStock(ctx context.Context, orderID int64) (*StockOperationResult, error) {
	return c.stockOperation(ctx, OpReleaseStock, "/api/v1/internal/inventory/release", orderID, ReleaseRequest{OrderID: orderID})
}

func (c *Inventory) stockOperation(ctx context.Context, op, path string, orderID int64, body any) (*StockOperationResult, error) {
	var out StockOperationResult
	err := c.http.Do(ctx, downstream.Request{
		Operation:      op,
		Method:         http.MethodPost,
		Path:           path,
		Body:           body,
		IdempotencyKey: IdempotencyKey(op, orderID),
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// IdempotencyKey names a mutating cross-service call.
func IdempotencyKey(op string, orderID int64) string {
	return fmt.Sprintf("%s:%d", op, orderID)
}
