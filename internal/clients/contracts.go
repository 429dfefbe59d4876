package clients

import (
	"encoding/json"
	"time"

	pkgerrors "github.com/angelmondragon/warehouse-flow/pkg/errors"
)

// StockLine is one item/quantity pair in an order-scoped inventory call.
type StockLine struct {
	ItemCode string `json:"item_code" validate:"required,max=64"`
	Quantity int    `json:"quantity" validate:"gt=0"`
}

// StockLevel is the stock snapshot of a single item.
type StockLevel struct {
	ItemCode          string `json:"item_code"`
	StockQuantity     int    `json:"stock_quantity"`
	ReservedQuantity  int    `json:"reserved_quantity"`
	AvailableQuantity int    `json:"available_quantity"`
}

type AvailabilityRequest struct {
	Lines []StockLine `json:"lines" validate:"required,min=1,dive"`
}

// AvailabilityLine reports one requested line. Error carries ITEM_NOT_FOUND
// for unknown codes instead of failing the whole check.
type AvailabilityLine struct {
	ItemCode          string `json:"item_code"`
	Requested         int    `json:"requested"`
	AvailableQuantity int    `json:"available_quantity"`
	Available         bool   `json:"available"`
	Error             string `json:"error,omitempty"`
}

type AvailabilityResult struct {
	Available bool               `json:"available"`
	Lines     []AvailabilityLine `json:"lines"`
}

// StockOperationRequest drives reserve and send-to-qc.
type StockOperationRequest struct {
	OrderID int64       `json:"order_id" validate:"required,gt=0"`
	Lines   []StockLine `json:"lines" validate:"required,min=1,dive"`
}

type ReleaseRequest struct {
	OrderID int64 `json:"order_id" validate:"required,gt=0"`
}

// StockLineResult is the post-operation state of an item.
type StockLineResult struct {
	ItemCode          string `json:"item_code"`
	Quantity          int    `json:"quantity"`
	StockQuantity     int    `json:"stock_quantity"`
	ReservedQuantity  int    `json:"reserved_quantity"`
	AvailableQuantity int    `json:"available_quantity"`
}

// StockOperationResult is returned by reserve, send-to-qc and release.
// Replayed is set when the answer comes from a previously applied operation.
type StockOperationResult struct {
	OrderID   int64             `json:"order_id"`
	Operation string            `json:"operation"`
	Status    string            `json:"status"`
	Replayed  bool              `json:"replayed"`
	Lines     []StockLineResult `json:"lines"`
	AppliedAt time.Time         `json:"applied_at"`
}

// OrderLine is the subset of an order line QC needs.
type OrderLine struct {
	ItemCode          string `json:"item_code"`
	ItemName          string `json:"item_name"`
	Unit              string `json:"unit"`
	RequestedQuantity int    `json:"requested_quantity"`
	ApprovedQuantity  int    `json:"approved_quantity"`
}

// Order is the subset of the order aggregate exposed to peer services.
type Order struct {
	ID          int64       `json:"id"`
	OrderNumber string      `json:"order_number"`
	Status      string      `json:"status"`
	Items       []OrderLine `json:"items"`
}

type SentOrdersRequest struct {
	OrderIDs []int64 `json:"order_ids" validate:"max=500"`
}

type SentOrdersResponse struct {
	OrderIDs []int64 `json:"order_ids"`
}

// Reasons carried in details.reason across service boundaries.
const (
	ReasonItemNotFound      = "ITEM_NOT_FOUND"
	ReasonInsufficientStock = "INSUFFICIENT_STOCK"
	ReasonAlreadySentToQC   = "ALREADY_SENT_TO_QC"
	ReasonOperationMismatch = "OPERATION_MISMATCH"
	ReasonOrderNotFound     = "ORDER_NOT_FOUND"
)

// DetailSentLines carries the lines of an earlier send-out on an
// ALREADY_SENT_TO_QC conflict.
const DetailSentLines = "sent_lines"

// SentLines extracts the lines inventory decremented for an order that was
// already sent to QC. The detail arrives typed in-process and as decoded JSON
// from a peer, so it is normalized through JSON.
func SentLines(err error) ([]StockLineResult, bool) {
	typed := pkgerrors.As(err)
	if typed == nil {
		return nil, false
	}
	raw, ok := typed.Detail(DetailSentLines)
	if !ok || raw == nil {
		return nil, false
	}
	encoded, marshalErr := json.Marshal(raw)
	if marshalErr != nil {
		return nil, false
	}
	var lines []StockLineResult
	if json.Unmarshal(encoded, &lines) != nil || len(lines) == 0 {
		return nil, false
	}
	return lines, true
}
