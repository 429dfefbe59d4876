package orders

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/warehouse-flow/api/middleware"
	"github.com/angelmondragon/warehouse-flow/api/responses"
	"github.com/angelmondragon/warehouse-flow/api/validators"
	internalorders "github.com/angelmondragon/warehouse-flow/internal/orders"
	pkgerrors "github.com/angelmondragon/warehouse-flow/pkg/errors"
	"github.com/angelmondragon/warehouse-flow/pkg/logger"
	"github.com/angelmondragon/warehouse-flow/pkg/pagination"
)

type createOrderItemRequest struct {
	ItemCode     string          `json:"item_code" validate:"required,max=64"`
	ItemName     string          `json:"item_name" validate:"required,max=200"`
	ItemCategory string          `json:"item_category" validate:"max=100"`
	Quantity     int             `json:"quantity" validate:"gt=0"`
	Unit         string          `json:"unit" validate:"required,max=32"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	Notes        *string         `json:"notes,omitempty" validate:"omitempty,max=500"`
}

type createOrderRequest struct {
	RestaurantID    string                   `json:"restaurant_id" validate:"required,max=64"`
	RestaurantName  string                   `json:"restaurant_name" validate:"required,max=200"`
	Priority        string                   `json:"priority" validate:"omitempty,oneof=LOW NORMAL HIGH URGENT low normal high urgent"`
	Notes           *string                  `json:"notes,omitempty" validate:"omitempty,max=1000"`
	ContactPerson   *string                  `json:"contact_person,omitempty" validate:"omitempty,max=100"`
	ContactPhone    *string                  `json:"contact_phone,omitempty" validate:"omitempty,max=32"`
	DeliveryAddress *string                  `json:"delivery_address,omitempty" validate:"omitempty,max=500"`
	RequestedDate   string                   `json:"requested_date" validate:"required"`
	Items           []createOrderItemRequest `json:"items" validate:"required,min=1,dive"`
	CheckInventory  *bool                    `json:"check_inventory,omitempty"`
}

type updateStatusRequest struct {
	Status             string         `json:"status" validate:"required"`
	ApprovedQuantities map[string]int `json:"approved_quantities,omitempty"`
	Reason             string         `json:"reason" validate:"max=500"`
}

// parseRequestedDate accepts a calendar date or a full RFC 3339 timestamp.
func parseRequestedDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if t, err := time.Parse(time.DateOnly, raw); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, pkgerrors.New(pkgerrors.CodeValidation, "invalid requested_date").
			WithDetail("requested_date", "must be YYYY-MM-DD or RFC 3339")
	}
	return t.UTC(), nil
}

func Create(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createOrderRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		requested, err := parseRequestedDate(req.RequestedDate)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		items := make([]internalorders.CreateOrderItemInput, 0, len(req.Items))
		for _, item := range req.Items {
			items = append(items, internalorders.CreateOrderItemInput{
				ItemCode:     item.ItemCode,
				ItemName:     item.ItemName,
				ItemCategory: item.ItemCategory,
				Quantity:     item.Quantity,
				Unit:         item.Unit,
				UnitPrice:    item.UnitPrice,
				Notes:        item.Notes,
			})
		}

		order, err := svc.CreateOrder(r.Context(), internalorders.CreateOrderInput{
			RestaurantID:    req.RestaurantID,
			RestaurantName:  req.RestaurantName,
			Priority:        req.Priority,
			Notes:           req.Notes,
			ContactPerson:   req.ContactPerson,
			ContactPhone:    req.ContactPhone,
			DeliveryAddress: req.DeliveryAddress,
			RequestedDate:   requested,
			Items:           items,
			CheckInventory:  req.CheckInventory,
			CreatedBy:       middleware.ActorFromContext(r.Context()),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, order)
	}
}

func List(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		query := r.URL.Query()
		page, err := svc.ListOrders(r.Context(), internalorders.ListParams{
			Status: strings.TrimSpace(query.Get("status")),
			Limit:  limit,
			Cursor: strings.TrimSpace(query.Get("cursor")),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, page)
	}
}

func Approved(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orders, err := svc.ListApprovedOrders(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, orders)
	}
}

// Get resolves {orderRef} as a numeric id first and falls back to the
// human-facing order number.
func Get(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ref, err := validators.PathString(r, "orderRef")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var order *internalorders.OrderDTO
		if id, convErr := strconv.ParseInt(ref, 10, 64); convErr == nil && id > 0 {
			order, err = svc.GetOrder(r.Context(), id)
		} else {
			order, err = svc.GetOrderByNumber(r.Context(), ref)
		}
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

func UpdateStatus(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := validators.ParsePathID(r, "orderID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req updateStatusRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		ctx := r.Context()
		if logg != nil {
			ctx = logg.WithOrderID(ctx, orderID)
		}
		order, err := svc.UpdateStatus(ctx, internalorders.UpdateStatusInput{
			OrderID:            orderID,
			NewStatus:          req.Status,
			ApprovedQuantities: req.ApprovedQuantities,
			ChangedBy:          middleware.ActorFromContext(r.Context()),
			Reason:             req.Reason,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

// Release retries the inventory release of a terminal order whose first
// attempt failed.
func Release(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := validators.ParsePathID(r, "orderID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := svc.RetryRelease(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func InternalGet(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := validators.ParsePathID(r, "orderID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		order, err := svc.GetOrder(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order.ToClientOrder())
	}
}
