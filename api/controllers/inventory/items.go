package inventory

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/warehouse-flow/api/middleware"
	"github.com/angelmondragon/warehouse-flow/api/responses"
	"github.com/angelmondragon/warehouse-flow/api/validators"
	internalinventory "github.com/angelmondragon/warehouse-flow/internal/inventory"
	"github.com/angelmondragon/warehouse-flow/pkg/logger"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type createItemRequest struct {
	ItemCode      string          `json:"item_code" validate:"required,max=64"`
	Name          string          `json:"name" validate:"required,max=200"`
	Category      string          `json:"category" validate:"max=100"`
	Unit          string          `json:"unit" validate:"required,max=32"`
	UnitPrice     decimal.Decimal `json:"unit_price"`
	Description   *string         `json:"description,omitempty" validate:"omitempty,max=1000"`
	Location      *string         `json:"location,omitempty" validate:"omitempty,max=100"`
	MinStock      int             `json:"min_stock" validate:"gte=0"`
	StockQuantity int             `json:"stock_quantity" validate:"gte=0"`
}

type adjustStockRequest struct {
	Quantity  int    `json:"quantity" validate:"gt=0"`
	Reference string `json:"reference" validate:"max=200"`
}

func CreateItem(svc internalinventory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createItemRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		item, err := svc.CreateItem(r.Context(), internalinventory.CreateItemInput{
			ItemCode:      req.ItemCode,
			Name:          req.Name,
			Category:      req.Category,
			Unit:          req.Unit,
			UnitPrice:     req.UnitPrice,
			Description:   req.Description,
			Location:      req.Location,
			MinStock:      req.MinStock,
			StockQuantity: req.StockQuantity,
			CreatedBy:     middleware.ActorFromContext(r.Context()),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, item)
	}
}

func ListItems(svc internalinventory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := validators.ParseQueryInt(r, "limit", 100, 1, 1000)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		items, err := svc.ListItems(r.Context(), internalinventory.ItemFilters{
			Category: strings.TrimSpace(r.URL.Query().Get("category")),
			Limit:    limit,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, items)
	}
}

func GetItem(svc internalinventory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		itemCode, err := validators.PathString(r, "itemCode")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		item, err := svc.GetItem(r.Context(), itemCode)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, item)
	}
}

// GetStock serves both the public stock view and the internal lookup.
func GetStock(svc internalinventory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		itemCode, err := validators.PathString(r, "itemCode")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		level, err := svc.GetStock(r.Context(), itemCode)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, level)
	}
}

func ListMovements(svc internalinventory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		itemCode, err := validators.PathString(r, "itemCode")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", 50, 1, 500)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		movements, err := svc.ListMovements(r.Context(), itemCode, limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, movements)
	}
}

func Inbound(svc internalinventory.Service, logg *logger.Logger) http.HandlerFunc {
	return adjustStock(svc.Inbound, logg)
}

func Outbound(svc internalinventory.Service, logg *logger.Logger) http.HandlerFunc {
	return adjustStock(svc.Outbound, logg)
}

type adjustFunc func(ctx context.Context, input internalinventory.AdjustStockInput) (*internalinventory.ItemDTO, error)

func adjustStock(apply adjustFunc, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		itemCode, err := validators.PathString(r, "itemCode")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req adjustStockRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		item, err := apply(r.Context(), internalinventory.AdjustStockInput{
			ItemCode:  itemCode,
			Quantity:  req.Quantity,
			Reference: req.Reference,
			CreatedBy: middleware.ActorFromContext(r.Context()),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, item)
	}
}

func ListLowStock(svc internalinventory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		items, err := svc.ListLowStock(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, items)
	}
}

// ExportStock streams the stock report as an xlsx attachment. The workbook is
// rendered into memory first so a failure still yields a JSON error.
func ExportStock(svc internalinventory.Service, sheet string, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var buf bytes.Buffer
		if err := svc.ExportStockReport(r.Context(), &buf, sheet); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		filename := fmt.Sprintf("stock-%s.xlsx", time.Now().UTC().Format("20060102"))
		w.Header().Set("Content-Type", xlsxContentType)
		w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
		w.WriteHeader(http.StatusOK)
		if _, err := buf.WriteTo(w); err != nil && logg != nil {
			logg.Error(r.Context(), "write stock export", err)
		}
	}
}
