package inventory

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/warehouse-flow/api/middleware"
	"github.com/angelmondragon/warehouse-flow/internal/clients"
	internalinventory "github.com/angelmondragon/warehouse-flow/internal/inventory"
	pkgerrors "github.com/angelmondragon/warehouse-flow/pkg/errors"
	"github.com/angelmondragon/warehouse-flow/pkg/logger"
)

type stubService struct {
	createItem func(ctx context.Context, input internalinventory.CreateItemInput) (*internalinventory.ItemDTO, error)
	getStock   func(ctx context.Context, itemCode string) (*clients.StockLevel, error)
	reserve    func(ctx context.Context, orderID int64, lines []clients.StockLine) (*clients.StockOperationResult, error)
	inbound    func(ctx context.Context, input internalinventory.AdjustStockInput) (*internalinventory.ItemDTO, error)
	outbound   func(ctx context.Context, input internalinventory.AdjustStockInput) (*internalinventory.ItemDTO, error)
	export     func(ctx context.Context, w io.Writer, sheet string) error
}

func (s stubService) CreateItem(ctx context.Context, input internalinventory.CreateItemInput) (*internalinventory.ItemDTO, error) {
	return s.createItem(ctx, input)
}

func (s stubService) GetItem(ctx context.Context, itemCode string) (*internalinventory.ItemDTO, error) {
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "item not found")
}

func (s stubService) ListItems(ctx context.Context, filters internalinventory.ItemFilters) ([]internalinventory.ItemDTO, error) {
	return nil, nil
}

func (s stubService) GetStock(ctx context.Context, itemCode string) (*clients.StockLevel, error) {
	return s.getStock(ctx, itemCode)
}

func (s stubService) CheckAvailability(ctx context.Context, lines []clients.StockLine) (*clients.AvailabilityResult, error) {
	return &clients.AvailabilityResult{Available: true}, nil
}

func (s stubService) ReserveStock(ctx context.Context, orderID int64, lines []clients.StockLine) (*clients.StockOperationResult, error) {
	return s.reserve(ctx, orderID, lines)
}

func (s stubService) SendToQC(ctx context.Context, orderID int64, lines []clients.StockLine) (*clients.StockOperationResult, error) {
	return nil, nil
}

func (s stubService) ReleaseStock(ctx context.Context, orderID int64) (*clients.StockOperationResult, error) {
	return &clients.StockOperationResult{OrderID: orderID, Operation: "release", Status: "applied"}, nil
}

func (s stubService) Inbound(ctx context.Context, input internalinventory.AdjustStockInput) (*internalinventory.ItemDTO, error) {
	return s.inbound(ctx, input)
}

func (s stubService) Outbound(ctx context.Context, input internalinventory.AdjustStockInput) (*internalinventory.ItemDTO, error) {
	return s.outbound(ctx, input)
}

func (s stubService) ListMovements(ctx context.Context, itemCode string, limit int) ([]internalinventory.MovementDTO, error) {
	return nil, nil
}

func (s stubService) ListLowStock(ctx context.Context) ([]internalinventory.ItemDTO, error) {
	return nil, nil
}

func (s stubService) FlagLowStock(ctx context.Context, day time.Time) (int, error) {
	return 0, nil
}

func (s stubService) ExportStockReport(ctx context.Context, w io.Writer, sheet string) error {
	return s.export(ctx, w, sheet)
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) (string, map[string]any) {
	t.Helper()
	var body struct {
		Error struct {
			Code    string         `json:"code"`
			Details map[string]any `json:"details"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body.Error.Code, body.Error.Details
}

func TestCreateItemUsesActorAndReturnsCreated(t *testing.T) {
	var got internalinventory.CreateItemInput
	svc := stubService{createItem: func(ctx context.Context, input internalinventory.CreateItemInput) (*internalinventory.ItemDTO, error) {
		got = input
		return &internalinventory.ItemDTO{ID: 1, ItemCode: input.ItemCode, StockQuantity: input.StockQuantity}, nil
	}}

	body := `{"item_code":"SKU-1","name":"Tomato","category":"produce","unit":"kg","unit_price":"2.50","min_stock":10,"stock_quantity":100}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/items", strings.NewReader(body))
	req = req.WithContext(middleware.WithActor(req.Context(), "clerk"))
	rec := httptest.NewRecorder()

	CreateItem(svc, logger.Nop()).ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "clerk", got.CreatedBy)
	assert.True(t, decimal.RequireFromString("2.5").Equal(got.UnitPrice))
	assert.Equal(t, 100, got.StockQuantity)
}

func TestCreateItemRejectsNegativeStock(t *testing.T) {
	svc := stubService{createItem: func(context.Context, internalinventory.CreateItemInput) (*internalinventory.ItemDTO, error) {
		t.Fatalf("service should not be called")
		return nil, nil
	}}

	body := `{"item_code":"SKU-1","name":"Tomato","unit":"kg","unit_price":"1","stock_quantity":-1}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/items", strings.NewReader(body))
	rec := httptest.NewRecorder()
	CreateItem(svc, logger.Nop()).ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	code, details := decodeError(t, rec)
	assert.Equal(t, string(pkgerrors.CodeValidation), code)
	assert.Contains(t, details, "stock_quantity")
}

func TestOutboundMapsInsufficientStock(t *testing.T) {
	svc := stubService{outbound: func(ctx context.Context, input internalinventory.AdjustStockInput) (*internalinventory.ItemDTO, error) {
		assert.Equal(t, "SKU-1", input.ItemCode)
		assert.Equal(t, 5, input.Quantity)
		return nil, pkgerrors.New(pkgerrors.CodeInsufficientStock, "insufficient stock").WithReason(clients.ReasonInsufficientStock)
	}}

	r := chi.NewRouter()
	r.Post("/api/v1/items/{itemCode}/outbound", Outbound(svc, logger.Nop()))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/items/SKU-1/outbound", strings.NewReader(`{"quantity":5,"reference":"spoilage"}`))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusConflict, rec.Code)
	code, details := decodeError(t, rec)
	assert.Equal(t, string(pkgerrors.CodeInsufficientStock), code)
	assert.Equal(t, clients.ReasonInsufficientStock, details["reason"])
}

func TestInboundRejectsZeroQuantity(t *testing.T) {
	svc := stubService{inbound: func(context.Context, internalinventory.AdjustStockInput) (*internalinventory.ItemDTO, error) {
		t.Fatalf("service should not be called")
		return nil, nil
	}}

	r := chi.NewRouter()
	r.Post("/api/v1/items/{itemCode}/inbound", Inbound(svc, logger.Nop()))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/items/SKU-1/inbound", strings.NewReader(`{"quantity":0}`))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetStockUnescapesItemCode(t *testing.T) {
	svc := stubService{getStock: func(ctx context.Context, itemCode string) (*clients.StockLevel, error) {
		return &clients.StockLevel{ItemCode: itemCode, StockQuantity: 5, AvailableQuantity: 5}, nil
	}}

	r := chi.NewRouter()
	r.Get("/api/v1/internal/inventory/stock/{itemCode}", GetStock(svc, logger.Nop()))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/internal/inventory/stock/SKU%2F1", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var body struct {
		Data clients.StockLevel `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "SKU/1", body.Data.ItemCode)
}

func TestReserveValidatesLines(t *testing.T) {
	svc := stubService{reserve: func(context.Context, int64, []clients.StockLine) (*clients.StockOperationResult, error) {
		t.Fatalf("service should not be called")
		return nil, nil
	}}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/internal/inventory/reserve", strings.NewReader(`{"order_id":7,"lines":[{"item_code":"SKU-1","quantity":0}]}`))
	rec := httptest.NewRecorder()
	Reserve(svc, logger.Nop()).ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	_, details := decodeError(t, rec)
	assert.Contains(t, details, "lines[0].quantity")
}

func TestReservePassesOrderAndLines(t *testing.T) {
	svc := stubService{reserve: func(ctx context.Context, orderID int64, lines []clients.StockLine) (*clients.StockOperationResult, error) {
		assert.Equal(t, int64(7), orderID)
		require.Len(t, lines, 1)
		return &clients.StockOperationResult{OrderID: orderID, Operation: "reserve", Status: "applied"}, nil
	}}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/internal/inventory/reserve", strings.NewReader(`{"order_id":7,"lines":[{"item_code":"SKU-1","quantity":30}]}`))
	rec := httptest.NewRecorder()
	Reserve(svc, logger.Nop()).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestExportStockWritesWorkbookHeaders(t *testing.T) {
	svc := stubService{export: func(ctx context.Context, w io.Writer, sheet string) error {
		assert.Equal(t, "Stock", sheet)
		_, err := w.Write([]byte("xlsx-bytes"))
		return err
	}}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/items/export", nil)
	rec := httptest.NewRecorder()
	ExportStock(svc, "Stock", logger.Nop()).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, xlsxContentType, rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "stock-")
	assert.Equal(t, "xlsx-bytes", rec.Body.String())
}

func TestExportStockFailureReturnsJSONError(t *testing.T) {
	svc := stubService{export: func(ctx context.Context, w io.Writer, sheet string) error {
		_, _ = w.Write([]byte("partial"))
		return pkgerrors.New(pkgerrors.CodeInternal, "render workbook")
	}}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/items/export", nil)
	rec := httptest.NewRecorder()
	ExportStock(svc, "Stock", logger.Nop()).ServeHTTP(rec, req)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "partial")
}
