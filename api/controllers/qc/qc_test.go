package qc

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/warehouse-flow/api/middleware"
	"github.com/angelmondragon/warehouse-flow/internal/clients"
	internalqc "github.com/angelmondragon/warehouse-flow/internal/qc"
	"github.com/angelmondragon/warehouse-flow/pkg/enums"
	pkgerrors "github.com/angelmondragon/warehouse-flow/pkg/errors"
	"github.com/angelmondragon/warehouse-flow/pkg/logger"
	"github.com/angelmondragon/warehouse-flow/pkg/pagination"
)

type stubService struct {
	send   func(ctx context.Context, input internalqc.SendOrderInput) (*internalqc.HandoffDTO, error)
	record func(ctx context.Context, input internalqc.RecordResultInput) (*internalqc.QCLogDTO, error)
	sent   func(ctx context.Context, ids []int64) ([]int64, error)
	list   func(ctx context.Context, params internalqc.ListParams) (*pagination.Page[internalqc.QCLogDTO], error)
}

func (s stubService) SendOrderToQC(ctx context.Context, input internalqc.SendOrderInput) (*internalqc.HandoffDTO, error) {
	return s.send(ctx, input)
}

func (s stubService) RecordQCResult(ctx context.Context, input internalqc.RecordResultInput) (*internalqc.QCLogDTO, error) {
	return s.record(ctx, input)
}

func (s stubService) ListQCLogs(ctx context.Context, params internalqc.ListParams) (*pagination.Page[internalqc.QCLogDTO], error) {
	if s.list != nil {
		return s.list(ctx, params)
	}
	return &pagination.Page[internalqc.QCLogDTO]{Items: []internalqc.QCLogDTO{}}, nil
}

func (s stubService) GetQCLog(ctx context.Context, id int64) (*internalqc.QCLogDTO, error) {
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "qc log not found")
}

func (s stubService) ListSentOrderIDs(ctx context.Context, ids []int64) ([]int64, error) {
	return s.sent(ctx, ids)
}

func TestSendReturnsCreatedHandoff(t *testing.T) {
	svc := stubService{send: func(ctx context.Context, input internalqc.SendOrderInput) (*internalqc.HandoffDTO, error) {
		assert.Equal(t, int64(11), input.OrderID)
		assert.Equal(t, "inspector", input.SentBy)
		return &internalqc.HandoffDTO{ID: 1, OrderID: input.OrderID, BatchNumber: "QC-20261016-0001"}, nil
	}}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/qc/send", strings.NewReader(`{"order_id":11}`))
	req = req.WithContext(middleware.WithActor(req.Context(), "inspector"))
	rec := httptest.NewRecorder()
	Send(svc, logger.Nop()).ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

func TestSendSurfacesDownstreamRejection(t *testing.T) {
	svc := stubService{send: func(ctx context.Context, input internalqc.SendOrderInput) (*internalqc.HandoffDTO, error) {
		return nil, pkgerrors.New(pkgerrors.CodeDownstreamRejected, "inventory rejected send to qc").
			WithReason(clients.ReasonInsufficientStock).
			WithStep("send_to_qc")
	}}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/qc/send", strings.NewReader(`{"order_id":11}`))
	rec := httptest.NewRecorder()
	Send(svc, logger.Nop()).ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadGateway, rec.Code)
	var body struct {
		Error struct {
			Code    string         `json:"code"`
			Details map[string]any `json:"details"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, string(pkgerrors.CodeDownstreamRejected), body.Error.Code)
	assert.Equal(t, "send_to_qc", body.Error.Details["step"])
}

func TestRecordResultValidatesStatus(t *testing.T) {
	svc := stubService{record: func(ctx context.Context, input internalqc.RecordResultInput) (*internalqc.QCLogDTO, error) {
		assert.Equal(t, int64(4), input.QCLogID)
		return &internalqc.QCLogDTO{ID: input.QCLogID, QCStatus: enums.QCStatusFailed}, nil
	}}
	r := chi.NewRouter()
	r.Post("/api/v1/qc/{logID}/result", RecordResult(svc, logger.Nop()))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/qc/4/result", strings.NewReader(`{"status":"PENDING"}`)))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/qc/4/result", strings.NewReader(`{"status":"FAILED","notes":"bruised"}`)))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestSentOrdersNeverReturnsNull(t *testing.T) {
	svc := stubService{sent: func(ctx context.Context, ids []int64) ([]int64, error) {
		assert.Equal(t, []int64{1, 2}, ids)
		return nil, nil
	}}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/internal/qc/sent-orders", strings.NewReader(`{"order_ids":[1,2]}`))
	rec := httptest.NewRecorder()
	SentOrders(svc, logger.Nop()).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"data":{"order_ids":[]}}`, rec.Body.String())
}

func TestListPassesItemHistoryFilter(t *testing.T) {
	var got internalqc.ListParams
	svc := stubService{list: func(_ context.Context, params internalqc.ListParams) (*pagination.Page[internalqc.QCLogDTO], error) {
		got = params
		return &pagination.Page[internalqc.QCLogDTO]{Items: []internalqc.QCLogDTO{{ID: 7, ItemCode: params.ItemCode}}}, nil
	}}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/qc?item_code=SKU-3&status=failed&limit=5", nil)
	rec := httptest.NewRecorder()
	List(svc, logger.Nop()).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "SKU-3", got.ItemCode)
	require.Equal(t, "failed", got.Status)
	require.Equal(t, 5, got.Limit)
	require.Contains(t, rec.Body.String(), `"item_code":"SKU-3"`)
}

func TestGetMissingLogIsNotFound(t *testing.T) {
	r := chi.NewRouter()
	r.Get("/api/v1/qc/{logID}", Get(stubService{}, logger.Nop()))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/qc/99", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
}
