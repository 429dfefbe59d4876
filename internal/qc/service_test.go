package qc

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/warehouse-flow/internal/clients"
	dbpkg "github.com/angelmondragon/warehouse-flow/pkg/db"
	"github.com/angelmondragon/warehouse-flow/pkg/db/models"
	"github.com/angelmondragon/warehouse-flow/pkg/enums"
	pkgerrors "github.com/angelmondragon/warehouse-flow/pkg/errors"
	"github.com/angelmondragon/warehouse-flow/pkg/idgen"
	"github.com/angelmondragon/warehouse-flow/pkg/logger"
	"github.com/angelmondragon/warehouse-flow/pkg/outbox"
)

type stubOrders struct {
	orders map[int64]*clients.Order
	err    error
}

func (s *stubOrders) GetOrder(_ context.Context, orderID int64) (*clients.Order, error) {
	if s.err != nil {
		return nil, s.err
	}
	order, ok := s.orders[orderID]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeDownstreamRejected, "order not found").
			WithDetail(pkgerrors.DetailDownstreamCode, string(pkgerrors.CodeNotFound)).
			WithReason(clients.ReasonOrderNotFound)
	}
	return order, nil
}

type stubInventory struct {
	sendFn func(ctx context.Context, orderID int64, lines []clients.StockLine) (*clients.StockOperationResult, error)
	calls  [][]clients.StockLine
}

func (s *stubInventory) SendToQC(ctx context.Context, orderID int64, lines []clients.StockLine) (*clients.StockOperationResult, error) {
	s.calls = append(s.calls, lines)
	if s.sendFn != nil {
		return s.sendFn(ctx, orderID, lines)
	}
	return &clients.StockOperationResult{OrderID: orderID, Status: "applied"}, nil
}

type recordingTx struct {
	inner txRunner
	fail  error
}

func (r *recordingTx) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	if r.fail != nil {
		return r.fail
	}
	return r.inner.WithTx(ctx, fn)
}

type harness struct {
	db        *gorm.DB
	svc       *service
	orders    *stubOrders
	inventory *stubInventory
	tx        *recordingTx
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	dsn := "file:qc_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := conn.AutoMigrate(models.QCModels()...); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	ids, err := idgen.New(3)
	if err != nil {
		t.Fatalf("idgen: %v", err)
	}

	orders := &stubOrders{orders: map[int64]*clients.Order{
		10: {
			ID:          10,
			OrderNumber: "ORD-20260301-0001",
			Status:      "APPROVED",
			Items: []clients.OrderLine{
				{ItemCode: "SKU-1", ItemName: "Tomatoes", Unit: "kg", RequestedQuantity: 30, ApprovedQuantity: 30},
				{ItemCode: "SKU-2", ItemName: "Onions", Unit: "kg", RequestedQuantity: 10, ApprovedQuantity: 0},
			},
		},
		11: {ID: 11, OrderNumber: "ORD-20260301-0002", Status: "PENDING"},
	}}
	inventory := &stubInventory{}
	tx := &recordingTx{inner: dbpkg.FromGorm(conn)}

	svc, err := NewService(
		NewRepository(conn),
		tx,
		outbox.NewService(outbox.NewRepository(conn), logger.Nop()),
		ids,
		orders,
		inventory,
		logger.Nop(),
	)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	impl := svc.(*service)
	impl.now = func() time.Time { return time.Date(2026, 3, 2, 14, 0, 0, 0, time.UTC) }
	return &harness{db: conn, svc: impl, orders: orders, inventory: inventory, tx: tx}
}

func (h *harness) count(t *testing.T, model any) int64 {
	t.Helper()
	var n int64
	if err := h.db.Model(model).Count(&n).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	return n
}

func (h *harness) send(t *testing.T) *HandoffDTO {
	t.Helper()
	handoff, err := h.svc.SendOrderToQC(context.Background(), SendOrderInput{OrderID: 10, SentBy: "picker"})
	if err != nil {
		t.Fatalf("send order: %v", err)
	}
	return handoff
}

func TestSendOrderToQC(t *testing.T) {
	h := newHarness(t)
	handoff := h.send(t)

	require.True(t, strings.HasPrefix(handoff.BatchNumber, "QC-20260302-"))
	require.Len(t, handoff.Logs, 1)
	require.Equal(t, "SKU-1", handoff.Logs[0].ItemCode)
	require.Equal(t, 30, handoff.Logs[0].Quantity)
	require.Equal(t, enums.QCStatusPending, handoff.Logs[0].QCStatus)
	require.Equal(t, []clients.StockLine{{ItemCode: "SKU-1", Quantity: 30}}, h.inventory.calls[0])

	require.EqualValues(t, 1, h.count(t, &models.QCHandoff{}))
	require.EqualValues(t, 1, h.count(t, &models.QCLog{}))

	var events int64
	require.NoError(t, h.db.Model(&models.OutboxEvent{}).Where("event_type = ?", enums.EventQCHandoffCreated).Count(&events).Error)
	require.EqualValues(t, 1, events)
}

func TestSendOrderToQCTwiceIsRejected(t *testing.T) {
	h := newHarness(t)
	h.send(t)

	_, err := h.svc.SendOrderToQC(context.Background(), SendOrderInput{OrderID: 10})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))
	require.Equal(t, clients.ReasonAlreadySentToQC, pkgerrors.Reason(err))
	require.Len(t, h.inventory.calls, 1)
	require.EqualValues(t, 1, h.count(t, &models.QCLog{}))
}

func TestSendOrderToQCRequiresApprovedOrder(t *testing.T) {
	h := newHarness(t)

	_, err := h.svc.SendOrderToQC(context.Background(), SendOrderInput{OrderID: 11})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))
	require.Equal(t, ReasonOrderNotApproved, pkgerrors.Reason(err))

	_, err = h.svc.SendOrderToQC(context.Background(), SendOrderInput{OrderID: 99})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
	require.Equal(t, clients.ReasonOrderNotFound, pkgerrors.Reason(err))
	require.Empty(t, h.inventory.calls)
}

func TestSendOrderToQCOrdersUnavailable(t *testing.T) {
	h := newHarness(t)
	h.orders.err = pkgerrors.New(pkgerrors.CodeDependency, "orders unavailable")

	_, err := h.svc.SendOrderToQC(context.Background(), SendOrderInput{OrderID: 10})
	require.True(t, pkgerrors.IsRetryable(err))
	step, _ := pkgerrors.As(err).Detail(pkgerrors.DetailStep)
	require.Equal(t, StepLoadOrder, step)
}

func TestSendOrderToQCInventoryFailureLeavesNoLogs(t *testing.T) {
	h := newHarness(t)
	h.inventory.sendFn = func(context.Context, int64, []clients.StockLine) (*clients.StockOperationResult, error) {
		return nil, pkgerrors.New(pkgerrors.CodeDownstreamRejected, "insufficient stock").
			WithDetail(pkgerrors.DetailDownstreamCode, string(pkgerrors.CodeInsufficientStock)).
			WithReason(clients.ReasonInsufficientStock)
	}

	_, err := h.svc.SendOrderToQC(context.Background(), SendOrderInput{OrderID: 10})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDownstreamRejected))
	require.False(t, pkgerrors.IsRetryable(err))
	require.Zero(t, h.count(t, &models.QCLog{}))
	require.Zero(t, h.count(t, &models.QCHandoff{}))
}

func TestSendOrderToQCResumesAfterRecordingFailure(t *testing.T) {
	h := newHarness(t)
	h.tx.fail = errors.New("db gone")

	_, err := h.svc.SendOrderToQC(context.Background(), SendOrderInput{OrderID: 10})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))
	step, _ := pkgerrors.As(err).Detail(pkgerrors.DetailStep)
	require.Equal(t, StepRecordHandoff, step)
	require.Zero(t, h.count(t, &models.QCLog{}))

	h.tx.fail = nil
	h.inventory.sendFn = func(context.Context, int64, []clients.StockLine) (*clients.StockOperationResult, error) {
		return nil, pkgerrors.New(pkgerrors.CodeDownstreamRejected, "order already sent to qc").
			WithDetail(pkgerrors.DetailDownstreamCode, string(pkgerrors.CodeConflict)).
			WithReason(clients.ReasonAlreadySentToQC)
	}
	handoff, err := h.svc.SendOrderToQC(context.Background(), SendOrderInput{OrderID: 10})
	require.NoError(t, err)
	require.Len(t, handoff.Logs, 1)
	require.Len(t, h.inventory.calls, 2)
}

func TestSendOrderToQCResumeUsesQuantitiesInventorySent(t *testing.T) {
	h := newHarness(t)
	h.inventory.sendFn = func(context.Context, int64, []clients.StockLine) (*clients.StockOperationResult, error) {
		return nil, pkgerrors.New(pkgerrors.CodeDownstreamRejected, "order already sent to qc").
			WithDetail(pkgerrors.DetailDownstreamCode, string(pkgerrors.CodeConflict)).
			WithReason(clients.ReasonAlreadySentToQC).
			WithDetail(clients.DetailSentLines, []any{
				map[string]any{"item_code": "SKU-1", "quantity": float64(25), "stock_quantity": float64(75)},
				map[string]any{"item_code": "SKU-2", "quantity": float64(5), "stock_quantity": float64(95)},
			})
	}

	handoff, err := h.svc.SendOrderToQC(context.Background(), SendOrderInput{OrderID: 10})
	require.NoError(t, err)
	require.Len(t, handoff.Logs, 2)

	quantities := map[string]int{}
	names := map[string]string{}
	for _, log := range handoff.Logs {
		quantities[log.ItemCode] = log.Quantity
		names[log.ItemCode] = log.ItemName
	}
	require.Equal(t, map[string]int{"SKU-1": 25, "SKU-2": 5}, quantities)
	require.Equal(t, "Onions", names["SKU-2"])
	require.EqualValues(t, 2, h.count(t, &models.QCLog{}))
}

func TestRecordQCResult(t *testing.T) {
	h := newHarness(t)
	handoff := h.send(t)
	logID := handoff.Logs[0].ID
	ctx := context.Background()

	_, err := h.svc.RecordQCResult(ctx, RecordResultInput{QCLogID: logID, Status: "FAILED"})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = h.svc.RecordQCResult(ctx, RecordResultInput{QCLogID: logID, Status: "PENDING"})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))
	require.Equal(t, ReasonInvalidStatus, pkgerrors.Reason(err))

	recorded, err := h.svc.RecordQCResult(ctx, RecordResultInput{QCLogID: logID, Status: "failed", Notes: "bruised", ProcessedBy: "inspector"})
	require.NoError(t, err)
	require.Equal(t, enums.QCStatusFailed, recorded.QCStatus)
	require.Equal(t, "bruised", *recorded.QCNotes)
	require.NotNil(t, recorded.ProcessedAt)

	_, err = h.svc.RecordQCResult(ctx, RecordResultInput{QCLogID: logID, Status: "PASSED"})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))
	require.Equal(t, ReasonAlreadyRecorded, pkgerrors.Reason(err))

	stored, err := h.svc.GetQCLog(ctx, logID)
	require.NoError(t, err)
	require.Equal(t, enums.QCStatusFailed, stored.QCStatus)

	_, err = h.svc.RecordQCResult(ctx, RecordResultInput{QCLogID: 12345, Status: "PASSED"})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
	require.Equal(t, ReasonQCLogNotFound, pkgerrors.Reason(err))
}

func TestListQCLogs(t *testing.T) {
	h := newHarness(t)
	h.orders.orders[12] = &clients.Order{
		ID:          12,
		OrderNumber: "ORD-20260301-0003",
		Status:      "APPROVED",
		Items: []clients.OrderLine{
			{ItemCode: "SKU-3", ItemName: "Leeks", Unit: "kg", RequestedQuantity: 5, ApprovedQuantity: 5},
			{ItemCode: "SKU-4", ItemName: "Garlic", Unit: "kg", RequestedQuantity: 2, ApprovedQuantity: 2},
		},
	}
	ctx := context.Background()
	h.send(t)
	_, err := h.svc.SendOrderToQC(ctx, SendOrderInput{OrderID: 12})
	require.NoError(t, err)

	page, err := h.svc.ListQCLogs(ctx, ListParams{Limit: 2})
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	require.NotEmpty(t, page.NextCursor)

	rest, err := h.svc.ListQCLogs(ctx, ListParams{Limit: 2, Cursor: page.NextCursor})
	require.NoError(t, err)
	require.Len(t, rest.Items, 1)
	require.Empty(t, rest.NextCursor)

	pending, err := h.svc.ListQCLogs(ctx, ListParams{Status: "pending"})
	require.NoError(t, err)
	require.Len(t, pending.Items, 3)

	history, err := h.svc.ListQCLogs(ctx, ListParams{ItemCode: "SKU-3"})
	require.NoError(t, err)
	require.Len(t, history.Items, 1)
	require.Equal(t, "SKU-3", history.Items[0].ItemCode)
	require.Equal(t, int64(12), history.Items[0].OrderID)

	_, err = h.svc.ListQCLogs(ctx, ListParams{Status: "DONE"})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestListSentOrderIDs(t *testing.T) {
	h := newHarness(t)
	h.send(t)

	ids, err := h.svc.ListSentOrderIDs(context.Background(), []int64{10, 11, 12})
	require.NoError(t, err)
	require.Equal(t, []int64{10}, ids)

	ids, err = h.svc.ListSentOrderIDs(context.Background(), nil)
	require.NoError(t, err)
	require.Empty(t, ids)
}
