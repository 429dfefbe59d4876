package inventory

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
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

type harness struct {
	db  *gorm.DB
	svc Service
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	dsn := "file:inventory_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := conn.AutoMigrate(models.InventoryModels()...); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	ids, err := idgen.New(1)
	if err != nil {
		t.Fatalf("idgen: %v", err)
	}
	svc, err := NewService(
		NewRepository(conn),
		dbpkg.FromGorm(conn),
		outbox.NewService(outbox.NewRepository(conn), logger.Nop()),
		ids,
		nil,
		logger.Nop(),
	)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return &harness{db: conn, svc: svc}
}

func (h *harness) seed(t *testing.T, code string, stock, minStock int) {
	t.Helper()
	_, err := h.svc.CreateItem(context.Background(), CreateItemInput{
		ItemCode:      code,
		Name:          "Item " + code,
		Unit:          "kg",
		UnitPrice:     decimal.RequireFromString("2.50"),
		StockQuantity: stock,
		MinStock:      minStock,
	})
	if err != nil {
		t.Fatalf("seed %s: %v", code, err)
	}
}

func (h *harness) item(t *testing.T, code string) models.Item {
	t.Helper()
	var item models.Item
	if err := h.db.Where("item_code = ?", code).First(&item).Error; err != nil {
		t.Fatalf("load %s: %v", code, err)
	}
	if item.ReservedQuantity > item.StockQuantity || item.ReservedQuantity < 0 || item.StockQuantity < 0 {
		t.Fatalf("ledger bounds broken for %s: stock=%d reserved=%d", code, item.StockQuantity, item.ReservedQuantity)
	}
	return item
}

func (h *harness) events(t *testing.T, eventType enums.OutboxEventType) int64 {
	t.Helper()
	var count int64
	if err := h.db.Model(&models.OutboxEvent{}).Where("event_type = ?", eventType).Count(&count).Error; err != nil {
		t.Fatalf("count events: %v", err)
	}
	return count
}

func TestCreateItemThenGetItem(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	location := "A-01"

	created, err := h.svc.CreateItem(ctx, CreateItemInput{
		ItemCode:      " SKU-1 ",
		Name:          "Tomatoes",
		Category:      "produce",
		Unit:          "kg",
		UnitPrice:     decimal.RequireFromString("1.25"),
		Location:      &location,
		MinStock:      10,
		StockQuantity: 100,
	})
	require.NoError(t, err)
	require.Equal(t, "SKU-1", created.ItemCode)

	got, err := h.svc.GetItem(ctx, "SKU-1")
	require.NoError(t, err)
	require.Equal(t, created.ID, got.ID)
	require.Equal(t, "Tomatoes", got.Name)
	require.Equal(t, 100, got.StockQuantity)
	require.Equal(t, 100, got.AvailableQuantity)
	require.True(t, decimal.RequireFromString("1.25").Equal(got.UnitPrice))
	require.Equal(t, "A-01", *got.Location)

	movements, err := h.svc.ListMovements(ctx, "SKU-1", 0)
	require.NoError(t, err)
	require.Len(t, movements, 1)
	require.Equal(t, enums.StockMovementInbound, movements[0].MovementType)
	require.EqualValues(t, 1, h.events(t, enums.EventItemCreated))
}

func TestCreateItemRejectsDuplicateCode(t *testing.T) {
	h := newHarness(t)
	h.seed(t, "SKU-1", 5, 0)

	_, err := h.svc.CreateItem(context.Background(), CreateItemInput{ItemCode: "SKU-1", Name: "again", Unit: "kg"})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict), "got %v", err)
	require.Equal(t, "DUPLICATE_ITEM_CODE", pkgerrors.Reason(err))
}

func TestCreateItemValidation(t *testing.T) {
	h := newHarness(t)
	_, err := h.svc.CreateItem(context.Background(), CreateItemInput{ItemCode: "SKU-1", Name: "x", Unit: "kg", StockQuantity: -1})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestGetItemNotFound(t *testing.T) {
	h := newHarness(t)
	_, err := h.svc.GetStock(context.Background(), "missing")
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
	require.Equal(t, clients.ReasonItemNotFound, pkgerrors.Reason(err))
}

func TestReserveThenSendToQCDecrementsIndependently(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.seed(t, "SKU-1", 100, 0)

	res, err := h.svc.ReserveStock(ctx, 1, []clients.StockLine{{ItemCode: "SKU-1", Quantity: 30}})
	require.NoError(t, err)
	require.Equal(t, string(enums.StockOperationApplied), res.Status)
	require.False(t, res.Replayed)
	item := h.item(t, "SKU-1")
	require.Equal(t, 100, item.StockQuantity)
	require.Equal(t, 30, item.ReservedQuantity)

	_, err = h.svc.SendToQC(ctx, 1, []clients.StockLine{{ItemCode: "SKU-1", Quantity: 30}})
	require.NoError(t, err)
	item = h.item(t, "SKU-1")
	require.Equal(t, 70, item.StockQuantity)
	require.Equal(t, 30, item.ReservedQuantity)
	require.Equal(t, 40, item.AvailableQuantity())

	require.EqualValues(t, 1, h.events(t, enums.EventStockReserved))
	require.EqualValues(t, 1, h.events(t, enums.EventStockSentToQC))
}

func TestReserveIsAllOrNothing(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.seed(t, "SKU-1", 100, 0)
	h.seed(t, "SKU-2", 10, 0)

	_, err := h.svc.ReserveStock(ctx, 7, []clients.StockLine{
		{ItemCode: "SKU-1", Quantity: 50},
		{ItemCode: "SKU-2", Quantity: 11},
	})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInsufficientStock), "got %v", err)
	require.Equal(t, clients.ReasonInsufficientStock, pkgerrors.Reason(err))
	typed := pkgerrors.As(err)
	code, _ := typed.Detail("item_code")
	require.Equal(t, "SKU-2", code)

	require.Equal(t, 0, h.item(t, "SKU-1").ReservedQuantity)
	require.Equal(t, 0, h.item(t, "SKU-2").ReservedQuantity)
	require.EqualValues(t, 0, h.events(t, enums.EventStockReserved))

	var ops int64
	require.NoError(t, h.db.Model(&models.StockOperation{}).Count(&ops).Error)
	require.Zero(t, ops)
}

func TestReserveRejectsOverReservation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.seed(t, "SKU-1", 100, 0)

	_, err := h.svc.ReserveStock(ctx, 1, []clients.StockLine{{ItemCode: "SKU-1", Quantity: 80}})
	require.NoError(t, err)

	_, err = h.svc.ReserveStock(ctx, 2, []clients.StockLine{{ItemCode: "SKU-1", Quantity: 70}})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInsufficientStock))

	item := h.item(t, "SKU-1")
	require.Equal(t, 80, item.ReservedQuantity)
}

func TestReserveUnknownItem(t *testing.T) {
	h := newHarness(t)
	_, err := h.svc.ReserveStock(context.Background(), 1, []clients.StockLine{{ItemCode: "ghost", Quantity: 1}})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
	require.Equal(t, clients.ReasonItemNotFound, pkgerrors.Reason(err))
}

func TestReserveReplaysAndDetectsMismatch(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.seed(t, "SKU-1", 100, 0)
	h.seed(t, "SKU-2", 100, 0)

	first, err := h.svc.ReserveStock(ctx, 9, []clients.StockLine{
		{ItemCode: "SKU-2", Quantity: 5},
		{ItemCode: "SKU-1", Quantity: 10},
		{ItemCode: "SKU-1", Quantity: 5},
	})
	require.NoError(t, err)
	require.Len(t, first.Lines, 2)
	require.Equal(t, "SKU-1", first.Lines[0].ItemCode)
	require.Equal(t, 15, first.Lines[0].Quantity)

	again, err := h.svc.ReserveStock(ctx, 9, []clients.StockLine{
		{ItemCode: "SKU-1", Quantity: 15},
		{ItemCode: "SKU-2", Quantity: 5},
	})
	require.NoError(t, err)
	require.True(t, again.Replayed)
	require.Equal(t, first.Lines, again.Lines)
	require.Equal(t, 15, h.item(t, "SKU-1").ReservedQuantity)

	_, err = h.svc.ReserveStock(ctx, 9, []clients.StockLine{{ItemCode: "SKU-1", Quantity: 16}})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))
	require.Equal(t, clients.ReasonOperationMismatch, pkgerrors.Reason(err))
	require.EqualValues(t, 1, h.events(t, enums.EventStockReserved))
}

func TestSendToQCAppliesOnce(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.seed(t, "SKU-1", 100, 0)

	lines := []clients.StockLine{{ItemCode: "SKU-1", Quantity: 30}}
	_, err := h.svc.SendToQC(ctx, 3, lines)
	require.NoError(t, err)

	_, err = h.svc.SendToQC(ctx, 3, []clients.StockLine{{ItemCode: "SKU-1", Quantity: 40}})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))
	require.Equal(t, clients.ReasonAlreadySentToQC, pkgerrors.Reason(err))
	require.Equal(t, 70, h.item(t, "SKU-1").StockQuantity)

	sent, ok := clients.SentLines(err)
	require.True(t, ok)
	require.Len(t, sent, 1)
	require.Equal(t, "SKU-1", sent[0].ItemCode)
	require.Equal(t, 30, sent[0].Quantity)
}

func TestSendToQCCannotTouchReservedStock(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.seed(t, "SKU-1", 100, 0)

	_, err := h.svc.ReserveStock(ctx, 1, []clients.StockLine{{ItemCode: "SKU-1", Quantity: 80}})
	require.NoError(t, err)

	_, err = h.svc.SendToQC(ctx, 2, []clients.StockLine{{ItemCode: "SKU-1", Quantity: 30}})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInsufficientStock))
	item := h.item(t, "SKU-1")
	require.Equal(t, 100, item.StockQuantity)
	require.Equal(t, 80, item.ReservedQuantity)
}

func TestReleaseStock(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.seed(t, "SKU-1", 100, 0)

	noop, err := h.svc.ReleaseStock(ctx, 4)
	require.NoError(t, err)
	require.Equal(t, string(enums.StockOperationNoop), noop.Status)

	_, err = h.svc.ReserveStock(ctx, 4, []clients.StockLine{{ItemCode: "SKU-1", Quantity: 25}})
	require.NoError(t, err)

	released, err := h.svc.ReleaseStock(ctx, 4)
	require.NoError(t, err)
	require.Equal(t, string(enums.StockOperationApplied), released.Status)
	require.Equal(t, 0, h.item(t, "SKU-1").ReservedQuantity)

	replayed, err := h.svc.ReleaseStock(ctx, 4)
	require.NoError(t, err)
	require.True(t, replayed.Replayed)
	require.Equal(t, 0, h.item(t, "SKU-1").ReservedQuantity)
	require.Equal(t, 100, h.item(t, "SKU-1").StockQuantity)
	require.EqualValues(t, 1, h.events(t, enums.EventStockReleased))
}

func TestReserveAfterReleaseAppliesAgain(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.seed(t, "SKU-1", 100, 0)
	lines := []clients.StockLine{{ItemCode: "SKU-1", Quantity: 30}}

	_, err := h.svc.ReserveStock(ctx, 1, lines)
	require.NoError(t, err)
	_, err = h.svc.ReleaseStock(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, 0, h.item(t, "SKU-1").ReservedQuantity)

	again, err := h.svc.ReserveStock(ctx, 1, lines)
	require.NoError(t, err)
	require.False(t, again.Replayed)
	require.Equal(t, 30, h.item(t, "SKU-1").ReservedQuantity)

	replayed, err := h.svc.ReserveStock(ctx, 1, lines)
	require.NoError(t, err)
	require.True(t, replayed.Replayed)
	require.Equal(t, 30, h.item(t, "SKU-1").ReservedQuantity)

	released, err := h.svc.ReleaseStock(ctx, 1)
	require.NoError(t, err)
	require.False(t, released.Replayed)
	require.Equal(t, 0, h.item(t, "SKU-1").ReservedQuantity)

	_, err = h.svc.ReleaseStock(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, 0, h.item(t, "SKU-1").ReservedQuantity)
	require.Equal(t, 100, h.item(t, "SKU-1").StockQuantity)
	require.EqualValues(t, 2, h.events(t, enums.EventStockReserved))
	require.EqualValues(t, 2, h.events(t, enums.EventStockReleased))

	var generations []int
	require.NoError(t, h.db.Model(&models.StockOperation{}).
		Where("order_id = ? AND operation = ?", 1, enums.StockOperationReserve).
		Order("generation ASC").
		Pluck("generation", &generations).Error)
	require.Equal(t, []int{0, 1}, generations)
}

func TestCheckAvailability(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.seed(t, "SKU-1", 10, 0)

	res, err := h.svc.CheckAvailability(ctx, []clients.StockLine{
		{ItemCode: "SKU-1", Quantity: 4},
		{ItemCode: "SKU-1", Quantity: 4},
		{ItemCode: "ghost", Quantity: 1},
	})
	require.NoError(t, err)
	require.False(t, res.Available)
	require.Len(t, res.Lines, 2)

	byCode := map[string]clients.AvailabilityLine{}
	for _, line := range res.Lines {
		byCode[line.ItemCode] = line
	}
	require.True(t, byCode["SKU-1"].Available)
	require.Equal(t, 8, byCode["SKU-1"].Requested)
	require.Equal(t, clients.ReasonItemNotFound, byCode["ghost"].Error)

	_, err = h.svc.CheckAvailability(ctx, []clients.StockLine{{ItemCode: "SKU-1", Quantity: 0}})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestInboundAndOutbound(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.seed(t, "SKU-1", 10, 0)

	in, err := h.svc.Inbound(ctx, AdjustStockInput{ItemCode: "SKU-1", Quantity: 5, Reference: "PO-1"})
	require.NoError(t, err)
	require.Equal(t, 15, in.StockQuantity)

	_, err = h.svc.ReserveStock(ctx, 1, []clients.StockLine{{ItemCode: "SKU-1", Quantity: 10}})
	require.NoError(t, err)

	_, err = h.svc.Outbound(ctx, AdjustStockInput{ItemCode: "SKU-1", Quantity: 6})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInsufficientStock))

	out, err := h.svc.Outbound(ctx, AdjustStockInput{ItemCode: "SKU-1", Quantity: 5})
	require.NoError(t, err)
	require.Equal(t, 10, out.StockQuantity)
	require.Equal(t, 0, out.AvailableQuantity)
	require.EqualValues(t, 2, h.events(t, enums.EventStockAdjusted))

	_, err = h.svc.Inbound(ctx, AdjustStockInput{ItemCode: "ghost", Quantity: 1})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestConcurrentReservationsNeverOversell(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.seed(t, "SKU-1", 100, 0)

	var wg sync.WaitGroup
	results := make(chan error, 10)
	for i := 1; i <= 10; i++ {
		wg.Add(1)
		go func(orderID int64) {
			defer wg.Done()
			_, err := h.svc.ReserveStock(ctx, orderID, []clients.StockLine{{ItemCode: "SKU-1", Quantity: 15}})
			results <- err
		}(int64(i))
	}
	wg.Wait()
	close(results)

	applied := 0
	for err := range results {
		if err == nil {
			applied++
			continue
		}
		require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInsufficientStock), "got %v", err)
	}
	require.Equal(t, 6, applied)
	require.Equal(t, 90, h.item(t, "SKU-1").ReservedQuantity)
}

func TestFlagLowStockOncePerDay(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.seed(t, "SKU-1", 5, 10)
	h.seed(t, "SKU-2", 50, 10)

	day := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	n, err := h.svc.FlagLowStock(ctx, day)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	n, err = h.svc.FlagLowStock(ctx, day.Add(2*time.Hour))
	require.NoError(t, err)
	require.Zero(t, n)

	n, err = h.svc.FlagLowStock(ctx, day.Add(24*time.Hour))
	require.NoError(t, err)
	require.Equal(t, 1, n)

	low, err := h.svc.ListLowStock(ctx)
	require.NoError(t, err)
	require.Len(t, low, 1)
	require.Equal(t, "SKU-1", low[0].ItemCode)
}

func TestExportStockReport(t *testing.T) {
	h := newHarness(t)
	h.seed(t, "SKU-1", 5, 10)
	h.seed(t, "SKU-2", 50, 0)

	var buf bytes.Buffer
	require.NoError(t, h.svc.ExportStockReport(context.Background(), &buf, "Inventory"))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Inventory")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	require.Equal(t, "Item Code", rows[0][0])
	require.Equal(t, "SKU-1", rows[1][0])
	require.Equal(t, "TRUE", rows[1][9])
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	_, err := NewService(nil, nil, nil, nil, nil, nil)
	require.Error(t, err)
}
