package orders

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/warehouse-flow/internal/clients"
	dbpkg "github.com/angelmondragon/warehouse-flow/pkg/db"
	"github.com/angelmondragon/warehouse-flow/pkg/db/models"
	"github.com/angelmondragon/warehouse-flow/pkg/enums"
	pkgerrors "github.com/angelmondragon/warehouse-flow/pkg/errors"
	"github.com/angelmondragon/warehouse-flow/pkg/logger"
	"github.com/angelmondragon/warehouse-flow/pkg/outbox"
	"github.com/angelmondragon/warehouse-flow/pkg/outbox/payloads"
	"github.com/angelmondragon/warehouse-flow/pkg/pagination"
)

const (
	serviceName             = "orders"
	orderNumberAttempts     = 3
	approvedListLimit       = 500
	compensationTimeout     = 15 * time.Second
	StepReserveStock        = "reserve_stock"
	StepCompensateReserve   = "compensate_reservation"
	StepReleaseReservation  = "release_reservation"
	ReasonInvalidTransition = "INVALID_TRANSITION"
	ReasonStatusChanged     = "STATUS_CHANGED"
	ReasonItemsUnavailable  = "ITEMS_UNAVAILABLE"
	ReasonReleaseNotAllowed = "RELEASE_NOT_ALLOWED"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type idGenerator interface {
	NextID() int64
}

type numberSource interface {
	Next(ctx context.Context, day time.Time) (string, error)
}

// InventoryClient is the slice of the inventory ledger the order aggregate calls.
type InventoryClient interface {
	CheckAvailability(ctx context.Context, lines []clients.StockLine) (*clients.AvailabilityResult, error)
	ReserveStock(ctx context.Context, orderID int64, lines []clients.StockLine) (*clients.StockOperationResult, error)
	ReleaseStock(ctx context.Context, orderID int64) (*clients.StockOperationResult, error)
}

// QCClient answers which orders already have a QC hand-off.
type QCClient interface {
	ListSentOrderIDs(ctx context.Context, orderIDs []int64) ([]int64, error)
}

// Options toggles optional behaviour of the order service.
type Options struct {
	CheckInventoryOnCreate bool
}

// Service owns the order lifecycle.
type Service interface {
	CreateOrder(ctx context.Context, input CreateOrderInput) (*OrderDTO, error)
	UpdateStatus(ctx context.Context, input UpdateStatusInput) (*OrderDTO, error)
	GetOrder(ctx context.Context, id int64) (*OrderDTO, error)
	GetOrderByNumber(ctx context.Context, orderNumber string) (*OrderDTO, error)
	ListOrders(ctx context.Context, params ListParams) (*pagination.Page[OrderDTO], error)
	ListApprovedOrders(ctx context.Context) ([]OrderDTO, error)
	RetryRelease(ctx context.Context, orderID int64) (*clients.StockOperationResult, error)
}

type service struct {
	repo      Repository
	tx        txRunner
	outbox    outboxPublisher
	ids       idGenerator
	numbers   numberSource
	inventory InventoryClient
	qc        QCClient
	opts      Options
	logg      *logger.Logger
	now       func() time.Time
}

// NewService builds the order service with the required dependencies.
func NewService(repo Repository, tx txRunner, outbox outboxPublisher, ids idGenerator, numbers numberSource, inventory InventoryClient, qc QCClient, opts Options, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if ids == nil {
		return nil, fmt.Errorf("id generator required")
	}
	if numbers == nil {
		return nil, fmt.Errorf("order number source required")
	}
	if inventory == nil {
		return nil, fmt.Errorf("inventory client required")
	}
	if qc == nil {
		return nil, fmt.Errorf("qc client required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &service{
		repo:      repo,
		tx:        tx,
		outbox:    outbox,
		ids:       ids,
		numbers:   numbers,
		inventory: inventory,
		qc:        qc,
		opts:      opts,
		logg:      logg,
		now:       time.Now,
	}, nil
}

func (s *service) CreateOrder(ctx context.Context, input CreateOrderInput) (*OrderDTO, error) {
	priority, err := validateCreateOrder(&input)
	if err != nil {
		return nil, err
	}

	checkInventory := s.opts.CheckInventoryOnCreate
	if input.CheckInventory != nil {
		checkInventory = *input.CheckInventory
	}
	if checkInventory {
		if err := s.ensureAvailable(ctx, input.Items); err != nil {
			return nil, err
		}
	}

	now := s.now().UTC()
	order := s.buildOrder(input, priority, now)

	for attempt := 1; attempt <= orderNumberAttempts; attempt++ {
		number, err := s.numbers.Next(ctx, now)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "generate order number")
		}
		order.OrderNumber = number

		err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			if err := s.repo.WithTx(tx).Create(ctx, order); err != nil {
				return err
			}
			return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventOrderCreated,
				AggregateType: enums.AggregateOrder,
				AggregateID:   strconv.FormatInt(order.ID, 10),
				Actor:         actor(input.CreatedBy),
				OccurredAt:    now,
				Data: payloads.OrderCreatedEvent{
					OrderID:        order.ID,
					OrderNumber:    order.OrderNumber,
					RestaurantID:   order.RestaurantID,
					RestaurantName: order.RestaurantName,
					Priority:       order.Priority,
					TotalItems:     order.TotalItems,
				},
			})
		})
		if err == nil {
			dto := toOrderDTO(*order)
			return &dto, nil
		}
		if !dbpkg.IsUniqueViolation(err, "order_number") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
		}
		logCtx := s.logg.WithFields(ctx, map[string]any{"order_number": number, "attempt": attempt})
		s.logg.Warn(logCtx, "order number collision, regenerating")
	}

	return nil, pkgerrors.New(pkgerrors.CodeConflict, "could not allocate a unique order number")
}

// UpdateStatus applies one lifecycle transition. Approval reserves stock
// before the status commits; leaving an approved state releases it after.
func (s *service) UpdateStatus(ctx context.Context, input UpdateStatusInput) (*OrderDTO, error) {
	to, err := enums.ParseOrderStatus(input.NewStatus)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status").
			WithDetail("status", input.NewStatus)
	}
	order, err := s.load(ctx, input.OrderID)
	if err != nil {
		return nil, err
	}
	ctx = s.logg.WithOrderID(ctx, order.ID)

	from := order.Status
	if !CanTransition(from, to) {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("cannot move order from %s to %s", from, to)).
			WithReason(ReasonInvalidTransition).
			WithDetail("from", string(from)).
			WithDetail("to", string(to))
	}

	var approved map[int64]int
	reserved := false
	if to == enums.OrderStatusApproved {
		var lines []clients.StockLine
		approved, lines, err = approvalLines(order.Items, input.ApprovedQuantities)
		if err != nil {
			return nil, err
		}
		result, err := s.inventory.ReserveStock(ctx, order.ID, lines)
		if err != nil {
			return nil, withStep(err, StepReserveStock)
		}
		// A replayed hold belongs to an earlier or concurrent approval.
		reserved = !result.Replayed
	}

	now := s.now().UTC()
	updates := map[string]any{"updated_at": now}
	if column := statusDateColumn(to); column != "" {
		updates[column] = now
	}
	changedBy := optionalString(input.ChangedBy)
	if changedBy != nil {
		updates["updated_by"] = *changedBy
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		rows, err := repo.TransitionStatus(ctx, order.ID, from, to, updates)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
		}
		if rows == 0 {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order status changed concurrently").
				WithReason(ReasonStatusChanged).
				WithDetail("expected", string(from))
		}
		for itemID, qty := range approved {
			if err := repo.SetApprovedQuantity(ctx, itemID, qty); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "set approved quantity")
			}
		}
		previous := from
		if err := repo.CreateHistory(ctx, &models.OrderStatusHistory{
			ID:             s.ids.NextID(),
			OrderID:        order.ID,
			PreviousStatus: &previous,
			NewStatus:      to,
			ChangedBy:      changedBy,
			Reason:         optionalString(input.Reason),
			ChangedAt:      now,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record status history")
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderStatusChanged,
			AggregateType: enums.AggregateOrder,
			AggregateID:   strconv.FormatInt(order.ID, 10),
			Actor:         actor(input.ChangedBy),
			OccurredAt:    now,
			Data: payloads.OrderStatusChangedEvent{
				OrderID:        order.ID,
				OrderNumber:    order.OrderNumber,
				PreviousStatus: from,
				NewStatus:      to,
				ChangedBy:      input.ChangedBy,
				Reason:         input.Reason,
			},
		})
	})
	if err != nil {
		if reserved {
			return nil, s.compensateReservation(ctx, order.ID, err)
		}
		return nil, err
	}

	if releasesReservation(to) && holdsReservation(from) {
		if _, relErr := s.inventory.ReleaseStock(ctx, order.ID); relErr != nil {
			s.logg.Error(ctx, "release reservation after status change failed", relErr)
			return nil, withStep(relErr, StepReleaseReservation).
				WithDetail("status", string(to)).
				WithDetail("status_committed", true)
		}
	}

	return s.GetOrder(ctx, order.ID)
}

// compensateReservation undoes a reservation whose approval never committed.
// When the order meanwhile reached a status that holds stock, the hold now
// backs that status and is kept. It runs detached from the request context so
// a cancelled caller still releases the hold.
func (s *service) compensateReservation(ctx context.Context, orderID int64, cause error) error {
	relCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), compensationTimeout)
	defer cancel()

	current, err := s.repo.FindByID(relCtx, orderID)
	if err != nil {
		s.logg.Error(ctx, "reload order before compensating release failed", err)
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload order after failed approval").
			WithStep(StepCompensateReserve).
			WithDetail("cause", cause.Error()).
			WithDetail("reservation_held", true)
	}
	if holdsReservation(current.Status) {
		s.logg.Warn(ctx, "approval lost to a concurrent transition, reservation kept")
		return cause
	}

	if _, err := s.inventory.ReleaseStock(relCtx, orderID); err != nil {
		s.logg.Error(ctx, "compensating release failed", err)
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "release reservation after failed approval").
			WithStep(StepCompensateReserve).
			WithDetail("cause", cause.Error())
	}
	s.logg.Warn(ctx, "approval rolled back, reservation released")
	return cause
}

func (s *service) GetOrder(ctx context.Context, id int64) (*OrderDTO, error) {
	order, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	dto := toOrderDTO(*order)
	return &dto, nil
}

func (s *service) GetOrderByNumber(ctx context.Context, orderNumber string) (*OrderDTO, error) {
	orderNumber = strings.TrimSpace(orderNumber)
	if orderNumber == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order number required")
	}
	order, err := s.repo.FindByNumber(ctx, orderNumber)
	if err != nil {
		if dbpkg.IsNotFound(err) {
			return nil, orderNotFound().WithDetail("order_number", orderNumber)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	dto := toOrderDTO(*order)
	return &dto, nil
}

func (s *service) ListOrders(ctx context.Context, params ListParams) (*pagination.Page[OrderDTO], error) {
	query := listOrdersParams{Limit: params.Limit}
	if strings.TrimSpace(params.Status) != "" {
		status, err := enums.ParseOrderStatus(params.Status)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status filter")
		}
		query.Status = &status
	}
	if params.Cursor != "" {
		cursor, err := pagination.ParseCursor(params.Cursor)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		query.Cursor = cursor
	}

	rows, next, err := s.repo.List(ctx, query)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}

	page := &pagination.Page[OrderDTO]{Items: make([]OrderDTO, 0, len(rows))}
	for _, row := range rows {
		page.Items = append(page.Items, toOrderDTO(row))
	}
	if next != nil {
		page.NextCursor = pagination.EncodeCursor(*next)
	}
	return page, nil
}

// ListApprovedOrders returns approved orders that QC has not received yet.
func (s *service) ListApprovedOrders(ctx context.Context) ([]OrderDTO, error) {
	rows, err := s.repo.ListByStatus(ctx, enums.OrderStatusApproved, approvedListLimit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list approved orders")
	}
	if len(rows) == 0 {
		return []OrderDTO{}, nil
	}

	ids := make([]int64, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
	}
	sent, err := s.qc.ListSentOrderIDs(ctx, ids)
	if err != nil {
		if pkgerrors.As(err) == nil {
			err = pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list qc hand-offs")
		}
		return nil, err
	}
	skip := make(map[int64]struct{}, len(sent))
	for _, id := range sent {
		skip[id] = struct{}{}
	}

	out := make([]OrderDTO, 0, len(rows))
	for _, row := range rows {
		if _, ok := skip[row.ID]; ok {
			continue
		}
		out = append(out, toOrderDTO(row))
	}
	return out, nil
}

// RetryRelease re-issues the idempotent release for an order that already
// left the approved states.
func (s *service) RetryRelease(ctx context.Context, orderID int64) (*clients.StockOperationResult, error) {
	order, err := s.load(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !releasesReservation(order.Status) {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order still holds its reservation").
			WithReason(ReasonReleaseNotAllowed).
			WithDetail("status", string(order.Status))
	}
	result, err := s.inventory.ReleaseStock(ctx, order.ID)
	if err != nil {
		return nil, withStep(err, StepReleaseReservation)
	}
	return result, nil
}

func (s *service) load(ctx context.Context, id int64) (*models.Order, error) {
	if id <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	order, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if dbpkg.IsNotFound(err) {
			return nil, orderNotFound().WithDetail("order_id", id)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return order, nil
}

func (s *service) ensureAvailable(ctx context.Context, items []CreateOrderItemInput) error {
	lines := make([]clients.StockLine, 0, len(items))
	for _, item := range items {
		lines = append(lines, clients.StockLine{ItemCode: item.ItemCode, Quantity: item.Quantity})
	}
	result, err := s.inventory.CheckAvailability(ctx, lines)
	if err != nil {
		return withStep(err, "check_availability")
	}
	if result.Available {
		return nil
	}
	unavailable := make([]clients.AvailabilityLine, 0, len(result.Lines))
	for _, line := range result.Lines {
		if !line.Available {
			unavailable = append(unavailable, line)
		}
	}
	return pkgerrors.New(pkgerrors.CodeInsufficientStock, "some items are not available").
		WithReason(ReasonItemsUnavailable).
		WithDetail("lines", unavailable)
}

func (s *service) buildOrder(input CreateOrderInput, priority enums.OrderPriority, now time.Time) *models.Order {
	orderID := s.ids.NextID()
	order := &models.Order{
		ID:              orderID,
		RestaurantID:    input.RestaurantID,
		RestaurantName:  input.RestaurantName,
		Status:          enums.OrderStatusPending,
		Priority:        priority,
		Notes:           input.Notes,
		ContactPerson:   input.ContactPerson,
		ContactPhone:    input.ContactPhone,
		DeliveryAddress: input.DeliveryAddress,
		RequestedDate:   input.RequestedDate.UTC(),
		CreatedBy:       optionalString(input.CreatedBy),
		Items:           make([]models.OrderItem, 0, len(input.Items)),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	for _, item := range input.Items {
		order.TotalItems += item.Quantity
		order.Items = append(order.Items, models.OrderItem{
			ID:                s.ids.NextID(),
			OrderID:           orderID,
			ItemCode:          item.ItemCode,
			ItemName:          item.ItemName,
			ItemCategory:      item.ItemCategory,
			RequestedQuantity: item.Quantity,
			Unit:              item.Unit,
			UnitPrice:         item.UnitPrice,
			TotalPrice:        item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))),
			Notes:             item.Notes,
			CreatedAt:         now,
		})
	}
	order.History = []models.OrderStatusHistory{{
		ID:        s.ids.NextID(),
		OrderID:   orderID,
		NewStatus: enums.OrderStatusPending,
		ChangedBy: optionalString(input.CreatedBy),
		ChangedAt: now,
	}}
	return order
}

func validateCreateOrder(input *CreateOrderInput) (enums.OrderPriority, error) {
	input.RestaurantID = strings.TrimSpace(input.RestaurantID)
	input.RestaurantName = strings.TrimSpace(input.RestaurantName)
	if input.RestaurantID == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "restaurant_id is required")
	}
	if input.RestaurantName == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "restaurant_name is required")
	}
	if input.RequestedDate.IsZero() {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "requested_date is required")
	}
	priority, err := enums.ParseOrderPriority(input.Priority)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid priority")
	}
	if len(input.Items) == 0 {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "at least one item is required")
	}

	seen := make(map[string]struct{}, len(input.Items))
	for i := range input.Items {
		item := &input.Items[i]
		item.ItemCode = strings.TrimSpace(item.ItemCode)
		item.ItemName = strings.TrimSpace(item.ItemName)
		item.Unit = strings.TrimSpace(item.Unit)
		item.ItemCategory = strings.TrimSpace(item.ItemCategory)

		var field string
		switch {
		case item.ItemCode == "":
			field = "item_code"
		case item.ItemName == "":
			field = "item_name"
		case item.Unit == "":
			field = "unit"
		case item.Quantity <= 0:
			field = "quantity"
		case item.UnitPrice.IsNegative():
			field = "unit_price"
		}
		if field != "" {
			return "", pkgerrors.New(pkgerrors.CodeValidation, "invalid order item").
				WithDetail("line", i).
				WithDetail("field", field)
		}
		if _, dup := seen[item.ItemCode]; dup {
			return "", pkgerrors.New(pkgerrors.CodeValidation, "duplicate item code in order").
				WithDetail("line", i).
				WithDetail("item_code", item.ItemCode)
		}
		seen[item.ItemCode] = struct{}{}
	}
	return priority, nil
}

// approvalLines resolves approved quantities per item. Items without an
// explicit value are approved in full.
func approvalLines(items []models.OrderItem, approvedByCode map[string]int) (map[int64]int, []clients.StockLine, error) {
	known := make(map[string]struct{}, len(items))
	approved := make(map[int64]int, len(items))
	lines := make([]clients.StockLine, 0, len(items))
	for _, item := range items {
		known[item.ItemCode] = struct{}{}
		qty := item.RequestedQuantity
		if v, ok := approvedByCode[item.ItemCode]; ok {
			qty = v
		}
		if qty < 0 || qty > item.RequestedQuantity {
			return nil, nil, pkgerrors.New(pkgerrors.CodeValidation, "approved quantity must be between 0 and the requested quantity").
				WithDetail("item_code", item.ItemCode).
				WithDetail("requested_quantity", item.RequestedQuantity).
				WithDetail("approved_quantity", qty)
		}
		approved[item.ID] = qty
		if qty > 0 {
			lines = append(lines, clients.StockLine{ItemCode: item.ItemCode, Quantity: qty})
		}
	}
	for code := range approvedByCode {
		if _, ok := known[code]; !ok {
			return nil, nil, pkgerrors.New(pkgerrors.CodeValidation, "approved quantity for an item not in the order").
				WithDetail("item_code", code)
		}
	}
	if len(lines) == 0 {
		return nil, nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one item must be approved")
	}
	return approved, lines, nil
}

func statusDateColumn(status enums.OrderStatus) string {
	switch status {
	case enums.OrderStatusApproved:
		return "approved_date"
	case enums.OrderStatusProcessing:
		return "processing_date"
	case enums.OrderStatusShipped:
		return "shipped_date"
	case enums.OrderStatusDelivered:
		return "delivered_date"
	case enums.OrderStatusRejected:
		return "rejected_date"
	case enums.OrderStatusCancelled:
		return "cancelled_date"
	}
	return ""
}

// withStep tags a downstream failure with the workflow step. Untyped errors
// are treated as dependency failures.
func withStep(err error, step string) *pkgerrors.Error {
	if typed := pkgerrors.As(err); typed != nil {
		return typed.WithStep(step)
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, step).WithStep(step)
}

func orderNotFound() *pkgerrors.Error {
	return pkgerrors.New(pkgerrors.CodeNotFound, "order not found").
		WithReason(clients.ReasonOrderNotFound)
}

func optionalString(value string) *string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return &value
}

func actor(user string) *outbox.ActorRef {
	return &outbox.ActorRef{Service: serviceName, User: user}
}
