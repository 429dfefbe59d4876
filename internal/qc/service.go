package qc

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/warehouse-flow/internal/clients"
	dbpkg "github.com/angelmondragon/warehouse-flow/pkg/db"
	"github.com/angelmondragon/warehouse-flow/pkg/db/models"
	"github.com/angelmondragon/warehouse-flow/pkg/downstream"
	"github.com/angelmondragon/warehouse-flow/pkg/enums"
	pkgerrors "github.com/angelmondragon/warehouse-flow/pkg/errors"
	"github.com/angelmondragon/warehouse-flow/pkg/logger"
	"github.com/angelmondragon/warehouse-flow/pkg/outbox"
	"github.com/angelmondragon/warehouse-flow/pkg/outbox/payloads"
	"github.com/angelmondragon/warehouse-flow/pkg/pagination"
)

const (
	serviceName = "qc"

	StepLoadOrder     = "load_order"
	StepSendToQC      = "send_to_qc"
	StepRecordHandoff = "record_handoff"

	ReasonOrderNotApproved  = "ORDER_NOT_APPROVED"
	ReasonQCLogNotFound     = "QC_LOG_NOT_FOUND"
	ReasonInvalidStatus     = "INVALID_STATUS"
	ReasonAlreadyRecorded   = "QC_ALREADY_RECORDED"
	maxSentOrderIDsPerQuery = 500
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type idGenerator interface {
	NextID() int64
	NextCode() string
}

// OrdersClient reads orders from the order aggregate.
type OrdersClient interface {
	GetOrder(ctx context.Context, orderID int64) (*clients.Order, error)
}

// InventoryClient performs the hard stock decrement on hand-off.
type InventoryClient interface {
	SendToQC(ctx context.Context, orderID int64, lines []clients.StockLine) (*clients.StockOperationResult, error)
}

// Service is the QC hand-off log.
type Service interface {
	SendOrderToQC(ctx context.Context, input SendOrderInput) (*HandoffDTO, error)
	RecordQCResult(ctx context.Context, input RecordResultInput) (*QCLogDTO, error)
	ListQCLogs(ctx context.Context, params ListParams) (*pagination.Page[QCLogDTO], error)
	GetQCLog(ctx context.Context, id int64) (*QCLogDTO, error)
	ListSentOrderIDs(ctx context.Context, orderIDs []int64) ([]int64, error)
}

type service struct {
	repo      Repository
	tx        txRunner
	outbox    outboxPublisher
	ids       idGenerator
	orders    OrdersClient
	inventory InventoryClient
	logg      *logger.Logger
	now       func() time.Time
}

func NewService(repo Repository, tx txRunner, outbox outboxPublisher, ids idGenerator, orders OrdersClient, inventory InventoryClient, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("qc repository required")
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
	if orders == nil {
		return nil, fmt.Errorf("orders client required")
	}
	if inventory == nil {
		return nil, fmt.Errorf("inventory client required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &service{
		repo:      repo,
		tx:        tx,
		outbox:    outbox,
		ids:       ids,
		orders:    orders,
		inventory: inventory,
		logg:      logg,
		now:       time.Now,
	}, nil
}

// SendOrderToQC decrements stock for an approved order and opens one PENDING
// log per approved line. Re-running after a failed recording is safe: the
// inventory side reports the earlier decrement and recording resumes.
func (s *service) SendOrderToQC(ctx context.Context, input SendOrderInput) (*HandoffDTO, error) {
	if input.OrderID <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	ctx = s.logg.WithOrderID(ctx, input.OrderID)

	order, err := s.orders.GetOrder(ctx, input.OrderID)
	if err != nil {
		if downstream.IsRejectedWith(err, pkgerrors.CodeNotFound, "") {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found").
				WithReason(clients.ReasonOrderNotFound).
				WithDetail("order_id", input.OrderID)
		}
		return nil, withStep(err, StepLoadOrder)
	}
	if order.Status != string(enums.OrderStatusApproved) {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order is not approved").
			WithReason(ReasonOrderNotApproved).
			WithDetail("status", order.Status)
	}

	_, err = s.repo.FindHandoffByOrder(ctx, order.ID)
	switch {
	case err == nil:
		return nil, alreadySent(order.ID)
	case !dbpkg.IsNotFound(err):
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup qc hand-off")
	}

	approved := make([]clients.OrderLine, 0, len(order.Items))
	lines := make([]clients.StockLine, 0, len(order.Items))
	for _, item := range order.Items {
		if item.ApprovedQuantity <= 0 {
			continue
		}
		approved = append(approved, item)
		lines = append(lines, clients.StockLine{ItemCode: item.ItemCode, Quantity: item.ApprovedQuantity})
	}
	if len(lines) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order has no approved quantities").
			WithDetail("order_id", order.ID)
	}

	if _, err := s.inventory.SendToQC(ctx, order.ID, lines); err != nil {
		if !downstream.IsRejectedWith(err, pkgerrors.CodeConflict, clients.ReasonAlreadySentToQC) {
			return nil, withStep(err, StepSendToQC)
		}
		s.logg.Warn(ctx, "stock already sent to qc, resuming hand-off recording")
		if sent, ok := clients.SentLines(err); ok {
			approved = linesSentOut(order.Items, sent)
		}
	}

	handoff := s.buildHandoff(order, approved, input.SentBy)
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).CreateHandoff(ctx, handoff); err != nil {
			return err
		}
		logIDs := make([]int64, 0, len(handoff.Logs))
		for _, log := range handoff.Logs {
			logIDs = append(logIDs, log.ID)
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventQCHandoffCreated,
			AggregateType: enums.AggregateQCHandoff,
			AggregateID:   strconv.FormatInt(handoff.ID, 10),
			Actor:         actor(input.SentBy),
			OccurredAt:    handoff.CreatedAt,
			Data: payloads.QCHandoffCreatedEvent{
				HandoffID:   handoff.ID,
				OrderID:     handoff.OrderID,
				OrderNumber: handoff.OrderNumber,
				BatchNumber: handoff.BatchNumber,
				QCLogIDs:    logIDs,
			},
		})
	})
	if err != nil {
		if dbpkg.IsUniqueViolation(err, "order_id") {
			return nil, alreadySent(order.ID)
		}
		s.logg.Error(ctx, "record qc hand-off failed after stock was sent", err)
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record qc hand-off").
			WithStep(StepRecordHandoff).
			WithDetail("order_id", order.ID)
	}

	dto := toHandoffDTO(*handoff)
	return &dto, nil
}

// linesSentOut rebuilds the hand-off lines from an earlier send-out so the QC
// logs carry the quantities that actually left stock.
func linesSentOut(items []clients.OrderLine, sent []clients.StockLineResult) []clients.OrderLine {
	byCode := make(map[string]clients.OrderLine, len(items))
	for _, item := range items {
		byCode[item.ItemCode] = item
	}
	out := make([]clients.OrderLine, 0, len(sent))
	for _, line := range sent {
		item, ok := byCode[line.ItemCode]
		if !ok {
			item = clients.OrderLine{ItemCode: line.ItemCode, ItemName: line.ItemCode}
		}
		item.ApprovedQuantity = line.Quantity
		out = append(out, item)
	}
	return out
}

func (s *service) buildHandoff(order *clients.Order, lines []clients.OrderLine, sentBy string) *models.QCHandoff {
	now := s.now().UTC()
	handoff := &models.QCHandoff{
		ID:          s.ids.NextID(),
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		BatchNumber: fmt.Sprintf("QC-%s-%s", now.Format("20060102"), strings.ToUpper(s.ids.NextCode())),
		SentBy:      optionalString(sentBy),
		CreatedAt:   now,
		Logs:        make([]models.QCLog, 0, len(lines)),
	}
	for _, line := range lines {
		handoff.Logs = append(handoff.Logs, models.QCLog{
			ID:          s.ids.NextID(),
			HandoffID:   handoff.ID,
			OrderID:     order.ID,
			OrderNumber: order.OrderNumber,
			BatchNumber: handoff.BatchNumber,
			ItemCode:    line.ItemCode,
			ItemName:    line.ItemName,
			Quantity:    line.ApprovedQuantity,
			Unit:        line.Unit,
			QCStatus:    enums.QCStatusPending,
			CreatedAt:   now,
		})
	}
	return handoff
}

func (s *service) RecordQCResult(ctx context.Context, input RecordResultInput) (*QCLogDTO, error) {
	log, err := s.load(ctx, input.QCLogID)
	if err != nil {
		return nil, err
	}

	status, err := enums.ParseQCStatus(input.Status)
	if err != nil || !status.IsResult() {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "qc result must be PASSED or FAILED").
			WithReason(ReasonInvalidStatus).
			WithDetail("status", input.Status)
	}
	notes := optionalString(input.Notes)
	if status == enums.QCStatusFailed && notes == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "notes are required when a qc check fails").
			WithDetail("field", "notes")
	}
	if log.QCStatus != enums.QCStatusPending {
		return nil, alreadyRecorded(log)
	}

	now := s.now().UTC()
	processedBy := optionalString(input.ProcessedBy)
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		rows, err := s.repo.WithTx(tx).RecordResult(ctx, log.ID, status, notes, processedBy, now)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record qc result")
		}
		if rows == 0 {
			return alreadyRecorded(log)
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventQCResultRecorded,
			AggregateType: enums.AggregateQCLog,
			AggregateID:   strconv.FormatInt(log.ID, 10),
			Actor:         actor(input.ProcessedBy),
			OccurredAt:    now,
			Data: payloads.QCResultRecordedEvent{
				QCLogID:     log.ID,
				OrderID:     log.OrderID,
				OrderNumber: log.OrderNumber,
				BatchNumber: log.BatchNumber,
				ItemCode:    log.ItemCode,
				ItemName:    log.ItemName,
				Quantity:    log.Quantity,
				Unit:        log.Unit,
				Status:      status,
				Notes:       input.Notes,
				ProcessedBy: input.ProcessedBy,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	log.QCStatus = status
	log.QCNotes = notes
	log.ProcessedBy = processedBy
	log.ProcessedAt = &now
	dto := toQCLogDTO(*log)
	return &dto, nil
}

func (s *service) ListQCLogs(ctx context.Context, params ListParams) (*pagination.Page[QCLogDTO], error) {
	query := listLogsParams{Limit: params.Limit, ItemCode: strings.TrimSpace(params.ItemCode)}
	if strings.TrimSpace(params.Status) != "" {
		status, err := enums.ParseQCStatus(params.Status)
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

	rows, next, err := s.repo.ListLogs(ctx, query)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list qc logs")
	}
	page := &pagination.Page[QCLogDTO]{Items: make([]QCLogDTO, 0, len(rows))}
	for _, row := range rows {
		page.Items = append(page.Items, toQCLogDTO(row))
	}
	if next != nil {
		page.NextCursor = pagination.EncodeCursor(*next)
	}
	return page, nil
}

func (s *service) GetQCLog(ctx context.Context, id int64) (*QCLogDTO, error) {
	log, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	dto := toQCLogDTO(*log)
	return &dto, nil
}

// ListSentOrderIDs returns the subset of orderIDs that already have a hand-off.
func (s *service) ListSentOrderIDs(ctx context.Context, orderIDs []int64) ([]int64, error) {
	if len(orderIDs) > maxSentOrderIDsPerQuery {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "too many order ids").
			WithDetail("max", maxSentOrderIDsPerQuery)
	}
	ids, err := s.repo.FindSentOrderIDs(ctx, orderIDs)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list sent orders")
	}
	return ids, nil
}

func (s *service) load(ctx context.Context, id int64) (*models.QCLog, error) {
	if id <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "qc log id required")
	}
	log, err := s.repo.FindLog(ctx, id)
	if err != nil {
		if dbpkg.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "qc log not found").
				WithReason(ReasonQCLogNotFound).
				WithDetail("qc_log_id", id)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load qc log")
	}
	return log, nil
}

func withStep(err error, step string) *pkgerrors.Error {
	if typed := pkgerrors.As(err); typed != nil {
		return typed.WithStep(step)
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, step).WithStep(step)
}

func alreadySent(orderID int64) *pkgerrors.Error {
	return pkgerrors.New(pkgerrors.CodeConflict, "order already sent to qc").
		WithReason(clients.ReasonAlreadySentToQC).
		WithDetail("order_id", orderID)
}

func alreadyRecorded(log *models.QCLog) *pkgerrors.Error {
	return pkgerrors.New(pkgerrors.CodeStateConflict, "qc result already recorded").
		WithReason(ReasonAlreadyRecorded).
		WithDetail("qc_log_id", log.ID).
		WithDetail("qc_status", string(log.QCStatus))
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
