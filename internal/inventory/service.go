package inventory

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/warehouse-flow/internal/clients"
	dbpkg "github.com/angelmondragon/warehouse-flow/pkg/db"
	"github.com/angelmondragon/warehouse-flow/pkg/db/models"
	"github.com/angelmondragon/warehouse-flow/pkg/enums"
	pkgerrors "github.com/angelmondragon/warehouse-flow/pkg/errors"
	"github.com/angelmondragon/warehouse-flow/pkg/logger"
	"github.com/angelmondragon/warehouse-flow/pkg/metrics"
	"github.com/angelmondragon/warehouse-flow/pkg/outbox"
	"github.com/angelmondragon/warehouse-flow/pkg/outbox/payloads"
)

const (
	serviceName       = "inventory"
	lowStockScanLimit = 500
	maxMovementsLimit = 200
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
	EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) (bool, error)
}

type idGenerator interface {
	NextID() int64
}

// Service is the inventory ledger: the single authority on stock levels.
type Service interface {
	CreateItem(ctx context.Context, input CreateItemInput) (*ItemDTO, error)
	GetItem(ctx context.Context, itemCode string) (*ItemDTO, error)
	ListItems(ctx context.Context, filters ItemFilters) ([]ItemDTO, error)
	GetStock(ctx context.Context, itemCode string) (*clients.StockLevel, error)
	CheckAvailability(ctx context.Context, lines []clients.StockLine) (*clients.AvailabilityResult, error)
	ReserveStock(ctx context.Context, orderID int64, lines []clients.StockLine) (*clients.StockOperationResult, error)
	SendToQC(ctx context.Context, orderID int64, lines []clients.StockLine) (*clients.StockOperationResult, error)
	ReleaseStock(ctx context.Context, orderID int64) (*clients.StockOperationResult, error)
	Inbound(ctx context.Context, input AdjustStockInput) (*ItemDTO, error)
	Outbound(ctx context.Context, input AdjustStockInput) (*ItemDTO, error)
	ListMovements(ctx context.Context, itemCode string, limit int) ([]MovementDTO, error)
	ListLowStock(ctx context.Context) ([]ItemDTO, error)
	FlagLowStock(ctx context.Context, day time.Time) (int, error)
	ExportStockReport(ctx context.Context, w io.Writer, sheet string) error
}

type service struct {
	repo    Repository
	tx      txRunner
	outbox  outboxEmitter
	ids     idGenerator
	metrics *metrics.StockMetrics
	logg    *logger.Logger
	now     func() time.Time
}

// NewService wires the inventory ledger. metrics and logg may be nil.
func NewService(repo Repository, tx txRunner, emitter outboxEmitter, ids idGenerator, stockMetrics *metrics.StockMetrics, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("inventory repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if emitter == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if ids == nil {
		return nil, fmt.Errorf("id generator required")
	}
	return &service{
		repo:    repo,
		tx:      tx,
		outbox:  emitter,
		ids:     ids,
		metrics: stockMetrics,
		logg:    logg,
		now:     time.Now,
	}, nil
}

func (s *service) CreateItem(ctx context.Context, input CreateItemInput) (*ItemDTO, error) {
	input.ItemCode = strings.TrimSpace(input.ItemCode)
	input.Name = strings.TrimSpace(input.Name)
	input.Unit = strings.TrimSpace(input.Unit)
	input.Category = strings.TrimSpace(input.Category)
	if err := validateCreateItem(input); err != nil {
		return nil, err
	}

	existing, err := s.repo.FindItemByCode(ctx, input.ItemCode)
	switch {
	case err == nil && existing != nil:
		return nil, duplicateItem(input.ItemCode)
	case err != nil && !dbpkg.IsNotFound(err):
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup item")
	}

	now := s.now().UTC()
	item := models.Item{
		ID:            s.ids.NextID(),
		ItemCode:      input.ItemCode,
		Name:          input.Name,
		Category:      input.Category,
		Unit:          input.Unit,
		UnitPrice:     input.UnitPrice,
		Description:   input.Description,
		Location:      input.Location,
		MinStock:      input.MinStock,
		StockQuantity: input.StockQuantity,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.CreateItem(ctx, &item); err != nil {
			if dbpkg.IsUniqueViolation(err, "") {
				return duplicateItem(item.ItemCode)
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create item")
		}
		if item.StockQuantity > 0 {
			movement := s.movement(item, enums.StockMovementInbound, item.StockQuantity, nil, "opening balance", input.CreatedBy, now)
			if err := repo.CreateMovements(ctx, []models.StockMovement{movement}); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record opening movement")
			}
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventItemCreated,
			AggregateType: enums.AggregateItem,
			AggregateID:   item.ItemCode,
			Actor:         actor(input.CreatedBy),
			Data: payloads.ItemCreatedEvent{
				ItemID:        item.ID,
				ItemCode:      item.ItemCode,
				Name:          item.Name,
				Unit:          item.Unit,
				StockQuantity: item.StockQuantity,
			},
		})
	})
	s.observe("create_item", err, false)
	if err != nil {
		return nil, err
	}

	dto := toItemDTO(item)
	return &dto, nil
}

func (s *service) GetItem(ctx context.Context, itemCode string) (*ItemDTO, error) {
	item, err := s.loadItem(ctx, s.repo, itemCode)
	if err != nil {
		return nil, err
	}
	dto := toItemDTO(*item)
	return &dto, nil
}

func (s *service) ListItems(ctx context.Context, filters ItemFilters) ([]ItemDTO, error) {
	items, err := s.repo.ListItems(ctx, filters)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list items")
	}
	out := make([]ItemDTO, 0, len(items))
	for _, item := range items {
		out = append(out, toItemDTO(item))
	}
	return out, nil
}

func (s *service) GetStock(ctx context.Context, itemCode string) (*clients.StockLevel, error) {
	item, err := s.loadItem(ctx, s.repo, itemCode)
	if err != nil {
		return nil, err
	}
	level := toStockLevel(*item)
	return &level, nil
}

// CheckAvailability reports per-line availability. Unknown codes are flagged
// on their line rather than failing the request.
func (s *service) CheckAvailability(ctx context.Context, lines []clients.StockLine) (*clients.AvailabilityResult, error) {
	merged, err := normalizeLines(lines)
	if err != nil {
		return nil, err
	}

	codes := make([]string, 0, len(merged))
	for _, line := range merged {
		codes = append(codes, line.ItemCode)
	}
	items, err := s.repo.FindItemsByCodes(ctx, codes)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load items")
	}
	byCode := make(map[string]models.Item, len(items))
	for _, item := range items {
		byCode[item.ItemCode] = item
	}

	result := &clients.AvailabilityResult{Available: true, Lines: make([]clients.AvailabilityLine, 0, len(merged))}
	for _, line := range merged {
		entry := clients.AvailabilityLine{ItemCode: line.ItemCode, Requested: line.Quantity}
		item, ok := byCode[line.ItemCode]
		if !ok {
			entry.Error = clients.ReasonItemNotFound
		} else {
			entry.AvailableQuantity = item.AvailableQuantity()
			entry.Available = entry.AvailableQuantity >= line.Quantity
		}
		if !entry.Available {
			result.Available = false
		}
		result.Lines = append(result.Lines, entry)
	}
	return result, nil
}

// ReserveStock places an all-or-nothing soft hold. A repeat call for the same
// order replays the stored answer while the hold is active; a repeat with
// different lines is rejected. Once a release retired the hold, the next call
// reserves again under a new generation.
func (s *service) ReserveStock(ctx context.Context, orderID int64, lines []clients.StockLine) (*clients.StockOperationResult, error) {
	if orderID <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	merged, err := normalizeLines(lines)
	if err != nil {
		return nil, err
	}
	fp := fingerprint(merged)

	var result *clients.StockOperationResult
	replayed := false
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		existing, err := findOperation(ctx, repo, orderID, enums.StockOperationReserve)
		if err != nil {
			return err
		}
		generation := 0
		if existing != nil {
			retired, err := findOperationAt(ctx, repo, orderID, enums.StockOperationRelease, existing.Generation)
			if err != nil {
				return err
			}
			if retired == nil {
				replayed = true
				result, err = replay(existing, fp)
				return err
			}
			generation = existing.Generation + 1
		}

		now := s.now().UTC()
		applied, err := s.applyLines(ctx, repo, orderID, merged, now, repo.Reserve, enums.StockMovementReserve)
		if err != nil {
			return err
		}
		result = &clients.StockOperationResult{
			OrderID:   orderID,
			Operation: string(enums.StockOperationReserve),
			Status:    string(enums.StockOperationApplied),
			Lines:     applied,
			AppliedAt: now,
		}
		if err := s.recordOperation(ctx, repo, orderID, enums.StockOperationReserve, generation, fp, result); err != nil {
			return err
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventStockReserved,
			AggregateType: enums.AggregateOrder,
			AggregateID:   strconv.FormatInt(orderID, 10),
			Actor:         actor(""),
			Data:          payloads.StockReservedEvent{OrderID: orderID, Lines: toPayloadLines(applied)},
		})
	})
	if err != nil && dbpkg.IsUniqueViolation(err, "") {
		// A concurrent call for the same order won the insert; answer with its result.
		result, err = s.replayStored(ctx, orderID, enums.StockOperationReserve, fp)
		replayed = err == nil
	}
	s.observe("reserve", err, replayed)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// SendToQC hard-decrements stock for the order's lines. It is applied at most
// once per order; later calls fail with ALREADY_SENT_TO_QC.
func (s *service) SendToQC(ctx context.Context, orderID int64, lines []clients.StockLine) (*clients.StockOperationResult, error) {
	if orderID <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	merged, err := normalizeLines(lines)
	if err != nil {
		return nil, err
	}
	fp := fingerprint(merged)

	var result *clients.StockOperationResult
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		existing, err := findOperation(ctx, repo, orderID, enums.StockOperationSendToQC)
		if err != nil {
			return err
		}
		if existing != nil {
			return alreadySentToQC(orderID, existing)
		}

		now := s.now().UTC()
		applied, err := s.applyLines(ctx, repo, orderID, merged, now, repo.SendOut, enums.StockMovementQCOut)
		if err != nil {
			return err
		}
		result = &clients.StockOperationResult{
			OrderID:   orderID,
			Operation: string(enums.StockOperationSendToQC),
			Status:    string(enums.StockOperationApplied),
			Lines:     applied,
			AppliedAt: now,
		}
		if err := s.recordOperation(ctx, repo, orderID, enums.StockOperationSendToQC, 0, fp, result); err != nil {
			return err
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventStockSentToQC,
			AggregateType: enums.AggregateOrder,
			AggregateID:   strconv.FormatInt(orderID, 10),
			Actor:         actor(""),
			Data:          payloads.StockSentToQCEvent{OrderID: orderID, Lines: toPayloadLines(applied)},
		})
	})
	if err != nil && dbpkg.IsUniqueViolation(err, "") {
		previous, _ := findOperation(ctx, s.repo, orderID, enums.StockOperationSendToQC)
		err = alreadySentToQC(orderID, previous)
	}
	s.observe("send_to_qc", err, false)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ReleaseStock retires the latest reservation recorded for the order. Without
// a reservation it is a no-op; repeated calls replay the release of that
// generation.
func (s *service) ReleaseStock(ctx context.Context, orderID int64) (*clients.StockOperationResult, error) {
	if orderID <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}

	var result *clients.StockOperationResult
	replayed := false
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		now := s.now().UTC()
		reservation, err := findOperation(ctx, repo, orderID, enums.StockOperationReserve)
		if err != nil {
			return err
		}
		if reservation == nil {
			result = &clients.StockOperationResult{
				OrderID:   orderID,
				Operation: string(enums.StockOperationRelease),
				Status:    string(enums.StockOperationNoop),
				Lines:     []clients.StockLineResult{},
				AppliedAt: now,
			}
			return nil
		}

		existing, err := findOperationAt(ctx, repo, orderID, enums.StockOperationRelease, reservation.Generation)
		if err != nil {
			return err
		}
		if existing != nil {
			replayed = true
			result, err = replay(existing, existing.Fingerprint)
			return err
		}

		reserved, err := decodeResult(reservation)
		if err != nil {
			return err
		}
		lines := make([]clients.StockLine, 0, len(reserved.Lines))
		for _, line := range reserved.Lines {
			lines = append(lines, clients.StockLine{ItemCode: line.ItemCode, Quantity: line.Quantity})
		}
		applied, err := s.applyLines(ctx, repo, orderID, lines, now, repo.Release, enums.StockMovementRelease)
		if err != nil {
			return err
		}
		result = &clients.StockOperationResult{
			OrderID:   orderID,
			Operation: string(enums.StockOperationRelease),
			Status:    string(enums.StockOperationApplied),
			Lines:     applied,
			AppliedAt: now,
		}
		if err := s.recordOperation(ctx, repo, orderID, enums.StockOperationRelease, reservation.Generation, reservation.Fingerprint, result); err != nil {
			return err
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventStockReleased,
			AggregateType: enums.AggregateOrder,
			AggregateID:   strconv.FormatInt(orderID, 10),
			Actor:         actor(""),
			Data:          payloads.StockReleasedEvent{OrderID: orderID, Lines: toPayloadLines(applied)},
		})
	})
	if err != nil && dbpkg.IsUniqueViolation(err, "") {
		result, err = s.replayStored(ctx, orderID, enums.StockOperationRelease, "")
		replayed = err == nil
	}
	s.observe("release", err, replayed)
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *service) Inbound(ctx context.Context, input AdjustStockInput) (*ItemDTO, error) {
	return s.adjust(ctx, input, enums.StockMovementInbound)
}

// Outbound removes stock outside the order flow; only available stock can leave.
func (s *service) Outbound(ctx context.Context, input AdjustStockInput) (*ItemDTO, error) {
	return s.adjust(ctx, input, enums.StockMovementOutbound)
}

func (s *service) adjust(ctx context.Context, input AdjustStockInput, movementType enums.StockMovementType) (*ItemDTO, error) {
	input.ItemCode = strings.TrimSpace(input.ItemCode)
	if input.ItemCode == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "item_code is required")
	}
	if input.Quantity <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive").
			WithDetail("quantity", input.Quantity)
	}

	var updated *models.Item
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		now := s.now().UTC()

		apply := repo.AddStock
		if movementType == enums.StockMovementOutbound {
			apply = repo.RemoveStock
		}
		rows, err := apply(ctx, input.ItemCode, input.Quantity, now)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update stock")
		}
		if rows == 0 {
			return s.explainMiss(ctx, repo, input.ItemCode, input.Quantity)
		}

		item, err := s.loadItem(ctx, repo, input.ItemCode)
		if err != nil {
			return err
		}
		updated = item

		var reference *string
		if input.Reference != "" {
			reference = &input.Reference
		}
		movement := s.movement(*item, movementType, input.Quantity, nil, "", input.CreatedBy, now)
		movement.Reference = reference
		if err := repo.CreateMovements(ctx, []models.StockMovement{movement}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record movement")
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventStockAdjusted,
			AggregateType: enums.AggregateItem,
			AggregateID:   item.ItemCode,
			Actor:         actor(input.CreatedBy),
			Data: payloads.StockAdjustedEvent{
				ItemCode:         item.ItemCode,
				MovementType:     movementType,
				Quantity:         input.Quantity,
				StockQuantity:    item.StockQuantity,
				ReservedQuantity: item.ReservedQuantity,
				Reference:        input.Reference,
			},
		})
	})
	s.observe(string(movementType), err, false)
	if err != nil {
		return nil, err
	}
	dto := toItemDTO(*updated)
	return &dto, nil
}

func (s *service) ListMovements(ctx context.Context, itemCode string, limit int) ([]MovementDTO, error) {
	if _, err := s.loadItem(ctx, s.repo, itemCode); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > maxMovementsLimit {
		limit = maxMovementsLimit
	}
	rows, err := s.repo.ListMovements(ctx, strings.TrimSpace(itemCode), limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list movements")
	}
	out := make([]MovementDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, toMovementDTO(row))
	}
	return out, nil
}

func (s *service) ListLowStock(ctx context.Context) ([]ItemDTO, error) {
	items, err := s.repo.ListLowStock(ctx, lowStockScanLimit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list low stock")
	}
	out := make([]ItemDTO, 0, len(items))
	for _, item := range items {
		out = append(out, toItemDTO(item))
	}
	return out, nil
}

// FlagLowStock queues one stock_low event per low item per day and returns
// how many new events were written.
func (s *service) FlagLowStock(ctx context.Context, day time.Time) (int, error) {
	items, err := s.repo.ListLowStock(ctx, lowStockScanLimit)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list low stock")
	}
	if len(items) == 0 {
		return 0, nil
	}

	dayKey := day.UTC().Format("20060102")
	emitted := 0
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		for _, item := range items {
			written, err := s.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventStockLow,
				AggregateType: enums.AggregateItem,
				AggregateID:   item.ItemCode,
				DedupKey:      fmt.Sprintf("%s:%s:%s", enums.EventStockLow, item.ItemCode, dayKey),
				Actor:         actor(""),
				Data: payloads.StockLowEvent{
					ItemCode:          item.ItemCode,
					Name:              item.Name,
					Unit:              item.Unit,
					AvailableQuantity: item.AvailableQuantity(),
					MinStock:          item.MinStock,
					Day:               dayKey,
				},
			})
			if err != nil {
				return err
			}
			if written {
				emitted++
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return emitted, nil
}

type lineUpdater func(ctx context.Context, itemCode string, qty int, at time.Time) (int64, error)

// applyLines runs the conditional update for every line inside the caller's
// transaction. The first miss aborts the batch so the caller rolls back.
func (s *service) applyLines(ctx context.Context, repo Repository, orderID int64, lines []clients.StockLine, at time.Time, update lineUpdater, movementType enums.StockMovementType) ([]clients.StockLineResult, error) {
	results := make([]clients.StockLineResult, 0, len(lines))
	movements := make([]models.StockMovement, 0, len(lines))
	for _, line := range lines {
		rows, err := update(ctx, line.ItemCode, line.Quantity, at)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update stock").
				WithDetail("item_code", line.ItemCode)
		}
		if rows == 0 {
			return nil, s.explainMiss(ctx, repo, line.ItemCode, line.Quantity)
		}
		item, err := s.loadItem(ctx, repo, line.ItemCode)
		if err != nil {
			return nil, err
		}
		results = append(results, clients.StockLineResult{
			ItemCode:          item.ItemCode,
			Quantity:          line.Quantity,
			StockQuantity:     item.StockQuantity,
			ReservedQuantity:  item.ReservedQuantity,
			AvailableQuantity: item.AvailableQuantity(),
		})
		oid := orderID
		movements = append(movements, s.movement(*item, movementType, line.Quantity, &oid, "", "", at))
	}
	if err := repo.CreateMovements(ctx, movements); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record movements")
	}
	return results, nil
}

// explainMiss turns a zero-row conditional update into NOT_FOUND or INSUFFICIENT_STOCK.
func (s *service) explainMiss(ctx context.Context, repo Repository, itemCode string, requested int) error {
	item, err := s.loadItem(ctx, repo, itemCode)
	if err != nil {
		return err
	}
	return pkgerrors.New(pkgerrors.CodeInsufficientStock, fmt.Sprintf("insufficient stock for %s", itemCode)).
		WithReason(clients.ReasonInsufficientStock).
		WithDetail("item_code", itemCode).
		WithDetail("requested", requested).
		WithDetail("available_quantity", item.AvailableQuantity())
}

func (s *service) loadItem(ctx context.Context, repo Repository, itemCode string) (*models.Item, error) {
	itemCode = strings.TrimSpace(itemCode)
	if itemCode == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "item_code is required")
	}
	item, err := repo.FindItemByCode(ctx, itemCode)
	if err != nil {
		if dbpkg.IsNotFound(err) {
			return nil, itemNotFound(itemCode)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load item")
	}
	return item, nil
}

func (s *service) recordOperation(ctx context.Context, repo Repository, orderID int64, op enums.StockOperationType, generation int, fp string, result *clients.StockOperationResult) error {
	encoded, err := json.Marshal(result)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode operation result")
	}
	row := models.StockOperation{
		ID:          s.ids.NextID(),
		OrderID:     orderID,
		Operation:   op,
		Generation:  generation,
		Fingerprint: fp,
		Status:      enums.StockOperationStatus(result.Status),
		Result:      string(encoded),
		CreatedAt:   result.AppliedAt,
	}
	if err := repo.CreateOperation(ctx, &row); err != nil {
		if dbpkg.IsUniqueViolation(err, "") {
			return err
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record operation")
	}
	return nil
}

func (s *service) replayStored(ctx context.Context, orderID int64, op enums.StockOperationType, fp string) (*clients.StockOperationResult, error) {
	existing, err := findOperation(ctx, s.repo, orderID, op)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "concurrent stock operation").
			WithReason(clients.ReasonOperationMismatch)
	}
	if fp == "" {
		fp = existing.Fingerprint
	}
	return replay(existing, fp)
}

func (s *service) movement(item models.Item, movementType enums.StockMovementType, qty int, orderID *int64, reference, createdBy string, at time.Time) models.StockMovement {
	m := models.StockMovement{
		ID:            s.ids.NextID(),
		ItemCode:      item.ItemCode,
		MovementType:  movementType,
		Quantity:      qty,
		StockAfter:    item.StockQuantity,
		ReservedAfter: item.ReservedQuantity,
		OrderID:       orderID,
		CreatedAt:     at,
	}
	if reference != "" {
		m.Reference = &reference
	}
	if createdBy != "" {
		m.CreatedBy = &createdBy
	}
	return m
}

func (s *service) observe(operation string, err error, replayed bool) {
	switch {
	case err == nil && replayed:
		s.metrics.Inc(operation, "replayed")
	case err == nil:
		s.metrics.Inc(operation, "applied")
	case pkgerrors.IsRetryable(err):
		s.metrics.Inc(operation, "error")
	default:
		s.metrics.Inc(operation, "rejected")
	}
}

func findOperation(ctx context.Context, repo Repository, orderID int64, op enums.StockOperationType) (*models.StockOperation, error) {
	row, err := repo.FindOperation(ctx, orderID, op)
	if err != nil {
		if dbpkg.IsNotFound(err) {
			return nil, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load stock operation")
	}
	return row, nil
}

func findOperationAt(ctx context.Context, repo Repository, orderID int64, op enums.StockOperationType, generation int) (*models.StockOperation, error) {
	row, err := repo.FindOperationAt(ctx, orderID, op, generation)
	if err != nil {
		if dbpkg.IsNotFound(err) {
			return nil, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load stock operation")
	}
	return row, nil
}

func replay(row *models.StockOperation, fp string) (*clients.StockOperationResult, error) {
	if row.Fingerprint != fp {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "order already has a different stock operation").
			WithReason(clients.ReasonOperationMismatch).
			WithDetail("order_id", row.OrderID).
			WithDetail("operation", string(row.Operation))
	}
	result, err := decodeResult(row)
	if err != nil {
		return nil, err
	}
	result.Replayed = true
	return result, nil
}

func decodeResult(row *models.StockOperation) (*clients.StockOperationResult, error) {
	var result clients.StockOperationResult
	if err := json.Unmarshal([]byte(row.Result), &result); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "decode stock operation")
	}
	return &result, nil
}

// normalizeLines validates the batch, merges repeated item codes and sorts by
// code so every transaction touches rows in the same order.
func normalizeLines(lines []clients.StockLine) ([]clients.StockLine, error) {
	if len(lines) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one line is required")
	}
	totals := make(map[string]int, len(lines))
	for i, line := range lines {
		code := strings.TrimSpace(line.ItemCode)
		if code == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "item_code is required").
				WithDetail("line", i)
		}
		if line.Quantity <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive").
				WithDetail("line", i).
				WithDetail("item_code", code)
		}
		totals[code] += line.Quantity
	}
	merged := make([]clients.StockLine, 0, len(totals))
	for code, qty := range totals {
		merged = append(merged, clients.StockLine{ItemCode: code, Quantity: qty})
	}
	sort.Slice(merged, func(i, j int) bool { return merged[i].ItemCode < merged[j].ItemCode })
	return merged, nil
}

func fingerprint(lines []clients.StockLine) string {
	h := sha256.New()
	for _, line := range lines {
		fmt.Fprintf(h, "%s=%d;", line.ItemCode, line.Quantity)
	}
	return hex.EncodeToString(h.Sum(nil))
}

func toPayloadLines(lines []clients.StockLineResult) []payloads.StockLine {
	out := make([]payloads.StockLine, 0, len(lines))
	for _, line := range lines {
		out = append(out, payloads.StockLine{
			ItemCode:         line.ItemCode,
			Quantity:         line.Quantity,
			StockQuantity:    line.StockQuantity,
			ReservedQuantity: line.ReservedQuantity,
		})
	}
	return out
}

func validateCreateItem(input CreateItemInput) error {
	switch {
	case input.ItemCode == "":
		return pkgerrors.New(pkgerrors.CodeValidation, "item_code is required")
	case input.Name == "":
		return pkgerrors.New(pkgerrors.CodeValidation, "name is required")
	case input.Unit == "":
		return pkgerrors.New(pkgerrors.CodeValidation, "unit is required")
	case input.StockQuantity < 0:
		return pkgerrors.New(pkgerrors.CodeValidation, "stock_quantity must not be negative")
	case input.MinStock < 0:
		return pkgerrors.New(pkgerrors.CodeValidation, "min_stock must not be negative")
	case input.UnitPrice.IsNegative():
		return pkgerrors.New(pkgerrors.CodeValidation, "unit_price must not be negative")
	}
	return nil
}

func itemNotFound(itemCode string) error {
	return pkgerrors.New(pkgerrors.CodeNotFound, "item not found").
		WithReason(clients.ReasonItemNotFound).
		WithDetail("item_code", itemCode)
}

func duplicateItem(itemCode string) error {
	return pkgerrors.New(pkgerrors.CodeConflict, "item code already exists").
		WithReason("DUPLICATE_ITEM_CODE").
		WithDetail("item_code", itemCode)
}

// alreadySentToQC names the lines of the earlier send-out so the caller can
// record exactly what left the shelf.
func alreadySentToQC(orderID int64, previous *models.StockOperation) error {
	err := pkgerrors.New(pkgerrors.CodeConflict, "order already sent to qc").
		WithReason(clients.ReasonAlreadySentToQC).
		WithDetail("order_id", orderID)
	if previous != nil {
		if stored, decodeErr := decodeResult(previous); decodeErr == nil {
			err = err.WithDetail(clients.DetailSentLines, stored.Lines)
		}
	}
	return err
}

func actor(user string) *outbox.ActorRef {
	return &outbox.ActorRef{Service: serviceName, User: user}
}
