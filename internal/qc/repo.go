package qc

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/warehouse-flow/pkg/db/models"
	"github.com/angelmondragon/warehouse-flow/pkg/enums"
	"github.com/angelmondragon/warehouse-flow/pkg/pagination"
)

// Repository persists QC hand-offs and their inspection logs.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateHandoff(ctx context.Context, handoff *models.QCHandoff) error
	FindHandoffByOrder(ctx context.Context, orderID int64) (*models.QCHandoff, error)
	FindSentOrderIDs(ctx context.Context, orderIDs []int64) ([]int64, error)
	FindLog(ctx context.Context, id int64) (*models.QCLog, error)
	ListLogs(ctx context.Context, params listLogsParams) ([]models.QCLog, *pagination.Cursor, error)
	RecordResult(ctx context.Context, id int64, status enums.QCStatus, notes, processedBy *string, at time.Time) (int64, error)
}

type listLogsParams struct {
	Status   *enums.QCStatus
	ItemCode string
	Limit    int
	Cursor   *pagination.Cursor
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// CreateHandoff inserts the hand-off and its logs in one statement group.
func (r *repository) CreateHandoff(ctx context.Context, handoff *models.QCHandoff) error {
	return r.db.WithContext(ctx).Create(handoff).Error
}

func (r *repository) FindHandoffByOrder(ctx context.Context, orderID int64) (*models.QCHandoff, error) {
	var handoff models.QCHandoff
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		First(&handoff).Error
	if err != nil {
		return nil, err
	}
	return &handoff, nil
}

func (r *repository) FindSentOrderIDs(ctx context.Context, orderIDs []int64) ([]int64, error) {
	if len(orderIDs) == 0 {
		return []int64{}, nil
	}
	var ids []int64
	err := r.db.WithContext(ctx).
		Model(&models.QCHandoff{}).
		Where("order_id IN ?", orderIDs).
		Order("order_id ASC").
		Pluck("order_id", &ids).Error
	return ids, err
}

func (r *repository) FindLog(ctx context.Context, id int64) (*models.QCLog, error) {
	var log models.QCLog
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&log).Error
	if err != nil {
		return nil, err
	}
	return &log, nil
}

func (r *repository) ListLogs(ctx context.Context, params listLogsParams) ([]models.QCLog, *pagination.Cursor, error) {
	limit := pagination.LimitWithBuffer(params.Limit)
	normalized := pagination.NormalizeLimit(params.Limit)

	query := r.db.WithContext(ctx).Model(&models.QCLog{})
	if params.Status != nil {
		query = query.Where("qc_status = ?", *params.Status)
	}
	if params.ItemCode != "" {
		query = query.Where("item_code = ?", params.ItemCode)
	}
	if params.Cursor != nil {
		query = query.Where("created_at < ? OR (created_at = ? AND id < ?)",
			params.Cursor.CreatedAt, params.Cursor.CreatedAt, params.Cursor.ID)
	}

	var logs []models.QCLog
	if err := query.Order("created_at DESC, id DESC").Limit(limit).Find(&logs).Error; err != nil {
		return nil, nil, err
	}
	if len(logs) > normalized {
		logs = logs[:normalized]
		last := logs[len(logs)-1]
		return logs, &pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID}, nil
	}
	return logs, nil, nil
}

// RecordResult only touches logs that are still PENDING.
func (r *repository) RecordResult(ctx context.Context, id int64, status enums.QCStatus, notes, processedBy *string, at time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.QCLog{}).
		Where("id = ? AND qc_status = ?", id, enums.QCStatusPending).
		Updates(map[string]any{
			"qc_status":    status,
			"qc_notes":     notes,
			"processed_by": processedBy,
			"processed_at": at,
		})
	return res.RowsAffected, res.Error
}
