package inventory

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/warehouse-flow/pkg/db/models"
	"github.com/angelmondragon/warehouse-flow/pkg/enums"
)

// Repository defines persistence for the inventory ledger. Stock mutations
// are single conditional UPDATEs and report the number of rows they touched.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateItem(ctx context.Context, item *models.Item) error
	FindItemByCode(ctx context.Context, itemCode string) (*models.Item, error)
	FindItemsByCodes(ctx context.Context, itemCodes []string) ([]models.Item, error)
	ListItems(ctx context.Context, filters ItemFilters) ([]models.Item, error)
	ListLowStock(ctx context.Context, limit int) ([]models.Item, error)
	Reserve(ctx context.Context, itemCode string, qty int, at time.Time) (int64, error)
	Release(ctx context.Context, itemCode string, qty int, at time.Time) (int64, error)
	SendOut(ctx context.Context, itemCode string, qty int, at time.Time) (int64, error)
	AddStock(ctx context.Context, itemCode string, qty int, at time.Time) (int64, error)
	RemoveStock(ctx context.Context, itemCode string, qty int, at time.Time) (int64, error)
	CreateMovements(ctx context.Context, movements []models.StockMovement) error
	ListMovements(ctx context.Context, itemCode string, limit int) ([]models.StockMovement, error)
	FindOperation(ctx context.Context, orderID int64, op enums.StockOperationType) (*models.StockOperation, error)
	FindOperationAt(ctx context.Context, orderID int64, op enums.StockOperationType, generation int) (*models.StockOperation, error)
	CreateOperation(ctx context.Context, op *models.StockOperation) error
}

// ItemFilters narrows ListItems.
type ItemFilters struct {
	Category string
	Limit    int
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds an inventory repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreateItem(ctx context.Context, item *models.Item) error {
	return r.db.WithContext(ctx).Create(item).Error
}

func (r *repository) FindItemByCode(ctx context.Context, itemCode string) (*models.Item, error) {
	var item models.Item
	err := r.db.WithContext(ctx).
		Where("item_code = ?", itemCode).
		First(&item).Error
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *repository) FindItemsByCodes(ctx context.Context, itemCodes []string) ([]models.Item, error) {
	if len(itemCodes) == 0 {
		return nil, nil
	}
	var items []models.Item
	err := r.db.WithContext(ctx).
		Where("item_code IN ?", itemCodes).
		Find(&items).Error
	return items, err
}

func (r *repository) ListItems(ctx context.Context, filters ItemFilters) ([]models.Item, error) {
	query := r.db.WithContext(ctx).Order("item_code ASC")
	if filters.Category != "" {
		query = query.Where("category = ?", filters.Category)
	}
	if filters.Limit > 0 {
		query = query.Limit(filters.Limit)
	}
	var items []models.Item
	err := query.Find(&items).Error
	return items, err
}

func (r *repository) ListLowStock(ctx context.Context, limit int) ([]models.Item, error) {
	query := r.db.WithContext(ctx).
		Where("min_stock > 0").
		Where("stock_quantity - reserved_quantity <= min_stock").
		Order("item_code ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	var items []models.Item
	err := query.Find(&items).Error
	return items, err
}

func (r *repository) Reserve(ctx context.Context, itemCode string, qty int, at time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Item{}).
		Where("item_code = ?", itemCode).
		Where("stock_quantity - reserved_quantity >= ?", qty).
		Updates(map[string]any{
			"reserved_quantity": gorm.Expr("reserved_quantity + ?", qty),
			"updated_at":        at,
		})
	return res.RowsAffected, res.Error
}

// Release never drives reserved_quantity below zero.
func (r *repository) Release(ctx context.Context, itemCode string, qty int, at time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Item{}).
		Where("item_code = ?", itemCode).
		Updates(map[string]any{
			"reserved_quantity": gorm.Expr("CASE WHEN reserved_quantity >= ? THEN reserved_quantity - ? ELSE 0 END", qty, qty),
			"updated_at":        at,
		})
	return res.RowsAffected, res.Error
}

func (r *repository) SendOut(ctx context.Context, itemCode string, qty int, at time.Time) (int64, error) {
	return r.RemoveStock(ctx, itemCode, qty, at)
}

func (r *repository) AddStock(ctx context.Context, itemCode string, qty int, at time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Item{}).
		Where("item_code = ?", itemCode).
		Updates(map[string]any{
			"stock_quantity": gorm.Expr("stock_quantity + ?", qty),
			"updated_at":     at,
		})
	return res.RowsAffected, res.Error
}

func (r *repository) RemoveStock(ctx context.Context, itemCode string, qty int, at time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Item{}).
		Where("item_code = ?", itemCode).
		Where("stock_quantity - reserved_quantity >= ?", qty).
		Updates(map[string]any{
			"stock_quantity": gorm.Expr("stock_quantity - ?", qty),
			"updated_at":     at,
		})
	return res.RowsAffected, res.Error
}

func (r *repository) CreateMovements(ctx context.Context, movements []models.StockMovement) error {
	if len(movements) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&movements).Error
}

func (r *repository) ListMovements(ctx context.Context, itemCode string, limit int) ([]models.StockMovement, error) {
	var rows []models.StockMovement
	query := r.db.WithContext(ctx).
		Where("item_code = ?", itemCode).
		Order("created_at DESC").
		Order("id DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	err := query.Find(&rows).Error
	return rows, err
}

// FindOperation returns the latest generation of the operation for the order.
func (r *repository) FindOperation(ctx context.Context, orderID int64, op enums.StockOperationType) (*models.StockOperation, error) {
	var row models.StockOperation
	err := r.db.WithContext(ctx).
		Where("order_id = ? AND operation = ?", orderID, op).
		Order("generation DESC").
		First(&row).Error
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *repository) FindOperationAt(ctx context.Context, orderID int64, op enums.StockOperationType, generation int) (*models.StockOperation, error) {
	var row models.StockOperation
	err := r.db.WithContext(ctx).
		Where("order_id = ? AND operation = ? AND generation = ?", orderID, op, generation).
		First(&row).Error
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *repository) CreateOperation(ctx context.Context, op *models.StockOperation) error {
	return r.db.WithContext(ctx).Create(op).Error
}
