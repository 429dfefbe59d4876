package cron

import (
	"context"
	"errors"
	"time"

	"github.com/angelmondragon/warehouse-flow/pkg/logger"
)

type lowStockFlagger interface {
	FlagLowStock(ctx context.Context, day time.Time) (int, error)
}

type LowStockJobParams struct {
	Logger    *logger.Logger
	Inventory lowStockFlagger
}

// NewLowStockJob emits one stock_low event per item and day for items whose
// available quantity is at or below their threshold.
func NewLowStockJob(params LowStockJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, errors.New("logger required")
	}
	if params.Inventory == nil {
		return nil, errors.New("inventory service required")
	}
	return &lowStockJob{logg: params.Logger, inventory: params.Inventory, now: time.Now}, nil
}

type lowStockJob struct {
	logg      *logger.Logger
	inventory lowStockFlagger
	now       func() time.Time
}

func (j *lowStockJob) Name() string { return "low-stock-scan" }

func (j *lowStockJob) Run(ctx context.Context) error {
	flagged, err := j.inventory.FlagLowStock(ctx, j.now().UTC())
	if err != nil {
		return err
	}
	if flagged > 0 {
		j.logg.Warn(j.logg.WithField(ctx, "items_flagged", flagged), "low stock items flagged")
	}
	return nil
}
