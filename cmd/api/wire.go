package main

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/warehouse-flow/api/middleware"
	"github.com/angelmondragon/warehouse-flow/api/routes"
	"github.com/angelmondragon/warehouse-flow/internal/clients"
	"github.com/angelmondragon/warehouse-flow/internal/inventory"
	"github.com/angelmondragon/warehouse-flow/internal/orders"
	"github.com/angelmondragon/warehouse-flow/internal/qc"
	"github.com/angelmondragon/warehouse-flow/pkg/auth"
	"github.com/angelmondragon/warehouse-flow/pkg/config"
	"github.com/angelmondragon/warehouse-flow/pkg/db"
	"github.com/angelmondragon/warehouse-flow/pkg/downstream"
	"github.com/angelmondragon/warehouse-flow/pkg/idgen"
	"github.com/angelmondragon/warehouse-flow/pkg/logger"
	"github.com/angelmondragon/warehouse-flow/pkg/metrics"
	"github.com/angelmondragon/warehouse-flow/pkg/outbox"
	"github.com/angelmondragon/warehouse-flow/pkg/redis"
)

// wireServices builds the service owned by cfg.Service.Kind plus the peer
// clients it calls.
func wireServices(cfg *config.Config, logg *logger.Logger, dbClient *db.Client, redisClient *redis.Client, reg prometheus.Registerer, params *routes.Params) error {
	ids, err := idgen.New(cfg.Service.NodeID)
	if err != nil {
		return fmt.Errorf("id generator: %w", err)
	}
	emitter := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)

	tokens := auth.NewTokenSource(cfg.JWT, cfg.Service.Kind)
	downstreamMetrics := metrics.NewDownstreamMetrics(reg)
	peer := func(target, baseURL string) (*downstream.Client, error) {
		return downstream.New(downstream.Options{
			Target:         target,
			BaseURL:        baseURL,
			Timeout:        cfg.Downstream.RequestTimeout,
			MaxRetries:     cfg.Downstream.MaxRetries,
			InitialBackoff: cfg.Downstream.InitialBackoff,
			MaxBackoff:     cfg.Downstream.MaxBackoff,
			Tokens:         tokens,
			Metrics:        downstreamMetrics,
			Logger:         logg,
			RequestID:      middleware.RequestIDFromContext,
		})
	}

	switch cfg.Service.Kind {
	case config.ServiceKindInventory:
		svc, err := inventory.NewService(
			inventory.NewRepository(dbClient.DB()),
			dbClient,
			emitter,
			ids,
			metrics.NewStockMetrics(reg),
			logg,
		)
		if err != nil {
			return fmt.Errorf("inventory service: %w", err)
		}
		params.Inventory = svc

	case config.ServiceKindOrders:
		invHTTP, err := peer(config.ServiceKindInventory, cfg.Downstream.InventoryURL)
		if err != nil {
			return err
		}
		qcHTTP, err := peer(config.ServiceKindQC, cfg.Downstream.QCURL)
		if err != nil {
			return err
		}
		numbers, err := orders.NewNumberGenerator(redisClient, cfg.Orders.NumberPrefix, cfg.Orders.NumberSequenceWidth)
		if err != nil {
			return fmt.Errorf("order numbers: %w", err)
		}
		svc, err := orders.NewService(
			orders.NewRepository(dbClient.DB()),
			dbClient,
			emitter,
			ids,
			numbers,
			clients.NewInventory(invHTTP),
			clients.NewQC(qcHTTP),
			orders.Options{CheckInventoryOnCreate: cfg.FeatureFlags.CheckInventoryOnCreate},
			logg,
		)
		if err != nil {
			return fmt.Errorf("orders service: %w", err)
		}
		params.Orders = svc

	case config.ServiceKindQC:
		ordersHTTP, err := peer(config.ServiceKindOrders, cfg.Downstream.OrdersURL)
		if err != nil {
			return err
		}
		invHTTP, err := peer(config.ServiceKindInventory, cfg.Downstream.InventoryURL)
		if err != nil {
			return err
		}
		svc, err := qc.NewService(
			qc.NewRepository(dbClient.DB()),
			dbClient,
			emitter,
			ids,
			clients.NewOrders(ordersHTTP),
			clients.NewInventory(invHTTP),
			logg,
		)
		if err != nil {
			return fmt.Errorf("qc service: %w", err)
		}
		params.QC = svc

	default:
		return fmt.Errorf("unknown service kind %q", cfg.Service.Kind)
	}
	return nil
}
