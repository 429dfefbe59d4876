package routes

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/warehouse-flow/api/controllers"
	inventorycontrollers "github.com/angelmondragon/warehouse-flow/api/controllers/inventory"
	ordercontrollers "github.com/angelmondragon/warehouse-flow/api/controllers/orders"
	qccontrollers "github.com/angelmondragon/warehouse-flow/api/controllers/qc"
	"github.com/angelmondragon/warehouse-flow/api/middleware"
	"github.com/angelmondragon/warehouse-flow/internal/inventory"
	"github.com/angelmondragon/warehouse-flow/internal/orders"
	"github.com/angelmondragon/warehouse-flow/internal/qc"
	"github.com/angelmondragon/warehouse-flow/pkg/config"
	"github.com/angelmondragon/warehouse-flow/pkg/logger"
	"github.com/angelmondragon/warehouse-flow/pkg/metrics"
	pkgredis "github.com/angelmondragon/warehouse-flow/pkg/redis"
)

type pinger interface {
	Ping(ctx context.Context) error
}

// RedisStore is what the router needs from redis: idempotency records and a
// readiness ping.
type RedisStore interface {
	pkgredis.IdempotencyStore
	pinger
}

// Params wires a single service role. Only the service matching
// Config.Service.Kind is required.
type Params struct {
	Config      *config.Config
	Logger      *logger.Logger
	DB          pinger
	Redis       RedisStore
	HTTPMetrics *metrics.HTTPMetrics
	Gatherer    prometheus.Gatherer
	Inventory   inventory.Service
	Orders      orders.Service
	QC          qc.Service
}

func NewRouter(p Params) (http.Handler, error) {
	if p.Config == nil {
		return nil, fmt.Errorf("config required")
	}
	if p.Redis == nil {
		return nil, fmt.Errorf("redis store required")
	}
	cfg := p.Config
	logg := p.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)
	if p.HTTPMetrics != nil {
		r.Use(middleware.Metrics(p.HTTPMetrics))
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg,
			controllers.Dependency{Name: "db", Pinger: p.DB},
			controllers.Dependency{Name: "redis", Pinger: p.Redis},
		))
	})
	if p.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(p.Gatherer, promhttp.HandlerOpts{}))
	}

	var mount func(r chi.Router)
	switch cfg.Service.Kind {
	case config.ServiceKindInventory:
		if p.Inventory == nil {
			return nil, fmt.Errorf("inventory service required")
		}
		mount = func(r chi.Router) { inventoryRoutes(r, cfg, logg, p.Inventory) }
	case config.ServiceKindOrders:
		if p.Orders == nil {
			return nil, fmt.Errorf("orders service required")
		}
		mount = func(r chi.Router) { orderRoutes(r, cfg, logg, p.Orders) }
	case config.ServiceKindQC:
		if p.QC == nil {
			return nil, fmt.Errorf("qc service required")
		}
		mount = func(r chi.Router) { qcRoutes(r, cfg, logg, p.QC) }
	default:
		return nil, fmt.Errorf("unknown service kind %q", cfg.Service.Kind)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Actor(logg))
		r.Use(middleware.Idempotency(p.Redis, logg))
		mount(r)
	})

	return r, nil
}

// reads guards public GET routes with a service token when the deployment
// asks for it.
func reads(r chi.Router, cfg *config.Config, logg *logger.Logger) chi.Router {
	if cfg.FeatureFlags.RequireServiceAuthOnRead {
		return r.With(middleware.ServiceAuth(cfg.JWT, logg))
	}
	return r
}

func inventoryRoutes(r chi.Router, cfg *config.Config, logg *logger.Logger, svc inventory.Service) {
	read := reads(r, cfg, logg)

	r.Post("/items", inventorycontrollers.CreateItem(svc, logg))
	read.Get("/items", inventorycontrollers.ListItems(svc, logg))
	read.Get("/items/{itemCode}", inventorycontrollers.GetItem(svc, logg))
	read.Get("/items/{itemCode}/stock", inventorycontrollers.GetStock(svc, logg))
	read.Get("/items/{itemCode}/movements", inventorycontrollers.ListMovements(svc, logg))
	r.Post("/items/{itemCode}/inbound", inventorycontrollers.Inbound(svc, logg))
	r.Post("/items/{itemCode}/outbound", inventorycontrollers.Outbound(svc, logg))
	read.Get("/inventory/export", inventorycontrollers.ExportStock(svc, cfg.Inventory.ExportSheetName, logg))
	read.Get("/inventory/low-stock", inventorycontrollers.ListLowStock(svc, logg))

	r.Route("/internal/inventory", func(r chi.Router) {
		r.Use(middleware.ServiceAuth(cfg.JWT, logg, config.ServiceKindOrders, config.ServiceKindQC))
		r.Post("/check-availability", inventorycontrollers.CheckAvailability(svc, logg))
		r.Post("/reserve", inventorycontrollers.Reserve(svc, logg))
		r.Post("/send-to-qc", inventorycontrollers.SendToQC(svc, logg))
		r.Post("/release", inventorycontrollers.Release(svc, logg))
		r.Get("/stock/{itemCode}", inventorycontrollers.GetStock(svc, logg))
	})
}

func orderRoutes(r chi.Router, cfg *config.Config, logg *logger.Logger, svc orders.Service) {
	read := reads(r, cfg, logg)

	r.Post("/orders", ordercontrollers.Create(svc, logg))
	read.Get("/orders", ordercontrollers.List(svc, logg))
	read.Get("/orders/approved", ordercontrollers.Approved(svc, logg))
	read.Get("/orders/{orderRef}", ordercontrollers.Get(svc, logg))
	r.Post("/orders/{orderID}/status", ordercontrollers.UpdateStatus(svc, logg))
	r.Post("/orders/{orderID}/release", ordercontrollers.Release(svc, logg))

	r.Route("/internal/orders", func(r chi.Router) {
		r.Use(middleware.ServiceAuth(cfg.JWT, logg, config.ServiceKindQC))
		r.Get("/{orderID}", ordercontrollers.InternalGet(svc, logg))
	})
}

func qcRoutes(r chi.Router, cfg *config.Config, logg *logger.Logger, svc qc.Service) {
	read := reads(r, cfg, logg)

	r.Post("/qc/send", qccontrollers.Send(svc, logg))
	read.Get("/qc", qccontrollers.List(svc, logg))
	read.Get("/qc/{logID}", qccontrollers.Get(svc, logg))
	r.Post("/qc/{logID}/result", qccontrollers.RecordResult(svc, logg))

	r.Route("/internal/qc", func(r chi.Router) {
		r.Use(middleware.ServiceAuth(cfg.JWT, logg, config.ServiceKindOrders))
		r.Post("/sent-orders", qccontrollers.SentOrders(svc, logg))
	})
}
