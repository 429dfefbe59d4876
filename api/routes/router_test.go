package routes

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/warehouse-flow/internal/clients"
	"github.com/angelmondragon/warehouse-flow/internal/inventory"
	"github.com/angelmondragon/warehouse-flow/internal/orders"
	pkgauth "github.com/angelmondragon/warehouse-flow/pkg/auth"
	"github.com/angelmondragon/warehouse-flow/pkg/config"
	"github.com/angelmondragon/warehouse-flow/pkg/logger"
	"github.com/angelmondragon/warehouse-flow/pkg/metrics"
)

type memoryRedis struct {
	mu   sync.Mutex
	data map[string]string
}

func newMemoryRedis() *memoryRedis {
	return &memoryRedis{data: map[string]string{}}
}

func (m *memoryRedis) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data[key], nil
}

func (m *memoryRedis) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.data[key]; ok {
		return false, nil
	}
	switch v := value.(type) {
	case string:
		m.data[key] = v
	case []byte:
		m.data[key] = string(v)
	}
	return true, nil
}

func (m *memoryRedis) IdempotencyKey(scope, id string) string {
	return "idem:" + scope + ":" + id
}

func (m *memoryRedis) Del(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

func (m *memoryRedis) Ping(context.Context) error { return nil }

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error { return nil }

// stubInventory only implements what the tests hit.
type stubInventory struct {
	inventory.Service
	reserved int
}

func (s *stubInventory) ReserveStock(ctx context.Context, orderID int64, lines []clients.StockLine) (*clients.StockOperationResult, error) {
	s.reserved++
	return &clients.StockOperationResult{OrderID: orderID, Operation: "reserve", Status: "applied"}, nil
}

func (s *stubInventory) ListLowStock(ctx context.Context) ([]inventory.ItemDTO, error) {
	return []inventory.ItemDTO{}, nil
}

type stubOrders struct {
	orders.Service
	created int
}

func (s *stubOrders) CreateOrder(ctx context.Context, input orders.CreateOrderInput) (*orders.OrderDTO, error) {
	s.created++
	return &orders.OrderDTO{ID: int64(s.created), OrderNumber: "ORD-20261016-0001"}, nil
}

func testConfig(kind string) *config.Config {
	cfg := &config.Config{}
	cfg.Service.Kind = kind
	cfg.JWT = config.JWTConfig{Secret: "s3cret", Issuer: "warehouse-flow", ExpirationMinutes: 5}
	cfg.Inventory.ExportSheetName = "Stock"
	return cfg
}

func bearer(t *testing.T, cfg *config.Config, service string) string {
	t.Helper()
	token, err := pkgauth.MintServiceToken(cfg.JWT, time.Now(), service)
	require.NoError(t, err)
	return "Bearer " + token
}

func TestNewRouterRejectsMissingRoleService(t *testing.T) {
	_, err := NewRouter(Params{Config: testConfig(config.ServiceKindQC), Logger: logger.Nop(), Redis: newMemoryRedis()})
	require.Error(t, err)

	_, err = NewRouter(Params{Config: testConfig("billing"), Logger: logger.Nop(), Redis: newMemoryRedis()})
	require.Error(t, err)
}

func TestInventoryInternalRoutesRequireAllowedCaller(t *testing.T) {
	cfg := testConfig(config.ServiceKindInventory)
	inv := &stubInventory{}
	handler, err := NewRouter(Params{Config: cfg, Logger: logger.Nop(), DB: stubPinger{}, Redis: newMemoryRedis(), Inventory: inv})
	require.NoError(t, err)

	body := `{"order_id":7,"lines":[{"item_code":"SKU-1","quantity":30}]}`

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/internal/inventory/reserve", strings.NewReader(body)))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/internal/inventory/reserve", strings.NewReader(body))
	req.Header.Set("Authorization", bearer(t, cfg, config.ServiceKindInventory))
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/api/v1/internal/inventory/reserve", strings.NewReader(body))
	req.Header.Set("Authorization", bearer(t, cfg, config.ServiceKindOrders))
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 1, inv.reserved)
}

func TestOrdersCreateRequiresIdempotencyKeyAndReplays(t *testing.T) {
	cfg := testConfig(config.ServiceKindOrders)
	svc := &stubOrders{}
	handler, err := NewRouter(Params{Config: cfg, Logger: logger.Nop(), Redis: newMemoryRedis(), Orders: svc})
	require.NoError(t, err)

	body := `{"restaurant_id":"R-1","restaurant_name":"Bistro","requested_date":"2026-10-20","items":[{"item_code":"A","item_name":"A","quantity":1,"unit":"kg","unit_price":"1"}]}`

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/orders", strings.NewReader(body)))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/orders", strings.NewReader(body))
		req.Header.Set("Idempotency-Key", "order-1")
		rec = httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}
	assert.Equal(t, 1, svc.created)
	assert.Equal(t, "true", rec.Header().Get("Idempotent-Replayed"))
}

func TestRoutesAreScopedToServiceKind(t *testing.T) {
	cfg := testConfig(config.ServiceKindInventory)
	handler, err := NewRouter(Params{Config: cfg, Logger: logger.Nop(), Redis: newMemoryRedis(), Inventory: &stubInventory{}})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/inventory/low-stock", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReadAuthFlagGuardsPublicReads(t *testing.T) {
	cfg := testConfig(config.ServiceKindInventory)
	cfg.FeatureFlags.RequireServiceAuthOnRead = true
	handler, err := NewRouter(Params{Config: cfg, Logger: logger.Nop(), Redis: newMemoryRedis(), Inventory: &stubInventory{}})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/inventory/low-stock", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/inventory/low-stock", nil)
	req.Header.Set("Authorization", bearer(t, cfg, config.ServiceKindQC))
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHealthAndMetricsEndpoints(t *testing.T) {
	reg := prometheus.NewRegistry()
	cfg := testConfig(config.ServiceKindInventory)
	handler, err := NewRouter(Params{
		Config:      cfg,
		Logger:      logger.Nop(),
		DB:          stubPinger{},
		Redis:       newMemoryRedis(),
		HTTPMetrics: metrics.NewHTTPMetrics(reg, cfg.Service.Kind),
		Gatherer:    reg,
		Inventory:   &stubInventory{},
	})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "/health/ready")
}
