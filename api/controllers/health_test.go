package controllers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/warehouse-flow/pkg/config"
	"github.com/angelmondragon/warehouse-flow/pkg/logger"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestHealthReadyReportsFailingDependency(t *testing.T) {
	cfg := &config.Config{}
	cfg.Service.Kind = config.ServiceKindOrders

	handler := HealthReady(cfg, logger.Nop(),
		Dependency{Name: "db", Pinger: pingFunc(func(context.Context) error { return nil })},
		Dependency{Name: "redis", Pinger: pingFunc(func(context.Context) error { return errors.New("connection refused") })},
	)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "redis")
	assert.NotContains(t, rec.Body.String(), `"db"`)
}

func TestHealthReadyAndLiveOK(t *testing.T) {
	cfg := &config.Config{}
	cfg.Service.Kind = config.ServiceKindQC

	rec := httptest.NewRecorder()
	HealthReady(cfg, logger.Nop(), Dependency{Name: "db", Pinger: pingFunc(func(context.Context) error { return nil })}).
		ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "qc", rec.Header().Get("X-Warehouse-Service"))

	rec = httptest.NewRecorder()
	HealthLive(cfg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	require.Equal(t, http.StatusOK, rec.Code)
}
