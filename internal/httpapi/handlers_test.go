package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/ordertask/ordertask/internal/engine"
	"github.com/ordertask/ordertask/internal/platform/config"
	"github.com/ordertask/ordertask/internal/platform/health"
	"github.com/ordertask/ordertask/internal/platform/logger"
	"github.com/ordertask/ordertask/internal/platform/metrics"
)

const testJWTSecret = "test-secret"

func newTestServer(t *testing.T) *Server {
	t.Helper()

	log := logger.New(config.LoggerConfig{Level: "error", Format: "json", OutputPath: "stdout"})
	reg := prometheus.NewRegistry()
	m := metrics.NewMetrics("ordertask_test", reg)
	h := health.NewHandler("ordertaskd-test", "test")

	executor := engine.NewTaskExecutor(config.EngineConfig{
		MaxInFlight: 100, Workers: 4, JanitorPeriod: time.Hour, JanitorIdleFor: time.Hour,
	}, log, reg, nil)
	executor.PostConstruct()
	t.Cleanup(executor.Stop)

	httpCfg := config.HTTPConfig{Port: 0, ReadTimeout: time.Second, WriteTimeout: time.Second, IdleTimeout: time.Second}
	authCfg := config.AuthConfig{JWTSecret: testJWTSecret}

	return NewServer(httpCfg, authCfg, executor, log, m, h, nil)
}

func bearerToken(t *testing.T) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": "tester",
		"exp":     time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(testJWTSecret))
	require.NoError(t, err)
	return "Bearer " + signed
}

func TestHandleSubmit_SynchronousResultReturnedInline(t *testing.T) {
	s := newTestServer(t)

	body, _ := json.Marshal(submitRequest{Payload: json.RawMessage(`{"x":1}`)})
	req := httptest.NewRequest(http.MethodPost, "/v1/tasks/order-1", bytes.NewReader(body))
	req.Header.Set("Authorization", bearerToken(t))
	rec := httptest.NewRecorder()

	s.httpServer.Handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded))
	require.Equal(t, true, decoded["success"])
}

func TestHandleSubmit_RejectsWithoutBearerToken(t *testing.T) {
	s := newTestServer(t)

	body, _ := json.Marshal(submitRequest{Payload: json.RawMessage(`{}`)})
	req := httptest.NewRequest(http.MethodPost, "/v1/tasks/order-2", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	s.httpServer.Handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHandleSubmit_AsyncCompletesAfterDelay(t *testing.T) {
	s := newTestServer(t)

	body, _ := json.Marshal(submitRequest{Payload: json.RawMessage(`{}`), Async: true, DelayMS: 5})
	req := httptest.NewRequest(http.MethodPost, "/v1/tasks/order-3", bytes.NewReader(body))
	req.Header.Set("Authorization", bearerToken(t))
	rec := httptest.NewRecorder()

	s.httpServer.Handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
}

func TestLivenessEndpoint_SkipsAuth(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()

	s.httpServer.Handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
}
