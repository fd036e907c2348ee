package engine

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ordertask/ordertask/internal/platform/config"
	"github.com/ordertask/ordertask/internal/platform/logger"
)

// newTestExecutor builds a TaskExecutor against a private metrics registry
// so parallel test functions never collide on Prometheus collector names,
// and a quiet logger so fault-injection scenarios don't flood test output.
func newTestExecutor(t *testing.T, maxInFlight, workers int) *TaskExecutor {
	t.Helper()

	log := logger.New(config.LoggerConfig{Level: "error", Format: "json", OutputPath: "stdout"})
	reg := prometheus.NewRegistry()

	cfg := config.EngineConfig{
		MaxInFlight:    maxInFlight,
		Workers:        workers,
		JanitorPeriod:  time.Hour,
		JanitorIdleFor: time.Hour,
	}

	e := NewTaskExecutor(cfg, log, reg, nil)
	e.PostConstruct()
	t.Cleanup(e.Stop)
	return e
}
