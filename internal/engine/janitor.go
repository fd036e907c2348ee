package engine

import (
	"time"

	"github.com/robfig/cron/v3"

	"github.com/ordertask/ordertask/internal/platform/logger"
)

// janitor is a defensive second pass behind the registry's own opportunistic
// eviction on the idle transition (registry.go). That inline eviction runs
// on every sync and async idle transition under the registry lock, so on the
// current code paths this sweep normally finds nothing to reap; it removes
// any idle-and-empty queue still in the map on its next tick. It changes
// memory footprint only, never correctness.
type janitor struct {
	cron     *cron.Cron
	registry *QueueRegistry
	metrics  *engineMetrics
	log      logger.Logger
	period   time.Duration
	idleFor  time.Duration
}

func newJanitor(registry *QueueRegistry, metrics *engineMetrics, log logger.Logger, period, idleFor time.Duration) *janitor {
	return &janitor{
		cron:     cron.New(),
		registry: registry,
		metrics:  metrics,
		log:      log,
		period:   period,
		idleFor:  idleFor,
	}
}

func (j *janitor) start() {
	spec := "@every " + j.period.String()
	_, err := j.cron.AddFunc(spec, j.sweep)
	if err != nil {
		j.log.Error("janitor schedule invalid, sweep disabled", "period", j.period, "error", err)
		return
	}
	j.cron.Start()
}

func (j *janitor) stop() {
	j.cron.Stop()
}

func (j *janitor) sweep() {
	reaped := j.registry.sweepIdle(j.idleFor)
	if reaped > 0 {
		j.metrics.janitorReaped.Add(float64(reaped))
		j.log.Debug("janitor reaped idle identities", "count", reaped)
	}
}
