// Package sysstats periodically samples host CPU and memory usage and
// feeds them into the ambient metrics registry.
package sysstats

import (
	"context"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/ordertask/ordertask/internal/platform/logger"
	"github.com/ordertask/ordertask/internal/platform/metrics"
)

// Sampler periodically samples host resource usage into m.
type Sampler struct {
	m        *metrics.Metrics
	log      logger.Logger
	interval time.Duration
	stopCh   chan struct{}
}

// NewSampler builds a Sampler that reports into m every interval.
func NewSampler(m *metrics.Metrics, log logger.Logger, interval time.Duration) *Sampler {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &Sampler{m: m, log: log, interval: interval, stopCh: make(chan struct{})}
}

// Start runs the sampling loop until ctx is canceled or Stop is called.
func (s *Sampler) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	go func() {
		defer ticker.Stop()
		s.sample(ctx)
		for {
			select {
			case <-ticker.C:
				s.sample(ctx)
			case <-s.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop halts the sampling loop.
func (s *Sampler) Stop() {
	close(s.stopCh)
}

func (s *Sampler) sample(ctx context.Context) {
	percents, err := cpu.PercentWithContext(ctx, 0, false)
	if err != nil {
		s.log.Warn("sysstats: cpu sample failed", "error", err)
	} else if len(percents) > 0 {
		s.m.SystemCPUUsage.Set(percents[0])
	}

	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		s.log.Warn("sysstats: memory sample failed", "error", err)
	} else {
		s.m.SystemMemoryUsage.Set(vm.UsedPercent)
	}

	s.m.SystemGoroutines.Set(float64(runtime.NumGoroutine()))
}
