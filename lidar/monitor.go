package lidar

import (
	"context"
	"time"

	"github.com/edaniels/golog"
	"go.uber.org/atomic"
	goutils "go.viam.com/utils"
	"golang.org/x/time/rate"

	"github.com/eurobot-nav/navcore/utils"
)

const (
	scanRetryInterval = 100 * time.Millisecond
	failureLogEvery   = 5 * time.Second
)

// A Monitor scans continuously in the background and hands every rotation to publish.
// A failed scan publishes nil so readers fall back to "clear".
type Monitor struct {
	device  Device
	publish func(Measurements)
	logger  golog.Logger

	workers    *utils.StoppableWorkers
	scans      atomic.Int64
	failures   atomic.Int64
	failureLog rate.Sometimes
}

// NewMonitor returns a stopped monitor.
func NewMonitor(device Device, publish func(Measurements), logger golog.Logger) *Monitor {
	return &Monitor{
		device:     device,
		publish:    publish,
		logger:     logger,
		failureLog: rate.Sometimes{First: 1, Interval: failureLogEvery},
	}
}

// Start begins scanning until ctx is done or Stop is called.
func (m *Monitor) Start(ctx context.Context) {
	m.workers = utils.NewStoppableWorkers(ctx, m.run)
}

func (m *Monitor) run(ctx context.Context) {
	for ctx.Err() == nil {
		ms, err := m.device.Scan(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			n := m.failures.Inc()
			m.failureLog.Do(func() {
				m.logger.Warnw("lidar scan failed", "error", err, "failures", n)
			})
			m.publish(nil)
			if !goutils.SelectContextOrWait(ctx, scanRetryInterval) {
				return
			}
			continue
		}
		m.scans.Inc()
		m.publish(ms)
	}
}

// Scans is the number of successful rotations so far.
func (m *Monitor) Scans() int64 {
	return m.scans.Load()
}

// Failures is the number of failed scans so far.
func (m *Monitor) Failures() int64 {
	return m.failures.Load()
}

// Stop waits for the scan loop to exit and closes the device.
func (m *Monitor) Stop() error {
	if m.workers != nil {
		m.workers.Stop()
	}
	return m.device.Close()
}
