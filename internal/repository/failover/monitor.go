package failover

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Pinger is anything whose availability can be checked
type Pinger interface {
	Ping(ctx context.Context) error
}

// Monitor is a background worker that periodically checks the primary store
// and remembers whether the last check succeeded
type Monitor struct {
	primary      Pinger
	logger       zerolog.Logger
	interval     time.Duration
	checkTimeout time.Duration
	stopCh       chan struct{}
	doneCh       chan struct{}
	mu           sync.Mutex
	running      bool
	healthy      bool
}

// MonitorConfig holds configuration for the health monitor
type MonitorConfig struct {
	Interval     time.Duration // How often to check the primary
	CheckTimeout time.Duration // How long a single check may take
}

// DefaultMonitorConfig returns sensible defaults
func DefaultMonitorConfig() MonitorConfig {
	return MonitorConfig{
		Interval:     15 * time.Second,
		CheckTimeout: 2 * time.Second,
	}
}

// NewMonitor creates a new health monitor. The primary is considered
// unhealthy until the first check succeeds.
func NewMonitor(primary Pinger, logger zerolog.Logger, config MonitorConfig) *Monitor {
	defaults := DefaultMonitorConfig()
	if config.Interval <= 0 {
		config.Interval = defaults.Interval
	}
	if config.CheckTimeout <= 0 {
		config.CheckTimeout = defaults.CheckTimeout
	}

	return &Monitor{
		primary:      primary,
		logger:       logger.With().Str("component", "storage_monitor").Logger(),
		interval:     config.Interval,
		checkTimeout: config.CheckTimeout,
		stopCh:       make(chan struct{}),
		doneCh:       make(chan struct{}),
	}
}

// Start begins probing in the background
func (m *Monitor) Start(ctx context.Context) {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return
	}
	m.running = true
	m.mu.Unlock()

	m.logger.Info().
		Dur("interval", m.interval).
		Msg("Starting storage monitor")

	go m.run(ctx)
}

// Stop gracefully stops the monitor
func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.mu.Unlock()

	m.logger.Info().Msg("Stopping storage monitor")
	close(m.stopCh)
	<-m.doneCh
	m.logger.Info().Msg("Storage monitor stopped")
}

// run is the main loop for the monitor
func (m *Monitor) run(ctx context.Context) {
	defer close(m.doneCh)

	// Check immediately on startup
	m.Check(ctx)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.setRunning(false)
			return
		case <-m.stopCh:
			m.setRunning(false)
			return
		case <-ticker.C:
			m.Check(ctx)
		}
	}
}

func (m *Monitor) setRunning(running bool) {
	m.mu.Lock()
	m.running = running
	m.mu.Unlock()
}

// Check pings the primary once and records the outcome
func (m *Monitor) Check(ctx context.Context) bool {
	checkCtx, cancel := context.WithTimeout(ctx, m.checkTimeout)
	defer cancel()

	err := m.primary.Ping(checkCtx)
	m.setHealthy(err == nil, err)
	return err == nil
}

// ReportFailure marks the primary unhealthy until the next successful check
func (m *Monitor) ReportFailure(err error) {
	m.setHealthy(false, err)
}

func (m *Monitor) setHealthy(healthy bool, err error) {
	m.mu.Lock()
	changed := m.healthy != healthy
	m.healthy = healthy
	m.mu.Unlock()

	if !changed {
		return
	}
	if healthy {
		m.logger.Info().Msg("Primary store is healthy, routing to primary")
	} else {
		m.logger.Warn().Err(err).Msg("Primary store is unavailable, routing to fallback")
	}
}

// Healthy returns the outcome of the last check
func (m *Monitor) Healthy() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.healthy
}

// IsRunning returns whether the monitor is currently running
func (m *Monitor) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}
