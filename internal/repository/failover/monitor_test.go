package failover

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dafibh/loanbook/loanbook-backend/internal/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func setupMonitor() (*Monitor, *testutil.MockLoanRepository) {
	primary := testutil.NewMockLoanRepository()

	config := MonitorConfig{
		Interval:     20 * time.Millisecond, // Fast interval for testing
		CheckTimeout: 10 * time.Millisecond,
	}

	return NewMonitor(primary, zerolog.Nop(), config), primary
}

func TestMonitor_NewMonitor(t *testing.T) {
	monitor, _ := setupMonitor()

	assert.NotNil(t, monitor)
	assert.Equal(t, 20*time.Millisecond, monitor.interval)
	assert.False(t, monitor.IsRunning())
	assert.False(t, monitor.Healthy())
}

func TestMonitor_DefaultsForInvalidConfig(t *testing.T) {
	monitor := NewMonitor(testutil.NewMockLoanRepository(), zerolog.Nop(), MonitorConfig{})

	assert.Equal(t, 15*time.Second, monitor.interval)
	assert.Equal(t, 2*time.Second, monitor.checkTimeout)
}

func TestMonitor_Check(t *testing.T) {
	monitor, primary := setupMonitor()

	assert.True(t, monitor.Check(context.Background()))
	assert.True(t, monitor.Healthy())

	primary.SetPingErr(errors.New("connection refused"))
	assert.False(t, monitor.Check(context.Background()))
	assert.False(t, monitor.Healthy())
}

func TestMonitor_ReportFailure(t *testing.T) {
	monitor, _ := setupMonitor()
	monitor.Check(context.Background())

	monitor.ReportFailure(errors.New("broken pipe"))
	assert.False(t, monitor.Healthy())

	// The next successful check restores the primary
	monitor.Check(context.Background())
	assert.True(t, monitor.Healthy())
}

func TestMonitor_StartStop(t *testing.T) {
	monitor, _ := setupMonitor()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	monitor.Start(ctx)
	monitor.Start(ctx) // idempotent
	time.Sleep(50 * time.Millisecond)

	assert.True(t, monitor.IsRunning())
	assert.True(t, monitor.Healthy())

	monitor.Stop()
	assert.False(t, monitor.IsRunning())
}

func TestMonitor_StopWithoutStart(t *testing.T) {
	monitor, _ := setupMonitor()

	// Stop without starting should not panic
	monitor.Stop()
	assert.False(t, monitor.IsRunning())
}

func TestMonitor_FlipsBothWays(t *testing.T) {
	monitor, primary := setupMonitor()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	monitor.Start(ctx)
	defer monitor.Stop()

	assert.Eventually(t, monitor.Healthy, time.Second, 5*time.Millisecond)

	primary.SetPingErr(errors.New("down"))
	assert.Eventually(t, func() bool { return !monitor.Healthy() }, time.Second, 5*time.Millisecond)

	primary.SetPingErr(nil)
	assert.Eventually(t, monitor.Healthy, time.Second, 5*time.Millisecond)
}

func TestMonitor_ContextCancellation(t *testing.T) {
	monitor, _ := setupMonitor()

	ctx, cancel := context.WithCancel(context.Background())

	monitor.Start(ctx)
	time.Sleep(30 * time.Millisecond)
	assert.True(t, monitor.IsRunning())

	cancel()
	time.Sleep(30 * time.Millisecond)

	assert.False(t, monitor.IsRunning())
}
