package wdog_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jangala-dev/tinygo-s32k/sim"
	"github.com/jangala-dev/tinygo-s32k/wdog"
)

func newGuard(t *testing.T) (*wdog.Guard, *sim.Board) {
	t.Helper()
	board := sim.NewBoard()
	block, ok := board.Peripherals().TakeWDOG()
	require.True(t, ok)
	return wdog.New(block), board
}

func TestInitAndRefresh(t *testing.T) {
	g, board := newGuard(t)

	require.NoError(t, g.Init(wdog.Config{TimeoutMillis: 100}))

	board.AdvanceWatchdog(50)
	require.NoError(t, g.Refresh())
	board.AdvanceWatchdog(50)
	require.NoError(t, g.Refresh())

	assert.Zero(t, board.WatchdogResets(), "serviced in time, no reset")
}

func TestTimeoutBites(t *testing.T) {
	g, board := newGuard(t)
	require.NoError(t, g.Init(wdog.Config{TimeoutMillis: 100}))

	board.AdvanceWatchdog(150)

	assert.Equal(t, 1, board.WatchdogResets())
	assert.True(t, board.WatchdogFault())
	// The reset is already on its way; Refresh only reports it.
	assert.ErrorIs(t, g.Refresh(), wdog.ErrWindowViolation)
}

func TestWindowedRefresh(t *testing.T) {
	g, board := newGuard(t)
	require.NoError(t, g.Init(wdog.Config{
		TimeoutMillis: 100,
		WindowMillis:  50,
	}))

	// Too early: the guard refuses to write the refresh, because the write
	// itself would reset the chip.
	board.AdvanceWatchdog(10)
	assert.ErrorIs(t, g.Refresh(), wdog.ErrWindowViolation)
	assert.Zero(t, board.WatchdogResets(), "early refresh never reached hardware")

	// Inside the window the refresh lands.
	board.AdvanceWatchdog(50)
	require.NoError(t, g.Refresh())
	assert.Zero(t, board.WatchdogResets())
}

func TestRefreshBeforeInit(t *testing.T) {
	g, _ := newGuard(t)
	assert.ErrorIs(t, g.Refresh(), wdog.ErrNotConfigured)
}

func TestReconfigureBeforeLock(t *testing.T) {
	g, board := newGuard(t)
	require.NoError(t, g.Init(wdog.Config{TimeoutMillis: 50}))
	require.NoError(t, g.Init(wdog.Config{TimeoutMillis: 200}))

	// The second configuration is the live one.
	board.AdvanceWatchdog(100)
	assert.Zero(t, board.WatchdogResets())
	board.AdvanceWatchdog(150)
	assert.Equal(t, 1, board.WatchdogResets())
}

func TestLockFreezesConfiguration(t *testing.T) {
	g, board := newGuard(t)
	require.NoError(t, g.Init(wdog.Config{TimeoutMillis: 100}))

	g.Lock()
	assert.True(t, g.IsLocked())
	assert.ErrorIs(t, g.Init(wdog.Config{TimeoutMillis: 200}), wdog.ErrAlreadyLocked)

	// Refreshing still works on a locked guard.
	board.AdvanceWatchdog(50)
	require.NoError(t, g.Refresh())
}

func TestLongTimeoutUsesPrescaler(t *testing.T) {
	g, board := newGuard(t)

	// 2 s does not fit in the counter at 128 kHz, so the /256 prescaler
	// kicks in.
	require.NoError(t, g.Init(wdog.Config{TimeoutMillis: 2000}))

	board.AdvanceWatchdog(1900)
	assert.Zero(t, board.WatchdogResets())
	board.AdvanceWatchdog(200)
	assert.Equal(t, 1, board.WatchdogResets())
}

func TestTimeoutBeyondCounterRange(t *testing.T) {
	g, _ := newGuard(t)
	err := g.Init(wdog.Config{TimeoutMillis: 200_000})
	assert.ErrorIs(t, err, wdog.ErrTimeoutTooLarge)
}

func TestHugeTimeoutDoesNotWrap(t *testing.T) {
	g, board := newGuard(t)

	// A timeout past 2^25 ms used to wrap the tick conversion and slip
	// under the range check, silently arming a near-zero watchdog.
	err := g.Init(wdog.Config{TimeoutMillis: 1<<25 + 1})
	require.ErrorIs(t, err, wdog.ErrTimeoutTooLarge)

	board.AdvanceWatchdog(10)
	assert.Zero(t, board.WatchdogResets(), "rejected configuration must not arm")
}

func TestWindowBeyondTimeoutRejected(t *testing.T) {
	g, _ := newGuard(t)
	err := g.Init(wdog.Config{TimeoutMillis: 100, WindowMillis: 1 << 26})
	assert.ErrorIs(t, err, wdog.ErrWindowTooLarge)
}
