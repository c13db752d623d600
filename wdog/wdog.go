// Package wdog drives the watchdog timer. The guard is configured once,
// optionally locked, and then refreshed periodically by the application. A
// missed or early refresh makes the hardware reset the system on its own;
// nothing in this package can intercept that, the Refresh error is advisory
// diagnostics for the cycle before the reset takes effect.
package wdog

import (
	"errors"

	"github.com/jangala-dev/tinygo-s32k/mmio"
	"github.com/jangala-dev/tinygo-s32k/periph"
	"github.com/jangala-dev/tinygo-s32k/poll"
)

var (
	ErrAlreadyLocked      = errors.New("wdog: configuration locked until next reset")
	ErrNotConfigured      = errors.New("wdog: guard not configured")
	ErrReconfigDisallowed = errors.New("wdog: hardware disallows reconfiguration")
	ErrUnlockFailed       = errors.New("wdog: unlock sequence not acknowledged")
	ErrTimeout            = errors.New("wdog: configuration not acknowledged within poll budget")
	ErrWindowViolation    = errors.New("wdog: refresh outside service window")
	ErrTimeoutTooLarge    = errors.New("wdog: timeout exceeds counter range")
	ErrWindowTooLarge     = errors.New("wdog: window exceeds timeout")
)

// CS register fields.
const (
	csSTOP    = 1 << 0
	csWAIT    = 1 << 1
	csDBG     = 1 << 2
	csUPDATE  = 1 << 5
	csINT     = 1 << 6
	csEN      = 1 << 7
	csCLKPos  = 8
	csRCS     = 1 << 10
	csULK     = 1 << 11
	csPRES    = 1 << 12
	csCMD32EN = 1 << 13
	csFLG     = 1 << 14
	csWIN     = 1 << 15

	clkLPO = 0b01 // 128 kHz low power oscillator
)

// CNT write keys.
const (
	unlockKey  = 0xD928C520
	refreshKey = 0xB480A602
)

// The counter runs at 128 kHz off the LPO, divided by 256 when the
// prescaler is on.
const (
	ticksPerMilli          = 128 // no prescaler
	millisPerPrescaledTick = 2   // with /256 prescaler: 500 Hz
	maxCount               = 0xFFFF
)

// Config holds the watchdog settings. All times are in milliseconds of LPO
// time.
type Config struct {
	// TimeoutMillis is the interval after which an unserviced watchdog
	// forces a reset. The prescaler is chosen automatically; the maximum
	// representable timeout is about 131 seconds.
	TimeoutMillis uint32

	// WindowMillis, when non-zero, is the earliest point in the interval a
	// refresh is considered valid. Refreshing earlier resets the system.
	WindowMillis uint32

	// Interrupt makes a timeout raise an interrupt 128 bus clocks before
	// the reset, giving an ISR a moment for post-mortem work.
	Interrupt bool

	// DebugEnable, WaitEnable and StopEnable keep the watchdog counting in
	// the corresponding chip modes.
	DebugEnable bool
	WaitEnable  bool
	StopEnable  bool

	// PollBudget bounds the unlock and reconfiguration waits.
	// Zero means poll.DefaultBudget.
	PollBudget int
}

func (c Config) ticks() (timeout, window uint32, prescale bool, err error) {
	// Range-check in milliseconds before any tick conversion; the
	// multiplications below would wrap for intervals past the counter
	// range and silently arm a near-zero timeout.
	if c.TimeoutMillis > maxCount*millisPerPrescaledTick {
		return 0, 0, false, ErrTimeoutTooLarge
	}
	if c.WindowMillis > c.TimeoutMillis {
		return 0, 0, false, ErrWindowTooLarge
	}
	if c.TimeoutMillis*ticksPerMilli <= maxCount {
		return c.TimeoutMillis * ticksPerMilli, c.WindowMillis * ticksPerMilli, false, nil
	}
	return c.TimeoutMillis / millisPerPrescaledTick, c.WindowMillis / millisPerPrescaledTick, true, nil
}

// Guard owns the WDOG block.
type Guard struct {
	block *periph.WDOG

	configured bool
	locked     bool
	window     bool
	budget     int
}

// New builds the guard from its register block.
func New(block *periph.WDOG) *Guard {
	return &Guard{block: block, budget: poll.DefaultBudget}
}

// Init unlocks the watchdog and applies the configuration. It can be called
// again to reconfigure until Lock conceals the registers; after Lock it
// fails with ErrAlreadyLocked. The unlock handshake and the wait for the
// new configuration to latch are both bounded.
func (g *Guard) Init(cfg Config) error {
	if g.locked {
		return ErrAlreadyLocked
	}
	timeout, window, prescale, err := cfg.ticks()
	if err != nil {
		return err
	}
	if cfg.PollBudget != 0 {
		g.budget = cfg.PollBudget
	}

	// The whole unlock-and-reconfigure sequence has to finish within the
	// 128-cycle configuration window, so interrupts stay masked for it.
	state := mmio.DisableInterrupts()
	defer mmio.RestoreInterrupts(state)

	if err := g.unlock(); err != nil {
		return err
	}

	g.block.TOVAL.Set(timeout)
	g.block.WIN.Set(window)

	cs := uint32(csCMD32EN | csEN | clkLPO<<csCLKPos | csUPDATE)
	if cfg.WindowMillis != 0 {
		cs |= csWIN
	}
	if prescale {
		cs |= csPRES
	}
	if cfg.Interrupt {
		cs |= csINT
	}
	if cfg.DebugEnable {
		cs |= csDBG
	}
	if cfg.WaitEnable {
		cs |= csWAIT
	}
	if cfg.StopEnable {
		cs |= csSTOP
	}
	g.block.CS.Set(cs)

	// Wait for the new configuration to take effect.
	if !poll.Until(g.budget, func() bool {
		return mmio.HasBits(g.block.CS, csRCS)
	}) {
		return ErrTimeout
	}

	g.configured = true
	g.window = cfg.WindowMillis != 0
	return nil
}

const unlockTries = 3

func (g *Guard) unlock() error {
	unlocked := func() bool { return mmio.HasBits(g.block.CS, csULK) }

	// A watchdog that is neither unlocked nor past its configuration
	// window cannot be touched until the next reset.
	if !unlocked() && !mmio.HasBits(g.block.CS, csRCS) {
		return ErrReconfigDisallowed
	}
	for try := 0; try < unlockTries; try++ {
		g.block.CNT.Set(unlockKey)
		if poll.Until(g.budget, unlocked) {
			return nil
		}
	}
	return ErrUnlockFailed
}

// Lock freezes the configuration until the next hardware reset: Init fails
// from here on and the UPDATE bit is withdrawn so the hardware refuses
// reconfiguration too.
func (g *Guard) Lock() {
	if !g.configured || g.locked {
		return
	}
	state := mmio.DisableInterrupts()
	defer mmio.RestoreInterrupts(state)
	if g.unlock() == nil {
		mmio.ClearBits(g.block.CS, csUPDATE)
	}
	g.locked = true
}

// IsLocked reports whether the configuration is locked.
func (g *Guard) IsLocked() bool { return g.locked }

// Refresh services the watchdog. In window mode a refresh before the window
// opens is reported as ErrWindowViolation and not written, since writing it
// would itself force a reset. A guard whose fault flag is already raised
// also reports ErrWindowViolation; at that point the hardware reset is
// already on its way and the error is best-effort diagnostics only.
func (g *Guard) Refresh() error {
	if !g.configured {
		return ErrNotConfigured
	}
	if mmio.HasBits(g.block.CS, csFLG) {
		return ErrWindowViolation
	}
	if g.window && g.block.CNT.Get() < g.block.WIN.Get() {
		return ErrWindowViolation
	}
	g.block.CNT.Set(refreshKey)
	return nil
}
