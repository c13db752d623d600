//go:build !s32k144

package sim

import "github.com/jangala-dev/tinygo-s32k/periph"

// Watchdog register fields and keys.
const (
	wdUPDATE = 1 << 5
	wdEN     = 1 << 7
	wdRCS    = 1 << 10
	wdULK    = 1 << 11
	wdPRES   = 1 << 12
	wdFLG    = 1 << 14
	wdWIN    = 1 << 15

	wdUnlockKey  = 0xD928C520
	wdRefreshKey = 0xB480A602
)

// The counter runs off the 128 kHz LPO, divided by 256 with the prescaler.
const (
	wdTicksPerMilli   = 128
	wdPrescaledMillis = 2
)

// watchdogSim models the watchdog: the unlock/refresh key protocol on the
// count register, the reconfiguration handshake, and the timeout and window
// rules. Time only moves through Advance, so tests control it exactly. A
// bite cannot reset the host process, so it is recorded as a reset count
// and the fault flag instead.
type watchdogSim struct {
	cs, cnt, toval, win reg

	counter    uint32
	configured bool
	resets     int
}

func newWatchdogSim() *watchdogSim {
	w := &watchdogSim{}

	// Out of reset the watchdog runs its default configuration and the
	// reconfiguration window is open.
	w.cs.v = wdRCS | wdUPDATE

	w.cnt.onGet = func(r *reg) { r.v = w.counter }
	w.cnt.onSet = func(r *reg, v uint32) {
		switch v {
		case wdUnlockKey:
			if w.configured && w.cs.v&wdUPDATE == 0 {
				return // locked until the next reset
			}
			w.cs.v |= wdULK
		case wdRefreshKey:
			if w.cs.v&wdWIN != 0 && w.counter < w.win.v {
				w.bite()
				return
			}
			w.counter = 0
		}
	}

	w.cs.onSet = func(r *reg, v uint32) {
		if r.v&wdULK == 0 {
			return // writes outside the unlock window are dropped
		}
		r.v = (v &^ wdULK) | wdRCS
		w.counter = 0
		w.configured = true
	}
	return w
}

// bite records a watchdog reset: on hardware the chip would reboot here.
func (w *watchdogSim) bite() {
	w.resets++
	w.counter = 0
	w.cs.v |= wdFLG
}

// advance moves virtual time forward and fires the timeout if the counter
// crosses it.
func (w *watchdogSim) advance(millis uint32) {
	if w.cs.v&wdEN == 0 {
		return
	}
	ticks := millis * wdTicksPerMilli
	if w.cs.v&wdPRES != 0 {
		ticks = millis / wdPrescaledMillis
	}
	w.counter += ticks
	if w.toval.v != 0 && w.counter >= w.toval.v {
		w.bite()
	}
}

func (w *watchdogSim) block() *periph.WDOG {
	return &periph.WDOG{
		CS:    &w.cs,
		CNT:   &w.cnt,
		TOVAL: &w.toval,
		WIN:   &w.win,
	}
}

// AdvanceWatchdog moves the watchdog's virtual clock forward by the given
// number of milliseconds.
func (b *Board) AdvanceWatchdog(millis uint32) { b.wd.advance(millis) }

// WatchdogResets reports how many times the watchdog would have reset the
// chip: timeouts plus refreshes outside the service window.
func (b *Board) WatchdogResets() int { return b.wd.resets }

// WatchdogFault reports whether the watchdog fault flag is raised.
func (b *Board) WatchdogFault() bool { return b.wd.cs.v&wdFLG != 0 }
