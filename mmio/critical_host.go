//go:build !s32k144

package mmio

import "sync"

// State is the saved interrupt mask returned by DisableInterrupts.
type State = uintptr

// Host shim: a process-wide mutex stands in for interrupt masking so tests
// that interleave a simulated handler with foreground code keep the same
// exclusion the hardware build has.
var hostCritical sync.Mutex

// DisableInterrupts masks interrupts and returns the previous mask state.
func DisableInterrupts() State {
	hostCritical.Lock()
	return 0
}

// RestoreInterrupts restores the mask state returned by DisableInterrupts.
func RestoreInterrupts(State) {
	hostCritical.Unlock()
}
