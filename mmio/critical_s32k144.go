//go:build s32k144

package mmio

import "runtime/interrupt"

// State is the saved interrupt mask returned by DisableInterrupts.
type State = interrupt.State

// DisableInterrupts masks interrupts and returns the previous mask state.
// Keep the critical section short: only the multi-field update that an
// interrupt handler could tear.
func DisableInterrupts() State {
	return interrupt.Disable()
}

// RestoreInterrupts restores the mask state returned by DisableInterrupts.
func RestoreInterrupts(state State) {
	interrupt.Restore(state)
}
