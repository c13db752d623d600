//go:build s32k144

package lpuart

import "runtime/interrupt"

const irqLPUART1 = 33

// The vector table needs a package-level handler, so the attached instance
// lives in a package variable. One LPUART driver exists per block anyway.
var attached *UART

func lpuartISR(interrupt.Interrupt) {
	if attached != nil {
		attached.ServiceInterrupt()
	}
}

// AttachInterrupt wires ServiceInterrupt to the LPUART1 vector. Call once,
// after Configure.
func (u *UART) AttachInterrupt() {
	attached = u
	intr := interrupt.New(irqLPUART1, lpuartISR)
	intr.SetPriority(0x80)
	intr.Enable()
}
