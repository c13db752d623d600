//go:build s32k144

package flexcan

import "runtime/interrupt"

// FlexCAN0 message buffer 0-15 vector.
const irqCAN0MB = 81

var attached *Controller

func canISR(interrupt.Interrupt) {
	if attached != nil {
		attached.ServiceInterrupt()
	}
}

// AttachInterrupt wires ServiceInterrupt to the CAN0 buffer vector. Call
// once, after Configure.
func (c *Controller) AttachInterrupt() {
	attached = c
	intr := interrupt.New(irqCAN0MB, canISR)
	intr.SetPriority(0x80)
	intr.Enable()
}
