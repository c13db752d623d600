//go:build !s32k144

package sim

import (
	"github.com/jangala-dev/tinygo-s32k/flexcan"
	"github.com/jangala-dev/tinygo-s32k/periph"
)

// FlexCAN register fields and buffer codes.
const (
	canMDIS    = 1 << 31
	canFRZ     = 1 << 30
	canHALT    = 1 << 28
	canNOTRDY  = 1 << 27
	canSOFTRST = 1 << 25
	canFRZACK  = 1 << 24

	canCodePos  = 24
	canCodeMask = uint32(0xF) << canCodePos
	canDLCPos   = 16
	canDLCMask  = 0xF
	canIDE      = 1 << 21
	canRTR      = 1 << 20
	canSRR      = 1 << 22
	canStdPos   = 18

	codeRxEmpty   = 0x4
	codeRxFull    = 0x2
	codeRxOverrun = 0x6
	codeTxInact   = 0x8
	codeTxData    = 0xC
)

const canLoopback = 1 << 12 // CTRL1 LPB

type simMB struct {
	cs, id, w0, w1 reg
}

// canSim models the FlexCAN controller at the message buffer level: the
// freeze handshake on the MCR, write-1-to-clear interrupt flags, and a bus
// side where tests complete pending transmissions and inject traffic.
type canSim struct {
	mcr, ctrl1, iflag1, imask1 reg

	mb    [periph.NumMessageBuffers]simMB
	rximr [periph.NumMessageBuffers]reg

	stallUnfreeze bool

	sent []flexcan.Frame
}

func newCanSim() *canSim {
	c := &canSim{}

	// Out of reset the module is disabled and not ready.
	c.mcr.v = canMDIS | canNOTRDY | canFRZACK

	c.mcr.onSet = func(r *reg, v uint32) {
		v &^= canSOFTRST // self-clearing
		switch {
		case v&canMDIS != 0:
			v |= canNOTRDY | canFRZACK
		case v&(canFRZ|canHALT) == canFRZ|canHALT:
			v |= canNOTRDY | canFRZACK
		default:
			if c.stallUnfreeze {
				v |= canNOTRDY | canFRZACK
			} else {
				v &^= canNOTRDY | canFRZACK
			}
		}
		r.v = v
	}

	c.iflag1.onSet = func(r *reg, v uint32) { r.v &^= v }
	return c
}

func (c *canSim) code(i int) uint32 {
	return (c.mb[i].cs.v & canCodeMask) >> canCodePos
}

func (c *canSim) raise(i int) {
	c.iflag1.v |= 1 << uint(i)
}

// frameAt decodes the message buffer into a bus-level frame.
func (c *canSim) frameAt(i int) flexcan.Frame {
	var f flexcan.Frame
	cs := c.mb[i].cs.v
	id := c.mb[i].id.v
	f.Len = uint8((cs >> canDLCPos) & canDLCMask)
	if f.Len > 8 {
		f.Len = 8
	}
	f.Extended = cs&canIDE != 0
	f.RTR = cs&canRTR != 0
	if f.Extended {
		f.ID = id & 0x1FFF_FFFF
	} else {
		f.ID = (id >> canStdPos) & 0x7FF
	}
	f.Data[0] = byte(c.mb[i].w0.v >> 24)
	f.Data[1] = byte(c.mb[i].w0.v >> 16)
	f.Data[2] = byte(c.mb[i].w0.v >> 8)
	f.Data[3] = byte(c.mb[i].w0.v)
	f.Data[4] = byte(c.mb[i].w1.v >> 24)
	f.Data[5] = byte(c.mb[i].w1.v >> 16)
	f.Data[6] = byte(c.mb[i].w1.v >> 8)
	f.Data[7] = byte(c.mb[i].w1.v)
	return f
}

// storeFrame encodes a bus-level frame into the message buffer with the
// given code.
func (c *canSim) storeFrame(i int, f flexcan.Frame, code uint32) {
	var id, flags uint32
	if f.Extended {
		id = f.ID
		flags |= canIDE | canSRR
	} else {
		id = f.ID << canStdPos
	}
	if f.RTR {
		flags |= canRTR
	}
	c.mb[i].id.v = id
	c.mb[i].w0.v = uint32(f.Data[0])<<24 | uint32(f.Data[1])<<16 |
		uint32(f.Data[2])<<8 | uint32(f.Data[3])
	c.mb[i].w1.v = uint32(f.Data[4])<<24 | uint32(f.Data[5])<<16 |
		uint32(f.Data[6])<<8 | uint32(f.Data[7])
	c.mb[i].cs.v = code<<canCodePos | uint32(f.Len)<<canDLCPos | flags
}

// accepts applies the buffer's individual mask filter and IDE match the way
// the matching engine does.
func (c *canSim) accepts(i int, f flexcan.Frame) bool {
	cs := c.mb[i].cs.v
	if f.Extended != (cs&canIDE != 0) {
		return false
	}
	var id uint32
	if f.Extended {
		id = f.ID
	} else {
		id = f.ID << canStdPos
	}
	mask := c.rximr[i].v
	return (id^c.mb[i].id.v)&mask == 0
}

// completeTransmit finishes every buffer pending transmission: the frame
// goes onto the sent log, the buffer returns to inactive and its flag is
// raised. In loopback mode each frame is also offered back to the receive
// side.
func (c *canSim) completeTransmit() []flexcan.Frame {
	var done []flexcan.Frame
	for i := range c.mb {
		if c.code(i) != codeTxData {
			continue
		}
		f := c.frameAt(i)
		done = append(done, f)
		c.sent = append(c.sent, f)
		c.mb[i].cs.v = c.mb[i].cs.v&^canCodeMask | codeTxInact<<canCodePos
		c.raise(i)
		if c.ctrl1.v&canLoopback != 0 {
			c.deliver(f)
		}
	}
	return done
}

// deliver places a bus frame into the first matching empty receive buffer.
// A matching buffer that is still full degrades to the overrun code, like
// the hardware overwriting the oldest pending frame.
func (c *canSim) deliver(f flexcan.Frame) bool {
	full := -1
	for i := range c.mb {
		switch c.code(i) {
		case codeRxEmpty:
			if c.accepts(i, f) {
				c.storeFrame(i, f, codeRxFull)
				c.raise(i)
				return true
			}
		case codeRxFull, codeRxOverrun:
			if full < 0 && c.accepts(i, f) {
				full = i
			}
		}
	}
	if full >= 0 {
		c.storeFrame(full, f, codeRxOverrun)
		c.raise(full)
		return true
	}
	return false
}

func (c *canSim) block() *periph.FlexCAN {
	b := &periph.FlexCAN{
		MCR:    &c.mcr,
		CTRL1:  &c.ctrl1,
		IFLAG1: &c.iflag1,
		IMASK1: &c.imask1,
	}
	for i := range c.mb {
		b.MB[i] = periph.MessageBuffer{
			CS:    &c.mb[i].cs,
			ID:    &c.mb[i].id,
			Word0: &c.mb[i].w0,
			Word1: &c.mb[i].w1,
		}
		b.RXIMR[i] = &c.rximr[i]
	}
	return b
}

// CompleteCANTransmit finishes all pending transmissions and returns the
// frames that went out on this call.
func (b *Board) CompleteCANTransmit() []flexcan.Frame {
	return b.can.completeTransmit()
}

// CANSent returns every frame the controller has put on the bus so far.
func (b *Board) CANSent() []flexcan.Frame { return b.can.sent }

// InjectCANFrame offers a frame from the bus to the receive buffers. It
// reports whether any buffer accepted it.
func (b *Board) InjectCANFrame(f flexcan.Frame) bool { return b.can.deliver(f) }

// SetCANFreezeStall makes the controller stop acknowledging requests to
// leave freeze mode, modelling a protocol engine that never unfreezes.
func (b *Board) SetCANFreezeStall(stall bool) { b.can.stallUnfreeze = stall }

// CorruptBufferCode overwrites a message buffer's code field with a raw
// value, bypassing the driver, to model a misbehaving buffer.
func (b *Board) CorruptBufferCode(i int, raw uint32) {
	b.can.mb[i].cs.v = b.can.mb[i].cs.v&^canCodeMask | (raw&0xF)<<canCodePos
}
