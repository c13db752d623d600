// Package flexcan drives the FlexCAN controller: a fixed pool of hardware
// message buffers split into a receive and a transmit range. Acceptance
// filtering happens in hardware before a frame ever occupies a buffer;
// software only sees buffers whose code says they are full. All
// configuration runs in freeze mode with bounded acknowledgement polling.
package flexcan

import (
	"errors"

	"github.com/jangala-dev/tinygo-s32k/mmio"
	"github.com/jangala-dev/tinygo-s32k/periph"
	"github.com/jangala-dev/tinygo-s32k/poll"
)

var (
	ErrPoolExhausted = errors.New("flexcan: no free transmit buffer")
	ErrTimeout       = errors.New("flexcan: freeze mode not acknowledged within poll budget")
	ErrNotConfigured = errors.New("flexcan: controller not configured")
	ErrBadBitRate    = errors.New("flexcan: bit rate not reachable from source clock")
)

// MCR register fields.
const (
	mcrMAXMBMask = 0x7F
	mcrSRXDIS    = 1 << 17
	mcrFRZACK    = 1 << 24
	mcrSOFTRST   = 1 << 25
	mcrNOTRDY    = 1 << 27
	mcrHALT      = 1 << 28
	mcrFRZ       = 1 << 30
	mcrMDIS      = 1 << 31
)

// CTRL1 register fields.
const (
	ctrl1PROPSEGPos = 0
	ctrl1LPB        = 1 << 12
	ctrl1PSEG2Pos   = 16
	ctrl1PSEG1Pos   = 19
	ctrl1PRESDIVPos = 24
)

// Message buffer CS fields.
const (
	csDLCPos  = 16
	csDLCMask = 0xF
	csRTR     = 1 << 20
	csIDE     = 1 << 21
	csSRR     = 1 << 22
	csCodePos = 24
	csCodeMsk = 0xF
)

// Message buffer ID fields.
const (
	idStdPos  = 18
	idPrioPos = 29
)

// Time quanta per bit: sync(1) + prop(7) + pseg1(4) + pseg2(4).
const quantaPerBit = 16

// Settings configures the controller. Zero values mean 500 kbit/s with half
// the pool receiving.
type Settings struct {
	// SourceFrequency is the protocol engine clock in Hz. Required.
	SourceFrequency uint32

	// BitRate on the wire. Zero means 500000.
	BitRate uint32

	// RxBuffers is how many buffers from the start of the pool receive;
	// the rest transmit. Zero means half the pool.
	RxBuffers int

	// Loopback feeds the transmitter back into the receiver for self test.
	Loopback bool

	// SelfReception lets the controller receive its own transmissions.
	SelfReception bool

	// PollBudget bounds the freeze mode handshakes.
	// Zero means poll.DefaultBudget.
	PollBudget int
}

// BufferHandle identifies a claimed transmit buffer within the pool.
type BufferHandle int

// Controller owns the FlexCAN block.
type Controller struct {
	block *periph.FlexCAN

	rxBuffers  int
	budget     int
	configured bool

	notify chan struct{} // coalesced buffer-ready notification
}

// New builds the controller from its register block.
func New(block *periph.FlexCAN) *Controller {
	return &Controller{
		block:  block,
		notify: make(chan struct{}, 1),
	}
}

// Configure brings the controller up: freeze, bit timing, buffer pool
// initialization, unfreeze. The interface clock must already be gated on
// through the PCC and stable.
func (c *Controller) Configure(s Settings) error {
	if s.BitRate == 0 {
		s.BitRate = 500_000
	}
	if s.RxBuffers == 0 {
		s.RxBuffers = periph.NumMessageBuffers / 2
	}
	if s.PollBudget == 0 {
		s.PollBudget = poll.DefaultBudget
	}
	presdiv := s.SourceFrequency / (s.BitRate * quantaPerBit)
	if presdiv == 0 || presdiv > 256 {
		return ErrBadBitRate
	}
	c.budget = s.PollBudget

	mmio.ClearBits(c.block.MCR, mcrMDIS)
	if err := c.enterFreeze(); err != nil {
		return err
	}

	ctrl1 := (presdiv - 1) << ctrl1PRESDIVPos
	ctrl1 |= 6 << ctrl1PROPSEGPos // 7 tq propagation
	ctrl1 |= 3 << ctrl1PSEG1Pos   // 4 tq phase 1
	ctrl1 |= 3 << ctrl1PSEG2Pos   // 4 tq phase 2
	if s.Loopback {
		ctrl1 |= ctrl1LPB
	}
	c.block.CTRL1.Set(ctrl1)

	mmio.ReplaceBits(c.block.MCR, periph.NumMessageBuffers-1, mcrMAXMBMask, 0)
	if !s.SelfReception {
		mmio.SetBits(c.block.MCR, mcrSRXDIS)
	} else {
		mmio.ClearBits(c.block.MCR, mcrSRXDIS)
	}

	// Arm the receive range, idle the transmit range, accept everything
	// until a filter narrows it down.
	for i := 0; i < periph.NumMessageBuffers; i++ {
		mb := &c.block.MB[i]
		mb.ID.Set(0)
		mb.Word0.Set(0)
		mb.Word1.Set(0)
		if i < s.RxBuffers {
			mb.CS.Set(uint32(CodeRxEmpty) << csCodePos)
		} else {
			mb.CS.Set(uint32(CodeTxInactive) << csCodePos)
		}
		c.block.RXIMR[i].Set(0)
	}

	if err := c.exitFreeze(); err != nil {
		return err
	}

	c.rxBuffers = s.RxBuffers
	c.configured = true
	return nil
}

func (c *Controller) enterFreeze() error {
	mmio.SetBits(c.block.MCR, mcrFRZ|mcrHALT)
	if !poll.Until(c.budget, func() bool {
		return mmio.HasBits(c.block.MCR, mcrFRZACK)
	}) {
		return ErrTimeout
	}
	return nil
}

func (c *Controller) exitFreeze() error {
	mmio.ClearBits(c.block.MCR, mcrFRZ|mcrHALT)
	ok := poll.Until(c.budget, func() bool {
		return !mmio.HasBits(c.block.MCR, mcrFRZACK)
	})
	ok = ok && poll.Until(c.budget, func() bool {
		return !mmio.HasBits(c.block.MCR, mcrNOTRDY)
	})
	if !ok {
		return ErrTimeout
	}
	return nil
}

// Enqueue claims a free transmit buffer, writes identifier and payload and
// marks it ready to transmit. prio is the local arbitration priority (lower
// wins among this node's pending buffers). With every transmit buffer
// pending it fails with ErrPoolExhausted; a buffer whose code does not
// decode is reported, never silently reused.
func (c *Controller) Enqueue(f Frame, prio uint8) (BufferHandle, error) {
	if !c.configured {
		return -1, ErrNotConfigured
	}
	if err := f.Validate(); err != nil {
		return -1, err
	}
	for i := c.rxBuffers; i < periph.NumMessageBuffers; i++ {
		mb := &c.block.MB[i]
		code, err := DecodeCode(mmio.FieldGet(mb.CS, csCodeMsk, csCodePos))
		if err != nil {
			return -1, err
		}
		if code != CodeTxInactive && code != CodeTxAbort {
			continue
		}

		var id uint32
		var flags uint32
		if f.Extended {
			id = f.ID
			flags |= csIDE | csSRR
		} else {
			id = f.ID << idStdPos
		}
		if f.RTR {
			flags |= csRTR
		}
		id |= uint32(prio) << idPrioPos

		mb.ID.Set(id)
		mb.Word0.Set(packWord(f.Data[0:4]))
		mb.Word1.Set(packWord(f.Data[4:8]))
		// Writing the code last hands the buffer to the hardware.
		mb.CS.Set(uint32(CodeTxData)<<csCodePos | uint32(f.Len)<<csDLCPos | flags)
		return BufferHandle(i), nil
	}
	return -1, ErrPoolExhausted
}

// PollReceive returns the next received frame, or nil when no buffer is
// full. Reading a buffer re-arms it as empty. A buffer presenting a code
// outside the enumerated set surfaces ErrInvalidCode.
func (c *Controller) PollReceive() (*Frame, error) {
	if !c.configured {
		return nil, ErrNotConfigured
	}
	for i := 0; i < c.rxBuffers; i++ {
		mb := &c.block.MB[i]
		cs := mb.CS.Get()
		code, err := DecodeCode((cs >> csCodePos) & csCodeMsk)
		if err != nil {
			return nil, err
		}
		if code != CodeRxFull && code != CodeRxOverrun {
			continue
		}

		var f Frame
		f.Len = uint8((cs >> csDLCPos) & csDLCMask)
		if f.Len > 8 {
			f.Len = 8
		}
		f.Extended = cs&csIDE != 0
		f.RTR = cs&csRTR != 0
		id := mb.ID.Get()
		if f.Extended {
			f.ID = id & maxExtID
		} else {
			f.ID = (id >> idStdPos) & maxStdID
		}
		unpackWord(mb.Word0.Get(), f.Data[0:4])
		unpackWord(mb.Word1.Get(), f.Data[4:8])

		// Re-arm the buffer and drop its ready flag (write-1-to-clear).
		// IDE carries the filter's frame format and must survive the
		// re-arm; everything else is per-frame state.
		mb.CS.Set(cs&csIDE | uint32(CodeRxEmpty)<<csCodePos)
		c.block.IFLAG1.Set(1 << uint(i))
		return &f, nil
	}
	return nil, nil
}

// BufferCode decodes the current code of the given buffer.
func (c *Controller) BufferCode(h BufferHandle) (MessageBufferCode, error) {
	if h < 0 || int(h) >= periph.NumMessageBuffers {
		return 0, ErrInvalidCode
	}
	return DecodeCode(mmio.FieldGet(c.block.MB[h].CS, csCodeMsk, csCodePos))
}

// SetFilter programs the identifier mask/match pair into every receive
// buffer. Mask registers are only writable in freeze mode, so the
// controller briefly freezes the protocol engine. If the unfreeze
// handshake times out the engine is stuck frozen; the controller drops
// back to unconfigured and needs a fresh Configure to recover.
func (c *Controller) SetFilter(flt Filter) error {
	if !c.configured {
		return ErrNotConfigured
	}
	if err := c.enterFreeze(); err != nil {
		c.configured = false
		return err
	}
	var id uint32
	var mask uint32
	if flt.Extended {
		id = flt.ID
		mask = flt.Mask
	} else {
		id = flt.ID << idStdPos
		mask = flt.Mask << idStdPos
	}
	for i := 0; i < c.rxBuffers; i++ {
		mb := &c.block.MB[i]
		cs := mb.CS.Get() &^ (csCodeMsk << csCodePos)
		mb.ID.Set(id)
		if flt.Extended {
			cs |= csIDE
		}
		mb.CS.Set(cs | uint32(CodeRxEmpty)<<csCodePos)
		c.block.RXIMR[i].Set(mask)
	}
	if err := c.exitFreeze(); err != nil {
		c.configured = false
		return err
	}
	return nil
}

// ServiceInterrupt is the buffer-ready event handler. It acknowledges
// transmit completions and raises the coalesced notification when any
// receive buffer has a pending flag; draining happens in PollReceive on the
// foreground side.
func (c *Controller) ServiceInterrupt() {
	flags := c.block.IFLAG1.Get()
	if flags == 0 {
		return
	}
	var txFlags uint32
	for i := c.rxBuffers; i < periph.NumMessageBuffers; i++ {
		txFlags |= 1 << uint(i)
	}
	if ack := flags & txFlags; ack != 0 {
		c.block.IFLAG1.Set(ack) // w1c
	}
	if flags&^txFlags != 0 {
		select {
		case c.notify <- struct{}{}:
		default:
		}
	}
}

// Readable returns a coalesced notification for received frames. The
// channel is level-coalesced; callers must re-check PollReceive after
// waking.
func (c *Controller) Readable() <-chan struct{} { return c.notify }

// Payload words are big-endian on the wire side of the buffer.
func packWord(b []byte) uint32 {
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}

func unpackWord(w uint32, b []byte) {
	b[0] = byte(w >> 24)
	b[1] = byte(w >> 16)
	b[2] = byte(w >> 8)
	b[3] = byte(w)
}
