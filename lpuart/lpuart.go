// Package lpuart provides an interrupt-driven LPUART driver bridging the
// 4-entry hardware FIFOs to larger software rings, with blocking
// io.Reader/io.Writer semantics and explicit non-blocking operations.
// TryWrite never blocks and reports how much it queued; Write blocks until
// everything is accepted by the driver. ServiceInterrupt is the watermark
// event handler: it drains the rx FIFO into the rx ring and refills the tx
// FIFO from the tx ring.
package lpuart

import (
	"context"
	"errors"
	"time"

	"github.com/jangala-dev/tinygo-s32k/mmio"
	"github.com/jangala-dev/tinygo-s32k/periph"
)

var (
	ErrBufferEmpty = errors.New("lpuart: buffer empty")
	ErrBadBaudRate = errors.New("lpuart: baud rate not reachable from source clock")
	ErrNotEnabled  = errors.New("lpuart: not configured")
)

// Parity defines the parity setting used for UART communication.
type Parity uint8

const (
	// ParityNone disables parity generation and checking (the most common setting).
	ParityNone Parity = iota
	// ParityEven sets even parity (total number of 1 bits is even).
	ParityEven
	// ParityOdd sets odd parity (total number of 1 bits is odd).
	ParityOdd
)

// Depth of the hardware FIFOs.
const fifoDepth = 4

// Config holds the line settings. Zero values pick 115200 8N1 with the rx
// watermark at half the FIFO.
type Config struct {
	// BaudRate of the line. Zero means 115200.
	BaudRate uint32

	// SourceFrequency is the LPUART interface clock in Hz, normally the
	// soscdiv2 output selected through the PCC. Required.
	SourceFrequency uint32

	// DataBits is 7, 8, 9 or 10. Zero means 8.
	DataBits uint8

	// TwoStopBits selects two stop bits instead of one.
	TwoStopBits bool

	Parity Parity

	// RxWatermark is the FIFO fill level that raises the receive event.
	// Zero means fifoDepth / 2.
	RxWatermark uint8
}

// BAUD register fields.
const (
	baudSBRMask = 0x1FFF
	baudSBNS    = 1 << 13
	baudM10     = 1 << 29
)

// STAT register fields.
const (
	statOR   = 1 << 19
	statRDRF = 1 << 21
	statTC   = 1 << 22
	statTDRE = 1 << 23
)

// CTRL register fields.
const (
	ctrlPT  = 1 << 0
	ctrlPE  = 1 << 1
	ctrlM   = 1 << 4
	ctrlM7  = 1 << 11
	ctrlRE  = 1 << 18
	ctrlTE  = 1 << 19
	ctrlRIE = 1 << 21
	ctrlTIE = 1 << 23
)

// FIFO register fields.
const (
	fifoRXFE    = 1 << 3
	fifoTXFE    = 1 << 7
	fifoRXFLUSH = 1 << 14
	fifoTXFLUSH = 1 << 15
)

// WATER register fields.
const (
	waterTXWATERPos = 0
	waterTXCOUNTPos = 8
	waterRXWATERPos = 16
	waterRXCOUNTPos = 24
	waterCountMask  = 0x7
)

// UART owns one LPUART block.
type UART struct {
	block *periph.LPUART

	// Software rings behind the hardware FIFOs. Shared with the interrupt
	// handler; access them under the mmio critical section only.
	rx ringBuffer
	tx ringBuffer

	notify   chan struct{} // coalesced rx readiness
	txNotify chan struct{} // coalesced tx progress/space

	baud       uint32
	enabled    bool
	hwOverruns uint32
}

// New builds the driver from its register block. The block comes from
// splitting the peripheral distribution token.
func New(block *periph.LPUART) *UART {
	return &UART{
		block:    block,
		notify:   make(chan struct{}, 1),
		txNotify: make(chan struct{}, 1),
	}
}

// Configure programs the line settings and enables transmitter, receiver,
// FIFOs and the receive watermark event. The transmit watermark event is
// armed on demand while the tx ring holds bytes. The interface clock must
// already be gated on through the PCC.
func (u *UART) Configure(cfg Config) error {
	if cfg.BaudRate == 0 {
		cfg.BaudRate = 115200
	}
	if cfg.DataBits == 0 {
		cfg.DataBits = 8
	}
	if cfg.RxWatermark == 0 || cfg.RxWatermark >= fifoDepth {
		cfg.RxWatermark = fifoDepth / 2
	}
	divisor := cfg.SourceFrequency / (cfg.BaudRate * 16)
	if divisor == 0 || divisor > baudSBRMask {
		return ErrBadBaudRate
	}

	// Quiesce the line before reprogramming.
	mmio.ClearBits(u.block.CTRL, ctrlTE|ctrlRE)

	baud := divisor & baudSBRMask
	if cfg.TwoStopBits {
		baud |= baudSBNS
	}
	if cfg.DataBits == 10 {
		baud |= baudM10
	}
	u.block.BAUD.Set(baud)

	var ctrl uint32
	if cfg.DataBits == 7 {
		ctrl |= ctrlM7
	}
	if cfg.DataBits == 9 {
		ctrl |= ctrlM
	}
	if cfg.Parity != ParityNone {
		ctrl |= ctrlPE
	}
	if cfg.Parity == ParityOdd {
		ctrl |= ctrlPT
	}
	u.block.CTRL.Set(ctrl)

	// Enable and flush both FIFOs, then set the watermarks. The tx
	// watermark event fires when the FIFO drops below half full, giving
	// the handler time to top it up before the line runs dry.
	u.block.FIFO.Set(fifoRXFE | fifoTXFE | fifoRXFLUSH | fifoTXFLUSH)
	u.block.WATER.Set(uint32(cfg.RxWatermark)<<waterRXWATERPos |
		fifoDepth/2<<waterTXWATERPos)

	mmio.SetBits(u.block.CTRL, ctrlTE|ctrlRE|ctrlRIE)

	u.baud = cfg.BaudRate
	u.enabled = true
	return nil
}

func (u *UART) rxCount() uint32 {
	return mmio.FieldGet(u.block.WATER, waterCountMask, waterRXCOUNTPos)
}

func (u *UART) txCount() uint32 {
	return mmio.FieldGet(u.block.WATER, waterCountMask, waterTXCOUNTPos)
}

// ServiceInterrupt is the FIFO watermark event handler. On hardware builds
// it runs in interrupt context; tests drive it directly. It drains whatever
// the rx FIFO holds into the rx ring (counting, not overwriting, on a full
// ring) and tops the tx FIFO back up from the tx ring.
func (u *UART) ServiceInterrupt() {
	state := mmio.DisableInterrupts()

	received := false
	for u.rxCount() > 0 {
		u.rx.Put(byte(u.block.DATA.Get() & 0xFF))
		received = true
	}
	if mmio.HasBits(u.block.STAT, statOR) {
		// Hardware receiver overrun: byte already lost on the wire side.
		u.hwOverruns++
		mmio.SetBits(u.block.STAT, statOR) // w1c
	}

	progressed := u.pumpTx()

	mmio.RestoreInterrupts(state)

	if received {
		select {
		case u.notify <- struct{}{}:
		default:
		}
	}
	if progressed {
		select {
		case u.txNotify <- struct{}{}:
		default:
		}
	}
}

// pumpTx moves bytes from the tx ring into the hardware FIFO while there is
// room, then gates the tx watermark event on ring occupancy: it stays armed
// only while the ring holds bytes, so an idle transmitter does not interrupt
// forever on an empty FIFO. Caller holds the critical section.
func (u *UART) pumpTx() bool {
	moved := false
	for u.txCount() < fifoDepth {
		b, ok := u.tx.Get()
		if !ok {
			break
		}
		u.block.DATA.Set(uint32(b))
		moved = true
	}
	if u.tx.Used() > 0 {
		mmio.SetBits(u.block.CTRL, ctrlTIE)
	} else {
		mmio.ClearBits(u.block.CTRL, ctrlTIE)
	}
	return moved
}

// TryWrite queues up to len(p) bytes and returns immediately with the count
// actually accepted. A full tx ring means a short count: the first rejected
// byte bumps the overrun counter and TryWrite stops. It never blocks.
func (u *UART) TryWrite(p []byte) int {
	if !u.enabled || len(p) == 0 {
		return 0
	}
	state := mmio.DisableInterrupts()
	n := 0
	for n < len(p) {
		if !u.tx.Put(p[n]) {
			break
		}
		n++
	}
	// Kick transmission so the first bytes go out without waiting for a
	// watermark event.
	u.pumpTx()
	mmio.RestoreInterrupts(state)
	return n
}

// Write implements io.Writer. It blocks until all bytes in p have been
// accepted by the driver (queued to the tx ring and/or hardware FIFO). It
// does not wait for the line to drain; use Flush for on-the-wire completion.
func (u *UART) Write(p []byte) (int, error) {
	if !u.enabled {
		return 0, ErrNotEnabled
	}
	sent := 0
	for sent < len(p) {
		n := u.TryWrite(p[sent:])
		if n > 0 {
			sent += n
			continue
		}
		// Wait for TX progress (space created or drain) then retry.
		<-u.txNotify
	}
	return sent, nil
}

// WriteByte writes a single byte with Write's blocking behaviour.
func (u *UART) WriteByte(c byte) error {
	_, err := u.Write([]byte{c})
	return err
}

// Read returns immediately with up to len(p) bytes from the rx ring. A
// return of (0, nil) means "no data now"; it never returns io.EOF for an
// idle line.
func (u *UART) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	state := mmio.DisableInterrupts()
	n := 0
	for n < len(p) {
		b, ok := u.rx.Get()
		if !ok {
			break
		}
		p[n] = b
		n++
	}
	mmio.RestoreInterrupts(state)
	return n, nil
}

// ReadByte reads a single byte from the rx ring, or ErrBufferEmpty.
func (u *UART) ReadByte() (byte, error) {
	state := mmio.DisableInterrupts()
	b, ok := u.rx.Get()
	mmio.RestoreInterrupts(state)
	if !ok {
		return 0, ErrBufferEmpty
	}
	return b, nil
}

// Buffered returns the number of bytes currently stored in the rx ring.
func (u *UART) Buffered() int {
	state := mmio.DisableInterrupts()
	n := int(u.rx.Used())
	mmio.RestoreInterrupts(state)
	return n
}

// TxFree returns the remaining space in the tx ring in bytes.
func (u *UART) TxFree() int {
	state := mmio.DisableInterrupts()
	n := int(u.tx.Free())
	mmio.RestoreInterrupts(state)
	return n
}

// Overruns returns how many bytes the software rings have dropped because
// they were full. See HardwareOverruns for wire-side losses.
func (u *UART) Overruns() uint32 {
	state := mmio.DisableInterrupts()
	n := u.rx.Overruns() + u.tx.Overruns()
	mmio.RestoreInterrupts(state)
	return n
}

// HardwareOverruns returns how many receiver overruns the hardware FIFO has
// flagged.
func (u *UART) HardwareOverruns() uint32 {
	state := mmio.DisableInterrupts()
	n := u.hwOverruns
	mmio.RestoreInterrupts(state)
	return n
}

// Readable returns a coalesced notification for RX readiness. The channel
// is level-coalesced; callers must re-check state after waking.
func (u *UART) Readable() <-chan struct{} { return u.notify }

// Writable returns a coalesced notification for TX progress or space.
func (u *UART) Writable() <-chan struct{} { return u.txNotify }

// WaitReadable blocks until data is available or ctx is done.
func (u *UART) WaitReadable(ctx context.Context) error {
	for {
		if u.Buffered() > 0 {
			return nil
		}
		select {
		case <-u.notify:
			// re-check; coalesced notify can wake spuriously
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// ReadBlocking blocks until at least one byte is available, then reads up
// to len(p).
func (u *UART) ReadBlocking(ctx context.Context, p []byte) (int, error) {
	for {
		if n, _ := u.Read(p); n > 0 {
			return n, nil
		}
		if err := u.WaitReadable(ctx); err != nil {
			return 0, err
		}
	}
}

// ReadByteBlocking blocks for a single byte or until ctx is done.
func (u *UART) ReadByteBlocking(ctx context.Context) (byte, error) {
	for {
		if b, err := u.ReadByte(); err == nil {
			return b, nil
		}
		if err := u.WaitReadable(ctx); err != nil {
			return 0, err
		}
	}
}

// ReadWithTimeout reads like ReadBlocking but gives up after d.
func (u *UART) ReadWithTimeout(p []byte, d time.Duration) (int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()
	return u.ReadBlocking(ctx, p)
}

// Flush blocks until the tx ring is empty and the transmitter reports
// completion. Completion does not interrupt, so Flush mixes txNotify wakes
// with a short timed poll; each timed wake also pumps the ring itself, so
// the backlog keeps moving even when no watermark event arrives.
func (u *UART) Flush() error {
	tick := u.drainTick()
	for {
		if u.txEmpty() && mmio.HasBits(u.block.STAT, statTC) {
			return nil
		}
		select {
		case <-u.txNotify:
			// Progress likely occurred; loop and re-check.
		case <-time.After(tick):
			state := mmio.DisableInterrupts()
			progressed := u.pumpTx()
			mmio.RestoreInterrupts(state)
			if progressed {
				select {
				case u.txNotify <- struct{}{}:
				default:
				}
			}
		}
	}
}

func (u *UART) txEmpty() bool {
	state := mmio.DisableInterrupts()
	empty := u.tx.Used() == 0
	mmio.RestoreInterrupts(state)
	return empty
}

// drainTick returns a short polling interval for Flush based on the
// configured baud: about two character times at 8N1, bounded below.
func (u *UART) drainTick() time.Duration {
	if u.baud == 0 {
		return 50 * time.Microsecond
	}
	perBit := time.Second / time.Duration(u.baud)
	t := 2 * 10 * perBit
	if t < 20*time.Microsecond {
		t = 20 * time.Microsecond
	}
	return t
}
