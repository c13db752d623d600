//go:build !s32k144

package sim

import "github.com/jangala-dev/tinygo-s32k/periph"

// LPUART register fields.
const (
	uartOR   = 1 << 19
	uartRDRF = 1 << 21
	uartTC   = 1 << 22
	uartTDRE = 1 << 23

	uartRXFLUSH = 1 << 14
	uartTXFLUSH = 1 << 15

	uartTxCountPos = 8
	uartRxCountPos = 24
	uartWaterMask  = uint32(0x7) | uint32(0x7)<<16
)

const uartFIFODepth = 4

// serialSim models the LPUART FIFOs and line status. The transmit side
// drains instantly onto the captured output by default; tests that want to
// observe a backed-up FIFO flip manualDrain and pump it themselves.
type serialSim struct {
	baud, stat, ctrl, data, fifo, water reg

	rxq, txq []byte
	out      []byte

	manualDrain bool
	overrun     bool
}

func newSerialSim() *serialSim {
	s := &serialSim{}

	s.data.onGet = func(r *reg) {
		if len(s.rxq) == 0 {
			r.v = 0
			return
		}
		r.v = uint32(s.rxq[0])
		s.rxq = s.rxq[1:]
	}
	s.data.onSet = func(r *reg, v uint32) {
		b := byte(v)
		if s.manualDrain {
			if len(s.txq) < uartFIFODepth {
				s.txq = append(s.txq, b)
			}
			return
		}
		s.out = append(s.out, b)
	}

	s.stat.onGet = func(r *reg) {
		v := uint32(0)
		if len(s.txq) == 0 {
			v |= uartTC | uartTDRE
		}
		if len(s.rxq) > 0 {
			v |= uartRDRF
		}
		if s.overrun {
			v |= uartOR
		}
		r.v = v
	}
	s.stat.onSet = func(r *reg, v uint32) {
		if v&uartOR != 0 {
			s.overrun = false // w1c
		}
	}

	s.fifo.onSet = func(r *reg, v uint32) {
		if v&uartRXFLUSH != 0 {
			s.rxq = nil
		}
		if v&uartTXFLUSH != 0 {
			s.txq = nil
		}
		r.v = v &^ (uartRXFLUSH | uartTXFLUSH)
	}

	s.water.onSet = func(r *reg, v uint32) { r.v = v & uartWaterMask }
	s.water.onGet = func(r *reg) {
		r.v = r.v&uartWaterMask |
			uint32(len(s.txq))<<uartTxCountPos |
			uint32(len(s.rxq))<<uartRxCountPos
	}
	return s
}

func (s *serialSim) push(p []byte) {
	for _, b := range p {
		if len(s.rxq) >= uartFIFODepth {
			s.overrun = true // byte lost on the wire
			continue
		}
		s.rxq = append(s.rxq, b)
	}
}

func (s *serialSim) drain() {
	s.out = append(s.out, s.txq...)
	s.txq = nil
}

func (s *serialSim) block() *periph.LPUART {
	return &periph.LPUART{
		BAUD:  &s.baud,
		STAT:  &s.stat,
		CTRL:  &s.ctrl,
		DATA:  &s.data,
		FIFO:  &s.fifo,
		WATER: &s.water,
	}
}

// PushSerial feeds bytes into the receive FIFO from the line side. Bytes
// beyond the FIFO depth are lost and flag a hardware overrun, like wire
// traffic arriving faster than it is drained.
func (b *Board) PushSerial(p []byte) { b.serial.push(p) }

// SerialOutput returns everything transmitted so far.
func (b *Board) SerialOutput() []byte { return b.serial.out }

// ClearSerialOutput discards the captured transmit bytes.
func (b *Board) ClearSerialOutput() { b.serial.out = nil }

// SetSerialManualDrain stops the transmit FIFO from draining on its own;
// DrainSerial then moves it to the output explicitly.
func (b *Board) SetSerialManualDrain(manual bool) { b.serial.manualDrain = manual }

// DrainSerial empties the transmit FIFO onto the captured output.
func (b *Board) DrainSerial() { b.serial.drain() }
