// Package pcc drives the Peripheral Clock Controller: the per-peripheral
// clock gates that must be opened before a peripheral's registers are
// touched, and the interface clock source selection for peripherals that
// take one (LPUART here). Each gate can be enabled once; the returned error
// tells the caller whether the gate was absent or already open.
package pcc

import (
	"errors"

	"github.com/jangala-dev/tinygo-s32k/mmio"
	"github.com/jangala-dev/tinygo-s32k/periph"
)

var (
	ErrNotPresent     = errors.New("pcc: peripheral not present on this chip")
	ErrAlreadyEnabled = errors.New("pcc: peripheral clock already enabled")
)

// ClockSource selects the interface clock for peripherals with a PCS field
// (LPUART, LPSPI, LPIT, FlexIO, LPI2C). Values are the PCS encodings.
type ClockSource uint8

const (
	SourceNone     ClockSource = 0b000
	SourceSOSCDIV2 ClockSource = 0b001
	SourceSIRCDIV2 ClockSource = 0b010
	SourceFIRCDIV2 ClockSource = 0b011
	SourceSPLLDIV2 ClockSource = 0b110
)

// PCC gate register fields.
const (
	gateCGC    = 1 << 30 // clock gate control
	gatePR     = 1 << 31 // peripheral present (read-only)
	gatePCSPos = 24
)

// Pcc owns the PCC block.
type Pcc struct {
	block *periph.PCC
}

// New builds the controller from its register block.
func New(block *periph.PCC) *Pcc {
	return &Pcc{block: block}
}

// EnablePortC opens the PORTC clock gate.
func (p *Pcc) EnablePortC() error { return p.enable(p.block.PORTC) }

// EnablePortD opens the PORTD clock gate.
func (p *Pcc) EnablePortD() error { return p.enable(p.block.PORTD) }

// EnablePortE opens the PORTE clock gate.
func (p *Pcc) EnablePortE() error { return p.enable(p.block.PORTE) }

// EnableLPUART1 selects the LPUART1 interface clock and opens its gate.
// The source must be selected while the gate is closed, so this fails with
// ErrAlreadyEnabled rather than re-selecting under an open gate.
func (p *Pcc) EnableLPUART1(source ClockSource) error {
	reg := p.block.LPUART1
	if err := p.check(reg); err != nil {
		return err
	}
	mmio.ReplaceBits(reg, uint32(source), 0x7, gatePCSPos)
	mmio.SetBits(reg, gateCGC)
	return nil
}

// EnableCAN0 opens the FlexCAN0 clock gate.
func (p *Pcc) EnableCAN0() error { return p.enable(p.block.FlexCAN0) }

func (p *Pcc) enable(reg mmio.Reg32) error {
	if err := p.check(reg); err != nil {
		return err
	}
	mmio.SetBits(reg, gateCGC)
	return nil
}

func (p *Pcc) check(reg mmio.Reg32) error {
	v := reg.Get()
	if v&gatePR == 0 {
		return ErrNotPresent
	}
	if v&gateCGC != 0 {
		return ErrAlreadyEnabled
	}
	return nil
}
