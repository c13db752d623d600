// Package periph distributes ownership of the peripheral register blocks.
// The whole map is claimed once (Take on hardware, sim.NewBoard on host) and
// then split: each TakeXxx method hands out its block exactly once, so two
// drivers can never alias the same hardware. Handles are moved, not copied,
// and live for the life of the process.
package periph

// Peripherals is the distribution token enumerating every block this module
// drives. Blocks are handed out by the TakeXxx methods; a nil result means
// the block was already claimed.
type Peripherals struct {
	scg     *SCG
	smc     *SMC
	pmc     *PMC
	pcc     *PCC
	wdog    *WDOG
	can0    *FlexCAN
	lpuart1 *LPUART
	ftfc    *FTFC
	csepram *CSEPRAM
}

// Blocks carries the register blocks a binding (hardware or simulated)
// assembles into a Peripherals token.
type Blocks struct {
	SCG     *SCG
	SMC     *SMC
	PMC     *PMC
	PCC     *PCC
	WDOG    *WDOG
	CAN0    *FlexCAN
	LPUART1 *LPUART
	FTFC    *FTFC
	CSEPRAM *CSEPRAM
}

// New wraps a set of blocks into a fresh distribution token.
func New(b Blocks) *Peripherals {
	return &Peripherals{
		scg:     b.SCG,
		smc:     b.SMC,
		pmc:     b.PMC,
		pcc:     b.PCC,
		wdog:    b.WDOG,
		can0:    b.CAN0,
		lpuart1: b.LPUART1,
		ftfc:    b.FTFC,
		csepram: b.CSEPRAM,
	}
}

// TakeSCG claims the System Clock Generator block.
func (p *Peripherals) TakeSCG() (*SCG, bool) {
	b := p.scg
	p.scg = nil
	return b, b != nil
}

// TakeSMC claims the System Mode Controller block.
func (p *Peripherals) TakeSMC() (*SMC, bool) {
	b := p.smc
	p.smc = nil
	return b, b != nil
}

// TakePMC claims the Power Management Controller block.
func (p *Peripherals) TakePMC() (*PMC, bool) {
	b := p.pmc
	p.pmc = nil
	return b, b != nil
}

// TakePCC claims the Peripheral Clock Controller block.
func (p *Peripherals) TakePCC() (*PCC, bool) {
	b := p.pcc
	p.pcc = nil
	return b, b != nil
}

// TakeWDOG claims the watchdog block.
func (p *Peripherals) TakeWDOG() (*WDOG, bool) {
	b := p.wdog
	p.wdog = nil
	return b, b != nil
}

// TakeCAN0 claims the FlexCAN0 block.
func (p *Peripherals) TakeCAN0() (*FlexCAN, bool) {
	b := p.can0
	p.can0 = nil
	return b, b != nil
}

// TakeLPUART1 claims the LPUART1 block.
func (p *Peripherals) TakeLPUART1() (*LPUART, bool) {
	b := p.lpuart1
	p.lpuart1 = nil
	return b, b != nil
}

// TakeFTFC claims the flash controller block.
func (p *Peripherals) TakeFTFC() (*FTFC, bool) {
	b := p.ftfc
	p.ftfc = nil
	return b, b != nil
}

// TakeCSEPRAM claims the CSEc command RAM block.
func (p *Peripherals) TakeCSEPRAM() (*CSEPRAM, bool) {
	b := p.csepram
	p.csepram = nil
	return b, b != nil
}
