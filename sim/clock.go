//go:build !s32k144

package sim

import "github.com/jangala-dev/tinygo-s32k/periph"

// SCG and SMC register fields as the hardware defines them.
const (
	scgSOSCEN  = 1 << 0
	scgSOSCVLD = 1 << 24
	scgSCSPos  = 24
	scgSCSMask = uint32(0xF) << scgSCSPos

	smcRUNMPos  = 5
	smcRUNMMask = uint32(0x3) << smcRUNMPos

	smcStatRun   = 0x01
	smcStatVLPR  = 0x04
	smcStatHSRun = 0x80

	scsFIRC = 0b0011
)

// clockSim models the SCG and SMC together: the system clock follows the
// clock control register of whatever run mode the SMC is in, and both the
// oscillator valid flag and the mode status trail their cause by a few
// register reads.
type clockSim struct {
	latency    int
	stallModes bool

	sosccsr, soscdiv, sosccfg reg
	csr, rccr, vccr, hccr     reg
	pmprot, pmctrl, pmstat    reg
	regsc                     reg

	oscReads  int
	csrReads  int
	modeReads int
}

func newClockSim(latency int) *clockSim {
	c := &clockSim{latency: latency}

	// Reset clocking: FIRC selected, RUN mode reported.
	c.csr.v = scsFIRC << scgSCSPos
	c.rccr.v = scsFIRC << scgSCSPos
	c.pmstat.v = smcStatRun

	c.sosccsr.onSet = func(r *reg, v uint32) {
		if v&scgSOSCEN != 0 && r.v&scgSOSCEN == 0 {
			c.oscReads = 0
		}
		r.v = v &^ scgSOSCVLD
	}
	c.sosccsr.onGet = func(r *reg) {
		if r.v&scgSOSCEN == 0 {
			return
		}
		if c.oscReads < c.latency {
			c.oscReads++
			return
		}
		r.v |= scgSOSCVLD
	}

	invalidate := func(r *reg, v uint32) {
		r.v = v
		c.csrReads = 0
	}
	c.rccr.onSet = invalidate
	c.vccr.onSet = invalidate
	c.hccr.onSet = invalidate

	c.csr.onGet = func(r *reg) {
		if c.csrReads < c.latency {
			c.csrReads++
			return
		}
		r.v = c.activeCCR().v
	}

	c.pmctrl.onSet = func(r *reg, v uint32) {
		if v&smcRUNMMask != r.v&smcRUNMMask {
			c.modeReads = 0
			c.csrReads = 0
		}
		r.v = v
	}
	c.pmstat.onGet = func(r *reg) {
		if c.stallModes {
			return
		}
		if c.modeReads < c.latency {
			c.modeReads++
			return
		}
		switch (c.pmctrl.v & smcRUNMMask) >> smcRUNMPos {
		case 0b10:
			r.v = smcStatVLPR
		case 0b11:
			r.v = smcStatHSRun
		default:
			r.v = smcStatRun
		}
	}
	return c
}

// activeCCR is the clock control register owning the system clock in the
// mode the SMC currently reports.
func (c *clockSim) activeCCR() *reg {
	switch c.pmstat.v {
	case smcStatVLPR:
		return &c.vccr
	case smcStatHSRun:
		return &c.hccr
	}
	return &c.rccr
}

func (c *clockSim) scgBlock() *periph.SCG {
	return &periph.SCG{
		CSR:     &c.csr,
		RCCR:    &c.rccr,
		VCCR:    &c.vccr,
		HCCR:    &c.hccr,
		SOSCCSR: &c.sosccsr,
		SOSCDIV: &c.soscdiv,
		SOSCCFG: &c.sosccfg,
	}
}

func (c *clockSim) smcBlock() *periph.SMC {
	return &periph.SMC{
		PMPROT: &c.pmprot,
		PMCTRL: &c.pmctrl,
		PMSTAT: &c.pmstat,
	}
}

func (c *clockSim) pmcBlock() *periph.PMC {
	return &periph.PMC{REGSC: &c.regsc}
}
