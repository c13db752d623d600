// Package pc drives power and clocking for the chip: the System Clock
// Generator (SCG), System Mode Controller (SMC) and Power Management
// Controller (PMC) blocks. Every other driver assumes a stable core clock,
// so the application configures this controller first and reads the
// resulting frequency through CurrentFrequency.
package pc

import (
	"errors"

	"github.com/jangala-dev/tinygo-s32k/mmio"
	"github.com/jangala-dev/tinygo-s32k/periph"
	"github.com/jangala-dev/tinygo-s32k/poll"
)

var (
	ErrAlreadyConfigured  = errors.New("pc: clock configuration already applied")
	ErrNotConfigured      = errors.New("pc: controller not configured")
	ErrInvalidTransition  = errors.New("pc: power mode transition not in mode graph")
	ErrTimeout            = errors.New("pc: hardware did not acknowledge within poll budget")
	ErrNoSystemOscillator = errors.New("pc: clock source needs a system oscillator input")
	ErrUnsupportedSource  = errors.New("pc: clock source not supported")
)

// PowerMode is one of the chip's run modes. Stop modes are out of scope.
type PowerMode uint8

const (
	// Run is the normal run mode; the chip boots into it.
	Run PowerMode = iota
	// HighSpeedRun raises the core clock ceiling. FIRC only here.
	HighSpeedRun
	// VeryLowPowerRun drops the regulator into low power. SIRC only.
	VeryLowPowerRun
)

func (m PowerMode) String() string {
	switch m {
	case Run:
		return "RUN"
	case HighSpeedRun:
		return "HSRUN"
	case VeryLowPowerRun:
		return "VLPR"
	}
	return "unknown"
}

// ClockSource selects the system clock source. Values are the SCS field
// encodings of the SCG clock control registers.
type ClockSource uint8

const (
	SourceSOSC ClockSource = 0b0001 // system oscillator
	SourceSIRC ClockSource = 0b0010 // slow internal reference, 8 MHz
	SourceFIRC ClockSource = 0b0011 // fast internal reference, 48 MHz
	SourceSPLL ClockSource = 0b0110 // system PLL (not supported)
)

// Internal reference clock frequencies.
const (
	fircFrequency = 48_000_000
	sircFrequency = 8_000_000
)

// OscillatorKind says what is wired to the XTAL/EXTAL pins.
type OscillatorKind uint8

const (
	// OscNone: no crystal and no external reference.
	OscNone OscillatorKind = iota
	// OscCrystal: a crystal between XTAL and EXTAL.
	OscCrystal
	// OscReference: an external clock into EXTAL.
	OscReference
)

// Oscillator describes the system oscillator input.
type Oscillator struct {
	Kind OscillatorKind
	// Frequency of the crystal or reference in Hz. Ignored for OscNone.
	Frequency uint32
}

func (o Oscillator) frequency() (uint32, bool) {
	if o.Kind == OscNone {
		return 0, false
	}
	return o.Frequency, true
}

// OscDiv is a divider for the soscdiv1/soscdiv2 peripheral clocks.
// Zero disables the output; n divides by 2^(n-1).
type OscDiv uint8

const (
	OscDivDisable OscDiv = iota
	OscDiv1
	OscDiv2
	OscDiv4
	OscDiv8
	OscDiv16
	OscDiv32
	OscDiv64
)

// CoreDiv divides the selected source down to CORE_CLK/SYS_CLK.
// The register field holds n-1, so the valid range is 1..16.
type CoreDiv uint8

// Config is the clock configuration. It is immutable once Configure has
// succeeded.
type Config struct {
	// Source selects the system clock source for RUN mode.
	// Zero value selects FIRC, matching the chip's reset clocking.
	Source ClockSource

	// CoreDiv divides the source down to the core clock. Zero means 1.
	CoreDiv CoreDiv

	// Oscillator describes the XTAL/EXTAL input. Required for SourceSOSC.
	Oscillator Oscillator

	// SOSCDIV1 and SOSCDIV2 set the oscillator-derived peripheral clocks.
	// Keep these at 40 MHz or below in RUN mode.
	SOSCDIV1 OscDiv
	SOSCDIV2 OscDiv

	// PollBudget bounds every hardware acknowledgement wait.
	// Zero means poll.DefaultBudget.
	PollBudget int
}

// SCG register fields.
const (
	sosccsrSOSCEN  = 1 << 0
	sosccsrSOSCVLD = 1 << 24

	sosccfgEREFS    = 1 << 2
	sosccfgHGO      = 1 << 3
	sosccfgRangePos = 4

	soscdivDIV1Pos = 0
	soscdivDIV2Pos = 8

	ccrDIVCOREPos = 16
	ccrSCSPos     = 24
	ccrSCSMask    = 0xF
)

// SMC register fields.
const (
	pmprotAVLP   = 1 << 5
	pmprotAHSRUN = 1 << 7

	pmctrlRUNMPos  = 5
	pmctrlRUNMMask = 0x3

	runmRun   = 0b00
	runmVLPR  = 0b10
	runmHSRun = 0b11

	pmstatRun   = 0x01
	pmstatVLPR  = 0x04
	pmstatHSRun = 0x80
)

// Controller owns the SCG, SMC and PMC blocks.
type Controller struct {
	scg *periph.SCG
	smc *periph.SMC
	pmc *periph.PMC

	configured bool
	mode       PowerMode
	cfg        Config
	budget     int
}

// New builds the controller from its register blocks. The blocks come from
// splitting the peripheral distribution token, so exactly one controller can
// exist.
func New(scg *periph.SCG, smc *periph.SMC, pmc *periph.PMC) *Controller {
	return &Controller{scg: scg, smc: smc, pmc: pmc}
}

// Configure applies the clock configuration and brings the chip to a stable
// RUN state on the selected source. It is callable once: the configuration
// is immutable after success. On ErrTimeout no state is recorded and the
// hardware is left on its reset clocking, safe to retry.
func (c *Controller) Configure(cfg Config) error {
	if c.configured {
		return ErrAlreadyConfigured
	}
	if cfg.Source == 0 {
		cfg.Source = SourceFIRC
	}
	if cfg.CoreDiv == 0 {
		cfg.CoreDiv = 1
	}
	if cfg.PollBudget == 0 {
		cfg.PollBudget = poll.DefaultBudget
	}
	switch cfg.Source {
	case SourceSOSC:
		if cfg.Oscillator.Kind == OscNone {
			return ErrNoSystemOscillator
		}
	case SourceSIRC, SourceFIRC:
	case SourceSPLL:
		return ErrUnsupportedSource
	default:
		return ErrUnsupportedSource
	}

	if err := c.setupOscillator(cfg); err != nil {
		return err
	}

	// Oscillator-derived peripheral clocks.
	mmio.ReplaceBits(c.scg.SOSCDIV, uint32(cfg.SOSCDIV1), 0x7, soscdivDIV1Pos)
	mmio.ReplaceBits(c.scg.SOSCDIV, uint32(cfg.SOSCDIV2), 0x7, soscdivDIV2Pos)

	// Allow later transitions into HSRUN and VLPR. PMPROT is write-once
	// per reset, so this happens here rather than in TransitionPowerMode.
	c.smc.PMPROT.Set(pmprotAHSRUN | pmprotAVLP)

	// Program the per-mode clock control registers up front; a mode
	// transition then only touches the SMC.
	divcore := uint32(cfg.CoreDiv - 1)
	c.writeClockControl(c.scg.RCCR, uint32(cfg.Source), divcore)
	c.writeClockControl(c.scg.VCCR, uint32(SourceSIRC), divcore)
	c.writeClockControl(c.scg.HCCR, uint32(SourceFIRC), divcore)

	// Wait for the system clock to actually switch.
	if !poll.Until(cfg.PollBudget, func() bool {
		return mmio.FieldGet(c.scg.CSR, ccrSCSMask, ccrSCSPos) == uint32(cfg.Source)
	}) {
		return ErrTimeout
	}

	// Latch RUN mode and wait for the SMC to report it.
	mmio.ReplaceBits(c.smc.PMCTRL, runmRun, pmctrlRUNMMask, pmctrlRUNMPos)
	if !poll.Until(cfg.PollBudget, func() bool {
		return c.smc.PMSTAT.Get() == pmstatRun
	}) {
		return ErrTimeout
	}

	c.cfg = cfg
	c.budget = cfg.PollBudget
	c.mode = Run
	c.configured = true
	return nil
}

func (c *Controller) setupOscillator(cfg Config) error {
	switch cfg.Oscillator.Kind {
	case OscNone:
		mmio.ClearBits(c.scg.SOSCCSR, sosccsrSOSCEN)
		return nil
	case OscCrystal:
		mmio.SetBits(c.scg.SOSCCFG, sosccfgEREFS|sosccfgHGO)
		rng := uint32(0b10) // medium range
		if cfg.Oscillator.Frequency >= 8_000_000 {
			rng = 0b11
		}
		mmio.ReplaceBits(c.scg.SOSCCFG, rng, 0x3, sosccfgRangePos)
	case OscReference:
		mmio.SetBits(c.scg.SOSCCFG, sosccfgEREFS)
	}
	mmio.SetBits(c.scg.SOSCCSR, sosccsrSOSCEN)
	if !poll.Until(cfg.PollBudget, func() bool {
		return mmio.HasBits(c.scg.SOSCCSR, sosccsrSOSCVLD)
	}) {
		return ErrTimeout
	}
	return nil
}

func (c *Controller) writeClockControl(ccr mmio.Reg32, scs, divcore uint32) {
	mmio.ReplaceBits(ccr, divcore, 0xF, ccrDIVCOREPos)
	mmio.ReplaceBits(ccr, scs, ccrSCSMask, ccrSCSPos)
}

// Allowed edges of the power mode graph. HSRUN and VLPR only reach each
// other through RUN.
var modeGraph = map[PowerMode][]PowerMode{
	Run:             {HighSpeedRun, VeryLowPowerRun},
	HighSpeedRun:    {Run},
	VeryLowPowerRun: {Run},
}

func edgeAllowed(from, to PowerMode) bool {
	for _, m := range modeGraph[from] {
		if m == to {
			return true
		}
	}
	return false
}

// TransitionPowerMode moves the chip along one edge of the power mode graph.
// An edge not in the graph is rejected with ErrInvalidTransition before any
// register is written. If the SMC does not acknowledge the new mode within
// the poll budget, the previous mode is latched back and ErrTimeout is
// returned: the controller never stays mid-transition.
func (c *Controller) TransitionPowerMode(mode PowerMode) error {
	if !c.configured {
		return ErrNotConfigured
	}
	if mode == c.mode {
		return nil
	}
	if !edgeAllowed(c.mode, mode) {
		return ErrInvalidTransition
	}

	prev := c.mode
	mmio.ReplaceBits(c.smc.PMCTRL, runm(mode), pmctrlRUNMMask, pmctrlRUNMPos)
	if !poll.Until(c.budget, func() bool {
		return c.smc.PMSTAT.Get() == pmstat(mode)
	}) {
		// Fall back to the last known stable mode.
		mmio.ReplaceBits(c.smc.PMCTRL, runm(prev), pmctrlRUNMMask, pmctrlRUNMPos)
		return ErrTimeout
	}
	c.mode = mode
	return nil
}

func runm(m PowerMode) uint32 {
	switch m {
	case HighSpeedRun:
		return runmHSRun
	case VeryLowPowerRun:
		return runmVLPR
	}
	return runmRun
}

func pmstat(m PowerMode) uint32 {
	switch m {
	case HighSpeedRun:
		return pmstatHSRun
	case VeryLowPowerRun:
		return pmstatVLPR
	}
	return pmstatRun
}

// Mode returns the current power mode.
func (c *Controller) Mode() PowerMode { return c.mode }

// Configured reports whether a clock configuration has been applied.
func (c *Controller) Configured() bool { return c.configured }

// CurrentFrequency returns the CORE_CLK frequency in Hz for the current
// power mode, or 0 before configuration. Downstream drivers derive their
// timing from this.
func (c *Controller) CurrentFrequency() uint32 {
	if !c.configured {
		return 0
	}
	div := uint32(c.cfg.CoreDiv)
	switch c.activeSource() {
	case SourceSOSC:
		f, _ := c.cfg.Oscillator.frequency()
		return f / div
	case SourceSIRC:
		return sircFrequency / div
	case SourceFIRC:
		return fircFrequency / div
	}
	return 0
}

// activeSource is the source the current mode's clock control register
// selects; VLPR and HSRUN pin their own sources.
func (c *Controller) activeSource() ClockSource {
	switch c.mode {
	case VeryLowPowerRun:
		return SourceSIRC
	case HighSpeedRun:
		return SourceFIRC
	}
	return c.cfg.Source
}

// SOSCDIV1Frequency returns the soscdiv1 peripheral clock in Hz, false when
// the output is disabled or no oscillator is configured.
func (c *Controller) SOSCDIV1Frequency() (uint32, bool) {
	return c.oscDivFrequency(c.cfg.SOSCDIV1)
}

// SOSCDIV2Frequency returns the soscdiv2 peripheral clock in Hz, false when
// the output is disabled or no oscillator is configured. LPUART and FlexCAN
// interface clocks commonly run off this output.
func (c *Controller) SOSCDIV2Frequency() (uint32, bool) {
	return c.oscDivFrequency(c.cfg.SOSCDIV2)
}

func (c *Controller) oscDivFrequency(d OscDiv) (uint32, bool) {
	f, ok := c.cfg.Oscillator.frequency()
	if !ok || d == OscDivDisable {
		return 0, false
	}
	return f / (1 << (uint(d) - 1)), true
}
