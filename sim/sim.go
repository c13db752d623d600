//go:build !s32k144

// Package sim is a behavioural register-level model of the chip for host
// builds. NewBoard wires simulated register blocks into a peripheral
// distribution token, so the drivers run unchanged against it; the Board
// exposes the far side of each peripheral (the serial line, the CAN bus,
// virtual watchdog time, the crypto engine) as plain methods for tests and
// host tools. Acknowledgement latencies are modelled in units of register
// reads so bounded-poll paths get exercised without wall-clock time.
package sim

import "github.com/jangala-dev/tinygo-s32k/periph"

// reg is a simulated 32-bit register. Hooks run under the driver's Get and
// Set calls; a nil hook means plain storage.
type reg struct {
	v     uint32
	onGet func(r *reg)
	onSet func(r *reg, v uint32)
}

func (r *reg) Get() uint32 {
	if r.onGet != nil {
		r.onGet(r)
	}
	return r.v
}

func (r *reg) Set(v uint32) {
	if r.onSet != nil {
		r.onSet(r, v)
		return
	}
	r.v = v
}

// Default number of register reads before a simulated acknowledgement.
const defaultAckLatency = 2

// Board is one simulated chip instance. Boards are independent; tests
// create one each.
type Board struct {
	clock  *clockSim
	wd     *watchdogSim
	can    *canSim
	serial *serialSim
	crypto *cryptoSim

	pcc struct {
		portC, portD, portE, lpuart1, flexCAN0 reg
	}

	token *periph.Peripherals
}

// PR bit of a PCC gate register: the peripheral is present on this chip.
const pccPR = 1 << 31

// NewBoard builds a fresh simulated chip and its peripheral distribution
// token.
func NewBoard() *Board {
	b := &Board{
		clock:  newClockSim(defaultAckLatency),
		wd:     newWatchdogSim(),
		can:    newCanSim(),
		serial: newSerialSim(),
		crypto: newCryptoSim(defaultAckLatency),
	}
	for _, r := range []*reg{
		&b.pcc.portC, &b.pcc.portD, &b.pcc.portE,
		&b.pcc.lpuart1, &b.pcc.flexCAN0,
	} {
		r.v = pccPR
	}
	pcc := &periph.PCC{
		PORTC:    &b.pcc.portC,
		PORTD:    &b.pcc.portD,
		PORTE:    &b.pcc.portE,
		LPUART1:  &b.pcc.lpuart1,
		FlexCAN0: &b.pcc.flexCAN0,
	}
	b.token = periph.New(periph.Blocks{
		SCG:     b.clock.scgBlock(),
		SMC:     b.clock.smcBlock(),
		PMC:     b.clock.pmcBlock(),
		PCC:     pcc,
		WDOG:    b.wd.block(),
		CAN0:    b.can.block(),
		LPUART1: b.serial.block(),
		FTFC:    b.crypto.ftfcBlock(),
		CSEPRAM: b.crypto.pramBlock(),
	})
	return b
}

// Peripherals returns the board's distribution token. Like the hardware
// token it is a singleton per board; callers split it once.
func (b *Board) Peripherals() *periph.Peripherals { return b.token }

// SetPowerModeStall makes the mode controller stop acknowledging power mode
// changes, so transitions run into their poll budget.
func (b *Board) SetPowerModeStall(stall bool) { b.clock.stallModes = stall }

// SetCryptoStall makes the crypto engine stop raising its completion flag,
// so commands run into their poll budget.
func (b *Board) SetCryptoStall(stall bool) { b.crypto.stall = stall }
