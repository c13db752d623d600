//go:build s32k144

package periph

import (
	"github.com/jangala-dev/tinygo-s32k/mmio"
)

// Block base addresses and register offsets, S32K144 reference manual.
const (
	scgBase    uintptr = 0x4006_4000
	smcBase    uintptr = 0x4007_E000
	pmcBase    uintptr = 0x4007_D000
	pccBase    uintptr = 0x4006_5000
	wdogBase   uintptr = 0x4005_2000
	can0Base   uintptr = 0x4002_4000
	lpuartBase uintptr = 0x4006_B000 // LPUART1
	ftfcBase   uintptr = 0x4002_0000
	pramBase   uintptr = 0x1400_8000
)

var taken bool

// Take claims the hardware peripheral map. It succeeds exactly once per
// reset; later calls return (nil, false). Bring-up code should call this
// first and split the token from there.
func Take() (*Peripherals, bool) {
	state := mmio.DisableInterrupts()
	defer mmio.RestoreInterrupts(state)
	if taken {
		return nil, false
	}
	taken = true
	return New(hardwareBlocks()), true
}

func hardwareBlocks() Blocks {
	can := &FlexCAN{
		MCR:    mmio.At(can0Base + 0x00),
		CTRL1:  mmio.At(can0Base + 0x04),
		IMASK1: mmio.At(can0Base + 0x28),
		IFLAG1: mmio.At(can0Base + 0x30),
	}
	for i := 0; i < NumMessageBuffers; i++ {
		mb := can0Base + 0x80 + uintptr(i)*16
		can.MB[i] = MessageBuffer{
			CS:    mmio.At(mb + 0x0),
			ID:    mmio.At(mb + 0x4),
			Word0: mmio.At(mb + 0x8),
			Word1: mmio.At(mb + 0xC),
		}
		can.RXIMR[i] = mmio.At(can0Base + 0x880 + uintptr(i)*4)
	}

	pram := &CSEPRAM{}
	for i := 0; i < CSEPRAMPages; i++ {
		pram.RAM[i] = mmio.At(pramBase + uintptr(i)*4)
	}

	return Blocks{
		SCG: &SCG{
			CSR:     mmio.At(scgBase + 0x010),
			RCCR:    mmio.At(scgBase + 0x014),
			VCCR:    mmio.At(scgBase + 0x018),
			HCCR:    mmio.At(scgBase + 0x01C),
			SOSCCSR: mmio.At(scgBase + 0x100),
			SOSCDIV: mmio.At(scgBase + 0x104),
			SOSCCFG: mmio.At(scgBase + 0x108),
		},
		SMC: &SMC{
			PMPROT: mmio.At(smcBase + 0x08),
			PMCTRL: mmio.At(smcBase + 0x0C),
			PMSTAT: mmio.At(smcBase + 0x14),
		},
		PMC: &PMC{
			// 32-bit view of the REGSC byte lane.
			REGSC: mmio.At(pmcBase + 0x0),
		},
		PCC: &PCC{
			PORTC:    mmio.At(pccBase + 0x124),
			PORTD:    mmio.At(pccBase + 0x128),
			PORTE:    mmio.At(pccBase + 0x12C),
			LPUART1:  mmio.At(pccBase + 0x1AC),
			FlexCAN0: mmio.At(pccBase + 0x090),
		},
		WDOG: &WDOG{
			CS:    mmio.At(wdogBase + 0x0),
			CNT:   mmio.At(wdogBase + 0x4),
			TOVAL: mmio.At(wdogBase + 0x8),
			WIN:   mmio.At(wdogBase + 0xC),
		},
		CAN0: can,
		LPUART1: &LPUART{
			BAUD:  mmio.At(lpuartBase + 0x10),
			STAT:  mmio.At(lpuartBase + 0x14),
			CTRL:  mmio.At(lpuartBase + 0x18),
			DATA:  mmio.At(lpuartBase + 0x1C),
			FIFO:  mmio.At(lpuartBase + 0x28),
			WATER: mmio.At(lpuartBase + 0x2C),
		},
		FTFC: &FTFC{
			// 32-bit view of the FSTAT byte lane; CCIF is bit 7.
			FSTAT: mmio.At(ftfcBase + 0x0),
		},
		CSEPRAM: pram,
	}
}
