package periph

import "github.com/jangala-dev/tinygo-s32k/mmio"

// Register blocks, one struct per hardware block, with the named fields the
// drivers address. Field names follow the reference manual so register-level
// code reads against the datasheet.

// SCG is the System Clock Generator block.
type SCG struct {
	CSR     mmio.Reg32 // current system clock source and dividers (read-only)
	RCCR    mmio.Reg32 // RUN mode clock control
	VCCR    mmio.Reg32 // VLPR mode clock control
	HCCR    mmio.Reg32 // HSRUN mode clock control
	SOSCCSR mmio.Reg32 // system oscillator control/status
	SOSCDIV mmio.Reg32 // system oscillator dividers
	SOSCCFG mmio.Reg32 // system oscillator configuration
}

// SMC is the System Mode Controller block.
type SMC struct {
	PMPROT mmio.Reg32 // allowed power modes
	PMCTRL mmio.Reg32 // power mode control
	PMSTAT mmio.Reg32 // current power mode status
}

// PMC is the Power Management Controller block.
type PMC struct {
	REGSC mmio.Reg32 // regulator status and control
}

// PCC is the Peripheral Clock Controller block: one gate register per
// peripheral this module drives.
type PCC struct {
	PORTC    mmio.Reg32
	PORTD    mmio.Reg32
	PORTE    mmio.Reg32
	LPUART1  mmio.Reg32
	FlexCAN0 mmio.Reg32
}

// WDOG is the watchdog timer block.
type WDOG struct {
	CS    mmio.Reg32 // control and status
	CNT   mmio.Reg32 // counter; also the unlock/refresh write port
	TOVAL mmio.Reg32 // timeout value
	WIN   mmio.Reg32 // window value
}

// MessageBuffer is one FlexCAN hardware message buffer.
type MessageBuffer struct {
	CS    mmio.Reg32 // code, DLC, IDE/RTR flags
	ID    mmio.Reg32 // frame identifier and local tx priority
	Word0 mmio.Reg32 // payload bytes 0..3
	Word1 mmio.Reg32 // payload bytes 4..7
}

// NumMessageBuffers is the size of the hardware message buffer pool used by
// this module.
const NumMessageBuffers = 16

// FlexCAN is the CAN controller block.
type FlexCAN struct {
	MCR    mmio.Reg32 // module configuration
	CTRL1  mmio.Reg32 // bit timing and mode control
	IFLAG1 mmio.Reg32 // per-buffer interrupt flags
	IMASK1 mmio.Reg32 // per-buffer interrupt masks
	MB     [NumMessageBuffers]MessageBuffer
	RXIMR  [NumMessageBuffers]mmio.Reg32 // individual rx mask registers
}

// LPUART is the low-power UART block.
type LPUART struct {
	BAUD  mmio.Reg32 // baud divisor and stop bits
	STAT  mmio.Reg32 // line status flags
	CTRL  mmio.Reg32 // enables, format, interrupt enables
	DATA  mmio.Reg32 // FIFO data port
	FIFO  mmio.Reg32 // FIFO enables and flush
	WATER mmio.Reg32 // watermarks and live FIFO counts
}

// FTFC is the flash controller block; the CSEc handshake only needs its
// status register.
type FTFC struct {
	FSTAT mmio.Reg32 // CCIF completion flag lives here
}

// CSEPRAMPages is the number of 32-bit CSE PRAM page words.
const CSEPRAMPages = 32

// CSEPRAM is the CSEc command RAM: 32 word-wide pages. Page 0 holds the
// command header, pages 1..7 carry command data.
type CSEPRAM struct {
	RAM [CSEPRAMPages]mmio.Reg32
}
