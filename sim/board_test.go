package sim_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jangala-dev/tinygo-s32k/csec"
	"github.com/jangala-dev/tinygo-s32k/flexcan"
	"github.com/jangala-dev/tinygo-s32k/lpuart"
	"github.com/jangala-dev/tinygo-s32k/pc"
	"github.com/jangala-dev/tinygo-s32k/pcc"
	"github.com/jangala-dev/tinygo-s32k/sim"
	"github.com/jangala-dev/tinygo-s32k/wdog"
)

// TestBoardBringUp walks the full power-on path an application takes:
// clocks first, then gates, then the peripheral drivers, with the watchdog
// serviced along the way.
func TestBoardBringUp(t *testing.T) {
	board := sim.NewBoard()
	p := board.Peripherals()

	scg, ok := p.TakeSCG()
	require.True(t, ok)
	smc, ok := p.TakeSMC()
	require.True(t, ok)
	pmc, ok := p.TakePMC()
	require.True(t, ok)
	pccBlock, ok := p.TakePCC()
	require.True(t, ok)
	wdogBlock, ok := p.TakeWDOG()
	require.True(t, ok)
	canBlock, ok := p.TakeCAN0()
	require.True(t, ok)
	uartBlock, ok := p.TakeLPUART1()
	require.True(t, ok)
	ftfc, ok := p.TakeFTFC()
	require.True(t, ok)
	pram, ok := p.TakeCSEPRAM()
	require.True(t, ok)

	// Clocking: 8 MHz crystal, full-speed core, soscdiv2 feeding the
	// peripherals.
	clocks := pc.New(scg, smc, pmc)
	require.NoError(t, clocks.Configure(pc.Config{
		Source: pc.SourceSOSC,
		Oscillator: pc.Oscillator{
			Kind:      pc.OscCrystal,
			Frequency: 8_000_000,
		},
		SOSCDIV2: pc.OscDiv1,
	}))
	assert.Equal(t, uint32(8_000_000), clocks.CurrentFrequency())
	periphClock, ok := clocks.SOSCDIV2Frequency()
	require.True(t, ok)

	// Gates before register access.
	gates := pcc.New(pccBlock)
	require.NoError(t, gates.EnableCAN0())
	require.NoError(t, gates.EnableLPUART1(pcc.SourceSOSCDIV2))

	// Watchdog armed before the buses come up.
	guard := wdog.New(wdogBlock)
	require.NoError(t, guard.Init(wdog.Config{TimeoutMillis: 1000}))

	// CAN: enqueue one frame, let the bus take it, watch the buffer
	// return to the pool.
	can := flexcan.New(canBlock)
	require.NoError(t, can.Configure(flexcan.Settings{
		SourceFrequency: periphClock,
		BitRate:         500_000,
	}))
	frame, err := flexcan.NewFrame(0x123, []byte{1, 2, 3, 4})
	require.NoError(t, err)
	h, err := can.Enqueue(frame, 0)
	require.NoError(t, err)

	code, err := can.BufferCode(h)
	require.NoError(t, err)
	assert.Equal(t, flexcan.CodeTxData, code)

	sent := board.CompleteCANTransmit()
	require.Len(t, sent, 1)
	assert.Equal(t, frame, sent[0])

	code, err = can.BufferCode(h)
	require.NoError(t, err)
	assert.Equal(t, flexcan.CodeTxInactive, code)

	// UART console on the same interface clock.
	console := lpuart.New(uartBlock)
	require.NoError(t, console.Configure(lpuart.Config{
		BaudRate:        115200,
		SourceFrequency: periphClock,
	}))
	_, err = console.Write([]byte("boot ok\r\n"))
	require.NoError(t, err)
	require.NoError(t, console.Flush())
	assert.Equal(t, "boot ok\r\n", string(board.SerialOutput()))

	// Crypto engine: authenticate the frame payload.
	engine := csec.New(ftfc, pram, 0)
	var key [16]byte
	copy(key[:], "vehicle mac key!")
	require.NoError(t, engine.LoadPlainKey(key))
	mac, err := engine.GenerateMAC(csec.SlotRAMKey, frame.Data[:frame.Len])
	require.NoError(t, err)
	verified, err := engine.VerifyMAC(csec.SlotRAMKey, frame.Data[:frame.Len], mac)
	require.NoError(t, err)
	assert.True(t, verified)

	// Still alive: the watchdog was never missed.
	board.AdvanceWatchdog(500)
	require.NoError(t, guard.Refresh())
	assert.Zero(t, board.WatchdogResets())
}
