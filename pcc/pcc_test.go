package pcc_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jangala-dev/tinygo-s32k/pcc"
	"github.com/jangala-dev/tinygo-s32k/periph"
	"github.com/jangala-dev/tinygo-s32k/sim"
)

func newPcc(t *testing.T) (*pcc.Pcc, *periph.PCC) {
	t.Helper()
	p := sim.NewBoard().Peripherals()
	block, ok := p.TakePCC()
	require.True(t, ok)
	return pcc.New(block), block
}

func TestEnableGatesAreOneShot(t *testing.T) {
	p, _ := newPcc(t)

	require.NoError(t, p.EnablePortC())
	require.NoError(t, p.EnablePortD())
	require.NoError(t, p.EnablePortE())
	require.NoError(t, p.EnableCAN0())
	require.NoError(t, p.EnableLPUART1(pcc.SourceSOSCDIV2))

	assert.ErrorIs(t, p.EnablePortC(), pcc.ErrAlreadyEnabled)
	assert.ErrorIs(t, p.EnableCAN0(), pcc.ErrAlreadyEnabled)
	assert.ErrorIs(t, p.EnableLPUART1(pcc.SourceSOSCDIV2), pcc.ErrAlreadyEnabled)
}

func TestEnableLPUART1SelectsSource(t *testing.T) {
	p, block := newPcc(t)

	require.NoError(t, p.EnableLPUART1(pcc.SourceSIRCDIV2))

	v := block.LPUART1.Get()
	assert.NotZero(t, v&(1<<30), "clock gate open")
	assert.Equal(t, uint32(pcc.SourceSIRCDIV2), (v>>24)&0x7, "PCS field")
}

func TestMissingPeripheralIsReported(t *testing.T) {
	p, block := newPcc(t)

	// Clear the present bit the way a smaller package variant would.
	block.PORTE.Set(0)
	assert.ErrorIs(t, p.EnablePortE(), pcc.ErrNotPresent)
}
