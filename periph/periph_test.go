package periph_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jangala-dev/tinygo-s32k/sim"
)

func TestTakeHandsOutEachBlockOnce(t *testing.T) {
	p := sim.NewBoard().Peripherals()

	scg, ok := p.TakeSCG()
	require.True(t, ok)
	require.NotNil(t, scg)

	again, ok := p.TakeSCG()
	assert.False(t, ok)
	assert.Nil(t, again)
}

func TestTakeCoversEveryBlock(t *testing.T) {
	p := sim.NewBoard().Peripherals()

	checks := []struct {
		name string
		take func() bool
	}{
		{"SCG", func() bool { b, ok := p.TakeSCG(); return ok && b != nil }},
		{"SMC", func() bool { b, ok := p.TakeSMC(); return ok && b != nil }},
		{"PMC", func() bool { b, ok := p.TakePMC(); return ok && b != nil }},
		{"PCC", func() bool { b, ok := p.TakePCC(); return ok && b != nil }},
		{"WDOG", func() bool { b, ok := p.TakeWDOG(); return ok && b != nil }},
		{"CAN0", func() bool { b, ok := p.TakeCAN0(); return ok && b != nil }},
		{"LPUART1", func() bool { b, ok := p.TakeLPUART1(); return ok && b != nil }},
		{"FTFC", func() bool { b, ok := p.TakeFTFC(); return ok && b != nil }},
		{"CSEPRAM", func() bool { b, ok := p.TakeCSEPRAM(); return ok && b != nil }},
	}
	for _, c := range checks {
		assert.True(t, c.take(), "first take of %s", c.name)
		assert.False(t, c.take(), "second take of %s", c.name)
	}
}

func TestBoardsAreIndependent(t *testing.T) {
	a := sim.NewBoard().Peripherals()
	b := sim.NewBoard().Peripherals()

	_, ok := a.TakeWDOG()
	require.True(t, ok)

	// Claiming on one board does not consume the other's block.
	_, ok = b.TakeWDOG()
	assert.True(t, ok)
}
