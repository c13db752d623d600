package flexcan_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jangala-dev/tinygo-s32k/flexcan"
	"github.com/jangala-dev/tinygo-s32k/periph"
	"github.com/jangala-dev/tinygo-s32k/sim"
)

func newController(t *testing.T, s flexcan.Settings) (*flexcan.Controller, *sim.Board) {
	t.Helper()
	board := sim.NewBoard()
	block, ok := board.Peripherals().TakeCAN0()
	require.True(t, ok)
	c := flexcan.New(block)
	if s.SourceFrequency == 0 {
		s.SourceFrequency = 8_000_000
	}
	require.NoError(t, c.Configure(s))
	return c, board
}

func TestNewFrameValidation(t *testing.T) {
	f, err := flexcan.NewFrame(0x123, []byte{1, 2, 3})
	require.NoError(t, err)
	assert.False(t, f.Extended)
	assert.Equal(t, uint8(3), f.Len)

	f, err = flexcan.NewFrame(0x1234, []byte{1})
	require.NoError(t, err)
	assert.True(t, f.Extended, "beyond 11 bits picks the extended format")

	_, err = flexcan.NewFrame(0x2000_0000, nil)
	assert.ErrorIs(t, err, flexcan.ErrInvalidID)

	_, err = flexcan.NewFrame(0x123, make([]byte, 9))
	assert.ErrorIs(t, err, flexcan.ErrInvalidLen)
}

func TestFilterAccepts(t *testing.T) {
	flt := flexcan.Filter{ID: 0x120, Mask: 0x7F0}

	accept, _ := flexcan.NewFrame(0x123, nil)
	reject, _ := flexcan.NewFrame(0x200, nil)
	ext, _ := flexcan.NewFrame(0x12345, nil)

	assert.True(t, flt.Accepts(accept))
	assert.False(t, flt.Accepts(reject))
	assert.False(t, flt.Accepts(ext), "format must match")
}

func TestConfigureRejectsUnreachableBitRate(t *testing.T) {
	board := sim.NewBoard()
	block, ok := board.Peripherals().TakeCAN0()
	require.True(t, ok)
	c := flexcan.New(block)

	err := c.Configure(flexcan.Settings{
		SourceFrequency: 1_000_000,
		BitRate:         500_000,
	})
	assert.ErrorIs(t, err, flexcan.ErrBadBitRate)
}

func TestEnqueueTransmitLifecycle(t *testing.T) {
	c, board := newController(t, flexcan.Settings{})

	f, err := flexcan.NewFrame(0x123, []byte{1, 2, 3, 4})
	require.NoError(t, err)

	h, err := c.Enqueue(f, 0)
	require.NoError(t, err)

	code, err := c.BufferCode(h)
	require.NoError(t, err)
	assert.Equal(t, flexcan.CodeTxData, code, "pending before bus access")

	sent := board.CompleteCANTransmit()
	require.Len(t, sent, 1)
	assert.Equal(t, uint32(0x123), sent[0].ID)
	assert.Equal(t, uint8(4), sent[0].Len)
	assert.Equal(t, [8]byte{1, 2, 3, 4}, sent[0].Data)

	code, err = c.BufferCode(h)
	require.NoError(t, err)
	assert.Equal(t, flexcan.CodeTxInactive, code, "returned to the pool")
}

func TestEnqueuePoolExhaustion(t *testing.T) {
	c, board := newController(t, flexcan.Settings{})

	f, err := flexcan.NewFrame(0x42, []byte{0xAA})
	require.NoError(t, err)

	// Half the pool is receive buffers by default.
	txBuffers := periph.NumMessageBuffers / 2
	for i := 0; i < txBuffers; i++ {
		_, err := c.Enqueue(f, 0)
		require.NoError(t, err, "buffer %d", i)
	}
	_, err = c.Enqueue(f, 0)
	assert.ErrorIs(t, err, flexcan.ErrPoolExhausted)

	// Completion frees the pool again.
	board.CompleteCANTransmit()
	_, err = c.Enqueue(f, 0)
	assert.NoError(t, err)
}

func TestExtendedFrameRoundTrip(t *testing.T) {
	c, board := newController(t, flexcan.Settings{})

	f, err := flexcan.NewFrame(0xABCDE, []byte{9, 8, 7})
	require.NoError(t, err)

	_, err = c.Enqueue(f, 0)
	require.NoError(t, err)

	sent := board.CompleteCANTransmit()
	require.Len(t, sent, 1)
	assert.True(t, sent[0].Extended)
	assert.Equal(t, uint32(0xABCDE), sent[0].ID)
}

func TestReceivePath(t *testing.T) {
	c, board := newController(t, flexcan.Settings{})

	got, err := c.PollReceive()
	require.NoError(t, err)
	assert.Nil(t, got, "no traffic yet")

	f, err := flexcan.NewFrame(0x321, []byte{5, 6})
	require.NoError(t, err)
	require.True(t, board.InjectCANFrame(f))

	c.ServiceInterrupt()
	select {
	case <-c.Readable():
	case <-time.After(100 * time.Millisecond):
		t.Fatal("no readable notification")
	}

	got, err = c.PollReceive()
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, uint32(0x321), got.ID)
	assert.Equal(t, uint8(2), got.Len)
	assert.Equal(t, byte(5), got.Data[0])
	assert.Equal(t, byte(6), got.Data[1])

	got, err = c.PollReceive()
	require.NoError(t, err)
	assert.Nil(t, got, "buffer re-armed empty")
}

func TestFilterProgramsReceiveBuffers(t *testing.T) {
	c, board := newController(t, flexcan.Settings{})

	require.NoError(t, c.SetFilter(flexcan.Filter{ID: 0x100, Mask: 0x700}))

	match, _ := flexcan.NewFrame(0x155, nil)
	miss, _ := flexcan.NewFrame(0x255, nil)

	assert.True(t, board.InjectCANFrame(match))
	assert.False(t, board.InjectCANFrame(miss), "masked out by every buffer")
}

func TestExtendedFilterSurvivesRearm(t *testing.T) {
	c, board := newController(t, flexcan.Settings{RxBuffers: 1})

	require.NoError(t, c.SetFilter(flexcan.Filter{
		ID:       0x12345,
		Mask:     0x1FFF_FFFF,
		Extended: true,
	}))

	// Receiving through the buffer must not strip the IDE bit the filter
	// programmed, or the second matching frame bounces off a buffer that
	// suddenly expects standard frames.
	for i := byte(1); i <= 2; i++ {
		f, err := flexcan.NewFrame(0x12345, []byte{i})
		require.NoError(t, err)
		require.True(t, board.InjectCANFrame(f), "frame %d rejected", i)

		got, err := c.PollReceive()
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.True(t, got.Extended)
		assert.Equal(t, byte(i), got.Data[0])
	}
}

func TestFilterUnfreezeTimeoutDropsController(t *testing.T) {
	c, board := newController(t, flexcan.Settings{PollBudget: 16})
	board.SetCANFreezeStall(true)

	err := c.SetFilter(flexcan.Filter{ID: 0x100, Mask: 0x700})
	assert.ErrorIs(t, err, flexcan.ErrTimeout)

	// Stuck frozen: the controller stops pretending it can transmit.
	f, _ := flexcan.NewFrame(0x1, nil)
	_, err = c.Enqueue(f, 0)
	assert.ErrorIs(t, err, flexcan.ErrNotConfigured)

	// A fresh Configure recovers once the engine responds again.
	board.SetCANFreezeStall(false)
	require.NoError(t, c.Configure(flexcan.Settings{SourceFrequency: 8_000_000}))
	_, err = c.Enqueue(f, 0)
	assert.NoError(t, err)
}

func TestLoopbackDeliversOwnFrames(t *testing.T) {
	c, board := newController(t, flexcan.Settings{
		Loopback:      true,
		SelfReception: true,
	})

	f, err := flexcan.NewFrame(0x077, []byte{0xDE, 0xAD})
	require.NoError(t, err)
	_, err = c.Enqueue(f, 0)
	require.NoError(t, err)

	board.CompleteCANTransmit()

	got, err := c.PollReceive()
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, uint32(0x077), got.ID)
	assert.Equal(t, byte(0xDE), got.Data[0])
	assert.Equal(t, byte(0xAD), got.Data[1])
}

func TestCorruptedBufferCodeSurfaces(t *testing.T) {
	c, board := newController(t, flexcan.Settings{})

	// A receive buffer presenting a busy pattern is reported, not skipped.
	board.CorruptBufferCode(0, 0b0011)
	_, err := c.PollReceive()
	assert.ErrorIs(t, err, flexcan.ErrInvalidCode)

	// Same on the transmit side: Enqueue refuses to guess.
	board.CorruptBufferCode(periph.NumMessageBuffers-1, 0b0111)
	f, _ := flexcan.NewFrame(0x1, nil)
	for i := 0; i < periph.NumMessageBuffers/2-1; i++ {
		_, err = c.Enqueue(f, 0)
		require.NoError(t, err)
	}
	_, err = c.Enqueue(f, 0)
	assert.ErrorIs(t, err, flexcan.ErrInvalidCode)
}

func TestOverrunDegradesBufferCode(t *testing.T) {
	c, board := newController(t, flexcan.Settings{RxBuffers: 1})

	f, _ := flexcan.NewFrame(0x010, []byte{1})
	require.True(t, board.InjectCANFrame(f))
	f2, _ := flexcan.NewFrame(0x010, []byte{2})
	require.True(t, board.InjectCANFrame(f2), "second frame overruns the buffer")

	got, err := c.PollReceive()
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, byte(2), got.Data[0], "overrun keeps the newest frame")
}
