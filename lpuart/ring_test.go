package lpuart

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRingRoundTrip(t *testing.T) {
	var r ringBuffer

	for i := 0; i < int(r.Size()); i++ {
		assert.True(t, r.Put(byte(i)), "put %d", i)
	}
	assert.Equal(t, r.Size(), r.Used())
	assert.Zero(t, r.Free())

	for i := 0; i < int(r.Size()); i++ {
		b, ok := r.Get()
		assert.True(t, ok)
		assert.Equal(t, byte(i), b, "FIFO order at %d", i)
	}
	_, ok := r.Get()
	assert.False(t, ok, "empty after drain")
}

func TestRingOverrunCountsOnce(t *testing.T) {
	var r ringBuffer

	for i := 0; i < int(r.Size()); i++ {
		r.Put(byte(i))
	}
	assert.Zero(t, r.Overruns())

	// One more write: rejected, counted exactly once, nothing overwritten.
	assert.False(t, r.Put(0xAA))
	assert.Equal(t, uint32(1), r.Overruns())

	b, ok := r.Get()
	assert.True(t, ok)
	assert.Equal(t, byte(0), b, "oldest byte survives")
}

func TestRingWrapAround(t *testing.T) {
	var r ringBuffer

	// Push the indices around the buffer several times.
	for cycle := 0; cycle < 5; cycle++ {
		for i := 0; i < 100; i++ {
			assert.True(t, r.Put(byte(i)))
		}
		for i := 0; i < 100; i++ {
			b, ok := r.Get()
			assert.True(t, ok)
			assert.Equal(t, byte(i), b)
		}
	}
	assert.Zero(t, r.Used())
	assert.Zero(t, r.Overruns())
}

func TestRingClearKeepsOverrunCount(t *testing.T) {
	var r ringBuffer

	for i := 0; i < int(r.Size()); i++ {
		r.Put(byte(i))
	}
	r.Put(0xFF)
	assert.Equal(t, uint32(1), r.Overruns())

	r.Clear()
	assert.Zero(t, r.Used())
	assert.Equal(t, uint32(1), r.Overruns(), "diagnostics survive a flush")
}
