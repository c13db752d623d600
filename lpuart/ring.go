package lpuart

// Choose a power-of-two size for efficient modulo.
const ringDepth uint8 = 128

// ringBuffer is a byte ring shared between foreground code and the FIFO
// service handler. Indices are free-running uint8s compared modulo the
// depth. A Put on a full ring is an overrun: the byte is dropped and
// counted, never written over pending data, so ring ordering stays intact.
// Callers serialize access with the mmio critical section.
type ringBuffer struct {
	buf      [ringDepth]byte
	head     uint8
	tail     uint8
	overruns uint32
}

// Size returns the total capacity of the ring in bytes.
func (rb *ringBuffer) Size() uint8 { return ringDepth }

// Used returns how many bytes are queued.
func (rb *ringBuffer) Used() uint8 { return rb.head - rb.tail }

// Free returns the remaining space in bytes.
func (rb *ringBuffer) Free() uint8 { return ringDepth - rb.Used() }

// Put stores a byte. On a full ring it drops the byte, counts the overrun
// and returns false.
func (rb *ringBuffer) Put(val byte) bool {
	if rb.Used() == ringDepth { // full
		rb.overruns++
		return false
	}
	h := rb.head
	rb.buf[(h+1)%ringDepth] = val // 1) write data
	rb.head = h + 1               // 2) publish
	return true
}

// Get returns a byte, or (0, false) on an empty ring.
func (rb *ringBuffer) Get() (byte, bool) {
	if rb.Used() == 0 {
		return 0, false
	}
	t := rb.tail
	v := rb.buf[(t+1)%ringDepth] // 1) read current element
	rb.tail = t + 1              // 2) publish consumption
	return v, true
}

// Overruns returns how many bytes were dropped on a full ring.
func (rb *ringBuffer) Overruns() uint32 { return rb.overruns }

// Clear resets the indices; the overrun count is preserved.
func (rb *ringBuffer) Clear() {
	rb.head = 0
	rb.tail = 0
}
