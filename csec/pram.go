package csec

// The command RAM is word-addressed with big-endian byte lanes: byte offset
// 0 is the most significant byte of word 0. All accesses below go through
// full 32-bit reads and writes; the bus does not support narrower ones.

func (c *CSEc) readWord(off int) uint32 {
	return c.pram.RAM[off/4].Get()
}

func (c *CSEc) writeWord(off int, v uint32) {
	c.pram.RAM[off/4].Set(v)
}

func (c *CSEc) readHalfword(off int) uint16 {
	w := c.readWord(off)
	if off&2 == 0 {
		return uint16(w >> 16)
	}
	return uint16(w)
}

func (c *CSEc) writeHalfword(off int, v uint16) {
	w := c.readWord(off)
	if off&2 == 0 {
		w = w&0x0000FFFF | uint32(v)<<16
	} else {
		w = w&0xFFFF0000 | uint32(v)
	}
	c.writeWord(off, w)
}

// readBytes fills dst from word-aligned offset off.
func (c *CSEc) readBytes(off int, dst []byte) {
	for i := 0; i < len(dst); i += 4 {
		w := c.readWord(off + i)
		for j := 0; j < 4 && i+j < len(dst); j++ {
			dst[i+j] = byte(w >> (24 - 8*j))
		}
	}
}

// writeBytes stores src at word-aligned offset off, zero-padding the tail
// of the last word.
func (c *CSEc) writeBytes(off int, src []byte) {
	for i := 0; i < len(src); i += 4 {
		var w uint32
		for j := 0; j < 4 && i+j < len(src); j++ {
			w |= uint32(src[i+j]) << (24 - 8*j)
		}
		c.writeWord(off+i, w)
	}
}
