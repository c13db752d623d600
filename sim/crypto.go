//go:build !s32k144

package sim

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"encoding/binary"

	"github.com/aead/cmac"

	"github.com/jangala-dev/tinygo-s32k/periph"
)

// Command RAM layout and flash status bits.
const (
	cseCCIF = 1 << 7

	csePage1   = 16
	csePage2   = 32
	csePageLen = 14
	cseStatus  = 4
	cseMsgBits = 0xC
	cseVerify  = csePage1 + 4
	cseChunk   = 7 * 16
)

// SHE command opcodes and status words.
const (
	cseEncCBC       = 0x02
	cseDecCBC       = 0x04
	cseGenerateMAC  = 0x05
	cseVerifyMAC    = 0x06
	cseLoadPlainKey = 0x08
	cseInitRNG      = 0x0A
	cseRNG          = 0x0C

	cseSlotRAMKey = 0x0F

	stNoError  = 0x001
	stSequence = 0x002
	stKeyEmpty = 0x010
	stRNGSeed  = 0x100
	stGeneral  = 0x800
)

// The simulated RNG is deterministic: AES-CTR under a fixed seed key, so
// tests see fresh but reproducible values.
var cseRNGSeedKey = []byte("simulated rng 16")

// cryptoSim models the CSEc engine. A command executes when its header
// lands in the first command RAM word; completion is signalled by raising
// CCIF after a few status reads, so the drivers' bounded polling runs for
// real. Key slots hold real key material and are write-only from the bus
// side, exactly like the hardware: only derived results ever appear in the
// command RAM.
type cryptoSim struct {
	fstat reg
	ram   [periph.CSEPRAMPages]reg

	keys      map[byte][16]byte
	rngSeeded bool
	rngCtr    uint64

	latency int
	reads   int
	pending bool
	stall   bool

	// multi-part command state
	op       byte
	cbc      cipher.BlockMode
	cbcLeft  int
	macBuf   []byte
	macTotal int
	macSlot  byte
	macWant  []byte
}

func newCryptoSim(latency int) *cryptoSim {
	c := &cryptoSim{
		keys:    make(map[byte][16]byte),
		latency: latency,
	}
	c.fstat.v = cseCCIF // idle

	c.fstat.onGet = func(r *reg) {
		if !c.pending || c.stall {
			return
		}
		if c.reads < c.latency {
			c.reads++
			return
		}
		r.v |= cseCCIF
		c.pending = false
	}

	c.ram[0].onSet = func(r *reg, v uint32) {
		r.v = v
		c.execute(v)
	}
	return c
}

// execute runs one command header. Results and the status word land in the
// command RAM before CCIF is raised, so they are stable by the time the
// driver looks.
func (c *cryptoSim) execute(header uint32) {
	c.fstat.v &^= cseCCIF
	c.pending = true
	c.reads = 0

	cmd := byte(header >> 24)
	seq := byte(header >> 8)
	slot := byte(header)

	var status uint16
	switch cmd {
	case 0:
		// Cleared header: abandon whatever was in progress.
		c.op = 0
		c.cbc = nil
		c.macBuf = nil
		status = stNoError
	case cseEncCBC, cseDecCBC:
		status = c.runCBC(cmd, seq, slot)
	case cseGenerateMAC:
		status = c.runGenerateMAC(seq, slot)
	case cseVerifyMAC:
		status = c.runVerifyMAC(seq, slot)
	case cseLoadPlainKey:
		var key [16]byte
		c.getBytes(csePage1, key[:])
		c.keys[cseSlotRAMKey] = key
		status = stNoError
	case cseInitRNG:
		c.rngSeeded = true
		status = stNoError
	case cseRNG:
		status = c.runRNG()
	default:
		status = stGeneral
	}
	c.setHalfword(cseStatus, status)
}

func (c *cryptoSim) keyBlock(slot byte) (cipher.Block, bool) {
	key, ok := c.keys[slot]
	if !ok {
		return nil, false
	}
	b, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, false
	}
	return b, true
}

func (c *cryptoSim) runCBC(cmd, seq, slot byte) uint16 {
	if seq == 0 {
		b, ok := c.keyBlock(slot)
		if !ok {
			return stKeyEmpty
		}
		var iv [16]byte
		c.getBytes(csePage1, iv[:])
		if cmd == cseEncCBC {
			c.cbc = cipher.NewCBCEncrypter(b, iv[:])
		} else {
			c.cbc = cipher.NewCBCDecrypter(b, iv[:])
		}
		c.cbcLeft = int(c.halfword(csePageLen)) * 16
		c.op = cmd
	} else if c.op != cmd || c.cbc == nil {
		return stSequence
	}

	off, avail := csePage1, cseChunk
	if seq == 0 {
		off, avail = csePage2, cseChunk-16
	}
	n := min(c.cbcLeft, avail)
	buf := make([]byte, n)
	c.getBytes(off, buf)
	c.cbc.CryptBlocks(buf, buf)
	c.setBytes(off, buf)
	c.cbcLeft -= n
	if c.cbcLeft == 0 {
		c.op = 0
		c.cbc = nil
	}
	return stNoError
}

func (c *cryptoSim) runGenerateMAC(seq, slot byte) uint16 {
	if seq == 0 {
		if _, ok := c.keys[slot]; !ok {
			return stKeyEmpty
		}
		c.macTotal = int(c.word(cseMsgBits)) / 8
		c.macBuf = c.macBuf[:0]
		c.macSlot = slot
		c.op = cseGenerateMAC
	} else if c.op != cseGenerateMAC {
		return stSequence
	}

	n := min(c.macTotal-len(c.macBuf), cseChunk)
	chunk := make([]byte, n)
	c.getBytes(csePage1, chunk)
	c.macBuf = append(c.macBuf, chunk...)

	if len(c.macBuf) == c.macTotal {
		b, _ := c.keyBlock(c.macSlot)
		mac, _ := cmac.Sum(c.macBuf, b, 16)
		c.setBytes(csePage2, mac)
		c.op = 0
	}
	return stNoError
}

func (c *cryptoSim) runVerifyMAC(seq, slot byte) uint16 {
	if seq == 0 {
		if _, ok := c.keys[slot]; !ok {
			return stKeyEmpty
		}
		c.macTotal = int(c.word(cseMsgBits)) / 8
		c.macBuf = c.macBuf[:0]
		c.macSlot = slot
		c.macWant = nil
		c.op = cseVerifyMAC
	} else if c.op != cseVerifyMAC {
		return stSequence
	}

	n := min(c.macTotal-len(c.macBuf), cseChunk)
	chunk := make([]byte, n)
	c.getBytes(csePage1, chunk)
	c.macBuf = append(c.macBuf, chunk...)

	// The expected MAC sits on the page right after the message data when
	// it fits in this call.
	if c.macWant == nil {
		if page := (csePage1 + n + 15) / 16; page < 7 {
			c.macWant = make([]byte, 16)
			c.getBytes(page*16, c.macWant)
		}
	}

	if len(c.macBuf) == c.macTotal && c.macWant != nil {
		b, _ := c.keyBlock(c.macSlot)
		mac, _ := cmac.Sum(c.macBuf, b, 16)
		verify := uint16(0xFFFF)
		if bytes.Equal(mac, c.macWant) {
			verify = 0
		}
		c.setHalfword(cseVerify, verify)
		c.op = 0
	}
	return stNoError
}

func (c *cryptoSim) runRNG() uint16 {
	if !c.rngSeeded {
		return stRNGSeed
	}
	b, _ := aes.NewCipher(cseRNGSeedKey)
	var in, out [16]byte
	c.rngCtr++
	binary.BigEndian.PutUint64(in[8:], c.rngCtr)
	b.Encrypt(out[:], in[:])
	c.setBytes(csePage1, out[:])
	return stNoError
}

// Command RAM byte lanes are big-endian within each 32-bit word.

func (c *cryptoSim) word(off int) uint32 { return c.ram[off/4].v }

func (c *cryptoSim) halfword(off int) uint16 {
	w := c.word(off)
	if off&2 == 0 {
		return uint16(w >> 16)
	}
	return uint16(w)
}

func (c *cryptoSim) setHalfword(off int, v uint16) {
	w := c.word(off)
	if off&2 == 0 {
		w = w&0x0000FFFF | uint32(v)<<16
	} else {
		w = w&0xFFFF0000 | uint32(v)
	}
	c.ram[off/4].v = w
}

func (c *cryptoSim) getBytes(off int, dst []byte) {
	for i := range dst {
		w := c.word(off + i&^3)
		dst[i] = byte(w >> (24 - 8*uint(i&3)))
	}
}

func (c *cryptoSim) setBytes(off int, src []byte) {
	for i, b := range src {
		idx := (off + i) / 4
		shift := 24 - 8*uint((off+i)&3)
		c.ram[idx].v = c.ram[idx].v&^(0xFF<<shift) | uint32(b)<<shift
	}
}

func (c *cryptoSim) ftfcBlock() *periph.FTFC {
	return &periph.FTFC{FSTAT: &c.fstat}
}

func (c *cryptoSim) pramBlock() *periph.CSEPRAM {
	b := &periph.CSEPRAM{}
	for i := range c.ram {
		b.RAM[i] = &c.ram[i]
	}
	return b
}

// LoadCryptoKey installs key material into a key slot from outside the
// command protocol, standing in for the secure key update a real part goes
// through during provisioning.
func (b *Board) LoadCryptoKey(slot byte, key [16]byte) {
	b.crypto.keys[slot] = key
}
