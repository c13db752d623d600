// Package csec drives the Cryptographic Services Engine: random number
// generation, AES-128-CBC encryption/decryption and CMAC generation and
// verification against protected key slots. Commands are issued by writing
// a header into the CSE command RAM and polling the flash controller's CCIF
// flag for completion, bounded by an iteration budget. Exactly one command
// may be in flight; key material never crosses back over this boundary,
// only derived results do.
package csec

import (
	"errors"
	"fmt"

	"github.com/jangala-dev/tinygo-s32k/periph"
	"github.com/jangala-dev/tinygo-s32k/poll"
)

var (
	// ErrBusy means a command is already in flight; calls are not queued.
	ErrBusy = errors.New("csec: command already in flight")
	// ErrTimeout means the engine did not complete within the poll budget.
	// The command slot is undefined afterwards: call Reset before reuse.
	ErrTimeout = errors.New("csec: command not completed within poll budget")
	// ErrNeedsReset means a previous timeout left the command slot
	// undefined and Reset has not been called yet.
	ErrNeedsReset = errors.New("csec: command slot needs reset after timeout")
	// ErrBlockSize means a CBC buffer is not a multiple of the block size.
	ErrBlockSize = errors.New("csec: buffer not a multiple of 16 bytes")
	// ErrMessageSize means a MAC message length is out of range.
	ErrMessageSize = errors.New("csec: message length out of range")
	// ErrInvalidStatus means the engine reported a status word outside the
	// specified set; decoding is checked, never defaulted.
	ErrInvalidStatus = errors.New("csec: unrecognized status word")
)

// CommandError is a hardware-reported failure, one bit per SHE error code.
type CommandError uint16

const (
	ErrCodeSequence          CommandError = 0x002
	ErrCodeKeyNotAvailable   CommandError = 0x004
	ErrCodeKeyInvalid        CommandError = 0x008
	ErrCodeKeyEmpty          CommandError = 0x010
	ErrCodeNoSecureBoot      CommandError = 0x020
	ErrCodeKeyWriteProtected CommandError = 0x040
	ErrCodeKeyUpdate         CommandError = 0x080
	ErrCodeRNGSeed           CommandError = 0x100
	ErrCodeNoDebugging       CommandError = 0x200
	ErrCodeMemoryFailure     CommandError = 0x400
	ErrCodeGeneral           CommandError = 0x800
)

func (e CommandError) Error() string {
	switch e {
	case ErrCodeSequence:
		return "csec: sequence error"
	case ErrCodeKeyNotAvailable:
		return "csec: key not available"
	case ErrCodeKeyInvalid:
		return "csec: key invalid"
	case ErrCodeKeyEmpty:
		return "csec: key slot empty"
	case ErrCodeNoSecureBoot:
		return "csec: no secure boot"
	case ErrCodeKeyWriteProtected:
		return "csec: key write protected"
	case ErrCodeKeyUpdate:
		return "csec: key update error"
	case ErrCodeRNGSeed:
		return "csec: rng not seeded"
	case ErrCodeNoDebugging:
		return "csec: debugging not allowed"
	case ErrCodeMemoryFailure:
		return "csec: memory failure"
	case ErrCodeGeneral:
		return "csec: general error"
	}
	return fmt.Sprintf("csec: error bits %#x", uint16(e))
}

const statusNoError = 0x1

// decodeStatus converts the engine's status halfword into an error. Unknown
// patterns are a decode failure, not a default.
func decodeStatus(v uint16) error {
	if v == statusNoError {
		return nil
	}
	switch CommandError(v) {
	case ErrCodeSequence, ErrCodeKeyNotAvailable, ErrCodeKeyInvalid,
		ErrCodeKeyEmpty, ErrCodeNoSecureBoot, ErrCodeKeyWriteProtected,
		ErrCodeKeyUpdate, ErrCodeRNGSeed, ErrCodeNoDebugging,
		ErrCodeMemoryFailure, ErrCodeGeneral:
		return CommandError(v)
	}
	return ErrInvalidStatus
}

// command opcodes, per the SHE command definition.
type command uint8

const (
	cmdEncCBC       command = 0x02
	cmdDecCBC       command = 0x04
	cmdGenerateMAC  command = 0x05
	cmdVerifyMAC    command = 0x06
	cmdLoadPlainKey command = 0x08
	cmdInitRNG      command = 0x0A
	cmdRNG          command = 0x0C
)

// formatCopy transfers data through the command RAM pages; the pointer
// format is not used here.
const formatCopy = 0x0

type sequence uint8

const (
	seqFirst      sequence = 0x0
	seqSubsequent sequence = 0x1
)

// KeySlot references a protected key by index. Key material in these slots
// is written through secure update protocols and can never be read back;
// SlotRAMKey is the one slot software may load in plaintext.
type KeySlot uint8

const (
	SlotSecretKey  KeySlot = 0x00
	SlotMasterECU  KeySlot = 0x01
	SlotBootMACKey KeySlot = 0x02
	SlotBootMAC    KeySlot = 0x03
	SlotKey1       KeySlot = 0x04
	SlotKey2       KeySlot = 0x05
	SlotKey3       KeySlot = 0x06
	SlotKey4       KeySlot = 0x07
	SlotKey5       KeySlot = 0x08
	SlotKey6       KeySlot = 0x09
	SlotKey7       KeySlot = 0x0A
	SlotKey8       KeySlot = 0x0B
	SlotKey9       KeySlot = 0x0C
	SlotKey10      KeySlot = 0x0D
	SlotRAMKey     KeySlot = 0x0F
)

// Command RAM layout.
const (
	pageSize      = 16
	maxPages      = 7
	page1Offset   = 16
	page2Offset   = 32
	pageLengthOff = 14  // halfword: number of pages to process
	errorBitsOff  = 4   // halfword: status
	macMsgLenOff  = 0xC // word: message length in bits
	macLenOff     = 0x8 // halfword: MAC length in bits
	macVerifyOff  = page1Offset + 0x4
	maxChunk      = maxPages * pageSize
	firstChunkCBC = (maxPages - 1) * pageSize // page 1 carries the IV
	fstatCCIF     = 1 << 7
)

// BlockSize is the cipher block, key, IV and MAC size in bytes.
const BlockSize = 16

// CSEc owns the flash controller status register and the CSE command RAM.
type CSEc struct {
	ftfc *periph.FTFC
	pram *periph.CSEPRAM

	budget     int
	inFlight   bool
	needsReset bool
	rngReady   bool
}

// New builds the driver from its register blocks. PollBudget zero means
// poll.DefaultBudget.
func New(ftfc *periph.FTFC, pram *periph.CSEPRAM, pollBudget int) *CSEc {
	if pollBudget == 0 {
		pollBudget = poll.DefaultBudget
	}
	return &CSEc{ftfc: ftfc, pram: pram, budget: pollBudget}
}

// begin claims the single command slot.
func (c *CSEc) begin() error {
	if c.needsReset {
		return ErrNeedsReset
	}
	if c.inFlight {
		return ErrBusy
	}
	c.inFlight = true
	return nil
}

func (c *CSEc) end() { c.inFlight = false }

// InitRNG seeds the engine's PRNG and derives its working key. GenerateRandom
// calls it lazily; calling it explicitly lets bring-up front-load the cost.
func (c *CSEc) InitRNG() error {
	if err := c.begin(); err != nil {
		return err
	}
	defer c.end()
	if err := c.runCommand(cmdInitRNG, seqFirst, SlotSecretKey); err != nil {
		return err
	}
	c.rngReady = true
	return nil
}

// GenerateRandom returns 128 fresh random bits from the engine.
func (c *CSEc) GenerateRandom() ([BlockSize]byte, error) {
	var out [BlockSize]byte
	if !c.rngReady {
		if err := c.InitRNG(); err != nil {
			return out, err
		}
	}
	if err := c.begin(); err != nil {
		return out, err
	}
	defer c.end()
	if err := c.runCommand(cmdRNG, seqFirst, SlotSecretKey); err != nil {
		return out, err
	}
	c.readBytes(page1Offset, out[:])
	return out, nil
}

// LoadPlainKey loads a 128-bit plaintext key into the RAM key slot. All
// other slots only accept keys through the secure update protocol.
func (c *CSEc) LoadPlainKey(key [BlockSize]byte) error {
	if err := c.begin(); err != nil {
		return err
	}
	defer c.end()
	c.writeBytes(page1Offset, key[:])
	return c.runCommand(cmdLoadPlainKey, seqFirst, SlotRAMKey)
}

// EncryptCBC encrypts plaintext (a multiple of 16 bytes) under the key in
// the given slot with AES-128-CBC. The IV should be fresh and unpredictable;
// GenerateRandom output works well.
func (c *CSEc) EncryptCBC(slot KeySlot, iv [BlockSize]byte, plaintext []byte) ([]byte, error) {
	return c.runCBC(cmdEncCBC, slot, iv, plaintext)
}

// DecryptCBC reverses EncryptCBC for ciphertext of the same shape.
func (c *CSEc) DecryptCBC(slot KeySlot, iv [BlockSize]byte, ciphertext []byte) ([]byte, error) {
	return c.runCBC(cmdDecCBC, slot, iv, ciphertext)
}

func (c *CSEc) runCBC(cmd command, slot KeySlot, iv [BlockSize]byte, in []byte) ([]byte, error) {
	if len(in) == 0 || len(in)%BlockSize != 0 || len(in)/pageSize > 0xFFFF {
		return nil, ErrBlockSize
	}
	if err := c.begin(); err != nil {
		return nil, err
	}
	defer c.end()

	out := make([]byte, len(in))
	copy(out, in)

	// Page 1 carries the IV on the first call; the page count covers the
	// whole buffer across all calls.
	c.writeBytes(page1Offset, iv[:])
	c.writeHalfword(pageLengthOff, uint16(len(in)/pageSize))

	seq := seqFirst
	for done := 0; done < len(out); {
		chunkOff, avail := page1Offset, maxChunk
		if seq == seqFirst {
			chunkOff, avail = page2Offset, firstChunkCBC
		}
		n := len(out) - done
		if n > avail {
			n = avail
		}
		c.writeBytes(chunkOff, out[done:done+n])
		if err := c.runCommand(cmd, seq, slot); err != nil {
			return nil, err
		}
		c.readBytes(chunkOff, out[done:done+n])
		done += n
		seq = seqSubsequent
	}
	return out, nil
}

// GenerateMAC computes the 128-bit CMAC of message under the key in the
// given slot.
func (c *CSEc) GenerateMAC(slot KeySlot, message []byte) ([BlockSize]byte, error) {
	var mac [BlockSize]byte
	if len(message) == 0 || uint64(len(message)) > 1<<28 {
		return mac, ErrMessageSize
	}
	if err := c.begin(); err != nil {
		return mac, err
	}
	defer c.end()

	c.writeWord(macMsgLenOff, uint32(len(message))*8)

	seq := seqFirst
	for done := 0; ; {
		n := len(message) - done
		if n > maxChunk {
			n = maxChunk
		}
		c.writeBytes(page1Offset, message[done:done+n])
		if err := c.runCommand(cmdGenerateMAC, seq, slot); err != nil {
			return mac, err
		}
		done += n
		if done == len(message) {
			break
		}
		seq = seqSubsequent
	}

	c.readBytes(page2Offset, mac[:])
	return mac, nil
}

// VerifyMAC checks message against mac under the key in the given slot. A
// mismatch is a normal false result, not an error; only the engine failing
// is an error.
func (c *CSEc) VerifyMAC(slot KeySlot, message []byte, mac [BlockSize]byte) (bool, error) {
	if len(message) == 0 || uint64(len(message)) > 1<<28 {
		return false, ErrMessageSize
	}
	if err := c.begin(); err != nil {
		return false, err
	}
	defer c.end()

	c.writeWord(macMsgLenOff, uint32(len(message))*8)
	c.writeHalfword(macLenOff, uint16(len(mac))*8)

	seq := seqFirst
	macWritten := false
	for done := 0; ; {
		n := len(message) - done
		if n > maxChunk {
			n = maxChunk
		}
		c.writeBytes(page1Offset, message[done:done+n])

		// The expected MAC goes on the page right after the data, on the
		// call where it still fits.
		nextPage := (page1Offset + n + pageSize - 1) / pageSize
		if !macWritten && nextPage < maxPages {
			c.writeBytes(nextPage*pageSize, mac[:])
			macWritten = true
		}

		if err := c.runCommand(cmdVerifyMAC, seq, slot); err != nil {
			return false, err
		}
		done += n
		if macWritten && done == len(message) {
			break
		}
		seq = seqSubsequent
	}

	return c.readHalfword(macVerifyOff) == 0, nil
}

// Reset recovers the command slot after a timeout: it clears the header
// page and waits for the engine to report idle again.
func (c *CSEc) Reset() error {
	c.pram.RAM[0].Set(0)
	if !poll.Until(c.budget, func() bool {
		return c.ftfc.FSTAT.Get()&fstatCCIF != 0
	}) {
		return ErrTimeout
	}
	c.needsReset = false
	c.inFlight = false
	return nil
}

// runCommand writes the command header, which triggers execution, then
// polls for completion and decodes the status halfword.
func (c *CSEc) runCommand(cmd command, seq sequence, slot KeySlot) error {
	header := uint32(cmd)<<24 | uint32(formatCopy)<<16 | uint32(seq)<<8 | uint32(slot)
	c.pram.RAM[0].Set(header)

	if !poll.Until(c.budget, func() bool {
		return c.ftfc.FSTAT.Get()&fstatCCIF != 0
	}) {
		c.needsReset = true
		return ErrTimeout
	}
	return decodeStatus(c.readHalfword(errorBitsOff))
}
