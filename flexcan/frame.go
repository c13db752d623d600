package flexcan

import "errors"

// Frame represents a classical CAN (2.0A/2.0B) frame.
//
// Supported features:
//   - Standard (11-bit) and Extended (29-bit) identifiers
//   - Data frames and Remote Transmission Request (RTR)
//   - Data length 0-8 bytes (classical CAN)
//
// CAN FD fields are not implemented.
type Frame struct {
	ID       uint32 // 11-bit (std) or 29-bit (ext)
	Extended bool   // true for 29-bit identifier
	RTR      bool   // remote transmission request
	Len      uint8  // 0..8
	Data     [8]byte
}

// Validation limits.
const (
	maxStdID = 0x7FF
	maxExtID = 0x1FFFFFFF
)

var (
	ErrInvalidID  = errors.New("flexcan: invalid identifier")
	ErrInvalidLen = errors.New("flexcan: invalid data length")
)

// Validate returns an error if the frame is not valid.
func (f Frame) Validate() error {
	if f.Len > 8 {
		return ErrInvalidLen
	}
	if f.Extended {
		if f.ID > maxExtID {
			return ErrInvalidID
		}
	} else {
		if f.ID > maxStdID {
			return ErrInvalidID
		}
	}
	return nil
}

// NewFrame builds a data frame, picking the extended format automatically
// for identifiers beyond the standard range.
func NewFrame(id uint32, data []byte) (Frame, error) {
	var f Frame
	f.ID = id
	if id > maxStdID {
		f.Extended = true
	}
	if len(data) > 8 {
		return Frame{}, ErrInvalidLen
	}
	f.Len = uint8(len(data))
	copy(f.Data[:], data)
	if err := f.Validate(); err != nil {
		return Frame{}, err
	}
	return f, nil
}

// Filter is an identifier mask/match pair applied by the hardware to
// incoming frames before they occupy a receive buffer. A mask bit of 1
// means the corresponding identifier bit must match.
type Filter struct {
	ID       uint32
	Mask     uint32
	Extended bool
}

// Accepts reports whether the filter admits the given frame. The hardware
// applies the same predicate; this is used by host simulation and by
// callers that want to pre-check.
func (flt Filter) Accepts(f Frame) bool {
	if f.Extended != flt.Extended {
		return false
	}
	return f.ID&flt.Mask == flt.ID&flt.Mask
}
