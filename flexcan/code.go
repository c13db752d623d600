package flexcan

import "errors"

// ErrInvalidCode is returned when a message buffer's CODE field holds a bit
// pattern outside the enumerated set. Aborted transfers can leave transient
// patterns there, so the conversion is a checked one: never a default value,
// never a panic.
var ErrInvalidCode = errors.New("flexcan: message buffer code not recognized")

// MessageBufferCode is the 4-bit status code of a hardware message buffer.
// The code governs what software may do with the buffer: only inactive or
// empty buffers may be written, only full (or overrun) buffers read.
type MessageBufferCode uint8

const (
	// Receive buffer codes.
	CodeRxInactive MessageBufferCode = 0b0000
	CodeRxFull     MessageBufferCode = 0b0010
	CodeRxEmpty    MessageBufferCode = 0b0100
	CodeRxOverrun  MessageBufferCode = 0b0110
	CodeRxRanswer  MessageBufferCode = 0b1010

	// Transmit buffer codes.
	CodeTxInactive MessageBufferCode = 0b1000
	CodeTxAbort    MessageBufferCode = 0b1001
	CodeTxData     MessageBufferCode = 0b1100
	CodeTxRanswer  MessageBufferCode = 0b1110
)

func (c MessageBufferCode) String() string {
	switch c {
	case CodeRxInactive:
		return "rx-inactive"
	case CodeRxFull:
		return "rx-full"
	case CodeRxEmpty:
		return "rx-empty"
	case CodeRxOverrun:
		return "rx-overrun"
	case CodeRxRanswer:
		return "rx-ranswer"
	case CodeTxInactive:
		return "tx-inactive"
	case CodeTxAbort:
		return "tx-abort"
	case CodeTxData:
		return "tx-data"
	case CodeTxRanswer:
		return "tx-ranswer"
	}
	return "invalid"
}

// DecodeCode converts a raw CODE field into the enumerated set. Patterns
// outside the set (including the transient busy patterns with the low bit
// set on receive buffers) fail with ErrInvalidCode.
func DecodeCode(raw uint32) (MessageBufferCode, error) {
	if raw > 0xF {
		return 0, ErrInvalidCode
	}
	c := MessageBufferCode(raw)
	switch c {
	case CodeRxInactive, CodeRxFull, CodeRxEmpty, CodeRxOverrun, CodeRxRanswer,
		CodeTxInactive, CodeTxAbort, CodeTxData, CodeTxRanswer:
		return c, nil
	}
	return 0, ErrInvalidCode
}
