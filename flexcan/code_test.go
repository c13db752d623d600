package flexcan

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecodeCodeCoversAllRawPatterns(t *testing.T) {
	valid := map[uint32]MessageBufferCode{
		0b0000: CodeRxInactive,
		0b0010: CodeRxFull,
		0b0100: CodeRxEmpty,
		0b0110: CodeRxOverrun,
		0b1010: CodeRxRanswer,
		0b1000: CodeTxInactive,
		0b1001: CodeTxAbort,
		0b1100: CodeTxData,
		0b1110: CodeTxRanswer,
	}
	for raw := uint32(0); raw <= 0xF; raw++ {
		code, err := DecodeCode(raw)
		if want, ok := valid[raw]; ok {
			assert.NoError(t, err, "raw %#b", raw)
			assert.Equal(t, want, code, "raw %#b", raw)
		} else {
			assert.ErrorIs(t, err, ErrInvalidCode, "raw %#b", raw)
		}
	}
}

func TestDecodeCodeRejectsWideValues(t *testing.T) {
	_, err := DecodeCode(0x10)
	assert.ErrorIs(t, err, ErrInvalidCode)
	_, err = DecodeCode(0xFFFF_FFFF)
	assert.ErrorIs(t, err, ErrInvalidCode)
}

func TestCodeStrings(t *testing.T) {
	assert.Equal(t, "rx-empty", CodeRxEmpty.String())
	assert.Equal(t, "tx-data", CodeTxData.String())
	assert.Equal(t, "invalid", MessageBufferCode(0xB).String())
}
