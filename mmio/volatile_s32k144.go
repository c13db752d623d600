//go:build s32k144

package mmio

import (
	"runtime/volatile"
	"unsafe"
)

// HwReg32 adapts a volatile hardware register to the Reg32 boundary.
type HwReg32 struct {
	reg *volatile.Register32
}

// At returns the register at the given bus address.
func At(addr uintptr) *HwReg32 {
	return &HwReg32{reg: (*volatile.Register32)(unsafe.Pointer(addr))}
}

func (r *HwReg32) Get() uint32  { return r.reg.Get() }
func (r *HwReg32) Set(v uint32) { r.reg.Set(v) }
