// Package mmio is the register boundary between the drivers and the
// memory-mapped peripheral blocks. Drivers only ever see named Reg32 fields;
// on hardware builds those are volatile registers at fixed addresses, on host
// builds they are simulated registers (see package sim). Nothing above this
// package does raw address arithmetic.
package mmio

// Reg32 is a single 32-bit hardware register. Get and Set are volatile on
// hardware builds: every call is a real bus access with its side effects.
type Reg32 interface {
	Get() uint32
	Set(uint32)
}

// SetBits sets the given bits with a read-modify-write.
func SetBits(r Reg32, bits uint32) {
	r.Set(r.Get() | bits)
}

// ClearBits clears the given bits with a read-modify-write.
func ClearBits(r Reg32, bits uint32) {
	r.Set(r.Get() &^ bits)
}

// HasBits reports whether all of the given bits are set.
func HasBits(r Reg32, bits uint32) bool {
	return r.Get()&bits == bits
}

// ReplaceBits writes val into the field of width covered by mask at bit
// position pos, leaving the rest of the register untouched.
func ReplaceBits(r Reg32, val, mask uint32, pos uint8) {
	r.Set(r.Get()&^(mask<<pos) | (val&mask)<<pos)
}

// FieldGet extracts the field covered by mask at bit position pos.
func FieldGet(r Reg32, mask uint32, pos uint8) uint32 {
	return (r.Get() >> pos) & mask
}
