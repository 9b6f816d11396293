// Package emu provides the Hexagon CPU state and guest memory that translated
// code runs against.
package emu

import "github.com/sarchlab/hexdbt/insts"

// VecValue is the contents of one HVX vector register.
type VecValue [insts.VecBytes]byte

// QValue is the contents of one HVX vector predicate register.
type QValue [insts.QBytes]byte

// Counters accumulates execution statistics written by translated blocks.
type Counters struct {
	Packets  uint64
	Insns    uint64
	HVXInsns uint64
}

// RegFile represents the Hexagon register file.
// It holds the 32 general-purpose registers and 32 control registers in one
// array, the scalar predicates, and the HVX vector and vector predicate
// registers.
type RegFile struct {
	// R holds R0-R31 followed by C0-C31. The P3:0 control register slot is
	// unused; predicates live in P.
	R [insts.NumRegs]uint32

	// P holds the scalar predicates P0-P3.
	P [insts.NumPreds]uint8

	// V holds the HVX vector registers.
	V [insts.NumVRegs]VecValue

	// Q holds the HVX vector predicates.
	Q [insts.NumQRegs]QValue

	Counters Counters
}

// ReadReg reads a register. The P3:0 alias reads the four predicates.
func (r *RegFile) ReadReg(reg insts.Reg) uint32 {
	if reg == insts.RegP3_0 {
		return uint32(r.P[0]) | uint32(r.P[1])<<8 | uint32(r.P[2])<<16 | uint32(r.P[3])<<24
	}
	return r.R[reg&(insts.NumRegs-1)]
}

// WriteReg writes a register without applying immutable bit masks.
// The P3:0 alias writes the four predicates.
func (r *RegFile) WriteReg(reg insts.Reg, value uint32) {
	if reg == insts.RegP3_0 {
		for i := range r.P {
			r.P[i] = uint8(value >> (8 * i))
		}
		return
	}
	r.R[reg&(insts.NumRegs-1)] = value
}

// PC returns the program counter.
func (r *RegFile) PC() uint32 {
	return r.R[insts.RegPC]
}

// SetPC sets the program counter.
func (r *RegFile) SetPC(pc uint32) {
	r.R[insts.RegPC] = pc
}

// LPCFG returns the loop configuration field of USR.
func (r *RegFile) LPCFG() uint32 {
	return (r.R[insts.RegUSR] >> insts.USRLPCFGShift) & (1<<insts.USRLPCFGWidth - 1)
}

// immutableMasks holds, per register, the bits that guest writes cannot
// change.
var immutableMasks = [insts.NumRegs]uint32{
	insts.RegPC:        0xffffffff,
	insts.RegUSR:       0xc13000c0,
	insts.RegGP:        0x0000003f,
	insts.RegUPCycleLo: 0xffffffff,
	insts.RegUPCycleHi: 0xffffffff,
	insts.RegPktCntLo:  0xffffffff,
	insts.RegPktCntHi:  0xffffffff,
	insts.RegUTimerLo:  0xffffffff,
	insts.RegUTimerHi:  0xffffffff,
}

// ImmutableMask returns the bits of a register that guest writes preserve.
// A nonzero mask means the register has deferred-visibility semantics.
func ImmutableMask(reg insts.Reg) uint32 {
	return immutableMasks[reg&(insts.NumRegs-1)]
}

// MaskedWrite merges a new value into old, keeping the immutable bits.
func MaskedWrite(reg insts.Reg, old, value uint32) uint32 {
	mask := ImmutableMask(reg)
	return value&^mask | old&mask
}
