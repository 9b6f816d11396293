package emu

import "fmt"

// DCZeroLineBytes is the size of the cache line cleared by dczeroa.
const DCZeroLineBytes = 32

// LoadStoreUnit performs sized guest memory accesses on behalf of
// translated code.
type LoadStoreUnit struct {
	memory *Memory
}

// NewLoadStoreUnit creates a new LoadStoreUnit connected to the given memory.
func NewLoadStoreUnit(memory *Memory) *LoadStoreUnit {
	return &LoadStoreUnit{
		memory: memory,
	}
}

// Memory returns the memory the unit accesses.
func (lsu *LoadStoreUnit) Memory() *Memory {
	return lsu.memory
}

// Load reads width bytes (1, 2, 4 or 8) and zero-extends them.
func (lsu *LoadStoreUnit) Load(addr uint32, width int) (uint64, error) {
	switch width {
	case 1:
		v, err := lsu.memory.Read8(addr)
		return uint64(v), err
	case 2:
		v, err := lsu.memory.Read16(addr)
		return uint64(v), err
	case 4:
		v, err := lsu.memory.Read32(addr)
		return uint64(v), err
	case 8:
		return lsu.memory.Read64(addr)
	}
	return 0, fmt.Errorf("invalid load width %d", width)
}

// Store writes the low width bytes of value.
func (lsu *LoadStoreUnit) Store(addr uint32, width int, value uint64) error {
	switch width {
	case 1:
		return lsu.memory.Write8(addr, uint8(value))
	case 2:
		return lsu.memory.Write16(addr, uint16(value))
	case 4:
		return lsu.memory.Write32(addr, uint32(value))
	case 8:
		return lsu.memory.Write64(addr, value)
	}
	return fmt.Errorf("invalid store width %d", width)
}

// ProbeStore checks that a store of width bytes at addr would not fault.
func (lsu *LoadStoreUnit) ProbeStore(addr uint32, width int) error {
	return lsu.memory.Probe(addr, width, AccessWrite)
}

// ZeroLine clears the cache line containing addr.
func (lsu *LoadStoreUnit) ZeroLine(addr uint32) error {
	var zero [DCZeroLineBytes]byte
	return lsu.memory.Write(addr&^(DCZeroLineBytes-1), zero[:])
}

// VectorAddr aligns an HVX memory address to the vector size.
func VectorAddr(addr uint32) uint32 {
	return addr &^ (uint32(len(VecValue{})) - 1)
}

// LoadVector reads the aligned vector containing addr.
func (lsu *LoadStoreUnit) LoadVector(addr uint32, dst *VecValue) error {
	return lsu.memory.Read(VectorAddr(addr), dst[:], AccessRead)
}

// StoreVector writes the aligned vector containing addr.
func (lsu *LoadStoreUnit) StoreVector(addr uint32, src *VecValue) error {
	return lsu.memory.Write(VectorAddr(addr), src[:])
}

// ProbeVector checks that a vector store at addr would not fault.
func (lsu *LoadStoreUnit) ProbeVector(addr uint32) error {
	return lsu.memory.Probe(VectorAddr(addr), len(VecValue{}), AccessWrite)
}
