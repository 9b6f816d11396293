package emu

import (
	"encoding/binary"
	"fmt"
)

// DefaultPageSize is the guest page size in bytes.
const DefaultPageSize uint32 = 4096

// Perm is a set of page permissions.
type Perm uint8

// Page permissions.
const (
	PermRead Perm = 1 << iota
	PermWrite
	PermExec

	PermRW  = PermRead | PermWrite
	PermRX  = PermRead | PermExec
	PermRWX = PermRead | PermWrite | PermExec
)

// Access is the kind of a memory access.
type Access uint8

// Access kinds.
const (
	AccessRead Access = iota
	AccessWrite
	AccessExec
)

func (a Access) String() string {
	switch a {
	case AccessRead:
		return "read"
	case AccessWrite:
		return "write"
	case AccessExec:
		return "exec"
	}
	return "unknown"
}

func (a Access) perm() Perm {
	switch a {
	case AccessWrite:
		return PermWrite
	case AccessExec:
		return PermExec
	}
	return PermRead
}

// Fault is returned when a guest access hits an unmapped page or a page
// without the required permission.
type Fault struct {
	Addr   uint32
	Access Access
}

func (f *Fault) Error() string {
	return fmt.Sprintf("%s fault at 0x%08x", f.Access, f.Addr)
}

// Cause returns the guest exception cause for the fault.
func (f *Fault) Cause() uint32 {
	switch f.Access {
	case AccessWrite:
		return ExcpPrivNoUWrite
	case AccessExec:
		return ExcpFetchNoUPage
	}
	return ExcpPrivNoURead
}

type page struct {
	base uint32
	perm Perm
	data []byte
}

// Memory is a paged, little-endian guest address space. Every access is
// checked against page permissions; page lookups go through a software TLB.
type Memory struct {
	pageSize uint32
	pages    map[uint32]*page
	tlb      *TLB
	tlbCfg   TLBConfig
}

// MemoryOption is a functional option for configuring Memory.
type MemoryOption func(*Memory)

// WithPageSize sets the page size. It must be a power of two.
func WithPageSize(size uint32) MemoryOption {
	return func(m *Memory) {
		m.pageSize = size
	}
}

// WithTLBConfig sets the geometry of the page lookup TLB.
func WithTLBConfig(config TLBConfig) MemoryOption {
	return func(m *Memory) {
		m.tlbCfg = config
	}
}

// NewMemory creates an empty address space.
func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{
		pageSize: DefaultPageSize,
		pages:    make(map[uint32]*page),
		tlbCfg:   DefaultTLBConfig(),
	}

	for _, opt := range opts {
		opt(m)
	}

	if m.pageSize == 0 || m.pageSize&(m.pageSize-1) != 0 {
		panic(fmt.Sprintf("emu: page size %d is not a power of two", m.pageSize))
	}

	m.tlb = NewTLB(m.tlbCfg, m.pageSize)

	return m
}

// PageSize returns the page size in bytes.
func (m *Memory) PageSize() uint32 {
	return m.pageSize
}

// TLBStats returns the page lookup statistics.
func (m *Memory) TLBStats() TLBStats {
	return m.tlb.Stats()
}

func (m *Memory) pageBase(addr uint32) uint32 {
	return addr &^ (m.pageSize - 1)
}

// Map maps every page overlapping [addr, addr+size) with the given
// permissions. Pages that are already mapped keep their contents.
func (m *Memory) Map(addr, size uint32, perm Perm) {
	if size == 0 {
		return
	}

	first := m.pageBase(addr)
	last := m.pageBase(addr + size - 1)
	for base := first; ; base += m.pageSize {
		if p, ok := m.pages[base]; ok {
			p.perm = perm
		} else {
			m.pages[base] = &page{
				base: base,
				perm: perm,
				data: make([]byte, m.pageSize),
			}
		}
		if base == last {
			break
		}
	}

	m.tlb.flush()
}

// Unmap removes every page overlapping [addr, addr+size).
func (m *Memory) Unmap(addr, size uint32) {
	if size == 0 {
		return
	}

	first := m.pageBase(addr)
	last := m.pageBase(addr + size - 1)
	for base := first; ; base += m.pageSize {
		delete(m.pages, base)
		if base == last {
			break
		}
	}

	m.tlb.flush()
}

// Mapped reports whether addr lies in a mapped page.
func (m *Memory) Mapped(addr uint32) bool {
	return m.lookup(addr) != nil
}

func (m *Memory) lookup(addr uint32) *page {
	base := m.pageBase(addr)

	if p, ok := m.tlb.lookup(base); ok {
		return p
	}

	p, ok := m.pages[base]
	if !ok {
		return nil
	}

	m.tlb.fill(base, p)

	return p
}

// Probe checks that [addr, addr+size) is accessible without touching it.
func (m *Memory) Probe(addr uint32, size int, access Access) error {
	need := access.perm()
	for off := 0; off < size; {
		a := addr + uint32(off)
		p := m.lookup(a)
		if p == nil || p.perm&need == 0 {
			return &Fault{Addr: a, Access: access}
		}
		off += int(m.pageSize - (a - p.base))
	}
	return nil
}

// Read copies len(buf) bytes starting at addr into buf.
func (m *Memory) Read(addr uint32, buf []byte, access Access) error {
	if err := m.Probe(addr, len(buf), access); err != nil {
		return err
	}

	for i := range buf {
		a := addr + uint32(i)
		p := m.lookup(a)
		buf[i] = p.data[a-p.base]
	}

	return nil
}

// Write copies data to addr. Nothing is written if any byte would fault.
func (m *Memory) Write(addr uint32, data []byte) error {
	if err := m.Probe(addr, len(data), AccessWrite); err != nil {
		return err
	}

	for i, b := range data {
		a := addr + uint32(i)
		p := m.lookup(a)
		p.data[a-p.base] = b
	}

	return nil
}

// LoadBytes copies data into mapped pages regardless of their permissions.
// It is used to place program images.
func (m *Memory) LoadBytes(addr uint32, data []byte) error {
	if err := m.Probe(addr, len(data), AccessRead); err != nil {
		return fmt.Errorf("failed to load %d bytes at 0x%08x: %w", len(data), addr, err)
	}

	for i, b := range data {
		a := addr + uint32(i)
		p := m.lookup(a)
		p.data[a-p.base] = b
	}

	return nil
}

// ReadWord fetches an instruction word.
func (m *Memory) ReadWord(addr uint32) (uint32, error) {
	var buf [4]byte
	if err := m.Read(addr, buf[:], AccessExec); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(buf[:]), nil
}

// Read8 reads a byte.
func (m *Memory) Read8(addr uint32) (uint8, error) {
	var buf [1]byte
	err := m.Read(addr, buf[:], AccessRead)
	return buf[0], err
}

// Read16 reads a little-endian halfword.
func (m *Memory) Read16(addr uint32) (uint16, error) {
	var buf [2]byte
	err := m.Read(addr, buf[:], AccessRead)
	return binary.LittleEndian.Uint16(buf[:]), err
}

// Read32 reads a little-endian word.
func (m *Memory) Read32(addr uint32) (uint32, error) {
	var buf [4]byte
	err := m.Read(addr, buf[:], AccessRead)
	return binary.LittleEndian.Uint32(buf[:]), err
}

// Read64 reads a little-endian doubleword.
func (m *Memory) Read64(addr uint32) (uint64, error) {
	var buf [8]byte
	err := m.Read(addr, buf[:], AccessRead)
	return binary.LittleEndian.Uint64(buf[:]), err
}

// Write8 writes a byte.
func (m *Memory) Write8(addr uint32, v uint8) error {
	return m.Write(addr, []byte{v})
}

// Write16 writes a little-endian halfword.
func (m *Memory) Write16(addr uint32, v uint16) error {
	var buf [2]byte
	binary.LittleEndian.PutUint16(buf[:], v)
	return m.Write(addr, buf[:])
}

// Write32 writes a little-endian word.
func (m *Memory) Write32(addr uint32, v uint32) error {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	return m.Write(addr, buf[:])
}

// Write64 writes a little-endian doubleword.
func (m *Memory) Write64(addr uint32, v uint64) error {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	return m.Write(addr, buf[:])
}
