// Package loader provides ELF binary loading for Hexagon executables.
package loader

import (
	"debug/elf"
	"fmt"
	"io"

	"github.com/sarchlab/hexdbt/emu"
)

// SegmentFlags represents memory protection flags for a segment.
type SegmentFlags uint32

const (
	// SegmentFlagExecute indicates the segment is executable.
	SegmentFlagExecute SegmentFlags = 1 << iota
	// SegmentFlagWrite indicates the segment is writable.
	SegmentFlagWrite
	// SegmentFlagRead indicates the segment is readable.
	SegmentFlagRead
)

// Perm converts segment flags to page permissions.
func (f SegmentFlags) Perm() emu.Perm {
	var perm emu.Perm
	if f&SegmentFlagRead != 0 {
		perm |= emu.PermRead
	}
	if f&SegmentFlagWrite != 0 {
		perm |= emu.PermWrite
	}
	if f&SegmentFlagExecute != 0 {
		perm |= emu.PermExec
	}
	return perm
}

// DefaultStackTop is the default stack top for Hexagon Linux user space.
const DefaultStackTop uint32 = 0xb0000000

// DefaultStackSize is the default stack size (1MB).
const DefaultStackSize uint32 = 1024 * 1024

// Segment represents a loadable segment from an ELF binary.
type Segment struct {
	// VirtAddr is the virtual address where this segment should be loaded.
	VirtAddr uint32
	// Data contains the segment contents from the file.
	Data []byte
	// MemSize is the size in memory (may be larger than len(Data) for BSS).
	MemSize uint32
	// Flags contains the segment protection flags.
	Flags SegmentFlags
}

// Program represents a loaded ELF program ready for execution.
type Program struct {
	// EntryPoint is the virtual address where execution should begin.
	EntryPoint uint32
	// Segments contains all loadable segments from the ELF file.
	Segments []Segment
	// InitialSP is the initial stack pointer value.
	InitialSP uint32
	// StackSize is the size of the stack mapped below InitialSP.
	StackSize uint32
}

// Load parses a Hexagon ELF binary and returns a Program ready to be
// mapped into guest memory.
func Load(path string) (*Program, error) {
	f, err := elf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open ELF file: %w", err)
	}
	defer func() { _ = f.Close() }()

	return parse(f)
}

// Parse reads a Hexagon ELF binary from r.
func Parse(r io.ReaderAt) (*Program, error) {
	f, err := elf.NewFile(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse ELF file: %w", err)
	}
	defer func() { _ = f.Close() }()

	return parse(f)
}

func parse(f *elf.File) (*Program, error) {
	if f.Class != elf.ELFCLASS32 {
		return nil, fmt.Errorf("not a 32-bit ELF file")
	}

	if f.Machine != elf.EM_QDSP6 {
		return nil, fmt.Errorf("not a Hexagon ELF file (machine type: %v)", f.Machine)
	}

	prog := &Program{
		EntryPoint: uint32(f.Entry),
		InitialSP:  DefaultStackTop,
		StackSize:  DefaultStackSize,
	}

	for _, phdr := range f.Progs {
		if phdr.Type != elf.PT_LOAD {
			continue
		}

		if phdr.Memsz < phdr.Filesz {
			return nil, fmt.Errorf("segment at 0x%x: memory size %d is smaller than file size %d",
				phdr.Vaddr, phdr.Memsz, phdr.Filesz)
		}

		data := make([]byte, phdr.Filesz)
		if phdr.Filesz > 0 {
			n, err := phdr.ReadAt(data, 0)
			if err != nil && err != io.EOF {
				return nil, fmt.Errorf("failed to read segment at 0x%x: %w", phdr.Vaddr, err)
			}
			if uint64(n) != phdr.Filesz {
				return nil, fmt.Errorf("short read for segment at 0x%x: got %d bytes, expected %d",
					phdr.Vaddr, n, phdr.Filesz)
			}
		}

		var flags SegmentFlags
		if phdr.Flags&elf.PF_X != 0 {
			flags |= SegmentFlagExecute
		}
		if phdr.Flags&elf.PF_W != 0 {
			flags |= SegmentFlagWrite
		}
		if phdr.Flags&elf.PF_R != 0 {
			flags |= SegmentFlagRead
		}

		prog.Segments = append(prog.Segments, Segment{
			VirtAddr: uint32(phdr.Vaddr),
			Data:     data,
			MemSize:  uint32(phdr.Memsz),
			Flags:    flags,
		})
	}

	if len(prog.Segments) == 0 {
		return nil, fmt.Errorf("ELF file has no loadable segments")
	}

	return prog, nil
}

// MapInto maps every segment and the stack into memory and copies the
// segment contents. The BSS part of a segment reads as zero.
func (p *Program) MapInto(memory *emu.Memory) error {
	for _, seg := range p.Segments {
		memory.Map(seg.VirtAddr, seg.MemSize, seg.Flags.Perm())
		if err := memory.LoadBytes(seg.VirtAddr, seg.Data); err != nil {
			return fmt.Errorf("failed to load segment at 0x%08x: %w", seg.VirtAddr, err)
		}
	}

	if p.StackSize > 0 {
		memory.Map(p.InitialSP-p.StackSize, p.StackSize, emu.PermRW)
	}

	return nil
}
