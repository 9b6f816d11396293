package insts

import (
	"errors"
	"fmt"
)

// PacketWordsMax is the maximum number of words in one packet.
const PacketWordsMax = 4

// Parse field values, bits [15:14] of every word.
const (
	ParseDuplex uint32 = 0b00
	ParseLoop1  uint32 = 0b01 // Not last; also the plain "continue" value
	ParseLoop0  uint32 = 0b10 // Not last
	ParseEnd    uint32 = 0b11
)

// LoopEnd is the hardware loop end marker carried by a packet.
type LoopEnd uint8

// Loop end markers.
const (
	LoopEndNone LoopEnd = iota
	LoopEnd0
	LoopEnd1
	LoopEnd01
)

// Decode errors.
var (
	ErrEmptyPacket   = errors.New("empty packet")
	ErrTooManyWords  = errors.New("packet exceeds maximum word count")
	ErrNoPacketEnd   = errors.New("packet end marker misplaced")
	ErrDuplex        = errors.New("duplex sub-instructions are not supported")
	ErrUnknownOpcode = errors.New("unknown opcode")
	ErrSlot          = errors.New("instruction not allowed in slot")
	ErrDCZeroA       = errors.New("dczeroa must be the only store in a packet")
)

// Insn is a decoded Hexagon instruction.
type Insn struct {
	Opcode Opcode // Operation code
	Slot   uint8  // Execution slot, 0-3
	Attrs  Attr   // Static attributes copied from the catalog

	// Operand fields
	Dst  uint8 // Field A: destination (or store source / predicate)
	Src1 uint8 // Field B: first source (or base address)
	Src2 uint8 // Field C: second source

	// Predication
	Pred    uint8 // Pu / Pv / Ps / Qt
	PredNeg bool  // true for if (!Pu)

	NoShuf bool // :mem_noshuf on a load

	Imm  int32 // Immediate, already scaled to bytes for memory and jumps
	Imm2 int32 // Second immediate (loop count)
}

// Has reports whether the instruction carries the given attribute.
func (i *Insn) Has(attr Attr) bool {
	return i.Attrs&attr != 0
}

// Pseudo reports whether the instruction was synthesized by the decoder.
func (i *Insn) Pseudo() bool {
	return Info(i.Opcode).Format == FormatPseudo
}

// Packet is a decoded group of instructions that execute together.
type Packet struct {
	PC           uint32
	Insns        []Insn
	EncodedBytes uint32
	LoopEnd      LoopEnd

	HasStoreS0   bool // Scalar store in slot 0
	HasStoreS1   bool // Scalar store in slot 1
	HasLoadS0    bool
	HasLoadS1    bool
	HasDCZeroA   bool
	HasHVX       bool
	HasHVXStore  bool
	HasCOF       bool
	HasMultiCOF  bool
	HasIndirect  bool
	HasCall      bool
	HasEndLoop   bool
	HasMemNoShuf bool
}

// RealInsns returns the number of encoded instructions in the packet.
func (p *Packet) RealInsns() int {
	n := 0
	for i := range p.Insns {
		if !p.Insns[i].Pseudo() {
			n++
		}
	}
	return n
}

// SlotInsn returns the encoded instruction executing in the given slot.
func (p *Packet) SlotInsn(slot uint8) *Insn {
	for i := range p.Insns {
		if !p.Insns[i].Pseudo() && p.Insns[i].Slot == slot {
			return &p.Insns[i]
		}
	}
	return nil
}

// SlotPredicated reports whether the instruction in a slot is predicated.
func (p *Packet) SlotPredicated(slot uint8) bool {
	insn := p.SlotInsn(slot)
	return insn != nil && insn.Has(AttrCondExec)
}

// Last returns the last instruction of the packet, including loop end
// pseudo instructions.
func (p *Packet) Last() *Insn {
	return &p.Insns[len(p.Insns)-1]
}

// ParseBits extracts the parse field of a word.
func ParseBits(word uint32) uint32 {
	return (word >> 14) & 0x3
}

// IsPacketEnd reports whether a word terminates its packet.
func IsPacketEnd(word uint32) bool {
	p := ParseBits(word)
	return p == ParseEnd || p == ParseDuplex
}

// Decoder decodes Hexagon packets.
type Decoder struct{}

// NewDecoder creates a new packet decoder.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Decode decodes the words of one packet starting at pc.
func (d *Decoder) Decode(words []uint32, pc uint32) (*Packet, error) {
	if len(words) == 0 {
		return nil, ErrEmptyPacket
	}
	if len(words) > PacketWordsMax {
		return nil, ErrTooManyWords
	}

	for i, w := range words {
		parse := ParseBits(w)
		last := i == len(words)-1

		switch {
		case parse == ParseDuplex:
			return nil, fmt.Errorf("%w: word %d (0x%08x)", ErrDuplex, i, w)
		case last && parse != ParseEnd:
			return nil, fmt.Errorf("%w: last word %d (0x%08x)", ErrNoPacketEnd, i, w)
		case !last && parse == ParseEnd:
			return nil, fmt.Errorf("%w: word %d (0x%08x)", ErrNoPacketEnd, i, w)
		}
	}

	pkt := &Packet{
		PC:           pc,
		EncodedBytes: uint32(len(words)) * 4,
		Insns:        make([]Insn, 0, len(words)+1),
	}

	for i, w := range words {
		insn, err := d.decodeWord(w)
		if err != nil {
			return nil, fmt.Errorf("word %d: %w", i, err)
		}

		// Slots are assigned from the end of the packet.
		insn.Slot = uint8(len(words) - 1 - i)
		pkt.Insns = append(pkt.Insns, insn)
	}

	pkt.LoopEnd = decodeLoopEnd(words)
	switch pkt.LoopEnd {
	case LoopEnd0:
		pkt.Insns = append(pkt.Insns, pseudo(OpJ2Endloop0))
	case LoopEnd1:
		pkt.Insns = append(pkt.Insns, pseudo(OpJ2Endloop1))
	case LoopEnd01:
		pkt.Insns = append(pkt.Insns, pseudo(OpJ2Endloop01))
	}

	if err := checkSlots(pkt); err != nil {
		return nil, err
	}

	pkt.computeFlags()

	return pkt, nil
}

func pseudo(op Opcode) Insn {
	return Insn{Opcode: op, Attrs: Info(op).Attrs}
}

// decodeLoopEnd reads the loop end marker from the parse fields of the
// first two words.
func decodeLoopEnd(words []uint32) LoopEnd {
	if len(words) < 2 {
		return LoopEndNone
	}

	p0 := ParseBits(words[0])
	p1 := ParseBits(words[1])

	switch {
	case p0 == ParseLoop0 && p1 == ParseLoop0:
		return LoopEnd01
	case p0 == ParseLoop0:
		return LoopEnd0
	case p0 == ParseLoop1 && p1 == ParseLoop0:
		return LoopEnd1
	}

	return LoopEndNone
}

// decodeWord decodes the instruction fields of one word.
func (d *Decoder) decodeWord(word uint32) (Insn, error) {
	op := Opcode(word >> 24) // bits [31:24]
	if !Valid(op) || Info(op).Format == FormatPseudo {
		return Insn{}, fmt.Errorf("%w: 0x%02x", ErrUnknownOpcode, uint8(op))
	}

	info := Info(op)
	insn := Insn{
		Opcode:  op,
		Attrs:   info.Attrs,
		Dst:     uint8((word >> 19) & 0x1F), // bits [23:19]
		Src1:    uint8((word >> 9) & 0x1F),  // bits [13:9]
		Src2:    uint8((word >> 4) & 0x1F),  // bits [8:4]
		Pred:    uint8(word & 0x3),          // bits [1:0]
		PredNeg: (word>>3)&0x1 == 1,         // bit 3
		NoShuf:  (word>>2)&0x1 == 1,         // bit 2
	}

	immHi := (word >> 16) & 0x7 // bits [18:16]

	switch info.Format {
	case FormatRI:
		insn.Imm = signExtend(immHi<<14|word&0x3FFF, 17)
	case FormatRRI:
		insn.Imm = signExtend(immHi<<5|uint32(insn.Src2), 8)
		if size := info.Attrs.MemSize(); size > 0 && info.Attrs&(AttrLoad|AttrStore) != 0 {
			insn.Imm *= int32(size)
		}
	case FormatJump:
		insn.Imm = signExtend((word>>16)&0xFF<<14|word&0x3FFF, 22) * 4
	case FormatCondJump:
		insn.Imm = signExtend((word>>16)&0xFF<<10|(word>>4)&0x3FF, 18) * 4
	case FormatLoopImm:
		insn.Imm = signExtend((word>>16)&0xFF, 8) * 4
		insn.Imm2 = int32((word >> 4) & 0x3FF)
	case FormatLoopReg:
		insn.Imm = signExtend((word>>16)&0xFF, 8) * 4
	case FormatU10:
		insn.Imm = int32((word >> 4) & 0x3FF)
	case FormatVMem:
		insn.Imm = signExtend(immHi<<5|uint32(insn.Src2), 8) * VecBytes
	}

	return insn, nil
}

// checkSlots enforces the slot and store-combination rules.
func checkSlots(pkt *Packet) error {
	stores := 0
	dczeroa := false

	for i := range pkt.Insns {
		insn := &pkt.Insns[i]
		if insn.Pseudo() {
			continue
		}

		if insn.Has(AttrLoad|AttrStore) && insn.Slot > 1 {
			return fmt.Errorf("%w: %s in slot %d", ErrSlot, insn.Opcode, insn.Slot)
		}

		if insn.Has(AttrStore) {
			stores++
		}
		if insn.Has(AttrDCZeroA) {
			dczeroa = true
		}
	}

	if dczeroa && stores > 1 {
		return ErrDCZeroA
	}

	return nil
}

// computeFlags derives the packet-wide flags from the instructions.
func (p *Packet) computeFlags() {
	cofs := 0

	for i := range p.Insns {
		insn := &p.Insns[i]

		switch {
		case insn.Has(AttrDCZeroA):
			p.HasDCZeroA = true
		case insn.Has(AttrStore) && insn.Has(AttrVMem):
			p.HasHVXStore = true
		case insn.Has(AttrStore) && insn.Slot == 0:
			p.HasStoreS0 = true
		case insn.Has(AttrStore) && insn.Slot == 1:
			p.HasStoreS1 = true
		}

		if insn.Has(AttrLoad) {
			if insn.Slot == 0 {
				p.HasLoadS0 = true
			} else {
				p.HasLoadS1 = true
			}
			if insn.NoShuf {
				p.HasMemNoShuf = true
			}
		}

		if insn.Has(AttrHVX) {
			p.HasHVX = true
		}
		if insn.Has(AttrCOF) {
			p.HasCOF = true
			cofs++
		}
		if insn.Has(AttrIndirect) {
			p.HasIndirect = true
		}
		if insn.Has(AttrCall) {
			p.HasCall = true
		}
		if insn.Has(AttrHWLoop0End | AttrHWLoop1End) {
			p.HasEndLoop = true
		}
	}

	p.HasMultiCOF = cofs > 1
}

// signExtend sign-extends the low bits of v.
func signExtend(v uint32, bits uint) int32 {
	shift := 32 - bits
	return int32(v<<shift) >> shift
}
