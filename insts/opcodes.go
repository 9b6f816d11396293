package insts

// Opcode identifies a Hexagon instruction.
type Opcode uint8

// Hexagon opcodes. The numeric value is the opcode field of the encoding.
const (
	OpUnknown Opcode = iota
	OpA2Nop
	OpA2Add
	OpA2Sub
	OpA2Tfr
	OpA2Tfrsi
	OpA2Addi
	OpA2Paddt
	OpA2Tfrrcr
	OpA2Tfrcrr
	OpC2Cmpeq
	OpC2Cmpeqi
	OpC2And
	OpL2Loadriio
	OpS2Storerbio
	OpS2Storerhio
	OpS2Storeriio
	OpS2Storerdio
	OpS2Pstoreritio
	OpS2StorewLocked
	OpS2Allocframe
	OpF2Sfadd
	OpJ2Jump
	OpJ2Jumpt
	OpJ2Jumpr
	OpJ2Call
	OpJ2Loop0i
	OpJ2Loop0r
	OpJ2Trap0
	OpY2Dczeroa
	OpV6Vaddw
	OpV6Vcmov
	OpV6Veqw
	OpV6Vmux
	OpV6VL32bai
	OpV6VL32bTmpai
	OpV6VS32bai

	// Loop end pseudo instructions. They have no encoding of their own and
	// are appended by the decoder from the packet's parse bits.
	OpJ2Endloop0
	OpJ2Endloop1
	OpJ2Endloop01

	numOpcodes
)

// Attr is a bitmask of static instruction attributes.
type Attr uint64

// Instruction attributes.
const (
	AttrCondExec Attr = 1 << iota // Predicated: writes resolve at runtime
	AttrLoad
	AttrStore
	AttrMemSize1B
	AttrMemSize2B
	AttrMemSize4B
	AttrMemSize8B
	AttrDCZeroA // Cache line zero store
	AttrHVX
	AttrVMem // HVX memory access
	AttrFPOp
	AttrCOF // Change of flow
	AttrJump
	AttrIndirect
	AttrCall
	AttrHWLoop0End
	AttrHWLoop1End
	AttrTrap

	AttrImplicitWritesFP
	AttrImplicitWritesSP
	AttrImplicitWritesLR
	AttrImplicitWritesLC0
	AttrImplicitWritesSA0
	AttrImplicitWritesLC1
	AttrImplicitWritesSA1
	AttrImplicitWritesUSR
	AttrImplicitWritesP0
	AttrImplicitWritesP1
	AttrImplicitWritesP2
	AttrImplicitWritesP3
	AttrImplicitReadsP0
	AttrImplicitReadsP1
	AttrImplicitReadsP2
	AttrImplicitReadsP3
)

// Format describes how the operand fields of a word are interpreted.
type Format uint8

// Encoding formats.
const (
	FormatNone Format = iota
	FormatRRR         // A=Rd, B=Rs, C=Rt
	FormatRR          // A=Rd, B=Rs
	FormatRI          // A=Rd, imm17={[18:16],[13:0]}
	FormatRRI         // A=Rd/Rt, B=Rs, imm8={[18:16],[8:4]}
	FormatJump        // imm22={[23:16],[13:0]} words
	FormatCondJump    // Pu, imm18={[23:16],[13:4]} words
	FormatLoopImm     // offset=[23:16] words, count=[13:4]
	FormatLoopReg     // offset=[23:16] words, count=Rs in B
	FormatU10         // unsigned [13:4]
	FormatVVV         // A=Vd, B=Vu, C=Vv, Qt/Ps in [1:0]
	FormatVMem        // A=Vd/Vs, B=Rs, imm8 vectors
	FormatPseudo      // not encodable
)

// OpInfo is the static description of one opcode.
type OpInfo struct {
	Name   string
	Format Format
	Attrs  Attr
}

var catalog = [numOpcodes]OpInfo{
	OpUnknown: {Name: "unknown"},
	OpA2Nop:   {Name: "A2_nop", Format: FormatNone},
	OpA2Add:   {Name: "A2_add", Format: FormatRRR},
	OpA2Sub:   {Name: "A2_sub", Format: FormatRRR},
	OpA2Tfr:   {Name: "A2_tfr", Format: FormatRR},
	OpA2Tfrsi: {Name: "A2_tfrsi", Format: FormatRI},
	OpA2Addi:  {Name: "A2_addi", Format: FormatRRI},
	OpA2Paddt: {Name: "A2_paddt", Format: FormatRRR, Attrs: AttrCondExec},
	OpA2Tfrrcr: {Name: "A2_tfrrcr", Format: FormatRR},
	OpA2Tfrcrr: {Name: "A2_tfrcrr", Format: FormatRR},
	OpC2Cmpeq:  {Name: "C2_cmpeq", Format: FormatRRR},
	OpC2Cmpeqi: {Name: "C2_cmpeqi", Format: FormatRRI},
	OpC2And:    {Name: "C2_and", Format: FormatRRR},
	OpL2Loadriio: {
		Name: "L2_loadri_io", Format: FormatRRI,
		Attrs: AttrLoad | AttrMemSize4B,
	},
	OpS2Storerbio: {
		Name: "S2_storerb_io", Format: FormatRRI,
		Attrs: AttrStore | AttrMemSize1B,
	},
	OpS2Storerhio: {
		Name: "S2_storerh_io", Format: FormatRRI,
		Attrs: AttrStore | AttrMemSize2B,
	},
	OpS2Storeriio: {
		Name: "S2_storeri_io", Format: FormatRRI,
		Attrs: AttrStore | AttrMemSize4B,
	},
	OpS2Storerdio: {
		Name: "S2_storerd_io", Format: FormatRRI,
		Attrs: AttrStore | AttrMemSize8B,
	},
	OpS2Pstoreritio: {
		Name: "S2_pstorerit_io", Format: FormatRRI,
		Attrs: AttrStore | AttrMemSize4B | AttrCondExec,
	},
	// The width of a locked store is only known when it executes.
	OpS2StorewLocked: {
		Name: "S2_storew_locked", Format: FormatRR,
		Attrs: AttrStore,
	},
	OpS2Allocframe: {
		Name: "S2_allocframe", Format: FormatU10,
		Attrs: AttrStore | AttrMemSize8B |
			AttrImplicitWritesFP | AttrImplicitWritesSP,
	},
	OpF2Sfadd: {Name: "F2_sfadd", Format: FormatRRR, Attrs: AttrFPOp},
	OpJ2Jump: {
		Name: "J2_jump", Format: FormatJump,
		Attrs: AttrCOF | AttrJump,
	},
	OpJ2Jumpt: {
		Name: "J2_jumpt", Format: FormatCondJump,
		Attrs: AttrCOF | AttrJump | AttrCondExec,
	},
	OpJ2Jumpr: {
		Name: "J2_jumpr", Format: FormatRR,
		Attrs: AttrCOF | AttrJump | AttrIndirect,
	},
	OpJ2Call: {
		Name: "J2_call", Format: FormatJump,
		Attrs: AttrCOF | AttrJump | AttrCall | AttrImplicitWritesLR,
	},
	OpJ2Loop0i: {
		Name: "J2_loop0i", Format: FormatLoopImm,
		Attrs: AttrImplicitWritesLC0 | AttrImplicitWritesSA0 |
			AttrImplicitWritesUSR,
	},
	OpJ2Loop0r: {
		Name: "J2_loop0r", Format: FormatLoopReg,
		Attrs: AttrImplicitWritesLC0 | AttrImplicitWritesSA0 |
			AttrImplicitWritesUSR,
	},
	OpJ2Trap0:   {Name: "J2_trap0", Format: FormatU10, Attrs: AttrTrap},
	OpY2Dczeroa: {Name: "Y2_dczeroa", Format: FormatRR, Attrs: AttrStore | AttrDCZeroA},
	OpV6Vaddw:   {Name: "V6_vaddw", Format: FormatVVV, Attrs: AttrHVX},
	OpV6Vcmov: {
		Name: "V6_vcmov", Format: FormatVVV,
		Attrs: AttrHVX | AttrCondExec,
	},
	OpV6Veqw: {Name: "V6_veqw", Format: FormatVVV, Attrs: AttrHVX},
	OpV6Vmux: {Name: "V6_vmux", Format: FormatVVV, Attrs: AttrHVX},
	OpV6VL32bai: {
		Name: "V6_vL32b_ai", Format: FormatVMem,
		Attrs: AttrHVX | AttrVMem | AttrLoad,
	},
	OpV6VL32bTmpai: {
		Name: "V6_vL32b_tmp_ai", Format: FormatVMem,
		Attrs: AttrHVX | AttrVMem | AttrLoad,
	},
	OpV6VS32bai: {
		Name: "V6_vS32b_ai", Format: FormatVMem,
		Attrs: AttrHVX | AttrVMem | AttrStore,
	},
	OpJ2Endloop0: {
		Name: "J2_endloop0", Format: FormatPseudo,
		Attrs: AttrCOF | AttrHWLoop0End | AttrImplicitWritesLC0 |
			AttrImplicitWritesP3 | AttrImplicitWritesUSR,
	},
	OpJ2Endloop1: {
		Name: "J2_endloop1", Format: FormatPseudo,
		Attrs: AttrCOF | AttrHWLoop1End | AttrImplicitWritesLC1,
	},
	OpJ2Endloop01: {
		Name: "J2_endloop01", Format: FormatPseudo,
		Attrs: AttrCOF | AttrHWLoop0End | AttrHWLoop1End |
			AttrImplicitWritesLC0 | AttrImplicitWritesLC1 |
			AttrImplicitWritesP3 | AttrImplicitWritesUSR,
	},
}

// Info returns the catalog entry of an opcode.
func Info(op Opcode) OpInfo {
	if op >= numOpcodes {
		return catalog[OpUnknown]
	}
	return catalog[op]
}

// Valid reports whether op names a catalog instruction.
func Valid(op Opcode) bool {
	return op > OpUnknown && op < numOpcodes
}

// HasAttr reports whether the opcode carries the given attribute.
func HasAttr(op Opcode, attr Attr) bool {
	return Info(op).Attrs&attr != 0
}

// String returns the mnemonic of the opcode.
func (op Opcode) String() string {
	return Info(op).Name
}

// MemSize returns the statically known access width in bytes, or 0 when the
// width is only known at runtime.
func (a Attr) MemSize() int {
	switch {
	case a&AttrMemSize1B != 0:
		return 1
	case a&AttrMemSize2B != 0:
		return 2
	case a&AttrMemSize4B != 0:
		return 4
	case a&AttrMemSize8B != 0:
		return 8
	}
	return 0
}
