package insts

import (
	"errors"
	"fmt"
)

// Encode errors.
var (
	ErrImmRange     = errors.New("immediate out of range")
	ErrNotEncodable = errors.New("instruction has no encoding")
)

// Encode encodes a single instruction with a zero parse field.
func Encode(insn Insn) (uint32, error) {
	info := Info(insn.Opcode)
	if !Valid(insn.Opcode) || info.Format == FormatPseudo {
		return 0, fmt.Errorf("%w: %s", ErrNotEncodable, insn.Opcode)
	}

	word := uint32(insn.Opcode) << 24
	word |= uint32(insn.Dst&0x1F) << 19
	word |= uint32(insn.Pred & 0x3)
	if insn.PredNeg {
		word |= 1 << 3
	}
	if insn.NoShuf {
		word |= 1 << 2
	}

	switch info.Format {
	case FormatNone:
	case FormatRRR, FormatVVV:
		word |= uint32(insn.Src1&0x1F) << 9
		word |= uint32(insn.Src2&0x1F) << 4
	case FormatRR:
		word |= uint32(insn.Src1&0x1F) << 9
	case FormatRI:
		v, err := fitSigned(insn.Imm, 17)
		if err != nil {
			return 0, err
		}
		word |= (v >> 14 & 0x7) << 16
		word |= v & 0x3FFF
	case FormatRRI, FormatVMem:
		imm := insn.Imm
		scale := int32(1)
		if info.Format == FormatVMem {
			scale = VecBytes
		} else if size := info.Attrs.MemSize(); size > 0 && info.Attrs&(AttrLoad|AttrStore) != 0 {
			scale = int32(size)
		}
		if imm%scale != 0 {
			return 0, fmt.Errorf("%w: offset %d not aligned to %d", ErrImmRange, imm, scale)
		}
		v, err := fitSigned(imm/scale, 8)
		if err != nil {
			return 0, err
		}
		word |= uint32(insn.Src1&0x1F) << 9
		word |= (v >> 5 & 0x7) << 16
		word |= (v & 0x1F) << 4
	case FormatJump:
		v, err := fitWords(insn.Imm, 22)
		if err != nil {
			return 0, err
		}
		word &^= 0x1F << 19
		word |= (v >> 14 & 0xFF) << 16
		word |= v & 0x3FFF
	case FormatCondJump:
		v, err := fitWords(insn.Imm, 18)
		if err != nil {
			return 0, err
		}
		word &^= 0x1F << 19
		word |= (v >> 10 & 0xFF) << 16
		word |= (v & 0x3FF) << 4
	case FormatLoopImm, FormatLoopReg:
		v, err := fitWords(insn.Imm, 8)
		if err != nil {
			return 0, err
		}
		word &^= 0x1F << 19
		word |= (v & 0xFF) << 16
		if info.Format == FormatLoopImm {
			if insn.Imm2 < 0 || insn.Imm2 > 0x3FF {
				return 0, fmt.Errorf("%w: loop count %d", ErrImmRange, insn.Imm2)
			}
			word |= uint32(insn.Imm2) << 4
		} else {
			word |= uint32(insn.Src1&0x1F) << 9
		}
	case FormatU10:
		if insn.Imm < 0 || insn.Imm > 0x3FF {
			return 0, fmt.Errorf("%w: %d", ErrImmRange, insn.Imm)
		}
		word |= uint32(insn.Imm) << 4
	}

	return word, nil
}

// EncodePacket encodes a packet, setting the parse fields for the packet end
// and the requested loop end marker.
func EncodePacket(insns []Insn, end LoopEnd) ([]uint32, error) {
	n := len(insns)
	if n == 0 {
		return nil, ErrEmptyPacket
	}
	if n > PacketWordsMax {
		return nil, ErrTooManyWords
	}

	words := make([]uint32, n)
	for i := range insns {
		w, err := Encode(insns[i])
		if err != nil {
			return nil, fmt.Errorf("insn %d: %w", i, err)
		}
		words[i] = w
	}

	parse := make([]uint32, n)
	for i := range parse {
		parse[i] = ParseLoop1
	}
	parse[n-1] = ParseEnd

	switch end {
	case LoopEnd0:
		if n < 2 {
			return nil, fmt.Errorf("endloop0 needs at least 2 words, got %d", n)
		}
		parse[0] = ParseLoop0
	case LoopEnd1:
		if n < 3 {
			return nil, fmt.Errorf("endloop1 needs at least 3 words, got %d", n)
		}
		parse[0] = ParseLoop1
		parse[1] = ParseLoop0
	case LoopEnd01:
		if n < 3 {
			return nil, fmt.Errorf("endloop01 needs at least 3 words, got %d", n)
		}
		parse[0] = ParseLoop0
		parse[1] = ParseLoop0
	}

	for i := range words {
		words[i] |= parse[i] << 14
	}

	return words, nil
}

func fitSigned(v int32, bits uint) (uint32, error) {
	lo := -(int32(1) << (bits - 1))
	hi := int32(1)<<(bits-1) - 1
	if v < lo || v > hi {
		return 0, fmt.Errorf("%w: %d does not fit in %d bits", ErrImmRange, v, bits)
	}
	return uint32(v) & (1<<bits - 1), nil
}

func fitWords(offset int32, bits uint) (uint32, error) {
	if offset%4 != 0 {
		return 0, fmt.Errorf("%w: offset %d not word aligned", ErrImmRange, offset)
	}
	return fitSigned(offset/4, bits)
}

func mk(op Opcode) Insn {
	return Insn{Opcode: op, Attrs: Info(op).Attrs}
}

// Nop builds nop.
func Nop() Insn { return mk(OpA2Nop) }

// Add builds Rd = add(Rs, Rt).
func Add(d, s, t Reg) Insn {
	i := mk(OpA2Add)
	i.Dst, i.Src1, i.Src2 = uint8(d), uint8(s), uint8(t)
	return i
}

// Sub builds Rd = sub(Rt, Rs).
func Sub(d, t, s Reg) Insn {
	i := mk(OpA2Sub)
	i.Dst, i.Src1, i.Src2 = uint8(d), uint8(t), uint8(s)
	return i
}

// Tfr builds Rd = Rs.
func Tfr(d, s Reg) Insn {
	i := mk(OpA2Tfr)
	i.Dst, i.Src1 = uint8(d), uint8(s)
	return i
}

// Tfrsi builds Rd = #s16.
func Tfrsi(d Reg, imm int32) Insn {
	i := mk(OpA2Tfrsi)
	i.Dst, i.Imm = uint8(d), imm
	return i
}

// Addi builds Rd = add(Rs, #s8).
func Addi(d, s Reg, imm int32) Insn {
	i := mk(OpA2Addi)
	i.Dst, i.Src1, i.Imm = uint8(d), uint8(s), imm
	return i
}

// Paddt builds if ([!]Pu) Rd = add(Rs, Rt).
func Paddt(pu PredReg, neg bool, d, s, t Reg) Insn {
	i := Add(d, s, t)
	i.Opcode, i.Attrs = OpA2Paddt, Info(OpA2Paddt).Attrs
	i.Pred, i.PredNeg = uint8(pu), neg
	return i
}

// Tfrrcr builds Cd = Rs. c must be a control register index.
func Tfrrcr(c, s Reg) Insn {
	i := mk(OpA2Tfrrcr)
	i.Dst, i.Src1 = uint8(c-32), uint8(s)
	return i
}

// Tfrcrr builds Rd = Cs. c must be a control register index.
func Tfrcrr(d, c Reg) Insn {
	i := mk(OpA2Tfrcrr)
	i.Dst, i.Src1 = uint8(d), uint8(c-32)
	return i
}

// Cmpeq builds Pd = cmp.eq(Rs, Rt).
func Cmpeq(p PredReg, s, t Reg) Insn {
	i := mk(OpC2Cmpeq)
	i.Dst, i.Src1, i.Src2 = uint8(p), uint8(s), uint8(t)
	return i
}

// Cmpeqi builds Pd = cmp.eq(Rs, #s8).
func Cmpeqi(p PredReg, s Reg, imm int32) Insn {
	i := mk(OpC2Cmpeqi)
	i.Dst, i.Src1, i.Imm = uint8(p), uint8(s), imm
	return i
}

// PAnd builds Pd = and(Ps, Pt).
func PAnd(d, s, t PredReg) Insn {
	i := mk(OpC2And)
	i.Dst, i.Src1, i.Src2 = uint8(d), uint8(s), uint8(t)
	return i
}

// Loadri builds Rd = memw(Rs + #off).
func Loadri(d, s Reg, off int32) Insn {
	i := mk(OpL2Loadriio)
	i.Dst, i.Src1, i.Imm = uint8(d), uint8(s), off
	return i
}

func store(op Opcode, s Reg, off int32, t Reg) Insn {
	i := mk(op)
	i.Dst, i.Src1, i.Imm = uint8(t), uint8(s), off
	return i
}

// Storerb builds memb(Rs + #off) = Rt.
func Storerb(s Reg, off int32, t Reg) Insn { return store(OpS2Storerbio, s, off, t) }

// Storerh builds memh(Rs + #off) = Rt.
func Storerh(s Reg, off int32, t Reg) Insn { return store(OpS2Storerhio, s, off, t) }

// Storeri builds memw(Rs + #off) = Rt.
func Storeri(s Reg, off int32, t Reg) Insn { return store(OpS2Storeriio, s, off, t) }

// Storerd builds memd(Rs + #off) = Rtt, with Rtt = R(t+1):R(t).
func Storerd(s Reg, off int32, t Reg) Insn { return store(OpS2Storerdio, s, off, t) }

// Pstoreri builds if ([!]Pv) memw(Rs + #off) = Rt.
func Pstoreri(pv PredReg, neg bool, s Reg, off int32, t Reg) Insn {
	i := store(OpS2Pstoreritio, s, off, t)
	i.Pred, i.PredNeg = uint8(pv), neg
	return i
}

// StorewLocked builds memw_locked(Rs, Pd) = Rt.
func StorewLocked(pd PredReg, s, t Reg) Insn {
	i := mk(OpS2StorewLocked)
	i.Dst, i.Src1, i.Pred = uint8(t), uint8(s), uint8(pd)
	return i
}

// Allocframe builds allocframe(#bytes). bytes must be a multiple of 8.
func Allocframe(bytes int32) Insn {
	i := mk(OpS2Allocframe)
	i.Imm = bytes / 8
	return i
}

// Sfadd builds Rd = sfadd(Rs, Rt).
func Sfadd(d, s, t Reg) Insn {
	i := Add(d, s, t)
	i.Opcode, i.Attrs = OpF2Sfadd, Info(OpF2Sfadd).Attrs
	return i
}

// Jump builds jump #off, relative to the packet.
func Jump(off int32) Insn {
	i := mk(OpJ2Jump)
	i.Imm = off
	return i
}

// Jumpt builds if ([!]Pu) jump #off.
func Jumpt(pu PredReg, neg bool, off int32) Insn {
	i := mk(OpJ2Jumpt)
	i.Pred, i.PredNeg, i.Imm = uint8(pu), neg, off
	return i
}

// Jumpr builds jumpr Rs.
func Jumpr(s Reg) Insn {
	i := mk(OpJ2Jumpr)
	i.Src1 = uint8(s)
	return i
}

// Call builds call #off.
func Call(off int32) Insn {
	i := mk(OpJ2Call)
	i.Imm = off
	return i
}

// Loop0i builds loop0(#off, #count).
func Loop0i(off, count int32) Insn {
	i := mk(OpJ2Loop0i)
	i.Imm, i.Imm2 = off, count
	return i
}

// Loop0r builds loop0(#off, Rs).
func Loop0r(off int32, s Reg) Insn {
	i := mk(OpJ2Loop0r)
	i.Imm, i.Src1 = off, uint8(s)
	return i
}

// Trap0 builds trap0(#n).
func Trap0(n int32) Insn {
	i := mk(OpJ2Trap0)
	i.Imm = n
	return i
}

// Dczeroa builds dczeroa(Rs).
func Dczeroa(s Reg) Insn {
	i := mk(OpY2Dczeroa)
	i.Src1 = uint8(s)
	return i
}

// Vaddw builds Vd.w = vadd(Vu.w, Vv.w).
func Vaddw(d, u, v VecReg) Insn {
	i := mk(OpV6Vaddw)
	i.Dst, i.Src1, i.Src2 = uint8(d), uint8(u), uint8(v)
	return i
}

// Vcmov builds if ([!]Ps) Vd = Vu.
func Vcmov(ps PredReg, neg bool, d, u VecReg) Insn {
	i := mk(OpV6Vcmov)
	i.Dst, i.Src1, i.Pred, i.PredNeg = uint8(d), uint8(u), uint8(ps), neg
	return i
}

// Veqw builds Qd = vcmp.eq(Vu.w, Vv.w).
func Veqw(q QReg, u, v VecReg) Insn {
	i := mk(OpV6Veqw)
	i.Dst, i.Src1, i.Src2 = uint8(q), uint8(u), uint8(v)
	return i
}

// Vmux builds Vd = vmux(Qt, Vu, Vv).
func Vmux(q QReg, d, u, v VecReg) Insn {
	i := mk(OpV6Vmux)
	i.Dst, i.Src1, i.Src2, i.Pred = uint8(d), uint8(u), uint8(v), uint8(q)
	return i
}

// Vload builds Vd = vmem(Rs + #off).
func Vload(d VecReg, s Reg, off int32) Insn {
	i := mk(OpV6VL32bai)
	i.Dst, i.Src1, i.Imm = uint8(d), uint8(s), off
	return i
}

// VloadTmp builds Vd.tmp = vmem(Rs + #off).
func VloadTmp(d VecReg, s Reg, off int32) Insn {
	i := Vload(d, s, off)
	i.Opcode, i.Attrs = OpV6VL32bTmpai, Info(OpV6VL32bTmpai).Attrs
	return i
}

// Vstore builds vmem(Rs + #off) = Vs.
func Vstore(s Reg, off int32, v VecReg) Insn {
	i := mk(OpV6VS32bai)
	i.Dst, i.Src1, i.Imm = uint8(v), uint8(s), off
	return i
}

// NoShuf marks a load with :mem_noshuf.
func NoShuf(insn Insn) Insn {
	insn.NoShuf = true
	return insn
}
