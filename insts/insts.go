// Package insts provides Hexagon instruction definitions, packet decoding and
// a small assembler.
//
// Instructions are grouped into packets of one to four 32-bit words. Bits
// [15:14] of every word are the parse field: 0b11 marks the last word of a
// packet, 0b00 marks a duplex (not supported), and 0b01/0b10 mark words that
// continue the packet. The parse fields of the first two words also encode
// the hardware loop end markers (endloop0, endloop1, endloop01).
//
// The encoding of the remaining bits is a compact fixed-width layout covering
// the opcode subset in the catalog:
//
//	[31:24] opcode   [23:19] A    [18:16] immediate high bits
//	[15:14] parse    [13:9]  B    [8:4]   C
//	[3]     predicate sense (1 = if (!Pu))
//	[2]     mem_noshuf
//	[1:0]   predicate / vector predicate register
//
// Usage:
//
//	decoder := insts.NewDecoder()
//	words, _ := insts.EncodePacket([]insts.Insn{
//		insts.Add(2, 1, 3),
//		insts.Tfr(4, 2),
//	}, insts.LoopEndNone)
//	pkt, err := decoder.Decode(words, 0x1000)
package insts
