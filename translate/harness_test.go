package translate_test

import (
	"context"
	"encoding/binary"

	. "github.com/onsi/gomega"

	"github.com/sarchlab/hexdbt/emu"
	"github.com/sarchlab/hexdbt/insts"
	"github.com/sarchlab/hexdbt/ir/interp"
	"github.com/sarchlab/hexdbt/semantics"
	"github.com/sarchlab/hexdbt/translate"
)

const (
	codeBase = 0x1000
	codeSize = 0x2000
	dataBase = 0x10000
)

// harness translates code placed in guest memory and runs it on the
// reference interpreter.
type harness struct {
	memory  *emu.Memory
	regs    *emu.RegFile
	machine *interp.Machine
	tr      *translate.Translator
}

func newHarness(opts ...translate.Option) *harness {
	return newHarnessWithTable(semantics.Table(), opts...)
}

func newHarnessWithTable(table translate.OpcodeTable, opts ...translate.Option) *harness {
	memory := emu.NewMemory()
	memory.Map(codeBase, codeSize, emu.PermRX)
	memory.Map(dataBase, 0x1000, emu.PermRW)
	return newHarnessWithMemory(memory, table, opts...)
}

func newHarnessWithMemory(
	memory *emu.Memory,
	table translate.OpcodeTable,
	opts ...translate.Option,
) *harness {
	regs := &emu.RegFile{}
	machine := interp.NewMachine(regs, emu.NewLoadStoreUnit(memory))
	machine.TraceStores = true

	h := &harness{
		memory:  memory,
		regs:    regs,
		machine: machine,
		tr:      translate.NewTranslator(memory, table, opts...),
	}
	h.fill()

	return h
}

// fill covers the mapped part of the code area with "jump ." packets so
// that every block ends right after the code a test places.
func (h *harness) fill() {
	self := packet(insts.LoopEndNone, insts.Jump(0))
	for pc := uint32(codeBase); pc < codeBase+codeSize; pc += 4 {
		if h.memory.Mapped(pc) {
			h.placeWords(pc, self)
		}
	}
}

// packet encodes one packet.
func packet(end insts.LoopEnd, insns ...insts.Insn) []uint32 {
	words, err := insts.EncodePacket(insns, end)
	Expect(err).NotTo(HaveOccurred())
	return words
}

// place writes packets back to back from pc and returns the address after
// the last one.
func (h *harness) place(pc uint32, packets ...[]uint32) uint32 {
	for _, words := range packets {
		h.placeWords(pc, words)
		pc += uint32(4 * len(words))
	}
	return pc
}

func (h *harness) placeWords(pc uint32, words []uint32) {
	buf := make([]byte, 4*len(words))
	for i, w := range words {
		binary.LittleEndian.PutUint32(buf[4*i:], w)
	}
	Expect(h.memory.LoadBytes(pc, buf)).To(Succeed())
}

func (h *harness) translate(pc uint32) *translate.Block {
	return h.tr.TranslateBlock(context.Background(), pc, translate.FlagsFromState(h.regs, pc))
}

// run translates and executes the block at pc.
func (h *harness) run(pc uint32) (*translate.Block, interp.Exit) {
	b := h.translate(pc)
	exit, err := h.machine.Run(b.Unit)
	Expect(err).NotTo(HaveOccurred())
	return b, exit
}

func (h *harness) word(addr uint32) uint32 {
	v, err := h.memory.Read32(addr)
	Expect(err).NotTo(HaveOccurred())
	return v
}
