package translate_test

import (
	"context"
	"encoding/json"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sarchlab/akita/v4/sim"
	"github.com/yudai/gojsondiff"

	"github.com/sarchlab/hexdbt/emu"
	"github.com/sarchlab/hexdbt/insts"
	"github.com/sarchlab/hexdbt/ir"
	"github.com/sarchlab/hexdbt/ir/interp"
	"github.com/sarchlab/hexdbt/semantics"
	"github.com/sarchlab/hexdbt/translate"
)

type recordingHook struct {
	packets []*translate.PacketSummary
	blocks  []*translate.Block
}

func (r *recordingHook) Func(ctx sim.HookCtx) {
	switch ctx.Pos {
	case translate.HookPosPacket:
		r.packets = append(r.packets, ctx.Item.(*translate.PacketSummary))
	case translate.HookPosBlock:
		r.blocks = append(r.blocks, ctx.Item.(*translate.Block))
	}
}

func nops(n int) [][]uint32 {
	out := make([][]uint32, n)
	for i := range out {
		out[i] = packet(insts.LoopEndNone, insts.Nop())
	}
	return out
}

var _ = Describe("Block formation", func() {
	It("should end a block after the packet limit", func() {
		cfg := translate.DefaultConfig()
		cfg.MaxPacketsPerBlock = 2
		h := newHarness(translate.WithConfig(cfg))
		h.place(codeBase, nops(4)...)

		b, exit := h.run(codeBase)

		Expect(b.NumPackets).To(Equal(2))
		Expect(b.EndPC).To(Equal(uint32(codeBase + 8)))
		Expect(b.Exit).To(Equal(translate.EpilogueFallthrough))
		Expect(exit.Kind).To(Equal(interp.ExitGoto))
		Expect(exit.Chain).To(Equal(ir.ChainNone))
		Expect(h.regs.Counters.Packets).To(Equal(uint64(2)))
		Expect(h.regs.Counters.Insns).To(Equal(uint64(2)))
	})

	It("should keep room for a full packet under the instruction limit", func() {
		cfg := translate.DefaultConfig()
		cfg.MaxInsnsPerBlock = 8
		h := newHarness(translate.WithConfig(cfg))
		four := packet(insts.LoopEndNone, insts.Nop(), insts.Nop(), insts.Nop(), insts.Nop())
		h.place(codeBase, four, four, four)

		b := h.translate(codeBase)

		Expect(b.NumPackets).To(Equal(2))
		Expect(b.NumInsns).To(Equal(8))
		Expect(b.EndPC).To(Equal(uint32(codeBase + 32)))
	})

	It("should stop at the end of the page", func() {
		cfg := translate.DefaultConfig()
		cfg.PageSize = 64
		h := newHarness(translate.WithConfig(cfg))
		h.place(codeBase, nops(20)...)

		b := h.translate(codeBase)

		Expect(b.NumPackets).To(Equal(16))
		Expect(b.EndPC).To(Equal(uint32(codeBase + 64)))
		Expect(b.Exit).To(Equal(translate.EpilogueFallthrough))
	})

	It("should not start a packet that crosses into the next page", func() {
		cfg := translate.DefaultConfig()
		cfg.PageSize = 64
		h := newHarness(translate.WithConfig(cfg))
		next := h.place(codeBase, nops(15)...)
		h.place(next, packet(insts.LoopEndNone, insts.Nop(), insts.Nop()))

		b := h.translate(codeBase)

		Expect(b.NumPackets).To(Equal(15))
		Expect(b.EndPC).To(Equal(next))
	})

	It("should let the first packet of a block cross the page", func() {
		cfg := translate.DefaultConfig()
		cfg.PageSize = 64
		h := newHarness(translate.WithConfig(cfg))
		start := uint32(codeBase + 60)
		h.place(start, packet(insts.LoopEndNone, insts.Nop(), insts.Nop()))

		b := h.translate(start)

		Expect(b.NumPackets).To(Equal(1))
		Expect(b.EndPC).To(Equal(start + 8))
		Expect(b.Exit).To(Equal(translate.EpilogueFallthrough))
	})

	It("should raise a fetch fault for an unmapped block", func() {
		h := newHarness()

		b, exit := h.run(0x50000)

		Expect(b.NumPackets).To(BeZero())
		Expect(b.Exit).To(Equal(translate.EpilogueException))
		Expect(exit.Kind).To(Equal(interp.ExitException))
		Expect(exit.Cause).To(Equal(emu.ExcpFetchNoUPage))
		Expect(exit.PC).To(Equal(uint32(0x50000)))
	})

	It("should raise a fetch fault for code without execute permission", func() {
		h := newHarness()

		_, exit := h.run(dataBase)

		Expect(exit.Cause).To(Equal(emu.ExcpFetchNoUPage))
	})

	It("should end the block before a later packet that cannot be fetched", func() {
		memory := emu.NewMemory(emu.WithPageSize(64))
		memory.Map(codeBase, 64, emu.PermRX)
		memory.Map(dataBase, 64, emu.PermRW)
		h := newHarnessWithMemory(memory, semantics.Table())
		h.place(codeBase, nops(16)...)

		b, exit := h.run(codeBase)

		Expect(b.NumPackets).To(Equal(16))
		Expect(b.Exit).To(Equal(translate.EpilogueFallthrough))
		Expect(exit.Kind).To(Equal(interp.ExitGoto))
		Expect(exit.PC).To(Equal(uint32(codeBase + 64)))
	})

	It("should reject a packet without an end marker", func() {
		h := newHarness()
		word := packet(insts.LoopEndNone, insts.Nop())[0]
		word = word&^(0x3<<14) | insts.ParseLoop1<<14
		h.placeWords(codeBase, []uint32{word, word, word, word})

		b, exit := h.run(codeBase)

		Expect(b.Exit).To(Equal(translate.EpilogueException))
		Expect(b.ExitCause).To(Equal(emu.ExcpInvalidPacket))
		Expect(exit.Cause).To(Equal(emu.ExcpInvalidPacket))
		Expect(exit.PC).To(Equal(uint32(codeBase)))
	})

	It("should reject duplex packets", func() {
		h := newHarness()
		word := packet(insts.LoopEndNone, insts.Nop())[0]
		h.placeWords(codeBase, []uint32{word &^ (0x3 << 14)})

		_, exit := h.run(codeBase)

		Expect(exit.Cause).To(Equal(emu.ExcpInvalidPacket))
	})

	It("should discard a packet with an instruction it cannot translate", func() {
		table := semantics.Without(semantics.Table(), insts.OpA2Sub)
		h := newHarnessWithTable(table)
		next := h.place(codeBase, packet(insts.LoopEndNone, insts.Addi(r1, r1, 1)))
		h.place(next, packet(insts.LoopEndNone, insts.Addi(r2, r2, 1), insts.Sub(r3, r4, r5)))

		b, exit := h.run(codeBase)

		Expect(b.NumPackets).To(Equal(1))
		Expect(b.Packets).To(HaveLen(1))
		Expect(b.ExitCause).To(Equal(emu.ExcpInvalidOpcode))
		Expect(exit.Kind).To(Equal(interp.ExitException))
		Expect(exit.Cause).To(Equal(emu.ExcpInvalidOpcode))
		Expect(exit.PC).To(Equal(next))
		Expect(h.regs.R[r1]).To(Equal(uint32(1)))
		Expect(h.regs.R[r2]).To(BeZero())
		Expect(h.regs.Counters.Packets).To(Equal(uint64(1)))
	})

	It("should translate the same code identically every time", func() {
		h := newHarness()
		h.place(codeBase,
			packet(insts.LoopEndNone, insts.Add(r2, r1, r3), insts.Tfr(r4, r2)),
			packet(insts.LoopEndNone, insts.Storeri(r0, 0, r1), insts.Storerb(r0, 0, r2)),
			packet(insts.LoopEndNone, insts.Jumpt(0, false, 0x40)),
		)
		other := translate.NewTranslator(h.memory, semantics.Table())

		first, err := json.Marshal(h.translate(codeBase))
		Expect(err).NotTo(HaveOccurred())
		second, err := json.Marshal(other.TranslateBlock(context.Background(), codeBase, translate.BlockFlags{}))
		Expect(err).NotTo(HaveOccurred())

		diff, err := gojsondiff.New().Compare(first, second)
		Expect(err).NotTo(HaveOccurred())
		Expect(diff.Modified()).To(BeFalse())
	})

	It("should summarize the packets of a block", func() {
		h := newHarness()
		h.place(codeBase,
			packet(insts.LoopEndNone, insts.Add(r2, r1, r3), insts.Tfr(r4, r2)),
			packet(insts.LoopEndNone, insts.Jump(0x40)),
		)

		b := h.translate(codeBase)

		Expect(b.Packets).To(HaveLen(2))
		Expect(b.Packets[0].Insns).To(Equal([]string{"A2_add", "A2_tfr"}))
		Expect(b.Packets[0].Epilogue).To(Equal(translate.EpilogueNone))
		Expect(b.Packets[1].Epilogue).To(Equal(translate.EpilogueTaken))
		Expect(b.Packets[1].OpStart).To(Equal(b.Packets[0].OpEnd))
		Expect(b.Packets[1].OpEnd).To(Equal(b.Unit.Len()))
	})

	It("should render the block as a tree", func() {
		h := newHarness()
		h.place(codeBase,
			packet(insts.LoopEndNone, insts.Add(r2, r1, r3), insts.Tfr(r1, r2)),
			packet(insts.LoopEndNone, insts.Jump(0x40)),
		)

		b := h.translate(codeBase)
		plain := b.Tree(false).String()
		withOps := b.Tree(true).String()

		Expect(plain).To(ContainSubstring("block 0x00001000..0x0000100c exit=taken packets=2"))
		Expect(plain).To(ContainSubstring("packet 0x00001000 { A2_add; A2_tfr }"))
		Expect(plain).To(ContainSubstring("need_commit=true hazard=true"))
		Expect(plain).To(ContainSubstring("epilogue=taken"))
		Expect(plain).NotTo(ContainSubstring("goto_tb"))
		Expect(withOps).To(ContainSubstring("goto_tb 0x00001048, chain=0"))
	})

	It("should report packets and blocks to hooks in debug mode", func() {
		cfg := translate.DefaultConfig()
		cfg.Debug = true
		hook := &recordingHook{}
		h := newHarness(translate.WithConfig(cfg), translate.WithHook(hook))
		h.place(codeBase, nops(2)...)

		b := h.translate(codeBase)

		Expect(hook.packets).To(HaveLen(3))
		Expect(hook.blocks).To(ConsistOf(b))
	})

	It("should stay quiet without debug mode", func() {
		hook := &recordingHook{}
		h := newHarness(translate.WithHook(hook))
		h.place(codeBase, nops(2)...)

		h.translate(codeBase)

		Expect(hook.packets).To(BeEmpty())
		Expect(hook.blocks).To(BeEmpty())
	})
})
