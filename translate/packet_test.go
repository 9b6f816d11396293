package translate_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/hexdbt/emu"
	"github.com/sarchlab/hexdbt/insts"
	"github.com/sarchlab/hexdbt/ir"
	"github.com/sarchlab/hexdbt/ir/interp"
	"github.com/sarchlab/hexdbt/translate"
)

const (
	r0 insts.Reg = iota
	r1
	r2
	r3
	r4
	r5
	r6
	r7
)

var _ = Describe("Packet semantics", func() {
	var h *harness

	BeforeEach(func() {
		h = newHarness()
	})

	Context("hazard classification", func() {
		summarize := func(insns ...insts.Insn) translate.PacketSummary {
			h.place(codeBase, packet(insts.LoopEndNone, insns...))
			b := h.translate(codeBase)
			Expect(b.Packets).To(HaveLen(1))
			return b.Packets[0]
		}

		It("should stage a packet that reads a register written earlier in it", func() {
			p := summarize(insts.Addi(r5, r1, 1), insts.Tfr(r6, r5))
			Expect(p.Hazard).To(BeTrue())
			Expect(p.NeedCommit).To(BeTrue())
			Expect(p.RegLog).To(Equal([]int{5, 6}))
		})

		It("should not treat a read before the write as a hazard", func() {
			p := summarize(insts.Tfr(r6, r5), insts.Addi(r5, r1, 1))
			Expect(p.Hazard).To(BeFalse())
			Expect(p.NeedCommit).To(BeFalse())
		})

		It("should not stage independent instructions", func() {
			p := summarize(insts.Add(r1, r2, r3), insts.Add(r4, r6, r7))
			Expect(p.Hazard).To(BeFalse())
			Expect(p.NeedCommit).To(BeFalse())
		})

		It("should not stage a single instruction reading its own destination", func() {
			p := summarize(insts.Addi(r5, r5, 1))
			Expect(p.NeedCommit).To(BeFalse())
		})

		It("should stage packets with memory accesses", func() {
			p := summarize(insts.Loadri(r1, r0, 0))
			Expect(p.Hazard).To(BeFalse())
			Expect(p.NeedCommit).To(BeTrue())
		})

		It("should stage writes to registers with immutable bits", func() {
			p := summarize(insts.Tfrrcr(insts.RegUSR, r1))
			Expect(p.NeedCommit).To(BeTrue())
		})

		It("should stage floating point packets", func() {
			p := summarize(insts.Sfadd(r1, r2, r3))
			Expect(p.NeedCommit).To(BeTrue())
			Expect(p.RegLog).To(ContainElement(int(insts.RegUSR)))
		})

		It("should stage a predicate read after its write", func() {
			h.regs.R[r1] = 5
			h.regs.P[0] = 0
			h.regs.P[2] = 0xff
			h.place(codeBase, packet(insts.LoopEndNone,
				insts.Cmpeqi(0, r1, 5),
				insts.PAnd(1, 0, 2),
			))

			b, _ := h.run(codeBase)

			Expect(b.Packets[0].Hazard).To(BeTrue())
			Expect(b.Packets[0].NeedCommit).To(BeTrue())
			Expect(h.regs.P[0]).To(Equal(uint8(0xff)))
			Expect(h.regs.P[1]).To(Equal(uint8(0)))
		})

		It("should stage every packet when short circuiting is disabled", func() {
			cfg := translate.DefaultConfig()
			cfg.ShortCircuit = false
			h = newHarness(translate.WithConfig(cfg))

			p := summarize(insts.Add(r1, r2, r3))
			Expect(p.NeedCommit).To(BeTrue())
		})
	})

	Context("read-before-write", func() {
		It("should let a later instruction see the pre-packet value", func() {
			h.regs.R[r1] = 10
			h.regs.R[r2] = 7
			h.regs.R[r3] = 20
			h.place(codeBase, packet(insts.LoopEndNone,
				insts.Add(r2, r1, r3),
				insts.Tfr(r4, r2),
			))

			b, exit := h.run(codeBase)

			Expect(b.Packets[0].NeedCommit).To(BeTrue())
			Expect(h.regs.R[r2]).To(Equal(uint32(30)))
			Expect(h.regs.R[r4]).To(Equal(uint32(7)))
			Expect(exit.Kind).To(Equal(interp.ExitGoto))
			Expect(exit.PC).To(Equal(uint32(codeBase + 8)))
		})

		It("should swap two registers", func() {
			h.regs.R[r1] = 1
			h.regs.R[r2] = 2
			h.place(codeBase, packet(insts.LoopEndNone, insts.Tfr(r1, r2), insts.Tfr(r2, r1)))

			h.run(codeBase)

			Expect(h.regs.R[r1]).To(Equal(uint32(2)))
			Expect(h.regs.R[r2]).To(Equal(uint32(1)))
		})

		It("should write directly when nothing reads an earlier result", func() {
			h.regs.R[r5] = 10
			h.regs.R[r1] = 1
			h.place(codeBase, packet(insts.LoopEndNone, insts.Tfr(r6, r5), insts.Addi(r5, r1, 1)))

			b, _ := h.run(codeBase)

			Expect(h.regs.R[r6]).To(Equal(uint32(10)))
			Expect(h.regs.R[r5]).To(Equal(uint32(2)))
			staged := b.Unit.Count(func(op *ir.Op) bool {
				return usesStaging(op)
			})
			Expect(staged).To(BeZero())
		})

		It("should keep the old value of a register whose conditional write is skipped", func() {
			h.regs.R[r1] = 100
			h.regs.R[r2] = 1
			h.regs.R[r3] = 2
			h.regs.P[0] = 0
			h.place(codeBase, packet(insts.LoopEndNone,
				insts.Paddt(0, false, r1, r2, r3),
				insts.Tfr(r4, r1),
			))

			b, _ := h.run(codeBase)

			Expect(b.Packets[0].Preloaded).To(Equal([]int{1}))
			Expect(h.regs.R[r1]).To(Equal(uint32(100)))
			Expect(h.regs.R[r4]).To(Equal(uint32(100)))
		})
	})

	Context("predicates", func() {
		It("should AND several writes of one predicate", func() {
			h.regs.R[r1] = 5
			h.regs.R[r2] = 6
			h.place(codeBase, packet(insts.LoopEndNone,
				insts.Cmpeqi(0, r1, 5),
				insts.Cmpeq(0, r1, r2),
			))

			h.run(codeBase)

			Expect(h.regs.P[0]).To(Equal(uint8(0)))
		})

		It("should set a predicate when every write agrees", func() {
			h.regs.R[r1] = 5
			h.regs.R[r2] = 5
			h.place(codeBase, packet(insts.LoopEndNone,
				insts.Cmpeqi(0, r1, 5),
				insts.Cmpeq(0, r1, r2),
			))

			h.run(codeBase)

			Expect(h.regs.P[0]).To(Equal(uint8(0xff)))
		})

		It("should write the four predicates through P3:0", func() {
			h.regs.R[r1] = 0x01ff00ff
			h.place(codeBase, packet(insts.LoopEndNone, insts.Tfrrcr(insts.RegP3_0, r1)))

			h.run(codeBase)

			Expect(h.regs.P).To(Equal([insts.NumPreds]uint8{0xff, 0x00, 0xff, 0x01}))
		})
	})

	Context("control registers", func() {
		It("should preserve the immutable bits of USR", func() {
			h.regs.R[r1] = 0xffffffff
			h.place(codeBase, packet(insts.LoopEndNone, insts.Tfrrcr(insts.RegUSR, r1)))

			h.run(codeBase)

			Expect(h.regs.R[insts.RegUSR]).To(Equal(^emu.ImmutableMask(insts.RegUSR)))
		})

		It("should read PC as the packet address", func() {
			next := h.place(codeBase, packet(insts.LoopEndNone, insts.Nop()))
			h.place(next, packet(insts.LoopEndNone, insts.Tfrcrr(r1, insts.RegPC)))

			h.run(codeBase)

			Expect(h.regs.R[r1]).To(Equal(next))
		})

		It("should ignore register transfers to PC", func() {
			h.regs.R[r1] = 0x8000
			h.place(codeBase, packet(insts.LoopEndNone, insts.Tfrrcr(insts.RegPC, r1)))

			_, exit := h.run(codeBase)

			Expect(exit.PC).To(Equal(uint32(codeBase + 4)))
		})
	})

	Context("stores", func() {
		It("should skip a predicated store whose predicate is false", func() {
			h.regs.R[r0] = dataBase
			h.regs.R[r1] = 0xabc
			h.regs.R[r6] = 1
			h.regs.R[r7] = 2
			h.regs.P[0] = 0
			h.place(codeBase, packet(insts.LoopEndNone,
				insts.Add(r5, r6, r7),
				insts.Pstoreri(0, false, r0, 0, r1),
			))

			b, exit := h.run(codeBase)

			Expect(exit.Kind).To(Equal(interp.ExitGoto))
			Expect(h.word(dataBase)).To(BeZero())
			Expect(h.machine.Stores).To(BeEmpty())
			Expect(h.regs.R[r5]).To(Equal(uint32(3)))
			Expect(b.Packets[0].StoreOrder).To(Equal([]int{0}))
		})

		It("should perform a predicated store whose predicate is true", func() {
			h.regs.R[r0] = dataBase
			h.regs.R[r1] = 0xabc
			h.regs.P[0] = 0
			h.place(codeBase, packet(insts.LoopEndNone, insts.Pstoreri(0, true, r0, 4, r1)))

			h.run(codeBase)

			Expect(h.word(dataBase + 4)).To(Equal(uint32(0xabc)))
		})

		It("should commit slot 1 before slot 0", func() {
			h.regs.R[r0] = dataBase
			h.regs.R[r1] = 0x11223344
			h.regs.R[r2] = 0xaa
			h.place(codeBase, packet(insts.LoopEndNone,
				insts.Storeri(r0, 0, r1),
				insts.Storerb(r0, 0, r2),
			))

			b, _ := h.run(codeBase)

			Expect(h.word(dataBase)).To(Equal(uint32(0x112233aa)))
			Expect(b.Packets[0].StoreOrder).To(Equal([]int{1, 0}))
			Expect(h.machine.Stores).To(HaveLen(2))
			Expect(h.machine.Stores[0].Slot).To(Equal(1))
			Expect(h.machine.Stores[1].Slot).To(Equal(0))
		})

		It("should leave no side effect when a slot 0 store faults", func() {
			h.regs.R[r0] = dataBase
			h.regs.R[r1] = 0x1234
			h.regs.R[r3] = 0x50000
			h.regs.R[r5] = 9
			h.place(codeBase, packet(insts.LoopEndNone,
				insts.Addi(r5, r5, 1),
				insts.Nop(),
				insts.Storeri(r0, 0, r1),
				insts.Storeri(r3, 0, r1),
			))

			_, exit := h.run(codeBase)

			Expect(exit.Kind).To(Equal(interp.ExitException))
			Expect(exit.Cause).To(Equal(emu.ExcpPrivNoUWrite))
			Expect(exit.PC).To(Equal(uint32(codeBase)))
			Expect(h.word(dataBase)).To(BeZero())
			Expect(h.regs.R[r5]).To(Equal(uint32(9)))
		})

		It("should order a noshuf load after the slot 1 store", func() {
			Expect(h.memory.Write32(dataBase, 5)).To(Succeed())
			h.regs.R[r0] = dataBase
			h.regs.R[r1] = 0x77
			h.place(codeBase, packet(insts.LoopEndNone,
				insts.Storeri(r0, 0, r1),
				insts.NoShuf(insts.Loadri(r2, r0, 0)),
			))

			b, _ := h.run(codeBase)

			Expect(h.regs.R[r2]).To(Equal(uint32(0x77)))
			Expect(b.Packets[0].StoreOrder).To(Equal([]int{1}))
		})

		It("should let a plain load see memory from before the packet", func() {
			Expect(h.memory.Write32(dataBase, 5)).To(Succeed())
			h.regs.R[r0] = dataBase
			h.regs.R[r1] = 0x77
			h.place(codeBase, packet(insts.LoopEndNone,
				insts.Storeri(r0, 0, r1),
				insts.Loadri(r2, r0, 0),
			))

			h.run(codeBase)

			Expect(h.regs.R[r2]).To(Equal(uint32(5)))
			Expect(h.word(dataBase)).To(Equal(uint32(0x77)))
		})

		It("should clear a cache line with dczeroa", func() {
			ones := make([]byte, 64)
			for i := range ones {
				ones[i] = 0xff
			}
			Expect(h.memory.Write(dataBase, ones)).To(Succeed())
			h.regs.R[r0] = dataBase + 4
			h.place(codeBase, packet(insts.LoopEndNone, insts.Dczeroa(r0)))

			h.run(codeBase)

			Expect(h.word(dataBase)).To(BeZero())
			Expect(h.word(dataBase + 28)).To(BeZero())
			Expect(h.word(dataBase + 32)).To(Equal(uint32(0xffffffff)))
		})

		It("should assert store widths in debug mode", func() {
			cfg := translate.DefaultConfig()
			cfg.Debug = true
			h = newHarness(translate.WithConfig(cfg))
			h.regs.R[r0] = dataBase
			h.regs.R[r1] = 0xbeef
			h.place(codeBase, packet(insts.LoopEndNone, insts.Storerh(r0, 2, r1)))

			b, _ := h.run(codeBase)

			checks := b.Unit.Count(func(op *ir.Op) bool {
				return op.Kind == ir.KindCall && op.Helper == ir.HelperCheckStoreWidth
			})
			Expect(checks).To(Equal(1))
			Expect(h.word(dataBase)).To(Equal(uint32(0xbeef0000)))
		})
	})

	Context("branches", func() {
		It("should chain a direct jump", func() {
			h.place(codeBase, packet(insts.LoopEndNone, insts.Jump(0x40)))

			b, exit := h.run(codeBase)

			Expect(b.Exit).To(Equal(translate.EpilogueTaken))
			Expect(exit.Kind).To(Equal(interp.ExitGoto))
			Expect(exit.PC).To(Equal(uint32(codeBase + 0x40)))
			Expect(exit.Chain).To(Equal(0))
		})

		It("should chain both ways of a conditional jump", func() {
			h.place(codeBase, packet(insts.LoopEndNone, insts.Jumpt(0, false, 0x40)))

			h.regs.P[0] = 0xff
			b, exit := h.run(codeBase)
			Expect(b.Exit).To(Equal(translate.EpilogueConditional))
			Expect(exit.PC).To(Equal(uint32(codeBase + 0x40)))
			Expect(exit.Chain).To(Equal(0))

			h.regs.P[0] = 0
			_, exit = h.run(codeBase)
			Expect(exit.PC).To(Equal(uint32(codeBase + 4)))
			Expect(exit.Chain).To(Equal(1))
		})

		It("should take the first taken branch of a packet", func() {
			h.place(codeBase, packet(insts.LoopEndNone,
				insts.Jumpt(0, false, 0x100),
				insts.Jump(0x200),
			))

			h.regs.P[0] = 0xff
			b, exit := h.run(codeBase)
			Expect(b.Exit).To(Equal(translate.EpilogueIndirect))
			Expect(exit.Kind).To(Equal(interp.ExitIndirect))
			Expect(exit.PC).To(Equal(uint32(codeBase + 0x100)))

			h.regs.P[0] = 0
			_, exit = h.run(codeBase)
			Expect(exit.PC).To(Equal(uint32(codeBase + 0x200)))
		})

		It("should jump to a register", func() {
			h.regs.R[r5] = 0x3000
			h.place(codeBase, packet(insts.LoopEndNone, insts.Jumpr(r5)))

			_, exit := h.run(codeBase)

			Expect(exit.Kind).To(Equal(interp.ExitIndirect))
			Expect(exit.PC).To(Equal(uint32(0x3000)))
		})

		It("should write the return address on a call", func() {
			h.place(codeBase, packet(insts.LoopEndNone, insts.Call(0x80)))

			_, exit := h.run(codeBase)

			Expect(h.regs.R[insts.RegLR]).To(Equal(uint32(codeBase + 4)))
			Expect(exit.PC).To(Equal(uint32(codeBase + 0x80)))
		})

		It("should raise trap0 after the packet commits", func() {
			h.place(codeBase, packet(insts.LoopEndNone, insts.Addi(r1, r1, 1), insts.Trap0(0)))

			b, exit := h.run(codeBase)

			Expect(b.Exit).To(Equal(translate.EpilogueException))
			Expect(b.ExitCause).To(Equal(emu.ExcpTrap0))
			Expect(exit.Kind).To(Equal(interp.ExitException))
			Expect(exit.Cause).To(Equal(emu.ExcpTrap0))
			Expect(exit.PC).To(Equal(uint32(codeBase + 8)))
			Expect(h.regs.R[r1]).To(Equal(uint32(1)))
		})
	})

	Context("hardware loops", func() {
		body := func() []uint32 {
			return packet(insts.LoopEnd0, insts.Addi(r1, r1, 1), insts.Nop())
		}

		It("should loop back to the block start in a tight loop", func() {
			h.place(codeBase, body())
			h.regs.R[insts.RegSA0] = codeBase
			h.regs.R[insts.RegLC0] = 5

			b, exit := h.run(codeBase)

			Expect(b.Flags.TightLoop).To(BeTrue())
			Expect(b.Exit).To(Equal(translate.EpilogueTightLoop))
			Expect(exit.Kind).To(Equal(interp.ExitGoto))
			Expect(exit.PC).To(Equal(uint32(codeBase)))
			Expect(exit.Chain).To(Equal(0))
			Expect(h.regs.R[insts.RegLC0]).To(Equal(uint32(4)))
			Expect(h.regs.R[r1]).To(Equal(uint32(1)))
		})

		It("should leave a tight loop on its last iteration", func() {
			h.place(codeBase, body())
			h.regs.R[insts.RegSA0] = codeBase
			h.regs.R[insts.RegLC0] = 1

			_, exit := h.run(codeBase)

			Expect(exit.PC).To(Equal(uint32(codeBase + 8)))
			Expect(exit.Chain).To(Equal(1))
			Expect(h.regs.R[insts.RegLC0]).To(Equal(uint32(1)))
		})

		It("should loop back through SA0 when the loop starts elsewhere", func() {
			h.place(codeBase, body())
			h.regs.R[insts.RegSA0] = 0x1800
			h.regs.R[insts.RegLC0] = 3

			b, exit := h.run(codeBase)

			Expect(b.Flags.TightLoop).To(BeFalse())
			Expect(b.Exit).To(Equal(translate.EpilogueIndirect))
			Expect(exit.PC).To(Equal(uint32(0x1800)))
			Expect(h.regs.R[insts.RegLC0]).To(Equal(uint32(2)))
		})

		It("should fall out of the loop when the count is exhausted", func() {
			h.place(codeBase, body())
			h.regs.R[insts.RegSA0] = 0x1800
			h.regs.R[insts.RegLC0] = 1

			_, exit := h.run(codeBase)

			Expect(exit.PC).To(Equal(uint32(codeBase + 8)))
			Expect(h.regs.R[insts.RegLC0]).To(Equal(uint32(1)))
		})

		It("should set P3 when LPCFG reaches its last step", func() {
			h.place(codeBase, body())
			h.regs.R[insts.RegSA0] = 0x1800
			h.regs.R[insts.RegLC0] = 3
			h.regs.R[insts.RegUSR] = 1 << insts.USRLPCFGShift

			h.run(codeBase)

			Expect(h.regs.P[3]).To(Equal(uint8(0xff)))
			Expect(h.regs.LPCFG()).To(BeZero())
		})

		It("should count LPCFG down without touching P3", func() {
			h.place(codeBase, body())
			h.regs.R[insts.RegSA0] = 0x1800
			h.regs.R[insts.RegLC0] = 3
			h.regs.R[insts.RegUSR] = 2 << insts.USRLPCFGShift
			h.regs.P[3] = 0x12

			h.run(codeBase)

			Expect(h.regs.P[3]).To(Equal(uint8(0x12)))
			Expect(h.regs.LPCFG()).To(Equal(uint32(1)))
		})

		It("should drop the tight loop once SA0 is rewritten in the block", func() {
			next := h.place(codeBase, packet(insts.LoopEndNone, insts.Loop0i(0x40, 3)))
			h.place(next, body())
			h.regs.R[insts.RegSA0] = codeBase

			b, _ := h.run(codeBase)

			Expect(b.Flags.TightLoop).To(BeTrue())
			Expect(b.NumPackets).To(Equal(2))
			Expect(b.Exit).To(Equal(translate.EpilogueIndirect))
			Expect(h.regs.R[insts.RegSA0]).To(Equal(uint32(codeBase + 0x40)))
		})
	})

	Context("HVX", func() {
		fill := func(v *emu.VecValue, w uint32) {
			for i := 0; i < len(v); i += 4 {
				v[i] = byte(w)
				v[i+1] = byte(w >> 8)
				v[i+2] = byte(w >> 16)
				v[i+3] = byte(w >> 24)
			}
		}

		It("should feed a .tmp load to the consumer only", func() {
			var mem emu.VecValue
			fill(&mem, 1)
			Expect(h.memory.Write(dataBase, mem[:])).To(Succeed())
			fill(&h.regs.V[3], 2)
			h.regs.R[r0] = dataBase
			h.place(codeBase, packet(insts.LoopEndNone,
				insts.VloadTmp(1, r0, 0),
				insts.Vaddw(2, 1, 3),
			))

			b, _ := h.run(codeBase)

			var want emu.VecValue
			fill(&want, 3)
			Expect(h.regs.V[2]).To(Equal(want))
			Expect(h.regs.V[1]).To(Equal(emu.VecValue{}))
			Expect(b.NumHVXInsns).To(Equal(2))
		})

		It("should not forward a .tmp load to an earlier instruction", func() {
			var mem emu.VecValue
			fill(&mem, 0x40)
			Expect(h.memory.Write(dataBase, mem[:])).To(Succeed())
			h.regs.R[r0] = dataBase
			h.place(codeBase, packet(insts.LoopEndNone,
				insts.Vaddw(2, 1, 3),
				insts.VloadTmp(1, r0, 0),
			))

			var want emu.VecValue
			fill(&want, 3)
			for range 2 {
				fill(&h.regs.V[1], 1)
				fill(&h.regs.V[3], 2)
				h.regs.V[2] = emu.VecValue{}

				h.run(codeBase)

				Expect(h.regs.V[2]).To(Equal(want))
			}
			var one emu.VecValue
			fill(&one, 1)
			Expect(h.regs.V[1]).To(Equal(one))
		})

		It("should read the pre-packet value of a vector written earlier", func() {
			fill(&h.regs.V[1], 1)
			fill(&h.regs.V[2], 7)
			fill(&h.regs.V[3], 4)
			h.place(codeBase, packet(insts.LoopEndNone,
				insts.Vaddw(2, 1, 3),
				insts.Vaddw(4, 2, 3),
			))

			b, _ := h.run(codeBase)

			Expect(b.Packets[0].Hazard).To(BeTrue())
			Expect(b.Packets[0].NeedCommit).To(BeTrue())
			var five, eleven emu.VecValue
			fill(&five, 5)
			fill(&eleven, 11)
			Expect(h.regs.V[2]).To(Equal(five))
			Expect(h.regs.V[4]).To(Equal(eleven))
		})

		It("should read the pre-packet value of a vector predicate written earlier", func() {
			fill(&h.regs.V[1], 9)
			fill(&h.regs.V[2], 9)
			fill(&h.regs.V[5], 7)
			fill(&h.regs.V[6], 8)
			h.regs.Q[0] = emu.QValue{}
			h.place(codeBase, packet(insts.LoopEndNone,
				insts.Veqw(0, 1, 2),
				insts.Vmux(0, 4, 5, 6),
			))

			b, _ := h.run(codeBase)

			Expect(b.Packets[0].Hazard).To(BeTrue())
			Expect(b.Packets[0].NeedCommit).To(BeTrue())
			Expect(h.regs.V[4]).To(Equal(h.regs.V[6]))
			for _, bits := range h.regs.Q[0] {
				Expect(bits).To(Equal(byte(0xff)))
			}
		})

		It("should keep a vector whose conditional move is skipped in a staged packet", func() {
			fill(&h.regs.V[1], 9)
			fill(&h.regs.V[2], 4)
			h.regs.P[0] = 0
			h.regs.R[r0] = dataBase
			h.place(codeBase, packet(insts.LoopEndNone,
				insts.Vcmov(0, false, 2, 1),
				insts.Loadri(r1, r0, 0),
			))

			b, _ := h.run(codeBase)

			Expect(b.Packets[0].NeedCommit).To(BeTrue())
			var four emu.VecValue
			fill(&four, 4)
			Expect(h.regs.V[2]).To(Equal(four))
		})

		It("should commit a vector store at the end of the packet", func() {
			fill(&h.regs.V[1], 0x55)
			h.regs.R[r0] = dataBase
			h.place(codeBase, packet(insts.LoopEndNone, insts.Vstore(r0, 0, 1)))

			h.run(codeBase)

			Expect(h.word(dataBase)).To(Equal(uint32(0x55)))
			Expect(h.word(dataBase + insts.VecBytes - 4)).To(Equal(uint32(0x55)))
		})

		It("should drop a vector store when a scalar store of the packet faults", func() {
			fill(&h.regs.V[1], 0x55)
			h.regs.R[r0] = dataBase
			h.regs.R[r3] = 0x50000
			h.place(codeBase, packet(insts.LoopEndNone,
				insts.Vstore(r0, 0, 1),
				insts.Storeri(r3, 0, r2),
			))

			_, exit := h.run(codeBase)

			Expect(exit.Kind).To(Equal(interp.ExitException))
			Expect(h.word(dataBase)).To(BeZero())
		})
	})
})

func usesStaging(op *ir.Op) bool {
	if op.Dst.Space.Staging() {
		return true
	}
	for _, s := range op.Src {
		if s.Space.Staging() {
			return true
		}
	}
	return false
}
