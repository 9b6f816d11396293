package emu_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/hexdbt/emu"
)

var _ = Describe("LoadStoreUnit", func() {
	var (
		memory *emu.Memory
		lsu    *emu.LoadStoreUnit
	)

	BeforeEach(func() {
		memory = emu.NewMemory()
		memory.Map(0x10000, 0x1000, emu.PermRW)
		memory.Map(0x20000, 0x1000, emu.PermRX)
		lsu = emu.NewLoadStoreUnit(memory)
	})

	It("should share its memory", func() {
		Expect(lsu.Memory()).To(BeIdenticalTo(memory))
	})

	DescribeTable("sized accesses",
		func(width int, value, want uint64) {
			Expect(lsu.Store(0x10010, width, value)).To(Succeed())
			Expect(lsu.Load(0x10010, width)).To(Equal(want))
		},
		Entry("byte", 1, uint64(0x1ff), uint64(0xff)),
		Entry("halfword", 2, uint64(0x12345678), uint64(0x5678)),
		Entry("word", 4, uint64(0x1122334455667788), uint64(0x55667788)),
		Entry("doubleword", 8, uint64(0x1122334455667788), uint64(0x1122334455667788)),
	)

	It("should reject odd widths", func() {
		_, err := lsu.Load(0x10000, 3)
		Expect(err).To(MatchError("invalid load width 3"))
		Expect(lsu.Store(0x10000, 16, 0)).To(MatchError("invalid store width 16"))
	})

	It("should probe stores against page permissions", func() {
		Expect(lsu.ProbeStore(0x10000, 4)).To(Succeed())
		Expect(lsu.ProbeStore(0x20000, 4)).NotTo(Succeed())
		Expect(lsu.ProbeStore(0x10ffe, 4)).NotTo(Succeed())
	})

	It("should zero the aligned line around an address", func() {
		for addr := uint32(0x10000); addr < 0x10060; addr += 4 {
			Expect(memory.Write32(addr, 0xffffffff)).To(Succeed())
		}

		Expect(lsu.ZeroLine(0x10025)).To(Succeed())

		Expect(memory.Read32(0x1001c)).To(Equal(uint32(0xffffffff)))
		for addr := uint32(0x10020); addr < 0x10040; addr += 4 {
			Expect(memory.Read32(addr)).To(BeZero())
		}
		Expect(memory.Read32(0x10040)).To(Equal(uint32(0xffffffff)))
	})

	Describe("Vectors", func() {
		It("should align vector addresses", func() {
			Expect(emu.VectorAddr(0x100ff)).To(Equal(uint32(0x10080)))
			Expect(emu.VectorAddr(0x10080)).To(Equal(uint32(0x10080)))
		})

		It("should store and load aligned vectors", func() {
			var v emu.VecValue
			for i := range v {
				v[i] = byte(i)
			}

			Expect(lsu.StoreVector(0x10085, &v)).To(Succeed())

			var got emu.VecValue
			Expect(lsu.LoadVector(0x10080, &got)).To(Succeed())
			Expect(got).To(Equal(v))
			Expect(memory.Read8(0x10081)).To(Equal(uint8(1)))
		})

		It("should probe vector stores", func() {
			Expect(lsu.ProbeVector(0x10f80)).To(Succeed())
			Expect(lsu.ProbeVector(0x20000)).NotTo(Succeed())
		})
	})
})
