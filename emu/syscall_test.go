package emu_test

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/hexdbt/emu"
	"github.com/sarchlab/hexdbt/insts"
)

const bufBase uint32 = 0x10000

// negErrno is how a syscall error appears in R0.
func negErrno(errno int) uint32 {
	return uint32(-int32(errno))
}

var _ = Describe("Syscall Handler", func() {
	var (
		regFile *emu.RegFile
		memory  *emu.Memory
		stdout  *bytes.Buffer
		stderr  *bytes.Buffer
		handler *emu.DefaultSyscallHandler
	)

	syscall := func(num uint32, args ...uint32) emu.SyscallResult {
		regFile.WriteReg(insts.Reg(6), num)
		for i, a := range args {
			regFile.WriteReg(insts.Reg(i), a)
		}
		return handler.Handle()
	}

	putString := func(addr uint32, s string) {
		Expect(memory.Write(addr, append([]byte(s), 0))).To(Succeed())
	}

	BeforeEach(func() {
		regFile = &emu.RegFile{}
		memory = emu.NewMemory()
		memory.Map(bufBase, 0x1000, emu.PermRW)
		stdout = new(bytes.Buffer)
		stderr = new(bytes.Buffer)
		handler = emu.NewDefaultSyscallHandler(regFile, memory, stdout, stderr)
	})

	AfterEach(func() {
		handler.Files().CloseAll()
	})

	Describe("Unknown syscall", func() {
		It("should return ENOSYS", func() {
			result := syscall(999)

			Expect(result.Exited).To(BeFalse())
			Expect(regFile.ReadReg(0)).To(Equal(negErrno(emu.ENOSYS)))
		})
	})

	Describe("exit", func() {
		It("should exit with the status in R0", func() {
			result := syscall(emu.SyscallExit, 42)

			Expect(result.Exited).To(BeTrue())
			Expect(result.ExitCode).To(Equal(int64(42)))
		})

		It("should sign-extend the status", func() {
			result := syscall(emu.SyscallExitGroup, 0xffffffff)

			Expect(result.Exited).To(BeTrue())
			Expect(result.ExitCode).To(Equal(int64(-1)))
		})
	})

	Describe("write", func() {
		It("should write to stdout", func() {
			putString(bufBase, "hello")

			result := syscall(emu.SyscallWrite, 1, bufBase, 5)

			Expect(result.Exited).To(BeFalse())
			Expect(regFile.ReadReg(0)).To(Equal(uint32(5)))
			Expect(stdout.String()).To(Equal("hello"))
		})

		It("should write to stderr", func() {
			putString(bufBase, "oops")

			syscall(emu.SyscallWrite, 2, bufBase, 4)

			Expect(stderr.String()).To(Equal("oops"))
			Expect(stdout.Len()).To(BeZero())
		})

		It("should return EBADF for unknown descriptors", func() {
			syscall(emu.SyscallWrite, 0, bufBase, 1)
			Expect(regFile.ReadReg(0)).To(Equal(negErrno(emu.EBADF)))

			syscall(emu.SyscallWrite, 17, bufBase, 1)
			Expect(regFile.ReadReg(0)).To(Equal(negErrno(emu.EBADF)))
		})

		It("should return EFAULT for unmapped buffers", func() {
			syscall(emu.SyscallWrite, 1, 0x80000, 4)

			Expect(regFile.ReadReg(0)).To(Equal(negErrno(emu.EFAULT)))
			Expect(stdout.Len()).To(BeZero())
		})
	})

	Describe("read", func() {
		It("should read from stdin", func() {
			handler.SetStdin(strings.NewReader("abc"))

			syscall(emu.SyscallRead, 0, bufBase, 16)

			Expect(regFile.ReadReg(0)).To(Equal(uint32(3)))
			Expect(memory.Read8(bufBase + 2)).To(Equal(uint8('c')))
		})

		It("should return zero without stdin", func() {
			syscall(emu.SyscallRead, 0, bufBase, 16)

			Expect(regFile.ReadReg(0)).To(BeZero())
		})

		It("should return EBADF for output streams", func() {
			syscall(emu.SyscallRead, 1, bufBase, 16)

			Expect(regFile.ReadReg(0)).To(Equal(negErrno(emu.EBADF)))
		})
	})

	Describe("File descriptors", func() {
		var path string

		BeforeEach(func() {
			dir, err := os.MkdirTemp("", "hexdbt-syscall")
			Expect(err).NotTo(HaveOccurred())
			DeferCleanup(os.RemoveAll, dir)

			path = filepath.Join(dir, "guest.txt")
			putString(bufBase, path)
		})

		It("should create, write, seek, read and close a file", func() {
			// O_RDWR | O_CREAT | O_TRUNC
			syscall(emu.SyscallOpenat, 0xffffff9c, bufBase, 0x242, 0o644)
			fd := regFile.ReadReg(0)
			Expect(fd).To(Equal(emu.FirstFileFD))

			hostPath, ok := handler.Files().Path(fd)
			Expect(ok).To(BeTrue())
			Expect(hostPath).To(Equal(path))

			putString(bufBase+0x200, "packet")
			syscall(emu.SyscallWrite, fd, bufBase+0x200, 6)
			Expect(regFile.ReadReg(0)).To(Equal(uint32(6)))

			syscall(emu.SyscallLseek, fd, 2, 0)
			Expect(regFile.ReadReg(0)).To(Equal(uint32(2)))

			syscall(emu.SyscallRead, fd, bufBase+0x400, 16)
			Expect(regFile.ReadReg(0)).To(Equal(uint32(4)))
			got := make([]byte, 4)
			Expect(memory.Read(bufBase+0x400, got, emu.AccessRead)).To(Succeed())
			Expect(string(got)).To(Equal("cket"))

			syscall(emu.SyscallRead, fd, bufBase+0x400, 16)
			Expect(regFile.ReadReg(0)).To(BeZero())

			syscall(emu.SyscallClose, fd)
			Expect(regFile.ReadReg(0)).To(BeZero())

			data, err := os.ReadFile(path)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(data)).To(Equal("packet"))
		})

		It("should return ENOENT for missing files", func() {
			syscall(emu.SyscallOpenat, 0xffffff9c, bufBase, 0, 0)

			Expect(regFile.ReadReg(0)).To(Equal(negErrno(emu.ENOENT)))
		})

		It("should only accept AT_FDCWD", func() {
			syscall(emu.SyscallOpenat, 5, bufBase, 0, 0)

			Expect(regFile.ReadReg(0)).To(Equal(negErrno(emu.EINVAL)))
		})

		It("should return EFAULT for unmapped paths", func() {
			syscall(emu.SyscallOpenat, 0xffffff9c, 0x80000, 0, 0)

			Expect(regFile.ReadReg(0)).To(Equal(negErrno(emu.EFAULT)))
		})

		It("should return EBADF when closing twice", func() {
			syscall(emu.SyscallOpenat, 0xffffff9c, bufBase, 0x42, 0o600)
			fd := regFile.ReadReg(0)

			syscall(emu.SyscallClose, fd)
			syscall(emu.SyscallClose, fd)

			Expect(regFile.ReadReg(0)).To(Equal(negErrno(emu.EBADF)))
		})

		It("should keep the standard streams open", func() {
			syscall(emu.SyscallClose, 1)
			Expect(regFile.ReadReg(0)).To(BeZero())

			putString(bufBase+0x200, "still")
			syscall(emu.SyscallWrite, 1, bufBase+0x200, 5)
			Expect(stdout.String()).To(Equal("still"))
		})

		It("should reject an invalid whence", func() {
			syscall(emu.SyscallOpenat, 0xffffff9c, bufBase, 0x42, 0o600)
			fd := regFile.ReadReg(0)

			syscall(emu.SyscallLseek, fd, 0, 7)

			Expect(regFile.ReadReg(0)).To(Equal(negErrno(emu.EINVAL)))
		})

		It("should close every file on exit", func() {
			syscall(emu.SyscallOpenat, 0xffffff9c, bufBase, 0x42, 0o600)
			fd := regFile.ReadReg(0)

			syscall(emu.SyscallExit, 0)

			_, ok := handler.Files().Path(fd)
			Expect(ok).To(BeFalse())
		})
	})
})
