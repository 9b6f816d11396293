package emu

import (
	"errors"
	"io"
	"io/fs"
	"os"

	"github.com/sarchlab/hexdbt/insts"
)

// Hexagon Linux syscall numbers (asm-generic table).
const (
	SyscallOpenat    uint32 = 56 // openat(dirfd, path, flags, mode)
	SyscallClose     uint32 = 57 // close(fd)
	SyscallLseek     uint32 = 62 // lseek(fd, offset, whence)
	SyscallRead      uint32 = 63 // read(fd, buf, count)
	SyscallWrite     uint32 = 64 // write(fd, buf, count)
	SyscallExit      uint32 = 93 // exit(status)
	SyscallExitGroup uint32 = 94 // exit_group(status)
)

// Linux error codes.
const (
	ENOENT = 2  // No such file or directory
	EIO    = 5  // I/O error
	EBADF  = 9  // Bad file descriptor
	EACCES = 13 // Permission denied
	EFAULT = 14 // Bad address
	EINVAL = 22 // Invalid argument
	ENOSYS = 38 // Function not implemented
)

// Linux open flags (asm-generic).
const (
	linuxOAccMode = 0x3
	linuxOCreat   = 0x40
	linuxOExcl    = 0x80
	linuxOTrunc   = 0x200
	linuxOAppend  = 0x400

	// atFDCWD is AT_FDCWD as seen in a 32-bit register.
	atFDCWD = uint32(0xffffff9c)
)

// maxPathLen bounds the guest path strings read by openat.
const maxPathLen = 4096

// SyscallResult represents the result of a syscall execution.
type SyscallResult struct {
	// Exited is true if the syscall caused program termination.
	Exited bool

	// ExitCode is the exit status if Exited is true.
	ExitCode int64
}

// SyscallHandler is the interface for handling trap0 syscalls.
type SyscallHandler interface {
	// Handle executes the syscall indicated by the register file state.
	// Hexagon Linux syscall convention:
	//   - Syscall number in R6
	//   - Arguments in R0-R5
	//   - Return value in R0
	Handle() SyscallResult
}

// DefaultSyscallHandler provides a basic syscall handler implementation.
type DefaultSyscallHandler struct {
	regFile *RegFile
	memory  *Memory
	files   *FDTable
	stdin   io.Reader
	stdout  io.Writer
	stderr  io.Writer
}

// NewDefaultSyscallHandler creates a default syscall handler.
func NewDefaultSyscallHandler(regFile *RegFile, memory *Memory, stdout, stderr io.Writer) *DefaultSyscallHandler {
	return &DefaultSyscallHandler{
		regFile: regFile,
		memory:  memory,
		files:   NewFDTable(),
		stdout:  stdout,
		stderr:  stderr,
	}
}

// SetStdin sets the stdin reader for the syscall handler.
func (h *DefaultSyscallHandler) SetStdin(stdin io.Reader) {
	h.stdin = stdin
}

// Files returns the table of guest file descriptors.
func (h *DefaultSyscallHandler) Files() *FDTable {
	return h.files
}

// Handle executes the syscall indicated by the register file state.
func (h *DefaultSyscallHandler) Handle() SyscallResult {
	switch h.regFile.R[6] {
	case SyscallOpenat:
		h.handleOpenat()
	case SyscallClose:
		h.handleClose()
	case SyscallLseek:
		h.handleLseek()
	case SyscallRead:
		h.handleRead()
	case SyscallWrite:
		h.handleWrite()
	case SyscallExit, SyscallExitGroup:
		h.files.CloseAll()
		return SyscallResult{Exited: true, ExitCode: int64(int32(h.regFile.R[0]))}
	default:
		h.setError(ENOSYS)
	}
	return SyscallResult{}
}

func (h *DefaultSyscallHandler) handleOpenat() {
	dirfd := h.regFile.R[0]
	pathPtr := h.regFile.R[1]
	flags := h.regFile.R[2]
	mode := h.regFile.R[3]

	if dirfd != atFDCWD {
		h.setError(EINVAL)
		return
	}

	path, err := h.readString(pathPtr)
	if err != nil {
		h.setError(EFAULT)
		return
	}

	fd, err := h.files.Open(path, hostOpenFlags(flags), os.FileMode(mode&0o777))
	if err != nil {
		h.setError(errnoFor(err))
		return
	}

	h.setResult(fd)
}

func (h *DefaultSyscallHandler) handleClose() {
	fd := h.regFile.R[0]
	if fd < FirstFileFD {
		// The standard streams stay usable for the rest of the run.
		h.setResult(0)
		return
	}

	if err := h.files.Close(fd); err != nil {
		h.setError(EBADF)
		return
	}
	h.setResult(0)
}

func (h *DefaultSyscallHandler) handleLseek() {
	fd := h.regFile.R[0]
	offset := int64(int32(h.regFile.R[1]))
	whence := int(h.regFile.R[2])

	if whence > io.SeekEnd {
		h.setError(EINVAL)
		return
	}

	pos, err := h.files.Seek(fd, offset, whence)
	if err != nil {
		h.setError(EBADF)
		return
	}
	h.setResult(uint32(pos))
}

func (h *DefaultSyscallHandler) handleRead() {
	fd := h.regFile.R[0]
	bufPtr := h.regFile.R[1]
	count := h.regFile.R[2]

	buf := make([]byte, count)
	var n int

	switch {
	case fd == 0:
		if h.stdin == nil {
			h.setResult(0)
			return
		}
		var err error
		n, err = h.stdin.Read(buf)
		if err != nil && n == 0 {
			h.setResult(0)
			return
		}
	case fd >= FirstFileFD:
		var err error
		n, err = h.files.Read(fd, buf)
		if errors.Is(err, os.ErrInvalid) {
			h.setError(EBADF)
			return
		}
		if err != nil {
			h.setError(EIO)
			return
		}
	default:
		h.setError(EBADF)
		return
	}

	if err := h.memory.Write(bufPtr, buf[:n]); err != nil {
		h.setError(EFAULT)
		return
	}

	h.setResult(uint32(n))
}

func (h *DefaultSyscallHandler) handleWrite() {
	fd := h.regFile.R[0]
	bufPtr := h.regFile.R[1]
	count := h.regFile.R[2]

	buf := make([]byte, count)
	if err := h.memory.Read(bufPtr, buf, AccessRead); err != nil {
		h.setError(EFAULT)
		return
	}

	var n int
	var err error
	switch {
	case fd == 1:
		n, err = h.stdout.Write(buf)
	case fd == 2:
		n, err = h.stderr.Write(buf)
	case fd >= FirstFileFD:
		n, err = h.files.Write(fd, buf)
		if errors.Is(err, os.ErrInvalid) {
			h.setError(EBADF)
			return
		}
	default:
		h.setError(EBADF)
		return
	}

	if err != nil {
		h.setError(EIO)
		return
	}

	h.setResult(uint32(n))
}

// readString reads a NUL-terminated guest string.
func (h *DefaultSyscallHandler) readString(addr uint32) (string, error) {
	var out []byte
	for i := uint32(0); i < maxPathLen; i++ {
		b, err := h.memory.Read8(addr + i)
		if err != nil {
			return "", err
		}
		if b == 0 {
			return string(out), nil
		}
		out = append(out, b)
	}
	return "", errors.New("guest string too long")
}

func (h *DefaultSyscallHandler) setResult(v uint32) {
	h.regFile.WriteReg(insts.Reg(0), v)
}

// setError sets R0 to -errno.
func (h *DefaultSyscallHandler) setError(errno int) {
	h.regFile.WriteReg(insts.Reg(0), uint32(-int32(errno)))
}

func hostOpenFlags(flags uint32) int {
	var host int
	switch flags & linuxOAccMode {
	case 1:
		host = os.O_WRONLY
	case 2:
		host = os.O_RDWR
	default:
		host = os.O_RDONLY
	}
	if flags&linuxOCreat != 0 {
		host |= os.O_CREATE
	}
	if flags&linuxOExcl != 0 {
		host |= os.O_EXCL
	}
	if flags&linuxOTrunc != 0 {
		host |= os.O_TRUNC
	}
	if flags&linuxOAppend != 0 {
		host |= os.O_APPEND
	}
	return host
}

func errnoFor(err error) int {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return ENOENT
	case errors.Is(err, fs.ErrPermission):
		return EACCES
	}
	return EIO
}
