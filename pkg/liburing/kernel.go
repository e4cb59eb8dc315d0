//go:build linux

package liburing

import (
	"unsafe"

	"github.com/brickingsoft/uring/pkg/kernel"
	"golang.org/x/sys/unix"
)

// Mmap offsets of the three ring regions.
const (
	offSQRing int64 = 0
	offCQRing int64 = 0x8000000
	offSQEs   int64 = 0x10000000
)

const (
	nSig      = 65
	szDivider = 8
)

// Kernel is the syscall boundary of a Ring. Enter and Register return the raw
// errno on failure; the ring wraps it.
type Kernel interface {
	Setup(entries uint32, params *Params) (int, error)
	Mmap(fd int, offset int64, length int) ([]byte, error)
	Munmap(b []byte) error
	Enter(fd int, toSubmit, minComplete, flags uint32, arg unsafe.Pointer, argSize uintptr) (uint, error)
	Register(fd int, opcode uint32, arg unsafe.Pointer, nrArgs uint32) (uint, error)
	Close(fd int) error
	Version() kernel.Version
}

// SystemKernel talks to the running Linux kernel.
type SystemKernel struct{}

func (SystemKernel) Setup(entries uint32, params *Params) (int, error) {
	fd, _, errno := unix.Syscall(
		unix.SYS_IO_URING_SETUP,
		uintptr(entries),
		uintptr(unsafe.Pointer(params)),
		0,
	)
	if errno != 0 {
		return -1, errno
	}
	return int(fd), nil
}

func (SystemKernel) Mmap(fd int, offset int64, length int) ([]byte, error) {
	return unix.Mmap(fd, offset, length, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED|unix.MAP_POPULATE)
}

func (SystemKernel) Munmap(b []byte) error {
	return unix.Munmap(b)
}

func (SystemKernel) Enter(fd int, toSubmit, minComplete, flags uint32, arg unsafe.Pointer, argSize uintptr) (uint, error) {
	n, _, errno := unix.Syscall6(
		unix.SYS_IO_URING_ENTER,
		uintptr(fd),
		uintptr(toSubmit),
		uintptr(minComplete),
		uintptr(flags),
		uintptr(arg),
		argSize,
	)
	if errno != 0 {
		return 0, errno
	}
	return uint(n), nil
}

func (SystemKernel) Register(fd int, opcode uint32, arg unsafe.Pointer, nrArgs uint32) (uint, error) {
	n, _, errno := unix.Syscall6(
		unix.SYS_IO_URING_REGISTER,
		uintptr(fd),
		uintptr(opcode),
		uintptr(arg),
		uintptr(nrArgs),
		0,
		0,
	)
	if errno != 0 {
		return 0, errno
	}
	return uint(n), nil
}

func (SystemKernel) Close(fd int) error {
	return unix.Close(fd)
}

func (SystemKernel) Version() kernel.Version {
	return kernel.Get()
}

// GetEventsArg is struct io_uring_getevents_arg, passed with EnterExtArg.
type GetEventsArg struct {
	SigMask   uint64
	SigMaskSz uint32
	Pad       uint32
	Ts        uint64
}
