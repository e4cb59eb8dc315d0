//go:build linux

package liburing

import (
	"runtime"
	"syscall"
	"unsafe"

	"github.com/brickingsoft/errors"
	"golang.org/x/sys/unix"
)

const (
	RegisterOpBuffers uint32 = iota
	UnregisterOpBuffers
	RegisterOpFiles
	UnregisterOpFiles
	RegisterOpEventFd
	UnregisterOpEventFd
	RegisterOpFilesUpdate
	RegisterOpEventFdAsync
	RegisterOpProbe
	RegisterOpPersonality
	UnregisterOpPersonality
	RegisterOpRestrictions
	RegisterOpEnableRings
	RegisterOpFiles2
	RegisterOpFilesUpdate2
	RegisterOpBuffers2
	RegisterOpBuffersUpdate
	RegisterOpIOWQAff
	UnregisterOpIOWQAff
	RegisterOpIOWQMaxWorkers
	RegisterOpRingFds
	UnregisterOpRingFds
	RegisterOpPbufRing
	UnregisterOpPbufRing
)

func (ring *Ring) doRegister(opcode uint32, arg unsafe.Pointer, nrArgs uint32) (uint, error) {
	if ring.closed {
		return 0, ErrClosed
	}
	n, err := ring.kernel.Register(ring.ringFd, opcode, arg, nrArgs)
	if err != nil {
		return 0, err
	}
	return n, nil
}

// RegisterBuffers pins iovecs for PrepareReadFixed and PrepareWriteFixed.
// The memory must stay valid until UnregisterBuffers or Close.
func (ring *Ring) RegisterBuffers(iovecs []unix.Iovec) (uint, error) {
	if len(iovecs) == 0 {
		return 0, configurationError("no buffers to register")
	}
	n, err := ring.doRegister(RegisterOpBuffers, unsafe.Pointer(unsafe.SliceData(iovecs)), uint32(len(iovecs)))
	runtime.KeepAlive(iovecs)
	if err != nil {
		return 0, ring.registrationFailed("register buffers", err)
	}
	return n, nil
}

func (ring *Ring) UnregisterBuffers() (uint, error) {
	n, err := ring.doRegister(UnregisterOpBuffers, nil, 0)
	if err != nil {
		return 0, ring.registrationFailed("unregister buffers", err)
	}
	return n, nil
}

// RegisterFiles registers a fixed file table. EMFILE raises RLIMIT_NOFILE
// once and retries.
func (ring *Ring) RegisterFiles(files []int32) (uint, error) {
	if len(files) == 0 {
		return 0, configurationError("no files to register")
	}
	var (
		n           uint
		err         error
		didIncrease bool
	)
	for {
		n, err = ring.doRegister(RegisterOpFiles, unsafe.Pointer(unsafe.SliceData(files)), uint32(len(files)))
		if err == nil {
			break
		}
		if errno, ok := err.(syscall.Errno); ok && errno == syscall.EMFILE && !didIncrease {
			didIncrease = true
			if rlimitErr := increaseRlimitNoFile(uint64(len(files))); rlimitErr != nil {
				break
			}
			continue
		}
		break
	}
	runtime.KeepAlive(files)
	if err != nil {
		return 0, ring.registrationFailed("register files", err)
	}
	return n, nil
}

func (ring *Ring) UnregisterFiles() (uint, error) {
	n, err := ring.doRegister(UnregisterOpFiles, nil, 0)
	if err != nil {
		return 0, ring.registrationFailed("unregister files", err)
	}
	return n, nil
}

func (ring *Ring) RegisterProbe(probe *Probe, nrOps int) (uint, error) {
	n, err := ring.doRegister(RegisterOpProbe, unsafe.Pointer(probe), uint32(nrOps))
	runtime.KeepAlive(probe)
	if err != nil {
		return 0, ring.registrationFailed("register probe", err)
	}
	return n, nil
}

// RegisterBufferRing registers a provided buffer ring under reg.Bgid.
func (ring *Ring) RegisterBufferRing(reg *BufReg) (uint, error) {
	n, err := ring.doRegister(RegisterOpPbufRing, unsafe.Pointer(reg), 1)
	runtime.KeepAlive(reg)
	if err != nil {
		return 0, ring.registrationFailed("register buffer ring", err)
	}
	return n, nil
}

func (ring *Ring) UnregisterBufferRing(groupID uint16) (uint, error) {
	reg := &BufReg{
		Bgid: groupID,
	}
	n, err := ring.doRegister(UnregisterOpPbufRing, unsafe.Pointer(reg), 1)
	runtime.KeepAlive(reg)
	if err != nil {
		return 0, ring.registrationFailed("unregister buffer ring", err)
	}
	return n, nil
}

func (ring *Ring) registrationFailed(op string, err error) error {
	if errors.Is(err, ErrClosed) {
		return err
	}
	ring.logger.Errorf("%s failed: fd=%d err=%v", op, ring.ringFd, err)
	return registrationError("io_uring_register", err)
}

func increaseRlimitNoFile(nr uint64) error {
	limit := unix.Rlimit{}
	if err := unix.Getrlimit(unix.RLIMIT_NOFILE, &limit); err != nil {
		return err
	}
	if limit.Cur < nr {
		limit.Cur += nr
		return unix.Setrlimit(unix.RLIMIT_NOFILE, &limit)
	}
	return nil
}
