//go:build linux

package liburing

import (
	"fmt"
	"sync/atomic"
	"syscall"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"

	"github.com/brickingsoft/uring/pkg/kernel"
)

const simRingFd = 1000

// simKernel is an in-process io_uring. It owns the ring memory, consumes
// submission entries through the index array and posts completions exactly
// the way the kernel does, so the user-side protocol runs unmodified.
type simKernel struct {
	features    uint32
	version     kernel.Version
	startIndex  uint32
	setupErr    error
	enterErr    error
	registerErr map[uint32]error

	setupCalls    int
	enterCalls    int
	munmapCalls   int
	closed        bool
	registrations []uint32

	sqRing, cqRing, sqes []byte
	sqEntries, cqEntries uint32
	sqeSize, cqeSize     uintptr

	listeners      map[int32]int
	nextFd         int32
	armed          map[uint64]SubmissionQueueEntry
	files          map[int32][]byte
	groups         map[uint16]*simGroup
	fixedBuffers   uint32
	fixedFiles     uint32
	later          []CompletionQueueEvent
	pendingTimeout []simTimeout
	posted         uint32
}

// simTimeout is satisfied once count completions are posted after it was
// queued, like the kernel's timeout count.
type simTimeout struct {
	userData uint64
	count    uint32
	base     uint32
}

type simGroup struct {
	base    unsafe.Pointer
	entries uint32
	head    uint16
}

func newSimKernel() *simKernel {
	return &simKernel{
		features:    FeatNoDrop | FeatExtArg,
		version:     kernel.New(6, 8, 0),
		registerErr: make(map[uint32]error),
		listeners:   make(map[int32]int),
		nextFd:      100,
		armed:       make(map[uint64]SubmissionQueueEntry),
		files:       make(map[int32][]byte),
		groups:      make(map[uint16]*simGroup),
	}
}

// newSimRing builds a ring on k that is closed when the test ends.
func newSimRing(t *testing.T, k *simKernel, options ...Option) *Ring {
	t.Helper()
	options = append([]Option{WithKernel(k), WithLogger(&recordLogger{})}, options...)
	ring, err := New(options...)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = ring.Close()
	})
	return ring
}

func simAlloc(size uintptr) []byte {
	words := make([]uint64, (size+7)/8)
	return unsafe.Slice((*byte)(unsafe.Pointer(unsafe.SliceData(words))), size)
}

func (k *simKernel) word(mem []byte, offset uint32) *uint32 {
	return (*uint32)(unsafe.Pointer(&mem[offset]))
}

func (k *simKernel) Setup(entries uint32, params *Params) (int, error) {
	k.setupCalls++
	if k.setupErr != nil {
		return -1, k.setupErr
	}
	k.sqEntries = entries
	k.cqEntries = 2 * entries
	if params.Flags&SetupCQSize != 0 {
		k.cqEntries = params.CQEntries
	}
	k.sqeSize = 64
	if params.Flags&SetupSQE128 != 0 {
		k.sqeSize = 128
	}
	k.cqeSize = 16
	if params.Flags&SetupCQE32 != 0 {
		k.cqeSize = 32
	}
	params.SQEntries = k.sqEntries
	params.CQEntries = k.cqEntries
	params.Features = k.features
	params.SQOff = SQRingOffsets{Head: 0, Tail: 4, RingMask: 8, RingEntries: 12, Flags: 16, Dropped: 20, Array: 64}
	params.CQOff = CQRingOffsets{Head: 0, Tail: 4, RingMask: 8, RingEntries: 12, Overflow: 16, Flags: 20, Cqes: 64}

	k.sqRing = simAlloc(64 + 4*uintptr(k.sqEntries))
	k.cqRing = simAlloc(64 + k.cqeSize*uintptr(k.cqEntries))
	k.sqes = simAlloc(k.sqeSize * uintptr(k.sqEntries))

	*k.word(k.sqRing, params.SQOff.RingMask) = k.sqEntries - 1
	*k.word(k.sqRing, params.SQOff.RingEntries) = k.sqEntries
	*k.word(k.sqRing, params.SQOff.Head) = k.startIndex
	*k.word(k.sqRing, params.SQOff.Tail) = k.startIndex
	*k.word(k.cqRing, params.CQOff.RingMask) = k.cqEntries - 1
	*k.word(k.cqRing, params.CQOff.RingEntries) = k.cqEntries
	*k.word(k.cqRing, params.CQOff.Head) = k.startIndex
	*k.word(k.cqRing, params.CQOff.Tail) = k.startIndex
	return simRingFd, nil
}

func (k *simKernel) Mmap(fd int, offset int64, length int) ([]byte, error) {
	if fd != simRingFd {
		return nil, syscall.EBADF
	}
	var region []byte
	switch offset {
	case offSQRing:
		region = k.sqRing
	case offCQRing:
		region = k.cqRing
	case offSQEs:
		region = k.sqes
	default:
		return nil, syscall.EINVAL
	}
	if length > len(region) {
		return nil, syscall.EINVAL
	}
	return region[:length], nil
}

func (k *simKernel) Munmap(b []byte) error {
	k.munmapCalls++
	return nil
}

func (k *simKernel) Close(fd int) error {
	if k.closed {
		return syscall.EBADF
	}
	k.closed = true
	return nil
}

func (k *simKernel) Version() kernel.Version {
	return k.version
}

func (k *simKernel) sqHead() *uint32 { return k.word(k.sqRing, 0) }
func (k *simKernel) sqTail() *uint32 { return k.word(k.sqRing, 4) }
func (k *simKernel) sqFlags() *uint32 { return k.word(k.sqRing, 16) }
func (k *simKernel) cqHead() *uint32 { return k.word(k.cqRing, 0) }
func (k *simKernel) cqTail() *uint32 { return k.word(k.cqRing, 4) }

func (k *simKernel) cqOverflow() *uint32 {
	return k.word(k.cqRing, 16)
}

func (k *simKernel) ready() uint32 {
	return *k.cqTail() - atomic.LoadUint32(k.cqHead())
}

func (k *simKernel) post(userData uint64, res int32, flags uint32) {
	tail := *k.cqTail()
	if tail-atomic.LoadUint32(k.cqHead()) >= k.cqEntries {
		atomic.AddUint32(k.cqOverflow(), 1)
		return
	}
	cqe := (*CompletionQueueEvent)(unsafe.Pointer(&k.cqRing[64+uintptr(tail&(k.cqEntries-1))*k.cqeSize]))
	*cqe = CompletionQueueEvent{UserData: userData, Res: res, Flags: flags}
	atomic.StoreUint32(k.cqTail(), tail+1)
	k.posted++
}

func (k *simKernel) complete(entry *SubmissionQueueEntry, res int32, flags uint32) {
	if res >= 0 && entry.Flags&SQECQESkipSuccess != 0 {
		return
	}
	k.post(entry.UserData, res, flags)
}

func (k *simKernel) Enter(fd int, toSubmit, minComplete, flags uint32, arg unsafe.Pointer, argSize uintptr) (uint, error) {
	k.enterCalls++
	if fd != simRingFd || k.closed {
		return 0, syscall.EBADF
	}
	if k.enterErr != nil {
		return 0, k.enterErr
	}
	submitted := uint32(0)
	head := *k.sqHead()
	tail := atomic.LoadUint32(k.sqTail())
	for submitted < toSubmit && head != tail {
		index := *(*uint32)(unsafe.Pointer(&k.sqRing[64+uintptr(head&(k.sqEntries-1))*4]))
		entry := *(*SubmissionQueueEntry)(unsafe.Pointer(&k.sqes[uintptr(index)*k.sqeSize]))
		head++
		atomic.StoreUint32(k.sqHead(), head)
		submitted++
		k.process(&entry)
	}
	if flags&EnterGetEvents != 0 {
		if k.ready() < minComplete {
			for _, cqe := range k.later {
				k.post(cqe.UserData, cqe.Res, cqe.Flags)
			}
			k.later = nil
		}
		timeouts := k.pendingTimeout
		k.pendingTimeout = nil
		for _, timeout := range timeouts {
			res := int32(0)
			if k.posted-timeout.base < timeout.count {
				res = -int32(syscall.ETIME)
			}
			k.post(timeout.userData, res, 0)
		}
		// a posted timeout wakes the waiter
		if k.ready() < minComplete && len(timeouts) == 0 {
			if flags&EnterExtArg != 0 {
				return uint(submitted), syscall.ETIME
			}
			// a real kernel would sleep here forever
			return uint(submitted), syscall.EDEADLK
		}
	}
	return uint(submitted), nil
}

func (k *simKernel) process(entry *SubmissionQueueEntry) {
	switch entry.OpCode {
	case OpNop:
		k.complete(entry, 0, 0)
	case OpAccept:
		k.accept(entry)
	case OpRead, OpRecv:
		if entry.Flags&SQEBufferSelect != 0 {
			k.readSelect(entry)
			return
		}
		k.read(entry)
	case OpReadFixed:
		if uint32(entry.BufIG) >= k.fixedBuffers {
			k.complete(entry, -int32(syscall.EFAULT), 0)
			return
		}
		k.read(entry)
	case OpAsyncCancel:
		target := entry.Addr
		if _, ok := k.armed[target]; !ok {
			k.complete(entry, -int32(syscall.ENOENT), 0)
			return
		}
		delete(k.armed, target)
		k.post(target, -int32(syscall.ECANCELED), 0)
		k.complete(entry, 0, 0)
	case OpTimeout:
		k.pendingTimeout = append(k.pendingTimeout, simTimeout{
			userData: entry.UserData,
			count:    uint32(entry.Off),
			base:     k.posted,
		})
	default:
		k.complete(entry, -int32(syscall.EINVAL), 0)
	}
}

func (k *simKernel) accept(entry *SubmissionQueueEntry) {
	waiting, ok := k.listeners[entry.Fd]
	if !ok {
		k.complete(entry, -int32(syscall.ENOTSOCK), 0)
		return
	}
	if entry.IoPrio&AcceptMultishot != 0 {
		for ; waiting > 0; waiting-- {
			k.post(entry.UserData, k.nextFd, CQEFMore)
			k.nextFd++
		}
		k.listeners[entry.Fd] = 0
		k.armed[entry.UserData] = *entry
		return
	}
	if waiting == 0 {
		k.complete(entry, -int32(syscall.EAGAIN), 0)
		return
	}
	k.listeners[entry.Fd] = waiting - 1
	k.complete(entry, k.nextFd, 0)
	k.nextFd++
}

// connect queues a connection on a listener, delivered to an armed
// multishot accept right away.
func (k *simKernel) connect(listener int32) {
	for userData, entry := range k.armed {
		if entry.OpCode == OpAccept && entry.Fd == listener {
			k.post(userData, k.nextFd, CQEFMore)
			k.nextFd++
			return
		}
	}
	k.listeners[listener]++
}

func (k *simKernel) read(entry *SubmissionQueueEntry) {
	data := k.files[entry.Fd]
	dst := unsafe.Slice((*byte)(unsafe.Pointer(uintptr(entry.Addr))), entry.Len)
	n := copy(dst, data)
	k.files[entry.Fd] = data[n:]
	k.complete(entry, int32(n), 0)
}

func (k *simKernel) readSelect(entry *SubmissionQueueEntry) {
	group, ok := k.groups[entry.BufIG]
	if !ok {
		k.complete(entry, -int32(syscall.ENOBUFS), 0)
		return
	}
	tail := uint16(atomic.LoadUint32((*uint32)(unsafe.Add(group.base, 12))) >> 16)
	if group.head == tail {
		k.complete(entry, -int32(syscall.ENOBUFS), 0)
		return
	}
	desc := (*BufferRingEntry)(unsafe.Add(group.base, uintptr(group.head&uint16(group.entries-1))*bufferRingEntrySize))
	group.head++
	dst := unsafe.Slice((*byte)(unsafe.Pointer(uintptr(desc.Addr))), desc.Len)
	if entry.Len > 0 && entry.Len < desc.Len {
		dst = dst[:entry.Len]
	}
	data := k.files[entry.Fd]
	n := copy(dst, data)
	k.files[entry.Fd] = data[n:]
	k.complete(entry, int32(n), CQEFBuffer|uint32(desc.Bid)<<CQEBufferShift)
}

func (k *simKernel) Register(fd int, opcode uint32, arg unsafe.Pointer, nrArgs uint32) (uint, error) {
	if fd != simRingFd || k.closed {
		return 0, syscall.EBADF
	}
	k.registrations = append(k.registrations, opcode)
	if err, ok := k.registerErr[opcode]; ok {
		return 0, err
	}
	switch opcode {
	case RegisterOpPbufRing:
		reg := (*BufReg)(arg)
		if _, exists := k.groups[reg.Bgid]; exists {
			return 0, syscall.EEXIST
		}
		k.groups[reg.Bgid] = &simGroup{
			base:    unsafe.Pointer(uintptr(reg.RingAddr)),
			entries: reg.RingEntries,
		}
	case UnregisterOpPbufRing:
		reg := (*BufReg)(arg)
		if _, exists := k.groups[reg.Bgid]; !exists {
			return 0, syscall.EINVAL
		}
		delete(k.groups, reg.Bgid)
	case RegisterOpBuffers:
		if k.fixedBuffers > 0 {
			return 0, syscall.EBUSY
		}
		k.fixedBuffers = nrArgs
	case UnregisterOpBuffers:
		if k.fixedBuffers == 0 {
			return 0, syscall.ENXIO
		}
		k.fixedBuffers = 0
	case RegisterOpFiles:
		if k.fixedFiles > 0 {
			return 0, syscall.EBUSY
		}
		k.fixedFiles = nrArgs
	case UnregisterOpFiles:
		if k.fixedFiles == 0 {
			return 0, syscall.ENXIO
		}
		k.fixedFiles = 0
	case RegisterOpProbe:
		probe := (*Probe)(arg)
		probe.LastOp = OpShutdown
		probe.OpsLen = OpShutdown + 1
		for op := uint8(0); op <= OpShutdown; op++ {
			probe.Ops[op].Op = op
			switch op {
			case OpNop, OpAccept, OpRead, OpRecv, OpReadFixed, OpAsyncCancel, OpTimeout:
				probe.Ops[op].Flags = OpSupported
			}
		}
	default:
		return 0, syscall.EINVAL
	}
	return 0, nil
}

func (k *simKernel) registered(opcode uint32) int {
	n := 0
	for _, op := range k.registrations {
		if op == opcode {
			n++
		}
	}
	return n
}

type recordLogger struct {
	debugs []string
	infos  []string
	warns  []string
	errors []string
}

func (l *recordLogger) Debugf(format string, args ...interface{}) {
	l.debugs = append(l.debugs, fmt.Sprintf(format, args...))
}

func (l *recordLogger) Infof(format string, args ...interface{}) {
	l.infos = append(l.infos, fmt.Sprintf(format, args...))
}

func (l *recordLogger) Warnf(format string, args ...interface{}) {
	l.warns = append(l.warns, fmt.Sprintf(format, args...))
}

func (l *recordLogger) Errorf(format string, args ...interface{}) {
	l.errors = append(l.errors, fmt.Sprintf(format, args...))
}
