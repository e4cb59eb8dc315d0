//go:build linux

package liburing

import (
	"runtime"
	"sync/atomic"
	"syscall"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"
)

// CompletionQueue is the user side of the CQ ring. The kernel writes the
// tail, the ring writes the head.
type CompletionQueue struct {
	head        ringIndex
	tail        ringIndex
	ringMask    uint32
	ringEntries uint32
	flags       *uint32
	overflow    *uint32
	cqes        unsafe.Pointer
	shift       uint32
}

// event returns the entry at a logical index. CQE32 doubles the stride.
func (cq *CompletionQueue) event(index uint32) *CompletionQueueEvent {
	offset := uintptr(index&cq.ringMask) << (4 + cq.shift)
	return (*CompletionQueueEvent)(unsafe.Add(cq.cqes, offset))
}

// CQReady is the number of completions posted and not yet consumed.
func (ring *Ring) CQReady() uint32 {
	if ring.closed {
		return 0
	}
	cq := ring.cqRing
	return pending(cq.tail.loadAcquire(), cq.head.load())
}

// CQHasOverflow reports whether the kernel ever dropped or backlogged a
// completion because the CQ ring was full. Once true it stays true.
func (ring *Ring) CQHasOverflow() bool {
	if !ring.closed {
		ring.checkOverflow()
	}
	return ring.overflow
}

func (ring *Ring) checkOverflow() {
	if ring.overflow {
		return
	}
	overflowed := atomic.LoadUint32(ring.cqRing.overflow)
	if overflowed == 0 && ring.sqRing.loadFlags()&SQCQOverflow == 0 {
		return
	}
	ring.overflow = true
	ring.logger.Warnf("completion queue overflow: fd=%d cq=%d overflowed=%d",
		ring.ringFd, ring.cqRing.ringEntries, overflowed)
}

func (ring *Ring) cqAdvance(n uint32) {
	if n > 0 {
		ring.cqRing.head.add(n)
	}
}

// peek returns the current head and up to limit visible completions. Without
// FeatExtArg the internal timeout record is filtered here. At the front it is
// consumed: a timed wait gets the failed timeout as its error, other callers
// drop it. Behind other completions it cuts the window short and skip counts
// it, so the batch releases it together with the records in front. A failed
// one found there by a timed wait is reported with the short window.
func (ring *Ring) peek(limit uint32, timed bool) (head, available, skip uint32, err error) {
	cq := ring.cqRing
	filter := ring.features&FeatExtArg == 0
	for {
		tail := cq.tail.loadAcquire()
		head = cq.head.load()
		available = pending(tail, head)
		if available == 0 {
			ring.checkOverflow()
			return
		}
		if !filter {
			break
		}
		cqe := cq.event(head)
		if cqe.UserData != TimeoutUserData {
			break
		}
		res := cqe.Res
		ring.cqAdvance(1)
		if res < 0 && timed {
			return head + 1, 0, 0, completionError(res)
		}
	}
	if limit > 0 && available > limit {
		available = limit
	}
	if filter {
		for i := uint32(1); i < available; i++ {
			cqe := cq.event(head + i)
			if cqe.UserData != TimeoutUserData {
				continue
			}
			available, skip = i, 1
			if cqe.Res < 0 && timed {
				err = completionError(cqe.Res)
			}
			break
		}
	}
	return
}

func (ring *Ring) checkBatch() error {
	if ring.closed {
		return ErrClosed
	}
	if ring.batch != nil && ring.batch.Available() > 0 {
		return ErrBatchInFlight
	}
	return nil
}

func (ring *Ring) newBatch(head, available, skip uint32) *CompletionBatch {
	batch := &CompletionBatch{
		ring: ring,
		head: head,
		end:  available,
		skip: skip,
	}
	ring.batch = batch
	return batch
}

// PeekBatch returns every completion visible now without entering the
// kernel. It returns nil and no error when the ring is empty.
func (ring *Ring) PeekBatch() (*CompletionBatch, error) {
	if err := ring.checkBatch(); err != nil {
		return nil, err
	}
	head, available, skip, _ := ring.peek(0, false)
	if available == 0 {
		return nil, nil
	}
	return ring.newBatch(head, available, skip), nil
}

// WaitBatch blocks until n completions are visible and returns a batch of
// exactly n. Zero waits for one.
func (ring *Ring) WaitBatch(n uint32) (*CompletionBatch, error) {
	if err := ring.checkBatch(); err != nil {
		return nil, err
	}
	if n == 0 {
		n = 1
	}
	if n > ring.cqRing.ringEntries {
		return nil, configurationError("wait count exceeds completion queue size")
	}
	return ring.waitBatch(n, false, 0, nil, 0)
}

// WaitBatchTimeout is WaitBatch bounded by timeout. Expiry returns ErrTimeout.
// Records that arrived before expiry come back in a short batch alongside the
// error and must still be released.
func (ring *Ring) WaitBatchTimeout(n uint32, timeout time.Duration) (*CompletionBatch, error) {
	if err := ring.checkBatch(); err != nil {
		return nil, err
	}
	if n == 0 {
		n = 1
	}
	if n > ring.cqRing.ringEntries {
		return nil, configurationError("wait count exceeds completion queue size")
	}
	ts := new(unix.Timespec)
	*ts = unix.NsecToTimespec(timeout.Nanoseconds())

	if ring.features&FeatExtArg != 0 {
		arg := &GetEventsArg{
			SigMaskSz: nSig / szDivider,
			Ts:        uint64(uintptr(unsafe.Pointer(ts))),
		}
		batch, err := ring.waitBatch(n, true, EnterExtArg, unsafe.Pointer(arg), unsafe.Sizeof(*arg))
		runtime.KeepAlive(ts)
		return batch, err
	}

	// the kernel counts only completions posted after the timeout is queued
	head, available, skip, _ := ring.peek(n, false)
	if available == n || (skip > 0 && available > 0) {
		return ring.newBatch(head, available, skip), nil
	}
	entry, err := ring.GetSQE()
	if err != nil {
		if _, err = ring.Submit(); err != nil {
			return nil, err
		}
		if entry, err = ring.GetSQE(); err != nil {
			return nil, err
		}
	}
	entry.PrepareTimeout(ts, n-available, 0)
	entry.SetData64(TimeoutUserData)
	_, err = ring.enter(ring.flushSQ(), n, EnterGetEvents, nil, nSig/szDivider)
	runtime.KeepAlive(ts)
	if err != nil {
		if errno, ok := Errno(err); !ok || errno != syscall.EINTR {
			return nil, err
		}
	}
	return ring.waitBatch(n, true, 0, nil, 0)
}

func (ring *Ring) waitBatch(n uint32, timed bool, flags uint32, arg unsafe.Pointer, argSize uintptr) (*CompletionBatch, error) {
	if arg == nil {
		argSize = nSig / szDivider
	}
	for {
		head, available, skip, err := ring.peek(n, timed)
		if available == n || (skip > 0 && available > 0) {
			return ring.newBatch(head, available, skip), err
		}
		if err != nil {
			return nil, err
		}
		if _, err = ring.enter(0, n, EnterGetEvents|flags, arg, argSize); err != nil {
			if errno, ok := Errno(err); ok && errno == syscall.EINTR {
				continue
			}
			return nil, err
		}
	}
}

// ForEachCQE hands every visible completion to fn and consumes them.
func (ring *Ring) ForEachCQE(fn func(rec CompletionRecord)) (uint32, error) {
	batch, err := ring.PeekBatch()
	if err != nil || batch == nil {
		return 0, err
	}
	defer batch.Close()
	n := batch.Available()
	for i := uint32(0); i < n; i++ {
		rec, _ := batch.Peek(i)
		fn(rec)
	}
	return n, nil
}
