//go:build linux

package liburing

import (
	"sync/atomic"
	"unsafe"

	"github.com/brickingsoft/errors"
)

// SubmissionQueue is the user side of the SQ ring. sqeHead and sqeTail are
// private: sqeTail counts entries handed out by GetSQE, sqeHead the ones
// already published to the shared tail.
type SubmissionQueue struct {
	head        ringIndex
	tail        ringIndex
	ringMask    uint32
	ringEntries uint32
	flags       *uint32
	dropped     *uint32
	array       unsafe.Pointer
	sqes        unsafe.Pointer
	sqeHead     uint32
	sqeTail     uint32
	shift       uint32
}

func (sq *SubmissionQueue) entry(index uint32) *SubmissionQueueEntry {
	offset := uintptr(index&sq.ringMask) << (6 + sq.shift)
	return (*SubmissionQueueEntry)(unsafe.Add(sq.sqes, offset))
}

func (sq *SubmissionQueue) loadFlags() uint32 {
	return atomic.LoadUint32(sq.flags)
}

// sqHead reads the kernel consumer index. Under SQPOLL the kernel thread
// moves it concurrently and the read needs acquire ordering.
func (ring *Ring) sqHead() uint32 {
	if ring.flags&SetupSQPoll != 0 {
		return ring.sqRing.head.loadAcquire()
	}
	return ring.sqRing.head.load()
}

// GetSQE reserves the next submission entry. It returns ErrResourceExhausted
// when every slot is either staged or not yet consumed by the kernel.
func (ring *Ring) GetSQE() (*SubmissionQueueEntry, error) {
	if ring.closed {
		return nil, ErrClosed
	}
	sq := ring.sqRing
	next := sq.sqeTail + 1
	if pending(next, ring.sqHead()) > sq.ringEntries {
		return nil, errors.From(
			ErrResourceExhausted,
			errors.WithMeta(errMetaPkgKey, errMetaPkgVal),
			errors.WithMeta(errMetaReasonKey, "submission queue is full"),
		)
	}
	entry := sq.entry(sq.sqeTail)
	sq.sqeTail = next
	return entry, nil
}

// SQReady is the number of entries staged or published but not yet consumed
// by the kernel.
func (ring *Ring) SQReady() uint32 {
	if ring.closed {
		return 0
	}
	return pending(ring.sqRing.sqeTail, ring.sqHead())
}

func (ring *Ring) SQSpaceLeft() uint32 {
	if ring.closed {
		return 0
	}
	return ring.sqRing.ringEntries - ring.SQReady()
}

// SQNeedWakeup reports whether the SQPOLL thread is asleep. Always false
// without SetupSQPoll.
func (ring *Ring) SQNeedWakeup() bool {
	if ring.flags&SetupSQPoll == 0 {
		return false
	}
	return ring.sqRing.loadFlags()&SQNeedWakeup != 0
}

// flushSQ publishes every staged entry with one release store of the shared
// tail and returns the number of entries the kernel has yet to consume.
func (ring *Ring) flushSQ() uint32 {
	sq := ring.sqRing
	tail := sq.sqeTail
	if sq.sqeHead != tail {
		sq.sqeHead = tail
		sq.tail.storeRelease(tail)
	}
	return pending(tail, sq.head.loadAcquire())
}

func (ring *Ring) sqRingNeedsEnter(submit uint32, flags *uint32) bool {
	if submit == 0 {
		return false
	}
	if ring.flags&SetupSQPoll == 0 {
		return true
	}
	if ring.sqRing.loadFlags()&SQNeedWakeup != 0 {
		*flags |= EnterSQWakeup
		return true
	}
	return false
}

func (ring *Ring) cqRingNeedsFlush() bool {
	return ring.sqRing.loadFlags()&(SQCQOverflow|SQTaskRun) != 0
}

func (ring *Ring) cqRingNeedsEnter() bool {
	return ring.flags&SetupIOPoll != 0 || ring.cqRingNeedsFlush()
}
