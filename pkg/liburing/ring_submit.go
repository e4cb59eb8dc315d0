//go:build linux

package liburing

import (
	"unsafe"
)

// Submit publishes staged entries and notifies the kernel when it has to.
// It returns the number of entries the kernel accepted.
func (ring *Ring) Submit() (uint, error) {
	return ring.SubmitAndWait(0)
}

// SubmitAndWait submits and blocks until at least waitNr completions are
// available.
func (ring *Ring) SubmitAndWait(waitNr uint32) (uint, error) {
	if ring.closed {
		return 0, ErrClosed
	}
	return ring.submit(ring.flushSQ(), waitNr, false)
}

func (ring *Ring) submit(submitted, waitNr uint32, getEvents bool) (uint, error) {
	cqNeedsEnter := getEvents || waitNr > 0 || ring.cqRingNeedsEnter()

	var flags uint32
	if ring.sqRingNeedsEnter(submitted, &flags) || cqNeedsEnter {
		if cqNeedsEnter {
			flags |= EnterGetEvents
		}
		return ring.enter(submitted, waitNr, flags, nil, nSig/szDivider)
	}
	return uint(submitted), nil
}

func (ring *Ring) enter(submitted, waitNr, flags uint32, arg unsafe.Pointer, argSize uintptr) (uint, error) {
	n, err := ring.kernel.Enter(ring.ringFd, submitted, waitNr, flags, arg, argSize)
	if err != nil {
		return 0, kernelError("io_uring_enter", err)
	}
	return n, nil
}
