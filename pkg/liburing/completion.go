//go:build linux

package liburing

// Completion flags.
const (
	CQEFBuffer uint32 = 1 << iota
	CQEFMore
	CQEFSockNonempty
	CQEFNotif
)

const CQEBufferShift = 16

// CompletionQueueEvent is struct io_uring_cqe as laid out in the CQ ring.
type CompletionQueueEvent struct {
	UserData uint64
	Res      int32
	Flags    uint32
}

// CompletionRecord is a copy of one completion, detached from the ring.
type CompletionRecord struct {
	UserData uint64
	Res      int32
	Flags    uint32
}

// Tag is the 64-bit value set on the submission entry.
func (rec CompletionRecord) Tag() uint64 {
	return rec.UserData
}

// Err maps a negative result to an error. ENOBUFS is ErrResourceExhausted,
// ECANCELED is ErrCanceled, ETIME is ErrTimeout, anything else is
// ErrKernelRejected.
func (rec CompletionRecord) Err() error {
	return completionError(rec.Res)
}

// HasMore reports whether a multishot operation stays armed.
func (rec CompletionRecord) HasMore() bool {
	return rec.Flags&CQEFMore != 0
}

// BufferID returns the provided buffer the kernel picked, if any.
func (rec CompletionRecord) BufferID() (uint16, bool) {
	if rec.Flags&CQEFBuffer == 0 {
		return 0, false
	}
	return uint16(rec.Flags >> CQEBufferShift), true
}
