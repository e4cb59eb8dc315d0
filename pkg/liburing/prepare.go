//go:build linux

package liburing

import (
	"syscall"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Every Prepare method resets the whole entry, so flags and the tag must be
// set after it. Memory referenced by an entry (buffers, addresses, msghdr,
// iovecs, timespecs) must stay reachable and unmodified until the entry's
// completion is observed.

// [Nop] ***************************************************************************************************************

func (entry *SubmissionQueueEntry) PrepareNop() {
	entry.prepareRW(OpNop, -1, 0, 0, 0)
}

// [Net] ***************************************************************************************************************

// PrepareAccept accepts one connection on fd. addr and addrLen may be nil.
func (entry *SubmissionQueueEntry) PrepareAccept(fd int, addr *syscall.RawSockaddrAny, addrLen *uint32, flags int) {
	entry.prepareRW(OpAccept, fd, uintptr(unsafe.Pointer(addr)), 0, uint64(uintptr(unsafe.Pointer(addrLen))))
	entry.OpcodeFlags = uint32(flags)
}

// PrepareAcceptMultishot keeps accepting until canceled or failed. Every
// completion but the last carries CQEFMore.
func (entry *SubmissionQueueEntry) PrepareAcceptMultishot(fd int, addr *syscall.RawSockaddrAny, addrLen *uint32, flags int) {
	entry.PrepareAccept(fd, addr, addrLen, flags)
	entry.IoPrio |= AcceptMultishot
}

func (entry *SubmissionQueueEntry) PrepareConnect(fd int, addr *syscall.RawSockaddrAny, addrLen uint32) {
	entry.prepareRW(OpConnect, fd, uintptr(unsafe.Pointer(addr)), 0, uint64(addrLen))
}

func (entry *SubmissionQueueEntry) PrepareRecv(fd int, b []byte, flags int) {
	entry.prepareRW(OpRecv, fd, bytesAddr(b), uint32(len(b)), 0)
	entry.OpcodeFlags = uint32(flags)
}

// PrepareRecvMultishot receives into buffers picked from a provided buffer
// group until canceled or the group runs dry.
func (entry *SubmissionQueueEntry) PrepareRecvMultishot(fd int, groupID uint16, flags int) {
	entry.prepareRW(OpRecv, fd, 0, 0, 0)
	entry.OpcodeFlags = uint32(flags)
	entry.IoPrio |= RecvMultishot
	entry.SetBufferGroup(groupID)
}

func (entry *SubmissionQueueEntry) PrepareSend(fd int, b []byte, flags int) {
	entry.prepareRW(OpSend, fd, bytesAddr(b), uint32(len(b)), 0)
	entry.OpcodeFlags = uint32(flags)
}

func (entry *SubmissionQueueEntry) PrepareRecvMsg(fd int, msg *syscall.Msghdr, flags uint32) {
	entry.prepareRW(OpRecvMsg, fd, uintptr(unsafe.Pointer(msg)), 1, 0)
	entry.OpcodeFlags = flags
}

func (entry *SubmissionQueueEntry) PrepareSendMsg(fd int, msg *syscall.Msghdr, flags uint32) {
	entry.prepareRW(OpSendMsg, fd, uintptr(unsafe.Pointer(msg)), 1, 0)
	entry.OpcodeFlags = flags
}

// [File] **************************************************************************************************************

func (entry *SubmissionQueueEntry) PrepareRead(fd int, b []byte, offset uint64) {
	entry.prepareRW(OpRead, fd, bytesAddr(b), uint32(len(b)), offset)
}

// PrepareReadSelect reads up to nbytes into a buffer the kernel picks from
// groupID. The completion reports the buffer id.
func (entry *SubmissionQueueEntry) PrepareReadSelect(fd int, nbytes uint32, offset uint64, groupID uint16) {
	entry.prepareRW(OpRead, fd, 0, nbytes, offset)
	entry.SetBufferGroup(groupID)
}

func (entry *SubmissionQueueEntry) PrepareWrite(fd int, b []byte, offset uint64) {
	entry.prepareRW(OpWrite, fd, bytesAddr(b), uint32(len(b)), offset)
}

func (entry *SubmissionQueueEntry) PrepareReadv(fd int, iovecs []unix.Iovec, offset uint64) {
	entry.prepareRW(OpReadv, fd, uintptr(unsafe.Pointer(unsafe.SliceData(iovecs))), uint32(len(iovecs)), offset)
}

func (entry *SubmissionQueueEntry) PrepareWritev(fd int, iovecs []unix.Iovec, offset uint64) {
	entry.prepareRW(OpWritev, fd, uintptr(unsafe.Pointer(unsafe.SliceData(iovecs))), uint32(len(iovecs)), offset)
}

// PrepareReadFixed reads into b, which must lie inside registered buffer
// index. An unregistered index fails on the completion, not here.
func (entry *SubmissionQueueEntry) PrepareReadFixed(fd int, b []byte, offset uint64, index uint16) {
	entry.prepareRW(OpReadFixed, fd, bytesAddr(b), uint32(len(b)), offset)
	entry.BufIG = index
}

func (entry *SubmissionQueueEntry) PrepareWriteFixed(fd int, b []byte, offset uint64, index uint16) {
	entry.prepareRW(OpWriteFixed, fd, bytesAddr(b), uint32(len(b)), offset)
	entry.BufIG = index
}

func (entry *SubmissionQueueEntry) PrepareFsync(fd int, flags uint32) {
	entry.prepareRW(OpFsync, fd, 0, 0, 0)
	entry.OpcodeFlags = flags
}

func (entry *SubmissionQueueEntry) PrepareClose(fd int) {
	entry.prepareRW(OpClose, fd, 0, 0, 0)
}

// [Splice] ************************************************************************************************************

// PrepareSplice moves nbytes from fdIn to fdOut. One side must be a pipe, see
// CheckSplice. SpliceOffsetCurrent uses the stream position.
func (entry *SubmissionQueueEntry) PrepareSplice(fdIn int, offIn int64, fdOut int, offOut int64, nbytes, spliceFlags uint32) {
	entry.prepareRW(OpSplice, fdOut, 0, nbytes, uint64(offOut))
	entry.Addr = uint64(offIn)
	entry.SpliceFdIn = int32(fdIn)
	entry.OpcodeFlags = spliceFlags
}

// PrepareTee duplicates nbytes between two pipes without consuming them.
func (entry *SubmissionQueueEntry) PrepareTee(fdIn, fdOut int, nbytes, spliceFlags uint32) {
	entry.prepareRW(OpTee, fdOut, 0, nbytes, 0)
	entry.SpliceFdIn = int32(fdIn)
	entry.OpcodeFlags = spliceFlags
}

// [Cancel] ************************************************************************************************************

// PrepareCancel64 cancels the in-flight operation tagged userData. The target
// still posts its own completion, usually with ECANCELED.
func (entry *SubmissionQueueEntry) PrepareCancel64(userData uint64, flags uint32) {
	entry.prepareRW(OpAsyncCancel, -1, 0, 0, 0)
	entry.Addr = userData
	entry.OpcodeFlags = flags
}

func (entry *SubmissionQueueEntry) PrepareCancelFd(fd int, flags uint32) {
	entry.prepareRW(OpAsyncCancel, fd, 0, 0, 0)
	entry.OpcodeFlags = flags | CancelFd
}

// [Timeout] ***********************************************************************************************************

// PrepareTimeout completes after ts elapses or after count other completions,
// whichever comes first.
func (entry *SubmissionQueueEntry) PrepareTimeout(ts *unix.Timespec, count, flags uint32) {
	entry.prepareRW(OpTimeout, -1, uintptr(unsafe.Pointer(ts)), 1, uint64(count))
	entry.OpcodeFlags = flags
}

// PrepareLinkTimeout bounds the entry linked before it.
func (entry *SubmissionQueueEntry) PrepareLinkTimeout(ts *unix.Timespec, flags uint32) {
	entry.prepareRW(OpLinkTimeout, -1, uintptr(unsafe.Pointer(ts)), 1, 0)
	entry.OpcodeFlags = flags
}
