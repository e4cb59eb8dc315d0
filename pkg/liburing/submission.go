//go:build linux

package liburing

import (
	"math"
	"unsafe"
)

// Opcodes.
const (
	OpNop uint8 = iota
	OpReadv
	OpWritev
	OpFsync
	OpReadFixed
	OpWriteFixed
	OpPollAdd
	OpPollRemove
	OpSyncFileRange
	OpSendMsg
	OpRecvMsg
	OpTimeout
	OpTimeoutRemove
	OpAccept
	OpAsyncCancel
	OpLinkTimeout
	OpConnect
	OpFallocate
	OpOpenat
	OpClose
	OpFilesUpdate
	OpStatx
	OpRead
	OpWrite
	OpFadvise
	OpMadvise
	OpSend
	OpRecv
	OpOpenat2
	OpEpollCtl
	OpSplice
	OpProvideBuffers
	OpRemoveBuffers
	OpTee
	OpShutdown

	OpLast = math.MaxUint8
)

// Submission entry flags.
const (
	SQEFixedFile uint8 = 1 << iota
	SQEIODrain
	SQEIOLink
	SQEIOHardlink
	SQEAsync
	SQEBufferSelect
	SQECQESkipSuccess
)

const FsyncDatasync uint32 = 1 << 0

const (
	TimeoutAbs uint32 = 1 << iota
	TimeoutUpdate
	TimeoutBoottime
	TimeoutRealtime
	LinkTimeoutUpdate
	TimeoutETimeSuccess
)

const (
	CancelAll uint32 = 1 << iota
	CancelFd
	CancelAny
	CancelFdFixed
)

const (
	RecvSendPollFirst uint16 = 1 << iota
	RecvMultishot
	RecvSendFixedBuf
)

const (
	AcceptMultishot uint16 = 1 << iota
	AcceptDontWait
	AcceptPollFirst
)

// SpliceFdInFixed marks the splice input fd as a registered file index.
const SpliceFdInFixed uint32 = 1 << 31

// SpliceOffsetCurrent uses the descriptor's current position.
const SpliceOffsetCurrent int64 = -1

// OffsetCurrent reads or writes at the file's current position.
const OffsetCurrent uint64 = math.MaxUint64

// TimeoutUserData tags the internal timeout entry of WaitBatchTimeout.
const TimeoutUserData uint64 = math.MaxUint64

// SubmissionQueueEntry is struct io_uring_sqe. Entries returned by GetSQE
// point into the shared array and become visible to the kernel on Submit.
type SubmissionQueueEntry struct {
	OpCode      uint8
	Flags       uint8
	IoPrio      uint16
	Fd          int32
	Off         uint64
	Addr        uint64
	Len         uint32
	OpcodeFlags uint32
	UserData    uint64
	BufIG       uint16
	Personality uint16
	SpliceFdIn  int32
	Addr3       uint64
	_pad2       [1]uint64
}

func (entry *SubmissionQueueEntry) SetData64(data uint64) {
	entry.UserData = data
}

// SetData stores a pointer-sized value as the tag. The pointee is not kept
// alive by the ring.
func (entry *SubmissionQueueEntry) SetData(data unsafe.Pointer) {
	entry.UserData = uint64(uintptr(data))
}

func (entry *SubmissionQueueEntry) SetFlags(flags uint8) {
	entry.Flags |= flags
}

func (entry *SubmissionQueueEntry) SetIoPrio(flags uint16) {
	entry.IoPrio |= flags
}

func (entry *SubmissionQueueEntry) SetBufferIndex(index uint16) {
	entry.BufIG = index
}

// SetBufferGroup selects a provided buffer group and sets SQEBufferSelect.
func (entry *SubmissionQueueEntry) SetBufferGroup(groupID uint16) {
	entry.BufIG = groupID
	entry.Flags |= SQEBufferSelect
}

// Finalize ends field writes. Nothing is published until Submit.
func (entry *SubmissionQueueEntry) Finalize() {}

func (entry *SubmissionQueueEntry) prepareRW(opcode uint8, fd int, addr uintptr, length uint32, offset uint64) {
	entry.OpCode = opcode
	entry.Flags = 0
	entry.IoPrio = 0
	entry.Fd = int32(fd)
	entry.Off = offset
	entry.Addr = uint64(addr)
	entry.Len = length
	entry.OpcodeFlags = 0
	entry.UserData = 0
	entry.BufIG = 0
	entry.Personality = 0
	entry.SpliceFdIn = 0
	entry.Addr3 = 0
	entry._pad2[0] = 0
}

func bytesAddr(b []byte) uintptr {
	return uintptr(unsafe.Pointer(unsafe.SliceData(b)))
}
