//go:build linux

package liburing

import (
	"unsafe"
)

func init() {
	if unsafe.Sizeof(SubmissionQueueEntry{}) != 64 ||
		unsafe.Sizeof(CompletionQueueEvent{}) != 16 ||
		unsafe.Sizeof(Params{}) != 120 ||
		unsafe.Sizeof(BufferRingEntry{}) != 16 ||
		unsafe.Sizeof(BufReg{}) != 40 ||
		unsafe.Sizeof(GetEventsArg{}) != 24 {
		panic("liburing: kernel ABI struct size mismatch")
	}
}

func (ring *Ring) setup(entries uint32, params *Params) error {
	fd, err := ring.kernel.Setup(entries, params)
	if err != nil {
		return kernelError("io_uring_setup", err)
	}
	ring.ringFd = fd
	if err = ring.mmapRing(params); err != nil {
		for _, mapping := range ring.mappings {
			_ = ring.kernel.Munmap(mapping)
		}
		ring.mappings = nil
		_ = ring.kernel.Close(fd)
		ring.ringFd = -1
		return err
	}

	sq := ring.sqRing
	for index := uint32(0); index < sq.ringEntries; index++ {
		*(*uint32)(unsafe.Add(sq.array, uintptr(index)*4)) = index
	}
	sq.sqeTail = sq.tail.load()
	sq.sqeHead = sq.sqeTail

	ring.features = params.Features
	ring.flags = params.Flags
	return nil
}

func (ring *Ring) mmap(offset int64, length int) ([]byte, error) {
	mem, err := ring.kernel.Mmap(ring.ringFd, offset, length)
	if err != nil {
		return nil, kernelError("mmap", err)
	}
	ring.mappings = append(ring.mappings, mem)
	return mem, nil
}

func (ring *Ring) mmapRing(params *Params) error {
	sq := ring.sqRing
	cq := ring.cqRing

	cqeSize := int(unsafe.Sizeof(CompletionQueueEvent{}))
	if params.Flags&SetupCQE32 != 0 {
		cq.shift = 1
		cqeSize <<= 1
	}
	sqeSize := int(unsafe.Sizeof(SubmissionQueueEntry{}))
	if params.Flags&SetupSQE128 != 0 {
		sq.shift = 1
		sqeSize <<= 1
	}

	sqRingSize := int(params.SQOff.Array) + int(params.SQEntries)*4
	cqRingSize := int(params.CQOff.Cqes) + int(params.CQEntries)*cqeSize
	single := params.Features&FeatSingleMMap != 0
	if single {
		sqRingSize = max(sqRingSize, cqRingSize)
		cqRingSize = sqRingSize
	}

	sqMem, err := ring.mmap(offSQRing, sqRingSize)
	if err != nil {
		return err
	}
	cqMem := sqMem
	if !single {
		if cqMem, err = ring.mmap(offCQRing, cqRingSize); err != nil {
			return err
		}
	}
	sqesMem, err := ring.mmap(offSQEs, sqeSize*int(params.SQEntries))
	if err != nil {
		return err
	}

	sq.head = newRingIndex(sqMem, params.SQOff.Head)
	sq.tail = newRingIndex(sqMem, params.SQOff.Tail)
	sq.ringMask = *(*uint32)(unsafe.Pointer(&sqMem[params.SQOff.RingMask]))
	sq.ringEntries = *(*uint32)(unsafe.Pointer(&sqMem[params.SQOff.RingEntries]))
	sq.flags = (*uint32)(unsafe.Pointer(&sqMem[params.SQOff.Flags]))
	sq.dropped = (*uint32)(unsafe.Pointer(&sqMem[params.SQOff.Dropped]))
	sq.array = unsafe.Pointer(&sqMem[params.SQOff.Array])
	sq.sqes = unsafe.Pointer(&sqesMem[0])

	cq.head = newRingIndex(cqMem, params.CQOff.Head)
	cq.tail = newRingIndex(cqMem, params.CQOff.Tail)
	cq.ringMask = *(*uint32)(unsafe.Pointer(&cqMem[params.CQOff.RingMask]))
	cq.ringEntries = *(*uint32)(unsafe.Pointer(&cqMem[params.CQOff.RingEntries]))
	cq.overflow = (*uint32)(unsafe.Pointer(&cqMem[params.CQOff.Overflow]))
	cq.cqes = unsafe.Pointer(&cqMem[params.CQOff.Cqes])
	if params.CQOff.Flags != 0 {
		cq.flags = (*uint32)(unsafe.Pointer(&cqMem[params.CQOff.Flags]))
	}

	if !isPow2(sq.ringEntries) || sq.ringMask != sq.ringEntries-1 ||
		!isPow2(cq.ringEntries) || cq.ringMask != cq.ringEntries-1 {
		return configurationError("kernel reported a ring that is not a power of two")
	}
	return nil
}
