//go:build linux

package liburing

import (
	"os"
	"strconv"
	"sync/atomic"
	"unsafe"

	"github.com/brickingsoft/errors"
	"golang.org/x/sys/unix"
)

// MaxBufferRingEntries bounds a provided buffer ring; the kernel tail is
// 16 bits wide.
const MaxBufferRingEntries = 32768

// BufferRingEntry is struct io_uring_buf. The tail field of the ring header
// overlays Resv of entry 0.
type BufferRingEntry struct {
	Addr uint64
	Len  uint32
	Bid  uint16
	Resv uint16
}

var bufferRingEntrySize = unsafe.Sizeof(BufferRingEntry{})

// BufReg is struct io_uring_buf_reg.
type BufReg struct {
	RingAddr    uint64
	RingEntries uint32
	Bgid        uint16
	Flags       uint16
	Resv        [3]uint64
}

const (
	bufferIdle uint8 = iota
	bufferKernel
	bufferCaller
)

var (
	allocPages = func(size int) ([]byte, error) {
		return unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANONYMOUS|unix.MAP_PRIVATE)
	}
	freePages = unix.Munmap
)

// BufferRing is a provided buffer group: a descriptor ring the kernel
// consumes from and a pool of entries buffers of entrySize bytes each.
// Buffer bid always maps to the same pool slot. A buffer belongs to the
// kernel from publication until a completion reports its id, then to the
// caller until Release or Recycle.
type BufferRing struct {
	ring      *Ring
	ringMem   []byte
	pool      []byte
	entries   uint32
	mask      uint16
	entrySize uint32
	groupID   uint16
	tail      uint16
	state     []uint8
	closed    bool
}

// NewBufferRing allocates, registers and fills a provided buffer ring.
// Registration failure releases both allocations and returns ErrRegistration.
func NewBufferRing(ring *Ring, groupID uint16, entries uint32, entrySize uint32) (br *BufferRing, err error) {
	if err = checkPow2("buffer ring entries", entries, MaxBufferRingEntries); err != nil {
		return nil, err
	}
	if entrySize == 0 {
		return nil, configurationError("buffer ring entry size is zero")
	}
	if ring == nil || ring.closed {
		return nil, ErrClosed
	}

	pageSize := os.Getpagesize()
	ringMem, err := allocPages(roundUp(int(entries)*int(bufferRingEntrySize), pageSize))
	if err != nil {
		return nil, kernelError("mmap", err)
	}
	pool, err := allocPages(roundUp(int(entries)*int(entrySize), pageSize))
	if err != nil {
		_ = freePages(ringMem)
		return nil, kernelError("mmap", err)
	}

	reg := &BufReg{
		RingAddr:    uint64(uintptr(unsafe.Pointer(&ringMem[0]))),
		RingEntries: entries,
		Bgid:        groupID,
	}
	if _, err = ring.RegisterBufferRing(reg); err != nil {
		_ = freePages(pool)
		_ = freePages(ringMem)
		return nil, err
	}

	br = &BufferRing{
		ring:      ring,
		ringMem:   ringMem,
		pool:      pool,
		entries:   entries,
		mask:      uint16(entries - 1),
		entrySize: entrySize,
		groupID:   groupID,
		state:     make([]uint8, entries),
	}
	if err = br.AddAllBuffers(); err != nil {
		_ = br.Close()
		return nil, err
	}
	return br, nil
}

func (br *BufferRing) GroupID() uint16 {
	return br.groupID
}

func (br *BufferRing) Entries() uint32 {
	return br.entries
}

func (br *BufferRing) EntrySize() uint32 {
	return br.entrySize
}

// Tail is the last published descriptor tail.
func (br *BufferRing) Tail() uint16 {
	return br.tail
}

// Buffer returns the whole pool slot of bid.
func (br *BufferRing) Buffer(bid uint16) []byte {
	if uint32(bid) >= br.entries {
		return nil
	}
	offset := uint32(bid) * br.entrySize
	return br.pool[offset : offset+br.entrySize : offset+br.entrySize]
}

// AddAllBuffers hands every pool slot to the kernel and publishes them with
// a single tail update. It fails if any buffer is already out.
func (br *BufferRing) AddAllBuffers() error {
	if br.closed {
		return ErrClosed
	}
	for _, state := range br.state {
		if state != bufferIdle {
			return errors.From(
				ErrResourceExhausted,
				errors.WithMeta(errMetaPkgKey, errMetaPkgVal),
				errors.WithMeta(errMetaReasonKey, "buffer ring already populated"),
			)
		}
	}
	for i := uint32(0); i < br.entries; i++ {
		br.put(uint16(i), uint16(i))
		br.state[i] = bufferKernel
	}
	br.advance(uint16(br.entries))
	return nil
}

// Acquire takes ownership of the buffer a completion selected and returns
// its filled part.
func (br *BufferRing) Acquire(rec CompletionRecord) ([]byte, uint16, error) {
	if br.closed {
		return nil, 0, ErrClosed
	}
	bid, ok := rec.BufferID()
	if !ok {
		if err := rec.Err(); err != nil {
			return nil, 0, err
		}
		return nil, 0, errors.From(
			ErrConfiguration,
			errors.WithMeta(errMetaPkgKey, errMetaPkgVal),
			errors.WithMeta(errMetaReasonKey, "completion carries no provided buffer"),
		)
	}
	if uint32(bid) >= br.entries || br.state[bid] != bufferKernel {
		return nil, bid, br.ownershipError(bid, "acquire")
	}
	br.state[bid] = bufferCaller
	n := rec.Res
	if n < 0 {
		n = 0
	}
	if uint32(n) > br.entrySize {
		n = int32(br.entrySize)
	}
	return br.Buffer(bid)[:n], bid, nil
}

// Release gives one buffer back to the kernel.
func (br *BufferRing) Release(bid uint16) error {
	return br.Recycle(bid)
}

// Recycle gives buffers back to the kernel with one tail update. Nothing is
// published if any of them is not held by the caller.
func (br *BufferRing) Recycle(bids ...uint16) error {
	if br.closed {
		return ErrClosed
	}
	if len(bids) == 0 {
		return nil
	}
	seen := make(map[uint16]struct{}, len(bids))
	for _, bid := range bids {
		if uint32(bid) >= br.entries || br.state[bid] != bufferCaller {
			return br.ownershipError(bid, "release")
		}
		if _, dup := seen[bid]; dup {
			return br.ownershipError(bid, "release")
		}
		seen[bid] = struct{}{}
	}
	for i, bid := range bids {
		br.put(uint16(i), bid)
		br.state[bid] = bufferKernel
	}
	br.advance(uint16(len(bids)))
	return nil
}

// Close unregisters the group and frees the memory. If unregistering fails
// on a live ring the memory is kept, since the kernel may still write to it.
func (br *BufferRing) Close() error {
	if br.closed {
		return nil
	}
	if !br.ring.closed {
		if _, err := br.ring.UnregisterBufferRing(br.groupID); err != nil {
			return err
		}
	}
	br.closed = true
	err := freePages(br.pool)
	if ringErr := freePages(br.ringMem); err == nil {
		err = ringErr
	}
	br.pool = nil
	br.ringMem = nil
	if err != nil {
		return kernelError("munmap", err)
	}
	return nil
}

// put writes the descriptor offset slots past the published tail.
func (br *BufferRing) put(offset uint16, bid uint16) {
	index := (br.tail + offset) & br.mask
	entry := (*BufferRingEntry)(unsafe.Pointer(&br.ringMem[uintptr(index)*bufferRingEntrySize]))
	entry.Addr = uint64(uintptr(unsafe.Pointer(&br.pool[uint32(bid)*br.entrySize])))
	entry.Len = br.entrySize
	entry.Bid = bid
}

// advance publishes count new descriptors. The 16-bit tail shares a 32-bit
// word with entry 0's bid, so both are stored together.
func (br *BufferRing) advance(count uint16) {
	br.tail += count
	first := (*BufferRingEntry)(unsafe.Pointer(&br.ringMem[0]))
	word := (*uint32)(unsafe.Pointer(&first.Bid))
	atomic.StoreUint32(word, uint32(br.tail)<<16|uint32(first.Bid))
}

func (br *BufferRing) ownershipError(bid uint16, op string) error {
	return errors.From(
		ErrBufferNotCheckedOut,
		errors.WithMeta(errMetaPkgKey, errMetaPkgVal),
		errors.WithMeta(errMetaOpKey, op),
		errors.WithMeta(errMetaReasonKey, "buffer "+strconv.Itoa(int(bid))+" in group "+strconv.Itoa(int(br.groupID))),
	)
}
