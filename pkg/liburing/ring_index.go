//go:build linux

package liburing

import (
	"math/bits"
	"strconv"
	"sync/atomic"
	"unsafe"
)

// ringIndex is a free-running 32-bit head or tail word shared with the kernel.
// Indices only ever grow and wrap at 2^32; the slot is index & mask.
type ringIndex struct {
	ptr *uint32
}

func newRingIndex(mem []byte, offset uint32) ringIndex {
	return ringIndex{ptr: (*uint32)(unsafe.Pointer(&mem[offset]))}
}

// load reads the word without ordering. Only valid for the side that writes it.
func (i ringIndex) load() uint32 {
	return *i.ptr
}

func (i ringIndex) loadAcquire() uint32 {
	return atomic.LoadUint32(i.ptr)
}

func (i ringIndex) storeRelease(v uint32) {
	atomic.StoreUint32(i.ptr, v)
}

func (i ringIndex) add(delta uint32) uint32 {
	return atomic.AddUint32(i.ptr, delta)
}

// pending is the number of entries between head and tail under wraparound.
func pending(tail, head uint32) uint32 {
	return tail - head
}

func isPow2(n uint32) bool {
	return n != 0 && n&(n-1) == 0
}

// checkPow2 validates a ring capacity before anything is allocated.
func checkPow2(name string, n uint32, max uint32) error {
	if !isPow2(n) {
		return configurationError(name + " must be a power of two, got " + strconv.FormatUint(uint64(n), 10))
	}
	if n > max {
		return configurationError(name + " exceeds " + strconv.FormatUint(uint64(max), 10))
	}
	return nil
}

func RoundupPow2(n uint32) uint32 {
	if n <= 1 {
		return 1
	}
	return 1 << bits.Len32(n-1)
}

func roundUp(n, align int) int {
	return (n + align - 1) &^ (align - 1)
}
