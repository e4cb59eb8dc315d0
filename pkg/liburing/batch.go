//go:build linux

package liburing

// CompletionBatch is a window over the completions visible when it was
// created. Indices are relative to the CQ head at creation time and stay
// valid across ring wraparound. Consuming advances the shared head, after
// which the consumed records are gone. Close releases whatever is left and
// is safe to defer.
type CompletionBatch struct {
	ring  *Ring
	head  uint32
	begin uint32
	end   uint32
	// internal timeout records right behind end, released with the last record
	skip uint32
}

// Available is the number of records not yet consumed.
func (batch *CompletionBatch) Available() uint32 {
	if batch == nil {
		return 0
	}
	return batch.end - batch.begin
}

// Begin is the index of the first unconsumed record.
func (batch *CompletionBatch) Begin() uint32 {
	if batch == nil {
		return 0
	}
	return batch.begin
}

// End is one past the index of the last record.
func (batch *CompletionBatch) End() uint32 {
	if batch == nil {
		return 0
	}
	return batch.end
}

// Peek copies record i out of the ring. It reports false for consumed or
// out-of-range indices.
func (batch *CompletionBatch) Peek(i uint32) (CompletionRecord, bool) {
	if batch == nil || batch.ring == nil || i < batch.begin || i >= batch.end {
		return CompletionRecord{}, false
	}
	cqe := batch.ring.cqRing.event(batch.head + i)
	return CompletionRecord{
		UserData: cqe.UserData,
		Res:      cqe.Res,
		Flags:    cqe.Flags,
	}, true
}

// ConsumeOne releases the first unconsumed record.
func (batch *CompletionBatch) ConsumeOne() {
	if batch.Available() == 0 || batch.ring == nil {
		return
	}
	batch.begin++
	n := uint32(1)
	if batch.begin == batch.end {
		n += batch.skip
		batch.skip = 0
	}
	batch.ring.cqAdvance(n)
}

// ConsumeAll releases every unconsumed record with one head update.
func (batch *CompletionBatch) ConsumeAll() {
	if batch.Available() == 0 || batch.ring == nil {
		return
	}
	batch.ring.cqAdvance(batch.end - batch.begin + batch.skip)
	batch.begin = batch.end
	batch.skip = 0
}

func (batch *CompletionBatch) Close() {
	if batch == nil || batch.ring == nil {
		return
	}
	batch.ConsumeAll()
	batch.detach()
}

// detach drops the ring reference. Used when the ring closes underneath.
func (batch *CompletionBatch) detach() {
	ring := batch.ring
	if ring == nil {
		return
	}
	if ring.batch == batch {
		ring.batch = nil
	}
	batch.ring = nil
	batch.begin = batch.end
	batch.skip = 0
}
