// Package liburing is a user-space io_uring interface.
//
// A Ring maps the submission queue, its entry array and the completion queue
// shared with the kernel. Callers reserve entries with GetSQE, fill them with
// a Prepare method, tag them with SetData64 and publish them with Submit.
// Completions are read in batches:
//
//	batch, err := ring.WaitBatch(1)
//	if err != nil {
//		return err
//	}
//	defer batch.Close()
//	for i := batch.Begin(); i < batch.End(); i++ {
//		rec, _ := batch.Peek(i)
//		handle(rec.Tag(), rec.Res)
//	}
//
// A BufferRing registers a provided buffer group the kernel picks receive
// buffers from; completions report the chosen buffer id.
package liburing
