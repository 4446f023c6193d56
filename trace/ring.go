package trace

import "sync/atomic"

// ring is the bounded multi-producer-single-consumer buffer of finished
// spans awaiting a reporter flush (spec §4.3, design note §9). Producers
// claim a slot with an atomic increment of a write cursor; if the claimed
// slot would lap the read cursor the buffer is full and the span is
// dropped (spec §4.3 "a full buffer drops the finished span silently").
// Draining happens on the snapshot/reporter thread only, matching design
// note §9's "drain on the snapshot thread only".
type ring struct {
	slots []atomic.Pointer[Finished]
	mask  uint64

	writeCursor atomic.Uint64
	readCursor  atomic.Uint64

	dropped atomic.Int64
}

// newRing constructs a ring with the smallest power-of-two capacity that
// is at least size (size <= 0 defaults to 1).
func newRing(size int) *ring {
	if size <= 0 {
		size = 1
	}
	cap := 1
	for cap < size {
		cap <<= 1
	}
	r := &ring{slots: make([]atomic.Pointer[Finished], cap), mask: uint64(cap - 1)}
	return r
}

// offer attempts to publish f. It drops f and increments the dropped
// counter if the ring is full.
func (r *ring) offer(f Finished) {
	for {
		w := r.writeCursor.Load()
		read := r.readCursor.Load()
		if w-read >= uint64(len(r.slots)) {
			r.dropped.Add(1)
			return
		}
		if r.writeCursor.CompareAndSwap(w, w+1) {
			cp := f
			r.slots[w&r.mask].Store(&cp)
			return
		}
	}
}

// drain removes and returns every span currently published, in FIFO
// publish order. Safe to call concurrently with offer; not safe to call
// concurrently with itself (spec §4.3: drain is idempotent and
// thread-safe against concurrent offer, but the reporter is expected to
// be a single consumer).
func (r *ring) drain() []Finished {
	read := r.readCursor.Load()
	w := r.writeCursor.Load()
	if read >= w {
		return nil
	}
	out := make([]Finished, 0, w-read)
	next := read
	for ; next < w; next++ {
		p := r.slots[next&r.mask].Swap(nil)
		if p == nil {
			// Claimed by a producer that has not stored its span yet; it and
			// every later slot are left for the next drain.
			break
		}
		out = append(out, *p)
	}
	r.readCursor.Store(next)
	return out
}

// droppedCount returns the number of spans dropped due to a full ring.
func (r *ring) droppedCount() int64 { return r.dropped.Load() }
