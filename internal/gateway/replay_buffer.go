package gateway

import "sort"

// replayEntry is one envelope kept for resuming clients.
type replayEntry struct {
	Seq  int64
	Data []byte
}

// ReplayBuffer keeps the most recent envelopes of one symbol in a ring.
// Sequence numbers must be pushed in increasing order. It is not safe for
// concurrent use; the hub guards every buffer with its own mutex.
type ReplayBuffer struct {
	entries []replayEntry
	head    int // index of the oldest entry once the ring is full
}

// NewReplayBuffer returns a buffer holding up to capacity envelopes.
func NewReplayBuffer(capacity int) *ReplayBuffer {
	if capacity <= 0 {
		capacity = defaultReplayCap
	}
	return &ReplayBuffer{entries: make([]replayEntry, 0, capacity)}
}

// Push stores a copy of data under seq, evicting the oldest envelope when full.
func (rb *ReplayBuffer) Push(seq int64, data []byte) {
	e := replayEntry{Seq: seq, Data: append([]byte(nil), data...)}
	if len(rb.entries) < cap(rb.entries) {
		rb.entries = append(rb.entries, e)
		return
	}
	rb.entries[rb.head] = e
	rb.head = (rb.head + 1) % len(rb.entries)
}

// Range returns the entries with fromSeq <= seq <= toSeq, oldest first.
func (rb *ReplayBuffer) Range(fromSeq, toSeq int64) []replayEntry {
	n := len(rb.entries)
	at := func(i int) replayEntry { return rb.entries[(rb.head+i)%n] }

	start := sort.Search(n, func(i int) bool { return at(i).Seq >= fromSeq })
	var out []replayEntry
	for i := start; i < n && at(i).Seq <= toSeq; i++ {
		out = append(out, at(i))
	}
	return out
}

// Len returns the number of buffered envelopes.
func (rb *ReplayBuffer) Len() int { return len(rb.entries) }
