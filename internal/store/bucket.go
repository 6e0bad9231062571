package store

import "sort"

// entry is one (value, write_stamp) pair in a bucket's history.
type entry[T any] struct {
	value T
	stamp Stamp
}

// Bucket is the versioned history for a single key (or a single index
// value): an ascending-by-stamp run of writes, plus the latest stamp at
// which any read observed this bucket. T is instantiated as Value for the
// key table and int64 for the frequency index.
type Bucket[T any] struct {
	entries   []entry[T]
	readStamp Stamp
}

// newBucket creates a bucket holding a single initial entry, with
// read_stamp set to that entry's stamp.
func newBucket[T any](value T, stamp Stamp) *Bucket[T] {
	return &Bucket[T]{
		entries:   []entry[T]{{value: value, stamp: stamp}},
		readStamp: stamp,
	}
}

// read returns the entry with the largest write_stamp <= t, or the zero
// value and false if every entry postdates t. Calling read always bumps
// read_stamp to max(read_stamp, t) — the bucket exists, so the observation
// is recorded whether or not it hits.
func (b *Bucket[T]) read(t Stamp) (T, bool) {
	if t > b.readStamp {
		b.readStamp = t
	}
	// First index whose stamp exceeds t; the answer, if any, sits just before it.
	i := sort.Search(len(b.entries), func(i int) bool { return b.entries[i].stamp > t })
	if i == 0 {
		var zero T
		return zero, false
	}
	return b.entries[i-1].value, true
}

// insert places (value, t) at the position that keeps entries ascending by
// stamp. When autopurge is set, every entry strictly older than the
// insertion point is dropped in the same step: a transactional scope only
// ever needs its own latest write at or before its timestamp.
func (b *Bucket[T]) insert(value T, t Stamp, autopurge bool) {
	i := sort.Search(len(b.entries), func(i int) bool { return b.entries[i].stamp > t })
	newEntry := entry[T]{value: value, stamp: t}
	if autopurge {
		kept := make([]entry[T], 0, len(b.entries)-i+1)
		kept = append(kept, newEntry)
		kept = append(kept, b.entries[i:]...)
		b.entries = kept
	} else {
		merged := make([]entry[T], 0, len(b.entries)+1)
		merged = append(merged, b.entries[:i]...)
		merged = append(merged, newEntry)
		merged = append(merged, b.entries[i:]...)
		b.entries = merged
	}
	if t > b.readStamp {
		b.readStamp = t
	}
}

// latestWriteStamp returns the stamp of the most recent entry. Callers must
// not invoke this on an empty bucket.
func (b *Bucket[T]) latestWriteStamp() Stamp {
	return b.entries[len(b.entries)-1].stamp
}

// len reports the number of surviving versions.
func (b *Bucket[T]) len() int {
	return len(b.entries)
}
