package store

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// Store is the per-scope versioned table described by the engine's data
// model: a key/value history, a value/count frequency index, and an
// optional non-owning parent used only for read fall-through and as the
// target of a later Merge. A Store owns its own maps and never reaches
// into its parent's; ownership of the parent itself always belongs
// elsewhere (the process for the root Store, the enclosing transaction
// scope for every other one).
type Store struct {
	mu sync.Mutex

	table map[string]*Bucket[Value]
	index map[string]*Bucket[int64]

	parent    *Store
	autopurge bool

	purgeStamp  time.Time
	purgePeriod time.Duration
}

// NewRoot creates the process-wide root Store. The root never autopurges
// on insert — its full history is the one the purger (internal/purge)
// compacts on a schedule.
func NewRoot(purgePeriod time.Duration) *Store {
	return &Store{
		table:       make(map[string]*Bucket[Value]),
		index:       make(map[string]*Bucket[int64]),
		autopurge:   false,
		purgeStamp:  time.Now(),
		purgePeriod: purgePeriod,
	}
}

// NewChild creates a Store for a transaction scope nested under parent.
// Every non-root Store autopurges: a scope only ever needs its own latest
// write at or before its fixed timestamp.
func NewChild(parent *Store) *Store {
	return &Store{
		table:       make(map[string]*Bucket[Value]),
		index:       make(map[string]*Bucket[int64]),
		parent:      parent,
		autopurge:   true,
		purgeStamp:  time.Now(),
		purgePeriod: parent.purgePeriod,
	}
}

// ReadValue returns the value visible for key as of t: the latest local
// write at or before t, falling through to the parent (if any) on local
// miss. Observing key — hit or miss — bumps this Store's read_stamp for
// key, provided key has a bucket here at all.
func (s *Store) ReadValue(key string, t Stamp) Value {
	s.mu.Lock()
	b, ok := s.table[key]
	var v Value
	var hit bool
	if ok {
		v, hit = b.read(t)
	}
	s.mu.Unlock()

	if hit {
		return v
	}
	if s.parent != nil {
		return s.parent.ReadValue(key, t)
	}
	return Absent()
}

// ReadIndex returns the number of keys holding valueKey as of t, defaulting
// to 0 on a total miss (root with no such bucket).
func (s *Store) ReadIndex(valueKey string, t Stamp) int64 {
	s.mu.Lock()
	b, ok := s.index[valueKey]
	var c int64
	var hit bool
	if ok {
		c, hit = b.read(t)
	}
	s.mu.Unlock()

	if hit {
		return c
	}
	if s.parent != nil {
		return s.parent.ReadIndex(valueKey, t)
	}
	return 0
}

// WriteValue writes v to key at stamp t and maintains the frequency index:
// the prior value (read through the same fall-through chain as ReadValue,
// so a scope that never touched key locally still adjusts the right
// counts) is decremented and v is incremented, skipping either side that is
// absent or unchanged.
func (s *Store) WriteValue(key string, v Value, t Stamp) {
	old := s.ReadValue(key, t)

	s.mu.Lock()
	s.insertTableLocked(key, v, t)
	s.mu.Unlock()

	if old.Equal(v) {
		return
	}
	if !old.IsAbsent() {
		s.adjustIndex(string(old.Bytes()), -1, t)
	}
	if !v.IsAbsent() {
		s.adjustIndex(string(v.Bytes()), 1, t)
	}
}

// adjustIndex reads the current count for valueKey, applies delta, and
// writes the result back. A count driven negative means a write_value call
// somewhere decremented a value that was never correspondingly
// incremented — a broken invariant, not a recoverable error.
func (s *Store) adjustIndex(valueKey string, delta int64, t Stamp) {
	cur := s.ReadIndex(valueKey, t)
	next := cur + delta
	if next < 0 {
		panic(InvariantError{Reason: fmt.Sprintf("index count for %q would go negative", valueKey)})
	}
	s.mu.Lock()
	s.insertIndexLocked(valueKey, next, t)
	s.mu.Unlock()
}

func (s *Store) insertTableLocked(key string, v Value, t Stamp) {
	b, ok := s.table[key]
	if !ok {
		s.table[key] = newBucket(v, t)
		return
	}
	b.insert(v, t, s.autopurge)
}

func (s *Store) insertIndexLocked(valueKey string, count int64, t Stamp) {
	b, ok := s.index[valueKey]
	if !ok {
		s.index[valueKey] = newBucket(count, t)
		return
	}
	b.insert(count, t, s.autopurge)
}

// Merge validates and applies src's full history into dst: dst is the
// parent Store the committing scope was opened against, and
// src is the committing scope's own Store. Both the table and the index
// must pass validation before anything is applied — a partial merge would
// leave dst in a state no reader ever actually observed.
func (dst *Store) Merge(src *Store) error {
	dst.mu.Lock()
	defer dst.mu.Unlock()
	src.mu.Lock()
	defer src.mu.Unlock()

	for k, b := range src.table {
		if db, ok := dst.table[k]; ok && db.readStamp > b.latestWriteStamp() {
			return ErrConflict
		}
	}
	for k, b := range src.index {
		if db, ok := dst.index[k]; ok && db.readStamp > b.latestWriteStamp() {
			return ErrConflict
		}
	}

	for k, b := range src.table {
		for _, e := range b.entries {
			dst.insertTableLocked(k, e.value, e.stamp)
		}
	}
	for k, b := range src.index {
		for _, e := range b.entries {
			dst.insertIndexLocked(k, e.value, e.stamp)
		}
	}
	return nil
}

// Purge compacts history that no live read can still need. A key whose only
// entry is absent, and an index value whose only count is <= 0, is removed
// outright; a single live entry is kept as is; any other bucket keeps only
// its entries newer than horizon, or its latest entry if none are newer.
// Rate limited to at most once per purgePeriod.
func (s *Store) Purge(horizon Stamp, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if now.Sub(s.purgeStamp) < s.purgePeriod {
		return
	}

	for key, b := range s.table {
		switch {
		case b.len() == 1 && !b.entries[0].value.IsAbsent():
			continue
		case b.len() == 1:
			delete(s.table, key)
		default:
			b.entries = retain(b.entries, horizon)
		}
	}

	for key, b := range s.index {
		switch {
		case b.len() == 1 && b.entries[0].value > 0:
			continue
		case b.len() == 1:
			delete(s.index, key)
		default:
			b.entries = retain(b.entries, horizon)
		}
	}

	s.purgeStamp = now
}

// Debug renders the table and index contents for the DEBUG command — an
// implementation-defined dump, per spec.md §6/§4.C.
func (s *Store) Debug() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var b strings.Builder
	b.WriteString("TABLE\n")
	for _, k := range sortedKeys(s.table) {
		bucket := s.table[k]
		fmt.Fprintf(&b, "  %s: %v\n", k, bucket.entries)
	}
	b.WriteString("INDEX\n")
	for _, k := range sortedKeys(s.index) {
		bucket := s.index[k]
		fmt.Fprintf(&b, "  %s: %v\n", k, bucket.entries)
	}
	return b.String()
}

func sortedKeys[T any](m map[string]*Bucket[T]) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// retain keeps every entry strictly newer than horizon, or — if none
// survive — the single most recent entry, so the bucket never goes empty.
func retain[T any](entries []entry[T], horizon Stamp) []entry[T] {
	kept := make([]entry[T], 0, len(entries))
	for _, e := range entries {
		if e.stamp > horizon {
			kept = append(kept, e)
		}
	}
	if len(kept) == 0 {
		kept = append(kept, entries[len(entries)-1])
	}
	return kept
}
