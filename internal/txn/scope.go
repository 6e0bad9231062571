// Package txn implements the nested transaction stack built on top of
// internal/store: a Scope wraps one Store with a parent pointer, supports a
// single nested child, and collapses a whole nested stack into the root
// atomically on commit.
package txn

import "ttdb/internal/store"

// Scope is one level of transaction nesting. The outermost Scope in a
// session's stack is built with parent set to the root Store; every
// subsequent BEGIN nests a child Scope below the deepest one, sharing the
// same timestamp.
type Scope struct {
	store     *store.Store
	parent    *store.Store
	timestamp store.Stamp
	child     *Scope
}

// NewOuter opens an outermost scope against parent, minting a fresh
// timestamp from clk. All reads and writes in this scope and its
// descendants are pinned to that single timestamp, so the whole nest reads
// as one instantaneous snapshot regardless of how long it stays open.
func NewOuter(parent *store.Store, clk *store.Clock) *Scope {
	return newScope(parent, clk.Next())
}

func newScope(parent *store.Store, ts store.Stamp) *Scope {
	return &Scope{
		store:     store.NewChild(parent),
		parent:    parent,
		timestamp: ts,
	}
}

// Timestamp returns the scope's (and its whole nest's) fixed timestamp.
func (s *Scope) Timestamp() store.Stamp {
	return s.timestamp
}

// Begin opens a new nested scope. If this scope already has a child, the
// BEGIN is delegated to it so nesting always happens at the deepest level.
func (s *Scope) Begin() {
	if s.child != nil {
		s.child.Begin()
		return
	}
	s.child = newScope(s.store, s.timestamp)
}

// Get reads key as of this nest's timestamp, delegating to the deepest
// child scope if one is open.
func (s *Scope) Get(key string) store.Value {
	if s.child != nil {
		return s.child.Get(key)
	}
	return s.store.ReadValue(key, s.timestamp)
}

// NumEqualTo reads the frequency index for valueKey, delegating to the
// deepest child scope if one is open.
func (s *Scope) NumEqualTo(valueKey string) int64 {
	if s.child != nil {
		return s.child.NumEqualTo(valueKey)
	}
	return s.store.ReadIndex(valueKey, s.timestamp)
}

// Set writes key := v at this nest's timestamp, delegating to the deepest
// child scope if one is open.
func (s *Scope) Set(key string, v store.Value) {
	if s.child != nil {
		s.child.Set(key, v)
		return
	}
	s.store.WriteValue(key, v, s.timestamp)
}

// Unset writes key := absent at this nest's timestamp, delegating to the
// deepest child scope if one is open.
func (s *Scope) Unset(key string) {
	s.Set(key, store.Absent())
}

// Rollback discards one level of nesting. If a child scope exists, the
// rollback is delegated to it and, once the child itself terminates, its
// pointer is cleared; Rollback always reports that s itself survives in
// that case. If s has no child, s has nothing left to discard and reports
// terminated — the caller must drop s entirely.
func (s *Scope) Rollback() (terminated bool) {
	if s.child == nil {
		return true
	}
	if s.child.Rollback() {
		s.child = nil
	}
	return false
}

// Debug renders the deepest open scope's Store, matching the original's
// behavior of always reporting the innermost transaction's view.
func (s *Scope) Debug() string {
	if s.child != nil {
		return s.child.Debug()
	}
	return s.store.Debug()
}

// Commit recursively commits the child scope (if any) first; a child
// conflict propagates immediately without touching this scope's own
// parent. Once the child (if any) has merged cleanly into this scope's
// Store, this scope's Store merges into its own parent — so a whole nested
// stack collapses into the root atomically on success.
func (s *Scope) Commit() error {
	if s.child != nil {
		if err := s.child.Commit(); err != nil {
			return err
		}
		s.child = nil
	}
	return s.parent.Merge(s.store)
}
