// Package session maps each connected client to its own nested transaction
// stack and enforces the earliest-transaction write barrier that keeps
// direct (non-transactional) writes from racing ahead of, or starving,
// whichever transaction has been open the longest.
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"ttdb/internal/store"
	"ttdb/internal/txn"
)

// ID names one accepted connection for the lifetime of the process. It is
// minted once, at accept time, and never reused.
type ID string

// NewID mints a fresh session identifier.
func NewID() ID {
	return ID(uuid.NewString())
}

// Manager owns the root Store, the Clock that mints transaction timestamps,
// and the table of sessions that currently have an open transaction. A
// session absent from the table has none.
type Manager struct {
	mu sync.Mutex

	root *store.Store
	clk  *store.Clock

	open map[ID]*txn.Scope

	log *logrus.Entry
}

// NewManager builds a Manager around root, logging state transitions
// through log (fields are added per call; pass logrus.StandardLogger().WithField(...)
// or similar from the caller to pre-seed any process-wide fields).
func NewManager(root *store.Store, clk *store.Clock, log *logrus.Entry) *Manager {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Manager{
		root: root,
		clk:  clk,
		open: make(map[ID]*txn.Scope),
		log:  log,
	}
}

// Forget drops any open transaction belonging to id, as happens when its
// connection closes without an explicit ROLLBACK or COMMIT.
func (m *Manager) Forget(id ID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.open[id]; ok {
		delete(m.open, id)
		m.log.WithField("session_id", id).Debug("session closed with open transaction; discarding")
	}
}

// Begin opens (or nests into) id's transaction stack and returns its
// current depth-1 timestamp for logging purposes.
func (m *Manager) Begin(id ID) store.Stamp {
	m.mu.Lock()
	defer m.mu.Unlock()

	scope, ok := m.open[id]
	if !ok {
		scope = txn.NewOuter(m.root, m.clk)
		m.open[id] = scope
		m.log.WithFields(logrus.Fields{"session_id": id, "timestamp": scope.Timestamp()}).Debug("BEGIN (outer)")
		return scope.Timestamp()
	}
	scope.Begin()
	m.log.WithFields(logrus.Fields{"session_id": id, "timestamp": scope.Timestamp()}).Debug("BEGIN (nested)")
	return scope.Timestamp()
}

// Get reads key within id's open transaction if one exists, otherwise
// directly against the root Store at a freshly minted timestamp.
func (m *Manager) Get(id ID, key string) store.Value {
	m.mu.Lock()
	scope, ok := m.open[id]
	root := m.root
	m.mu.Unlock()

	if ok {
		return scope.Get(key)
	}
	return root.ReadValue(key, m.clk.Next())
}

// NumEqualTo reads the frequency index within id's open transaction if one
// exists, otherwise directly against the root Store.
func (m *Manager) NumEqualTo(id ID, valueKey string) int64 {
	m.mu.Lock()
	scope, ok := m.open[id]
	root := m.root
	m.mu.Unlock()

	if ok {
		return scope.NumEqualTo(valueKey)
	}
	return root.ReadIndex(valueKey, m.clk.Next())
}

// Set writes key := v. If id has no open transaction, the write is direct
// against the root Store and is refused with ErrAbortWrite while any
// session anywhere has a transaction open — the earliest-transaction write
// barrier: a long-lived transaction must see a stable world, so no
// unguarded write may land behind its back.
func (m *Manager) Set(id ID, key string, v store.Value) error {
	m.mu.Lock()
	scope, ok := m.open[id]
	if !ok {
		if len(m.open) > 0 {
			m.mu.Unlock()
			m.log.WithField("session_id", id).Warn("direct write refused: transaction(s) open")
			return ErrAbortWrite
		}
		root := m.root
		m.mu.Unlock()
		root.WriteValue(key, v, m.clk.Next())
		return nil
	}
	m.mu.Unlock()
	scope.Set(key, v)
	return nil
}

// Unset writes key := absent under the same rules as Set.
func (m *Manager) Unset(id ID, key string) error {
	return m.Set(id, key, store.Absent())
}

// Rollback discards one level of id's transaction stack. It is an error to
// roll back a session with no open transaction.
func (m *Manager) Rollback(id ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	scope, ok := m.open[id]
	if !ok {
		return ErrInvalidRollback
	}
	if scope.Rollback() {
		delete(m.open, id)
	}
	m.log.WithField("session_id", id).Debug("ROLLBACK")
	return nil
}

// Commit collapses id's entire transaction stack into the root Store. Per
// the earliest-transaction write barrier, a commit is only allowed to
// proceed if id's outer timestamp is the minimum among every session's
// outer timestamp currently open — otherwise a later-started transaction
// could commit ahead of one that has been waiting longer, so the commit is
// aborted and id's whole stack is dropped regardless of outcome.
func (m *Manager) Commit(id ID) error {
	m.mu.Lock()
	scope, ok := m.open[id]
	if !ok {
		m.mu.Unlock()
		return ErrNoTransaction
	}

	if !m.isEarliestLocked(id, scope) {
		delete(m.open, id)
		m.mu.Unlock()
		m.log.WithField("session_id", id).Warn("COMMIT aborted: not the earliest open transaction")
		return ErrAbortCommit
	}
	m.mu.Unlock()

	err := scope.Commit()

	m.mu.Lock()
	delete(m.open, id)
	m.mu.Unlock()

	if err != nil {
		m.log.WithField("session_id", id).Warn("COMMIT failed validation; rolled back")
		return ErrCommitConflict
	}
	m.log.WithField("session_id", id).Debug("COMMIT")
	return nil
}

// isEarliestLocked reports whether scope's outer timestamp is <= every
// other open session's outer timestamp. Called with m.mu held.
func (m *Manager) isEarliestLocked(id ID, scope *txn.Scope) bool {
	for other, otherScope := range m.open {
		if other == id {
			continue
		}
		if otherScope.Timestamp() < scope.Timestamp() {
			return false
		}
	}
	return true
}

// Reset replaces the root Store with a fresh empty one and drops every
// session's open transaction, per spec.md §4.C. Only the caller (id) is
// told about it via the "success" reply the dispatcher sends back; every
// other session simply finds its transaction gone on its next command
// (COMMIT reports NoTransaction, ROLLBACK reports InvalidRollback), per
// spec.md §9's resolved open question.
func (m *Manager) Reset(id ID, purgePeriod time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.root = store.NewRoot(purgePeriod)
	m.open = make(map[ID]*txn.Scope)
	m.log.WithField("session_id", id).Debug("RESET")
}

// Root returns the current root Store, re-read under lock so a concurrent
// RESET is always observed — callers (internal/purge, DEBUG) must never
// cache this pointer across a RESET.
func (m *Manager) Root() *store.Store {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.root
}

// Debug renders id's deepest open scope, or the root Store if id has none.
func (m *Manager) Debug(id ID) string {
	m.mu.Lock()
	scope, ok := m.open[id]
	root := m.root
	m.mu.Unlock()

	if ok {
		return scope.Debug()
	}
	return root.Debug()
}

// Now returns the most recently minted timestamp, the logical-clock
// equivalent of wall-clock "now" used by internal/purge when no
// transaction is live to bound the horizon below it.
func (m *Manager) Now() store.Stamp {
	return m.clk.Peek()
}

// EarliestTimestamp returns the minimum outer timestamp among every
// currently open transaction, and whether any exist at all. internal/purge
// uses this as the compaction horizon: history at or before it may still be
// read by a live transaction.
func (m *Manager) EarliestTimestamp() (store.Stamp, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var (
		min   store.Stamp
		found bool
	)
	for _, scope := range m.open {
		if !found || scope.Timestamp() < min {
			min = scope.Timestamp()
			found = true
		}
	}
	return min, found
}
