// Package dispatch parses wire-level command tokens and routes them into
// internal/session, formatting each reply exactly as spec.md §6 requires.
// One Dispatcher instance is shared by the whole server: it owns the single
// critical section spec.md §5 demands — every command from every connection
// passes through the same mutex, one at a time.
package dispatch

import (
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"ttdb/internal/purge"
	"ttdb/internal/session"
	"ttdb/internal/store"
	"ttdb/internal/wire"
)

// Reply strings, verbatim from spec.md §6.
const (
	replySuccess         = "success"
	replyNull            = "NULL"
	replySetAbort        = "Conflicting lock. Aborting write."
	replyUnsetAbort      = "Aborting write."
	replyCommitAbort     = "Conflicting lock. Aborting transaction."
	replyCommitFailed    = "Commit failed. Rolling back."
	replyNoTransaction   = "No transaction to commit."
	replyInvalidRollback = "INVALID ROLLBACK"
	replyMalformed       = "ERROR malformed command"
)

// Dispatcher routes one textual command at a time into the session manager.
type Dispatcher struct {
	mu sync.Mutex

	manager     *session.Manager
	purger      *purge.Purger
	purgePeriod time.Duration
	log         *logrus.Entry
}

// New builds a Dispatcher. purgePeriod is threaded through to every RESET
// so the rebuilt root Store keeps the configured compaction cadence.
func New(manager *session.Manager, purger *purge.Purger, purgePeriod time.Duration, log *logrus.Entry) *Dispatcher {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Dispatcher{manager: manager, purger: purger, purgePeriod: purgePeriod, log: log}
}

// Forget drops id's open transaction, called when its connection closes.
func (d *Dispatcher) Forget(id session.ID) {
	d.manager.Forget(id)
}

// Handle parses and executes one command, returning its single reply. A
// store.InvariantError escaping from any engine operation is fatal: it
// means a supposedly-impossible state was reached (a negative index count),
// and spec.md §7 requires terminating the process
// rather than continuing with corrupt state.
func (d *Dispatcher) Handle(id session.ID, command string) (reply string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			if inv, ok := r.(store.InvariantError); ok {
				d.log.WithFields(logrus.Fields{"session_id": id, "reason": inv.Reason}).Fatal("invariant violated; terminating")
			}
			panic(r)
		}
	}()

	tokens := wire.Tokens(command)
	if len(tokens) == 0 {
		return ""
	}

	reply = d.dispatch(id, tokens)
	d.purger.Tick()
	return reply
}

func (d *Dispatcher) dispatch(id session.ID, tokens []string) string {
	verb := tokens[0]
	args := tokens[1:]

	switch verb {
	case "SET":
		if len(args) != 2 {
			return replyMalformed
		}
		if err := d.manager.Set(id, args[0], store.NewValue([]byte(args[1]))); err != nil {
			return replySetAbort
		}
		return replySuccess

	case "UNSET":
		if len(args) != 1 {
			return replyMalformed
		}
		if err := d.manager.Unset(id, args[0]); err != nil {
			return replyUnsetAbort
		}
		return replySuccess

	case "GET":
		if len(args) != 1 {
			return replyMalformed
		}
		v := d.manager.Get(id, args[0])
		if v.IsAbsent() {
			return replyNull
		}
		return string(v.Bytes())

	case "NUMEQUALTO":
		if len(args) != 1 {
			return replyMalformed
		}
		return fmt.Sprintf("%d", d.manager.NumEqualTo(id, args[0]))

	case "BEGIN":
		if len(args) > 1 {
			return replyMalformed
		}
		// args[0], if present, is RW/RO — accepted and ignored (spec.md §9).
		d.manager.Begin(id)
		return replySuccess

	case "COMMIT":
		if len(args) != 0 {
			return replyMalformed
		}
		switch err := d.manager.Commit(id); err {
		case nil:
			return replySuccess
		case session.ErrAbortCommit:
			return replyCommitAbort
		case session.ErrCommitConflict:
			return replyCommitFailed
		case session.ErrNoTransaction:
			return replyNoTransaction
		default:
			return replyMalformed
		}

	case "ROLLBACK":
		if len(args) != 0 {
			return replyMalformed
		}
		if err := d.manager.Rollback(id); err != nil {
			return replyInvalidRollback
		}
		return replySuccess

	case "RESET":
		if len(args) != 0 {
			return replyMalformed
		}
		d.manager.Reset(id, d.purgePeriod)
		return replySuccess

	case "DEBUG":
		if len(args) != 0 {
			return replyMalformed
		}
		return d.manager.Debug(id)

	default:
		return replyMalformed
	}
}
