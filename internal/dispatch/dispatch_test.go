package dispatch

import (
	"testing"
	"time"

	"ttdb/internal/purge"
	"ttdb/internal/session"
	"ttdb/internal/store"
)

func newDispatcher() *Dispatcher {
	root := store.NewRoot(time.Minute)
	clk := store.NewClock()
	m := session.NewManager(root, clk, nil)
	p := purge.New(m, nil)
	return New(m, p, time.Minute, nil)
}

func TestIndexMaintenanceScenario(t *testing.T) {
	d := newDispatcher()
	id := session.NewID()

	cases := []struct{ cmd, want string }{
		{"SET a 10", "success"},
		{"SET b 10", "success"},
		{"NUMEQUALTO 10", "2"},
		{"SET a 20", "success"},
		{"NUMEQUALTO 10", "1"},
		{"NUMEQUALTO 20", "1"},
		{"UNSET b", "success"},
		{"NUMEQUALTO 10", "0"},
	}
	for _, c := range cases {
		if got := d.Handle(id, c.cmd); got != c.want {
			t.Fatalf("%q = %q, want %q", c.cmd, got, c.want)
		}
	}
}

func TestNestedRollbackScenario(t *testing.T) {
	d := newDispatcher()
	id := session.NewID()

	cases := []struct{ cmd, want string }{
		{"SET a 1", "success"},
		{"BEGIN", "success"},
		{"SET a 2", "success"},
		{"BEGIN", "success"},
		{"SET a 3", "success"},
		{"GET a", "3"},
		{"ROLLBACK", "success"},
		{"GET a", "2"},
		{"ROLLBACK", "success"},
		{"GET a", "1"},
	}
	for _, c := range cases {
		if got := d.Handle(id, c.cmd); got != c.want {
			t.Fatalf("%q = %q, want %q", c.cmd, got, c.want)
		}
	}
}

func TestWriteBarrierScenario(t *testing.T) {
	d := newDispatcher()
	x, y := session.NewID(), session.NewID()

	if got := d.Handle(x, "BEGIN"); got != "success" {
		t.Fatalf("BEGIN = %q", got)
	}
	if got := d.Handle(y, "SET a 9"); got != replySetAbort {
		t.Fatalf("SET from y = %q, want %q", got, replySetAbort)
	}
	if got := d.Handle(y, "GET a"); got != "NULL" {
		t.Fatalf("GET from y = %q, want NULL", got)
	}
}

func TestEarliestWinsCommitScenario(t *testing.T) {
	d := newDispatcher()
	x, y := session.NewID(), session.NewID()

	d.Handle(x, "BEGIN")
	d.Handle(x, "SET a 1")
	d.Handle(y, "BEGIN")
	d.Handle(y, "SET a 2")

	if got := d.Handle(y, "COMMIT"); got != replyCommitAbort {
		t.Fatalf("COMMIT(y) = %q, want %q", got, replyCommitAbort)
	}
	if got := d.Handle(x, "COMMIT"); got != "success" {
		t.Fatalf("COMMIT(x) = %q", got)
	}

	z := session.NewID()
	if got := d.Handle(z, "GET a"); got != "1" {
		t.Fatalf("GET a = %q, want 1", got)
	}
}

func TestCommitWithoutTransactionScenario(t *testing.T) {
	d := newDispatcher()
	id := session.NewID()
	if got := d.Handle(id, "COMMIT"); got != replyNoTransaction {
		t.Fatalf("COMMIT = %q, want %q", got, replyNoTransaction)
	}
}

func TestRollbackWithoutTransactionScenario(t *testing.T) {
	d := newDispatcher()
	id := session.NewID()
	if got := d.Handle(id, "ROLLBACK"); got != replyInvalidRollback {
		t.Fatalf("ROLLBACK = %q, want %q", got, replyInvalidRollback)
	}
}

func TestMalformedCommandDoesNotMutateState(t *testing.T) {
	d := newDispatcher()
	id := session.NewID()

	if got := d.Handle(id, "SET a"); got != replyMalformed {
		t.Fatalf("SET with wrong arity = %q, want %q", got, replyMalformed)
	}
	if got := d.Handle(id, "FROBNICATE"); got != replyMalformed {
		t.Fatalf("unknown verb = %q, want %q", got, replyMalformed)
	}
	if got := d.Handle(id, "GET a"); got != "NULL" {
		t.Fatalf("GET a after malformed commands = %q, want NULL", got)
	}
}

func TestBeginAcceptsRWAndROModesIdentically(t *testing.T) {
	for _, mode := range []string{"RW", "RO", ""} {
		d := newDispatcher()
		id := session.NewID()
		cmd := "BEGIN"
		if mode != "" {
			cmd = "BEGIN " + mode
		}
		if got := d.Handle(id, cmd); got != "success" {
			t.Fatalf("BEGIN %q = %q, want success", mode, got)
		}
		d.Handle(id, "SET a 1")
		if got := d.Handle(id, "COMMIT"); got != "success" {
			t.Fatalf("COMMIT after BEGIN %q = %q", mode, got)
		}
	}
}

func TestResetDropsTransactionsAndClearsState(t *testing.T) {
	d := newDispatcher()
	id := session.NewID()

	d.Handle(id, "SET a 1")
	d.Handle(id, "BEGIN")
	if got := d.Handle(id, "RESET"); got != "success" {
		t.Fatalf("RESET = %q", got)
	}
	if got := d.Handle(id, "COMMIT"); got != replyNoTransaction {
		t.Fatalf("COMMIT after RESET = %q, want %q", got, replyNoTransaction)
	}
	if got := d.Handle(id, "GET a"); got != "NULL" {
		t.Fatalf("GET a after RESET = %q, want NULL", got)
	}
}

func TestDebugReturnsNonEmptyDump(t *testing.T) {
	d := newDispatcher()
	id := session.NewID()
	d.Handle(id, "SET a 1")
	if got := d.Handle(id, "DEBUG"); got == "" {
		t.Fatalf("DEBUG returned empty dump")
	}
}
