package store

import "fmt"

// ErrConflict is returned by Merge when the destination's read_stamp on a
// key or index value outpaces the source's latest write to it — someone
// already observed a snapshot this merge would silently rewrite.
var ErrConflict = fmt.Errorf("commit conflict: read_stamp exceeds merged write_stamp")

// InvariantError is panicked when a consistent execution would never reach
// the triggering state: an index count that would go negative. Write stamps
// are not checked; Bucket.insert accepts any stamp it is given. Per the
// engine's error-handling design this is fatal — callers at the process
// boundary must not recover and continue, only log and terminate.
type InvariantError struct {
	Reason string
}

func (e InvariantError) Error() string {
	return "store invariant violated: " + e.Reason
}
