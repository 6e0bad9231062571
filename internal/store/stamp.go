// Package store implements the per-scope versioned table: a key/value
// history keyed by timestamp, a value-frequency index maintained as a side
// effect of writes, and the validate-then-apply merge that lets a
// transaction scope collapse into its parent.
package store

import "sync/atomic"

// Stamp is a monotonic logical timestamp. Stamps from one Clock are totally
// ordered and never repeat, so ties never need to be broken: the order in
// which Next is called IS the order of the values it returns.
type Stamp uint64

// Clock mints strictly increasing Stamps. The zero Clock is usable; its
// first minted Stamp is 1, keeping the zero Stamp reserved to mean
// "never observed".
type Clock struct {
	counter uint64
}

// NewClock returns a Clock ready to mint Stamps.
func NewClock() *Clock {
	return &Clock{}
}

// Next mints a fresh Stamp, strictly greater than every Stamp minted before
// it by this Clock.
func (c *Clock) Next() Stamp {
	return Stamp(atomic.AddUint64(&c.counter, 1))
}

// Peek returns the most recently minted Stamp without minting a new one —
// the logical-clock equivalent of "now" used when computing a purge
// horizon, which only needs an upper bound newer than every live
// transaction, not a fresh reservation.
func (c *Clock) Peek() Stamp {
	return Stamp(atomic.LoadUint64(&c.counter))
}
