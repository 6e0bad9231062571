// Package purge computes the compaction horizon and drives
// internal/store.Store.Purge from it, either on a cron tick or after every
// command the dispatcher handles.
package purge

import (
	"time"

	"github.com/sirupsen/logrus"

	"ttdb/internal/session"
	"ttdb/internal/store"
)

// Purger ties a session.Manager's view of live transactions to the root
// Store's own rate-limited purge.
type Purger struct {
	manager *session.Manager
	log     *logrus.Entry
}

// New builds a Purger over manager.
func New(manager *session.Manager, log *logrus.Entry) *Purger {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Purger{manager: manager, log: log}
}

// Tick computes horizon := min(timestamp of every live outer scope, now)
// per spec.md §4.D and applies it to the current root Store. Store.Purge is
// itself rate-limited by purge_stamp/purge_period, so calling Tick more
// often than purge_period is harmless.
func (p *Purger) Tick() {
	now := p.manager.Now()
	horizon := now
	if earliest, ok := p.manager.EarliestTimestamp(); ok && earliest < horizon {
		horizon = earliest
	}

	root := p.manager.Root()
	root.Purge(horizon, time.Now())
	p.log.WithField("horizon", horizon).Debug("purge tick")
}
