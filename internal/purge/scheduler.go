package purge

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Scheduler drives a Purger's Tick on a fixed period, in addition to
// the per-command ticks the dispatcher issues itself — both routes
// converge on the same rate-limited Store.Purge, so firing twice is
// harmless (spec.md §4.D).
type Scheduler struct {
	cron *cron.Cron
	log  *logrus.Entry
}

// NewScheduler builds a Scheduler that calls p.Tick every period, expressed
// to the underlying cron engine as "@every <period>".
func NewScheduler(p *Purger, period time.Duration, log *logrus.Entry) (*Scheduler, error) {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	c := cron.New()
	spec := fmt.Sprintf("@every %s", period.String())
	if _, err := c.AddFunc(spec, p.Tick); err != nil {
		return nil, fmt.Errorf("purge: schedule %q: %w", spec, err)
	}
	return &Scheduler{cron: c, log: log}, nil
}

// Start begins running the scheduled ticks in the background.
func (s *Scheduler) Start() {
	s.log.Debug("purge scheduler started")
	s.cron.Start()
}

// Stop blocks until any in-flight tick finishes, then stops scheduling
// further ones.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.log.Debug("purge scheduler stopped")
}
