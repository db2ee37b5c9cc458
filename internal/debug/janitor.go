package debug

import (
	"time"

	"github.com/gorhill/cronexpr"

	"github.com/grl-engine/grlrules/internal/logging"
)

// Janitor periodically expires old in-memory debug sessions on a
// cron-expression schedule, grounded on cron/cron.go's
// cronexpr.Parse/Expression.Next usage: the teacher runs per-location
// cron jobs the same way, computing the next fire time and sleeping
// until it rather than polling on a fixed ticker.
type Janitor struct {
	store  *Store
	expr   *cronexpr.Expression
	ttl    time.Duration
	stopCh chan struct{}
}

// NewJanitor parses schedule (standard cron syntax) and returns a
// Janitor that will expire sessions whose last event is older than
// ttl each time it fires.
func NewJanitor(store *Store, schedule string, ttl time.Duration) (*Janitor, error) {
	expr, err := cronexpr.Parse(schedule)
	if err != nil {
		return nil, err
	}
	return &Janitor{store: store, expr: expr, ttl: ttl, stopCh: make(chan struct{})}, nil
}

// Start runs the sweep loop in a new goroutine until Stop is called.
func (j *Janitor) Start() {
	go j.run()
}

func (j *Janitor) run() {
	for {
		next := j.expr.Next(time.Now().UTC())
		wait := time.Until(next)
		if wait < 0 {
			wait = 0
		}
		timer := time.NewTimer(wait)
		select {
		case <-j.stopCh:
			timer.Stop()
			return
		case <-timer.C:
			removed := j.store.ExpireOlderThan(time.Now().Add(-j.ttl))
			if removed > 0 {
				logging.Log(logging.INFO|logging.DEBUGSTORE, "op", "debug.Janitor.run", "expired", removed)
			}
		}
	}
}

// Stop halts the sweep loop.
func (j *Janitor) Stop() {
	close(j.stopCh)
}
