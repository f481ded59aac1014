package scheduler

import (
	"context"
	"log"
	"time"

	"github.com/robfig/cron/v3"
)

// defaultLookback bounds how far behind the sweep replays missed triggers,
// so a long outage is recovered without spamming ancient tasks on boot.
const defaultLookback = 24 * time.Hour

// Sweep is the durability backstop for the in-memory trigger registry. It
// polls persisted tasks once a minute and re-dispatches any elapsed trigger
// that has no SENT notification, bypassing the registry entirely. This is
// the path that survives process restarts. Sweep fires and timer fires race
// safely: both converge on the dispatcher's idempotency check.
type Sweep struct {
	entities   EntityStore
	dispatcher *Dispatcher
	offsets    []Offset
	lookback   time.Duration
	now        func() time.Time
	cron       *cron.Cron
}

func NewSweep(entities EntityStore, dispatcher *Dispatcher, offsets []Offset) *Sweep {
	return &Sweep{
		entities:   entities,
		dispatcher: dispatcher,
		offsets:    offsets,
		lookback:   defaultLookback,
		now:        time.Now,
	}
}

// Start schedules the minute-grained reconciliation job.
func (s *Sweep) Start() error {
	s.cron = cron.New()
	if _, err := s.cron.AddFunc("* * * * *", s.Run); err != nil {
		return err
	}
	s.cron.Start()
	log.Println("Reconciliation sweep started (every minute)")
	return nil
}

// Stop halts the periodic job. A pass already running completes.
func (s *Sweep) Stop() {
	if s.cron != nil {
		s.cron.Stop()
	}
}

// Run performs one reconciliation pass. Exported so startup catch-up and
// tests can invoke a pass directly.
func (s *Sweep) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	now := s.now()
	entities, err := s.entities.QueryDueBetween(ctx, now.Add(-s.lookback), now.Add(MaxLead(s.offsets)))
	if err != nil {
		log.Printf("Error: sweep query failed: %v", err)
		return
	}

	for _, entity := range entities {
		for _, off := range s.offsets {
			if entity.DueAt.Add(-off.Lead).After(now) {
				continue
			}
			if err := s.dispatcher.Deliver(ctx, entity.Kind, entity.ID, off); err != nil {
				log.Printf("Error: sweep dispatch of %q for %s: %v", off.Label, entity.Key(), err)
			}
		}

		// Backstop for the auto-complete trigger lost on restart.
		if now.Sub(entity.DueAt) >= AutoCompleteDelay {
			if err := s.dispatcher.Complete(ctx, entity.Kind, entity.ID); err != nil {
				log.Printf("Error: sweep auto-complete of %s: %v", entity.Key(), err)
			}
		}
	}
}
