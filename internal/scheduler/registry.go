package scheduler

import (
	"log"
	"strings"
	"sync"
	"time"
)

// Registry tracks the active one-shot timer for every scheduled trigger.
// Keys are (entity key, offset label) pairs; registering an already-present
// key cancels the old timer first, so at most one dormant timer exists per
// trigger. Handles live only in process memory; the reconciliation sweep is
// the durability backstop for anything lost with the process.
type Registry struct {
	mu      sync.Mutex
	timers  map[string]*handle
	lastGen uint64
	now     func() time.Time
}

// handle pairs a timer with the registration generation that created it, so
// a firing callback can tell whether the map entry is still its own.
type handle struct {
	timer *time.Timer
	gen   uint64
}

func NewRegistry() *Registry {
	return &Registry{
		timers: make(map[string]*handle),
		now:    time.Now,
	}
}

func registryKey(entityKey, offsetLabel string) string {
	return entityKey + "|" + offsetLabel
}

// Register schedules fn to run once at fireAt, replacing any existing timer
// for the same trigger. If the old timer has already begun executing its
// callback, the stop is a no-op and the callback runs to completion; the
// dispatcher's idempotency check absorbs the duplicate fire.
func (r *Registry) Register(entityKey, offsetLabel string, fireAt time.Time, fn func()) {
	k := registryKey(entityKey, offsetLabel)

	r.mu.Lock()
	defer r.mu.Unlock()

	if old, ok := r.timers[k]; ok {
		old.timer.Stop()
	}

	// The callback identifies its registration by generation, never by the
	// timer handle: a past fireAt makes AfterFunc run the callback at once,
	// before the handle is even assigned. removeIf blocks on r.mu until
	// this registration is recorded below.
	r.lastGen++
	gen := r.lastGen
	timer := time.AfterFunc(fireAt.Sub(r.now()), func() {
		r.removeIf(k, gen)
		fn()
	})
	r.timers[k] = &handle{timer: timer, gen: gen}
}

// removeIf drops the map entry for k only if it still belongs to generation
// gen, so a firing timer never evicts a replacement registered concurrently.
func (r *Registry) removeIf(k string, gen uint64) {
	r.mu.Lock()
	if cur, ok := r.timers[k]; ok && cur.gen == gen {
		delete(r.timers, k)
	}
	r.mu.Unlock()
}

// Cancel stops and removes the timer for a single trigger.
func (r *Registry) Cancel(entityKey, offsetLabel string) {
	k := registryKey(entityKey, offsetLabel)

	r.mu.Lock()
	defer r.mu.Unlock()

	if h, ok := r.timers[k]; ok {
		h.timer.Stop()
		delete(r.timers, k)
	}
}

// CancelAll stops and removes every trigger belonging to an entity.
func (r *Registry) CancelAll(entityKey string) {
	prefix := entityKey + "|"

	r.mu.Lock()
	defer r.mu.Unlock()

	for k, h := range r.timers {
		if strings.HasPrefix(k, prefix) {
			h.timer.Stop()
			delete(r.timers, k)
		}
	}
}

// Active reports whether a trigger currently has a dormant timer.
func (r *Registry) Active(entityKey, offsetLabel string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.timers[registryKey(entityKey, offsetLabel)]
	return ok
}

// Len returns the number of active handles.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.timers)
}

// Shutdown cancels every active handle. Called once at process teardown.
func (r *Registry) Shutdown() {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := len(r.timers)
	for k, h := range r.timers {
		h.timer.Stop()
		delete(r.timers, k)
	}
	if n > 0 {
		log.Printf("Cancelled %d active reminder timers on shutdown", n)
	}
}
