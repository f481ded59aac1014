package scheduler

import (
	"context"
	"log"
	"time"
)

// AutoCompleteDelay is how long after the due time an open task is
// automatically marked completed.
const AutoCompleteDelay = 15 * time.Minute

// autoCompleteLabel keys the post-due completion trigger in the registry.
const autoCompleteLabel = "auto-complete"

// deliverTimeout bounds a single trigger's dispatch work (persistence reads,
// channel sends, status write).
const deliverTimeout = 30 * time.Second

// Offset is a named lead time before an entity's due time. The terminal
// offset additionally arms the auto-complete trigger once dispatched.
type Offset struct {
	Label    string
	Lead     time.Duration
	Terminal bool
}

// DefaultOffsets is the reminder ladder applied to every task.
func DefaultOffsets() []Offset {
	return []Offset{
		{Label: "60 minutes before", Lead: 60 * time.Minute},
		{Label: "30 minutes before", Lead: 30 * time.Minute},
		{Label: "15 minutes before", Lead: 15 * time.Minute, Terminal: true},
	}
}

// MaxLead returns the longest lead time in an offset table.
func MaxLead(offsets []Offset) time.Duration {
	var max time.Duration
	for _, off := range offsets {
		if off.Lead > max {
			max = off.Lead
		}
	}
	return max
}

// Engine is the scheduling facade consumed by entity-mutation handlers.
// It owns the trigger registry for its lifetime: created at process start,
// torn down at shutdown by cancelling all handles. Scheduling calls are
// fire-and-forget; they block only on registry bookkeeping, never on
// delivery.
type Engine struct {
	registry   *Registry
	dispatcher *Dispatcher
	offsets    []Offset
	now        func() time.Time
}

func NewEngine(registry *Registry, dispatcher *Dispatcher, offsets []Offset) *Engine {
	e := &Engine{
		registry:   registry,
		dispatcher: dispatcher,
		offsets:    offsets,
		now:        time.Now,
	}
	dispatcher.onTerminal = e.scheduleAutoComplete
	return e
}

// Registry exposes the engine's trigger registry to collaborators that
// register their own triggers (the timetable scheduler).
func (e *Engine) Registry() *Registry {
	return e.registry
}

// ScheduleReminders computes a trigger per configured offset from the
// entity's due time and registers each with the trigger registry. Offsets
// whose fire time is already past are skipped rather than fired
// immediately.
func (e *Engine) ScheduleReminders(entity Entity) {
	now := e.now()
	for _, off := range e.offsets {
		off := off
		fireAt := entity.DueAt.Add(-off.Lead)
		if !fireAt.After(now) {
			continue
		}
		e.registry.Register(entity.Key(), off.Label, fireAt, func() {
			ctx, cancel := context.WithTimeout(context.Background(), deliverTimeout)
			defer cancel()
			if err := e.dispatcher.Deliver(ctx, entity.Kind, entity.ID, off); err != nil {
				log.Printf("Error: delivering %q reminder for %s: %v", off.Label, entity.Key(), err)
			}
		})
	}
	log.Printf("Scheduled reminders for %s due %s", entity.Key(), entity.DueAt.Format(time.RFC3339))
}

// RescheduleReminders drops every trigger keyed to the entity's previous
// due time and schedules fresh ones. Must be called on every mutation that
// changes the due time.
func (e *Engine) RescheduleReminders(entity Entity) {
	e.CancelReminders(entity.Kind, entity.ID)
	e.ScheduleReminders(entity)
}

// CancelReminders cancels all of an entity's triggers, including a pending
// auto-complete. Called on deletion and on completion. A trigger already
// mid-fire runs to completion; the dispatcher's idempotency check bounds
// the damage to at most the in-flight delivery.
func (e *Engine) CancelReminders(kind, id string) {
	e.registry.CancelAll(kind + ":" + id)
}

// scheduleAutoComplete arms the one-shot completion trigger at due time
// plus AutoCompleteDelay. Registered through the registry like any other
// trigger rather than special-cased in the dispatcher.
func (e *Engine) scheduleAutoComplete(entity Entity) {
	e.registry.Register(entity.Key(), autoCompleteLabel, entity.DueAt.Add(AutoCompleteDelay), func() {
		ctx, cancel := context.WithTimeout(context.Background(), deliverTimeout)
		defer cancel()
		if err := e.dispatcher.Complete(ctx, entity.Kind, entity.ID); err != nil {
			log.Printf("Error: auto-completing %s: %v", entity.Key(), err)
		}
	})
}

// Shutdown cancels every live timer handle.
func (e *Engine) Shutdown() {
	e.registry.Shutdown()
}
