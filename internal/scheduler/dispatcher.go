package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"taskping/internal/models"
)

// LogAlerter is the default operational-alerts sink.
type LogAlerter struct{}

func (LogAlerter) Alertf(format string, args ...any) {
	log.Printf("ALERT: "+format, args...)
}

// Dispatcher turns a fired trigger into a notification record and channel
// deliveries. Every path that fires a trigger (in-process timers, the
// reconciliation sweep, timetable class triggers) converges here, so the
// sent-notification check makes duplicate fires harmless.
type Dispatcher struct {
	entities      EntityStore
	notifications NotificationStore
	recipients    RecipientResolver
	channels      []Channel
	alerts        Alerter
	now           func() time.Time

	// onTerminal is invoked after the terminal offset for an entity has
	// been dispatched; the engine binds it to auto-complete scheduling.
	onTerminal func(Entity)
}

// NewDispatcher wires the dispatcher to its persistence and delivery
// collaborators.
func NewDispatcher(entities EntityStore, notifications NotificationStore, recipients RecipientResolver, channels []Channel) *Dispatcher {
	return &Dispatcher{
		entities:      entities,
		notifications: notifications,
		recipients:    recipients,
		channels:      channels,
		alerts:        LogAlerter{},
		now:           time.Now,
	}
}

// SetAlerter replaces the default log-based alert sink.
func (d *Dispatcher) SetAlerter(a Alerter) {
	if a != nil {
		d.alerts = a
	}
}

// Deliver handles a task reminder trigger end to end: reload the entity,
// skip if it vanished or was completed, then dispatch through the shared
// idempotent path. After the terminal offset it hands the entity to the
// engine for auto-complete scheduling.
func (d *Dispatcher) Deliver(ctx context.Context, kind, id string, off Offset) error {
	entity, ok, err := d.reload(ctx, kind, id)
	if err != nil || !ok {
		return err
	}

	if err := d.dispatch(ctx, entity, off.Label, taskReminderMessage(entity, off)); err != nil {
		return err
	}

	if off.Terminal && d.onTerminal != nil {
		d.onTerminal(entity)
	}
	return nil
}

// DeliverPrepared dispatches a prerendered message for a trigger, applying
// the same reload and idempotency guards as Deliver. Used for timetable
// class reminders, whose messages are built from schedule data the entity
// store does not carry.
func (d *Dispatcher) DeliverPrepared(ctx context.Context, kind, id, offsetLabel string, msg Message) error {
	entity, ok, err := d.reload(ctx, kind, id)
	if err != nil || !ok {
		return err
	}
	return d.dispatch(ctx, entity, offsetLabel, msg)
}

// Complete marks an entity completed if it is still open. Fired from the
// auto-complete trigger and backstopped by the reconciliation sweep; both
// no-op when the user already completed or deleted the entity.
func (d *Dispatcher) Complete(ctx context.Context, kind, id string) error {
	entity, ok, err := d.reload(ctx, kind, id)
	if err != nil || !ok {
		return err
	}

	transitioned, err := d.entities.MarkCompleted(ctx, kind, id)
	if err != nil {
		return fmt.Errorf("marking %s %s completed: %w", kind, id, err)
	}
	if !transitioned {
		// another completion path got there first; its notice suffices
		return nil
	}
	log.Printf("Task %s marked as completed %s after due date", id, AutoCompleteDelay)

	rcpt, err := d.recipients.Resolve(ctx, entity.UserID)
	if err != nil {
		return fmt.Errorf("resolving recipient for auto-complete notice: %w", err)
	}
	msg := taskCompletedMessage(entity)
	for _, ch := range d.channels {
		if err := ch.Send(ctx, rcpt, msg); err != nil && !errors.Is(err, ErrNoRecipient) {
			log.Printf("Error: %s channel failed for completion notice of %s %s: %v", ch.Name(), kind, id, err)
		}
	}
	return nil
}

// reload fetches current entity state. ok is false when the trigger should
// silently no-op (entity deleted or already completed).
func (d *Dispatcher) reload(ctx context.Context, kind, id string) (Entity, bool, error) {
	entity, err := d.entities.GetEntity(ctx, kind, id)
	if errors.Is(err, ErrEntityGone) {
		return Entity{}, false, nil
	}
	if err != nil {
		return Entity{}, false, fmt.Errorf("reloading %s %s: %w", kind, id, err)
	}
	if entity.Completed {
		return Entity{}, false, nil
	}
	return entity, true, nil
}

// dispatch is the single idempotent delivery path: check for a prior SENT
// record, write a PENDING row, resolve the recipient, fan out to every
// channel in parallel, then settle the row. Any one channel succeeding
// settles the notification as SENT.
func (d *Dispatcher) dispatch(ctx context.Context, entity Entity, offsetLabel string, msg Message) error {
	alreadySent, err := d.notifications.HasSentNotification(ctx, entity.Kind, entity.ID, offsetLabel)
	if err != nil {
		return fmt.Errorf("checking sent notifications for %s: %w", entity.Key(), err)
	}
	if alreadySent {
		return nil
	}

	notif := &models.Notification{
		UserID:      entity.UserID,
		SourceKind:  entity.Kind,
		SourceID:    entity.ID,
		OffsetLabel: offsetLabel,
		Title:       msg.Title,
		Body:        msg.Body,
		Status:      models.NotificationPending,
		CreatedAt:   d.now(),
	}
	if err := d.notifications.CreateNotification(ctx, notif); err != nil {
		return fmt.Errorf("creating notification for %s: %w", entity.Key(), err)
	}

	rcpt, err := d.recipients.Resolve(ctx, entity.UserID)
	if err != nil {
		return fmt.Errorf("resolving recipient %s: %w", entity.UserID, err)
	}

	if d.fanOut(ctx, rcpt, msg) {
		sentAt := d.now()
		if err := d.notifications.UpdateNotificationStatus(ctx, notif.ID, models.NotificationSent, &sentAt); err != nil {
			return fmt.Errorf("settling notification %d as sent: %w", notif.ID, err)
		}
		log.Printf("Sent %q reminder for %s", offsetLabel, entity.Key())
		return nil
	}

	if err := d.notifications.UpdateNotificationStatus(ctx, notif.ID, models.NotificationFailed, nil); err != nil {
		return fmt.Errorf("settling notification %d as failed: %w", notif.ID, err)
	}
	d.alerts.Alertf("all channels failed for %q reminder of %s (user %s)", offsetLabel, entity.Key(), entity.UserID)
	return nil
}

// fanOut invokes every channel in parallel and reports whether at least one
// delivered. A channel with no target for this recipient is skipped.
func (d *Dispatcher) fanOut(ctx context.Context, rcpt Recipient, msg Message) bool {
	var wg sync.WaitGroup
	var mu sync.Mutex
	delivered := false

	for _, ch := range d.channels {
		wg.Add(1)
		go func(ch Channel) {
			defer wg.Done()
			if err := ch.Send(ctx, rcpt, msg); err != nil {
				if !errors.Is(err, ErrNoRecipient) {
					log.Printf("Error: %s channel delivery failed: %v", ch.Name(), err)
				}
				return
			}
			mu.Lock()
			delivered = true
			mu.Unlock()
		}(ch)
	}

	wg.Wait()
	return delivered
}

func taskReminderMessage(entity Entity, off Offset) Message {
	return Message{
		Template: "task-reminder",
		Title:    fmt.Sprintf("Task Reminder: %s", off.Label),
		Body:     fmt.Sprintf("Don't forget: %s", entity.Label),
		Data: map[string]string{
			"task_name": entity.Label,
			"time_left": off.Label,
		},
	}
}

func taskCompletedMessage(entity Entity) Message {
	return Message{
		Template: "task-completed",
		Title:    fmt.Sprintf("Task Completed: %s", entity.Label),
		Body:     fmt.Sprintf("The task %q has been marked as completed.", entity.Label),
		Data: map[string]string{
			"task_name": entity.Label,
		},
	}
}
