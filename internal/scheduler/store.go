package scheduler

import (
	"context"
	"errors"
	"time"

	"taskping/internal/models"
)

// ErrEntityGone is returned by EntityStore.GetEntity when the entity has
// been deleted. Triggers that fire for a vanished entity are a silent no-op.
var ErrEntityGone = errors.New("entity no longer exists")

// ErrNoRecipient is returned by a Channel when the recipient has no target
// for it (no push subscriptions, no email address). It counts as neither a
// success nor a delivery failure.
var ErrNoRecipient = errors.New("no recipient target for channel")

// Entity is the scheduler's view of a thing reminders attach to: a task or
// an uploaded timetable. It carries only the fields the engine reads.
type Entity struct {
	Kind      string // models.SourceTask or models.SourceTimetable
	ID        string
	UserID    string
	Label     string // human label used in reminder messages
	DueAt     time.Time
	Completed bool
}

// Key is the composite identifier used by the trigger registry,
// e.g. "task:42".
func (e Entity) Key() string {
	return e.Kind + ":" + e.ID
}

// EntityStore is the persistence collaborator for reminder entities.
type EntityStore interface {
	// GetEntity reloads current entity state. Returns ErrEntityGone when
	// the row no longer exists.
	GetEntity(ctx context.Context, kind, id string) (Entity, error)
	// MarkCompleted flags the entity as completed. Returns false when the
	// row was already completed, so racing completion paths (timer and
	// sweep in the same minute) notify at most once.
	MarkCompleted(ctx context.Context, kind, id string) (bool, error)
	// QueryDueBetween returns open task entities whose due time falls in
	// [from, to]. Used by the reconciliation sweep.
	QueryDueBetween(ctx context.Context, from, to time.Time) ([]Entity, error)
}

// NotificationStore persists delivery attempt records.
type NotificationStore interface {
	// HasSentNotification reports whether a SENT notification already
	// exists for the (entity, offset) pair.
	HasSentNotification(ctx context.Context, kind, id, offsetLabel string) (bool, error)
	CreateNotification(ctx context.Context, n *models.Notification) error
	UpdateNotificationStatus(ctx context.Context, id uint, status models.NotificationStatus, sentAt *time.Time) error
}

// Recipient is the resolved delivery target for a user, built fresh at
// dispatch time and never persisted.
type Recipient struct {
	Email         string
	Subscriptions []models.Subscription
}

// RecipientResolver looks up a user's delivery targets.
type RecipientResolver interface {
	Resolve(ctx context.Context, userID string) (Recipient, error)
}

// Message is a rendered reminder ready for channel delivery. Title and Body
// serve channels that send plain text (push); Template and Data let the
// email channel render its richer named templates.
type Message struct {
	Template string
	Title    string
	Body     string
	Data     map[string]string
}

// Channel is a delivery mechanism with its own per-attempt outcome.
type Channel interface {
	Name() string
	Send(ctx context.Context, rcpt Recipient, msg Message) error
}

// Alerter receives operational alerts for deliveries that failed on every
// configured channel.
type Alerter interface {
	Alertf(format string, args ...any)
}
