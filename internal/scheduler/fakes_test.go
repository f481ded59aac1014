package scheduler

import (
	"context"
	"sync"
	"time"

	"taskping/internal/models"
)

// memoryStore is an in-memory implementation of the scheduler's
// persistence collaborators for tests.
type memoryStore struct {
	mu            sync.Mutex
	entities      map[string]Entity
	recipient     Recipient
	notifications []*models.Notification
	nextID        uint
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		entities:  map[string]Entity{},
		recipient: Recipient{Email: "user@example.com"},
	}
}

func (m *memoryStore) put(e Entity) {
	m.mu.Lock()
	m.entities[e.Key()] = e
	m.mu.Unlock()
}

func (m *memoryStore) delete(key string) {
	m.mu.Lock()
	delete(m.entities, key)
	m.mu.Unlock()
}

func (m *memoryStore) GetEntity(ctx context.Context, kind, id string) (Entity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entities[kind+":"+id]
	if !ok {
		return Entity{}, ErrEntityGone
	}
	return e, nil
}

func (m *memoryStore) MarkCompleted(ctx context.Context, kind, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entities[kind+":"+id]
	if !ok || e.Completed {
		return false, nil
	}
	e.Completed = true
	m.entities[kind+":"+id] = e
	return true, nil
}

func (m *memoryStore) QueryDueBetween(ctx context.Context, from, to time.Time) ([]Entity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Entity
	for _, e := range m.entities {
		if e.Kind != models.SourceTask || e.Completed {
			continue
		}
		if e.DueAt.Before(from) || e.DueAt.After(to) {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (m *memoryStore) HasSentNotification(ctx context.Context, kind, id, offsetLabel string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, n := range m.notifications {
		if n.SourceKind == kind && n.SourceID == id && n.OffsetLabel == offsetLabel && n.Status == models.NotificationSent {
			return true, nil
		}
	}
	return false, nil
}

func (m *memoryStore) CreateNotification(ctx context.Context, n *models.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	n.ID = m.nextID
	m.notifications = append(m.notifications, n)
	return nil
}

func (m *memoryStore) UpdateNotificationStatus(ctx context.Context, id uint, status models.NotificationStatus, sentAt *time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, n := range m.notifications {
		if n.ID == id {
			n.Status = status
			n.SentAt = sentAt
			return nil
		}
	}
	return nil
}

func (m *memoryStore) Resolve(ctx context.Context, userID string) (Recipient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.recipient, nil
}

// statuses returns the status of every notification recorded for a
// (source, offset) triple, in creation order.
func (m *memoryStore) statuses(kind, id, offsetLabel string) []models.NotificationStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.NotificationStatus
	for _, n := range m.notifications {
		if n.SourceKind == kind && n.SourceID == id && n.OffsetLabel == offsetLabel {
			out = append(out, n.Status)
		}
	}
	return out
}

func (m *memoryStore) notificationCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.notifications)
}

func (m *memoryStore) isCompleted(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.entities[key].Completed
}

// fakeChannel records sends and can be forced to fail.
type fakeChannel struct {
	mu    sync.Mutex
	name  string
	err   error
	sends []Message
}

func (c *fakeChannel) Name() string { return c.name }

func (c *fakeChannel) Send(ctx context.Context, rcpt Recipient, msg Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.sends = append(c.sends, msg)
	return nil
}

func (c *fakeChannel) sendCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sends)
}

func taskFixture(id string, due time.Time) Entity {
	return Entity{
		Kind:   models.SourceTask,
		ID:     id,
		UserID: "user-1",
		Label:  "write report",
		DueAt:  due,
	}
}
