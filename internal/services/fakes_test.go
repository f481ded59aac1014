package services

import (
	"context"
	"sync"
	"time"

	"taskping/internal/models"
	"taskping/internal/scheduler"
)

// svcStore backs the dispatcher and timetable service in tests.
type svcStore struct {
	mu            sync.Mutex
	entities      map[string]scheduler.Entity
	timetables    []models.Timetable
	notifications []*models.Notification
	nextID        uint
}

func newSvcStore() *svcStore {
	return &svcStore{entities: map[string]scheduler.Entity{}}
}

func (s *svcStore) put(e scheduler.Entity) {
	s.mu.Lock()
	s.entities[e.Key()] = e
	s.mu.Unlock()
}

func (s *svcStore) GetEntity(ctx context.Context, kind, id string) (scheduler.Entity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entities[kind+":"+id]
	if !ok {
		return scheduler.Entity{}, scheduler.ErrEntityGone
	}
	return e, nil
}

func (s *svcStore) MarkCompleted(ctx context.Context, kind, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entities[kind+":"+id]
	if !ok || e.Completed {
		return false, nil
	}
	e.Completed = true
	s.entities[kind+":"+id] = e
	return true, nil
}

func (s *svcStore) QueryDueBetween(ctx context.Context, from, to time.Time) ([]scheduler.Entity, error) {
	return nil, nil
}

func (s *svcStore) HasSentNotification(ctx context.Context, kind, id, offsetLabel string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, n := range s.notifications {
		if n.SourceKind == kind && n.SourceID == id && n.OffsetLabel == offsetLabel && n.Status == models.NotificationSent {
			return true, nil
		}
	}
	return false, nil
}

func (s *svcStore) CreateNotification(ctx context.Context, n *models.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	n.ID = s.nextID
	s.notifications = append(s.notifications, n)
	return nil
}

func (s *svcStore) UpdateNotificationStatus(ctx context.Context, id uint, status models.NotificationStatus, sentAt *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, n := range s.notifications {
		if n.ID == id {
			n.Status = status
			n.SentAt = sentAt
		}
	}
	return nil
}

func (s *svcStore) Resolve(ctx context.Context, userID string) (scheduler.Recipient, error) {
	return scheduler.Recipient{Email: "user@example.com"}, nil
}

func (s *svcStore) ListTimetables(ctx context.Context) ([]models.Timetable, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timetables, nil
}

func (s *svcStore) GetTimetable(ctx context.Context, id uint) (models.Timetable, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.timetables {
		if t.ID == id {
			return t, nil
		}
	}
	return models.Timetable{}, scheduler.ErrEntityGone
}

// recordChannel captures sent messages.
type recordChannel struct {
	mu    sync.Mutex
	sends []scheduler.Message
}

func (c *recordChannel) Name() string { return "email" }

func (c *recordChannel) Send(ctx context.Context, rcpt scheduler.Recipient, msg scheduler.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sends = append(c.sends, msg)
	return nil
}

func (c *recordChannel) sent() []scheduler.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]scheduler.Message, len(c.sends))
	copy(out, c.sends)
	return out
}
