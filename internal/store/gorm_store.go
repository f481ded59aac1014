package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"taskping/internal/models"
	"taskping/internal/scheduler"

	"gorm.io/gorm"
)

// Store adapts the GORM database to the scheduler's collaborator
// interfaces (entity store, notification store, recipient resolver) plus
// the lookups the timetable scheduler and push channel need.
type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// GetEntity reloads the scheduler's view of a task or timetable.
func (s *Store) GetEntity(ctx context.Context, kind, id string) (scheduler.Entity, error) {
	switch kind {
	case models.SourceTask:
		var task models.Task
		if err := s.db.WithContext(ctx).First(&task, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return scheduler.Entity{}, scheduler.ErrEntityGone
			}
			return scheduler.Entity{}, err
		}
		return taskEntity(task), nil

	case models.SourceTimetable:
		var timetable models.Timetable
		if err := s.db.WithContext(ctx).First(&timetable, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return scheduler.Entity{}, scheduler.ErrEntityGone
			}
			return scheduler.Entity{}, err
		}
		return scheduler.Entity{
			Kind:   models.SourceTimetable,
			ID:     id,
			UserID: timetable.UserID,
			Label:  "timetable",
		}, nil

	default:
		return scheduler.Entity{}, fmt.Errorf("unknown entity kind %q", kind)
	}
}

// MarkCompleted flags a task as completed, reporting whether this call made
// the transition. Timetables have no completion state, so other kinds are
// rejected.
func (s *Store) MarkCompleted(ctx context.Context, kind, id string) (bool, error) {
	if kind != models.SourceTask {
		return false, fmt.Errorf("cannot complete entity kind %q", kind)
	}
	result := s.db.WithContext(ctx).
		Model(&models.Task{}).
		Where("id = ? AND is_completed = ?", id, false).
		Updates(map[string]any{"is_completed": true, "updated_at": time.Now()})
	return result.RowsAffected > 0, result.Error
}

// QueryDueBetween returns open tasks whose due time falls in [from, to].
func (s *Store) QueryDueBetween(ctx context.Context, from, to time.Time) ([]scheduler.Entity, error) {
	var tasks []models.Task
	err := s.db.WithContext(ctx).
		Where("due_date >= ? AND due_date <= ? AND is_completed = ?", from, to, false).
		Find(&tasks).Error
	if err != nil {
		return nil, err
	}

	entities := make([]scheduler.Entity, 0, len(tasks))
	for _, task := range tasks {
		entities = append(entities, taskEntity(task))
	}
	return entities, nil
}

// HasSentNotification reports whether a SENT notification exists for the
// (source, offset) pair.
func (s *Store) HasSentNotification(ctx context.Context, kind, id, offsetLabel string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("source_kind = ? AND source_id = ? AND offset_label = ? AND status = ?",
			kind, id, offsetLabel, models.NotificationSent).
		Count(&count).Error
	return count > 0, err
}

func (s *Store) CreateNotification(ctx context.Context, n *models.Notification) error {
	return s.db.WithContext(ctx).Create(n).Error
}

func (s *Store) UpdateNotificationStatus(ctx context.Context, id uint, status models.NotificationStatus, sentAt *time.Time) error {
	return s.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("id = ?", id).
		Updates(map[string]any{"status": status, "sent_at": sentAt}).Error
}

// Resolve builds the delivery targets for a user: email address plus every
// registered push subscription.
func (s *Store) Resolve(ctx context.Context, userID string) (scheduler.Recipient, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "id = ?", userID).Error; err != nil {
		return scheduler.Recipient{}, fmt.Errorf("loading user %s: %w", userID, err)
	}

	var subscriptions []models.Subscription
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Find(&subscriptions).Error; err != nil {
		return scheduler.Recipient{}, fmt.Errorf("loading subscriptions for %s: %w", userID, err)
	}

	return scheduler.Recipient{
		Email:         user.Email,
		Subscriptions: subscriptions,
	}, nil
}

// DeleteSubscription removes a push subscription whose endpoint the
// provider reported as permanently gone.
func (s *Store) DeleteSubscription(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Delete(&models.Subscription{}, id).Error
}

// GetTimetable loads a single timetable, mapping a missing row onto
// ErrEntityGone for the class trigger re-arm check.
func (s *Store) GetTimetable(ctx context.Context, id uint) (models.Timetable, error) {
	var timetable models.Timetable
	if err := s.db.WithContext(ctx).First(&timetable, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Timetable{}, scheduler.ErrEntityGone
		}
		return models.Timetable{}, err
	}
	return timetable, nil
}

// ListTimetables returns every stored timetable, used to re-register class
// triggers at boot.
func (s *Store) ListTimetables(ctx context.Context) ([]models.Timetable, error) {
	var timetables []models.Timetable
	err := s.db.WithContext(ctx).Find(&timetables).Error
	return timetables, err
}

func taskEntity(task models.Task) scheduler.Entity {
	return scheduler.Entity{
		Kind:      models.SourceTask,
		ID:        strconv.FormatUint(uint64(task.ID), 10),
		UserID:    task.UserID,
		Label:     task.TaskName,
		DueAt:     task.DueDate,
		Completed: task.IsCompleted,
	}
}
