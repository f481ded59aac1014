package models

import "time"

// NotificationStatus is the delivery state of a notification attempt
type NotificationStatus string

const (
	NotificationPending NotificationStatus = "PENDING"
	NotificationSent    NotificationStatus = "SENT"
	NotificationFailed  NotificationStatus = "FAILED"
)

// Notification source kinds
const (
	SourceTask      = "task"
	SourceTimetable = "timetable"
)

// Notification records a single reminder delivery attempt. Created with
// status PENDING before any channel is invoked, then moved to SENT or
// FAILED exactly once. At most one SENT row exists per (source, offset).
type Notification struct {
	ID          uint               `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID      string             `gorm:"size:36;not null;index" json:"user_id"`
	SourceKind  string             `gorm:"size:20;not null;index:idx_notification_source" json:"source_kind"`
	SourceID    string             `gorm:"size:64;not null;index:idx_notification_source" json:"source_id"`
	OffsetLabel string             `gorm:"size:40;not null;index:idx_notification_source" json:"offset_label"`
	Title       string             `gorm:"size:255;not null" json:"title"`
	Body        string             `gorm:"type:text;not null" json:"body"`
	Status      NotificationStatus `gorm:"size:10;not null" json:"status"`
	IsRead      bool               `gorm:"not null;default:false" json:"is_read"`
	CreatedAt   time.Time          `gorm:"not null" json:"created_at"`
	SentAt      *time.Time         `json:"sent_at"`
}
