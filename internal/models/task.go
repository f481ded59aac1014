package models

import "time"

// Task represents a user task with a due date and reminder schedule
type Task struct {
	ID          uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID      string    `gorm:"size:36;not null;index" json:"user_id"`
	TaskName    string    `gorm:"size:255;not null" json:"task_name"`
	DueDate     time.Time `gorm:"not null;index" json:"due_date"`
	IsCompleted bool      `gorm:"not null;default:false" json:"is_completed"`
	CreatedAt   time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt   time.Time `gorm:"not null" json:"updated_at"`
}

// CreateTaskRequest represents the data needed to create a new task
type CreateTaskRequest struct {
	TaskName string    `json:"task_name" binding:"required"`
	DueDate  time.Time `json:"due_date" binding:"required"`
}

// UpdateTaskRequest represents the data accepted by a task update.
// IsCompleted is a pointer so "not provided" is distinguishable from false.
type UpdateTaskRequest struct {
	TaskName    string    `json:"task_name" binding:"required"`
	DueDate     time.Time `json:"due_date" binding:"required"`
	IsCompleted *bool     `json:"is_completed"`
}
