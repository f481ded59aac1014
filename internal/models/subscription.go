package models

import "time"

// Subscription represents a browser push subscription for a user's device.
// A user may register several devices; push reminders go to all of them.
type Subscription struct {
	ID         uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID     string    `gorm:"size:36;not null;index" json:"user_id"`
	Endpoint   string    `gorm:"type:text;not null" json:"endpoint"`
	KeysAuth   string    `gorm:"size:255;not null" json:"-"`
	KeysP256dh string    `gorm:"size:255;not null" json:"-"`
	CreatedAt  time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt  time.Time `gorm:"not null" json:"updated_at"`
}

// SubscriptionKeys carries the encryption keys sent by the browser
type SubscriptionKeys struct {
	Auth   string `json:"auth" binding:"required"`
	P256dh string `json:"p256dh" binding:"required"`
}

// AddSubscriptionRequest represents the subscription payload from the client
type AddSubscriptionRequest struct {
	Endpoint string           `json:"endpoint" binding:"required"`
	Keys     SubscriptionKeys `json:"keys" binding:"required"`
}
