package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"taskping/internal/scheduler"
)

func TestPushSendWithoutSubscriptionsIsNoRecipient(t *testing.T) {
	svc := NewPushService(nil)

	err := svc.Send(context.Background(), scheduler.Recipient{Email: "user@example.com"}, scheduler.Message{
		Title: "Task Reminder",
		Body:  "Don't forget: write report",
	})
	assert.ErrorIs(t, err, scheduler.ErrNoRecipient)
}
