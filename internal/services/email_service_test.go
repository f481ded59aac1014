package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"taskping/internal/scheduler"
)

func TestRenderEmailTemplates(t *testing.T) {
	tests := []struct {
		name        string
		msg         scheduler.Message
		wantSubject string
		wantInPlain string
		wantInHTML  string
	}{
		{
			name: "task reminder",
			msg: scheduler.Message{
				Template: "task-reminder",
				Data:     map[string]string{"task_name": "write report", "time_left": "30 minutes before"},
			},
			wantSubject: "Reminder: write report - 30 minutes before",
			wantInPlain: "Don't forget: write report",
			wantInHTML:  "<strong>30 minutes before</strong>",
		},
		{
			name: "task completed",
			msg: scheduler.Message{
				Template: "task-completed",
				Data:     map[string]string{"task_name": "write report"},
			},
			wantSubject: "Task Completed: write report",
			wantInPlain: "has been marked as completed",
			wantInHTML:  "<strong>write report</strong>",
		},
		{
			name: "upcoming class",
			msg: scheduler.Message{
				Template: "upcoming-class",
				Data:     map[string]string{"class_name": "Mathematics", "time_slot": "09:00-10:00"},
			},
			wantSubject: "Upcoming Class: Mathematics",
			wantInPlain: "starting in 5 minutes",
			wantInHTML:  "<strong>Mathematics</strong>",
		},
		{
			name: "timetable uploaded",
			msg: scheduler.Message{
				Template: "timetable-uploaded",
				Data:     map[string]string{"total_classes": "12"},
			},
			wantSubject: "Timetable Successfully Uploaded",
			wantInPlain: "Total classes scheduled: 12",
			wantInHTML:  "<strong>12</strong>",
		},
		{
			name: "unknown template falls back to title and body",
			msg: scheduler.Message{
				Template: "something-new",
				Title:    "Heads up",
				Body:     "Something happened",
			},
			wantSubject: "Heads up",
			wantInPlain: "Something happened",
			wantInHTML:  "<p>Something happened</p>",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			subject, plain, html := renderEmail(tc.msg)
			assert.Equal(t, tc.wantSubject, subject)
			assert.Contains(t, plain, tc.wantInPlain)
			assert.Contains(t, html, tc.wantInHTML)
		})
	}
}

func TestEmailSendRequiresAnAddress(t *testing.T) {
	t.Setenv("SENDGRID_API_KEY", "SG.test")
	svc := NewEmailService()

	err := svc.Send(context.Background(), scheduler.Recipient{}, scheduler.Message{Template: "task-reminder"})
	assert.ErrorIs(t, err, scheduler.ErrNoRecipient)
}
