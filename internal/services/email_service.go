package services

import (
	"context"
	"fmt"
	"os"

	"taskping/internal/scheduler"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

// EmailService delivers reminders over SendGrid. It implements
// scheduler.Channel and renders one of four named templates per message.
type EmailService struct {
	client    *sendgrid.Client
	fromEmail string
	fromName  string
}

func NewEmailService() *EmailService {
	apiKey := os.Getenv("SENDGRID_API_KEY")
	fromEmail := os.Getenv("SENDGRID_NOTIFICATIONS_FROM_EMAIL")
	fromName := os.Getenv("SENDGRID_FROM_NAME")

	client := sendgrid.NewSendClient(apiKey)

	return &EmailService{
		client:    client,
		fromEmail: fromEmail,
		fromName:  fromName,
	}
}

// Name implements scheduler.Channel
func (s *EmailService) Name() string { return "email" }

// Send renders the message's template and delivers it to the recipient's
// email address.
func (s *EmailService) Send(ctx context.Context, rcpt scheduler.Recipient, msg scheduler.Message) error {
	if rcpt.Email == "" {
		return scheduler.ErrNoRecipient
	}

	subject, plainContent, htmlContent := renderEmail(msg)

	from := mail.NewEmail(s.fromName, s.fromEmail)
	to := mail.NewEmail("", rcpt.Email)
	message := mail.NewSingleEmail(from, subject, to, plainContent, htmlContent)

	response, err := s.client.SendWithContext(ctx, message)
	if err != nil {
		return err
	}
	if response.StatusCode >= 400 {
		return fmt.Errorf("failed to send email to %s: %d", rcpt.Email, response.StatusCode)
	}
	return nil
}

// renderEmail maps a message's template name and data onto a subject and
// body pair. Unknown templates fall back to the message's own title/body.
func renderEmail(msg scheduler.Message) (subject, plainContent, htmlContent string) {
	switch msg.Template {
	case "task-reminder":
		taskName := msg.Data["task_name"]
		timeLeft := msg.Data["time_left"]
		subject = fmt.Sprintf("Reminder: %s - %s", taskName, timeLeft)
		plainContent = fmt.Sprintf("Don't forget: %s. You have %s until it is due. Stay focused and manage your time effectively!",
			taskName, timeLeft)
		htmlContent = fmt.Sprintf("<h2>Don't forget: %s</h2><p>You have <strong>%s</strong> until it is due.</p><p>Stay focused and manage your time effectively!</p><p>If you've already completed this task, you can ignore this message.</p>",
			taskName, timeLeft)

	case "task-completed":
		taskName := msg.Data["task_name"]
		subject = fmt.Sprintf("Task Completed: %s", taskName)
		plainContent = fmt.Sprintf("Great job! The task '%s' has been marked as completed. Keep up the excellent work!", taskName)
		htmlContent = fmt.Sprintf("<h2>Great job!</h2><p>The task '<strong>%s</strong>' has been marked as completed.</p><p>Keep up the excellent work!</p>", taskName)

	case "upcoming-class":
		className := msg.Data["class_name"]
		timeSlot := msg.Data["time_slot"]
		subject = fmt.Sprintf("Upcoming Class: %s", className)
		plainContent = fmt.Sprintf("Your next class is starting soon! %s at %s, starting in 5 minutes. Have your materials ready.",
			className, timeSlot)
		htmlContent = fmt.Sprintf("<h2>Your next class is starting soon!</h2><p><strong>%s</strong></p><p>Time: %s</p><p>Starting in 5 minutes. Have your materials ready and find a quiet study space.</p>",
			className, timeSlot)

	case "timetable-uploaded":
		totalClasses := msg.Data["total_classes"]
		subject = "Timetable Successfully Uploaded"
		plainContent = fmt.Sprintf("Your timetable has been uploaded! Total classes scheduled: %s. You'll receive reminders 5 minutes before each class.",
			totalClasses)
		htmlContent = fmt.Sprintf("<h2>Your timetable has been uploaded!</h2><p>Total classes scheduled: <strong>%s</strong></p><p>You'll receive reminders 5 minutes before each class.</p>",
			totalClasses)

	default:
		subject = msg.Title
		plainContent = msg.Body
		htmlContent = fmt.Sprintf("<p>%s</p>", msg.Body)
	}
	return subject, plainContent, htmlContent
}
