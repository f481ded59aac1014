package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"taskping/internal/models"
	"taskping/internal/scheduler"
)

// classReminderLead is how far before class start the reminder fires.
const classReminderLead = 5 * time.Minute

var weekdayNumbers = map[string]time.Weekday{
	"Monday":    time.Monday,
	"Tuesday":   time.Tuesday,
	"Wednesday": time.Wednesday,
	"Thursday":  time.Thursday,
	"Friday":    time.Friday,
}

// TimetableSource reads stored timetables: the full list for boot-time
// trigger recovery, single rows for the weekly re-arm check.
type TimetableSource interface {
	ListTimetables(ctx context.Context) ([]models.Timetable, error)
	// GetTimetable returns scheduler.ErrEntityGone when the row was deleted.
	GetTimetable(ctx context.Context, id uint) (models.Timetable, error)
}

// TimetableService parses uploaded CSV timetables and keeps a weekly class
// reminder trigger registered for every class slot. Class triggers recur,
// so their durability story is re-registration at boot (RestoreAll) rather
// than the task sweep.
type TimetableService struct {
	registry   *scheduler.Registry
	dispatcher *scheduler.Dispatcher
	timetables TimetableSource
	recipients scheduler.RecipientResolver
	email      scheduler.Channel
	now        func() time.Time
}

func NewTimetableService(
	registry *scheduler.Registry,
	dispatcher *scheduler.Dispatcher,
	timetables TimetableSource,
	recipients scheduler.RecipientResolver,
	email scheduler.Channel,
) *TimetableService {
	return &TimetableService{
		registry:   registry,
		dispatcher: dispatcher,
		timetables: timetables,
		recipients: recipients,
		email:      email,
		now:        time.Now,
	}
}

// ParseTimetableCSV validates and transforms an uploaded CSV. The file must
// carry a Time column plus one column per weekday; each non-empty cell
// becomes a class slot.
func ParseTimetableCSV(data []byte) (models.Schedule, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parsing CSV: %w", err)
	}
	if len(records) < 2 {
		return nil, errors.New("timetable has no class rows")
	}

	columns := make(map[string]int, len(records[0]))
	for i, name := range records[0] {
		columns[strings.TrimSpace(name)] = i
	}
	timeIdx, ok := columns["Time"]
	if !ok {
		return nil, errors.New("invalid timetable format: missing Time column")
	}
	for _, day := range models.Weekdays {
		if _, ok := columns[day]; !ok {
			return nil, fmt.Errorf("invalid timetable format: missing %s column", day)
		}
	}

	schedule := models.Schedule{}
	for _, day := range models.Weekdays {
		schedule[day] = []models.ClassSlot{}
	}

	for _, row := range records[1:] {
		timeSlot := strings.TrimSpace(row[timeIdx])
		if timeSlot == "" {
			continue
		}
		if _, _, err := parseSlotStart(timeSlot); err != nil {
			return nil, err
		}
		for _, day := range models.Weekdays {
			subject := strings.TrimSpace(row[columns[day]])
			if subject == "" {
				continue
			}
			schedule[day] = append(schedule[day], models.ClassSlot{
				Time:    timeSlot,
				Subject: subject,
			})
		}
	}
	return schedule, nil
}

// Activate registers class reminder triggers for a stored timetable and
// emails the upload confirmation.
func (s *TimetableService) Activate(ctx context.Context, t models.Timetable) error {
	schedule, err := t.Schedule()
	if err != nil {
		return fmt.Errorf("decoding schedule for timetable %d: %w", t.ID, err)
	}

	s.ScheduleClasses(t, schedule)

	rcpt, err := s.recipients.Resolve(ctx, t.UserID)
	if err != nil {
		return fmt.Errorf("resolving upload confirmation recipient: %w", err)
	}
	msg := scheduler.Message{
		Template: "timetable-uploaded",
		Title:    "Timetable Successfully Uploaded",
		Body:     fmt.Sprintf("Notifications have been set up for all %d of your classes.", schedule.TotalClasses()),
		Data: map[string]string{
			"total_classes": strconv.Itoa(schedule.TotalClasses()),
		},
	}
	if err := s.email.Send(ctx, rcpt, msg); err != nil && !errors.Is(err, scheduler.ErrNoRecipient) {
		// confirmation is best-effort; class triggers are already armed
		log.Printf("Error: timetable upload confirmation email: %v", err)
	}
	return nil
}

// ScheduleClasses registers one weekly trigger per class slot.
func (s *TimetableService) ScheduleClasses(t models.Timetable, schedule models.Schedule) {
	count := 0
	for _, day := range models.Weekdays {
		for _, class := range schedule[day] {
			if s.registerClass(t, day, class) {
				count++
			}
		}
	}
	log.Printf("Scheduled %d class reminders for timetable %d", count, t.ID)
}

// Cancel drops every class trigger belonging to a timetable.
func (s *TimetableService) Cancel(timetableID uint) {
	s.registry.CancelAll(timetableKey(timetableID))
}

// ClassScheduled reports whether a class slot currently has an armed
// trigger, for the active-schedules view.
func (s *TimetableService) ClassScheduled(timetableID uint, day, timeSlot string) bool {
	return s.registry.Active(timetableKey(timetableID), day+" "+timeSlot)
}

// RestoreAll re-registers class triggers for every stored timetable.
// Called once at process start.
func (s *TimetableService) RestoreAll(ctx context.Context) error {
	timetables, err := s.timetables.ListTimetables(ctx)
	if err != nil {
		return fmt.Errorf("listing timetables: %w", err)
	}
	for _, t := range timetables {
		schedule, err := t.Schedule()
		if err != nil {
			log.Printf("Error: skipping timetable %d with bad schedule data: %v", t.ID, err)
			continue
		}
		s.ScheduleClasses(t, schedule)
	}
	log.Printf("Restored class reminders for %d timetables", len(timetables))
	return nil
}

// registerClass arms a self-rescheduling trigger: each fire dispatches the
// reminder for this week's occurrence, then re-registers for next week
// unless the timetable has been deleted.
func (s *TimetableService) registerClass(t models.Timetable, day string, class models.ClassSlot) bool {
	weekday, ok := weekdayNumbers[day]
	if !ok {
		log.Printf("Error: skipping class %q on unknown day %q", class.Subject, day)
		return false
	}
	startHour, startMinute, err := parseSlotStart(class.Time)
	if err != nil {
		log.Printf("Error: skipping class %q on %s: %v", class.Subject, day, err)
		return false
	}

	key := timetableKey(t.ID)
	id := strconv.FormatUint(uint64(t.ID), 10)
	label := day + " " + class.Time

	var arm func(from time.Time)
	arm = func(from time.Time) {
		fireAt := nextClassReminder(from, weekday, startHour, startMinute)
		s.registry.Register(key, label, fireAt, func() {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			classStart := fireAt.Add(classReminderLead)
			occurrence := label + " " + classStart.Format("2006-01-02")
			msg := scheduler.Message{
				Template: "upcoming-class",
				Title:    fmt.Sprintf("Upcoming Class: %s", class.Subject),
				Body:     fmt.Sprintf("Your %s class starts in 5 minutes (%s)", class.Subject, class.Time),
				Data: map[string]string{
					"class_name": class.Subject,
					"time_slot":  class.Time,
				},
			}
			if err := s.dispatcher.DeliverPrepared(ctx, models.SourceTimetable, id, occurrence, msg); err != nil {
				log.Printf("Error: class reminder %q for timetable %s: %v", occurrence, id, err)
			}

			// Stop the weekly chain if the timetable was deleted or its
			// schedule replaced while this fire was in flight (Cancel
			// can't catch a re-arm that happens after it ran).
			if !s.shouldRearm(ctx, t.ID, day, class) {
				return
			}
			arm(fireAt.Add(time.Minute))
		})
	}
	arm(s.now())
	return true
}

// shouldRearm reports whether a fired class trigger should schedule next
// week's occurrence against the timetable's current stored state.
func (s *TimetableService) shouldRearm(ctx context.Context, timetableID uint, day string, class models.ClassSlot) bool {
	current, err := s.timetables.GetTimetable(ctx, timetableID)
	if errors.Is(err, scheduler.ErrEntityGone) {
		return false
	}
	if err != nil {
		// transient lookup trouble must not kill the weekly chain
		return true
	}
	schedule, err := current.Schedule()
	if err != nil {
		return true
	}
	for _, slot := range schedule[day] {
		if slot == class {
			return true
		}
	}
	return false
}

func timetableKey(id uint) string {
	return models.SourceTimetable + ":" + strconv.FormatUint(uint64(id), 10)
}

// nextClassReminder finds the first reminder instant after from for a
// weekly class starting at hour:minute on weekday.
func nextClassReminder(from time.Time, weekday time.Weekday, hour, minute int) time.Time {
	start := time.Date(from.Year(), from.Month(), from.Day(), hour, minute, 0, 0, from.Location())
	start = start.AddDate(0, 0, (int(weekday)-int(from.Weekday())+7)%7)
	fireAt := start.Add(-classReminderLead)
	for !fireAt.After(from) {
		fireAt = fireAt.AddDate(0, 0, 7)
	}
	return fireAt
}

// parseSlotStart extracts the start hour and minute from a slot such as
// "09:00-10:00".
func parseSlotStart(slot string) (hour, minute int, err error) {
	start := strings.TrimSpace(strings.SplitN(slot, "-", 2)[0])
	parts := strings.SplitN(start, ":", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid time slot %q", slot)
	}
	hour, err = strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0, 0, fmt.Errorf("invalid time slot %q", slot)
	}
	minute, err = strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return 0, 0, fmt.Errorf("invalid time slot %q", slot)
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("invalid time slot %q", slot)
	}
	return hour, minute, nil
}
