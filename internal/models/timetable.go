package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// Weekdays lists the days a timetable may contain, in column order.
var Weekdays = []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday"}

// ClassSlot is a single class within a day's schedule
type ClassSlot struct {
	Time    string `json:"time"`    // e.g. "09:00-10:00"
	Subject string `json:"subject"` // e.g. "Mathematics"
}

// Schedule maps a weekday name to the classes held that day
type Schedule map[string][]ClassSlot

// TotalClasses counts every class slot across the week
func (s Schedule) TotalClasses() int {
	total := 0
	for _, classes := range s {
		total += len(classes)
	}
	return total
}

// Timetable represents an uploaded weekly class timetable
type Timetable struct {
	ID           uint           `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID       string         `gorm:"size:36;not null;index" json:"user_id"`
	FileData     string         `gorm:"type:text;not null" json:"-"`
	ScheduleData datatypes.JSON `gorm:"type:jsonb;not null" json:"schedule_data"`
	CreatedAt    time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt    time.Time      `gorm:"not null" json:"updated_at"`
}

// Schedule decodes the stored schedule JSON
func (t *Timetable) Schedule() (Schedule, error) {
	var schedule Schedule
	if err := json.Unmarshal(t.ScheduleData, &schedule); err != nil {
		return nil, err
	}
	return schedule, nil
}

// SetSchedule encodes and stores the schedule JSON
func (t *Timetable) SetSchedule(schedule Schedule) error {
	data, err := json.Marshal(schedule)
	if err != nil {
		return err
	}
	t.ScheduleData = datatypes.JSON(data)
	return nil
}
