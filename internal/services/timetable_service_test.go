package services

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskping/internal/models"
	"taskping/internal/scheduler"
)

const sampleCSV = `Time,Monday,Tuesday,Wednesday,Thursday,Friday
09:00-10:00,Mathematics,,Physics,,
14:00-15:00,,Chemistry,,,Computer Lab
`

func newTestTimetableService(store *svcStore, email scheduler.Channel) (*TimetableService, *scheduler.Registry) {
	registry := scheduler.NewRegistry()
	dispatcher := scheduler.NewDispatcher(store, store, store, []scheduler.Channel{email})
	return NewTimetableService(registry, dispatcher, store, store, email), registry
}

func timetableFixture(t *testing.T, id uint, schedule models.Schedule) models.Timetable {
	t.Helper()
	tt := models.Timetable{ID: id, UserID: "user-1"}
	require.NoError(t, tt.SetSchedule(schedule))
	return tt
}

func TestParseTimetableCSV(t *testing.T) {
	schedule, err := ParseTimetableCSV([]byte(sampleCSV))
	require.NoError(t, err)

	assert.Equal(t, []models.ClassSlot{{Time: "09:00-10:00", Subject: "Mathematics"}}, schedule["Monday"])
	assert.Equal(t, []models.ClassSlot{{Time: "14:00-15:00", Subject: "Chemistry"}}, schedule["Tuesday"])
	assert.Equal(t, []models.ClassSlot{{Time: "09:00-10:00", Subject: "Physics"}}, schedule["Wednesday"])
	assert.Empty(t, schedule["Thursday"])
	assert.Equal(t, []models.ClassSlot{{Time: "14:00-15:00", Subject: "Computer Lab"}}, schedule["Friday"])
	assert.Equal(t, 4, schedule.TotalClasses())
}

func TestParseTimetableCSVRejectsMissingColumns(t *testing.T) {
	_, err := ParseTimetableCSV([]byte("Hour,Monday,Tuesday,Wednesday,Thursday,Friday\n09:00-10:00,Math,,,,\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing Time column")

	_, err = ParseTimetableCSV([]byte("Time,Monday,Tuesday,Wednesday,Thursday\n09:00-10:00,Math,,,\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing Friday column")
}

func TestParseTimetableCSVRejectsBadTimeSlot(t *testing.T) {
	csv := "Time,Monday,Tuesday,Wednesday,Thursday,Friday\nmorning,Math,,,,\n"
	_, err := ParseTimetableCSV([]byte(csv))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid time slot")
}

func TestParseTimetableCSVRejectsEmptyTimetable(t *testing.T) {
	_, err := ParseTimetableCSV([]byte("Time,Monday,Tuesday,Wednesday,Thursday,Friday\n"))
	require.Error(t, err)
}

func TestParseSlotStart(t *testing.T) {
	tests := []struct {
		slot    string
		hour    int
		minute  int
		wantErr bool
	}{
		{slot: "09:00-10:00", hour: 9},
		{slot: "14:30-15:30", hour: 14, minute: 30},
		{slot: "09:15", hour: 9, minute: 15},
		{slot: "morning", wantErr: true},
		{slot: "25:00-26:00", wantErr: true},
		{slot: "09:75-10:00", wantErr: true},
	}
	for _, tc := range tests {
		hour, minute, err := parseSlotStart(tc.slot)
		if tc.wantErr {
			assert.Error(t, err, tc.slot)
			continue
		}
		require.NoError(t, err, tc.slot)
		assert.Equal(t, tc.hour, hour, tc.slot)
		assert.Equal(t, tc.minute, minute, tc.slot)
	}
}

func TestNextClassReminder(t *testing.T) {
	// Tuesday 2026-09-01 12:00 UTC
	from := time.Date(2026, time.September, 1, 12, 0, 0, 0, time.UTC)

	// Monday class: next Monday, 5 minutes before 09:00
	got := nextClassReminder(from, time.Monday, 9, 0)
	assert.Equal(t, time.Date(2026, time.September, 7, 8, 55, 0, 0, time.UTC), got)

	// Tuesday class later today fires today
	got = nextClassReminder(from, time.Tuesday, 14, 0)
	assert.Equal(t, time.Date(2026, time.September, 1, 13, 55, 0, 0, time.UTC), got)

	// Tuesday class already past rolls to next week
	got = nextClassReminder(from, time.Tuesday, 9, 0)
	assert.Equal(t, time.Date(2026, time.September, 8, 8, 55, 0, 0, time.UTC), got)

	// exactly at the reminder instant rolls forward too
	got = nextClassReminder(time.Date(2026, time.September, 1, 13, 55, 0, 0, time.UTC), time.Tuesday, 14, 0)
	assert.Equal(t, time.Date(2026, time.September, 8, 13, 55, 0, 0, time.UTC), got)
}

func TestScheduleClassesArmsOneTriggerPerSlot(t *testing.T) {
	store := newSvcStore()
	email := &recordChannel{}
	svc, registry := newTestTimetableService(store, email)
	defer registry.Shutdown()

	schedule, err := ParseTimetableCSV([]byte(sampleCSV))
	require.NoError(t, err)
	tt := timetableFixture(t, 7, schedule)

	svc.ScheduleClasses(tt, schedule)

	assert.Equal(t, 4, registry.Len())
	assert.True(t, svc.ClassScheduled(7, "Monday", "09:00-10:00"))
	assert.True(t, svc.ClassScheduled(7, "Friday", "14:00-15:00"))
	assert.False(t, svc.ClassScheduled(7, "Thursday", "09:00-10:00"))
}

func TestCancelDropsOnlyThatTimetable(t *testing.T) {
	store := newSvcStore()
	email := &recordChannel{}
	svc, registry := newTestTimetableService(store, email)
	defer registry.Shutdown()

	schedule, err := ParseTimetableCSV([]byte(sampleCSV))
	require.NoError(t, err)
	svc.ScheduleClasses(timetableFixture(t, 7, schedule), schedule)
	svc.ScheduleClasses(timetableFixture(t, 8, schedule), schedule)
	require.Equal(t, 8, registry.Len())

	svc.Cancel(7)

	assert.Equal(t, 4, registry.Len())
	assert.False(t, svc.ClassScheduled(7, "Monday", "09:00-10:00"))
	assert.True(t, svc.ClassScheduled(8, "Monday", "09:00-10:00"))
}

func TestActivateArmsTriggersAndSendsConfirmation(t *testing.T) {
	store := newSvcStore()
	email := &recordChannel{}
	svc, registry := newTestTimetableService(store, email)
	defer registry.Shutdown()

	schedule, err := ParseTimetableCSV([]byte(sampleCSV))
	require.NoError(t, err)
	tt := timetableFixture(t, 7, schedule)

	require.NoError(t, svc.Activate(context.Background(), tt))

	assert.Equal(t, 4, registry.Len())
	sends := email.sent()
	require.Len(t, sends, 1)
	assert.Equal(t, "timetable-uploaded", sends[0].Template)
	assert.Equal(t, strconv.Itoa(4), sends[0].Data["total_classes"])
}

func TestShouldRearmTracksCurrentStoredSchedule(t *testing.T) {
	store := newSvcStore()
	email := &recordChannel{}
	svc, registry := newTestTimetableService(store, email)
	defer registry.Shutdown()

	schedule, err := ParseTimetableCSV([]byte(sampleCSV))
	require.NoError(t, err)
	store.timetables = []models.Timetable{timetableFixture(t, 7, schedule)}

	mathMonday := models.ClassSlot{Time: "09:00-10:00", Subject: "Mathematics"}
	assert.True(t, svc.shouldRearm(context.Background(), 7, "Monday", mathMonday))

	// an update replaced the slot's subject while a fire was in flight
	replaced := models.Schedule{"Monday": {{Time: "09:00-10:00", Subject: "Biology"}}}
	store.timetables = []models.Timetable{timetableFixture(t, 7, replaced)}
	assert.False(t, svc.shouldRearm(context.Background(), 7, "Monday", mathMonday))

	// an update dropped the slot entirely
	empty := models.Schedule{"Monday": {}}
	store.timetables = []models.Timetable{timetableFixture(t, 7, empty)}
	assert.False(t, svc.shouldRearm(context.Background(), 7, "Monday", mathMonday))

	// the timetable was deleted
	store.timetables = nil
	assert.False(t, svc.shouldRearm(context.Background(), 7, "Monday", mathMonday))
}

func TestRestoreAllReArmsStoredTimetables(t *testing.T) {
	store := newSvcStore()
	email := &recordChannel{}
	svc, registry := newTestTimetableService(store, email)
	defer registry.Shutdown()

	schedule, err := ParseTimetableCSV([]byte(sampleCSV))
	require.NoError(t, err)
	store.timetables = []models.Timetable{
		timetableFixture(t, 7, schedule),
		timetableFixture(t, 8, schedule),
	}

	require.NoError(t, svc.RestoreAll(context.Background()))

	assert.Equal(t, 8, registry.Len())
	assert.True(t, svc.ClassScheduled(7, "Wednesday", "09:00-10:00"))
	assert.True(t, svc.ClassScheduled(8, "Tuesday", "14:00-15:00"))
	assert.Empty(t, email.sent(), "restore does not resend upload confirmations")
}
