package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskping/internal/models"
)

func newTestEngine(store *memoryStore, channels ...Channel) *Engine {
	if len(channels) == 0 {
		channels = []Channel{&fakeChannel{name: "email"}}
	}
	d := NewDispatcher(store, store, store, channels)
	return NewEngine(NewRegistry(), d, DefaultOffsets())
}

func TestScheduleRemindersRegistersEveryFutureOffset(t *testing.T) {
	store := newMemoryStore()
	e := newTestEngine(store)
	defer e.Shutdown()

	entity := taskFixture("1", time.Now().Add(2*time.Hour))
	store.put(entity)
	e.ScheduleReminders(entity)

	r := e.Registry()
	require.Equal(t, 3, r.Len())
	assert.True(t, r.Active("task:1", "60 minutes before"))
	assert.True(t, r.Active("task:1", "30 minutes before"))
	assert.True(t, r.Active("task:1", "15 minutes before"))
}

func TestScheduleRemindersSkipsElapsedOffsets(t *testing.T) {
	store := newMemoryStore()
	e := newTestEngine(store)
	defer e.Shutdown()

	// due in 20 minutes: the 60- and 30-minute triggers are already past
	entity := taskFixture("1", time.Now().Add(20*time.Minute))
	store.put(entity)
	e.ScheduleReminders(entity)

	r := e.Registry()
	assert.Equal(t, 1, r.Len())
	assert.False(t, r.Active("task:1", "60 minutes before"))
	assert.True(t, r.Active("task:1", "15 minutes before"))
}

func TestFiredTriggerDispatchesNotification(t *testing.T) {
	store := newMemoryStore()
	email := &fakeChannel{name: "email"}
	e := newTestEngine(store, email)
	defer e.Shutdown()

	// the 60-minute trigger fires almost immediately
	entity := taskFixture("1", time.Now().Add(60*time.Minute+30*time.Millisecond))
	store.put(entity)
	e.ScheduleReminders(entity)

	assert.Eventually(t, func() bool {
		s := store.statuses(models.SourceTask, "1", "60 minutes before")
		return len(s) == 1 && s[0] == models.NotificationSent
	}, 2*time.Second, 10*time.Millisecond)
}

func TestRescheduleDropsTriggersForOldDueTime(t *testing.T) {
	store := newMemoryStore()
	email := &fakeChannel{name: "email"}
	e := newTestEngine(store, email)
	defer e.Shutdown()

	entity := taskFixture("1", time.Now().Add(60*time.Minute+40*time.Millisecond))
	store.put(entity)
	e.ScheduleReminders(entity)

	// due time pushed out before the old trigger fires
	entity.DueAt = time.Now().Add(3 * time.Hour)
	store.put(entity)
	e.RescheduleReminders(entity)

	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, 0, store.notificationCount(), "no stale fire from the old due time")
	assert.Equal(t, 3, e.Registry().Len())
}

func TestCancelRemindersPreventsFurtherNotifications(t *testing.T) {
	store := newMemoryStore()
	e := newTestEngine(store)
	defer e.Shutdown()

	entity := taskFixture("1", time.Now().Add(60*time.Minute+40*time.Millisecond))
	store.put(entity)
	e.ScheduleReminders(entity)

	store.delete("task:1")
	e.CancelReminders(models.SourceTask, "1")

	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, 0, store.notificationCount())
	assert.Equal(t, 0, e.Registry().Len())
}

func TestTerminalDeliveryArmsAutoCompleteTrigger(t *testing.T) {
	store := newMemoryStore()
	e := newTestEngine(store)
	defer e.Shutdown()

	// only the terminal trigger is in the future, firing right away
	entity := taskFixture("1", time.Now().Add(15*time.Minute+30*time.Millisecond))
	store.put(entity)
	e.ScheduleReminders(entity)

	assert.Eventually(t, func() bool {
		return e.Registry().Active("task:1", autoCompleteLabel)
	}, 2*time.Second, 10*time.Millisecond)
}

func TestAutoCompleteMarksEntityCompleted(t *testing.T) {
	store := newMemoryStore()
	d := NewDispatcher(store, store, store, []Channel{&fakeChannel{name: "email"}})
	e := NewEngine(NewRegistry(), d, DefaultOffsets())
	defer e.Shutdown()

	// due just now: the auto-complete trigger would normally sit 15
	// minutes out, so arm it directly against a past due time
	entity := taskFixture("1", time.Now().Add(-AutoCompleteDelay-time.Second))
	store.put(entity)
	e.scheduleAutoComplete(entity)

	assert.Eventually(t, func() bool {
		return store.isCompleted("task:1")
	}, 2*time.Second, 10*time.Millisecond)
}
