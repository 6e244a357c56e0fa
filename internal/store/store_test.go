package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voicedesk/internal/assistant"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestNoteRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	n, err := s.CreateNote(ctx, "buy milk")
	require.NoError(t, err)
	assert.NotZero(t, n.ID)

	notes, err := s.Notes(ctx)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, "buy milk", notes[0].Text)
	assert.Equal(t, time.UTC, notes[0].CreatedAt.Location())

	require.NoError(t, s.DeleteNote(ctx, n.ID))
	notes, err = s.Notes(ctx)
	require.NoError(t, err)
	assert.Empty(t, notes)
}

func TestDeleteMissingNote(t *testing.T) {
	s := openTestStore(t)
	err := s.DeleteNote(context.Background(), 42)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListWithItems(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	l, err := s.CreateList(ctx, "groceries", []string{"milk", "eggs"})
	require.NoError(t, err)

	items, err := s.Items(ctx, l.ID)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.False(t, items[0].Done)
	assert.False(t, items[1].Done)
}

func TestListNameUnique(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.CreateList(ctx, "groceries", nil)
	require.NoError(t, err)
	_, err = s.CreateList(ctx, "groceries", nil)
	assert.Error(t, err)
}

func TestAddItemByNameAndID(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	l, err := s.CreateList(ctx, "Weekend Groceries", nil)
	require.NoError(t, err)

	// Точное имя, регистронезависимо
	_, err = s.AddItem(ctx, "weekend groceries", "milk")
	require.NoError(t, err)
	// Вхождение подстроки
	_, err = s.AddItem(ctx, "groceries", "eggs")
	require.NoError(t, err)
	// Числовой id
	_, err = s.AddItem(ctx, "1", "bread")
	require.NoError(t, err)

	items, err := s.Items(ctx, l.ID)
	require.NoError(t, err)
	assert.Len(t, items, 3)
}

func TestAddItemMissingList(t *testing.T) {
	s := openTestStore(t)
	_, err := s.AddItem(context.Background(), "no such list", "milk")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestToggleItem(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	l, err := s.CreateList(ctx, "chores", []string{"vacuum"})
	require.NoError(t, err)
	items, err := s.Items(ctx, l.ID)
	require.NoError(t, err)

	require.NoError(t, s.ToggleItem(ctx, items[0].ID))
	items, err = s.Items(ctx, l.ID)
	require.NoError(t, err)
	assert.True(t, items[0].Done)

	require.NoError(t, s.ToggleItem(ctx, items[0].ID))
	items, err = s.Items(ctx, l.ID)
	require.NoError(t, err)
	assert.False(t, items[0].Done)

	assert.ErrorIs(t, s.ToggleItem(ctx, 999), ErrNotFound)
}

func TestDeleteListCascades(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	l, err := s.CreateList(ctx, "groceries", []string{"milk", "eggs"})
	require.NoError(t, err)
	require.NoError(t, s.DeleteList(ctx, l.ID))

	items, err := s.Items(ctx, l.ID)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestAgendaOrder(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	base := time.Now().Add(time.Hour)

	_, err := s.CreateAppointment(ctx, "later", base.Add(2*time.Hour), 15*time.Minute)
	require.NoError(t, err)
	_, err = s.CreateAppointment(ctx, "sooner", base, 15*time.Minute)
	require.NoError(t, err)

	agenda, err := s.Agenda(ctx, time.Now())
	require.NoError(t, err)
	require.Len(t, agenda, 2)
	assert.Equal(t, "sooner", agenda[0].Title)
	assert.Equal(t, 15*time.Minute, agenda[0].Lead)
}

func TestClaimDueRemindersOnce(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	now := time.Now()

	_, err := s.CreateReminder(ctx, "due", now.Add(-time.Minute))
	require.NoError(t, err)
	_, err = s.CreateReminder(ctx, "future", now.Add(time.Hour))
	require.NoError(t, err)

	due, err := s.ClaimDueReminders(ctx, now)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, "due", due[0].Text)
	assert.True(t, due[0].Notified)

	// Повторный проход ту же сущность не выдаёт
	due, err = s.ClaimDueReminders(ctx, now)
	require.NoError(t, err)
	assert.Empty(t, due)
}

func TestClaimCatchesUpMissedReminders(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	now := time.Now()

	// Напоминание, просроченное на сутки, как после перезапуска процесса
	_, err := s.CreateReminder(ctx, "stale", now.Add(-24*time.Hour))
	require.NoError(t, err)

	due, err := s.ClaimDueReminders(ctx, now)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, "stale", due[0].Text)
}

func TestClaimDueAppointmentsUsesLead(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	now := time.Now()

	// Начало через 10 минут при упреждении 15 — уже созрело
	_, err := s.CreateAppointment(ctx, "standup", now.Add(10*time.Minute), 15*time.Minute)
	require.NoError(t, err)
	// Начало через 2 часа — ещё нет
	_, err = s.CreateAppointment(ctx, "dentist", now.Add(2*time.Hour), 15*time.Minute)
	require.NoError(t, err)

	due, err := s.ClaimDueAppointments(ctx, now)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, "standup", due[0].Title)

	due, err = s.ClaimDueAppointments(ctx, now)
	require.NoError(t, err)
	assert.Empty(t, due)
}

func TestApplyActionsAtomic(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	// Второе действие ссылается на несуществующий список: откат всего пакета
	_, err := s.ApplyActions(ctx, []assistant.Action{
		assistant.SaveNote{Text: "should roll back"},
		assistant.AddItem{List: "no such list", Text: "milk"},
	})
	require.ErrorIs(t, err, ErrNotFound)

	notes, err := s.Notes(ctx)
	require.NoError(t, err)
	assert.Empty(t, notes)
}

func TestApplyActionsConfirmations(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	fireAt := time.Now().Add(time.Hour)

	confirms, err := s.ApplyActions(ctx, []assistant.Action{
		assistant.SaveNote{Text: "call mom"},
		assistant.CreateList{Name: "groceries", Items: []string{"milk"}},
		assistant.AddItem{List: "groceries", Text: "eggs"},
		assistant.CreateReminder{Text: "take out trash", FireAt: fireAt},
	})
	require.NoError(t, err)
	require.Len(t, confirms, 4)
	assert.Contains(t, confirms[0], "Saved note")
	assert.Contains(t, confirms[1], "groceries")

	lists, err := s.Lists(ctx)
	require.NoError(t, err)
	require.Len(t, lists, 1)
	items, err := s.Items(ctx, lists[0].ID)
	require.NoError(t, err)
	assert.Len(t, items, 2)
}

func TestApplyActionsRejectsQueries(t *testing.T) {
	s := openTestStore(t)
	_, err := s.ApplyActions(context.Background(), []assistant.Action{assistant.QueryNotes{}})
	assert.Error(t, err)
}

func TestSettings(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	v, err := s.Setting(ctx, "theme", "dark")
	require.NoError(t, err)
	assert.Equal(t, "dark", v)

	require.NoError(t, s.SetSetting(ctx, "theme", "light"))
	require.NoError(t, s.SetSetting(ctx, "theme", "solarized"))

	v, err = s.Setting(ctx, "theme", "dark")
	require.NoError(t, err)
	assert.Equal(t, "solarized", v)
}

func TestTimesStoredUTC(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	local := time.Date(2026, 3, 14, 15, 0, 0, 0, time.Local)

	a, err := s.CreateAppointment(ctx, "meeting", local, 15*time.Minute)
	require.NoError(t, err)

	agenda, err := s.Agenda(ctx, local.Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, agenda, 1)
	assert.Equal(t, time.UTC, agenda[0].StartAt.Location())
	assert.True(t, agenda[0].StartAt.Equal(a.StartAt.Truncate(time.Second)))
}
