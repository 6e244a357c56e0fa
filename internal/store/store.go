package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// ErrNotFound сущность не найдена.
var ErrNotFound = errors.New("not found")

// timeLayout формат хранения меток времени: UTC, лексикографически
// сортируемый и совместимый с datetime() в sqlite.
const timeLayout = "2006-01-02 15:04:05"

// Store единственный владелец истины для заметок, списков, встреч и
// напоминаний. Все записи транзакционные; sqlite сам сериализует писателей.
type Store struct {
	db *sql.DB
}

// Open открывает (или создаёт) базу и накатывает схему.
func Open(path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// Дисциплина одного писателя
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &Store{db: db}
	if err := s.init(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) init() error {
	schema := `
		CREATE TABLE IF NOT EXISTS notes (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			text       TEXT NOT NULL,
			created_at TEXT NOT NULL
		);
		CREATE TABLE IF NOT EXISTS lists (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			name       TEXT NOT NULL UNIQUE,
			created_at TEXT NOT NULL
		);
		CREATE TABLE IF NOT EXISTS list_items (
			id      INTEGER PRIMARY KEY AUTOINCREMENT,
			list_id INTEGER NOT NULL REFERENCES lists(id) ON DELETE CASCADE,
			text    TEXT NOT NULL,
			done    INTEGER NOT NULL DEFAULT 0
		);
		CREATE TABLE IF NOT EXISTS appointments (
			id                  INTEGER PRIMARY KEY AUTOINCREMENT,
			title               TEXT NOT NULL,
			start_at            TEXT NOT NULL,
			remind_lead_minutes INTEGER NOT NULL DEFAULT 15,
			notified            INTEGER NOT NULL DEFAULT 0,
			created_at          TEXT NOT NULL
		);
		CREATE TABLE IF NOT EXISTS reminders (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			text       TEXT NOT NULL,
			fire_at    TEXT NOT NULL,
			notified   INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL
		);
		CREATE TABLE IF NOT EXISTS settings (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	return nil
}

func encodeTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func decodeTime(s string) time.Time {
	t, _ := time.ParseInLocation(timeLayout, s, time.UTC)
	return t
}

// ── Notes ────────────────────────────────────────────────────────────────

func (s *Store) CreateNote(ctx context.Context, text string) (Note, error) {
	now := time.Now()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO notes (text, created_at) VALUES (?, ?)`,
		text, encodeTime(now))
	if err != nil {
		return Note{}, fmt.Errorf("insert note: %w", err)
	}
	id, _ := res.LastInsertId()
	return Note{ID: id, Text: text, CreatedAt: now.UTC()}, nil
}

func (s *Store) Notes(ctx context.Context) ([]Note, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, text, created_at FROM notes ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("query notes: %w", err)
	}
	defer rows.Close()

	var notes []Note
	for rows.Next() {
		var n Note
		var created string
		if err := rows.Scan(&n.ID, &n.Text, &created); err != nil {
			return nil, fmt.Errorf("scan note: %w", err)
		}
		n.CreatedAt = decodeTime(created)
		notes = append(notes, n)
	}
	return notes, rows.Err()
}

func (s *Store) DeleteNote(ctx context.Context, id int64) error {
	return s.deleteByID(ctx, "notes", id)
}

// ── Lists ────────────────────────────────────────────────────────────────

// CreateList создаёт список вместе с начальными пунктами в одной транзакции.
func (s *Store) CreateList(ctx context.Context, name string, items []string) (List, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return List{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	l, err := createListTx(ctx, tx, name, items)
	if err != nil {
		return List{}, err
	}
	if err := tx.Commit(); err != nil {
		return List{}, fmt.Errorf("commit: %w", err)
	}
	return l, nil
}

func createListTx(ctx context.Context, tx *sql.Tx, name string, items []string) (List, error) {
	now := time.Now()
	res, err := tx.ExecContext(ctx,
		`INSERT INTO lists (name, created_at) VALUES (?, ?)`,
		name, encodeTime(now))
	if err != nil {
		return List{}, fmt.Errorf("insert list: %w", err)
	}
	id, _ := res.LastInsertId()
	for _, it := range items {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO list_items (list_id, text, done) VALUES (?, ?, 0)`,
			id, it); err != nil {
			return List{}, fmt.Errorf("insert list item: %w", err)
		}
	}
	return List{ID: id, Name: name, CreatedAt: now.UTC()}, nil
}

func (s *Store) Lists(ctx context.Context) ([]List, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, created_at FROM lists ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("query lists: %w", err)
	}
	defer rows.Close()

	var lists []List
	for rows.Next() {
		var l List
		var created string
		if err := rows.Scan(&l.ID, &l.Name, &created); err != nil {
			return nil, fmt.Errorf("scan list: %w", err)
		}
		l.CreatedAt = decodeTime(created)
		lists = append(lists, l)
	}
	return lists, rows.Err()
}

func (s *Store) Items(ctx context.Context, listID int64) ([]ListItem, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, list_id, text, done FROM list_items WHERE list_id = ? ORDER BY id ASC`,
		listID)
	if err != nil {
		return nil, fmt.Errorf("query items: %w", err)
	}
	defer rows.Close()

	var items []ListItem
	for rows.Next() {
		var it ListItem
		if err := rows.Scan(&it.ID, &it.ListID, &it.Text, &it.Done); err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// AddItem добавляет пункт в существующий список, найденный по числовому id
// или по имени (регистронезависимое вхождение).
func (s *Store) AddItem(ctx context.Context, listRef, text string) (ListItem, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return ListItem{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	it, err := addItemTx(ctx, tx, listRef, text)
	if err != nil {
		return ListItem{}, err
	}
	if err := tx.Commit(); err != nil {
		return ListItem{}, fmt.Errorf("commit: %w", err)
	}
	return it, nil
}

func addItemTx(ctx context.Context, tx *sql.Tx, listRef, text string) (ListItem, error) {
	listID, err := findListTx(ctx, tx, listRef)
	if err != nil {
		return ListItem{}, err
	}
	res, err := tx.ExecContext(ctx,
		`INSERT INTO list_items (list_id, text, done) VALUES (?, ?, 0)`,
		listID, text)
	if err != nil {
		return ListItem{}, fmt.Errorf("insert list item: %w", err)
	}
	id, _ := res.LastInsertId()
	return ListItem{ID: id, ListID: listID, Text: text}, nil
}

func findListTx(ctx context.Context, tx *sql.Tx, ref string) (int64, error) {
	if id, err := strconv.ParseInt(ref, 10, 64); err == nil {
		var found int64
		err := tx.QueryRowContext(ctx, `SELECT id FROM lists WHERE id = ?`, id).Scan(&found)
		if err == nil {
			return found, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return 0, fmt.Errorf("find list: %w", err)
		}
		// Число могло оказаться именем списка — пробуем дальше по имени
	}
	var id int64
	err := tx.QueryRowContext(ctx,
		`SELECT id FROM lists WHERE lower(name) = lower(?)
		 UNION ALL
		 SELECT id FROM lists WHERE instr(lower(name), lower(?)) > 0
		 LIMIT 1`,
		ref, ref).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("list %q: %w", ref, ErrNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("find list: %w", err)
	}
	return id, nil
}

// ToggleItem переключает отметку выполнения пункта.
func (s *Store) ToggleItem(ctx context.Context, itemID int64) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE list_items SET done = 1 - done WHERE id = ?`, itemID)
	if err != nil {
		return fmt.Errorf("toggle item: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("item %d: %w", itemID, ErrNotFound)
	}
	return nil
}

// DeleteList удаляет список; пункты уходят каскадом.
func (s *Store) DeleteList(ctx context.Context, id int64) error {
	return s.deleteByID(ctx, "lists", id)
}

// ── Appointments ─────────────────────────────────────────────────────────

func (s *Store) CreateAppointment(ctx context.Context, title string, startAt time.Time, lead time.Duration) (Appointment, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Appointment{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	a, err := createAppointmentTx(ctx, tx, title, startAt, lead)
	if err != nil {
		return Appointment{}, err
	}
	if err := tx.Commit(); err != nil {
		return Appointment{}, fmt.Errorf("commit: %w", err)
	}
	return a, nil
}

func createAppointmentTx(ctx context.Context, tx *sql.Tx, title string, startAt time.Time, lead time.Duration) (Appointment, error) {
	now := time.Now()
	res, err := tx.ExecContext(ctx,
		`INSERT INTO appointments (title, start_at, remind_lead_minutes, notified, created_at)
		 VALUES (?, ?, ?, 0, ?)`,
		title, encodeTime(startAt), int(lead.Minutes()), encodeTime(now))
	if err != nil {
		return Appointment{}, fmt.Errorf("insert appointment: %w", err)
	}
	id, _ := res.LastInsertId()
	return Appointment{ID: id, Title: title, StartAt: startAt.UTC(), Lead: lead, CreatedAt: now.UTC()}, nil
}

// Agenda возвращает встречи, начинающиеся не раньше from, по времени начала.
func (s *Store) Agenda(ctx context.Context, from time.Time) ([]Appointment, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, start_at, remind_lead_minutes, notified, created_at
		 FROM appointments WHERE start_at >= ? ORDER BY start_at ASC`,
		encodeTime(from))
	if err != nil {
		return nil, fmt.Errorf("query agenda: %w", err)
	}
	defer rows.Close()
	return scanAppointments(rows)
}

func (s *Store) DeleteAppointment(ctx context.Context, id int64) error {
	return s.deleteByID(ctx, "appointments", id)
}

// ── Reminders ────────────────────────────────────────────────────────────

func (s *Store) CreateReminder(ctx context.Context, text string, fireAt time.Time) (Reminder, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Reminder{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	r, err := createReminderTx(ctx, tx, text, fireAt)
	if err != nil {
		return Reminder{}, err
	}
	if err := tx.Commit(); err != nil {
		return Reminder{}, fmt.Errorf("commit: %w", err)
	}
	return r, nil
}

func createReminderTx(ctx context.Context, tx *sql.Tx, text string, fireAt time.Time) (Reminder, error) {
	now := time.Now()
	res, err := tx.ExecContext(ctx,
		`INSERT INTO reminders (text, fire_at, notified, created_at) VALUES (?, ?, 0, ?)`,
		text, encodeTime(fireAt), encodeTime(now))
	if err != nil {
		return Reminder{}, fmt.Errorf("insert reminder: %w", err)
	}
	id, _ := res.LastInsertId()
	return Reminder{ID: id, Text: text, FireAt: fireAt.UTC(), CreatedAt: now.UTC()}, nil
}

// PendingReminders возвращает ещё не отработавшие напоминания по времени
// срабатывания.
func (s *Store) PendingReminders(ctx context.Context) ([]Reminder, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, text, fire_at, notified, created_at
		 FROM reminders WHERE notified = 0 ORDER BY fire_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("query reminders: %w", err)
	}
	defer rows.Close()
	return scanReminders(rows)
}

func (s *Store) DeleteReminder(ctx context.Context, id int64) error {
	return s.deleteByID(ctx, "reminders", id)
}

// ── Scheduler queries ────────────────────────────────────────────────────

// ClaimDueReminders выбирает созревшие напоминания и помечает их
// notified=1 в той же транзакции, что и выборка: двум гонящимся проходам
// одна сущность дважды не достанется. Просроченные за время простоя
// процесса тоже попадают в выборку (поздно — лучше, чем никогда).
func (s *Store) ClaimDueReminders(ctx context.Context, now time.Time) ([]Reminder, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx,
		`SELECT id, text, fire_at, notified, created_at
		 FROM reminders WHERE notified = 0 AND fire_at <= ? ORDER BY fire_at ASC`,
		encodeTime(now))
	if err != nil {
		return nil, fmt.Errorf("query due reminders: %w", err)
	}
	due, err := scanReminders(rows)
	rows.Close()
	if err != nil {
		return nil, err
	}

	for i := range due {
		if _, err := tx.ExecContext(ctx,
			`UPDATE reminders SET notified = 1 WHERE id = ? AND notified = 0`,
			due[i].ID); err != nil {
			return nil, fmt.Errorf("mark reminder notified: %w", err)
		}
		due[i].Notified = true
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return due, nil
}

// ClaimDueAppointments то же для встреч: созревшей считается встреча,
// у которой start_at минус упреждение уже наступил.
func (s *Store) ClaimDueAppointments(ctx context.Context, now time.Time) ([]Appointment, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx,
		`SELECT id, title, start_at, remind_lead_minutes, notified, created_at
		 FROM appointments
		 WHERE notified = 0
		   AND datetime(start_at, '-' || remind_lead_minutes || ' minutes') <= datetime(?)
		 ORDER BY start_at ASC`,
		encodeTime(now))
	if err != nil {
		return nil, fmt.Errorf("query due appointments: %w", err)
	}
	due, err := scanAppointments(rows)
	rows.Close()
	if err != nil {
		return nil, err
	}

	for i := range due {
		if _, err := tx.ExecContext(ctx,
			`UPDATE appointments SET notified = 1 WHERE id = ? AND notified = 0`,
			due[i].ID); err != nil {
			return nil, fmt.Errorf("mark appointment notified: %w", err)
		}
		due[i].Notified = true
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return due, nil
}

// ── Settings ─────────────────────────────────────────────────────────────

func (s *Store) Setting(ctx context.Context, key, def string) (string, error) {
	var v string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return def, nil
	}
	if err != nil {
		return "", fmt.Errorf("query setting: %w", err)
	}
	return v, nil
}

func (s *Store) SetSetting(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO settings (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value)
	if err != nil {
		return fmt.Errorf("save setting: %w", err)
	}
	return nil
}

// ── helpers ──────────────────────────────────────────────────────────────

func (s *Store) deleteByID(ctx context.Context, table string, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM `+table+` WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete from %s: %w", table, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%s id %d: %w", strings.TrimSuffix(table, "s"), id, ErrNotFound)
	}
	return nil
}

func scanReminders(rows *sql.Rows) ([]Reminder, error) {
	var out []Reminder
	for rows.Next() {
		var r Reminder
		var fire, created string
		if err := rows.Scan(&r.ID, &r.Text, &fire, &r.Notified, &created); err != nil {
			return nil, fmt.Errorf("scan reminder: %w", err)
		}
		r.FireAt = decodeTime(fire)
		r.CreatedAt = decodeTime(created)
		out = append(out, r)
	}
	return out, rows.Err()
}

func scanAppointments(rows *sql.Rows) ([]Appointment, error) {
	var out []Appointment
	for rows.Next() {
		var a Appointment
		var start, created string
		var leadMin int
		if err := rows.Scan(&a.ID, &a.Title, &start, &leadMin, &a.Notified, &created); err != nil {
			return nil, fmt.Errorf("scan appointment: %w", err)
		}
		a.StartAt = decodeTime(start)
		a.Lead = time.Duration(leadMin) * time.Minute
		a.CreatedAt = decodeTime(created)
		out = append(out, a)
	}
	return out, rows.Err()
}
