package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"voicedesk/internal/assistant"
)

// ApplyActions применяет пакет мутаций одной транзакцией: либо всё, либо
// ничего. Возвращает строки подтверждений в порядке действий. Действия
// чтения в пакет не входят — их отсекает вызывающая сторона.
func (s *Store) ApplyActions(ctx context.Context, actions []assistant.Action) ([]string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var confirms []string
	for _, a := range actions {
		switch act := a.(type) {
		case assistant.SaveNote:
			n, err := createNoteTx(ctx, tx, act.Text)
			if err != nil {
				return nil, err
			}
			confirms = append(confirms, fmt.Sprintf("Saved note #%d", n.ID))
		case assistant.CreateList:
			l, err := createListTx(ctx, tx, act.Name, act.Items)
			if err != nil {
				return nil, err
			}
			confirms = append(confirms, fmt.Sprintf("Created list %q with %d items", l.Name, len(act.Items)))
		case assistant.AddItem:
			it, err := addItemTx(ctx, tx, act.List, act.Text)
			if err != nil {
				return nil, err
			}
			confirms = append(confirms, fmt.Sprintf("Added %q to list #%d", it.Text, it.ListID))
		case assistant.CreateAppointment:
			ap, err := createAppointmentTx(ctx, tx, act.Title, act.StartAt, act.Lead)
			if err != nil {
				return nil, err
			}
			confirms = append(confirms, fmt.Sprintf("Appointment %q at %s, reminder %d min before",
				ap.Title, ap.StartAt.Local().Format("2006-01-02 15:04"), int(ap.Lead.Minutes())))
		case assistant.CreateReminder:
			r, err := createReminderTx(ctx, tx, act.Text, act.FireAt)
			if err != nil {
				return nil, err
			}
			confirms = append(confirms, fmt.Sprintf("Reminder %q at %s",
				r.Text, r.FireAt.Local().Format("2006-01-02 15:04")))
		default:
			return nil, fmt.Errorf("action %T is not a mutation", a)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return confirms, nil
}

func createNoteTx(ctx context.Context, tx *sql.Tx, text string) (Note, error) {
	now := time.Now()
	res, err := tx.ExecContext(ctx,
		`INSERT INTO notes (text, created_at) VALUES (?, ?)`,
		text, encodeTime(now))
	if err != nil {
		return Note{}, fmt.Errorf("insert note: %w", err)
	}
	id, _ := res.LastInsertId()
	return Note{ID: id, Text: text, CreatedAt: now.UTC()}, nil
}
