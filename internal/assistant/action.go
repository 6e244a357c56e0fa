package assistant

import (
	"errors"
	"time"
)

// Ошибки границы с LLM-бэкендом.
var (
	// ErrBackendUnavailable бэкенд недоступен после повторной попытки.
	ErrBackendUnavailable = errors.New("assistant backend unavailable")
	// ErrBackendTimeout бэкенд не ответил в отведённый срок.
	ErrBackendTimeout = errors.New("assistant backend timeout")
	// ErrUnrecognizedAction бэкенд вернул неизвестное или некорректное действие.
	ErrUnrecognizedAction = errors.New("unrecognized action")
)

// Action — закрытое множество типизированных действий, которые ассистент
// может породить из одной реплики. Всё, что не входит в набор, отклоняется
// на границе, а не протаскивается дальше.
type Action interface {
	isAction()
}

// SaveNote сохранить свободную заметку.
type SaveNote struct {
	Text string
}

// CreateList создать список с начальными пунктами.
type CreateList struct {
	Name  string
	Items []string
}

// AddItem добавить пункт в существующий список (по имени или id).
type AddItem struct {
	List string
	Text string
}

// CreateAppointment создать встречу. StartAt — абсолютный момент (UTC).
type CreateAppointment struct {
	Title   string
	StartAt time.Time
	Lead    time.Duration // упреждение уведомления
}

// CreateReminder создать напоминание. FireAt — абсолютный момент (UTC).
type CreateReminder struct {
	Text   string
	FireAt time.Time
}

// QueryNotes показать сохранённые заметки и списки.
type QueryNotes struct{}

// QueryAgenda показать предстоящие встречи и напоминания.
type QueryAgenda struct{}

func (SaveNote) isAction()          {}
func (CreateList) isAction()        {}
func (AddItem) isAction()           {}
func (CreateAppointment) isAction() {}
func (CreateReminder) isAction()    {}
func (QueryNotes) isAction()        {}
func (QueryAgenda) isAction()       {}

// Mutates сообщает, изменяет ли действие хранилище. Запросы чтения не
// участвуют в атомарном батче мутаций.
func Mutates(a Action) bool {
	switch a.(type) {
	case QueryNotes, QueryAgenda:
		return false
	}
	return true
}
