package store

import "time"

// Note свободная заметка. Неизменяема после создания (кроме удаления).
type Note struct {
	ID        int64
	Text      string
	CreatedAt time.Time
}

// List именованный список. Имя уникально среди живых списков.
type List struct {
	ID        int64
	Name      string
	CreatedAt time.Time
}

// ListItem пункт списка. Принадлежит ровно одному списку и удаляется
// каскадно вместе с ним.
type ListItem struct {
	ID     int64
	ListID int64
	Text   string
	Done   bool
}

// Appointment встреча. StartAt хранится как абсолютный момент в UTC.
// Notified переключается только false→true и никогда не сбрасывается.
type Appointment struct {
	ID        int64
	Title     string
	StartAt   time.Time
	Lead      time.Duration // за сколько до начала уведомлять
	Notified  bool
	CreatedAt time.Time
}

// Reminder напоминание. Та же монотонность Notified, что и у Appointment.
type Reminder struct {
	ID        int64
	Text      string
	FireAt    time.Time
	Notified  bool
	CreatedAt time.Time
}
