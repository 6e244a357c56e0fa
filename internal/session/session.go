package session

import "time"

// Kind различает две независимые дорожки горячих клавиш.
type Kind int

const (
	KindDictation Kind = iota + 1
	KindAssistant
)

func (k Kind) String() string {
	switch k {
	case KindDictation:
		return "dictation"
	case KindAssistant:
		return "assistant"
	}
	return "unknown"
}

// State состояние одной дорожки. Idle — единственное состояние покоя:
// из Processing дорожка всегда возвращается в Idle, независимо от исхода.
type State int

const (
	StateIdle State = iota
	StateCapturing
	StateProcessing
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateCapturing:
		return "capturing"
	case StateProcessing:
		return "processing"
	}
	return "unknown"
}

// Track снимок состояния одной дорожки.
type Track struct {
	Kind      Kind
	State     State
	Gen       uint64 // поколение сессии; растёт на каждом старте захвата
	ID        string // идентификатор текущей сессии
	StartedAt time.Time
}

// Decision говорит координационному циклу, какой побочный эффект выполнить.
// Сам трекер эффектов не производит.
type Decision int

const (
	DecisionNone         Decision = iota
	DecisionStartCapture          // открыть микрофон и начать запись
	DecisionStopCapture           // остановить запись и запустить обработку
)
