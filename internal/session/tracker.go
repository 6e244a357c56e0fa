package session

import (
	"time"

	"github.com/google/uuid"
)

// Tracker держит две независимые дорожки (диктовка и ассистент) и
// переводит сырые key-down/key-up в переходы Idle→Capturing→Processing→Idle.
// Не потокобезопасен: владелец — единственный координационный цикл.
type Tracker struct {
	hold   bool // true: удержание (press=старт, release=стоп); false: переключение по нажатию
	tracks map[Kind]*Track
}

func NewTracker(hold bool) *Tracker {
	return &Tracker{
		hold: hold,
		tracks: map[Kind]*Track{
			KindDictation: {Kind: KindDictation, State: StateIdle},
			KindAssistant: {Kind: KindAssistant, State: StateIdle},
		},
	}
}

// Track возвращает снимок дорожки.
func (t *Tracker) Track(kind Kind) Track {
	return *t.tracks[kind]
}

// KeyDown обрабатывает нажатие клавиши дорожки.
// Повторные нажатия при Capturing/Processing игнорируются (дебаунс),
// авто-повтор зажатой клавиши сюда же.
func (t *Tracker) KeyDown(kind Kind, now time.Time) Decision {
	tr := t.tracks[kind]
	switch tr.State {
	case StateIdle:
		return t.begin(tr, now)
	case StateCapturing:
		if !t.hold {
			// Toggle-режим: повторное нажатие завершает запись
			tr.State = StateProcessing
			return DecisionStopCapture
		}
		return DecisionNone
	case StateProcessing:
		return DecisionNone
	}
	return DecisionNone
}

// KeyUp обрабатывает отпускание клавиши дорожки.
// Отпускание без парного нажатия игнорируется.
func (t *Tracker) KeyUp(kind Kind, now time.Time) Decision {
	if !t.hold {
		// В toggle-режиме release ничего не значит
		return DecisionNone
	}
	tr := t.tracks[kind]
	if tr.State != StateCapturing {
		return DecisionNone
	}
	tr.State = StateProcessing
	return DecisionStopCapture
}

// Timeout принудительно завершает затянувшийся захват.
// Срабатывает только если дорожка всё ещё пишет ту же сессию:
// устаревшие таймеры отбрасываются по поколению.
func (t *Tracker) Timeout(kind Kind, gen uint64) Decision {
	tr := t.tracks[kind]
	if tr.State != StateCapturing || tr.Gen != gen {
		return DecisionNone
	}
	tr.State = StateProcessing
	return DecisionStopCapture
}

// Finish завершает обработку: дорожка возвращается в Idle вне зависимости
// от исхода пайплайна. Завершения чужих поколений игнорируются.
func (t *Tracker) Finish(kind Kind, gen uint64) bool {
	tr := t.tracks[kind]
	if tr.Gen != gen || tr.State == StateIdle {
		return false
	}
	tr.State = StateIdle
	return true
}

// Abort откатывает дорожку в Idle немедленно (микрофон не открылся,
// запись оказалась пустой и т.п.).
func (t *Tracker) Abort(kind Kind) {
	tr := t.tracks[kind]
	tr.State = StateIdle
}

func (t *Tracker) begin(tr *Track, now time.Time) Decision {
	tr.State = StateCapturing
	tr.Gen++
	tr.ID = uuid.NewString()
	tr.StartedAt = now
	return DecisionStartCapture
}
