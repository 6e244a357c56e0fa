package hotkey

import (
	"fmt"

	"go.uber.org/zap"
)

type binding struct {
	name  string
	combo Combo
}

// Listener глобальный слушатель комбинаций. Сначала Bind для каждой
// комбинации, затем Start; события приходят в Events.
type Listener struct {
	bindings []binding
	out      chan Event
	logger   *zap.SugaredLogger
}

func NewListener(logger *zap.SugaredLogger) *Listener {
	return &Listener{
		out:    make(chan Event, 16),
		logger: logger,
	}
}

// Bind регистрирует комбинацию под именем, с которым будут приходить события.
func (l *Listener) Bind(name, spec string) error {
	c, err := Parse(spec)
	if err != nil {
		return err
	}
	for _, b := range l.bindings {
		if b.combo == c {
			return fmt.Errorf("hotkey %q already bound to %q", spec, b.name)
		}
	}
	l.bindings = append(l.bindings, binding{name: name, combo: c})
	return nil
}

func (l *Listener) Events() <-chan Event {
	return l.out
}

// emit не блокирует перехватчик: при переполненной очереди событие
// теряется с предупреждением, зависшую сессию добьёт таймаут захвата.
func (l *Listener) emit(e Event) {
	select {
	case l.out <- e:
	default:
		l.logger.Warnw("hotkey event dropped, queue is full", "name", e.Name, "down", e.Down)
	}
}
