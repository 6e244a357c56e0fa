package inject

import (
	"errors"
	"fmt"
	"os"
	"time"
)

// ErrInjectionFailed вставка в активное окно не удалась; текст при этом
// не потерян — вызывающая сторона пишет его в файл восстановления.
var ErrInjectionFailed = errors.New("injection failed")

// Recovery журнал нераспределённых расшифровок. Только дозапись: файл
// никогда не усекается и не перечитывается программой.
type Recovery struct {
	path string
}

func NewRecovery(path string) *Recovery {
	return &Recovery{path: path}
}

// Append дописывает строку вида "[2026-08-26 14:03:11] текст" в конец файла.
func (r *Recovery) Append(text string) error {
	f, err := os.OpenFile(r.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open recovery file: %w", err)
	}
	defer f.Close()

	line := fmt.Sprintf("[%s] %s\n", time.Now().Format("2006-01-02 15:04:05"), text)
	if _, err := f.WriteString(line); err != nil {
		return fmt.Errorf("write recovery file: %w", err)
	}
	return nil
}
