package notify

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gen2brain/beeep"
	"go.uber.org/zap"

	"voicedesk/internal/config"
)

// ErrNotifyFailed системный тост показать не удалось. Сущность при этом
// остаётся помеченной как отработавшая: повторов не будет.
var ErrNotifyFailed = errors.New("notification failed")

// Notifier системные тосты плюс опциональные звуковые сигналы.
type Notifier struct {
	logger   *zap.SugaredLogger
	toasts   bool
	sounds   bool
	donePath string
	errPath  string
	ply      Player
}

func New(cfg *config.Config, logger *zap.SugaredLogger) *Notifier {
	return &Notifier{
		logger:   logger,
		toasts:   cfg.Notifications,
		sounds:   cfg.SoundEnabled,
		donePath: resolvePath(cfg.SoundDonePath),
		errPath:  resolvePath(cfg.SoundErrPath),
		ply:      NewPlayer(),
	}
}

// resolvePath относительные пути ищутся сначала рядом с бинарём,
// затем от рабочей директории.
func resolvePath(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	if exe, err := os.Executable(); err == nil {
		cand := filepath.Join(filepath.Dir(exe), p)
		if _, statErr := os.Stat(cand); statErr == nil {
			return cand
		}
	}
	return filepath.FromSlash(p)
}

// Toast показывает системное уведомление.
func (n *Notifier) Toast(title, message string) error {
	if !n.toasts {
		return nil
	}
	if err := beeep.Notify(title, message, ""); err != nil {
		return fmt.Errorf("%w: %v", ErrNotifyFailed, err)
	}
	return nil
}

// Done короткий сигнал успешного завершения диктовки или команды.
func (n *Notifier) Done() { n.play(n.donePath) }

// Error сигнал ошибки пайплайна.
func (n *Notifier) Error() { n.play(n.errPath) }

func (n *Notifier) play(path string) {
	if !n.sounds || path == "" {
		return
	}
	f, err := os.Open(path)
	if err != nil {
		n.logger.Warnw("failed to open cue sound", "path", path, "error", err)
		return
	}
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	if err := n.ply.Play(ext, f); err != nil {
		n.logger.Warnw("failed to play cue sound", "path", path, "error", err)
	}
}
