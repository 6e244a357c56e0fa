package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"voicedesk/internal/config"
	"voicedesk/internal/store"
)

// Toaster показывает системное уведомление (подменяется в тестах).
type Toaster interface {
	Toast(title, message string) error
}

// Scheduler фоновый цикл доставки напоминаний: раз в интервал забирает
// из хранилища созревшие сущности и показывает тосты. Сущность помечается
// отработавшей в момент выборки, не после показа: лучше потерянный тост,
// чем бесконечные повторы одного и того же.
type Scheduler struct {
	store    *store.Store
	notifier Toaster
	logger   *zap.SugaredLogger

	interval    time.Duration
	tickTimeout time.Duration
	maxErrors   int
	now         func() time.Time

	consecutiveErrors int
}

func New(cfg *config.Config, st *store.Store, notifier Toaster, logger *zap.SugaredLogger) *Scheduler {
	return &Scheduler{
		store:       st,
		notifier:    notifier,
		logger:      logger,
		interval:    cfg.SweepInterval,
		tickTimeout: cfg.ProcessingTimeout,
		maxErrors:   cfg.MaxConsecutiveErrors,
		now:         time.Now,
	}
}

// Run крутит цикл до отмены контекста или достижения лимита подряд идущих
// ошибок. Первый прогон выполняется сразу: он догоняет всё, что созрело
// за время простоя процесса.
func (s *Scheduler) Run(ctx context.Context) error {
	base := s.interval
	if base <= 0 {
		base = 30 * time.Second
	}
	s.logger.Infow("Scheduler started", "interval", base.String())

	if err := s.tick(ctx); err != nil {
		if ctx.Err() != nil {
			return context.Cause(ctx)
		}
		s.consecutiveErrors++
		s.logger.Errorw("Catch-up sweep failed", "error", err)
	}

	t := time.NewTicker(base)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return context.Cause(ctx)
		case <-t.C:
		}

		if err := s.tick(ctx); err != nil {
			if ctx.Err() != nil {
				return context.Cause(ctx)
			}
			s.consecutiveErrors++
			s.logger.Errorw("Sweep failed", "error", err, "consecutiveErrors", s.consecutiveErrors)
			if s.consecutiveErrors >= max(1, s.maxErrors) {
				s.logger.Errorw("Stopping due to consecutive errors threshold", "threshold", s.maxErrors)
				return err
			}
		} else {
			s.consecutiveErrors = 0
		}
	}
}

func (s *Scheduler) tick(parent context.Context) error {
	timeout := s.tickTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeoutCause(parent, timeout, errors.New("sweep timeout"))
	defer cancel()

	now := s.now()

	reminders, err := s.store.ClaimDueReminders(ctx, now)
	if err != nil {
		return fmt.Errorf("claim reminders: %w", err)
	}
	for _, r := range reminders {
		s.logger.Infow("Reminder due", "id", r.ID, "fireAt", r.FireAt)
		if err := s.notifier.Toast("Reminder", r.Text); err != nil {
			// Сущность уже помечена, повторов не будет
			s.logger.Warnw("Failed to show reminder toast", "id", r.ID, "error", err)
		}
	}

	appointments, err := s.store.ClaimDueAppointments(ctx, now)
	if err != nil {
		return fmt.Errorf("claim appointments: %w", err)
	}
	for _, a := range appointments {
		s.logger.Infow("Appointment due", "id", a.ID, "startAt", a.StartAt)
		msg := fmt.Sprintf("%s at %s", a.Title, a.StartAt.Local().Format("15:04"))
		if err := s.notifier.Toast("Upcoming appointment", msg); err != nil {
			s.logger.Warnw("Failed to show appointment toast", "id", a.ID, "error", err)
		}
	}

	return nil
}
