package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"voicedesk/internal/assistant"
	"voicedesk/internal/audio"
	"voicedesk/internal/config"
	"voicedesk/internal/feed"
	"voicedesk/internal/inject"
	"voicedesk/internal/session"
	"voicedesk/internal/store"
	"voicedesk/internal/stt"
)

// Recorder монопольный источник звука.
type Recorder interface {
	Start() error
	Stop() (audio.Buffer, error)
	Abort()
}

// Transcriber превращает звук в текст.
type Transcriber interface {
	Transcribe(ctx context.Context, samples []int16, sampleRate int) (string, error)
}

// ActionResolver превращает реплику в батч типизированных действий.
type ActionResolver interface {
	Resolve(ctx context.Context, transcript string) ([]assistant.Action, error)
}

// Repository подмножество хранилища, нужное пайплайну.
type Repository interface {
	ApplyActions(ctx context.Context, actions []assistant.Action) ([]string, error)
	Notes(ctx context.Context) ([]store.Note, error)
	Lists(ctx context.Context) ([]store.List, error)
	Items(ctx context.Context, listID int64) ([]store.ListItem, error)
	Agenda(ctx context.Context, from time.Time) ([]store.Appointment, error)
	PendingReminders(ctx context.Context) ([]store.Reminder, error)
}

// Notifier тосты и звуковые сигналы.
type Notifier interface {
	Toast(title, message string) error
	Done()
	Error()
}

// Publisher фид статусов для внешних наблюдателей.
type Publisher interface {
	Publish(e feed.Event)
}

type nopPublisher struct{}

func (nopPublisher) Publish(feed.Event) {}

// Deps зависимости пайплайна. Paste и Feed опциональны.
type Deps struct {
	Recorder    Recorder
	Transcriber Transcriber
	Resolver    ActionResolver
	Store       Repository
	Notifier    Notifier
	Recovery    *inject.Recovery
	Paste       func(text string) error
	Feed        Publisher
}

// Pipeline координационный цикл: единственный владелец трекера сессий.
// Все события (клавиши, таймауты, завершения воркеров) сериализуются
// через один канал; воркеры обработки работают в своих горутинах и
// отчитываются туда же.
type Pipeline struct {
	cfg      *config.Config
	tracker  *session.Tracker
	rec      Recorder
	stt      Transcriber
	resolver ActionResolver
	repo     Repository
	notifier Notifier
	recovery *inject.Recovery
	paste    func(text string) error
	pub      Publisher
	logger   *zap.SugaredLogger

	events chan event
}

func NewPipeline(cfg *config.Config, d Deps, logger *zap.SugaredLogger) *Pipeline {
	if d.Paste == nil {
		d.Paste = inject.Paste
	}
	if d.Feed == nil {
		d.Feed = nopPublisher{}
	}
	return &Pipeline{
		cfg:      cfg,
		tracker:  session.NewTracker(cfg.HoldToRecord),
		rec:      d.Recorder,
		stt:      d.Transcriber,
		resolver: d.Resolver,
		repo:     d.Store,
		notifier: d.Notifier,
		recovery: d.Recovery,
		paste:    d.Paste,
		pub:      d.Feed,
		logger:   logger,
		events:   make(chan event, 64),
	}
}

// Post подаёт сырое событие клавиши дорожки. Не блокирует вызывающего.
func (p *Pipeline) Post(kind session.Kind, down bool) {
	typ := evKeyUp
	if down {
		typ = evKeyDown
	}
	p.post(event{typ: typ, kind: kind})
}

func (p *Pipeline) post(ev event) {
	select {
	case p.events <- ev:
	default:
		p.logger.Warnw("pipeline queue full, event dropped", "type", ev.typ, "kind", ev.kind.String())
	}
}

// Run крутит цикл до отмены контекста.
func (p *Pipeline) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			p.rec.Abort()
			return context.Cause(ctx)
		case ev := <-p.events:
			p.handle(ctx, ev)
		}
	}
}

func (p *Pipeline) handle(ctx context.Context, ev event) {
	switch ev.typ {
	case evKeyDown:
		switch p.tracker.KeyDown(ev.kind, time.Now()) {
		case session.DecisionStartCapture:
			p.startCapture(ev.kind)
		case session.DecisionStopCapture:
			p.stopCapture(ctx, ev.kind)
		}
	case evKeyUp:
		if p.tracker.KeyUp(ev.kind, time.Now()) == session.DecisionStopCapture {
			p.stopCapture(ctx, ev.kind)
		}
	case evCaptureTimeout:
		if p.tracker.Timeout(ev.kind, ev.gen) == session.DecisionStopCapture {
			p.logger.Warnw("capture hit max duration, forcing stop", "kind", ev.kind.String())
			p.stopCapture(ctx, ev.kind)
		}
	case evDone:
		p.tracker.Finish(ev.kind, ev.gen)
	}
}

func (p *Pipeline) startCapture(kind session.Kind) {
	if err := p.rec.Start(); err != nil {
		p.tracker.Abort(kind)
		if errors.Is(err, audio.ErrBusy) {
			p.logger.Warnw("microphone busy, capture rejected", "kind", kind.String())
			_ = p.notifier.Toast(p.cfg.AppName, "Microphone is busy")
			return
		}
		p.logger.Errorw("failed to open microphone", "kind", kind.String(), "error", err)
		_ = p.notifier.Toast(p.cfg.AppName, "Microphone unavailable")
		p.notifier.Error()
		p.pub.Publish(feed.NewEvent("error", kind.String(), "microphone unavailable"))
		return
	}

	tr := p.tracker.Track(kind)
	p.logger.Infow("capture started", "kind", kind.String(), "session", tr.ID)
	p.pub.Publish(feed.NewEvent("capturing", kind.String(), ""))

	gen := tr.Gen
	time.AfterFunc(p.cfg.MaxCaptureDuration, func() {
		p.post(event{typ: evCaptureTimeout, kind: kind, gen: gen})
	})
}

func (p *Pipeline) stopCapture(ctx context.Context, kind session.Kind) {
	gen := p.tracker.Track(kind).Gen

	buf, err := p.rec.Stop()
	if err != nil {
		p.tracker.Abort(kind)
		p.logger.Errorw("failed to stop capture", "kind", kind.String(), "error", err)
		p.pub.Publish(feed.NewEvent("error", kind.String(), "capture failed"))
		return
	}

	// Слишком короткие записи — случайные касания клавиши
	if buf.Duration() < p.cfg.MinCaptureDuration {
		p.tracker.Abort(kind)
		p.logger.Infow("capture too short, discarded", "kind", kind.String(), "duration", buf.Duration())
		p.pub.Publish(feed.NewEvent("done", kind.String(), "too short"))
		return
	}

	p.logger.Infow("capture stopped", "kind", kind.String(), "duration", buf.Duration())
	p.pub.Publish(feed.NewEvent("processing", kind.String(), ""))
	go p.process(ctx, kind, gen, buf)
}

// process воркер одной сессии. Работает вне координационного цикла и
// завершается событием evDone своего поколения.
func (p *Pipeline) process(parent context.Context, kind session.Kind, gen uint64, buf audio.Buffer) {
	defer p.post(event{typ: evDone, kind: kind, gen: gen})

	ctx, cancel := context.WithTimeoutCause(parent, p.cfg.ProcessingTimeout, errors.New("processing timeout"))
	defer cancel()

	text, err := p.stt.Transcribe(ctx, buf.Samples, buf.SampleRate)
	if err != nil {
		if errors.Is(err, stt.ErrNoSpeech) {
			// Тишина отбрасывается молча
			p.logger.Infow("no speech recognized", "kind", kind.String())
			p.pub.Publish(feed.NewEvent("done", kind.String(), "no speech"))
			return
		}
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			p.fail(kind, "Transcription timed out", err)
			return
		}
		p.fail(kind, "Transcription failed", err)
		return
	}
	p.logger.Infow("transcript ready", "kind", kind.String(), "chars", len(text))

	switch kind {
	case session.KindDictation:
		p.deliver(kind, text)
	case session.KindAssistant:
		p.runAssistant(ctx, text)
	}
}

// deliver вставляет текст в активное окно; при неудаче текст уходит в
// файл восстановления, чтобы диктовка никогда не пропадала.
func (p *Pipeline) deliver(kind session.Kind, text string) {
	if err := p.paste(text); err != nil {
		p.logger.Errorw("injection failed, saving to recovery file", "error", err)
		msg := "Paste failed, text saved to recovery file"
		if rerr := p.recovery.Append(text); rerr != nil {
			p.logger.Errorw("failed to write recovery file", "error", rerr)
			msg = "Paste failed and recovery file is not writable, text was lost"
		}
		_ = p.notifier.Toast(p.cfg.AppName, msg)
		p.notifier.Error()
		p.pub.Publish(feed.NewEvent("error", kind.String(), "injection failed"))
		return
	}
	p.notifier.Done()
	p.pub.Publish(feed.NewEvent("done", kind.String(), ""))
}

func (p *Pipeline) runAssistant(ctx context.Context, text string) {
	kind := session.KindAssistant

	actions, err := p.resolver.Resolve(ctx, text)
	if err != nil {
		switch {
		case errors.Is(err, assistant.ErrBackendTimeout):
			p.fail(kind, "Assistant timed out", err)
		case errors.Is(err, assistant.ErrBackendUnavailable):
			p.fail(kind, "Assistant backend unavailable", err)
		case errors.Is(err, assistant.ErrUnrecognizedAction):
			p.fail(kind, "Could not recognize a supported command", err)
		default:
			p.fail(kind, "Assistant failed", err)
		}
		return
	}

	var mutations, queries []assistant.Action
	for _, a := range actions {
		if assistant.Mutates(a) {
			mutations = append(mutations, a)
		} else {
			queries = append(queries, a)
		}
	}

	var parts []string
	if len(mutations) > 0 {
		confirms, err := p.repo.ApplyActions(ctx, mutations)
		if err != nil {
			p.fail(kind, "Command failed, nothing was saved", err)
			return
		}
		parts = append(parts, confirms...)
	}

	var answers []string
	for _, q := range queries {
		switch q.(type) {
		case assistant.QueryNotes:
			notes, err := p.repo.Notes(ctx)
			if err != nil {
				p.fail(kind, "Query failed", err)
				return
			}
			lists, err := p.repo.Lists(ctx)
			if err != nil {
				p.fail(kind, "Query failed", err)
				return
			}
			items := make(map[int64][]store.ListItem, len(lists))
			for _, l := range lists {
				its, err := p.repo.Items(ctx, l.ID)
				if err != nil {
					p.fail(kind, "Query failed", err)
					return
				}
				items[l.ID] = its
			}
			answers = append(answers, formatNotes(notes, lists, items))
		case assistant.QueryAgenda:
			appts, err := p.repo.Agenda(ctx, time.Now())
			if err != nil {
				p.fail(kind, "Query failed", err)
				return
			}
			reminders, err := p.repo.PendingReminders(ctx)
			if err != nil {
				p.fail(kind, "Query failed", err)
				return
			}
			answers = append(answers, formatAgenda(appts, reminders))
		}
	}

	if len(parts) > 0 {
		_ = p.notifier.Toast(p.cfg.AppName, strings.Join(parts, "; "))
	}
	if len(answers) > 0 {
		// Ответы на запросы вставляются как обычная диктовка
		p.deliver(kind, strings.Join(answers, "\n\n"))
		return
	}
	p.notifier.Done()
	p.pub.Publish(feed.NewEvent("done", kind.String(), ""))
}

func (p *Pipeline) fail(kind session.Kind, userMsg string, err error) {
	p.logger.Errorw(userMsg, "kind", kind.String(), "error", err)
	_ = p.notifier.Toast(p.cfg.AppName, userMsg)
	p.notifier.Error()
	p.pub.Publish(feed.NewEvent("error", kind.String(), userMsg))
}

func formatNotes(notes []store.Note, lists []store.List, items map[int64][]store.ListItem) string {
	if len(notes) == 0 && len(lists) == 0 {
		return "No notes yet."
	}
	var b strings.Builder
	if len(notes) > 0 {
		b.WriteString("Notes:\n")
		for _, n := range notes {
			fmt.Fprintf(&b, "- [%s] %s\n", n.CreatedAt.Local().Format("2006-01-02 15:04"), n.Text)
		}
	}
	if len(lists) > 0 {
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString("Lists:\n")
		for _, l := range lists {
			fmt.Fprintf(&b, "- %s\n", l.Name)
			for _, it := range items[l.ID] {
				mark := " "
				if it.Done {
					mark = "x"
				}
				fmt.Fprintf(&b, "  [%s] %s\n", mark, it.Text)
			}
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatAgenda(appts []store.Appointment, reminders []store.Reminder) string {
	if len(appts) == 0 && len(reminders) == 0 {
		return "Nothing on the agenda."
	}
	var b strings.Builder
	if len(appts) > 0 {
		b.WriteString("Agenda:\n")
		for _, a := range appts {
			fmt.Fprintf(&b, "- %s %s\n", a.StartAt.Local().Format("2006-01-02 15:04"), a.Title)
		}
	}
	if len(reminders) > 0 {
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString("Reminders:\n")
		for _, r := range reminders {
			fmt.Fprintf(&b, "- %s %s\n", r.FireAt.Local().Format("2006-01-02 15:04"), r.Text)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
