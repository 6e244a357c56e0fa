package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"go.uber.org/zap"

	"voicedesk/internal/config"
)

// completer абстрагирует один вызов chat-completions (подменяется в тестах).
type completer interface {
	complete(ctx context.Context, system, user string) (*openai.ChatCompletion, error)
}

// Resolver превращает реплику в батч типизированных действий через
// function calling бэкенда. Валидация строгая: всё вне фиксированной
// схемы отклоняется с ErrUnrecognizedAction.
type Resolver struct {
	llm         completer
	pastTol     time.Duration
	defaultLead time.Duration
	now         func() time.Time
	logger      *zap.SugaredLogger
}

func New(client *openai.Client, cfg *config.Config, logger *zap.SugaredLogger) *Resolver {
	return &Resolver{
		llm:         &openaiCompleter{client: client, model: cfg.OllamaModel},
		pastTol:     cfg.PastTolerance,
		defaultLead: cfg.AppointmentLead,
		now:         time.Now,
		logger:      logger,
	}
}

// Resolve выполняет один однотуровый вызов бэкенда и возвращает батч
// действий. Повторяет вызов не более одного раза при транзиентной сетевой
// ошибке, затем возвращает ErrBackendUnavailable.
func (r *Resolver) Resolve(ctx context.Context, transcript string) ([]Action, error) {
	now := r.now()
	system := systemPrompt(now)

	var resp *openai.ChatCompletion
	var err error
	for attempt := 0; attempt < 2; attempt++ {
		resp, err = r.llm.complete(ctx, system, transcript)
		if err == nil {
			break
		}
		if ctx.Err() != nil || errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %v", ErrBackendTimeout, err)
		}
		var apierr *openai.Error
		if errors.As(err, &apierr) {
			// Ответ от сервера пришёл — повтор не поможет
			return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
		}
		r.logger.Warnw("LLM call failed, retrying once", "error", err)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}

	return r.extract(resp, now)
}

// extract вытаскивает упорядоченный список tool-вызовов из ответа и
// валидирует каждый. Ни один частично корректный батч не проходит:
// одна некорректная запись отклоняет всю реплику.
func (r *Resolver) extract(resp *openai.ChatCompletion, now time.Time) ([]Action, error) {
	if resp == nil || len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: empty completion", ErrUnrecognizedAction)
	}
	msg := resp.Choices[0].Message

	var actions []Action
	for _, tc := range msg.ToolCalls {
		a, err := r.parseAction(tc.Function.Name, []byte(tc.Function.Arguments), now)
		if err != nil {
			return nil, err
		}
		actions = append(actions, a)
	}

	if len(actions) == 0 {
		// Некоторые модели кладут вызов функции в content как JSON
		if a, ok := r.parseInline(strings.TrimSpace(msg.Content), now); ok {
			actions = append(actions, a)
		}
	}
	if len(actions) == 0 {
		return nil, fmt.Errorf("%w: no tool call in response", ErrUnrecognizedAction)
	}
	return actions, nil
}

func (r *Resolver) parseInline(content string, now time.Time) (Action, bool) {
	if content == "" || !strings.HasPrefix(content, "{") {
		return nil, false
	}
	var fc struct {
		Function  string          `json:"function"`
		Arguments json.RawMessage `json:"arguments"`
	}
	if err := json.Unmarshal([]byte(content), &fc); err != nil || fc.Function == "" {
		return nil, false
	}
	a, err := r.parseAction(fc.Function, fc.Arguments, now)
	if err != nil {
		return nil, false
	}
	return a, true
}

func (r *Resolver) parseAction(name string, args []byte, now time.Time) (Action, error) {
	if len(args) == 0 {
		args = []byte("{}")
	}
	switch name {
	case "save_note":
		var p struct {
			Text string `json:"text"`
		}
		if err := json.Unmarshal(args, &p); err != nil || strings.TrimSpace(p.Text) == "" {
			return nil, badArgs(name, err)
		}
		return SaveNote{Text: strings.TrimSpace(p.Text)}, nil

	case "create_list":
		var p struct {
			Name  string   `json:"name"`
			Items []string `json:"items"`
		}
		if err := json.Unmarshal(args, &p); err != nil || strings.TrimSpace(p.Name) == "" {
			return nil, badArgs(name, err)
		}
		items := make([]string, 0, len(p.Items))
		for _, it := range p.Items {
			if it = strings.TrimSpace(it); it != "" {
				items = append(items, it)
			}
		}
		return CreateList{Name: strings.TrimSpace(p.Name), Items: items}, nil

	case "add_item":
		var p struct {
			List string `json:"list_name_or_id"`
			Text string `json:"text"`
		}
		if err := json.Unmarshal(args, &p); err != nil ||
			strings.TrimSpace(p.List) == "" || strings.TrimSpace(p.Text) == "" {
			return nil, badArgs(name, err)
		}
		return AddItem{List: strings.TrimSpace(p.List), Text: strings.TrimSpace(p.Text)}, nil

	case "create_appointment":
		var p struct {
			Title string `json:"title"`
			Start string `json:"start_at"`
			Lead  *int   `json:"remind_lead_minutes"`
		}
		if err := json.Unmarshal(args, &p); err != nil || strings.TrimSpace(p.Title) == "" {
			return nil, badArgs(name, err)
		}
		start, err := r.parseAbsolute(p.Start, now)
		if err != nil {
			return nil, fmt.Errorf("%w: create_appointment: %v", ErrUnrecognizedAction, err)
		}
		lead := r.defaultLead
		if p.Lead != nil {
			if *p.Lead < 0 {
				return nil, fmt.Errorf("%w: create_appointment: negative lead", ErrUnrecognizedAction)
			}
			lead = time.Duration(*p.Lead) * time.Minute
		}
		return CreateAppointment{Title: strings.TrimSpace(p.Title), StartAt: start, Lead: lead}, nil

	case "create_reminder":
		var p struct {
			Text string `json:"text"`
			Fire string `json:"fire_at"`
		}
		if err := json.Unmarshal(args, &p); err != nil || strings.TrimSpace(p.Text) == "" {
			return nil, badArgs(name, err)
		}
		fire, err := r.parseAbsolute(p.Fire, now)
		if err != nil {
			return nil, fmt.Errorf("%w: create_reminder: %v", ErrUnrecognizedAction, err)
		}
		return CreateReminder{Text: strings.TrimSpace(p.Text), FireAt: fire}, nil

	case "query_notes":
		return QueryNotes{}, nil
	case "query_agenda":
		return QueryAgenda{}, nil
	}
	return nil, fmt.Errorf("%w: unknown tool %q", ErrUnrecognizedAction, name)
}

// parseAbsolute принимает только абсолютные метки времени. Метка, ушедшая
// в прошлое дальше допуска, отклоняется: так ловятся ошибки разрешения
// относительных выражений на стороне бэкенда.
func (r *Resolver) parseAbsolute(s string, now time.Time) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, errors.New("empty timestamp")
	}
	layouts := []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02T15:04"}
	var t time.Time
	var err error
	for _, l := range layouts {
		if l == time.RFC3339 {
			t, err = time.Parse(l, s)
		} else {
			t, err = time.ParseInLocation(l, s, time.Local)
		}
		if err == nil {
			break
		}
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("not an absolute datetime: %q", s)
	}
	if t.Before(now.Add(-r.pastTol)) {
		return time.Time{}, fmt.Errorf("timestamp %s already elapsed", t.Format(time.RFC3339))
	}
	return t.UTC(), nil
}

func badArgs(tool string, err error) error {
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrUnrecognizedAction, tool, err)
	}
	return fmt.Errorf("%w: %s: missing required fields", ErrUnrecognizedAction, tool)
}

// openaiCompleter реальный клиент: Ollama отдаёт OpenAI-совместимый API,
// поэтому используется штатный клиент с переопределённым base URL.
type openaiCompleter struct {
	client *openai.Client
	model  string
}

func (c *openaiCompleter) complete(ctx context.Context, system, user string) (*openai.ChatCompletion, error) {
	return c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: c.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(user),
		},
		Tools: toolDefs(),
	})
}

// Ping быстрая проверка доступности бэкенда на старте. Возвращает ошибку,
// если бэкенд не отвечает: вызывающий показывает разовое предупреждение.
func (r *Resolver) Ping(ctx context.Context) error {
	oc, ok := r.llm.(*openaiCompleter)
	if !ok {
		return nil
	}
	_, err := oc.client.Models.List(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	return nil
}
