package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"go.uber.org/zap"

	"voicedesk/internal/app"
	"voicedesk/internal/assistant"
	"voicedesk/internal/audio"
	"voicedesk/internal/config"
	"voicedesk/internal/feed"
	"voicedesk/internal/hotkey"
	"voicedesk/internal/inject"
	"voicedesk/internal/notify"
	"voicedesk/internal/scheduler"
	"voicedesk/internal/session"
	"voicedesk/internal/store"
	"voicedesk/internal/stt"
)

func main() {
	cfg := config.NewConfig()

	logger, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	sugar := logger.Sugar()
	defer func() {
		if err := logger.Sync(); err != nil {
			sugar.Errorw("Failed to sync logger", "error", err)
		}
	}()

	sugar.Infow("Starting voicedesk",
		"dictationKey", cfg.DictationKey,
		"assistantKey", cfg.AssistantKey,
		"holdToRecord", cfg.HoldToRecord,
		"db", cfg.DBPath,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Хранилище
	st, err := store.Open(cfg.DBPath)
	if err != nil {
		sugar.Fatalw("Failed to open database", "path", cfg.DBPath, "error", err)
	}
	defer st.Close()

	// Аудиоподсистема
	if err := audio.Init(); err != nil {
		sugar.Fatalw("Failed to init audio subsystem", "error", err)
	}
	defer audio.Terminate()

	// Фид статусов
	hub := feed.NewHub(sugar)
	if cfg.Feed.Enabled {
		srv := feed.NewServer(cfg.Feed, hub, sugar)
		if err := srv.Start(ctx); err != nil {
			sugar.Errorw("Failed to start feed server", "error", err)
		}
	}

	var pub app.Publisher = hub

	recorder := audio.NewRecorder(cfg, sugar, func(rms float64) {
		pub.Publish(feed.LevelEvent(rms))
	})

	notifier := notify.New(cfg, sugar)

	// Клиент Ollama через OpenAI-совместимый API
	oClient := openai.NewClient(
		option.WithBaseURL(cfg.OllamaURL),
		option.WithAPIKey("ollama"),
	)
	resolver := assistant.New(&oClient, cfg, sugar)

	// Недоступный бэкенд не мешает диктовке: предупреждаем один раз
	pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
	if err := resolver.Ping(pingCtx); err != nil {
		sugar.Warnw("Assistant backend is not reachable, dictation still works", "url", cfg.OllamaURL, "error", err)
		_ = notifier.Toast(cfg.AppName, "Assistant backend unavailable, dictation still works")
	}
	pingCancel()

	pipeline := app.NewPipeline(cfg, app.Deps{
		Recorder:    recorder,
		Transcriber: stt.New(cfg, sugar),
		Resolver:    resolver,
		Store:       st,
		Notifier:    notifier,
		Recovery:    inject.NewRecovery(cfg.RecoveryFile),
		Feed:        pub,
	}, sugar)

	// Планировщик напоминаний. Его смерть фатальна: молча работающий
	// процесс без доставки напоминаний хуже остановленного.
	go func() {
		if err := scheduler.New(cfg, st, notifier, sugar).Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			sugar.Errorw("Scheduler stopped, shutting down", "error", err)
			_ = notifier.Toast(cfg.AppName, "Reminder delivery failed, shutting down")
			cancel()
		}
	}()

	// Горячие клавиши
	listener := hotkey.NewListener(sugar)
	if err := listener.Bind("dictation", cfg.DictationKey); err != nil {
		sugar.Fatalw("Invalid dictation hotkey", "spec", cfg.DictationKey, "error", err)
	}
	if err := listener.Bind("assistant", cfg.AssistantKey); err != nil {
		sugar.Fatalw("Invalid assistant hotkey", "spec", cfg.AssistantKey, "error", err)
	}
	if err := listener.Start(ctx); err != nil {
		sugar.Fatalw("Failed to start hotkey listener", "error", err)
	}

	go func() {
		for ev := range listener.Events() {
			switch ev.Name {
			case "dictation":
				pipeline.Post(session.KindDictation, ev.Down)
			case "assistant":
				pipeline.Post(session.KindAssistant, ev.Down)
			}
		}
	}()

	go func() {
		if err := pipeline.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			sugar.Errorw("Pipeline stopped", "error", err)
		}
	}()

	sugar.Infow("voicedesk is ready")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	select {
	case <-sigCh:
		sugar.Infow("Shutting down")
		cancel()
	case <-ctx.Done():
	}
	time.Sleep(200 * time.Millisecond)
}
