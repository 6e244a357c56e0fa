package config

import (
	"flag"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
)

type Config struct {
	DebugMode bool   `env:"DEBUG_MODE"` // Режим дебага
	AppName   string `env:"APP_NAME"`   // Имя приложения для тостов и фида

	// Горячие клавиши
	DictationKey string `env:"DICTATION_KEY"`  // Клавиша диктовки (удерживать), напр. "altgr"
	AssistantKey string `env:"ASSISTANT_KEY"`  // Клавиша ассистента, напр. "ctrl+r"
	HoldToRecord bool   `env:"HOLD_TO_RECORD"` // true: press=старт, release=стоп; false: toggle по нажатию

	// Захват аудио
	SampleRate         int           `env:"SAMPLE_RATE"`          // Частота дискретизации, Гц
	MinCaptureDuration time.Duration `env:"MIN_CAPTURE_DURATION"` // Короче — считаем случайным нажатием
	MaxCaptureDuration time.Duration `env:"MAX_CAPTURE_DURATION"` // Принудительный стоп затянувшегося захвата
	ProcessingTimeout  time.Duration `env:"PROCESSING_TIMEOUT"`   // Потолок на транскрипцию+LLM одной сессии

	// STT (whisper-server)
	WhisperURL      string        `env:"WHISPER_URL"`      // Endpoint whisper-server /inference
	WhisperLanguage string        `env:"WHISPER_LANGUAGE"` // Язык распознавания, напр. "en"
	WhisperTimeout  time.Duration `env:"WHISPER_TIMEOUT"`  // Таймаут одного запроса STT

	// LLM (Ollama, OpenAI-совместимый endpoint)
	OllamaURL     string        `env:"OLLAMA_URL"`     // База /v1, напр. http://localhost:11434/v1
	OllamaModel   string        `env:"OLLAMA_MODEL"`   // Имя модели с поддержкой tools
	OllamaTimeout time.Duration `env:"OLLAMA_TIMEOUT"` // Таймаут одного запроса LLM
	PastTolerance time.Duration `env:"PAST_TOLERANCE"` // Насколько «в прошлом» ещё принимаем метки времени

	// Хранилище
	DBPath       string `env:"DB_PATH"`       // Путь к файлу sqlite
	RecoveryFile string `env:"RECOVERY_FILE"` // Файл восстановления при сбое вставки

	// Планировщик уведомлений
	SweepInterval        time.Duration `env:"SWEEP_INTERVAL"`         // Интервал между проходами
	AppointmentLead      time.Duration `env:"APPOINTMENT_LEAD"`       // Упреждение встречи по умолчанию
	MaxConsecutiveErrors int           `env:"MAX_CONSECUTIVE_ERRORS"` // Сколько ошибок подряд до остановки

	// Уведомления и звук
	Notifications bool   `env:"NOTIFICATIONS"`    // Показывать тосты о состоянии пайплайна
	SoundEnabled  bool   `env:"SOUND_ENABLED"`    // Проигрывать звуковые сигналы
	SoundDonePath string `env:"SOUND_DONE_PATH"`  // Звук успешного завершения
	SoundErrPath  string `env:"SOUND_ERROR_PATH"` // Звук ошибки

	// Фид статусов для оверлея/трея (внешние потребители)
	Feed FeedConfig
}

// FeedConfig конфигурация локального websocket-фида статусов.
type FeedConfig struct {
	Enabled  bool   `env:"FEED_ENABLED"`   // Главный флаг включения/выключения
	BindAddr string `env:"FEED_BIND_ADDR"` // Адрес слушателя, напр. 127.0.0.1:3456
	Path     string `env:"FEED_PATH"`      // HTTP-путь апгрейда, напр. "/events"
}

// Defaults возвращает конфигурацию с предустановленными значениями по умолчанию.
// Эти значения перекрываются .env, переменными окружения и флагами CLI.
func Defaults() *Config {
	return &Config{
		DebugMode: false,
		AppName:   "Voicedesk",

		DictationKey: "altgr",
		AssistantKey: "ctrl+r",
		HoldToRecord: true,

		SampleRate:         16000,
		MinCaptureDuration: 500 * time.Millisecond,
		MaxCaptureDuration: 60 * time.Second,
		ProcessingTimeout:  30 * time.Second,

		WhisperURL:      "http://127.0.0.1:8080/inference",
		WhisperLanguage: "en",
		WhisperTimeout:  25 * time.Second,

		OllamaURL:     "http://localhost:11434/v1",
		OllamaModel:   "gpt-oss:120b-cloud",
		OllamaTimeout: 20 * time.Second,
		PastTolerance: 5 * time.Minute,

		DBPath:       "voicedesk.db",
		RecoveryFile: "recovery_notes.txt",

		SweepInterval:        30 * time.Second,
		AppointmentLead:      15 * time.Minute,
		MaxConsecutiveErrors: 3,

		Notifications: true,
		SoundEnabled:  false,
		SoundDonePath: "sound/done.wav",
		SoundErrPath:  "sound/error.wav",

		Feed: FeedConfig{
			Enabled:  false,
			BindAddr: "127.0.0.1:3456",
			Path:     "/events",
		},
	}
}

// NewConfig загружает конфигурацию приложения.
func NewConfig() *Config {
	_ = godotenv.Load()

	// Стартуем с дефолтов, затем перекрываем .env/окружением и флагами
	cfg := Defaults()
	_ = env.Parse(cfg)

	flag.BoolVar(&cfg.DebugMode, "debug-mode", cfg.DebugMode, "включить режим дебага")
	flag.StringVar(&cfg.DictationKey, "dictation-key", cfg.DictationKey, "клавиша диктовки, напр. altgr или f8")
	flag.StringVar(&cfg.AssistantKey, "assistant-key", cfg.AssistantKey, "клавиша ассистента, напр. ctrl+r")
	flag.BoolVar(&cfg.HoldToRecord, "hold-to-record", cfg.HoldToRecord, "удержание (true) или переключение (false)")
	flag.IntVar(&cfg.SampleRate, "sample-rate", cfg.SampleRate, "частота дискретизации захвата, Гц")
	flag.DurationVar(&cfg.MinCaptureDuration, "min-capture", cfg.MinCaptureDuration, "минимальная длительность записи, напр. 500ms")
	flag.DurationVar(&cfg.MaxCaptureDuration, "max-capture", cfg.MaxCaptureDuration, "потолок длительности записи, напр. 60s")
	flag.DurationVar(&cfg.ProcessingTimeout, "processing-timeout", cfg.ProcessingTimeout, "потолок обработки одной сессии")
	flag.StringVar(&cfg.WhisperURL, "whisper-url", cfg.WhisperURL, "endpoint whisper-server")
	flag.StringVar(&cfg.WhisperLanguage, "whisper-language", cfg.WhisperLanguage, "язык распознавания")
	flag.DurationVar(&cfg.WhisperTimeout, "whisper-timeout", cfg.WhisperTimeout, "таймаут запроса STT")
	flag.StringVar(&cfg.OllamaURL, "ollama-url", cfg.OllamaURL, "база OpenAI-совместимого API Ollama")
	flag.StringVar(&cfg.OllamaModel, "ollama-model", cfg.OllamaModel, "модель Ollama с поддержкой tools")
	flag.DurationVar(&cfg.OllamaTimeout, "ollama-timeout", cfg.OllamaTimeout, "таймаут запроса LLM")
	flag.DurationVar(&cfg.PastTolerance, "past-tolerance", cfg.PastTolerance, "допуск для меток времени в прошлом")
	flag.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "путь к файлу sqlite")
	flag.StringVar(&cfg.RecoveryFile, "recovery-file", cfg.RecoveryFile, "файл восстановления при сбое вставки")
	flag.DurationVar(&cfg.SweepInterval, "sweep-interval", cfg.SweepInterval, "интервал проходов планировщика")
	flag.DurationVar(&cfg.AppointmentLead, "appointment-lead", cfg.AppointmentLead, "упреждение встречи по умолчанию")
	flag.IntVar(&cfg.MaxConsecutiveErrors, "max-consecutive-errors", cfg.MaxConsecutiveErrors, "ошибок подряд до остановки планировщика")
	flag.BoolVar(&cfg.Notifications, "notifications", cfg.Notifications, "показывать тосты о состоянии")
	flag.BoolVar(&cfg.SoundEnabled, "sound-enabled", cfg.SoundEnabled, "проигрывать звуковые сигналы")
	flag.StringVar(&cfg.SoundDonePath, "sound-done-path", cfg.SoundDonePath, "путь к звуку успеха (wav или mp3)")
	flag.StringVar(&cfg.SoundErrPath, "sound-error-path", cfg.SoundErrPath, "путь к звуку ошибки (wav или mp3)")
	flag.BoolVar(&cfg.Feed.Enabled, "feed-enabled", cfg.Feed.Enabled, "включить websocket-фид статусов")
	flag.StringVar(&cfg.Feed.BindAddr, "feed-bind-addr", cfg.Feed.BindAddr, "адрес фида, напр. 127.0.0.1:3456")
	flag.StringVar(&cfg.Feed.Path, "feed-path", cfg.Feed.Path, "HTTP-путь фида, напр. /events")
	flag.Parse()

	return cfg
}
