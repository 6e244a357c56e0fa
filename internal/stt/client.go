package stt

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"go.uber.org/zap"
	"golang.org/x/net/http2"

	"voicedesk/internal/config"
)

var (
	// ErrNoSpeech бэкенд отработал, но распознанный текст пуст.
	ErrNoSpeech = errors.New("no speech recognized")
	// ErrTranscriptionFailed бэкенд недоступен либо вернул ошибку.
	ErrTranscriptionFailed = errors.New("transcription failed")
)

// Client загружает захваченный звук на whisper-сервер и возвращает текст.
// Клиент не интерпретирует содержание: пустая и «шумовая» расшифровка
// различаются только для вызывающей стороны через ErrNoSpeech.
type Client struct {
	endpoint string
	language string
	http     *http.Client
	logger   *zap.SugaredLogger
}

func New(cfg *config.Config, logger *zap.SugaredLogger) *Client {
	tr := &http.Transport{
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
	}
	_ = http2.ConfigureTransport(tr)
	return &Client{
		endpoint: cfg.WhisperURL,
		language: cfg.WhisperLanguage,
		http:     &http.Client{Transport: tr, Timeout: cfg.WhisperTimeout},
		logger:   logger,
	}
}

// Transcribe кодирует сэмплы во временный WAV, отправляет multipart-запрос
// и возвращает очищенный текст. Отмена контекста прерывает загрузку.
func (c *Client) Transcribe(ctx context.Context, samples []int16, sampleRate int) (string, error) {
	path, err := writeTempWAV(samples, sampleRate)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTranscriptionFailed, err)
	}
	defer os.Remove(path)

	start := time.Now()
	text, err := c.upload(ctx, path)
	if err != nil {
		return "", err
	}
	c.logger.Infow("transcription done", "duration", time.Since(start), "chars", len(text))

	text = cleanTranscript(text)
	if text == "" {
		return "", ErrNoSpeech
	}
	return text, nil
}

func (c *Client) upload(ctx context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("%w: open wav: %v", ErrTranscriptionFailed, err)
	}
	defer f.Close()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTranscriptionFailed, err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return "", fmt.Errorf("%w: %v", ErrTranscriptionFailed, err)
	}
	_ = writer.WriteField("response_format", "json")
	_ = writer.WriteField("temperature", "0.0")
	if c.language != "" {
		_ = writer.WriteField("language", c.language)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("%w: %v", ErrTranscriptionFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, body)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTranscriptionFailed, err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.http.Do(req)
	if err != nil {
		// Цепочка ошибки сохраняется: по ней различаются таймаут и обрыв
		return "", fmt.Errorf("%w: %w", ErrTranscriptionFailed, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: read response: %v", ErrTranscriptionFailed, err)
	}
	if resp.StatusCode != http.StatusOK {
		c.logger.Warnw("whisper server error", "status", resp.StatusCode, "body", truncate(string(respBody), 300))
		return "", fmt.Errorf("%w: status %d", ErrTranscriptionFailed, resp.StatusCode)
	}

	var parsed struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("%w: decode response: %v", ErrTranscriptionFailed, err)
	}
	return parsed.Text, nil
}

// cleanTranscript убирает пробелы и служебные маркеры whisper вида
// [BLANK_AUDIO] или (шуршание), которыми модель помечает тишину.
func cleanTranscript(s string) string {
	s = strings.TrimSpace(s)
	for {
		trimmed := s
		if strings.HasPrefix(trimmed, "[") {
			if i := strings.Index(trimmed, "]"); i >= 0 {
				trimmed = strings.TrimSpace(trimmed[i+1:])
			}
		}
		if strings.HasPrefix(trimmed, "(") {
			if i := strings.Index(trimmed, ")"); i >= 0 {
				trimmed = strings.TrimSpace(trimmed[i+1:])
			}
		}
		if trimmed == s {
			return s
		}
		s = trimmed
	}
}

func writeTempWAV(samples []int16, sampleRate int) (string, error) {
	f, err := os.CreateTemp("", "voicedesk_*.wav")
	if err != nil {
		return "", fmt.Errorf("create temp wav: %w", err)
	}

	enc := wav.NewEncoder(f, sampleRate, 16, 1, 1)
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: sampleRate},
		SourceBitDepth: 16,
		Data:           make([]int, len(samples)),
	}
	for i, v := range samples {
		buf.Data[i] = int(v)
	}
	if err := enc.Write(buf); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("encode wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("finalize wav: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("close wav: %w", err)
	}
	return f.Name(), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
