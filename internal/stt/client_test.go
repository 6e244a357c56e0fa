package stt

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-audio/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"voicedesk/internal/config"
)

func newTestClient(t *testing.T, url string) *Client {
	t.Helper()
	cfg := config.Defaults()
	cfg.WhisperURL = url
	cfg.WhisperTimeout = 2 * time.Second
	return New(cfg, zap.NewNop().Sugar())
}

func sineSamples(n int) []int16 {
	out := make([]int16, n)
	for i := range out {
		out[i] = int16((i % 80) * 100)
	}
	return out
}

func TestTranscribeUploadsWAV(t *testing.T) {
	var gotContentType string
	var gotLanguage string
	var wavBytes []byte

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
		require.NoError(t, r.ParseMultipartForm(1<<20))
		gotLanguage = r.FormValue("language")

		f, _, err := r.FormFile("file")
		require.NoError(t, err)
		wavBytes, err = io.ReadAll(f)
		require.NoError(t, err)

		json.NewEncoder(w).Encode(map[string]string{"text": " hello world "})
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)
	text, err := c.Transcribe(context.Background(), sineSamples(16000), 16000)
	require.NoError(t, err)
	assert.Equal(t, "hello world", text)
	assert.Contains(t, gotContentType, "multipart/form-data")
	assert.Equal(t, "en", gotLanguage)

	// Загруженный файл — валидный моно WAV с нужной частотой
	d := wav.NewDecoder(bytes.NewReader(wavBytes))
	d.ReadInfo()
	require.NoError(t, d.Err())
	assert.Equal(t, uint32(16000), d.SampleRate)
	assert.Equal(t, uint16(1), d.NumChans)
	assert.Equal(t, uint16(16), d.BitDepth)
}

func TestTranscribeEmptyTextIsNoSpeech(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"text": "   "})
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)
	_, err := c.Transcribe(context.Background(), sineSamples(1600), 16000)
	assert.ErrorIs(t, err, ErrNoSpeech)
}

func TestTranscribeBlankAudioMarkerIsNoSpeech(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"text": " [BLANK_AUDIO] "})
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)
	_, err := c.Transcribe(context.Background(), sineSamples(1600), 16000)
	assert.ErrorIs(t, err, ErrNoSpeech)
}

func TestTranscribeServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusInternalServerError)
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)
	_, err := c.Transcribe(context.Background(), sineSamples(1600), 16000)
	assert.ErrorIs(t, err, ErrTranscriptionFailed)
}

func TestTranscribeUnreachableServer(t *testing.T) {
	c := newTestClient(t, "http://127.0.0.1:1/inference")
	_, err := c.Transcribe(context.Background(), sineSamples(1600), 16000)
	assert.ErrorIs(t, err, ErrTranscriptionFailed)
}

func TestTranscribeContextCancel(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(time.Second)
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	c := newTestClient(t, server.URL)
	_, err := c.Transcribe(ctx, sineSamples(1600), 16000)
	assert.ErrorIs(t, err, ErrTranscriptionFailed)
	// Истёкший дедлайн различим в цепочке: выше он показывается как таймаут
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestCleanTranscript(t *testing.T) {
	cases := map[string]string{
		"hello":                     "hello",
		"  hello  ":                 "hello",
		"[BLANK_AUDIO]":             "",
		"[_BEG_] hi":                "hi",
		"(breathing) ok (sighs)":    "ok (sighs)",
		"[noise] (static) go":       "go",
		"":                          "",
		"plain [not a marker] text": "plain [not a marker] text",
	}
	for in, want := range cases {
		assert.Equal(t, want, cleanTranscript(in), "input %q", in)
	}
}
