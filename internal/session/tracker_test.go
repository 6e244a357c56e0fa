package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHoldModeFullCycle(t *testing.T) {
	tr := NewTracker(true)
	now := time.Now()

	assert.Equal(t, StateIdle, tr.Track(KindDictation).State)

	assert.Equal(t, DecisionStartCapture, tr.KeyDown(KindDictation, now))
	assert.Equal(t, StateCapturing, tr.Track(KindDictation).State)

	assert.Equal(t, DecisionStopCapture, tr.KeyUp(KindDictation, now))
	assert.Equal(t, StateProcessing, tr.Track(KindDictation).State)

	gen := tr.Track(KindDictation).Gen
	require.True(t, tr.Finish(KindDictation, gen))
	assert.Equal(t, StateIdle, tr.Track(KindDictation).State)

	// Дорожка снова взводится
	assert.Equal(t, DecisionStartCapture, tr.KeyDown(KindDictation, now))
}

func TestKeyDownDebounce(t *testing.T) {
	tr := NewTracker(true)
	now := time.Now()

	require.Equal(t, DecisionStartCapture, tr.KeyDown(KindDictation, now))
	gen := tr.Track(KindDictation).Gen

	// Авто-повтор зажатой клавиши не перезапускает захват
	for i := 0; i < 5; i++ {
		assert.Equal(t, DecisionNone, tr.KeyDown(KindDictation, now))
	}
	assert.Equal(t, gen, tr.Track(KindDictation).Gen)
	assert.Equal(t, StateCapturing, tr.Track(KindDictation).State)

	// И во время Processing нажатие тоже игнорируется
	require.Equal(t, DecisionStopCapture, tr.KeyUp(KindDictation, now))
	assert.Equal(t, DecisionNone, tr.KeyDown(KindDictation, now))
	assert.Equal(t, StateProcessing, tr.Track(KindDictation).State)
}

func TestKeyUpWithoutKeyDownIgnored(t *testing.T) {
	tr := NewTracker(true)
	assert.Equal(t, DecisionNone, tr.KeyUp(KindDictation, time.Now()))
	assert.Equal(t, StateIdle, tr.Track(KindDictation).State)
}

func TestTracksAreIndependent(t *testing.T) {
	tr := NewTracker(true)
	now := time.Now()

	require.Equal(t, DecisionStartCapture, tr.KeyDown(KindDictation, now))
	// Вторая дорожка стартует независимо; исключение микрофона — забота
	// координационного цикла, не трекера
	assert.Equal(t, DecisionStartCapture, tr.KeyDown(KindAssistant, now))

	require.Equal(t, DecisionStopCapture, tr.KeyUp(KindAssistant, now))
	assert.Equal(t, StateCapturing, tr.Track(KindDictation).State)
	assert.Equal(t, StateProcessing, tr.Track(KindAssistant).State)
}

func TestCaptureTimeout(t *testing.T) {
	tr := NewTracker(true)
	now := time.Now()

	require.Equal(t, DecisionStartCapture, tr.KeyDown(KindDictation, now))
	gen := tr.Track(KindDictation).Gen

	assert.Equal(t, DecisionStopCapture, tr.Timeout(KindDictation, gen))
	assert.Equal(t, StateProcessing, tr.Track(KindDictation).State)

	// Отпускание после таймаута ничего не меняет
	assert.Equal(t, DecisionNone, tr.KeyUp(KindDictation, now))
}

func TestStaleTimeoutIgnored(t *testing.T) {
	tr := NewTracker(true)
	now := time.Now()

	require.Equal(t, DecisionStartCapture, tr.KeyDown(KindDictation, now))
	gen1 := tr.Track(KindDictation).Gen
	require.Equal(t, DecisionStopCapture, tr.KeyUp(KindDictation, now))
	require.True(t, tr.Finish(KindDictation, gen1))

	// Новая сессия
	require.Equal(t, DecisionStartCapture, tr.KeyDown(KindDictation, now))
	gen2 := tr.Track(KindDictation).Gen
	require.NotEqual(t, gen1, gen2)

	// Таймер прошлой сессии не должен трогать новую
	assert.Equal(t, DecisionNone, tr.Timeout(KindDictation, gen1))
	assert.Equal(t, StateCapturing, tr.Track(KindDictation).State)
}

func TestStaleFinishIgnored(t *testing.T) {
	tr := NewTracker(true)
	now := time.Now()

	require.Equal(t, DecisionStartCapture, tr.KeyDown(KindDictation, now))
	gen1 := tr.Track(KindDictation).Gen
	require.Equal(t, DecisionStopCapture, tr.KeyUp(KindDictation, now))
	require.True(t, tr.Finish(KindDictation, gen1))

	require.Equal(t, DecisionStartCapture, tr.KeyDown(KindDictation, now))
	assert.False(t, tr.Finish(KindDictation, gen1))
	assert.Equal(t, StateCapturing, tr.Track(KindDictation).State)
}

func TestAbortReturnsToIdle(t *testing.T) {
	tr := NewTracker(true)
	now := time.Now()

	require.Equal(t, DecisionStartCapture, tr.KeyDown(KindDictation, now))
	tr.Abort(KindDictation)
	assert.Equal(t, StateIdle, tr.Track(KindDictation).State)

	// После отката дорожка снова взводится
	assert.Equal(t, DecisionStartCapture, tr.KeyDown(KindDictation, now))
}

func TestToggleMode(t *testing.T) {
	tr := NewTracker(false)
	now := time.Now()

	// Первое нажатие — старт, release игнорируется
	assert.Equal(t, DecisionStartCapture, tr.KeyDown(KindDictation, now))
	assert.Equal(t, DecisionNone, tr.KeyUp(KindDictation, now))
	assert.Equal(t, StateCapturing, tr.Track(KindDictation).State)

	// Второе нажатие — стоп
	assert.Equal(t, DecisionStopCapture, tr.KeyDown(KindDictation, now))
	assert.Equal(t, StateProcessing, tr.Track(KindDictation).State)
	assert.Equal(t, DecisionNone, tr.KeyUp(KindDictation, now))
}

func TestExactlyOneCycleCompletePress(t *testing.T) {
	// Для произвольной последовательности down/up дорожка проходит цикл
	// Idle→Capturing→Processing→Idle ровно один раз на полное нажатие
	tr := NewTracker(true)
	now := time.Now()

	starts, stops := 0, 0
	seq := []struct {
		down bool
	}{
		{true}, {true}, {false}, {false}, {true}, {false},
	}
	for _, ev := range seq {
		var d Decision
		if ev.down {
			d = tr.KeyDown(KindDictation, now)
		} else {
			d = tr.KeyUp(KindDictation, now)
		}
		switch d {
		case DecisionStartCapture:
			starts++
		case DecisionStopCapture:
			stops++
			require.True(t, tr.Finish(KindDictation, tr.Track(KindDictation).Gen))
		}
	}
	assert.Equal(t, 2, starts)
	assert.Equal(t, 2, stops)
	assert.Equal(t, StateIdle, tr.Track(KindDictation).State)
}
