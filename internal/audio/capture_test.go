package audio

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBufferDuration(t *testing.T) {
	b := Buffer{Samples: make([]int16, 8000), SampleRate: 16000}
	assert.Equal(t, 500*time.Millisecond, b.Duration())

	assert.Equal(t, time.Duration(0), Buffer{}.Duration())
}

func TestRMSLevel(t *testing.T) {
	assert.Equal(t, 0.0, rmsLevel(nil))
	assert.Equal(t, 0.0, rmsLevel(make([]int16, 100)))

	// Постоянный сигнал на полной амплитуде даёт уровень около 1
	full := make([]int16, 100)
	for i := range full {
		full[i] = 32767
	}
	assert.InDelta(t, 1.0, rmsLevel(full), 0.001)

	quiet := make([]int16, 100)
	for i := range quiet {
		quiet[i] = 300
	}
	assert.Less(t, rmsLevel(quiet), 0.05)
}
