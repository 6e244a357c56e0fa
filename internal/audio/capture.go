package audio

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/gordonklaus/portaudio"
	"go.uber.org/zap"

	"voicedesk/internal/config"
)

var (
	// ErrBusy микрофон уже занят другой сессией захвата.
	ErrBusy = errors.New("microphone busy")
	// ErrDeviceUnavailable устройство недоступно или захват не стартовал.
	ErrDeviceUnavailable = errors.New("audio device unavailable")
)

// Buffer захваченный фрагмент: моно, 16 бит.
type Buffer struct {
	Samples    []int16
	SampleRate int
}

// Duration длительность фрагмента.
func (b Buffer) Duration() time.Duration {
	if b.SampleRate == 0 {
		return 0
	}
	return time.Duration(len(b.Samples)) * time.Second / time.Duration(b.SampleRate)
}

// Init инициализирует аудиоподсистему процесса. Terminate обязателен
// на выходе.
func Init() error {
	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}
	return nil
}

func Terminate() {
	_ = portaudio.Terminate()
}

type result struct {
	buf Buffer
	err error
}

// Recorder владеет микрофоном монопольно: пока идёт захват, повторный
// Start отклоняется с ErrBusy, а не ставится в очередь.
type Recorder struct {
	sampleRate int
	frames     int
	onLevel    func(rms float64)
	logger     *zap.SugaredLogger

	mu        sync.Mutex
	recording bool
	stopCh    chan struct{}
	done      chan result
}

// NewRecorder создаёт рекордер. onLevel (опционально) получает RMS-уровень
// каждого прочитанного чанка в диапазоне 0..1.
func NewRecorder(cfg *config.Config, logger *zap.SugaredLogger, onLevel func(rms float64)) *Recorder {
	return &Recorder{
		sampleRate: cfg.SampleRate,
		frames:     1024,
		onLevel:    onLevel,
		logger:     logger,
	}
}

// Start открывает поток и начинает накапливать сэмплы в памяти.
// Ошибка устройства всплывает здесь же, до запуска цикла чтения.
func (r *Recorder) Start() error {
	r.mu.Lock()
	if r.recording {
		r.mu.Unlock()
		return ErrBusy
	}
	r.recording = true
	r.stopCh = make(chan struct{})
	r.done = make(chan result, 1)
	r.mu.Unlock()

	in := make([]int16, r.frames)
	stream, err := portaudio.OpenDefaultStream(1, 0, float64(r.sampleRate), len(in), in)
	if err != nil {
		r.reset()
		return fmt.Errorf("%w: open stream: %v", ErrDeviceUnavailable, err)
	}
	if err := stream.Start(); err != nil {
		_ = stream.Close()
		r.reset()
		return fmt.Errorf("%w: start stream: %v", ErrDeviceUnavailable, err)
	}

	go r.captureLoop(stream, in)
	return nil
}

// Stop завершает захват и возвращает накопленный буфер.
func (r *Recorder) Stop() (Buffer, error) {
	r.mu.Lock()
	if !r.recording {
		r.mu.Unlock()
		return Buffer{}, fmt.Errorf("%w: recorder is idle", ErrDeviceUnavailable)
	}
	stop, done := r.stopCh, r.done
	r.mu.Unlock()

	close(stop)
	res := <-done
	r.reset()
	return res.buf, res.err
}

// Abort как Stop, но буфер отбрасывается.
func (r *Recorder) Abort() {
	r.mu.Lock()
	if !r.recording {
		r.mu.Unlock()
		return
	}
	stop, done := r.stopCh, r.done
	r.mu.Unlock()

	close(stop)
	<-done
	r.reset()
}

func (r *Recorder) reset() {
	r.mu.Lock()
	r.recording = false
	r.mu.Unlock()
}

func (r *Recorder) captureLoop(stream *portaudio.Stream, in []int16) {
	var samples []int16
	var readErr error

	for {
		select {
		case <-r.stopCh:
			goto finish
		default:
		}

		if err := stream.Read(); err != nil {
			// Переполнение буфера драйвера не считается фатальным
			if errors.Is(err, portaudio.InputOverflowed) {
				r.logger.Debugw("input overflowed")
			} else {
				readErr = fmt.Errorf("%w: read stream: %v", ErrDeviceUnavailable, err)
				goto finish
			}
		}
		samples = append(samples, in...)
		if r.onLevel != nil {
			r.onLevel(rmsLevel(in))
		}
	}

finish:
	_ = stream.Stop()
	_ = stream.Close()
	r.done <- result{buf: Buffer{Samples: samples, SampleRate: r.sampleRate}, err: readErr}
}

// rmsLevel среднеквадратичный уровень чанка, нормированный к 0..1.
func rmsLevel(chunk []int16) float64 {
	if len(chunk) == 0 {
		return 0
	}
	var sum float64
	for _, v := range chunk {
		f := float64(v) / 32768.0
		sum += f * f
	}
	return math.Sqrt(sum / float64(len(chunk)))
}
