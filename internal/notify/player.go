package notify

import (
	"errors"
	"io"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/effects"
	"github.com/faiface/beep/mp3"
	"github.com/faiface/beep/speaker"
	"github.com/faiface/beep/wav"
)

// Player воспроизводит короткий аудиофайл целиком, блокируя до конца.
type Player interface {
	Play(format string, r io.ReadCloser) error
}

// DefaultPlayer поддерживает wav и mp3.
type DefaultPlayer struct{ volumeDB float64 }

func NewPlayer() *DefaultPlayer { return &DefaultPlayer{volumeDB: 0} }

func (d *DefaultPlayer) Play(format string, r io.ReadCloser) error {
	switch format {
	case "wav", "WAV":
		streamer, f, err := wav.Decode(r)
		if err != nil {
			return err
		}
		defer streamer.Close()
		return playStream(streamer, f, d.volumeDB)
	case "mp3", "MP3":
		streamer, f, err := mp3.Decode(r)
		if err != nil {
			return err
		}
		defer streamer.Close()
		return playStream(streamer, f, d.volumeDB)
	}
	return errors.New("unsupported sound format; use wav or mp3")
}

func playStream(streamer beep.Streamer, format beep.Format, volDB float64) error {
	if err := speaker.Init(format.SampleRate, format.SampleRate.N(time.Second/10)); err != nil {
		return err
	}
	vol := &effects.Volume{
		Streamer: streamer,
		Base:     2,
		Volume:   volDB,
	}
	done := make(chan struct{})
	speaker.Play(beep.Seq(vol, beep.Callback(func() { close(done) })))
	<-done
	return nil
}
