// Package clip plays complete encoded clips and short tones through the
// default output device.
package clip

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"math"
	"sync"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/mp3"
	"github.com/faiface/beep/speaker"
	"github.com/faiface/beep/wav"
)

const DefaultSampleRate beep.SampleRate = 44100

// Player decodes wav or mp3 clips and plays them one at a time.
type Player struct {
	rate beep.SampleRate

	initOnce sync.Once
	initErr  error
	mu       sync.Mutex
}

func NewPlayer() *Player {
	return &Player{rate: DefaultSampleRate}
}

func (p *Player) init() error {
	p.initOnce.Do(func() {
		p.initErr = speaker.Init(p.rate, p.rate.N(time.Second/10))
	})
	return p.initErr
}

// Play decodes clip and blocks until it was played or ctx is done. Play
// always closes clip.
func (p *Player) Play(ctx context.Context, clip io.ReadCloser) error {
	ctx, span := tracer.Start(ctx, "play clip")
	defer span.End()

	streamer, format, err := decode(clip)
	if err != nil {
		_ = clip.Close()
		span.RecordError(err)
		return err
	}
	defer streamer.Close()

	var s beep.Streamer = streamer
	if format.SampleRate != p.rate {
		s = beep.Resample(4, format.SampleRate, p.rate, streamer)
	}
	return p.play(ctx, s)
}

// Tone plays a sine tone, used as the listening cue.
func (p *Player) Tone(ctx context.Context, frequency float64, duration time.Duration) error {
	return p.play(ctx, beep.Take(p.rate.N(duration), sine(p.rate, frequency, 0.3)))
}

// Cue plays the short listening tone and logs failures.
func (p *Player) Cue(ctx context.Context) {
	if err := p.Tone(ctx, 880, 120*time.Millisecond); err != nil {
		logger.Debug("Failed to play listening cue", "error", err)
	}
}

func (p *Player) play(ctx context.Context, s beep.Streamer) error {
	if err := p.init(); err != nil {
		return fmt.Errorf("failed to initialize speaker: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	done := make(chan struct{})
	speaker.Play(beep.Seq(s, beep.Callback(func() { close(done) })))

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		speaker.Clear()
		return ctx.Err()
	}
}

type readCloser struct {
	io.Reader
	io.Closer
}

func decode(clip io.ReadCloser) (beep.StreamSeekCloser, beep.Format, error) {
	reader := bufio.NewReader(clip)
	header, _ := reader.Peek(4)

	if bytes.Equal(header, []byte("RIFF")) {
		streamer, format, err := wav.Decode(readCloser{reader, clip})
		if err != nil {
			return nil, beep.Format{}, fmt.Errorf("failed to decode wav clip: %w", err)
		}
		return streamer, format, nil
	}

	streamer, format, err := mp3.Decode(readCloser{reader, clip})
	if err != nil {
		return nil, beep.Format{}, fmt.Errorf("failed to decode mp3 clip: %w", err)
	}
	return streamer, format, nil
}

func sine(rate beep.SampleRate, frequency, volume float64) beep.Streamer {
	step := 2 * math.Pi * frequency / float64(rate)
	phase := 0.0
	return beep.StreamerFunc(func(samples [][2]float64) (int, bool) {
		for i := range samples {
			v := volume * math.Sin(phase)
			samples[i][0], samples[i][1] = v, v
			phase += step
		}
		return len(samples), true
	})
}
