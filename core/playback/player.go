package playback

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Player owns the single output pipeline of the assistant. Starting new
// output always stops whatever was playing before.
type Player struct {
	opener      SinkOpener
	synthesizer Synthesizer
	fallback    Speaker

	mu             sync.Mutex
	generation     uint64
	current        *session
	cancelFallback context.CancelFunc
}

type Option func(*Player)

func WithSinkOpener(opener SinkOpener) Option {
	return func(p *Player) { p.opener = opener }
}

func WithSynthesizer(synthesizer Synthesizer) Option {
	return func(p *Player) { p.synthesizer = synthesizer }
}

// WithFallback sets the non-streaming speaker used whenever streamed
// playback fails.
func WithFallback(speaker Speaker) Option {
	return func(p *Player) { p.fallback = speaker }
}

func NewPlayer(opts ...Option) *Player {
	p := &Player{}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// PlayStreamed plays source through a fresh sink and blocks until playback
// completed, failed, or was stopped.
func (p *Player) PlayStreamed(ctx context.Context, source ChunkSource) error {
	ctx, span := tracer.Start(ctx, "play streamed audio")
	defer span.End()

	gen := p.begin()
	err := p.playStreamed(ctx, gen, source)
	recordError(span, err)
	return err
}

// Speak says text, streamed when possible and through the fallback speaker
// otherwise. It returns [ErrStopped] when interrupted by Stop.
func (p *Player) Speak(ctx context.Context, text string) error {
	ctx, span := tracer.Start(ctx, "speak", trace.WithAttributes(attribute.Int("text.length", len(text))))
	defer span.End()

	gen := p.begin()
	if strings.TrimSpace(text) == "" {
		return nil
	}

	err := p.speakStreamed(ctx, gen, text)
	if err == nil || errors.Is(err, ErrStopped) || ctx.Err() != nil {
		recordError(span, err)
		return err
	}

	logger.WarnContext(ctx, "Streamed speech failed, falling back", "error", err)
	fallbacks.Add(ctx, 1)
	span.AddEvent("fallback")

	if fallbackErr := p.speakFallback(ctx, gen, text); fallbackErr != nil {
		if !errors.Is(fallbackErr, ErrStopped) {
			fallbackErr = &PlaybackError{Op: "fallback", Err: errors.Join(err, fallbackErr)}
		}
		recordError(span, fallbackErr)
		return fallbackErr
	}
	return nil
}

// Stop tears down the current session and any fallback output. It is always
// safe to call.
func (p *Player) Stop() {
	if p == nil {
		return
	}

	p.mu.Lock()
	p.generation++
	current := p.current
	p.current = nil
	cancelFallback := p.cancelFallback
	p.cancelFallback = nil
	p.mu.Unlock()

	if current != nil {
		current.stop()
	}
	if cancelFallback != nil {
		cancelFallback()
	}
}

// Queued reports the number of chunks waiting for the sink.
func (p *Player) Queued() int {
	if p == nil {
		return 0
	}
	p.mu.Lock()
	current := p.current
	p.mu.Unlock()

	if current == nil {
		return 0
	}
	return current.queuedChunks()
}

func (p *Player) begin() uint64 {
	p.Stop()
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.generation
}

func (p *Player) speakStreamed(ctx context.Context, gen uint64, text string) error {
	if p.synthesizer == nil {
		return ErrUnsupported
	}

	source, err := p.synthesizer.Stream(ctx, text)
	if err != nil {
		return &PlaybackError{Op: "synthesize", Err: err}
	}
	return p.playStreamed(ctx, gen, source)
}

func (p *Player) playStreamed(ctx context.Context, gen uint64, source ChunkSource) error {
	if p.opener == nil {
		_ = source.Close()
		return ErrUnsupported
	}

	sessionCtx, cancel := context.WithCancel(ctx)
	s := newSession(source, cancel)

	p.mu.Lock()
	if gen != p.generation {
		p.mu.Unlock()
		s.finish(ErrStopped)
		return ErrStopped
	}
	p.current = s
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		if p.current == s {
			p.current = nil
		}
		p.mu.Unlock()
	}()

	sink, err := p.opener.OpenSink(sessionCtx, s.callbacks(sessionCtx))
	if err != nil {
		s.fail("open", err)
	} else {
		s.attach(sessionCtx, sink)
	}

	select {
	case <-s.done:
		return s.err
	case <-ctx.Done():
		s.stop()
		return ctx.Err()
	}
}

func (p *Player) speakFallback(ctx context.Context, gen uint64, text string) error {
	if p.fallback == nil {
		return errors.New("no fallback speaker configured")
	}

	fallbackCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	p.mu.Lock()
	if gen != p.generation {
		p.mu.Unlock()
		return ErrStopped
	}
	p.cancelFallback = cancel
	p.mu.Unlock()

	err := p.fallback.Speak(fallbackCtx, text)

	p.mu.Lock()
	stopped := gen != p.generation
	if !stopped {
		p.cancelFallback = nil
	}
	p.mu.Unlock()

	if stopped {
		return ErrStopped
	}
	if err != nil {
		return fmt.Errorf("failed to speak through fallback: %w", err)
	}
	return nil
}

func recordError(span trace.Span, err error) {
	if err == nil || errors.Is(err, ErrStopped) {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
