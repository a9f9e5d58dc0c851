package playback

import (
	"context"
	"errors"
	"fmt"
)

// ChunkSource yields encoded audio chunks in playback order. Next returns
// io.EOF once the stream is exhausted.
type ChunkSource interface {
	Next(ctx context.Context) ([]byte, error)
	Close() error
}

// Sink is an open streaming output. Append must not be called again before
// the previous append was confirmed through SinkCallbacks.OnAppended.
type Sink interface {
	Append(chunk []byte) error
	EndOfStream() error
	Abort() error
}

// SinkCallbacks are invoked by the sink from any goroutine. OnEnded fires once
// every appended chunk was played after EndOfStream.
type SinkCallbacks struct {
	OnOpen     func()
	OnAppended func()
	OnEnded    func()
	OnError    func(error)
}

type SinkOpener interface {
	OpenSink(ctx context.Context, callbacks SinkCallbacks) (Sink, error)
}

// Synthesizer produces streamed speech for text.
type Synthesizer interface {
	Stream(ctx context.Context, text string) (ChunkSource, error)
}

// Speaker speaks a complete text payload and returns once it was heard or ctx
// was cancelled.
type Speaker interface {
	Speak(ctx context.Context, text string) error
}

var (
	// ErrUnsupported is returned by openers and synthesizers that cannot
	// stream the requested audio.
	ErrUnsupported = errors.New("streamed playback not supported")
	// ErrStopped is returned by calls cut short by Stop.
	ErrStopped = errors.New("playback stopped")
)

type PlaybackError struct {
	Op  string
	Err error
}

func (e *PlaybackError) Error() string {
	return fmt.Sprintf("playback %s failed: %v", e.Op, e.Err)
}

func (e *PlaybackError) Unwrap() error { return e.Err }
