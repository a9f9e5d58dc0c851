package playback

import (
	"context"
	"errors"
	"io"
	"sync"
)

// session is one streamed playback from sink open to completion.
type session struct {
	source ChunkSource
	cancel context.CancelFunc

	mu           sync.Mutex
	sink         Sink
	opened       bool
	pulling      bool
	queued       [][]byte
	appending    bool
	sourceOpen   bool
	eosRequested bool
	closed       bool

	finishOnce sync.Once
	done       chan struct{}
	err        error
}

func newSession(source ChunkSource, cancel context.CancelFunc) *session {
	return &session{
		source:     source,
		cancel:     cancel,
		sourceOpen: true,
		done:       make(chan struct{}),
	}
}

func (s *session) callbacks(ctx context.Context) SinkCallbacks {
	return SinkCallbacks{
		OnOpen:     func() { s.onOpen(ctx) },
		OnAppended: func() { s.onAppended(ctx) },
		OnEnded:    func() { s.finish(nil) },
		OnError:    func(err error) { s.fail("sink", err) },
	}
}

// attach stores the sink returned by the opener. The open callback may have
// fired already.
func (s *session) attach(ctx context.Context, sink Sink) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		abortQuietly(sink)
		return
	}
	s.sink = sink
	start := s.startPullingLocked()
	s.mu.Unlock()

	if start {
		go s.pull(ctx)
	}
}

func (s *session) onOpen(ctx context.Context) {
	s.mu.Lock()
	s.opened = true
	start := s.startPullingLocked()
	s.mu.Unlock()

	if start {
		go s.pull(ctx)
	}
}

func (s *session) startPullingLocked() bool {
	if s.closed || s.pulling || !s.opened || s.sink == nil {
		return false
	}
	s.pulling = true
	return true
}

func (s *session) pull(ctx context.Context) {
	for {
		chunk, err := s.source.Next(ctx)
		if errors.Is(err, io.EOF) {
			s.sourceExhausted()
			return
		}
		if err != nil {
			if ctx.Err() == nil {
				s.fail("source", err)
			}
			return
		}
		if len(chunk) == 0 {
			continue
		}
		if !s.push(ctx, chunk) {
			return
		}
	}
}

// push appends chunk right away when the sink is idle and queues it
// otherwise. It reports false once the session is closed.
func (s *session) push(ctx context.Context, chunk []byte) bool {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false
	}
	if s.appending || len(s.queued) > 0 {
		s.queued = append(s.queued, chunk)
		s.mu.Unlock()
		return true
	}
	s.appending = true
	sink := s.sink
	s.mu.Unlock()

	s.append(ctx, sink, chunk)
	return true
}

func (s *session) append(ctx context.Context, sink Sink, chunk []byte) {
	if err := sink.Append(chunk); err != nil {
		s.fail("append", err)
		return
	}
	appendedChunks.Add(ctx, 1)
}

func (s *session) onAppended(ctx context.Context) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.appending = false
	sink := s.sink

	if len(s.queued) > 0 {
		next := s.queued[0]
		s.queued[0] = nil
		s.queued = s.queued[1:]
		s.appending = true
		s.mu.Unlock()

		s.append(ctx, sink, next)
		return
	}

	eos := s.requestEndOfStreamLocked()
	s.mu.Unlock()

	if eos {
		s.endOfStream(sink)
	}
}

func (s *session) sourceExhausted() {
	s.mu.Lock()
	s.sourceOpen = false
	eos := s.requestEndOfStreamLocked()
	sink := s.sink
	s.mu.Unlock()

	if eos {
		s.endOfStream(sink)
	}
}

func (s *session) requestEndOfStreamLocked() bool {
	if s.closed || s.sourceOpen || s.appending || len(s.queued) > 0 || s.eosRequested {
		return false
	}
	s.eosRequested = true
	return true
}

func (s *session) endOfStream(sink Sink) {
	if err := sink.EndOfStream(); err != nil {
		s.fail("end of stream", err)
	}
}

func (s *session) fail(op string, err error) {
	s.mu.Lock()
	sink := s.sink
	closed := s.closed
	s.closed = true
	s.mu.Unlock()

	if closed {
		return
	}
	if sink != nil {
		abortQuietly(sink)
	}
	s.finish(&PlaybackError{Op: op, Err: err})
}

// stop tears the session down. End of stream is requested before buffers are
// dropped so the sink is never left open.
func (s *session) stop() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		s.finish(ErrStopped)
		return
	}
	s.closed = true
	sink := s.sink
	eosRequested := s.eosRequested
	s.eosRequested = true
	s.mu.Unlock()

	if sink != nil {
		if !eosRequested {
			if err := sink.EndOfStream(); err != nil {
				logger.Debug("End of stream on stop failed", "error", err)
			}
		}
		abortQuietly(sink)
	}

	s.finish(ErrStopped)
}

func (s *session) finish(err error) {
	s.finishOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.queued = nil
		s.appending = false
		s.mu.Unlock()

		if closeErr := s.source.Close(); closeErr != nil {
			logger.Debug("Failed to close chunk source", "error", closeErr)
		}
		s.cancel()

		s.err = err
		close(s.done)
	})
}

func (s *session) queuedChunks() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queued)
}

func abortQuietly(sink Sink) {
	if err := sink.Abort(); err != nil {
		logger.Debug("Sink abort failed", "error", err)
	}
}
