package portaudio

import (
	"errors"
	"sync"

	"github.com/koscakluka/ema-assistant/core/playback"
)

var errSinkClosed = errors.New("sink closed")

type sink struct {
	client    *Client
	callbacks playback.SinkCallbacks

	chunks  chan []byte
	aborted chan struct{}
	once    sync.Once

	mu     sync.Mutex
	closed bool
}

func newSink(client *Client, callbacks playback.SinkCallbacks) *sink {
	return &sink{
		client:    client,
		callbacks: callbacks,
		chunks:    make(chan []byte, 1),
		aborted:   make(chan struct{}),
	}
}

func (s *sink) Append(chunk []byte) error {
	if len(chunk) == 0 {
		chunk = []byte{}
	}
	return s.enqueue(chunk)
}

// EndOfStream is queued as a nil chunk behind pending audio.
func (s *sink) EndOfStream() error {
	return s.enqueue(nil)
}

func (s *sink) enqueue(chunk []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errSinkClosed
	}
	if chunk == nil {
		s.closed = true
	}

	select {
	case s.chunks <- chunk:
		return nil
	case <-s.aborted:
		return errSinkClosed
	}
}

func (s *sink) Abort() error {
	s.once.Do(func() { close(s.aborted) })
	return nil
}

func (s *sink) run() {
	var leftover []byte
	for {
		select {
		case <-s.aborted:
			return
		case chunk := <-s.chunks:
			if chunk == nil {
				s.drain(leftover)
				return
			}

			var err error
			if leftover, err = s.client.writeFrames(append(leftover, chunk...), s.aborted); err != nil {
				s.fail(err)
				return
			}
			if s.callbacks.OnAppended != nil {
				s.callbacks.OnAppended()
			}
		}
	}
}

// drain pads the partial buffer with silence so the tail is heard.
func (s *sink) drain(leftover []byte) {
	if len(leftover) > 0 {
		padded := make([]byte, s.client.bufferSize*2)
		copy(padded, leftover)
		if _, err := s.client.writeFrames(padded, s.aborted); err != nil {
			s.fail(err)
			return
		}
	}

	select {
	case <-s.aborted:
	default:
		if s.callbacks.OnEnded != nil {
			s.callbacks.OnEnded()
		}
	}
}

func (s *sink) fail(err error) {
	select {
	case <-s.aborted:
	default:
		if s.callbacks.OnError != nil {
			s.callbacks.OnError(err)
		}
	}
}
