package playback

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type sliceSource struct {
	chunks [][]byte
	idx    int
	closed atomic.Int32
}

func (s *sliceSource) Next(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.idx >= len(s.chunks) {
		return nil, io.EOF
	}
	chunk := s.chunks[s.idx]
	s.idx++
	return chunk, nil
}

func (s *sliceSource) Close() error {
	s.closed.Add(1)
	return nil
}

// fakeSink acknowledges appends asynchronously after ackDelay. A negative
// ackDelay never acknowledges.
type fakeSink struct {
	callbacks SinkCallbacks
	ackDelay  time.Duration
	eosErr    error

	mu        sync.Mutex
	appended  [][]byte
	inFlight  atomic.Int32
	overlaps  atomic.Int32
	eosCalls  atomic.Int32
	abortCall atomic.Int32
}

func (s *fakeSink) Append(chunk []byte) error {
	if s.inFlight.Add(1) > 1 {
		s.overlaps.Add(1)
	}
	s.mu.Lock()
	s.appended = append(s.appended, chunk)
	s.mu.Unlock()

	if s.ackDelay < 0 {
		return nil
	}
	go func() {
		time.Sleep(s.ackDelay)
		s.inFlight.Add(-1)
		s.callbacks.OnAppended()
	}()
	return nil
}

func (s *fakeSink) EndOfStream() error {
	s.eosCalls.Add(1)
	if s.eosErr != nil {
		return s.eosErr
	}
	go func() {
		s.callbacks.OnEnded()
		s.callbacks.OnEnded()
	}()
	return nil
}

func (s *fakeSink) Abort() error {
	s.abortCall.Add(1)
	return errors.New("already closed")
}

func (s *fakeSink) chunks() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]byte{}, s.appended...)
}

type fakeOpener struct {
	sink  *fakeSink
	err   error
	opens atomic.Int32
}

func (o *fakeOpener) OpenSink(_ context.Context, callbacks SinkCallbacks) (Sink, error) {
	o.opens.Add(1)
	if o.err != nil {
		return nil, o.err
	}
	o.sink.callbacks = callbacks
	go callbacks.OnOpen()
	return o.sink, nil
}

type fakeSynthesizer struct {
	chunks [][]byte
	err    error
}

func (s fakeSynthesizer) Stream(context.Context, string) (ChunkSource, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &sliceSource{chunks: s.chunks}, nil
}

type fakeSpeaker struct {
	block bool
	err   error
	texts chan string
}

func (s *fakeSpeaker) Speak(ctx context.Context, text string) error {
	s.texts <- text
	if s.block {
		<-ctx.Done()
		return ctx.Err()
	}
	return s.err
}

func chunks(n int) [][]byte {
	out := make([][]byte, n)
	for i := range out {
		out[i] = []byte{byte(i)}
	}
	return out
}

func waitFor(t *testing.T, condition func() bool) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for !condition() {
		select {
		case <-deadline:
			t.Fatal("timed out waiting for condition")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestPlayStreamedAppendsInOrderOneAtATime(t *testing.T) {
	sink := &fakeSink{ackDelay: 2 * time.Millisecond}
	player := NewPlayer(WithSinkOpener(&fakeOpener{sink: sink}))
	source := &sliceSource{chunks: chunks(20)}

	if err := player.PlayStreamed(context.Background(), source); err != nil {
		t.Fatalf("expected playback to complete, got %v", err)
	}

	got := sink.chunks()
	if len(got) != 20 {
		t.Fatalf("expected 20 chunks, got %d", len(got))
	}
	for i, chunk := range got {
		if !bytes.Equal(chunk, []byte{byte(i)}) {
			t.Fatalf("chunk %d out of order: %v", i, chunk)
		}
	}
	if overlaps := sink.overlaps.Load(); overlaps != 0 {
		t.Fatalf("expected serialized appends, saw %d overlaps", overlaps)
	}
	if eos := sink.eosCalls.Load(); eos != 1 {
		t.Fatalf("expected one end of stream, got %d", eos)
	}
	if source.closed.Load() != 1 {
		t.Fatalf("expected source to be closed once")
	}
}

func TestStopIsIdempotent(t *testing.T) {
	player := NewPlayer()
	player.Stop()
	player.Stop()

	if queued := player.Queued(); queued != 0 {
		t.Fatalf("expected no queued chunks, got %d", queued)
	}
}

func TestStopDuringPlaybackRequestsEndOfStreamAndDropsBuffers(t *testing.T) {
	sink := &fakeSink{ackDelay: -1, eosErr: errors.New("already closed")}
	player := NewPlayer(WithSinkOpener(&fakeOpener{sink: sink}))
	source := &sliceSource{chunks: chunks(5)}

	done := make(chan error, 1)
	go func() { done <- player.PlayStreamed(context.Background(), source) }()

	waitFor(t, func() bool { return player.Queued() == 4 })

	player.Stop()
	player.Stop()

	select {
	case err := <-done:
		if !errors.Is(err, ErrStopped) {
			t.Fatalf("expected ErrStopped, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for playback to stop")
	}

	if eos := sink.eosCalls.Load(); eos != 1 {
		t.Fatalf("expected one end of stream request on stop, got %d", eos)
	}
	if aborts := sink.abortCall.Load(); aborts != 1 {
		t.Fatalf("expected one abort, got %d", aborts)
	}
	if queued := player.Queued(); queued != 0 {
		t.Fatalf("expected buffers to be dropped, got %d", queued)
	}
}

func TestSpeakFallsBackWhenSinkFails(t *testing.T) {
	fallback := &fakeSpeaker{texts: make(chan string, 1)}
	player := NewPlayer(
		WithSinkOpener(&fakeOpener{err: ErrUnsupported}),
		WithSynthesizer(fakeSynthesizer{chunks: chunks(3)}),
		WithFallback(fallback),
	)

	if err := player.Speak(context.Background(), "Pausing"); err != nil {
		t.Fatalf("expected fallback to succeed, got %v", err)
	}
	if got := <-fallback.texts; got != "Pausing" {
		t.Fatalf("expected fallback to speak reply, got %q", got)
	}
}

func TestSpeakFallsBackWhenSynthesisFails(t *testing.T) {
	fallback := &fakeSpeaker{texts: make(chan string, 1)}
	player := NewPlayer(
		WithSinkOpener(&fakeOpener{sink: &fakeSink{}}),
		WithSynthesizer(fakeSynthesizer{err: errors.New("socket closed")}),
		WithFallback(fallback),
	)

	if err := player.Speak(context.Background(), "Hello"); err != nil {
		t.Fatalf("expected fallback to succeed, got %v", err)
	}
	if len(fallback.texts) != 1 {
		t.Fatalf("expected fallback to be used")
	}
}

func TestSpeakFallsBackOnMidStreamSinkError(t *testing.T) {
	sink := &fakeSink{ackDelay: -1}
	opener := &fakeOpener{sink: sink}
	fallback := &fakeSpeaker{texts: make(chan string, 1)}
	player := NewPlayer(WithSinkOpener(opener), WithSynthesizer(fakeSynthesizer{chunks: chunks(3)}), WithFallback(fallback))

	go func() {
		for len(sink.chunks()) == 0 {
			time.Sleep(time.Millisecond)
		}
		sink.callbacks.OnError(errors.New("decoder error"))
	}()

	if err := player.Speak(context.Background(), "Hello"); err != nil {
		t.Fatalf("expected fallback to succeed, got %v", err)
	}
	if len(fallback.texts) != 1 {
		t.Fatalf("expected fallback to be used")
	}
}

func TestSpeakReportsWhenFallbackFails(t *testing.T) {
	fallback := &fakeSpeaker{texts: make(chan string, 1), err: errors.New("no device")}
	player := NewPlayer(WithFallback(fallback))

	err := player.Speak(context.Background(), "Hello")
	var playbackErr *PlaybackError
	if !errors.As(err, &playbackErr) {
		t.Fatalf("expected playback error, got %v", err)
	}
}

func TestStopCancelsFallback(t *testing.T) {
	fallback := &fakeSpeaker{texts: make(chan string, 1), block: true}
	player := NewPlayer(WithFallback(fallback))

	done := make(chan error, 1)
	go func() { done <- player.Speak(context.Background(), "Hello") }()

	<-fallback.texts
	player.Stop()

	select {
	case err := <-done:
		if !errors.Is(err, ErrStopped) {
			t.Fatalf("expected ErrStopped, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for fallback to stop")
	}
}

func TestSpeakStopsPreviousOutput(t *testing.T) {
	first := &fakeSink{ackDelay: -1}
	opener := &fakeOpener{sink: first}
	player := NewPlayer(WithSinkOpener(opener))

	done := make(chan error, 1)
	go func() { done <- player.PlayStreamed(context.Background(), &sliceSource{chunks: chunks(2)}) }()
	waitFor(t, func() bool { return len(first.chunks()) == 1 })

	opener.sink = &fakeSink{ackDelay: time.Millisecond}
	go func() { _ = player.PlayStreamed(context.Background(), &sliceSource{chunks: chunks(1)}) }()

	select {
	case err := <-done:
		if !errors.Is(err, ErrStopped) {
			t.Fatalf("expected first playback to be stopped, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for first playback to stop")
	}
}
