package capture

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type fakeSession struct {
	mu     sync.Mutex
	stops  int
	aborts int
}

func (s *fakeSession) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stops++
	return nil
}

func (s *fakeSession) Abort() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.aborts++
	return errors.New("already closed")
}

func (s *fakeSession) counts() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stops, s.aborts
}

type fakeRecognizer struct {
	starts    int
	callbacks Callbacks
	session   *fakeSession
	err       error
}

func (r *fakeRecognizer) Start(_ context.Context, callbacks Callbacks) (Session, error) {
	r.starts++
	if r.err != nil {
		return nil, r.err
	}
	r.callbacks = callbacks
	r.session = &fakeSession{}
	return r.session, nil
}

type fakeTimer struct {
	delay   time.Duration
	fn      func()
	stopped bool
}

func (t *fakeTimer) Stop() bool {
	wasActive := !t.stopped
	t.stopped = true
	return wasActive
}

type fakeClock struct {
	timers []*fakeTimer
}

func (c *fakeClock) afterFunc(d time.Duration, fn func()) timer {
	t := &fakeTimer{delay: d, fn: fn}
	c.timers = append(c.timers, t)
	return t
}

// fire runs a timer callback even if it was stopped, the way a timer that
// already fired before Stop would.
func (c *fakeClock) fire(i int) { c.timers[i].fn() }

type recordingListener struct {
	started  int
	updates  []Utterance
	ended    []string
	failures []error
	benign   []bool
}

func (l *recordingListener) CaptureStarted() { l.started++ }
func (l *recordingListener) TranscriptUpdated(final, interim string) {
	l.updates = append(l.updates, Utterance{Final: final, Interim: interim})
}
func (l *recordingListener) CaptureEnded(text string) { l.ended = append(l.ended, text) }
func (l *recordingListener) CaptureFailed(err error, benign bool) {
	l.failures = append(l.failures, err)
	l.benign = append(l.benign, benign)
}

func newTestCapture(opts ...Option) (*Capture, *fakeRecognizer, *fakeClock, *recordingListener) {
	recognizer := &fakeRecognizer{}
	clock := &fakeClock{}
	listener := &recordingListener{}
	opts = append([]Option{withAfterFunc(clock.afterFunc), WithListener(listener)}, opts...)
	return New(recognizer, opts...), recognizer, clock, listener
}

func TestFinalizedTextJoinsFinalSegmentsOnly(t *testing.T) {
	capture, recognizer, _, listener := newTestCapture()
	if err := capture.Start(context.Background()); err != nil {
		t.Fatalf("expected start to succeed, got %v", err)
	}
	recognizer.callbacks.OnStart()

	recognizer.callbacks.OnResult(Result{Index: 0, Segments: []Segment{{Text: "pau"}}})
	recognizer.callbacks.OnResult(Result{Index: 0, Segments: []Segment{{Text: " pause ", Final: true}, {Text: "ka"}}})
	recognizer.callbacks.OnResult(Result{Index: 1, Segments: []Segment{{Text: "karo  ", Final: true}}})
	recognizer.callbacks.OnEnd()

	if got := listener.updates[1]; got.Final != "pause" || got.Interim != "ka" {
		t.Fatalf("unexpected snapshot %+v", got)
	}
	if len(listener.ended) != 1 || listener.ended[0] != "pause karo" {
		t.Fatalf("expected finalized text %q, got %v", "pause karo", listener.ended)
	}
}

func TestFinalSegmentsAreNotAppendedTwice(t *testing.T) {
	capture, recognizer, _, listener := newTestCapture()
	_ = capture.Start(context.Background())

	recognizer.callbacks.OnResult(Result{Index: 0, Segments: []Segment{{Text: "play", Final: true}}})
	recognizer.callbacks.OnResult(Result{Index: 0, Segments: []Segment{{Text: "play", Final: true}, {Text: "mus"}}})
	recognizer.callbacks.OnResult(Result{Index: 1, Segments: []Segment{{Text: "music", Final: true}}})
	recognizer.callbacks.OnEnd()

	if listener.ended[0] != "play music" {
		t.Fatalf("expected %q, got %q", "play music", listener.ended[0])
	}
}

func TestDebounceRestartsOnEveryFinalSegment(t *testing.T) {
	capture, recognizer, clock, _ := newTestCapture(WithDebounce(1500 * time.Millisecond))
	_ = capture.Start(context.Background())
	recognizer.callbacks.OnStart()

	recognizer.callbacks.OnResult(Result{Index: 0, Segments: []Segment{{Text: "set volume", Final: true}}})
	recognizer.callbacks.OnResult(Result{Index: 1, Segments: []Segment{{Text: "to fifty"}}})
	if len(clock.timers) != 1 {
		t.Fatalf("expected interim results to leave the timer alone, got %d timers", len(clock.timers))
	}

	recognizer.callbacks.OnResult(Result{Index: 1, Segments: []Segment{{Text: "to fifty", Final: true}}})
	if len(clock.timers) != 2 {
		t.Fatalf("expected a restarted timer, got %d timers", len(clock.timers))
	}
	if !clock.timers[0].stopped {
		t.Fatalf("expected the first debounce timer to be stopped")
	}
	if clock.timers[1].delay != 1500*time.Millisecond {
		t.Fatalf("expected full debounce delay, got %s", clock.timers[1].delay)
	}

	clock.fire(0)
	if stops, _ := recognizer.session.counts(); stops != 0 {
		t.Fatalf("expected superseded timer to be ignored, got %d stops", stops)
	}

	clock.fire(1)
	if stops, _ := recognizer.session.counts(); stops != 1 {
		t.Fatalf("expected session stop after debounce, got %d stops", stops)
	}
}

func TestSupersededTimerInSameSessionIsIgnored(t *testing.T) {
	capture, recognizer, clock, _ := newTestCapture()
	_ = capture.Start(context.Background())
	recognizer.callbacks.OnStart()

	recognizer.callbacks.OnResult(Result{Index: 0, Segments: []Segment{{Text: "play", Final: true}}})
	recognizer.callbacks.OnResult(Result{Index: 1, Segments: []Segment{{Text: "some music", Final: true}}})

	clock.fire(0)
	if stops, _ := recognizer.session.counts(); stops != 0 {
		t.Fatalf("expected replaced timer to leave the session running, got %d stops", stops)
	}
	if !capture.Active() {
		t.Fatalf("expected capture to stay active")
	}

	clock.fire(1)
	clock.fire(1)
	if stops, _ := recognizer.session.counts(); stops != 1 {
		t.Fatalf("expected exactly one stop from the current timer, got %d stops", stops)
	}
}

func TestStaleTimerDoesNotStopNewerSession(t *testing.T) {
	capture, recognizer, clock, _ := newTestCapture()
	_ = capture.Start(context.Background())
	recognizer.callbacks.OnResult(Result{Segments: []Segment{{Text: "hello", Final: true}}})
	recognizer.callbacks.OnEnd()

	if err := capture.Start(context.Background()); err != nil {
		t.Fatalf("expected second start to succeed, got %v", err)
	}
	clock.fire(0)

	if stops, _ := recognizer.session.counts(); stops != 0 {
		t.Fatalf("expected stale timer to be ignored, got %d stops", stops)
	}
}

func TestStartRejections(t *testing.T) {
	t.Run("gate", func(t *testing.T) {
		capture, recognizer, _, _ := newTestCapture(WithStartGate(func() bool { return false }))
		if err := capture.Start(context.Background()); !errors.Is(err, ErrNotReady) {
			t.Fatalf("expected ErrNotReady, got %v", err)
		}
		if recognizer.starts != 0 {
			t.Fatalf("expected no session to be opened")
		}
	})

	t.Run("cooldown", func(t *testing.T) {
		capture, recognizer, clock, _ := newTestCapture()
		capture.CoolDown(400 * time.Millisecond)
		if err := capture.Start(context.Background()); !errors.Is(err, ErrCoolingDown) {
			t.Fatalf("expected ErrCoolingDown, got %v", err)
		}

		clock.fire(0)
		if err := capture.Start(context.Background()); err != nil {
			t.Fatalf("expected start after cooldown, got %v", err)
		}
		if recognizer.starts != 1 {
			t.Fatalf("expected one session, got %d", recognizer.starts)
		}
	})

	t.Run("rapid double start", func(t *testing.T) {
		capture, recognizer, _, _ := newTestCapture()
		_ = capture.Start(context.Background())
		if err := capture.Start(context.Background()); !errors.Is(err, ErrAlreadyActive) {
			t.Fatalf("expected ErrAlreadyActive before start callback, got %v", err)
		}
		recognizer.callbacks.OnStart()
		if err := capture.Start(context.Background()); !errors.Is(err, ErrAlreadyActive) {
			t.Fatalf("expected ErrAlreadyActive while active, got %v", err)
		}
		if recognizer.starts != 1 {
			t.Fatalf("expected exactly one session, got %d", recognizer.starts)
		}
	})
}

func TestDeviceErrors(t *testing.T) {
	testCases := []struct {
		name   string
		code   ErrorCode
		benign bool
	}{
		{name: "no speech", code: CodeNoSpeech, benign: true},
		{name: "aborted", code: CodeAborted, benign: true},
		{name: "audio capture", code: CodeAudioCapture, benign: false},
		{name: "not allowed", code: CodeNotAllowed, benign: false},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			capture, recognizer, clock, listener := newTestCapture()
			_ = capture.Start(context.Background())
			recognizer.callbacks.OnStart()
			recognizer.callbacks.OnResult(Result{Segments: []Segment{{Text: "hi", Final: true}}})

			recognizer.callbacks.OnError(&DeviceError{Code: testCase.code})
			recognizer.callbacks.OnEnd()

			if len(listener.failures) != 1 || listener.benign[0] != testCase.benign {
				t.Fatalf("expected one failure with benign=%v, got %v", testCase.benign, listener.benign)
			}
			if len(listener.ended) != 0 {
				t.Fatalf("expected end after error to be ignored, got %v", listener.ended)
			}
			if !clock.timers[0].stopped {
				t.Fatalf("expected debounce timer to be cleared")
			}
			if capture.Active() {
				t.Fatalf("expected capture to be inactive")
			}
		})
	}
}

func TestAbortSilencesSessionAndAllowsRestart(t *testing.T) {
	capture, recognizer, _, listener := newTestCapture()
	_ = capture.Start(context.Background())
	recognizer.callbacks.OnStart()
	first := recognizer.session
	callbacks := recognizer.callbacks

	capture.Abort()
	capture.Abort()
	callbacks.OnEnd()

	if _, aborts := first.counts(); aborts != 1 {
		t.Fatalf("expected one abort, got %d", aborts)
	}
	if len(listener.ended) != 0 {
		t.Fatalf("expected aborted session to report nothing")
	}
	if err := capture.Start(context.Background()); err != nil {
		t.Fatalf("expected restart after abort, got %v", err)
	}
}

func TestStartResetsUtterance(t *testing.T) {
	capture, recognizer, _, _ := newTestCapture()
	_ = capture.Start(context.Background())
	recognizer.callbacks.OnResult(Result{Segments: []Segment{{Text: "first", Final: true}}})
	recognizer.callbacks.OnEnd()

	_ = capture.Start(context.Background())
	if got := capture.Utterance(); got.Final != "" || got.Interim != "" {
		t.Fatalf("expected empty utterance, got %+v", got)
	}
}

func TestStartFailureIsReported(t *testing.T) {
	capture, recognizer, _, _ := newTestCapture()
	recognizer.err = &DeviceError{Code: CodeNotAllowed}

	err := capture.Start(context.Background())
	var deviceErr *DeviceError
	if !errors.As(err, &deviceErr) {
		t.Fatalf("expected device error, got %v", err)
	}
	if capture.Active() {
		t.Fatalf("expected capture to be inactive after failed start")
	}
}
