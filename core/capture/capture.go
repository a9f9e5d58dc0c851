package capture

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/codes"
)

const (
	DefaultDebounce = 1500 * time.Millisecond
	DefaultCooldown = 400 * time.Millisecond
)

var (
	ErrNotReady      = errors.New("capture is not allowed in the current state")
	ErrCoolingDown   = errors.New("capture is cooling down")
	ErrAlreadyActive = errors.New("capture session already active")
	ErrNoRecognizer  = errors.New("no recognizer configured")
)

// Listener receives the outcome of capture sessions.
type Listener interface {
	CaptureStarted()
	TranscriptUpdated(final, interim string)
	CaptureEnded(text string)
	CaptureFailed(err error, benign bool)
}

// Utterance is a snapshot of the text captured in the current session.
type Utterance struct {
	Final   string
	Interim string
}

type timer interface {
	Stop() bool
}

// Capture wraps a [Recognizer] and turns its result stream into complete
// utterances. A session ends after no final segment arrived for the debounce
// window, or when the device ends it.
type Capture struct {
	recognizer Recognizer
	listener   Listener
	debounce   time.Duration
	gate       func() bool
	afterFunc  func(time.Duration, func()) timer

	mu         sync.Mutex
	generation uint64
	session    Session
	starting   bool
	active     bool

	finalized   strings.Builder
	interim     string
	nextFinal   int
	debouncing  timer
	debounceSeq uint64

	coolingDown   bool
	cooldownGen   uint64
	cooldownTimer timer
}

type Option func(*Capture)

func WithDebounce(d time.Duration) Option {
	return func(c *Capture) { c.debounce = d }
}

// WithStartGate sets a check consulted by every Start call. Start is rejected
// when it returns false.
func WithStartGate(gate func() bool) Option {
	return func(c *Capture) { c.gate = gate }
}

func WithListener(listener Listener) Option {
	return func(c *Capture) { c.listener = listener }
}

func withAfterFunc(afterFunc func(time.Duration, func()) timer) Option {
	return func(c *Capture) { c.afterFunc = afterFunc }
}

func New(recognizer Recognizer, opts ...Option) *Capture {
	c := &Capture{
		recognizer: recognizer,
		listener:   noopListener{},
		debounce:   DefaultDebounce,
		afterFunc: func(d time.Duration, f func()) timer {
			return time.AfterFunc(d, f)
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetListener replaces the listener. It is meant to be called before the
// first Start.
func (c *Capture) SetListener(listener Listener) {
	if listener == nil {
		listener = noopListener{}
	}
	c.mu.Lock()
	c.listener = listener
	c.mu.Unlock()
}

// Start opens a new recognition session and resets the utterance. Rejected
// starts are logged and return one of [ErrNotReady], [ErrCoolingDown] or
// [ErrAlreadyActive] without touching the device.
func (c *Capture) Start(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "start capture")
	defer span.End()

	if c == nil || c.recognizer == nil {
		span.SetStatus(codes.Error, ErrNoRecognizer.Error())
		return ErrNoRecognizer
	}

	c.mu.Lock()
	if err := c.checkStart(); err != nil {
		c.mu.Unlock()
		logger.InfoContext(ctx, "Capture start rejected", "reason", err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	c.generation++
	gen := c.generation
	c.stopDebounce()
	c.finalized.Reset()
	c.interim = ""
	c.nextFinal = 0
	c.starting = true
	c.mu.Unlock()

	session, err := c.recognizer.Start(ctx, Callbacks{
		OnStart:  func() { c.onStart(gen) },
		OnResult: func(result Result) { c.onResult(gen, result) },
		OnError:  func(err error) { c.onError(gen, err) },
		OnEnd:    func() { c.onEnd(gen) },
	})

	c.mu.Lock()
	if gen != c.generation {
		// Aborted or already finished while the device was starting.
		c.mu.Unlock()
		if session != nil {
			abortQuietly(session)
		}
		return nil
	}
	if err != nil {
		c.starting = false
		c.generation++
		c.mu.Unlock()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to start recognition session: %w", err)
	}
	c.session = session
	c.mu.Unlock()

	return nil
}

func (c *Capture) checkStart() error {
	switch {
	case c.gate != nil && !c.gate():
		return ErrNotReady
	case c.coolingDown:
		return ErrCoolingDown
	case c.starting || c.active || c.session != nil:
		return ErrAlreadyActive
	}
	return nil
}

// Abort tears the current session down without reporting an outcome. It is
// safe to call at any time.
func (c *Capture) Abort() {
	if c == nil {
		return
	}

	c.mu.Lock()
	session := c.session
	c.finishLocked()
	c.mu.Unlock()

	if session != nil {
		abortQuietly(session)
	}
}

// CoolDown rejects starts for d. A later call replaces the window.
func (c *Capture) CoolDown(d time.Duration) {
	if c == nil || d <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cooldownTimer != nil {
		c.cooldownTimer.Stop()
	}
	c.cooldownGen++
	gen := c.cooldownGen
	c.coolingDown = true
	c.cooldownTimer = c.afterFunc(d, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if gen == c.cooldownGen {
			c.coolingDown = false
			c.cooldownTimer = nil
		}
	})
}

// Active reports whether a session is starting or running.
func (c *Capture) Active() bool {
	if c == nil {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.starting || c.active
}

func (c *Capture) Utterance() Utterance {
	if c == nil {
		return Utterance{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return Utterance{Final: strings.TrimSpace(c.finalized.String()), Interim: c.interim}
}

func (c *Capture) onStart(gen uint64) {
	c.mu.Lock()
	if gen != c.generation {
		c.mu.Unlock()
		return
	}
	c.starting = false
	c.active = true
	listener := c.listener
	c.mu.Unlock()

	listener.CaptureStarted()
}

func (c *Capture) onResult(gen uint64, result Result) {
	c.mu.Lock()
	if gen != c.generation {
		c.mu.Unlock()
		return
	}

	var interim strings.Builder
	for i, segment := range result.Segments {
		if !segment.Final {
			interim.WriteString(segment.Text)
			continue
		}

		position := result.Index + i
		if position < c.nextFinal {
			continue
		}
		c.nextFinal = position + 1

		text := strings.TrimSpace(segment.Text)
		if text == "" {
			continue
		}
		c.finalized.WriteString(text)
		c.finalized.WriteString(" ")
		c.restartDebounce(gen)
	}
	c.interim = interim.String()

	final, interimText := strings.TrimSpace(c.finalized.String()), c.interim
	listener := c.listener
	c.mu.Unlock()

	listener.TranscriptUpdated(final, interimText)
}

func (c *Capture) onError(gen uint64, err error) {
	c.mu.Lock()
	if gen != c.generation {
		c.mu.Unlock()
		return
	}
	session := c.session
	c.finishLocked()
	listener := c.listener
	c.mu.Unlock()

	benign := IsBenign(err)
	if benign {
		logger.Debug("Recognition ended without speech", "error", err)
	} else {
		logger.Error("Recognition device failed", "error", err)
	}

	if session != nil {
		abortQuietly(session)
	}
	listener.CaptureFailed(err, benign)
}

func (c *Capture) onEnd(gen uint64) {
	c.mu.Lock()
	if gen != c.generation {
		c.mu.Unlock()
		return
	}
	text := strings.TrimSpace(c.finalized.String())
	c.finishLocked()
	listener := c.listener
	c.mu.Unlock()

	listener.CaptureEnded(text)
}

// finishLocked invalidates every callback and timer of the current session.
func (c *Capture) finishLocked() {
	c.generation++
	c.stopDebounce()
	c.session = nil
	c.starting = false
	c.active = false
	c.interim = ""
}

// restartDebounce must be called with c.mu held. Each timer carries its own
// sequence number so a timer that already fired while being replaced is ignored.
func (c *Capture) restartDebounce(gen uint64) {
	c.stopDebounce()
	c.debounceSeq++
	seq := c.debounceSeq
	c.debouncing = c.afterFunc(c.debounce, func() { c.debounceElapsed(gen, seq) })
}

func (c *Capture) stopDebounce() {
	if c.debouncing != nil {
		c.debouncing.Stop()
		c.debouncing = nil
	}
}

func (c *Capture) debounceElapsed(gen, seq uint64) {
	c.mu.Lock()
	if gen != c.generation || seq != c.debounceSeq || c.debouncing == nil || c.session == nil {
		c.mu.Unlock()
		return
	}
	session := c.session
	c.debouncing = nil
	c.mu.Unlock()

	if err := session.Stop(); err != nil {
		logger.Warn("Failed to stop recognition session", "error", err)
	}
}

func abortQuietly(session Session) {
	if err := session.Abort(); err != nil {
		logger.Debug("Recognition session abort failed", "error", err)
	}
}

type noopListener struct{}

func (noopListener) CaptureStarted()               {}
func (noopListener) TranscriptUpdated(_, _ string) {}
func (noopListener) CaptureEnded(string)           {}
func (noopListener) CaptureFailed(error, bool)     {}
