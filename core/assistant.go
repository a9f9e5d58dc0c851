package assistant

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/koscakluka/ema-assistant/core/actions"
	"github.com/koscakluka/ema-assistant/core/capture"
	"github.com/koscakluka/ema-assistant/core/events"
	"github.com/koscakluka/ema-assistant/core/intent"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var ErrAlreadyRunning = errors.New("assistant is already running")

// Assistant coordinates capture, classification, reply output and action
// dispatch. All state changes happen on the goroutine running Run; every
// other method only posts an event.
type Assistant struct {
	recognizer    capture.Recognizer
	resolver      IntentResolver
	dispatcher    ActionDispatcher
	output        SpeechOutput
	messages      Messages
	debounce      time.Duration
	relistenDelay time.Duration
	cooldown      time.Duration
	observer      observer
	listeningCue  func(ctx context.Context)

	capture *capture.Capture
	events  chan events.Event
	state   atomic.Int32
	running atomic.Bool

	closed    chan struct{}
	closeOnce sync.Once

	// Owned by the loop goroutine.
	ctx            context.Context
	turn           *turn
	captureSession uint64
	relistenGen    uint64
	relistenTimer  *time.Timer
}

type phase int

const (
	phaseReply phase = iota
	phaseFollowUp
	phaseApology
	phaseAnnouncement
)

type turn struct {
	id     uuid.UUID
	ctx    context.Context
	cancel context.CancelFunc
	span   trace.Span
	phase  phase

	action       intent.ClassifiedAction
	outcome      actions.Outcome
	outputFailed bool
}

// Snapshot is a point in time view of the assistant.
type Snapshot struct {
	State     State
	Utterance capture.Utterance
}

func NewAssistant(opts ...AssistantOption) *Assistant {
	a := &Assistant{
		messages:      DefaultMessages(),
		debounce:      capture.DefaultDebounce,
		relistenDelay: DefaultRelistenDelay,
		cooldown:      DefaultCooldown,
		events:        make(chan events.Event, 64),
		closed:        make(chan struct{}),
		ctx:           context.Background(),
	}
	for _, opt := range opts {
		opt(a)
	}

	if a.resolver == nil {
		a.resolver = intent.NewResolver(nil)
	}
	if a.dispatcher == nil {
		a.dispatcher = actions.NewDispatcher()
	}
	if a.output == nil {
		a.output = silentOutput{}
	}

	a.capture = capture.New(a.recognizer,
		capture.WithDebounce(a.debounce),
		capture.WithStartGate(func() bool { return a.State().CanListen() }),
	)
	return a
}

// Run processes events until ctx is done or Close is called. It must be
// called once.
func (a *Assistant) Run(ctx context.Context) error {
	if !a.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	a.ctx = ctx
	defer a.shutdown()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-a.closed:
			return nil
		case event := <-a.events:
			a.handle(event)
		}
	}
}

// Activate asks the assistant to start listening. It is ignored unless the
// assistant is idle or recovering from an error.
func (a *Assistant) Activate() {
	a.post(events.NewActivationRequested(events.SourceUser))
}

// SubmitPrompt handles typed text as if it was a finalized utterance.
func (a *Assistant) SubmitPrompt(text string) {
	a.post(events.NewPromptSubmitted(text))
}

// Stop drops whatever the assistant is doing and returns it to idle.
func (a *Assistant) Stop() {
	a.post(events.NewStopRequested())
}

func (a *Assistant) State() State {
	return State(a.state.Load())
}

func (a *Assistant) Snapshot() Snapshot {
	return Snapshot{State: a.State(), Utterance: a.capture.Utterance()}
}

// Close stops the loop and releases capture and output.
func (a *Assistant) Close() {
	a.closeOnce.Do(func() {
		close(a.closed)
		a.capture.Abort()
		a.output.Stop()
	})
}

func (a *Assistant) post(event events.Event) {
	select {
	case a.events <- event:
	case <-a.closed:
	}
}

func (a *Assistant) shutdown() {
	a.cancelRelisten()
	a.abortCapture()
	a.endTurn()
}

func (a *Assistant) handle(event events.Event) {
	logger.Debug("Handling event", "kind", event.Kind(), "state", a.State())

	switch e := event.(type) {
	case events.ActivationRequested:
		a.activate(e.Source)
	case events.PromptSubmitted:
		a.submitPrompt(e.Text)
	case events.StopRequested:
		a.forceIdle()
	case events.RelistenDue:
		a.relistenDue(e.Generation)

	case events.CaptureStarted:
		if a.currentCapture(e.CaptureBase) && a.listeningCue != nil {
			go a.listeningCue(a.ctx)
		}
	case events.TranscriptUpdated:
		if a.currentCapture(e.CaptureBase) {
			a.observer.transcript(e.Final, e.Interim)
		}
	case events.CaptureEnded:
		if a.currentCapture(e.CaptureBase) {
			a.captureEnded(e.Text)
		}
	case events.CaptureFailed:
		if a.currentCapture(e.CaptureBase) {
			a.captureFailed(e.Err, e.Benign)
		}

	case events.ClassificationSucceeded:
		if t := a.currentTurn(e); t != nil {
			a.classificationSucceeded(t, e.Action)
		}
	case events.ClassificationFailed:
		if t := a.currentTurn(e); t != nil {
			a.classificationFailed(t, e.Err)
		}
	case events.PlaybackCompleted:
		if t := a.currentTurn(e); t != nil {
			a.playbackCompleted(t, e.Err)
		}
	case events.DispatchCompleted:
		if t := a.currentTurn(e); t != nil {
			a.dispatchCompleted(t, e.Outcome)
		}
	case events.AnnouncementCompleted:
		if t := a.currentTurn(e); t != nil {
			if e.Err != nil {
				logger.Warn("Failed to announce error", "error", e.Err)
			}
			a.finishTurn(false)
		}

	default:
		logger.Warn("Unhandled event", "kind", event.Kind())
	}
}

func (a *Assistant) currentCapture(event events.CaptureBase) bool {
	return event.Session == a.captureSession && a.State() == StateListening
}

func (a *Assistant) currentTurn(event events.TurnEvent) *turn {
	if a.turn == nil || a.turn.id != event.TurnID() {
		logger.Debug("Dropping stale turn event", "kind", event.Kind())
		return nil
	}
	return a.turn
}

func (a *Assistant) activate(source events.ActivationSource) {
	if state := a.State(); !state.CanListen() {
		logger.Info("Activation rejected", "state", state, "source", source)
		return
	}

	a.cancelRelisten()
	a.endTurn()

	a.captureSession++
	a.capture.SetListener(captureListener{assistant: a, session: a.captureSession})
	if err := a.capture.Start(a.ctx); err != nil {
		switch {
		case errors.Is(err, capture.ErrNotReady),
			errors.Is(err, capture.ErrCoolingDown),
			errors.Is(err, capture.ErrAlreadyActive):
			logger.Info("Activation rejected", "reason", err, "source", source)
		default:
			logger.Error("Failed to start capture", "error", err)
			a.deviceFailed()
		}
		return
	}

	a.transition(StateListening)
}

func (a *Assistant) submitPrompt(text string) {
	if text = strings.TrimSpace(text); text == "" {
		return
	}

	switch state := a.State(); state {
	case StateListening:
		a.abortCapture()
	case StateIdle, StateError:
	default:
		logger.Info("Prompt rejected", "state", state)
		return
	}

	a.cancelRelisten()
	a.beginTurn(text)
}

func (a *Assistant) captureEnded(text string) {
	if text == "" {
		a.transition(StateIdle)
		return
	}
	a.beginTurn(text)
}

func (a *Assistant) captureFailed(err error, benign bool) {
	if benign {
		a.transition(StateIdle)
		return
	}
	logger.Error("Speech capture failed", "error", err)
	a.deviceFailed()
}

func (a *Assistant) deviceFailed() {
	t := a.newTurn("announce error", phaseAnnouncement)
	a.transition(StateError)
	a.observer.status(a.messages.MicrophoneError)

	text := a.messages.MicrophoneError
	go func() {
		err := a.output.Speak(t.ctx, text)
		a.post(events.NewAnnouncementCompleted(t.id, err))
	}()
}

func (a *Assistant) beginTurn(text string) {
	t := a.newTurn("assistant turn", phaseReply)
	a.transition(StateThinking)

	uiContext := a.dispatcher.Context()
	go func() {
		action, err := a.resolver.Classify(t.ctx, text, uiContext)
		if err != nil {
			a.post(events.NewClassificationFailed(t.id, err))
			return
		}
		a.post(events.NewClassificationSucceeded(t.id, action))
	}()
}

func (a *Assistant) classificationSucceeded(t *turn, action intent.ClassifiedAction) {
	if a.State() != StateThinking {
		return
	}

	t.action = action
	t.span.SetAttributes(attribute.String("action.kind", string(action.Kind)))
	a.transition(StateSpeaking)
	a.observer.reply(action.ReplyText)
	a.speak(t, action.ReplyText)
}

func (a *Assistant) classificationFailed(t *turn, err error) {
	if a.State() != StateThinking {
		return
	}

	logger.Warn("Classification failed", "error", err)
	t.span.RecordError(err)

	message := a.messages.ClassificationFailed
	var classificationErr *intent.ClassificationError
	if errors.As(err, &classificationErr) && classificationErr.Reason == intent.ReasonRateLimited {
		message = a.messages.RateLimited
	}

	t.phase = phaseApology
	a.transition(StateSpeaking)
	a.observer.reply(message)
	a.speak(t, message)
}

func (a *Assistant) speak(t *turn, text string) {
	go func() {
		err := a.output.Speak(t.ctx, text)
		a.post(events.NewPlaybackCompleted(t.id, err))
	}()
}

func (a *Assistant) playbackCompleted(t *turn, err error) {
	if err != nil && t.ctx.Err() == nil {
		logger.Error("Reply playback failed", "error", err)
		t.span.RecordError(err)
		t.span.SetStatus(codes.Error, err.Error())
		t.outputFailed = true
		a.transition(StateError)
		a.observer.status(a.messages.PlaybackFailed)
	}

	if t.phase != phaseReply {
		a.finishTurn(t.outcome.Relisten && !t.outputFailed)
		return
	}

	// Dispatch outlives the turn so launched media keeps running.
	ctx := trace.ContextWithSpan(a.ctx, t.span)
	action := t.action
	go func() {
		outcome := a.dispatcher.Dispatch(ctx, action)
		a.post(events.NewDispatchCompleted(t.id, outcome))
	}()
}

func (a *Assistant) dispatchCompleted(t *turn, outcome actions.Outcome) {
	t.outcome = outcome
	t.span.SetAttributes(attribute.Bool("action.relisten", outcome.Relisten))

	if outcome.ForceIdle {
		a.forceIdle()
		return
	}
	if outcome.FollowUp != "" && !t.outputFailed {
		t.phase = phaseFollowUp
		a.observer.reply(outcome.FollowUp)
		a.speak(t, outcome.FollowUp)
		return
	}
	a.finishTurn(outcome.Relisten && !t.outputFailed)
}

func (a *Assistant) finishTurn(relisten bool) {
	a.endTurn()
	a.transition(StateIdle)
	a.capture.CoolDown(a.cooldown)
	if relisten {
		a.scheduleRelisten()
	}
}

func (a *Assistant) forceIdle() {
	a.cancelRelisten()
	a.abortCapture()
	a.endTurn()
	a.transition(StateIdle)
}

func (a *Assistant) newTurn(name string, p phase) *turn {
	a.endTurn()

	ctx, cancel := context.WithCancel(a.ctx)
	ctx, span := tracer.Start(ctx, name)
	t := &turn{id: uuid.New(), ctx: ctx, cancel: cancel, span: span, phase: p}
	span.SetAttributes(attribute.String("turn.id", t.id.String()))
	a.turn = t
	return t
}

// endTurn cancels the current turn and silences any output.
func (a *Assistant) endTurn() {
	if a.turn != nil {
		a.turn.cancel()
		a.turn.span.End()
		a.turn = nil
	}
	a.output.Stop()
}

func (a *Assistant) abortCapture() {
	a.capture.Abort()
	a.captureSession++
}

func (a *Assistant) scheduleRelisten() {
	a.cancelRelisten()
	gen := a.relistenGen
	a.relistenTimer = time.AfterFunc(a.relistenDelay, func() {
		a.post(events.NewRelistenDue(gen))
	})
}

func (a *Assistant) cancelRelisten() {
	a.relistenGen++
	if a.relistenTimer != nil {
		a.relistenTimer.Stop()
		a.relistenTimer = nil
	}
}

func (a *Assistant) relistenDue(gen uint64) {
	if gen != a.relistenGen {
		return
	}
	a.relistenTimer = nil
	a.activate(events.SourceRelisten)
}

func (a *Assistant) transition(to State) {
	from := a.State()
	if from == to {
		return
	}
	if !canTransition(from, to) {
		logger.Error("Invalid state transition", "from", from, "to", to)
		return
	}

	a.state.Store(int32(to))
	logger.Debug("State changed", "from", from, "to", to)
	a.observer.stateChanged(from, to)
}

type captureListener struct {
	assistant *Assistant
	session   uint64
}

func (l captureListener) CaptureStarted() {
	l.assistant.post(events.NewCaptureStarted(l.session))
}

func (l captureListener) TranscriptUpdated(final, interim string) {
	l.assistant.post(events.NewTranscriptUpdated(l.session, final, interim))
}

func (l captureListener) CaptureEnded(text string) {
	l.assistant.post(events.NewCaptureEnded(l.session, text))
}

func (l captureListener) CaptureFailed(err error, benign bool) {
	l.assistant.post(events.NewCaptureFailed(l.session, err, benign))
}

type silentOutput struct{}

func (silentOutput) Speak(context.Context, string) error { return nil }
func (silentOutput) Stop()                               {}
