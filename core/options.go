package assistant

import (
	"context"
	"time"

	"github.com/koscakluka/ema-assistant/core/actions"
	"github.com/koscakluka/ema-assistant/core/capture"
	"github.com/koscakluka/ema-assistant/core/intent"
)

const (
	DefaultRelistenDelay = 700 * time.Millisecond
	DefaultCooldown      = capture.DefaultCooldown
)

type AssistantOption func(*Assistant)

// IntentResolver classifies one utterance. [intent.Resolver] implements it.
type IntentResolver interface {
	Classify(ctx context.Context, text string, uiContext intent.Context) (intent.ClassifiedAction, error)
}

// ActionDispatcher performs classified actions. [actions.Dispatcher]
// implements it.
type ActionDispatcher interface {
	Dispatch(ctx context.Context, action intent.ClassifiedAction) actions.Outcome
	Context() intent.Context
}

// SpeechOutput plays spoken replies. Speak stops any previous output first
// and Stop must be safe to call at any time. [playback.Player] implements it.
type SpeechOutput interface {
	Speak(ctx context.Context, text string) error
	Stop()
}

func WithRecognizer(recognizer capture.Recognizer) AssistantOption {
	return func(a *Assistant) { a.recognizer = recognizer }
}

func WithResolver(resolver IntentResolver) AssistantOption {
	return func(a *Assistant) { a.resolver = resolver }
}

func WithDispatcher(dispatcher ActionDispatcher) AssistantOption {
	return func(a *Assistant) { a.dispatcher = dispatcher }
}

func WithSpeechOutput(output SpeechOutput) AssistantOption {
	return func(a *Assistant) { a.output = output }
}

// WithDebounce sets how long capture waits after the last final segment
// before the utterance is complete.
func WithDebounce(d time.Duration) AssistantOption {
	return func(a *Assistant) { a.debounce = d }
}

// WithRelistenDelay sets the pause between the end of a reply and listening
// again for actions that ask for it.
func WithRelistenDelay(d time.Duration) AssistantOption {
	return func(a *Assistant) { a.relistenDelay = d }
}

// WithCooldown sets how long activation is refused after a turn ends.
func WithCooldown(d time.Duration) AssistantOption {
	return func(a *Assistant) { a.cooldown = d }
}

func WithMessages(messages Messages) AssistantOption {
	return func(a *Assistant) { a.messages = messages }
}

func WithOnStateChange(callback func(from, to State)) AssistantOption {
	return func(a *Assistant) { a.observer.onStateChange = callback }
}

func WithOnTranscript(callback func(final, interim string)) AssistantOption {
	return func(a *Assistant) { a.observer.onTranscript = callback }
}

func WithOnReply(callback func(text string)) AssistantOption {
	return func(a *Assistant) { a.observer.onReply = callback }
}

// WithOnStatus receives user visible status lines such as device errors.
func WithOnStatus(callback func(status string)) AssistantOption {
	return func(a *Assistant) { a.observer.onStatus = callback }
}

// WithListeningCue is called whenever the microphone opens.
func WithListeningCue(cue func(ctx context.Context)) AssistantOption {
	return func(a *Assistant) { a.listeningCue = cue }
}

type observer struct {
	onStateChange func(from, to State)
	onTranscript  func(final, interim string)
	onReply       func(text string)
	onStatus      func(status string)
}

func (o observer) stateChanged(from, to State) {
	if o.onStateChange != nil {
		o.onStateChange(from, to)
	}
}

func (o observer) transcript(final, interim string) {
	if o.onTranscript != nil {
		o.onTranscript(final, interim)
	}
}

func (o observer) reply(text string) {
	if o.onReply != nil && text != "" {
		o.onReply(text)
	}
}

func (o observer) status(status string) {
	if o.onStatus != nil {
		o.onStatus(status)
	}
}
