package events

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/koscakluka/ema-assistant/core/actions"
	"github.com/koscakluka/ema-assistant/core/intent"
)

func TestConstructorsEmitExpectedKinds(t *testing.T) {
	turn := uuid.New()
	testCases := []struct {
		name     string
		event    Event
		expected Kind
	}{
		{name: "activation", event: NewActivationRequested(SourceUser), expected: KindActivationRequested},
		{name: "prompt", event: NewPromptSubmitted("hi"), expected: KindPromptSubmitted},
		{name: "stop", event: NewStopRequested(), expected: KindStopRequested},
		{name: "capture started", event: NewCaptureStarted(1), expected: KindCaptureStarted},
		{name: "transcript updated", event: NewTranscriptUpdated(1, "a", "b"), expected: KindTranscriptUpdated},
		{name: "capture ended", event: NewCaptureEnded(1, "a"), expected: KindCaptureEnded},
		{name: "capture failed", event: NewCaptureFailed(1, errors.New("x"), true), expected: KindCaptureFailed},
		{name: "classification succeeded", event: NewClassificationSucceeded(turn, intent.ClassifiedAction{}), expected: KindClassificationSucceeded},
		{name: "classification failed", event: NewClassificationFailed(turn, errors.New("x")), expected: KindClassificationFailed},
		{name: "playback completed", event: NewPlaybackCompleted(turn, nil), expected: KindPlaybackCompleted},
		{name: "dispatch completed", event: NewDispatchCompleted(turn, actions.Outcome{}), expected: KindDispatchCompleted},
		{name: "announcement completed", event: NewAnnouncementCompleted(turn, nil), expected: KindAnnouncementCompleted},
		{name: "relisten due", event: NewRelistenDue(1), expected: KindRelistenDue},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			if got := testCase.event.Kind(); got != testCase.expected {
				t.Fatalf("expected kind %q, got %q", testCase.expected, got)
			}
			if testCase.event.Timestamp().IsZero() {
				t.Fatalf("expected timestamp to be set")
			}
		})
	}
}

func TestTurnEventsCarryTurnID(t *testing.T) {
	turn := uuid.New()
	var event TurnEvent = NewPlaybackCompleted(turn, nil)

	if event.TurnID() != turn {
		t.Fatalf("expected turn id %s, got %s", turn, event.TurnID())
	}
}

func TestCaptureEventsCarrySession(t *testing.T) {
	event := NewCaptureEnded(7, "hello")
	if event.Session != 7 {
		t.Fatalf("expected session 7, got %d", event.Session)
	}
}
