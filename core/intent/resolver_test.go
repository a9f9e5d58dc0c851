package intent

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/koscakluka/ema-assistant/internal/utils"
)

type scriptedClassifier struct {
	responses []classifierResponse
	calls     int
}

type classifierResponse struct {
	payload *Payload
	err     error
}

func (c *scriptedClassifier) Classify(context.Context, string, Context) (*Payload, error) {
	idx := min(c.calls, len(c.responses)-1)
	c.calls++
	return c.responses[idx].payload, c.responses[idx].err
}

func payload(action, reply string) *Payload {
	return &Payload{Action: utils.Ptr(action), Reply: utils.Ptr(reply)}
}

func noSleep(context.Context, time.Duration) error { return nil }

func TestClassifyRetriesRateLimitUpToBound(t *testing.T) {
	classifier := &scriptedClassifier{responses: []classifierResponse{
		{err: fmt.Errorf("status 429: %w", ErrRateLimited)},
	}}
	resolver := NewResolver(classifier, WithSleep(noSleep))

	_, err := resolver.Classify(context.Background(), "pause karo", Context{})

	var classificationErr *ClassificationError
	if !errors.As(err, &classificationErr) {
		t.Fatalf("expected classification error, got %v", err)
	}
	if classificationErr.Reason != ReasonRateLimited {
		t.Fatalf("expected rate limit reason, got %q", classificationErr.Reason)
	}
	if classifier.calls != 3 {
		t.Fatalf("expected exactly 3 attempts, got %d", classifier.calls)
	}
}

func TestClassifySucceedsOnSecondAttempt(t *testing.T) {
	classifier := &scriptedClassifier{responses: []classifierResponse{
		{err: ErrRateLimited},
		{payload: payload("playback_control", "Pausing")},
		{err: errors.New("should not be called")},
	}}
	resolver := NewResolver(classifier, WithSleep(noSleep))

	action, err := resolver.Classify(context.Background(), "pause karo", Context{})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if classifier.calls != 2 {
		t.Fatalf("expected 2 attempts, got %d", classifier.calls)
	}
	if action.Kind != KindPlaybackControl || action.ReplyText != "Pausing" {
		t.Fatalf("unexpected action %+v", action)
	}
}

func TestClassifyDoesNotRetryOtherFailures(t *testing.T) {
	classifier := &scriptedClassifier{responses: []classifierResponse{
		{err: errors.New("connection reset")},
	}}
	resolver := NewResolver(classifier, WithSleep(noSleep))

	_, err := resolver.Classify(context.Background(), "hello", Context{})

	var classificationErr *ClassificationError
	if !errors.As(err, &classificationErr) || classificationErr.Reason != ReasonRequestFailed {
		t.Fatalf("expected request failure, got %v", err)
	}
	if classifier.calls != 1 {
		t.Fatalf("expected one attempt, got %d", classifier.calls)
	}
}

func TestClassifyRejectsMissingFields(t *testing.T) {
	cases := map[string]*Payload{
		"nil payload":    nil,
		"missing action": {Reply: utils.Ptr("hi")},
		"empty action":   {Action: utils.Ptr("  "), Reply: utils.Ptr("hi")},
		"missing reply":  {Action: utils.Ptr("reply_only")},
	}

	for name, p := range cases {
		t.Run(name, func(t *testing.T) {
			classifier := &scriptedClassifier{responses: []classifierResponse{{payload: p}}}
			_, err := NewResolver(classifier).Classify(context.Background(), "x", Context{})

			var classificationErr *ClassificationError
			if !errors.As(err, &classificationErr) || classificationErr.Reason != ReasonMalformed {
				t.Fatalf("expected malformed response error, got %v", err)
			}
		})
	}
}

func TestClassifyMapsUnknownTags(t *testing.T) {
	classifier := &scriptedClassifier{responses: []classifierResponse{
		{payload: payload("dance_party", "I can't dance")},
	}}

	action, err := NewResolver(classifier).Classify(context.Background(), "dance", Context{})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if action.Kind != KindUnknown {
		t.Fatalf("expected unknown kind, got %q", action.Kind)
	}
	if action.ReplyText != "I can't dance" {
		t.Fatalf("expected reply to be kept, got %q", action.ReplyText)
	}
}

func TestClassifyWithoutClassifierFails(t *testing.T) {
	_, err := NewResolver(nil).Classify(context.Background(), "x", Context{})
	var classificationErr *ClassificationError
	if !errors.As(err, &classificationErr) {
		t.Fatalf("expected classification error, got %v", err)
	}
}

type stubSearcher struct {
	results []MediaResult
	err     error
}

func (s stubSearcher) Search(context.Context, string) ([]MediaResult, error) {
	return s.results, s.err
}

func TestSearchNeverReturnsNil(t *testing.T) {
	resolver := NewResolver(nil, WithSearcher(stubSearcher{}))

	results, err := resolver.Search(context.Background(), "lofi")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if results == nil || len(results) != 0 {
		t.Fatalf("expected empty non-nil results, got %#v", results)
	}
}

func TestSearchWrapsFailures(t *testing.T) {
	resolver := NewResolver(nil, WithSearcher(stubSearcher{err: errors.New("quota")}))

	results, err := resolver.Search(context.Background(), "lofi")

	var searchErr *SearchError
	if !errors.As(err, &searchErr) {
		t.Fatalf("expected search error, got %v", err)
	}
	if results == nil {
		t.Fatalf("expected non-nil results on failure")
	}
}

func TestPlaybackCommandAliases(t *testing.T) {
	cases := map[string]PlaybackCommand{
		"Pause":  CommandPause,
		"resume": CommandPlay,
		"skip":   CommandNext,
		"back":   CommandPrevious,
		"jump":   "",
	}
	for raw, want := range cases {
		action := ClassifiedAction{Kind: KindPlaybackControl, Params: Params{Command: raw}}
		if got := action.Command(); got != want {
			t.Fatalf("command %q: expected %q, got %q", raw, want, got)
		}
	}

	if got := (ClassifiedAction{Kind: KindSetVolume, Params: Params{Command: "pause"}}).Command(); got != "" {
		t.Fatalf("expected no command outside playback control, got %q", got)
	}
}
