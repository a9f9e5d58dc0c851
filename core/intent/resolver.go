package intent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/koscakluka/ema-assistant/internal/utils"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	DefaultMaxAttempts  = 3
	DefaultInitialDelay = 1000 * time.Millisecond
)

// Classifier is the external intent classification call.
type Classifier interface {
	Classify(ctx context.Context, text string, uiContext Context) (*Payload, error)
}

// Searcher is the external media lookup call.
type Searcher interface {
	Search(ctx context.Context, query string) ([]MediaResult, error)
}

// Resolver normalizes classifier and search calls into validated results.
type Resolver struct {
	classifier Classifier
	searcher   Searcher
	retry      utils.RetryPolicy
}

type ResolverOption func(*Resolver)

// WithRetry overrides the rate-limit retry bound and the first backoff delay.
// Delays double after every rate-limited attempt.
func WithRetry(maxAttempts int, initialDelay time.Duration) ResolverOption {
	return func(r *Resolver) {
		r.retry.MaxAttempts = maxAttempts
		r.retry.InitialDelay = initialDelay
	}
}

// WithSleep replaces the backoff wait, mostly useful for tests.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) ResolverOption {
	return func(r *Resolver) { r.retry.Sleep = sleep }
}

func WithSearcher(searcher Searcher) ResolverOption {
	return func(r *Resolver) { r.searcher = searcher }
}

func NewResolver(classifier Classifier, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		classifier: classifier,
		retry: utils.RetryPolicy{
			MaxAttempts:  DefaultMaxAttempts,
			InitialDelay: DefaultInitialDelay,
			Multiplier:   2,
			IsRetryable:  func(err error) bool { return errors.Is(err, ErrRateLimited) },
		},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Classify resolves text into a [ClassifiedAction]. Every failure is returned
// as a *[ClassificationError].
func (r *Resolver) Classify(ctx context.Context, text string, uiContext Context) (ClassifiedAction, error) {
	ctx, span := tracer.Start(ctx, "classify utterance")
	defer span.End()
	span.SetAttributes(attribute.String("ui.active_panel", uiContext.ActivePanel))

	if r == nil || r.classifier == nil {
		err := &ClassificationError{Reason: ReasonRequestFailed, Err: errors.New("no classifier configured")}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return ClassifiedAction{}, err
	}

	attempts := 0
	payload, err := utils.Retry(ctx, r.retry, func(ctx context.Context) (*Payload, error) {
		attempts++
		payload, err := r.classifier.Classify(ctx, text, uiContext)
		if errors.Is(err, ErrRateLimited) {
			logger.WarnContext(ctx, "Classifier rate limited", "attempt", attempts)
		}
		return payload, err
	})
	span.SetAttributes(attribute.Int("classify.attempts", attempts))
	if err != nil {
		classificationErr := toClassificationError(err)
		span.RecordError(classificationErr)
		span.SetStatus(codes.Error, classificationErr.Error())
		return ClassifiedAction{}, classificationErr
	}

	action, err := validate(payload)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return ClassifiedAction{}, err
	}

	span.SetAttributes(attribute.String("action.kind", string(action.Kind)))
	return action, nil
}

func toClassificationError(err error) *ClassificationError {
	var classificationErr *ClassificationError
	switch {
	case errors.As(err, &classificationErr):
		return classificationErr
	case errors.Is(err, ErrRateLimited):
		return &ClassificationError{Reason: ReasonRateLimited, Err: err}
	case errors.Is(err, ErrMalformedResponse):
		return &ClassificationError{Reason: ReasonMalformed, Err: err}
	default:
		return &ClassificationError{Reason: ReasonRequestFailed, Err: err}
	}
}

func validate(payload *Payload) (ClassifiedAction, error) {
	if payload == nil {
		return ClassifiedAction{}, &ClassificationError{Reason: ReasonMalformed, Err: errors.New("empty payload")}
	}
	if payload.Action == nil || strings.TrimSpace(*payload.Action) == "" {
		return ClassifiedAction{}, &ClassificationError{Reason: ReasonMalformed, Err: errors.New("missing action")}
	}
	if payload.Reply == nil {
		return ClassifiedAction{}, &ClassificationError{Reason: ReasonMalformed, Err: errors.New("missing reply")}
	}

	kind := ParseActionKind(*payload.Action)
	if kind == KindUnknown && strings.TrimSpace(*payload.Action) != string(KindUnknown) {
		logger.Info("Unrecognized action tag", "tag", *payload.Action)
	}

	return ClassifiedAction{
		Kind:      kind,
		Params:    payload.Params,
		ReplyText: strings.TrimSpace(*payload.Reply),
	}, nil
}

// Search looks up media for query. The returned slice is never nil; failures
// are returned as *[SearchError] alongside an empty slice.
func (r *Resolver) Search(ctx context.Context, query string) ([]MediaResult, error) {
	ctx, span := tracer.Start(ctx, "search media")
	defer span.End()
	span.SetAttributes(attribute.String("search.query", query))

	if r == nil || r.searcher == nil {
		err := &SearchError{Query: query, Err: errors.New("no searcher configured")}
		span.RecordError(err)
		return []MediaResult{}, err
	}

	results, err := r.searcher.Search(ctx, query)
	if err != nil {
		searchErr := &SearchError{Query: query, Err: fmt.Errorf("failed to search: %w", err)}
		span.RecordError(searchErr)
		span.SetStatus(codes.Error, searchErr.Error())
		return []MediaResult{}, searchErr
	}
	if results == nil {
		results = []MediaResult{}
	}

	span.SetAttributes(attribute.Int("search.results", len(results)))
	return results, nil
}
