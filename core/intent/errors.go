package intent

import (
	"errors"
	"fmt"
)

// ErrRateLimited is returned (wrapped) by classifiers when the backend
// signalled a rate limit or exhausted quota. Only this error is retried.
var ErrRateLimited = errors.New("rate limited")

// ErrMalformedResponse is returned (wrapped) when the classifier output could
// not be parsed or is missing required fields.
var ErrMalformedResponse = errors.New("malformed response")

type FailureReason string

const (
	ReasonRateLimited   FailureReason = "rate limit exceeded"
	ReasonMalformed     FailureReason = "malformed response"
	ReasonRequestFailed FailureReason = "request failed"
)

// ClassificationError is the only error [Resolver.Classify] returns.
type ClassificationError struct {
	Reason FailureReason
	Err    error
}

func (e *ClassificationError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("classification failed: %s", e.Reason)
	}
	return fmt.Sprintf("classification failed: %s: %v", e.Reason, e.Err)
}

func (e *ClassificationError) Unwrap() error { return e.Err }

// SearchError wraps any failure of [Resolver.Search].
type SearchError struct {
	Query string
	Err   error
}

func (e *SearchError) Error() string {
	return fmt.Sprintf("search for %q failed: %v", e.Query, e.Err)
}

func (e *SearchError) Unwrap() error { return e.Err }
