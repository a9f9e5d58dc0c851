package capture

import (
	"context"
	"errors"
	"fmt"
)

// Recognizer opens continuous, interim-enabled recognition sessions.
//
// Callbacks may be invoked from any goroutine, including synchronously from
// Start. OnEnd is invoked once when the session is over, whatever the reason.
type Recognizer interface {
	Start(ctx context.Context, callbacks Callbacks) (Session, error)
}

// Session is a single open recognition session. Stop asks the device to
// finish and deliver pending results, Abort drops them.
type Session interface {
	Stop() error
	Abort() error
}

type Callbacks struct {
	OnStart  func()
	OnResult func(Result)
	OnError  func(error)
	OnEnd    func()
}

// Result is one recognition update. Segments hold the changed results of the
// session starting at position Index. A segment whose position was already
// reported as final is never appended again.
type Result struct {
	Index    int
	Segments []Segment
}

type Segment struct {
	Text  string
	Final bool
}

type ErrorCode string

const (
	CodeNoSpeech     ErrorCode = "no-speech"
	CodeAborted      ErrorCode = "aborted"
	CodeAudioCapture ErrorCode = "audio-capture"
	CodeNetwork      ErrorCode = "network"
	CodeNotAllowed   ErrorCode = "not-allowed"
	CodeUnknown      ErrorCode = "unknown"
)

// DeviceError is reported by recognizers through Callbacks.OnError.
type DeviceError struct {
	Code ErrorCode
	Err  error
}

func (e *DeviceError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("recognition device error: %s", e.Code)
	}
	return fmt.Sprintf("recognition device error: %s: %v", e.Code, e.Err)
}

func (e *DeviceError) Unwrap() error { return e.Err }

// Benign reports whether the error only means nothing was said.
func (e *DeviceError) Benign() bool {
	return e.Code == CodeNoSpeech || e.Code == CodeAborted
}

// IsBenign reports whether err is a benign [DeviceError].
func IsBenign(err error) bool {
	var deviceErr *DeviceError
	return errors.As(err, &deviceErr) && deviceErr.Benign()
}
