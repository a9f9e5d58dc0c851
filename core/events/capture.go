package events

const (
	KindCaptureStarted    Kind = "capture.started"
	KindTranscriptUpdated Kind = "capture.transcript_updated"
	KindCaptureEnded      Kind = "capture.ended"
	KindCaptureFailed     Kind = "capture.failed"
)

// CaptureBase tags capture events with the capture session that produced
// them. Events of an abandoned session are dropped by the loop.
type CaptureBase struct {
	Base
	Session uint64
}

func NewCaptureBase(kind Kind, session uint64) CaptureBase {
	return CaptureBase{Base: NewBase(kind), Session: session}
}

// CaptureStarted marks that the recognition device confirmed the session.
type CaptureStarted struct{ CaptureBase }

func NewCaptureStarted(session uint64) CaptureStarted {
	return CaptureStarted{CaptureBase: NewCaptureBase(KindCaptureStarted, session)}
}

// TranscriptUpdated is a point in time snapshot of the current utterance.
type TranscriptUpdated struct {
	CaptureBase
	Final   string
	Interim string
}

func NewTranscriptUpdated(session uint64, final, interim string) TranscriptUpdated {
	return TranscriptUpdated{CaptureBase: NewCaptureBase(KindTranscriptUpdated, session), Final: final, Interim: interim}
}

// CaptureEnded carries the finalized text of a completed session. Text may be
// empty.
type CaptureEnded struct {
	CaptureBase
	Text string
}

func NewCaptureEnded(session uint64, text string) CaptureEnded {
	return CaptureEnded{CaptureBase: NewCaptureBase(KindCaptureEnded, session), Text: text}
}

// CaptureFailed reports a device error. Benign errors end the session like an
// empty utterance.
type CaptureFailed struct {
	CaptureBase
	Err    error
	Benign bool
}

func NewCaptureFailed(session uint64, err error, benign bool) CaptureFailed {
	return CaptureFailed{CaptureBase: NewCaptureBase(KindCaptureFailed, session), Err: err, Benign: benign}
}
