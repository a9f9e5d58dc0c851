package audio

import "context"

// CaptureDevice streams raw microphone audio. onAudio is called from the
// device goroutine and must not retain the slice.
type CaptureDevice interface {
	StartCapture(ctx context.Context, onAudio func(audio []byte)) error
	StopCapture() error
	EncodingInfo() EncodingInfo
}
